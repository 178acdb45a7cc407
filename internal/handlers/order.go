package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"backend/internal/mail"
	"backend/internal/middleware"
	"backend/internal/models"
	"backend/internal/otp"
)

/* =========================
   REQUEST DTOs
========================= */

type buyNowRequest struct {
	ProductID      string `json:"product_id" binding:"required"`
	Quantity       int    `json:"quantity" binding:"required"`
	GuestName      string `json:"guest_name"`
	GuestPhone     string `json:"guest_phone"`
	GuestEmail     string `json:"guest_email"`
	Address        string `json:"address"`
	DeliveryMethod string `json:"delivery_method"`
}

type cartCheckoutItem struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required"`
}

type cartCheckoutRequest struct {
	Items          []cartCheckoutItem `json:"items" binding:"required"`
	Address        string             `json:"address"`
	DeliveryMethod string             `json:"delivery_method"`
}

type guestOrdersRequest struct {
	Phone string `json:"phone" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

// errInvalidToken marks a bearer token that was presented but failed to
// parse; it maps to 401 rather than the 400 of a bad guest identity.
var errInvalidToken = errors.New("invalid token")

// ownerFromRequest resolves the tagged owner: a valid bearer token wins,
// otherwise the guest fields must be present.
func ownerFromRequest(c *gin.Context, jwtSecret, guestName, guestPhone, guestEmail string) (models.OrderOwner, error) {
	if header := strings.TrimSpace(c.GetHeader("Authorization")); header != "" {
		subject, err := middleware.ParseBearer(header, jwtSecret)
		if err != nil {
			return models.OrderOwner{}, errInvalidToken
		}
		id := subject.UserID
		return models.OrderOwner{UserID: &id}, nil
	}

	owner := models.OrderOwner{Guest: &models.GuestOwner{
		Name:  strings.TrimSpace(guestName),
		Phone: strings.TrimSpace(guestPhone),
		Email: strings.ToLower(strings.TrimSpace(guestEmail)),
	}}
	return owner, owner.Validate()
}

func normalizeDelivery(method, address string) (string, string, error) {
	method = strings.TrimSpace(method)
	if method == "" {
		method = models.DeliveryMethodStore
	}
	if method != models.DeliveryMethodStore && method != models.DeliveryMethodHome {
		return "", "", errors.New("invalid delivery_method")
	}
	address = strings.TrimSpace(address)
	if method == models.DeliveryMethodHome && address == "" {
		return "", "", errors.New("address is required for home delivery")
	}
	return method, address, nil
}

/* =========================
   BUY NOW
========================= */

func BuyNow(db *mongo.Database, jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /buy"
		defer handlePanic(c, route)

		var req buyNowRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, "product_id and quantity are required")
			return
		}
		if req.Quantity <= 0 {
			respondWithError(c, http.StatusBadRequest, route, "quantity must be greater than zero")
			return
		}

		productID, err := primitive.ObjectIDFromHex(req.ProductID)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid product_id")
			return
		}

		owner, err := ownerFromRequest(c, jwtSecret, req.GuestName, req.GuestPhone, req.GuestEmail)
		if errors.Is(err, errInvalidToken) {
			respondWithError(c, http.StatusUnauthorized, route, err.Error())
			return
		}
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		deliveryMethod, address, err := normalizeDelivery(req.DeliveryMethod, req.Address)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		var product models.Product
		err = db.Collection("products").FindOne(ctx, bson.M{
			"_id":       productID,
			"isDeleted": bson.M{"$ne": true},
		}).Decode(&product)
		if err == mongo.ErrNoDocuments {
			respondWithError(c, http.StatusBadRequest, route, "product not found")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		if product.Stock < req.Quantity {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":     "insufficient stock",
				"available": product.Stock,
				"requested": req.Quantity,
			})
			return
		}

		item := models.OrderItem{
			ProductID: product.ID,
			Name:      product.Name,
			Quantity:  req.Quantity,
			UnitPrice: product.Price,
		}
		order := models.Order{
			Owner:          owner,
			Items:          []models.OrderItem{item},
			TotalPrice:     item.UnitPrice * float64(item.Quantity),
			DeliveryMethod: deliveryMethod,
			Address:        address,
			Status:         models.StatusPending,
			DeliveryStatus: models.DeliveryPending,
			CreatedAt:      time.Now(),
		}

		created, err := insertOrderWithCodeRetry(ctx, db, order)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		logrus.WithFields(logrus.Fields{"route": route, "orderCode": created.OrderCode}).Info("order created")
		c.JSON(http.StatusCreated, gin.H{
			"orderId":    created.ID.Hex(),
			"orderCode":  created.OrderCode,
			"totalPrice": created.TotalPrice,
			"status":     created.Status,
		})
	}
}

/* =========================
   CHECKOUT FROM CART
========================= */

func CreateOrderFromCart(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /create_order_from_cart"
		defer handlePanic(c, route)

		subject, ok := middleware.SubjectFromContext(c)
		if !ok {
			respondWithError(c, http.StatusUnauthorized, route, "unauthorized")
			return
		}

		var req cartCheckoutRequest
		if err := c.ShouldBindJSON(&req); err != nil || len(req.Items) == 0 {
			respondWithError(c, http.StatusBadRequest, route, "at least one item is required")
			return
		}

		deliveryMethod, address, err := normalizeDelivery(req.DeliveryMethod, req.Address)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		session, err := db.Client().StartSession()
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		defer session.EndSession(ctx)

		var created models.Order
		_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
			items := make([]models.OrderItem, 0, len(req.Items))
			productIDs := make([]primitive.ObjectID, 0, len(req.Items))
			var total float64

			for _, line := range req.Items {
				productID, err := primitive.ObjectIDFromHex(line.ProductID)
				if err != nil || line.Quantity <= 0 {
					return nil, productNotFoundError{ProductID: line.ProductID}
				}

				var product models.Product
				err = db.Collection("products").FindOne(sessCtx, bson.M{
					"_id":       productID,
					"isDeleted": bson.M{"$ne": true},
				}).Decode(&product)
				if err == mongo.ErrNoDocuments {
					return nil, productNotFoundError{ProductID: line.ProductID}
				}
				if err != nil {
					return nil, err
				}

				if product.Stock < line.Quantity {
					return nil, outOfStockError{
						ProductID: line.ProductID,
						Available: product.Stock,
						Requested: line.Quantity,
					}
				}

				items = append(items, models.OrderItem{
					ProductID: product.ID,
					Name:      product.Name,
					Quantity:  line.Quantity,
					UnitPrice: product.Price,
				})
				productIDs = append(productIDs, productID)
				total += product.Price * float64(line.Quantity)
			}

			userID := subject.UserID
			order := models.Order{
				Owner:          models.OrderOwner{UserID: &userID},
				Items:          items,
				TotalPrice:     total,
				DeliveryMethod: deliveryMethod,
				Address:        address,
				Status:         models.StatusPending,
				DeliveryStatus: models.DeliveryPending,
				CreatedAt:      time.Now(),
			}

			created, err = insertOrderWithCodeRetry(sessCtx, db, order)
			if err != nil {
				return nil, err
			}

			// Clear only the cart rows the checkout consumed.
			_, err = db.Collection("cart_items").DeleteMany(sessCtx, bson.M{
				"userId":    subject.UserID,
				"productId": bson.M{"$in": productIDs},
			})
			return nil, err
		})
		if err != nil {
			respondOrderBuildError(c, route, err)
			return
		}

		logrus.WithFields(logrus.Fields{"route": route, "orderCode": created.OrderCode}).Info("cart checkout completed")
		c.JSON(http.StatusCreated, gin.H{
			"orderId":    created.ID.Hex(),
			"orderCode":  created.OrderCode,
			"totalPrice": created.TotalPrice,
			"status":     created.Status,
		})
	}
}

func respondOrderBuildError(c *gin.Context, route string, err error) {
	var stockErr outOfStockError
	if errors.As(err, &stockErr) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "insufficient stock",
			"productId": stockErr.ProductID,
			"available": stockErr.Available,
			"requested": stockErr.Requested,
		})
		return
	}
	var notFoundErr productNotFoundError
	if errors.As(err, &notFoundErr) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "product not found",
			"productId": notFoundErr.ProductID,
		})
		return
	}
	respondWithError(c, http.StatusInternalServerError, route, "db error")
}

/* =========================
   LIFECYCLE ACTIONS
========================= */

func CancelOrder(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /orders/:id/cancel"
		defer handlePanic(c, route)

		subject, ok := middleware.SubjectFromContext(c)
		if !ok {
			respondWithError(c, http.StatusUnauthorized, route, "unauthorized")
			return
		}

		orderID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid id")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		var order models.Order
		if err := db.Collection("orders").FindOne(ctx, bson.M{"_id": orderID}).Decode(&order); err != nil {
			respondWithError(c, http.StatusNotFound, route, "order not found")
			return
		}

		if !order.Owner.IsRegistered() || *order.Owner.UserID != subject.UserID {
			respondWithError(c, http.StatusForbidden, route, "not your order")
			return
		}
		if !order.CanBeCanceledBy(subject.UserID) {
			respondWithError(c, http.StatusBadRequest, route, "only pending orders can be canceled")
			return
		}

		if err := markOrderStatus(ctx, db, order, models.StatusCanceled); err != nil {
			if err == mongo.ErrNoDocuments {
				respondWithError(c, http.StatusBadRequest, route, "only pending orders can be canceled")
				return
			}
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "order canceled", "status": models.StatusCanceled})
	}
}

func ConfirmReceived(db *mongo.Database, mailer mail.Mailer) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /orders/:id/confirm_received"
		defer handlePanic(c, route)

		subject, ok := middleware.SubjectFromContext(c)
		if !ok {
			respondWithError(c, http.StatusUnauthorized, route, "unauthorized")
			return
		}

		orderID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid id")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		var order models.Order
		if err := db.Collection("orders").FindOne(ctx, bson.M{"_id": orderID}).Decode(&order); err != nil {
			respondWithError(c, http.StatusNotFound, route, "order not found")
			return
		}

		if !order.Owner.IsRegistered() || *order.Owner.UserID != subject.UserID {
			respondWithError(c, http.StatusForbidden, route, "not your order")
			return
		}
		if !order.CanConfirmReceived() {
			respondWithError(c, http.StatusBadRequest, route, "order must be shipping and paid")
			return
		}

		// Stock was already decremented on the PAID transition; receiving
		// confirmation is a pure status change.
		res, err := db.Collection("orders").UpdateOne(ctx,
			bson.M{
				"_id":            order.ID,
				"status":         models.StatusPaid,
				"deliveryStatus": models.DeliveryShipping,
			},
			bson.M{"$set": bson.M{"deliveryStatus": models.DeliveryDelivered}},
		)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if res.MatchedCount == 0 {
			respondWithError(c, http.StatusBadRequest, route, "order must be shipping and paid")
			return
		}

		recipient := resolveRecipient(ctx, db, order)
		go sendOrderEmail(mailer, recipient,
			"Order "+order.OrderCode+" delivered",
			"Your order "+order.OrderCode+" has been marked as delivered. Thank you for shopping with us.")

		c.JSON(http.StatusOK, gin.H{"message": "order delivered", "deliveryStatus": models.DeliveryDelivered})
	}
}

/* =========================
   HISTORY
========================= */

func GetMyOrders(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /orders"
		defer handlePanic(c, route)

		subject, ok := middleware.SubjectFromContext(c)
		if !ok {
			respondWithError(c, http.StatusUnauthorized, route, "unauthorized")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
		cursor, err := db.Collection("orders").Find(ctx, bson.M{"owner.userId": subject.UserID}, opts)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		defer cursor.Close(ctx)

		orders := make([]models.Order, 0)
		if err := cursor.All(ctx, &orders); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "decode error")
			return
		}

		c.JSON(http.StatusOK, orders)
	}
}

// GuestOrders returns the order history scoped to a phone number, gated by
// an OTP issued for the lookup purpose.
func GuestOrders(db *mongo.Database, codes *otp.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /orders/guest"
		defer handlePanic(c, route)

		var req guestOrdersRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, "phone and code are required")
			return
		}

		phone := strings.TrimSpace(req.Phone)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		if err := codes.Verify(ctx, otp.PurposeLookup, phone, strings.TrimSpace(req.Code)); err != nil {
			respondWithError(c, http.StatusUnauthorized, route, err.Error())
			return
		}

		opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
		cursor, err := db.Collection("orders").Find(ctx, bson.M{"owner.guest.phone": phone}, opts)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		defer cursor.Close(ctx)

		orders := make([]models.Order, 0)
		if err := cursor.All(ctx, &orders); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "decode error")
			return
		}

		c.JSON(http.StatusOK, orders)
	}
}
