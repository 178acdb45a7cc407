package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"backend/internal/middleware"
	"backend/internal/models"
)

type addCartItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required"`
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity" binding:"required"`
}

type cartLine struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Image     string  `json:"image,omitempty"`
	Quantity  int     `json:"quantity"`
	InStock   bool    `json:"inStock"`
	LineTotal float64 `json:"lineTotal"`
}

func GetCart(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /cart"
		defer handlePanic(c, route)

		subject, ok := middleware.SubjectFromContext(c)
		if !ok {
			respondWithError(c, http.StatusUnauthorized, route, "unauthorized")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		cursor, err := db.Collection("cart_items").Find(ctx, bson.M{"userId": subject.UserID})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		defer cursor.Close(ctx)

		items := make([]models.CartItem, 0)
		if err := cursor.All(ctx, &items); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "decode error")
			return
		}

		// Prices are live: the cart is re-priced on every read, never frozen.
		lines := make([]cartLine, 0, len(items))
		var total float64
		for _, item := range items {
			var product models.Product
			err := db.Collection("products").FindOne(ctx, bson.M{
				"_id":       item.ProductID,
				"isDeleted": bson.M{"$ne": true},
			}).Decode(&product)
			if err == mongo.ErrNoDocuments {
				continue
			}
			if err != nil {
				respondWithError(c, http.StatusInternalServerError, route, "db error")
				return
			}

			image := ""
			if len(product.Images) > 0 {
				image = product.Images[0]
			}
			line := cartLine{
				ProductID: product.ID.Hex(),
				Name:      product.Name,
				Price:     product.Price,
				Image:     image,
				Quantity:  item.Quantity,
				InStock:   product.Stock > 0,
				LineTotal: product.Price * float64(item.Quantity),
			}
			total += line.LineTotal
			lines = append(lines, line)
		}

		c.JSON(http.StatusOK, gin.H{"items": lines, "total": total})
	}
}

func AddToCart(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /cart"
		defer handlePanic(c, route)

		subject, ok := middleware.SubjectFromContext(c)
		if !ok {
			respondWithError(c, http.StatusUnauthorized, route, "unauthorized")
			return
		}

		var req addCartItemRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Quantity <= 0 {
			respondWithError(c, http.StatusBadRequest, route, "product_id and a positive quantity are required")
			return
		}

		productID, err := primitive.ObjectIDFromHex(req.ProductID)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid product_id")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		count, err := db.Collection("products").CountDocuments(ctx, bson.M{
			"_id":       productID,
			"isDeleted": bson.M{"$ne": true},
		})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if count == 0 {
			respondWithError(c, http.StatusBadRequest, route, "product not found")
			return
		}

		// The (userId, productId) unique index makes this merge race-safe:
		// concurrent adds fold into one row.
		_, err = db.Collection("cart_items").UpdateOne(ctx,
			bson.M{"userId": subject.UserID, "productId": productID},
			bson.M{
				"$inc": bson.M{"quantity": req.Quantity},
				"$set": bson.M{"updatedAt": time.Now()},
			},
			options.Update().SetUpsert(true),
		)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "added to cart"})
	}
}

func UpdateCartItem(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /cart/:product_id"
		defer handlePanic(c, route)

		subject, ok := middleware.SubjectFromContext(c)
		if !ok {
			respondWithError(c, http.StatusUnauthorized, route, "unauthorized")
			return
		}

		productID, err := primitive.ObjectIDFromHex(c.Param("product_id"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid product_id")
			return
		}

		var req updateCartItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, "quantity is required")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		filter := bson.M{"userId": subject.UserID, "productId": productID}

		// Quantity zero or below means remove.
		if req.Quantity <= 0 {
			if _, err := db.Collection("cart_items").DeleteOne(ctx, filter); err != nil {
				respondWithError(c, http.StatusInternalServerError, route, "db error")
				return
			}
			c.JSON(http.StatusOK, gin.H{"message": "removed from cart"})
			return
		}

		res, err := db.Collection("cart_items").UpdateOne(ctx, filter,
			bson.M{"$set": bson.M{"quantity": req.Quantity, "updatedAt": time.Now()}})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if res.MatchedCount == 0 {
			respondWithError(c, http.StatusNotFound, route, "item not in cart")
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "cart updated"})
	}
}

func RemoveCartItem(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /cart/:product_id"
		defer handlePanic(c, route)

		subject, ok := middleware.SubjectFromContext(c)
		if !ok {
			respondWithError(c, http.StatusUnauthorized, route, "unauthorized")
			return
		}

		productID, err := primitive.ObjectIDFromHex(c.Param("product_id"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid product_id")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		if _, err := db.Collection("cart_items").DeleteOne(ctx, bson.M{
			"userId":    subject.UserID,
			"productId": productID,
		}); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "removed from cart"})
	}
}

func ClearCart(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /cart"
		defer handlePanic(c, route)

		subject, ok := middleware.SubjectFromContext(c)
		if !ok {
			respondWithError(c, http.StatusUnauthorized, route, "unauthorized")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		if _, err := db.Collection("cart_items").DeleteMany(ctx, bson.M{"userId": subject.UserID}); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "cart cleared"})
	}
}
