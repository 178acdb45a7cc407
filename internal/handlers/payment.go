package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"backend/internal/mail"
	"backend/internal/models"
	"backend/internal/payment"
)

/* =========================
   MOMO: CREATE PAYMENT
========================= */

func CreateMomoPayment(db *mongo.Database, gateway *payment.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/create_momo_payment/:order_id"
		defer handlePanic(c, route)

		orderID, err := primitive.ObjectIDFromHex(c.Param("order_id"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid order_id")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
		defer cancel()

		var order models.Order
		if err := db.Collection("orders").FindOne(ctx, bson.M{"_id": orderID}).Decode(&order); err != nil {
			respondWithError(c, http.StatusNotFound, route, "order not found")
			return
		}
		if order.Status != models.StatusPending {
			respondWithError(c, http.StatusBadRequest, route, "order is not awaiting payment")
			return
		}

		// Each attempt gets a fresh gateway id; recording it before the
		// gateway call means the callback can always be correlated.
		gatewayOrderID := payment.NewGatewayOrderID(order.OrderCode)
		_, err = db.Collection("orders").UpdateOne(ctx,
			bson.M{"_id": order.ID, "status": models.StatusPending},
			bson.M{"$set": bson.M{
				"momoOrderId":   gatewayOrderID,
				"paymentMethod": models.PaymentMethodMomo,
			}},
		)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		payURL, err := gateway.CreatePayment(ctx, gatewayOrderID, int64(order.TotalPrice), "Thanh toan don hang "+order.OrderCode)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"route":     route,
				"orderCode": order.OrderCode,
				"error":     err.Error(),
			}).Error("momo create payment failed")
			respondWithError(c, http.StatusBadGateway, route, "payment gateway unavailable")
			return
		}

		c.JSON(http.StatusOK, gin.H{"payUrl": payURL, "momoOrderId": gatewayOrderID})
	}
}

/* =========================
   MOMO: IPN CALLBACK
========================= */

// MomoCallback handles the gateway's asynchronous result. The signature gate
// comes first; only a verified callback may touch order state, and the
// PENDING guard inside markOrderPaid makes redelivery a no-op.
func MomoCallback(db *mongo.Database, gateway *payment.Client, mailer mail.Mailer) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/payment_callback/:momo_order_id"
		defer handlePanic(c, route)

		var cb payment.Callback
		if err := c.ShouldBind(&cb); err != nil {
			respondWithError(c, http.StatusBadRequest, route, "malformed callback")
			return
		}

		if err := gateway.VerifyCallback(cb); err != nil {
			logrus.WithFields(logrus.Fields{
				"route":       route,
				"momoOrderId": c.Param("momo_order_id"),
			}).Warn("rejected callback with bad signature")
			respondWithError(c, http.StatusForbidden, route, "invalid signature")
			return
		}

		gatewayOrderID := c.Param("momo_order_id")
		if cb.OrderID != gatewayOrderID {
			respondWithError(c, http.StatusBadRequest, route, "order id mismatch")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		var order models.Order
		err := db.Collection("orders").FindOne(ctx, bson.M{"momoOrderId": gatewayOrderID}).Decode(&order)
		if err != nil {
			respondWithError(c, http.StatusNotFound, route, "order not found")
			return
		}

		target := models.StatusFailed
		if cb.Succeeded() {
			target = models.StatusPaid
		}

		if err := markOrderStatus(ctx, db, order, target); err != nil {
			if err == mongo.ErrNoDocuments {
				// Already settled by an earlier delivery of this callback.
				c.JSON(http.StatusOK, gin.H{"message": "already processed"})
				return
			}
			var transitionErr invalidTransitionError
			if errors.As(err, &transitionErr) {
				c.JSON(http.StatusOK, gin.H{"message": "already processed"})
				return
			}
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		logrus.WithFields(logrus.Fields{
			"route":     route,
			"orderCode": order.OrderCode,
			"status":    target,
		}).Info("payment callback processed")

		if target == models.StatusPaid {
			recipient := resolveRecipient(ctx, db, order)
			go sendOrderEmail(mailer, recipient,
				"Order "+order.OrderCode+" paid",
				"We have received your payment for order "+order.OrderCode+". It is now being prepared.")
		}

		c.JSON(http.StatusOK, gin.H{"message": "ok", "status": target})
	}
}

/* =========================
   COD
========================= */

// PayCOD records cash-on-delivery as the chosen method. The order stays
// PENDING; staff flip it to PAID on settlement, which is when stock moves.
func PayCOD(db *mongo.Database, mailer mail.Mailer) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/pay_cod/:order_id"
		defer handlePanic(c, route)

		orderID, err := primitive.ObjectIDFromHex(c.Param("order_id"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid order_id")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		var order models.Order
		if err := db.Collection("orders").FindOne(ctx, bson.M{"_id": orderID}).Decode(&order); err != nil {
			respondWithError(c, http.StatusNotFound, route, "order not found")
			return
		}

		res, err := db.Collection("orders").UpdateOne(ctx,
			bson.M{"_id": orderID, "status": models.StatusPending},
			bson.M{"$set": bson.M{"paymentMethod": models.PaymentMethodCOD}},
		)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if res.MatchedCount == 0 {
			respondWithError(c, http.StatusBadRequest, route, "order is not awaiting payment")
			return
		}

		recipient := resolveRecipient(ctx, db, order)
		go sendOrderEmail(mailer, recipient,
			"Order "+order.OrderCode+" registered",
			"Your order "+order.OrderCode+" has been registered for cash on delivery. Please prepare the payment on receipt.")

		c.JSON(http.StatusOK, gin.H{"message": "cash on delivery selected", "status": models.StatusPending})
	}
}
