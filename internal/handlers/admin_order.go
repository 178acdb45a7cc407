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
	"backend/internal/models"
)

type updateDeliveryStatusRequest struct {
	DeliveryStatus string `json:"delivery_status" binding:"required"`
}

type updatePaymentStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

/* =========================
   LIST
========================= */

func AdminListOrders(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/orders"
		defer handlePanic(c, route)

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid pagination params")
			return
		}

		filter := bson.M{}
		if status := strings.TrimSpace(c.Query("status")); status != "" {
			parsed, ok := models.ParseOrderStatus(status)
			if !ok {
				respondWithError(c, http.StatusBadRequest, route, "invalid status filter")
				return
			}
			filter["status"] = parsed
		}
		if ds := strings.TrimSpace(c.Query("delivery_status")); ds != "" {
			parsed, ok := models.ParseDeliveryStatus(ds)
			if !ok {
				respondWithError(c, http.StatusBadRequest, route, "invalid delivery_status filter")
				return
			}
			filter["deliveryStatus"] = parsed
		}
		if code := strings.TrimSpace(c.Query("order_code")); code != "" {
			filter["orderCode"] = code
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		total, err := db.Collection("orders").CountDocuments(ctx, filter)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		opts := options.Find().
			SetSort(bson.D{{Key: "createdAt", Value: -1}}).
			SetSkip((page - 1) * limit).
			SetLimit(limit)

		cursor, err := db.Collection("orders").Find(ctx, filter, opts)
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

		c.JSON(http.StatusOK, gin.H{
			"orders": orders,
			"total":  total,
			"page":   page,
			"limit":  limit,
		})
	}
}

/* =========================
   DELIVERY STATUS
========================= */

// AdminUpdateDeliveryStatus advances delivery forward only. DELIVERED is
// reserved for the customer's confirm-received action and is rejected here.
func AdminUpdateDeliveryStatus(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /admin/orders/:id/delivery_status"
		defer handlePanic(c, route)

		orderID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid id")
			return
		}

		var req updateDeliveryStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, "delivery_status is required")
			return
		}

		target, ok := models.ParseDeliveryStatus(req.DeliveryStatus)
		if !ok {
			respondWithError(c, http.StatusBadRequest, route, "unknown delivery_status")
			return
		}
		if target == models.DeliveryDelivered {
			respondWithError(c, http.StatusBadRequest, route, "delivered is set by customer confirmation only")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		var order models.Order
		if err := db.Collection("orders").FindOne(ctx, bson.M{"_id": orderID}).Decode(&order); err != nil {
			respondWithError(c, http.StatusNotFound, route, "order not found")
			return
		}

		if !order.DeliveryStatus.CanAdvance(target) {
			respondWithError(c, http.StatusBadRequest, route, "delivery status can only move forward")
			return
		}

		// The filter pins the current value so a concurrent advance loses
		// cleanly instead of going backwards.
		res, err := db.Collection("orders").UpdateOne(ctx,
			bson.M{"_id": orderID, "deliveryStatus": order.DeliveryStatus},
			bson.M{"$set": bson.M{"deliveryStatus": target}},
		)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if res.MatchedCount == 0 {
			respondWithError(c, http.StatusConflict, route, "order was updated concurrently, retry")
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "delivery status updated", "deliveryStatus": target})
	}
}

/* =========================
   DELETE (maintenance)
========================= */

// AdminDeleteOrder is a maintenance hatch for junk orders (abandoned test
// checkouts). Settled orders are history and must stay.
func AdminDeleteOrder(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /admin/orders/:id"
		defer handlePanic(c, route)

		orderID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid id")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		res, err := db.Collection("orders").DeleteOne(ctx, bson.M{
			"_id":    orderID,
			"status": bson.M{"$ne": models.StatusPaid},
		})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if res.DeletedCount == 0 {
			respondWithError(c, http.StatusBadRequest, route, "order not found or already paid")
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "order deleted"})
	}
}

/* =========================
   PAYMENT STATUS
========================= */

// AdminUpdatePaymentStatus drives the payment machine by hand, which is how
// COD orders get settled. Moving to PAID runs the same stock decrement and
// confirmation mail as a gateway callback.
func AdminUpdatePaymentStatus(db *mongo.Database, mailer mail.Mailer) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /admin/orders/:id/payment_status"
		defer handlePanic(c, route)

		orderID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid id")
			return
		}

		var req updatePaymentStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, "status is required")
			return
		}

		target, ok := models.ParseOrderStatus(req.Status)
		if !ok {
			respondWithError(c, http.StatusBadRequest, route, "unknown status")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		var order models.Order
		if err := db.Collection("orders").FindOne(ctx, bson.M{"_id": orderID}).Decode(&order); err != nil {
			respondWithError(c, http.StatusNotFound, route, "order not found")
			return
		}

		if err := markOrderStatus(ctx, db, order, target); err != nil {
			var transitionErr invalidTransitionError
			if errors.As(err, &transitionErr) {
				respondWithError(c, http.StatusBadRequest, route, transitionErr.Error())
				return
			}
			if err == mongo.ErrNoDocuments {
				respondWithError(c, http.StatusConflict, route, "order was updated concurrently, retry")
				return
			}
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		logrus.WithFields(logrus.Fields{
			"route":     route,
			"orderCode": order.OrderCode,
			"status":    target,
		}).Info("payment status updated")

		if target == models.StatusPaid {
			recipient := resolveRecipient(ctx, db, order)
			go sendOrderEmail(mailer, recipient,
				"Order "+order.OrderCode+" paid",
				"We have received your payment for order "+order.OrderCode+". It is now being prepared.")
		}

		c.JSON(http.StatusOK, gin.H{"message": "payment status updated", "status": target})
	}
}
