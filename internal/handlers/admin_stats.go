package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"backend/internal/models"
)

// AdminStats aggregates the dashboard numbers. Revenue and sold counts come
// from PAID orders only; pending and failed attempts never inflate them.
func AdminStats(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/stats"
		defer handlePanic(c, route)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		if err := ensureDBConnection(ctx, db); err != nil {
			respondWithError(c, http.StatusServiceUnavailable, route, "database unavailable")
			return
		}

		orders := db.Collection("orders")

		totalOrders, err := orders.CountDocuments(ctx, bson.M{})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		pendingOrders, err := orders.CountDocuments(ctx, bson.M{"status": models.StatusPending})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		revenue, itemsSold, err := paidTotals(ctx, db)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		productCount, err := db.Collection("products").CountDocuments(ctx, bson.M{"isDeleted": bson.M{"$ne": true}})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		userCount, err := db.Collection("users").CountDocuments(ctx, bson.M{})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		lowStock, err := db.Collection("products").CountDocuments(ctx, bson.M{
			"isDeleted": bson.M{"$ne": true},
			"stock":     bson.M{"$lte": 5},
		})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"totalOrders":   totalOrders,
			"pendingOrders": pendingOrders,
			"revenue":       revenue,
			"itemsSold":     itemsSold,
			"products":      productCount,
			"users":         userCount,
			"lowStock":      lowStock,
		})
	}
}

func paidTotals(ctx context.Context, db *mongo.Database) (float64, int, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"status": models.StatusPaid}}},
		{{Key: "$unwind", Value: "$items"}},
		{{Key: "$group", Value: bson.M{
			"_id":     nil,
			"revenue": bson.M{"$sum": bson.M{"$multiply": []interface{}{"$items.quantity", "$items.unitPrice"}}},
			"sold":    bson.M{"$sum": "$items.quantity"},
		}}},
	}

	cursor, err := db.Collection("orders").Aggregate(ctx, pipeline)
	if err != nil {
		return 0, 0, err
	}
	defer cursor.Close(ctx)

	if cursor.Next(ctx) {
		var row struct {
			Revenue float64 `bson:"revenue"`
			Sold    int     `bson:"sold"`
		}
		if err := cursor.Decode(&row); err != nil {
			return 0, 0, err
		}
		return row.Revenue, row.Sold, nil
	}
	return 0, 0, cursor.Err()
}

// TopSellingProducts lists the best sellers across PAID orders.
func TopSellingProducts(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/stats/top_products"
		defer handlePanic(c, route)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		pipeline := mongo.Pipeline{
			{{Key: "$match", Value: bson.M{"status": models.StatusPaid}}},
			{{Key: "$unwind", Value: "$items"}},
			{{Key: "$group", Value: bson.M{
				"_id":  "$items.productId",
				"name": bson.M{"$last": "$items.name"},
				"sold": bson.M{"$sum": "$items.quantity"},
			}}},
			{{Key: "$sort", Value: bson.D{{Key: "sold", Value: -1}}}},
			{{Key: "$limit", Value: 10}},
		}

		cursor, err := db.Collection("orders").Aggregate(ctx, pipeline)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		defer cursor.Close(ctx)

		rows := make([]bson.M, 0)
		if err := cursor.All(ctx, &rows); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "decode error")
			return
		}

		c.JSON(http.StatusOK, rows)
	}
}
