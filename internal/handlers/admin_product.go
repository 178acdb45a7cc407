package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"backend/internal/models"
)

/* =========================
   LIST (admin view)
========================= */

// adminProductView re-adds the cost basis that Product keeps out of its
// public JSON form.
type adminProductView struct {
	models.Product
	CostPrice float64 `json:"costPrice"`
}

// AdminListProducts includes inactive products; soft-deleted ones stay
// hidden unless include_deleted is set.
func AdminListProducts(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/products"
		defer handlePanic(c, route)

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid pagination params")
			return
		}

		filter := bson.M{}
		if c.Query("include_deleted") != "true" {
			filter["isDeleted"] = bson.M{"$ne": true}
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		total, err := db.Collection("products").CountDocuments(ctx, filter)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		opts := options.Find().
			SetSort(bson.D{{Key: "createdAt", Value: -1}}).
			SetSkip((page - 1) * limit).
			SetLimit(limit)

		cursor, err := db.Collection("products").Find(ctx, filter, opts)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		defer cursor.Close(ctx)

		products, err := decodeProducts(ctx, cursor)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "decode error")
			return
		}

		views := make([]adminProductView, 0, len(products))
		for _, p := range products {
			views = append(views, adminProductView{Product: p, CostPrice: p.CostPrice})
		}

		c.JSON(http.StatusOK, gin.H{
			"products": views,
			"total":    total,
			"page":     page,
			"limit":    limit,
		})
	}
}

/* =========================
   CREATE
========================= */

func AdminCreateProduct(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /admin/products"
		defer handlePanic(c, route)

		input, err := parseMultipartProductRequest(c)
		if err != nil {
			respondMultipartError(c, err)
			return
		}

		if !input.NameSet || input.Name == "" {
			respondWithError(c, http.StatusBadRequest, route, "name is required")
			return
		}
		if !input.PriceSet || input.Price < 0 {
			respondWithError(c, http.StatusBadRequest, route, "a non-negative price is required")
			return
		}
		if !input.CategoryIDSet {
			respondWithError(c, http.StatusBadRequest, route, "category_id is required")
			return
		}

		categoryID, err := primitive.ObjectIDFromHex(input.CategoryID)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid category_id")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		count, err := db.Collection("categories").CountDocuments(ctx, bson.M{"_id": categoryID})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if count == 0 {
			respondWithError(c, http.StatusBadRequest, route, "category not found")
			return
		}

		product := models.Product{
			Name:       input.Name,
			Price:      input.Price,
			Stock:      input.Stock,
			CategoryID: categoryID,
			Images:     input.ImagePaths,
			Specs:      input.Specs,
			IsActive:   true,
			CreatedAt:  time.Now(),
		}
		if input.IsActiveSet {
			product.IsActive = input.IsActive
		}
		if product.Images == nil {
			product.Images = []string{}
		}

		if input.BrandIDSet && input.BrandID != "" {
			brandID, err := primitive.ObjectIDFromHex(input.BrandID)
			if err != nil {
				respondWithError(c, http.StatusBadRequest, route, "invalid brand_id")
				return
			}
			product.BrandID = brandID
		}

		res, err := db.Collection("products").InsertOne(ctx, product)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		product.ID = res.InsertedID.(primitive.ObjectID)
		product.InStock = product.Stock > 0

		logrus.WithFields(logrus.Fields{"route": route, "productId": product.ID.Hex()}).Info("product created")
		c.JSON(http.StatusCreated, product)
	}
}

/* =========================
   UPDATE (partial)
========================= */

func AdminUpdateProduct(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /admin/products/:id"
		defer handlePanic(c, route)

		productID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid id")
			return
		}

		input, err := parseMultipartProductRequest(c)
		if err != nil {
			respondMultipartError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		var existing models.Product
		err = db.Collection("products").FindOne(ctx, bson.M{
			"_id":       productID,
			"isDeleted": bson.M{"$ne": true},
		}).Decode(&existing)
		if err == mongo.ErrNoDocuments {
			respondWithError(c, http.StatusNotFound, route, "product not found")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		update := bson.M{}
		if input.NameSet {
			if input.Name == "" {
				respondWithError(c, http.StatusBadRequest, route, "name must not be empty")
				return
			}
			update["name"] = input.Name
		}
		if input.PriceSet {
			if input.Price < 0 {
				respondWithError(c, http.StatusBadRequest, route, "price must be non-negative")
				return
			}
			update["price"] = input.Price
		}
		if input.StockSet {
			if input.Stock < 0 {
				respondWithError(c, http.StatusBadRequest, route, "stock must be non-negative")
				return
			}
			update["stock"] = input.Stock
		}
		if input.IsActiveSet {
			update["isActive"] = input.IsActive
		}
		if input.SpecsSet {
			update["specs"] = input.Specs
		}
		if input.CategoryIDSet {
			categoryID, err := primitive.ObjectIDFromHex(input.CategoryID)
			if err != nil {
				respondWithError(c, http.StatusBadRequest, route, "invalid category_id")
				return
			}
			update["categoryId"] = categoryID
		}
		if input.BrandIDSet {
			if input.BrandID == "" {
				update["brandId"] = nil
			} else {
				brandID, err := primitive.ObjectIDFromHex(input.BrandID)
				if err != nil {
					respondWithError(c, http.StatusBadRequest, route, "invalid brand_id")
					return
				}
				update["brandId"] = brandID
			}
		}
		if input.ImagesSet {
			update["images"] = input.ImagePaths
		}

		if len(update) == 0 {
			respondWithError(c, http.StatusBadRequest, route, "no fields to update")
			return
		}

		_, err = db.Collection("products").UpdateOne(ctx,
			bson.M{"_id": productID},
			bson.M{"$set": update},
		)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		// Replaced images are deleted only after the document update landed.
		if input.ImagesSet {
			for _, old := range existing.Images {
				if err := safeDeleteUpload(old); err != nil {
					logrus.WithFields(logrus.Fields{"route": route, "path": old, "error": err.Error()}).Warn("stale upload not removed")
				}
			}
		}

		c.JSON(http.StatusOK, gin.H{"message": "product updated"})
	}
}

/* =========================
   DELETE (soft)
========================= */

// AdminDeleteProduct soft-deletes: historical order items keep referencing
// the document, so it is hidden rather than removed.
func AdminDeleteProduct(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /admin/products/:id"
		defer handlePanic(c, route)

		productID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid id")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		now := time.Now()
		res, err := db.Collection("products").UpdateOne(ctx,
			bson.M{"_id": productID, "isDeleted": bson.M{"$ne": true}},
			bson.M{"$set": bson.M{
				"isDeleted": true,
				"isActive":  false,
				"deletedAt": now,
			}},
		)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if res.MatchedCount == 0 {
			respondWithError(c, http.StatusNotFound, route, "product not found")
			return
		}

		// Carts must not keep selling a hidden product.
		if _, err := db.Collection("cart_items").DeleteMany(ctx, bson.M{"productId": productID}); err != nil {
			logrus.WithFields(logrus.Fields{"route": route, "error": err.Error()}).Warn("cart cleanup failed")
		}

		c.JSON(http.StatusOK, gin.H{"message": "product deleted"})
	}
}
