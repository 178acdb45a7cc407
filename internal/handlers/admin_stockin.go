package handlers

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/bsm/redislock"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"backend/internal/middleware"
	"backend/internal/models"
)

type stockInLine struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required"`
	// No binding tag: required would reject a zero price, and free or
	// sample receipts legitimately come in at zero.
	UnitPrice float64 `json:"unit_price"`
}

type stockInBatchRequest struct {
	Items []stockInLine `json:"items" binding:"required"`
	Date  string        `json:"date"`
}

type stockInCorrectionRequest struct {
	Quantity  int     `json:"quantity" binding:"required"`
	UnitPrice float64 `json:"unit_price"`
}

// validateStockLine accepts a positive quantity and a non-negative unit
// price. Zero is a valid price for free or sample receipts.
func validateStockLine(quantity int, unitPrice float64) error {
	if quantity <= 0 {
		return errors.New("quantity must be positive")
	}
	if unitPrice < 0 {
		return errors.New("unit_price must be non-negative")
	}
	return nil
}

const stockLockTTL = 10 * time.Second

// acquireProductLocks takes per-product locks in sorted key order so two
// overlapping batches can never deadlock against each other.
func acquireProductLocks(ctx context.Context, locker *redislock.Client, productIDs []primitive.ObjectID) ([]*redislock.Lock, error) {
	keys := make([]string, 0, len(productIDs))
	seen := make(map[string]struct{}, len(productIDs))
	for _, id := range productIDs {
		key := "lock:stock:" + id.Hex()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	backoff := redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 30)

	locks := make([]*redislock.Lock, 0, len(keys))
	for _, key := range keys {
		lock, err := locker.Obtain(ctx, key, stockLockTTL, &redislock.Options{RetryStrategy: backoff})
		if err != nil {
			releaseLocks(ctx, locks)
			return nil, err
		}
		locks = append(locks, lock)
	}
	return locks, nil
}

func releaseLocks(ctx context.Context, locks []*redislock.Lock) {
	for _, lock := range locks {
		if err := lock.Release(ctx); err != nil && err != redislock.ErrLockNotHeld {
			logrus.WithFields(logrus.Fields{"error": err.Error()}).Warn("stock lock release failed")
		}
	}
}

/* =========================
   BATCH RECEIPT
========================= */

// StockInBatch applies a receipt batch all-or-nothing: every line is
// validated and applied inside one transaction, so a bad line rolls back
// the whole batch rather than leaving it half-applied.
func StockInBatch(db *mongo.Database, locker *redislock.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /admin/stockin"
		defer handlePanic(c, route)

		subject, ok := middleware.SubjectFromContext(c)
		if !ok {
			respondWithError(c, http.StatusUnauthorized, route, "unauthorized")
			return
		}

		var req stockInBatchRequest
		if err := c.ShouldBindJSON(&req); err != nil || len(req.Items) == 0 {
			respondWithError(c, http.StatusBadRequest, route, "at least one item is required")
			return
		}

		date := time.Now()
		if req.Date != "" {
			parsed, err := time.Parse("2006-01-02", req.Date)
			if err != nil {
				respondWithError(c, http.StatusBadRequest, route, "date must be YYYY-MM-DD")
				return
			}
			date = parsed
		}

		productIDs := make([]primitive.ObjectID, 0, len(req.Items))
		for _, line := range req.Items {
			if err := validateStockLine(line.Quantity, line.UnitPrice); err != nil {
				respondWithError(c, http.StatusBadRequest, route, err.Error())
				return
			}
			id, err := primitive.ObjectIDFromHex(line.ProductID)
			if err != nil {
				respondWithError(c, http.StatusBadRequest, route, "invalid product_id: "+line.ProductID)
				return
			}
			productIDs = append(productIDs, id)
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
		defer cancel()

		locks, err := acquireProductLocks(ctx, locker, productIDs)
		if err != nil {
			respondWithError(c, http.StatusConflict, route, "inventory busy, retry")
			return
		}
		defer releaseLocks(ctx, locks)

		session, err := db.Client().StartSession()
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		defer session.EndSession(ctx)

		entries := make([]models.StockIn, 0, len(req.Items))
		_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
			entries = entries[:0]
			for i, line := range req.Items {
				var product models.Product
				err := db.Collection("products").FindOne(sessCtx, bson.M{"_id": productIDs[i]}).Decode(&product)
				if err == mongo.ErrNoDocuments {
					return nil, productNotFoundError{ProductID: line.ProductID}
				}
				if err != nil {
					return nil, err
				}

				newCost := models.WeightedAverageCost(product.Stock, product.CostPrice, line.Quantity, line.UnitPrice)

				_, err = db.Collection("products").UpdateOne(sessCtx,
					bson.M{"_id": product.ID},
					bson.M{
						"$inc": bson.M{"stock": line.Quantity},
						"$set": bson.M{"costPrice": newCost},
					},
				)
				if err != nil {
					return nil, err
				}

				entry := models.StockIn{
					ProductID: product.ID,
					Quantity:  line.Quantity,
					UnitPrice: line.UnitPrice,
					Date:      date,
					StaffID:   subject.UserID,
					CreatedAt: time.Now(),
				}
				res, err := db.Collection("stockins").InsertOne(sessCtx, entry)
				if err != nil {
					return nil, err
				}
				entry.ID = res.InsertedID.(primitive.ObjectID)
				entries = append(entries, entry)
			}
			return nil, nil
		})
		if err != nil {
			respondOrderBuildError(c, route, err)
			return
		}

		logrus.WithFields(logrus.Fields{"route": route, "lines": len(entries)}).Info("stock-in batch applied")
		c.JSON(http.StatusCreated, entries)
	}
}

/* =========================
   CORRECTION
========================= */

// StockInCorrection rewrites an existing ledger entry with delta accounting:
// the old entry's effect on stock and cost basis is reversed before the new
// values are applied, and a log row captures before/after plus the actor.
func StockInCorrection(db *mongo.Database, locker *redislock.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /admin/stockin/:id"
		defer handlePanic(c, route)

		subject, ok := middleware.SubjectFromContext(c)
		if !ok {
			respondWithError(c, http.StatusUnauthorized, route, "unauthorized")
			return
		}

		stockInID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid id")
			return
		}

		var req stockInCorrectionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, "quantity is required")
			return
		}
		if err := validateStockLine(req.Quantity, req.UnitPrice); err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
		defer cancel()

		var entry models.StockIn
		if err := db.Collection("stockins").FindOne(ctx, bson.M{"_id": stockInID}).Decode(&entry); err != nil {
			respondWithError(c, http.StatusNotFound, route, "stock-in entry not found")
			return
		}

		locks, err := acquireProductLocks(ctx, locker, []primitive.ObjectID{entry.ProductID})
		if err != nil {
			respondWithError(c, http.StatusConflict, route, "inventory busy, retry")
			return
		}
		defer releaseLocks(ctx, locks)

		session, err := db.Client().StartSession()
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		defer session.EndSession(ctx)

		_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
			var product models.Product
			if err := db.Collection("products").FindOne(sessCtx, bson.M{"_id": entry.ProductID}).Decode(&product); err != nil {
				return nil, err
			}

			// Undo the old entry, then apply the new values on the restored
			// position. Sales since the receipt can make that impossible.
			newStock, newCost, err := models.CorrectEntry(
				product.Stock, product.CostPrice,
				entry.Quantity, entry.UnitPrice,
				req.Quantity, req.UnitPrice,
			)
			if err != nil {
				return nil, err
			}

			_, err = db.Collection("products").UpdateOne(sessCtx,
				bson.M{"_id": product.ID},
				bson.M{"$set": bson.M{"stock": newStock, "costPrice": newCost}},
			)
			if err != nil {
				return nil, err
			}

			_, err = db.Collection("stockins").UpdateOne(sessCtx,
				bson.M{"_id": entry.ID},
				bson.M{"$set": bson.M{"quantity": req.Quantity, "unitPrice": req.UnitPrice}},
			)
			if err != nil {
				return nil, err
			}

			_, err = db.Collection("stockin_logs").InsertOne(sessCtx, models.StockInLog{
				StockInID:   entry.ID,
				OldQuantity: entry.Quantity,
				NewQuantity: req.Quantity,
				OldPrice:    entry.UnitPrice,
				NewPrice:    req.UnitPrice,
				ActorID:     subject.UserID,
				CreatedAt:   time.Now(),
			})
			return nil, err
		})
		if errors.Is(err, models.ErrCorrectionUnderflow) {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		logrus.WithFields(logrus.Fields{"route": route, "stockInId": entry.ID.Hex()}).Info("stock-in corrected")
		c.JSON(http.StatusOK, gin.H{"message": "stock-in corrected"})
	}
}

/* =========================
   LISTING
========================= */

func ListStockIns(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/stockin"
		defer handlePanic(c, route)

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid pagination params")
			return
		}

		filter := bson.M{}
		if pid := c.Query("product_id"); pid != "" {
			productID, err := primitive.ObjectIDFromHex(pid)
			if err != nil {
				respondWithError(c, http.StatusBadRequest, route, "invalid product_id")
				return
			}
			filter["productId"] = productID
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		total, err := db.Collection("stockins").CountDocuments(ctx, filter)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		opts := options.Find().
			SetSort(bson.D{{Key: "date", Value: -1}}).
			SetSkip((page - 1) * limit).
			SetLimit(limit)

		cursor, err := db.Collection("stockins").Find(ctx, filter, opts)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		defer cursor.Close(ctx)

		entries := make([]models.StockIn, 0)
		if err := cursor.All(ctx, &entries); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "decode error")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"entries": entries,
			"total":   total,
			"page":    page,
			"limit":   limit,
		})
	}
}

// ListStockInLogs returns the correction audit trail for one ledger entry.
func ListStockInLogs(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/stockin/:id/logs"
		defer handlePanic(c, route)

		stockInID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid id")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
		cursor, err := db.Collection("stockin_logs").Find(ctx, bson.M{"stockInId": stockInID}, opts)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		defer cursor.Close(ctx)

		logs := make([]models.StockInLog, 0)
		if err := cursor.All(ctx, &logs); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "decode error")
			return
		}

		c.JSON(http.StatusOK, logs)
	}
}
