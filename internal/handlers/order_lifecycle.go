package handlers

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"backend/internal/mail"
	"backend/internal/models"
)

/* =========================
   TYPED ERRORS
========================= */

type outOfStockError struct {
	ProductID string
	Available int
	Requested int
}

func (e outOfStockError) Error() string {
	return "product out of stock"
}

type productNotFoundError struct {
	ProductID string
}

func (e productNotFoundError) Error() string {
	return "product not found"
}

type invalidTransitionError struct {
	From string
	To   string
}

func (e invalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition from %s to %s", e.From, e.To)
}

/* =========================
   ORDER CODE
========================= */

// generateOrderCode returns a short public code. Uniqueness is not assumed:
// the insert retries against the orderCode unique index.
func generateOrderCode() string {
	const digits = 10
	code := make([]byte, 0, digits)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			n = big.NewInt(int64(time.Now().UnixNano() % 10))
		}
		code = append(code, byte('0'+n.Int64()))
	}
	return "OD" + string(code)
}

// insertOrderWithCodeRetry inserts the order, regenerating the code on a
// duplicate-key collision.
func insertOrderWithCodeRetry(ctx context.Context, db *mongo.Database, order models.Order) (models.Order, error) {
	const maxAttempts = 5

	for attempt := 0; attempt < maxAttempts; attempt++ {
		order.OrderCode = generateOrderCode()
		res, err := db.Collection("orders").InsertOne(ctx, order)
		if err == nil {
			if id, ok := res.InsertedID.(primitive.ObjectID); ok {
				order.ID = id
			}
			return order, nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return models.Order{}, err
		}
	}
	return models.Order{}, errors.New("could not allocate a unique order code")
}

/* =========================
   PAID TRANSITION
========================= */

// pendingOnlyFilter matches the order only while its status is still
// PENDING. This is the idempotence guard on settlement: once the status has
// moved, a redelivered callback matches nothing and the stock decrement
// never runs a second time.
func pendingOnlyFilter(orderID primitive.ObjectID) bson.M {
	return bson.M{"_id": orderID, "status": models.StatusPending}
}

// flooredStockDecrement subtracts quantity from the product's stock,
// flooring at zero.
func flooredStockDecrement(quantity int) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"stock": bson.M{"$max": bson.A{0, bson.M{"$subtract": bson.A{"$stock", quantity}}}},
		}}},
	}
}

// guardedUpdateResult maps a status-guarded update's match count: zero
// matched documents means the guard filtered the order out.
func guardedUpdateResult(res *mongo.UpdateResult) error {
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// markOrderPaid performs the single PENDING -> PAID transition: within one
// transaction the status flips and every item's stock is decremented, floored
// at zero. The status guard in the filter makes repeated callbacks a no-op.
// Returns mongo.ErrNoDocuments when the order is no longer PENDING.
func markOrderPaid(ctx context.Context, db *mongo.Database, order models.Order) error {
	session, err := db.Client().StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		res, err := db.Collection("orders").UpdateOne(sessCtx,
			pendingOnlyFilter(order.ID),
			bson.M{"$set": bson.M{"status": models.StatusPaid}},
		)
		if err != nil {
			return nil, err
		}
		if err := guardedUpdateResult(res); err != nil {
			return nil, err
		}

		for _, item := range order.Items {
			_, err := db.Collection("products").UpdateOne(sessCtx,
				bson.M{"_id": item.ProductID},
				flooredStockDecrement(item.Quantity),
			)
			if err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}

func markOrderStatus(ctx context.Context, db *mongo.Database, order models.Order, to models.OrderStatus) error {
	if !order.Status.CanTransition(to) {
		return invalidTransitionError{From: string(order.Status), To: string(to)}
	}
	if to == models.StatusPaid {
		return markOrderPaid(ctx, db, order)
	}

	res, err := db.Collection("orders").UpdateOne(ctx,
		pendingOnlyFilter(order.ID),
		bson.M{"$set": bson.M{"status": to}},
	)
	if err != nil {
		return err
	}
	return guardedUpdateResult(res)
}

/* =========================
   EMAIL
========================= */

// resolveRecipient picks the confirmation address: registered user's email,
// else the guest email when present.
func resolveRecipient(ctx context.Context, db *mongo.Database, order models.Order) string {
	if order.Owner.IsRegistered() {
		var user models.User
		if err := db.Collection("users").FindOne(ctx, bson.M{"_id": order.Owner.UserID}).Decode(&user); err == nil {
			return user.Email
		}
		return ""
	}
	if order.Owner.Guest != nil {
		return order.Owner.Guest.Email
	}
	return ""
}

// sendOrderEmail delivers best-effort: the surrounding state change has
// already committed, so failures are logged and dropped.
func sendOrderEmail(mailer mail.Mailer, to, subject, body string) {
	if to == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := mailer.Send(ctx, to, subject, body); err != nil {
		logrus.WithField("module", "orders").Warn("email send failed: ", err)
	}
}
