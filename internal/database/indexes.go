package database

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func createIndexes(db *mongo.Database, collection string, indexModels []mongo.IndexModel) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := db.Collection(collection).Indexes().CreateMany(ctx, indexModels)
	if err != nil {
		logrus.WithField("collection", collection).Error("index creation failed: ", err)
		return err
	}
	logrus.WithField("collection", collection).Info("indexes ensured")
	return nil
}

func EnsureUserIndexes(db *mongo.Database) error {
	return createIndexes(db, "users", []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetName("username_unique").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("email_unique").SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "phone", Value: 1}},
			Options: options.Index().
				SetName("phone_unique").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"phone": bson.M{"$exists": true, "$type": "string"}}),
		},
	})
}

func EnsureOrderIndexes(db *mongo.Database) error {
	return createIndexes(db, "orders", []mongo.IndexModel{
		{
			// Collision-retry on insert depends on this constraint.
			Keys:    bson.D{{Key: "orderCode", Value: 1}},
			Options: options.Index().SetName("orderCode_unique").SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "momoOrderId", Value: 1}},
			Options: options.Index().
				SetName("momoOrderId_unique").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"momoOrderId": bson.M{"$exists": true}}),
		},
		{
			Keys:    bson.D{{Key: "owner.userId", Value: 1}},
			Options: options.Index().SetName("owner_userId_index"),
		},
		{
			Keys:    bson.D{{Key: "owner.guest.phone", Value: 1}},
			Options: options.Index().SetName("owner_guestPhone_index"),
		},
	})
}

func EnsureCartIndexes(db *mongo.Database) error {
	return createIndexes(db, "cart_items", []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "productId", Value: 1}},
			Options: options.Index().SetName("user_product_unique").SetUnique(true),
		},
	})
}

func EnsureCommentIndexes(db *mongo.Database) error {
	if err := createIndexes(db, "comments", []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "productId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("product_createdAt_index"),
		},
	}); err != nil {
		return err
	}

	return createIndexes(db, "comment_votes", []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "commentId", Value: 1}, {Key: "voterKey", Value: 1}},
			Options: options.Index().SetName("comment_voter_unique").SetUnique(true),
		},
	})
}

func EnsureStockInIndexes(db *mongo.Database) error {
	if err := createIndexes(db, "stockins", []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "productId", Value: 1}, {Key: "date", Value: -1}},
			Options: options.Index().SetName("product_date_index"),
		},
	}); err != nil {
		return err
	}

	return createIndexes(db, "stockin_logs", []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "stockInId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("stockin_createdAt_index"),
		},
	})
}
