package handlers

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"backend/internal/models"
)

func decodeProducts(ctx context.Context, cursor *mongo.Cursor) ([]models.Product, error) {
	products := make([]models.Product, 0)

	for cursor.Next(ctx) {
		var p models.Product
		if err := cursor.Decode(&p); err != nil {
			return nil, err
		}
		p.InStock = p.Stock > 0
		products = append(products, p)
	}

	if err := cursor.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

// soldQuantities sums item quantities per product across PAID orders.
// Pending and failed orders never count toward "sold".
func soldQuantities(ctx context.Context, db *mongo.Database, productIDs []primitive.ObjectID) (map[primitive.ObjectID]int, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"status": models.StatusPaid}}},
		{{Key: "$unwind", Value: "$items"}},
		{{Key: "$match", Value: bson.M{"items.productId": bson.M{"$in": productIDs}}}},
		{{Key: "$group", Value: bson.M{
			"_id":  "$items.productId",
			"sold": bson.M{"$sum": "$items.quantity"},
		}}},
	}

	cursor, err := db.Collection("orders").Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	sold := make(map[primitive.ObjectID]int)
	for cursor.Next(ctx) {
		var row struct {
			ID   primitive.ObjectID `bson:"_id"`
			Sold int                `bson:"sold"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, err
		}
		sold[row.ID] = row.Sold
	}
	return sold, cursor.Err()
}
