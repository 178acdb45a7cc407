package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrCorrectionUnderflow rejects a ledger correction that would leave the
// stock position negative.
var ErrCorrectionUnderflow = errors.New("correction would drive stock negative")

// StockIn is one ledger entry of received goods. Entries are append-only;
// corrections go through the delta-accounting update path and leave a
// StockInLog row behind.
type StockIn struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ProductID primitive.ObjectID `bson:"productId" json:"productId"`
	Quantity  int                `bson:"quantity" json:"quantity"`
	UnitPrice float64            `bson:"unitPrice" json:"unitPrice"`
	Date      time.Time          `bson:"date" json:"date"`
	StaffID   primitive.ObjectID `bson:"staffId" json:"staffId"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// StockInLog records a correction: old and new values plus the acting user.
type StockInLog struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	StockInID   primitive.ObjectID `bson:"stockInId" json:"stockInId"`
	OldQuantity int                `bson:"oldQuantity" json:"oldQuantity"`
	NewQuantity int                `bson:"newQuantity" json:"newQuantity"`
	OldPrice    float64            `bson:"oldPrice" json:"oldPrice"`
	NewPrice    float64            `bson:"newPrice" json:"newPrice"`
	ActorID     primitive.ObjectID `bson:"actorId" json:"actorId"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
}

// WeightedAverageCost returns the moving-average unit cost after receiving
// quantity units at unitPrice on top of stock units carried at cost:
//
//	(stock*cost + quantity*unitPrice) / (stock + quantity)
//
// When the resulting stock is not positive the basis is left unchanged to
// avoid a zero denominator. Decimal arithmetic keeps the division exact
// enough for the correction round-trip to restore the original basis.
func WeightedAverageCost(stock int, cost float64, quantity int, unitPrice float64) float64 {
	newStock := stock + quantity
	if newStock <= 0 {
		return cost
	}

	carried := decimal.NewFromInt(int64(stock)).Mul(decimal.NewFromFloat(cost))
	received := decimal.NewFromInt(int64(quantity)).Mul(decimal.NewFromFloat(unitPrice))

	return carried.Add(received).
		DivRound(decimal.NewFromInt(int64(newStock)), 8).
		InexactFloat64()
}

// CorrectEntry reverses a ledger entry's effect on the current stock
// position and applies the corrected values, returning the new stock and
// cost basis. Sales may already have consumed units the original entry
// received; a correction that would leave the position negative returns
// ErrCorrectionUnderflow instead of flooring.
func CorrectEntry(stock int, cost float64, oldQuantity int, oldUnitPrice float64, newQuantity int, newUnitPrice float64) (int, float64, error) {
	revertedCost := ReverseWeightedAverageCost(stock, cost, oldQuantity, oldUnitPrice)
	revertedStock := stock - oldQuantity

	newStock := revertedStock + newQuantity
	if newStock < 0 {
		return 0, 0, ErrCorrectionUnderflow
	}
	return newStock, WeightedAverageCost(revertedStock, revertedCost, newQuantity, newUnitPrice), nil
}

// ReverseWeightedAverageCost undoes a prior receipt of quantity units at
// unitPrice from a position of stock units carried at cost, restoring the
// basis that held before the entry. With no remaining stock the prior basis
// is unrecoverable and the current one is kept, mirroring the zero-stock
// rule in WeightedAverageCost.
func ReverseWeightedAverageCost(stock int, cost float64, quantity int, unitPrice float64) float64 {
	prevStock := stock - quantity
	if prevStock <= 0 {
		return cost
	}

	carried := decimal.NewFromInt(int64(stock)).Mul(decimal.NewFromFloat(cost))
	received := decimal.NewFromInt(int64(quantity)).Mul(decimal.NewFromFloat(unitPrice))

	return carried.Sub(received).
		DivRound(decimal.NewFromInt(int64(prevStock)), 8).
		InexactFloat64()
}
