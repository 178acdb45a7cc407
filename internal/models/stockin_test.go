package models

import (
	"math"
	"testing"
)

func TestWeightedAverageCost(t *testing.T) {
	// stock=10 @ 100, receive 5 @ 160 -> (1000+800)/15 = 120
	got := WeightedAverageCost(10, 100, 5, 160)
	if got != 120 {
		t.Fatalf("expected cost 120, got %v", got)
	}
}

func TestWeightedAverageCostFromEmptyStock(t *testing.T) {
	got := WeightedAverageCost(0, 0, 20, 75.5)
	if got != 75.5 {
		t.Fatalf("expected cost to equal first receipt price, got %v", got)
	}
}

func TestWeightedAverageCostZeroDenominatorKeepsBasis(t *testing.T) {
	got := WeightedAverageCost(0, 42, 0, 999)
	if got != 42 {
		t.Fatalf("expected unchanged basis 42, got %v", got)
	}
}

func TestReverseWeightedAverageCostRoundTrip(t *testing.T) {
	cases := []struct {
		stock     int
		cost      float64
		quantity  int
		unitPrice float64
	}{
		{10, 100, 5, 160},
		{3, 19.99, 7, 24.5},
		{100, 1234.56, 1, 999.99},
	}

	for _, tc := range cases {
		after := WeightedAverageCost(tc.stock, tc.cost, tc.quantity, tc.unitPrice)
		restored := ReverseWeightedAverageCost(tc.stock+tc.quantity, after, tc.quantity, tc.unitPrice)
		if math.Abs(restored-tc.cost) > 1e-6 {
			t.Fatalf("round-trip from stock=%d cost=%v: expected %v, got %v",
				tc.stock, tc.cost, tc.cost, restored)
		}
	}
}

func TestReverseWeightedAverageCostNoRemainingStock(t *testing.T) {
	// Undoing the only receipt leaves nothing to derive a basis from.
	got := ReverseWeightedAverageCost(5, 80, 5, 80)
	if got != 80 {
		t.Fatalf("expected basis kept at 80, got %v", got)
	}
}

func TestCorrectEntryUnderflowRejected(t *testing.T) {
	// Entry received 10 units but sales left only 4 on hand; shrinking the
	// entry to 2 would put the position at -4.
	_, _, err := CorrectEntry(4, 120, 10, 160, 2, 160)
	if err != ErrCorrectionUnderflow {
		t.Fatalf("expected ErrCorrectionUnderflow, got %v", err)
	}
}

func TestCorrectEntrySameValuesIsNoOp(t *testing.T) {
	// 10 @ 100 plus a receipt of 5 @ 160 -> stock 15 @ 120.
	stock, cost, err := CorrectEntry(15, 120, 5, 160, 5, 160)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stock != 15 {
		t.Fatalf("expected stock unchanged at 15, got %d", stock)
	}
	if math.Abs(cost-120) > 1e-6 {
		t.Fatalf("expected cost unchanged at 120, got %v", cost)
	}
}

func TestCorrectEntryApplyNewValues(t *testing.T) {
	// Same position, but the receipt is corrected to 10 @ 100: the basis
	// collapses back to 100 on 20 units.
	stock, cost, err := CorrectEntry(15, 120, 5, 160, 10, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stock != 20 {
		t.Fatalf("expected stock 20, got %d", stock)
	}
	if math.Abs(cost-100) > 1e-6 {
		t.Fatalf("expected cost 100, got %v", cost)
	}
}

func TestCorrectEntryAllowsExactlyZeroStock(t *testing.T) {
	stock, _, err := CorrectEntry(6, 50, 10, 50, 4, 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stock != 0 {
		t.Fatalf("expected stock 0, got %d", stock)
	}
}
