package handlers

import (
	"testing"

	"github.com/gin-gonic/gin/binding"
)

func TestValidateStockLine(t *testing.T) {
	cases := []struct {
		quantity  int
		unitPrice float64
		ok        bool
	}{
		{5, 100, true},
		{5, 0, true}, // free or sample receipt
		{0, 100, false},
		{-1, 100, false},
		{5, -0.01, false},
	}

	for _, tc := range cases {
		err := validateStockLine(tc.quantity, tc.unitPrice)
		if tc.ok && err != nil {
			t.Fatalf("qty=%d price=%v rejected: %v", tc.quantity, tc.unitPrice, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("qty=%d price=%v should be rejected", tc.quantity, tc.unitPrice)
		}
	}
}

func TestStockInBindingAcceptsZeroUnitPrice(t *testing.T) {
	body := []byte(`{"items":[{"product_id":"0123456789abcdef01234567","quantity":5,"unit_price":0}]}`)

	var req stockInBatchRequest
	if err := binding.JSON.BindBody(body, &req); err != nil {
		t.Fatalf("zero unit_price failed to bind: %v", err)
	}
	if len(req.Items) != 1 || req.Items[0].Quantity != 5 || req.Items[0].UnitPrice != 0 {
		t.Fatalf("unexpected bind result: %+v", req)
	}
	if err := validateStockLine(req.Items[0].Quantity, req.Items[0].UnitPrice); err != nil {
		t.Fatalf("zero unit_price rejected by validation: %v", err)
	}
}

func TestStockInCorrectionBindingAcceptsZeroUnitPrice(t *testing.T) {
	body := []byte(`{"quantity":3,"unit_price":0}`)

	var req stockInCorrectionRequest
	if err := binding.JSON.BindBody(body, &req); err != nil {
		t.Fatalf("zero unit_price failed to bind: %v", err)
	}
	if req.Quantity != 3 || req.UnitPrice != 0 {
		t.Fatalf("unexpected bind result: %+v", req)
	}
}
