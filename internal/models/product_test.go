package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestProductJSONHidesCostBasis(t *testing.T) {
	p := Product{
		Name:      "laptop",
		Price:     2000,
		CostPrice: 120,
		Stock:     3,
	}

	raw, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	out := string(raw)

	if strings.Contains(out, "costPrice") || strings.Contains(out, "120") {
		t.Fatalf("cost basis leaked into JSON: %s", out)
	}
	if !strings.Contains(out, `"price":2000`) {
		t.Fatalf("selling price missing from JSON: %s", out)
	}
}
