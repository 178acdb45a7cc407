package handlers

import (
	"encoding/json"
	"strings"
	"testing"

	"backend/internal/models"
)

func TestAdminProductViewExposesCostBasis(t *testing.T) {
	p := models.Product{Name: "laptop", Price: 2000, CostPrice: 120}

	raw, err := json.Marshal(adminProductView{Product: p, CostPrice: p.CostPrice})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"costPrice":120`) {
		t.Fatalf("admin view must carry the cost basis: %s", raw)
	}

	// The plain product form stays clean for storefront responses.
	raw, err = json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(raw), "costPrice") {
		t.Fatalf("public form leaked the cost basis: %s", raw)
	}
}
