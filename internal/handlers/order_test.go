package handlers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"backend/internal/models"
)

func TestGenerateOrderCodeFormat(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		code := generateOrderCode()
		if !strings.HasPrefix(code, "OD") || len(code) != 12 {
			t.Fatalf("expected OD + 10 digits, got %q", code)
		}
		for _, r := range code[2:] {
			if r < '0' || r > '9' {
				t.Fatalf("expected digits after prefix, got %q", code)
			}
		}
		seen[code] = struct{}{}
	}
	// Collisions are handled by the unique index, but 100 draws from 10^10
	// codes colliding would point at a broken generator.
	if len(seen) < 95 {
		t.Fatalf("suspiciously many collisions: %d unique of 100", len(seen))
	}
}

func TestNormalizeDeliveryDefaults(t *testing.T) {
	method, address, err := normalizeDelivery("", "")
	if err != nil {
		t.Fatalf("empty method should default: %v", err)
	}
	if method != models.DeliveryMethodStore || address != "" {
		t.Fatalf("expected store pickup default, got %q %q", method, address)
	}
}

func TestNormalizeDeliveryHomeRequiresAddress(t *testing.T) {
	if _, _, err := normalizeDelivery(models.DeliveryMethodHome, "  "); err == nil {
		t.Fatal("home delivery without address should be rejected")
	}

	method, address, err := normalizeDelivery(models.DeliveryMethodHome, " 12 Nguyen Trai ")
	if err != nil {
		t.Fatalf("home delivery with address rejected: %v", err)
	}
	if method != models.DeliveryMethodHome || address != "12 Nguyen Trai" {
		t.Fatalf("expected trimmed address, got %q %q", method, address)
	}
}

func TestNormalizeDeliveryUnknownMethod(t *testing.T) {
	if _, _, err := normalizeDelivery("drone", ""); err == nil {
		t.Fatal("unknown delivery method should be rejected")
	}
}

func TestInvalidTransitionErrorMessage(t *testing.T) {
	err := invalidTransitionError{From: "PAID", To: "CANCELED"}
	if err.Error() != "cannot transition from PAID to CANCELED" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestPendingOnlyFilterGuardsStatus(t *testing.T) {
	id := primitive.NewObjectID()
	filter := pendingOnlyFilter(id)

	if filter["_id"] != id {
		t.Fatalf("filter must pin the order id, got %v", filter["_id"])
	}
	// The status clause is what makes a redelivered payment callback match
	// nothing once the order has settled.
	if filter["status"] != models.StatusPending {
		t.Fatalf("filter must require PENDING, got %v", filter["status"])
	}
}

func TestGuardedUpdateResult(t *testing.T) {
	if err := guardedUpdateResult(&mongo.UpdateResult{MatchedCount: 0}); err != mongo.ErrNoDocuments {
		t.Fatalf("zero matches should map to ErrNoDocuments, got %v", err)
	}
	if err := guardedUpdateResult(&mongo.UpdateResult{MatchedCount: 1}); err != nil {
		t.Fatalf("one match should pass, got %v", err)
	}
}

func TestFlooredStockDecrementFloorsAtZero(t *testing.T) {
	pipeline := flooredStockDecrement(7)
	if len(pipeline) != 1 {
		t.Fatalf("expected a single $set stage, got %d", len(pipeline))
	}

	stage := pipeline[0]
	if stage[0].Key != "$set" {
		t.Fatalf("expected $set stage, got %q", stage[0].Key)
	}

	stock := stage[0].Value.(bson.M)["stock"].(bson.M)
	bounds, ok := stock["$max"].(bson.A)
	if !ok || len(bounds) != 2 {
		t.Fatalf("expected $max with two operands, got %v", stock)
	}
	if bounds[0] != 0 {
		t.Fatalf("expected floor of 0, got %v", bounds[0])
	}

	sub := bounds[1].(bson.M)["$subtract"].(bson.A)
	if sub[0] != "$stock" || sub[1] != 7 {
		t.Fatalf("expected $stock - 7, got %v", sub)
	}
}

func TestBuyNowRejectsMalformedTokenWith401(t *testing.T) {
	gin.SetMode(gin.TestMode)

	body := fmt.Sprintf(`{"product_id":%q,"quantity":1}`, primitive.NewObjectID().Hex())
	req := httptest.NewRequest(http.MethodPost, "/buy", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer not-a-jwt")

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req

	// The token is rejected before any database access.
	BuyNow(nil, "secret")(c)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a malformed bearer token, got %d", w.Code)
	}
}
