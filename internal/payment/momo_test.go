package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"testing"
)

func testClient() *Client {
	return NewClient(Config{
		PartnerCode: "PARTNER",
		AccessKey:   "access",
		SecretKey:   "secret",
		RedirectURL: "https://shop.example/return",
		IPNURL:      "https://shop.example/ipn",
	})
}

func TestSignCreateFieldOrder(t *testing.T) {
	c := testClient()
	req := createRequest{
		PartnerCode: "PARTNER",
		AccessKey:   "access",
		RequestID:   "req-1",
		Amount:      150000,
		OrderID:     "OD1234567890-abc",
		OrderInfo:   "order info",
		RedirectURL: c.cfg.RedirectURL,
		IPNURL:      c.cfg.IPNURL,
		RequestType: requestType,
	}

	raw := fmt.Sprintf(
		"accessKey=access&amount=150000&extraData=&ipnUrl=%s&orderId=%s&orderInfo=order info&partnerCode=PARTNER&redirectUrl=%s&requestId=req-1&requestType=captureWallet",
		c.cfg.IPNURL, req.OrderID, c.cfg.RedirectURL,
	)
	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write([]byte(raw))
	expected := hex.EncodeToString(mac.Sum(nil))

	if got := c.signCreate(req); got != expected {
		t.Fatalf("signature mismatch:\n got %s\nwant %s", got, expected)
	}
}

func TestVerifyCallback(t *testing.T) {
	c := testClient()
	cb := Callback{
		PartnerCode:  "PARTNER",
		OrderID:      "OD1234567890-abc",
		RequestID:    "req-1",
		Amount:       150000,
		OrderInfo:    "order info",
		OrderType:    "momo_wallet",
		TransID:      99887766,
		ResultCode:   0,
		Message:      "Successful.",
		PayType:      "qr",
		ResponseTime: 1700000000000,
	}

	raw := fmt.Sprintf(
		"accessKey=access&amount=%d&extraData=&message=%s&orderId=%s&orderInfo=%s&orderType=%s&partnerCode=PARTNER&payType=%s&requestId=%s&responseTime=%d&resultCode=%d&transId=%d",
		cb.Amount, cb.Message, cb.OrderID, cb.OrderInfo, cb.OrderType,
		cb.PayType, cb.RequestID, cb.ResponseTime, cb.ResultCode, cb.TransID,
	)
	cb.Signature = c.hmacHex(raw)

	if err := c.VerifyCallback(cb); err != nil {
		t.Fatalf("valid callback rejected: %v", err)
	}

	tampered := cb
	tampered.Amount = 1
	if err := c.VerifyCallback(tampered); err != ErrSignatureMismatch {
		t.Fatalf("tampered callback should fail verification, got %v", err)
	}
}

func TestCallbackSucceeded(t *testing.T) {
	if !(Callback{ResultCode: 0}).Succeeded() {
		t.Fatal("resultCode 0 should be success")
	}
	if (Callback{ResultCode: 1006}).Succeeded() {
		t.Fatal("non-zero resultCode should be failure")
	}
}

func TestNewGatewayOrderID(t *testing.T) {
	first := NewGatewayOrderID("OD1234567890")
	second := NewGatewayOrderID("OD1234567890")

	if !strings.HasPrefix(first, "OD1234567890-") {
		t.Fatalf("gateway id should keep the order code prefix, got %s", first)
	}
	if first == second {
		t.Fatal("each payment attempt needs a distinct gateway id")
	}
}
