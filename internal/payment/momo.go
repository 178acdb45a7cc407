// Package payment wraps the MoMo wallet gateway. The public order code never
// leaves the system as a gateway id; every payment attempt gets its own
// correlation id so retries after a failed attempt don't collide.
package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const requestType = "captureWallet"

var (
	ErrSignatureMismatch = errors.New("callback signature mismatch")
	ErrGatewayRejected   = errors.New("gateway rejected payment request")
)

type Config struct {
	PartnerCode string
	AccessKey   string
	SecretKey   string
	Endpoint    string
	RedirectURL string
	IPNURL      string
}

type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	return &Client{
		cfg: cfg,
		// The gateway gets a hard deadline; a hung call must not pin the
		// checkout request.
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

type createRequest struct {
	PartnerCode string `json:"partnerCode"`
	AccessKey   string `json:"accessKey"`
	RequestID   string `json:"requestId"`
	Amount      int64  `json:"amount"`
	OrderID     string `json:"orderId"`
	OrderInfo   string `json:"orderInfo"`
	RedirectURL string `json:"redirectUrl"`
	IPNURL      string `json:"ipnUrl"`
	ExtraData   string `json:"extraData"`
	RequestType string `json:"requestType"`
	Lang        string `json:"lang"`
	Signature   string `json:"signature"`
}

type createResponse struct {
	ResultCode int    `json:"resultCode"`
	Message    string `json:"message"`
	PayURL     string `json:"payUrl"`
}

// CreatePayment signs and posts a capture request, returning the redirect URL
// the caller should send the shopper to. gatewayOrderID is recorded on the
// order before this is called so the async callback can correlate.
func (c *Client) CreatePayment(ctx context.Context, gatewayOrderID string, amount int64, orderInfo string) (string, error) {
	req := createRequest{
		PartnerCode: c.cfg.PartnerCode,
		AccessKey:   c.cfg.AccessKey,
		RequestID:   uuid.NewString(),
		Amount:      amount,
		OrderID:     gatewayOrderID,
		OrderInfo:   orderInfo,
		RedirectURL: c.cfg.RedirectURL,
		IPNURL:      c.cfg.IPNURL,
		ExtraData:   "",
		RequestType: requestType,
		Lang:        "vi",
	}
	req.Signature = c.signCreate(req)

	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var parsed createResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}

	if parsed.ResultCode != 0 || parsed.PayURL == "" {
		return "", fmt.Errorf("%w: %s", ErrGatewayRejected, parsed.Message)
	}

	return parsed.PayURL, nil
}

// signCreate builds the HMAC-SHA256 signature over the gateway's documented
// field order for create requests.
func (c *Client) signCreate(req createRequest) string {
	raw := fmt.Sprintf(
		"accessKey=%s&amount=%d&extraData=%s&ipnUrl=%s&orderId=%s&orderInfo=%s&partnerCode=%s&redirectUrl=%s&requestId=%s&requestType=%s",
		c.cfg.AccessKey, req.Amount, req.ExtraData, req.IPNURL, req.OrderID,
		req.OrderInfo, c.cfg.PartnerCode, req.RedirectURL, req.RequestID, req.RequestType,
	)
	return c.hmacHex(raw)
}

// Callback carries the fields the gateway posts back after a payment attempt.
type Callback struct {
	PartnerCode  string `form:"partnerCode" json:"partnerCode"`
	OrderID      string `form:"orderId" json:"orderId"`
	RequestID    string `form:"requestId" json:"requestId"`
	Amount       int64  `form:"amount" json:"amount"`
	OrderInfo    string `form:"orderInfo" json:"orderInfo"`
	OrderType    string `form:"orderType" json:"orderType"`
	TransID      int64  `form:"transId" json:"transId"`
	ResultCode   int    `form:"resultCode" json:"resultCode"`
	Message      string `form:"message" json:"message"`
	PayType      string `form:"payType" json:"payType"`
	ResponseTime int64  `form:"responseTime" json:"responseTime"`
	ExtraData    string `form:"extraData" json:"extraData"`
	Signature    string `form:"signature" json:"signature"`
}

func (cb Callback) Succeeded() bool {
	return cb.ResultCode == 0
}

// VerifyCallback recomputes the signature over the callback's documented
// field order. An unverifiable callback must never flip order state.
func (c *Client) VerifyCallback(cb Callback) error {
	raw := fmt.Sprintf(
		"accessKey=%s&amount=%d&extraData=%s&message=%s&orderId=%s&orderInfo=%s&orderType=%s&partnerCode=%s&payType=%s&requestId=%s&responseTime=%d&resultCode=%d&transId=%d",
		c.cfg.AccessKey, cb.Amount, cb.ExtraData, cb.Message, cb.OrderID, cb.OrderInfo,
		cb.OrderType, cb.PartnerCode, cb.PayType, cb.RequestID, cb.ResponseTime,
		cb.ResultCode, cb.TransID,
	)

	expected := c.hmacHex(raw)
	if !hmac.Equal([]byte(expected), []byte(cb.Signature)) {
		return ErrSignatureMismatch
	}
	return nil
}

func (c *Client) hmacHex(raw string) string {
	mac := hmac.New(sha256.New, []byte(c.cfg.SecretKey))
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}

// NewGatewayOrderID derives a fresh correlation id for one payment attempt
// against the given public order code.
func NewGatewayOrderID(orderCode string) string {
	return orderCode + "-" + uuid.NewString()[:8]
}
