// Package payment creates subscription payment intents against the DirectPay
// gateway and settles them on its callback.
package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/porsino-app/porsino-server/internal/config"
)

// ErrGatewayRejected indicates the gateway did not return a payment token.
var ErrGatewayRejected = errors.New("payment gateway rejected the request")

// Sign computes the hex HMAC-SHA512 signature over amount#order_id#callback_url.
func Sign(secret string, amountTomans int64, orderID, callbackURL string) string {
	payload := fmt.Sprintf("%d#%s#%s", amountTomans, orderID, callbackURL)
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySign reports whether a presented signature matches the payload.
func VerifySign(secret string, amountTomans int64, orderID, callbackURL, presented string) bool {
	want := Sign(secret, amountTomans, orderID, callbackURL)
	return hmac.Equal([]byte(want), []byte(strings.ToLower(strings.TrimSpace(presented))))
}

// Gateway creates payment tokens at the DirectPay create endpoint.
type Gateway struct {
	gatewayID   string
	secret      string
	baseURL     string
	callbackURL string
	httpClient  *http.Client
}

// NewGateway constructs a DirectPay client.
func NewGateway(cfg config.PaymentConfig) *Gateway {
	return &Gateway{
		gatewayID:   cfg.GatewayID,
		secret:      cfg.Secret,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		callbackURL: cfg.CallbackURL,
		httpClient:  &http.Client{Timeout: 20 * time.Second},
	}
}

// createRequest is the DirectPay create payload.
type createRequest struct {
	GatewayID   string `json:"gateway_id"`
	Amount      int64  `json:"amount"`
	OrderID     string `json:"order_id"`
	CallbackURL string `json:"callback_url"`
	Sign        string `json:"sign"`
}

// createResponse is the DirectPay create response.
type createResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
	Message string `json:"message"`
}

// CreateToken requests a payment token for a pending order.
func (g *Gateway) CreateToken(ctx context.Context, amountTomans int64, orderID string) (string, error) {
	payload := createRequest{
		GatewayID:   g.gatewayID,
		Amount:      amountTomans,
		OrderID:     orderID,
		CallbackURL: g.callbackURL,
		Sign:        Sign(g.secret, amountTomans, orderID, g.callbackURL),
	}
	body, errMarshal := json.Marshal(payload)
	if errMarshal != nil {
		return "", fmt.Errorf("payment: marshal request: %w", errMarshal)
	}

	req, errReq := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/api/pardakht/create", bytes.NewReader(body))
	if errReq != nil {
		return "", fmt.Errorf("payment: build request: %w", errReq)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, errDo := g.httpClient.Do(req)
	if errDo != nil {
		return "", fmt.Errorf("payment: gateway request: %w", errDo)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: status=%d", ErrGatewayRejected, resp.StatusCode)
	}

	var out createResponse
	if errDecode := json.NewDecoder(resp.Body).Decode(&out); errDecode != nil {
		return "", fmt.Errorf("payment: decode response: %w", errDecode)
	}
	if !out.Success || strings.TrimSpace(out.Token) == "" {
		return "", fmt.Errorf("%w: %s", ErrGatewayRejected, out.Message)
	}
	return out.Token, nil
}

// RedirectURL builds the user-facing gateway redirect for a token.
func (g *Gateway) RedirectURL(token string) string {
	return g.baseURL + "/pay/" + token
}

// CallbackURL exposes the configured callback target.
func (g *Gateway) CallbackURL() string {
	return g.callbackURL
}

// Secret exposes the signing secret for callback verification.
func (g *Gateway) Secret() string {
	return g.secret
}
