// Package sms dispatches verification codes through the sms.ir gateway.
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/porsino-app/porsino-server/internal/config"
	log "github.com/sirupsen/logrus"
)

// ErrSendFailed indicates the gateway rejected or failed the dispatch.
var ErrSendFailed = errors.New("sms send failed")

// Sender dispatches a verification code to a mobile number.
type Sender interface {
	SendVerifyCode(ctx context.Context, mobile, code string) error
}

// statusOK is the gateway status value denoting success.
const statusOK = 1

// Client sends verification SMS via the sms.ir verify endpoint.
type Client struct {
	apiKey     string
	templateID int
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs an sms.ir client.
func NewClient(cfg config.SMSConfig) *Client {
	return &Client{
		apiKey:     cfg.APIKey,
		templateID: cfg.TemplateID,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// verifyRequest is the sms.ir verify-send payload.
type verifyRequest struct {
	Mobile     string            `json:"mobile"`
	TemplateID int               `json:"templateId"`
	Parameters []verifyParameter `json:"parameters"`
}

// verifyParameter is one template parameter.
type verifyParameter struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// verifyResponse is the sms.ir verify-send response.
type verifyResponse struct {
	Status int `json:"status"`
}

// SendVerifyCode posts the code to the gateway's verify endpoint.
func (c *Client) SendVerifyCode(ctx context.Context, mobile, code string) error {
	payload := verifyRequest{
		Mobile:     mobile,
		TemplateID: c.templateID,
		Parameters: []verifyParameter{{Name: "Code", Value: code}},
	}
	body, errMarshal := json.Marshal(payload)
	if errMarshal != nil {
		return fmt.Errorf("sms: marshal request: %w", errMarshal)
	}

	req, errReq := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/send/verify", bytes.NewReader(body))
	if errReq != nil {
		return fmt.Errorf("sms: build request: %w", errReq)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, errDo := c.httpClient.Do(req)
	if errDo != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, errDo)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status=%d", ErrSendFailed, resp.StatusCode)
	}

	var out verifyResponse
	if errDecode := json.NewDecoder(resp.Body).Decode(&out); errDecode != nil {
		return fmt.Errorf("%w: decode response: %v", ErrSendFailed, errDecode)
	}
	if out.Status != statusOK {
		return fmt.Errorf("%w: gateway status=%d", ErrSendFailed, out.Status)
	}
	return nil
}

// ConsoleSender logs codes instead of dispatching them. Used in development
// and tests.
type ConsoleSender struct{}

// SendVerifyCode logs the code.
func (ConsoleSender) SendVerifyCode(_ context.Context, mobile, code string) error {
	log.Infof("sms (console): mobile=%s code=%s", mobile, code)
	return nil
}
