package chatjob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/porsino-app/porsino-server/internal/config"
)

// maxErrorBodyBytes bounds error bodies captured for diagnostics.
const maxErrorBodyBytes = 512

// Question is one request to the upstream chat backend.
type Question struct {
	Message      string `json:"message"`
	ModelID      string `json:"model_id"`
	ChatID       uint64 `json:"chat_id,omitempty"`
	IsNewProblem bool   `json:"is_new_problem"`
}

// Answer is the upstream chat backend's completed response.
type Answer struct {
	Answer       string   `json:"answer"`
	TopicSummary string   `json:"topic_summary"`
	Suggestions  []string `json:"suggestions"`
	Usage        Usage    `json:"usage"`
}

// Usage carries token metering from the upstream response.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
	TotalTokens  int64 `json:"total_tokens"`
}

// Client calls the upstream chat backend with a bounded request timeout.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient constructs an upstream chat client.
func NewClient(cfg config.AIConfig) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Ask sends the question and waits for the completed answer.
func (c *Client) Ask(ctx context.Context, question Question) (*Answer, error) {
	body, errMarshal := json.Marshal(question)
	if errMarshal != nil {
		return nil, fmt.Errorf("chatjob: marshal question: %w", errMarshal)
	}

	req, errReq := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", bytes.NewReader(body))
	if errReq != nil {
		return nil, fmt.Errorf("chatjob: build request: %w", errReq)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, errDo := c.httpClient.Do(req)
	if errDo != nil {
		return nil, fmt.Errorf("chatjob: upstream request: %w", errDo)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, fmt.Errorf("chatjob: upstream status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var answer Answer
	if errDecode := json.NewDecoder(resp.Body).Decode(&answer); errDecode != nil {
		return nil, fmt.Errorf("chatjob: decode answer: %w", errDecode)
	}
	return &answer, nil
}
