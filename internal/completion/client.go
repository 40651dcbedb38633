package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
)

// ErrUpstream matches every failure of the completion call.
var ErrUpstream = errors.New("upstream completion failed")

// Failure codes carried by UpstreamError.
const (
	CodeMissingCredentials = "missing_credentials"
	CodeRequestFailed      = "request_failed"
	CodeHTTPStatus         = "http_status"
	CodeMalformedResponse  = "malformed_response"
	CodeNoChoices          = "no_choices"
)

// UpstreamError describes why a completion could not be obtained.
// Status is the HTTP status of the upstream response, or 0 if none was received.
type UpstreamError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Code == CodeHTTPStatus {
		return fmt.Sprintf("AI API error: %d", e.Status)
	}
	return fmt.Sprintf("AI API error: %s", e.Message)
}

func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

func (e *UpstreamError) Unwrap() error { return e.Err }

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Request struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type Choice struct {
	Message Message `json:"message"`
}

type Response struct {
	Choices []Choice `json:"choices"`
}

// Client calls an OpenAI-compatible chat completions endpoint.
type Client struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
	log        *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger used for upstream diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = l }
}

// NewClient returns a client for endpoint using a fixed model. An empty
// apiKey is accepted; every call then fails with CodeMissingCredentials.
func NewClient(endpoint, model, apiKey string, opts ...Option) *Client {
	c := &Client{
		endpoint:   endpoint,
		model:      model,
		apiKey:     apiKey,
		httpClient: &http.Client{},
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model returns the model identifier sent with every request.
func (c *Client) Model() string { return c.model }

// Complete sends the system instruction followed by messages and returns the
// first choice's content verbatim. Exactly one request is made.
func (c *Client) Complete(ctx context.Context, system string, messages []Message) (string, error) {
	if c.apiKey == "" {
		return "", &UpstreamError{Code: CodeMissingCredentials, Message: "completion API key not configured"}
	}

	reqBody := Request{
		Model:    c.model,
		Messages: append([]Message{{Role: "system", Content: system}}, messages...),
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", &UpstreamError{Code: CodeRequestFailed, Message: "encode request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return "", &UpstreamError{Code: CodeRequestFailed, Message: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &UpstreamError{Code: CodeRequestFailed, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errorText, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.log.Error("AI API error",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(errorText)))
		return "", &UpstreamError{Status: resp.StatusCode, Code: CodeHTTPStatus, Message: string(errorText)}
	}

	var completion Response
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", &UpstreamError{Status: resp.StatusCode, Code: CodeMalformedResponse, Message: "decode response", Err: err}
	}
	if len(completion.Choices) == 0 {
		return "", &UpstreamError{Status: resp.StatusCode, Code: CodeNoChoices, Message: "response has no choices"}
	}

	content := completion.Choices[0].Message.Content
	c.log.Debug("AI response", zap.String("content", content))
	return content, nil
}
