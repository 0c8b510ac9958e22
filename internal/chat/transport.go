package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"pagesmith/internal/domain"
)

// ErrRequestFailed covers every way a /chat call can fail: network, status
// and decoding errors are not told apart.
var ErrRequestFailed = errors.New("chat: request failed")

// StatusError is returned (wrapped) for non-2xx replies.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("chat: unexpected status %d: %s", e.StatusCode, e.Body)
}

// HTTPTransport posts the conversation as JSON to <baseURL>/chat.
type HTTPTransport struct {
	endpoint   string
	httpClient *http.Client
}

type TransportOption func(*HTTPTransport)

func WithHTTPClient(httpClient *http.Client) TransportOption {
	return func(t *HTTPTransport) {
		if httpClient != nil {
			t.httpClient = httpClient
		}
	}
}

func NewHTTPTransport(baseURL string, opts ...TransportOption) (*HTTPTransport, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("chat: server URL must not be empty")
	}
	t := &HTTPTransport{
		endpoint: baseURL + "/chat",
		// No client timeout: the context is the only way to give up on a request.
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

func (t *HTTPTransport) Post(ctx context.Context, conv domain.Conversation) (domain.ChatResponse, error) {
	body, err := json.Marshal(domain.ChatRequest{Messages: conv})
	if err != nil {
		return domain.ChatResponse{}, fmt.Errorf("%w: marshal request: %w", ErrRequestFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.ChatResponse{}, fmt.Errorf("%w: create request: %w", ErrRequestFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := t.httpClient.Do(req)
	if err != nil {
		return domain.ChatResponse{}, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return domain.ChatResponse{}, fmt.Errorf("%w: %w", ErrRequestFailed, &StatusError{
			StatusCode: res.StatusCode,
			Body:       string(buf),
		})
	}

	var out domain.ChatResponse
	if err := json.NewDecoder(io.LimitReader(res.Body, 8<<20)).Decode(&out); err != nil {
		return domain.ChatResponse{}, fmt.Errorf("%w: decode response: %w", ErrRequestFailed, err)
	}
	if out.Response == nil {
		return domain.ChatResponse{}, fmt.Errorf("%w: response has no conversation", ErrRequestFailed)
	}
	return out, nil
}
