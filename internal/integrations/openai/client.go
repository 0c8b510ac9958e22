package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	go_openai "github.com/sashabaranov/go-openai"

	"pagesmith/internal/domain"
)

const defaultBaseURL = "https://api.deepseek.com"

// Getter reads one string field out of a JSON parameter. The API token is
// stored as {"token": "..."}.
type Getter interface {
	GetJSONField(ctx context.Context, name, field string) (string, error)
}

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
	Err        error
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("openai: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

func (e *HTTPStatusError) Unwrap() error {
	return e.Err
}

// Client talks to an OpenAI-compatible chat completions API (DeepSeek by
// default).
type Client struct {
	baseURL      string
	httpClient   *http.Client
	getter       Getter
	paramPrefix  string
	staticKey    string
	maxTokens    int
	temperature  float32
	jsonResponse bool

	mu  sync.Mutex
	api *go_openai.Client
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithAPIKey uses a fixed key instead of reading one from the parameter store.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.staticKey = strings.TrimSpace(key)
	}
}

func WithMaxTokens(n int) Option {
	return func(c *Client) {
		c.maxTokens = n
	}
}

func WithTemperature(t float32) Option {
	return func(c *Client) {
		c.temperature = t
	}
}

// WithJSONResponse asks the model for a single JSON object reply.
func WithJSONResponse(enabled bool) Option {
	return func(c *Client) {
		c.jsonResponse = enabled
	}
}

// NewClient creates a Client. Unless WithAPIKey is given, the key is read from
// the parameter store on the first call and reused for the lifetime of the
// process.
func NewClient(ps Getter, paramPrefix string, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL:     defaultBaseURL,
		httpClient:  &http.Client{Timeout: 2 * time.Minute},
		getter:      ps,
		paramPrefix: strings.TrimRight(strings.TrimSpace(paramPrefix), "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.staticKey != "" {
		return c, nil
	}
	if c.getter == nil {
		return nil, errors.New("openai: paramstore getter must not be nil without an API key")
	}
	if c.paramPrefix == "" {
		return nil, errors.New("openai: parameter prefix must not be empty without an API key")
	}
	return c, nil
}

// resolveAPI builds the SDK client once the key is known. Only a successful
// lookup is kept; a failed one is retried by the next call.
func (c *Client) resolveAPI(ctx context.Context) (*go_openai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.api != nil {
		return c.api, nil
	}

	key := c.staticKey
	if key == "" {
		var err error
		key, err = fetchAPIKeyFromParamStore(ctx, c.getter, c.tokenParameterName())
		if err != nil {
			return nil, err
		}
	}
	cfg := go_openai.DefaultConfig(key)
	cfg.BaseURL = normalizeBaseURL(c.baseURL)
	cfg.HTTPClient = c.resolvedHTTPClient()
	c.api = go_openai.NewClientWithConfig(cfg)
	return c.api, nil
}

func (c *Client) tokenParameterName() string {
	return c.paramPrefix + "/api-token"
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: 2 * time.Minute}
}

// normalizeBaseURL makes sure the SDK base ends in /v1; the SDK appends the
// endpoint path itself.
func normalizeBaseURL(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	if strings.HasSuffix(base, "/v1") {
		return base
	}
	return base + "/v1"
}

func (c *Client) Chat(ctx context.Context, model string, turns []domain.Turn) (string, error) {
	if model == "" {
		return "", errors.New("openai: model must not be empty")
	}

	api, err := c.resolveAPI(ctx)
	if err != nil {
		return "", err
	}

	req := go_openai.ChatCompletionRequest{
		Model:       model,
		Messages:    toMessages(turns),
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}
	if c.jsonResponse {
		req.ResponseFormat = &go_openai.ChatCompletionResponseFormat{
			Type: go_openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai: request failed: %w", c.statusError(err, "/chat/completions"))
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

// Moderate returns true if the input is flagged by the moderation endpoint.
func (c *Client) Moderate(ctx context.Context, input string) (bool, error) {
	api, err := c.resolveAPI(ctx)
	if err != nil {
		return false, err
	}

	resp, err := api.Moderations(ctx, go_openai.ModerationRequest{Input: input})
	if err != nil {
		return false, fmt.Errorf("openai: moderation request failed: %w", c.statusError(err, "/moderations"))
	}
	if len(resp.Results) == 0 {
		return false, errors.New("openai: no results in moderation response")
	}
	return resp.Results[0].Flagged, nil
}

// statusError turns SDK status failures into *HTTPStatusError so callers can
// branch on the status code without importing the SDK.
func (c *Client) statusError(err error, endpoint string) error {
	url := normalizeBaseURL(c.baseURL) + endpoint

	var apiErr *go_openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode >= 300 {
		return &HTTPStatusError{StatusCode: apiErr.HTTPStatusCode, URL: url, Body: apiErr.Message, Err: err}
	}
	var reqErr *go_openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode >= 300 {
		return &HTTPStatusError{StatusCode: reqErr.HTTPStatusCode, URL: url, Body: reqErr.Error(), Err: err}
	}
	return err
}

func toMessages(turns []domain.Turn) []go_openai.ChatCompletionMessage {
	msgs := make([]go_openai.ChatCompletionMessage, 0, len(turns))
	for _, t := range turns {
		msgs = append(msgs, go_openai.ChatCompletionMessage{Role: string(t.Role), Content: t.Content})
	}
	return msgs
}

func fetchAPIKeyFromParamStore(ctx context.Context, getter Getter, name string) (string, error) {
	if getter == nil {
		return "", errors.New("openai: paramstore getter is nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("openai: token parameter name is empty")
	}

	token, err := getter.GetJSONField(ctx, name, "token")
	if err != nil {
		return "", fmt.Errorf("openai: fetch token from paramstore: %w", err)
	}
	if strings.TrimSpace(token) == "" {
		return "", errors.New("openai: API token is empty")
	}
	return token, nil
}
