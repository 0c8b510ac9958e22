package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"pagesmith/internal/domain"
	"pagesmith/internal/usecase"
)

const (
	correlationHeader = "X-Correlation-Id"
	maxBodyBytes      = 1 << 20
	indexFile         = "index.html"
)

type Generator interface {
	Generate(ctx context.Context, in usecase.GenerateInput) (usecase.GenerateOutput, error)
}

type SiteReader interface {
	File(ctx context.Context, path, name string) (domain.File, error)
	Manifest(ctx context.Context, path string) (domain.Manifest, error)
}

// Handler serves the chat endpoint and the generated sites. Handle adapts it
// to API Gateway proxy events and ServeHTTP to net/http.
type Handler struct {
	gen    Generator
	sites  SiteReader
	logger *slog.Logger
}

type Option func(*Handler)

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

func NewHandler(gen Generator, sites SiteReader, opts ...Option) (*Handler, error) {
	if gen == nil {
		return nil, errors.New("handler: generator must not be nil")
	}
	if sites == nil {
		return nil, errors.New("handler: site reader must not be nil")
	}
	h := &Handler{gen: gen, sites: sites, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

type request struct {
	method  string
	path    string
	headers map[string]string
	body    []byte
}

type response struct {
	status  int
	headers map[string]string
	body    []byte
}

func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	body := []byte(event.Body)
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(event.Body)
		if err != nil {
			body = nil
		} else {
			body = decoded
		}
	}
	resp := h.serve(ctx, request{
		method:  event.HTTPMethod,
		path:    event.Path,
		headers: event.Headers,
		body:    body,
	})
	return events.APIGatewayProxyResponse{
		StatusCode: resp.status,
		Headers:    resp.headers,
		Body:       string(resp.body),
	}, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	headers := make(map[string]string, len(r.Header))
	for k := range r.Header {
		headers[k] = r.Header.Get(k)
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		body = nil
	}

	resp := h.serve(r.Context(), request{
		method:  r.Method,
		path:    r.URL.Path,
		headers: headers,
		body:    body,
	})
	for k, v := range resp.headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(resp.status)
	_, _ = w.Write(resp.body)
}

func (h *Handler) serve(ctx context.Context, req request) response {
	start := time.Now()
	correlationID := headerValue(req.headers, correlationHeader)
	if correlationID == "" {
		correlationID = newCorrelationID()
	}
	log := h.logger.With("correlation_id", correlationID, "method", req.method, "path", req.path)

	resp := h.route(ctx, log, req)
	if resp.headers == nil {
		resp.headers = map[string]string{}
	}
	resp.headers[correlationHeader] = correlationID

	log.Info("request handled", "status", resp.status, "duration_ms", time.Since(start).Milliseconds())
	return resp
}

func (h *Handler) route(ctx context.Context, log *slog.Logger, req request) response {
	segments := strings.Split(strings.Trim(req.path, "/"), "/")
	switch {
	case len(segments) == 1 && segments[0] == "chat":
		if req.method != http.MethodPost {
			return methodNotAllowed(http.MethodPost)
		}
		return h.chat(ctx, log, req.body)
	case len(segments) == 2 && segments[0] == "sites":
		if req.method != http.MethodGet {
			return methodNotAllowed(http.MethodGet)
		}
		return h.manifest(ctx, log, segments[1])
	case len(segments) >= 2 && segments[0] != "":
		if req.method != http.MethodGet {
			return methodNotAllowed(http.MethodGet)
		}
		name := path.Join(segments[1:]...)
		if name == "" || strings.HasSuffix(req.path, "/") {
			name = path.Join(name, indexFile)
		}
		return h.file(ctx, log, segments[0], name)
	}
	return jsonResponse(http.StatusNotFound, errorResponse{Error: string(usecase.ErrorNotFound), Reason: "unknown_route"})
}

func (h *Handler) chat(ctx context.Context, log *slog.Logger, body []byte) response {
	var in domain.ChatRequest
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		log.Warn("invalid chat body", "err", err)
		return jsonResponse(http.StatusBadRequest, errorResponse{Error: string(usecase.ErrorInvalidInput), Reason: "invalid_body"})
	}

	out, err := h.gen.Generate(ctx, usecase.GenerateInput{Messages: in.Messages})
	if err != nil {
		return h.errorResponse(log, err)
	}
	log.Info("site generated", "site_path", out.Path, "turns", len(out.Messages))
	return jsonResponse(http.StatusOK, domain.ChatResponse{Response: out.Messages, Path: out.Path})
}

func (h *Handler) manifest(ctx context.Context, log *slog.Logger, sitePath string) response {
	m, err := h.sites.Manifest(ctx, sitePath)
	if err != nil {
		return h.errorResponse(log, err)
	}
	return jsonResponse(http.StatusOK, m)
}

func (h *Handler) file(ctx context.Context, log *slog.Logger, sitePath, name string) response {
	f, err := h.sites.File(ctx, sitePath, name)
	if err != nil {
		return h.errorResponse(log, err)
	}
	return response{
		status:  http.StatusOK,
		headers: map[string]string{"Content-Type": contentType(name)},
		body:    []byte(f.Content),
	}
}

func (h *Handler) errorResponse(log *slog.Logger, err error) response {
	code := usecase.ErrorInternal
	reason := "unexpected_error"
	var ucErr *usecase.Error
	if errors.As(err, &ucErr) {
		code = ucErr.Code
		reason = ucErr.Reason
	}

	status := statusFor(code)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "code", code, "reason", reason, "err", err)
	} else {
		log.Warn("request rejected", "code", code, "reason", reason, "err", err)
	}
	if status == http.StatusInternalServerError {
		code = usecase.ErrorInternal
	}
	return jsonResponse(status, errorResponse{Error: string(code), Reason: reason})
}

func statusFor(code usecase.ErrorCode) int {
	switch code {
	case usecase.ErrorInvalidInput, usecase.ErrorInvalidQuestion:
		return http.StatusBadRequest
	case usecase.ErrorNotFound:
		return http.StatusNotFound
	case usecase.ErrorRateLimited:
		return http.StatusTooManyRequests
	case usecase.ErrorUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func methodNotAllowed(allow string) response {
	resp := jsonResponse(http.StatusMethodNotAllowed, errorResponse{Error: "METHOD_NOT_ALLOWED"})
	resp.headers["Allow"] = allow
	return resp
}

func jsonResponse(status int, v any) response {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":"INTERNAL_ERROR"}`)
	}
	return response{
		status:  status,
		headers: map[string]string{"Content-Type": "application/json"},
		body:    body,
	}
}

func contentType(name string) string {
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// headerValue looks a header up case-insensitively; API Gateway passes
// headers through as the client sent them.
func headerValue(headers map[string]string, key string) string {
	if v, ok := headers[key]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

var newCorrelationID = func() string {
	return uuid.NewString()
}
