package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/sync/semaphore"

	"pagesmith/internal/domain"
)

const linkLabel = "View Generated Files"

// Input is the text box the user types into.
type Input interface {
	Value() string
	Clear()
}

// Display is the chat area plus the loading indicator.
type Display interface {
	AppendUserLine(text string)
	AppendLink(href, label string)
	SetLoading(visible bool)
}

// Transport sends the conversation to the backend.
type Transport interface {
	Post(ctx context.Context, conv domain.Conversation) (domain.ChatResponse, error)
}

// Handler runs one request/response cycle per Submit. Overlapping calls are
// queued so each one sees the conversation the previous one left behind.
type Handler struct {
	session   *Session
	input     Input
	display   Display
	transport Transport
	logger    *slog.Logger
	inflight  *semaphore.Weighted
}

type Option func(*Handler)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

func NewHandler(session *Session, in Input, display Display, transport Transport, opts ...Option) (*Handler, error) {
	if session == nil {
		return nil, errors.New("chat: session must not be nil")
	}
	if in == nil {
		return nil, errors.New("chat: input must not be nil")
	}
	if display == nil {
		return nil, errors.New("chat: display must not be nil")
	}
	if transport == nil {
		return nil, errors.New("chat: transport must not be nil")
	}
	h := &Handler{
		session:   session,
		input:     in,
		display:   display,
		transport: transport,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		inflight:  semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Submit sends the current input. Blank input is ignored. A failed request is
// logged and returned but leaves the user turn in place and shows nothing to
// the user; the loading indicator is hidden on every path.
func (h *Handler) Submit(ctx context.Context) error {
	text := h.input.Value()
	if strings.TrimSpace(text) == "" {
		return nil
	}

	if err := h.inflight.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("chat: wait for previous request: %w", err)
	}
	defer h.inflight.Release(1)

	h.display.AppendUserLine(text)
	h.session.append(domain.Turn{Role: domain.RoleUser, Content: text})

	h.display.SetLoading(true)
	defer h.display.SetLoading(false)

	resp, err := h.transport.Post(ctx, h.session.Snapshot())
	if err != nil {
		h.logger.Error("chat request failed", "err", err)
		return err
	}

	h.session.replace(resp.Response)
	h.display.AppendLink(ArtifactLink(resp.Path), linkLabel)
	h.input.Clear()
	return nil
}

// Session exposes the conversation the handler writes to.
func (h *Handler) Session() *Session {
	return h.session
}

// ArtifactLink is the href of the entry page of a generated site.
func ArtifactLink(path string) string {
	return "/" + path + "/index.html"
}
