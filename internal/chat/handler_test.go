package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pagesmith/internal/domain"
)

type fakeDisplay struct {
	mu         sync.Mutex
	lines      []string
	links      []string
	loading    bool
	loadingLog []bool
}

func (d *fakeDisplay) AppendUserLine(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lines = append(d.lines, "You: "+text)
}

func (d *fakeDisplay) AppendLink(href, _ string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.links = append(d.links, href)
}

func (d *fakeDisplay) SetLoading(visible bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.loading = visible
	d.loadingLog = append(d.loadingLog, visible)
}

type postResult struct {
	resp domain.ChatResponse
	err  error
}

type fakeTransport struct {
	mu      sync.Mutex
	results []postResult
	posted  []domain.Conversation
	entered chan struct{}
	release chan struct{}
}

func (f *fakeTransport) Post(ctx context.Context, conv domain.Conversation) (domain.ChatResponse, error) {
	f.mu.Lock()
	idx := len(f.posted)
	f.posted = append(f.posted, conv)
	f.mu.Unlock()

	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return domain.ChatResponse{}, ctx.Err()
		}
	}
	if idx >= len(f.results) {
		idx = len(f.results) - 1
	}
	return f.results[idx].resp, f.results[idx].err
}

func (f *fakeTransport) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.posted)
}

// staticInput never clears, so queued submissions always see text.
type staticInput string

func (s staticInput) Value() string { return string(s) }
func (staticInput) Clear()          {}

func newTestHandler(t *testing.T, text string, tr *fakeTransport) (*Handler, *LineInput, *fakeDisplay) {
	t.Helper()
	in := &LineInput{}
	in.Set(text)
	d := &fakeDisplay{}
	h, err := NewHandler(NewSession(""), in, d, tr)
	require.NoError(t, err)
	return h, in, d
}

func serverReply(path string, turns ...domain.Turn) postResult {
	return postResult{resp: domain.ChatResponse{Response: turns, Path: path}}
}

func TestNewHandler_ValidatesDependencies(t *testing.T) {
	s, in, d, tr := NewSession(""), &LineInput{}, &fakeDisplay{}, &fakeTransport{}

	_, err := NewHandler(nil, in, d, tr)
	require.Error(t, err)
	_, err = NewHandler(s, nil, d, tr)
	require.Error(t, err)
	_, err = NewHandler(s, in, nil, tr)
	require.Error(t, err)
	_, err = NewHandler(s, in, d, nil)
	require.Error(t, err)
}

func TestNewSession_StartsWithSystemTurn(t *testing.T) {
	conv := NewSession("").Snapshot()
	require.Len(t, conv, 1)
	require.Equal(t, domain.RoleSystem, conv[0].Role)
	require.Equal(t, DefaultSystemPrompt, conv[0].Content)

	conv = NewSession("be brief").Snapshot()
	require.Equal(t, "be brief", conv[0].Content)
}

func TestSubmit_BlankInputIsIgnored(t *testing.T) {
	for _, text := range []string{"", "   ", "\t\n"} {
		tr := &fakeTransport{}
		h, _, d := newTestHandler(t, text, tr)

		require.NoError(t, h.Submit(context.Background()))
		require.Zero(t, tr.calls())
		require.Equal(t, 1, h.Session().Len())
		require.Empty(t, d.lines)
		require.Empty(t, d.loadingLog)
	}
}

func TestSubmit_PostsConversationEndingWithUserTurn(t *testing.T) {
	tr := &fakeTransport{results: []postResult{serverReply("out1")}}
	h, _, d := newTestHandler(t, "hello", tr)

	require.NoError(t, h.Submit(context.Background()))
	require.Equal(t, 1, tr.calls())

	posted := tr.posted[0]
	require.Len(t, posted, 2)
	last, ok := posted.Last()
	require.True(t, ok)
	require.Equal(t, domain.Turn{Role: domain.RoleUser, Content: "hello"}, last)
	require.Equal(t, []string{"You: hello"}, d.lines)
}

func TestSubmit_SuccessReplacesConversationAndRendersLink(t *testing.T) {
	reply := serverReply("out1",
		domain.Turn{Role: domain.RoleSystem, Content: "sys"},
		domain.Turn{Role: domain.RoleUser, Content: "hello"},
		domain.Turn{Role: domain.RoleAssistant, Content: `{"index.html":"<h1>hi</h1>"}`},
	)
	tr := &fakeTransport{results: []postResult{reply}}
	h, in, d := newTestHandler(t, "hello", tr)

	require.NoError(t, h.Submit(context.Background()))
	require.Equal(t, reply.resp.Response, h.Session().Snapshot())
	require.Equal(t, []string{"/out1/index.html"}, d.links)
	require.Empty(t, in.Value())
	require.Equal(t, []bool{true, false}, d.loadingLog)
}

func TestSubmit_FailureKeepsUserTurnAndHidesLoading(t *testing.T) {
	tr := &fakeTransport{results: []postResult{{err: ErrRequestFailed}}}
	h, in, d := newTestHandler(t, "hello", tr)
	before := h.Session().Snapshot()

	err := h.Submit(context.Background())
	require.ErrorIs(t, err, ErrRequestFailed)

	after := h.Session().Snapshot()
	require.Len(t, after, len(before)+1)
	require.Equal(t, before, after[:len(before)])
	require.Equal(t, domain.Turn{Role: domain.RoleUser, Content: "hello"}, after[len(after)-1])

	require.False(t, d.loading)
	require.Equal(t, []bool{true, false}, d.loadingLog)
	require.Empty(t, d.links)
	require.Equal(t, "hello", in.Value(), "input is only cleared on success")
}

func TestSubmit_SuccessiveSubmissionsLastResponseWins(t *testing.T) {
	first := serverReply("out1", domain.Turn{Role: domain.RoleSystem, Content: "sys"}, domain.Turn{Role: domain.RoleAssistant, Content: "one"})
	second := serverReply("out2", domain.Turn{Role: domain.RoleSystem, Content: "sys"}, domain.Turn{Role: domain.RoleAssistant, Content: "two"})
	tr := &fakeTransport{results: []postResult{first, second}}
	h, in, d := newTestHandler(t, "first", tr)

	require.NoError(t, h.Submit(context.Background()))
	in.Set("second")
	require.NoError(t, h.Submit(context.Background()))

	require.Equal(t, second.resp.Response, h.Session().Snapshot())
	require.Equal(t, []string{"/out1/index.html", "/out2/index.html"}, d.links)

	// The second post carried the first reply plus the new user turn.
	require.Len(t, tr.posted[1], 3)
	require.Equal(t, "second", tr.posted[1][2].Content)
}

func TestSubmit_OverlappingSubmissionsAreQueued(t *testing.T) {
	first := serverReply("out1", domain.Turn{Role: domain.RoleAssistant, Content: "one"})
	second := serverReply("out2", domain.Turn{Role: domain.RoleAssistant, Content: "two"})
	tr := &fakeTransport{
		results: []postResult{first, second},
		entered: make(chan struct{}, 2),
		release: make(chan struct{}),
	}
	h, err := NewHandler(NewSession(""), staticInput("hello"), &fakeDisplay{}, tr)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		errs <- h.Submit(context.Background())
	}()
	<-tr.entered

	wg.Add(1)
	go func() {
		defer wg.Done()
		errs <- h.Submit(context.Background())
	}()

	// The second submission must wait for the first to finish.
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 1, tr.calls())

	tr.release <- struct{}{}
	<-tr.entered
	tr.release <- struct{}{}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	require.Equal(t, 2, tr.calls())
	require.Equal(t, second.resp.Response, h.Session().Snapshot())
	// Queued submission started from the first reply, not from a stale copy.
	require.Equal(t, "one", tr.posted[1][0].Content)
}

func TestSubmit_CancelledWhileQueuedLeavesStateUntouched(t *testing.T) {
	tr := &fakeTransport{
		results: []postResult{serverReply("out1", domain.Turn{Role: domain.RoleAssistant, Content: "one"})},
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	h, _, d := newTestHandler(t, "hello", tr)

	done := make(chan error, 1)
	go func() { done <- h.Submit(context.Background()) }()
	<-tr.entered

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := h.Submit(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, tr.calls())

	tr.release <- struct{}{}
	require.NoError(t, <-done)
	require.Len(t, d.lines, 1)
}

func TestSubmit_CancelDuringRequestIsAFailure(t *testing.T) {
	tr := &fakeTransport{
		results: []postResult{serverReply("out1")},
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	h, _, d := newTestHandler(t, "hello", tr)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Submit(ctx) }()
	<-tr.entered
	cancel()

	err := <-done
	require.True(t, errors.Is(err, context.Canceled))
	require.False(t, d.loading)
	require.Equal(t, 2, h.Session().Len())
}

func TestArtifactLink(t *testing.T) {
	require.Equal(t, "/out1/index.html", ArtifactLink("out1"))
}
