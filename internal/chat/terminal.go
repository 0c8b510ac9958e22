package chat

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"pagesmith/internal/logging"
)

const loadingText = "Generating files..."

// TerminalDisplay renders the chat to a terminal. Links are absolute (resolved
// against the server URL) and emitted as OSC 8 hyperlinks so they can be
// opened from the terminal. When out is not a terminal, links are plain URLs
// and no loading indicator is drawn.
type TerminalDisplay struct {
	mu      sync.Mutex
	out     io.Writer
	baseURL string
	tty     bool
	loading bool

	userStyle    lipgloss.Style
	linkStyle    lipgloss.Style
	loadingStyle lipgloss.Style
}

type DisplayOption func(*TerminalDisplay)

// WithTerminal overrides terminal detection on the output.
func WithTerminal(tty bool) DisplayOption {
	return func(d *TerminalDisplay) {
		d.tty = tty
	}
}

func NewTerminalDisplay(out io.Writer, baseURL string, opts ...DisplayOption) *TerminalDisplay {
	r := lipgloss.NewRenderer(out)
	d := &TerminalDisplay{
		out:          out,
		baseURL:      strings.TrimRight(baseURL, "/"),
		tty:          logging.IsTerminal(out),
		userStyle:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		linkStyle:    r.NewStyle().Underline(true).Foreground(lipgloss.Color("10")),
		loadingStyle: r.NewStyle().Faint(true),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *TerminalDisplay) AppendUserLine(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	prefix := "You:"
	if d.tty {
		prefix = d.userStyle.Render(prefix)
	}
	d.writeLine(fmt.Sprintf("%s %s", prefix, text))
}

func (d *TerminalDisplay) AppendLink(href, label string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	target := d.resolve(href)
	if !d.tty {
		d.writeLine(label + ": " + target)
		return
	}
	d.writeLine(ansi.SetHyperlink(target) + d.linkStyle.Render(label) + ansi.ResetHyperlink() + " " + target)
}

func (d *TerminalDisplay) SetLoading(visible bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if visible == d.loading {
		return
	}
	d.loading = visible
	if !d.tty {
		return
	}
	if visible {
		_, _ = fmt.Fprint(d.out, d.loadingStyle.Render(loadingText))
	} else {
		d.eraseLine()
	}
}

// writeLine prints above the loading indicator when it is shown.
func (d *TerminalDisplay) writeLine(s string) {
	if !d.tty {
		_, _ = fmt.Fprintln(d.out, s)
		return
	}
	if d.loading {
		d.eraseLine()
	}
	_, _ = fmt.Fprintln(d.out, s)
	if d.loading {
		_, _ = fmt.Fprint(d.out, d.loadingStyle.Render(loadingText))
	}
}

func (d *TerminalDisplay) eraseLine() {
	_, _ = fmt.Fprint(d.out, "\r"+ansi.EraseEntireLine)
}

func (d *TerminalDisplay) resolve(href string) string {
	if d.baseURL == "" || strings.Contains(href, "://") {
		return href
	}
	return d.baseURL + href
}

// LineInput holds the most recent line typed at the prompt.
type LineInput struct {
	mu    sync.Mutex
	value string
}

func (l *LineInput) Set(v string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.value = v
}

func (l *LineInput) Value() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.value
}

func (l *LineInput) Clear() {
	l.Set("")
}
