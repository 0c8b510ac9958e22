package chat

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/require"
)

func TestTerminalDisplay_UserLine(t *testing.T) {
	var buf bytes.Buffer
	d := NewTerminalDisplay(&buf, "http://localhost:8080")
	d.AppendUserLine("hello")
	require.Contains(t, ansi.Strip(buf.String()), "You: hello")
	require.True(t, strings.HasSuffix(buf.String(), "\n"))
}

func TestTerminalDisplay_LinkIsResolvedAgainstServer(t *testing.T) {
	var buf bytes.Buffer
	d := NewTerminalDisplay(&buf, "http://localhost:8080/", WithTerminal(true))
	d.AppendLink("/out1/index.html", linkLabel)

	out := buf.String()
	require.Contains(t, out, "http://localhost:8080/out1/index.html")
	require.Contains(t, out, ansi.SetHyperlink("http://localhost:8080/out1/index.html"))
	require.Contains(t, ansi.Strip(out), linkLabel)
}

func TestTerminalDisplay_LoadingIsErasedWhenHidden(t *testing.T) {
	var buf bytes.Buffer
	d := NewTerminalDisplay(&buf, "", WithTerminal(true))
	d.SetLoading(true)
	require.Contains(t, buf.String(), loadingText)

	d.SetLoading(true)
	require.Equal(t, 1, strings.Count(buf.String(), loadingText))

	d.SetLoading(false)
	require.True(t, strings.HasSuffix(buf.String(), "\r"+ansi.EraseEntireLine))
}

func TestTerminalDisplay_LinesPrintAboveLoading(t *testing.T) {
	var buf bytes.Buffer
	d := NewTerminalDisplay(&buf, "", WithTerminal(true))
	d.SetLoading(true)
	d.AppendLink("/out1/index.html", linkLabel)
	require.True(t, strings.HasSuffix(ansi.Strip(buf.String()), loadingText))
}

func TestTerminalDisplay_PlainOutputOffTerminal(t *testing.T) {
	var buf bytes.Buffer
	d := NewTerminalDisplay(&buf, "http://localhost:8080")
	d.SetLoading(true)
	d.AppendUserLine("hello")
	d.AppendLink("/out1/index.html", linkLabel)
	d.SetLoading(false)

	out := buf.String()
	require.NotContains(t, out, "\x1b")
	require.NotContains(t, out, "\r")
	require.NotContains(t, out, loadingText)
	require.Equal(t, "You: hello\n"+linkLabel+": http://localhost:8080/out1/index.html\n", out)
}

func TestLineInput(t *testing.T) {
	in := &LineInput{}
	in.Set("hi")
	require.Equal(t, "hi", in.Value())
	in.Clear()
	require.Empty(t, in.Value())
}
