package usecase

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"pagesmith/internal/domain"
)

var parenthesisedName = regexp.MustCompile(`\(([^()]+)\)\s*$`)

// ExtractFiles pulls generated files out of a model reply. A reply that is a
// JSON object of name → content wins; otherwise the reply is read as Markdown
// where a bold heading names the fenced code block that follows it. Unsafe
// names are dropped, the last duplicate wins and the result is sorted by name.
func ExtractFiles(reply string) []domain.File {
	raw := strings.TrimSpace(reply)
	if raw == "" {
		return nil
	}
	if files, err := parseJSONFiles(stripCodeFence(raw)); err == nil {
		return normalizeFiles(files)
	}
	return normalizeFiles(parseMarkdownFiles(raw))
}

// parseJSONFiles accepts exactly one JSON object whose values are all strings.
func parseJSONFiles(raw string) ([]domain.File, error) {
	var obj map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewBufferString(raw))
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("usecase: decode files object: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, errors.New("usecase: decode files object: trailing data")
	}
	if len(obj) == 0 {
		return nil, errors.New("usecase: decode files object: no files")
	}

	files := make([]domain.File, 0, len(obj))
	for name, v := range obj {
		var content string
		if err := json.Unmarshal(v, &content); err != nil {
			return nil, fmt.Errorf("usecase: file %q is not a string: %w", name, err)
		}
		files = append(files, domain.File{Name: name, Content: content})
	}
	return files, nil
}

// stripCodeFence removes a ```json ... ``` wrapper around the whole reply.
func stripCodeFence(raw string) string {
	if !strings.HasPrefix(raw, "```") || !strings.HasSuffix(raw, "```") || len(raw) < 6 {
		return raw
	}
	body := strings.TrimSuffix(raw, "```")
	nl := strings.IndexByte(body, '\n')
	if nl < 0 {
		return raw
	}
	return strings.TrimSpace(body[nl+1:])
}

// parseMarkdownFiles handles replies shaped like
//
//	### **HTML (index.html)**
//	```html
//	...
//	```
func parseMarkdownFiles(raw string) []domain.File {
	source := []byte(raw)
	doc := goldmark.DefaultParser().Parse(text.NewReader(source))

	var files []domain.File
	pending := ""
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := n.(type) {
		case *ast.Heading:
			pending = ""
			if isStrongHeading(v) {
				pending = fileNameFromHeading(string(v.Text(source)))
			}
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock:
			if pending != "" {
				files = append(files, domain.File{Name: pending, Content: codeBlockContent(v, source)})
				pending = ""
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return files
}

// isStrongHeading reports whether a heading opens with **bold** text, as in
// "**HTML (index.html)**" or "**HTML** (index.html)".
func isStrongHeading(h *ast.Heading) bool {
	e, ok := h.FirstChild().(*ast.Emphasis)
	return ok && e.Level == 2
}

func fileNameFromHeading(header string) string {
	header = strings.TrimSpace(header)
	if m := parenthesisedName.FindStringSubmatch(header); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.ReplaceAll(strings.ToLower(header), " ", "_")
}

func codeBlockContent(b *ast.FencedCodeBlock, source []byte) string {
	var sb strings.Builder
	lines := b.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(source))
	}
	return strings.TrimSpace(sb.String())
}

func normalizeFiles(in []domain.File) []domain.File {
	byName := make(map[string]string, len(in))
	for _, f := range in {
		name, ok := cleanFileName(f.Name)
		if !ok {
			continue
		}
		byName[name] = f.Content
	}
	out := make([]domain.File, 0, len(byName))
	for name, content := range byName {
		out = append(out, domain.File{Name: name, Content: content})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// cleanFileName keeps names relative and inside the site directory. Hidden
// files are dropped.
func cleanFileName(name string) (string, bool) {
	name = strings.TrimSpace(strings.ReplaceAll(name, `\`, "/"))
	if name == "" || strings.HasPrefix(name, "/") {
		return "", false
	}
	cleaned := path.Clean(name)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", false
	}
	for _, seg := range strings.Split(cleaned, "/") {
		if strings.HasPrefix(seg, ".") {
			return "", false
		}
	}
	return cleaned, true
}
