package usecase

import (
	"testing"

	"github.com/stretchr/testify/require"

	"pagesmith/internal/domain"
)

func TestExtractFiles_JSONObject(t *testing.T) {
	files := ExtractFiles(`{"styles.css":"body{}","index.html":"<html></html>","js/app.js":"let a = 1;"}`)
	require.Equal(t, []domain.File{
		{Name: "index.html", Content: "<html></html>"},
		{Name: "js/app.js", Content: "let a = 1;"},
		{Name: "styles.css", Content: "body{}"},
	}, files)
}

func TestExtractFiles_FencedJSON(t *testing.T) {
	files := ExtractFiles("```json\n{\"index.html\":\"<p>hi</p>\"}\n```")
	require.Equal(t, []domain.File{{Name: "index.html", Content: "<p>hi</p>"}}, files)
}

func TestExtractFiles_MarkdownSections(t *testing.T) {
	reply := "Here is your site.\n\n" +
		"### **HTML (index.html)**\n" +
		"```html\n<h1>Blog</h1>\n```\n\n" +
		"### **CSS (styles.css)**\n" +
		"```css\nbody { color: blue; }\n```\n\n" +
		"### **Main Script**\n" +
		"```js\nconsole.log(1)\n```\n"

	files := ExtractFiles(reply)
	require.Equal(t, []domain.File{
		{Name: "index.html", Content: "<h1>Blog</h1>"},
		{Name: "main_script", Content: "console.log(1)"},
		{Name: "styles.css", Content: "body { color: blue; }"},
	}, files)
}

func TestExtractFiles_BoldLabelWithTrailingFileName(t *testing.T) {
	reply := "### **HTML** (index.html)\n```html\n<p>a</p>\n```\n\n" +
		"### **Styles** for the page\n```css\np{}\n```\n"

	require.Equal(t, []domain.File{
		{Name: "index.html", Content: "<p>a</p>"},
		{Name: "styles_for_the_page", Content: "p{}"},
	}, ExtractFiles(reply))
}

func TestExtractFiles_IgnoresPlainHeadingsAndOrphanBlocks(t *testing.T) {
	reply := "### Notes\n```\nnot a file\n```\n\n" +
		"```html\n<p>orphan</p>\n```\n\n" +
		"### **index.html**\n```html\n<p>kept</p>\n```\n"

	files := ExtractFiles(reply)
	require.Equal(t, []domain.File{{Name: "index.html", Content: "<p>kept</p>"}}, files)
}

func TestExtractFiles_InvalidJSONFallsBackToMarkdown(t *testing.T) {
	require.Empty(t, ExtractFiles(`{"index.html": 12}`))
	require.Empty(t, ExtractFiles(`{"index.html":"a"} trailing`))
	require.Empty(t, ExtractFiles(`{}`))
	require.Empty(t, ExtractFiles("   "))
	require.Empty(t, ExtractFiles("just some prose"))
}

func TestExtractFiles_DropsUnsafeNames(t *testing.T) {
	files := ExtractFiles(`{"../etc/passwd":"x","/abs.html":"x",".env":"x","a/../../b":"x","ok.html":"y","dir\\page.html":"z"}`)
	require.Equal(t, []domain.File{
		{Name: "dir/page.html", Content: "z"},
		{Name: "ok.html", Content: "y"},
	}, files)
}

func TestExtractFiles_LastDuplicateWins(t *testing.T) {
	reply := "### **index.html**\n```html\nfirst\n```\n\n### **index.html**\n```html\nsecond\n```\n"
	require.Equal(t, []domain.File{{Name: "index.html", Content: "second"}}, ExtractFiles(reply))
}

func TestFileNameFromHeading(t *testing.T) {
	require.Equal(t, "index.html", fileNameFromHeading("HTML (index.html)"))
	require.Equal(t, "app.js", fileNameFromHeading("  JavaScript ( app.js )  "))
	require.Equal(t, "read_me", fileNameFromHeading("Read Me"))
}

func TestCleanFileName(t *testing.T) {
	cases := map[string]struct {
		want string
		ok   bool
	}{
		"index.html":       {"index.html", true},
		"./a/b.css":        {"a/b.css", true},
		"a//b.js":          {"a/b.js", true},
		"":                 {"", false},
		"..":               {"", false},
		"../x":             {"", false},
		"/root":            {"", false},
		"assets/.hidden":   {"", false},
		"assets\\logo.svg": {"assets/logo.svg", true},
	}
	for in, tc := range cases {
		got, ok := cleanFileName(in)
		require.Equal(t, tc.ok, ok, in)
		require.Equal(t, tc.want, got, in)
	}
}
