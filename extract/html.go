// Package extract converts raw wiki page bodies (storage-format HTML) into
// plain text suitable for chunking, and builds the provenance header that
// is prepended to every ingested document.
package extract

import (
	"html"
	"regexp"
	"strings"

	"github.com/quarry-ai/quarry/core"
)

// Pre-compiled regular expressions for HTML stripping.
var (
	scriptTag     = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleTag      = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	headTag       = regexp.MustCompile(`(?is)<head[^>]*>.*?</head>`)
	htmlComments  = regexp.MustCompile(`(?s)<!--.*?-->`)
	blockElements = regexp.MustCompile(`(?i)</(p|div|h[1-6]|li|tr|blockquote|pre|table|section)>`)
	brTags        = regexp.MustCompile(`(?i)<br\s*/?>`)
	allTags       = regexp.MustCompile(`<[^>]+>`)
	multiSpaces   = regexp.MustCompile(`[ \t]+`)
	multiNewlines = regexp.MustCompile(`\n{3,}`)
)

// Text strips HTML from a page body, returning plain text. Script, style
// and head sections are removed entirely; block-element closes and <br>
// become newlines; entities are decoded; whitespace is collapsed.
// An empty result means the page has no ingestible content.
func Text(raw string) string {
	if raw == "" {
		return ""
	}

	s := scriptTag.ReplaceAllString(raw, "")
	s = styleTag.ReplaceAllString(s, "")
	s = headTag.ReplaceAllString(s, "")
	s = htmlComments.ReplaceAllString(s, "")
	s = brTags.ReplaceAllString(s, "\n")
	s = blockElements.ReplaceAllString(s, "\n")
	s = allTags.ReplaceAllString(s, "")
	s = html.UnescapeString(s)

	s = multiSpaces.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	s = strings.Join(lines, "\n")
	s = multiNewlines.ReplaceAllString(s, "\n\n")

	return strings.TrimSpace(s)
}

// maxAncestorDepth caps path reconstruction against parent-id cycles.
const maxAncestorDepth = 10

// AncestorPath reconstructs the page's hierarchy path (root first) from
// parent-id pointers into the given lookup. The page itself is excluded.
func AncestorPath(page *core.Page, lookup map[string]*core.Page) []string {
	if page == nil || lookup == nil {
		return nil
	}

	var path []string
	parentID := page.ParentID
	for depth := 0; parentID != "" && depth < maxAncestorDepth; depth++ {
		parent, ok := lookup[parentID]
		if !ok {
			break
		}
		path = append([]string{parent.Title}, path...)
		parentID = parent.ParentID
	}
	return path
}

// Header builds the provenance preamble prepended to a page's extracted
// text before chunking, so retrieved chunks carry their origin.
func Header(page *core.Page, spaceName string, path []string, pageURL string) string {
	var b strings.Builder
	b.WriteString("---\n")
	b.WriteString("Source: Confluence - " + spaceName + " (" + page.SpaceKey + ")\n")
	b.WriteString("Title: " + page.Title + "\n")
	b.WriteString("URL: " + pageURL + "\n")
	if len(path) > 0 {
		b.WriteString("Path: " + spaceName + " > " + strings.Join(path, " > ") + " > " + page.Title + "\n")
	} else {
		b.WriteString("Path: " + spaceName + " > " + page.Title + "\n")
	}
	b.WriteString("Last Updated: " + page.Updated + "\n")
	b.WriteString("---\n\n")
	return b.String()
}

// PageURL renders the canonical view URL for a page id.
func PageURL(baseURL, pageID string) string {
	return strings.TrimRight(baseURL, "/") + "/pages/viewpage.action?pageId=" + pageID
}
