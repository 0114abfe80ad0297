package ingestion

import (
	"fmt"
	"strings"

	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/textutil"
	"golang.org/x/net/html"
)

var skippedElements = map[string]struct{}{
	"script":   {},
	"style":    {},
	"noscript": {},
	"template": {},
	"svg":      {},
}

// blockElements end a run of text so that adjacent blocks do not fuse into one word.
var blockElements = map[string]struct{}{
	"p": {}, "div": {}, "br": {}, "li": {}, "tr": {}, "section": {}, "article": {},
	"h1": {}, "h2": {}, "h3": {}, "h4": {}, "h5": {}, "h6": {}, "header": {}, "footer": {},
}

// ParseHTML extracts the readable text and title from an HTML page.
func ParseHTML(source string) (Document, error) {
	root, err := html.Parse(strings.NewReader(source))
	if err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrUnreadableDocument, err)
	}

	var builder strings.Builder
	collectText(root, &builder)

	return Document{
		Title: pageTitle(root),
		Text:  textutil.CollapseWhitespace(builder.String()),
	}, nil
}

func collectText(node *html.Node, builder *strings.Builder) {
	if node.Type == html.ElementNode {
		if _, skip := skippedElements[node.Data]; skip {
			return
		}
		if node.Data == "title" || node.Data == "head" {
			return
		}
	}
	if node.Type == html.TextNode {
		builder.WriteString(node.Data)
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		collectText(child, builder)
	}
	if node.Type == html.ElementNode {
		if _, block := blockElements[node.Data]; block {
			builder.WriteString("\n")
		}
	}
}

// pageTitle prefers <title>, then the first <h1>, then the first <h2>.
func pageTitle(root *html.Node) string {
	for _, element := range []string{"title", "h1", "h2"} {
		if node := findElement(root, element); node != nil {
			if title := textutil.CollapseWhitespace(textContent(node)); title != "" {
				return title
			}
		}
	}
	return ""
}

func findElement(node *html.Node, name string) *html.Node {
	if node.Type == html.ElementNode && node.Data == name {
		return node
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if found := findElement(child, name); found != nil {
			return found
		}
	}
	return nil
}

func textContent(node *html.Node) string {
	if node.Type == html.TextNode {
		return node.Data
	}
	var builder strings.Builder
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		builder.WriteString(textContent(child))
	}
	return builder.String()
}
