package browser

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// CleanedHTML is the output of cleanHTML: page noise stripped, semantic
// structure and targeting attributes preserved.
type CleanedHTML struct {
	HTML        string
	Title       string
	Description string
	Truncated   bool
}

// cleanHTML parses raw page HTML and rebuilds it without scripts, styles, and
// other noise, truncating the text budget at maxLength characters.
func cleanHTML(rawHTML string, maxLength int) (*CleanedHTML, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	c := &htmlCleaner{maxLength: maxLength}
	result := &CleanedHTML{
		Title:       findTitle(doc),
		Description: findMetaDescription(doc),
	}
	result.Truncated = c.walk(doc, 0)
	result.HTML = c.out.String()
	return result, nil
}

type htmlCleaner struct {
	out       strings.Builder
	length    int
	maxLength int
}

// walk emits a node and its subtree, returning true once the length budget
// is exhausted.
func (c *htmlCleaner) walk(n *html.Node, depth int) bool {
	if c.length >= c.maxLength {
		return true
	}

	switch n.Type {
	case html.CommentNode:
		return false
	case html.TextNode:
		return c.writeText(n.Data)
	case html.ElementNode:
		tag := strings.ToLower(n.Data)
		if noiseElements[tag] {
			return false
		}
		return c.writeElement(n, tag, depth)
	default:
		return c.walkChildren(n, depth)
	}
}

func (c *htmlCleaner) walkChildren(n *html.Node, depth int) bool {
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if c.walk(child, depth) {
			return true
		}
	}
	return false
}

func (c *htmlCleaner) writeText(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	if c.length+len(text) > c.maxLength {
		c.out.WriteString(truncate(text, c.maxLength-c.length))
		c.out.WriteString("...")
		c.length = c.maxLength
		return true
	}
	c.out.WriteString(text)
	c.length += len(text)
	return false
}

func (c *htmlCleaner) writeElement(n *html.Node, tag string, depth int) bool {
	if depth > 0 && blockElements[tag] {
		c.out.WriteString("\n")
		c.out.WriteString(strings.Repeat("  ", depth))
	}

	c.out.WriteString("<")
	c.out.WriteString(tag)
	for _, attr := range n.Attr {
		if keepAttribute(tag, attr.Key) {
			fmt.Fprintf(&c.out, ` %s="%s"`, attr.Key, html.EscapeString(attr.Val))
		}
	}
	c.out.WriteString(">")
	c.length += len(tag) + 2

	truncated := c.walkChildren(n, depth+1)

	if !voidElements[tag] {
		if blockElements[tag] {
			c.out.WriteString("\n")
			c.out.WriteString(strings.Repeat("  ", depth))
		}
		fmt.Fprintf(&c.out, "</%s>", tag)
		c.length += len(tag) + 3
	}
	return truncated
}

var noiseElements = map[string]bool{
	"script": true, "style": true, "noscript": true,
	"iframe": true, "embed": true, "object": true, "svg": true,
}

var blockElements = map[string]bool{
	"div": true, "p": true, "section": true, "article": true,
	"header": true, "footer": true, "nav": true, "main": true, "aside": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"ul": true, "ol": true, "li": true,
	"table": true, "tr": true, "td": true, "th": true,
	"form": true, "fieldset": true, "blockquote": true, "pre": true,
}

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// keepAttribute reports whether an attribute is worth preserving for element
// targeting and analysis.
func keepAttribute(tag, name string) bool {
	name = strings.ToLower(name)

	switch name {
	case "id", "class", "role", "aria-label", "aria-describedby":
		return true
	}
	if strings.HasPrefix(name, "data-") {
		return true
	}

	switch tag {
	case "a":
		return name == "href" || name == "target"
	case "img":
		return name == "src" || name == "alt"
	case "input", "textarea", "select":
		return name == "name" || name == "type" || name == "placeholder" || name == "value"
	case "button":
		return name == "type" || name == "name"
	case "form":
		return name == "action" || name == "method"
	}
	return false
}

// findTitle returns the document's <title> text.
func findTitle(doc *html.Node) string {
	var title string
	var traverse func(*html.Node) bool
	traverse = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "title" {
			if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				title = strings.TrimSpace(n.FirstChild.Data)
			}
			return true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if traverse(c) {
				return true
			}
		}
		return false
	}
	traverse(doc)
	return title
}

// findMetaDescription returns the content of <meta name="description">.
func findMetaDescription(doc *html.Node) string {
	var desc string
	var traverse func(*html.Node) bool
	traverse = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "meta" {
			var isDescription bool
			var content string
			for _, attr := range n.Attr {
				if attr.Key == "name" && attr.Val == "description" {
					isDescription = true
				}
				if attr.Key == "content" {
					content = attr.Val
				}
			}
			if isDescription && content != "" {
				desc = strings.TrimSpace(content)
				return true
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if traverse(c) {
				return true
			}
		}
		return false
	}
	traverse(doc)
	return desc
}
