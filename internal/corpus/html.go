package corpus

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// ParseHTML extracts entry metadata from an HTML document: the <title>
// element and the "tags" and "related" <meta> elements.
func ParseHTML(content string) (Metadata, error) {
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return Metadata{}, fmt.Errorf("parse html: %w", err)
	}

	var meta Metadata
	var extract func(*html.Node)

	extract = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if meta.Title == "" {
					meta.Title = textContent(n)
				}
				return
			case "meta":
				meta.set(attr(n, "name"), attr(n, "content"))
				return
			case "body":
				// Metadata lives in the head.
				return
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}

	extract(doc)
	return meta, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)

	// Collapse whitespace
	return strings.Join(strings.Fields(sb.String()), " ")
}
