// Package markup turns rendered content into text suited to terminals and
// tool output.
package markup

import (
	"mime"
	"strings"

	html2md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/mackee/go-readability"
	"golang.org/x/net/html"
)

// Markdown converts content of the given content type into Markdown.
// Non-HTML content is returned unchanged.
func Markdown(content, contentType string) (string, error) {
	if !IsHTML(contentType) {
		return content, nil
	}

	// Whole documents go through readability first so navigation and
	// boilerplate are dropped; fragments are converted as they are.
	if isDocument(content) {
		article, err := readability.Extract(content, readability.DefaultOptions())
		if err == nil && article.Root != nil {
			return readability.ToMarkdown(article.Root), nil
		}
	}

	converter := html2md.NewConverter("", true, &html2md.Options{})
	md, err := converter.ConvertString(content)
	if err != nil {
		return "", err
	}
	return md, nil
}

// IsHTML reports whether contentType denotes HTML
func IsHTML(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// Title returns the <title> of an HTML document, or the text of its first
// <h1> when there is none
func Title(content string) string {
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return ""
	}

	var title, heading string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if title != "" {
			return
		}
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				title = strings.TrimSpace(text(n))
				return
			case "h1":
				if heading == "" {
					heading = strings.TrimSpace(text(n))
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if title != "" {
		return title
	}
	return heading
}

func text(n *html.Node) string {
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
	return sb.String()
}

func isDocument(content string) bool {
	head := strings.ToLower(content[:min(len(content), 512)])
	return strings.Contains(head, "<html") || strings.Contains(head, "<!doctype html")
}
