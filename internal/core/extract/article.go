package extract

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// Article is the readable text pulled out of a fetched page.
type Article struct {
	Title string
	Text  string
}

// Extractor fetches a URL and reduces it to readable article text.
type Extractor struct {
	fetcher *WebFetcher
}

func NewExtractor(fetcher *WebFetcher) *Extractor {
	return &Extractor{fetcher: fetcher}
}

// Extract fetches the URL and runs readability over the response. When
// readability cannot find an article body, it falls back to stripping tags
// from the raw HTML so the caller still gets something analyzable.
func (e *Extractor) Extract(ctx context.Context, rawURL string) (*Article, error) {
	body, err := e.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url %s: %w", rawURL, err)
	}

	article, err := readability.FromReader(bytes.NewReader(body), parsed)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		return &Article{
			Title: strings.TrimSpace(article.Title),
			Text:  strings.TrimSpace(article.TextContent),
		}, nil
	}

	text, title := stripTags(body)
	if text == "" {
		return nil, fmt.Errorf("no readable content at %s", rawURL)
	}

	return &Article{Title: title, Text: text}, nil
}

// stripTags walks the HTML tree collecting visible text, skipping script and
// style subtrees. Returns the collapsed text and the <title> if present.
func stripTags(body []byte) (string, string) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return "", ""
	}

	var (
		b     strings.Builder
		title string
	)

	var walk func(n *html.Node)

	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			case "title":
				if title == "" && n.FirstChild != nil {
					title = strings.TrimSpace(n.FirstChild.Data)
				}
			}
		}

		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(doc)

	return strings.Join(strings.Fields(b.String()), " "), title
}
