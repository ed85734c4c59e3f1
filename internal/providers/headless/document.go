package headless

import (
	"io"
	"mime"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"github.com/microcosm-cc/bluemonday"
	"github.com/saintfish/chardet"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// MaxDocumentSize limits the markup parsed per page to 10MB.
const MaxDocumentSize = 10 * 1024 * 1024

// sanitizer strips active content from the markup scripts can read back.
var sanitizer = bluemonday.UGCPolicy()

// pageDocument is what a loaded page exposes to scripts and events.
type pageDocument struct {
	Title    string
	Text     string
	HTML     string
	Favicons []string
}

// parseDocument extracts the title, text, sanitized body markup and
// favicon links of a page. Non-HTML bodies are exposed as plain text.
func parseDocument(page *Page) pageDocument {
	if page.Body == "" {
		return pageDocument{}
	}
	if page.ContentType != "" && !strings.Contains(page.ContentType, "html") {
		return pageDocument{Text: page.Body}
	}

	body := page.Body
	if len(body) > MaxDocumentSize {
		body = body[:MaxDocumentSize]
	}
	root, err := parseHTML(body, page.ContentType)
	if err != nil {
		return pageDocument{Text: page.Body}
	}

	doc := goquery.NewDocumentFromNode(root)
	out := pageDocument{
		Title:    strings.TrimSpace(doc.Find("title").First().Text()),
		Text:     strings.TrimSpace(doc.Find("body").Text()),
		Favicons: favicons(root, page.URL),
	}
	if inner, err := doc.Find("body").Html(); err == nil {
		out.HTML = sanitizer.Sanitize(inner)
	}
	return out
}

// parseHTML converts body to UTF-8 when needed, preferring the declared
// charset and falling back to detection.
func parseHTML(body, contentType string) (*html.Node, error) {
	var r io.Reader = strings.NewReader(body)
	if !utf8.ValidString(body) {
		if _, params, err := mime.ParseMediaType(contentType); err != nil || params["charset"] == "" {
			contentType = "text/html; charset=" + detectCharset([]byte(body))
		}
		if decoded, err := charset.NewReader(r, contentType); err == nil {
			r = decoded
		}
	}
	return htmlquery.Parse(r)
}

// detectCharset guesses the charset of data
func detectCharset(data []byte) string {
	detector := chardet.NewTextDetector()
	result, err := detector.DetectBest(data)
	if err != nil || result == nil {
		return "utf-8"
	}
	return strings.ToLower(result.Charset)
}

// favicons returns the absolute icon URLs a document links to.
func favicons(root *html.Node, pageURL string) []string {
	nodes, err := htmlquery.QueryAll(root, "//link[contains(@rel, 'icon')]")
	if err != nil || len(nodes) == 0 {
		return nil
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	var out []string
	for _, node := range nodes {
		href := strings.TrimSpace(htmlquery.SelectAttr(node, "href"))
		if href == "" {
			continue
		}
		ref, err := url.Parse(href)
		if err != nil {
			continue
		}
		if !ref.IsAbs() && base.Opaque != "" {
			continue
		}
		out = append(out, base.ResolveReference(ref).String())
	}
	return out
}
