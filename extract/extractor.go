package extract

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/url"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/PuerkitoBio/goquery"
)

// ErrInvalidHTML is returned when a document can't be parsed at all.
var ErrInvalidHTML = errors.New("invalid html")

// noise lists elements that never carry page content.
const noise = "script, style, noscript, template, nav, footer, header, aside, svg, iframe, form, button, img, picture, video, audio"

// Page is the extracted form of one HTML document.
type Page struct {
	URL     string
	Title   string
	Content string
	Links   []string // Absolute http(s) URLs without fragments, in document order
}

// Extractor converts HTML documents into Pages. It is safe for concurrent use.
type Extractor struct {
	converter *converter.Converter
	logger    *slog.Logger
}

// New creates an Extractor.
func New() *Extractor {
	return &Extractor{
		converter: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
		logger: slog.Default().With("component", "extract"),
	}
}

// Extract parses document and returns its title, visible text and links.
// Relative links are resolved against baseURL, which should be the URL the
// document was finally served from.
func (e *Extractor) Extract(document []byte, baseURL *url.URL) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(document))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidHTML, err)
	}

	page := &Page{
		URL:   baseURL.String(),
		Title: title(doc),
		Links: links(doc, baseURL),
	}

	doc.Find(noise).Remove()
	content := mainContent(doc)
	// Link targets are already collected; keep only their text.
	content.Find("a").Each(func(_ int, a *goquery.Selection) {
		a.ReplaceWithHtml(html.EscapeString(a.Text()))
	})

	page.Content = e.toMarkdown(content, baseURL)
	return page, nil
}

func (e *Extractor) toMarkdown(content *goquery.Selection, baseURL *url.URL) string {
	fallback := collapseText(content.Text())
	markup, err := content.Html()
	if err != nil || strings.TrimSpace(markup) == "" {
		return fallback
	}
	result, err := e.converter.ConvertString(markup, converter.WithDomain(baseURL.String()))
	if err != nil || strings.TrimSpace(result) == "" {
		e.logger.Debug("markdown conversion failed, using plain text", "url", baseURL.String(), "err", err)
		return fallback
	}
	return strings.TrimSpace(result)
}

func title(doc *goquery.Document) string {
	if t := collapseText(doc.Find("title").First().Text()); t != "" {
		return t
	}
	return collapseText(doc.Find("h1").First().Text())
}

// mainContent prefers the page's main or article element over the whole body.
func mainContent(doc *goquery.Document) *goquery.Selection {
	for _, selector := range []string{"main", "[role=main]", "article"} {
		sel := doc.Find(selector).First()
		if sel.Length() > 0 && strings.TrimSpace(sel.Text()) != "" {
			return sel
		}
	}
	if body := doc.Find("body"); body.Length() > 0 {
		return body
	}
	return doc.Selection
}

func links(doc *goquery.Document, baseURL *url.URL) []string {
	seen := make(map[string]bool)
	out := []string{}
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := baseURL.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		abs.Fragment = ""
		abs.RawFragment = ""
		link := abs.String()
		if !seen[link] {
			seen[link] = true
			out = append(out, link)
		}
	})
	return out
}

func collapseText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
