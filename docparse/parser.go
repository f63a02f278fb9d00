package docparse

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/poiesic/knowbot/core"
	"github.com/poiesic/knowbot/extract"
)

// Supported MIME types.
const (
	MimeText     = "text/plain"
	MimeMarkdown = "text/markdown"
	MimeHTML     = "text/html"
	MimeXHTML    = "application/xhtml+xml"
	MimePDF      = "application/pdf"
)

var extensionTypes = map[string]string{
	".txt":      MimeText,
	".text":     MimeText,
	".md":       MimeMarkdown,
	".markdown": MimeMarkdown,
	".htm":      MimeHTML,
	".html":     MimeHTML,
	".xhtml":    MimeXHTML,
	".pdf":      MimePDF,
}

// Document is the text extracted from one uploaded file.
type Document struct {
	Name     string
	MimeType string
	Title    string
	Content  string
	Pages    int
}

// Parser extracts text from documents. It is safe for concurrent use.
type Parser struct {
	extractor *extract.Extractor
	logger    *slog.Logger
}

// NewParser creates a Parser.
func NewParser() *Parser {
	return &Parser{
		extractor: extract.New(),
		logger:    slog.Default().With("component", "docparse"),
	}
}

// Parse extracts the text of data. An empty or generic mimeType is resolved
// from name's extension, then by sniffing the content.
func (p *Parser) Parse(ctx context.Context, data []byte, name, mimeType string) (*Document, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", core.ErrDocumentParse, name)
	}

	mt := ResolveMimeType(data, name, mimeType)
	doc := &Document{Name: name, MimeType: mt, Pages: 1}

	switch mt {
	case MimeText, MimeMarkdown, "text/x-markdown":
		doc.Content = strings.ToValidUTF8(string(data), "")
	case MimeHTML, MimeXHTML:
		page, err := p.extractor.Extract(data, documentURL(name))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", core.ErrDocumentParse, err)
		}
		doc.Title = page.Title
		doc.Content = page.Content
	case MimePDF:
		content, pages, err := parsePDF(ctx, data)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", core.ErrDocumentParse, name, err)
		}
		doc.Content = content
		doc.Pages = pages
	default:
		return nil, fmt.Errorf("%w: unsupported document type %q", core.ErrDocumentParse, mt)
	}

	doc.Content = strings.TrimSpace(doc.Content)
	if doc.Content == "" {
		return nil, fmt.Errorf("%w: no text content found in %s", core.ErrDocumentParse, name)
	}
	p.logger.Debug("document parsed", "name", name, "mime_type", mt, "pages", doc.Pages, "chars", len(doc.Content))
	return doc, nil
}

// ResolveMimeType returns the media type to parse data as.
func ResolveMimeType(data []byte, name, mimeType string) string {
	if mimeType != "" {
		if mt, _, err := mime.ParseMediaType(mimeType); err == nil && mt != "application/octet-stream" {
			return strings.ToLower(mt)
		}
	}
	if mt, ok := extensionTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return mt
	}
	mt, _, _ := mime.ParseMediaType(http.DetectContentType(data))
	return mt
}

func documentURL(name string) *url.URL {
	if u, err := url.Parse(name); err == nil && u.Scheme != "" && u.Host != "" {
		return u
	}
	return &url.URL{Scheme: "file", Path: "/" + strings.TrimPrefix(filepath.ToSlash(name), "/")}
}
