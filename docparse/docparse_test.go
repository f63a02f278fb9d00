package docparse

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/knowbot/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Text(t *testing.T) {
	doc, err := NewParser().Parse(t.Context(), []byte("  Opening hours: 9-5.\n"), "hours.txt", "")
	require.NoError(t, err)
	assert.Equal(t, "Opening hours: 9-5.", doc.Content)
	assert.Equal(t, MimeText, doc.MimeType)
	assert.Equal(t, "hours.txt", doc.Name)
	assert.Equal(t, 1, doc.Pages)
}

func TestParse_Markdown(t *testing.T) {
	doc, err := NewParser().Parse(t.Context(), []byte("# FAQ\n\nWe ship worldwide."), "faq.md", "")
	require.NoError(t, err)
	assert.Equal(t, MimeMarkdown, doc.MimeType)
	assert.Equal(t, "# FAQ\n\nWe ship worldwide.", doc.Content)
}

func TestParse_HTML(t *testing.T) {
	html := `<html><head><title>Guide</title><script>x()</script></head><body><h2>Setup</h2><p>Plug it in.</p></body></html>`
	doc, err := NewParser().Parse(t.Context(), []byte(html), "guide.bin", "text/html; charset=utf-8")
	require.NoError(t, err)
	assert.Equal(t, MimeHTML, doc.MimeType)
	assert.Equal(t, "Guide", doc.Title)
	assert.Contains(t, doc.Content, "## Setup")
	assert.Contains(t, doc.Content, "Plug it in.")
	assert.NotContains(t, doc.Content, "x()")
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		fileName string
		mimeType string
	}{
		{"empty", nil, "a.txt", ""},
		{"whitespace only", []byte(" \n\t "), "a.txt", ""},
		{"unsupported type", []byte{0x50, 0x4b, 0x03, 0x04}, "a.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
		{"corrupt pdf", []byte("%PDF-1.4 not really"), "a.pdf", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParser().Parse(t.Context(), tt.data, tt.fileName, tt.mimeType)
			assert.ErrorIs(t, err, core.ErrDocumentParse)
		})
	}
}

func TestResolveMimeType(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		fileName string
		mimeType string
		want     string
	}{
		{"explicit wins", "x", "a.pdf", "text/plain", MimeText},
		{"parameters stripped", "x", "a", "TEXT/HTML; charset=utf-8", MimeHTML},
		{"octet-stream falls back to extension", "x", "a.md", "application/octet-stream", MimeMarkdown},
		{"extension", "x", "REPORT.PDF", "", MimePDF},
		{"sniffed html", "<!DOCTYPE html><html></html>", "upload", "", MimeHTML},
		{"sniffed text", "just words", "upload", "", MimeText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveMimeType([]byte(tt.data), tt.fileName, tt.mimeType))
		})
	}
}

func TestTextFromContentStream(t *testing.T) {
	stream := []byte("BT\n/F1 12 Tf\n72 712 Td\n(Hello World) Tj\nT*\n[(Sec) -20 (ond line)] TJ\n(Third\\051 \\(ok\\)) '\nET\nBT\n(Next\\040block) Tj\nET\n")
	assert.Equal(t, "Hello World\nSecond line\nThird) (ok)\n\nNext block", textFromContentStream(stream))
}

func TestDecodePDFString(t *testing.T) {
	assert.Equal(t, "a(b)c", decodePDFString([]byte(`a\(b\)c`)))
	assert.Equal(t, "tab\there", decodePDFString([]byte(`tab\there`)))
	assert.Equal(t, "A B", decodePDFString([]byte(`\101\040B`)))
	assert.Equal(t, `back\`, decodePDFString([]byte(`back\\`)))
}

func TestLoader_HTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/docs/manual.txt":
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			fmt.Fprint(w, "manual contents")
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	loader := NewLoader()
	blob, err := loader.Load(t.Context(), server.URL+"/docs/manual.txt")
	require.NoError(t, err)
	assert.Equal(t, "manual.txt", blob.Name)
	assert.Equal(t, "text/plain; charset=utf-8", blob.MimeType)
	assert.Equal(t, "manual contents", string(blob.Data))

	_, err = loader.Load(t.Context(), server.URL+"/missing.pdf")
	assert.ErrorIs(t, err, core.ErrDocumentParse)
	assert.ErrorIs(t, err, core.ErrFetchFailed)
}

func TestLoader_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("# Notes"), 0o600))

	blob, err := NewLoader().Load(t.Context(), path)
	require.NoError(t, err)
	assert.Equal(t, "notes.md", blob.Name)
	assert.Empty(t, blob.MimeType)
	assert.Equal(t, "# Notes", string(blob.Data))

	_, err = NewLoader().Load(t.Context(), filepath.Join(t.TempDir(), "missing.txt"))
	assert.ErrorIs(t, err, core.ErrDocumentParse)
}

func TestLoader_SizeCap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.txt")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0o600))

	_, err := NewLoader(WithMaxDocumentBytes(4)).Load(t.Context(), path)
	assert.ErrorIs(t, err, core.ErrDocumentParse)
}
