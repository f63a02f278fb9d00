package docparse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/poiesic/knowbot/core"
)

const (
	// DefaultLoadTimeout bounds a document download.
	DefaultLoadTimeout = 20 * time.Second
	// DefaultMaxDocumentBytes caps the size of a loaded document.
	DefaultMaxDocumentBytes = 20 << 20
)

// Blob is a loaded document before parsing.
type Blob struct {
	Data     []byte
	Name     string
	MimeType string // From the server's Content-Type; empty for local files
}

// Loader reads documents from http(s) URLs or local paths.
type Loader struct {
	client   *http.Client
	timeout  time.Duration
	maxBytes int64
	logger   *slog.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithHTTPClient sets the client used for downloads.
func WithHTTPClient(client *http.Client) LoaderOption {
	return func(l *Loader) {
		if client != nil {
			l.client = client
		}
	}
}

// WithLoadTimeout sets the download timeout.
func WithLoadTimeout(timeout time.Duration) LoaderOption {
	return func(l *Loader) {
		if timeout > 0 {
			l.timeout = timeout
		}
	}
}

// WithMaxDocumentBytes sets the document size cap.
func WithMaxDocumentBytes(n int64) LoaderOption {
	return func(l *Loader) {
		if n > 0 {
			l.maxBytes = n
		}
	}
}

// NewLoader creates a Loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		client:   http.DefaultClient,
		timeout:  DefaultLoadTimeout,
		maxBytes: DefaultMaxDocumentBytes,
		logger:   slog.Default().With("component", "docparse-loader"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads the document at locator, an http(s) URL or a file path.
// Failures wrap core.ErrDocumentParse.
func (l *Loader) Load(ctx context.Context, locator string) (*Blob, error) {
	if u, err := url.Parse(locator); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return l.download(ctx, u)
	}
	return l.readFile(locator)
}

func (l *Loader) download(ctx context.Context, u *url.URL) (*Blob, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrDocumentParse, err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		cause := core.ErrFetchFailed
		if errors.Is(err, context.DeadlineExceeded) {
			cause = core.ErrFetchTimeout
		}
		return nil, fmt.Errorf("%w: %w: %w", core.ErrDocumentParse, cause, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %w: %s returned HTTP %d", core.ErrDocumentParse, core.ErrFetchFailed, u, resp.StatusCode)
	}
	data, err := l.readAll(resp.Body)
	if err != nil {
		return nil, err
	}

	l.logger.Debug("document downloaded", "url", u.String(), "bytes", len(data))
	return &Blob{
		Data:     data,
		Name:     path.Base(u.Path),
		MimeType: resp.Header.Get("Content-Type"),
	}, nil
}

func (l *Loader) readFile(name string) (*Blob, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrDocumentParse, err)
	}
	defer f.Close()

	data, err := l.readAll(f)
	if err != nil {
		return nil, err
	}
	return &Blob{Data: data, Name: filepath.Base(name)}, nil
}

func (l *Loader) readAll(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, l.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrDocumentParse, err)
	}
	if int64(len(data)) > l.maxBytes {
		return nil, fmt.Errorf("%w: document is larger than %d bytes", core.ErrDocumentParse, l.maxBytes)
	}
	return data, nil
}
