package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/poiesic/knowbot/core"
)

const maxRedirects = 5

// response is a fully read HTTP response.
type response struct {
	finalURL    *url.URL
	status      int
	contentType string
	body        []byte
}

// fetcher performs bounded GET requests with the crawler's User-Agent.
type fetcher struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
}

func newFetcher(client *http.Client, config *Config) *fetcher {
	if client == nil {
		client = &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("too many redirects (%d)", len(via))
				}
				return nil
			},
		}
	}
	return &fetcher{
		client:    client,
		userAgent: config.UserAgent,
		maxBytes:  config.MaxBodyBytes,
	}
}

// get fetches target within timeout. Timeouts wrap core.ErrFetchTimeout and
// every other failure, including a non-2xx status, wraps core.ErrFetchFailed.
// The response is returned alongside a status error so callers can see
// where a redirect led.
func (f *fetcher) get(ctx context.Context, target *url.URL, timeout time.Duration) (*response, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrFetchFailed, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classify(target, err)
	}
	defer resp.Body.Close()

	result := &response{
		finalURL:    resp.Request.URL,
		status:      resp.StatusCode,
		contentType: resp.Header.Get("Content-Type"),
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return result, fmt.Errorf("%w: %s returned HTTP %d", core.ErrFetchFailed, target, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return result, classify(target, err)
	}
	if int64(len(body)) > f.maxBytes {
		return result, fmt.Errorf("%w: %s is larger than %d bytes", core.ErrFetchFailed, target, f.maxBytes)
	}
	result.body = body
	return result, nil
}

func classify(target *url.URL, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %s: %w", core.ErrFetchTimeout, target, err)
	}
	return fmt.Errorf("%w: %s: %w", core.ErrFetchFailed, target, err)
}

// mediaType returns the lowercased media type of a Content-Type header.
func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return mt
}

func isHTML(contentType string) bool {
	mt := mediaType(contentType)
	return mt == "text/html" || mt == "application/xhtml+xml"
}
