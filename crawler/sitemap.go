package crawler

import (
	"context"
	"html"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// locPattern matches sitemap <loc> entries without a full XML parse, so a
// malformed sitemap still yields whatever entries it has.
var locPattern = regexp.MustCompile(`(?is)<loc>\s*(.*?)\s*</loc>`)

// Sitemap discovers crawl seeds from an origin's sitemap.xml.
type Sitemap struct {
	fetcher *fetcher
	config  *Config
	logger  *slog.Logger
}

// NewSitemap creates a sitemap resolver. A nil client uses a default one.
func NewSitemap(config *Config, client *http.Client) *Sitemap {
	return newSitemap(config, newFetcher(client, config), slog.Default())
}

func newSitemap(config *Config, f *fetcher, logger *slog.Logger) *Sitemap {
	return &Sitemap{
		fetcher: f,
		config:  config,
		logger:  logger.With("component", "sitemap"),
	}
}

// DiscoverURLs returns the same-origin URLs listed in {origin}/sitemap.xml,
// deduplicated and in document order. Any failure yields an empty slice.
func (s *Sitemap) DiscoverURLs(ctx context.Context, origin *url.URL) []string {
	origin = originOf(origin)
	resp, err := s.fetcher.get(ctx, origin.JoinPath("sitemap.xml"), s.config.RobotsTimeout)
	if err != nil {
		s.logger.Debug("no sitemap", "origin", origin.String(), "err", err)
		return []string{}
	}

	seen := make(map[string]bool)
	urls := []string{}
	for _, m := range locPattern.FindAllStringSubmatch(string(resp.body), -1) {
		loc, err := url.Parse(strings.TrimSpace(html.UnescapeString(m[1])))
		if err != nil || !sameOrigin(loc, origin) {
			continue
		}
		key := normalizeURL(loc)
		if !seen[key] {
			seen[key] = true
			urls = append(urls, key)
		}
	}
	s.logger.Debug("sitemap discovered", "origin", origin.String(), "urls", len(urls))
	return urls
}

func sameOrigin(u, origin *url.URL) bool {
	return strings.EqualFold(u.Scheme, origin.Scheme) && strings.EqualFold(u.Host, origin.Host)
}

// normalizeURL returns the crawl identity of u: lowercased scheme and host,
// no fragment and "/" for an empty path.
func normalizeURL(u *url.URL) string {
	n := *u
	n.Scheme = strings.ToLower(n.Scheme)
	n.Host = strings.ToLower(n.Host)
	n.Fragment = ""
	n.RawFragment = ""
	if n.Path == "" {
		n.Path = "/"
		n.RawPath = ""
	}
	return n.String()
}
