package crawler

import (
	"errors"
	"time"
)

// Config controls crawl politeness and limits.
type Config struct {
	// UserAgent is sent with every request.
	UserAgent string

	// AgentTokens select the robots.txt groups that apply to this crawler.
	// A group applies when one of its user agents is "*" or contains a token,
	// compared case-insensitively.
	// Default: ["bot"]
	AgentTokens []string

	// PageTimeout bounds each page fetch.
	// Default: 10s
	PageTimeout time.Duration

	// RobotsTimeout bounds robots.txt and sitemap.xml fetches.
	// Default: 5s
	RobotsTimeout time.Duration

	// RequestInterval is the minimum spacing between page fetches of one
	// crawl. Zero disables rate limiting.
	// Default: 250ms
	RequestInterval time.Duration

	// MaxBodyBytes caps how much of a response is read.
	// Default: 5 MiB
	MaxBodyBytes int64

	// MinContentChars is the extracted text length a page must exceed to
	// be kept.
	// Default: 100
	MinContentChars int

	// DefaultMaxPages applies when a crawl is started without a page bound.
	// Default: 50
	DefaultMaxPages int
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithUserAgent sets the User-Agent header.
func WithUserAgent(userAgent string) ConfigOption {
	return func(c *Config) {
		c.UserAgent = userAgent
	}
}

// WithAgentTokens sets the robots.txt agent tokens.
func WithAgentTokens(tokens ...string) ConfigOption {
	return func(c *Config) {
		c.AgentTokens = tokens
	}
}

// WithPageTimeout sets the page fetch timeout.
func WithPageTimeout(timeout time.Duration) ConfigOption {
	return func(c *Config) {
		c.PageTimeout = timeout
	}
}

// WithRobotsTimeout sets the robots.txt and sitemap.xml fetch timeout.
func WithRobotsTimeout(timeout time.Duration) ConfigOption {
	return func(c *Config) {
		c.RobotsTimeout = timeout
	}
}

// WithRequestInterval sets the minimum spacing between page fetches.
func WithRequestInterval(interval time.Duration) ConfigOption {
	return func(c *Config) {
		c.RequestInterval = interval
	}
}

// WithMaxBodyBytes sets the response size cap.
func WithMaxBodyBytes(n int64) ConfigOption {
	return func(c *Config) {
		c.MaxBodyBytes = n
	}
}

// WithMinContentChars sets the minimum extracted text length of a kept page.
func WithMinContentChars(n int) ConfigOption {
	return func(c *Config) {
		c.MinContentChars = n
	}
}

// WithDefaultMaxPages sets the page bound used when a crawl doesn't supply one.
func WithDefaultMaxPages(n int) ConfigOption {
	return func(c *Config) {
		c.DefaultMaxPages = n
	}
}

// DefaultConfig returns a Config with polite defaults.
func DefaultConfig() *Config {
	return &Config{
		UserAgent:       "KnowbotCrawler/1.0 (+https://github.com/poiesic/knowbot)",
		AgentTokens:     []string{"bot"},
		PageTimeout:     10 * time.Second,
		RobotsTimeout:   5 * time.Second,
		RequestInterval: 250 * time.Millisecond,
		MaxBodyBytes:    5 << 20,
		MinContentChars: 100,
		DefaultMaxPages: 50,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.UserAgent == "" {
		return errors.New("crawler config: UserAgent is required")
	}
	if c.PageTimeout <= 0 {
		return errors.New("crawler config: PageTimeout must be positive")
	}
	if c.RobotsTimeout <= 0 {
		return errors.New("crawler config: RobotsTimeout must be positive")
	}
	if c.RequestInterval < 0 {
		return errors.New("crawler config: RequestInterval cannot be negative")
	}
	if c.MaxBodyBytes <= 0 {
		return errors.New("crawler config: MaxBodyBytes must be positive")
	}
	if c.MinContentChars < 0 {
		return errors.New("crawler config: MinContentChars cannot be negative")
	}
	if c.DefaultMaxPages <= 0 {
		return errors.New("crawler config: DefaultMaxPages must be positive")
	}
	return nil
}
