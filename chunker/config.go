package chunker

import "errors"

// Config bounds the size of produced pieces.
type Config struct {
	// TargetTokens is the approximate token budget of one piece.
	// Default: 200
	TargetTokens int

	// MaxChars is the hard upper bound on piece length, in runes.
	// Default: 1000
	MaxChars int

	// OverlapChars is how much trailing text of one piece is repeated at
	// the start of the next when a section is split.
	// Default: 100
	OverlapChars int
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithTargetTokens sets the approximate token budget per piece.
func WithTargetTokens(tokens int) ConfigOption {
	return func(c *Config) {
		c.TargetTokens = tokens
	}
}

// WithMaxChars sets the hard piece length limit.
func WithMaxChars(chars int) ConfigOption {
	return func(c *Config) {
		c.MaxChars = chars
	}
}

// WithOverlapChars sets the overlap between consecutive pieces of a section.
func WithOverlapChars(chars int) ConfigOption {
	return func(c *Config) {
		c.OverlapChars = chars
	}
}

// DefaultConfig returns the default chunking bounds.
func DefaultConfig() *Config {
	return &Config{
		TargetTokens: 200,
		MaxChars:     1000,
		OverlapChars: 100,
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

// chunkSize is the splitter's target length in runes.
func (c *Config) chunkSize() int {
	return min(c.MaxChars, c.TargetTokens*charsPerToken)
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.TargetTokens <= 0 {
		return errors.New("chunker config: TargetTokens must be positive")
	}
	if c.MaxChars <= 0 {
		return errors.New("chunker config: MaxChars must be positive")
	}
	if c.OverlapChars < 0 {
		return errors.New("chunker config: OverlapChars cannot be negative")
	}
	if c.OverlapChars >= c.chunkSize() {
		return errors.New("chunker config: OverlapChars must be smaller than the chunk size")
	}
	return nil
}
