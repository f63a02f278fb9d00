package chunker

import (
	"log/slog"
	"maps"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/poiesic/knowbot/core"
	"github.com/tmc/langchaingo/textsplitter"
)

const charsPerToken = 4

// separators are tried in order: paragraph, line, sentence, word, character.
var separators = []string{"\n\n", "\n", ". ", "? ", "! ", " ", ""}

var headingPattern = regexp.MustCompile(`^#{1,6}\s+(.+?)\s*#*$`)

// Piece is one chunk of text with its provenance.
type Piece struct {
	Content    string
	Metadata   map[string]string
	TokenCount int
}

// Chunker splits text into Pieces. It is safe for concurrent use.
type Chunker struct {
	config   *Config
	splitter textsplitter.RecursiveCharacter
	logger   *slog.Logger
}

// New creates a Chunker. A nil config uses DefaultConfig.
func New(config *Config) (*Chunker, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{
		config: config,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(config.chunkSize()),
			textsplitter.WithChunkOverlap(config.OverlapChars),
			textsplitter.WithSeparators(separators),
			textsplitter.WithLenFunc(utf8.RuneCountInString),
		),
		logger: slog.Default().With("component", "chunker"),
	}, nil
}

// Chunk normalizes text and splits it into pieces. Every piece carries a
// copy of provenance plus the heading of its section, if any.
// Empty or whitespace-only text yields no pieces.
func (c *Chunker) Chunk(text string, provenance map[string]string) []Piece {
	pieces := []Piece{}
	for _, sec := range splitSections(Normalize(text)) {
		for _, content := range c.split(sec.body) {
			metadata := maps.Clone(provenance)
			if metadata == nil {
				metadata = make(map[string]string, 1)
			}
			if sec.heading != "" {
				metadata[core.MetaSection] = sec.heading
			}
			pieces = append(pieces, Piece{
				Content:    content,
				Metadata:   metadata,
				TokenCount: EstimateTokens(content),
			})
		}
	}
	return pieces
}

func (c *Chunker) split(body string) []string {
	parts, err := c.splitter.SplitText(body)
	if err != nil {
		c.logger.Warn("recursive split failed, cutting at the size limit", "err", err)
		parts = []string{body}
	}

	out := make([]string, 0, len(parts))
	for _, part := range parts {
		for _, cut := range hardCut(strings.TrimSpace(part), c.config.MaxChars) {
			if cut != "" {
				out = append(out, cut)
			}
		}
	}
	return out
}

type section struct {
	heading string
	body    string
}

// splitSections divides normalized text at Markdown headings. The heading
// line stays at the top of its section's body. Sections without any text
// besides their heading are dropped.
func splitSections(text string) []section {
	if text == "" {
		return nil
	}

	var sections []section
	current := section{}
	var lines []string
	hasText := false
	flush := func() {
		if hasText {
			current.body = strings.TrimSpace(strings.Join(lines, "\n"))
			sections = append(sections, current)
		}
	}

	for line := range strings.SplitSeq(text, "\n") {
		if m := headingPattern.FindStringSubmatch(line); m != nil {
			flush()
			current = section{heading: m[1]}
			lines = []string{line}
			hasText = false
			continue
		}
		lines = append(lines, line)
		if line != "" {
			hasText = true
		}
	}
	flush()
	return sections
}

// hardCut splits text into pieces of at most limit runes, breaking at the
// last whitespace in the second half of each window when there is one.
func hardCut(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	var out []string
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if unicode.IsSpace(runes[i]) {
				cut = i
				break
			}
		}
		out = append(out, strings.TrimSpace(string(runes[:cut])))
		runes = []rune(strings.TrimLeftFunc(string(runes[cut:]), unicode.IsSpace))
	}
	if len(runes) > 0 {
		out = append(out, string(runes))
	}
	return out
}
