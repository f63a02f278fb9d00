package core

import (
	"errors"
	"testing"
)

func TestValidateBot(t *testing.T) {
	tests := []struct {
		name    string
		bot     *Bot
		wantErr error
	}{
		{name: "valid", bot: &Bot{Name: "Support", LeadThreshold: 0.4}},
		{name: "nil", bot: nil, wantErr: ErrInvalidBot},
		{name: "blank name", bot: &Bot{Name: "  "}, wantErr: ErrEmptyName},
		{name: "threshold above one", bot: &Bot{Name: "x", LeadThreshold: 1.5}, wantErr: ErrInvalidThreshold},
		{name: "negative max pages", bot: &Bot{Name: "x", MaxPages: -1}, wantErr: ErrInvalidBot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBot(tt.bot)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("ValidateBot() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateBot() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateSource(t *testing.T) {
	tests := []struct {
		name    string
		source  *Source
		wantErr error
	}{
		{name: "valid url", source: &Source{BotId: "b", Kind: SourceKindURL, Locator: "https://example.com"}},
		{name: "valid document path", source: &Source{BotId: "b", Kind: SourceKindDocument, Locator: "./docs/faq.md"}},
		{name: "nil", source: nil, wantErr: ErrInvalidSource},
		{name: "missing bot", source: &Source{Kind: SourceKindURL, Locator: "https://example.com"}, wantErr: ErrInvalidSource},
		{name: "bad kind", source: &Source{BotId: "b", Kind: "ftp", Locator: "x"}, wantErr: ErrInvalidSourceKind},
		{name: "relative url", source: &Source{BotId: "b", Kind: SourceKindURL, Locator: "/about"}, wantErr: ErrInvalidURL},
		{name: "bad status", source: &Source{BotId: "b", Kind: SourceKindURL, Locator: "https://x.io", Status: "done"}, wantErr: ErrInvalidSourceStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSource(tt.source)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("ValidateSource() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateSource() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateChunk(t *testing.T) {
	if err := ValidateChunk(&Chunk{BotId: "b", SourceId: "s", Content: "hi"}); err != nil {
		t.Fatalf("ValidateChunk() unexpected error: %v", err)
	}
	if err := ValidateChunk(&Chunk{BotId: "b", SourceId: "s", Content: " \n"}); !errors.Is(err, ErrEmptyContent) {
		t.Errorf("ValidateChunk() error = %v, want %v", err, ErrEmptyContent)
	}
	if err := ValidateChunk(&Chunk{Content: "hi"}); !errors.Is(err, ErrInvalidChunk) {
		t.Errorf("ValidateChunk() error = %v, want %v", err, ErrInvalidChunk)
	}
}

func TestParseHTTPURL(t *testing.T) {
	for _, raw := range []string{"https://example.com/a?b=c", " http://localhost:8080 "} {
		if _, err := ParseHTTPURL(raw); err != nil {
			t.Errorf("ParseHTTPURL(%q) unexpected error: %v", raw, err)
		}
	}
	for _, raw := range []string{"mailto:a@b.c", "example.com", "https://", "::"} {
		if _, err := ParseHTTPURL(raw); !errors.Is(err, ErrInvalidURL) {
			t.Errorf("ParseHTTPURL(%q) error = %v, want ErrInvalidURL", raw, err)
		}
	}
}
