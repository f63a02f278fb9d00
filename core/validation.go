// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidateBot validates a Bot according to domain rules.
//
// Validation rules:
//   - Name must not be empty
//   - LeadThreshold must be within [0,1]
//   - MaxPages must not be negative
//
// NOT validated:
//   - Id (assigned by the repository when empty)
//   - QuickPrompts (populated after training)
func ValidateBot(bot *Bot) error {
	if bot == nil {
		return fmt.Errorf("%w: bot is nil", ErrInvalidBot)
	}

	if strings.TrimSpace(bot.Name) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidBot, ErrEmptyName)
	}

	if bot.LeadThreshold < 0 || bot.LeadThreshold > 1 {
		return fmt.Errorf("%w: %w", ErrInvalidBot, ErrInvalidThreshold)
	}

	if bot.MaxPages < 0 {
		return fmt.Errorf("%w: max pages cannot be negative", ErrInvalidBot)
	}

	return nil
}

// ValidateSource validates a Source according to domain rules.
//
// Validation rules:
//   - BotId must not be empty
//   - Kind must be url or document
//   - Locator must not be empty; url sources need an absolute http(s) URL
//   - Status, when set, must be a known value
func ValidateSource(source *Source) error {
	if source == nil {
		return fmt.Errorf("%w: source is nil", ErrInvalidSource)
	}

	if source.BotId == "" {
		return fmt.Errorf("%w: bot id is required", ErrInvalidSource)
	}

	if err := ValidateSourceKind(source.Kind); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSource, err)
	}

	if strings.TrimSpace(source.Locator) == "" {
		return fmt.Errorf("%w: locator is required", ErrInvalidSource)
	}

	if source.Kind == SourceKindURL {
		if _, err := ParseHTTPURL(source.Locator); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidSource, err)
		}
	}

	if source.Status != "" {
		if err := ValidateSourceStatus(source.Status); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidSource, err)
		}
	}

	return nil
}

// ValidateChunk validates a Chunk before it is persisted.
func ValidateChunk(chunk *Chunk) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidChunk)
	}

	if chunk.BotId == "" || chunk.SourceId == "" {
		return fmt.Errorf("%w: bot and source ids are required", ErrInvalidChunk)
	}

	if strings.TrimSpace(chunk.Content) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyContent)
	}

	return nil
}

// ValidateSourceKind validates that a SourceKind has a valid value.
func ValidateSourceKind(kind SourceKind) error {
	if kind != SourceKindURL && kind != SourceKindDocument {
		return fmt.Errorf("%w: value %q", ErrInvalidSourceKind, kind)
	}
	return nil
}

// ValidateSourceStatus validates that a SourceStatus has a valid value.
func ValidateSourceStatus(status SourceStatus) error {
	switch status {
	case SourceStatusPending, SourceStatusProcessing, SourceStatusCompleted, SourceStatusFailed:
		return nil
	}
	return fmt.Errorf("%w: value %q", ErrInvalidSourceStatus, status)
}

// ParseHTTPURL parses raw as an absolute http or https URL.
func ParseHTTPURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return u, nil
}
