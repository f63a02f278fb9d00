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
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
	"github.com/google/uuid"
)

// ID is a unique identifier for stored chunks.
// It is generated from database sequences or content-based hashing.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// NewID returns a fresh random identifier for bots and sources.
func NewID() string {
	return uuid.NewString()
}

// Metadata keys attached to chunks so answers can cite their origin.
const (
	MetaSourceURL    = "sourceUrl"
	MetaPageTitle    = "pageTitle"
	MetaDocumentName = "documentName"
	MetaSection      = "section"
)

// SourceKind identifies how a source's content is acquired.
type SourceKind string

const (
	// SourceKindURL is a website crawled starting at Locator.
	SourceKindURL SourceKind = "url"
	// SourceKindDocument is an uploaded document loaded from Locator.
	SourceKindDocument SourceKind = "document"
)

// SourceStatus is the training state of a source.
type SourceStatus string

const (
	SourceStatusPending    SourceStatus = "pending"
	SourceStatusProcessing SourceStatus = "processing"
	SourceStatusCompleted  SourceStatus = "completed"
	SourceStatusFailed     SourceStatus = "failed"
)

// Bot is a tenant's chatbot. Sources, chunks and embeddings all belong to one bot.
type Bot struct {
	Id              string
	Name            string
	Tone            string   // Free-form description of the answer style, e.g. "friendly"
	FallbackMessage string   // Returned verbatim when the indexed content can't answer
	LeadThreshold   float64  // Answers below this confidence suggest lead capture
	MaxPages        int      // Crawl bound from the tenant's plan; 0 means the configured default
	QuickPrompts    []string // Suggested starter questions shown to visitors
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Source is a user-configured origin of knowledge owned by a bot.
type Source struct {
	Id              string
	BotId           string
	Kind            SourceKind
	Locator         string // Start URL, document URL or file path
	DocumentName    string // Display name for document sources
	MimeType        string // Optional MIME type for document sources
	Status          SourceStatus
	Error           string // Last failure message, empty when none
	PageCount       int
	LastRefreshedAt time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Chunk is a bounded slice of source text that is stored and embedded independently.
type Chunk struct {
	Id          ID
	BotId       string
	SourceId    string
	Content     string
	Metadata    map[string]string
	TokenCount  int
	ContentHash ID // IDFromContent(Content), used to skip duplicates within a source
	CreatedAt   time.Time
}

// Embedding is the vector for exactly one chunk.
type Embedding struct {
	ChunkId ID
	BotId   string
	Model   string
	Vector  []float32
}

// ChunkWithEmbedding pairs a chunk with its vector for retrieval.
type ChunkWithEmbedding struct {
	Chunk  *Chunk
	Vector []float32
}
