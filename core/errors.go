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

import "errors"

// Acquisition and training errors
var (
	// ErrFetchTimeout indicates a fetch exceeded its deadline.
	ErrFetchTimeout = errors.New("fetch timed out")

	// ErrFetchFailed indicates a network error or a non-2xx response.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrRobotsDisallowed indicates robots.txt forbids crawling a URL.
	ErrRobotsDisallowed = errors.New("disallowed by robots.txt")

	// ErrInvalidURL indicates a URL could not be parsed or is not http(s).
	ErrInvalidURL = errors.New("invalid url")

	// ErrEmptyCrawl indicates a crawl finished without a single usable page.
	ErrEmptyCrawl = errors.New("no crawlable pages found")

	// ErrEmbeddingProvider indicates the embedding provider failed.
	ErrEmbeddingProvider = errors.New("embedding provider error")

	// ErrDocumentParse indicates a document could not be read or parsed.
	ErrDocumentParse = errors.New("document parse error")

	// ErrNoContent indicates a bot has no indexed content to answer from.
	ErrNoContent = errors.New("no content has been added yet")

	// ErrNothingToTrain indicates a bot has no pending or failed sources.
	ErrNothingToTrain = errors.New("nothing to train")

	// ErrTrainingInProgress indicates another run already owns the bot's sources.
	ErrTrainingInProgress = errors.New("training already in progress")
)

// Domain validation errors
var (
	// ErrInvalidBot indicates a Bot failed validation.
	ErrInvalidBot = errors.New("invalid bot")

	// ErrInvalidSource indicates a Source failed validation.
	ErrInvalidSource = errors.New("invalid source")

	// ErrInvalidChunk indicates a Chunk failed validation.
	ErrInvalidChunk = errors.New("invalid chunk")

	// ErrEmptyContent indicates the Content field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrEmptyName indicates a required name is empty.
	ErrEmptyName = errors.New("name cannot be empty")

	// ErrInvalidSourceKind indicates an unknown SourceKind value.
	ErrInvalidSourceKind = errors.New("invalid source kind")

	// ErrInvalidSourceStatus indicates an unknown SourceStatus value.
	ErrInvalidSourceStatus = errors.New("invalid source status")

	// ErrInvalidThreshold indicates a lead threshold outside [0,1].
	ErrInvalidThreshold = errors.New("lead threshold must be between 0 and 1")

	// ErrCorruptRecord indicates an encoded record could not be decoded.
	ErrCorruptRecord = errors.New("corrupt record")
)
