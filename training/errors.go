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


package training

import "errors"

var (
	// ErrBotRepositoryRequired is returned when a bot repository is not provided.
	ErrBotRepositoryRequired = errors.New("bot repository required")

	// ErrSourceRepositoryRequired is returned when a source repository is not provided.
	ErrSourceRepositoryRequired = errors.New("source repository required")

	// ErrChunkRepositoryRequired is returned when a chunk repository is not provided.
	ErrChunkRepositoryRequired = errors.New("chunk repository required")

	// ErrCollaboratorRequired is returned when a crawler, loader, parser,
	// chunker or embedder is not provided.
	ErrCollaboratorRequired = errors.New("training collaborator required")

	// ErrInvalidPoolSize is returned when a runner pool size is less than 1.
	ErrInvalidPoolSize = errors.New("pool size must be at least 1")
)
