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


package embedding

import (
	"errors"
	"fmt"

	"github.com/poiesic/knowbot/core"
)

var (
	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0.
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrCacheRequired is returned when an embedding cache is not provided.
	ErrCacheRequired = errors.New("embedding cache required")

	// ErrResultMismatch indicates the provider's results don't line up with the inputs.
	ErrResultMismatch = errors.New("embedding results don't match inputs")
)

// ProviderError reports a failed embedding provider call.
type ProviderError struct {
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s", core.ErrEmbeddingProvider, e.Err)
}

// Unwrap exposes both core.ErrEmbeddingProvider and the underlying cause.
func (e *ProviderError) Unwrap() []error {
	return []error{core.ErrEmbeddingProvider, e.Err}
}
