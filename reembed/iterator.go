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


package reembed

import (
	"context"

	"github.com/poiesic/knowbot/core"
)

const (
	// DefaultBatchSize is the default number of chunks to fetch in each batch
	DefaultBatchSize = 64
)

// ChunkLister pages through a bot's chunks in id order.
type ChunkLister interface {
	ListChunks(ctx context.Context, botID string, afterID core.ID, limit int) ([]*core.Chunk, error)
}

// ChunkIterator iterates over all chunks of a bot in batches.
type ChunkIterator struct {
	chunks    ChunkLister
	batchSize int
}

// NewChunkIterator creates a new chunk iterator.
// batchSize: number of chunks to fetch in each batch (DefaultBatchSize if <= 0)
func NewChunkIterator(chunks ChunkLister, batchSize int) *ChunkIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &ChunkIterator{
		chunks:    chunks,
		batchSize: batchSize,
	}
}

// ForEach calls fn for each batch of botID's chunks, lowest ids first.
// Iteration stops on the first error from fn or when all chunks are visited.
// Context cancellation is checked between batches.
func (it *ChunkIterator) ForEach(ctx context.Context, botID string, fn func([]*core.Chunk) error) error {
	var cursor core.ID
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		batch, err := it.chunks.ListChunks(ctx, botID, cursor, it.batchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}

		if err := fn(batch); err != nil {
			return err
		}

		cursor = batch[len(batch)-1].Id
		if len(batch) < it.batchSize {
			return nil
		}
	}
}
