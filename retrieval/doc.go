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


// Package retrieval builds the context for retrieval-augmented answers.
//
// A Retriever embeds the visitor's query, loads every chunk vector of the
// bot, drops vectors whose dimensionality doesn't match the query embedding
// (stale vectors from an earlier embedding model) and runs an exact top-K
// cosine search. The confidence of a result is the similarity of its best
// match, or 0 when nothing matched.
package retrieval
