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


// Package reembed rebuilds the embeddings of a bot's chunks, typically after
// switching to a different embedding model.
//
// Chunks are walked in id order in fixed-size batches. Each batch is embedded
// with a single provider call and its embeddings are replaced in one write,
// so an interrupted run leaves every chunk with either its old or its new
// vector and can simply be started again.
package reembed
