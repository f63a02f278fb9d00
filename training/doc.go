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


// Package training turns a bot's knowledge sources into searchable chunks.
//
// An Orchestrator run selects the bot's pending sources (or, when there are
// none, re-queues its failed ones) and processes them one at a time:
//
//	pending -> processing -> completed
//	                      -> failed -> pending (retry)
//
// A url source is crawled, a document source is loaded and parsed. Every
// page is chunked and embedded, and each chunk is stored with its embedding
// as soon as it is produced. A failing source is marked failed with its
// error message and the run moves on to the next source. Chunks from an
// earlier successful run of a source are replaced only after the new run of
// that source succeeds.
//
// Progress is reported as a sequence of Events ending in exactly one done or
// error event. Stream exposes the sequence as a channel and NDJSONWriter
// serializes it one JSON object per line.
package training
