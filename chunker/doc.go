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


// Package chunker splits normalized page and document text into bounded,
// token-aware pieces that are embedded and stored independently.
//
// Text is first divided into sections at Markdown headings; each heading is
// recorded as the "section" metadata of the pieces below it. Sections are
// then split with a recursive character splitter that prefers paragraph,
// line, sentence and word boundaries, in that order, before cutting inside
// a word. No piece exceeds Config.MaxChars runes.
//
// Chunking is deterministic: the same text and provenance always produce
// the same pieces.
package chunker
