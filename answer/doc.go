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


// Package answer turns retrieved context into a bot's reply.
//
// A Synthesizer answers in two LLM calls. The first compresses the retrieved
// chunks into a handful of bullet points written in the model's own words.
// The second answers the visitor from that summary alone, in the bot's tone,
// and falls back to a fixed phrase when the summary doesn't cover the
// question. A bot without any indexed content gets NoContentMessage and no
// LLM call at all.
//
// Answers to history-less questions are cached for a few minutes per bot.
// Call Invalidate after retraining a bot so stale answers are not served.
package answer
