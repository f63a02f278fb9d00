// Package ai provides abstractions for the AI services used by knowbot.
//
// This package defines interfaces for the two external model calls the
// pipeline makes: turning text into embedding vectors, and generating text
// with a chat model. Retrieval, answering and training depend on these
// abstractions rather than on a concrete provider.
//
// # Design Principles
//
//   - Embedder: Generates index-tagged vectors for a batch of texts
//   - Completer: Bounded chat completions, plain or streamed
//   - AIProvider: Aggregates AI services for convenient initialization
//
// # Implementation Packages
//
//   - ai/openai: Production implementation using OpenAI-compatible APIs
//   - ai/mock: Test doubles for unit testing without external dependencies
//
// # Constructor Return Type Pattern
//
// Public constructors (openai.NewProvider, openai.NewEmbedder, etc.) return
// INTERFACE types to enforce abstraction:
//
//	provider, err := openai.NewProvider(config)  // returns ai.AIProvider
//
// Test utility constructors (mock.NewMockEmbedder, mock.NewMockCompleter)
// return CONCRETE types to enable test assertions and behavior injection:
//
//	mockEmbed := mock.NewMockEmbedder()  // returns *mock.MockEmbedder
//	count := mockEmbed.CallCount()       // test assertion
//
// # LLM Output Helpers
//
// ParseJSONReply strips Markdown fences and repairs common quoting mistakes
// before decoding structured output from a chat model.
package ai
