// Package openai provides AI service implementations using OpenAI-compatible APIs.
//
// This package implements the ai.AIProvider interface using the langchaingo
// library to communicate with OpenAI or OpenAI-compatible services (such as
// Ollama, LocalAI, or vLLM).
//
// # Usage
//
//	config := ai.NewConfig(
//	    ai.WithHost("http://localhost:11434"), // /v1 added automatically
//	    ai.WithEmbeddingModel("embeddinggemma"),
//	    ai.WithChatModel("qwen2.5:3b"),
//	)
//
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vectors, err := provider.Embedder().CreateEmbeddings(ctx, []string{"sample text"})
//	text, err := provider.Completer().Complete(ctx, ai.CompletionRequest{
//	    SystemPrompt: "Answer briefly.",
//	    Messages:     []ai.Message{{Role: ai.RoleUser, Content: "Hi"}},
//	    MaxTokens:    100,
//	})
package openai
