// Package openai provides ai.Embedder and ai.ChatModel implementations for
// OpenAI-compatible APIs (OpenAI, Ollama, LocalAI, vLLM) via langchaingo.
package openai
