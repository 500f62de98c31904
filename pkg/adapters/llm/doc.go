// Package llm provides agents backed by large language models.
//
// The factory creates the "llm" agent for the configured provider.
// Currently supports:
//   - Anthropic Claude (Messages API)
//
// Future providers:
//   - OpenAI GPT
//   - Google Gemini
package llm
