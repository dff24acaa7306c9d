// Package model defines the provider-agnostic abstractions for the language
// models that answer gateway conversations.
//
// Core goals:
//   - Unify streaming + non-streaming generation behind a single interface
//   - Keep request/response shapes minimal and transport independent
//   - Facilitate lightweight mocking for tests and local runs (MockModel)
//
// Providers (OpenAI, Anthropic) implement Model in sub-packages so the runner
// remains decoupled from vendor SDKs.
package model
