// Package model defines the provider-agnostic abstractions for the language
// models that back model-driven agents.
//
// Core goals:
//   - Unify streaming + non-streaming generation behind a single interface
//   - Normalize tool / function call representation (ToolDefinition)
//   - Keep request/response shapes minimal and transport independent
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (model/openai, model/anthropic) implement Model so agents and
// plugins stay decoupled from vendor SDKs. A Catalog maps configured
// provider names to Model instances for plugins to pick from.
package model
