// Package file provides file-based implementations of driven port interfaces.
// These adapters persist data to the local filesystem under ~/.verselens.
//
// Adapters:
//   - ConfigStore: TOML-based configuration storage
//   - PromptStore: user-editable LLM prompt templates with embedded defaults
package file
