// Package model defines the text completion contract used by the chat
// scheduler and the failure classification shared by every provider.
//
// A Completer turns one prompt into one short line of text. Provider
// adapters live in subpackages (gemini, openai, anthropic) and report
// HTTP failures as *StatusError so callers can tell a rate limit from any
// other failure without knowing the vendor SDK.
package model
