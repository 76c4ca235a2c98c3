// Package core provides the foundational domain types shared by the chat
// simulator packages. It defines:
//
//   - Persona (a synthetic chat participant with identity, color and traits)
//   - Entry (one line of conversation context, authored by a persona or the presenter)
//   - Message (a finished chat line handed to the UI sink)
//   - Situation (why a prompt is being generated)
//   - Locale (roster and prompt language selection)
//
// The package keeps behavior out of scope: registries, buffers, prompt
// construction and scheduling live in their own packages and only exchange
// these values.
package core
