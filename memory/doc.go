// Package memory provides the conversation context buffer: a bounded,
// append-only history of recent chat lines used to ground prompts.
//
// The buffer keeps entries in strict append order and evicts the oldest
// entries first once capacity is reached. Capacity is fixed at construction.
// Readers only ever receive copies, so prompt construction can never mutate
// the stored history.
package memory
