// Package engine orchestrates one simulated chat.
//
// An Engine owns exactly one persona registry, context buffer, throttled
// scheduler and simulation clock. Engines share nothing, so several can run
// in one process.
//
// # Message sources
//
// Three paths enqueue completion requests:
//
//   - the simulation clock: one spontaneous line per tick, 70% questions to
//     the presenter and 30% remarks about the stream
//   - OnUtterance: a direct response from an addressed persona, enqueued
//     first, then one or two staggered reactions from other personas
//   - OnUserUtterance: the presenter's own chat line is echoed to the UI and
//     may draw one reaction
//
// Every request passes through the scheduler, which spaces calls and retries
// rate limits. Finished lines are recorded in the context buffer and handed
// to the registered message listener.
//
// # Configuration
//
// Token, locale, activity level, auto-response and the pause flag can all be
// changed while running. Without a token the engine is inert: Start is a
// no-op and utterances only update the context.
//
// # Listeners
//
// OnMessage and OnError each hold a single listener; registering a new one
// replaces the previous. Listeners are called from engine goroutines and
// must not block for long.
package engine
