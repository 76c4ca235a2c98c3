// Package scheduler serializes completion requests through a single
// throttled FIFO queue.
//
// At most one completion call is in flight per Scheduler. A call starts no
// sooner than MinInterval after the previous one resolved. Rate-limited
// calls (HTTP 429) are retried with exponential backoff; other failures drop
// the request and the queue moves on. Results with empty text are skipped.
package scheduler
