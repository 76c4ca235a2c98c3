// Package testutil contains helpers shared by tests: fluent builders for
// rosters and a recorder that collects emitted chat lines. They are not
// intended for production usage.
package testutil
