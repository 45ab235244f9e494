// Package logx wraps zerolog behind a small structured-logging API.
//
// It exists so the rest of the codebase logs through one stable surface:
// Field helpers instead of raw zerolog events, a zero-value-safe Logger,
// and a Service whose sinks and level can be re-applied at runtime when
// the config file changes.
package logx
