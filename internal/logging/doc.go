// Package logging holds the process-wide zap logger.
//
// The logger starts as a no-op so packages can log unconditionally from
// tests. The CLI builds a stderr logger with [New] and installs it with [Set]
// once flags and configuration are resolved. Code logs structured fields
// through [L]; [S] serves adapters that are handed key/value pairs.
package logging
