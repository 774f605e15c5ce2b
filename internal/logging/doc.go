// Package logging configures structured slog output for docsift.
//
// Without --debug, warnings and errors go to stderr only. With --debug,
// JSON logs at debug level are also written to ~/.docsift/logs/docsift.log
// with size-based rotation.
package logging
