// Package log wraps zerolog with a process-global logger and per-component
// child loggers. Call Init once at startup before any other package logs.
package log
