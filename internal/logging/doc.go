// Package logging wires slog handlers for console and JSON output and defines
// the standardized attribute keys used across components.
//
// The console handler renders "ts LEVEL component: msg key=value" lines with
// the component attribute hoisted out of the key list. NewFromConfig tees
// output to stderr and the configured log directory.
package logging
