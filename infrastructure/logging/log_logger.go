// Package logging wraps the standard library's log package behind
// application.Logger, the engine's only sink for packet-scoped drops,
// auth failures, and fatal loop errors.
package logging

import (
	"log"

	"sipvpn/application"
)

// LogLogger prefixes every line with a tag (typically the process's
// run ID, so concurrent client and server runs on one host stay
// distinguishable) before handing it to the standard library logger.
type LogLogger struct {
	tag string
}

// NewLogLogger returns a Logger that prepends "[tag] " to every line.
// tag == "" emits lines unprefixed.
func NewLogLogger(tag string) application.Logger {
	return &LogLogger{tag: tag}
}

func (l LogLogger) Printf(format string, v ...any) {
	if l.tag == "" {
		log.Printf(format, v...)
		return
	}
	log.Printf("["+l.tag+"] "+format, v...)
}
