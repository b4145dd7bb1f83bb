package server

import (
	"io"
	"log"
	"os"
)

// Package-level loggers. Debug logging is discarded unless enabled via
// EnableDebugLogging (the --debug flag).
var (
	errorLog = log.New(os.Stderr, "ERROR: ", log.LstdFlags)
	debugLog = log.New(io.Discard, "DEBUG: ", log.LstdFlags)
)

// EnableDebugLogging routes debug output to stderr
func EnableDebugLogging() {
	debugLog = log.New(os.Stderr, "DEBUG: ", log.LstdFlags|log.Lmicroseconds)
}
