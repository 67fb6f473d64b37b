package isdnsig

import (
	"os"

	"github.com/charmbracelet/log"
)

// NewLogger returns the Controller's default structured logger, written
// to stderr at info level. Pass a different one to New
// for a test fixture that wants quieter or captured output.
func NewLogger() *log.Logger {
	return log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "isdnsig",
	})
}
