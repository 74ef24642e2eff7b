// Package cli implements the octi command-line interface.
//
// The commands are:
//   - layout: embed a line graph and write the schematic map
//   - lp: write the exact optimization model in LP format
//   - serve: expose layouts over HTTP
//   - cache: manage the layout and solution cache
//
// Embedding options are bound to flags on layout, lp and serve and can be
// read from a JSON or TOML file with --config; flags override the file.
// Status output goes to stderr so that layouts can be piped from stdout.
// All commands support --verbose (-v) for debug-level logging.
package cli

import (
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger creates a new logger with timestamp formatting.
// Timestamps are formatted as "HH:MM:SS.ms" (e.g., "14:32:01.45").
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress logs the duration of a step when it is done.
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg with the elapsed time, e.g. "parsed input (12ms)".
func (p *progress) done(msg string, keyvals ...any) {
	p.logger.Debug(msg, append(keyvals, "elapsed", time.Since(p.start).Round(time.Millisecond))...)
}
