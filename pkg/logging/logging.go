// Package logging builds the charmbracelet loggers shared by every component.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/mcp-server-sentry/pkg/config"
)

// New returns a logger configured from cfg. Output goes to stderr because
// stdout carries the stdio transport.
func New(cfg *config.Config) *log.Logger {
	return NewWithWriter(os.Stderr, cfg)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, cfg *config.Config) *log.Logger {
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = log.InfoLevel
	}

	formatter := log.TextFormatter
	if strings.EqualFold(cfg.Log.Format, "json") {
		formatter = log.JSONFormatter
	}

	logger := log.NewWithOptions(w, log.Options{
		Level:           level,
		Formatter:       formatter,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Prefix:          "sentry-mcp",
	})

	if err != nil {
		logger.Warn("Unknown log level, using info", "level", cfg.Log.Level)
	}

	return logger
}
