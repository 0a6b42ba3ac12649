package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	charmlog "github.com/charmbracelet/log"
)

// New returns a logger writing to w. "json" uses the slog JSON handler;
// "text" uses charmbracelet/log as the slog handler for readable local output.
func New(w io.Writer, level, format string) (*slog.Logger, error) {
	switch strings.ToLower(format) {
	case "", "json":
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})), nil
	case "text":
		lvl, err := charmlog.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		h := charmlog.NewWithOptions(w, charmlog.Options{
			Level:           lvl,
			ReportTimestamp: true,
			TimeFormat:      "15:04:05",
			Prefix:          "prep",
		})
		return slog.New(h), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}
