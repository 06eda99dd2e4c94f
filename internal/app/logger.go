package app

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	charmlog "github.com/charmbracelet/log"

	"github.com/Flarenzy/rirblocks/internal/domain"
)

// NewLogger returns a slog logger backed by a charmbracelet handler.
func NewLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	lvl, err := charmlog.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return nil, fmt.Errorf("%w: log level %q", domain.ErrInvalidInput, level)
	}

	var formatter charmlog.Formatter
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		formatter = charmlog.TextFormatter
	case "json":
		formatter = charmlog.JSONFormatter
	case "logfmt":
		formatter = charmlog.LogfmtFormatter
	default:
		return nil, fmt.Errorf("%w: log format %q", domain.ErrInvalidInput, format)
	}

	handler := charmlog.NewWithOptions(w, charmlog.Options{
		Level:           lvl,
		Formatter:       formatter,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Prefix:          "rirblocks",
	})
	return slog.New(handler), nil
}
