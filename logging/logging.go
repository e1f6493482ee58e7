// Package logging builds the structured logger shared by the command line
// tools and the MCP server.
//
// Records fan out to a terminal handler and, when enabled and reachable, the
// systemd journal.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	slogmulti "github.com/samber/slog-multi"
	slogjournal "github.com/systemd/slog-journal"
)

// ErrUnknownLevel is returned for an unrecognized level name.
var ErrUnknownLevel = errors.New("unknown log level")

// ErrUnknownFormat is returned for an unrecognized format name.
var ErrUnknownFormat = errors.New("unknown log format")

// Options configures New.
type Options struct {
	// Level is one of debug, info, warn or error.
	// Default: info
	Level string

	// Format is text or json.
	// Default: text
	Format string

	// Journal also sends records to the systemd journal.
	// Default: false
	Journal bool

	// Writer receives terminal records.
	// Default: os.Stderr
	Writer io.Writer
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownLevel, name)
}

// New returns a logger and the level variable controlling it.
func New(opts Options) (*slog.Logger, *slog.LevelVar, error) {
	lvl, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}
	level := new(slog.LevelVar)
	level.Set(lvl)

	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var terminal slog.Handler
	switch opts.Format {
	case "", "text":
		terminal = slog.NewTextHandler(w, handlerOpts)
	case "json":
		terminal = slog.NewJSONHandler(w, handlerOpts)
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownFormat, opts.Format)
	}

	handlers := []slog.Handler{terminal}
	if opts.Journal {
		journal, err := slogjournal.NewHandler(&slogjournal.Options{
			Level:        level,
			ReplaceGroup: journalKey,
			ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
				a.Key = journalKey(a.Key)
				return a
			},
		})
		if err != nil {
			record := slog.NewRecord(time.Now(), slog.LevelWarn, "systemd journal unavailable", 0)
			record.Add("error", err)
			_ = terminal.Handle(context.Background(), record)
		} else {
			handlers = append(handlers, journal)
		}
	}

	return slog.New(slogmulti.Fanout(handlers...)), level, nil
}

// journalKey converts an attribute key to a journal field name: upper case
// letters, digits and underscores.
func journalKey(key string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			return r
		}
		return '_'
	}, strings.ToUpper(key))
}
