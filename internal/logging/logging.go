// Package logging builds the process-wide slog handler.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// Output formats.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// New returns a logger writing to w. FormatJSON (or "") yields one JSON object
// per line; FormatText yields tinted text, coloured only on a terminal.
func New(w io.Writer, level slog.Level, format string) (*slog.Logger, error) {
	switch format {
	case "", FormatJSON:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})), nil
	case FormatText:
		noColor := true
		if f, ok := w.(*os.File); ok {
			noColor = !isatty.IsTerminal(f.Fd())
			w = colorable.NewColorable(f)
		}
		return slog.New(tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: "15:04:05.000",
			NoColor:    noColor,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				// Durations read better rounded.
				if a.Value.Kind() == slog.KindDuration {
					return slog.Duration(a.Key, a.Value.Duration().Round(time.Millisecond))
				}
				return a
			},
		})), nil
	default:
		return nil, fmt.Errorf("logging: unknown format %q", format)
	}
}
