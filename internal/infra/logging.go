package infra

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LogOptions selects the log level and output format.
type LogOptions struct {
	Level  string // debug, info, warn, error
	Format string // "console" or "json"
	Tag    string
}

// NewLogger builds the process logger. Unknown levels fall back to info.
func NewLogger(w io.Writer, opts LogOptions) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(opts.Level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	// trim the caller down to dir/file:line
	zerolog.CallerMarshalFunc = func(_ uintptr, file string, line int) string {
		parts := strings.Split(file, "/")
		if len(parts) > 1 {
			return strings.Join(parts[len(parts)-2:], "/") + ":" + strconv.Itoa(line)
		}
		return file + ":" + strconv.Itoa(line)
	}

	if opts.Format != "json" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	tag := opts.Tag
	if tag == "" {
		tag = "edgarkpi"
	}
	return zerolog.New(w).Level(level).With().Timestamp().Str("@tag", tag).Logger()
}
