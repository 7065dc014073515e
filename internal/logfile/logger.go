package logfile

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// TimeLayout is the timestamp layout of text log records.
const TimeLayout = "2006-01-02 15:04:05"

// Options configures NewLogger.
type Options struct {
	Level  string // debug, info, warn or error
	Format string // text or json
	Stdout bool   // mirror records to stdout
}

// NewLogger returns a zerolog logger writing records to w. In text format
// every record is a single line "[2006-01-02 15:04:05] message key=value".
func NewLogger(w io.Writer, opts Options) zerolog.Logger {
	zerolog.SetGlobalLevel(ParseLevel(opts.Level))

	out := formatWriter(w, opts.Format, true)
	if opts.Stdout {
		out = zerolog.MultiLevelWriter(out, formatWriter(os.Stdout, opts.Format, false))
	}

	return zerolog.New(out).With().Timestamp().Logger()
}

// ParseLevel maps a configured level name to a zerolog level, defaulting to
// info.
func ParseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func formatWriter(w io.Writer, format string, plain bool) io.Writer {
	if format == "json" {
		return w
	}

	return zerolog.ConsoleWriter{
		Out:             w,
		NoColor:         plain,
		PartsOrder:      []string{zerolog.TimestampFieldName, zerolog.MessageFieldName},
		FormatTimestamp: formatTimestamp,
	}
}

func formatTimestamp(i interface{}) string {
	s, ok := i.(string)
	if !ok {
		return "[]"
	}
	t, err := time.Parse(zerolog.TimeFieldFormat, s)
	if err != nil {
		return "[" + s + "]"
	}
	return "[" + t.Local().Format(TimeLayout) + "]"
}
