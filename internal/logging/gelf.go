package logging

import (
	"context"
	"log/slog"
	"os"

	"github.com/Graylog2/go-gelf/gelf"
)

// Syslog severities used by the GELF level field.
const (
	gelfLevelError   = 3
	gelfLevelWarning = 4
	gelfLevelInfo    = 6
	gelfLevelDebug   = 7
)

// GelfHandler forwards log records to a Graylog server over GELF/UDP.
type GelfHandler struct {
	writer *gelf.Writer
	host   string
	level  slog.Level
	attrs  []slog.Attr
}

// NewGelfHandler dials the Graylog address and returns a handler that
// ships records at or above the given level.
func NewGelfHandler(address, levelStr string) (*GelfHandler, error) {
	w, err := gelf.NewWriter(address)
	if err != nil {
		return nil, err
	}
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return &GelfHandler{
		writer: w,
		host:   host,
		level:  parseLevel(levelStr),
	}, nil
}

// Enabled reports whether the record level passes the handler's threshold.
func (h *GelfHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

// Handle converts the record into a GELF message and writes it out.
func (h *GelfHandler) Handle(_ context.Context, r slog.Record) error {
	extra := make(map[string]any, r.NumAttrs()+len(h.attrs))
	for _, a := range h.attrs {
		extra["_"+a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		extra["_"+a.Key] = a.Value.Any()
		return true
	})

	var level int32 = gelfLevelInfo
	switch {
	case r.Level >= slog.LevelError:
		level = gelfLevelError
	case r.Level >= slog.LevelWarn:
		level = gelfLevelWarning
	case r.Level < slog.LevelInfo:
		level = gelfLevelDebug
	}

	return h.writer.WriteMessage(&gelf.Message{
		Version:  "1.1",
		Host:     h.host,
		Short:    r.Message,
		TimeUnix: float64(r.Time.UnixMilli()) / 1000.0,
		Level:    level,
		Extra:    extra,
	})
}

// WithAttrs returns a handler that attaches the attributes to every message.
func (h *GelfHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &GelfHandler{writer: h.writer, host: h.host, level: h.level, attrs: merged}
}

// WithGroup is accepted but flattened; GELF extras have no nesting.
func (h *GelfHandler) WithGroup(string) slog.Handler {
	return h
}

// Close shuts down the underlying GELF writer.
func (h *GelfHandler) Close() error {
	return h.writer.Close()
}
