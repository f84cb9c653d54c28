package testutil

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

// LogRecord is one captured log line with its attributes flattened into a
// map. Grouped keys are joined with a dot, as in "directories.base".
type LogRecord struct {
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

// LogSink is a slog.Handler that keeps every record for assertions. Loggers
// derived with With or WithGroup write into the same sink.
type LogSink struct {
	mu      *sync.Mutex
	records *[]LogRecord

	prefix string
	bound  []slog.Attr
	t      testing.TB
}

// NewTestLogger returns a logger that records into a fresh sink and mirrors
// each line to t.Log, so failures show what the code under test logged.
func NewTestLogger(t testing.TB) (*slog.Logger, *LogSink) {
	sink := &LogSink{mu: &sync.Mutex{}, records: &[]LogRecord{}, t: t}
	return slog.New(sink), sink
}

func (s *LogSink) Enabled(context.Context, slog.Level) bool { return true }

func (s *LogSink) Handle(_ context.Context, r slog.Record) error {
	attrs := make(map[string]any, len(s.bound)+r.NumAttrs())
	for _, a := range s.bound {
		flatten(attrs, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		flatten(attrs, s.prefix, a)
		return true
	})

	s.mu.Lock()
	*s.records = append(*s.records, LogRecord{Level: r.Level, Message: r.Message, Attrs: attrs})
	s.mu.Unlock()

	if s.t != nil {
		s.t.Logf("%-5s %s %v", r.Level, r.Message, attrs)
	}
	return nil
}

func (s *LogSink) WithAttrs(attrs []slog.Attr) slog.Handler {
	child := *s
	child.bound = make([]slog.Attr, 0, len(s.bound)+len(attrs))
	child.bound = append(child.bound, s.bound...)
	for _, a := range attrs {
		if s.prefix != "" {
			a.Key = s.prefix + a.Key
		}
		child.bound = append(child.bound, a)
	}
	return &child
}

func (s *LogSink) WithGroup(name string) slog.Handler {
	if name == "" {
		return s
	}
	child := *s
	child.prefix = s.prefix + name + "."
	return &child
}

func flatten(dst map[string]any, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		if a.Key != "" {
			prefix += a.Key + "."
		}
		for _, ga := range v.Group() {
			flatten(dst, prefix, ga)
		}
		return
	}
	dst[prefix+a.Key] = v.Any()
}

// Records returns a snapshot of everything logged so far.
func (s *LogSink) Records() []LogRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]LogRecord(nil), *s.records...)
}

func (s *LogSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(*s.records)
}

// AtLevel returns the records logged at exactly level.
func (s *LogSink) AtLevel(level slog.Level) []LogRecord {
	var out []LogRecord
	for _, r := range s.Records() {
		if r.Level == level {
			out = append(out, r)
		}
	}
	return out
}

// ContainsMessage reports whether any message contains substr.
func (s *LogSink) ContainsMessage(substr string) bool {
	for _, r := range s.Records() {
		if strings.Contains(r.Message, substr) {
			return true
		}
	}
	return false
}

// ContainsAttr reports whether any record has key set to value. Integers
// are captured as int64.
func (s *LogSink) ContainsAttr(key string, value any) bool {
	for _, r := range s.Records() {
		if v, ok := r.Attrs[key]; ok && v == value {
			return true
		}
	}
	return false
}
