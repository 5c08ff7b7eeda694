package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gookit/color"
	"golang.org/x/term"
)

// Timestamp layout used in verbose mode.
const timeLayout = "15:04:05.000"

// A record captured before the handler had a stream to write to.
type pending struct {
	record slog.Record
	attrs  []slog.Attr
	groups []string
}

// State shared by a handler and every handler derived from it through
// WithAttrs or WithGroup.
type shared struct {
	mu      sync.Mutex
	level   slog.LevelVar
	stream  io.Writer // Configured destination.
	out     io.Writer // Nil while buffering.
	color   bool
	verbose bool
	buffer  []pending
}

// Line-oriented slog handler with startup buffering.
type Handler struct {
	shared *shared
	attrs  []slog.Attr
	groups []string
}

// Creates a buffering [Handler] at info level.
func NewHandler() *Handler {
	return &Handler{shared: &shared{}}
}

// Sets the minimum level of records that are written.
func (h *Handler) SetLevel(level slog.Level) {
	h.shared.level.Set(level)
}

// Sets the output stream and whether level tags are coloured.
//
// Records logged before the first [Flush] stay buffered; the stream takes
// effect once they have been written.
func (h *Handler) SetStream(w io.Writer, colored bool) {
	h.shared.mu.Lock()
	defer h.shared.mu.Unlock()
	h.shared.stream = w
	h.shared.color = colored
	if h.shared.out != nil {
		h.shared.out = w
	}
}

// Enables or disables timestamps on every line.
func (h *Handler) SetVerbose(verbose bool) {
	h.shared.mu.Lock()
	defer h.shared.mu.Unlock()
	h.shared.verbose = verbose
}

// Writes buffered records that pass the current level and switches the
// handler to direct output.
func (h *Handler) Flush() {
	h.shared.mu.Lock()
	defer h.shared.mu.Unlock()

	out := h.shared.stream
	if out == nil {
		out = os.Stderr
	}

	for _, p := range h.shared.buffer {
		if p.record.Level < h.shared.level.Level() {
			continue
		}
		h.shared.write(out, p.record, p.attrs, p.groups)
	}

	h.shared.buffer = nil
	h.shared.out = out
}

// Implements [slog.Handler].
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	h.shared.mu.Lock()
	buffering := h.shared.out == nil
	h.shared.mu.Unlock()

	// Everything is kept while buffering; the level is applied on flush.
	if buffering {
		return true
	}
	return level >= h.shared.level.Level()
}

// Implements [slog.Handler].
func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	h.shared.mu.Lock()
	defer h.shared.mu.Unlock()

	if h.shared.out == nil {
		h.shared.buffer = append(h.shared.buffer, pending{
			record: r.Clone(),
			attrs:  h.attrs,
			groups: h.groups,
		})
		return nil
	}

	return h.shared.write(h.shared.out, r, h.attrs, h.groups)
}

// Implements [slog.Handler].
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	prefixed := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	prefixed = append(prefixed, h.attrs...)
	for _, a := range attrs {
		prefixed = append(prefixed, qualify(a, h.groups))
	}
	return &Handler{shared: h.shared, attrs: prefixed, groups: h.groups}
}

// Implements [slog.Handler].
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	groups := append(append([]string(nil), h.groups...), name)
	return &Handler{shared: h.shared, attrs: h.attrs, groups: groups}
}

// Formats one record as a line and writes it to w. Callers hold the lock.
func (s *shared) write(w io.Writer, r slog.Record, attrs []slog.Attr, groups []string) error {
	var buf bytes.Buffer

	if s.verbose {
		t := r.Time
		if t.IsZero() {
			t = time.Now()
		}
		buf.WriteString(t.Format(timeLayout))
		buf.WriteByte(' ')
	}

	buf.WriteString(s.tag(r.Level))
	buf.WriteByte(' ')
	buf.WriteString(r.Message)

	for _, a := range attrs {
		writeAttr(&buf, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&buf, qualify(a, groups))
		return true
	})
	buf.WriteByte('\n')

	_, err := w.Write(buf.Bytes())
	return err
}

// Returns the level tag, coloured when enabled.
func (s *shared) tag(level slog.Level) string {
	label := fmt.Sprintf("%-5s", level.String())
	if !s.color {
		return label
	}
	switch {
	case level >= slog.LevelError:
		return color.Red.Sprint(label)
	case level >= slog.LevelWarn:
		return color.Yellow.Sprint(label)
	case level >= slog.LevelInfo:
		return color.Cyan.Sprint(label)
	default:
		return color.Gray.Sprint(label)
	}
}

// Prefixes an attribute key with the active group names.
func qualify(a slog.Attr, groups []string) slog.Attr {
	if len(groups) == 0 {
		return a
	}
	a.Key = strings.Join(groups, ".") + "." + a.Key
	return a
}

// Appends " key=value" to buf, flattening group attributes.
func writeAttr(buf *bytes.Buffer, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	if a.Value.Kind() == slog.KindGroup {
		for _, member := range a.Value.Group() {
			if a.Key != "" {
				member.Key = a.Key + "." + member.Key
			}
			writeAttr(buf, member)
		}
		return
	}

	value := a.Value.String()
	if strings.ContainsAny(value, " \t\"=") {
		value = fmt.Sprintf("%q", value)
	}
	fmt.Fprintf(buf, " %s=%s", a.Key, value)
}

// Whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
