package log

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

var (
	keyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	stringStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	numberStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	trueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	falseStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	timeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	durStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))
	nullStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func levelStyle(level slog.Level) lipgloss.Style {
	switch {
	case level >= slog.LevelError:
		return falseStyle.Bold(true)
	case level >= slog.LevelWarn:
		return numberStyle.Bold(true)
	case level >= slog.LevelInfo:
		return trueStyle
	default:
		return timeStyle
	}
}

// prettyBase holds the state shared by the pretty handlers. Attributes added
// through WithAttrs are pre-qualified with the group path in effect.
type prettyBase struct {
	opts       slog.HandlerOptions
	formatTime FormatTime
	mu         *sync.Mutex
	w          io.Writer
	attrs      []slog.Attr
	groups     []string
}

func (h *prettyBase) enabled(level slog.Level) bool {
	threshold := slog.LevelInfo
	if h.opts.Level != nil {
		threshold = h.opts.Level.Level()
	}

	return level >= threshold
}

func (h prettyBase) withAttrs(attrs []slog.Attr) prettyBase {
	qualified := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	qualified = append(qualified, h.attrs...)

	for _, a := range attrs {
		qualified = append(qualified, h.qualify(a))
	}

	h.attrs = qualified

	return h
}

func (h prettyBase) withGroup(name string) prettyBase {
	if name == "" {
		return h
	}

	h.groups = append(h.groups[:len(h.groups):len(h.groups)], name)

	return h
}

func (h *prettyBase) qualify(a slog.Attr) slog.Attr {
	if len(h.groups) == 0 {
		return a
	}

	a.Key = strings.Join(h.groups, ".") + "." + a.Key

	return a
}

// header returns the time, level, source and message attributes of r.
func (h *prettyBase) header(r slog.Record) []slog.Attr {
	head := make([]slog.Attr, 0, 4)

	if !r.Time.IsZero() {
		if s := h.formatTime(r.Time); s != "" {
			head = append(head, slog.String(slog.TimeKey, s))
		}
	}

	head = append(head, slog.Any(slog.LevelKey, r.Level))

	if h.opts.AddSource && r.PC != 0 {
		if src := r.Source(); src != nil {
			head = append(head, slog.String(
				slog.SourceKey, src.File+":"+strconv.Itoa(src.Line),
			))
		}
	}

	return append(head, slog.String(slog.MessageKey, r.Message))
}

func (h *prettyBase) write(buf *bytes.Buffer) error {
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()

	_, err := h.w.Write(buf.Bytes())

	return err
}

// flatten expands group values into dotted keys.
func flatten(prefix string, a slog.Attr, yield func(slog.Attr)) {
	a.Value = a.Value.Resolve()

	key := a.Key
	if prefix != "" {
		key = prefix + "." + a.Key
	}

	if a.Value.Kind() != slog.KindGroup {
		yield(slog.Attr{Key: key, Value: a.Value})

		return
	}

	if a.Key == "" {
		key = prefix
	}

	for _, ga := range a.Value.Group() {
		flatten(key, ga, yield)
	}
}

func renderValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return stringStyle.Render(v.String())
	case slog.KindInt64:
		return numberStyle.Render(strconv.FormatInt(v.Int64(), 10))
	case slog.KindUint64:
		return numberStyle.Render(strconv.FormatUint(v.Uint64(), 10))
	case slog.KindFloat64:
		return numberStyle.Render(strconv.FormatFloat(v.Float64(), 'g', -1, 64))
	case slog.KindBool:
		if v.Bool() {
			return trueStyle.Render("true")
		}

		return falseStyle.Render("false")
	case slog.KindDuration:
		return durStyle.Render(v.Duration().String())
	case slog.KindTime:
		return timeStyle.Render(v.Time().String())
	case slog.KindAny:
		switch x := v.Any().(type) {
		case slog.Level:
			return levelStyle(x).Render(strings.ToUpper(Level(x).String()))
		case nil:
			return nullStyle.Render("null")
		case error:
			return stringStyle.Render(x.Error())
		default:
			return stringStyle.Render(fmt.Sprint(x))
		}
	default:
		return stringStyle.Render(v.String())
	}
}

// prettyTextHandler writes one colorized key=value line per record.
type prettyTextHandler struct{ prettyBase }

func newPrettyTextHandler(
	w io.Writer,
	opts *slog.HandlerOptions,
	formatTime FormatTime,
) *prettyTextHandler {
	return &prettyTextHandler{prettyBase{
		opts:       *opts,
		formatTime: formatTime,
		mu:         &sync.Mutex{},
		w:          w,
	}}
}

func (h *prettyTextHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.enabled(level)
}

func (h *prettyTextHandler) Handle(_ context.Context, r slog.Record) error {
	var buf bytes.Buffer

	emit := func(a slog.Attr) {
		if buf.Len() > 0 {
			buf.WriteByte(' ')
		}

		buf.WriteString(keyStyle.Render(a.Key))
		buf.WriteByte('=')
		buf.WriteString(renderValue(a.Value))
	}

	for _, a := range h.header(r) {
		emit(a)
	}

	for _, a := range h.attrs {
		flatten("", a, emit)
	}

	r.Attrs(func(a slog.Attr) bool {
		flatten("", h.qualify(a), emit)

		return true
	})

	return h.write(&buf)
}

func (h *prettyTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &prettyTextHandler{h.withAttrs(attrs)}
}

func (h *prettyTextHandler) WithGroup(name string) slog.Handler {
	return &prettyTextHandler{h.withGroup(name)}
}

// prettyJSONHandler writes an indented, colorized JSON-like object per
// record. String values are not quoted.
type prettyJSONHandler struct{ prettyBase }

func newPrettyJSONHandler(
	w io.Writer,
	opts *slog.HandlerOptions,
	formatTime FormatTime,
) *prettyJSONHandler {
	return &prettyJSONHandler{prettyBase{
		opts:       *opts,
		formatTime: formatTime,
		mu:         &sync.Mutex{},
		w:          w,
	}}
}

func (h *prettyJSONHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.enabled(level)
}

func (h *prettyJSONHandler) Handle(_ context.Context, r slog.Record) error {
	var buf bytes.Buffer

	buf.WriteString("{")

	first := true
	emit := func(a slog.Attr) {
		if !first {
			buf.WriteByte(',')
		}

		first = false

		buf.WriteString("\n  ")
		buf.WriteString(keyStyle.Render(a.Key))
		buf.WriteString(": ")
		buf.WriteString(renderValue(a.Value))
	}

	for _, a := range h.header(r) {
		emit(a)
	}

	for _, a := range h.attrs {
		flatten("", a, emit)
	}

	r.Attrs(func(a slog.Attr) bool {
		flatten("", h.qualify(a), emit)

		return true
	})

	buf.WriteString("\n}")

	return h.write(&buf)
}

func (h *prettyJSONHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &prettyJSONHandler{h.withAttrs(attrs)}
}

func (h *prettyJSONHandler) WithGroup(name string) slog.Handler {
	return &prettyJSONHandler{h.withGroup(name)}
}
