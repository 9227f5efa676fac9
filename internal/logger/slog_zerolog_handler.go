package logger

import (
	"context"
	"log/slog"

	"github.com/rs/zerolog"
)

// zlHandler adapts slog records onto a zerolog logger. Request-scoped
// fields (request_id, component, datasource) are pulled from the record's
// context so backend code logging through slog still carries them.
type zlHandler struct {
	zl     *zerolog.Logger
	attr   []slog.Attr
	prefix string
}

// NewSlog wraps a zerolog logger in a *slog.Logger so components can take
// the standard structured logging handle.
func NewSlog(zl *zerolog.Logger) *slog.Logger {
	return slog.New(&zlHandler{zl: zl})
}

func toZerologLevel(l slog.Level) zerolog.Level {
	switch {
	case l <= slog.LevelDebug:
		return zerolog.DebugLevel
	case l >= slog.LevelError:
		return zerolog.ErrorLevel
	case l >= slog.LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}

func (h *zlHandler) Enabled(_ context.Context, l slog.Level) bool {
	zl := toZerologLevel(l)
	if zl < h.zl.GetLevel() || zl < zerolog.GlobalLevel() {
		return false
	}
	return true
}

func (h *zlHandler) Handle(ctx context.Context, r slog.Record) error {
	base := FromContext(ctx, h.zl)
	ev := base.WithLevel(toZerologLevel(r.Level))

	for _, a := range h.attr {
		ev = h.addAttr(ev, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		ev = h.addAttr(ev, a)
		return true
	})

	ev.Msg(r.Message)
	return nil
}

func (h *zlHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	cp := *h
	cp.attr = append(cp.attr[:len(cp.attr):len(cp.attr)], attrs...)
	return &cp
}

// WithGroup qualifies subsequent attribute keys with the group name;
// zerolog output stays flat, matching the rest of the service's logs.
func (h *zlHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	cp := *h
	cp.prefix = cp.prefix + name + "."
	return &cp
}

func (h *zlHandler) addAttr(ev *zerolog.Event, a slog.Attr) *zerolog.Event {
	a.Value = a.Value.Resolve()
	key := h.prefix + a.Key
	switch a.Value.Kind() {
	case slog.KindString:
		return ev.Str(key, a.Value.String())
	case slog.KindInt64:
		return ev.Int64(key, a.Value.Int64())
	case slog.KindFloat64:
		return ev.Float64(key, a.Value.Float64())
	case slog.KindBool:
		return ev.Bool(key, a.Value.Bool())
	case slog.KindDuration:
		return ev.Dur(key, a.Value.Duration())
	case slog.KindTime:
		return ev.Time(key, a.Value.Time())
	case slog.KindGroup:
		sub := *h
		sub.prefix = key + "."
		for _, ga := range a.Value.Group() {
			ev = sub.addAttr(ev, ga)
		}
		return ev
	default:
		return ev.Interface(key, a.Value.Any())
	}
}
