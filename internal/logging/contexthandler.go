package logging

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// ContextProvider is a function that returns dynamic context attributes.
type ContextProvider func() []slog.Attr

// ContextHandler wraps another handler and injects dynamic context attributes.
type ContextHandler struct {
	inner    slog.Handler
	provider ContextProvider
}

// NewContextHandler creates a handler that adds dynamic context to each record.
func NewContextHandler(inner slog.Handler, provider ContextProvider) *ContextHandler {
	return &ContextHandler{
		inner:    inner,
		provider: provider,
	}
}

func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.provider != nil {
		r.AddAttrs(h.provider()...)
	}
	return h.inner.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{
		inner:    h.inner.WithAttrs(attrs),
		provider: h.provider,
	}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &ContextHandler{
		inner:    h.inner.WithGroup(name),
		provider: h.provider,
	}
}

// Progress holds the generation and tick currently being simulated.
// It is written by the simulation goroutine and read by any logger.
type Progress struct {
	generation atomic.Int64
	tick       atomic.Int64
}

// Set records the current position.
func (p *Progress) Set(generation, tick int) {
	p.generation.Store(int64(generation))
	p.tick.Store(int64(tick))
}

// Attrs is a ContextProvider; it adds nothing before the first generation.
func (p *Progress) Attrs() []slog.Attr {
	gen := p.generation.Load()
	if gen == 0 {
		return nil
	}
	return []slog.Attr{
		slog.Int64("generation", gen),
		slog.Int64("tick", p.tick.Load()),
	}
}

// Generation returns the last recorded generation.
func (p *Progress) Generation() int { return int(p.generation.Load()) }

// Tick returns the last recorded tick.
func (p *Progress) Tick() int { return int(p.tick.Load()) }
