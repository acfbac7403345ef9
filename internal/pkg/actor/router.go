package actor

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
)

// Group is a key-agnostic router over a pool of interchangeable actors.
// Each Tell goes to the next routee in round-robin order.
type Group[C any] struct {
	name    string
	routees []*Ref[C]
	next    atomic.Uint64
	logger  *slog.Logger
}

// NewGroup spawns size actors built by newBehavior and returns the router in
// front of them.
func NewGroup[C any](ctx context.Context, name string, size int, logger *slog.Logger, newBehavior func(self *Ref[C]) Behavior[C]) *Group[C] {
	if size <= 0 {
		size = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	g := &Group[C]{name: name, routees: make([]*Ref[C], 0, size), logger: logger}
	for i := 0; i < size; i++ {
		g.routees = append(g.routees, Spawn(ctx, fmt.Sprintf("%s-%d", name, i), logger, newBehavior))
	}
	logger.Info("worker group started", slog.String("group", name), slog.Int("size", size))
	return g
}

// Tell forwards msg to the next routee.
func (g *Group[C]) Tell(msg C) bool {
	n := g.next.Add(1) - 1
	return g.routees[n%uint64(len(g.routees))].Tell(msg)
}

// Size returns the number of routees.
func (g *Group[C]) Size() int { return len(g.routees) }

// Stop stops every routee and waits for their loops to exit or ctx to end.
func (g *Group[C]) Stop(ctx context.Context) {
	for _, r := range g.routees {
		r.Stop()
	}
	for _, r := range g.routees {
		select {
		case <-r.Done():
		case <-ctx.Done():
			g.logger.Warn("worker group stop interrupted", slog.String("group", g.name))
			return
		}
	}
}
