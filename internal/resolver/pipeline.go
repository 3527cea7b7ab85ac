package resolver

import (
	"context"

	"github.com/neuragate/gateway/internal/logging"
	"github.com/neuragate/gateway/internal/route"
	"github.com/neuragate/gateway/internal/routecompiler"
	"github.com/neuragate/gateway/internal/routestore"
	"go.uber.org/zap"
)

// Pipeline ties the route store, the route compiler, and the Resolver
// together: every change notification from the store triggers a full
// recompile of the enabled definitions into a fresh snapshot, which is
// then published atomically. A recompile failure on one route does
// not block the others; that route is dropped from the snapshot and
// logged until its definition is corrected.
type Pipeline struct {
	store    *routestore.Store
	compiler *routecompiler.Compiler
	resolver *Resolver
}

// NewPipeline builds a Pipeline over an already-constructed store,
// compiler, and resolver.
func NewPipeline(store *routestore.Store, compiler *routecompiler.Compiler, resolver *Resolver) *Pipeline {
	return &Pipeline{store: store, compiler: compiler, resolver: resolver}
}

// Rebuild compiles every enabled definition currently in the store and
// publishes the resulting snapshot. Called once at startup and again
// on every change notification.
func (p *Pipeline) Rebuild() {
	defs := p.store.Definitions()
	compiled := make([]*route.CompiledRoute, 0, len(defs))
	for _, def := range defs {
		if !def.Enabled {
			continue
		}
		cr, err := p.compiler.Compile(def)
		if err != nil {
			logging.Warn("dropping route from snapshot: compile failed", zap.String("route", def.ID), zap.Error(err))
			continue
		}
		compiled = append(compiled, cr)
	}
	p.resolver.Swap(route.NewSnapshot(compiled))
}

// Run performs the initial load and rebuild, then blocks consuming
// change notifications until ctx is done, rebuilding on every event.
// Callers run it in its own goroutine.
func (p *Pipeline) Run(ctx context.Context) error {
	if err := p.store.Load(ctx); err != nil {
		logging.Warn("initial route load failed, starting from fallback set", zap.Error(err))
	}
	p.Rebuild()

	changes := p.store.Watch()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changes:
			p.Rebuild()
		}
	}
}
