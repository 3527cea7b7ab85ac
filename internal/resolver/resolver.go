// Package resolver holds the currently published route.Snapshot
// behind an atomic pointer and resolves each inbound request against
// it without locking, so route reloads driven by the route store
// never block the request path.
package resolver

import (
	"net/http"
	"sync/atomic"

	"github.com/neuragate/gateway/internal/route"
)

// Resolver is the single-writer, many-reader holder for the live
// route snapshot. The zero value is ready to use and resolves every
// request to nil until the first Swap.
type Resolver struct {
	current atomic.Pointer[route.Snapshot]
}

// New builds an empty Resolver.
func New() *Resolver {
	return &Resolver{}
}

// Swap atomically publishes a new snapshot. Requests already resolved
// against the previous snapshot keep running against it; the swap
// only affects resolutions that happen after it completes.
func (r *Resolver) Swap(s *route.Snapshot) {
	r.current.Store(s)
}

// Current returns the most recently published snapshot, or nil if
// none has been published yet.
func (r *Resolver) Current() *route.Snapshot {
	return r.current.Load()
}

// Resolve returns the first compiled route in the current snapshot
// whose predicates match req, or nil if none do or no snapshot has
// been published yet.
func (r *Resolver) Resolve(req *http.Request) *route.CompiledRoute {
	return r.current.Load().Resolve(req)
}
