package gateway

import (
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"

	"github.com/neuragate/gateway/internal/correlation"
	"github.com/neuragate/gateway/internal/fallback"
	"github.com/neuragate/gateway/internal/gwerrors"
	"github.com/neuragate/gateway/internal/telemetry"
)

// reservedPrefixes names every path prefix this process never routes
// to an upstream: the admin surface, the local fallback endpoints,
// the actuator health check, and the two out-of-process collaborators
// (auth, dashboard) that own their own routing.
var reservedPrefixes = []string{"/admin", "/fallback", "/actuator", "/auth", "/dashboard"}

func isReserved(path string) bool {
	for _, p := range reservedPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// Handler builds the full request-path pipeline: httprouter serves
// the fixed admin/fallback/actuator surface directly, and everything
// else falls through to the correlation -> telemetry capture ->
// resolve -> filter-chain pipeline that is this gateway's actual data
// plane.
func (g *Gateway) Handler() http.Handler {
	router := httprouter.New()
	g.mountFallback(router)
	g.mountActuator(router)
	g.mountAdmin(router)

	dynamic := correlation.Middleware(telemetry.Capture(g.publisher.Publish, http.HandlerFunc(g.dispatch)))
	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isReserved(r.URL.Path) {
			gwerrors.ErrNotFound.WriteJSON(w)
			return
		}
		dynamic.ServeHTTP(w, r)
	})
	return router
}

func (g *Gateway) mountFallback(router *httprouter.Router) {
	mux := fallback.Mux()
	router.Handler(http.MethodGet, "/fallback/message", mux)
	router.Handler(http.MethodGet, "/fallback/backend", mux)
	router.Handler(http.MethodGet, "/fallback/critical", mux)
}

// dispatch resolves the route against the
// current snapshot and hand off to its pre-compiled handler, which
// already orders RateLimiter -> Retry -> CircuitBreaker -> user
// filters -> Proxy per routecompiler.Compile. A resolver miss is a
// plain 404; the store being unavailable never surfaces here since
// Definitions() always falls back to the in-memory critical set.
func (g *Gateway) dispatch(w http.ResponseWriter, r *http.Request) {
	cr := g.resolver.Resolve(r)
	if cr == nil {
		gwerrors.ErrNotFound.WriteJSON(w)
		return
	}
	cr.Handler.ServeHTTP(w, r)
}
