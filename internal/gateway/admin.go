package gateway

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/neuragate/gateway/internal/gwerrors"
	"github.com/neuragate/gateway/internal/route"
	"github.com/neuragate/gateway/internal/telemetry"
)

// mountActuator wires GET /actuator/health to the health probe
// and GET /actuator/metrics to the Prometheus registry.
func (g *Gateway) mountActuator(router *httprouter.Router) {
	router.GET("/actuator/health", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		report := g.probe.Check(r.Context())
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(report)
	})
	router.Handler(http.MethodGet, "/actuator/metrics", telemetry.Handler())
}

// mountAdmin wires the admin REST surface: CRUD on route
// definitions backed directly by the route store. This is a minimal
// pass-through so the wired gateway is operable end to end without a
// separate admin process; validation and authorization for this
// surface belong to the external admin service that normally fronts
// it.
func (g *Gateway) mountAdmin(router *httprouter.Router) {
	router.GET("/admin/routes", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		defs := g.store.Definitions()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(defs)
	})

	router.POST("/admin/routes", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			gwerrors.ErrInternalServerError.WithDetails("failed to read request body").WriteJSON(w)
			return
		}
		var def route.Definition
		if err := json.Unmarshal(body, &def); err != nil {
			gwerrors.New(http.StatusBadRequest, "invalid route definition").WithDetails(err.Error()).WriteJSON(w)
			return
		}
		if err := g.store.Put(r.Context(), &def); err != nil {
			gwerrors.ErrInternalServerError.WithDetails(err.Error()).WriteJSON(w)
			return
		}
		g.Rebuild()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(def)
	})

	router.DELETE("/admin/routes/:id", func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if err := g.store.Delete(r.Context(), ps.ByName("id")); err != nil {
			gwerrors.ErrInternalServerError.WithDetails(err.Error()).WriteJSON(w)
			return
		}
		g.Rebuild()
		w.WriteHeader(http.StatusNoContent)
	})
}
