// Package introspect exposes a debug HTTP surface over a running metadata
// engine: cache statistics and the set of canonical types instantiated so
// far.
//
// The handler reveals type names and layout details of the running program,
// so it belongs on a loopback-only listener, the same way a pprof endpoint
// would be deployed. It performs no authentication itself.
package introspect

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/lattice-lang/lattice/runtime/metadata"
)

// Handler serves the introspection routes for one runtime.
type Handler struct {
	rt     *metadata.Runtime
	logger *zap.Logger
	mux    chi.Router
}

// NewHandler builds the introspection handler. A nil logger disables
// request logging.
func NewHandler(rt *metadata.Runtime, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{rt: rt, logger: logger}

	mux := chi.NewRouter()
	mux.Get("/stats", h.handleStats)
	mux.Get("/types", h.handleTypes)
	h.mux = mux
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, h.rt.Stats())
}

func (h *Handler) handleTypes(w http.ResponseWriter, r *http.Request) {
	types := h.rt.Types()
	if types == nil {
		types = []metadata.TypeInfo{}
	}
	h.writeJSON(w, r, types)
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode introspection response",
			zap.String("path", r.URL.Path),
			zap.Error(err))
		return
	}
	h.logger.Debug("introspection request",
		zap.String("path", r.URL.Path),
		zap.String("remote", r.RemoteAddr))
}
