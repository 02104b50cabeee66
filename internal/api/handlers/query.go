package handlers

import (
	"net/http"

	"github.com/ConflictingTheories/meme-citadel-sub000/internal/domain"
	"github.com/ConflictingTheories/meme-citadel-sub000/internal/service"
	"go.uber.org/zap"
)

type QueryHandler struct {
	engine *service.Engine
	logger *zap.Logger
}

func NewQueryHandler(engine *service.Engine, logger *zap.Logger) *QueryHandler {
	return &QueryHandler{engine: engine, logger: logger}
}

func (h *QueryHandler) Path(w http.ResponseWriter, r *http.Request) {
	from, err := queryUUID(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "InvalidRequest")
		return
	}
	to, err := queryUUID(r, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "InvalidRequest")
		return
	}
	maxHops, err := queryInt(r, "max_hops", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "InvalidRequest")
		return
	}

	path, err := h.engine.ShortestPath(r.Context(), from, to, maxHops)
	if err != nil {
		writeServiceError(w, h.logger, "find path", err)
		return
	}
	writeJSON(w, http.StatusOK, path)
}

func (h *QueryHandler) Search(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", domain.DefaultPageLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "InvalidRequest")
		return
	}

	result, err := h.engine.Search(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		writeServiceError(w, h.logger, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
