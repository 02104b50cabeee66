package handlers

import (
	"net/http"

	"github.com/ConflictingTheories/meme-citadel-sub000/internal/api/middleware"
	"github.com/ConflictingTheories/meme-citadel-sub000/internal/domain"
	"github.com/ConflictingTheories/meme-citadel-sub000/internal/service"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type EdgeHandler struct {
	engine *service.Engine
	logger *zap.Logger
}

func NewEdgeHandler(engine *service.Engine, logger *zap.Logger) *EdgeHandler {
	return &EdgeHandler{engine: engine, logger: logger}
}

type createEdgeRequest struct {
	SourceID string   `json:"source_id" validate:"required,uuid"`
	TargetID string   `json:"target_id" validate:"required,uuid"`
	Relation string   `json:"relation" validate:"required"`
	Weight   *float64 `json:"weight" validate:"omitempty,min=0,max=1"`
}

// Create links two existing nodes.
func (h *EdgeHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "IdentityRequired")
		return
	}

	var req createEdgeRequest
	if err := decodeRequest(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "InvalidRequest")
		return
	}

	edge, err := h.engine.Graph.CreateEdge(r.Context(), service.EdgeInput{
		SourceID: uuid.MustParse(req.SourceID),
		TargetID: uuid.MustParse(req.TargetID),
		Relation: domain.Relation(req.Relation),
		Weight:   req.Weight,
	}, identity.PublicID)
	if err != nil {
		writeServiceError(w, h.logger, "create edge", err)
		return
	}
	writeJSON(w, http.StatusCreated, edge)
}

func (h *EdgeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "InvalidRequest")
		return
	}
	edge, err := h.engine.Graph.GetEdge(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, "get edge", err)
		return
	}
	writeJSON(w, http.StatusOK, edge)
}

type castVoteRequest struct {
	Agree *bool `json:"agree" validate:"required"`
}

type castVoteResponse struct {
	EdgeID uuid.UUID    `json:"edge_id"`
	Tally  domain.Tally `json:"tally"`
}

func (h *EdgeHandler) Vote(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "IdentityRequired")
		return
	}

	edgeID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "InvalidRequest")
		return
	}

	var req castVoteRequest
	if err := decodeRequest(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "InvalidRequest")
		return
	}

	tally, err := h.engine.CastVerification(r.Context(), edgeID, *req.Agree, identity.PublicID)
	if err != nil {
		writeServiceError(w, h.logger, "cast verification", err)
		return
	}
	writeJSON(w, http.StatusOK, castVoteResponse{EdgeID: edgeID, Tally: tally})
}

func (h *EdgeHandler) Retract(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "IdentityRequired")
		return
	}

	edgeID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "InvalidRequest")
		return
	}

	if err := h.engine.Graph.RetractEdge(r.Context(), edgeID, identity.PublicID); err != nil {
		writeServiceError(w, h.logger, "retract edge", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
