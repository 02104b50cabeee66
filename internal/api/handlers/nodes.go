package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ConflictingTheories/meme-citadel-sub000/internal/api/middleware"
	"github.com/ConflictingTheories/meme-citadel-sub000/internal/domain"
	"github.com/ConflictingTheories/meme-citadel-sub000/internal/service"
	"go.uber.org/zap"
)

type NodeHandler struct {
	engine *service.Engine
	logger *zap.Logger
}

func NewNodeHandler(engine *service.Engine, logger *zap.Logger) *NodeHandler {
	return &NodeHandler{engine: engine, logger: logger}
}

type listNodesResponse struct {
	Nodes  []*domain.Node `json:"nodes"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

func (h *NodeHandler) List(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("kind")
	if kind == "" {
		writeError(w, http.StatusBadRequest, "kind is required", "InvalidRequest")
		return
	}
	limit, err := queryInt(r, "limit", domain.DefaultPageLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "InvalidRequest")
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "InvalidRequest")
		return
	}

	page := domain.Page{Limit: limit, Offset: offset}.Normalize()
	nodes, err := h.engine.Graph.ListNodesByKind(r.Context(), domain.NodeKind(kind), page)
	if err != nil {
		writeServiceError(w, h.logger, "list nodes", err)
		return
	}
	if nodes == nil {
		nodes = []*domain.Node{}
	}
	writeJSON(w, http.StatusOK, listNodesResponse{Nodes: nodes, Limit: page.Limit, Offset: page.Offset})
}

func (h *NodeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "InvalidRequest")
		return
	}
	out, err := h.engine.GetNode(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, "get node", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type updateNodeRequest struct {
	Kind    string          `json:"kind"`
	Title   string          `json:"title" validate:"required,max=512"`
	Body    string          `json:"body" validate:"max=65536"`
	Tags    []string        `json:"tags" validate:"max=32,dive,max=64"`
	Payload json.RawMessage `json:"payload"`
}

// Update rewrites the mutable fields of a node. The kind may be omitted; a
// different kind is rejected by the engine.
func (h *NodeHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "IdentityRequired")
		return
	}

	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "InvalidRequest")
		return
	}

	var req updateNodeRequest
	if err := decodeRequest(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "InvalidRequest")
		return
	}

	kind := domain.NodeKind(req.Kind)
	if kind == "" {
		current, err := h.engine.Graph.GetNode(r.Context(), id)
		if err != nil {
			writeServiceError(w, h.logger, "update node", err)
			return
		}
		kind = current.Kind
	}
	if !domain.ValidNodeKind(string(kind)) {
		writeServiceError(w, h.logger, "update node", domain.ErrInvalidKind)
		return
	}
	payload, err := domain.DecodePayload(kind, req.Payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "InvalidPayload")
		return
	}

	node, err := h.engine.Graph.UpdateNode(r.Context(), id, service.NodeInput{
		Kind:    domain.NodeKind(req.Kind),
		Title:   req.Title,
		Body:    req.Body,
		Tags:    req.Tags,
		Payload: payload,
	}, identity.PublicID)
	if err != nil {
		writeServiceError(w, h.logger, "update node", err)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

func (h *NodeHandler) Retract(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "IdentityRequired")
		return
	}

	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "InvalidRequest")
		return
	}
	if err := h.engine.Graph.RetractNode(r.Context(), id, identity.PublicID); err != nil {
		writeServiceError(w, h.logger, "retract node", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Traverse walks the graph from the node. relations is a comma separated
// list; an unknown relation is rejected.
func (h *NodeHandler) Traverse(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "InvalidRequest")
		return
	}
	depth, err := queryInt(r, "depth", domain.DefaultMaxTraversalDepth)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "InvalidRequest")
		return
	}
	minWeight, err := queryFloat(r, "min_weight")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "InvalidRequest")
		return
	}

	var filters domain.TraverseOptions
	filters.MinWeight = minWeight
	if raw := r.URL.Query().Get("relations"); raw != "" {
		for _, rel := range strings.Split(raw, ",") {
			rel = strings.TrimSpace(rel)
			if !domain.ValidRelation(rel) {
				writeServiceError(w, h.logger, "traverse", domain.ErrInvalidRelation)
				return
			}
			filters.Relations = append(filters.Relations, domain.Relation(rel))
		}
	}
	if dir := r.URL.Query().Get("direction"); dir != "" {
		if !domain.ValidDirection(dir) {
			writeError(w, http.StatusBadRequest, "invalid direction", "InvalidRequest")
			return
		}
		filters.Direction = domain.Direction(dir)
	}

	result, err := h.engine.Traverse(r.Context(), id, depth, filters)
	if err != nil {
		writeServiceError(w, h.logger, "traverse", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *NodeHandler) Score(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "InvalidRequest")
		return
	}
	score, err := h.engine.Score(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, "score node", err)
		return
	}
	writeJSON(w, http.StatusOK, score)
}

func (h *NodeHandler) VerifyArchive(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "InvalidRequest")
		return
	}
	check, err := h.engine.Graph.VerifyArchive(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, "verify archive", err)
		return
	}
	writeJSON(w, http.StatusOK, check)
}
