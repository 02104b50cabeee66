package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ConflictingTheories/meme-citadel-sub000/internal/api/middleware"
	"github.com/ConflictingTheories/meme-citadel-sub000/internal/domain"
	"github.com/ConflictingTheories/meme-citadel-sub000/internal/service"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ClaimHandler struct {
	engine *service.Engine
	logger *zap.Logger
}

func NewClaimHandler(engine *service.Engine, logger *zap.Logger) *ClaimHandler {
	return &ClaimHandler{engine: engine, logger: logger}
}

type createClaimRequest struct {
	Title    string   `json:"title" validate:"required,max=512"`
	Body     string   `json:"body" validate:"max=65536"`
	Tags     []string `json:"tags" validate:"max=32,dive,max=64"`
	ImageRef string   `json:"image_ref" validate:"omitempty,max=2048"`
	Caption  string   `json:"caption" validate:"max=2048"`
}

type createClaimResponse struct {
	NodeID uuid.UUID `json:"node_id"`
}

func (h *ClaimHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "IdentityRequired")
		return
	}

	var req createClaimRequest
	if err := decodeRequest(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "InvalidRequest")
		return
	}

	id, err := h.engine.CreateClaim(r.Context(), service.ClaimInput{
		Title:    req.Title,
		Body:     req.Body,
		Tags:     req.Tags,
		ImageRef: req.ImageRef,
		Caption:  req.Caption,
	}, identity.PublicID)
	if err != nil {
		writeServiceError(w, h.logger, "create claim", err)
		return
	}
	writeJSON(w, http.StatusCreated, createClaimResponse{NodeID: id})
}

type attachEvidenceRequest struct {
	Kind     string          `json:"kind" validate:"required"`
	Title    string          `json:"title" validate:"required,max=512"`
	Body     string          `json:"body" validate:"max=65536"`
	Tags     []string        `json:"tags" validate:"max=32,dive,max=64"`
	Payload  json.RawMessage `json:"payload"`
	Content  string          `json:"content" validate:"max=1048576"`
	Relation string          `json:"relation" validate:"required"`
	Weight   *float64        `json:"weight" validate:"omitempty,min=0,max=1"`
}

// AttachEvidence creates an evidence node and links it to the claim in the
// path. Kind and relation are checked by the engine so that the error codes
// match the rest of the API.
func (h *ClaimHandler) AttachEvidence(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "IdentityRequired")
		return
	}

	claimID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "InvalidRequest")
		return
	}

	var req attachEvidenceRequest
	if err := decodeRequest(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "InvalidRequest")
		return
	}

	if !domain.ValidNodeKind(req.Kind) {
		writeServiceError(w, h.logger, "attach evidence", domain.ErrInvalidKind)
		return
	}
	payload, err := domain.DecodePayload(domain.NodeKind(req.Kind), req.Payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "InvalidPayload")
		return
	}

	in := service.EvidenceInput{
		Kind:    domain.NodeKind(req.Kind),
		Title:   req.Title,
		Body:    req.Body,
		Tags:    req.Tags,
		Payload: payload,
		Weight:  req.Weight,
	}
	if req.Content != "" {
		in.Content = []byte(req.Content)
	}

	att, err := h.engine.AttachEvidence(r.Context(), claimID, in, domain.Relation(req.Relation), identity.PublicID)
	if err != nil {
		writeServiceError(w, h.logger, "attach evidence", err)
		return
	}
	writeJSON(w, http.StatusCreated, att)
}
