package handlers

import (
	"net"
	"net/http"

	"github.com/ConflictingTheories/meme-citadel-sub000/internal/domain"
	"github.com/ConflictingTheories/meme-citadel-sub000/internal/service"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type IdentityHandler struct {
	engine *service.Engine
	logger *zap.Logger
}

func NewIdentityHandler(engine *service.Engine, logger *zap.Logger) *IdentityHandler {
	return &IdentityHandler{engine: engine, logger: logger}
}

type deriveIdentityRequest struct {
	UserAgent           string   `json:"user_agent" validate:"required,max=1024"`
	Platform            string   `json:"platform" validate:"max=128"`
	Language            string   `json:"language" validate:"max=64"`
	Timezone            string   `json:"timezone" validate:"max=64"`
	ScreenResolution    string   `json:"screen_resolution" validate:"max=32"`
	ColorDepth          int      `json:"color_depth" validate:"min=0,max=64"`
	HardwareConcurrency int      `json:"hardware_concurrency" validate:"min=0,max=1024"`
	DeviceMemory        int      `json:"device_memory" validate:"min=0,max=4096"`
	WebGLVendor         string   `json:"webgl_vendor" validate:"max=256"`
	WebGLRenderer       string   `json:"webgl_renderer" validate:"max=256"`
	CanvasHash          string   `json:"canvas_hash" validate:"max=128"`
	AudioHash           string   `json:"audio_hash" validate:"max=128"`
	IPAddress           string   `json:"ip_address" validate:"omitempty,ip"`
	IPRegion            string   `json:"ip_region" validate:"max=64"`
	DeclaredRegion      string   `json:"declared_region" validate:"max=64"`
	GeoHash             string   `json:"geo_hash" validate:"max=32"`
	RTTBucket           int      `json:"rtt_bucket" validate:"min=0"`
	NetworkHints        []string `json:"network_hints" validate:"max=32,dive,max=256"`
}

func (req deriveIdentityRequest) signature() domain.Signature {
	return domain.Signature{
		UserAgent:           req.UserAgent,
		Platform:            req.Platform,
		Language:            req.Language,
		Timezone:            req.Timezone,
		ScreenResolution:    req.ScreenResolution,
		ColorDepth:          req.ColorDepth,
		HardwareConcurrency: req.HardwareConcurrency,
		DeviceMemory:        req.DeviceMemory,
		WebGLVendor:         req.WebGLVendor,
		WebGLRenderer:       req.WebGLRenderer,
		CanvasHash:          req.CanvasHash,
		AudioHash:           req.AudioHash,
		IPAddress:           req.IPAddress,
		IPRegion:            req.IPRegion,
		DeclaredRegion:      req.DeclaredRegion,
		GeoHash:             req.GeoHash,
		RTTBucket:           req.RTTBucket,
		NetworkHints:        req.NetworkHints,
	}
}

// Derive maps a signature to its identity, creating it on first sight. When
// the body carries no address the connection's address is used.
func (h *IdentityHandler) Derive(w http.ResponseWriter, r *http.Request) {
	var req deriveIdentityRequest
	if err := decodeRequest(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "InvalidRequest")
		return
	}

	sig := req.signature()
	if sig.IPAddress == "" {
		sig.IPAddress = remoteIP(r)
	}

	identity, err := h.engine.DeriveIdentity(r.Context(), sig)
	if err != nil {
		writeServiceError(w, h.logger, "derive identity", err)
		return
	}

	profile, err := h.engine.Identities.GetProfile(r.Context(), identity.PublicID)
	if err != nil {
		writeServiceError(w, h.logger, "derive identity", err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *IdentityHandler) Get(w http.ResponseWriter, r *http.Request) {
	profile, err := h.engine.Identities.GetProfile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.logger, "get identity", err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
