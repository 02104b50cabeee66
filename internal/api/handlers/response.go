package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/ConflictingTheories/meme-citadel-sub000/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var requestValidate *validator.Validate

func init() {
	requestValidate = validator.New()
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, code string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

// errorCodes maps service errors to a status and a stable code. Order
// matters only where one error wraps another.
var errorCodes = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrNodeNotFound, http.StatusNotFound, "NodeNotFound"},
	{domain.ErrEdgeNotFound, http.StatusNotFound, "EdgeNotFound"},
	{domain.ErrIdentityNotFound, http.StatusNotFound, "IdentityNotFound"},
	{domain.ErrArchiveNotFound, http.StatusNotFound, "ArchiveNotFound"},
	{domain.ErrDanglingReference, http.StatusUnprocessableEntity, "DanglingReference"},
	{domain.ErrSignatureIncomplete, http.StatusUnprocessableEntity, "SignatureIncomplete"},
	{domain.ErrAlreadyVoted, http.StatusConflict, "AlreadyVoted"},
	{domain.ErrRetracted, http.StatusConflict, "Retracted"},
	{domain.ErrNotCreator, http.StatusForbidden, "NotCreator"},
	{domain.ErrTimeout, http.StatusGatewayTimeout, "Timeout"},
	{domain.ErrRateLimitExceeded, http.StatusTooManyRequests, "RateLimitExceeded"},
	{domain.ErrInvalidKind, http.StatusBadRequest, "InvalidKind"},
	{domain.ErrInvalidRelation, http.StatusBadRequest, "InvalidRelation"},
	{domain.ErrInvalidWeight, http.StatusBadRequest, "InvalidWeight"},
	{domain.ErrInvalidPayload, http.StatusBadRequest, "InvalidPayload"},
	{domain.ErrKindImmutable, http.StatusBadRequest, "KindImmutable"},
	{domain.ErrSelfLoop, http.StatusBadRequest, "SelfLoop"},
	{domain.ErrTitleRequired, http.StatusBadRequest, "TitleRequired"},
	{domain.ErrQueryEmpty, http.StatusBadRequest, "QueryEmpty"},
	{domain.ErrNotAClaim, http.StatusBadRequest, "NotAClaim"},
}

// writeServiceError translates an error returned by the engine. Anything
// unrecognised is logged and reported as a 500 without its message.
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, op string, err error) {
	for _, m := range errorCodes {
		if errors.Is(err, m.err) {
			writeError(w, m.status, err.Error(), m.code)
			return
		}
	}
	logger.Error("request failed", zap.String("op", op), zap.Error(err))
	writeError(w, http.StatusInternalServerError, "failed to "+op, "Internal")
}

// decodeRequest reads a JSON body into dst and runs its validate tags.
func decodeRequest(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if err := requestValidate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", strings.ToLower(fe.Field()), fe.Tag()))
			}
			return fmt.Errorf("invalid fields: %s", strings.Join(fields, ", "))
		}
		return err
	}
	return nil
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return v, nil
}

func queryFloat(r *http.Request, name string) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return v, nil
}

func queryUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.URL.Query().Get(name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}
