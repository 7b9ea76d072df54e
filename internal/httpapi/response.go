package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	goSession "github.com/MrEthical07/goSession"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const maxBodyBytes = 64 << 10

type errorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type errorResponse struct {
	Error errorDetail `json:"error"`
}

func errorBody(code, message string) errorResponse {
	return errorResponse{Error: errorDetail{Code: code, Message: message}}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decode reads a JSON body into dst and validates it. It writes the 400
// response itself and reports false on failure.
func (s *server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("BAD_REQUEST", "malformed JSON body"))
		return false
	}

	if err := s.validate.Struct(dst); err != nil {
		body := errorBody("VALIDATION_FAILED", "request validation failed")
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			body.Error.Fields = make(map[string]string, len(verrs))
			for _, fe := range verrs {
				body.Error.Fields[fe.Field()] = fe.Tag()
			}
		}
		writeJSON(w, http.StatusBadRequest, body)
		return false
	}
	return true
}

// writeError maps authority errors onto status codes. The four
// authentication failures share one undifferentiated 401 body.
func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case goSession.IsAuthFailure(err):
		writeJSON(w, http.StatusUnauthorized, errorBody("UNAUTHORIZED", "unauthorized"))
	case errors.Is(err, goSession.ErrRateLimited):
		writeJSON(w, http.StatusTooManyRequests, errorBody("RATE_LIMITED", "too many failed attempts, try again later"))
	case errors.Is(err, goSession.ErrAccountExists):
		writeJSON(w, http.StatusConflict, errorBody("ACCOUNT_EXISTS", "account already exists"))
	case errors.Is(err, goSession.ErrPasswordPolicy):
		writeJSON(w, http.StatusBadRequest, errorBody("PASSWORD_POLICY", err.Error()))
	case errors.Is(err, goSession.ErrPasswordReuse):
		writeJSON(w, http.StatusBadRequest, errorBody("PASSWORD_REUSE", err.Error()))
	case errors.Is(err, goSession.ErrProfileInvalid):
		writeJSON(w, http.StatusBadRequest, errorBody("PROFILE_INVALID", err.Error()))
	case errors.Is(err, goSession.ErrProfileNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("NOT_FOUND", "profile not found"))
	case errors.Is(err, goSession.ErrEngineNotReady):
		writeJSON(w, http.StatusNotImplemented, errorBody("NOT_IMPLEMENTED", "operation not available"))
	case errors.Is(err, goSession.ErrStoreUnavailable),
		errors.Is(err, goSession.ErrSessionCreationFailed),
		errors.Is(err, goSession.ErrSessionInvalidationFailed):
		s.logger.Warn("request failed on session store",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeJSON(w, http.StatusServiceUnavailable, errorBody("UNAVAILABLE", "service temporarily unavailable"))
	default:
		s.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, errorBody("INTERNAL", "internal error"))
	}
}
