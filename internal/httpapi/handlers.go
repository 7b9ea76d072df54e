package httpapi

import (
	"net/http"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/middleware"
)

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=256"`
	Email    string `json:"email" validate:"required,email,max=320"`
	Password string `json:"password" validate:"required"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type profileRequest struct {
	Name   *string `json:"name" validate:"omitnil,min=1,max=256"`
	Avatar *string `json:"avatar" validate:"omitnil,max=256"`
}

type passwordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required"`
}

type tokenResponse struct {
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expiresAt"`
	User      goSession.Profile `json:"user"`
}

type meResponse struct {
	goSession.Profile
	TokenExpiresAt time.Time `json:"tokenExpiresAt"`
}

func issuedResponse(issued *goSession.Issued) tokenResponse {
	return tokenResponse{Token: issued.Token, ExpiresAt: issued.ExpiresAt, User: issued.Profile}
}

func (s *server) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !s.decode(w, r, &req) {
		return
	}

	issued, err := s.auth.Register(r.Context(), goSession.NewAccount{Name: req.Name, Email: req.Email, Secret: req.Password})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, issuedResponse(issued))
}

func (s *server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decode(w, r, &req) {
		return
	}

	issued, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, issuedResponse(issued))
}

func (s *server) logout(w http.ResponseWriter, r *http.Request) {
	subject, _ := middleware.SubjectFromContext(r.Context())
	token, _ := middleware.BearerToken(r.Header.Get("Authorization"))

	if err := s.auth.Logout(r.Context(), subject.ID, token); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) logoutAll(w http.ResponseWriter, r *http.Request) {
	subject, _ := middleware.SubjectFromContext(r.Context())

	if err := s.auth.LogoutAll(r.Context(), subject.ID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) me(w http.ResponseWriter, r *http.Request) {
	subject, _ := middleware.SubjectFromContext(r.Context())

	profile, err := s.auth.GetProfile(r.Context(), subject.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, meResponse{Profile: profile, TokenExpiresAt: subject.ExpiresAt})
}

func (s *server) getProfile(w http.ResponseWriter, r *http.Request) {
	subject, _ := middleware.SubjectFromContext(r.Context())

	profile, err := s.auth.GetProfile(r.Context(), subject.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *server) updateProfile(w http.ResponseWriter, r *http.Request) {
	subject, _ := middleware.SubjectFromContext(r.Context())

	var req profileRequest
	if !s.decode(w, r, &req) {
		return
	}

	profile, err := s.auth.UpdateProfile(r.Context(), subject.ID, goSession.ProfileUpdate{Name: req.Name, Avatar: req.Avatar})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *server) changePassword(w http.ResponseWriter, r *http.Request) {
	subject, _ := middleware.SubjectFromContext(r.Context())

	var req passwordRequest
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.auth.ChangePassword(r.Context(), subject.ID, req.CurrentPassword, req.NewPassword); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) sessions(w http.ResponseWriter, r *http.Request) {
	subject, _ := middleware.SubjectFromContext(r.Context())

	list, err := s.auth.ListSessions(r.Context(), subject.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": list})
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	h := s.auth.Health(r.Context())
	status := http.StatusOK
	state := "ok"
	if !h.RedisAvailable {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}
	writeJSON(w, status, map[string]any{
		"status":    state,
		"redis":     h.RedisAvailable,
		"latencyMs": h.RedisLatency.Milliseconds(),
	})
}
