package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/bleu-ims/ims-gateway/api/middleware"
	"github.com/bleu-ims/ims-gateway/api/responses"
	"github.com/bleu-ims/ims-gateway/api/validators"
	"github.com/bleu-ims/ims-gateway/internal/session"
	"github.com/bleu-ims/ims-gateway/internal/views"
	pkgerrors "github.com/bleu-ims/ims-gateway/pkg/errors"
	"github.com/bleu-ims/ims-gateway/pkg/logger"
)

type sessionService interface {
	Establish(ctx context.Context, token, username string) (*session.Session, error)
	Logout(ctx context.Context, id, reason string) error
}

type mountedLister interface {
	Mounted(sessionID string) []*views.View
}

type createSessionRequest struct {
	Token    string `json:"token" validate:"required"`
	Username string `json:"username" validate:"omitempty,max=120"`
}

type sessionResponse struct {
	SessionID string       `json:"session_id"`
	Username  string       `json:"username"`
	Role      string       `json:"role"`
	ExpiresAt *time.Time   `json:"expires_at,omitempty"`
	Views     []views.Name `json:"views,omitempty"`
}

func newSessionResponse(s *session.Session) sessionResponse {
	resp := sessionResponse{SessionID: s.ID(), Username: s.Username(), Role: s.Role()}
	if exp := s.ExpiresAt(); !exp.IsZero() {
		resp.ExpiresAt = &exp
	}
	return resp
}

// SessionCreate binds a token obtained from the login flow to a new session.
func SessionCreate(svc sessionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createSessionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		s, err := svc.Establish(r.Context(), req.Token, validators.SanitizeString(req.Username, 120))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newSessionResponse(s))
	}
}

// SessionShow returns the caller's identity and mounted views.
func SessionShow(lister mountedLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := middleware.SessionFromContext(r.Context())
		if s == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthenticated, "missing session"))
			return
		}

		resp := newSessionResponse(s)
		for _, v := range lister.Mounted(s.ID()) {
			resp.Views = append(resp.Views, v.Name())
		}
		responses.WriteSuccess(w, resp)
	}
}

// SessionDelete logs the caller out. Every view of the session is unmounted
// by the logout listener.
func SessionDelete(svc sessionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := middleware.SessionFromContext(r.Context())
		if s == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthenticated, "missing session"))
			return
		}

		if err := svc.Logout(r.Context(), s.ID(), session.ReasonExplicit); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "logged_out"})
	}
}
