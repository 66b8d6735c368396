package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/bleu-ims/ims-gateway/api/middleware"
	"github.com/bleu-ims/ims-gateway/api/responses"
	"github.com/bleu-ims/ims-gateway/api/validators"
	"github.com/bleu-ims/ims-gateway/internal/catalog"
	"github.com/bleu-ims/ims-gateway/internal/mutations"
	"github.com/bleu-ims/ims-gateway/internal/session"
	"github.com/bleu-ims/ims-gateway/internal/views"
	pkgerrors "github.com/bleu-ims/ims-gateway/pkg/errors"
	"github.com/bleu-ims/ims-gateway/pkg/logger"
)

type mutationSubmitter interface {
	Submit(ctx context.Context, s *session.Session, req mutations.Request) (*mutations.Result, error)
}

type mutationResponse struct {
	Record       json.RawMessage `json:"record,omitempty"`
	Refreshed    []views.Name    `json:"refreshed"`
	View         *views.Page     `json:"view,omitempty"`
	RefreshError string          `json:"refresh_error,omitempty"`
}

// ResourceMutation proxies one create, update or delete of {kind} and answers
// with the confirmed record and the refreshed view named by ?view=.
func ResourceMutation(op catalog.Op, submitter mutationSubmitter, defaultPerPage int, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		s := middleware.SessionFromContext(ctx)
		if s == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthenticated, "missing session"))
			return
		}

		kind, err := catalog.ParseKind(chi.URLParam(r, "kind"))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "unknown resource kind"))
			return
		}

		req := mutations.Request{Kind: kind, Op: op}
		if op != catalog.OpCreate {
			req.ID = strings.TrimSpace(chi.URLParam(r, "id"))
		}
		if op != catalog.OpDelete {
			if req.Body, err = validators.ReadBody(r); err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
		}
		if raw := r.URL.Query().Get("view"); strings.TrimSpace(raw) != "" {
			if req.View, err = parseViewName(raw); err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
		}
		q, err := parseViewQuery(r, defaultPerPage)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := submitter.Submit(ctx, s, req)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		resp := mutationResponse{Record: result.Record, Refreshed: result.Refreshed}
		if resp.Refreshed == nil {
			resp.Refreshed = []views.Name{}
		}
		if result.Snapshot != nil {
			resp.View = result.Snapshot.Project(q)
		}
		if result.RefreshError != nil {
			resp.RefreshError = refreshMessage(result.RefreshError)
		}

		status := http.StatusOK
		if op == catalog.OpCreate {
			status = http.StatusCreated
		}
		responses.WriteSuccessStatus(w, status, resp)
	}
}

func refreshMessage(err error) string {
	typed := pkgerrors.As(err)
	if typed == nil {
		return pkgerrors.MetadataFor(pkgerrors.CodeInternal).PublicMessage
	}
	if typed.Code() == pkgerrors.CodeUnreachable {
		return pkgerrors.MetadataFor(pkgerrors.CodeUnreachable).PublicMessage
	}
	return typed.Message()
}
