package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bleu-ims/ims-gateway/api/middleware"
	"github.com/bleu-ims/ims-gateway/api/responses"
	"github.com/bleu-ims/ims-gateway/api/validators"
	"github.com/bleu-ims/ims-gateway/internal/projection"
	"github.com/bleu-ims/ims-gateway/internal/session"
	"github.com/bleu-ims/ims-gateway/internal/views"
	pkgerrors "github.com/bleu-ims/ims-gateway/pkg/errors"
	"github.com/bleu-ims/ims-gateway/pkg/logger"
	"github.com/bleu-ims/ims-gateway/pkg/pagination"
)

type viewMounter interface {
	Mount(s *session.Session, name views.Name) (*views.View, error)
	Unmount(sessionID string, name views.Name) bool
}

type viewIndex struct {
	Views   []views.Name `json:"views"`
	Mounted []views.Name `json:"mounted"`
}

// ViewIndex lists every view and the ones the caller has mounted.
func ViewIndex(lister mountedLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := middleware.SessionFromContext(r.Context())
		if s == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthenticated, "missing session"))
			return
		}
		resp := viewIndex{Views: views.Names, Mounted: []views.Name{}}
		for _, v := range lister.Mounted(s.ID()) {
			resp.Mounted = append(resp.Mounted, v.Name())
		}
		responses.WriteSuccess(w, resp)
	}
}

// ViewShow mounts the view on first use and returns one projected page.
func ViewShow(mounter viewMounter, defaultPerPage int, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := middleware.SessionFromContext(r.Context())
		if s == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthenticated, "missing session"))
			return
		}

		name, err := parseViewName(chi.URLParam(r, "view"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		q, err := parseViewQuery(r, defaultPerPage)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		v, err := mounter.Mount(s, name)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithView(ctx, string(name))
		}
		page, err := v.Query(ctx, q)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, page)
	}
}

// ViewDelete unmounts the view and drops its cached collections.
func ViewDelete(mounter viewMounter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := middleware.SessionFromContext(r.Context())
		if s == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthenticated, "missing session"))
			return
		}

		name, err := parseViewName(chi.URLParam(r, "view"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"view":      name,
			"unmounted": mounter.Unmount(s.ID(), name),
		})
	}
}

func parseViewName(raw string) (views.Name, error) {
	name, err := views.ParseName(raw)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "unknown view").WithDetails(map[string]any{"views": views.Names})
	}
	return name, nil
}

func parseViewQuery(r *http.Request, defaultPerPage int) (views.Query, error) {
	page, err := validators.ParseQueryInt(r, "page", 1, 1, 1_000_000)
	if err != nil {
		return views.Query{}, err
	}
	if defaultPerPage <= 0 {
		defaultPerPage = pagination.DefaultPerPage
	}
	perPage, err := validators.ParseQueryInt(r, "per_page", defaultPerPage, 1, pagination.MaxPerPage)
	if err != nil {
		return views.Query{}, err
	}
	sort, err := validators.ParseQueryEnum(r, "sort", string(projection.Ascending), string(projection.Descending))
	if err != nil {
		return views.Query{}, err
	}
	refresh, err := validators.ParseQueryBool(r, "refresh")
	if err != nil {
		return views.Query{}, err
	}

	values := r.URL.Query()
	return views.Query{
		Search:  validators.SanitizeString(values.Get("search"), validators.MaxSearchLength),
		Status:  validators.SanitizeString(values.Get("status"), validators.MaxSearchLength),
		Group:   validators.SanitizeString(values.Get("group"), validators.MaxSearchLength),
		Sort:    projection.ParseDirection(sort),
		Page:    pagination.Params{Page: page, PerPage: perPage},
		Refresh: refresh,
	}, nil
}
