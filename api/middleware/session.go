package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/bleu-ims/ims-gateway/api/responses"
	"github.com/bleu-ims/ims-gateway/internal/session"
	pkgAuth "github.com/bleu-ims/ims-gateway/pkg/auth"
	pkgerrors "github.com/bleu-ims/ims-gateway/pkg/errors"
	"github.com/bleu-ims/ims-gateway/pkg/logger"
)

// SessionHeader carries the id returned by POST /api/v1/session.
const SessionHeader = "X-Session-Id"

type SessionResolver interface {
	Resolve(ctx context.Context, id string) (*session.Session, error)
	ResolveBearer(ctx context.Context, token string) (*session.Session, error)
}

// RequireSession resolves the caller's session from X-Session-Id, or from a
// raw bearer token, and seeds the request context with it.
func RequireSession(resolver SessionResolver, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			var (
				s   *session.Session
				err error
			)
			if id := strings.TrimSpace(r.Header.Get(SessionHeader)); id != "" {
				s, err = resolver.Resolve(ctx, id)
			} else if token, ok := pkgAuth.BearerToken(r.Header.Get("Authorization")); ok {
				s, err = resolver.ResolveBearer(ctx, token)
			} else {
				err = pkgerrors.New(pkgerrors.CodeUnauthenticated, "missing credentials")
			}
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}

			ctx = WithSession(ctx, s)
			if logg != nil {
				ctx = logg.WithUsername(logg.WithSessionID(ctx, s.ID()), s.Username())
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
