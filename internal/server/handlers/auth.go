package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/server/models"
)

type contextKey string

const userContextKey contextKey = "user"

// basicAuth resolves the account of every request and stores it in the
// request context.
func (r *Router) basicAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		name, password, ok := req.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="fieldsync"`)
			respondError(w, http.StatusUnauthorized, "authorization required")
			return
		}

		user, err := r.svc.Authenticate(req.Context(), name, password)
		if errors.Is(err, common.ErrUnauthorized) {
			r.log.Warn(req.Context(), "authentication failed", "user", name)
			w.Header().Set("WWW-Authenticate", `Basic realm="fieldsync"`)
			respondError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		if err != nil {
			r.fail(w, req, err)
			return
		}

		ctx := context.WithValue(req.Context(), userContextKey, user)
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

func userFrom(ctx context.Context) *models.User {
	u, _ := ctx.Value(userContextKey).(*models.User)
	return u
}
