package middleware

import (
	"net/http"
	"strings"

	"github.com/enamelgeorgia/storefront/api/responses"
	pkgauth "github.com/enamelgeorgia/storefront/pkg/auth"
	"github.com/enamelgeorgia/storefront/pkg/config"
	pkgerrors "github.com/enamelgeorgia/storefront/pkg/errors"
	"github.com/enamelgeorgia/storefront/pkg/logger"
	"github.com/enamelgeorgia/storefront/pkg/types"
)

const sessionHeader = "X-Session-Id"

// Identity resolves the caller for every request. A bearer token, when
// present, must be valid; without one the X-Session-Id header names a
// guest cart session. Cart routes accept either identity, so this
// middleware never rejects an anonymous request by itself.
func Identity(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			caller := types.CallerContext{Role: types.RoleGuest}

			if raw != "" {
				token := raw
				if strings.HasPrefix(strings.ToLower(token), "bearer ") {
					token = strings.TrimSpace(token[7:])
				}
				if token == "" {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
					return
				}

				claims, err := pkgauth.ParseAccessToken(cfg, token)
				if err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
					return
				}

				userID := claims.UserID
				caller = types.CallerContext{UserID: &userID, Role: claims.Role}
			} else if sessionID := strings.TrimSpace(r.Header.Get(sessionHeader)); sessionID != "" {
				caller = types.CallerContext{SessionID: &sessionID, Role: types.RoleGuest}
			}

			ctx := WithCaller(r.Context(), caller)
			if logg != nil {
				if caller.UserID != nil {
					ctx = logg.WithUserID(ctx, caller.UserID.String())
				}
				if caller.SessionID != nil {
					ctx = logg.WithSessionID(ctx, *caller.SessionID)
				}
				ctx = logg.WithActorRole(ctx, string(caller.Role))
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects callers without a signed-in identity.
func RequireAuth(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !CallerFromContext(r.Context()).Authenticated() {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin rejects callers without the admin role.
func RequireAdmin(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !CallerFromContext(r.Context()).IsAdmin() {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireCartIdentity rejects requests that carry neither a user nor a
// guest session; the cart has nothing to attach to.
func RequireCartIdentity(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !CallerFromContext(r.Context()).HasCartIdentity() {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in or supply a session id"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
