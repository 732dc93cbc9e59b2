package http

import (
	"context"
	"net/http"
	"time"

	"monthbook/internal/core"
	applog "monthbook/internal/log"
)

const sessionCookie = "monthbook_session"

type contextKey int

const (
	actorKey contextKey = iota
	userKey
)

// actorFrom returns the signed in actor, or the anonymous actor.
func actorFrom(ctx context.Context) core.Actor {
	actor, _ := ctx.Value(actorKey).(core.Actor)
	return actor
}

func userFrom(ctx context.Context) *core.User {
	u, _ := ctx.Value(userKey).(*core.User)
	return u
}

// authenticate resolves the session cookie into an actor for the rest of the
// chain. Requests without a valid session continue as anonymous.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(sessionCookie)
		if err != nil || c.Value == "" {
			next.ServeHTTP(w, r)
			return
		}

		actor, user, err := s.auth.Resolve(r.Context(), c.Value)
		if err != nil {
			applog.FromContext(r.Context()).WithComponent(applog.ComponentAuth).ErrorContext(r.Context(),
				"Session lookup failed",
				applog.FieldErrorType, applog.ErrorTypeDatabase,
				applog.FieldError, err)
			next.ServeHTTP(w, r)
			return
		}
		if !actor.Authenticated() {
			clearSession(w, r)
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), actorKey, actor)
		ctx = context.WithValue(ctx, userKey, &user)
		ctx = applog.WithContext(ctx, applog.FromContext(ctx).With(applog.FieldUserID, actor.ID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func setSession(w http.ResponseWriter, r *http.Request, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSession(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}
