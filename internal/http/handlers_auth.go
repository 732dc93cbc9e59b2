package http

import (
	"errors"
	"net/http"

	"monthbook/internal/auth"
	"monthbook/internal/core"
	applog "monthbook/internal/log"
)

func (s *Server) handleSignUpForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "sign_up.html", http.StatusOK, page{Data: credentialsView{}})
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	params, err := parseSignUpParams(w, r)
	if err != nil {
		BadRequestError("Malformed form").Write(w, r)
		return
	}

	u, err := s.auth.SignUp(r.Context(), params)
	if errors.Is(err, core.ErrValidation) {
		s.render(w, r, "sign_up.html", http.StatusUnprocessableEntity, page{
			Alert:  "Please review the problems below.",
			Errors: core.FieldErrors(err),
			Data:   credentialsView{Email: params.Email},
		})
		return
	}
	if err != nil {
		s.fail(w, r, err, "")
		return
	}

	if !s.startSession(w, r, u) {
		return
	}
	applog.FromContext(r.Context()).WithComponent(applog.ComponentAuth).InfoContext(r.Context(), "User signed up",
		applog.FieldOperation, applog.OpSignUp,
		applog.FieldUserID, u.ID)
	NewResponse().Notice("Welcome! You have signed up successfully.").RedirectTo("/months").Write(w, r)
}

func (s *Server) handleSignInForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "sign_in.html", http.StatusOK, page{Data: credentialsView{}})
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	email, password, err := parseCredentials(w, r)
	if err != nil {
		BadRequestError("Malformed form").Write(w, r)
		return
	}

	u, err := s.auth.SignIn(r.Context(), email, password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		applog.FromContext(r.Context()).WithComponent(applog.ComponentAuth).WarnContext(r.Context(), "Sign in rejected",
			applog.FieldOperation, applog.OpSignIn,
			applog.FieldErrorType, applog.ErrorTypeAuth)
		s.render(w, r, "sign_in.html", http.StatusUnprocessableEntity, page{
			Alert: "Invalid email or password.",
			Data:  credentialsView{Email: email},
		})
		return
	}
	if err != nil {
		s.fail(w, r, err, "")
		return
	}

	if !s.startSession(w, r, u) {
		return
	}
	NewResponse().Notice("Signed in successfully.").RedirectTo("/months").Write(w, r)
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	clearSession(w, r)
	if actor := actorFrom(r.Context()); actor.Authenticated() {
		if err := s.auth.SignOut(r.Context(), actor.ID); err != nil {
			s.fail(w, r, err, "")
			return
		}
	}
	NewResponse().Notice("Signed out successfully.").RedirectTo("/").Write(w, r)
}

// startSession issues a session cookie for u. It writes the failure response
// itself and reports whether the handler may continue.
func (s *Server) startSession(w http.ResponseWriter, r *http.Request, u core.User) bool {
	token, expires, err := s.auth.Issue(u)
	if err != nil {
		s.fail(w, r, err, "")
		return false
	}
	setSession(w, r, token, expires)
	return true
}
