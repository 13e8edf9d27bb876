package api

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/rs/xid"

	"thumbexpert/internal/apperror"
	"thumbexpert/internal/auth"
	"thumbexpert/internal/catalog"
	"thumbexpert/internal/model"
)

const stateCookie = "oauth_state"

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *server) handleCatalog(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, catalog.Options())
}

func (s *server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var reg model.Registration
	if err := s.decodeJSON(w, r, &reg); err != nil {
		s.writeError(w, r, err)
		return
	}
	sess, err := s.auth.Register(r.Context(), reg)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	sess, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.auth.Me(r.Context(), userID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFromContext(r.Context())
	if err := s.auth.Logout(r.Context(), claims); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleUpgrade flips the plan directly only when no payment provider is configured.
func (s *server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	if s.billing != nil {
		s.writeError(w, r, apperror.Forbidden("Premium is available through checkout"))
		return
	}
	user, err := s.auth.Upgrade(r.Context(), userID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *server) handleOAuthStart(w http.ResponseWriter, r *http.Request) {
	provider, err := s.providers.Get(chi.URLParam(r, "provider"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not_found", Message: "unknown sign-in provider"})
		return
	}

	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, provider.AuthURL(state), http.StatusTemporaryRedirect)
}

// handleOAuthCallback finishes a social sign-in and hands the token to the front end in the URL fragment.
func (s *server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	provider, err := s.providers.Get(chi.URLParam(r, "provider"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not_found", Message: "unknown sign-in provider"})
		return
	}

	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || r.URL.Query().Get("state") != cookie.Value {
		s.logger.Warn("oauth callback: state mismatch", "provider", provider.Name())
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation_error", Message: "invalid OAuth state"})
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1})

	if reason := r.URL.Query().Get("error"); reason != "" {
		s.logger.Info("oauth callback: authorization denied", "provider", provider.Name(), "reason", reason)
		s.redirectFrontend(w, r, "error="+url.QueryEscape("Sign-in was cancelled."))
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation_error", Message: "missing OAuth code"})
		return
	}

	profile, err := provider.Exchange(r.Context(), code)
	if err != nil {
		s.logger.Error("oauth callback: exchange failed", "provider", provider.Name(), "err", err)
		s.redirectFrontend(w, r, "error="+url.QueryEscape("Social login failed. Please try again."))
		return
	}
	if profile.Email == "" {
		s.redirectFrontend(w, r, "error="+url.QueryEscape("Your account did not share an email address."))
		return
	}

	sess, err := s.auth.SocialLogin(r.Context(), profile)
	if err != nil {
		s.logger.Error("oauth callback: sign-in failed", "provider", provider.Name(), "err", err)
		s.redirectFrontend(w, r, "error="+url.QueryEscape("Social login failed. Please try again."))
		return
	}
	s.redirectFrontend(w, r, "token="+url.QueryEscape(sess.Token))
}

func (s *server) redirectFrontend(w http.ResponseWriter, r *http.Request, fragment string) {
	http.Redirect(w, r, s.frontend+"/auth/callback#"+fragment, http.StatusSeeOther)
}
