package server

import (
	"net/http"

	"github.com/dgellow/cms-front/internal/cookie"
	jsonwriter "github.com/dgellow/cms-front/internal/json"
	"github.com/dgellow/cms-front/internal/log"
	"github.com/dgellow/cms-front/internal/session"
)

// Root sends signed-in viewers to the dashboard and everyone else to login
func (h *Handlers) Root(w http.ResponseWriter, r *http.Request) {
	if _, ok := cookie.GetAuthToken(r); ok {
		http.Redirect(w, r, h.dashboardPath, http.StatusFound)
		return
	}
	http.Redirect(w, r, h.loginPath, http.StatusFound)
}

// Login renders the sign-in page
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "login", pageData{Title: "Sign in"})
}

// GoogleLogin starts the OAuth flow at the CMS API
func (h *Handlers) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.loginURL, http.StatusFound)
}

// AuthMe reports whether the request carries a session cookie. It does not
// call the API.
func (h *Handlers) AuthMe(w http.ResponseWriter, r *http.Request) {
	if _, ok := cookie.GetAuthToken(r); ok {
		_ = jsonwriter.Write(w, map[string]bool{"authenticated": true})
		return
	}
	_ = jsonwriter.WriteResponse(w, http.StatusUnauthorized, map[string]bool{"authenticated": false})
}

// Landing is where the identity provider sends the browser back. A token
// query parameter is stored as the session cookie and checked against the
// API before continuing to the dashboard. Without a token or cookie there is
// nothing to check yet, so the waiting page is shown.
func (h *Handlers) Landing(w http.ResponseWriter, r *http.Request) {
	_, hasCookie := cookie.GetAuthToken(r)
	if r.URL.Query().Get(session.TokenParam) == "" && !hasCookie {
		h.render(w, r, "landing", pageData{Title: "Logging you in"})
		return
	}

	s, err := h.scope(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	state := s.session.CompleteLogin(r.Context(), r.URL)
	if state.Authenticated() {
		log.LogInfoCtx(r.Context(), "auth", "Login completed", map[string]any{
			"user": state.User.Email,
		})
	}
	if h.finish(w, r, s) {
		return
	}
	h.fail(w, r, state.Err)
}

// Logout ends the session upstream on a best-effort basis and always clears
// the cookie
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	s, err := h.scope(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if s.initial != "" && !h.validCSRF(r, s.initial) {
		h.fail(w, r, errBadCSRF)
		return
	}

	s.session.Logout(r.Context())
	if s.initial == "" {
		// nothing to sync, but a stale empty cookie may linger
		cookie.ClearAuthToken(w, h.secure(r))
	}
	h.finish(w, r, s)
}
