package handler

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/capitalize-ai/growth-advisor/internal/middleware"
)

const stateCookie = "hubspot_oauth_state"

// TokenExchanger runs the authorization code flow against the CRM.
type TokenExchanger interface {
	Configured() bool
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

// OAuthHandler handles the HubSpot OAuth login and callback.
type OAuthHandler struct {
	oauth        TokenExchanger
	appURL       string
	secureCookie bool
	now          func() time.Time
}

// NewOAuthHandler creates a new OAuth handler. appURL is where the browser
// is sent once the flow finishes.
func NewOAuthHandler(oauth TokenExchanger, appURL string, secureCookie bool) *OAuthHandler {
	return &OAuthHandler{
		oauth:        oauth,
		appURL:       appURL,
		secureCookie: secureCookie,
		now:          time.Now,
	}
}

// Login handles GET /auth/hubspot/login
func (h *OAuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if !h.oauth.Configured() {
		writeError(w, http.StatusInternalServerError, "HubSpot Client ID not configured")
		return
	}

	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/auth/hubspot",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.oauth.AuthCodeURL(state), http.StatusFound)
}

// Callback handles GET /auth/hubspot/callback
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	log := middleware.LoggerFrom(r.Context())
	q := r.URL.Query()

	if e := q.Get("error"); e != "" {
		log.Warn("HubSpot OAuth error", zap.String("error", e))
		h.finish(w, r, e)
		return
	}
	code := q.Get("code")
	if code == "" {
		h.finish(w, r, "no_code")
		return
	}

	expected, err := r.Cookie(stateCookie)
	if err != nil || expected.Value == "" || expected.Value != q.Get("state") {
		h.finish(w, r, "invalid_state")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Path: "/auth/hubspot", MaxAge: -1})

	token, err := h.oauth.Exchange(r.Context(), code)
	if err != nil {
		log.Error("token exchange failed", zap.Error(err))
		h.finish(w, r, "token_exchange_failed")
		return
	}

	maxAge := 0
	if !token.Expiry.IsZero() {
		maxAge = int(token.Expiry.Sub(h.now()).Seconds())
		if maxAge <= 0 {
			log.Error("token exchange returned an expired token", zap.Time("expiry", token.Expiry))
			h.finish(w, r, "token_exchange_failed")
			return
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     AccessTokenCookie,
		Value:    token.AccessToken,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	log.Info("HubSpot connected")
	h.finish(w, r, "")
}

// finish redirects back to the app, reporting success or the error reason.
func (h *OAuthHandler) finish(w http.ResponseWriter, r *http.Request, reason string) {
	q := url.Values{}
	if reason == "" {
		q.Set("hubspot_success", "true")
	} else {
		q.Set("hubspot_error", reason)
	}
	http.Redirect(w, r, h.appURL+"?"+q.Encode(), http.StatusFound)
}
