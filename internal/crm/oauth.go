package crm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
)

// ErrOAuthNotConfigured is returned when the OAuth client id or secret is
// missing.
var ErrOAuthNotConfigured = errors.New("HubSpot OAuth client is not configured")

// OAuthConfig holds the HubSpot OAuth application settings.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	APIURL       string
	RedirectURL  string
	Scopes       []string
}

// OAuth runs the authorization-code flow against HubSpot.
type OAuth struct {
	config     *oauth2.Config
	httpClient *http.Client
}

// NewOAuth creates the OAuth helper. The token endpoint lives on the API
// host and expects client credentials as form parameters.
func NewOAuth(cfg OAuthConfig) *OAuth {
	authURL := cfg.AuthURL
	if authURL == "" {
		authURL = "https://app.hubspot.com/oauth/authorize"
	}
	apiURL := strings.TrimRight(cfg.APIURL, "/")
	if apiURL == "" {
		apiURL = "https://api.hubapi.com"
	}

	return &OAuth{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:   authURL,
				TokenURL:  apiURL + "/oauth/v1/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
			RedirectURL: cfg.RedirectURL,
			Scopes:      cfg.Scopes,
		},
	}
}

// WithHTTPClient sets the client used for the token exchange.
func (o *OAuth) WithHTTPClient(c *http.Client) *OAuth {
	o.httpClient = c
	return o
}

// Configured reports whether client credentials are present.
func (o *OAuth) Configured() bool {
	return o.config.ClientID != "" && o.config.ClientSecret != ""
}

// AuthCodeURL returns the HubSpot consent URL for the given state.
func (o *OAuth) AuthCodeURL(state string) string {
	return o.config.AuthCodeURL(state)
}

// Exchange trades an authorization code for an access token.
func (o *OAuth) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if !o.Configured() {
		return nil, ErrOAuthNotConfigured
	}
	if o.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, o.httpClient)
	}

	token, err := o.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	return token, nil
}
