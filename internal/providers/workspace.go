package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/kylevidrine/portal/internal/config"
	"github.com/kylevidrine/portal/internal/models"
	"github.com/kylevidrine/portal/internal/oidc"
)

// Workspace is the OAuth client for the collaboration-suite provider.
type Workspace struct {
	oauth    *oauth2.Config
	verifier oidc.TokenVerifier
}

type profileClaims struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

func NewWorkspace(c config.WorkspaceConfig, verifier oidc.TokenVerifier) *Workspace {
	return &Workspace{
		oauth: &oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			RedirectURL:  c.RedirectURL,
			Scopes:       workspaceScopes(),
			Endpoint: oauth2.Endpoint{
				AuthURL:  c.AuthURL,
				TokenURL: c.TokenURL,
			},
		},
		verifier: verifier,
	}
}

// AuthCodeURL asks for offline access and forces the consent screen so a
// refresh token is issued on every login.
func (w *Workspace) AuthCodeURL(state string) string {
	return w.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
}

// Exchange trades an authorization code for credentials and the identity
// claims carried by the id_token.
func (w *Workspace) Exchange(ctx context.Context, code string) (*models.WorkspaceCredentials, models.Profile, error) {
	tok, err := w.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, models.Profile{}, fmt.Errorf("workspace token exchange: %w", err)
	}
	rawID, _ := tok.Extra("id_token").(string)
	if rawID == "" {
		return nil, models.Profile{}, errors.New("workspace token response has no id_token")
	}
	idt, err := w.verifier.Verify(ctx, rawID)
	if err != nil {
		return nil, models.Profile{}, fmt.Errorf("verify id_token: %w", err)
	}
	var pc profileClaims
	if err := idt.Claims(&pc); err != nil {
		return nil, models.Profile{}, fmt.Errorf("id_token claims: %w", err)
	}
	if pc.Email == "" {
		return nil, models.Profile{}, errors.New("id_token has no email claim")
	}
	creds := &models.WorkspaceCredentials{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Scopes:       grantedScopes(tok, w.oauth.Scopes),
		ExpiresAt:    expiry(tok),
	}
	return creds, models.Profile(pc), nil
}

// grantedScopes prefers the scope list echoed by the token endpoint.
func grantedScopes(tok *oauth2.Token, requested []string) []string {
	if s, ok := tok.Extra("scope").(string); ok && strings.TrimSpace(s) != "" {
		return strings.Fields(s)
	}
	return append([]string(nil), requested...)
}

func expiry(tok *oauth2.Token) time.Time {
	if tok.Expiry.IsZero() {
		return time.Now().UTC().Add(time.Hour)
	}
	return tok.Expiry.UTC()
}
