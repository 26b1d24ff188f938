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
)

// Accounting is the OAuth client for the accounting provider.
type Accounting struct {
	oauth       *oauth2.Config
	environment string
	apiBaseURL  string
}

func NewAccounting(c config.AccountingConfig) *Accounting {
	env := strings.ToLower(c.Environment)
	if env != "production" {
		env = "sandbox"
	}
	return &Accounting{
		oauth: &oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			RedirectURL:  c.RedirectURL,
			Scopes:       []string{AccountingScope},
			Endpoint: oauth2.Endpoint{
				AuthURL:   c.AuthURL,
				TokenURL:  c.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		environment: env,
		apiBaseURL:  c.APIBaseURL,
	}
}

func (a *Accounting) Environment() string { return a.environment }

func (a *Accounting) APIBaseURL() string { return a.apiBaseURL }

func (a *Accounting) AuthCodeURL(state string) string {
	return a.oauth.AuthCodeURL(state)
}

// Exchange trades an authorization code for a complete credential bundle for
// company realmID.
func (a *Accounting) Exchange(ctx context.Context, code, realmID string) (*models.AccountingCredentials, error) {
	if realmID == "" {
		return nil, errors.New("accounting callback has no company id")
	}
	tok, err := a.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("accounting token exchange: %w", err)
	}
	return a.bundle(tok, realmID), nil
}

// Refresh obtains a new bundle from a refresh token. The provider rotates
// refresh tokens; the previous one is kept when none is returned.
func (a *Accounting) Refresh(ctx context.Context, refreshToken, companyID string) (*models.AccountingCredentials, error) {
	if refreshToken == "" {
		return nil, errors.New("no refresh token")
	}
	src := a.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken, Expiry: time.Unix(1, 0)})
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("accounting token refresh: %w", err)
	}
	return a.bundle(tok, companyID), nil
}

func (a *Accounting) bundle(tok *oauth2.Token, companyID string) *models.AccountingCredentials {
	return &models.AccountingCredentials{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		CompanyID:    companyID,
		ExpiresAt:    expiry(tok),
		APIBaseURL:   a.apiBaseURL,
	}
}
