package validator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kylevidrine/portal/internal/models"
	"github.com/kylevidrine/portal/internal/providers"
	"github.com/kylevidrine/portal/pkg/logger"
	"github.com/kylevidrine/portal/pkg/metrics"
)

const DefaultTimeout = 5 * time.Second

// Result is the outcome of a credential check. Validation never fails with an
// error; an unreachable or rejecting provider yields Valid=false.
type Result struct {
	Valid     bool
	ExpiresIn int64
	Scopes    []string
	Status    int
}

// CredentialValidator checks one provider's credentials on a customer.
type CredentialValidator interface {
	Validate(ctx context.Context, c *models.Customer) Result
}

// WorkspaceValidator introspects access tokens against the provider's
// token-info endpoint.
type WorkspaceValidator struct {
	endpoint string
	timeout  time.Duration
	client   *http.Client
}

func NewWorkspaceValidator(endpoint string, timeout time.Duration, client *http.Client) *WorkspaceValidator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &WorkspaceValidator{endpoint: endpoint, timeout: timeout, client: client}
}

// tokenInfo accepts expires_in as either a JSON string or a number.
type tokenInfo struct {
	Scope     string      `json:"scope"`
	ExpiresIn json.Number `json:"expires_in"`
}

func (v *WorkspaceValidator) Validate(ctx context.Context, c *models.Customer) Result {
	if !c.HasWorkspace() || c.Workspace.AccessToken == "" {
		countValidation("workspace", "missing")
		return Result{}
	}
	r := v.Introspect(ctx, c.Workspace.AccessToken)
	if r.Valid && len(r.Scopes) == 0 {
		r.Scopes = append([]string(nil), c.Workspace.Scopes...)
	}
	return r
}

// Introspect checks a raw access token.
func (v *WorkspaceValidator) Introspect(ctx context.Context, token string) Result {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.endpoint+"?access_token="+url.QueryEscape(token), nil)
	if err != nil {
		countValidation("workspace", "error")
		return Result{}
	}
	resp, err := v.client.Do(req)
	if err != nil {
		logger.Warnf("token introspection failed for %s: %v", logger.Redact(token), err)
		countValidation("workspace", "error")
		return Result{}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		countValidation("workspace", "invalid")
		return Result{Status: resp.StatusCode}
	}
	var ti tokenInfo
	if err := json.NewDecoder(resp.Body).Decode(&ti); err != nil {
		countValidation("workspace", "error")
		return Result{Status: resp.StatusCode}
	}
	exp, _ := ti.ExpiresIn.Int64()
	countValidation("workspace", "valid")
	return Result{
		Valid:     true,
		ExpiresIn: exp,
		Scopes:    strings.Fields(ti.Scope),
		Status:    resp.StatusCode,
	}
}

// ScopesSufficient reports whether granted includes at least one collaboration
// scope, or a read-only fallback.
func ScopesSufficient(granted []string) bool {
	have := make(map[string]struct{}, len(granted))
	for _, s := range granted {
		have[s] = struct{}{}
	}
	for _, s := range providers.WorkspaceCoreScopes {
		if _, ok := have[s]; ok {
			return true
		}
	}
	for _, s := range providers.WorkspaceFallbackScopes {
		if _, ok := have[s]; ok {
			return true
		}
	}
	return false
}

// AccountingValidator checks bundle presence only; it makes no network call.
type AccountingValidator struct {
	now func() time.Time
}

func NewAccountingValidator() *AccountingValidator {
	return &AccountingValidator{now: time.Now}
}

func (v *AccountingValidator) Validate(ctx context.Context, c *models.Customer) Result {
	if !c.HasAccounting() || c.Accounting.AccessToken == "" || c.Accounting.CompanyID == "" {
		countValidation("accounting", "invalid")
		return Result{Status: http.StatusUnauthorized}
	}
	var exp int64
	if !c.Accounting.ExpiresAt.IsZero() {
		exp = int64(c.Accounting.ExpiresAt.Sub(v.now()).Seconds())
	}
	countValidation("accounting", "valid")
	return Result{Valid: true, ExpiresIn: exp, Status: http.StatusOK}
}

func countValidation(provider, result string) {
	metrics.TokenValidations.WithLabelValues(provider, result).Inc()
}
