package validator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kylevidrine/portal/internal/models"
	"github.com/kylevidrine/portal/internal/providers"
	"github.com/kylevidrine/portal/pkg/metrics"
)

func tokenInfoServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("access_token") == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestIntrospectValid(t *testing.T) {
	srv := tokenInfoServer(t, http.StatusOK, `{"scope":"openid https://www.googleapis.com/auth/drive","expires_in":"1200"}`)
	v := NewWorkspaceValidator(srv.URL, time.Second, srv.Client())

	before := testutil.ToFloat64(metrics.TokenValidations.WithLabelValues("workspace", "valid"))
	r := v.Introspect(context.Background(), "ya29.token")
	require.True(t, r.Valid)
	assert.Equal(t, int64(1200), r.ExpiresIn)
	assert.Equal(t, []string{"openid", "https://www.googleapis.com/auth/drive"}, r.Scopes)
	assert.Equal(t, http.StatusOK, r.Status)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.TokenValidations.WithLabelValues("workspace", "valid")))
}

func TestIntrospectNumericExpiresIn(t *testing.T) {
	srv := tokenInfoServer(t, http.StatusOK, `{"scope":"https://www.googleapis.com/auth/drive","expires_in":3599}`)
	r := NewWorkspaceValidator(srv.URL, time.Second, srv.Client()).Introspect(context.Background(), "ya29.token")
	require.True(t, r.Valid)
	assert.Equal(t, int64(3599), r.ExpiresIn)
	assert.Equal(t, []string{"https://www.googleapis.com/auth/drive"}, r.Scopes)
}

func TestIntrospectRejected(t *testing.T) {
	srv := tokenInfoServer(t, http.StatusBadRequest, `{"error_description":"Invalid Value"}`)
	r := NewWorkspaceValidator(srv.URL, time.Second, srv.Client()).Introspect(context.Background(), "expired")
	assert.False(t, r.Valid)
	assert.Equal(t, http.StatusBadRequest, r.Status)
}

func TestIntrospectUndecodableBody(t *testing.T) {
	srv := tokenInfoServer(t, http.StatusOK, `not json`)
	r := NewWorkspaceValidator(srv.URL, time.Second, srv.Client()).Introspect(context.Background(), "tok")
	assert.False(t, r.Valid)
}

func TestIntrospectTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	start := time.Now()
	r := NewWorkspaceValidator(srv.URL, 50*time.Millisecond, srv.Client()).Introspect(context.Background(), "tok")
	assert.False(t, r.Valid)
	assert.Less(t, time.Since(start), time.Second)
}

func TestIntrospectUnreachable(t *testing.T) {
	r := NewWorkspaceValidator("http://127.0.0.1:1", 200*time.Millisecond, nil).Introspect(context.Background(), "tok")
	assert.False(t, r.Valid)
	assert.Equal(t, 0, r.Status)
}

func TestWorkspaceValidateFallsBackToStoredScopes(t *testing.T) {
	srv := tokenInfoServer(t, http.StatusOK, `{"expires_in":"30"}`)
	v := NewWorkspaceValidator(srv.URL, time.Second, srv.Client())
	c := &models.Customer{Workspace: &models.WorkspaceCredentials{AccessToken: "a", Scopes: []string{"x"}}}
	r := v.Validate(context.Background(), c)
	require.True(t, r.Valid)
	assert.Equal(t, []string{"x"}, r.Scopes)

	assert.False(t, v.Validate(context.Background(), &models.Customer{}).Valid)
}

func TestScopesSufficient(t *testing.T) {
	tests := []struct {
		name    string
		granted []string
		want    bool
	}{
		{"core scope", []string{"openid", providers.WorkspaceCoreScopes[2]}, true},
		{"read-only fallback", []string{providers.WorkspaceFallbackScopes[1]}, true},
		{"identity only", []string{"openid", "email", "profile"}, false},
		{"empty", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ScopesSufficient(tt.granted))
		})
	}
}

func TestAccountingValidator(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	v := &AccountingValidator{now: func() time.Time { return now }}

	ok := v.Validate(context.Background(), &models.Customer{Accounting: &models.AccountingCredentials{
		AccessToken: "a", CompanyID: "r1", ExpiresAt: now.Add(time.Hour),
	}})
	assert.True(t, ok.Valid)
	assert.Equal(t, http.StatusOK, ok.Status)
	assert.Equal(t, int64(3600), ok.ExpiresIn)

	missing := v.Validate(context.Background(), &models.Customer{Accounting: &models.AccountingCredentials{AccessToken: "a"}})
	assert.False(t, missing.Valid)
	assert.Equal(t, http.StatusUnauthorized, missing.Status)

	assert.False(t, NewAccountingValidator().Validate(context.Background(), &models.Customer{}).Valid)
}
