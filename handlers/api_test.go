package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, body []byte) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &m))
	return m
}

func TestAPIRequiresKey(t *testing.T) {
	f := newFixture(t)
	w := f.browse(http.MethodGet, "/api/customers")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetCustomerValidToken(t *testing.T) {
	f := newFixture(t)
	id := f.loginWorkspace()

	w := f.api(http.MethodGet, "/api/customer/"+id)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w.Body.Bytes())
	assert.Equal(t, id, body["customer_id"])
	assert.Equal(t, "ws-c1", body["access_token"])
	assert.Equal(t, float64(3000), body["expires_in"])
}

func TestGetCustomerErrors(t *testing.T) {
	f := newFixture(t)

	w := f.api(http.MethodGet, "/api/customer/missing")
	require.Equal(t, http.StatusNotFound, w.Code)
	body := decode(t, w.Body.Bytes())
	assert.Equal(t, "customer_not_found", body["error"])
	assert.Equal(t, "http://portal.test/auth/workspace", body["reauth_url"])

	// accounting-only customer has no workspace token
	state := f.follow("/auth/accounting/standalone")
	q := f.result(f.browse(http.MethodGet, "/auth/accounting/callback?code=x&realmId=r&state="+url.QueryEscape(state)))
	w = f.api(http.MethodGet, "/api/customer/"+q.Get("customer_id"))
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "no_token", decode(t, w.Body.Bytes())["error"])
}

func TestGetCustomerRejectedIntrospectionIsInvalidToken(t *testing.T) {
	f := newFixture(t)
	id := f.loginWorkspace()
	f.tokenInfo = http.StatusBadRequest

	w := f.api(http.MethodGet, "/api/customer/"+id)
	require.Equal(t, http.StatusForbidden, w.Code)
	body := decode(t, w.Body.Bytes())
	assert.Equal(t, "invalid_token", body["error"])
	assert.NotEmpty(t, body["reauth_url"])
}

func TestGetCustomerScopeGate(t *testing.T) {
	f := newFixture(t)
	f.ws.scopes = []string{"openid", "https://www.googleapis.com/auth/spreadsheets.readonly"}
	ok := f.loginWorkspace()
	require.Equal(t, http.StatusOK, f.api(http.MethodGet, "/api/customer/"+ok).Code)

	f.ws.scopes = []string{"openid", "https://www.googleapis.com/auth/youtube"}
	bad := f.loginWorkspace()
	w := f.api(http.MethodGet, "/api/customer/"+bad)
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "insufficient_scope", decode(t, w.Body.Bytes())["error"])
}

func TestAccountingStatusDisconnectedHasNoFields(t *testing.T) {
	f := newFixture(t)
	id := f.loginWorkspace()

	w := f.api(http.MethodGet, "/api/customer/"+id+"/accounting")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w.Body.Bytes())
	assert.Equal(t, false, body["connected"])
	for _, k := range []string{"company_id", "api_base_url", "environment", "token_expiry"} {
		assert.Nil(t, body[k], k)
	}

	w = f.api(http.MethodGet, "/api/customer/"+id+"/accounting/tokens")
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "quickbooks_not_connected", decode(t, w.Body.Bytes())["error"])
}

func TestAccountingTokensAndRefresh(t *testing.T) {
	f := newFixture(t)
	state := f.follow("/auth/accounting/standalone")
	q := f.result(f.browse(http.MethodGet, "/auth/accounting/callback?code=x&realmId=r7&state="+url.QueryEscape(state)))
	id := q.Get("customer_id")

	w := f.api(http.MethodGet, "/api/customer/"+id+"/accounting/tokens")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "qb-x", decode(t, w.Body.Bytes())["access_token"])

	w = f.api(http.MethodPost, "/api/customer/"+id+"/accounting/refresh")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "qb-refresh-next", decode(t, w.Body.Bytes())["refresh_token"])

	c, err := f.cs.Get(t.Context(), id)
	require.NoError(t, err)
	assert.Equal(t, "qb-refreshed", c.Accounting.AccessToken)
	assert.Equal(t, "r7", c.Accounting.CompanyID)

	f.acct.refreshErr = errors.New("invalid_grant")
	w = f.api(http.MethodPost, "/api/customer/"+id+"/accounting/refresh")
	require.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "refresh_failed", decode(t, w.Body.Bytes())["error"])
}

func TestListingEndpoints(t *testing.T) {
	f := newFixture(t)
	w := f.api(http.MethodGet, "/api/customers/latest")
	require.Equal(t, http.StatusNotFound, w.Code)

	first := f.loginWorkspace()
	second := f.loginWorkspace()

	w = f.api(http.MethodGet, "/api/customers")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w.Body.Bytes())
	assert.Equal(t, float64(2), body["count"])

	w = f.api(http.MethodGet, "/api/customers/count")
	assert.Equal(t, float64(2), decode(t, w.Body.Bytes())["count"])

	w = f.api(http.MethodGet, "/api/customers/latest")
	require.Equal(t, http.StatusOK, w.Code)
	latest := decode(t, w.Body.Bytes())["customer_id"]
	assert.Contains(t, []interface{}{first, second}, latest)

	w = f.api(http.MethodGet, "/api/customers/search?email=ann@EXAMPLE")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decode(t, w.Body.Bytes())["count"])

	w = f.api(http.MethodGet, "/api/customers/search?email=nobody")
	assert.Equal(t, float64(0), decode(t, w.Body.Bytes())["count"])

	w = f.api(http.MethodGet, "/api/customers/search")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPersistenceFailureIs500(t *testing.T) {
	f := newFixtureWithRepo(t, brokenRepo{})
	w := f.api(http.MethodGet, "/api/customers")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode(t, w.Body.Bytes())
	assert.Equal(t, "internal_error", body["error"])
	assert.Contains(t, body["message"], "disk I/O error")

	w = f.api(http.MethodGet, "/api/customer/x")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Nil(t, decode(t, w.Body.Bytes())["reauth_url"])
}
