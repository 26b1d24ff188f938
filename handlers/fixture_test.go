package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/kylevidrine/portal/internal/audit"
	"github.com/kylevidrine/portal/internal/config"
	"github.com/kylevidrine/portal/internal/customers"
	"github.com/kylevidrine/portal/internal/flow"
	"github.com/kylevidrine/portal/internal/models"
	"github.com/kylevidrine/portal/internal/sessions"
	"github.com/kylevidrine/portal/internal/tokens"
	"github.com/kylevidrine/portal/internal/validator"
	"github.com/kylevidrine/portal/pkg/middleware"
)

const testAPIKey = "test-api-key"

type stubWorkspace struct {
	scopes []string
}

func (s *stubWorkspace) AuthCodeURL(state string) string {
	return "https://ws.example.com/auth?state=" + url.QueryEscape(state)
}

func (s *stubWorkspace) Exchange(ctx context.Context, code string) (*models.WorkspaceCredentials, models.Profile, error) {
	return &models.WorkspaceCredentials{
		AccessToken:  "ws-" + code,
		RefreshToken: "ws-refresh",
		Scopes:       s.scopes,
		ExpiresAt:    time.Now().Add(time.Hour),
	}, models.Profile{Email: "Ann@Example.com", Name: "Ann"}, nil
}

type stubAccounting struct {
	refreshErr error
}

func (s *stubAccounting) AuthCodeURL(state string) string {
	return "https://qb.example.com/auth?state=" + url.QueryEscape(state)
}

func (s *stubAccounting) Exchange(ctx context.Context, code, realmID string) (*models.AccountingCredentials, error) {
	return &models.AccountingCredentials{
		AccessToken:  "qb-" + code,
		RefreshToken: "qb-refresh",
		CompanyID:    realmID,
		ExpiresAt:    time.Now().Add(time.Hour),
		APIBaseURL:   "https://sandbox.example.com",
	}, nil
}

func (s *stubAccounting) Refresh(ctx context.Context, refreshToken, companyID string) (*models.AccountingCredentials, error) {
	if s.refreshErr != nil {
		return nil, s.refreshErr
	}
	return &models.AccountingCredentials{
		AccessToken:  "qb-refreshed",
		RefreshToken: refreshToken + "-next",
		CompanyID:    companyID,
		ExpiresAt:    time.Now().Add(time.Hour),
		APIBaseURL:   "https://sandbox.example.com",
	}, nil
}

func (s *stubAccounting) Environment() string { return "sandbox" }

type recordingSink struct{ events []audit.Event }

func (r *recordingSink) Record(ctx context.Context, e audit.Event) error {
	r.events = append(r.events, e)
	return nil
}

type fixture struct {
	t         *testing.T
	r         *gin.Engine
	repo      customers.Repository
	cs        *customers.Service
	ws        *stubWorkspace
	acct      *stubAccounting
	sink      *recordingSink
	tokenInfo int
	cookies   []*http.Cookie
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithRepo(t, customers.NewMemoryRepository())
}

func newFixtureWithRepo(t *testing.T, repo customers.Repository) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := &fixture{t: t, repo: repo, ws: &stubWorkspace{scopes: []string{"openid", "https://www.googleapis.com/auth/drive"}}, acct: &stubAccounting{}, sink: &recordingSink{}, tokenInfo: http.StatusOK}

	info := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(f.tokenInfo)
		if f.tokenInfo == http.StatusOK {
			_, _ = w.Write([]byte(`{"expires_in":"3000"}`))
		}
	}))
	t.Cleanup(info.Close)

	cfg := &config.Config{}
	cfg.Server.PublicURL = "http://portal.test"
	cfg.Server.ResultPath = "/auth/result"

	f.cs = customers.NewService(repo)
	ss := sessions.NewService(sessions.NewMemoryRepository(), time.Hour)
	binder := sessions.NewBinder(ss, "portal_session", []byte("0123456789abcdef0123456789abcdef"), time.Hour, false)
	ctl := flow.NewController(f.cs, ss, tokens.NewStateSigner("handler-test-secret", 0), f.ws, f.acct)

	f.r = gin.New()
	NewAuthHandler(cfg, ctl, binder).Register(f.r.Group("/"))
	keys := middleware.APIKeyMiddleware([]string{testAPIKey})
	NewAPIHandler(f.cs, validator.NewWorkspaceValidator(info.URL, time.Second, info.Client()), validator.NewAccountingValidator(), f.acct, cfg.ReauthURL()).Register(f.r.Group("/api", keys))
	NewAdminHandler(f.cs, f.sink).Register(f.r.Group("/admin", keys))
	return f
}

// browse issues a browser request carrying and collecting the session cookie.
func (f *fixture) browse(method, target string) *httptest.ResponseRecorder {
	f.t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for _, c := range f.cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	f.r.ServeHTTP(w, req)
	if cs := w.Result().Cookies(); len(cs) > 0 {
		f.cookies = cs
	}
	return w
}

func (f *fixture) api(method, target string) *httptest.ResponseRecorder {
	f.t.Helper()
	req := httptest.NewRequest(method, target, nil)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	w := httptest.NewRecorder()
	f.r.ServeHTTP(w, req)
	return w
}

// follow begins a flow and returns the state handed to the provider.
func (f *fixture) follow(target string) string {
	f.t.Helper()
	w := f.browse(http.MethodGet, target)
	require.Equal(f.t, http.StatusFound, w.Code, w.Body.String())
	u, err := url.Parse(w.Header().Get("Location"))
	require.NoError(f.t, err)
	state := u.Query().Get("state")
	require.NotEmpty(f.t, state)
	return state
}

// result asserts a redirect to the result page and returns its query.
func (f *fixture) result(w *httptest.ResponseRecorder) url.Values {
	f.t.Helper()
	require.Equal(f.t, http.StatusFound, w.Code, w.Body.String())
	u, err := url.Parse(w.Header().Get("Location"))
	require.NoError(f.t, err)
	require.Equal(f.t, "/auth/result", u.Path)
	return u.Query()
}

func (f *fixture) loginWorkspace() string {
	f.t.Helper()
	state := f.follow("/auth/workspace")
	q := f.result(f.browse(http.MethodGet, "/auth/workspace/callback?code=c1&state="+url.QueryEscape(state)))
	require.Equal(f.t, "1", q.Get("workspace_success"))
	return q.Get("customer_id")
}

// brokenRepo fails every operation.
type brokenRepo struct{}

var errBroken = &customers.StorageError{Op: "query", Err: errors.New("disk I/O error")}

func (brokenRepo) Upsert(ctx context.Context, c *models.Customer) error { return errBroken }
func (brokenRepo) GetByID(ctx context.Context, id string) (*models.Customer, error) {
	return nil, errBroken
}
func (brokenRepo) List(ctx context.Context) ([]*models.Customer, error) { return nil, errBroken }
func (brokenRepo) FindByCompanyID(ctx context.Context, companyID string) (*models.Customer, error) {
	return nil, errBroken
}
func (brokenRepo) UpdateAccounting(ctx context.Context, id string, creds *models.AccountingCredentials) error {
	return errBroken
}
func (brokenRepo) ClearWorkspace(ctx context.Context, id string) error   { return errBroken }
func (brokenRepo) Delete(ctx context.Context, id string) (int64, error) { return 0, errBroken }
