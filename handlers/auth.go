package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kylevidrine/portal/internal/config"
	"github.com/kylevidrine/portal/internal/flow"
	"github.com/kylevidrine/portal/internal/sessions"
	"github.com/kylevidrine/portal/pkg/logger"
)

// AuthHandler serves the browser-facing OAuth routes.
type AuthHandler struct {
	cfg    *config.Config
	ctl    *flow.Controller
	binder *sessions.Binder
}

func NewAuthHandler(cfg *config.Config, ctl *flow.Controller, binder *sessions.Binder) *AuthHandler {
	return &AuthHandler{cfg: cfg, ctl: ctl, binder: binder}
}

// Register routes under /auth
func (h *AuthHandler) Register(rg *gin.RouterGroup) {
	a := rg.Group("/auth")
	a.GET("/workspace", h.BeginWorkspace)
	a.GET("/workspace/callback", h.WorkspaceCallback)
	a.POST("/workspace/disconnect", h.DisconnectWorkspace)
	a.GET("/accounting", h.BeginAccounting)
	a.GET("/accounting/standalone", h.BeginStandalone)
	a.GET("/accounting/callback", h.AccountingCallback)
	a.POST("/accounting/disconnect", h.DisconnectAccounting)
	a.GET("/accounting/disconnect", h.DisconnectAccounting)
	a.GET("/result", h.Result)
	a.POST("/logout", h.Logout)
}

func (h *AuthHandler) resultURL(q url.Values) string {
	return h.cfg.Server.ResultPath + "?" + q.Encode()
}

func (h *AuthHandler) redirect(c *gin.Context, pairs ...string) {
	q := url.Values{}
	for i := 0; i+1 < len(pairs); i += 2 {
		q.Set(pairs[i], pairs[i+1])
	}
	c.Redirect(http.StatusFound, h.resultURL(q))
}

func callbackFrom(c *gin.Context) flow.Callback {
	return flow.Callback{
		Code:    c.Query("code"),
		State:   c.Query("state"),
		RealmID: c.Query("realmId"),
		Error:   c.Query("error"),
	}
}

// BeginWorkspace redirects to the Workspace consent screen.
func (h *AuthHandler) BeginWorkspace(c *gin.Context) {
	sess, err := h.binder.Current(c.Writer, c.Request)
	if err != nil {
		writeError(c, err, "")
		return
	}
	u, err := h.ctl.BeginWorkspace(c.Request.Context(), sess)
	if err != nil {
		writeError(c, err, "")
		return
	}
	c.Redirect(http.StatusFound, u)
}

func (h *AuthHandler) WorkspaceCallback(c *gin.Context) {
	sess, err := h.binder.Peek(c.Request)
	if err != nil {
		logger.Warnf("workspace callback: load session: %v", err)
	}
	out := h.ctl.CompleteWorkspace(c.Request.Context(), sess, callbackFrom(c))
	if !out.OK() {
		h.redirect(c, "workspace_error", string(flow.CodeAuthFailed))
		return
	}
	h.redirect(c, "workspace_success", "1", "customer_id", out.CustomerID)
}

func (h *AuthHandler) BeginAccounting(c *gin.Context) {
	sess, err := h.binder.Current(c.Writer, c.Request)
	if err != nil {
		writeError(c, err, "")
		return
	}
	u, err := h.ctl.BeginAccounting(c.Request.Context(), sess, c.Query("customer_id"))
	if err != nil {
		if flow.IsUnauthenticated(err) {
			h.redirect(c, "qb_error", string(flow.CodeNotAuthenticated))
			return
		}
		writeError(c, err, "")
		return
	}
	c.Redirect(http.StatusFound, u)
}

func (h *AuthHandler) BeginStandalone(c *gin.Context) {
	sess, err := h.binder.Current(c.Writer, c.Request)
	if err != nil {
		writeError(c, err, "")
		return
	}
	u, err := h.ctl.BeginStandalone(c.Request.Context(), sess)
	if err != nil {
		writeError(c, err, "")
		return
	}
	c.Redirect(http.StatusFound, u)
}

func (h *AuthHandler) AccountingCallback(c *gin.Context) {
	sess, err := h.binder.Peek(c.Request)
	if err != nil {
		logger.Warnf("accounting callback: load session: %v", err)
	}
	out := h.ctl.CompleteAccounting(c.Request.Context(), sess, callbackFrom(c))
	if !out.OK() {
		h.redirect(c, "qb_error", string(out.Code))
		return
	}
	h.redirect(c, "qb_success", "1", "customer_id", out.CustomerID)
}

func (h *AuthHandler) DisconnectWorkspace(c *gin.Context) {
	sess, err := h.binder.Peek(c.Request)
	if err != nil {
		writeError(c, err, "")
		return
	}
	id, err := h.ctl.DisconnectWorkspace(c.Request.Context(), sess)
	if err != nil {
		writeError(c, err, h.cfg.ReauthURL())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "customer_id": id})
}

// DisconnectAccounting clears the session customer's bundle, or with
// companyId set, the bundle of whichever customer holds that company.
func (h *AuthHandler) DisconnectAccounting(c *gin.Context) {
	companyID := strings.TrimSpace(c.Query("companyId"))
	if companyID == "" {
		companyID = strings.TrimSpace(c.Query("realmId"))
	}
	if companyID != "" {
		found, err := h.ctl.DisconnectAccountingByCompany(c.Request.Context(), companyID)
		if err != nil {
			writeError(c, err, "")
			return
		}
		if c.Request.Method == http.MethodGet {
			h.redirect(c, "qb_disconnected", "1")
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "disconnected": found})
		return
	}
	if c.Request.Method == http.MethodGet {
		abortJSON(c, http.StatusBadRequest, "invalid_argument", "companyId is required", "")
		return
	}
	sess, err := h.binder.Peek(c.Request)
	if err != nil {
		writeError(c, err, "")
		return
	}
	id, err := h.ctl.DisconnectAccounting(c.Request.Context(), sess)
	if err != nil {
		writeError(c, err, h.cfg.ReauthURL())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "customer_id": id})
}

// Result reports the outcome carried by a redirect, with links to restart either flow.
func (h *AuthHandler) Result(c *gin.Context) {
	outcome := gin.H{}
	for k, v := range c.Request.URL.Query() {
		if len(v) > 0 {
			outcome[k] = v[0]
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"result": outcome,
		"links": gin.H{
			"workspace":             h.cfg.Server.PublicURL + "/auth/workspace",
			"accounting":            h.cfg.Server.PublicURL + "/auth/accounting",
			"accounting_standalone": h.cfg.Server.PublicURL + "/auth/accounting/standalone",
		},
	})
}

// Logout drops the browser session; customer records are untouched.
func (h *AuthHandler) Logout(c *gin.Context) {
	sess, err := h.binder.Peek(c.Request)
	if err != nil {
		writeError(c, err, "")
		return
	}
	if err := h.binder.Clear(c.Writer, c.Request, sess); err != nil {
		writeError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}
