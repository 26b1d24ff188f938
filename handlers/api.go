package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kylevidrine/portal/internal/apperr"
	"github.com/kylevidrine/portal/internal/customers"
	"github.com/kylevidrine/portal/internal/models"
	"github.com/kylevidrine/portal/internal/validator"
	"github.com/kylevidrine/portal/pkg/logger"
)

var errAccountingNotConnected = apperr.New(apperr.KindForbidden, "quickbooks_not_connected", "accounting is not connected")

// AccountingRefresher renews an accounting bundle from its refresh token.
type AccountingRefresher interface {
	Refresh(ctx context.Context, refreshToken, companyID string) (*models.AccountingCredentials, error)
	Environment() string
}

// APIHandler serves the customer query API.
type APIHandler struct {
	customers  *customers.Service
	workspace  validator.CredentialValidator
	accounting validator.CredentialValidator
	refresher  AccountingRefresher
	reauthURL  string
}

func NewAPIHandler(cs *customers.Service, ws, acct validator.CredentialValidator, refresher AccountingRefresher, reauthURL string) *APIHandler {
	return &APIHandler{customers: cs, workspace: ws, accounting: acct, refresher: refresher, reauthURL: reauthURL}
}

// Register routes under /api
func (h *APIHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/customer/:id", h.GetCustomer)
	rg.GET("/customer/:id/accounting", h.AccountingStatus)
	rg.GET("/customer/:id/accounting/tokens", h.AccountingTokens)
	rg.POST("/customer/:id/accounting/refresh", h.RefreshAccounting)
	rg.GET("/customers", h.ListCustomers)
	rg.GET("/customers/latest", h.LatestCustomer)
	rg.GET("/customers/count", h.CountCustomers)
	rg.GET("/customers/search", h.SearchCustomers)
}

type customerSummary struct {
	ID            string    `json:"customer_id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	HasWorkspace  bool      `json:"has_workspace"`
	HasAccounting bool      `json:"has_accounting"`
	CompanyID     *string   `json:"company_id"`
	CreatedAt     time.Time `json:"created_at"`
}

func summarize(c *models.Customer) customerSummary {
	s := customerSummary{
		ID:            c.ID,
		Email:         c.Email,
		Name:          c.Name,
		HasWorkspace:  c.HasWorkspace(),
		HasAccounting: c.HasAccounting(),
		CreatedAt:     c.CreatedAt,
	}
	if c.HasAccounting() {
		id := c.Accounting.CompanyID
		s.CompanyID = &id
	}
	return s
}

func summarizeAll(list []*models.Customer) []customerSummary {
	out := make([]customerSummary, 0, len(list))
	for _, c := range list {
		out = append(out, summarize(c))
	}
	return out
}

// load fetches the path customer, writing the error response when it cannot.
func (h *APIHandler) load(c *gin.Context) (*models.Customer, bool) {
	cust, err := h.customers.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err, h.reauthURL)
		return nil, false
	}
	if cust == nil {
		writeError(c, apperr.New(apperr.KindNotFound, "customer_not_found", "customer not found"), h.reauthURL)
		return nil, false
	}
	return cust, true
}

// GetCustomer returns the profile with a live-validated Workspace token.
func (h *APIHandler) GetCustomer(c *gin.Context) {
	cust, ok := h.load(c)
	if !ok {
		return
	}
	if !cust.HasWorkspace() || cust.Workspace.AccessToken == "" {
		writeError(c, apperr.New(apperr.KindForbidden, "no_token", "workspace is not connected"), h.reauthURL)
		return
	}
	res := h.workspace.Validate(c.Request.Context(), cust)
	if !res.Valid {
		writeError(c, apperr.New(apperr.KindUpstreamValidation, "invalid_token", "workspace token is expired or revoked"), h.reauthURL)
		return
	}
	if !validator.ScopesSufficient(res.Scopes) {
		writeError(c, apperr.New(apperr.KindForbidden, "insufficient_scope", "workspace grant lacks a supported scope"), h.reauthURL)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"customer_id":  cust.ID,
		"email":        cust.Email,
		"name":         cust.Name,
		"picture":      cust.Picture,
		"access_token": cust.Workspace.AccessToken,
		"scopes":       res.Scopes,
		"expires_in":   res.ExpiresIn,
		"token_expiry": cust.Workspace.ExpiresAt,
		"created_at":   cust.CreatedAt,
	})
}

// AccountingStatus never fails on missing credentials; it reports connected=false.
func (h *APIHandler) AccountingStatus(c *gin.Context) {
	cust, ok := h.load(c)
	if !ok {
		return
	}
	if !cust.HasAccounting() {
		c.JSON(http.StatusOK, gin.H{
			"connected":    false,
			"company_id":   nil,
			"api_base_url": nil,
			"environment":  nil,
			"token_valid":  false,
			"token_expiry": nil,
		})
		return
	}
	res := h.accounting.Validate(c.Request.Context(), cust)
	c.JSON(http.StatusOK, gin.H{
		"connected":    true,
		"company_id":   cust.Accounting.CompanyID,
		"api_base_url": cust.Accounting.APIBaseURL,
		"environment":  h.refresher.Environment(),
		"token_valid":  res.Valid,
		"token_expiry": cust.Accounting.ExpiresAt,
	})
}

func accountingTokens(a *models.AccountingCredentials) gin.H {
	return gin.H{
		"access_token":  a.AccessToken,
		"refresh_token": a.RefreshToken,
		"company_id":    a.CompanyID,
		"token_expiry":  a.ExpiresAt,
		"api_base_url":  a.APIBaseURL,
	}
}

func (h *APIHandler) AccountingTokens(c *gin.Context) {
	cust, ok := h.load(c)
	if !ok {
		return
	}
	if !cust.HasAccounting() {
		writeError(c, errAccountingNotConnected, "")
		return
	}
	c.JSON(http.StatusOK, accountingTokens(cust.Accounting))
}

// RefreshAccounting renews the bundle through the provider and stores it whole.
func (h *APIHandler) RefreshAccounting(c *gin.Context) {
	cust, ok := h.load(c)
	if !ok {
		return
	}
	if !cust.HasAccounting() {
		writeError(c, errAccountingNotConnected, "")
		return
	}
	fresh, err := h.refresher.Refresh(c.Request.Context(), cust.Accounting.RefreshToken, cust.Accounting.CompanyID)
	if err != nil {
		logger.Warnf("accounting refresh for customer %s failed: %v", cust.ID, err)
		abortJSON(c, http.StatusBadGateway, "refresh_failed", "accounting provider rejected the refresh", "")
		return
	}
	if err := h.customers.AttachAccounting(c.Request.Context(), cust.ID, *fresh); err != nil {
		writeError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, accountingTokens(fresh))
}

func (h *APIHandler) ListCustomers(c *gin.Context) {
	list, err := h.customers.List(c.Request.Context())
	if err != nil {
		writeError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"customers": summarizeAll(list), "count": len(list)})
}

func (h *APIHandler) LatestCustomer(c *gin.Context) {
	cust, err := h.customers.Latest(c.Request.Context())
	if err != nil {
		writeError(c, err, "")
		return
	}
	if cust == nil {
		writeError(c, apperr.New(apperr.KindNotFound, "customer_not_found", "no customers yet"), "")
		return
	}
	c.JSON(http.StatusOK, summarize(cust))
}

func (h *APIHandler) CountCustomers(c *gin.Context) {
	n, err := h.customers.Count(c.Request.Context())
	if err != nil {
		writeError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

func (h *APIHandler) SearchCustomers(c *gin.Context) {
	q := strings.TrimSpace(c.Query("email"))
	if q == "" {
		writeError(c, apperr.New(apperr.KindInvalidArgument, "invalid_argument", "email query parameter is required"), "")
		return
	}
	list, err := h.customers.SearchByEmail(c.Request.Context(), q)
	if err != nil {
		writeError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"customers": summarizeAll(list), "count": len(list)})
}
