// Package flow runs the OAuth authorization flows for both providers and
// reconciles their results onto a single customer record.
package flow

import (
	"context"
	"errors"

	"github.com/kylevidrine/portal/internal/apperr"
	"github.com/kylevidrine/portal/internal/customers"
	"github.com/kylevidrine/portal/internal/models"
	"github.com/kylevidrine/portal/internal/sessions"
	"github.com/kylevidrine/portal/internal/tokens"
	"github.com/kylevidrine/portal/pkg/logger"
	"github.com/kylevidrine/portal/pkg/metrics"
)

const (
	ProviderWorkspace  = "workspace"
	ProviderAccounting = "accounting"
)

// Code is the machine-readable result of a callback, surfaced on the redirect.
type Code string

const (
	CodeSuccess          Code = "success"
	CodeAuthFailed       Code = "auth_failed"
	CodeSessionLost      Code = "session_lost"
	CodeTokenSaveFailed  Code = "token_save_failed"
	CodeNotAuthenticated Code = "not_authenticated"
)

// Callback carries the query parameters of a provider redirect.
type Callback struct {
	Code    string
	State   string
	RealmID string
	Error   string
}

// Outcome reports what a callback did. CustomerID is set on success.
type Outcome struct {
	CustomerID string
	Code       Code
	Created    bool
}

func (o Outcome) OK() bool { return o.Code == CodeSuccess }

type WorkspaceProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*models.WorkspaceCredentials, models.Profile, error)
}

type AccountingProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code, realmID string) (*models.AccountingCredentials, error)
}

type Controller struct {
	customers  *customers.Service
	sessions   *sessions.Service
	states     *tokens.StateSigner
	workspace  WorkspaceProvider
	accounting AccountingProvider
}

func NewController(cs *customers.Service, ss *sessions.Service, states *tokens.StateSigner, ws WorkspaceProvider, acct AccountingProvider) *Controller {
	return &Controller{customers: cs, sessions: ss, states: states, workspace: ws, accounting: acct}
}

var errNoSession = apperr.New(apperr.KindUnauthenticated, "not_authenticated", "no browser session")

// BeginWorkspace returns the consent URL. Only a signed state is produced; the
// session itself is not modified.
func (c *Controller) BeginWorkspace(ctx context.Context, sess *sessions.Session) (string, error) {
	if sess == nil {
		return "", errNoSession
	}
	state, err := c.states.Issue(ProviderWorkspace, sess.ID, "")
	if err != nil {
		return "", err
	}
	return c.workspace.AuthCodeURL(state), nil
}

// CompleteWorkspace always mints a new customer on success and binds it to the session.
func (c *Controller) CompleteWorkspace(ctx context.Context, sess *sessions.Session, cb Callback) Outcome {
	out := c.completeWorkspace(ctx, sess, cb)
	metrics.OAuthCallbacks.WithLabelValues(ProviderWorkspace, string(out.Code)).Inc()
	return out
}

func (c *Controller) completeWorkspace(ctx context.Context, sess *sessions.Session, cb Callback) Outcome {
	if cb.Error != "" || cb.Code == "" {
		logger.Warnf("workspace callback rejected: provider error=%q code present=%t", cb.Error, cb.Code != "")
		return Outcome{Code: CodeAuthFailed}
	}
	if sess == nil {
		logger.Warnf("workspace callback without a session")
		return Outcome{Code: CodeAuthFailed}
	}
	if _, err := c.states.Verify(cb.State, ProviderWorkspace, sess.ID); err != nil {
		logger.Warnf("workspace callback state check failed: %v", err)
		return Outcome{Code: CodeAuthFailed}
	}
	creds, profile, err := c.workspace.Exchange(ctx, cb.Code)
	if err != nil {
		logger.Warnf("workspace exchange failed: %v", err)
		return Outcome{Code: CodeAuthFailed}
	}
	cust, err := c.customers.CreateFromWorkspace(ctx, profile, *creds)
	if err != nil {
		logger.Errorf("workspace customer create failed: %v", err)
		return Outcome{Code: CodeAuthFailed}
	}
	if err := c.sessions.Identify(ctx, sess, cust.ID); err != nil {
		// the record exists; the browser just has to log in again to be bound
		logger.Warnf("bind session %s to customer %s failed: %v", sess.ID, cust.ID, err)
	}
	logger.Infof("workspace connected: customer=%s access=%s", cust.ID, logger.Redact(creds.AccessToken))
	return Outcome{CustomerID: cust.ID, Code: CodeSuccess, Created: true}
}

// BeginAccounting starts the attach flow. An identified session is enough;
// otherwise customerID must name an existing customer and is stashed as Pending.
func (c *Controller) BeginAccounting(ctx context.Context, sess *sessions.Session, customerID string) (string, error) {
	if sess == nil {
		return "", errNoSession
	}
	if !sess.Identified() {
		if customerID == "" {
			return "", apperr.New(apperr.KindUnauthenticated, "not_authenticated", "log in with Workspace or pass customer_id")
		}
		cust, err := c.customers.Get(ctx, customerID)
		if err != nil {
			return "", err
		}
		if cust == nil {
			return "", apperr.New(apperr.KindUnauthenticated, "not_authenticated", "unknown customer_id")
		}
		if err := c.sessions.SetFlow(ctx, sess, sessions.PendingFor(cust.ID)); err != nil {
			return "", err
		}
	}
	state, err := c.states.Issue(ProviderAccounting, sess.ID, "")
	if err != nil {
		return "", err
	}
	return c.accounting.AuthCodeURL(state), nil
}

// BeginStandalone starts an accounting-only connection that will mint a
// placeholder customer.
func (c *Controller) BeginStandalone(ctx context.Context, sess *sessions.Session) (string, error) {
	if sess == nil {
		return "", errNoSession
	}
	nonce := tokens.NewNonce()
	if err := c.sessions.SetFlow(ctx, sess, sessions.StandaloneAttempt(nonce)); err != nil {
		return "", err
	}
	state, err := c.states.Issue(ProviderAccounting, sess.ID, nonce)
	if err != nil {
		return "", err
	}
	return c.accounting.AuthCodeURL(state), nil
}

type anchorKind int

const (
	anchorNone anchorKind = iota
	anchorIdentified
	anchorPending
	anchorStandalone
)

// anchor is the customer an accounting callback will write to.
type anchor struct {
	kind       anchorKind
	customerID string
	nonce      string
}

func resolveAnchor(sess *sessions.Session, marker sessions.FlowState) anchor {
	if sess.Identified() {
		return anchor{kind: anchorIdentified, customerID: sess.CustomerID}
	}
	switch marker.Kind {
	case sessions.FlowPending:
		if marker.CustomerID != "" {
			return anchor{kind: anchorPending, customerID: marker.CustomerID}
		}
	case sessions.FlowStandalone:
		if marker.Nonce != "" {
			return anchor{kind: anchorStandalone, nonce: marker.Nonce}
		}
	case sessions.FlowNone:
	}
	return anchor{kind: anchorNone}
}

// CompleteAccounting handles the accounting provider redirect. The session's
// flow marker is consumed before any exchange, so a replayed callback finds
// nothing to act on.
func (c *Controller) CompleteAccounting(ctx context.Context, sess *sessions.Session, cb Callback) Outcome {
	out := c.completeAccounting(ctx, sess, cb)
	metrics.OAuthCallbacks.WithLabelValues(ProviderAccounting, string(out.Code)).Inc()
	return out
}

func (c *Controller) completeAccounting(ctx context.Context, sess *sessions.Session, cb Callback) Outcome {
	if cb.Error != "" || cb.Code == "" || cb.RealmID == "" {
		logger.Warnf("accounting callback rejected: provider error=%q code present=%t realm present=%t", cb.Error, cb.Code != "", cb.RealmID != "")
		return Outcome{Code: CodeAuthFailed}
	}
	if sess == nil {
		logger.Warnf("accounting callback without a session")
		return Outcome{Code: CodeSessionLost}
	}
	if sess.Flow.Kind == sessions.FlowNone && !sess.Identified() {
		logger.Warnf("accounting callback for session %s has no flow marker", sess.ID)
		return Outcome{Code: CodeSessionLost}
	}
	marker, err := c.sessions.TakeFlow(ctx, sess)
	if err != nil {
		logger.Errorf("consume flow marker for session %s: %v", sess.ID, err)
		return Outcome{Code: CodeSessionLost}
	}
	a := resolveAnchor(sess, marker)
	if a.kind == anchorNone {
		logger.Warnf("accounting callback for session %s has no usable anchor", sess.ID)
		return Outcome{Code: CodeSessionLost}
	}

	claims, err := c.states.Verify(cb.State, ProviderAccounting, sess.ID)
	if err != nil {
		logger.Warnf("accounting callback state check failed: %v", err)
		return Outcome{Code: CodeAuthFailed}
	}
	if a.kind == anchorStandalone && claims.Nonce != a.nonce {
		logger.Warnf("accounting callback nonce mismatch for session %s", sess.ID)
		return Outcome{Code: CodeAuthFailed}
	}

	creds, err := c.accounting.Exchange(ctx, cb.Code, cb.RealmID)
	if err != nil {
		logger.Warnf("accounting exchange failed for company %s: %v", cb.RealmID, err)
		return Outcome{Code: CodeTokenSaveFailed}
	}

	switch a.kind {
	case anchorIdentified, anchorPending:
		if err := c.customers.AttachAccounting(ctx, a.customerID, *creds); err != nil {
			logger.Errorf("attach accounting to customer %s failed: %v", a.customerID, err)
			return Outcome{Code: CodeTokenSaveFailed}
		}
		logger.Infof("accounting connected: customer=%s company=%s", a.customerID, creds.CompanyID)
		return Outcome{CustomerID: a.customerID, Code: CodeSuccess}
	case anchorStandalone:
		cust, err := c.customers.CreateStandalone(ctx, *creds)
		if err != nil {
			logger.Errorf("standalone accounting customer create failed: %v", err)
			return Outcome{Code: CodeTokenSaveFailed}
		}
		logger.Infof("standalone accounting customer created: customer=%s company=%s", cust.ID, creds.CompanyID)
		return Outcome{CustomerID: cust.ID, Code: CodeSuccess, Created: true}
	default:
		return Outcome{Code: CodeSessionLost}
	}
}

// DisconnectWorkspace clears the session customer's workspace bundle. Repeating it is harmless.
func (c *Controller) DisconnectWorkspace(ctx context.Context, sess *sessions.Session) (string, error) {
	if !sess.Identified() {
		return "", apperr.New(apperr.KindUnauthenticated, "not_authenticated", "no customer bound to this session")
	}
	return sess.CustomerID, c.customers.DisconnectWorkspace(ctx, sess.CustomerID)
}

// DisconnectAccounting clears the session customer's accounting bundle.
func (c *Controller) DisconnectAccounting(ctx context.Context, sess *sessions.Session) (string, error) {
	if !sess.Identified() {
		return "", apperr.New(apperr.KindUnauthenticated, "not_authenticated", "no customer bound to this session")
	}
	return sess.CustomerID, c.customers.DisconnectAccounting(ctx, sess.CustomerID)
}

// DisconnectAccountingByCompany serves the provider-initiated disconnect. It
// needs no session; an unknown company is a successful no-op.
func (c *Controller) DisconnectAccountingByCompany(ctx context.Context, companyID string) (bool, error) {
	id, err := c.customers.DisconnectAccountingByCompany(ctx, companyID)
	if err != nil {
		return false, err
	}
	if id != "" {
		logger.Infof("accounting disconnected by company %s: customer=%s", companyID, id)
	}
	return id != "", nil
}

// IsUnauthenticated reports whether err should send the browser back to log in.
func IsUnauthenticated(err error) bool {
	var ae *apperr.Error
	return errors.As(err, &ae) && ae.Kind == apperr.KindUnauthenticated
}
