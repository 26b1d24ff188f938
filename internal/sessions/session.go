package sessions

import "time"

// FlowKind tags the in-flight authorization marker held by a browser session.
type FlowKind string

const (
	FlowNone       FlowKind = ""
	FlowPending    FlowKind = "pending"
	FlowStandalone FlowKind = "standalone"
)

// FlowState is a routing hint for the next Accounting callback:
// None, PendingFor(customer id) or StandaloneAttempt(nonce). It is consumed
// exactly once and never holds credential data.
type FlowState struct {
	Kind       FlowKind `json:"kind,omitempty"`
	CustomerID string   `json:"customerId,omitempty"`
	Nonce      string   `json:"nonce,omitempty"`
}

func NoFlow() FlowState { return FlowState{} }

func PendingFor(customerID string) FlowState {
	return FlowState{Kind: FlowPending, CustomerID: customerID}
}

func StandaloneAttempt(nonce string) FlowState {
	return FlowState{Kind: FlowStandalone, Nonce: nonce}
}

// Session is the server-side state behind a browser session cookie.
type Session struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customerId,omitempty"`
	Flow       FlowState `json:"flow"`
	CreatedAt  time.Time `json:"createdAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// Identified reports whether a completed Workspace login is bound to the session.
func (s *Session) Identified() bool {
	return s != nil && s.CustomerID != ""
}
