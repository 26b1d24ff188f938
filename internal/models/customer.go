package models

import (
	"fmt"
	"time"
)

// Customer is a broker customer. Either credential bundle may be nil, but a stored
// customer always carries at least one of them.
type Customer struct {
	ID         string                 `bson:"_id" json:"id"`
	Email      string                 `bson:"email" json:"email"`
	Name       string                 `bson:"name" json:"name"`
	Picture    string                 `bson:"picture,omitempty" json:"picture,omitempty"`
	Workspace  *WorkspaceCredentials  `bson:"workspace" json:"workspace,omitempty"`
	Accounting *AccountingCredentials `bson:"accounting" json:"accounting,omitempty"`
	CreatedAt  time.Time              `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time              `bson:"updatedAt" json:"updatedAt"`
}

// WorkspaceCredentials is the token bundle issued by the Workspace provider.
type WorkspaceCredentials struct {
	AccessToken  string    `bson:"accessToken" json:"accessToken"`
	RefreshToken string    `bson:"refreshToken" json:"refreshToken"`
	Scopes       []string  `bson:"scopes" json:"scopes"`
	ExpiresAt    time.Time `bson:"expiresAt" json:"expiresAt"`
}

// AccountingCredentials is the token bundle issued by the Accounting provider.
type AccountingCredentials struct {
	AccessToken  string    `bson:"accessToken" json:"accessToken"`
	RefreshToken string    `bson:"refreshToken" json:"refreshToken"`
	CompanyID    string    `bson:"companyId" json:"companyId"`
	ExpiresAt    time.Time `bson:"expiresAt" json:"expiresAt"`
	APIBaseURL   string    `bson:"apiBaseUrl" json:"apiBaseUrl"`
}

// Profile holds the identity claims taken from the Workspace id_token.
type Profile struct {
	Email   string
	Name    string
	Picture string
}

func (c *Customer) HasWorkspace() bool {
	return c != nil && c.Workspace != nil && c.Workspace.AccessToken != ""
}

func (c *Customer) HasAccounting() bool {
	return c != nil && c.Accounting != nil && c.Accounting.AccessToken != ""
}

// PlaceholderEmail is the synthetic email given to Accounting-only customers.
func PlaceholderEmail(companyID string) string {
	return fmt.Sprintf("quickbooks-%s@placeholder.invalid", companyID)
}

// PlaceholderName is the display name given to Accounting-only customers.
func PlaceholderName(companyID string) string {
	return "QuickBooks company " + companyID
}
