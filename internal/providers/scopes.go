package providers

const googleScopePrefix = "https://www.googleapis.com/auth/"

// Collaboration scopes requested at consent; any one of them makes a grant usable.
var WorkspaceCoreScopes = []string{
	googleScopePrefix + "spreadsheets",
	googleScopePrefix + "drive",
	googleScopePrefix + "gmail.modify",
	googleScopePrefix + "calendar",
	googleScopePrefix + "contacts",
}

// Read-only grants that are still accepted when no core scope was granted.
var WorkspaceFallbackScopes = []string{
	googleScopePrefix + "spreadsheets.readonly",
	googleScopePrefix + "drive.readonly",
}

const AccountingScope = "com.intuit.quickbooks.accounting"

func workspaceScopes() []string {
	s := []string{"openid", "email", "profile"}
	return append(s, WorkspaceCoreScopes...)
}
