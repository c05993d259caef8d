package model

import "time"

// PublishQuota is the informational publishing limit reported by a provider.
type PublishQuota struct {
	Usage int `json:"usage" bson:"usage"`
	Total int `json:"total" bson:"total"`
}

// Diagnostics is a capability snapshot recomputed for every publish attempt.
type Diagnostics struct {
	Platform        Platform        `json:"platform" bson:"platform"`
	UserID          string          `json:"user_id" bson:"user_id"`
	TokenValid      bool            `json:"token_valid" bson:"token_valid"`
	StoredAccountID string          `json:"stored_account_id,omitempty" bson:"stored_account_id,omitempty"`
	AccountID       string          `json:"account_id,omitempty" bson:"account_id,omitempty"`
	Username        string          `json:"username,omitempty" bson:"username,omitempty"`
	AccountType     string          `json:"account_type,omitempty" bson:"account_type,omitempty"`
	GrantedScopes   []string        `json:"granted_scopes" bson:"granted_scopes"`
	ScopeSource     string          `json:"scope_source" bson:"scope_source"` // cached | introspection | unknown
	Permissions     map[string]bool `json:"permissions" bson:"permissions"`
	Quota           *PublishQuota   `json:"quota,omitempty" bson:"quota,omitempty"`
	Passed          bool            `json:"passed" bson:"passed"`
	FailureReason   string          `json:"failure_reason,omitempty" bson:"failure_reason,omitempty"`
	CheckedAt       time.Time       `json:"checked_at" bson:"checked_at"`
}
