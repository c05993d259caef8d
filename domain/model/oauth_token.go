package model

import (
	"sort"
	"strings"
	"time"
)

// OAuthToken stores platform OAuth credentials per user
type OAuthToken struct {
	ID           int64      `json:"id"`
	UserID       string     `json:"user_id"`
	Platform     string     `json:"platform"`
	AccessToken  string     `json:"-"`
	RefreshToken string     `json:"-"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	Scopes       string     `json:"scopes"`
	AccountID    *string    `json:"account_id,omitempty"` // provider account id captured at connect time
	PageID       *string    `json:"page_id,omitempty"`
	PageName     *string    `json:"page_name,omitempty"`
	TokenType    *string    `json:"token_type,omitempty"` // user | page
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Ref returns the account reference owning this token.
func (t *OAuthToken) Ref() AccountRef {
	return AccountRef{UserID: t.UserID, Platform: Platform(t.Platform)}
}

// ScopeList returns the cached scopes, sorted and de-duplicated.
func (t *OAuthToken) ScopeList() []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, s := range strings.FieldsFunc(t.Scopes, func(r rune) bool { return r == ',' || r == ' ' }) {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// ProviderAccountID returns the stored provider side id, preferring the page id
// for page tokens.
func (t *OAuthToken) ProviderAccountID() string {
	if t.TokenType != nil && *t.TokenType == "page" && t.PageID != nil {
		return *t.PageID
	}
	if t.AccountID != nil && *t.AccountID != "" {
		return *t.AccountID
	}
	if t.PageID != nil {
		return *t.PageID
	}
	return ""
}

// Clone returns a copy that can be mutated without touching the receiver.
func (t *OAuthToken) Clone() *OAuthToken {
	c := *t
	if t.ExpiresAt != nil {
		e := *t.ExpiresAt
		c.ExpiresAt = &e
	}
	return &c
}

// RefreshDecision is derived from a token's expiry and never persisted.
type RefreshDecision string

const (
	UseAsIs        RefreshDecision = "USE_AS_IS"
	RefreshThenUse RefreshDecision = "REFRESH_THEN_USE"
	ReauthRequired RefreshDecision = "REAUTH_REQUIRED"
)

// RefreshPolicy holds the per-provider windows used by DecideRefresh.
// A zero Grace means an expired token can always be refreshed.
type RefreshPolicy struct {
	Horizon time.Duration
	Grace   time.Duration
}

// DecideRefresh classifies a token expiry relative to now.
//
//   - no expiry, or expiry further out than the horizon: USE_AS_IS
//   - expired longer ago than the grace window: REAUTH_REQUIRED
//   - anything else (expiring soon, or recently expired): REFRESH_THEN_USE
func DecideRefresh(expiresAt *time.Time, now time.Time, policy RefreshPolicy) RefreshDecision {
	if expiresAt == nil {
		return UseAsIs
	}
	if expiresAt.Sub(now) > policy.Horizon {
		return UseAsIs
	}
	if policy.Grace > 0 && now.Sub(*expiresAt) > policy.Grace {
		return ReauthRequired
	}
	return RefreshThenUse
}

// RefreshedToken is what a provider refresh endpoint hands back.
type RefreshedToken struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
}
