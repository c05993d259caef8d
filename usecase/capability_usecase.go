package usecase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"social-publisher/domain/apperror"
	"social-publisher/domain/dto"
	"social-publisher/domain/model"
	"social-publisher/domain/repository"
	"social-publisher/infrastructure/logger"
	"social-publisher/infrastructure/utils"
)

const (
	ScopeSourceCached     = "cached"
	ScopeSourceIntrospect = "introspection"
	ScopeSourceUnknown    = "unknown"
)

// CapabilityProfile is the per-platform rule set for AssertReady.
type CapabilityProfile struct {
	IdentityPath   string
	IdentityFields string
	RequiredScopes []string
	// IntrospectPath is tried only when no scopes were cached at connect time.
	// "/debug_token" passes the token as input_token; any other path is read as a permissions list.
	IntrospectPath string
	// IneligibleAccountTypes are upper-case provider account types that cannot publish.
	IneligibleAccountTypes []string
	// QuotaPath is a format string taking the account id; empty disables the probe.
	QuotaPath   string
	QuotaFields string
}

// InstagramProfile targets the Instagram API with Instagram Login.
var InstagramProfile = CapabilityProfile{
	IdentityPath:           "/me",
	IdentityFields:         "user_id,username,account_type",
	RequiredScopes:         []string{"instagram_business_basic", "instagram_business_content_publish"},
	IntrospectPath:         "/debug_token",
	IneligibleAccountTypes: []string{"PERSONAL"},
	QuotaPath:              "/%s/content_publishing_limit",
	QuotaFields:            "quota_usage,config",
}

// FacebookPageProfile targets page tokens on the Facebook Graph API.
var FacebookPageProfile = CapabilityProfile{
	IdentityPath:   "/me",
	IdentityFields: "id,name",
	RequiredScopes: []string{"pages_manage_posts", "pages_read_engagement"},
	IntrospectPath: "/me/permissions",
}

// CapabilityTarget pairs a profile with the API client for its hosts.
type CapabilityTarget struct {
	Profile CapabilityProfile
	API     repository.IGraphAPI
}

type ICapabilityUsecase interface {
	// AssertReady checks token, account and scopes before a publish. requiredScopes
	// overrides the profile defaults when non-empty.
	AssertReady(ctx context.Context, token *model.OAuthToken, accountID string, requiredScopes []string) (*model.Diagnostics, error)
	Latest(ctx context.Context, ref model.AccountRef) (*model.Diagnostics, error)
}

type capabilityUsecase struct {
	targets     map[model.Platform]CapabilityTarget
	diagnostics repository.IDiagnostics
	clock       utils.Clock
}

func NewCapabilityUsecase(targets map[model.Platform]CapabilityTarget, diagnostics repository.IDiagnostics, clock utils.Clock) ICapabilityUsecase {
	if clock == nil {
		clock = utils.RealClock{}
	}
	return &capabilityUsecase{targets: targets, diagnostics: diagnostics, clock: clock}
}

func (u *capabilityUsecase) Latest(ctx context.Context, ref model.AccountRef) (*model.Diagnostics, error) {
	if u.diagnostics == nil {
		return nil, nil
	}
	return u.diagnostics.Latest(ctx, ref.UserID, ref.Platform)
}

func (u *capabilityUsecase) AssertReady(ctx context.Context, token *model.OAuthToken, accountID string, requiredScopes []string) (*model.Diagnostics, error) {
	platform := model.Platform(token.Platform)
	diag := &model.Diagnostics{
		Platform:        platform,
		UserID:          token.UserID,
		StoredAccountID: accountID,
		GrantedScopes:   []string{},
		ScopeSource:     ScopeSourceUnknown,
		Permissions:     map[string]bool{},
		CheckedAt:       u.clock.Now(),
	}
	target, ok := u.targets[platform]
	if !ok || target.API == nil {
		return diag, u.fail(ctx, diag, apperror.Capability(
			fmt.Sprintf("publishing is not supported for %s accounts", platform),
			"Choose an Instagram professional account or a Facebook Page.", diag))
	}
	profile := target.Profile
	if len(requiredScopes) == 0 {
		requiredScopes = profile.RequiredScopes
	}
	lg := logger.GetLogger().WithField("user_id", token.UserID).WithField("platform", platform)

	body, err := target.API.CallOnce(ctx, apperror.StepCapabilityCheck, http.MethodGet, profile.IdentityPath, token.AccessToken, url.Values{"fields": {profile.IdentityFields}})
	if err != nil {
		diag.FailureReason = "identity check failed"
		if se, ok := apperror.As(err); ok {
			remediation := se.Remediation
			if remediation == "" {
				remediation = "Reconnect your account."
			}
			return diag, u.fail(ctx, diag, apperror.CapabilityFrom(se, remediation, diag))
		}
		return diag, u.fail(ctx, diag, apperror.Capability("identity check failed", "Reconnect your account.", diag))
	}
	ident, err := dto.DecodeIdentity(body)
	if err != nil {
		return diag, u.fail(ctx, diag, apperror.Capability("identity response did not include an account id", "Reconnect your account.", diag))
	}
	diag.TokenValid = true
	diag.AccountID = ident.ID
	diag.Username = ident.Username
	if diag.Username == "" {
		diag.Username = ident.Name
	}
	diag.AccountType = ident.AccountType
	if accountID != "" && accountID != ident.ID {
		lg.WithField("stored_account_id", accountID).
			WithField("token_account_id", ident.ID).
			WithField("id_field", ident.IDField).
			Warn("Stored account id differs from token identity, using token identity")
	}

	granted, source := u.grantedScopes(ctx, target, token)
	diag.GrantedScopes = granted
	diag.ScopeSource = source
	if source != ScopeSourceUnknown {
		have := make(map[string]struct{}, len(granted))
		for _, s := range granted {
			have[s] = struct{}{}
		}
		var missing string
		for _, s := range requiredScopes {
			_, ok := have[s]
			diag.Permissions[s] = ok
			if !ok && missing == "" {
				missing = s
			}
		}
		if missing != "" {
			diag.FailureReason = "missing permission " + missing
			return diag, u.fail(ctx, diag, apperror.Capability(
				fmt.Sprintf("token is missing the %s permission", missing),
				fmt.Sprintf("Reconnect the account and grant the %s permission.", missing), diag))
		}
	} else {
		lg.Debug("Granted scopes unknown, skipping permission check")
	}

	for _, t := range profile.IneligibleAccountTypes {
		if diag.AccountType == t {
			diag.FailureReason = "ineligible account type " + t
			return diag, u.fail(ctx, diag, apperror.Capability(
				fmt.Sprintf("%s accounts cannot publish through the API", strings.ToLower(t)),
				"Switch to a professional account (Business or Creator) in the app settings, then reconnect.", diag))
		}
	}

	if profile.QuotaPath != "" {
		u.probeQuota(ctx, target, token, diag)
	}

	diag.Passed = true
	u.save(ctx, diag)
	return diag, nil
}

func (u *capabilityUsecase) grantedScopes(ctx context.Context, target CapabilityTarget, token *model.OAuthToken) ([]string, string) {
	if cached := token.ScopeList(); len(cached) > 0 {
		return cached, ScopeSourceCached
	}
	path := target.Profile.IntrospectPath
	if path == "" {
		return []string{}, ScopeSourceUnknown
	}
	params := url.Values{}
	if path == "/debug_token" {
		params.Set("input_token", token.AccessToken)
	}
	body, err := target.API.CallOnce(ctx, apperror.StepCapabilityCheck, http.MethodGet, path, token.AccessToken, params)
	if err != nil {
		logger.GetLogger().WithField("error", err).Debug("Scope introspection rejected")
		return []string{}, ScopeSourceUnknown
	}
	scopes, err := dto.DecodeScopes(body)
	if err != nil {
		logger.GetLogger().WithField("error", err).Debug("Scope introspection undecodable")
		return []string{}, ScopeSourceUnknown
	}
	norm := (&model.OAuthToken{Scopes: strings.Join(scopes, ",")}).ScopeList()
	return norm, ScopeSourceIntrospect
}

func (u *capabilityUsecase) probeQuota(ctx context.Context, target CapabilityTarget, token *model.OAuthToken, diag *model.Diagnostics) {
	path := fmt.Sprintf(target.Profile.QuotaPath, diag.AccountID)
	body, err := target.API.CallOnce(ctx, apperror.StepCapabilityCheck, http.MethodGet, path, token.AccessToken, url.Values{"fields": {target.Profile.QuotaFields}})
	if err != nil {
		logger.GetLogger().WithField("error", err).Debug("Publish quota probe failed")
		return
	}
	if usage, total, ok := dto.DecodePublishQuota(body); ok {
		diag.Quota = &model.PublishQuota{Usage: usage, Total: total}
	}
}

func (u *capabilityUsecase) fail(ctx context.Context, diag *model.Diagnostics, err *apperror.StructuredError) error {
	if diag.FailureReason == "" {
		diag.FailureReason = err.Message
	}
	u.save(ctx, diag)
	return err
}

func (u *capabilityUsecase) save(ctx context.Context, diag *model.Diagnostics) {
	if u.diagnostics == nil {
		return
	}
	if err := u.diagnostics.Save(ctx, diag); err != nil {
		logger.GetLogger().WithField("error", err).Warn("Diagnostics snapshot not stored")
	}
}
