package usecase

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"social-publisher/domain/apperror"
	"social-publisher/domain/model"
	"social-publisher/domain/repository"
	"social-publisher/infrastructure/configuration"
	"social-publisher/infrastructure/logger"
	"social-publisher/infrastructure/metrics"
	"social-publisher/infrastructure/utils"
)

// googleRefreshPolicy covers one hour Google access tokens backed by a refresh token.
var googleRefreshPolicy = model.RefreshPolicy{Horizon: 5 * time.Minute}

// TokenStatus describes a stored credential without exposing the secret.
type TokenStatus struct {
	UserID          string                `json:"user_id"`
	Platform        model.Platform        `json:"platform"`
	Decision        model.RefreshDecision `json:"decision"`
	ExpiresAt       *time.Time            `json:"expires_at,omitempty"`
	Scopes          []string              `json:"scopes"`
	AccountID       string                `json:"account_id,omitempty"`
	TokenType       string                `json:"token_type,omitempty"`
	HasRefreshToken bool                  `json:"has_refresh_token"`
	AccessToken     string                `json:"access_token_hint"`
}

type ITokenUsecase interface {
	GetValidToken(ctx context.Context, ref model.AccountRef) (*model.OAuthToken, error)
	ForceRefresh(ctx context.Context, ref model.AccountRef) (*model.OAuthToken, error)
	Status(ctx context.Context, ref model.AccountRef) (*TokenStatus, error)
}

type tokenUsecase struct {
	store      repository.IOAuthToken
	refreshers map[model.Platform]repository.ITokenRefresher
	policies   map[model.Platform]model.RefreshPolicy
	fallback   model.RefreshPolicy
	clock      utils.Clock
	metrics    *metrics.Metrics
	flight     singleflight.Group
}

func NewTokenUsecase(store repository.IOAuthToken, refreshers map[model.Platform]repository.ITokenRefresher, cfg configuration.PublishConfig, clock utils.Clock, m *metrics.Metrics) ITokenUsecase {
	if clock == nil {
		clock = utils.RealClock{}
	}
	meta := model.RefreshPolicy{Horizon: cfg.RefreshHorizon, Grace: cfg.GraceWindow}
	return &tokenUsecase{
		store:      store,
		refreshers: refreshers,
		policies: map[model.Platform]model.RefreshPolicy{
			model.PlatformInstagram: meta,
			model.PlatformFacebook:  meta,
			model.PlatformGoogle:    googleRefreshPolicy,
		},
		fallback: meta,
		clock:    clock,
		metrics:  m,
	}
}

func (u *tokenUsecase) policy(p model.Platform) model.RefreshPolicy {
	if pol, ok := u.policies[p]; ok {
		return pol
	}
	return u.fallback
}

func (u *tokenUsecase) load(ctx context.Context, ref model.AccountRef) (*model.OAuthToken, error) {
	tok, err := u.store.GetToken(ctx, ref.UserID, string(ref.Platform))
	if err != nil {
		return nil, apperror.Internal(apperror.StepToken, "credential store unavailable", err)
	}
	if tok == nil || tok.AccessToken == "" {
		return nil, apperror.TokenMissing(ref)
	}
	return tok, nil
}

func (u *tokenUsecase) GetValidToken(ctx context.Context, ref model.AccountRef) (*model.OAuthToken, error) {
	tok, err := u.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	switch model.DecideRefresh(tok.ExpiresAt, u.clock.Now(), u.policy(ref.Platform)) {
	case model.UseAsIs:
		return tok, nil
	case model.ReauthRequired:
		u.metrics.RecordTokenRefresh(string(ref.Platform), "reauth_required")
		return nil, apperror.TokenExpired(ref, nil)
	}
	return u.refresh(ctx, ref, tok)
}

func (u *tokenUsecase) ForceRefresh(ctx context.Context, ref model.AccountRef) (*model.OAuthToken, error) {
	tok, err := u.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	if model.DecideRefresh(tok.ExpiresAt, u.clock.Now(), u.policy(ref.Platform)) == model.ReauthRequired {
		u.metrics.RecordTokenRefresh(string(ref.Platform), "reauth_required")
		return nil, apperror.TokenExpired(ref, nil)
	}
	return u.refresh(ctx, ref, tok)
}

func (u *tokenUsecase) Status(ctx context.Context, ref model.AccountRef) (*TokenStatus, error) {
	tok, err := u.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	st := &TokenStatus{
		UserID:          ref.UserID,
		Platform:        ref.Platform,
		Decision:        model.DecideRefresh(tok.ExpiresAt, u.clock.Now(), u.policy(ref.Platform)),
		ExpiresAt:       tok.ExpiresAt,
		Scopes:          tok.ScopeList(),
		AccountID:       tok.ProviderAccountID(),
		HasRefreshToken: tok.RefreshToken != "",
		AccessToken:     utils.RedactToken(tok.AccessToken),
	}
	if tok.TokenType != nil {
		st.TokenType = *tok.TokenType
	}
	return st, nil
}

// refresh collapses concurrent refreshes of one account into a single provider call.
// Waiters share the leader's context and result.
func (u *tokenUsecase) refresh(ctx context.Context, ref model.AccountRef, tok *model.OAuthToken) (*model.OAuthToken, error) {
	v, err, shared := u.flight.Do(ref.Key(), func() (interface{}, error) {
		return u.doRefresh(ctx, ref, tok)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		logger.GetLogger().WithField("account", ref.Key()).Debug("Joined in-flight token refresh")
	}
	return v.(*model.OAuthToken).Clone(), nil
}

func (u *tokenUsecase) doRefresh(ctx context.Context, ref model.AccountRef, tok *model.OAuthToken) (*model.OAuthToken, error) {
	lg := logger.GetLogger().WithField("user_id", ref.UserID).WithField("platform", ref.Platform)
	refresher, ok := u.refreshers[ref.Platform]
	if !ok || refresher == nil {
		u.metrics.RecordTokenRefresh(string(ref.Platform), "unsupported")
		return nil, apperror.TokenExpired(ref, fmt.Errorf("no refresher registered for %s", ref.Platform))
	}

	fresh, err := refresher.Refresh(ctx, tok)
	if err != nil || fresh == nil || fresh.AccessToken == "" {
		if err == nil {
			err = fmt.Errorf("refresh returned no access token")
		}
		u.metrics.RecordTokenRefresh(string(ref.Platform), "failed")
		lg.WithField("error", err).Warn("Token refresh failed, re-authorization required")
		return nil, apperror.TokenExpired(ref, err)
	}

	updated := tok.Clone()
	updated.AccessToken = fresh.AccessToken
	if fresh.RefreshToken != "" {
		updated.RefreshToken = fresh.RefreshToken
	}
	updated.ExpiresAt = fresh.ExpiresAt

	if err := u.store.UpsertToken(ctx, updated); err != nil {
		lg.WithField("error", err).
			WithField("token", utils.RedactToken(updated.AccessToken)).
			Error("Refreshed token not persisted; stored credential diverges from provider")
	}
	u.metrics.RecordTokenRefresh(string(ref.Platform), "success")
	lg.WithField("expires_at", updated.ExpiresAt).Info("Token refreshed")
	return updated, nil
}
