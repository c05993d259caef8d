package graph

import (
	"context"
	"net/http"
	"time"

	"social-publisher/domain/apperror"
	"social-publisher/domain/dto"
	"social-publisher/domain/model"
	"social-publisher/domain/repository"
	"social-publisher/infrastructure/utils"
)

type igRefreshParams struct {
	GrantType string `url:"grant_type"`
}

type fbExchangeParams struct {
	GrantType       string `url:"grant_type"`
	ClientID        string `url:"client_id"`
	ClientSecret    string `url:"client_secret"`
	FBExchangeToken string `url:"fb_exchange_token"`
}

// InstagramRefresher extends a long-lived Instagram Login token. The api must
// point at graph.instagram.com without a version prefix.
type InstagramRefresher struct {
	api   repository.IGraphAPI
	clock utils.Clock
}

var _ repository.ITokenRefresher = (*InstagramRefresher)(nil)

func NewInstagramRefresher(api repository.IGraphAPI, clock utils.Clock) *InstagramRefresher {
	if clock == nil {
		clock = utils.RealClock{}
	}
	return &InstagramRefresher{api: api, clock: clock}
}

func (r *InstagramRefresher) Refresh(ctx context.Context, token *model.OAuthToken) (*model.RefreshedToken, error) {
	params, err := encode(igRefreshParams{GrantType: "ig_refresh_token"})
	if err != nil {
		return nil, err
	}
	body, err := r.api.Call(ctx, apperror.StepToken, http.MethodGet, "/refresh_access_token", token.AccessToken, params)
	if err != nil {
		return nil, err
	}
	return grantToRefreshed(body, r.clock.Now())
}

// FacebookRefresher exchanges a user or page token for a new long-lived one.
type FacebookRefresher struct {
	api          repository.IGraphAPI
	clientID     string
	clientSecret string
	clock        utils.Clock
}

var _ repository.ITokenRefresher = (*FacebookRefresher)(nil)

func NewFacebookRefresher(api repository.IGraphAPI, clientID, clientSecret string, clock utils.Clock) *FacebookRefresher {
	if clock == nil {
		clock = utils.RealClock{}
	}
	return &FacebookRefresher{api: api, clientID: clientID, clientSecret: clientSecret, clock: clock}
}

func (r *FacebookRefresher) Refresh(ctx context.Context, token *model.OAuthToken) (*model.RefreshedToken, error) {
	params, err := encode(fbExchangeParams{
		GrantType:       "fb_exchange_token",
		ClientID:        r.clientID,
		ClientSecret:    r.clientSecret,
		FBExchangeToken: token.AccessToken,
	})
	if err != nil {
		return nil, err
	}
	body, err := r.api.Call(ctx, apperror.StepToken, http.MethodGet, "/oauth/access_token", "", params)
	if err != nil {
		return nil, err
	}
	return grantToRefreshed(body, r.clock.Now())
}

func grantToRefreshed(body []byte, now time.Time) (*model.RefreshedToken, error) {
	grant, err := dto.DecodeTokenGrant(body)
	if err != nil {
		return nil, undecodable(apperror.StepToken, err)
	}
	out := &model.RefreshedToken{AccessToken: grant.AccessToken, RefreshToken: grant.RefreshToken}
	if grant.ExpiresIn > 0 {
		exp := now.Add(time.Duration(grant.ExpiresIn) * time.Second)
		out.ExpiresAt = &exp
	}
	return out, nil
}
