package repository

import (
	"context"

	"social-publisher/domain/model"
)

// IOAuthToken is the credential store. GetToken returns (nil, nil) when no token is stored.
type IOAuthToken interface {
	GetToken(ctx context.Context, userID, platform string) (*model.OAuthToken, error)
	UpsertToken(ctx context.Context, token *model.OAuthToken) error
}

// ITokenRefresher exchanges a token for a fresh one using the provider's refresh grant.
type ITokenRefresher interface {
	Refresh(ctx context.Context, token *model.OAuthToken) (*model.RefreshedToken, error)
}
