package google

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"social-publisher/domain/model"
	"social-publisher/domain/repository"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
)

// BusinessProfileScope is requested at connection time for Google Business Profile posting.
const BusinessProfileScope = "https://www.googleapis.com/auth/business.manage"

// Refresher renews Google access tokens with the refresh-token grant.
type Refresher struct {
	config     *oauth2.Config
	httpClient *http.Client
}

var _ repository.ITokenRefresher = (*Refresher)(nil)

func NewRefresher(clientID, clientSecret string, httpClient *http.Client) *Refresher {
	return &Refresher{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Scopes:       []string{BusinessProfileScope},
			Endpoint:     googleoauth.Endpoint,
		},
		httpClient: httpClient,
	}
}

// WithEndpoint overrides the token endpoint, used against test servers.
func (r *Refresher) WithEndpoint(ep oauth2.Endpoint) *Refresher {
	r.config.Endpoint = ep
	return r
}

func (r *Refresher) Refresh(ctx context.Context, token *model.OAuthToken) (*model.RefreshedToken, error) {
	if strings.TrimSpace(token.RefreshToken) == "" {
		return nil, fmt.Errorf("google token for user %s has no refresh token", token.UserID)
	}
	if r.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, r.httpClient)
	}
	// An already expired token forces the source to hit the token endpoint.
	src := r.config.TokenSource(ctx, &oauth2.Token{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       time.Now().Add(-time.Minute),
	})
	fresh, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("google refresh: %w", err)
	}
	out := &model.RefreshedToken{AccessToken: fresh.AccessToken, RefreshToken: fresh.RefreshToken}
	if !fresh.Expiry.IsZero() {
		exp := fresh.Expiry.UTC()
		out.ExpiresAt = &exp
	}
	return out, nil
}
