package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"social-publisher/domain/model"
	"social-publisher/domain/repository"
	"social-publisher/infrastructure/logger"

	"github.com/redis/go-redis/v9"
)

const (
	tokenKeyPrefix = "oauth:token:"
	maxTokenTTL    = 5 * time.Minute
)

// cachedToken carries the secrets that model.OAuthToken hides from JSON.
type cachedToken struct {
	model.OAuthToken
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// TokenCache is a read-through cache in front of the credential store.
type TokenCache struct {
	store  repository.IOAuthToken
	client *redis.Client
	now    func() time.Time
}

var _ repository.IOAuthToken = (*TokenCache)(nil)

// NewTokenCache returns store unchanged when there is no redis client.
func NewTokenCache(store repository.IOAuthToken, client *redis.Client) repository.IOAuthToken {
	if client == nil {
		return store
	}
	return &TokenCache{store: store, client: client, now: time.Now}
}

func tokenKey(userID, platform string) string {
	return fmt.Sprintf("%s%s:%s", tokenKeyPrefix, userID, platform)
}

func (c *TokenCache) GetToken(ctx context.Context, userID, platform string) (*model.OAuthToken, error) {
	key := tokenKey(userID, platform)
	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var ct cachedToken
		if jerr := json.Unmarshal(raw, &ct); jerr == nil {
			tok := ct.OAuthToken
			tok.AccessToken = ct.AccessToken
			tok.RefreshToken = ct.RefreshToken
			return &tok, nil
		}
		logger.GetLogger().WithField("key", key).Warn("Discarding undecodable token cache entry")
	case !errors.Is(err, redis.Nil):
		logger.GetLogger().WithField("error", err).Warn("Token cache read failed, using store")
	}

	tok, err := c.store.GetToken(ctx, userID, platform)
	if err != nil || tok == nil {
		return tok, err
	}
	c.put(ctx, tok)
	return tok, nil
}

func (c *TokenCache) UpsertToken(ctx context.Context, t *model.OAuthToken) error {
	if err := c.store.UpsertToken(ctx, t); err != nil {
		c.evict(ctx, t.UserID, t.Platform)
		return err
	}
	c.put(ctx, t)
	return nil
}

func (c *TokenCache) ttl(t *model.OAuthToken) time.Duration {
	if t.ExpiresAt == nil {
		return maxTokenTTL
	}
	left := t.ExpiresAt.Sub(c.now())
	if left < maxTokenTTL {
		return left
	}
	return maxTokenTTL
}

func (c *TokenCache) put(ctx context.Context, t *model.OAuthToken) {
	ttl := c.ttl(t)
	if ttl <= 0 {
		c.evict(ctx, t.UserID, t.Platform)
		return
	}
	payload, err := json.Marshal(cachedToken{OAuthToken: *t, AccessToken: t.AccessToken, RefreshToken: t.RefreshToken})
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, tokenKey(t.UserID, t.Platform), payload, ttl).Err(); err != nil {
		logger.GetLogger().WithField("error", err).Warn("Token cache write failed")
	}
}

func (c *TokenCache) evict(ctx context.Context, userID, platform string) {
	if err := c.client.Del(ctx, tokenKey(userID, platform)).Err(); err != nil {
		logger.GetLogger().WithField("error", err).Warn("Token cache evict failed")
	}
}
