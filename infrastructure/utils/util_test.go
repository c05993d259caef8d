package utils

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactParams(t *testing.T) {
	params := url.Values{}
	params.Set("access_token", "EAAGm0PX4ZCpsBAKZA1234")
	params.Set("client_secret", "short")
	params.Set("image_url", "https://cdn.example.com/a.jpg")

	got := RedactParams(params)
	assert.Equal(t, "***1234", got["access_token"])
	assert.Equal(t, "***", got["client_secret"])
	assert.Equal(t, "https://cdn.example.com/a.jpg", got["image_url"])
	assert.Nil(t, RedactParams(nil))
}

func TestManualClock(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewManualClock(start)
	require.NoError(t, c.Sleep(context.Background(), 2*time.Second))
	c.Advance(time.Second)
	assert.Equal(t, start.Add(3*time.Second), c.Now())
	assert.Equal(t, []time.Duration{2 * time.Second}, c.Sleeps())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.Sleep(ctx, time.Second), context.Canceled)
}

func TestRealClock_SleepHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := RealClock{}.Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGenerateToken(t *testing.T) {
	tok, err := GenerateToken(map[string]interface{}{"iss": "user-1"}, "secret")
	require.NoError(t, err)

	parsed, err := jwt.Parse(tok, func(*jwt.Token) (interface{}, error) { return []byte("secret"), nil })
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, "user-1", claims["iss"])
}
