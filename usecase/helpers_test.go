package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"social-publisher/domain/model"
	"social-publisher/infrastructure/clients/graph"
	"social-publisher/infrastructure/utils"
)

var (
	testNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	ladder  = []time.Duration{500 * time.Millisecond, 1500 * time.Millisecond, 3 * time.Second, 6 * time.Second}
	igRef   = model.AccountRef{UserID: "u1", Platform: model.PlatformInstagram}
)

type memoryTokenStore struct {
	mu        sync.Mutex
	tokens    map[string]*model.OAuthToken
	upserts   int
	getErr    error
	upsertErr error
}

func newMemoryTokenStore(tokens ...*model.OAuthToken) *memoryTokenStore {
	s := &memoryTokenStore{tokens: map[string]*model.OAuthToken{}}
	for _, t := range tokens {
		s.tokens[t.UserID+":"+t.Platform] = t.Clone()
	}
	return s
}

func (s *memoryTokenStore) GetToken(_ context.Context, userID, platform string) (*model.OAuthToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	t, ok := s.tokens[userID+":"+platform]
	if !ok {
		return nil, nil
	}
	return t.Clone(), nil
}

func (s *memoryTokenStore) UpsertToken(_ context.Context, t *model.OAuthToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts++
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.tokens[t.UserID+":"+t.Platform] = t.Clone()
	return nil
}

func (s *memoryTokenStore) stored(userID, platform string) *model.OAuthToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens[userID+":"+platform]
}

type MockRefresher struct {
	mock.Mock
}

func (m *MockRefresher) Refresh(ctx context.Context, token *model.OAuthToken) (*model.RefreshedToken, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RefreshedToken), args.Error(1)
}

type MockDiagnostics struct {
	mock.Mock
}

func (m *MockDiagnostics) Save(ctx context.Context, d *model.Diagnostics) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *MockDiagnostics) Latest(ctx context.Context, userID string, platform model.Platform) (*model.Diagnostics, error) {
	args := m.Called(ctx, userID, platform)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Diagnostics), args.Error(1)
}

func newGraphClient(primary, secondary string, clock utils.Clock) *graph.Client {
	return graph.NewClient(graph.Options{
		PrimaryHost:   primary,
		SecondaryHost: secondary,
		RetryDelays:   ladder,
		MaxRetries:    4,
		Clock:         clock,
	})
}

func writeGraphError(w http.ResponseWriter, status, code, subcode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, `{"error":{"message":"error %d","type":"OAuthException","code":%d,"error_subcode":%d,"fbtrace_id":"trace"}}`, code, code, subcode)
}

func writeJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}

func instagramToken(accessToken string, expiresAt *time.Time) *model.OAuthToken {
	return &model.OAuthToken{
		UserID:      igRef.UserID,
		Platform:    string(igRef.Platform),
		AccessToken: accessToken,
		ExpiresAt:   expiresAt,
		Scopes:      "instagram_business_basic,instagram_business_content_publish",
		AccountID:   utils.StrPtr("17841400000000001"),
		CreatedAt:   testNow.Add(-30 * 24 * time.Hour),
	}
}

func timePtr(t time.Time) *time.Time { return &t }

var errBoom = errors.New("boom")
