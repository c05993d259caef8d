package usecase_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"social-publisher/domain/apperror"
	"social-publisher/domain/model"
	"social-publisher/infrastructure/utils"
	"social-publisher/usecase"
)

const igAccountID = "17841400000000001"

func identityHandler(accountType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"user_id":"`+igAccountID+`","username":"brand","account_type":"`+accountType+`"}`)
	}
}

func newCapability(t *testing.T, gs *graphServer, diag *MockDiagnostics) usecase.ICapabilityUsecase {
	clock := utils.NewManualClock(testNow)
	targets := map[model.Platform]usecase.CapabilityTarget{
		model.PlatformInstagram: {Profile: usecase.InstagramProfile, API: newGraphClient(gs.URL(), "", clock)},
	}
	if diag == nil {
		return usecase.NewCapabilityUsecase(targets, nil, clock)
	}
	return usecase.NewCapabilityUsecase(targets, diag, clock)
}

func TestAssertReady_Passes(t *testing.T) {
	gs := newGraphServer(t)
	gs.handle("GET /me", identityHandler("business"))
	gs.handle("GET /"+igAccountID+"/content_publishing_limit", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "quota_usage,config", r.URL.Query().Get("fields"))
		writeJSON(w, `{"data":[{"quota_usage":3,"config":{"quota_total":50}}]}`)
	})
	diagRepo := new(MockDiagnostics)
	diagRepo.On("Save", mock.Anything, mock.MatchedBy(func(d *model.Diagnostics) bool { return d.Passed })).Return(nil).Once()

	diag, err := newCapability(t, gs, diagRepo).AssertReady(context.Background(), instagramToken("tok", nil), igAccountID, nil)
	require.NoError(t, err)
	assert.True(t, diag.Passed)
	assert.True(t, diag.TokenValid)
	assert.Equal(t, "BUSINESS", diag.AccountType)
	assert.Equal(t, usecase.ScopeSourceCached, diag.ScopeSource)
	assert.Equal(t, map[string]bool{"instagram_business_basic": true, "instagram_business_content_publish": true}, diag.Permissions)
	require.NotNil(t, diag.Quota)
	assert.Equal(t, 50, diag.Quota.Total)
	assert.Equal(t, 0, gs.count("GET /debug_token"))
	diagRepo.AssertExpectations(t)
}

func TestAssertReady_TokenIdentityWins(t *testing.T) {
	gs := newGraphServer(t)
	gs.handle("GET /me", identityHandler("MEDIA_CREATOR"))

	diag, err := newCapability(t, gs, nil).AssertReady(context.Background(), instagramToken("tok", nil), "stale-id", nil)
	require.NoError(t, err)
	assert.Equal(t, "stale-id", diag.StoredAccountID)
	assert.Equal(t, igAccountID, diag.AccountID)
	assert.Nil(t, diag.Quota)
}

func TestAssertReady_MissingScope(t *testing.T) {
	gs := newGraphServer(t)
	gs.handle("GET /me", identityHandler("BUSINESS"))
	tok := instagramToken("tok", nil)
	tok.Scopes = "instagram_business_basic"

	diag, err := newCapability(t, gs, nil).AssertReady(context.Background(), tok, igAccountID, nil)
	se, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, apperror.KindCapability, se.Kind)
	assert.Contains(t, se.Message, "instagram_business_content_publish")
	assert.Contains(t, se.Remediation, "instagram_business_content_publish")
	assert.Same(t, diag, se.Diagnostics)
	assert.False(t, diag.Permissions["instagram_business_content_publish"])
	assert.True(t, diag.Permissions["instagram_business_basic"])
	assert.Equal(t, http.StatusForbidden, apperror.HTTPStatus(err))
}

func TestAssertReady_RejectsPersonalAccount(t *testing.T) {
	gs := newGraphServer(t)
	gs.handle("GET /me", identityHandler("PERSONAL"))

	diag, err := newCapability(t, gs, nil).AssertReady(context.Background(), instagramToken("tok", nil), igAccountID, nil)
	se, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, apperror.KindCapability, se.Kind)
	assert.Contains(t, se.Remediation, "professional account")
	assert.False(t, diag.Passed)
	assert.Equal(t, 0, gs.count("GET /"+igAccountID+"/content_publishing_limit"))
}

func TestAssertReady_IntrospectsWhenNoCachedScopes(t *testing.T) {
	gs := newGraphServer(t)
	gs.handle("GET /me", identityHandler("BUSINESS"))
	gs.handle("GET /debug_token", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok-value", r.URL.Query().Get("input_token"))
		writeJSON(w, `{"data":{"is_valid":true,"scopes":["instagram_business_content_publish","instagram_business_basic"]}}`)
	})
	tok := instagramToken("tok-value", nil)
	tok.Scopes = ""

	diag, err := newCapability(t, gs, nil).AssertReady(context.Background(), tok, igAccountID, nil)
	require.NoError(t, err)
	assert.Equal(t, usecase.ScopeSourceIntrospect, diag.ScopeSource)
	assert.Equal(t, []string{"instagram_business_basic", "instagram_business_content_publish"}, diag.GrantedScopes)
}

func TestAssertReady_IntrospectionFailureTolerated(t *testing.T) {
	gs := newGraphServer(t)
	gs.handle("GET /me", identityHandler("BUSINESS"))
	gs.handle("GET /debug_token", func(w http.ResponseWriter, r *http.Request) {
		writeGraphError(w, http.StatusBadRequest, 100, 0)
	})
	gs.handle("GET /"+igAccountID+"/content_publishing_limit", func(w http.ResponseWriter, r *http.Request) {
		writeGraphError(w, http.StatusInternalServerError, 1, 0)
	})
	tok := instagramToken("tok", nil)
	tok.Scopes = ""

	diag, err := newCapability(t, gs, nil).AssertReady(context.Background(), tok, igAccountID, nil)
	require.NoError(t, err)
	assert.Equal(t, usecase.ScopeSourceUnknown, diag.ScopeSource)
	assert.Nil(t, diag.Quota)
	assert.Equal(t, 1, gs.count("GET /debug_token"))
	assert.Equal(t, 1, gs.count("GET /"+igAccountID+"/content_publishing_limit"))
}

func TestAssertReady_IdentityFailureIsNotRetried(t *testing.T) {
	gs := newGraphServer(t)
	gs.handle("GET /me", func(w http.ResponseWriter, r *http.Request) {
		writeGraphError(w, http.StatusBadRequest, 190, 467)
	})
	diagRepo := new(MockDiagnostics)
	diagRepo.On("Save", mock.Anything, mock.MatchedBy(func(d *model.Diagnostics) bool { return !d.TokenValid })).Return(errBoom).Once()

	diag, err := newCapability(t, gs, diagRepo).AssertReady(context.Background(), instagramToken("tok", nil), igAccountID, nil)
	se, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, apperror.KindCapability, se.Kind)
	assert.Equal(t, apperror.StepCapabilityCheck, se.Step)
	assert.True(t, se.RequiresReauth())
	assert.Same(t, diag, se.Diagnostics)
	assert.Equal(t, 1, gs.count("GET /me"))
	diagRepo.AssertExpectations(t)
}

func TestAssertReady_TransientIdentityFailureIsCapabilityError(t *testing.T) {
	gs := newGraphServer(t)
	gs.handle("GET /me", func(w http.ResponseWriter, r *http.Request) {
		writeGraphError(w, http.StatusInternalServerError, 1, 0)
	})

	_, err := newCapability(t, gs, nil).AssertReady(context.Background(), instagramToken("tok", nil), igAccountID, nil)
	se, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, apperror.KindCapability, se.Kind)
	assert.Equal(t, apperror.StepCapabilityCheck, se.Step)
	assert.False(t, se.Retryable())
	assert.False(t, se.RequiresReauth())
	assert.Equal(t, http.StatusForbidden, apperror.HTTPStatus(err))
	require.NotNil(t, se.Provider)
	assert.Equal(t, 1, se.Provider.Code)
	require.NotNil(t, se.Request)
	assert.Equal(t, 1, gs.count("GET /me"))
}

func TestAssertReady_UnsupportedPlatform(t *testing.T) {
	gs := newGraphServer(t)
	tok := &model.OAuthToken{UserID: "u1", Platform: "google", AccessToken: "g"}
	_, err := newCapability(t, gs, nil).AssertReady(context.Background(), tok, "", nil)
	assert.True(t, apperror.IsKind(err, apperror.KindCapability))
}
