package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"social-publisher/domain/apperror"
	"social-publisher/domain/model"
	"social-publisher/usecase"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPublishUsecase struct {
	mock.Mock
}

func (m *MockPublishUsecase) Publish(ctx context.Context, req model.PublishRequest) (*model.PublishResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*model.PublishResult)
	return res, args.Error(1)
}

func (m *MockPublishUsecase) Resume(ctx context.Context, req model.ResumeRequest) (*model.PublishResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*model.PublishResult)
	return res, args.Error(1)
}

func (m *MockPublishUsecase) ListAttempts(ctx context.Context, userID string, limit int) ([]*model.PublishAttempt, error) {
	args := m.Called(ctx, userID, limit)
	list, _ := args.Get(0).([]*model.PublishAttempt)
	return list, args.Error(1)
}

func (m *MockPublishUsecase) Enqueue(ctx context.Context, req model.PublishRequest) (*model.PublishJob, error) {
	args := m.Called(ctx, req)
	job, _ := args.Get(0).(*model.PublishJob)
	return job, args.Error(1)
}

func (m *MockPublishUsecase) ProcessPending(ctx context.Context, batchSize int) (*usecase.JobSummary, error) {
	args := m.Called(ctx, batchSize)
	s, _ := args.Get(0).(*usecase.JobSummary)
	return s, args.Error(1)
}

type MockTokenUsecase struct {
	mock.Mock
}

func (m *MockTokenUsecase) GetValidToken(ctx context.Context, ref model.AccountRef) (*model.OAuthToken, error) {
	args := m.Called(ctx, ref)
	tok, _ := args.Get(0).(*model.OAuthToken)
	return tok, args.Error(1)
}

func (m *MockTokenUsecase) ForceRefresh(ctx context.Context, ref model.AccountRef) (*model.OAuthToken, error) {
	args := m.Called(ctx, ref)
	tok, _ := args.Get(0).(*model.OAuthToken)
	return tok, args.Error(1)
}

func (m *MockTokenUsecase) Status(ctx context.Context, ref model.AccountRef) (*usecase.TokenStatus, error) {
	args := m.Called(ctx, ref)
	s, _ := args.Get(0).(*usecase.TokenStatus)
	return s, args.Error(1)
}

type MockCapabilityUsecase struct {
	mock.Mock
}

func (m *MockCapabilityUsecase) AssertReady(ctx context.Context, token *model.OAuthToken, accountID string, scopes []string) (*model.Diagnostics, error) {
	args := m.Called(ctx, token, accountID, scopes)
	d, _ := args.Get(0).(*model.Diagnostics)
	return d, args.Error(1)
}

func (m *MockCapabilityUsecase) Latest(ctx context.Context, ref model.AccountRef) (*model.Diagnostics, error) {
	args := m.Called(ctx, ref)
	d, _ := args.Get(0).(*model.Diagnostics)
	return d, args.Error(1)
}

var igRef = model.AccountRef{UserID: "u1", Platform: model.PlatformInstagram}

func testRouter(userID string, register func(api *gin.RouterGroup)) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api")
	api.Use(func(c *gin.Context) {
		if userID != "" {
			c.Set("user_id", userID)
		}
		c.Next()
	})
	register(api)
	return r
}

func do(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func publishRouter(uc usecase.IPublishUsecase, userID string) *gin.Engine {
	h := NewPublishHandler(uc)
	return testRouter(userID, func(api *gin.RouterGroup) {
		api.POST("/publish", h.Publish)
		api.POST("/publish/:containerId/resume", h.Resume)
		api.GET("/publish/attempts", h.ListAttempts)
		api.POST("/publish/process-jobs", h.ProcessJobs)
	})
}

func TestPublishHandler_Publish(t *testing.T) {
	uc := new(MockPublishUsecase)
	uc.On("Publish", mock.Anything, model.PublishRequest{Account: igRef, MediaURL: "https://cdn/x.jpg", Caption: "hi", Kind: model.MediaKindImage}).
		Return(&model.PublishResult{AttemptID: "a1", OK: true, PublishedID: "m1", State: model.StatePublished}, nil).Once()

	w := do(publishRouter(uc, "u1"), http.MethodPost, "/api/publish", gin.H{
		"platform": "Instagram", "media_url": "https://cdn/x.jpg", "caption": "hi", "media_type": "image",
	})
	require.Equal(t, http.StatusOK, w.Code)
	var res model.PublishResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "m1", res.PublishedID)
	uc.AssertExpectations(t)
}

func TestPublishHandler_PublishErrors(t *testing.T) {
	timeout := apperror.PollTimeout("c-1", model.ContainerInProgress)
	tests := []struct {
		name    string
		err     error
		result  *model.PublishResult
		status  int
		reauth  bool
		retry   bool
		hasBody bool
	}{
		{"poll timeout", timeout, &model.PublishResult{ContainerID: "c-1", State: model.StatePolling}, http.StatusAccepted, false, true, true},
		{"token expired", apperror.TokenExpired(igRef, nil), &model.PublishResult{State: model.StateFailed}, http.StatusUnauthorized, true, false, true},
		{"capability", apperror.Capability("missing scope", "grant it", nil), nil, http.StatusForbidden, false, false, false},
		{"plain error", errors.New("boom"), nil, http.StatusInternalServerError, false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := new(MockPublishUsecase)
			uc.On("Publish", mock.Anything, mock.Anything).Return(tt.result, tt.err).Once()

			w := do(publishRouter(uc, "u1"), http.MethodPost, "/api/publish", gin.H{"platform": "instagram", "media_url": "https://cdn/x.jpg"})
			assert.Equal(t, tt.status, w.Code)
			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.reauth, body["requires_reauth"])
			assert.Equal(t, tt.retry, body["retryable"])
			_, hasResult := body["result"]
			assert.Equal(t, tt.hasBody, hasResult)
			assert.NotNil(t, body["error"])
		})
	}
}

func TestPublishHandler_PublishAsync(t *testing.T) {
	uc := new(MockPublishUsecase)
	uc.On("Enqueue", mock.Anything, mock.MatchedBy(func(r model.PublishRequest) bool { return r.Account == igRef })).
		Return(&model.PublishJob{ID: 7, Status: "pending"}, nil).Once()

	w := do(publishRouter(uc, "u1"), http.MethodPost, "/api/publish", gin.H{"platform": "instagram", "media_url": "https://cdn/x.jpg", "async": true})
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), `"queued":true`)
	uc.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestPublishHandler_RejectsBadInput(t *testing.T) {
	uc := new(MockPublishUsecase)
	r := publishRouter(uc, "u1")

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/publish", gin.H{"platform": "instagram"}).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/publish", gin.H{"platform": "myspace", "media_url": "https://cdn/x.jpg"}).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/publish", gin.H{"platform": "instagram", "media_url": "https://cdn/x.jpg", "media_type": "gif"}).Code)
	assert.Equal(t, http.StatusUnauthorized, do(publishRouter(uc, ""), http.MethodPost, "/api/publish", gin.H{"platform": "instagram", "media_url": "https://cdn/x.jpg"}).Code)
	uc.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestPublishHandler_Resume(t *testing.T) {
	uc := new(MockPublishUsecase)
	uc.On("Resume", mock.Anything, model.ResumeRequest{Account: igRef, ContainerID: "c-9", AttemptID: "a1"}).
		Return(&model.PublishResult{OK: true, PublishedID: "m9"}, nil).Once()

	w := do(publishRouter(uc, "u1"), http.MethodPost, "/api/publish/c-9/resume", gin.H{"platform": "instagram", "attempt_id": "a1"})
	assert.Equal(t, http.StatusOK, w.Code)
	uc.AssertExpectations(t)
}

func TestPublishHandler_ListAttemptsAndJobs(t *testing.T) {
	uc := new(MockPublishUsecase)
	uc.On("ListAttempts", mock.Anything, "u1", 5).Return(nil, nil).Once()
	uc.On("ProcessPending", mock.Anything, 10).Return(&usecase.JobSummary{Fetched: 2, Published: 2}, nil).Once()
	r := publishRouter(uc, "u1")

	w := do(r, http.MethodGet, "/api/publish/attempts?limit=5", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"attempts":[]}`, w.Body.String())

	w = do(r, http.MethodPost, "/api/publish/process-jobs?batch=500", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"published":2`)
	uc.AssertExpectations(t)
}

func TestTokenHandler(t *testing.T) {
	uc := new(MockTokenUsecase)
	status := &usecase.TokenStatus{UserID: "u1", Platform: model.PlatformInstagram, Decision: model.UseAsIs, AccessToken: "***mnop"}
	uc.On("Status", mock.Anything, igRef).Return(status, nil)
	uc.On("ForceRefresh", mock.Anything, igRef).Return(&model.OAuthToken{AccessToken: "secret-value"}, nil).Once()
	h := NewTokenHandler(uc)
	r := testRouter("u1", func(api *gin.RouterGroup) {
		api.GET("/tokens/:platform", h.Status)
		api.POST("/tokens/:platform/refresh", h.Refresh)
	})

	w := do(r, http.MethodGet, "/api/tokens/instagram", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "***mnop")

	w = do(r, http.MethodPost, "/api/tokens/instagram/refresh", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"refreshed":true`)
	assert.NotContains(t, w.Body.String(), "secret-value")
}

func TestTokenHandler_MissingToken(t *testing.T) {
	uc := new(MockTokenUsecase)
	uc.On("Status", mock.Anything, igRef).Return(nil, apperror.TokenMissing(igRef)).Once()
	h := NewTokenHandler(uc)
	r := testRouter("u1", func(api *gin.RouterGroup) { api.GET("/tokens/:platform", h.Status) })

	w := do(r, http.MethodGet, "/api/tokens/instagram", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), string(apperror.KindTokenMissing))
}

func TestCapabilityHandler(t *testing.T) {
	tokens := new(MockTokenUsecase)
	caps := new(MockCapabilityUsecase)
	tok := &model.OAuthToken{UserID: "u1", Platform: "instagram", AccessToken: "t"}
	tokens.On("GetValidToken", mock.Anything, igRef).Return(tok, nil)
	failed := &model.Diagnostics{Platform: model.PlatformInstagram, AccountType: "PERSONAL"}
	caps.On("AssertReady", mock.Anything, tok, "", []string(nil)).
		Return(failed, apperror.Capability("personal accounts cannot publish", "switch", failed)).Once()
	caps.On("Latest", mock.Anything, igRef).Return(nil, nil).Once()
	h := NewCapabilityHandler(tokens, caps)
	r := testRouter("u1", func(api *gin.RouterGroup) { api.GET("/capabilities/:platform", h.Check) })

	w := do(r, http.MethodGet, "/api/capabilities/instagram", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "PERSONAL")

	w = do(r, http.MethodGet, "/api/capabilities/instagram?cached=true", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	caps.AssertExpectations(t)
}

type fakePinger struct{ err error }

func (f fakePinger) PingContext(context.Context) error { return f.err }

func TestHealthHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ok", NewHealthHandler(map[string]Pinger{"postgres": fakePinger{}}).Healthz)
	r.GET("/degraded", NewHealthHandler(map[string]Pinger{"postgres": fakePinger{}, "redis": fakePinger{err: errors.New("down")}}).Healthz)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/degraded", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"redis":"down"`)
}
