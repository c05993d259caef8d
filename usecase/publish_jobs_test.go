package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"social-publisher/domain/apperror"
	"social-publisher/domain/model"
	"social-publisher/usecase"
)

type MockPublishUsecase struct {
	mock.Mock
}

func (m *MockPublishUsecase) result(args mock.Arguments) (*model.PublishResult, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PublishResult), args.Error(1)
}

func (m *MockPublishUsecase) Publish(ctx context.Context, req model.PublishRequest) (*model.PublishResult, error) {
	return m.result(m.Called(ctx, req))
}

func (m *MockPublishUsecase) Resume(ctx context.Context, req model.ResumeRequest) (*model.PublishResult, error) {
	return m.result(m.Called(ctx, req))
}

func (m *MockPublishUsecase) ListAttempts(ctx context.Context, userID string, limit int) ([]*model.PublishAttempt, error) {
	args := m.Called(ctx, userID, limit)
	return args.Get(0).([]*model.PublishAttempt), args.Error(1)
}

func (m *MockPublishUsecase) Enqueue(ctx context.Context, req model.PublishRequest) (*model.PublishJob, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(*model.PublishJob), args.Error(1)
}

func (m *MockPublishUsecase) ProcessPending(ctx context.Context, batchSize int) (*usecase.JobSummary, error) {
	args := m.Called(ctx, batchSize)
	return args.Get(0).(*usecase.JobSummary), args.Error(1)
}

func enqueue(t *testing.T, l *memoryLedger, userID, mediaURL string) *model.PublishJob {
	job := &model.PublishJob{UserID: userID, Platform: "instagram", MediaURL: mediaURL}
	require.NoError(t, l.EnqueueJob(context.Background(), job))
	return job
}

func byURL(u string) interface{} {
	return mock.MatchedBy(func(r model.PublishRequest) bool { return r.MediaURL == u })
}

func TestProcessPublishJobs_Outcomes(t *testing.T) {
	ledger := newMemoryLedger()
	ok := enqueue(t, ledger, "u1", "https://cdn.example.com/ok.jpg")
	bad := enqueue(t, ledger, "u2", "https://cdn.example.com/bad.jpg")
	slow := enqueue(t, ledger, "u3", "https://cdn.example.com/slow.mp4")

	pub := new(MockPublishUsecase)
	pub.On("Publish", mock.Anything, byURL(ok.MediaURL)).
		Return(&model.PublishResult{OK: true, PublishedID: "m1"}, nil).Once()
	pub.On("Publish", mock.Anything, byURL(bad.MediaURL)).
		Return(&model.PublishResult{State: model.StateFailed}, apperror.Preflight("media URL is unreachable", "")).Once()
	pub.On("Publish", mock.Anything, byURL(slow.MediaURL)).
		Return(&model.PublishResult{State: model.StatePolling, ContainerID: "c-slow"}, apperror.PollTimeout("c-slow", model.ContainerInProgress)).Once()

	summary, err := usecase.ProcessPublishJobs(context.Background(), ledger, pub, 10, 2)
	require.NoError(t, err)
	assert.Equal(t, &usecase.JobSummary{Fetched: 3, Claimed: 3, Published: 1, Failed: 1, Requeued: 1}, summary)

	assert.Equal(t, "success", ledger.job(ok.ID).Status)
	failed := ledger.job(bad.ID)
	assert.Equal(t, "failed", failed.Status)
	require.NotNil(t, failed.LastError)
	assert.Contains(t, *failed.LastError, "unreachable")
	requeued := ledger.job(slow.ID)
	assert.Equal(t, "pending", requeued.Status)
	require.NotNil(t, requeued.ContainerID)
	assert.Equal(t, "c-slow", *requeued.ContainerID)
	pub.AssertExpectations(t)
}

func TestProcessPublishJobs_NetworkTimeoutAtPublishIsNotRequeued(t *testing.T) {
	ledger := newMemoryLedger()
	job := enqueue(t, ledger, "u1", "https://cdn.example.com/a.jpg")

	pub := new(MockPublishUsecase)
	pub.On("Publish", mock.Anything, byURL(job.MediaURL)).
		Return(&model.PublishResult{State: model.StateFailed, ContainerID: "c-1"},
			&apperror.StructuredError{Kind: apperror.KindTimeout, Step: apperror.StepPublish, Message: "network error calling provider"}).Once()

	summary, err := usecase.ProcessPublishJobs(context.Background(), ledger, pub, 10, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 0, summary.Requeued)
	stored := ledger.job(job.ID)
	assert.Equal(t, "failed", stored.Status)
	assert.Nil(t, stored.ContainerID)
	pub.AssertExpectations(t)
}

func TestProcessPublishJobs_ResumesRequeuedContainer(t *testing.T) {
	ledger := newMemoryLedger()
	job := enqueue(t, ledger, "u1", "https://cdn.example.com/slow.mp4")
	require.NoError(t, ledger.RequeueJob(context.Background(), job.ID, "c-slow"))

	pub := new(MockPublishUsecase)
	pub.On("Resume", mock.Anything, mock.MatchedBy(func(r model.ResumeRequest) bool {
		return r.ContainerID == "c-slow" && r.Account == igRef
	})).Return(&model.PublishResult{OK: true}, nil).Once()

	summary, err := usecase.ProcessPublishJobs(context.Background(), ledger, pub, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Published)
	assert.Equal(t, "success", ledger.job(job.ID).Status)
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	pub.AssertExpectations(t)
}

func TestProcessPublishJobs_SkipsJobsClaimedElsewhere(t *testing.T) {
	ledger := newMemoryLedger()
	job := enqueue(t, ledger, "u1", "https://cdn.example.com/a.jpg")
	jobs, err := ledger.FetchPendingJobs(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	claimed, err := ledger.MarkJobRunning(context.Background(), job.ID)
	require.NoError(t, err)
	require.True(t, claimed)

	again, err := ledger.MarkJobRunning(context.Background(), job.ID)
	require.NoError(t, err)
	assert.False(t, again)

	pub := new(MockPublishUsecase)
	summary, err := usecase.ProcessPublishJobs(context.Background(), ledger, pub, 10, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Fetched)
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestPublishUsecase_EnqueueAndProcess(t *testing.T) {
	h := newPublishHarness(t)
	h.containerCreated("c-1")
	h.containerStatus("c-1", "FINISHED")
	h.publishes("media-1")

	job, err := h.uc.Enqueue(context.Background(), publishRequest())
	require.NoError(t, err)
	assert.Equal(t, "pending", job.Status)

	summary, err := h.uc.ProcessPending(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Published)
	assert.Equal(t, "success", h.ledger.job(job.ID).Status)
}

func TestPublishUsecase_EnqueueKeepsRequestedKind(t *testing.T) {
	h := newPublishHarness(t)
	req := publishRequest()
	req.Kind = model.MediaKindVideo

	job, err := h.uc.Enqueue(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "video", h.ledger.job(job.ID).MediaKind)

	// The queued run still insists on a video, so the JPEG source is rejected.
	summary, err := h.uc.ProcessPending(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 0, h.primary.count("POST "+mediaPath))
}

func TestProcessPublishJobs_PassesMediaKind(t *testing.T) {
	ledger := newMemoryLedger()
	job := &model.PublishJob{UserID: "u1", Platform: "instagram", MediaURL: "https://cdn.example.com/clip.mp4", MediaKind: "video"}
	require.NoError(t, ledger.EnqueueJob(context.Background(), job))

	pub := new(MockPublishUsecase)
	pub.On("Publish", mock.Anything, mock.MatchedBy(func(r model.PublishRequest) bool {
		return r.Kind == model.MediaKindVideo && r.MediaURL == job.MediaURL
	})).Return(&model.PublishResult{OK: true}, nil).Once()

	summary, err := usecase.ProcessPublishJobs(context.Background(), ledger, pub, 10, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Published)
	pub.AssertExpectations(t)
}

func TestPublishUsecase_EnqueueWithoutLedger(t *testing.T) {
	uc := usecase.NewPublishUsecase(usecase.PublishDeps{})
	_, err := uc.Enqueue(context.Background(), publishRequest())
	assert.True(t, apperror.IsKind(err, apperror.KindInternal))

	_, err = uc.ProcessPending(context.Background(), 1)
	assert.Error(t, err)

	attempts, err := uc.ListAttempts(context.Background(), "u1", 5)
	require.NoError(t, err)
	assert.Empty(t, attempts)
}
