package repository

import (
	"context"

	"social-publisher/domain/model"
)

// IPublish persists publish attempts and the backend publish job queue.
type IPublish interface {
	CreateAttempt(ctx context.Context, a *model.PublishAttempt) error
	UpdateAttempt(ctx context.Context, a *model.PublishAttempt) error
	ListAttempts(ctx context.Context, userID string, limit int) ([]*model.PublishAttempt, error)

	EnqueueJob(ctx context.Context, job *model.PublishJob) error
	FetchPendingJobs(ctx context.Context, limit int) ([]*model.PublishJob, error)
	// MarkJobRunning claims a pending job; false means another worker already took it.
	MarkJobRunning(ctx context.Context, id int64) (bool, error)
	MarkJobResult(ctx context.Context, id int64, success bool, errMsg *string) error
	// RequeueJob puts a job back to pending with the container to resume.
	RequeueJob(ctx context.Context, id int64, containerID string) error
}

// IDiagnostics stores capability snapshots for later inspection.
type IDiagnostics interface {
	Save(ctx context.Context, d *model.Diagnostics) error
	Latest(ctx context.Context, userID string, platform model.Platform) (*model.Diagnostics, error)
}

// IEventPublisher emits publish lifecycle events to a message broker.
type IEventPublisher interface {
	Publish(ctx context.Context, event *model.PublishEvent) error
}
