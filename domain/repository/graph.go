package repository

import (
	"context"
	"net/url"

	"social-publisher/domain/apperror"
	"social-publisher/domain/model"
)

// IGraphAPI performs Graph API calls. Call applies the retry ladder and host failover;
// CallOnce issues a single attempt and is used for checks that must not be retried.
// Both return *apperror.StructuredError on failure.
type IGraphAPI interface {
	Call(ctx context.Context, step apperror.Step, method, path, token string, params url.Values) ([]byte, error)
	CallOnce(ctx context.Context, step apperror.Step, method, path, token string, params url.Values) ([]byte, error)
}

// IContainerPublisher drives one platform's create -> status -> publish protocol.
type IContainerPublisher interface {
	Platform() model.Platform
	CreateContainer(ctx context.Context, token, accountID string, spec model.MediaSpec) (*model.MediaContainer, error)
	ContainerStatus(ctx context.Context, token, containerID string) (model.ContainerStatus, error)
	PublishContainer(ctx context.Context, token, accountID string, container *model.MediaContainer) (string, error)
}
