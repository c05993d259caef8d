package graph

import (
	"context"
	"encoding/json"
	"net/http"

	"social-publisher/domain/apperror"
	"social-publisher/domain/dto"
	"social-publisher/domain/model"
	"social-publisher/domain/repository"
)

type fbPhotoParams struct {
	URL       string `url:"url"`
	Published bool   `url:"published"`
}

type fbFeedParams struct {
	Message       string `url:"message,omitempty"`
	AttachedMedia string `url:"attached_media[0]"`
}

// FacebookPagePublisher stages an unpublished page photo as the container and
// publishes it by attaching it to a feed post.
type FacebookPagePublisher struct {
	api repository.IGraphAPI
}

var _ repository.IContainerPublisher = (*FacebookPagePublisher)(nil)

func NewFacebookPagePublisher(api repository.IGraphAPI) *FacebookPagePublisher {
	return &FacebookPagePublisher{api: api}
}

func (p *FacebookPagePublisher) Platform() model.Platform { return model.PlatformFacebook }

func (p *FacebookPagePublisher) CreateContainer(ctx context.Context, token, pageID string, spec model.MediaSpec) (*model.MediaContainer, error) {
	if spec.Kind == model.MediaKindVideo {
		return nil, &apperror.StructuredError{
			Kind:        apperror.KindProviderFatal,
			Step:        apperror.StepCreateContainer,
			Message:     "video publishing to facebook pages is not supported",
			Remediation: "Publish an image, or post the video from the page directly.",
		}
	}
	params, err := encode(fbPhotoParams{URL: spec.URL, Published: false})
	if err != nil {
		return nil, err
	}
	body, err := p.api.Call(ctx, apperror.StepCreateContainer, http.MethodPost, "/"+pageID+"/photos", token, params)
	if err != nil {
		return nil, err
	}
	id, err := dto.DecodeObjectID(body)
	if err != nil {
		return nil, undecodable(apperror.StepCreateContainer, err)
	}
	return &model.MediaContainer{
		ID:        id,
		Format:    "PHOTO",
		SourceURL: spec.URL,
		Caption:   spec.Caption,
		Status:    model.ContainerCreated,
	}, nil
}

// ContainerStatus reports FINISHED once the unpublished photo object is readable.
func (p *FacebookPagePublisher) ContainerStatus(ctx context.Context, token, photoID string) (model.ContainerStatus, error) {
	params, err := encode(statusParams{Fields: "id"})
	if err != nil {
		return "", err
	}
	body, err := p.api.Call(ctx, apperror.StepCheckStatus, http.MethodGet, "/"+photoID, token, params)
	if err != nil {
		return "", err
	}
	if _, err := dto.DecodeObjectID(body); err != nil {
		return model.ContainerInProgress, nil
	}
	return model.ContainerFinished, nil
}

func (p *FacebookPagePublisher) PublishContainer(ctx context.Context, token, pageID string, container *model.MediaContainer) (string, error) {
	media, err := json.Marshal(map[string]string{"media_fbid": container.ID})
	if err != nil {
		return "", err
	}
	params, err := encode(fbFeedParams{Message: container.Caption, AttachedMedia: string(media)})
	if err != nil {
		return "", err
	}
	body, err := p.api.Call(ctx, apperror.StepPublish, http.MethodPost, "/"+pageID+"/feed", token, params)
	if err != nil {
		return "", err
	}
	id, err := dto.DecodeObjectID(body)
	if err != nil {
		return "", undecodable(apperror.StepPublish, err)
	}
	return id, nil
}
