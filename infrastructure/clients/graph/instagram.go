package graph

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"social-publisher/domain/apperror"
	"social-publisher/domain/dto"
	"social-publisher/domain/model"
	"social-publisher/domain/repository"

	"github.com/google/go-querystring/query"
)

type igCreateContainerParams struct {
	ImageURL  string `url:"image_url,omitempty"`
	VideoURL  string `url:"video_url,omitempty"`
	MediaType string `url:"media_type,omitempty"`
	Caption   string `url:"caption,omitempty"`
}

type igPublishParams struct {
	CreationID string `url:"creation_id"`
}

type statusParams struct {
	Fields string `url:"fields"`
}

// InstagramPublisher implements the Instagram content publishing protocol:
// POST /{ig-user}/media, GET /{container}?fields=status_code, POST /{ig-user}/media_publish.
type InstagramPublisher struct {
	api repository.IGraphAPI
}

var _ repository.IContainerPublisher = (*InstagramPublisher)(nil)

func NewInstagramPublisher(api repository.IGraphAPI) *InstagramPublisher {
	return &InstagramPublisher{api: api}
}

func (p *InstagramPublisher) Platform() model.Platform { return model.PlatformInstagram }

func (p *InstagramPublisher) CreateContainer(ctx context.Context, token, accountID string, spec model.MediaSpec) (*model.MediaContainer, error) {
	in := igCreateContainerParams{Caption: spec.Caption}
	format := "IMAGE"
	switch spec.Kind {
	case model.MediaKindVideo:
		// Feed videos are published as reels by the current API.
		in.VideoURL, in.MediaType, format = spec.URL, "REELS", "REELS"
	default:
		in.ImageURL = spec.URL
	}
	params, err := encode(in)
	if err != nil {
		return nil, err
	}
	body, err := p.api.Call(ctx, apperror.StepCreateContainer, http.MethodPost, "/"+accountID+"/media", token, params)
	if err != nil {
		return nil, err
	}
	id, err := dto.DecodeObjectID(body)
	if err != nil {
		return nil, undecodable(apperror.StepCreateContainer, err)
	}
	return &model.MediaContainer{
		ID:        id,
		Format:    format,
		SourceURL: spec.URL,
		Caption:   spec.Caption,
		Status:    model.ContainerCreated,
	}, nil
}

func (p *InstagramPublisher) ContainerStatus(ctx context.Context, token, containerID string) (model.ContainerStatus, error) {
	params, err := encode(statusParams{Fields: "status_code,status"})
	if err != nil {
		return "", err
	}
	body, err := p.api.Call(ctx, apperror.StepCheckStatus, http.MethodGet, "/"+containerID, token, params)
	if err != nil {
		return "", err
	}
	raw, err := dto.DecodeContainerStatus(body)
	if err != nil {
		return "", undecodable(apperror.StepCheckStatus, err)
	}
	return model.ContainerStatus(raw), nil
}

func (p *InstagramPublisher) PublishContainer(ctx context.Context, token, accountID string, container *model.MediaContainer) (string, error) {
	params, err := encode(igPublishParams{CreationID: container.ID})
	if err != nil {
		return "", err
	}
	body, err := p.api.Call(ctx, apperror.StepPublish, http.MethodPost, "/"+accountID+"/media_publish", token, params)
	if err != nil {
		return "", err
	}
	id, err := dto.DecodeObjectID(body)
	if err != nil {
		return "", undecodable(apperror.StepPublish, err)
	}
	return id, nil
}

func encode(v interface{}) (url.Values, error) {
	values, err := query.Values(v)
	if err != nil {
		return nil, fmt.Errorf("encode graph params: %w", err)
	}
	return values, nil
}

func undecodable(step apperror.Step, err error) *apperror.StructuredError {
	return &apperror.StructuredError{
		Kind:    apperror.KindProviderFatal,
		Step:    step,
		Message: "unexpected provider response shape",
		Err:     err,
	}
}
