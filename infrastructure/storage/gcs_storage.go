package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"social-publisher/domain/repository"
	"social-publisher/infrastructure/logger"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gcs "google.golang.org/api/storage/v1"
)

// GCSStorage uploads publicly readable objects into a Cloud Storage bucket.
type GCSStorage struct {
	service *gcs.Service
	bucket  string
	baseURL string
}

var _ repository.IObjectStorage = (*GCSStorage)(nil)

// NewGCSStorage uses application default credentials unless opts say otherwise.
func NewGCSStorage(ctx context.Context, bucket, publicBaseURL string, opts ...option.ClientOption) (*GCSStorage, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs storage: bucket is required")
	}
	svc, err := gcs.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs storage: %w", err)
	}
	if publicBaseURL == "" {
		publicBaseURL = "https://storage.googleapis.com/" + bucket
	}
	return &GCSStorage{service: svc, bucket: bucket, baseURL: strings.TrimRight(publicBaseURL, "/")}, nil
}

func (s *GCSStorage) Upload(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	obj := &gcs.Object{Name: path, ContentType: contentType, CacheControl: "public, max-age=86400"}
	_, err := s.service.Objects.Insert(s.bucket, obj).
		Media(bytes.NewReader(data), googleapi.ContentType(contentType)).
		PredefinedAcl("publicRead").
		Context(ctx).
		Do()
	if err != nil {
		logger.GetLogger().WithField("bucket", s.bucket).WithField("path", path).WithField("error", err.Error()).Error("GCS upload failed")
		return "", fmt.Errorf("gcs upload %s: %w", path, err)
	}
	return s.baseURL + "/" + path, nil
}
