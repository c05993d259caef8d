package repository

import (
	"context"

	"social-publisher/domain/model"
)

// IMediaPreflight probes a media URL. Failures are reported in the result, never as errors.
type IMediaPreflight interface {
	Check(ctx context.Context, mediaURL string) model.PreflightResult
}

// IMediaTranscoder re-hosts a media asset as a compliant JPEG.
type IMediaTranscoder interface {
	ToCompliantJPEG(ctx context.Context, sourceURL string) (*model.TranscodeResult, error)
}

// IObjectStorage stores bytes durably and returns a publicly reachable URL.
type IObjectStorage interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) (string, error)
}
