package model

import "strings"

// MediaKind is the logical kind of an asset, independent of provider naming.
type MediaKind string

const (
	MediaKindImage MediaKind = "image"
	MediaKindVideo MediaKind = "video"
)

// MediaKindFromContentType maps a MIME type to a media kind.
func MediaKindFromContentType(ct string) (MediaKind, bool) {
	switch {
	case strings.HasPrefix(ct, "image/"):
		return MediaKindImage, true
	case strings.HasPrefix(ct, "video/"):
		return MediaKindVideo, true
	default:
		return "", false
	}
}

// ContainerStatus is the provider side status of a staged media object.
type ContainerStatus string

const (
	ContainerCreated    ContainerStatus = "CREATED"
	ContainerInProgress ContainerStatus = "IN_PROGRESS"
	ContainerFinished   ContainerStatus = "FINISHED"
	ContainerError      ContainerStatus = "ERROR"
	ContainerExpired    ContainerStatus = "EXPIRED"
	ContainerPublished  ContainerStatus = "PUBLISHED"
)

// Terminal reports whether polling can stop.
func (s ContainerStatus) Terminal() bool {
	switch s {
	case ContainerFinished, ContainerError, ContainerExpired, ContainerPublished:
		return true
	}
	return false
}

// MediaSpec describes the asset the caller wants to publish.
type MediaSpec struct {
	Kind        MediaKind `json:"kind"`
	URL         string    `json:"url"`
	ContentType string    `json:"content_type"`
	Caption     string    `json:"caption"`
}

// MediaContainer is a provider-side staged media object.
type MediaContainer struct {
	ID        string          `json:"id"`
	Format    string          `json:"format"` // IMAGE|VIDEO|REELS (instagram), PHOTO (facebook)
	SourceURL string          `json:"source_url"`
	Caption   string          `json:"-"`
	Status    ContainerStatus `json:"status"`
}

// PreflightFailure names why a media URL was rejected before submission.
type PreflightFailure string

const (
	PreflightInvalidURL      PreflightFailure = "invalid_url"
	PreflightUnreachable     PreflightFailure = "unreachable"
	PreflightBadStatus       PreflightFailure = "bad_status"
	PreflightUnknownType     PreflightFailure = "unknown_type"
	PreflightUnsupportedType PreflightFailure = "unsupported_type"
)

// PreflightResult is the outcome of probing a media URL. It never carries an error value.
type PreflightResult struct {
	OK            bool             `json:"ok"`
	Status        int              `json:"status"`
	ContentType   string           `json:"content_type"`
	ContentLength int64            `json:"content_length"`
	SourceURL     string           `json:"source_url"`
	FinalURL      string           `json:"final_url"`
	Probe         string           `json:"probe"`     // HEAD | GET_RANGE
	TypeSource    string           `json:"type_from"` // header | extension | range_probe
	Failure       PreflightFailure `json:"failure,omitempty"`
	Detail        string           `json:"detail,omitempty"`
}

// TranscodeResult describes a re-hosted compliant asset.
type TranscodeResult struct {
	PublicURL   string `json:"public_url"`
	ContentType string `json:"content_type"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Size        int    `json:"size"`
	SourceType  string `json:"source_type"`
}
