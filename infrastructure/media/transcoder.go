package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"time"

	"social-publisher/domain/apperror"
	"social-publisher/domain/model"
	"social-publisher/domain/repository"
	"social-publisher/infrastructure/logger"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const maxSourceBytes = 50 << 20

var decodableTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/gif":  {},
	"image/webp": {},
}

// Transcoder fetches an image, re-encodes it as a baseline JPEG and re-hosts it.
type Transcoder struct {
	client   *http.Client
	storage  repository.IObjectStorage
	timeout  time.Duration
	quality  int
	maxWidth int
	prefix   string
}

var _ repository.IMediaTranscoder = (*Transcoder)(nil)

type TranscoderOptions struct {
	HTTPClient   *http.Client
	FetchTimeout time.Duration
	Quality      int
	MaxWidth     int
	PathPrefix   string
}

func NewTranscoder(storage repository.IObjectStorage, opts TranscoderOptions) *Transcoder {
	t := &Transcoder{
		client:   opts.HTTPClient,
		storage:  storage,
		timeout:  opts.FetchTimeout,
		quality:  opts.Quality,
		maxWidth: opts.MaxWidth,
		prefix:   opts.PathPrefix,
	}
	if t.client == nil {
		t.client = &http.Client{}
	}
	if t.timeout <= 0 {
		t.timeout = 30 * time.Second
	}
	if t.quality <= 0 || t.quality > 100 {
		t.quality = 90
	}
	if t.maxWidth <= 0 {
		t.maxWidth = 1440
	}
	if t.prefix == "" {
		t.prefix = "transcoded"
	}
	return t
}

func (t *Transcoder) ToCompliantJPEG(ctx context.Context, sourceURL string) (*model.TranscodeResult, error) {
	data, err := t.fetch(ctx, sourceURL)
	if err != nil {
		return nil, apperror.Transcode("could not fetch source media", err)
	}
	detected := mimetype.Detect(data).String()
	if _, ok := decodableTypes[detected]; !ok {
		return nil, apperror.Transcode(fmt.Sprintf("source media type %s cannot be converted to JPEG", detected), nil)
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperror.Transcode("could not decode source image", err)
	}

	out := flatten(downscale(src, t.maxWidth))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: t.quality}); err != nil {
		return nil, apperror.Transcode("could not encode jpeg", err)
	}

	objectPath := fmt.Sprintf("%s/%s.jpg", t.prefix, uuid.NewString())
	publicURL, err := t.storage.Upload(ctx, objectPath, buf.Bytes(), "image/jpeg")
	if err != nil {
		return nil, apperror.Transcode("could not upload transcoded media", err)
	}
	b := out.Bounds()
	logger.GetLogger().WithField("source_type", detected).WithField("width", b.Dx()).WithField("height", b.Dy()).
		WithField("bytes", buf.Len()).Info("Media transcoded to JPEG")
	return &model.TranscodeResult{
		PublicURL:   publicURL,
		ContentType: "image/jpeg",
		Width:       b.Dx(),
		Height:      b.Dy(),
		Size:        buf.Len(),
		SourceType:  detected,
	}, nil
}

func (t *Transcoder) fetch(ctx context.Context, sourceURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("source answered %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxSourceBytes {
		return nil, fmt.Errorf("source exceeds %d bytes", maxSourceBytes)
	}
	return data, nil
}

func downscale(src image.Image, maxWidth int) image.Image {
	b := src.Bounds()
	if b.Dx() <= maxWidth {
		return src
	}
	h := b.Dy() * maxWidth / b.Dx()
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

// flatten composites onto white since JPEG has no alpha channel.
func flatten(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	return dst
}
