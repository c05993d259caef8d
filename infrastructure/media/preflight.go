package media

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"social-publisher/domain/model"
	"social-publisher/domain/repository"
	"social-publisher/infrastructure/logger"
)

const (
	probeHead     = "HEAD"
	probeGetRange = "GET_RANGE"

	typeFromHeader    = "header"
	typeFromExtension = "extension"
	typeFromRange     = "range_probe"
)

// extensionTypes is consulted in a fixed order independent of the host's mime database.
var extensionTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".heic": "image/heic",
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".mov":  "video/quicktime",
	".webm": "video/webm",
}

// Preflight validates that a media URL is reachable and of an acceptable type.
type Preflight struct {
	client  *http.Client
	timeout time.Duration
}

var _ repository.IMediaPreflight = (*Preflight)(nil)

func NewPreflight(client *http.Client, timeout time.Duration) *Preflight {
	if client == nil {
		client = &http.Client{}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Preflight{client: client, timeout: timeout}
}

// Check probes with HEAD, falling back to a 4KB ranged GET when HEAD fails at the
// network level. Content type is resolved from the header, then the final URL's
// extension, then a one-byte ranged GET.
func (p *Preflight) Check(ctx context.Context, mediaURL string) model.PreflightResult {
	res := model.PreflightResult{SourceURL: mediaURL, FinalURL: mediaURL}
	u, err := url.Parse(mediaURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		res.Failure = model.PreflightInvalidURL
		res.Detail = "media url must be an absolute http(s) url"
		return res
	}

	resp, err := p.do(ctx, http.MethodHead, mediaURL, "")
	res.Probe = probeHead
	if err != nil {
		logger.GetLogger().WithField("url", mediaURL).WithField("error", err.Error()).Info("HEAD probe failed, trying ranged GET")
		resp, err = p.do(ctx, http.MethodGet, mediaURL, "bytes=0-4095")
		res.Probe = probeGetRange
		if err != nil {
			res.Failure = model.PreflightUnreachable
			res.Detail = err.Error()
			return res
		}
	}

	res.Status = resp.StatusCode
	res.FinalURL = resp.Request.URL.String()
	res.ContentLength = contentLength(resp)
	if !statusOK(res.Probe, resp.StatusCode) {
		res.Failure = model.PreflightBadStatus
		res.Detail = fmt.Sprintf("media url answered %d", resp.StatusCode)
		return res
	}

	ct, from := headerType(resp.Header)
	if ct == "" {
		ct, from = extensionType(resp.Request.URL.Path)
	}
	if ct == "" {
		ct, from = p.rangeType(ctx, res.FinalURL)
	}
	res.ContentType, res.TypeSource = ct, from
	if ct == "" {
		res.Failure = model.PreflightUnknownType
		res.Detail = "content type could not be determined"
		return res
	}
	if _, ok := model.MediaKindFromContentType(ct); !ok {
		res.Failure = model.PreflightUnsupportedType
		res.Detail = fmt.Sprintf("content type %s is not an image or video", ct)
		return res
	}
	res.OK = true
	return res
}

func (p *Preflight) do(ctx context.Context, method, target, byteRange string) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, err
	}
	if byteRange != "" {
		req.Header.Set("Range", byteRange)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
	return resp, nil
}

func (p *Preflight) rangeType(ctx context.Context, target string) (string, string) {
	resp, err := p.do(ctx, http.MethodGet, target, "bytes=0-0")
	if err != nil || !statusOK(probeGetRange, resp.StatusCode) {
		return "", ""
	}
	ct, _ := headerType(resp.Header)
	if ct == "" {
		return "", ""
	}
	return ct, typeFromRange
}

// statusOK accepts 206 only for ranged probes.
func statusOK(probe string, status int) bool {
	if status == http.StatusOK {
		return true
	}
	return probe == probeGetRange && status == http.StatusPartialContent
}

// headerType normalizes Content-Type; generic binary types count as unresolved.
func headerType(h http.Header) (string, string) {
	raw := h.Get("Content-Type")
	if raw == "" {
		return "", ""
	}
	mt, _, err := mime.ParseMediaType(raw)
	if err != nil {
		mt = strings.TrimSpace(strings.SplitN(raw, ";", 2)[0])
	}
	mt = strings.ToLower(mt)
	switch mt {
	case "", "application/octet-stream", "binary/octet-stream":
		return "", ""
	}
	return mt, typeFromHeader
}

func extensionType(p string) (string, string) {
	ext := strings.ToLower(path.Ext(p))
	if ct, ok := extensionTypes[ext]; ok {
		return ct, typeFromExtension
	}
	return "", ""
}

func contentLength(resp *http.Response) int64 {
	if cr := resp.Header.Get("Content-Range"); cr != "" {
		var start, end, total int64
		if _, err := fmt.Sscanf(cr, "bytes %d-%d/%d", &start, &end, &total); err == nil {
			return total
		}
	}
	return resp.ContentLength
}
