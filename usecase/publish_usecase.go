package usecase

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"social-publisher/domain/apperror"
	"social-publisher/domain/model"
	"social-publisher/domain/repository"
	"social-publisher/infrastructure/configuration"
	"social-publisher/infrastructure/logger"
	"social-publisher/infrastructure/utils"
)

// MediaRules lists the content types a platform accepts without transcoding.
type MediaRules struct {
	Images []string
	Videos []string
}

var defaultMediaRules = map[model.Platform]MediaRules{
	model.PlatformInstagram: {
		Images: []string{"image/jpeg"},
		Videos: []string{"video/mp4", "video/quicktime"},
	},
	model.PlatformFacebook: {
		Images: []string{"image/jpeg", "image/png", "image/gif"},
	},
}

func (r MediaRules) accepts(kind model.MediaKind, contentType string) bool {
	list := r.Images
	if kind == model.MediaKindVideo {
		list = r.Videos
	}
	for _, ct := range list {
		if ct == contentType {
			return true
		}
	}
	return false
}

type IPublishUsecase interface {
	Publish(ctx context.Context, req model.PublishRequest) (*model.PublishResult, error)
	Resume(ctx context.Context, req model.ResumeRequest) (*model.PublishResult, error)
	ListAttempts(ctx context.Context, userID string, limit int) ([]*model.PublishAttempt, error)
	Enqueue(ctx context.Context, req model.PublishRequest) (*model.PublishJob, error)
	ProcessPending(ctx context.Context, batchSize int) (*JobSummary, error)
}

// PublishDeps wires the orchestrator. Ledger and Recorder are optional.
type PublishDeps struct {
	Tokens       ITokenUsecase
	Capabilities ICapabilityUsecase
	Publishers   map[model.Platform]repository.IContainerPublisher
	Preflight    repository.IMediaPreflight
	Transcoder   repository.IMediaTranscoder
	Ledger       repository.IPublish
	Recorder     *Recorder
	Clock        utils.Clock
	Config       configuration.PublishConfig
	// Concurrency bounds parallel job runs in ProcessPending.
	Concurrency int
	// NewID generates attempt ids; defaults to uuid v4.
	NewID func() string
}

type publishUsecase struct {
	tokens       ITokenUsecase
	capabilities ICapabilityUsecase
	publishers   map[model.Platform]repository.IContainerPublisher
	preflight    repository.IMediaPreflight
	transcoder   repository.IMediaTranscoder
	ledger       repository.IPublish
	recorder     *Recorder
	rules        map[model.Platform]MediaRules
	clock        utils.Clock
	cfg          configuration.PublishConfig
	concurrency  int
	newID        func() string
}

func NewPublishUsecase(d PublishDeps) IPublishUsecase {
	u := &publishUsecase{
		tokens:       d.Tokens,
		capabilities: d.Capabilities,
		publishers:   d.Publishers,
		preflight:    d.Preflight,
		transcoder:   d.Transcoder,
		ledger:       d.Ledger,
		recorder:     d.Recorder,
		rules:        defaultMediaRules,
		clock:        d.Clock,
		cfg:          d.Config,
		concurrency:  d.Concurrency,
		newID:        d.NewID,
	}
	if u.clock == nil {
		u.clock = utils.RealClock{}
	}
	if u.recorder == nil {
		u.recorder = NewRecorder(d.Ledger, nil, nil, u.clock)
	}
	if u.newID == nil {
		u.newID = func() string { return uuid.NewString() }
	}
	if u.concurrency <= 0 {
		u.concurrency = 4
	}
	def := configuration.DefaultPublishConfig()
	if u.cfg.PollingInterval <= 0 {
		u.cfg.PollingInterval = def.PollingInterval
	}
	if u.cfg.PollingBudget <= 0 {
		u.cfg.PollingBudget = def.PollingBudget
	}
	return u
}

func (u *publishUsecase) publisher(p model.Platform) (repository.IContainerPublisher, error) {
	pub, ok := u.publishers[p]
	if !ok || pub == nil {
		return nil, apperror.Capability(fmt.Sprintf("publishing is not supported for %s accounts", p),
			"Choose an Instagram professional account or a Facebook Page.", nil)
	}
	return pub, nil
}

// Publish runs INIT -> TOKEN_READY -> CAPABILITY_OK -> MEDIA_READY ->
// CONTAINER_CREATED -> POLLING -> PUBLISHED. Any failure ends the run in FAILED,
// except a polling timeout which returns the container id for Resume.
func (u *publishUsecase) Publish(ctx context.Context, req model.PublishRequest) (*model.PublishResult, error) {
	rn := u.recorder.begin(ctx, u.newID(), req.Account, req.MediaURL)

	pub, err := u.publisher(req.Account.Platform)
	if err != nil {
		return rn.fail(ctx, err)
	}

	tok, err := u.tokens.GetValidToken(ctx, req.Account)
	if err != nil {
		return rn.fail(ctx, err)
	}
	rn.transition(ctx, model.StateTokenReady)

	diag, err := u.capabilities.AssertReady(ctx, tok, tok.ProviderAccountID(), nil)
	rn.result.Diagnostics = diag
	if err != nil {
		return rn.fail(ctx, err)
	}
	accountID := diag.AccountID
	rn.transition(ctx, model.StateCapabilityOK)

	spec, transcoded, err := u.prepareMedia(ctx, req)
	if err != nil {
		return rn.fail(ctx, err)
	}
	spec.Caption = req.Caption
	rn.result.MediaURL = spec.URL
	rn.result.Transcoded = transcoded
	rn.transition(ctx, model.StateMediaReady)

	container, err := pub.CreateContainer(ctx, tok.AccessToken, accountID, spec)
	if err != nil {
		return rn.fail(ctx, err)
	}
	rn.setContainer(container.ID)
	rn.transition(ctx, model.StateContainerCreated)

	return u.pollAndPublish(ctx, rn, pub, tok, accountID, container)
}

// Resume continues a run whose container was still processing when the polling
// budget ran out. Token and capability checks are repeated.
func (u *publishUsecase) Resume(ctx context.Context, req model.ResumeRequest) (*model.PublishResult, error) {
	if strings.TrimSpace(req.ContainerID) == "" {
		return nil, apperror.Fatal(apperror.StepCheckStatus, "container id required")
	}
	attemptID := req.AttemptID
	if attemptID == "" {
		attemptID = u.newID()
	}
	rn := u.recorder.begin(ctx, attemptID, req.Account, "")
	rn.setContainer(req.ContainerID)

	pub, err := u.publisher(req.Account.Platform)
	if err != nil {
		return rn.fail(ctx, err)
	}
	tok, err := u.tokens.GetValidToken(ctx, req.Account)
	if err != nil {
		return rn.fail(ctx, err)
	}
	rn.transition(ctx, model.StateTokenReady)

	diag, err := u.capabilities.AssertReady(ctx, tok, tok.ProviderAccountID(), nil)
	rn.result.Diagnostics = diag
	if err != nil {
		return rn.fail(ctx, err)
	}
	rn.transition(ctx, model.StateCapabilityOK)

	container := &model.MediaContainer{ID: req.ContainerID, Caption: req.Caption, Status: model.ContainerInProgress}
	return u.pollAndPublish(ctx, rn, pub, tok, diag.AccountID, container)
}

func (u *publishUsecase) pollAndPublish(ctx context.Context, rn *run, pub repository.IContainerPublisher, tok *model.OAuthToken, accountID string, container *model.MediaContainer) (*model.PublishResult, error) {
	rn.transition(ctx, model.StatePolling)
	status, err := u.pollContainerStatus(ctx, pub, tok.AccessToken, container.ID)
	rn.result.LastStatus = status
	container.Status = status
	if err != nil {
		return rn.fail(ctx, err)
	}

	switch status {
	case model.ContainerFinished:
	case model.ContainerError, model.ContainerExpired:
		se := apperror.Fatal(apperror.StepCheckStatus, fmt.Sprintf("container %s ended in status %s", container.ID, status))
		se.LastStatus = status
		se.Remediation = "The provider could not process the media. Check the format and upload it again."
		if status == model.ContainerExpired {
			se.Remediation = "The container expired before publishing. Publish the media again."
		}
		return rn.fail(ctx, se)
	case model.ContainerPublished:
		se := apperror.Fatal(apperror.StepPublish, fmt.Sprintf("container %s was already published", container.ID))
		se.LastStatus = status
		return rn.fail(ctx, se)
	default:
		return rn.fail(ctx, apperror.PollTimeout(container.ID, status))
	}

	publishedID, err := pub.PublishContainer(ctx, tok.AccessToken, accountID, container)
	if err != nil {
		return rn.fail(ctx, err)
	}
	return rn.succeed(ctx, publishedID), nil
}

// pollContainerStatus checks the container every PollingInterval until it reaches a
// terminal status or the budget is spent. A non-terminal status at the end of the
// budget is returned without an error.
func (u *publishUsecase) pollContainerStatus(ctx context.Context, pub repository.IContainerPublisher, token, containerID string) (model.ContainerStatus, error) {
	start := u.clock.Now()
	last := model.ContainerInProgress
	for {
		status, err := pub.ContainerStatus(ctx, token, containerID)
		if err != nil {
			return last, err
		}
		last = status
		if status.Terminal() {
			return status, nil
		}
		if err := u.clock.Sleep(ctx, u.cfg.PollingInterval); err != nil {
			se := apperror.PollTimeout(containerID, last)
			se.Err = err
			return last, se
		}
		if u.clock.Now().Sub(start) >= u.cfg.PollingBudget {
			logger.GetLogger().
				WithField("container_id", containerID).
				WithField("status", last).
				Info("Container polling budget spent")
			return last, nil
		}
	}
}

// prepareMedia preflights the asset. A format mismatch on an image, or a type the
// probe could not resolve, triggers one transcode followed by a second preflight.
func (u *publishUsecase) prepareMedia(ctx context.Context, req model.PublishRequest) (model.MediaSpec, bool, error) {
	rules := u.rules[req.Account.Platform]
	res := u.preflight.Check(ctx, req.MediaURL)

	if res.OK {
		kind, _ := model.MediaKindFromContentType(res.ContentType)
		spec := model.MediaSpec{Kind: kind, URL: fetchURL(res), ContentType: res.ContentType}
		if req.Kind != "" && kind != req.Kind {
			return spec, false, apperror.Preflight(
				fmt.Sprintf("media type %s does not match requested %s", res.ContentType, req.Kind),
				fmt.Sprintf("Upload a %s, or change media_type to match the file.", req.Kind))
		}
		if rules.accepts(kind, res.ContentType) {
			return spec, false, nil
		}
		if kind == model.MediaKindVideo {
			return spec, false, apperror.Preflight(
				fmt.Sprintf("video type %s is not accepted by %s", res.ContentType, req.Account.Platform),
				"Upload the video as MP4 (H.264 video, AAC audio).")
		}
	} else {
		switch res.Failure {
		case model.PreflightUnknownType:
		case model.PreflightUnsupportedType:
			return model.MediaSpec{}, false, apperror.Preflight(
				fmt.Sprintf("media type %s is not an image or video", res.ContentType),
				"Upload a JPEG image or an MP4 video.")
		default:
			return model.MediaSpec{}, false, preflightError(res)
		}
	}

	if req.Kind == model.MediaKindVideo {
		return model.MediaSpec{}, false, preflightError(res)
	}
	if u.transcoder == nil {
		return model.MediaSpec{}, false, apperror.Preflight(
			fmt.Sprintf("media type %q is not accepted by %s", res.ContentType, req.Account.Platform),
			"Upload the media as a JPEG image.")
	}
	tr, err := u.transcoder.ToCompliantJPEG(ctx, fetchURL(res))
	if err != nil {
		return model.MediaSpec{}, false, err
	}
	second := u.preflight.Check(ctx, tr.PublicURL)
	if !second.OK || !rules.accepts(model.MediaKindImage, second.ContentType) {
		se := preflightError(second)
		se.Message = "transcoded media failed preflight: " + se.Message
		return model.MediaSpec{}, true, se
	}
	return model.MediaSpec{Kind: model.MediaKindImage, URL: tr.PublicURL, ContentType: second.ContentType}, true, nil
}

// fetchURL is the redirect-resolved URL preflight verified, which is what the
// provider is asked to fetch.
func fetchURL(res model.PreflightResult) string {
	if res.FinalURL != "" {
		return res.FinalURL
	}
	return res.SourceURL
}

func preflightError(res model.PreflightResult) *apperror.StructuredError {
	switch res.Failure {
	case model.PreflightInvalidURL:
		return apperror.Preflight("media URL is not a valid http(s) URL", "Provide an absolute http or https media URL.")
	case model.PreflightUnreachable:
		return apperror.Preflight("media URL is unreachable: "+res.Detail, "Make sure the media URL is publicly reachable.")
	case model.PreflightBadStatus:
		return apperror.Preflight(fmt.Sprintf("media host answered HTTP %d", res.Status),
			"Make sure the file is public and the link has not expired.")
	case model.PreflightUnknownType:
		return apperror.Preflight("media content type could not be determined", "Serve the file with a Content-Type header.")
	case model.PreflightUnsupportedType:
		return apperror.Preflight(fmt.Sprintf("media type %s is not an image or video", res.ContentType), "Upload a JPEG image or an MP4 video.")
	}
	if res.Status != http.StatusOK && res.Status != 0 {
		return apperror.Preflight(fmt.Sprintf("media host answered HTTP %d", res.Status), "Make sure the file is public.")
	}
	return apperror.Preflight(fmt.Sprintf("media type %s is not accepted", res.ContentType), "Upload a JPEG image.")
}

func (u *publishUsecase) ListAttempts(ctx context.Context, userID string, limit int) ([]*model.PublishAttempt, error) {
	if u.ledger == nil {
		return []*model.PublishAttempt{}, nil
	}
	return u.ledger.ListAttempts(ctx, userID, limit)
}
