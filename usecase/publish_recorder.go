package usecase

import (
	"context"
	"time"

	"social-publisher/domain/apperror"
	"social-publisher/domain/model"
	"social-publisher/domain/repository"
	"social-publisher/infrastructure/logger"
	"social-publisher/infrastructure/metrics"
	"social-publisher/infrastructure/utils"
)

const (
	EventPublishCompleted = "publish.completed"
	EventPublishFailed    = "publish.failed"
	EventPublishPending   = "publish.pending"
)

// StatusBroadcaster pushes live state updates to connected clients.
type StatusBroadcaster interface {
	BroadcastPublishStatus(evt *model.PublishEvent)
}

// Recorder observes every state transition of a run. Ledger, broadcaster and
// event publishers are optional and their failures never fail a run.
type Recorder struct {
	ledger      repository.IPublish
	broadcaster StatusBroadcaster
	events      []repository.IEventPublisher
	metrics     *metrics.Metrics
	clock       utils.Clock
}

func NewRecorder(ledger repository.IPublish, broadcaster StatusBroadcaster, m *metrics.Metrics, clock utils.Clock, events ...repository.IEventPublisher) *Recorder {
	if clock == nil {
		clock = utils.RealClock{}
	}
	out := make([]repository.IEventPublisher, 0, len(events))
	for _, e := range events {
		if e != nil {
			out = append(out, e)
		}
	}
	return &Recorder{ledger: ledger, broadcaster: broadcaster, events: out, metrics: m, clock: clock}
}

// run is the per-attempt state holder.
type run struct {
	rec     *Recorder
	attempt *model.PublishAttempt
	result  *model.PublishResult
}

func (r *Recorder) begin(ctx context.Context, attemptID string, ref model.AccountRef, mediaURL string) *run {
	now := r.clock.Now()
	a := &model.PublishAttempt{
		AttemptID: attemptID,
		UserID:    ref.UserID,
		Platform:  string(ref.Platform),
		MediaURL:  mediaURL,
		State:     model.StateInit,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if r.ledger != nil {
		if err := r.ledger.CreateAttempt(ctx, a); err != nil {
			logger.GetLogger().WithField("error", err).WithField("attempt_id", attemptID).Warn("Publish attempt not recorded")
		}
	}
	return &run{
		rec:     r,
		attempt: a,
		result:  &model.PublishResult{AttemptID: attemptID, State: model.StateInit, MediaURL: mediaURL},
	}
}

func (rn *run) transition(ctx context.Context, state model.PublishState) {
	rn.attempt.State = state
	rn.result.State = state
	logger.GetLogger().
		WithField("attempt_id", rn.attempt.AttemptID).
		WithField("platform", rn.attempt.Platform).
		WithField("state", state).
		Debug("Publish state changed")
	rn.persist(ctx)
	rn.broadcast(EventPublishPending, "", "")
}

func (rn *run) setContainer(id string) {
	rn.result.ContainerID = id
	rn.attempt.ContainerID = utils.StrPtr(id)
}

func (rn *run) succeed(ctx context.Context, publishedID string) *model.PublishResult {
	rn.result.OK = true
	rn.result.PublishedID = publishedID
	rn.result.State = model.StatePublished
	rn.attempt.State = model.StatePublished
	rn.attempt.PublishedID = utils.StrPtr(publishedID)
	rn.persist(ctx)
	rn.rec.metrics.RecordPublishResult(rn.attempt.Platform, string(model.StatePublished), "")
	rn.emit(ctx, EventPublishCompleted, "", "")
	return rn.result
}

// fail ends the run. A polling timeout keeps the POLLING state so the attempt
// can be resumed with its container id.
func (rn *run) fail(ctx context.Context, err error) (*model.PublishResult, error) {
	kind, msg := string(apperror.KindInternal), err.Error()
	if se, ok := apperror.As(err); ok {
		kind, msg = string(se.Kind), se.Error()
	}
	state := model.StateFailed
	eventType := EventPublishFailed
	if apperror.IsPollTimeout(err) && rn.result.ContainerID != "" {
		state = model.StatePolling
		eventType = EventPublishPending
	}
	rn.result.State = state
	rn.attempt.State = state
	rn.attempt.ErrorKind = utils.StrPtr(kind)
	rn.attempt.ErrorMessage = utils.StrPtr(msg)
	rn.persist(ctx)
	rn.rec.metrics.RecordPublishResult(rn.attempt.Platform, string(state), kind)
	rn.emit(ctx, eventType, kind, msg)
	logger.GetLogger().
		WithField("attempt_id", rn.attempt.AttemptID).
		WithField("state", state).
		WithField("error", msg).
		Warn("Publish attempt did not complete")
	return rn.result, err
}

func (rn *run) persist(ctx context.Context) {
	if rn.rec.ledger == nil {
		return
	}
	rn.attempt.UpdatedAt = rn.rec.clock.Now()
	if err := rn.rec.ledger.UpdateAttempt(ctx, rn.attempt); err != nil {
		logger.GetLogger().WithField("error", err).WithField("attempt_id", rn.attempt.AttemptID).Warn("Publish attempt update not recorded")
	}
}

func (rn *run) event(eventType, kind, msg string) *model.PublishEvent {
	return &model.PublishEvent{
		Type:        eventType,
		AttemptID:   rn.attempt.AttemptID,
		UserID:      rn.attempt.UserID,
		Platform:    rn.attempt.Platform,
		State:       rn.result.State,
		ContainerID: rn.result.ContainerID,
		PublishedID: rn.result.PublishedID,
		ErrorKind:   kind,
		Error:       msg,
		OccurredAt:  rn.rec.clock.Now(),
	}
}

func (rn *run) broadcast(eventType, kind, msg string) *model.PublishEvent {
	evt := rn.event(eventType, kind, msg)
	if rn.rec.broadcaster != nil {
		rn.rec.broadcaster.BroadcastPublishStatus(evt)
	}
	return evt
}

// emit broadcasts a terminal event and hands it to the brokers.
func (rn *run) emit(ctx context.Context, eventType, kind, msg string) {
	evt := rn.broadcast(eventType, kind, msg)
	if len(rn.rec.events) == 0 {
		return
	}
	// Brokers get their own deadline so a cancelled request still reports its outcome.
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	for _, p := range rn.rec.events {
		if err := p.Publish(sendCtx, evt); err != nil {
			logger.GetLogger().WithField("error", err).WithField("attempt_id", evt.AttemptID).Warn("Publish event not delivered")
		}
	}
}
