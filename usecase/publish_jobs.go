package usecase

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"social-publisher/domain/apperror"
	"social-publisher/domain/model"
	"social-publisher/domain/repository"
	"social-publisher/infrastructure/logger"
	"social-publisher/infrastructure/utils"
)

// JobSummary counts the outcomes of one ProcessPending batch.
type JobSummary struct {
	Fetched   int `json:"fetched"`
	Claimed   int `json:"claimed"`
	Published int `json:"published"`
	Failed    int `json:"failed"`
	Requeued  int `json:"requeued"`
}

var errNoLedger = errors.New("publish job queue not configured")

func (u *publishUsecase) Enqueue(ctx context.Context, req model.PublishRequest) (*model.PublishJob, error) {
	if u.ledger == nil {
		return nil, apperror.Internal(apperror.StepPublish, "background publishing is unavailable", errNoLedger)
	}
	job := &model.PublishJob{
		UserID:    req.Account.UserID,
		Platform:  string(req.Account.Platform),
		MediaURL:  req.MediaURL,
		Caption:   req.Caption,
		MediaKind: string(req.Kind),
	}
	if err := u.ledger.EnqueueJob(ctx, job); err != nil {
		return nil, apperror.Internal(apperror.StepPublish, "could not queue publish job", err)
	}
	return job, nil
}

func (u *publishUsecase) ProcessPending(ctx context.Context, batchSize int) (*JobSummary, error) {
	if u.ledger == nil {
		return nil, errNoLedger
	}
	return ProcessPublishJobs(ctx, u.ledger, u, batchSize, u.concurrency)
}

// ProcessPublishJobs claims pending jobs and runs them concurrently, at most
// concurrency at a time. Runs share nothing but the persisted token record.
// A run that ends in a polling timeout is requeued with its container id so the
// next batch resumes instead of re-uploading.
func ProcessPublishJobs(ctx context.Context, jobs repository.IPublish, pub IPublishUsecase, batchSize, concurrency int) (*JobSummary, error) {
	lg := logger.GetLogger()
	if batchSize <= 0 {
		batchSize = 10
	}
	pending, err := jobs.FetchPendingJobs(ctx, batchSize)
	if err != nil {
		return nil, err
	}
	summary := &JobSummary{Fetched: len(pending)}
	var mu sync.Mutex
	count := func(f func(s *JobSummary)) {
		mu.Lock()
		f(summary)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	for _, job := range pending {
		job := job
		g.Go(func() error {
			claimed, err := jobs.MarkJobRunning(gctx, job.ID)
			if err != nil {
				lg.WithField("job_id", job.ID).WithField("error", err).Error("Could not claim publish job")
				return nil
			}
			if !claimed {
				return nil
			}
			count(func(s *JobSummary) { s.Claimed++ })

			ref := model.AccountRef{UserID: job.UserID, Platform: model.Platform(job.Platform)}
			var res *model.PublishResult
			if job.ContainerID != nil && *job.ContainerID != "" {
				res, err = pub.Resume(gctx, model.ResumeRequest{Account: ref, ContainerID: *job.ContainerID, Caption: job.Caption})
			} else {
				res, err = pub.Publish(gctx, model.PublishRequest{Account: ref, MediaURL: job.MediaURL, Caption: job.Caption, Kind: model.MediaKind(job.MediaKind)})
			}

			if err == nil {
				count(func(s *JobSummary) { s.Published++ })
				if mErr := jobs.MarkJobResult(gctx, job.ID, true, nil); mErr != nil {
					lg.WithField("job_id", job.ID).WithField("error", mErr).Error("Could not mark publish job done")
				}
				return nil
			}

			if apperror.IsPollTimeout(err) && res != nil && res.ContainerID != "" {
				count(func(s *JobSummary) { s.Requeued++ })
				if mErr := jobs.RequeueJob(gctx, job.ID, res.ContainerID); mErr != nil {
					lg.WithField("job_id", job.ID).WithField("error", mErr).Error("Could not requeue publish job")
				}
				return nil
			}

			count(func(s *JobSummary) { s.Failed++ })
			if mErr := jobs.MarkJobResult(gctx, job.ID, false, utils.StrPtr(err.Error())); mErr != nil {
				lg.WithField("job_id", job.ID).WithField("error", mErr).Error("Could not mark publish job failed")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return summary, err
	}
	lg.WithField("fetched", summary.Fetched).
		WithField("published", summary.Published).
		WithField("failed", summary.Failed).
		WithField("requeued", summary.Requeued).
		Info("Publish jobs processed")
	return summary, nil
}
