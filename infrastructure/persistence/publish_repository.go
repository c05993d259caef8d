package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"social-publisher/domain/model"
)

const (
	JobPending = "pending"
	JobRunning = "running"
	JobSuccess = "success"
	JobFailed  = "failed"
)

// PublishRepository keeps the attempt ledger and the backend job queue.
type PublishRepository struct {
	db *sql.DB
}

func NewPublishRepository(db *sql.DB) *PublishRepository { return &PublishRepository{db: db} }

// EnsurePublishSchema creates publish_attempts and publish_jobs if they do not exist.
func EnsurePublishSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS publish_attempts (
			id BIGSERIAL PRIMARY KEY,
			attempt_id VARCHAR(64) NOT NULL UNIQUE,
			user_id VARCHAR(128) NOT NULL,
			platform VARCHAR(64) NOT NULL,
			media_url TEXT NOT NULL,
			state VARCHAR(32) NOT NULL,
			container_id VARCHAR(128) NULL,
			published_id VARCHAR(128) NULL,
			error_kind VARCHAR(64) NULL,
			error_message TEXT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS ix_publish_attempts_user ON publish_attempts (user_id, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS publish_jobs (
			id BIGSERIAL PRIMARY KEY,
			user_id VARCHAR(128) NOT NULL,
			platform VARCHAR(64) NOT NULL,
			media_url TEXT NOT NULL,
			caption TEXT NOT NULL DEFAULT '',
			media_kind VARCHAR(16) NOT NULL DEFAULT '',
			container_id VARCHAR(128) NULL,
			status VARCHAR(16) NOT NULL,
			attempts INT NOT NULL DEFAULT 0,
			last_error TEXT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS ix_publish_jobs_status ON publish_jobs (status, created_at)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("ensure publish schema: %w", err)
		}
	}
	return addMissingColumns(db, []columnCheck{
		{table: "publish_jobs", column: "container_id", ddl: `ALTER TABLE publish_jobs ADD COLUMN container_id VARCHAR(128) NULL`},
		{table: "publish_jobs", column: "media_kind", ddl: `ALTER TABLE publish_jobs ADD COLUMN media_kind VARCHAR(16) NOT NULL DEFAULT ''`},
	})
}

func (r *PublishRepository) CreateAttempt(ctx context.Context, a *model.PublishAttempt) error {
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	q := `INSERT INTO publish_attempts (attempt_id, user_id, platform, media_url, state, container_id, published_id, error_kind, error_message, created_at, updated_at)
		  VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11) RETURNING id`
	return r.db.QueryRowContext(ctx, q, a.AttemptID, a.UserID, a.Platform, a.MediaURL, string(a.State),
		nullString(a.ContainerID), nullString(a.PublishedID), nullString(a.ErrorKind), nullString(a.ErrorMessage),
		a.CreatedAt, a.UpdatedAt).Scan(&a.ID)
}

func (r *PublishRepository) UpdateAttempt(ctx context.Context, a *model.PublishAttempt) error {
	a.UpdatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `UPDATE publish_attempts SET state=$1, container_id=$2, published_id=$3, error_kind=$4, error_message=$5, updated_at=$6 WHERE attempt_id=$7`,
		string(a.State), nullString(a.ContainerID), nullString(a.PublishedID), nullString(a.ErrorKind), nullString(a.ErrorMessage), a.UpdatedAt, a.AttemptID)
	return err
}

func (r *PublishRepository) ListAttempts(ctx context.Context, userID string, limit int) ([]*model.PublishAttempt, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `SELECT id, attempt_id, user_id, platform, media_url, state, container_id, published_id, error_kind, error_message, created_at, updated_at FROM publish_attempts WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []*model.PublishAttempt{}
	for rows.Next() {
		a := &model.PublishAttempt{}
		var state string
		var containerID, publishedID, errKind, errMsg sql.NullString
		if err := rows.Scan(&a.ID, &a.AttemptID, &a.UserID, &a.Platform, &a.MediaURL, &state, &containerID, &publishedID, &errKind, &errMsg, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		a.State = model.PublishState(state)
		a.ContainerID = stringPtr(containerID)
		a.PublishedID = stringPtr(publishedID)
		a.ErrorKind = stringPtr(errKind)
		a.ErrorMessage = stringPtr(errMsg)
		list = append(list, a)
	}
	return list, rows.Err()
}

func (r *PublishRepository) EnqueueJob(ctx context.Context, job *model.PublishJob) error {
	now := time.Now().UTC()
	job.Status = JobPending
	job.CreatedAt = now
	job.UpdatedAt = now
	q := `INSERT INTO publish_jobs (user_id, platform, media_url, caption, media_kind, container_id, status, attempts, created_at, updated_at) VALUES ($1,$2,$3,$4,$5,$6,$7,0,$8,$8) RETURNING id`
	return r.db.QueryRowContext(ctx, q, job.UserID, job.Platform, job.MediaURL, job.Caption, job.MediaKind, nullString(job.ContainerID), job.Status, now).Scan(&job.ID)
}

func (r *PublishRepository) FetchPendingJobs(ctx context.Context, limit int) ([]*model.PublishJob, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, user_id, platform, media_url, caption, media_kind, container_id, status, attempts, last_error, created_at, updated_at FROM publish_jobs WHERE status='pending' ORDER BY created_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var jobs []*model.PublishJob
	for rows.Next() {
		j := &model.PublishJob{}
		var containerID, lastErr sql.NullString
		if err := rows.Scan(&j.ID, &j.UserID, &j.Platform, &j.MediaURL, &j.Caption, &j.MediaKind, &containerID, &j.Status, &j.Attempts, &lastErr, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, err
		}
		j.ContainerID = stringPtr(containerID)
		j.LastError = stringPtr(lastErr)
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (r *PublishRepository) MarkJobRunning(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE publish_jobs SET status='running', updated_at=$1 WHERE id=$2 AND status='pending'`, time.Now().UTC(), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *PublishRepository) MarkJobResult(ctx context.Context, id int64, success bool, errMsg *string) error {
	status := JobFailed
	if success {
		status = JobSuccess
	}
	_, err := r.db.ExecContext(ctx, `UPDATE publish_jobs SET status=$1, attempts=attempts+1, last_error=$2, updated_at=$3 WHERE id=$4`, status, nullString(errMsg), time.Now().UTC(), id)
	return err
}

func (r *PublishRepository) RequeueJob(ctx context.Context, id int64, containerID string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE publish_jobs SET status='pending', attempts=attempts+1, container_id=$1, updated_at=$2 WHERE id=$3`, containerID, time.Now().UTC(), id)
	return err
}
