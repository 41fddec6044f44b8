package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/docvector/docvector/pkg/errdefs"
)

const jobColumns = `id, source_id, job_type, status, total_documents,
	processed_documents, failed_documents, total_chunks, started_at, completed_at,
	error_message, error_details, task_id, config, created_at, updated_at`

// CreateJob inserts a pending ingestion job.
func (s *Store) CreateJob(ctx context.Context, job *IngestionJob) error {
	if err := job.Validate(); err != nil {
		return errdefs.Wrap(errdefs.CodeValidation, "invalid job", err)
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = JobStatusPending
	}
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now

	errorDetails, err := encodeJSON(job.ErrorDetails)
	if err != nil {
		return err
	}
	config, err := encodeJSON(job.Config)
	if err != nil {
		return err
	}

	query := s.rebind(`INSERT INTO ingestion_jobs (` + jobColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err = s.db.ExecContext(ctx, query,
		job.ID, nullString(job.SourceID), string(job.JobType), string(job.Status),
		job.TotalDocuments, job.ProcessedDocuments, job.FailedDocuments,
		job.TotalChunks, nullTime(job.StartedAt), nullTime(job.CompletedAt),
		job.ErrorMessage, errorDetails, job.TaskID, config,
		job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return errdefs.Wrap(errdefs.CodeDatabase, "failed to create job", err)
	}
	return nil
}

// GetJob fetches a job by primary key.
func (s *Store) GetJob(ctx context.Context, id string) (*IngestionJob, error) {
	query := s.rebind(`SELECT ` + jobColumns + ` FROM ingestion_jobs WHERE id = ?`)
	job, err := scanJobRow(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errdefs.New(errdefs.CodeNotFound, "job not found")
	}
	return job, err
}

// ClaimNextPendingJob atomically claims the oldest pending job and
// moves it to running. Returns NOT_FOUND when the queue is empty.
func (s *Store) ClaimNextPendingJob(ctx context.Context) (*IngestionJob, error) {
	var job *IngestionJob
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		query := s.rebind(`SELECT ` + jobColumns + ` FROM ingestion_jobs
			WHERE status = ? ORDER BY created_at LIMIT 1`)
		candidate, err := scanJobRow(tx.QueryRowContext(ctx, query, string(JobStatusPending)))
		if errors.Is(err, sql.ErrNoRows) {
			return errdefs.New(errdefs.CodeNotFound, "no pending jobs")
		}
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		update := s.rebind(`UPDATE ingestion_jobs
			SET status = ?, started_at = ?, updated_at = ?
			WHERE id = ? AND status = ?`)
		res, err := tx.ExecContext(ctx, update,
			string(JobStatusRunning), now, now, candidate.ID, string(JobStatusPending))
		if err != nil {
			return errdefs.Wrap(errdefs.CodeDatabase, "failed to claim job", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return errdefs.Wrap(errdefs.CodeDatabase, "failed to read rows affected", err)
		}
		if n == 0 {
			// Another worker won the race inside this poll cycle.
			return errdefs.New(errdefs.CodeNotFound, "no pending jobs")
		}

		candidate.Status = JobStatusRunning
		candidate.StartedAt = &now
		candidate.UpdatedAt = now
		job = candidate
		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// TransitionJob moves a job between statuses, enforcing the allowed
// transitions. Terminal transitions stamp completed_at.
func (s *Store) TransitionJob(ctx context.Context, id string, next JobStatus, errorMessage string) error {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return err
	}
	if !job.Status.CanTransition(next) {
		return errdefs.Newf(errdefs.CodeValidation,
			"job status cannot transition %s -> %s", job.Status, next)
	}

	now := time.Now().UTC()
	var completedAt interface{}
	if next.Terminal() {
		completedAt = now
	}

	query := s.rebind(`UPDATE ingestion_jobs
		SET status = ?, completed_at = ?, error_message = ?, updated_at = ?
		WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, query, string(next), completedAt, errorMessage, now, id)
	if err != nil {
		return errdefs.Wrap(errdefs.CodeDatabase, "failed to transition job", err)
	}
	return requireRowsAffected(res, "job", id)
}

// UpdateJobCounters persists progress counters.
func (s *Store) UpdateJobCounters(ctx context.Context, id string, total, processed, failed, chunks int) error {
	query := s.rebind(`UPDATE ingestion_jobs
		SET total_documents = ?, processed_documents = ?, failed_documents = ?,
			total_chunks = ?, updated_at = ?
		WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, query, total, processed, failed, chunks, time.Now().UTC(), id)
	if err != nil {
		return errdefs.Wrap(errdefs.CodeDatabase, "failed to update job counters", err)
	}
	return requireRowsAffected(res, "job", id)
}

// CancelJob requests cancellation. Pending jobs cancel immediately;
// running jobs cancel at the next document boundary via IsJobCancelled.
func (s *Store) CancelJob(ctx context.Context, id string) error {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return errdefs.Newf(errdefs.CodeValidation, "job %s already %s", id, job.Status)
	}
	return s.TransitionJob(ctx, id, JobStatusCancelled, "")
}

// IsJobCancelled reports whether a job has been moved to cancelled.
func (s *Store) IsJobCancelled(ctx context.Context, id string) (bool, error) {
	query := s.rebind(`SELECT status FROM ingestion_jobs WHERE id = ?`)
	var status string
	if err := s.db.QueryRowContext(ctx, query, id).Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, errdefs.New(errdefs.CodeNotFound, "job not found")
		}
		return false, errdefs.Wrap(errdefs.CodeDatabase, "failed to read job status", err)
	}
	return JobStatus(status) == JobStatusCancelled, nil
}

// ListJobs returns jobs newest first, optionally filtered by status.
func (s *Store) ListJobs(ctx context.Context, status JobStatus, limit int) ([]*IngestionJob, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows *sql.Rows
	var err error
	if status == "" {
		query := s.rebind(`SELECT ` + jobColumns + ` FROM ingestion_jobs
			ORDER BY created_at DESC LIMIT ?`)
		rows, err = s.db.QueryContext(ctx, query, limit)
	} else {
		query := s.rebind(`SELECT ` + jobColumns + ` FROM ingestion_jobs
			WHERE status = ? ORDER BY created_at DESC LIMIT ?`)
		rows, err = s.db.QueryContext(ctx, query, string(status), limit)
	}
	if err != nil {
		return nil, errdefs.Wrap(errdefs.CodeDatabase, "failed to list jobs", err)
	}
	defer rows.Close()

	var jobs []*IngestionJob
	for rows.Next() {
		job, err := scanJobRow(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func scanJobRow(row rowScanner) (*IngestionJob, error) {
	var job IngestionJob
	var jobType, status, errorDetails, config string
	var sourceID sql.NullString
	var startedAt, completedAt sql.NullTime
	err := row.Scan(&job.ID, &sourceID, &jobType, &status, &job.TotalDocuments,
		&job.ProcessedDocuments, &job.FailedDocuments, &job.TotalChunks,
		&startedAt, &completedAt, &job.ErrorMessage, &errorDetails,
		&job.TaskID, &config, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, errdefs.Wrap(errdefs.CodeDatabase, "failed to scan job", err)
	}
	job.SourceID = sourceID.String
	job.JobType = JobType(jobType)
	job.Status = JobStatus(status)
	job.ErrorDetails = decodeMap(errorDetails)
	job.Config = decodeMap(config)
	job.StartedAt = scanNullTime(startedAt)
	job.CompletedAt = scanNullTime(completedAt)
	return &job, nil
}
