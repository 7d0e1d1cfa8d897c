package repository

import (
	"context"
	"time"

	"github.com/ilhamafian/pa-agent-be/internal/database"
	"github.com/ilhamafian/pa-agent-be/internal/models"
)

type JobRepository struct {
	db *database.DB
}

func NewJobRepository(db *database.DB) *JobRepository {
	return &JobRepository{db: db}
}

const jobColumns = `id, user_id, fire_at, message, event_id, offset_minutes,
	recurrence_rule, status, attempts, last_error, created_at, fired_at`

func scanJob(row interface{ Scan(...any) error }) (*models.ReminderJob, error) {
	job := &models.ReminderJob{}
	err := row.Scan(&job.ID, &job.UserID, &job.FireAt, &job.Message, &job.EventID,
		&job.OffsetMinutes, &job.RecurrenceRule, &job.Status, &job.Attempts,
		&job.LastError, &job.CreatedAt, &job.FiredAt)
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (r *JobRepository) Create(ctx context.Context, job *models.ReminderJob) error {
	return r.db.Pool.QueryRow(ctx,
		`INSERT INTO reminder_jobs (id, user_id, fire_at, message, event_id, offset_minutes, recurrence_rule, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at`,
		job.ID, job.UserID, job.FireAt, job.Message, job.EventID,
		job.OffsetMinutes, job.RecurrenceRule, job.Status,
	).Scan(&job.CreatedAt)
}

// Due returns all pending jobs whose fire time has passed, oldest first.
func (r *JobRepository) Due(ctx context.Context, now time.Time) ([]*models.ReminderJob, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+jobColumns+` FROM reminder_jobs
		 WHERE status = 'pending' AND fire_at <= $1
		 ORDER BY fire_at ASC`,
		now,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*models.ReminderJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (r *JobRepository) ListUpcoming(ctx context.Context, userID int64, now time.Time) ([]*models.ReminderJob, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+jobColumns+` FROM reminder_jobs
		 WHERE user_id = $1 AND status = 'pending' AND fire_at >= $2
		 ORDER BY fire_at ASC`,
		userID, now,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*models.ReminderJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// MarkFired transitions a pending job to fired. The WHERE clause is the
// single-writer guard: a job that already left pending is not touched, and
// the false return tells the sweep it lost the race.
func (r *JobRepository) MarkFired(ctx context.Context, id string, at time.Time) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE reminder_jobs SET status = 'fired', fired_at = $1
		 WHERE id = $2 AND status = 'pending'`,
		at, id,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *JobRepository) MarkFailed(ctx context.Context, id string, lastError string) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE reminder_jobs SET status = 'failed', last_error = $1
		 WHERE id = $2 AND status = 'pending'`,
		lastError, id,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *JobRepository) Cancel(ctx context.Context, id string, userID int64) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE reminder_jobs SET status = 'cancelled'
		 WHERE id = $1 AND user_id = $2 AND status = 'pending'`,
		id, userID,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Reschedule records a failed delivery attempt and pushes the fire time
// forward so the next sweep retries after the backoff window.
func (r *JobRepository) Reschedule(ctx context.Context, id string, fireAt time.Time, lastError string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE reminder_jobs SET attempts = attempts + 1, fire_at = $1, last_error = $2
		 WHERE id = $3 AND status = 'pending'`,
		fireAt, lastError, id,
	)
	return err
}

// UpdateFireAt moves a pending job without counting an attempt. Used when
// an event-linked job follows its event to a new time.
func (r *JobRepository) UpdateFireAt(ctx context.Context, id string, fireAt time.Time) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE reminder_jobs SET fire_at = $1 WHERE id = $2 AND status = 'pending'`,
		fireAt, id,
	)
	return err
}
