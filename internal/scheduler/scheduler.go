// Package scheduler owns the durable reminder job queue: accepting new
// jobs, sweeping for due ones, and driving each job through its single
// pending-to-terminal transition.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ilhamafian/pa-agent-be/internal/models"
	"github.com/ilhamafian/pa-agent-be/internal/notify"
	"github.com/ilhamafian/pa-agent-be/internal/rrule"
)

const (
	// sweepInterval bounds delivery lag for due jobs.
	sweepInterval = 30 * time.Second

	// maxAttempts is the delivery ceiling; the next failure after it is
	// terminal.
	maxAttempts = 5

	// backoffBase doubles per recorded attempt.
	backoffBase = time.Minute
)

// JobStore is the durable queue surface the scheduler drives.
type JobStore interface {
	Create(ctx context.Context, job *models.ReminderJob) error
	Due(ctx context.Context, now time.Time) ([]*models.ReminderJob, error)
	MarkFired(ctx context.Context, id string, at time.Time) (bool, error)
	MarkFailed(ctx context.Context, id string, lastError string) (bool, error)
	Cancel(ctx context.Context, id string, userID int64) (bool, error)
	Reschedule(ctx context.Context, id string, fireAt time.Time, lastError string) error
	UpdateFireAt(ctx context.Context, id string, fireAt time.Time) error
}

// EventGetter re-reads the linked event just before an event-linked job
// fires, so a moved event moves its reminder instead of firing stale.
type EventGetter interface {
	GetByID(ctx context.Context, eventID int) (*models.Event, error)
}

type Scheduler struct {
	jobs     JobStore
	events   EventGetter
	notifier notify.Notifier
	wake     chan struct{}
	now      func() time.Time
}

func New(jobs JobStore, events EventGetter, notifier notify.Notifier) *Scheduler {
	return &Scheduler{
		jobs:     jobs,
		events:   events,
		notifier: notifier,
		wake:     make(chan struct{}, 1),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Enqueue persists a new pending job and nudges the sweep loop. Fire times
// that are not strictly in the future are rejected before anything is
// written.
func (s *Scheduler) Enqueue(ctx context.Context, job *models.ReminderJob) error {
	if !job.FireAt.After(s.now()) {
		return fmt.Errorf("fire time %s is not in the future", job.FireAt.Format(time.RFC3339))
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	job.FireAt = job.FireAt.UTC()
	job.Status = models.JobPending

	if err := s.jobs.Create(ctx, job); err != nil {
		return fmt.Errorf("failed to enqueue reminder job: %w", err)
	}

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

// Run sweeps until the context is cancelled. Pending jobs missed while the
// process was down are picked up by the first sweep.
func (s *Scheduler) Run(ctx context.Context) {
	log.Println("Reminder scheduler started")
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Println("Reminder scheduler stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		case <-s.wake:
			s.sweep(ctx)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	now := s.now()
	due, err := s.jobs.Due(ctx, now)
	if err != nil {
		log.Printf("Failed to load due jobs: %v", err)
		return
	}

	for _, job := range due {
		if ctx.Err() != nil {
			return
		}
		s.process(ctx, job, now)
	}
}

// process drives one due job. Exactly one sweep wins the pending-to-fired
// transition; everything after MarkFired is best effort.
func (s *Scheduler) process(ctx context.Context, job *models.ReminderJob, now time.Time) {
	if job.EventID != nil {
		if done := s.followEvent(ctx, job, now); done {
			return
		}
	}

	if err := s.notifier.Send(ctx, job.UserID, job.Message, job.ID); err != nil {
		s.recordFailure(ctx, job, now, err)
		return
	}

	fired, err := s.jobs.MarkFired(ctx, job.ID, now)
	if err != nil {
		log.Printf("Failed to mark job %s fired: %v", job.ID, err)
		return
	}
	if !fired {
		// Another transition won; the dedup key kept the user safe.
		return
	}

	if job.IsRecurring() {
		s.enqueueNextOccurrence(ctx, job, now)
	}
}

// followEvent re-reads the linked event and reports whether the job was
// handled without firing: moved forward with its event, or cancelled
// because the event no longer has a timed start.
func (s *Scheduler) followEvent(ctx context.Context, job *models.ReminderJob, now time.Time) bool {
	event, err := s.events.GetByID(ctx, *job.EventID)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, err := s.jobs.Cancel(ctx, job.ID, job.UserID); err != nil {
			log.Printf("Failed to cancel orphaned job %s: %v", job.ID, err)
		}
		return true
	}
	if err != nil {
		log.Printf("Failed to load event %d for job %s: %v", *job.EventID, job.ID, err)
		return true
	}
	if event.StartTime == nil {
		if _, err := s.jobs.Cancel(ctx, job.ID, job.UserID); err != nil {
			log.Printf("Failed to cancel job %s for all-day event: %v", job.ID, err)
		}
		return true
	}

	fireAt := event.StartTime.Add(-time.Duration(job.OffsetMinutes) * time.Minute)
	if fireAt.After(now) {
		if err := s.jobs.UpdateFireAt(ctx, job.ID, fireAt); err != nil {
			log.Printf("Failed to move job %s with its event: %v", job.ID, err)
		}
		return true
	}
	return false
}

func (s *Scheduler) recordFailure(ctx context.Context, job *models.ReminderJob, now time.Time, sendErr error) {
	log.Printf("Delivery failed for job %s (attempt %d): %v", job.ID, job.Attempts+1, sendErr)

	if job.Attempts+1 >= maxAttempts {
		if _, err := s.jobs.MarkFailed(ctx, job.ID, sendErr.Error()); err != nil {
			log.Printf("Failed to mark job %s failed: %v", job.ID, err)
		}
		return
	}

	backoff := backoffBase << job.Attempts
	if err := s.jobs.Reschedule(ctx, job.ID, now.Add(backoff), sendErr.Error()); err != nil {
		log.Printf("Failed to reschedule job %s: %v", job.ID, err)
	}
}

// enqueueNextOccurrence keeps a recurring reminder alive: the fired job is
// terminal, the next occurrence gets a fresh pending job.
func (s *Scheduler) enqueueNextOccurrence(ctx context.Context, job *models.ReminderJob, now time.Time) {
	next, err := rrule.NextAfter(job.RecurrenceRule, job.FireAt, now)
	if err != nil {
		log.Printf("Bad recurrence rule on job %s: %v", job.ID, err)
		return
	}
	if next == nil {
		return
	}

	successor := &models.ReminderJob{
		ID:             uuid.NewString(),
		UserID:         job.UserID,
		FireAt:         *next,
		Message:        job.Message,
		RecurrenceRule: job.RecurrenceRule,
		Status:         models.JobPending,
	}
	if err := s.jobs.Create(ctx, successor); err != nil {
		log.Printf("Failed to enqueue next occurrence of job %s: %v", job.ID, err)
	}
}
