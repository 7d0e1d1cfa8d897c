package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ilhamafian/pa-agent-be/internal/models"
)

type memJobs struct {
	mu   sync.Mutex
	jobs map[string]*models.ReminderJob
}

func newMemJobs() *memJobs {
	return &memJobs{jobs: make(map[string]*models.ReminderJob)}
}

func (m *memJobs) add(job *models.ReminderJob) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job
}

func (m *memJobs) get(id string) *models.ReminderJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.jobs[id]
}

func (m *memJobs) Create(ctx context.Context, job *models.ReminderJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job.CreatedAt = time.Now().UTC()
	m.jobs[job.ID] = job
	return nil
}

func (m *memJobs) Due(ctx context.Context, now time.Time) ([]*models.ReminderJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var due []*models.ReminderJob
	for _, job := range m.jobs {
		if job.Status == models.JobPending && !job.FireAt.After(now) {
			copied := *job
			due = append(due, &copied)
		}
	}
	return due, nil
}

func (m *memJobs) MarkFired(ctx context.Context, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok || job.Status != models.JobPending {
		return false, nil
	}
	job.Status = models.JobFired
	job.FiredAt = &at
	return true, nil
}

func (m *memJobs) MarkFailed(ctx context.Context, id string, lastError string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok || job.Status != models.JobPending {
		return false, nil
	}
	job.Status = models.JobFailed
	job.LastError = lastError
	return true, nil
}

func (m *memJobs) Cancel(ctx context.Context, id string, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok || job.Status != models.JobPending || job.UserID != userID {
		return false, nil
	}
	job.Status = models.JobCancelled
	return true, nil
}

func (m *memJobs) Reschedule(ctx context.Context, id string, fireAt time.Time, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[id]; ok && job.Status == models.JobPending {
		job.Attempts++
		job.FireAt = fireAt
		job.LastError = lastError
	}
	return nil
}

func (m *memJobs) UpdateFireAt(ctx context.Context, id string, fireAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[id]; ok && job.Status == models.JobPending {
		job.FireAt = fireAt
	}
	return nil
}

type sentMessage struct {
	userID   int64
	text     string
	dedupKey string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (f *fakeNotifier) Send(ctx context.Context, userID int64, text, dedupKey string) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{userID: userID, text: text, dedupKey: dedupKey})
	return nil
}

type fakeEvents struct {
	events map[int]*models.Event
}

func (f *fakeEvents) GetByID(ctx context.Context, eventID int) (*models.Event, error) {
	event, ok := f.events[eventID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return event, nil
}

var testNow = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func newTestScheduler(jobs *memJobs, events *fakeEvents, notifier *fakeNotifier) *Scheduler {
	if events == nil {
		events = &fakeEvents{events: map[int]*models.Event{}}
	}
	s := New(jobs, events, notifier)
	s.now = func() time.Time { return testNow }
	return s
}

func pendingJob(id string, fireAt time.Time) *models.ReminderJob {
	return &models.ReminderJob{
		ID:     id,
		UserID: 7,
		FireAt: fireAt,
		Status: models.JobPending,
	}
}

func TestEnqueueRejectsPastFireTime(t *testing.T) {
	jobs := newMemJobs()
	s := newTestScheduler(jobs, nil, &fakeNotifier{})

	job := pendingJob("", testNow.Add(-time.Minute))
	if err := s.Enqueue(context.Background(), job); err == nil {
		t.Fatal("expected rejection of a past fire time")
	}
	if len(jobs.jobs) != 0 {
		t.Fatal("rejected job must not be written")
	}
}

func TestEnqueueAssignsID(t *testing.T) {
	jobs := newMemJobs()
	s := newTestScheduler(jobs, nil, &fakeNotifier{})

	job := pendingJob("", testNow.Add(time.Hour))
	job.Message = "drink water"
	if err := s.Enqueue(context.Background(), job); err != nil {
		t.Fatal(err)
	}
	if job.ID == "" {
		t.Fatal("expected an id to be assigned")
	}
	if jobs.get(job.ID) == nil {
		t.Fatal("job should be persisted under its id")
	}
}

func TestSweepFiresDueJobOnce(t *testing.T) {
	jobs := newMemJobs()
	notifier := &fakeNotifier{}
	s := newTestScheduler(jobs, nil, notifier)

	job := pendingJob("j1", testNow.Add(-time.Minute))
	job.Message = "stand up"
	jobs.add(job)

	s.sweep(context.Background())
	s.sweep(context.Background())

	if len(notifier.sent) != 1 {
		t.Fatalf("expected exactly 1 delivery, got %d", len(notifier.sent))
	}
	if notifier.sent[0].dedupKey != "j1" {
		t.Errorf("dedup key should be the job id, got %q", notifier.sent[0].dedupKey)
	}
	stored := jobs.get("j1")
	if stored.Status != models.JobFired {
		t.Errorf("expected fired, got %q", stored.Status)
	}
	if stored.FiredAt == nil {
		t.Error("fired job should record when it fired")
	}
}

func TestSweepSkipsFutureJobs(t *testing.T) {
	jobs := newMemJobs()
	notifier := &fakeNotifier{}
	s := newTestScheduler(jobs, nil, notifier)

	jobs.add(pendingJob("j1", testNow.Add(time.Hour)))
	s.sweep(context.Background())

	if len(notifier.sent) != 0 {
		t.Fatal("future job must not fire")
	}
}

func TestDeliveryFailureReschedulesWithBackoff(t *testing.T) {
	jobs := newMemJobs()
	notifier := &fakeNotifier{err: errors.New("telegram down")}
	s := newTestScheduler(jobs, nil, notifier)

	jobs.add(pendingJob("j1", testNow.Add(-time.Minute)))
	s.sweep(context.Background())

	stored := jobs.get("j1")
	if stored.Status != models.JobPending {
		t.Fatalf("job must stay pending for retry, got %q", stored.Status)
	}
	if stored.Attempts != 1 {
		t.Fatalf("expected 1 recorded attempt, got %d", stored.Attempts)
	}
	want := testNow.Add(backoffBase)
	if !stored.FireAt.Equal(want) {
		t.Errorf("expected fire time pushed to %v, got %v", want, stored.FireAt)
	}
	if stored.LastError == "" {
		t.Error("expected the delivery error to be recorded")
	}
}

func TestDeliveryFailureAtCeilingIsTerminal(t *testing.T) {
	jobs := newMemJobs()
	notifier := &fakeNotifier{err: errors.New("telegram down")}
	s := newTestScheduler(jobs, nil, notifier)

	job := pendingJob("j1", testNow.Add(-time.Minute))
	job.Attempts = maxAttempts - 1
	jobs.add(job)

	s.sweep(context.Background())

	stored := jobs.get("j1")
	if stored.Status != models.JobFailed {
		t.Fatalf("expected failed after attempt ceiling, got %q", stored.Status)
	}

	// A failed job never fires, even after the clock moves on.
	notifier.err = nil
	s.sweep(context.Background())
	if len(notifier.sent) != 0 {
		t.Fatal("terminal job must never fire")
	}
}

func TestEventLinkedJobFollowsMovedEvent(t *testing.T) {
	jobs := newMemJobs()
	notifier := &fakeNotifier{}
	newStart := testNow.Add(2 * time.Hour)
	events := &fakeEvents{events: map[int]*models.Event{
		5: {EventID: 5, UserID: 7, Title: "Dentist", StartTime: &newStart},
	}}
	s := newTestScheduler(jobs, events, notifier)

	eventID := 5
	job := pendingJob("j1", testNow.Add(-time.Minute))
	job.EventID = &eventID
	job.OffsetMinutes = 30
	jobs.add(job)

	s.sweep(context.Background())

	if len(notifier.sent) != 0 {
		t.Fatal("job must follow its event instead of firing stale")
	}
	stored := jobs.get("j1")
	if stored.Status != models.JobPending {
		t.Fatalf("moved job must stay pending, got %q", stored.Status)
	}
	want := newStart.Add(-30 * time.Minute)
	if !stored.FireAt.Equal(want) {
		t.Errorf("expected fire time %v, got %v", want, stored.FireAt)
	}
}

func TestEventLinkedJobFiresWhenStillDue(t *testing.T) {
	jobs := newMemJobs()
	notifier := &fakeNotifier{}
	start := testNow.Add(20 * time.Minute)
	events := &fakeEvents{events: map[int]*models.Event{
		5: {EventID: 5, UserID: 7, Title: "Dentist", StartTime: &start},
	}}
	s := newTestScheduler(jobs, events, notifier)

	eventID := 5
	job := pendingJob("j1", testNow.Add(-time.Minute))
	job.EventID = &eventID
	job.OffsetMinutes = 30
	job.Message = "Dentist soon"
	jobs.add(job)

	s.sweep(context.Background())

	if len(notifier.sent) != 1 {
		t.Fatalf("expected delivery, got %d", len(notifier.sent))
	}
	if jobs.get("j1").Status != models.JobFired {
		t.Fatal("expected job fired")
	}
}

func TestEventLinkedJobCancelledWhenEventGone(t *testing.T) {
	jobs := newMemJobs()
	notifier := &fakeNotifier{}
	s := newTestScheduler(jobs, &fakeEvents{events: map[int]*models.Event{}}, notifier)

	eventID := 99
	job := pendingJob("j1", testNow.Add(-time.Minute))
	job.EventID = &eventID
	jobs.add(job)

	s.sweep(context.Background())

	if len(notifier.sent) != 0 {
		t.Fatal("orphaned job must not fire")
	}
	if jobs.get("j1").Status != models.JobCancelled {
		t.Fatalf("expected cancelled, got %q", jobs.get("j1").Status)
	}
}

func TestRecurringJobEnqueuesNextOccurrence(t *testing.T) {
	jobs := newMemJobs()
	notifier := &fakeNotifier{}
	s := newTestScheduler(jobs, nil, notifier)

	job := pendingJob("j1", testNow.Add(-time.Minute))
	job.Message = "take medication"
	job.RecurrenceRule = "FREQ=DAILY"
	jobs.add(job)

	s.sweep(context.Background())

	if len(notifier.sent) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(notifier.sent))
	}
	if jobs.get("j1").Status != models.JobFired {
		t.Fatal("fired occurrence must be terminal")
	}

	var successor *models.ReminderJob
	for _, j := range jobs.jobs {
		if j.ID != "j1" {
			successor = j
		}
	}
	if successor == nil {
		t.Fatal("expected a fresh job for the next occurrence")
	}
	if successor.Status != models.JobPending {
		t.Errorf("successor must be pending, got %q", successor.Status)
	}
	if successor.Message != job.Message || successor.RecurrenceRule != job.RecurrenceRule {
		t.Error("successor must carry the message and rule forward")
	}
	if !successor.FireAt.After(testNow) {
		t.Errorf("successor fire time %v must be in the future", successor.FireAt)
	}
}
