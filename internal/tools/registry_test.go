package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ilhamafian/pa-agent-be/internal/models"
)

type fakeEventStore struct {
	created []*models.Event
	inRange []*models.Event
}

func (f *fakeEventStore) Create(ctx context.Context, event *models.Event) error {
	event.EventID = len(f.created) + 1
	f.created = append(f.created, event)
	return nil
}

func (f *fakeEventStore) GetInRange(ctx context.Context, userID int64, from, to time.Time) ([]*models.Event, error) {
	return f.inRange, nil
}

type fakeTaskStore struct {
	created []*models.Task
	listed  []*models.Task
	updated *models.Task
}

func (f *fakeTaskStore) Create(ctx context.Context, task *models.Task) error {
	task.TaskID = len(f.created) + 1
	f.created = append(f.created, task)
	return nil
}

func (f *fakeTaskStore) List(ctx context.Context, userID int64, status, priority string) ([]*models.Task, error) {
	return f.listed, nil
}

func (f *fakeTaskStore) UpdateStatusByTitle(ctx context.Context, userID int64, title, status string) (*models.Task, error) {
	if f.updated == nil {
		return nil, nil
	}
	f.updated.Status = status
	return f.updated, nil
}

type fakeNoteStore struct {
	created []*models.Note
}

func (f *fakeNoteStore) Create(ctx context.Context, note *models.Note) error {
	f.created = append(f.created, note)
	return nil
}

type fakeJobLister struct {
	upcoming []*models.ReminderJob
}

func (f *fakeJobLister) ListUpcoming(ctx context.Context, userID int64, now time.Time) ([]*models.ReminderJob, error) {
	return f.upcoming, nil
}

type fakeEnqueuer struct {
	jobs []*models.ReminderJob
	err  error
}

func (f *fakeEnqueuer) Enqueue(ctx context.Context, job *models.ReminderJob) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

type fakeRetriever struct {
	vec     []float32
	embErr  error
	matches []models.NoteMatch
}

func (f *fakeRetriever) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vec, f.embErr
}

func (f *fakeRetriever) Search(ctx context.Context, userID int64, query string, k int) ([]models.NoteMatch, error) {
	return f.matches, nil
}

func newTestDeps() (Deps, *fakeEventStore, *fakeTaskStore, *fakeNoteStore, *fakeEnqueuer) {
	events := &fakeEventStore{}
	tasks := &fakeTaskStore{}
	notes := &fakeNoteStore{}
	enq := &fakeEnqueuer{}
	deps := Deps{
		Events:    events,
		Tasks:     tasks,
		Notes:     notes,
		Jobs:      &fakeJobLister{},
		Enqueuer:  enq,
		Retriever: &fakeRetriever{vec: []float32{0.1, 0.2}},
	}
	return deps, events, tasks, notes, enq
}

func testUserContext() UserContext {
	return UserContext{
		UserID:   42,
		Location: time.UTC,
		Now:      time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestResolveUnknownTool(t *testing.T) {
	deps, _, _, _, _ := newTestDeps()
	r := NewRegistry(deps)

	_, err := r.Resolve("calendar.destroy")
	if !errors.Is(err, ErrUnknownTool) {
		t.Fatalf("expected ErrUnknownTool, got %v", err)
	}
}

func TestSchemasCoverAllTools(t *testing.T) {
	deps, _, _, _, _ := newTestDeps()
	r := NewRegistry(deps)

	schemas := r.Schemas()
	if len(schemas) != 9 {
		t.Fatalf("expected 9 tool schemas, got %d", len(schemas))
	}
	for _, s := range schemas {
		if s.Name == "" || s.Description == "" || len(s.Parameters) == 0 {
			t.Errorf("incomplete schema for %q", s.Name)
		}
	}
}

func TestTaskCreateDefaultsPriority(t *testing.T) {
	deps, _, tasks, _, _ := newTestDeps()
	r := NewRegistry(deps)
	uc := testUserContext()

	tool, err := r.Resolve("task.create")
	if err != nil {
		t.Fatal(err)
	}

	args, prompt, err := tool.Validate(json.RawMessage(`{"title": "Buy milk"}`), uc)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if prompt != "" {
		t.Errorf("task.create should not require confirmation, got prompt %q", prompt)
	}

	result, err := tool.Execute(context.Background(), args, uc)
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if len(tasks.created) != 1 {
		t.Fatalf("expected 1 task created, got %d", len(tasks.created))
	}
	if tasks.created[0].Priority != models.PriorityMedium {
		t.Errorf("expected default priority medium, got %q", tasks.created[0].Priority)
	}
	if !strings.Contains(result.Reply, "Buy milk") {
		t.Errorf("reply should mention the task title: %q", result.Reply)
	}
}

func TestTaskCreateRejectsEmptyTitle(t *testing.T) {
	deps, _, _, _, _ := newTestDeps()
	r := NewRegistry(deps)

	tool, _ := r.Resolve("task.create")
	_, _, err := tool.Validate(json.RawMessage(`{"title": "  "}`), testUserContext())

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestTaskUpdateStatusNotFound(t *testing.T) {
	deps, _, _, _, _ := newTestDeps()
	r := NewRegistry(deps)
	uc := testUserContext()

	tool, _ := r.Resolve("task.update_status")
	args, _, err := tool.Validate(json.RawMessage(`{"title": "Ghost", "status": "completed"}`), uc)
	if err != nil {
		t.Fatal(err)
	}

	result, err := tool.Execute(context.Background(), args, uc)
	if err != nil {
		t.Fatalf("missing task should not be an execution error: %v", err)
	}
	if !strings.Contains(result.Reply, "couldn't find") {
		t.Errorf("expected not-found reply, got %q", result.Reply)
	}
}

func TestReminderCreateNormalizesTime(t *testing.T) {
	deps, _, _, _, enq := newTestDeps()
	r := NewRegistry(deps)
	uc := testUserContext()

	tool, _ := r.Resolve("reminder.create")
	args, _, err := tool.Validate(json.RawMessage(`{"message": "call mom", "remind_at": "in 2 hours"}`), uc)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}

	// Normalized arguments carry the absolute instant, so executing later
	// must not shift the fire time.
	var normalized reminderCreateArgs
	if err := json.Unmarshal(args, &normalized); err != nil {
		t.Fatal(err)
	}
	want := uc.Now.Add(2 * time.Hour)
	if !normalized.FireAt.Equal(want) {
		t.Fatalf("expected fire at %v, got %v", want, normalized.FireAt)
	}

	if _, err := tool.Execute(context.Background(), args, uc); err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if len(enq.jobs) != 1 {
		t.Fatalf("expected 1 job enqueued, got %d", len(enq.jobs))
	}
	if !enq.jobs[0].FireAt.Equal(want) {
		t.Errorf("job fire time %v, want %v", enq.jobs[0].FireAt, want)
	}
}

func TestReminderCreateRejectsPast(t *testing.T) {
	deps, _, _, _, _ := newTestDeps()
	r := NewRegistry(deps)

	tool, _ := r.Resolve("reminder.create")
	_, _, err := tool.Validate(json.RawMessage(`{"message": "x", "remind_at": "2020-01-01 09:00"}`), testUserContext())

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for past time, got %v", err)
	}
}

func TestReminderCreateRejectsBadRecurrence(t *testing.T) {
	deps, _, _, _, _ := newTestDeps()
	r := NewRegistry(deps)

	tool, _ := r.Resolve("reminder.create")
	_, _, err := tool.Validate(
		json.RawMessage(`{"message": "x", "remind_at": "in 1 hour", "recurrence": "FREQ=SOMETIMES"}`),
		testUserContext())

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for bad rrule, got %v", err)
	}
}

func TestNoteCreateRequiresConfirmation(t *testing.T) {
	deps, _, _, notes, _ := newTestDeps()
	r := NewRegistry(deps)
	uc := testUserContext()

	tool, _ := r.Resolve("note.create")
	if !tool.NeedsConfirmation {
		t.Fatal("note.create must require confirmation")
	}

	args, prompt, err := tool.Validate(
		json.RawMessage(`{"content": "the wifi password at the office is hunter2 and it rotates monthly"}`), uc)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if prompt == "" {
		t.Fatal("expected a confirmation prompt")
	}

	var normalized noteCreateArgs
	if err := json.Unmarshal(args, &normalized); err != nil {
		t.Fatal(err)
	}
	if normalized.Title == "" {
		t.Error("expected a derived title")
	}
	if len(normalized.Title) > 50 {
		t.Errorf("derived title too long: %q", normalized.Title)
	}

	if _, err := tool.Execute(context.Background(), args, uc); err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if len(notes.created) != 1 {
		t.Fatalf("expected 1 note, got %d", len(notes.created))
	}
	if notes.created[0].NoteID == "" {
		t.Error("note should get an id")
	}
	if len(notes.created[0].Embedding) == 0 {
		t.Error("note should carry the embedding")
	}
}

func TestNoteCreateSavesWithoutEmbedding(t *testing.T) {
	deps, _, _, notes, _ := newTestDeps()
	deps.Retriever = &fakeRetriever{embErr: errors.New("embeddings down")}
	r := NewRegistry(deps)
	uc := testUserContext()

	tool, _ := r.Resolve("note.create")
	args, _, err := tool.Validate(json.RawMessage(`{"title": "Wifi", "content": "hunter2"}`), uc)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tool.Execute(context.Background(), args, uc); err != nil {
		t.Fatalf("embedding failure must not block the save: %v", err)
	}
	if len(notes.created) != 1 || len(notes.created[0].Embedding) != 0 {
		t.Fatal("expected note saved without an embedding")
	}
}

func TestCalendarCreateRejectsPastReminder(t *testing.T) {
	deps, _, _, _, _ := newTestDeps()
	r := NewRegistry(deps)
	uc := testUserContext()

	tool, _ := r.Resolve("calendar.create")
	_, _, err := tool.Validate(
		json.RawMessage(`{"title": "Standup", "date": "2024-06-01", "time": "10:30", "reminder_minutes": 60}`), uc)

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for a reminder already past, got %v", err)
	}
}

func TestCalendarCreateEnqueuesEventReminder(t *testing.T) {
	deps, events, _, _, enq := newTestDeps()
	r := NewRegistry(deps)
	uc := testUserContext()

	tool, _ := r.Resolve("calendar.create")
	args, _, err := tool.Validate(
		json.RawMessage(`{"title": "Dentist", "date": "2024-06-02", "time": "14:00", "reminder_minutes": 30}`), uc)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tool.Execute(context.Background(), args, uc); err != nil {
		t.Fatal(err)
	}

	if len(events.created) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events.created))
	}
	if len(enq.jobs) != 1 {
		t.Fatalf("expected 1 reminder job, got %d", len(enq.jobs))
	}
	job := enq.jobs[0]
	if job.EventID == nil || *job.EventID != events.created[0].EventID {
		t.Error("job should link back to the event")
	}
	if job.OffsetMinutes != 30 {
		t.Errorf("expected offset 30, got %d", job.OffsetMinutes)
	}
	wantFire := events.created[0].StartTime.Add(-30 * time.Minute)
	if !job.FireAt.Equal(wantFire) {
		t.Errorf("fire at %v, want %v", job.FireAt, wantFire)
	}
}

func TestCalendarCreateReportsPartialSuccessOnReminderFailure(t *testing.T) {
	deps, events, _, _, enq := newTestDeps()
	enq.err = errors.New("queue unavailable")
	r := NewRegistry(deps)
	uc := testUserContext()

	tool, _ := r.Resolve("calendar.create")
	args, _, err := tool.Validate(
		json.RawMessage(`{"title": "Dentist", "date": "2024-06-02", "time": "14:00", "reminder_minutes": 30}`), uc)
	if err != nil {
		t.Fatal(err)
	}

	result, err := tool.Execute(context.Background(), args, uc)
	if err != nil {
		t.Fatalf("a reminder failure after the event saved must not be a full failure: %v", err)
	}
	if len(events.created) != 1 {
		t.Fatalf("expected the event to persist, got %d", len(events.created))
	}
	if !strings.Contains(result.Reply, "Calendar Event Created") {
		t.Errorf("reply must acknowledge the saved event: %q", result.Reply)
	}
	if !strings.Contains(result.Reply, "couldn't schedule its reminder") {
		t.Errorf("reply must warn about the unscheduled reminder: %q", result.Reply)
	}
}

func TestCalendarQueryRejectsUnknownRange(t *testing.T) {
	deps, _, _, _, _ := newTestDeps()
	r := NewRegistry(deps)

	tool, _ := r.Resolve("calendar.query")
	_, _, err := tool.Validate(json.RawMessage(`{"natural_range": "next decade"}`), testUserContext())

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}
