// Package tools holds the fixed set of named operations the router can
// dispatch to. Each tool validates its raw arguments against its schema
// and executes against its own domain store; side effects happen only
// inside Execute.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ilhamafian/pa-agent-be/internal/ai"
	"github.com/ilhamafian/pa-agent-be/internal/models"
	"github.com/ilhamafian/pa-agent-be/internal/semantic"
)

// ValidationError marks malformed or ambiguous tool arguments. The
// dispatch loop recovers by re-prompting; it is never a system failure.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// ExecutionError marks a handler-level failure. It is surfaced to the user
// as a plain failure message and logged, never retried by the loop.
type ExecutionError struct {
	Msg string
	Err error
}

func (e *ExecutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// UserContext identifies the requesting user and anchors time resolution.
type UserContext struct {
	UserID   int64
	Location *time.Location
	Now      time.Time
}

// Result is what a successful execution hands back to the dispatch loop.
type Result struct {
	Reply string
}

// Tool is one named operation. Validate normalizes raw arguments (natural
// times become absolute UTC instants, defaults are filled in) and, for
// confirmation-requiring tools, returns the yes/no prompt to show the
// user. Execute runs against the normalized arguments only.
type Tool struct {
	Name              string
	Description       string
	Parameters        json.RawMessage
	NeedsConfirmation bool

	Validate func(raw json.RawMessage, uc UserContext) (args json.RawMessage, confirmPrompt string, err error)
	Execute  func(ctx context.Context, args json.RawMessage, uc UserContext) (*Result, error)
}

// Enqueuer accepts reminder jobs from tool handlers. The scheduler
// implements it and rejects fire times that are not strictly in the
// future.
type Enqueuer interface {
	Enqueue(ctx context.Context, job *models.ReminderJob) error
}

// Domain store contracts, satisfied by the pgx repositories.
type EventStore interface {
	Create(ctx context.Context, event *models.Event) error
	GetInRange(ctx context.Context, userID int64, from, to time.Time) ([]*models.Event, error)
}

type TaskStore interface {
	Create(ctx context.Context, task *models.Task) error
	List(ctx context.Context, userID int64, status, priority string) ([]*models.Task, error)
	UpdateStatusByTitle(ctx context.Context, userID int64, title, status string) (*models.Task, error)
}

type NoteStore interface {
	Create(ctx context.Context, note *models.Note) error
}

type JobLister interface {
	ListUpcoming(ctx context.Context, userID int64, now time.Time) ([]*models.ReminderJob, error)
}

// Deps carries every collaborator the handlers need.
type Deps struct {
	Events    EventStore
	Tasks     TaskStore
	Notes     NoteStore
	Jobs      JobLister
	Enqueuer  Enqueuer
	Retriever semantic.Retriever
}

// Registry is the static tool mapping. No dynamic registration happens at
// runtime.
type Registry struct {
	tools map[string]*Tool
	order []string
}

// ErrUnknownTool is wrapped into resolve failures.
var ErrUnknownTool = fmt.Errorf("unknown tool")

func NewRegistry(deps Deps) *Registry {
	r := &Registry{tools: make(map[string]*Tool)}
	r.add(newCalendarCreate(deps))
	r.add(newCalendarQuery(deps))
	r.add(newTaskCreate(deps))
	r.add(newTaskList(deps))
	r.add(newTaskUpdateStatus(deps))
	r.add(newReminderCreate(deps))
	r.add(newReminderList(deps))
	r.add(newNoteCreate(deps))
	r.add(newNoteSearch(deps))
	return r
}

func (r *Registry) add(t *Tool) {
	r.tools[t.Name] = t
	r.order = append(r.order, t.Name)
}

func (r *Registry) Resolve(name string) (*Tool, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return t, nil
}

// Schemas describes every tool for the router prompt, in registration
// order.
func (r *Registry) Schemas() []ai.ToolSchema {
	schemas := make([]ai.ToolSchema, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		schemas = append(schemas, ai.ToolSchema{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		})
	}
	return schemas
}
