package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ilhamafian/pa-agent-be/internal/format"
	"github.com/ilhamafian/pa-agent-be/internal/models"
	"github.com/ilhamafian/pa-agent-be/internal/rrule"
	"github.com/ilhamafian/pa-agent-be/internal/timeparse"
)

type reminderCreateArgs struct {
	Message    string    `json:"message"`
	FireAt     time.Time `json:"fire_at"`
	Recurrence string    `json:"recurrence"`
}

func newReminderCreate(deps Deps) *Tool {
	return &Tool{
		Name:        "reminder.create",
		Description: "Schedules a reminder message at a future time, optionally recurring.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"message": {"type": "string", "description": "What to remind the user about"},
				"remind_at": {"type": "string", "description": "When to fire: natural like 'in 3 hours' or 'tomorrow at 9am', or absolute like '2024-06-01 09:00'"},
				"recurrence": {"type": "string", "description": "Optional RFC 5545 RRULE for repeating reminders, e.g. FREQ=DAILY"}
			},
			"required": ["message", "remind_at"]
		}`),

		Validate: func(raw json.RawMessage, uc UserContext) (json.RawMessage, string, error) {
			var in struct {
				Message    string `json:"message"`
				RemindAt   string `json:"remind_at"`
				Recurrence string `json:"recurrence"`
			}
			if err := json.Unmarshal(raw, &in); err != nil {
				return nil, "", validationErrorf("I couldn't read the reminder details, please try again")
			}
			in.Message = strings.TrimSpace(in.Message)
			if in.Message == "" {
				return nil, "", validationErrorf("What should I remind you about?")
			}
			if strings.TrimSpace(in.RemindAt) == "" {
				return nil, "", validationErrorf("When should I remind you?")
			}

			// Resolve the natural expression now so a later confirmation does
			// not shift the anchor.
			fireAt, err := timeparse.Normalize(in.RemindAt, uc.Now, uc.Location)
			if err != nil {
				return nil, "", validationErrorf("I couldn't understand the time %q. Try something like 'in 2 hours' or 'tomorrow at 9am'", in.RemindAt)
			}
			if !fireAt.After(uc.Now) {
				return nil, "", validationErrorf("That time is already in the past, give me a future time")
			}

			in.Recurrence = strings.TrimSpace(in.Recurrence)
			if in.Recurrence != "" {
				if _, err := rrule.Parse(in.Recurrence, fireAt); err != nil {
					return nil, "", validationErrorf("I couldn't understand the repeat rule %q", in.Recurrence)
				}
			}

			normalized, err := json.Marshal(reminderCreateArgs{
				Message:    in.Message,
				FireAt:     fireAt,
				Recurrence: in.Recurrence,
			})
			return normalized, "", err
		},

		Execute: func(ctx context.Context, rawArgs json.RawMessage, uc UserContext) (*Result, error) {
			var args reminderCreateArgs
			if err := json.Unmarshal(rawArgs, &args); err != nil {
				return nil, &ExecutionError{Msg: "invalid reminder.create arguments", Err: err}
			}

			job := &models.ReminderJob{
				UserID:         uc.UserID,
				FireAt:         args.FireAt,
				Message:        args.Message,
				RecurrenceRule: args.Recurrence,
				Status:         models.JobPending,
			}
			if err := deps.Enqueuer.Enqueue(ctx, job); err != nil {
				return nil, &ExecutionError{Msg: "failed to schedule reminder", Err: err}
			}

			local := job.FireAt.In(uc.Location)
			var sb strings.Builder
			sb.WriteString("⏰ Reminder Set\n\n")
			fmt.Fprintf(&sb, "Message: %s\n", job.Message)
			fmt.Fprintf(&sb, "When: %s (%s from now)", local.Format("Mon, 2 Jan 15:04"), format.DurationUntil(uc.Now, job.FireAt))
			if job.RecurrenceRule != "" {
				fmt.Fprintf(&sb, "\nRepeats: %s", rrule.HumanReadable(job.RecurrenceRule))
			}
			return &Result{Reply: sb.String()}, nil
		},
	}
}

func newReminderList(deps Deps) *Tool {
	return &Tool{
		Name:        "reminder.list",
		Description: "Lists the user's upcoming reminders.",
		Parameters:  json.RawMessage(`{"type": "object", "properties": {}}`),

		Validate: func(raw json.RawMessage, uc UserContext) (json.RawMessage, string, error) {
			return json.RawMessage(`{}`), "", nil
		},

		Execute: func(ctx context.Context, rawArgs json.RawMessage, uc UserContext) (*Result, error) {
			jobs, err := deps.Jobs.ListUpcoming(ctx, uc.UserID, uc.Now)
			if err != nil {
				return nil, &ExecutionError{Msg: "failed to fetch reminders", Err: err}
			}
			if len(jobs) == 0 {
				return &Result{Reply: "⏰ You have no upcoming reminders."}, nil
			}

			var sb strings.Builder
			sb.WriteString("⏰ Your upcoming reminders:\n\n")
			for i, job := range jobs {
				local := job.FireAt.In(uc.Location)
				fmt.Fprintf(&sb, "%d. %s\n", i+1, format.Truncate(job.Message, 80))
				fmt.Fprintf(&sb, "    %s (in %s)", local.Format("Mon, 2 Jan 15:04"), format.DurationUntil(uc.Now, job.FireAt))
				if job.RecurrenceRule != "" {
					fmt.Fprintf(&sb, ", repeats %s", rrule.HumanReadable(job.RecurrenceRule))
				}
				sb.WriteString("\n")
			}
			return &Result{Reply: strings.TrimRight(sb.String(), "\n")}, nil
		},
	}
}
