package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ilhamafian/pa-agent-be/internal/format"
	"github.com/ilhamafian/pa-agent-be/internal/models"
)

type calendarCreateArgs struct {
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	StartTime       *time.Time `json:"start_time"`
	EndTime         *time.Time `json:"end_time"`
	ReminderMinutes int        `json:"reminder_minutes"`
}

func newCalendarCreate(deps Deps) *Tool {
	return &Tool{
		Name:        "calendar.create",
		Description: "Creates a calendar event. Use for anything with a date: meetings, lunches, appointments.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"title": {"type": "string", "description": "Title of the event"},
				"date": {"type": "string", "description": "Event date in YYYY-MM-DD format"},
				"time": {"type": "string", "description": "Start time in HH:MM format. Omit for all-day events"},
				"end_time": {"type": "string", "description": "End time in HH:MM format. Defaults to one hour after start"},
				"description": {"type": "string", "description": "Optional event details"},
				"reminder_minutes": {"type": "integer", "description": "Send a reminder this many minutes before the event starts"}
			},
			"required": ["title", "date"]
		}`),

		Validate: func(raw json.RawMessage, uc UserContext) (json.RawMessage, string, error) {
			var in struct {
				Title           string `json:"title"`
				Date            string `json:"date"`
				Time            string `json:"time"`
				EndTime         string `json:"end_time"`
				Description     string `json:"description"`
				ReminderMinutes int    `json:"reminder_minutes"`
			}
			if err := json.Unmarshal(raw, &in); err != nil {
				return nil, "", validationErrorf("I couldn't read the event details, please try again")
			}
			if strings.TrimSpace(in.Title) == "" {
				return nil, "", validationErrorf("What should I call this event?")
			}
			day, err := time.ParseInLocation("2006-01-02", in.Date, uc.Location)
			if err != nil {
				return nil, "", validationErrorf("I need a date for the event (like 2024-06-01)")
			}

			args := calendarCreateArgs{
				Title:           strings.TrimSpace(in.Title),
				Description:     strings.TrimSpace(in.Description),
				ReminderMinutes: in.ReminderMinutes,
			}
			if in.Time != "" {
				clock, err := time.Parse("15:04", in.Time)
				if err != nil {
					return nil, "", validationErrorf("I couldn't read the start time %q, use HH:MM", in.Time)
				}
				start := time.Date(day.Year(), day.Month(), day.Day(),
					clock.Hour(), clock.Minute(), 0, 0, uc.Location).UTC()
				args.StartTime = &start

				end := start.Add(time.Hour)
				if in.EndTime != "" {
					endClock, err := time.Parse("15:04", in.EndTime)
					if err != nil {
						return nil, "", validationErrorf("I couldn't read the end time %q, use HH:MM", in.EndTime)
					}
					end = time.Date(day.Year(), day.Month(), day.Day(),
						endClock.Hour(), endClock.Minute(), 0, 0, uc.Location).UTC()
					if !end.After(start) {
						return nil, "", validationErrorf("The end time has to be after the start time")
					}
				}
				args.EndTime = &end
			}

			if args.ReminderMinutes < 0 {
				return nil, "", validationErrorf("Reminder minutes can't be negative")
			}
			if args.ReminderMinutes > 0 {
				if args.StartTime == nil {
					return nil, "", validationErrorf("I can only set a reminder for events with a start time")
				}
				fireAt := args.StartTime.Add(-time.Duration(args.ReminderMinutes) * time.Minute)
				if !fireAt.After(uc.Now) {
					return nil, "", validationErrorf("That reminder would already be in the past")
				}
			}

			normalized, err := json.Marshal(args)
			return normalized, "", err
		},

		Execute: func(ctx context.Context, rawArgs json.RawMessage, uc UserContext) (*Result, error) {
			var args calendarCreateArgs
			if err := json.Unmarshal(rawArgs, &args); err != nil {
				return nil, &ExecutionError{Msg: "invalid calendar.create arguments", Err: err}
			}

			event := &models.Event{
				UserID:      uc.UserID,
				Title:       args.Title,
				Description: args.Description,
				StartTime:   args.StartTime,
				EndTime:     args.EndTime,
			}
			if err := deps.Events.Create(ctx, event); err != nil {
				return nil, &ExecutionError{Msg: "failed to create event", Err: err}
			}

			var sb strings.Builder
			sb.WriteString("📅 Calendar Event Created\n\n")
			fmt.Fprintf(&sb, "Title: %s\n", event.Title)
			if !event.IsAllDay() {
				local := event.StartTime.In(uc.Location)
				fmt.Fprintf(&sb, "Date: %s\n", local.Format("2006-01-02"))
				fmt.Fprintf(&sb, "Time: %s", local.Format("15:04"))
				if event.EndTime != nil {
					fmt.Fprintf(&sb, " - %s", event.EndTime.In(uc.Location).Format("15:04"))
				}
				sb.WriteString("\n")
			} else {
				sb.WriteString("Time: All-day\n")
			}

			if args.ReminderMinutes > 0 && event.StartTime != nil {
				job := &models.ReminderJob{
					UserID:        uc.UserID,
					FireAt:        event.StartTime.Add(-time.Duration(args.ReminderMinutes) * time.Minute),
					Message:       fmt.Sprintf("⏰ Reminder: '%s' starts in %d minutes!", event.Title, args.ReminderMinutes),
					EventID:       &event.EventID,
					OffsetMinutes: args.ReminderMinutes,
					Status:        models.JobPending,
				}
				// The event row already exists, so a scheduling failure must
				// not read as a full failure or the user will recreate it.
				if err := deps.Enqueuer.Enqueue(ctx, job); err != nil {
					log.Printf("Event %d created but reminder scheduling failed: %v", event.EventID, err)
					sb.WriteString("⚠️ The event was saved, but I couldn't schedule its reminder. Ask me to remind you separately.\n")
				} else {
					fmt.Fprintf(&sb, "Reminder: %d minutes before\n", args.ReminderMinutes)
				}
			}

			return &Result{Reply: strings.TrimRight(sb.String(), "\n")}, nil
		},
	}
}

type calendarQueryArgs struct {
	Range string `json:"range"`
}

func newCalendarQuery(deps Deps) *Tool {
	return &Tool{
		Name:        "calendar.query",
		Description: "Lists the user's calendar events for a natural range: today, tomorrow, or week.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"natural_range": {"type": "string", "description": "One of: today, tomorrow, week"}
			},
			"required": ["natural_range"]
		}`),

		Validate: func(raw json.RawMessage, uc UserContext) (json.RawMessage, string, error) {
			var in struct {
				NaturalRange string `json:"natural_range"`
			}
			if err := json.Unmarshal(raw, &in); err != nil {
				return nil, "", validationErrorf("I couldn't read the query, please try again")
			}

			r := strings.ToLower(strings.TrimSpace(in.NaturalRange))
			switch r {
			case "", "today":
				r = "today"
			case "tomorrow":
			case "week", "this week", "next 7 days":
				r = "week"
			default:
				return nil, "", validationErrorf("I can list events for today, tomorrow, or this week")
			}

			normalized, err := json.Marshal(calendarQueryArgs{Range: r})
			return normalized, "", err
		},

		Execute: func(ctx context.Context, rawArgs json.RawMessage, uc UserContext) (*Result, error) {
			var args calendarQueryArgs
			if err := json.Unmarshal(rawArgs, &args); err != nil {
				return nil, &ExecutionError{Msg: "invalid calendar.query arguments", Err: err}
			}

			local := uc.Now.In(uc.Location)
			dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, uc.Location)

			var from, to time.Time
			var label string
			switch args.Range {
			case "tomorrow":
				from = dayStart.AddDate(0, 0, 1)
				to = dayStart.AddDate(0, 0, 2)
				label = "tomorrow, " + from.Format("January 2")
			case "week":
				from = dayStart
				to = dayStart.AddDate(0, 0, 7)
				label = "the next 7 days"
			default:
				from = dayStart
				to = dayStart.AddDate(0, 0, 1)
				label = "today, " + from.Format("January 2")
			}

			events, err := deps.Events.GetInRange(ctx, uc.UserID, from.UTC(), to.UTC())
			if err != nil {
				return nil, &ExecutionError{Msg: "failed to fetch events", Err: err}
			}

			if len(events) == 0 {
				return &Result{Reply: fmt.Sprintf("📅 You have no events for %s.", label)}, nil
			}

			var sb strings.Builder
			fmt.Fprintf(&sb, "📅 Your events for %s:\n\n", label)
			for _, event := range events {
				timeRange := "All-day"
				if !event.IsAllDay() {
					timeRange = event.StartTime.In(uc.Location).Format("15:04")
					if event.EndTime != nil {
						timeRange += " - " + event.EndTime.In(uc.Location).Format("15:04")
					}
				}
				fmt.Fprintf(&sb, "• %s (%s", format.Truncate(event.Title, 60), timeRange)
				if args.Range == "week" && event.StartTime != nil {
					fmt.Fprintf(&sb, ", %s", event.StartTime.In(uc.Location).Format("Mon Jan 2"))
				}
				sb.WriteString(")\n")
			}
			return &Result{Reply: strings.TrimRight(sb.String(), "\n")}, nil
		},
	}
}
