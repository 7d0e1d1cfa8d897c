package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ilhamafian/pa-agent-be/internal/models"
)

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func priorityEmoji(priority string) string {
	switch priority {
	case models.PriorityHigh:
		return "🔴"
	case models.PriorityLow:
		return "🟢"
	default:
		return "🟡"
	}
}

type taskCreateArgs struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

func newTaskCreate(deps Deps) *Tool {
	return &Tool{
		Name:        "task.create",
		Description: "Creates a task on the user's todo list with a priority.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"title": {"type": "string", "description": "Title of the task"},
				"description": {"type": "string", "description": "Optional additional details"},
				"priority": {"type": "string", "description": "high, medium, or low, inferred from urgency. Default medium"}
			},
			"required": ["title"]
		}`),

		Validate: func(raw json.RawMessage, uc UserContext) (json.RawMessage, string, error) {
			var in taskCreateArgs
			if err := json.Unmarshal(raw, &in); err != nil {
				return nil, "", validationErrorf("I couldn't read the task details, please try again")
			}
			in.Title = strings.TrimSpace(in.Title)
			if in.Title == "" {
				return nil, "", validationErrorf("What should the task be called?")
			}
			// Unresolved priority defaults to medium.
			in.Priority = strings.ToLower(strings.TrimSpace(in.Priority))
			if in.Priority == "" {
				in.Priority = models.PriorityMedium
			}
			if !models.ValidPriority(in.Priority) {
				return nil, "", validationErrorf("Priority must be high, medium, or low")
			}

			normalized, err := json.Marshal(in)
			return normalized, "", err
		},

		Execute: func(ctx context.Context, rawArgs json.RawMessage, uc UserContext) (*Result, error) {
			var args taskCreateArgs
			if err := json.Unmarshal(rawArgs, &args); err != nil {
				return nil, &ExecutionError{Msg: "invalid task.create arguments", Err: err}
			}

			task := &models.Task{
				UserID:      uc.UserID,
				Title:       args.Title,
				Description: args.Description,
				Priority:    args.Priority,
				Status:      models.TaskPending,
			}
			if err := deps.Tasks.Create(ctx, task); err != nil {
				return nil, &ExecutionError{Msg: "failed to create task", Err: err}
			}

			reply := fmt.Sprintf("✅ Task Created\n\nTitle: %s\nPriority: %s %s\nStatus: Pending",
				task.Title, priorityEmoji(task.Priority), titleCase(task.Priority))
			return &Result{Reply: reply}, nil
		},
	}
}

type taskListArgs struct {
	Status   string `json:"status"`
	Priority string `json:"priority"`
}

func newTaskList(deps Deps) *Tool {
	return &Tool{
		Name:        "task.list",
		Description: "Lists the user's tasks, optionally filtered by status or priority.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"status": {"type": "string", "description": "Filter: pending, in_progress, or completed"},
				"priority": {"type": "string", "description": "Filter: high, medium, or low"}
			}
		}`),

		Validate: func(raw json.RawMessage, uc UserContext) (json.RawMessage, string, error) {
			var in taskListArgs
			if err := json.Unmarshal(raw, &in); err != nil {
				return nil, "", validationErrorf("I couldn't read the filters, please try again")
			}
			in.Status = strings.ToLower(strings.TrimSpace(in.Status))
			in.Priority = strings.ToLower(strings.TrimSpace(in.Priority))
			if in.Status != "" && !models.ValidTaskStatus(in.Status) {
				return nil, "", validationErrorf("Status filter must be pending, in_progress, or completed")
			}
			if in.Priority != "" && !models.ValidPriority(in.Priority) {
				return nil, "", validationErrorf("Priority filter must be high, medium, or low")
			}

			normalized, err := json.Marshal(in)
			return normalized, "", err
		},

		Execute: func(ctx context.Context, rawArgs json.RawMessage, uc UserContext) (*Result, error) {
			var args taskListArgs
			if err := json.Unmarshal(rawArgs, &args); err != nil {
				return nil, &ExecutionError{Msg: "invalid task.list arguments", Err: err}
			}

			tasks, err := deps.Tasks.List(ctx, uc.UserID, args.Status, args.Priority)
			if err != nil {
				return nil, &ExecutionError{Msg: "failed to fetch tasks", Err: err}
			}
			if len(tasks) == 0 {
				return &Result{Reply: "📝 You have no tasks at the moment."}, nil
			}

			sections := []struct {
				title  string
				status string
			}{
				{"📋 Pending Tasks", models.TaskPending},
				{"⚙️ In Progress Tasks", models.TaskInProgress},
				{"✅ Completed Tasks", models.TaskCompleted},
			}

			var sb strings.Builder
			for _, section := range sections {
				var matched []*models.Task
				for _, task := range tasks {
					if task.Status == section.status {
						matched = append(matched, task)
					}
				}
				if len(matched) == 0 {
					continue
				}
				fmt.Fprintf(&sb, "%s\n", section.title)
				for i, task := range matched {
					fmt.Fprintf(&sb, "%d. %s %s\n", i+1, priorityEmoji(task.Priority), task.Title)
					if task.Description != "" {
						fmt.Fprintf(&sb, "    %s\n", task.Description)
					}
				}
				sb.WriteString("\n")
			}
			return &Result{Reply: strings.TrimRight(sb.String(), "\n")}, nil
		},
	}
}

type taskUpdateStatusArgs struct {
	Title  string `json:"title"`
	Status string `json:"status"`
}

func newTaskUpdateStatus(deps Deps) *Tool {
	return &Tool{
		Name:        "task.update_status",
		Description: "Updates the status of an existing task matched by title.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"title": {"type": "string", "description": "Title of the task to update"},
				"status": {"type": "string", "description": "New status: pending, in_progress, or completed"}
			},
			"required": ["title", "status"]
		}`),

		Validate: func(raw json.RawMessage, uc UserContext) (json.RawMessage, string, error) {
			var in taskUpdateStatusArgs
			if err := json.Unmarshal(raw, &in); err != nil {
				return nil, "", validationErrorf("I couldn't read the update, please try again")
			}
			in.Title = strings.TrimSpace(in.Title)
			in.Status = strings.ToLower(strings.TrimSpace(in.Status))
			if in.Title == "" {
				return nil, "", validationErrorf("Which task should I update?")
			}
			if !models.ValidTaskStatus(in.Status) {
				return nil, "", validationErrorf("Status must be pending, in_progress, or completed")
			}

			normalized, err := json.Marshal(in)
			return normalized, "", err
		},

		Execute: func(ctx context.Context, rawArgs json.RawMessage, uc UserContext) (*Result, error) {
			var args taskUpdateStatusArgs
			if err := json.Unmarshal(rawArgs, &args); err != nil {
				return nil, &ExecutionError{Msg: "invalid task.update_status arguments", Err: err}
			}

			task, err := deps.Tasks.UpdateStatusByTitle(ctx, uc.UserID, args.Title, args.Status)
			if err != nil {
				return nil, &ExecutionError{Msg: "failed to update task", Err: err}
			}
			if task == nil {
				return &Result{Reply: fmt.Sprintf("❌ I couldn't find a task called '%s'.", args.Title)}, nil
			}

			statusText := titleCase(strings.ReplaceAll(task.Status, "_", " "))
			reply := fmt.Sprintf("✅ Task Updated\n\nTitle: %s\nStatus: %s", task.Title, statusText)
			return &Result{Reply: reply}, nil
		},
	}
}
