package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/ilhamafian/pa-agent-be/internal/database"
	"github.com/ilhamafian/pa-agent-be/internal/models"
)

type TaskRepository struct {
	db *database.DB
}

func NewTaskRepository(db *database.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	return r.db.Pool.QueryRow(ctx,
		`INSERT INTO tasks (user_id, title, description, priority, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING task_id, created_at`,
		task.UserID, task.Title, task.Description, task.Priority, task.Status,
	).Scan(&task.TaskID, &task.CreatedAt)
}

// List returns a user's tasks, optionally filtered by status and priority.
func (r *TaskRepository) List(ctx context.Context, userID int64, status, priority string) ([]*models.Task, error) {
	query := `SELECT task_id, user_id, title, description, priority, status, created_at
		 FROM tasks WHERE user_id = $1`
	args := []any{userID}

	if status != "" {
		args = append(args, status)
		query += ` AND status = $2`
	}
	if priority != "" {
		args = append(args, priority)
		if status != "" {
			query += ` AND priority = $3`
		} else {
			query += ` AND priority = $2`
		}
	}
	query += ` ORDER BY created_at ASC`

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		task := &models.Task{}
		if err := rows.Scan(&task.TaskID, &task.UserID, &task.Title, &task.Description,
			&task.Priority, &task.Status, &task.CreatedAt); err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// UpdateStatusByTitle updates the newest task matching the title
// case-insensitively and returns it, or nil when nothing matched.
func (r *TaskRepository) UpdateStatusByTitle(ctx context.Context, userID int64, title, status string) (*models.Task, error) {
	task := &models.Task{}
	err := r.db.Pool.QueryRow(ctx,
		`UPDATE tasks SET status = $1
		 WHERE task_id = (
		   SELECT task_id FROM tasks
		   WHERE user_id = $2 AND title ILIKE $3
		   ORDER BY created_at DESC LIMIT 1
		 )
		 RETURNING task_id, user_id, title, description, priority, status, created_at`,
		status, userID, title,
	).Scan(&task.TaskID, &task.UserID, &task.Title, &task.Description,
		&task.Priority, &task.Status, &task.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return task, nil
}
