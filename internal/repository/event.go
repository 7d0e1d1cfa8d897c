package repository

import (
	"context"
	"time"

	"github.com/ilhamafian/pa-agent-be/internal/database"
	"github.com/ilhamafian/pa-agent-be/internal/models"
)

type EventRepository struct {
	db *database.DB
}

func NewEventRepository(db *database.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) Create(ctx context.Context, event *models.Event) error {
	return r.db.Pool.QueryRow(ctx,
		`INSERT INTO events (user_id, title, description, start_time, end_time)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING event_id, created_at`,
		event.UserID, event.Title, event.Description, event.StartTime, event.EndTime,
	).Scan(&event.EventID, &event.CreatedAt)
}

func (r *EventRepository) GetByID(ctx context.Context, eventID int) (*models.Event, error) {
	event := &models.Event{}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT event_id, user_id, title, description, start_time, end_time, created_at
		 FROM events WHERE event_id = $1`,
		eventID,
	).Scan(&event.EventID, &event.UserID, &event.Title, &event.Description,
		&event.StartTime, &event.EndTime, &event.CreatedAt)
	if err != nil {
		return nil, err
	}
	return event, nil
}

// GetInRange returns a user's events whose start falls inside [from, to),
// ordered by start time.
func (r *EventRepository) GetInRange(ctx context.Context, userID int64, from, to time.Time) ([]*models.Event, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT event_id, user_id, title, description, start_time, end_time, created_at
		 FROM events
		 WHERE user_id = $1 AND start_time >= $2 AND start_time < $3
		 ORDER BY start_time ASC`,
		userID, from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		event := &models.Event{}
		if err := rows.Scan(&event.EventID, &event.UserID, &event.Title, &event.Description,
			&event.StartTime, &event.EndTime, &event.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
