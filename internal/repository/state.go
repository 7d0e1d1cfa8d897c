package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ilhamafian/pa-agent-be/internal/database"
	"github.com/ilhamafian/pa-agent-be/internal/models"
)

type StateRepository struct {
	db *database.DB
}

func NewStateRepository(db *database.DB) *StateRepository {
	return &StateRepository{db: db}
}

// Get loads the conversation state for a user, creating a default row on
// first contact.
func (r *StateRepository) Get(ctx context.Context, userID int64) (*models.ConversationState, error) {
	state := &models.ConversationState{UserID: userID}
	var pending, history []byte

	err := r.db.Pool.QueryRow(ctx,
		`SELECT pending, history, last_activity_at
		 FROM conversation_state WHERE user_id = $1`,
		userID,
	).Scan(&pending, &history, &state.LastActivityAt)
	if errors.Is(err, pgx.ErrNoRows) {
		state.LastActivityAt = time.Now().UTC()
		_, err = r.db.Pool.Exec(ctx,
			`INSERT INTO conversation_state (user_id, last_activity_at) VALUES ($1, $2)
			 ON CONFLICT (user_id) DO NOTHING`,
			userID, state.LastActivityAt,
		)
		return state, err
	}
	if err != nil {
		return nil, err
	}

	if len(pending) > 0 {
		state.Pending = &models.Pending{}
		if err := json.Unmarshal(pending, state.Pending); err != nil {
			return nil, err
		}
	}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &state.History); err != nil {
			return nil, err
		}
	}
	return state, nil
}

// Save persists the whole state record. Callers hold the per-user dispatch
// lock, so last-write-wins is safe here.
func (r *StateRepository) Save(ctx context.Context, state *models.ConversationState) error {
	var pending []byte
	if state.Pending != nil {
		b, err := json.Marshal(state.Pending)
		if err != nil {
			return err
		}
		pending = b
	}
	history, err := json.Marshal(state.History)
	if err != nil {
		return err
	}

	_, err = r.db.Pool.Exec(ctx,
		`INSERT INTO conversation_state (user_id, pending, history, last_activity_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id) DO UPDATE SET
		   pending = EXCLUDED.pending,
		   history = EXCLUDED.history,
		   last_activity_at = EXCLUDED.last_activity_at`,
		state.UserID, pending, history, state.LastActivityAt,
	)
	return err
}
