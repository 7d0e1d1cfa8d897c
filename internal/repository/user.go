package repository

import (
	"context"

	"github.com/ilhamafian/pa-agent-be/internal/database"
	"github.com/ilhamafian/pa-agent-be/internal/models"
)

type UserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetOrCreate upserts the user on first contact. The timezone applies only
// to brand-new rows; an existing user keeps whatever they configured.
func (r *UserRepository) GetOrCreate(ctx context.Context, userID int64, userName, timezone string) (*models.User, error) {
	user := &models.User{}
	err := r.db.Pool.QueryRow(ctx,
		`INSERT INTO "user" (user_id, user_name, timezone) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET user_name = EXCLUDED.user_name
		 RETURNING user_id, user_name, timezone, notifications_enabled, created_at`,
		userID, userName, timezone,
	).Scan(&user.UserID, &user.UserName, &user.Timezone, &user.NotificationsEnabled, &user.CreatedAt)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) SetTimezone(ctx context.Context, userID int64, timezone string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE "user" SET timezone = $1 WHERE user_id = $2`,
		timezone, userID,
	)
	return err
}
