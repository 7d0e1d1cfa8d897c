package repository

import (
	"context"

	"github.com/ilhamafian/pa-agent-be/internal/database"
	"github.com/ilhamafian/pa-agent-be/internal/models"
)

type NoteRepository struct {
	db *database.DB
}

func NewNoteRepository(db *database.DB) *NoteRepository {
	return &NoteRepository{db: db}
}

func (r *NoteRepository) Create(ctx context.Context, note *models.Note) error {
	return r.db.Pool.QueryRow(ctx,
		`INSERT INTO notes (note_id, user_id, title, content, embedding)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		note.NoteID, note.UserID, note.Title, note.Content, note.Embedding,
	).Scan(&note.CreatedAt)
}

// GetByUserID returns all of a user's notes with embeddings loaded, for
// in-process similarity ranking.
func (r *NoteRepository) GetByUserID(ctx context.Context, userID int64) ([]*models.Note, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT note_id, user_id, title, content, embedding, created_at
		 FROM notes WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []*models.Note
	for rows.Next() {
		note := &models.Note{}
		if err := rows.Scan(&note.NoteID, &note.UserID, &note.Title, &note.Content,
			&note.Embedding, &note.CreatedAt); err != nil {
			return nil, err
		}
		notes = append(notes, note)
	}
	return notes, rows.Err()
}

// SearchText is the fallback when no embeddings are available: plain
// substring match over title and content.
func (r *NoteRepository) SearchText(ctx context.Context, userID int64, query string, limit int) ([]*models.Note, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT note_id, user_id, title, content, embedding, created_at
		 FROM notes
		 WHERE user_id = $1 AND (title ILIKE $2 OR content ILIKE $2)
		 ORDER BY created_at DESC LIMIT $3`,
		userID, "%"+query+"%", limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []*models.Note
	for rows.Next() {
		note := &models.Note{}
		if err := rows.Scan(&note.NoteID, &note.UserID, &note.Title, &note.Content,
			&note.Embedding, &note.CreatedAt); err != nil {
			return nil, err
		}
		notes = append(notes, note)
	}
	return notes, rows.Err()
}
