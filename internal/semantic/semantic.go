// Package semantic provides the note retrieval collaborator. The core
// treats it as opaque: embed text, search ranked matches.
package semantic

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"

	"github.com/sashabaranov/go-openai"

	"github.com/ilhamafian/pa-agent-be/internal/models"
)

// NoteStore is the slice of note persistence the retriever needs.
type NoteStore interface {
	GetByUserID(ctx context.Context, userID int64) ([]*models.Note, error)
	SearchText(ctx context.Context, userID int64, query string, limit int) ([]*models.Note, error)
}

// Retriever embeds text and ranks a user's notes against a query.
type Retriever interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Search(ctx context.Context, userID int64, query string, k int) ([]models.NoteMatch, error)
}

// OpenAIRetriever ranks notes by cosine similarity of OpenAI embeddings,
// falling back to substring search when embeddings are unavailable.
type OpenAIRetriever struct {
	client *openai.Client
	model  openai.EmbeddingModel
	notes  NoteStore
}

func NewOpenAIRetriever(apiKey, baseURL, model string, notes NoteStore) *OpenAIRetriever {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}

	return &OpenAIRetriever{
		client: openai.NewClientWithConfig(config),
		model:  openai.EmbeddingModel(model),
		notes:  notes,
	}
}

func (r *OpenAIRetriever) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := r.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: r.model,
		Input: []string{text},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return resp.Data[0].Embedding, nil
}

func (r *OpenAIRetriever) Search(ctx context.Context, userID int64, query string, k int) ([]models.NoteMatch, error) {
	if k <= 0 {
		k = 5
	}

	queryVec, err := r.Embed(ctx, query)
	if err != nil {
		log.Printf("Embedding failed, falling back to text search: %v", err)
		return r.textFallback(ctx, userID, query, k)
	}

	notes, err := r.notes.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	var matches []models.NoteMatch
	for _, note := range notes {
		if len(note.Embedding) == 0 {
			continue
		}
		matches = append(matches, models.NoteMatch{
			Note:  note,
			Score: cosine(queryVec, note.Embedding),
		})
	}
	if len(matches) == 0 {
		return r.textFallback(ctx, userID, query, k)
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (r *OpenAIRetriever) textFallback(ctx context.Context, userID int64, query string, k int) ([]models.NoteMatch, error) {
	notes, err := r.notes.SearchText(ctx, userID, query, k)
	if err != nil {
		return nil, err
	}
	matches := make([]models.NoteMatch, 0, len(notes))
	for _, note := range notes {
		matches = append(matches, models.NoteMatch{Note: note})
	}
	return matches, nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
