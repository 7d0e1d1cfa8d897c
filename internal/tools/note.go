package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/ilhamafian/pa-agent-be/internal/format"
	"github.com/ilhamafian/pa-agent-be/internal/models"
)

// noteTitle derives a title from the note body when the user gave none:
// the first few words, capped at 50 characters.
func noteTitle(content string) string {
	words := strings.Fields(content)
	if len(words) > 8 {
		words = words[:8]
	}
	return format.Truncate(strings.Join(words, " "), 50)
}

type noteCreateArgs struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func newNoteCreate(deps Deps) *Tool {
	return &Tool{
		Name:              "note.create",
		Description:       "Saves a note for later retrieval. Use when the user wants to remember or write something down.",
		NeedsConfirmation: true,
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"title": {"type": "string", "description": "Short title. Omit to derive one from the content"},
				"content": {"type": "string", "description": "The note body"}
			},
			"required": ["content"]
		}`),

		Validate: func(raw json.RawMessage, uc UserContext) (json.RawMessage, string, error) {
			var in noteCreateArgs
			if err := json.Unmarshal(raw, &in); err != nil {
				return nil, "", validationErrorf("I couldn't read the note, please try again")
			}
			in.Content = strings.TrimSpace(in.Content)
			if in.Content == "" {
				return nil, "", validationErrorf("What should the note say?")
			}
			in.Title = strings.TrimSpace(in.Title)
			if in.Title == "" {
				in.Title = noteTitle(in.Content)
			}

			normalized, err := json.Marshal(in)
			if err != nil {
				return nil, "", err
			}
			prompt := fmt.Sprintf("Save this note?\n\nTitle: %s\n%s", in.Title, format.Truncate(in.Content, 200))
			return normalized, prompt, nil
		},

		Execute: func(ctx context.Context, rawArgs json.RawMessage, uc UserContext) (*Result, error) {
			var args noteCreateArgs
			if err := json.Unmarshal(rawArgs, &args); err != nil {
				return nil, &ExecutionError{Msg: "invalid note.create arguments", Err: err}
			}

			note := &models.Note{
				NoteID:  uuid.NewString(),
				UserID:  uc.UserID,
				Title:   args.Title,
				Content: args.Content,
			}

			// Embedding is best effort. A note without a vector still saves
			// and stays findable through text search.
			if deps.Retriever != nil {
				vec, err := deps.Retriever.Embed(ctx, args.Title+"\n"+args.Content)
				if err != nil {
					log.Printf("Failed to embed note for user %d: %v", uc.UserID, err)
				} else {
					note.Embedding = vec
				}
			}

			if err := deps.Notes.Create(ctx, note); err != nil {
				return nil, &ExecutionError{Msg: "failed to save note", Err: err}
			}

			return &Result{Reply: fmt.Sprintf("📝 Note Saved\n\nTitle: %s", note.Title)}, nil
		},
	}
}

type noteSearchArgs struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

func newNoteSearch(deps Deps) *Tool {
	return &Tool{
		Name:        "note.search",
		Description: "Finds the user's saved notes most relevant to a query.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {"type": "string", "description": "What to look for"},
				"k": {"type": "integer", "description": "How many notes to return, default 5, max 10"}
			},
			"required": ["query"]
		}`),

		Validate: func(raw json.RawMessage, uc UserContext) (json.RawMessage, string, error) {
			var in noteSearchArgs
			if err := json.Unmarshal(raw, &in); err != nil {
				return nil, "", validationErrorf("I couldn't read the search, please try again")
			}
			in.Query = strings.TrimSpace(in.Query)
			if in.Query == "" {
				return nil, "", validationErrorf("What should I look for in your notes?")
			}
			if in.K <= 0 {
				in.K = 5
			}
			if in.K > 10 {
				in.K = 10
			}

			normalized, err := json.Marshal(in)
			return normalized, "", err
		},

		Execute: func(ctx context.Context, rawArgs json.RawMessage, uc UserContext) (*Result, error) {
			var args noteSearchArgs
			if err := json.Unmarshal(rawArgs, &args); err != nil {
				return nil, &ExecutionError{Msg: "invalid note.search arguments", Err: err}
			}

			matches, err := deps.Retriever.Search(ctx, uc.UserID, args.Query, args.K)
			if err != nil {
				return nil, &ExecutionError{Msg: "failed to search notes", Err: err}
			}
			if len(matches) == 0 {
				return &Result{Reply: fmt.Sprintf("📝 No notes matched %q.", args.Query)}, nil
			}

			var sb strings.Builder
			fmt.Fprintf(&sb, "📝 Notes matching %q:\n\n", args.Query)
			for i, match := range matches {
				fmt.Fprintf(&sb, "%d. %s\n", i+1, match.Note.Title)
				fmt.Fprintf(&sb, "    %s\n", format.Truncate(match.Note.Content, 120))
			}
			return &Result{Reply: strings.TrimRight(sb.String(), "\n")}, nil
		},
	}
}
