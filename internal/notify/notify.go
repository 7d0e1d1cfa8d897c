// Package notify delivers outbound reminder messages. Delivery is
// at-least-once upstream, so senders deduplicate on the caller-provided
// key to keep repeats away from the user.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ilhamafian/pa-agent-be/internal/format"
)

// Notifier sends one message to one user. dedupKey identifies the logical
// delivery; a repeat of an already-sent key is silently dropped.
type Notifier interface {
	Send(ctx context.Context, userID int64, text, dedupKey string) error
}

// dedupWindow is how long a delivered key blocks repeats. Sweep races
// resolve within a couple of intervals; the durable job status covers
// everything beyond that, so entries older than the window are evicted.
const dedupWindow = 5 * time.Minute

// Telegram sends through the bot API with an in-process dedup window. The
// window resets on restart, which is acceptable: the durable job status is
// the source of truth, dedup only absorbs same-process sweep races.
type Telegram struct {
	api *tgbotapi.BotAPI

	mu   sync.Mutex
	seen map[string]time.Time
}

func NewTelegram(api *tgbotapi.BotAPI) *Telegram {
	return &Telegram{
		api:  api,
		seen: make(map[string]time.Time),
	}
}

func (t *Telegram) Send(ctx context.Context, userID int64, text, dedupKey string) error {
	now := time.Now()
	if dedupKey != "" {
		t.mu.Lock()
		t.prune(now)
		if _, dup := t.seen[dedupKey]; dup {
			t.mu.Unlock()
			return nil
		}
		t.mu.Unlock()
	}

	msg := tgbotapi.NewMessage(userID, format.Sanitize(text))
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send message to %d: %w", userID, err)
	}

	if dedupKey != "" {
		t.mu.Lock()
		t.seen[dedupKey] = now
		t.mu.Unlock()
	}
	return nil
}

// prune drops entries outside the dedup window. Callers hold the mutex.
func (t *Telegram) prune(now time.Time) {
	for key, sentAt := range t.seen {
		if now.Sub(sentAt) > dedupWindow {
			delete(t.seen, key)
		}
	}
}
