package notify

import (
	"context"
	"testing"
	"time"
)

func TestTelegramDropsDuplicateDeliveries(t *testing.T) {
	// No API client is wired: reaching Send's network path would panic, so
	// a clean return proves the dedup window short-circuited.
	tg := &Telegram{seen: map[string]time.Time{"job-1": time.Now()}}

	if err := tg.Send(context.Background(), 7, "⏰ stand up", "job-1"); err != nil {
		t.Fatalf("duplicate delivery should be dropped silently, got %v", err)
	}
}

func TestTelegramEvictsStaleDedupEntries(t *testing.T) {
	now := time.Now()
	tg := &Telegram{seen: map[string]time.Time{
		"old-job":    now.Add(-2 * dedupWindow),
		"recent-job": now,
	}}

	tg.prune(now)

	if _, ok := tg.seen["old-job"]; ok {
		t.Error("entry outside the dedup window should be evicted")
	}
	if _, ok := tg.seen["recent-job"]; !ok {
		t.Error("entry inside the dedup window must survive")
	}
}
