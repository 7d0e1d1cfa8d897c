// Package dispatch runs the per-message cycle: load the user's
// conversation state, route the message through the language model, and
// either execute a tool, park it behind a confirmation, or reply directly.
package dispatch

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/ilhamafian/pa-agent-be/internal/ai"
	"github.com/ilhamafian/pa-agent-be/internal/models"
	"github.com/ilhamafian/pa-agent-be/internal/tools"
)

const (
	// historyLimit caps how many turns travel to the router as context.
	historyLimit = 10

	// pendingTTL expires confirmations nobody answered. A stale pending
	// must never execute off a "yes" meant for something else.
	pendingTTL = 30 * time.Minute

	// rerouteConfidence is the floor for abandoning a pending confirmation
	// in favor of a new tool intent.
	rerouteConfidence = 0.7
)

const (
	replyTimeout       = "I'm a little slow right now. Please send that again in a moment."
	replyFallback      = "I'm not sure what you'd like me to do. I can manage your calendar, tasks, reminders, and notes."
	replyExecFailed    = "Something went wrong on my end, please try again."
	replyNoPending     = "There's nothing waiting for a confirmation right now."
	replyCancelled     = "Okay, I won't do that."
	replyConfirmSuffix = "\n\nReply yes to go ahead, or no to cancel."
)

// Router is the slice of the language model client the dispatcher needs.
type Router interface {
	Classify(ctx context.Context, req ai.ClassifyRequest) (*ai.RouterOutput, error)
}

// StateStore persists per-user conversation state.
type StateStore interface {
	Get(ctx context.Context, userID int64) (*models.ConversationState, error)
	Save(ctx context.Context, state *models.ConversationState) error
}

type Dispatcher struct {
	router   Router
	registry *tools.Registry
	states   StateStore
	locks    *userLocks
	now      func() time.Time
}

func New(router Router, registry *tools.Registry, states StateStore) *Dispatcher {
	return &Dispatcher{
		router:   router,
		registry: registry,
		states:   states,
		locks:    newUserLocks(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Handle runs one message through the dispatch cycle and returns the reply
// to send back. It never returns an empty reply.
func (d *Dispatcher) Handle(ctx context.Context, user *models.User, text string) string {
	lock := d.locks.acquire(user.UserID)
	defer lock.Unlock()

	now := d.now()

	state, err := d.states.Get(ctx, user.UserID)
	if err != nil {
		log.Printf("Failed to load state for user %d: %v", user.UserID, err)
		return replyExecFailed
	}

	if state.Pending != nil && now.Sub(state.Pending.CreatedAt) > pendingTTL {
		state.Pending = nil
	}

	var pending *ai.PendingContext
	if state.Pending != nil {
		pending = &ai.PendingContext{Tool: state.Pending.Tool, Prompt: state.Pending.Prompt}
	}

	out, err := d.router.Classify(ctx, ai.ClassifyRequest{
		Message:  text,
		Pending:  pending,
		History:  state.History,
		Tools:    d.registry.Schemas(),
		Now:      now,
		Timezone: user.Timezone,
	})
	if err != nil {
		if errors.Is(err, ai.ErrTimeout) {
			// The pending confirmation, if any, survives the timeout.
			return d.finish(ctx, state, text, replyTimeout, now)
		}
		log.Printf("Routing failed for user %d: %v", user.UserID, err)
		return d.finish(ctx, state, text, replyExecFailed, now)
	}

	uc := tools.UserContext{
		UserID:   user.UserID,
		Location: user.Location(),
		Now:      now,
	}

	var reply string
	switch out.Kind {
	case ai.KindToolCall:
		reply = d.handleToolCall(ctx, state, out, uc)
	case ai.KindConfirmation:
		reply = d.handleConfirmation(ctx, state, out, uc)
	default:
		reply = out.Reply
		if reply == "" {
			reply = replyFallback
		}
	}

	return d.finish(ctx, state, text, reply, now)
}

// handleToolCall validates the routed call and either executes it or parks
// it behind a confirmation. A new confident tool intent cancels whatever
// confirmation was pending; a hesitant one re-asks instead.
func (d *Dispatcher) handleToolCall(ctx context.Context, state *models.ConversationState, out *ai.RouterOutput, uc tools.UserContext) string {
	if state.Pending != nil && out.Confidence < rerouteConfidence {
		return state.Pending.Prompt + replyConfirmSuffix
	}

	tool, err := d.registry.Resolve(out.Tool)
	if err != nil {
		log.Printf("Router chose unknown tool %q for user %d (raw: %s)", out.Tool, uc.UserID, out.RawResponse)
		return replyFallback
	}

	args := out.Args
	if len(args) == 0 {
		args = []byte(`{}`)
	}
	normalized, prompt, err := tool.Validate(args, uc)
	if err != nil {
		// The new intent didn't resolve, so any pending confirmation stays.
		var verr *tools.ValidationError
		if errors.As(err, &verr) {
			return verr.Msg
		}
		log.Printf("Validation failed for %s, user %d: %v", tool.Name, uc.UserID, err)
		return replyExecFailed
	}

	// Only a validated new intent cancels a pending confirmation.
	state.Pending = nil

	if tool.NeedsConfirmation {
		state.Pending = &models.Pending{
			Tool:      tool.Name,
			Args:      normalized,
			Prompt:    prompt,
			CreatedAt: uc.Now,
		}
		return prompt + replyConfirmSuffix
	}

	return d.execute(ctx, tool, normalized, uc)
}

func (d *Dispatcher) handleConfirmation(ctx context.Context, state *models.ConversationState, out *ai.RouterOutput, uc tools.UserContext) string {
	if state.Pending == nil {
		return replyNoPending
	}

	switch out.Confirmation {
	case ai.AnswerYes:
		pending := state.Pending
		state.Pending = nil
		tool, err := d.registry.Resolve(pending.Tool)
		if err != nil {
			log.Printf("Pending tool %q vanished for user %d", pending.Tool, uc.UserID)
			return replyExecFailed
		}
		// Arguments were normalized when the confirmation was created, so
		// the instant the user approved is the instant that runs.
		return d.execute(ctx, tool, pending.Args, uc)

	case ai.AnswerNo:
		state.Pending = nil
		return replyCancelled

	default:
		return state.Pending.Prompt + replyConfirmSuffix
	}
}

func (d *Dispatcher) execute(ctx context.Context, tool *tools.Tool, args []byte, uc tools.UserContext) string {
	result, err := tool.Execute(ctx, args, uc)
	if err != nil {
		log.Printf("Tool %s failed for user %d: %v", tool.Name, uc.UserID, err)
		return replyExecFailed
	}
	return result.Reply
}

// finish records the exchange and persists state. A failed save is logged
// but never hides the reply from the user.
func (d *Dispatcher) finish(ctx context.Context, state *models.ConversationState, userText, reply string, now time.Time) string {
	state.AppendTurn("user", userText, historyLimit)
	state.AppendTurn("assistant", reply, historyLimit)
	state.LastActivityAt = now

	if err := d.states.Save(ctx, state); err != nil {
		log.Printf("Failed to save state for user %d: %v", state.UserID, err)
	}
	return reply
}
