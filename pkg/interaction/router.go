// Package interaction turns stored Slack interaction payloads into calls to
// registered business handlers.
package interaction

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"github.com/zoff-tech/reviewbot/pkg/processor"
	"github.com/zoff-tech/reviewbot/pkg/retry"
)

// ActionHandler handles one block action of a block_actions callback.
type ActionHandler func(ctx context.Context, cb *slack.InteractionCallback, action *slack.BlockAction) error

// ViewHandler handles a view_submission callback.
type ViewHandler func(ctx context.Context, cb *slack.InteractionCallback) error

// Router dispatches block actions by action_id and view submissions by the
// view's callback_id. Payloads it cannot route fail as business invariant.
type Router struct {
	mu      sync.RWMutex
	actions map[string]ActionHandler
	views   map[string]ViewHandler
	logger  *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		actions: make(map[string]ActionHandler),
		views:   make(map[string]ViewHandler),
		logger:  logger.Named("interaction"),
	}
}

func (r *Router) OnAction(actionID string, h ActionHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[actionID] = h
}

func (r *Router) OnView(callbackID string, h ViewHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views[callbackID] = h
}

// BlockActions is the inbox handler of the block actions queue.
func (r *Router) BlockActions() processor.Handler {
	return processor.HandlerFunc(r.handleBlockActions)
}

// ViewSubmissions is the inbox handler of the view submission queue.
func (r *Router) ViewSubmissions() processor.Handler {
	return processor.HandlerFunc(r.handleViewSubmission)
}

func (r *Router) handleBlockActions(ctx context.Context, payload string) error {
	cb, err := decode(payload, slack.InteractionTypeBlockActions)
	if err != nil {
		return err
	}

	actions := cb.ActionCallback.BlockActions
	if len(actions) == 0 {
		return retry.BusinessInvariantf("block_actions payload carries no actions")
	}

	// resolve every handler first so an unknown action fails before any side effect
	handlers := make([]ActionHandler, len(actions))
	r.mu.RLock()
	for i, action := range actions {
		h, ok := r.actions[action.ActionID]
		if !ok {
			r.mu.RUnlock()
			return retry.BusinessInvariantf("no handler for action %q", action.ActionID)
		}
		handlers[i] = h
	}
	r.mu.RUnlock()

	for i, action := range actions {
		r.logger.Debug("dispatching block action",
			zap.String("action_id", action.ActionID),
			zap.String("team_id", cb.Team.ID),
			zap.String("user_id", cb.User.ID))
		if err := handlers[i](ctx, cb, action); err != nil {
			return fmt.Errorf("action %s: %w", action.ActionID, err)
		}
	}
	return nil
}

func (r *Router) handleViewSubmission(ctx context.Context, payload string) error {
	cb, err := decode(payload, slack.InteractionTypeViewSubmission)
	if err != nil {
		return err
	}

	callbackID := cb.View.CallbackID
	r.mu.RLock()
	h, ok := r.views[callbackID]
	r.mu.RUnlock()
	if !ok {
		return retry.BusinessInvariantf("no handler for view %q", callbackID)
	}

	r.logger.Debug("dispatching view submission",
		zap.String("callback_id", callbackID),
		zap.String("team_id", cb.Team.ID),
		zap.String("user_id", cb.User.ID))
	if err := h(ctx, cb); err != nil {
		return fmt.Errorf("view %s: %w", callbackID, err)
	}
	return nil
}

func decode(payload string, want slack.InteractionType) (*slack.InteractionCallback, error) {
	var cb slack.InteractionCallback
	if err := json.Unmarshal([]byte(payload), &cb); err != nil {
		return nil, retry.BusinessInvariantf("malformed interaction payload: %v", err)
	}
	if cb.Type != want {
		return nil, retry.BusinessInvariantf("expected %s payload, got %q", want, cb.Type)
	}
	return &cb, nil
}
