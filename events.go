package offlinecache

import (
	"context"
	"encoding/json"
)

// SyncTask is a delegated background task keyed by a sync tag.
type SyncTask func(ctx context.Context) error

// HandleSync acknowledges a background sync event. A recognized tag runs its
// delegated task, and the event is complete only once the task has settled.
// Unknown tags are acknowledged without work.
func (w *Worker) HandleSync(ctx context.Context, tag string) error {
	task, ok := w.syncTasks[tag]
	if !ok {
		w.log.Debug().Str("tag", tag).Msg("Unknown sync tag acknowledged")
		return nil
	}
	w.log.Debug().Str("tag", tag).Msg("Running sync task")
	return task(ctx)
}

// Notification is a platform notification rendered from a push payload.
// Click-through opens the URL.
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url"`
}

// Notifier renders notifications on the platform.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// HandlePush parses a push payload and delegates it to the notifier.
// Malformed payloads skip the notification step, they are never fatal.
func (w *Worker) HandlePush(ctx context.Context, payload []byte) {
	var n Notification
	if err := json.Unmarshal(payload, &n); err != nil {
		w.log.Warn().Err(err).Msg("Skipping malformed push payload")
		return
	}
	if w.notifier == nil {
		w.log.Debug().Str("title", n.Title).Msg("No notifier configured, dropping push")
		return
	}
	if err := w.notifier.Notify(ctx, n); err != nil {
		w.log.Error().Err(err).Msg("Could not show notification")
	}
}
