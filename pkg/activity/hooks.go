package activity

import (
	"context"
	"errors"
	"maps"
	"slices"
	"strings"
	"time"
)

// Event is one resource lifecycle transition delivered to hooks. Actor, user
// and tenant ids are free-form strings; sinks parse them as they need.
type Event struct {
	Verb       string
	ActorID    string
	UserID     string
	TenantID   string
	ObjectType string
	ObjectID   string
	Types      []string
	Revision   int
	Tag        string
	Bucket     string
	Channel    string
	Metadata   map[string]any
	OccurredAt time.Time
}

// Routable reports whether the event names a verb and an object.
func (e Event) Routable() bool {
	return e.Verb != "" && e.ObjectType != "" && e.ObjectID != ""
}

// ActivityHook receives normalized activity events.
type ActivityHook interface {
	Notify(ctx context.Context, event Event) error
}

// HookFunc allows plain functions to satisfy ActivityHook.
type HookFunc func(ctx context.Context, event Event) error

// Notify dispatches to the underlying function.
func (fn HookFunc) Notify(ctx context.Context, event Event) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, event)
}

// Hooks fans out events to zero or more hooks.
type Hooks []ActivityHook

// Enabled reports whether there are any hooks to notify.
func (h Hooks) Enabled() bool {
	return len(h) > 0
}

// Notify normalizes the event and hands it to every hook. Events that are
// not routable are dropped. Hook failures are joined; one failing hook does
// not stop the others.
func (h Hooks) Notify(ctx context.Context, event Event) error {
	if len(h) == 0 {
		return nil
	}
	normalized := NormalizeEvent(event)
	if !normalized.Routable() {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var err error
	for _, hook := range h {
		if hook != nil {
			err = errors.Join(err, hook.Notify(ctx, normalized))
		}
	}
	return err
}

// NormalizeEvent trims identifiers, copies types and metadata, and stamps a
// missing timestamp with the current time.
func NormalizeEvent(event Event) Event {
	out := event
	for _, field := range []*string{
		&out.Verb, &out.ActorID, &out.UserID, &out.TenantID,
		&out.ObjectType, &out.ObjectID, &out.Tag, &out.Bucket, &out.Channel,
	} {
		*field = strings.TrimSpace(*field)
	}
	out.Types = nil
	if len(event.Types) > 0 {
		out.Types = slices.Clone(event.Types)
	}
	out.Metadata = cloneMap(event.Metadata)
	if out.OccurredAt.IsZero() {
		out.OccurredAt = time.Now()
	}
	return out
}

func cloneMap(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	return maps.Clone(src)
}
