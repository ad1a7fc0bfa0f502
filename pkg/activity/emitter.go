package activity

import (
	"context"
	"slices"
	"strings"
)

// DefaultChannel is applied to events emitted without a channel.
const DefaultChannel = "kgforge"

// Config controls activity emission defaults.
type Config struct {
	Enabled bool
	Channel string
}

// Emitter is what a store session holds: the configured hooks plus the
// channel stamped on events that carry none. A nil Emitter is disabled.
type Emitter struct {
	hooks   Hooks
	channel string
}

// NewEmitter drops nil hooks and returns a disabled emitter when cfg is not
// enabled or nothing is left to notify.
func NewEmitter(hooks Hooks, cfg Config) *Emitter {
	live := slices.DeleteFunc(slices.Clone(hooks), func(hook ActivityHook) bool { return hook == nil })
	if !cfg.Enabled {
		live = nil
	}
	channel := strings.TrimSpace(cfg.Channel)
	if channel == "" {
		channel = DefaultChannel
	}
	return &Emitter{hooks: live, channel: channel}
}

// Enabled reports whether emissions should be attempted.
func (e *Emitter) Enabled() bool {
	return e != nil && e.hooks.Enabled()
}

// Emit forwards the event to all hooks.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if !e.Enabled() {
		return nil
	}
	if strings.TrimSpace(event.Channel) == "" {
		event.Channel = e.channel
	}
	return e.hooks.Notify(ctx, event)
}
