// Package usersink forwards resource lifecycle events to a go-users
// ActivitySink.
package usersink

import (
	"context"
	"maps"

	"github.com/goliatone/go-kgforge/pkg/activity"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

// actorNamespace scopes the name-based UUIDs derived for actors, users and
// tenants that are not UUIDs themselves.
var actorNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/goliatone/go-kgforge/actors"))

// Hook adapts activity events to a go-users ActivitySink.
type Hook struct {
	Sink usertypes.ActivitySink
}

// Notify maps the event into an ActivityRecord and forwards it to the sink.
// The resource revision, types, tag and bucket travel in the record data.
func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil {
		return nil
	}
	event = activity.NormalizeEvent(event)
	if !event.Routable() {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	data := map[string]any{}
	maps.Copy(data, event.Metadata)
	if event.Revision > 0 {
		data["revision"] = event.Revision
	}
	if len(event.Types) > 0 {
		data["types"] = event.Types
	}
	if event.Tag != "" {
		data["tag"] = event.Tag
	}
	if event.Bucket != "" {
		data["bucket"] = event.Bucket
	}
	if len(data) == 0 {
		data = nil
	}

	return h.Sink.Log(ctx, usertypes.ActivityRecord{
		ActorID:    principalID(event.ActorID),
		UserID:     principalID(event.UserID),
		TenantID:   principalID(event.TenantID),
		Verb:       event.Verb,
		ObjectType: event.ObjectType,
		ObjectID:   event.ObjectID,
		Channel:    event.Channel,
		Data:       data,
		OccurredAt: event.OccurredAt,
	})
}

// principalID parses UUIDs as they are and derives a stable UUID for any
// other non-empty name, so "curator" maps to the same id on every run.
func principalID(value string) uuid.UUID {
	if value == "" {
		return uuid.Nil
	}
	if id, err := uuid.Parse(value); err == nil {
		return id
	}
	return uuid.NewSHA1(actorNamespace, []byte(value))
}
