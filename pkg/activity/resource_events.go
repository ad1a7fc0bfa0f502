package activity

import "time"

// Lifecycle verbs emitted by the store.
const (
	VerbRegistered = "resource.registered"
	VerbUpdated    = "resource.updated"
	VerbDeprecated = "resource.deprecated"
	VerbTagged     = "resource.tagged"
)

// ObjectTypeResource is the object type of lifecycle events.
const ObjectTypeResource = "resource"

// ResourceEventInput describes one lifecycle transition of a resource.
// Revision is the revision the transition produced.
type ResourceEventInput struct {
	ActorID    string
	UserID     string
	TenantID   string
	Channel    string
	Metadata   map[string]any
	ID         string
	Types      []string
	Revision   int
	Tag        string
	Bucket     string
	OccurredAt time.Time
}

// BuildRegisteredEvent constructs the event for a first registration.
func BuildRegisteredEvent(input ResourceEventInput) Event {
	return input.event(VerbRegistered)
}

// BuildUpdatedEvent constructs the event for a new revision.
func BuildUpdatedEvent(input ResourceEventInput) Event {
	return input.event(VerbUpdated)
}

// BuildDeprecatedEvent constructs the event for a deprecation.
func BuildDeprecatedEvent(input ResourceEventInput) Event {
	return input.event(VerbDeprecated)
}

// BuildTaggedEvent constructs the event for a tag binding.
func BuildTaggedEvent(input ResourceEventInput) Event {
	return input.event(VerbTagged)
}

func (in ResourceEventInput) event(verb string) Event {
	return NormalizeEvent(Event{
		Verb:       verb,
		ActorID:    in.ActorID,
		UserID:     in.UserID,
		TenantID:   in.TenantID,
		ObjectType: ObjectTypeResource,
		ObjectID:   in.ID,
		Types:      in.Types,
		Revision:   in.Revision,
		Tag:        in.Tag,
		Bucket:     in.Bucket,
		Channel:    in.Channel,
		Metadata:   in.Metadata,
		OccurredAt: in.OccurredAt,
	})
}
