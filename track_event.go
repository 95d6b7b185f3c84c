package togglr

import (
	"errors"
	"fmt"
	"time"
)

// EventType is the outcome recorded by a TrackEvent.
type EventType string

const (
	EventSuccess EventType = "success"
	EventFailure EventType = "failure"
	EventError   EventType = "error"
)

// ParseEventType validates s as an EventType.
func ParseEventType(s string) (EventType, error) {
	switch t := EventType(s); t {
	case EventSuccess, EventFailure, EventError:
		return t, nil
	default:
		return "", fmt.Errorf("togglr: unknown event type %q", s)
	}
}

// TrackEvent is an analytics event for a served variant.
// Build it with NewTrackEvent and the With* methods, then send it with Client.TrackEvent.
type TrackEvent struct {
	VariantKey string
	EventType  EventType
	Reward     *float64
	Context    *RequestContext
	CreatedAt  *time.Time
	// DedupKey is an idempotency token. Events sharing a key are counted once.
	DedupKey string
}

// NewTrackEvent returns an event with an empty context.
func NewTrackEvent(variantKey string, eventType EventType) *TrackEvent {
	return &TrackEvent{
		VariantKey: variantKey,
		EventType:  eventType,
		Context:    NewContext(),
	}
}

func (e *TrackEvent) WithReward(reward float64) *TrackEvent {
	e.Reward = &reward
	return e
}

// WithContext sets a single context attribute.
func (e *TrackEvent) WithContext(key string, value any) *TrackEvent {
	e.context().Set(key, value)
	return e
}

// WithContexts sets every attribute of attrs.
func (e *TrackEvent) WithContexts(attrs map[string]any) *TrackEvent {
	rc := e.context()
	for k, v := range attrs {
		rc.Set(k, v)
	}
	return e
}

// WithRequestContext replaces the event context with rc.
func (e *TrackEvent) WithRequestContext(rc *RequestContext) *TrackEvent {
	e.Context = rc
	return e
}

func (e *TrackEvent) WithCreatedAt(t time.Time) *TrackEvent {
	e.CreatedAt = &t
	return e
}

func (e *TrackEvent) WithDedupKey(key string) *TrackEvent {
	e.DedupKey = key
	return e
}

func (e *TrackEvent) context() *RequestContext {
	if e.Context == nil {
		e.Context = NewContext()
	}
	return e.Context
}

var errEmptyVariant = errors.New("variant key is required")

// Validate checks the fields the server requires.
func (e *TrackEvent) Validate() error {
	if e == nil {
		return errors.New("track event is nil")
	}
	if e.VariantKey == "" {
		return errEmptyVariant
	}
	if _, err := ParseEventType(string(e.EventType)); err != nil {
		return err
	}
	return nil
}

// Payload returns the request body of the event. Unset optional fields are omitted.
func (e *TrackEvent) Payload() map[string]any {
	payload := map[string]any{
		"variant_key": e.VariantKey,
		"event_type":  string(e.EventType),
		"context":     e.Context.Map(),
	}
	if e.Reward != nil {
		payload["reward"] = *e.Reward
	}
	if e.CreatedAt != nil {
		payload["created_at"] = e.CreatedAt.Format(time.RFC3339)
	}
	if e.DedupKey != "" {
		payload["dedup_key"] = e.DedupKey
	}
	return payload
}
