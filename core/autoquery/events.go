package autoquery

import (
	"context"
	"time"

	"github.com/asaidimu/go-events"
	"github.com/google/uuid"
)

// QueryEventType identifies a point in a dispatched request's lifecycle.
type QueryEventType string

const (
	QueryStart   QueryEventType = "query:start"
	QuerySuccess QueryEventType = "query:success"
	QueryFailed  QueryEventType = "query:failed"
	WriteStart   QueryEventType = "write:start"
	WriteSuccess QueryEventType = "write:success"
	WriteFailed  QueryEventType = "write:failed"
)

// QueryEvent is the telemetry payload emitted around every dispatched
// request.
type QueryEvent struct {
	ID        string         `json:"id"`
	Type      QueryEventType `json:"type"`
	Timestamp int64          `json:"timestamp"` // Unix milliseconds
	Request   string         `json:"request"`   // Registered request type name
	Entity    string         `json:"entity"`
	Operation string         `json:"operation"`
	Error     *string        `json:"error,omitempty"`
	Rows      *int           `json:"rows,omitempty"`
	Duration  *int64         `json:"duration,omitempty"` // Milliseconds
}

// QueryEventCallback receives lifecycle events for a subscription.
type QueryEventCallback func(ctx context.Context, event QueryEvent) error

func newQueryEventBus() (*events.TypedEventBus[QueryEvent], error) {
	return events.NewTypedEventBus[QueryEvent](events.DefaultConfig())
}

func newEvent(eventType QueryEventType, d *RequestDescriptor) QueryEvent {
	return QueryEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UnixMilli(),
		Request:   d.Name,
		Entity:    d.Entity,
		Operation: d.Operation.String(),
	}
}

func (ev QueryEvent) withError(err error) QueryEvent {
	msg := err.Error()
	ev.Error = &msg
	return ev
}

func (ev QueryEvent) withResult(rows int, started time.Time) QueryEvent {
	ms := time.Since(started).Milliseconds()
	ev.Rows = &rows
	ev.Duration = &ms
	return ev
}
