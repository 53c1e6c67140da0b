// Package events publishes snapshot lifecycle notifications to RabbitMQ so
// downstream consumers (report schedulers, data warehouse loaders) can react
// to new or corrected data.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	RoutingImported = "snapshot.imported"
	RoutingMoved    = "snapshot.moved"
	RoutingDeleted  = "snapshot.deleted"
)

// SnapshotEvent is the JSON body of every snapshot message.
type SnapshotEvent struct {
	ID            uuid.UUID  `json:"id"`
	Type          string     `json:"type"`
	ReferenceDate string     `json:"reference_date"`
	PreviousDate  string     `json:"previous_date,omitempty"`
	ImportID      *uuid.UUID `json:"import_id,omitempty"`
	Rows          int        `json:"rows,omitempty"`
	Actor         string     `json:"actor,omitempty"`
	OccurredAt    time.Time  `json:"occurred_at"`
}

// NewSnapshotEvent stamps an event of the given routing type.
func NewSnapshotEvent(typ string, referenceDate time.Time, actor string) SnapshotEvent {
	return SnapshotEvent{
		ID:            uuid.New(),
		Type:          typ,
		ReferenceDate: referenceDate.Format("2006-01-02"),
		Actor:         actor,
		OccurredAt:    time.Now().UTC(),
	}
}

// Publisher delivers snapshot events. Callers treat failures as non-fatal.
type Publisher interface {
	Publish(ctx context.Context, evt SnapshotEvent) error
	Close() error
}

// NopPublisher discards events. Used when AMQP_URL is not configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, SnapshotEvent) error { return nil }
func (NopPublisher) Close() error                                 { return nil }

// RecordingPublisher keeps published events in memory.
type RecordingPublisher struct {
	Events []SnapshotEvent
	Err    error
}

func (r *RecordingPublisher) Publish(_ context.Context, evt SnapshotEvent) error {
	if r.Err != nil {
		return r.Err
	}
	r.Events = append(r.Events, evt)
	return nil
}

func (r *RecordingPublisher) Close() error { return nil }
