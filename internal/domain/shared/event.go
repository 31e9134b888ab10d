package shared

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent represents an event that occurred in the domain
type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	AggregateID() string
	AggregateType() string
	OwnerID() string
}

// BaseDomainEvent provides common fields for all domain events
type BaseDomainEvent struct {
	ID           uuid.UUID `json:"id"`
	Type         string    `json:"type"`
	Timestamp    time.Time `json:"timestamp"`
	AggID        string    `json:"aggregate_id"`
	AggType      string    `json:"aggregate_type"`
	OwnerIDValue string    `json:"owner_id"`
}

// EventID returns the unique event identifier
func (e *BaseDomainEvent) EventID() uuid.UUID {
	return e.ID
}

// EventType returns the type of the event
func (e *BaseDomainEvent) EventType() string {
	return e.Type
}

// OccurredAt returns when the event occurred
func (e *BaseDomainEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID returns the ID of the document that produced this event
func (e *BaseDomainEvent) AggregateID() string {
	return e.AggID
}

// AggregateType returns the type of the document
func (e *BaseDomainEvent) AggregateType() string {
	return e.AggType
}

// OwnerID returns the user the event belongs to
func (e *BaseDomainEvent) OwnerID() string {
	return e.OwnerIDValue
}

// NewBaseDomainEvent creates a new base domain event
func NewBaseDomainEvent(eventType, aggType, aggID, ownerID string) BaseDomainEvent {
	return BaseDomainEvent{
		ID:           uuid.New(),
		Type:         eventType,
		Timestamp:    time.Now(),
		AggID:        aggID,
		AggType:      aggType,
		OwnerIDValue: ownerID,
	}
}
