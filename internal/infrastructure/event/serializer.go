package event

import (
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"sync"
	"time"

	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/ledger"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/shared"
)

// Envelope is the wire form of a ledger event. The header fields let a
// consumer route and deduplicate without decoding the payload.
type Envelope struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	OwnerID       string          `json:"owner_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
}

// EventSerializer turns domain events into envelopes and back. Decoding
// needs the concrete type to be registered first.
type EventSerializer struct {
	mu       sync.RWMutex
	registry map[string]reflect.Type
}

// NewEventSerializer creates a serializer with no registered types
func NewEventSerializer() *EventSerializer {
	return &EventSerializer{
		registry: make(map[string]reflect.Type),
	}
}

// NewLedgerSerializer creates a serializer that knows every ledger event
func NewLedgerSerializer() *EventSerializer {
	s := NewEventSerializer()
	RegisterLedgerEvents(s)
	return s
}

// RegisterLedgerEvents registers the events published by the ledger engine
func RegisterLedgerEvents(s *EventSerializer) {
	s.Register(ledger.EventTypeExpenseCreated, &ledger.ExpenseCreatedEvent{})
	s.Register(ledger.EventTypeIncomeCreated, &ledger.IncomeCreatedEvent{})
	s.Register(ledger.EventTypeBudgetApplied, &ledger.BudgetAppliedEvent{})
	s.Register(ledger.EventTypeExpensesSettled, &ledger.ExpensesSettledEvent{})
	s.Register(ledger.EventTypeAccountDeleted, &ledger.AccountDeletedEvent{})
	s.Register(ledger.EventTypeReconciliationRequired, &ledger.ReconciliationRequiredEvent{})
}

// Register maps eventType to the concrete type of eventInstance
func (s *EventSerializer) Register(eventType string, eventInstance shared.DomainEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := reflect.TypeOf(eventInstance)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	s.registry[eventType] = t
}

// Serialize encodes event as an Envelope
func (s *EventSerializer) Serialize(event shared.DomainEvent) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", event.EventType(), err)
	}
	return json.Marshal(Envelope{
		ID:            event.EventID().String(),
		Type:          event.EventType(),
		AggregateType: event.AggregateType(),
		AggregateID:   event.AggregateID(),
		OwnerID:       event.OwnerID(),
		OccurredAt:    event.OccurredAt(),
		Payload:       payload,
	})
}

// Deserialize decodes an Envelope back into its registered event type
func (s *EventSerializer) Deserialize(data []byte) (shared.DomainEvent, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	s.mu.RLock()
	t, ok := s.registry[env.Type]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown event type: %s", env.Type)
	}

	ptr := reflect.New(t).Interface()
	if err := json.Unmarshal(env.Payload, ptr); err != nil {
		return nil, fmt.Errorf("unmarshal %s payload: %w", env.Type, err)
	}
	event, ok := ptr.(shared.DomainEvent)
	if !ok {
		return nil, fmt.Errorf("%s does not implement DomainEvent", t)
	}
	return event, nil
}

// IsRegistered checks if an event type is registered
func (s *EventSerializer) IsRegistered(eventType string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.registry[eventType]
	return ok
}

// RegisteredTypes returns the registered event types, sorted
func (s *EventSerializer) RegisteredTypes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	types := make([]string, 0, len(s.registry))
	for t := range s.registry {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}
