package event

import (
	"slices"
	"sync"

	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/shared"
)

// HandlerRegistry maps event types to the handlers subscribed to them.
// Handlers are returned in subscription order; wildcard handlers come last.
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[string][]shared.EventHandler
	wildcard []shared.EventHandler
}

// NewHandlerRegistry creates an empty registry
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		handlers: make(map[string][]shared.EventHandler),
	}
}

// Register subscribes handler to eventTypes, or to every event when none are given.
// Registering the same handler twice for a type is a no-op.
func (r *HandlerRegistry) Register(handler shared.EventHandler, eventTypes ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(eventTypes) == 0 {
		r.wildcard = appendUnique(r.wildcard, handler)
		return
	}
	for _, eventType := range eventTypes {
		r.handlers[eventType] = appendUnique(r.handlers[eventType], handler)
	}
}

// Unregister removes handler from every subscription
func (r *HandlerRegistry) Unregister(handler shared.EventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.wildcard = without(r.wildcard, handler)
	for eventType, handlers := range r.handlers {
		remaining := without(handlers, handler)
		if len(remaining) == 0 {
			delete(r.handlers, eventType)
			continue
		}
		r.handlers[eventType] = remaining
	}
}

// GetHandlers returns the handlers for eventType followed by the wildcard handlers
func (r *HandlerRegistry) GetHandlers(eventType string) []shared.EventHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	typed := r.handlers[eventType]
	result := make([]shared.EventHandler, 0, len(typed)+len(r.wildcard))
	result = append(result, typed...)
	for _, h := range r.wildcard {
		result = appendUnique(result, h)
	}
	return result
}

// EventTypes returns the event types with at least one typed subscription, sorted
func (r *HandlerRegistry) EventTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

// Len counts distinct registered handlers
func (r *HandlerRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []shared.EventHandler
	for _, h := range r.wildcard {
		all = appendUnique(all, h)
	}
	for _, handlers := range r.handlers {
		for _, h := range handlers {
			all = appendUnique(all, h)
		}
	}
	return len(all)
}

func appendUnique(handlers []shared.EventHandler, h shared.EventHandler) []shared.EventHandler {
	if slices.Contains(handlers, h) {
		return handlers
	}
	return append(handlers, h)
}

func without(handlers []shared.EventHandler, target shared.EventHandler) []shared.EventHandler {
	return slices.DeleteFunc(slices.Clone(handlers), func(h shared.EventHandler) bool {
		return h == target
	})
}
