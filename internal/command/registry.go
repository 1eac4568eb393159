package command

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/kapu/shortlist-go/internal/metrics"
	"github.com/kapu/shortlist-go/internal/recommend"
)

// ErrUnknownAction is returned when a dispatch is attempted for an
// unregistered key.
var ErrUnknownAction = errors.New("unknown action")

// Registry stores action handlers keyed by their canonical names.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Action
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Action),
	}
}

// NewDefaultRegistry registers every session action.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for _, a := range DefaultActions() {
		r.Register(a)
	}
	return r
}

// Register adds a handler. Names are stored lowercase for case-insensitive
// lookups.
func (r *Registry) Register(handler Action) {
	if handler == nil {
		return
	}

	name := strings.ToLower(handler.Name())

	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = handler
}

// Execute runs the handler registered for key against engine.
func (r *Registry) Execute(ctx context.Context, engine *recommend.Engine, key string, params map[string]any) (*Result, error) {
	if r == nil {
		return nil, fmt.Errorf("action registry is nil")
	}

	handler := r.getHandler(key)
	if handler == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, key)
	}
	if params == nil {
		params = map[string]any{}
	}

	result, err := handler.Execute(ctx, engine, params)
	metrics.SessionActions.WithLabelValues(handler.Name(), outcome(err)).Inc()
	return result, err
}

// Count returns the number of registered handlers.
func (r *Registry) Count() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

// Names lists registered actions in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) getHandler(key string) Action {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if key == "" {
		return nil
	}
	if handler, ok := r.handlers[strings.ToLower(strings.TrimSpace(key))]; ok {
		return handler
	}
	return nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, recommend.ErrBusy):
		return "busy"
	default:
		return "error"
	}
}
