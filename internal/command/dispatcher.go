package command

import (
	"context"

	"github.com/kapu/shortlist-go/internal/recommend"
)

// ActionEvent is one queued request, as received from a live connection.
type ActionEvent struct {
	Action string         `json:"action"`
	Params map[string]any `json:"params,omitempty"`
}

// Dispatcher runs action events against an engine.
type Dispatcher interface {
	Publish(ctx context.Context, engine *recommend.Engine, events ...ActionEvent) ([]*Result, error)
}

type sequentialDispatcher struct {
	registry *Registry
}

// NewSequentialDispatcher creates a dispatcher that executes events in the
// order they are received and stops at the first error.
func NewSequentialDispatcher(registry *Registry) Dispatcher {
	return &sequentialDispatcher{registry: registry}
}

func (d *sequentialDispatcher) Publish(ctx context.Context, engine *recommend.Engine, events ...ActionEvent) ([]*Result, error) {
	if d == nil || d.registry == nil {
		return nil, nil
	}

	results := make([]*Result, 0, len(events))
	for _, event := range events {
		if event.Action == "" {
			continue
		}

		result, err := d.registry.Execute(ctx, engine, event.Action, cloneParams(event.Params))
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}

func cloneParams(src map[string]any) map[string]any {
	if len(src) == 0 {
		return map[string]any{}
	}
	clone := make(map[string]any, len(src))
	for k, v := range src {
		clone[k] = v
	}
	return clone
}
