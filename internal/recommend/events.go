package recommend

import (
	"context"
	"time"

	"github.com/kapu/shortlist-go/internal/domain"
)

// EventType names what a subscriber receives.
type EventType string

const (
	EventState EventType = "state"
	EventFact  EventType = "fact"
)

// Event is pushed to live subscribers of a session.
type Event struct {
	Type EventType `json:"type"`
	View *View     `json:"view,omitempty"`
	Fact string    `json:"fact,omitempty"`
}

// Notifier receives engine events. Implementations must not block.
type Notifier interface {
	Publish(sessionID string, ev Event)
}

type nopNotifier struct{}

func (nopNotifier) Publish(string, Event) {}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(sessionID string, ev Event)

func (f NotifierFunc) Publish(sessionID string, ev Event) { f(sessionID, ev) }

// runFacts rotates the category facts until ctx is done.
func runFacts(ctx context.Context, category domain.Category, interval time.Duration, publish func(string)) {
	facts := domain.ProfileFor(category).Facts
	if len(facts) == 0 || interval <= 0 {
		return
	}

	i := 0
	publish(facts[i])
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			i = (i + 1) % len(facts)
			publish(facts[i])
		}
	}
}
