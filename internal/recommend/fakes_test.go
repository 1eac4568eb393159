package recommend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kapu/shortlist-go/internal/domain"
	"github.com/kapu/shortlist-go/internal/service/history"
	"github.com/kapu/shortlist-go/internal/util"
)

type reply struct {
	text string
	err  error
}

// scriptedGenerator answers prompts in order and remembers them.
type scriptedGenerator struct {
	mu      sync.Mutex
	replies []reply
	prompts []string
	gate    chan struct{}
}

func (g *scriptedGenerator) push(text string) { g.replies = append(g.replies, reply{text: text}) }

func (g *scriptedGenerator) fail(err error) { g.replies = append(g.replies, reply{err: err}) }

func (g *scriptedGenerator) GenerateBatch(ctx context.Context, prompt string) (string, error) {
	return g.answer(ctx, prompt)
}

func (g *scriptedGenerator) GenerateReplacement(ctx context.Context, prompt string) (string, error) {
	return g.answer(ctx, prompt)
}

func (g *scriptedGenerator) answer(ctx context.Context, prompt string) (string, error) {
	if g.gate != nil {
		select {
		case <-g.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	if len(g.replies) == 0 {
		return "", errors.New("no scripted reply")
	}
	r := g.replies[0]
	g.replies = g.replies[1:]
	return r.text, r.err
}

func (g *scriptedGenerator) lastPrompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.prompts) == 0 {
		return ""
	}
	return g.prompts[len(g.prompts)-1]
}

type stubResolver struct{}

func (stubResolver) Resolve(_ context.Context, title string, _ domain.Category) string {
	return "https://img.test/" + util.TitleKey(title)
}

func (r stubResolver) ResolveMany(ctx context.Context, titles []string, c domain.Category) []string {
	out := make([]string, len(titles))
	for i, t := range titles {
		out[i] = r.Resolve(ctx, t, c)
	}
	return out
}

// memoryStore is an in-process history.Store.
type memoryStore struct {
	mu       sync.Mutex
	entries  []domain.LibraryEntry
	dislikes []domain.DislikeRecord
	saveErr  error
	now      time.Time
}

var _ history.Store = (*memoryStore)(nil)

func (m *memoryStore) LoadLibrary(_ context.Context, identity string, category domain.Category) ([]domain.LibraryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.LibraryEntry
	for _, e := range m.entries {
		if e.Identity == identity && e.Category == category {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memoryStore) SaveItem(_ context.Context, entry domain.LibraryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memoryStore) find(identity string, category domain.Category, title string) int {
	for i, e := range m.entries {
		if e.Identity == identity && e.Category == category && e.Title == title {
			return i
		}
	}
	return -1
}

func (m *memoryStore) UpdateRating(_ context.Context, identity string, category domain.Category, title string, rating int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.find(identity, category, title)
	if i < 0 {
		return history.ErrEntryNotFound
	}
	m.entries[i].Rating = rating
	return nil
}

func (m *memoryStore) DeleteItem(_ context.Context, identity string, category domain.Category, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.find(identity, category, title)
	if i < 0 {
		return history.ErrEntryNotFound
	}
	m.entries = append(m.entries[:i], m.entries[i+1:]...)
	return nil
}

func (m *memoryStore) ToggleFavorite(_ context.Context, identity string, category domain.Category, title string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.find(identity, category, title)
	if i < 0 {
		return false, history.ErrEntryNotFound
	}
	m.entries[i].IsFavorite = !m.entries[i].IsFavorite
	return m.entries[i].IsFavorite, nil
}

func (m *memoryStore) RecordDislike(_ context.Context, record domain.DislikeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = m.now
	}
	m.dislikes = append(m.dislikes, record)
	return nil
}

func (m *memoryStore) LoadRecentDislikes(_ context.Context, identity string, window time.Duration) ([]domain.DislikeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := m.now.Add(-window)
	var out []domain.DislikeRecord
	for _, d := range m.dislikes {
		if d.Identity == identity && !d.CreatedAt.Before(cutoff) {
			out = append(out, d)
		}
	}
	return out, nil
}

// recordingNotifier keeps every published event.
type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (n *recordingNotifier) Publish(_ string, ev Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) states() []State {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []State
	for _, ev := range n.events {
		if ev.Type == EventState {
			out = append(out, ev.View.State)
		}
	}
	return out
}

func batchJSON(titles ...string) string {
	items := make([]string, len(titles))
	for i, t := range titles {
		items[i] = fmt.Sprintf(`{"title":%q,"creator":"Auteur %d","badge":"💎 Pépite","description":"Pourquoi %s"}`, t, i, t)
	}
	return "[" + strings.Join(items, ",") + "]"
}

func singleJSON(title string) string {
	return fmt.Sprintf(`{"title":%q,"creator":"X","badge":"🔥 Tendance","description":"Parce que."}`, title)
}

func (n *recordingNotifier) lastEvent() Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.events) == 0 {
		return Event{}
	}
	return n.events[len(n.events)-1]
}

func (n *recordingNotifier) count(typ EventType) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, ev := range n.events {
		if ev.Type == typ {
			c++
		}
	}
	return c
}

// promptLine returns the first prompt line starting with prefix.
func promptLine(prompt, prefix string) string {
	for _, line := range strings.Split(prompt, "\n") {
		if strings.HasPrefix(line, prefix) {
			return line
		}
	}
	return ""
}
