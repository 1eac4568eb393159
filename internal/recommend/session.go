package recommend

import (
	"time"

	"github.com/kapu/shortlist-go/internal/domain"
)

// State is the engine-level generation state.
type State string

const (
	StateIdle       State = "idle"
	StateGenerating State = "generating"
	StateReady      State = "ready"
	StateFailed     State = "failed"
)

// SlotState tracks one displayed recommendation.
type SlotState string

const (
	SlotReady         SlotState = "ready"
	SlotReplacing     SlotState = "replacing"
	SlotReplaceFailed SlotState = "replace_failed"
	SlotRemoved       SlotState = "removed"
)

// Slot keeps its index for the whole batch so reject and accept targets
// stay stable while neighbours change.
type Slot struct {
	Recommendation domain.Recommendation
	State          SlotState
	Notice         string
}

func (s Slot) active() bool {
	return s.State != SlotRemoved
}

// Session is the per-visitor state owned by one Engine.
type Session struct {
	ID           string
	Identity     string
	Category     domain.Category
	SubFilter    string
	PendingQuery string
	Exclusions   *ExclusionList
	Slots        []Slot
	State        State
	Notice       string
	UpdatedAt    time.Time
}

// NewSession starts on category with its default sub-filter.
func NewSession(id string, category domain.Category) *Session {
	if !category.IsValid() {
		category = domain.CategoryBook
	}
	subFilter, _ := domain.ProfileFor(category).ResolveSubFilter("")
	return &Session{
		ID:         id,
		Category:   category,
		SubFilter:  subFilter,
		Exclusions: NewExclusionList(),
		State:      StateIdle,
	}
}

// DisplayedTitles returns titles of slots that are still on screen.
func (s *Session) DisplayedTitles() []string {
	var titles []string
	for _, slot := range s.Slots {
		if slot.active() {
			titles = append(titles, slot.Recommendation.Title)
		}
	}
	return titles
}

// ActiveSlots counts slots not yet accepted.
func (s *Session) ActiveSlots() int {
	n := 0
	for _, slot := range s.Slots {
		if slot.active() {
			n++
		}
	}
	return n
}

// slot returns the addressable slot at index or nil.
func (s *Session) slot(index int) *Slot {
	if index < 0 || index >= len(s.Slots) || !s.Slots[index].active() {
		return nil
	}
	return &s.Slots[index]
}

// switchCategory drops everything tied to the previous category.
func (s *Session) switchCategory(category domain.Category, subFilter string) {
	if category != s.Category {
		s.Exclusions = NewExclusionList()
		s.Slots = nil
		s.PendingQuery = ""
		s.State = StateIdle
		s.Notice = ""
	}
	s.Category = category
	s.SubFilter = subFilter
}

// SlotView is the rendered form of an active slot.
type SlotView struct {
	Index          int                   `json:"index"`
	State          SlotState             `json:"state"`
	Recommendation domain.Recommendation `json:"recommendation"`
	Notice         string                `json:"notice,omitempty"`
}

// View is an immutable snapshot returned by every engine operation.
type View struct {
	SessionID     string          `json:"session_id"`
	Identity      string          `json:"identity,omitempty"`
	Category      domain.Category `json:"category"`
	CategoryLabel string          `json:"category_label"`
	SubFilter     string          `json:"sub_filter,omitempty"`
	SubFilterKind string          `json:"sub_filter_kind"`
	State         State           `json:"state"`
	PendingQuery  string          `json:"pending_query,omitempty"`
	Slots         []SlotView      `json:"slots"`
	Exclusions    []string        `json:"exclusions"`
	Notice        string          `json:"notice,omitempty"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (s *Session) view() View {
	profile := domain.ProfileFor(s.Category)
	v := View{
		SessionID:     s.ID,
		Identity:      s.Identity,
		Category:      s.Category,
		CategoryLabel: profile.Label,
		SubFilter:     s.SubFilter,
		SubFilterKind: string(profile.SubFilter.Kind),
		State:         s.State,
		PendingQuery:  s.PendingQuery,
		Slots:         []SlotView{},
		Exclusions:    s.Exclusions.Titles(),
		Notice:        s.Notice,
		UpdatedAt:     s.UpdatedAt,
	}
	for i, slot := range s.Slots {
		if !slot.active() {
			continue
		}
		v.Slots = append(v.Slots, SlotView{
			Index:          i,
			State:          slot.State,
			Recommendation: slot.Recommendation,
			Notice:         slot.Notice,
		})
	}
	return v
}
