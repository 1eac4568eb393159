package recommend

import "github.com/kapu/shortlist-go/internal/util"

// ExclusionList is an append-only set of titles compared by folded key.
// Insertion order is kept for prompts.
type ExclusionList struct {
	titles []string
	keys   map[string]struct{}
}

func NewExclusionList(titles ...string) *ExclusionList {
	l := &ExclusionList{keys: make(map[string]struct{})}
	l.AddAll(titles)
	return l
}

// Add records title and reports whether it was new.
func (l *ExclusionList) Add(title string) bool {
	key := util.TitleKey(title)
	if key == "" {
		return false
	}
	if _, ok := l.keys[key]; ok {
		return false
	}
	l.keys[key] = struct{}{}
	l.titles = append(l.titles, title)
	return true
}

func (l *ExclusionList) AddAll(titles []string) {
	for _, t := range titles {
		l.Add(t)
	}
}

func (l *ExclusionList) Contains(title string) bool {
	_, ok := l.keys[util.TitleKey(title)]
	return ok
}

func (l *ExclusionList) Len() int {
	return len(l.titles)
}

// Titles returns a copy in insertion order.
func (l *ExclusionList) Titles() []string {
	out := make([]string, len(l.titles))
	copy(out, l.titles)
	return out
}

// Clone returns an independent copy.
func (l *ExclusionList) Clone() *ExclusionList {
	return NewExclusionList(l.titles...)
}
