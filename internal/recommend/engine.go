package recommend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kapu/shortlist-go/internal/constants"
	"github.com/kapu/shortlist-go/internal/domain"
	"github.com/kapu/shortlist-go/internal/metrics"
	"github.com/kapu/shortlist-go/internal/prompt"
	"github.com/kapu/shortlist-go/internal/service/history"
	"github.com/kapu/shortlist-go/internal/util"
	apperrors "github.com/kapu/shortlist-go/pkg/errors"
)

var (
	// ErrBusy is returned when another action of the same session is running.
	ErrBusy = errors.New("a generation is already in progress")
	// ErrInvalidSlot is returned for an index that is not on screen.
	ErrInvalidSlot = errors.New("no recommendation at that position")
	// ErrNoQuery is returned for an empty query or a reset without one.
	ErrNoQuery = errors.New("no query to generate from")
	// ErrNoIdentity is returned by library operations before sign-in.
	ErrNoIdentity = errors.New("sign in to use the library")
)

const (
	noticeBatchFailed   = "La génération a échoué. Réessayez dans un instant."
	noticeReplaceFailed = "Impossible de trouver un remplaçant pour le moment."
	noticeSaveFailed    = "Sauvegarde impossible, le titre reste exclu pour cette session."
)

// Generator produces raw model text for a prompt.
type Generator interface {
	GenerateBatch(ctx context.Context, prompt string) (string, error)
	GenerateReplacement(ctx context.Context, prompt string) (string, error)
}

// ImageResolver returns a displayable cover URL for every title.
type ImageResolver interface {
	Resolve(ctx context.Context, title string, category domain.Category) string
	ResolveMany(ctx context.Context, titles []string, category domain.Category) []string
}

// EngineConfig tunes one engine.
type EngineConfig struct {
	DislikeWindow  time.Duration
	FavoriteRating int
	FactInterval   time.Duration
	StoreTimeout   time.Duration
}

// DefaultEngineConfig returns the production defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		DislikeWindow:  constants.GenerationConfig.DislikeWindow,
		FavoriteRating: constants.GenerationConfig.FavoriteRating,
		FactInterval:   constants.GenerationConfig.FactInterval,
		StoreTimeout:   5 * time.Second,
	}
}

// Engine drives one session through the recommendation state machine.
// At most one mutating action runs at a time; others get ErrBusy.
type Engine struct {
	mu      sync.Mutex
	session *Session
	busy    atomic.Bool

	generator Generator
	resolver  ImageResolver
	store     history.Store
	composer  *prompt.Composer
	notifier  Notifier
	cfg       EngineConfig
	logger    *zap.Logger
	now       func() time.Time
}

// EngineDeps groups the collaborators of an Engine. Store may be nil when
// persistence is unavailable.
type EngineDeps struct {
	Generator Generator
	Resolver  ImageResolver
	Store     history.Store
	Composer  *prompt.Composer
	Notifier  Notifier
	Logger    *zap.Logger
}

func NewEngine(session *Session, deps EngineDeps, cfg EngineConfig) *Engine {
	if deps.Notifier == nil {
		deps.Notifier = nopNotifier{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Composer == nil {
		deps.Composer = prompt.NewComposer(nil, "français", "France", deps.Logger)
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 5 * time.Second
	}
	return &Engine{
		session:   session,
		generator: deps.Generator,
		resolver:  deps.Resolver,
		store:     deps.Store,
		composer:  deps.Composer,
		notifier:  deps.Notifier,
		cfg:       cfg,
		logger:    deps.Logger.With(zap.String("session", session.ID)),
		now:       time.Now,
	}
}

// View returns the current snapshot.
func (e *Engine) View() View {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.view()
}

// Busy reports whether an action is running.
func (e *Engine) Busy() bool {
	return e.busy.Load()
}

func (e *Engine) acquire() bool {
	return e.busy.CompareAndSwap(false, true)
}

func (e *Engine) release() {
	e.busy.Store(false)
}

// mutate applies fn under the session lock and publishes the new view.
func (e *Engine) mutate(fn func(s *Session)) View {
	e.mu.Lock()
	fn(e.session)
	e.session.UpdatedAt = e.now()
	v := e.session.view()
	e.mu.Unlock()

	e.notifier.Publish(v.SessionID, Event{Type: EventState, View: &v})
	return v
}

// SubmitQuery replaces the displayed batch with three new recommendations.
func (e *Engine) SubmitQuery(ctx context.Context, query string) (View, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return e.View(), ErrNoQuery
	}
	query = util.TruncateString(query, constants.GenerationConfig.MaxQueryLength)

	if !e.acquire() {
		return e.View(), ErrBusy
	}
	defer e.release()
	return e.generateBatch(ctx, query, "batch"), nil
}

// SurpriseMe runs a batch with the category's discovery query.
func (e *Engine) SurpriseMe(ctx context.Context) (View, error) {
	if !e.acquire() {
		return e.View(), ErrBusy
	}
	defer e.release()

	e.mu.Lock()
	query := domain.ProfileFor(e.session.Category).SurpriseQuery
	e.mu.Unlock()
	return e.generateBatch(ctx, query, "surprise"), nil
}

// ResetAll excludes every displayed title and regenerates for the same query.
func (e *Engine) ResetAll(ctx context.Context) (View, error) {
	if !e.acquire() {
		return e.View(), ErrBusy
	}
	defer e.release()

	e.mu.Lock()
	query := e.session.PendingQuery
	e.mu.Unlock()
	if query == "" {
		return e.View(), ErrNoQuery
	}
	return e.generateBatch(ctx, query, "reset"), nil
}

// startFacts publishes rotating facts until the returned stop is called.
// stop waits for the publisher to exit and may be called more than once.
func (e *Engine) startFacts(ctx context.Context, category domain.Category) (stop func()) {
	factCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		runFacts(factCtx, category, e.cfg.FactInterval, func(fact string) {
			e.notifier.Publish(e.session.ID, Event{Type: EventFact, Fact: fact})
		})
	}()
	return func() {
		cancel()
		<-done
	}
}

// generateBatch runs one full batch. The exclusion list only grows on
// success; a failure restores the previous slots.
func (e *Engine) generateBatch(ctx context.Context, query, kind string) View {
	var (
		prevSlots []Slot
		prevQuery string
		shown     []string
		snapshot  *Session
	)
	e.mutate(func(s *Session) {
		prevSlots = s.Slots
		prevQuery = s.PendingQuery
		shown = s.DisplayedTitles()
		s.Slots = nil
		s.PendingQuery = query
		s.State = StateGenerating
		s.Notice = ""
		snapshot = &Session{
			Identity:   s.Identity,
			Category:   s.Category,
			SubFilter:  s.SubFilter,
			Exclusions: s.Exclusions.Clone(),
		}
	})

	stopFacts := e.startFacts(ctx, snapshot.Category)
	defer stopFacts()

	blocked := snapshot.Exclusions.Clone()
	blocked.AddAll(shown)
	favorites := e.loadTasteContext(ctx, snapshot.Identity, snapshot.Category, blocked)

	text := e.composer.ComposeBatch(prompt.Request{
		Category:   snapshot.Category,
		Query:      query,
		SubFilter:  snapshot.SubFilter,
		Favorites:  favorites,
		Exclusions: blocked.Titles(),
	})

	start := e.now()
	recs, err := e.generateBatchItems(ctx, text, query, blocked)
	if err != nil {
		stopFacts()
		metrics.RecordGeneration(kind, outcomeOf(err), time.Since(start))
		e.logger.Warn("Batch generation failed", zap.String("kind", kind), zap.Error(err))
		return e.mutate(func(s *Session) {
			s.Slots = prevSlots
			if len(prevSlots) > 0 {
				s.PendingQuery = prevQuery
			}
			// the previous batch stays usable
			s.State = StateFailed
			if s.ActiveSlots() > 0 {
				s.State = StateReady
			}
			s.Notice = noticeBatchFailed
		})
	}
	metrics.RecordGeneration(kind, "ok", time.Since(start))

	titles := make([]string, len(recs))
	for i, r := range recs {
		titles[i] = r.Title
	}
	images := e.resolver.ResolveMany(ctx, titles, snapshot.Category)
	stopFacts()

	slots := make([]Slot, len(recs))
	for i, r := range recs {
		r.ImageURL = images[i]
		slots[i] = Slot{Recommendation: r, State: SlotReady}
	}

	return e.mutate(func(s *Session) {
		s.Exclusions.AddAll(shown)
		s.Slots = slots
		s.State = StateReady
	})
}

func (e *Engine) generateBatchItems(ctx context.Context, text, query string, blocked *ExclusionList) ([]domain.Recommendation, error) {
	raw, err := e.generator.GenerateBatch(ctx, text)
	if err != nil {
		return nil, err
	}
	recs, err := ParseBatch(raw, constants.BatchConfig.Size)
	if err != nil {
		return nil, err
	}
	for _, r := range recs {
		if err := checkAllowed(r, query, blocked); err != nil {
			return nil, err
		}
	}
	return recs, nil
}

// Reject excludes the title at index, records a dislike and fills the slot
// with a single replacement.
func (e *Engine) Reject(ctx context.Context, index int) (View, error) {
	if !e.acquire() {
		return e.View(), ErrBusy
	}
	defer e.release()

	var (
		rejected domain.Recommendation
		snapshot *Session
		keep     []string
		query    string
		invalid  bool
	)
	e.mu.Lock()
	slot := e.session.slot(index)
	if slot == nil || slot.State == SlotReplacing {
		invalid = true
	}
	e.mu.Unlock()
	if invalid {
		return e.View(), ErrInvalidSlot
	}

	e.mutate(func(s *Session) {
		slot := s.slot(index)
		rejected = slot.Recommendation
		s.Exclusions.Add(rejected.Title)
		slot.State = SlotReplacing
		slot.Notice = ""
		s.Notice = ""
		for i, other := range s.Slots {
			if i != index && other.active() {
				keep = append(keep, other.Recommendation.Title)
			}
		}
		query = s.PendingQuery
		snapshot = &Session{
			Identity:   s.Identity,
			Category:   s.Category,
			SubFilter:  s.SubFilter,
			Exclusions: s.Exclusions.Clone(),
		}
	})

	if snapshot.Identity != "" && e.store != nil {
		e.recordDislike(ctx, snapshot.Identity, snapshot.Category, rejected.Title)
	}

	blocked := snapshot.Exclusions.Clone()
	e.loadTasteContext(ctx, snapshot.Identity, snapshot.Category, blocked)
	excluded := blocked.Titles()
	// kept titles are listed on their own line but still refused
	blocked.AddAll(keep)

	text := e.composer.ComposeReplacement(prompt.Request{
		Category:   snapshot.Category,
		Query:      query,
		SubFilter:  snapshot.SubFilter,
		Exclusions: excluded,
		Keep:       keep,
	})

	start := e.now()
	rec, err := e.generateReplacement(ctx, text, query, blocked)
	if err != nil {
		metrics.RecordGeneration("replace", outcomeOf(err), time.Since(start))
		e.logger.Warn("Replacement generation failed", zap.Int("slot", index), zap.Error(err))
		return e.mutate(func(s *Session) {
			if slot := s.slot(index); slot != nil {
				slot.State = SlotReplaceFailed
				slot.Notice = noticeReplaceFailed
			}
			s.Notice = noticeReplaceFailed
		}), nil
	}
	metrics.RecordGeneration("replace", "ok", time.Since(start))

	rec.ImageURL = e.resolver.Resolve(ctx, rec.Title, snapshot.Category)
	return e.mutate(func(s *Session) {
		if slot := s.slot(index); slot != nil {
			slot.Recommendation = rec
			slot.State = SlotReady
			slot.Notice = ""
		}
		s.State = StateReady
	}), nil
}

func (e *Engine) generateReplacement(ctx context.Context, text, query string, blocked *ExclusionList) (domain.Recommendation, error) {
	raw, err := e.generator.GenerateReplacement(ctx, text)
	if err != nil {
		return domain.Recommendation{}, err
	}
	rec, err := ParseSingle(raw)
	if err != nil {
		return domain.Recommendation{}, err
	}
	if err := checkAllowed(rec, query, blocked); err != nil {
		return domain.Recommendation{}, err
	}
	return rec, nil
}

// Accept saves the title at index to the library when signed in and
// removes it from the screen.
func (e *Engine) Accept(ctx context.Context, index int) (View, error) {
	if !e.acquire() {
		return e.View(), ErrBusy
	}
	defer e.release()

	var (
		accepted domain.Recommendation
		identity string
		category domain.Category
		invalid  bool
	)
	e.mu.Lock()
	slot := e.session.slot(index)
	if slot == nil || slot.State == SlotReplacing {
		invalid = true
	}
	e.mu.Unlock()
	if invalid {
		return e.View(), ErrInvalidSlot
	}

	v := e.mutate(func(s *Session) {
		slot := s.slot(index)
		accepted = slot.Recommendation
		s.Exclusions.Add(accepted.Title)
		slot.State = SlotRemoved
		s.Notice = ""
		if s.ActiveSlots() == 0 {
			s.State = StateIdle
		}
		identity = s.Identity
		category = s.Category
	})

	if identity == "" || e.store == nil {
		return v, nil
	}

	storeCtx, cancel := context.WithTimeout(ctx, e.cfg.StoreTimeout)
	defer cancel()
	if err := e.store.SaveItem(storeCtx, accepted.ToLibraryEntry(identity, category)); err != nil {
		e.logger.Warn("Failed to save accepted title",
			zap.String("title", accepted.Title),
			zap.Error(err),
		)
		return e.mutate(func(s *Session) { s.Notice = noticeSaveFailed }), nil
	}
	return v, nil
}

// SwitchCategory changes category and sub-filter. A new category clears
// exclusions and the displayed batch.
func (e *Engine) SwitchCategory(category domain.Category, subFilter string) (View, error) {
	if !category.IsValid() {
		return e.View(), apperrors.NewValidationError("unknown category", "category", category)
	}
	resolved, err := domain.ProfileFor(category).ResolveSubFilter(subFilter)
	if err != nil {
		return e.View(), apperrors.NewValidationError(err.Error(), "sub_filter", subFilter)
	}

	if !e.acquire() {
		return e.View(), ErrBusy
	}
	defer e.release()

	return e.mutate(func(s *Session) {
		s.switchCategory(category, resolved)
	}), nil
}

// SetSubFilter changes the sub-filter of the current category.
func (e *Engine) SetSubFilter(subFilter string) (View, error) {
	e.mu.Lock()
	category := e.session.Category
	e.mu.Unlock()
	return e.SwitchCategory(category, subFilter)
}

// SignIn binds an identity for library and dislike persistence.
func (e *Engine) SignIn(identity string) (View, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return e.View(), ErrNoIdentity
	}
	if !e.acquire() {
		return e.View(), ErrBusy
	}
	defer e.release()
	return e.mutate(func(s *Session) { s.Identity = identity }), nil
}

// SignOut drops the identity. Session exclusions are kept.
func (e *Engine) SignOut() (View, error) {
	if !e.acquire() {
		return e.View(), ErrBusy
	}
	defer e.release()
	return e.mutate(func(s *Session) { s.Identity = "" }), nil
}

// Library returns the saved entries of the current category. A read failure
// degrades to an empty view.
func (e *Engine) Library(ctx context.Context, search string) (domain.LibraryView, error) {
	identity, category, err := e.libraryScope()
	if err != nil {
		return domain.LibraryView{}, err
	}

	storeCtx, cancel := context.WithTimeout(ctx, e.cfg.StoreTimeout)
	defer cancel()
	entries, err := e.store.LoadLibrary(storeCtx, identity, category)
	if err != nil {
		e.logger.Warn("Failed to load library", zap.Error(err))
		entries = nil
	}
	return domain.BuildLibraryView(category, entries, search,
		constants.GenerationConfig.FavoritesPinned,
		constants.GenerationConfig.TopRatedLimit,
	), nil
}

// ToggleFavorite flips the favorite flag and returns the new value.
func (e *Engine) ToggleFavorite(ctx context.Context, title string) (bool, error) {
	identity, category, err := e.libraryScope()
	if err != nil {
		return false, err
	}
	storeCtx, cancel := context.WithTimeout(ctx, e.cfg.StoreTimeout)
	defer cancel()
	return e.store.ToggleFavorite(storeCtx, identity, category, title)
}

// SetRating stores a 0..5 rating; 0 clears it.
func (e *Engine) SetRating(ctx context.Context, title string, rating int) error {
	identity, category, err := e.libraryScope()
	if err != nil {
		return err
	}
	storeCtx, cancel := context.WithTimeout(ctx, e.cfg.StoreTimeout)
	defer cancel()
	return e.store.UpdateRating(storeCtx, identity, category, title, rating)
}

// DeleteFromLibrary removes a saved entry.
func (e *Engine) DeleteFromLibrary(ctx context.Context, title string) error {
	identity, category, err := e.libraryScope()
	if err != nil {
		return err
	}
	storeCtx, cancel := context.WithTimeout(ctx, e.cfg.StoreTimeout)
	defer cancel()
	return e.store.DeleteItem(storeCtx, identity, category, title)
}

func (e *Engine) libraryScope() (string, domain.Category, error) {
	e.mu.Lock()
	identity, category := e.session.Identity, e.session.Category
	e.mu.Unlock()
	if identity == "" || e.store == nil {
		return "", "", ErrNoIdentity
	}
	return identity, category, nil
}

// loadTasteContext adds recent dislikes and saved titles to blocked and
// returns the liked titles. Store failures degrade to empty lists.
func (e *Engine) loadTasteContext(ctx context.Context, identity string, category domain.Category, blocked *ExclusionList) []string {
	if identity == "" || e.store == nil {
		return nil
	}
	storeCtx, cancel := context.WithTimeout(ctx, e.cfg.StoreTimeout)
	defer cancel()

	dislikes, err := e.store.LoadRecentDislikes(storeCtx, identity, e.cfg.DislikeWindow)
	if err != nil {
		e.logger.Warn("Failed to load dislikes", zap.Error(err))
	}
	for _, d := range dislikes {
		if d.Category == category {
			blocked.Add(d.Title)
		}
	}

	entries, err := e.store.LoadLibrary(storeCtx, identity, category)
	if err != nil {
		e.logger.Warn("Failed to load library", zap.Error(err))
	}
	var favorites []string
	for _, entry := range entries {
		blocked.Add(entry.Title)
		if entry.IsTasteSignal(e.cfg.FavoriteRating) {
			favorites = append(favorites, entry.Title)
		}
	}
	return favorites
}

func (e *Engine) recordDislike(ctx context.Context, identity string, category domain.Category, title string) {
	storeCtx, cancel := context.WithTimeout(ctx, e.cfg.StoreTimeout)
	defer cancel()
	err := e.store.RecordDislike(storeCtx, domain.DislikeRecord{
		Identity: identity,
		Title:    title,
		Category: category,
	})
	if err != nil {
		e.logger.Warn("Failed to record dislike", zap.String("title", title), zap.Error(err))
	}
}

// checkAllowed rejects a generated title that repeats the query or an
// excluded title.
func checkAllowed(rec domain.Recommendation, query string, blocked *ExclusionList) error {
	if util.TitleKey(rec.Title) == util.TitleKey(query) {
		return apperrors.NewGenerationFormatError(
			fmt.Sprintf("model returned the queried title %q", rec.Title), rec.Title, nil)
	}
	if blocked.Contains(rec.Title) {
		return apperrors.NewGenerationFormatError(
			fmt.Sprintf("model returned excluded title %q", rec.Title), rec.Title, nil)
	}
	return nil
}

func outcomeOf(err error) string {
	var formatErr *apperrors.GenerationFormatError
	if errors.As(err, &formatErr) {
		return "format_error"
	}
	return "transport_error"
}
