package recommend

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kapu/shortlist-go/internal/domain"
	"github.com/kapu/shortlist-go/internal/service/history"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type harness struct {
	engine   *Engine
	gen      *scriptedGenerator
	store    *memoryStore
	notifier *recordingNotifier
}

func newHarness(t *testing.T, category domain.Category, identity string) *harness {
	t.Helper()
	h := &harness{
		gen:      &scriptedGenerator{},
		store:    &memoryStore{now: testNow},
		notifier: &recordingNotifier{},
	}
	session := NewSession("s-1", category)
	session.Identity = identity
	cfg := DefaultEngineConfig()
	cfg.FactInterval = 0
	h.engine = NewEngine(session, EngineDeps{
		Generator: h.gen,
		Resolver:  stubResolver{},
		Store:     h.store,
		Notifier:  h.notifier,
	}, cfg)
	h.engine.now = func() time.Time { return testNow }
	return h
}

func slotTitles(v View) []string {
	var out []string
	for _, s := range v.Slots {
		out = append(out, s.Recommendation.Title)
	}
	return out
}

func TestSubmitQueryFillsThreeSlots(t *testing.T) {
	h := newHarness(t, domain.CategoryBook, "")
	h.gen.push(batchJSON("Hypérion", "Fondation", "Solaris"))

	v, err := h.engine.SubmitQuery(context.Background(), "  Dune  ")
	require.NoError(t, err)

	assert.Equal(t, StateReady, v.State)
	assert.Equal(t, "Dune", v.PendingQuery)
	assert.Equal(t, []string{"Hypérion", "Fondation", "Solaris"}, slotTitles(v))
	for _, s := range v.Slots {
		assert.Equal(t, SlotReady, s.State)
		assert.NotEmpty(t, s.Recommendation.ImageURL)
	}
	// displayed titles are not excluded until acted on
	assert.Empty(t, v.Exclusions)
	assert.Contains(t, h.gen.lastPrompt(), "Dune")
	assert.Equal(t, []State{StateGenerating, StateReady}, h.notifier.states())
}

func TestSubmitQueryRequiresText(t *testing.T) {
	h := newHarness(t, domain.CategoryBook, "")
	_, err := h.engine.SubmitQuery(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrNoQuery)
}

func TestAcceptSavesAndRemovesSlot(t *testing.T) {
	h := newHarness(t, domain.CategoryBook, "alice")
	h.gen.push(batchJSON("Hypérion", "Fondation", "Solaris"))
	_, err := h.engine.SubmitQuery(context.Background(), "Dune")
	require.NoError(t, err)

	v, err := h.engine.Accept(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, []string{"Fondation", "Solaris"}, slotTitles(v))
	assert.Equal(t, 1, v.Slots[0].Index)
	assert.Equal(t, []string{"Hypérion"}, v.Exclusions)

	entries, _ := h.store.LoadLibrary(context.Background(), "alice", domain.CategoryBook)
	require.Len(t, entries, 1)
	assert.Equal(t, "Hypérion", entries[0].Title)
	assert.Equal(t, 0, entries[0].Rating)
	assert.False(t, entries[0].IsFavorite)

	_, err = h.engine.Accept(context.Background(), 0)
	assert.ErrorIs(t, err, ErrInvalidSlot)

	_, _ = h.engine.Accept(context.Background(), 1)
	v, _ = h.engine.Accept(context.Background(), 2)
	assert.Equal(t, StateIdle, v.State)
	assert.Empty(t, v.Slots)
}

func TestAcceptWithoutIdentityStillExcludes(t *testing.T) {
	h := newHarness(t, domain.CategoryMovie, "")
	h.gen.push(batchJSON("Heat", "Collateral", "Thief"))
	_, _ = h.engine.SubmitQuery(context.Background(), "Drive")

	v, err := h.engine.Accept(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"Thief"}, v.Exclusions)
	assert.Empty(t, h.store.entries)
}

func TestAcceptSaveFailureKeepsSessionIntent(t *testing.T) {
	h := newHarness(t, domain.CategoryBook, "alice")
	h.gen.push(batchJSON("A", "B", "C"))
	_, _ = h.engine.SubmitQuery(context.Background(), "Dune")
	h.store.saveErr = errors.New("disk full")

	v, err := h.engine.Accept(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C"}, slotTitles(v))
	assert.Contains(t, v.Exclusions, "B")
	assert.NotEmpty(t, v.Notice)
}

func TestRejectReplacesSlot(t *testing.T) {
	h := newHarness(t, domain.CategoryBook, "alice")
	h.gen.push(batchJSON("Hypérion", "Fondation", "Solaris"))
	h.gen.push(singleJSON("Ubik"))
	_, _ = h.engine.SubmitQuery(context.Background(), "Dune")

	v, err := h.engine.Reject(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, []string{"Hypérion", "Ubik", "Solaris"}, slotTitles(v))
	assert.Equal(t, SlotReady, v.Slots[1].State)
	assert.Equal(t, []string{"Fondation"}, v.Exclusions)

	prompt := h.gen.lastPrompt()
	assert.Contains(t, prompt, `"Fondation"`)
	assert.Contains(t, prompt, "Hypérion")
	assert.Contains(t, prompt, "Solaris")

	require.Len(t, h.store.dislikes, 1)
	assert.Equal(t, "Fondation", h.store.dislikes[0].Title)
	assert.Equal(t, domain.CategoryBook, h.store.dislikes[0].Category)
}

func TestRejectReplacementFailureIsNonFatal(t *testing.T) {
	h := newHarness(t, domain.CategoryBook, "alice")
	h.gen.push(batchJSON("Hypérion", "Fondation", "Solaris"))
	h.gen.fail(errors.New("upstream 503"))
	_, _ = h.engine.SubmitQuery(context.Background(), "Dune")

	v, err := h.engine.Reject(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, SlotReplaceFailed, v.Slots[1].State)
	assert.NotEmpty(t, v.Slots[1].Notice)
	assert.Equal(t, SlotReady, v.Slots[0].State)
	assert.Equal(t, SlotReady, v.Slots[2].State)
	assert.Equal(t, StateReady, v.State)
	assert.Equal(t, []string{"Fondation"}, v.Exclusions)
	assert.Len(t, h.store.dislikes, 1)

	// the failed slot can be rejected again
	h.gen.push(singleJSON("Ubik"))
	v, err = h.engine.Reject(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Ubik", v.Slots[1].Recommendation.Title)
	assert.Equal(t, []string{"Fondation"}, v.Exclusions)
}

func TestRejectRefusesExcludedReplacement(t *testing.T) {
	h := newHarness(t, domain.CategoryBook, "")
	h.gen.push(batchJSON("A", "B", "C"))
	h.gen.push(singleJSON("c"))
	_, _ = h.engine.SubmitQuery(context.Background(), "Dune")

	v, err := h.engine.Reject(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, SlotReplaceFailed, v.Slots[0].State)
}

func TestFailedBatchKeepsPreviousSlots(t *testing.T) {
	h := newHarness(t, domain.CategoryBook, "")
	h.gen.push(batchJSON("A", "B", "C"))
	h.gen.push("je ne sais pas")
	h.gen.fail(errors.New("timeout"))

	before, err := h.engine.SubmitQuery(context.Background(), "Dune")
	require.NoError(t, err)

	for _, query := range []string{"Neuromancien", "Ubik"} {
		v, err := h.engine.SubmitQuery(context.Background(), query)
		require.NoError(t, err)
		assert.Equal(t, StateReady, v.State)
		assert.Equal(t, slotTitles(before), slotTitles(v))
		assert.Equal(t, "Dune", v.PendingQuery)
		assert.Equal(t, before.Exclusions, v.Exclusions)
		assert.NotEmpty(t, v.Notice)
	}
}

func TestActionsAfterFailedBatchStayReady(t *testing.T) {
	h := newHarness(t, domain.CategoryBook, "alice")
	ctx := context.Background()
	h.gen.push(batchJSON("A", "B", "C"))
	h.gen.fail(errors.New("upstream 503"))
	h.gen.push(singleJSON("D"))

	_, err := h.engine.SubmitQuery(ctx, "Dune")
	require.NoError(t, err)
	v, err := h.engine.SubmitQuery(ctx, "Ubik")
	require.NoError(t, err)
	require.Equal(t, StateReady, v.State)

	v, err = h.engine.Reject(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, StateReady, v.State)
	assert.Equal(t, []string{"D", "B", "C"}, slotTitles(v))

	v, err = h.engine.Accept(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, StateReady, v.State)
	assert.Equal(t, StateReady, h.notifier.lastEvent().View.State)
}

func TestFactsStopBeforeFinalState(t *testing.T) {
	for run := 0; run < 20; run++ {
		h := newHarness(t, domain.CategoryBook, "")
		h.engine.cfg.FactInterval = time.Hour
		h.gen.push(batchJSON("A", "B", "C"))
		h.gen.fail(errors.New("timeout"))

		_, err := h.engine.SubmitQuery(context.Background(), "Dune")
		require.NoError(t, err)
		last := h.notifier.lastEvent()
		require.Equal(t, EventState, last.Type)
		assert.Equal(t, StateReady, last.View.State)

		_, err = h.engine.SubmitQuery(context.Background(), "Ubik")
		require.NoError(t, err)
		last = h.notifier.lastEvent()
		require.Equal(t, EventState, last.Type)
		assert.Equal(t, StateReady, last.View.State)
		assert.Equal(t, 2, h.notifier.count(EventFact))
	}
}

func TestReplacementPromptListsKeptTitlesOnce(t *testing.T) {
	h := newHarness(t, domain.CategoryBook, "")
	ctx := context.Background()
	h.gen.push(batchJSON("Hypérion", "Fondation", "Solaris"))
	h.gen.push(singleJSON("Ubik"))
	_, _ = h.engine.SubmitQuery(ctx, "Dune")

	_, err := h.engine.Reject(ctx, 1)
	require.NoError(t, err)

	excluded := promptLine(h.gen.lastPrompt(), "À EXCLURE")
	shown := promptLine(h.gen.lastPrompt(), "DÉJÀ AFFICHÉS")
	assert.Contains(t, excluded, `"Fondation"`)
	assert.NotContains(t, excluded, "Hypérion")
	assert.NotContains(t, excluded, "Solaris")
	assert.Contains(t, shown, `"Hypérion"`)
	assert.Contains(t, shown, `"Solaris"`)
}

func TestRejectStillRefusesKeptTitle(t *testing.T) {
	h := newHarness(t, domain.CategoryBook, "")
	ctx := context.Background()
	h.gen.push(batchJSON("Hypérion", "Fondation", "Solaris"))
	h.gen.push(singleJSON("Solaris"))
	_, _ = h.engine.SubmitQuery(ctx, "Dune")

	v, err := h.engine.Reject(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, SlotReplaceFailed, v.Slots[1].State)
}

func TestBatchRepeatingQueryOrExclusionFails(t *testing.T) {
	h := newHarness(t, domain.CategoryBook, "")
	h.gen.push(batchJSON("dune", "B", "C"))

	v, err := h.engine.SubmitQuery(context.Background(), "Dune")
	require.NoError(t, err)
	assert.Equal(t, StateFailed, v.State)
	assert.Empty(t, v.Slots)
}

func TestExclusionsOnlyGrow(t *testing.T) {
	h := newHarness(t, domain.CategoryAnime, "alice")
	ctx := context.Background()
	h.gen.push(batchJSON("A1", "A2", "A3"))
	h.gen.push(singleJSON("A4"))
	h.gen.push(batchJSON("B1", "B2", "B3"))
	h.gen.fail(errors.New("boom"))
	h.gen.push(batchJSON("C1", "C2", "C3"))

	steps := []func() (View, error){
		func() (View, error) { return h.engine.SubmitQuery(ctx, "Mushishi") },
		func() (View, error) { return h.engine.Reject(ctx, 0) },
		func() (View, error) { return h.engine.Accept(ctx, 1) },
		func() (View, error) { return h.engine.ResetAll(ctx) },
		func() (View, error) { return h.engine.Reject(ctx, 2) },
		func() (View, error) { return h.engine.SurpriseMe(ctx) },
	}

	var prev []string
	var shownBefore []string
	for i, step := range steps {
		v, err := step()
		require.NoError(t, err, "step %d", i)
		for _, title := range prev {
			assert.Contains(t, v.Exclusions, title, "step %d lost %q", i, title)
		}
		prev = v.Exclusions
		if i == 5 {
			for _, title := range shownBefore {
				assert.Contains(t, v.Exclusions, title)
			}
		}
		shownBefore = append(shownBefore, slotTitles(v)...)
	}

	// surprise succeeded, every earlier batch title is now excluded
	final := h.engine.View()
	assert.Equal(t, []string{"C1", "C2", "C3"}, slotTitles(final))
	for _, title := range []string{"A1", "A2", "A3", "A4", "B1", "B2", "B3"} {
		assert.Contains(t, final.Exclusions, title)
	}
}

func TestBusyGuardRejectsConcurrentActions(t *testing.T) {
	h := newHarness(t, domain.CategoryBook, "")
	h.gen.gate = make(chan struct{})
	h.gen.push(batchJSON("A", "B", "C"))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = h.engine.SubmitQuery(context.Background(), "Dune")
	}()

	require.Eventually(t, h.engine.Busy, time.Second, 5*time.Millisecond)

	_, err := h.engine.SubmitQuery(context.Background(), "Autre")
	assert.ErrorIs(t, err, ErrBusy)
	_, err = h.engine.Reject(context.Background(), 0)
	assert.ErrorIs(t, err, ErrBusy)
	_, err = h.engine.SwitchCategory(domain.CategoryMovie, "")
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, StateGenerating, h.engine.View().State)

	close(h.gen.gate)
	wg.Wait()

	v := h.engine.View()
	assert.Equal(t, StateReady, v.State)
	assert.Len(t, h.gen.prompts, 1)
}

func TestTasteContextFromHistory(t *testing.T) {
	h := newHarness(t, domain.CategoryBook, "alice")
	h.store.entries = []domain.LibraryEntry{
		{Identity: "alice", Category: domain.CategoryBook, Title: "Le Seigneur des anneaux", Rating: 5},
		{Identity: "alice", Category: domain.CategoryBook, Title: "Twilight", Rating: 1},
		{Identity: "alice", Category: domain.CategoryMovie, Title: "Alien", Rating: 5},
	}
	h.store.dislikes = []domain.DislikeRecord{
		{Identity: "alice", Title: "Eragon", Category: domain.CategoryBook, CreatedAt: testNow.Add(-24 * time.Hour)},
		{Identity: "alice", Title: "Vieux Refus", Category: domain.CategoryBook, CreatedAt: testNow.Add(-30 * 24 * time.Hour)},
		{Identity: "alice", Title: "Predator", Category: domain.CategoryMovie, CreatedAt: testNow},
	}
	h.gen.push(batchJSON("A", "B", "C"))

	_, err := h.engine.SubmitQuery(context.Background(), "fantasy épique")
	require.NoError(t, err)

	prompt := h.gen.lastPrompt()
	assert.Contains(t, prompt, "Eragon")
	assert.Contains(t, prompt, "Twilight")
	assert.Contains(t, prompt, "Le Seigneur des anneaux")
	assert.NotContains(t, prompt, "Vieux Refus")
	assert.NotContains(t, prompt, "Predator")
	assert.NotContains(t, prompt, "Alien")
}

func TestGeneratedTitleInLibraryIsRejected(t *testing.T) {
	h := newHarness(t, domain.CategoryBook, "alice")
	h.store.entries = []domain.LibraryEntry{
		{Identity: "alice", Category: domain.CategoryBook, Title: "Fondation"},
	}
	h.gen.push(batchJSON("A", "fondation", "C"))

	v, _ := h.engine.SubmitQuery(context.Background(), "Asimov")
	assert.Equal(t, StateFailed, v.State)
}

func TestSwitchCategoryResetsSession(t *testing.T) {
	h := newHarness(t, domain.CategoryBook, "")
	h.gen.push(batchJSON("A", "B", "C"))
	_, _ = h.engine.SubmitQuery(context.Background(), "Dune")
	_, _ = h.engine.Accept(context.Background(), 0)

	v, err := h.engine.SwitchCategory(domain.CategoryBook, "Dark Romance")
	require.NoError(t, err)
	assert.Equal(t, "Dark Romance", v.SubFilter)
	assert.Len(t, v.Slots, 2)
	assert.Equal(t, []string{"A"}, v.Exclusions)

	v, err = h.engine.SwitchCategory(domain.CategoryVideoGame, "")
	require.NoError(t, err)
	assert.Equal(t, StateIdle, v.State)
	assert.Empty(t, v.Slots)
	assert.Empty(t, v.Exclusions)
	assert.Empty(t, v.PendingQuery)
	assert.Equal(t, domain.ProfileFor(domain.CategoryVideoGame).SubFilter.Default, v.SubFilter)

	_, err = h.engine.SwitchCategory(domain.CategoryVideoGame, "Dreamcast")
	assert.Error(t, err)
	_, err = h.engine.SwitchCategory(domain.Category("podcast"), "")
	assert.Error(t, err)
}

func TestResetWithoutQuery(t *testing.T) {
	h := newHarness(t, domain.CategoryBook, "")
	_, err := h.engine.ResetAll(context.Background())
	assert.ErrorIs(t, err, ErrNoQuery)
	assert.False(t, h.engine.Busy())
}

func TestLibraryOperations(t *testing.T) {
	h := newHarness(t, domain.CategoryBook, "")
	ctx := context.Background()

	_, err := h.engine.Library(ctx, "")
	assert.ErrorIs(t, err, ErrNoIdentity)
	_, err = h.engine.SignIn("  ")
	assert.ErrorIs(t, err, ErrNoIdentity)

	v, err := h.engine.SignIn("alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", v.Identity)

	h.gen.push(batchJSON("Hypérion", "Fondation", "Solaris"))
	_, _ = h.engine.SubmitQuery(ctx, "Dune")
	_, _ = h.engine.Accept(ctx, 0)
	_, _ = h.engine.Accept(ctx, 1)

	fav, err := h.engine.ToggleFavorite(ctx, "Hypérion")
	require.NoError(t, err)
	assert.True(t, fav)
	require.NoError(t, h.engine.SetRating(ctx, "Fondation", 4))

	lib, err := h.engine.Library(ctx, "fond")
	require.NoError(t, err)
	assert.Equal(t, 2, lib.Total)
	require.Len(t, lib.Favorites, 1)
	assert.Equal(t, "Hypérion", lib.Favorites[0].Title)
	require.Len(t, lib.Results, 1)
	assert.Equal(t, "Fondation", lib.Results[0].Title)

	require.NoError(t, h.engine.DeleteFromLibrary(ctx, "Fondation"))
	assert.ErrorIs(t, h.engine.DeleteFromLibrary(ctx, "Fondation"), history.ErrEntryNotFound)

	_, err = h.engine.SignOut()
	require.NoError(t, err)
	_, err = h.engine.ToggleFavorite(ctx, "Hypérion")
	assert.ErrorIs(t, err, ErrNoIdentity)
}

func TestRunFactsRotates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var mu sync.Mutex
	var got []string
	done := make(chan struct{})
	go func() {
		runFacts(ctx, domain.CategoryMovie, 5*time.Millisecond, func(f string) {
			mu.Lock()
			got = append(got, f)
			mu.Unlock()
		})
		close(done)
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) >= 2
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	facts := domain.ProfileFor(domain.CategoryMovie).Facts
	assert.Equal(t, facts[0], got[0])
	assert.Equal(t, facts[1], got[1])
}
