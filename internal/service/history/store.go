package history

import (
	"context"
	"errors"
	"time"

	"github.com/kapu/shortlist-go/internal/domain"
)

// ErrEntryNotFound is returned by mutations that address a missing title.
var ErrEntryNotFound = errors.New("library entry not found")

// Store is the persistence contract the engine depends on. Library rows are
// keyed by (identity, category, title); dislikes are append-only.
type Store interface {
	LoadLibrary(ctx context.Context, identity string, category domain.Category) ([]domain.LibraryEntry, error)
	SaveItem(ctx context.Context, entry domain.LibraryEntry) error
	UpdateRating(ctx context.Context, identity string, category domain.Category, title string, rating int) error
	DeleteItem(ctx context.Context, identity string, category domain.Category, title string) error
	ToggleFavorite(ctx context.Context, identity string, category domain.Category, title string) (bool, error)
	RecordDislike(ctx context.Context, record domain.DislikeRecord) error
	LoadRecentDislikes(ctx context.Context, identity string, window time.Duration) ([]domain.DislikeRecord, error)
}
