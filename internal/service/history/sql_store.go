package history

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/kapu/shortlist-go/internal/constants"
	"github.com/kapu/shortlist-go/internal/domain"
	"github.com/kapu/shortlist-go/internal/service/database"
	apperrors "github.com/kapu/shortlist-go/pkg/errors"
)

// SQLStore implements Store over Postgres or SQLite. Queries are written with
// '?' placeholders and rebound for Postgres.
type SQLStore struct {
	db     *sql.DB
	driver string
	logger *zap.Logger
	now    func() time.Time
}

func NewSQLStore(db *database.Service, logger *zap.Logger) *SQLStore {
	return &SQLStore{
		db:     db.DB(),
		driver: db.Driver(),
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *SQLStore) LoadLibrary(ctx context.Context, identity string, category domain.Category) ([]domain.LibraryEntry, error) {
	var (
		query string
		args  []any
	)
	if category.IsGame() {
		query = `
			SELECT id, title, studio, rating, is_favorite, created_at
			FROM game_library
			WHERE identity = ?
			ORDER BY created_at DESC, id DESC
		`
		args = []any{identity}
	} else {
		query = `
			SELECT id, title, author, rating, is_favorite, created_at
			FROM media_library
			WHERE identity = ? AND category = ?
			ORDER BY created_at DESC, id DESC
		`
		args = []any{identity, string(category)}
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, apperrors.NewPersistenceError("failed to load library", "load_library", err)
	}
	defer rows.Close()

	entries := make([]domain.LibraryEntry, 0)
	for rows.Next() {
		entry := domain.LibraryEntry{Identity: identity, Category: category}
		if err := rows.Scan(&entry.ID, &entry.Title, &entry.Creator, &entry.Rating, &entry.IsFavorite, &entry.CreatedAt); err != nil {
			return nil, apperrors.NewPersistenceError("failed to scan library entry", "load_library", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewPersistenceError("failed to iterate library", "load_library", err)
	}

	return entries, nil
}

// SaveItem inserts the entry. Saving an existing title is a no-op.
func (s *SQLStore) SaveItem(ctx context.Context, entry domain.LibraryEntry) error {
	if err := validateRating(entry.Rating); err != nil {
		return err
	}
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	var (
		query string
		args  []any
	)
	if entry.Category.IsGame() {
		query = `
			INSERT INTO game_library (identity, title, studio, rating, is_favorite, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (identity, title) DO NOTHING
		`
		args = []any{entry.Identity, entry.Title, entry.Creator, entry.Rating, entry.IsFavorite, createdAt}
	} else {
		query = `
			INSERT INTO media_library (identity, category, title, author, rating, is_favorite, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (identity, category, title) DO NOTHING
		`
		args = []any{entry.Identity, string(entry.Category), entry.Title, entry.Creator, entry.Rating, entry.IsFavorite, createdAt}
	}

	if _, err := s.db.ExecContext(ctx, s.rebind(query), args...); err != nil {
		return apperrors.NewPersistenceError("failed to save library entry", "save_item", err)
	}

	s.logger.Debug("Library entry saved",
		zap.String("category", entry.Category.String()),
		zap.String("title", entry.Title),
	)
	return nil
}

func (s *SQLStore) UpdateRating(ctx context.Context, identity string, category domain.Category, title string, rating int) error {
	if err := validateRating(rating); err != nil {
		return err
	}

	table, where, args := s.entryKey(identity, category, title)
	query := fmt.Sprintf("UPDATE %s SET rating = ? WHERE %s", table, where)

	result, err := s.db.ExecContext(ctx, s.rebind(query), append([]any{rating}, args...)...)
	if err != nil {
		return apperrors.NewPersistenceError("failed to update rating", "update_rating", err)
	}
	return requireAffected(result, "update_rating")
}

func (s *SQLStore) DeleteItem(ctx context.Context, identity string, category domain.Category, title string) error {
	table, where, args := s.entryKey(identity, category, title)
	query := fmt.Sprintf("DELETE FROM %s WHERE %s", table, where)

	result, err := s.db.ExecContext(ctx, s.rebind(query), args...)
	if err != nil {
		return apperrors.NewPersistenceError("failed to delete library entry", "delete_item", err)
	}
	return requireAffected(result, "delete_item")
}

// ToggleFavorite flips the flag and returns its new value.
func (s *SQLStore) ToggleFavorite(ctx context.Context, identity string, category domain.Category, title string) (bool, error) {
	table, where, args := s.entryKey(identity, category, title)
	query := fmt.Sprintf("UPDATE %s SET is_favorite = NOT is_favorite WHERE %s RETURNING is_favorite", table, where)

	var favorite bool
	err := s.db.QueryRowContext(ctx, s.rebind(query), args...).Scan(&favorite)
	if err == sql.ErrNoRows {
		return false, apperrors.NewPersistenceError("library entry not found", "toggle_favorite", ErrEntryNotFound)
	}
	if err != nil {
		return false, apperrors.NewPersistenceError("failed to toggle favorite", "toggle_favorite", err)
	}
	return favorite, nil
}

func (s *SQLStore) RecordDislike(ctx context.Context, record domain.DislikeRecord) error {
	if record.ID == "" {
		record.ID = ulid.Make().String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.now()
	}

	query := `
		INSERT INTO dislikes (id, identity, title, category, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, s.rebind(query),
		record.ID, record.Identity, record.Title, string(record.Category), record.CreatedAt.UTC())
	if err != nil {
		return apperrors.NewPersistenceError("failed to record dislike", "record_dislike", err)
	}
	return nil
}

// LoadRecentDislikes returns the identity's dislikes newer than now-window,
// newest first, across every category.
func (s *SQLStore) LoadRecentDislikes(ctx context.Context, identity string, window time.Duration) ([]domain.DislikeRecord, error) {
	if window <= 0 {
		window = constants.GenerationConfig.DislikeWindow
	}
	since := s.now().Add(-window)

	query := `
		SELECT id, title, category, created_at
		FROM dislikes
		WHERE identity = ? AND created_at >= ?
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, s.rebind(query), identity, since.UTC())
	if err != nil {
		return nil, apperrors.NewPersistenceError("failed to load dislikes", "load_dislikes", err)
	}
	defer rows.Close()

	records := make([]domain.DislikeRecord, 0)
	for rows.Next() {
		record := domain.DislikeRecord{Identity: identity}
		var category string
		if err := rows.Scan(&record.ID, &record.Title, &category, &record.CreatedAt); err != nil {
			return nil, apperrors.NewPersistenceError("failed to scan dislike", "load_dislikes", err)
		}
		record.Category = domain.Category(category)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewPersistenceError("failed to iterate dislikes", "load_dislikes", err)
	}

	return records, nil
}

func (s *SQLStore) entryKey(identity string, category domain.Category, title string) (string, string, []any) {
	if category.IsGame() {
		return "game_library", "identity = ? AND title = ?", []any{identity, title}
	}
	return "media_library", "identity = ? AND category = ? AND title = ?", []any{identity, string(category), title}
}

// rebind rewrites '?' placeholders to $n for Postgres.
func (s *SQLStore) rebind(query string) string {
	if s.driver != database.DriverPostgres {
		return query
	}

	var builder strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			builder.WriteByte('$')
			builder.WriteString(strconv.Itoa(n))
			continue
		}
		builder.WriteRune(r)
	}
	return builder.String()
}

func validateRating(rating int) error {
	if rating < 0 || rating > constants.GenerationConfig.MaxRating {
		return apperrors.NewValidationError(
			fmt.Sprintf("rating must be between 0 and %d", constants.GenerationConfig.MaxRating),
			"rating", rating)
	}
	return nil
}

func requireAffected(result sql.Result, operation string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewPersistenceError("failed to read affected rows", operation, err)
	}
	if affected == 0 {
		return apperrors.NewPersistenceError("library entry not found", operation, ErrEntryNotFound)
	}
	return nil
}
