package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"infiya.app/relay/core/db/sqlc"
	"infiya.app/relay/internal/model"
)

type preferencesStore struct {
	queries *sqlc.Queries
}

func newPreferencesStore(queries *sqlc.Queries) PreferencesStore {
	return &preferencesStore{queries: queries}
}

// Get returns the user's stored preferences, normalized. ErrNotFound when the
// user never saved any.
func (s *preferencesStore) Get(ctx context.Context, userID string) (*model.Preferences, error) {
	row, err := s.queries.GetUserPreferences(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	prefs := model.NormalizePreferences(deref(row.NewsPersonality), deref(row.ContentLength), row.FavoriteTopics)
	return &prefs, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
