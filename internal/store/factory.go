package store

import (
	"infiya.app/relay/core/db/sqlc"
)

type Stores struct {
	queries *sqlc.Queries
}

func NewStores(queries *sqlc.Queries) *Stores {
	return &Stores{queries: queries}
}

func (s *Stores) Chat() ChatStore {
	return newChatStore(s.queries)
}

func (s *Stores) Preferences() PreferencesStore {
	return newPreferencesStore(s.queries)
}
