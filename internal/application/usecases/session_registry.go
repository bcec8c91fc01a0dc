package usecases

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Orelexa/gardrob/internal/domain/services"
	"github.com/Orelexa/gardrob/internal/domain/valueobjects"
)

const DefaultMaxSessions = 1024

// SessionRegistry hands out one LayerStore per user. The least recently
// used sessions are dropped once the limit is reached; a caller holding a
// dropped store can still finish its operation on it.
type SessionRegistry struct {
	catalog  *valueobjects.PoseCatalog
	sessions *lru.Cache[string, *services.LayerStore]
}

func NewSessionRegistry(catalog *valueobjects.PoseCatalog, maxSessions int) (*SessionRegistry, error) {
	if catalog == nil {
		catalog = valueobjects.DefaultPoseCatalog()
	}
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}

	sessions, err := lru.New[string, *services.LayerStore](maxSessions)
	if err != nil {
		return nil, fmt.Errorf("failed to create session cache: %w", err)
	}

	return &SessionRegistry{catalog: catalog, sessions: sessions}, nil
}

// Get returns the user's session, creating an empty one on first use.
func (r *SessionRegistry) Get(userID string) *services.LayerStore {
	if store, ok := r.sessions.Get(userID); ok {
		return store
	}
	store := services.NewLayerStore(r.catalog)
	if existing, ok, _ := r.sessions.PeekOrAdd(userID, store); ok {
		return existing
	}
	return store
}

func (r *SessionRegistry) Catalog() *valueobjects.PoseCatalog {
	return r.catalog
}

func (r *SessionRegistry) Len() int {
	return r.sessions.Len()
}
