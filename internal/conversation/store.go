package conversation

import (
	"time"

	"github.com/patrickmn/go-cache"
)

const DefaultTTL = time.Hour

// Store mantiene el State de cada sesion activa. Las sesiones inactivas expiran tras el TTL.
type Store struct {
	cache *cache.Cache
	ttl   time.Duration
}

func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	cleanup := ttl / 6
	if cleanup < time.Minute {
		cleanup = time.Minute
	}
	return &Store{
		cache: cache.New(ttl, cleanup),
		ttl:   ttl,
	}
}

func sessionKey(userID, chatID string) string {
	return userID + "|" + chatID
}

// GetOrCreate devuelve el State de la sesion, creandolo si no existe, y renueva su TTL.
func (s *Store) GetOrCreate(userID, chatID string) *State {
	key := sessionKey(userID, chatID)
	if x, found := s.cache.Get(key); found {
		st := x.(*State)
		s.cache.Set(key, st, cache.DefaultExpiration)
		return st
	}
	st := NewState(userID, chatID)
	if err := s.cache.Add(key, st, cache.DefaultExpiration); err != nil {
		// Otro caller lo creo entre el Get y el Add.
		if x, found := s.cache.Get(key); found {
			return x.(*State)
		}
		s.cache.Set(key, st, cache.DefaultExpiration)
	}
	return st
}

// Lookup devuelve el State solo si la sesion ya existe.
func (s *Store) Lookup(userID, chatID string) (*State, bool) {
	if x, found := s.cache.Get(sessionKey(userID, chatID)); found {
		return x.(*State), true
	}
	return nil, false
}

func (s *Store) Discard(userID, chatID string) {
	s.cache.Delete(sessionKey(userID, chatID))
}

func (s *Store) Len() int {
	return s.cache.ItemCount()
}
