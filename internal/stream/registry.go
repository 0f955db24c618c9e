package stream

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// Registry guarda los handles de turnos recientes para que los clientes puedan suscribirse por id.
type Registry struct {
	cache *cache.Cache
}

func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Registry{cache: cache.New(ttl, ttl/2)}
}

func (r *Registry) Put(h *Handle) {
	r.cache.Set(h.ID(), h, cache.DefaultExpiration)
}

func (r *Registry) Get(id string) (*Handle, bool) {
	if x, found := r.cache.Get(id); found {
		return x.(*Handle), true
	}
	return nil, false
}

func (r *Registry) Remove(id string) {
	r.cache.Delete(id)
}
