package payment

import (
	"sync"
)

// Registry maps payment ids to the payment objects of one session.
type Registry struct {
	mu       sync.RWMutex
	payments map[string]*Payment
}

func NewRegistry() *Registry {
	return &Registry{payments: make(map[string]*Payment)}
}

func (r *Registry) Lookup(id string) (*Payment, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.payments[id]
	return p, ok
}

// Register adds p under its id and returns the registered payment. When the id
// is already taken the existing payment wins and is returned.
func (r *Registry) Register(p *Payment) *Payment {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.payments[p.ID()]; ok {
		return existing
	}
	r.payments[p.ID()] = p
	return p
}
