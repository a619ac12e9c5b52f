package trader

import (
	"sort"
	"sync"

	"CloudTrader/internal/model"
)

// Registry tracks the monitored position of each market. A market has at
// most one owner at a time.
type Registry struct {
	mu        sync.RWMutex
	positions map[string]model.Position
}

func NewRegistry() *Registry {
	return &Registry{positions: make(map[string]model.Position)}
}

// Claim registers pos and reports whether its market was free.
func (r *Registry) Claim(pos model.Position) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.positions[pos.Market]; taken {
		return false
	}
	r.positions[pos.Market] = pos
	return true
}

// Update replaces the snapshot of a claimed market. Unclaimed markets are
// ignored.
func (r *Registry) Update(pos model.Position) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.positions[pos.Market]; ok {
		r.positions[pos.Market] = pos
	}
}

func (r *Registry) Release(market string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.positions, market)
}

func (r *Registry) Has(market string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.positions[market]
	return ok
}

// Positions returns snapshots of all claimed markets sorted by market.
func (r *Registry) Positions() []model.Position {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Position, 0, len(r.positions))
	for _, p := range r.positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Market < out[j].Market })
	return out
}
