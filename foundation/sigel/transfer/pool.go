package transfer

import (
	"sort"
	"sync"
)

// Pool maintains the set of prepared transfers waiting to be embedded in a
// block, keyed by content identity so resubmission of the same transfer is
// a no-op. The pool does not retry anything on its own.
type Pool struct {
	mu   sync.RWMutex
	pool map[string]SignedTransfer
}

// NewPool constructs an empty pending transfer pool.
func NewPool() *Pool {
	return &Pool{
		pool: make(map[string]SignedTransfer),
	}
}

// Count returns the current number of transfers in the pool.
func (p *Pool) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return len(p.pool)
}

// Has reports whether a transfer with the given content identity is pending.
func (p *Pool) Has(contentID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	_, exists := p.pool[contentID]
	return exists
}

// Upsert adds the transfer to the pool, replacing any transfer with the
// same content identity. It returns the new pool size.
func (p *Pool) Upsert(st SignedTransfer) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.pool[st.ContentID()] = st

	return len(p.pool)
}

// Delete removes a transfer from the pool.
func (p *Pool) Delete(st SignedTransfer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.pool, st.ContentID())
}

// Truncate clears all the transfers from the pool.
func (p *Pool) Truncate() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.pool = make(map[string]SignedTransfer)
}

// PickOldest returns up to howMany transfers ordered by creation time.
// Passing -1 returns the entire pool.
func (p *Pool) PickOldest(howMany int) []SignedTransfer {
	p.mu.RLock()
	all := make([]SignedTransfer, 0, len(p.pool))
	for _, st := range p.pool {
		all = append(all, st)
	}
	p.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt != all[j].CreatedAt {
			return all[i].CreatedAt < all[j].CreatedAt
		}
		return all[i].ContentID() < all[j].ContentID()
	})

	if howMany == -1 || howMany > len(all) {
		howMany = len(all)
	}

	return all[:howMany]
}
