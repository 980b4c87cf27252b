package productstate

import "sync"

// Holder keeps a confirmed snapshot alongside a speculative one. Updates land
// in the speculative slot immediately; Reconcile adopts an authoritative
// snapshot into both slots.
type Holder struct {
	mu          sync.RWMutex
	confirmed   State
	speculative State
	pending     int
}

// NewHolder starts both slots from initial.
func NewHolder(initial State) *Holder {
	return &Holder{confirmed: initial, speculative: initial}
}

// Apply merges u into the speculative slot and returns the new speculative snapshot.
func (h *Holder) Apply(u Update) State {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.speculative = Merge(h.speculative, u)
	h.pending++
	return h.speculative
}

// Reconcile replaces both slots with authoritative and clears pending updates.
func (h *Holder) Reconcile(authoritative State) State {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.confirmed = authoritative
	h.speculative = authoritative
	h.pending = 0
	return authoritative
}

// Commit promotes the speculative snapshot to confirmed.
func (h *Holder) Commit() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.confirmed = h.speculative
	h.pending = 0
	return h.confirmed
}

// Rollback discards speculative updates and returns the confirmed snapshot.
func (h *Holder) Rollback() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.speculative = h.confirmed
	h.pending = 0
	return h.confirmed
}

// Confirmed returns the last authoritative snapshot.
func (h *Holder) Confirmed() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.confirmed
}

// Speculative returns the snapshot including unconfirmed updates.
func (h *Holder) Speculative() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.speculative
}

// Pending reports how many updates were applied since the last reconcile or commit.
func (h *Holder) Pending() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.pending
}
