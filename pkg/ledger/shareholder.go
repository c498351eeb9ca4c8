package ledger

import "sync"

// Shareholder tracks held quantity per security (keyed by ISIN).
//
// Invariant enforced by the matching core: held quantity never drops
// below the total quantity of that shareholder's resting sell orders
// on the same security. The check happens before any sell order is
// accepted or enlarged; this type only does the bookkeeping.
type Shareholder struct {
	ID   int64
	Name string

	mu        sync.Mutex
	positions map[string]int64 // ISIN -> held quantity
}

// NewShareholder creates a shareholder with no positions.
func NewShareholder(id int64, name string) *Shareholder {
	return &Shareholder{ID: id, Name: name, positions: make(map[string]int64)}
}

// Position returns the held quantity on a security.
func (s *Shareholder) Position(isin string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.positions[isin]
}

// Positions returns a copy of all non-zero positions.
func (s *Shareholder) Positions() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(s.positions))
	for isin, qty := range s.positions {
		out[isin] = qty
	}
	return out
}

// HasEnoughPositions reports whether the holding on isin covers amount.
func (s *Shareholder) HasEnoughPositions(isin string, amount int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.positions[isin] >= amount
}

// IncPosition adds traded quantity to the holding (buy-side settlement).
func (s *Shareholder) IncPosition(isin string, amount int64) {
	s.mu.Lock()
	s.positions[isin] += amount
	s.mu.Unlock()
}

// DecPosition removes traded quantity from the holding (sell-side
// settlement). Sufficiency was established when the sell order entered.
func (s *Shareholder) DecPosition(isin string, amount int64) {
	s.mu.Lock()
	s.positions[isin] -= amount
	s.mu.Unlock()
}

// SetPosition overwrites the holding on isin. Used by reference-data
// load and by tests; never called from the matching path.
func (s *Shareholder) SetPosition(isin string, amount int64) {
	s.mu.Lock()
	s.positions[isin] = amount
	s.mu.Unlock()
}
