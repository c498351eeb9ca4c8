package ledger

import "sync"

// Broker holds the credit balance backing a member firm's buy orders.
// All values are in minor currency units (e.g. Rials): 100 = 1.00.
//
// Credit moves in three ways:
//   - reservation when a buy order rests (active or stop-parked)
//   - payment when a trade settles
//   - refund on delete, update, activation release, or rollback
//
// A broker may serve several securities at once, so every balance
// mutation is guarded by its own mutex. Check-then-debit is exposed as
// the atomic TryDebit so a reservation can never over-commit.
type Broker struct {
	ID   int64
	Name string

	mu     sync.Mutex
	credit int64
}

// NewBroker creates a broker with an opening credit balance.
func NewBroker(id int64, name string, credit int64) *Broker {
	return &Broker{ID: id, Name: name, credit: credit}
}

// Credit returns the current balance.
func (b *Broker) Credit() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.credit
}

// HasEnoughCredit reports whether the balance covers amount.
func (b *Broker) HasEnoughCredit(amount int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.credit >= amount
}

// TryDebit atomically checks and debits amount. It returns false and
// leaves the balance untouched if the balance does not cover it.
func (b *Broker) TryDebit(amount int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.credit < amount {
		return false
	}
	b.credit -= amount
	return true
}

// IncreaseCredit adds amount to the balance (trade proceeds, refunds).
func (b *Broker) IncreaseCredit(amount int64) {
	b.mu.Lock()
	b.credit += amount
	b.mu.Unlock()
}

// DecreaseCredit removes amount from the balance without a sufficiency
// check. Used only on paths where the amount was verified or previously
// credited in the same operation (e.g. rollback of a seller's proceeds).
func (b *Broker) DecreaseCredit(amount int64) {
	b.mu.Lock()
	b.credit -= amount
	b.mu.Unlock()
}
