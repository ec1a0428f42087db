// Package ledger keeps each user's credit balance and its append-only
// transaction log.
//
// Go Pattern: Single-writer state. A Book owns its balance behind one mutex
// and every change goes through apply(), which runs a reducer against the
// current state. No caller ever reads the balance, suspends, and writes it
// back later, so concurrent job timers cannot race each other.
//
// Charges are two-phase. A chargeable action first Reserves its price under
// an idempotency key (e.g. "job:<id>:<attempt>"), which holds the credits
// without debiting them. When the work completes the key is Committed and a
// debit transaction is appended; if the work is abandoned the key is
// Released. Committing the same key twice returns the original transaction
// instead of charging again.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Action labels what a transaction paid for.
type Action string

const (
	ActionSignupGrant      Action = "signup_grant"
	ActionTopUp            Action = "top_up"
	ActionVideoGeneration  Action = "video_generation"
	ActionWatermarkRemoval Action = "watermark_removal"
	ActionCaptions         Action = "captions"
	ActionSchedulePost     Action = "schedule_post"
)

// Transaction is one append-only ledger entry. Amount is signed: debits are
// negative, grants positive.
type Transaction struct {
	ID             string    `json:"id" db:"id"`
	UserID         string    `json:"user_id" db:"user_id"`
	Action         Action    `json:"action" db:"action"`
	Amount         int       `json:"amount" db:"amount"`
	BalanceAfter   int       `json:"balance_after" db:"balance_after"`
	IdempotencyKey string    `json:"idempotency_key" db:"idempotency_key"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// Store loads persisted balances. It is consulted once per user, when the
// user's Book is first opened.
type Store interface {
	// LoadBook returns the stored balance and transactions for a user.
	// found is false for a user with no ledger history yet.
	LoadBook(ctx context.Context, userID string) (balance int, txs []Transaction, found bool, err error)
}

// Recorder receives every transaction after it has been applied. It must not
// block; persistence implementations hand the write to a worker.
type Recorder interface {
	Record(tx Transaction)
}

// RecorderFunc adapts a function to the Recorder interface.
type RecorderFunc func(tx Transaction)

// Record calls f(tx).
func (f RecorderFunc) Record(tx Transaction) { f(tx) }

// Ledger hands out one Book per user.
type Ledger struct {
	mu       sync.Mutex
	books    map[string]*Book
	store    Store
	recorder Recorder
	grant    int
	now      func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithStore loads existing balances from s.
func WithStore(s Store) Option {
	return func(l *Ledger) { l.store = s }
}

// WithRecorder forwards every applied transaction to r.
func WithRecorder(r Recorder) Option {
	return func(l *Ledger) { l.recorder = r }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// New creates a Ledger. New users start with startingCredits, recorded as a
// signup grant.
func New(startingCredits int, opts ...Option) *Ledger {
	l := &Ledger{
		books: make(map[string]*Book),
		grant: startingCredits,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Book returns the user's book, loading it from the store the first time.
func (l *Ledger) Book(ctx context.Context, userID string) (*Book, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.books[userID]; ok {
		return b, nil
	}

	b := &Book{
		userID:    userID,
		reserved:  make(map[string]reservation),
		committed: make(map[string]Transaction),
		recorder:  l.recorder,
		now:       l.now,
	}

	found := false
	if l.store != nil {
		balance, txs, ok, err := l.store.LoadBook(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to load ledger for user %s: %w", userID, err)
		}
		if ok {
			found = true
			b.balance = balance
			b.txs = append(b.txs, txs...)
			for _, tx := range txs {
				if tx.IdempotencyKey != "" {
					b.committed[tx.IdempotencyKey] = tx
				}
			}
		}
	}

	if !found && l.grant > 0 {
		if _, err := b.Grant("signup:"+userID, ActionSignupGrant, l.grant); err != nil {
			return nil, err
		}
	}

	l.books[userID] = b
	return b, nil
}

type reservation struct {
	action Action
	amount int
}

// Book is one user's balance, reservations and transaction log.
type Book struct {
	mu        sync.Mutex
	userID    string
	balance   int
	reserved  map[string]reservation
	committed map[string]Transaction
	txs       []Transaction
	recorder  Recorder
	now       func() time.Time
}

// UserID returns the owner of the book.
func (b *Book) UserID() string { return b.userID }

// apply runs fn under the book lock and forwards the resulting transaction,
// if any, to the recorder once the lock is released.
func (b *Book) apply(fn func() (*Transaction, error)) (*Transaction, error) {
	b.mu.Lock()
	tx, err := fn()
	b.mu.Unlock()

	if err == nil && tx != nil && b.recorder != nil {
		b.recorder.Record(*tx)
	}
	return tx, err
}

// appendLocked records a balance change. Caller holds b.mu.
func (b *Book) appendLocked(key string, action Action, amount int) *Transaction {
	b.balance += amount
	tx := Transaction{
		ID:             uuid.New().String(),
		UserID:         b.userID,
		Action:         action,
		Amount:         amount,
		BalanceAfter:   b.balance,
		IdempotencyKey: key,
		CreatedAt:      b.now(),
	}
	b.txs = append(b.txs, tx)
	b.committed[key] = tx
	return &tx
}

func (b *Book) reservedLocked() int {
	total := 0
	for _, r := range b.reserved {
		total += r.amount
	}
	return total
}

// Reserve holds amount credits under key. Reserving a key that is already
// reserved or already committed is a no-op.
func (b *Book) Reserve(key string, action Action, amount int) error {
	if key == "" {
		return ErrKeyRequired
	}
	if amount <= 0 {
		return ErrInvalidAmount
	}
	_, err := b.apply(func() (*Transaction, error) {
		if _, ok := b.committed[key]; ok {
			return nil, nil
		}
		if _, ok := b.reserved[key]; ok {
			return nil, nil
		}
		if available := b.balance - b.reservedLocked(); amount > available {
			return nil, fmt.Errorf("%w: need %d, have %d available", ErrInsufficientCredits, amount, available)
		}
		b.reserved[key] = reservation{action: action, amount: amount}
		return nil, nil
	})
	return err
}

// Commit turns the reservation under key into a debit. A key that was
// already committed returns its original transaction and applied=false.
func (b *Book) Commit(key string) (tx Transaction, applied bool, err error) {
	_, err = b.apply(func() (*Transaction, error) {
		if prev, ok := b.committed[key]; ok {
			tx = prev
			return nil, nil
		}
		r, ok := b.reserved[key]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownReservation, key)
		}
		delete(b.reserved, key)
		applied = true
		t := b.appendLocked(key, r.action, -r.amount)
		tx = *t
		return t, nil
	})
	return tx, applied, err
}

// Release drops the reservation under key. It reports whether a reservation
// was actually held.
func (b *Book) Release(key string) bool {
	released := false
	b.apply(func() (*Transaction, error) {
		if _, ok := b.reserved[key]; ok {
			delete(b.reserved, key)
			released = true
		}
		return nil, nil
	})
	return released
}

// Charge reserves and commits in one step.
func (b *Book) Charge(key string, action Action, amount int) (Transaction, bool, error) {
	if err := b.Reserve(key, action, amount); err != nil {
		return Transaction{}, false, err
	}
	return b.Commit(key)
}

// Grant adds credits. Repeating a key returns the original transaction.
func (b *Book) Grant(key string, action Action, amount int) (Transaction, error) {
	if key == "" {
		return Transaction{}, ErrKeyRequired
	}
	if amount <= 0 {
		return Transaction{}, ErrInvalidAmount
	}
	var out Transaction
	_, err := b.apply(func() (*Transaction, error) {
		if prev, ok := b.committed[key]; ok {
			out = prev
			return nil, nil
		}
		t := b.appendLocked(key, action, amount)
		out = *t
		return t, nil
	})
	return out, err
}

// Balance returns the committed balance.
func (b *Book) Balance() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balance
}

// Available returns the balance minus outstanding reservations.
func (b *Book) Available() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balance - b.reservedLocked()
}

// Reserved returns the total held by outstanding reservations.
func (b *Book) Reserved() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reservedLocked()
}

// IsCommitted reports whether key has been committed.
func (b *Book) IsCommitted(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.committed[key]
	return ok
}

// Transactions returns a copy of the log, oldest first.
func (b *Book) Transactions() []Transaction {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Transaction, len(b.txs))
	copy(out, b.txs)
	return out
}
