// credits.go persists the credit ledger. credit_transactions is append-only
// and the balance is always derived from it, so there is no balance row that
// could drift from the log.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Shimizu-Technology/reelforge-api/internal/ledger"
	"github.com/Shimizu-Technology/reelforge-api/internal/models"
	"github.com/Shimizu-Technology/reelforge-api/internal/pipeline"
)

// LoadBook returns the user's derived balance and full transaction log.
// It satisfies ledger.Store.
func (db *DB) LoadBook(ctx context.Context, userID string) (int, []ledger.Transaction, bool, error) {
	var summary struct {
		Balance int `db:"balance"`
		Count   int `db:"count"`
	}
	err := db.GetContext(ctx, &summary,
		`SELECT COALESCE(SUM(amount), 0) AS balance, COUNT(*) AS count
		 FROM credit_transactions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, nil, false, fmt.Errorf("failed to sum credits: %w", err)
	}
	if summary.Count == 0 {
		return 0, nil, false, nil
	}

	var txs []ledger.Transaction
	err = db.SelectContext(ctx, &txs,
		`SELECT id, user_id, action, amount, balance_after, idempotency_key, created_at
		 FROM credit_transactions WHERE user_id = $1
		 ORDER BY created_at ASC`, userID)
	if err != nil {
		return 0, nil, false, fmt.Errorf("failed to load credit transactions: %w", err)
	}
	return summary.Balance, txs, true, nil
}

// InsertTransaction appends tx to the log. Re-inserting an idempotency key
// the user already has is a no-op, which makes replays after a crash safe.
func (db *DB) InsertTransaction(ctx context.Context, tx ledger.Transaction) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO credit_transactions (id, user_id, action, amount, balance_after, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, idempotency_key) DO NOTHING`,
		tx.ID, tx.UserID, tx.Action, tx.Amount, tx.BalanceAfter, tx.IdempotencyKey, tx.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert credit transaction: %w", err)
	}
	return nil
}

// ListTransactions returns one page of the user's transactions, newest first,
// with the total count for pagination.
func (db *DB) ListTransactions(ctx context.Context, userID string, p models.ListParams) ([]ledger.Transaction, int, error) {
	p = p.Normalize()

	var total int
	if err := db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM credit_transactions WHERE user_id = $1`, userID); err != nil {
		return nil, 0, fmt.Errorf("failed to count credit transactions: %w", err)
	}

	var txs []ledger.Transaction
	err := db.SelectContext(ctx, &txs,
		`SELECT id, user_id, action, amount, balance_after, idempotency_key, created_at
		 FROM credit_transactions WHERE user_id = $1
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, p.PerPage, p.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list credit transactions: %w", err)
	}
	return txs, total, nil
}

// TransactionWriter is the insert side of the ledger's persistence.
type TransactionWriter interface {
	InsertTransaction(ctx context.Context, tx ledger.Transaction) error
}

// Recorder writes ledger transactions through a pipeline.Runner so the
// ledger never waits on the database.
type Recorder struct {
	store  TransactionWriter
	runner pipeline.Runner
	log    zerolog.Logger
}

// NewRecorder creates a Recorder. A nil runner starts a goroutine per write.
func NewRecorder(store TransactionWriter, runner pipeline.Runner, log zerolog.Logger) *Recorder {
	if runner == nil {
		runner = pipeline.GoRunner{}
	}
	return &Recorder{store: store, runner: runner, log: log.With().Str("component", "credits").Logger()}
}

// Record queues tx for insertion. It satisfies ledger.Recorder.
func (r *Recorder) Record(tx ledger.Transaction) {
	write := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := r.store.InsertTransaction(ctx, tx); err != nil {
			r.log.Error().Err(err).Str("user_id", tx.UserID).Str("key", tx.IdempotencyKey).Msg("credit transaction not persisted")
		}
	}
	if err := r.runner.Go("credit_tx", write); err != nil {
		// A full queue must not lose money movements; write off-pool instead.
		r.log.Warn().Err(err).Str("key", tx.IdempotencyKey).Msg("worker queue unavailable, writing directly")
		go write(context.Background())
	}
}
