package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"vibevideo/internal/domain"
)

// LedgerRepositoryPG implements domain.LedgerRepository on PostgreSQL. The
// balance row is locked for the duration of a debit so concurrent debits for
// the same user serialize.
type LedgerRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewLedgerRepository creates a new ledger repository.
func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepositoryPG {
	return &LedgerRepositoryPG{pool: pool}
}

// GetBalance returns the running balance for a user. Users without any
// transactions read as zero.
func (r *LedgerRepositoryPG) GetBalance(ctx context.Context, userID string) (*domain.Balance, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT user_id, amount, updated_at FROM credit_balances WHERE user_id = $1;`, userID)
	var b domain.Balance
	if err := row.Scan(&b.UserID, &b.Amount, &b.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &domain.Balance{UserID: userID, Amount: decimal.Zero, UpdatedAt: time.Now().UTC()}, nil
		}
		return nil, err
	}
	return &b, nil
}

// Grant appends a credit transaction and raises the balance.
func (r *LedgerRepositoryPG) Grant(ctx context.Context, userID string, amount decimal.Decimal, description string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
INSERT INTO credit_transactions (id, user_id, job_id, kind, amount, description)
VALUES ($1, $2, NULL, $3, $4, $5);
`, uuid.NewString(), userID, domain.TransactionCredit, amount, description); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO credit_balances (user_id, amount, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (user_id) DO UPDATE SET
    amount = credit_balances.amount + EXCLUDED.amount,
    updated_at = NOW();
`, userID, amount); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// DebitForJob records the debit for a job at most once. The balance row is
// read under FOR UPDATE so the sufficiency check and the decrement are one
// serialized step.
func (r *LedgerRepositoryPG) DebitForJob(ctx context.Context, userID, jobID string, amount decimal.Decimal, description string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx, `
SELECT EXISTS (SELECT 1 FROM credit_transactions WHERE job_id = $1 AND kind = $2);
`, jobID, domain.TransactionDebit).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return domain.ErrDuplicateOperation
	}

	var balance decimal.Decimal
	err = tx.QueryRow(ctx,
		`SELECT amount FROM credit_balances WHERE user_id = $1 FOR UPDATE;`, userID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		balance = decimal.Zero
	} else if err != nil {
		return err
	}

	if balance.LessThan(amount) {
		return domain.ErrInsufficientCredits
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO credit_transactions (id, user_id, job_id, kind, amount, description)
VALUES ($1, $2, $3, $4, $5, $6);
`, uuid.NewString(), userID, jobID, domain.TransactionDebit, amount.Neg(), description); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateOperation
		}
		return err
	}

	if _, err := tx.Exec(ctx, `
UPDATE credit_balances SET amount = amount - $2, updated_at = NOW() WHERE user_id = $1;
`, userID, amount); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// HasDebitForJob reports whether the job already cost the user credits.
func (r *LedgerRepositoryPG) HasDebitForJob(ctx context.Context, jobID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
SELECT EXISTS (SELECT 1 FROM credit_transactions WHERE job_id = $1 AND kind = $2);
`, jobID, domain.TransactionDebit).Scan(&exists)
	return exists, err
}

var _ domain.LedgerRepository = (*LedgerRepositoryPG)(nil)
