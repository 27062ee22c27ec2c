package repositories

import (
	"context"

	"github.com/coinbox-app/coinbox-api/pkg/database"
	"github.com/coinbox-app/coinbox-api/pkg/models"
	"github.com/jackc/pgx/v5"
)

// DaySum is the per-calendar-day amount total inside a queried range. The
// aggregation engine folds these into day/week/month buckets in Go; the SQL
// layer never builds bucket expressions.
type DaySum struct {
	Day string // YYYY-MM-DD
	Sum int64
}

// ListFilter narrows a raw listing. Nil fields are not applied. Limit is the
// exact row cap requested from the store; the caller handles the +1 probe row.
type ListFilter struct {
	From   *string
	To     *string
	Cursor *int64 // exclusive upper bound on id
	Limit  int
}

// TransactionRepository is the Ledger Store access surface. Methods taking a
// pgx.Tx participate in a caller-owned transaction; the rest read through the
// pool directly.
type TransactionRepository interface {
	// Insert appends one entry and returns its store-assigned id.
	Insert(ctx context.Context, tx pgx.Tx, txn models.Transaction) (int64, error)
	// SumAll returns the owner's all-time total inside a write transaction,
	// so the insert and the total it reports are one consistent snapshot.
	SumAll(ctx context.Context, tx pgx.Tx, userID int64) (int64, error)
	// GrandTotal is SumAll on the read path.
	GrandTotal(ctx context.Context, userID int64) (int64, error)
	// SumBefore returns the owner's total strictly before the given date.
	SumBefore(ctx context.Context, userID int64, date string) (int64, error)
	// DaySums returns per-day totals for dates in [from, to], ascending.
	DaySums(ctx context.Context, userID int64, from, to string) ([]DaySum, error)
	// List returns entries newest-first per the filter.
	List(ctx context.Context, userID int64, f ListFilter) ([]models.Transaction, error)
	// MinDate returns the owner's earliest transaction date, or nil.
	MinDate(ctx context.Context, userID int64) (*string, error)
	// DeleteByUser removes all of an owner's entries and reports the count.
	DeleteByUser(ctx context.Context, tx pgx.Tx, userID int64) (int64, error)
}

type TransactionRepositoryImpl struct {
	db *database.DB
}

func NewTransactionRepository(db *database.DB) TransactionRepository {
	return &TransactionRepositoryImpl{db: db}
}

func (r *TransactionRepositoryImpl) Insert(ctx context.Context, tx pgx.Tx, txn models.Transaction) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, `
		INSERT INTO transactions (user_id, kind, amount, occurred_at, memo, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		txn.UserID, txn.Kind, txn.Amount, txn.OccurredAt, txn.Memo, txn.RecordedAt,
	).Scan(&id)
	return id, err
}

func (r *TransactionRepositoryImpl) SumAll(ctx context.Context, tx pgx.Tx, userID int64) (int64, error) {
	var total int64
	err := tx.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE user_id = $1`,
		userID,
	).Scan(&total)
	return total, err
}

func (r *TransactionRepositoryImpl) GrandTotal(ctx context.Context, userID int64) (int64, error) {
	var total int64
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE user_id = $1`,
		userID,
	).Scan(&total)
	return total, err
}

func (r *TransactionRepositoryImpl) SumBefore(ctx context.Context, userID int64, date string) (int64, error) {
	var total int64
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE user_id = $1 AND substr(occurred_at, 1, 10) < $2`,
		userID, date,
	).Scan(&total)
	return total, err
}

func (r *TransactionRepositoryImpl) DaySums(ctx context.Context, userID int64, from, to string) ([]DaySum, error) {
	rows, err := r.db.Query(ctx, `
		SELECT substr(occurred_at, 1, 10) AS day, SUM(amount) AS sum
		FROM transactions
		WHERE user_id = $1 AND substr(occurred_at, 1, 10) BETWEEN $2 AND $3
		GROUP BY 1
		ORDER BY 1`,
		userID, from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sums []DaySum
	for rows.Next() {
		var s DaySum
		if err = rows.Scan(&s.Day, &s.Sum); err != nil {
			return nil, err
		}
		sums = append(sums, s)
	}
	return sums, rows.Err()
}

func (r *TransactionRepositoryImpl) List(ctx context.Context, userID int64, f ListFilter) ([]models.Transaction, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, kind, amount, occurred_at, memo, recorded_at
		FROM transactions
		WHERE user_id = $1
		  AND ($2::text IS NULL OR substr(occurred_at, 1, 10) >= $2)
		  AND ($3::text IS NULL OR substr(occurred_at, 1, 10) <= $3)
		  AND ($4::bigint IS NULL OR id < $4)
		ORDER BY id DESC
		LIMIT $5`,
		userID, f.From, f.To, f.Cursor, f.Limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err = rows.Scan(&t.ID, &t.UserID, &t.Kind, &t.Amount, &t.OccurredAt, &t.Memo, &t.RecordedAt); err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

func (r *TransactionRepositoryImpl) MinDate(ctx context.Context, userID int64) (*string, error) {
	var minDate *string
	err := r.db.QueryRow(ctx,
		`SELECT MIN(substr(occurred_at, 1, 10)) FROM transactions WHERE user_id = $1`,
		userID,
	).Scan(&minDate)
	return minDate, err
}

func (r *TransactionRepositoryImpl) DeleteByUser(ctx context.Context, tx pgx.Tx, userID int64) (int64, error) {
	tag, err := tx.Exec(ctx, `DELETE FROM transactions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
