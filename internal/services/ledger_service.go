package services

import (
	"context"
	"fmt"
	"time"

	"github.com/coinbox-app/coinbox-api/internal/views"
	"github.com/coinbox-app/coinbox-api/pkg"
	"github.com/coinbox-app/coinbox-api/pkg/models"
	"github.com/coinbox-app/coinbox-api/pkg/period"
	"github.com/coinbox-app/coinbox-api/pkg/repositories"
	pkgviews "github.com/coinbox-app/coinbox-api/pkg/views"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// TxRunner is the transaction boundary the service needs from the database.
// *database.DB satisfies it; tests substitute a fake.
type TxRunner interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error
}

// LedgerService owns the ledger's business rules: validated appends with an
// atomic post-write total, bucketed summaries, cursor listing, and the
// owner-scoped administrative deletes.
type LedgerService interface {
	Append(ctx context.Context, traceID string, userID int64, kind pkg.TxKind, amount *int64, memo *string) (views.WriteResponse, error)
	Summary(ctx context.Context, traceID string, userID int64, from, to string, granularity period.Granularity) (views.SummaryResponse, error)
	List(ctx context.Context, traceID string, userID int64, q views.ListQuery) (views.ListResponse, error)
	Meta(ctx context.Context, traceID string, userID int64) (views.MetaResponse, error)
	Reset(ctx context.Context, traceID string, userID int64) (views.DeleteResponse, error)
	DeleteAccount(ctx context.Context, traceID string, userID int64) (views.AccountDeleteResult, error)
}

type LedgerServiceImpl struct {
	logger   *zap.Logger
	db       TxRunner
	txRepo   repositories.TransactionRepository
	userRepo repositories.UserRepository
}

func NewLedgerService(logger *zap.Logger, db TxRunner, txRepo repositories.TransactionRepository, userRepo repositories.UserRepository) LedgerService {
	return &LedgerServiceImpl{
		logger:   logger,
		db:       db,
		txRepo:   txRepo,
		userRepo: userRepo,
	}
}

var jst = time.FixedZone("JST", 9*60*60)

// nowJST formats the current instant as ISO-8601 with the ledger's fixed
// +09:00 offset. Injectable for tests.
var nowJST = func() string {
	return time.Now().In(jst).Format("2006-01-02T15:04:05.000-07:00")
}

// validateAmount applies the kind-specific amount rule. The database CHECK
// constraint re-enforces it; this is the friendly 400 before the 422 backstop.
func validateAmount(kind pkg.TxKind, amount int64) error {
	switch kind {
	case pkg.TxKindNormal:
		for _, allowed := range pkg.NormalAmounts {
			if amount == allowed {
				return nil
			}
		}
		return pkg.NewAppError(pkg.ErrInvalidInputCode, "amount must be one of 500, -500, 1, -1", nil)
	case pkg.TxKindInit:
		if amount < 0 || amount > pkg.InitAmountMax {
			return pkg.NewAppError(pkg.ErrInvalidInputCode,
				fmt.Sprintf("amount must be an integer in [0, %d]", pkg.InitAmountMax), nil)
		}
		return nil
	default:
		return pkg.NewAppError(pkg.ErrInvalidInputCode, "unknown transaction kind", nil)
	}
}

func (s *LedgerServiceImpl) Append(ctx context.Context, traceID string, userID int64, kind pkg.TxKind, amount *int64, memo *string) (views.WriteResponse, error) {
	var out views.WriteResponse

	if amount == nil {
		return out, pkg.NewAppError(pkg.ErrInvalidInputCode, "amount is required", nil)
	}
	if err := validateAmount(kind, *amount); err != nil {
		return out, err
	}
	if memo != nil && len([]rune(*memo)) > pkg.MemoMaxLen {
		return out, pkg.NewAppError(pkg.ErrInvalidInputCode,
			fmt.Sprintf("memo must be at most %d characters", pkg.MemoMaxLen), nil)
	}
	if kind == pkg.TxKindInit && memo == nil {
		d := pkg.InitMemoDefault
		memo = &d
	}

	ts := nowJST()
	txn := models.Transaction{
		UserID:     userID,
		Kind:       kind,
		Amount:     *amount,
		OccurredAt: ts,
		Memo:       memo,
		RecordedAt: ts,
	}

	// Insert and total read share one transaction: a concurrently observed
	// total never reflects a half-applied write.
	var total int64
	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		id, err := s.txRepo.Insert(ctx, tx, txn)
		if err != nil {
			return err
		}
		txn.ID = id
		total, err = s.txRepo.SumAll(ctx, tx, userID)
		return err
	})
	if err != nil {
		return out, pkg.HandleSQLError(traceID, s.logger, err)
	}

	s.logger.Info("transaction appended",
		zap.String(pkg.TraceId, traceID),
		zap.Int64(pkg.UserId, userID),
		zap.Int64("id", txn.ID),
		zap.String("kind", string(kind)),
		zap.Int64("amount", *amount),
	)
	out = views.WriteResponse{Transaction: txn.ToView(), Total: total}
	return out, nil
}

func (s *LedgerServiceImpl) Summary(ctx context.Context, traceID string, userID int64, from, to string, granularity period.Granularity) (views.SummaryResponse, error) {
	var out views.SummaryResponse

	fromDate, toDate, err := period.ValidateRange(from, to)
	if err != nil {
		return out, pkg.NewAppError(pkg.ErrInvalidInputCode, err.Error(), err)
	}
	resolved, err := period.Resolve(fromDate, toDate, granularity)
	if err != nil {
		return out, pkg.NewAppError(pkg.ErrInvalidInputCode, err.Error(), err)
	}

	grandTotal, err := s.txRepo.GrandTotal(ctx, userID)
	if err != nil {
		return out, pkg.HandleSQLError(traceID, s.logger, err)
	}
	opening, err := s.txRepo.SumBefore(ctx, userID, from)
	if err != nil {
		return out, pkg.HandleSQLError(traceID, s.logger, err)
	}
	daySums, err := s.txRepo.DaySums(ctx, userID, from, to)
	if err != nil {
		return out, pkg.HandleSQLError(traceID, s.logger, err)
	}

	buckets, err := bucketize(resolved, opening, daySums)
	if err != nil {
		return out, pkg.NewAppError(pkg.ErrServerCode, "stored date is malformed", err)
	}

	out = views.SummaryResponse{
		Total:       grandTotal,
		From:        from,
		To:          to,
		Granularity: string(resolved),
		Buckets:     buckets,
	}
	return out, nil
}

// bucketize folds ascending per-day sums into buckets of the resolved
// granularity and threads the running total through them, starting from the
// opening balance. Day sums arrive date-ascending, so bucket keys are
// non-decreasing and a single pass suffices. Buckets without transactions are
// never synthesized.
func bucketize(g period.Granularity, opening int64, daySums []repositories.DaySum) ([]views.SummaryBucket, error) {
	buckets := make([]views.SummaryBucket, 0, len(daySums))
	for _, ds := range daySums {
		day, err := period.ParseDate(ds.Day)
		if err != nil {
			return nil, err
		}
		key := period.BucketKey(g, day).Format(period.DateFormat)
		if n := len(buckets); n > 0 && buckets[n-1].Date == key {
			buckets[n-1].Diff += ds.Sum
			continue
		}
		buckets = append(buckets, views.SummaryBucket{Date: key, Diff: ds.Sum})
	}
	running := opening
	for i := range buckets {
		running += buckets[i].Diff
		buckets[i].Total = running
	}
	return buckets, nil
}

func (s *LedgerServiceImpl) List(ctx context.Context, traceID string, userID int64, q views.ListQuery) (views.ListResponse, error) {
	var out views.ListResponse

	// Fetch one extra row: its presence alone proves another page exists.
	rows, err := s.txRepo.List(ctx, userID, repositories.ListFilter{
		From:   q.From,
		To:     q.To,
		Cursor: q.Cursor,
		Limit:  q.Limit + 1,
	})
	if err != nil {
		return out, pkg.HandleSQLError(traceID, s.logger, err)
	}

	items := rows
	var nextCursor *int64
	if len(rows) > q.Limit {
		items = rows[:q.Limit]
		last := items[len(items)-1].ID
		nextCursor = &last
	}

	out.Items = make([]pkgviews.Transaction, 0, len(items))
	for _, t := range items {
		out.Items = append(out.Items, t.ToView())
	}
	out.NextCursor = nextCursor
	return out, nil
}

func (s *LedgerServiceImpl) Meta(ctx context.Context, traceID string, userID int64) (views.MetaResponse, error) {
	minDate, err := s.txRepo.MinDate(ctx, userID)
	if err != nil {
		return views.MetaResponse{}, pkg.HandleSQLError(traceID, s.logger, err)
	}
	// No data is a null result, not an error.
	return views.MetaResponse{MinDate: minDate}, nil
}

func (s *LedgerServiceImpl) Reset(ctx context.Context, traceID string, userID int64) (views.DeleteResponse, error) {
	var deleted int64
	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		deleted, err = s.txRepo.DeleteByUser(ctx, tx, userID)
		return err
	})
	if err != nil {
		return views.DeleteResponse{}, pkg.HandleSQLError(traceID, s.logger, err)
	}
	s.logger.Info("ledger reset",
		zap.String(pkg.TraceId, traceID),
		zap.Int64(pkg.UserId, userID),
		zap.Int64("deleted", deleted),
	)
	return views.DeleteResponse{Deleted: deleted}, nil
}

func (s *LedgerServiceImpl) DeleteAccount(ctx context.Context, traceID string, userID int64) (views.AccountDeleteResult, error) {
	var out views.AccountDeleteResult
	// Transactions go first so the count can be reported; the FK cascade
	// would otherwise remove them silently with the user row.
	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		deleted, err := s.txRepo.DeleteByUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		out.TransactionsDeleted = deleted
		users, err := s.userRepo.Delete(ctx, tx, userID)
		if err != nil {
			return err
		}
		out.AccountDeleted = users > 0
		return nil
	})
	if err != nil {
		return views.AccountDeleteResult{}, pkg.HandleSQLError(traceID, s.logger, err)
	}
	s.logger.Info("account deleted",
		zap.String(pkg.TraceId, traceID),
		zap.Int64(pkg.UserId, userID),
		zap.Int64("transactions_deleted", out.TransactionsDeleted),
		zap.Bool("account_deleted", out.AccountDeleted),
	)
	return out, nil
}
