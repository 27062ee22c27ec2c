package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/coinbox-app/coinbox-api/internal/views"
	"github.com/coinbox-app/coinbox-api/pkg"
	"github.com/coinbox-app/coinbox-api/pkg/models"
	"github.com/coinbox-app/coinbox-api/pkg/period"
	"github.com/coinbox-app/coinbox-api/pkg/repositories"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeRunner runs the transaction body directly; the fakes below have no
// transactional state to protect.
type fakeRunner struct{}

func (fakeRunner) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return fn(ctx, nil)
}

// fakeTxRepo is an in-memory Ledger Store mirroring the SQL queries of the
// real repository, including the storage-level constraint checks so the
// "store as final authority" path stays testable.
type fakeTxRepo struct {
	nextID int64
	rows   []models.Transaction
	owners map[int64]bool // known users for FK emulation
}

func newFakeTxRepo(owners ...int64) *fakeTxRepo {
	m := make(map[int64]bool, len(owners))
	for _, o := range owners {
		m[o] = true
	}
	return &fakeTxRepo{owners: m}
}

func (f *fakeTxRepo) Insert(_ context.Context, _ pgx.Tx, txn models.Transaction) (int64, error) {
	if !f.owners[txn.UserID] {
		return 0, &fkError{}
	}
	if err := checkRow(txn); err != nil {
		return 0, err
	}
	f.nextID++
	txn.ID = f.nextID
	f.rows = append(f.rows, txn)
	return txn.ID, nil
}

func (f *fakeTxRepo) SumAll(_ context.Context, _ pgx.Tx, userID int64) (int64, error) {
	var total int64
	for _, r := range f.rows {
		if r.UserID == userID {
			total += r.Amount
		}
	}
	return total, nil
}

func (f *fakeTxRepo) GrandTotal(ctx context.Context, userID int64) (int64, error) {
	return f.SumAll(ctx, nil, userID)
}

func (f *fakeTxRepo) SumBefore(_ context.Context, userID int64, date string) (int64, error) {
	var total int64
	for _, r := range f.rows {
		if r.UserID == userID && r.OccurredAt[:10] < date {
			total += r.Amount
		}
	}
	return total, nil
}

func (f *fakeTxRepo) DaySums(_ context.Context, userID int64, from, to string) ([]repositories.DaySum, error) {
	byDay := map[string]int64{}
	for _, r := range f.rows {
		day := r.OccurredAt[:10]
		if r.UserID == userID && day >= from && day <= to {
			byDay[day] += r.Amount
		}
	}
	days := make([]string, 0, len(byDay))
	for d := range byDay {
		days = append(days, d)
	}
	sort.Strings(days)
	sums := make([]repositories.DaySum, 0, len(days))
	for _, d := range days {
		sums = append(sums, repositories.DaySum{Day: d, Sum: byDay[d]})
	}
	return sums, nil
}

func (f *fakeTxRepo) List(_ context.Context, userID int64, flt repositories.ListFilter) ([]models.Transaction, error) {
	matched := make([]models.Transaction, 0)
	for _, r := range f.rows {
		if r.UserID != userID {
			continue
		}
		day := r.OccurredAt[:10]
		if flt.From != nil && day < *flt.From {
			continue
		}
		if flt.To != nil && day > *flt.To {
			continue
		}
		if flt.Cursor != nil && r.ID >= *flt.Cursor {
			continue
		}
		matched = append(matched, r)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })
	if len(matched) > flt.Limit {
		matched = matched[:flt.Limit]
	}
	return matched, nil
}

func (f *fakeTxRepo) MinDate(_ context.Context, userID int64) (*string, error) {
	var minDate *string
	for _, r := range f.rows {
		day := r.OccurredAt[:10]
		if r.UserID == userID && (minDate == nil || day < *minDate) {
			d := day
			minDate = &d
		}
	}
	return minDate, nil
}

func (f *fakeTxRepo) DeleteByUser(_ context.Context, _ pgx.Tx, userID int64) (int64, error) {
	kept := f.rows[:0]
	var deleted int64
	for _, r := range f.rows {
		if r.UserID == userID {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	f.rows = kept
	return deleted, nil
}

// checkRow mirrors the transactions table CHECK constraints.
func checkRow(txn models.Transaction) error {
	ok := false
	switch txn.Kind {
	case pkg.TxKindNormal:
		for _, a := range pkg.NormalAmounts {
			if txn.Amount == a {
				ok = true
			}
		}
	case pkg.TxKindInit:
		ok = txn.Amount >= 0 && txn.Amount <= pkg.InitAmountMax
	}
	if !ok {
		return &checkError{}
	}
	if txn.Memo != nil && len([]rune(*txn.Memo)) > pkg.MemoMaxLen {
		return &checkError{}
	}
	return nil
}

type checkError struct{}

func (*checkError) Error() string { return "check constraint violated" }

type fkError struct{}

func (*fkError) Error() string { return "foreign key violation" }

type fakeUserRepo struct {
	users map[int64]models.User
}

func (f *fakeUserRepo) Create(_ context.Context, _ pgx.Tx, u models.User) (int64, error) {
	return 0, errors.New("not implemented")
}

func (f *fakeUserRepo) FindById(_ context.Context, id int64) (models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return models.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (f *fakeUserRepo) FindByEmail(_ context.Context, email string) (models.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, pgx.ErrNoRows
}

func (f *fakeUserRepo) List(_ context.Context, _ repositories.UserFilter) ([]models.User, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeUserRepo) Delete(_ context.Context, _ pgx.Tx, id int64) (int64, error) {
	if _, ok := f.users[id]; !ok {
		return 0, nil
	}
	delete(f.users, id)
	return 1, nil
}

const testUser int64 = 1

func newService(t *testing.T) (LedgerService, *fakeTxRepo, *fakeUserRepo) {
	t.Helper()
	txRepo := newFakeTxRepo(testUser)
	userRepo := &fakeUserRepo{users: map[int64]models.User{testUser: {ID: testUser, Email: "a@example.com"}}}
	svc := NewLedgerService(zap.NewNop(), fakeRunner{}, txRepo, userRepo)
	return svc, txRepo, userRepo
}

func seed(t *testing.T, repo *fakeTxRepo, userID int64, day string, amount int64) {
	t.Helper()
	memo := "seed"
	_, err := repo.Insert(context.Background(), nil, models.Transaction{
		UserID:     userID,
		Kind:       pkg.TxKindInit,
		Amount:     amount,
		OccurredAt: day + "T12:00:00.000+09:00",
		Memo:       &memo,
		RecordedAt: day + "T12:00:00.000+09:00",
	})
	require.NoError(t, err)
}

// seedNormal inserts a normal-kind entry; amount must be a valid denomination.
func seedNormal(t *testing.T, repo *fakeTxRepo, userID int64, day string, amount int64) {
	t.Helper()
	memo := "seed"
	_, err := repo.Insert(context.Background(), nil, models.Transaction{
		UserID:     userID,
		Kind:       pkg.TxKindNormal,
		Amount:     amount,
		OccurredAt: day + "T12:00:00.000+09:00",
		Memo:       &memo,
		RecordedAt: day + "T12:00:00.000+09:00",
	})
	require.NoError(t, err)
}

func int64p(v int64) *int64 { return &v }
func strp(s string) *string { return &s }

func TestAppend_NormalAcceptsOnlyDenominations(t *testing.T) {
	svc, repo, _ := newService(t)
	ctx := context.Background()

	for _, amount := range []int64{500, -500, 1, -1} {
		out, err := svc.Append(ctx, "t", testUser, pkg.TxKindNormal, int64p(amount), nil)
		require.NoError(t, err, "amount %d", amount)
		assert.Equal(t, amount, out.Transaction.Amount)
	}
	before := len(repo.rows)

	for _, amount := range []int64{0, 100, -100, 501, 2} {
		_, err := svc.Append(ctx, "t", testUser, pkg.TxKindNormal, int64p(amount), nil)
		var appErr pkg.AppError
		require.ErrorAs(t, err, &appErr, "amount %d", amount)
		assert.Equal(t, pkg.ErrInvalidInputCode, appErr.Code)
	}
	assert.Len(t, repo.rows, before, "rejected writes must not change the row count")
}

func TestAppend_InitAmountRange(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	for _, amount := range []int64{0, 1, 10_000_000} {
		_, err := svc.Append(ctx, "t", testUser, pkg.TxKindInit, int64p(amount), nil)
		assert.NoError(t, err, "amount %d", amount)
	}
	for _, amount := range []int64{-1, 10_000_001} {
		_, err := svc.Append(ctx, "t", testUser, pkg.TxKindInit, int64p(amount), nil)
		assert.Error(t, err, "amount %d", amount)
	}
}

func TestAppend_AmountRequired(t *testing.T) {
	svc, _, _ := newService(t)
	_, err := svc.Append(context.Background(), "t", testUser, pkg.TxKindNormal, nil, nil)
	var appErr pkg.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, pkg.ErrInvalidInputCode, appErr.Code)
}

func TestAppend_MemoLength(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	long := strings.Repeat("x", 101)
	_, err := svc.Append(ctx, "t", testUser, pkg.TxKindNormal, int64p(500), &long)
	assert.Error(t, err)

	edge := strings.Repeat("x", 100)
	_, err = svc.Append(ctx, "t", testUser, pkg.TxKindNormal, int64p(500), &edge)
	assert.NoError(t, err)
}

func TestAppend_InitMemoDefault(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	out, err := svc.Append(ctx, "t", testUser, pkg.TxKindInit, int64p(1000), nil)
	require.NoError(t, err)
	require.NotNil(t, out.Transaction.Memo)
	assert.Equal(t, "initial balance", *out.Transaction.Memo)

	// An explicitly empty memo is stored as-is, not defaulted.
	out, err = svc.Append(ctx, "t", testUser, pkg.TxKindInit, int64p(1000), strp(""))
	require.NoError(t, err)
	require.NotNil(t, out.Transaction.Memo)
	assert.Equal(t, "", *out.Transaction.Memo)

	// Normal writes never get the default.
	out, err = svc.Append(ctx, "t", testUser, pkg.TxKindNormal, int64p(500), nil)
	require.NoError(t, err)
	assert.Nil(t, out.Transaction.Memo)
}

func TestAppend_ReturnsPostWriteTotal(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	out, err := svc.Append(ctx, "t", testUser, pkg.TxKindInit, int64p(1000), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), out.Total)

	out, err = svc.Append(ctx, "t", testUser, pkg.TxKindNormal, int64p(-500), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(500), out.Total)
}

func TestAppend_ServerAssignsTimestamps(t *testing.T) {
	orig := nowJST
	nowJST = func() string { return "2024-06-01T09:30:00.000+09:00" }
	defer func() { nowJST = orig }()

	svc, repo, _ := newService(t)
	out, err := svc.Append(context.Background(), "t", testUser, pkg.TxKindNormal, int64p(1), nil)
	require.NoError(t, err)
	assert.Equal(t, "2024-06-01T09:30:00.000+09:00", out.Transaction.Ts)
	assert.Equal(t, "2024-06-01T09:30:00.000+09:00", repo.rows[0].RecordedAt)
}

func TestSummary_RunningTotals(t *testing.T) {
	svc, repo, _ := newService(t)
	ctx := context.Background()

	// History before the range feeds the opening balance.
	seed(t, repo, testUser, "2024-01-10", 10000)
	seedNormal(t, repo, testUser, "2024-01-20", -500)

	// Inside the range.
	seedNormal(t, repo, testUser, "2024-02-01", 500)
	seedNormal(t, repo, testUser, "2024-02-01", 1)
	seedNormal(t, repo, testUser, "2024-02-03", -1)

	// After the range still counts toward the grand total.
	seedNormal(t, repo, testUser, "2024-03-05", 500)

	out, err := svc.Summary(ctx, "t", testUser, "2024-02-01", "2024-02-28", period.Auto)
	require.NoError(t, err)

	assert.Equal(t, "day", out.Granularity)
	assert.Equal(t, int64(10500), out.Total, "grand total spans all history")
	require.Len(t, out.Buckets, 2)

	opening := int64(9500) // 10000 - 500
	assert.Equal(t, "2024-02-01", out.Buckets[0].Date)
	assert.Equal(t, int64(501), out.Buckets[0].Diff)
	assert.Equal(t, opening+501, out.Buckets[0].Total)

	assert.Equal(t, "2024-02-03", out.Buckets[1].Date)
	assert.Equal(t, int64(-1), out.Buckets[1].Diff)
	assert.Equal(t, out.Buckets[0].Total-1, out.Buckets[1].Total)

	// Running-total invariant holds pairwise.
	for i := 1; i < len(out.Buckets); i++ {
		assert.Equal(t, out.Buckets[i-1].Total+out.Buckets[i].Diff, out.Buckets[i].Total)
	}
}

func TestSummary_WeekBuckets(t *testing.T) {
	svc, repo, _ := newService(t)
	ctx := context.Background()

	// 2024-01-03 is a Wednesday, 2024-01-07 a Sunday: both belong to the
	// week of Monday 2024-01-01. 2024-01-08 opens the next week.
	seedNormal(t, repo, testUser, "2024-01-03", 500)
	seedNormal(t, repo, testUser, "2024-01-07", 1)
	seedNormal(t, repo, testUser, "2024-01-08", -1)

	out, err := svc.Summary(ctx, "t", testUser, "2024-01-01", "2024-01-31", period.Week)
	require.NoError(t, err)
	assert.Equal(t, "week", out.Granularity)
	require.Len(t, out.Buckets, 2)

	assert.Equal(t, "2024-01-01", out.Buckets[0].Date)
	assert.Equal(t, int64(501), out.Buckets[0].Diff)
	assert.Equal(t, "2024-01-08", out.Buckets[1].Date)
	assert.Equal(t, int64(-1), out.Buckets[1].Diff)
}

func TestSummary_MonthBuckets(t *testing.T) {
	svc, repo, _ := newService(t)
	ctx := context.Background()

	seedNormal(t, repo, testUser, "2024-01-15", 500)
	seedNormal(t, repo, testUser, "2024-01-31", 500)
	seedNormal(t, repo, testUser, "2024-03-02", -500)

	out, err := svc.Summary(ctx, "t", testUser, "2024-01-01", "2024-12-31", period.Auto)
	require.NoError(t, err)
	assert.Equal(t, "month", out.Granularity)
	require.Len(t, out.Buckets, 2, "February has no data and is not synthesized")

	assert.Equal(t, "2024-01-01", out.Buckets[0].Date)
	assert.Equal(t, int64(1000), out.Buckets[0].Diff)
	assert.Equal(t, "2024-03-01", out.Buckets[1].Date)
	assert.Equal(t, int64(-500), out.Buckets[1].Diff)
	assert.Equal(t, int64(500), out.Buckets[1].Total)
}

func TestSummary_EmptyRange(t *testing.T) {
	svc, repo, _ := newService(t)
	ctx := context.Background()

	seed(t, repo, testUser, "2024-01-10", 7777)

	out, err := svc.Summary(ctx, "t", testUser, "2025-01-01", "2025-01-31", period.Auto)
	require.NoError(t, err)
	assert.Empty(t, out.Buckets)
	assert.Equal(t, int64(7777), out.Total, "grand total still populated from full history")
}

func TestSummary_OwnerScoped(t *testing.T) {
	svc, repo, _ := newService(t)
	repo.owners[2] = true
	ctx := context.Background()

	seed(t, repo, testUser, "2024-01-10", 100)
	seed(t, repo, 2, "2024-01-10", 9999)

	out, err := svc.Summary(ctx, "t", testUser, "2024-01-01", "2024-01-31", period.Auto)
	require.NoError(t, err)
	assert.Equal(t, int64(100), out.Total)
	require.Len(t, out.Buckets, 1)
	assert.Equal(t, int64(100), out.Buckets[0].Diff)
}

func TestSummary_InvalidInputs(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	var appErr pkg.AppError

	_, err := svc.Summary(ctx, "t", testUser, "2024-02-01", "2024-01-01", period.Auto)
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, pkg.ErrInvalidInputCode, appErr.Code)

	_, err = svc.Summary(ctx, "t", testUser, "bad", "2024-01-01", period.Auto)
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, pkg.ErrInvalidInputCode, appErr.Code)

	_, err = svc.Summary(ctx, "t", testUser, "2024-01-01", "2024-01-31", period.Granularity("hour"))
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, pkg.ErrInvalidInputCode, appErr.Code)
}

func TestList_CursorPagination(t *testing.T) {
	svc, repo, _ := newService(t)
	ctx := context.Background()

	for i := 0; i < 51; i++ {
		seedNormal(t, repo, testUser, fmt.Sprintf("2024-01-%02d", i%28+1), 1)
	}

	page, err := svc.List(ctx, "t", testUser, views.ListQuery{Limit: 50})
	require.NoError(t, err)
	require.Len(t, page.Items, 50)
	require.NotNil(t, page.NextCursor)
	assert.Equal(t, page.Items[49].ID, *page.NextCursor, "cursor is the last returned id")

	rest, err := svc.List(ctx, "t", testUser, views.ListQuery{Limit: 50, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, rest.Items, 1)
	assert.Nil(t, rest.NextCursor)
	assert.Less(t, rest.Items[0].ID, *page.NextCursor)
}

func TestList_OrderedNewestFirst(t *testing.T) {
	svc, repo, _ := newService(t)
	ctx := context.Background()

	seedNormal(t, repo, testUser, "2024-01-01", 1)
	seedNormal(t, repo, testUser, "2024-01-02", 500)
	seedNormal(t, repo, testUser, "2024-01-03", -1)

	out, err := svc.List(ctx, "t", testUser, views.ListQuery{Limit: 50})
	require.NoError(t, err)
	require.Len(t, out.Items, 3)
	for i := 1; i < len(out.Items); i++ {
		assert.Greater(t, out.Items[i-1].ID, out.Items[i].ID)
	}
	assert.Nil(t, out.NextCursor)
}

func TestList_DateFilter(t *testing.T) {
	svc, repo, _ := newService(t)
	ctx := context.Background()

	seedNormal(t, repo, testUser, "2024-01-01", 1)
	seedNormal(t, repo, testUser, "2024-01-15", 500)
	seedNormal(t, repo, testUser, "2024-02-01", -1)

	out, err := svc.List(ctx, "t", testUser, views.ListQuery{
		From:  strp("2024-01-10"),
		To:    strp("2024-01-31"),
		Limit: 50,
	})
	require.NoError(t, err)
	require.Len(t, out.Items, 1)
	assert.Equal(t, int64(500), out.Items[0].Amount)
}

func TestMeta(t *testing.T) {
	svc, repo, _ := newService(t)
	ctx := context.Background()

	out, err := svc.Meta(ctx, "t", testUser)
	require.NoError(t, err)
	assert.Nil(t, out.MinDate, "no data reports null, not an error")

	seedNormal(t, repo, testUser, "2024-03-01", 1)
	seedNormal(t, repo, testUser, "2024-01-15", 1)

	out, err = svc.Meta(ctx, "t", testUser)
	require.NoError(t, err)
	require.NotNil(t, out.MinDate)
	assert.Equal(t, "2024-01-15", *out.MinDate)
}

func TestReset_Idempotent(t *testing.T) {
	svc, repo, _ := newService(t)
	ctx := context.Background()

	seedNormal(t, repo, testUser, "2024-01-01", 500)
	seedNormal(t, repo, testUser, "2024-01-02", 1)

	out, err := svc.Reset(ctx, "t", testUser)
	require.NoError(t, err)
	assert.Equal(t, int64(2), out.Deleted)

	out, err = svc.Reset(ctx, "t", testUser)
	require.NoError(t, err)
	assert.Equal(t, int64(0), out.Deleted, "second delete is a no-op, not an error")
	assert.Empty(t, repo.rows)
}

func TestDeleteAccount_Cascades(t *testing.T) {
	svc, repo, users := newService(t)
	ctx := context.Background()

	seedNormal(t, repo, testUser, "2024-01-01", 500)
	seedNormal(t, repo, testUser, "2024-01-02", -500)
	seedNormal(t, repo, testUser, "2024-01-03", 1)

	out, err := svc.DeleteAccount(ctx, "t", testUser)
	require.NoError(t, err)
	assert.Equal(t, int64(3), out.TransactionsDeleted)
	assert.True(t, out.AccountDeleted)
	assert.Empty(t, repo.rows)
	_, err = users.FindById(ctx, testUser)
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestReset_KeepsAccountRow(t *testing.T) {
	svc, repo, users := newService(t)
	ctx := context.Background()

	seedNormal(t, repo, testUser, "2024-01-01", 500)

	_, err := svc.Reset(ctx, "t", testUser)
	require.NoError(t, err)
	assert.Empty(t, repo.rows)
	_, err = users.FindById(ctx, testUser)
	assert.NoError(t, err, "non-hard delete leaves the account row intact")
}
