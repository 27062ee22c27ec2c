package models

import (
	"github.com/coinbox-app/coinbox-api/pkg"
	"github.com/coinbox-app/coinbox-api/pkg/views"
)

// Transaction maps to table `transactions`. Rows are immutable once written;
// the only mutations the store knows are insert and bulk delete-by-owner.
type Transaction struct {
	ID         int64
	UserID     int64
	Kind       pkg.TxKind
	Amount     int64
	OccurredAt string // ISO-8601, fixed +09:00 offset, server-assigned
	Memo       *string
	RecordedAt string // server-assigned at the same instant as OccurredAt
}

func (t Transaction) ToView() views.Transaction {
	return views.Transaction{
		ID:     t.ID,
		Kind:   string(t.Kind),
		Ts:     t.OccurredAt,
		Amount: t.Amount,
		Memo:   t.Memo,
	}
}
