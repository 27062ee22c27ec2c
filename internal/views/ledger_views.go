package views

import (
	pkgviews "github.com/coinbox-app/coinbox-api/pkg/views"
)

// WriteRequest is the body of both write endpoints. Pointer fields distinguish
// absent from zero. Ts/OccurredAt exist only to reject clients that try to
// supply their own timestamps.
type WriteRequest struct {
	Amount     *int64  `json:"amount"`
	Memo       *string `json:"memo"`
	Ts         *string `json:"ts"`
	OccurredAt *string `json:"occurredAt"`
}

// WriteResponse returns the created entry plus the owner's post-write grand
// total, read in the same transaction as the insert.
type WriteResponse struct {
	Transaction pkgviews.Transaction `json:"transaction"`
	Total       int64                `json:"total"`
}

// SummaryBucket is one aggregation row: bucket key date, the amount delta
// inside the bucket, and the running total through the bucket's end.
type SummaryBucket struct {
	Date  string `json:"date"`
	Diff  int64  `json:"diff"`
	Total int64  `json:"total"`
}

type SummaryResponse struct {
	Total       int64           `json:"total"` // all-time grand total, not range-bound
	From        string          `json:"from"`
	To          string          `json:"to"`
	Granularity string          `json:"granularity"`
	Buckets     []SummaryBucket `json:"buckets"`
}

// ListQuery is the parsed raw-listing filter; limit arrives already clamped.
type ListQuery struct {
	From   *string
	To     *string
	Cursor *int64
	Limit  int
}

type ListResponse struct {
	Items      []pkgviews.Transaction `json:"items"`
	NextCursor *int64                 `json:"nextCursor"`
}

type MetaResponse struct {
	MinDate *string `json:"minDate"`
}

type DeleteResponse struct {
	Deleted int64 `json:"deleted"`
}

// AccountDeleteResult reports a hard account deletion.
type AccountDeleteResult struct {
	TransactionsDeleted int64 `json:"transactionsDeleted"`
	AccountDeleted      bool  `json:"accountDeleted"`
}
