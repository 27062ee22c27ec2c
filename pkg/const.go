package pkg

const (
	HeaderTraceId string = "X-Trace-Id"
	HeaderUserId  string = "X-User-Id"
)

const (
	TraceId string = "trace_id"
	UserId  string = "user_id"
)

// TxKind tags a ledger entry as a regular coin movement or a one-time
// initial-balance record.
type TxKind string

const (
	TxKindNormal TxKind = "normal"
	TxKindInit   TxKind = "init"
)

// NormalAmounts are the only denominations accepted for TxKindNormal entries.
var NormalAmounts = []int64{500, -500, 1, -1}

const (
	// InitAmountMax bounds TxKindInit amounts; the lower bound is zero.
	InitAmountMax int64 = 10_000_000
	// MemoMaxLen is the longest memo the store accepts.
	MemoMaxLen int = 100
	// InitMemoDefault replaces an absent memo on initial-balance writes.
	// Kept from the first version of the API: only a missing memo gets the
	// default, an empty string is stored as-is.
	InitMemoDefault string = "initial balance"
)
