package views

// Transaction is the wire shape of a ledger entry.
type Transaction struct {
	ID     int64   `json:"id,string"`
	Kind   string  `json:"type,omitempty"`
	Ts     string  `json:"ts"`
	Amount int64   `json:"amount"`
	Memo   *string `json:"memo"`
}
