package model

// Window triggers.
const (
	TriggerTransfer  = "TRANSFER"
	TriggerExhausted = "EXHAUSTED"
)

// HistoryWindow is a closed, valued holding interval for an (asset, user)
// pair. Immutable once emitted.
type HistoryWindow struct {
	AssetID       string
	UserID        string
	Trigger       string
	StartTs       int64
	EndTs         int64
	StartHeight   uint64
	EndHeight     uint64 // 0 when the window has no anchoring transaction
	TxHash        string // set for TRANSFER windows only
	BalanceBefore string
	BalanceAfter  string
	TokenPrice    string
	ValueUSD      string
}

// ActionRecord is a valued one-off balance movement (the transfer itself,
// as opposed to the holding window it closes).
type ActionRecord struct {
	AssetID    string
	UserID     string
	Kind       string
	Timestamp  int64
	Height     uint64
	TxHash     string
	Amount     string
	TokenPrice string
	ValueUSD   string
}
