package ledger

import (
	"math/big"
	"sort"

	"balanceScope/internal/model"
)

// Ledger holds the current ActiveBalance per (asset, user) pair. It is a pure
// in-memory holder with a single writer; persistence and valuation live
// elsewhere. The two-level map keeps "all users of an asset" iteration cheap
// for the periodic flusher.
type Ledger struct {
	balances map[string]map[string]model.ActiveBalance
}

func New() *Ledger {
	return &Ledger{balances: make(map[string]map[string]model.ActiveBalance)}
}

// Get returns the balance state for a pair, or false when the pair has never
// been seen.
func (l *Ledger) Get(assetID, userID string) (model.ActiveBalance, bool) {
	users, ok := l.balances[assetID]
	if !ok {
		return model.ActiveBalance{}, false
	}
	balance, ok := users[userID]
	if !ok {
		return model.ActiveBalance{}, false
	}
	return balance.Clone(), true
}

// Set records the balance state for a pair. Entries are never removed: a
// balance may return to zero and later become positive again.
func (l *Ledger) Set(assetID, userID string, balance *big.Int, ts int64, height uint64) {
	users, ok := l.balances[assetID]
	if !ok {
		users = make(map[string]model.ActiveBalance)
		l.balances[assetID] = users
	}
	if balance == nil {
		balance = big.NewInt(0)
	}
	users[userID] = model.ActiveBalance{
		Balance:         new(big.Int).Set(balance),
		UpdatedAtTs:     ts,
		UpdatedAtHeight: height,
	}
}

// ForEach visits every pair in deterministic (asset, user) order. The visited
// state is a copy; mutations must go through Set.
func (l *Ledger) ForEach(fn func(assetID, userID string, balance model.ActiveBalance)) {
	assetIDs := make([]string, 0, len(l.balances))
	for assetID := range l.balances {
		assetIDs = append(assetIDs, assetID)
	}
	sort.Strings(assetIDs)

	for _, assetID := range assetIDs {
		users := l.balances[assetID]
		userIDs := make([]string, 0, len(users))
		for userID := range users {
			userIDs = append(userIDs, userID)
		}
		sort.Strings(userIDs)
		for _, userID := range userIDs {
			fn(assetID, userID, users[userID].Clone())
		}
	}
}

// Len returns the number of tracked pairs.
func (l *Ledger) Len() int {
	total := 0
	for _, users := range l.balances {
		total += len(users)
	}
	return total
}
