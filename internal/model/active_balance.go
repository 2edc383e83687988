package model

import "math/big"

// ActiveBalance is the current holding state for an (asset, user) pair.
type ActiveBalance struct {
	Balance         *big.Int
	UpdatedAtTs     int64
	UpdatedAtHeight uint64
}

// ZeroActiveBalance returns an empty balance state.
func ZeroActiveBalance() ActiveBalance {
	return ActiveBalance{Balance: big.NewInt(0)}
}

// Clone returns a deep copy.
func (b ActiveBalance) Clone() ActiveBalance {
	out := b
	if b.Balance != nil {
		out.Balance = new(big.Int).Set(b.Balance)
	} else {
		out.Balance = big.NewInt(0)
	}
	return out
}
