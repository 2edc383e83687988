package engine

import (
	"context"
	"math/big"

	"go.uber.org/zap"

	"balanceScope/internal/ledger"
	"balanceScope/internal/model"
	"balanceScope/internal/pricing"
)

// Action kinds attached to emitted action records.
const (
	actionTransfer = "transfer"
	actionMint     = "mint"
	actionBurn     = "burn"
)

// Emitter turns a balance-changing event into closed TRANSFER windows and
// ledger updates. Each side of the event with a known user is handled
// independently; a mint or burn has only one side.
type Emitter struct {
	ledger *ledger.Ledger
	valuer valuer
	logger *zap.Logger
}

func NewEmitter(book *ledger.Ledger, oracle *pricing.Oracle, assets map[string]model.AssetMeta, logger *zap.Logger) *Emitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Emitter{
		ledger: book,
		valuer: valuer{oracle: oracle, assets: assets, logger: logger},
		logger: logger,
	}
}

// Apply mutates the ledger for both sides of the event and returns the
// TRANSFER windows it closed plus one action record for the movement itself.
func (e *Emitter) Apply(ctx context.Context, ev model.BalanceEvent) ([]model.HistoryWindow, []model.ActionRecord) {
	amount := ev.Amount
	if amount == nil {
		amount = big.NewInt(0)
	}
	if amount.Sign() < 0 {
		e.logger.Warn("negative event amount, skipping",
			zap.String("asset", ev.AssetID),
			zap.String("tx", ev.TxHash),
		)
		return nil, nil
	}

	var windows []model.HistoryWindow
	if ev.From != "" {
		if w := e.applySide(ctx, ev, ev.From, amount, true); w != nil {
			windows = append(windows, *w)
		}
	}
	if ev.To != "" {
		if w := e.applySide(ctx, ev, ev.To, amount, false); w != nil {
			windows = append(windows, *w)
		}
	}

	action := e.buildAction(ctx, ev, amount)
	if action == nil {
		return windows, nil
	}
	return windows, []model.ActionRecord{*action}
}

// applySide closes the open holding interval for one user and advances the
// ledger. Same-instant updates coalesce: no window, but the balance change
// still applies.
func (e *Emitter) applySide(ctx context.Context, ev model.BalanceEvent, user string, amount *big.Int, debit bool) *model.HistoryWindow {
	prior, existed := e.ledger.Get(ev.AssetID, user)
	if !existed {
		prior = model.ZeroActiveBalance()
	}

	after := new(big.Int)
	if debit {
		after.Sub(prior.Balance, amount)
		if after.Sign() < 0 {
			e.logger.Warn("balance underflow, clamping to zero",
				zap.String("asset", ev.AssetID),
				zap.String("user", user),
				zap.String("balance", prior.Balance.String()),
				zap.String("amount", amount.String()),
				zap.String("tx", ev.TxHash),
			)
			after.SetInt64(0)
		}
	} else {
		after.Add(prior.Balance, amount)
	}

	ts := ev.Timestamp
	if ts < prior.UpdatedAtTs {
		e.logger.Warn("event timestamp behind ledger, coalescing",
			zap.String("asset", ev.AssetID),
			zap.String("user", user),
			zap.Int64("event_ts", ts),
			zap.Int64("ledger_ts", prior.UpdatedAtTs),
		)
		ts = prior.UpdatedAtTs
	}

	var window *model.HistoryWindow
	// A pair seen for the first time has no holding interval to close.
	if existed && ts > prior.UpdatedAtTs {
		price, value := e.valuer.value(ctx, ev.AssetID, prior.Balance, ts)
		window = &model.HistoryWindow{
			AssetID:       ev.AssetID,
			UserID:        user,
			Trigger:       model.TriggerTransfer,
			StartTs:       prior.UpdatedAtTs,
			EndTs:         ts,
			StartHeight:   prior.UpdatedAtHeight,
			EndHeight:     ev.Height,
			TxHash:        ev.TxHash,
			BalanceBefore: prior.Balance.String(),
			BalanceAfter:  after.String(),
			TokenPrice:    price,
			ValueUSD:      value,
		}
	}

	e.ledger.Set(ev.AssetID, user, after, ts, ev.Height)
	return window
}

func (e *Emitter) buildAction(ctx context.Context, ev model.BalanceEvent, amount *big.Int) *model.ActionRecord {
	kind := actionTransfer
	user := ev.From
	switch {
	case ev.From == "" && ev.To == "":
		return nil
	case ev.From == "":
		kind = actionMint
		user = ev.To
	case ev.To == "":
		kind = actionBurn
	}

	price, value := e.valuer.value(ctx, ev.AssetID, amount, ev.Timestamp)
	return &model.ActionRecord{
		AssetID:    ev.AssetID,
		UserID:     user,
		Kind:       kind,
		Timestamp:  ev.Timestamp,
		Height:     ev.Height,
		TxHash:     ev.TxHash,
		Amount:     amount.String(),
		TokenPrice: price,
		ValueUSD:   value,
	}
}
