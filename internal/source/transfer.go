package source

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"balanceScope/internal/model"
)

// TransferTopic is the topic0 of the ERC-20 Transfer(address,address,uint256)
// event.
var TransferTopic = common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")

var zeroAddress = common.Address{}

// NormalizeTransfer converts an ERC-20 Transfer log into a balance event.
// The zero-address side of a mint or burn is left empty so it never enters a
// window. Returns false for logs that are not well-formed transfers.
func NormalizeTransfer(log types.Log, timestampMs int64) (model.BalanceEvent, bool) {
	if len(log.Topics) != 3 || log.Topics[0] != TransferTopic {
		return model.BalanceEvent{}, false
	}

	from := common.BytesToAddress(log.Topics[1].Bytes())
	to := common.BytesToAddress(log.Topics[2].Bytes())
	if from == zeroAddress && to == zeroAddress {
		return model.BalanceEvent{}, false
	}

	ev := model.BalanceEvent{
		AssetID:   strings.ToLower(log.Address.Hex()),
		Amount:    new(big.Int).SetBytes(log.Data),
		Timestamp: timestampMs,
		Height:    log.BlockNumber,
		TxHash:    log.TxHash.Hex(),
		LogIndex:  uint64(log.Index),
	}
	if from != zeroAddress {
		ev.From = strings.ToLower(from.Hex())
	}
	if to != zeroAddress {
		ev.To = strings.ToLower(to.Hex())
	}
	return ev, true
}
