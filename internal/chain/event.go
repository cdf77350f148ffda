package chain

import (
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// EventName is the bridge event the relay listens for.
const EventName = "TokensLocked"

var (
	// TokensLockedSig is the canonical event signature; its keccak hash
	// is topic0 of every matching log.
	TokensLockedSig     = "TokensLocked(address,address,uint256,uint256)"
	TokensLockedSigHash = crypto.Keccak256Hash([]byte(TokensLockedSig))
)

const tokensLockedABI = `[{"anonymous":false,"inputs":[
  {"indexed":true,"internalType":"address","name":"from","type":"address"},
  {"indexed":true,"internalType":"address","name":"to","type":"address"},
  {"indexed":false,"internalType":"uint256","name":"amount","type":"uint256"},
  {"indexed":true,"internalType":"uint256","name":"destinationChainId","type":"uint256"}],
  "name":"TokensLocked","type":"event"}]`

// LockEvent is a decoded TokensLocked log. Immutable once produced.
type LockEvent struct {
	TxHash             common.Hash
	BlockNumber        uint64
	Sender             common.Address
	Recipient          common.Address
	Amount             *big.Int
	DestinationChainID *big.Int
}

// Decoder filters and decodes TokensLocked logs for one bridge contract.
type Decoder struct {
	address common.Address
	event   abi.Event
}

// NewDecoder builds a decoder bound to the bridge contract address.
func NewDecoder(contract common.Address) (*Decoder, error) {
	parsed, err := abi.JSON(strings.NewReader(tokensLockedABI))
	if err != nil {
		return nil, fmt.Errorf("parse bridge abi: %w", err)
	}
	ev, ok := parsed.Events[EventName]
	if !ok {
		return nil, fmt.Errorf("bridge abi missing %s event", EventName)
	}
	return &Decoder{address: contract, event: ev}, nil
}

// Query builds the log filter for a block window, both bounds inclusive.
func (d *Decoder) Query(from, to uint64) ethereum.FilterQuery {
	return ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{d.address},
		Topics:    [][]common.Hash{{TokensLockedSigHash}},
	}
}

// Decode turns a raw log into a LockEvent. Logs from other contracts or
// with a different topic0 are skipped, not errors.
func (d *Decoder) Decode(lg types.Log) (*LockEvent, bool, error) {
	if lg.Address != d.address {
		return nil, false, nil
	}
	if len(lg.Topics) == 0 || lg.Topics[0] != TokensLockedSigHash {
		return nil, false, nil
	}

	args := map[string]any{}
	indexed, nonIndexed := splitIndexed(d.event.Inputs)
	if err := abi.ParseTopicsIntoMap(args, indexed, lg.Topics[1:]); err != nil {
		return nil, false, fmt.Errorf("parse topics: %w", err)
	}
	if err := nonIndexed.UnpackIntoMap(args, lg.Data); err != nil {
		return nil, false, fmt.Errorf("unpack data: %w", err)
	}

	ev := &LockEvent{
		TxHash:      lg.TxHash,
		BlockNumber: lg.BlockNumber,
	}
	var ok bool
	if ev.Sender, ok = args["from"].(common.Address); !ok {
		return nil, false, fmt.Errorf("log %s: missing from argument", lg.TxHash)
	}
	if ev.Recipient, ok = args["to"].(common.Address); !ok {
		return nil, false, fmt.Errorf("log %s: missing to argument", lg.TxHash)
	}
	if ev.Amount, ok = args["amount"].(*big.Int); !ok {
		return nil, false, fmt.Errorf("log %s: missing amount argument", lg.TxHash)
	}
	if ev.DestinationChainID, ok = args["destinationChainId"].(*big.Int); !ok {
		return nil, false, fmt.Errorf("log %s: missing destinationChainId argument", lg.TxHash)
	}
	return ev, true, nil
}

func splitIndexed(args abi.Arguments) (indexed abi.Arguments, nonIndexed abi.Arguments) {
	for _, a := range args {
		if a.Indexed {
			indexed = append(indexed, a)
		} else {
			nonIndexed = append(nonIndexed, a)
		}
	}
	return indexed, nonIndexed
}
