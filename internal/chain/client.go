package chain

import (
	"context"
	"fmt"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Client captures the subset of ethclient used by the scanner.
type Client interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

// RPCClient is a thin wrapper over ethclient.Client that satisfies Client
// and remembers the chain id fetched at dial time.
type RPCClient struct {
	*ethclient.Client
	chainID uint64
}

// Dial connects to an EVM node and verifies connectivity by fetching the
// chain id. A failure here is an initialization failure for the process.
func Dial(ctx context.Context, rpcURL string) (*RPCClient, error) {
	c, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	id, err := c.ChainID(ctx)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("fetch chain id: %w", err)
	}
	return &RPCClient{Client: c, chainID: id.Uint64()}, nil
}

// SourceChainID reports the chain id observed at dial time.
func (c *RPCClient) SourceChainID() uint64 {
	return c.chainID
}
