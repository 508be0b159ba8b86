package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/ensuro/eth-exporter/internal/metrics"
	"github.com/ensuro/eth-exporter/internal/model"
)

// Options tunes a Client.
type Options struct {
	// LenientHeaders reads only number and timestamp from block headers,
	// for proof-of-authority chains whose headers do not decode as Ethereum headers.
	LenientHeaders bool
	Metrics        *metrics.RPCMetrics
}

// Client wraps go-ethereum RPC and provides helper methods.
type Client struct {
	rpcClient *rpc.Client
	ethClient *ethclient.Client
	opts      Options
}

// NewClient creates a new chain client from the RPC URL.
func NewClient(ctx context.Context, rpcURL string, opts Options) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	return NewClientWithRPC(rpcClient, opts), nil
}

// NewClientWithRPC wraps an already connected RPC client.
func NewClientWithRPC(rpcClient *rpc.Client, opts Options) *Client {
	return &Client{
		rpcClient: rpcClient,
		ethClient: ethclient.NewClient(rpcClient),
		opts:      opts,
	}
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// ChainID returns the chain ID.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	defer c.opts.Metrics.Track("eth_chainId")()
	return c.ethClient.ChainID(ctx)
}

// BlockAt returns the number and timestamp of the block at the commitment level.
func (c *Client) BlockAt(ctx context.Context, level Commitment) (model.Block, error) {
	defer c.opts.Metrics.Track("eth_getBlockByNumber")()

	if c.opts.LenientHeaders {
		return c.lenientBlockAt(ctx, level)
	}

	header, err := c.ethClient.HeaderByNumber(ctx, level.bigInt())
	if err != nil {
		return model.Block{}, fmt.Errorf("get %s block: %w", level, err)
	}
	return model.Block{Number: header.Number.Uint64(), Timestamp: header.Time}, nil
}

type minimalHeader struct {
	Number *hexutil.Big   `json:"number"`
	Time   hexutil.Uint64 `json:"timestamp"`
}

func (c *Client) lenientBlockAt(ctx context.Context, level Commitment) (model.Block, error) {
	var head *minimalHeader
	if err := c.rpcClient.CallContext(ctx, &head, "eth_getBlockByNumber", string(level), false); err != nil {
		return model.Block{}, fmt.Errorf("get %s block: %w", level, err)
	}
	if head == nil || head.Number == nil {
		return model.Block{}, fmt.Errorf("get %s block: %w", level, ethereum.NotFound)
	}
	return model.Block{Number: head.Number.ToInt().Uint64(), Timestamp: uint64(head.Time)}, nil
}

// CallContract performs an eth_call for a contract method.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	defer c.opts.Metrics.Track("eth_call")()
	return c.ethClient.CallContract(ctx, msg, blockNumber)
}
