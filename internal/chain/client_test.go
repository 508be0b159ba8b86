package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/ensuro/eth-exporter/internal/metrics"
)

type fakeEth struct {
	poa      bool
	tags     []rpc.BlockNumber
	lastCall rpc.BlockNumberOrHash
}

func (s *fakeEth) ChainId() *hexutil.Big {
	return (*hexutil.Big)(big.NewInt(137))
}

func (s *fakeEth) GetBlockByNumber(number rpc.BlockNumber, full bool) (interface{}, error) {
	s.tags = append(s.tags, number)
	if s.poa {
		// extraData is larger than the 32 byte vanity and difficulty is absent.
		return map[string]interface{}{
			"number":    "0x64",
			"timestamp": "0x6553f100",
			"extraData": hexutil.Encode(make([]byte, 97)),
		}, nil
	}
	return &types.Header{
		Number:     big.NewInt(100),
		Time:       1700000000,
		Difficulty: big.NewInt(0),
	}, nil
}

func (s *fakeEth) Call(args map[string]interface{}, block rpc.BlockNumberOrHash) (hexutil.Bytes, error) {
	s.lastCall = block
	return hexutil.Bytes{0x01, 0x02}, nil
}

func newTestClient(t *testing.T, svc *fakeEth, opts Options) *Client {
	t.Helper()
	server := rpc.NewServer()
	require.NoError(t, server.RegisterName("eth", svc))
	client := NewClientWithRPC(rpc.DialInProc(server), opts)
	t.Cleanup(func() {
		client.Close()
		server.Stop()
	})
	return client
}

func TestParseCommitment(t *testing.T) {
	for input, want := range map[string]Commitment{"": Finalized, "finalized": Finalized, "SAFE": Safe, "latest": Latest} {
		got, err := ParseCommitment(input)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	_, err := ParseCommitment("pending")
	require.Error(t, err)
	require.Equal(t, rpc.FinalizedBlockNumber, Finalized.BlockNumber())
	require.Equal(t, rpc.SafeBlockNumber, Safe.BlockNumber())
}

func TestBlockAtUsesCommitmentTag(t *testing.T) {
	svc := &fakeEth{}
	client := newTestClient(t, svc, Options{})

	block, err := client.BlockAt(context.Background(), Finalized)
	require.NoError(t, err)
	require.EqualValues(t, 100, block.Number)
	require.EqualValues(t, 1700000000, block.Timestamp)

	_, err = client.BlockAt(context.Background(), Safe)
	require.NoError(t, err)
	require.Equal(t, []rpc.BlockNumber{rpc.FinalizedBlockNumber, rpc.SafeBlockNumber}, svc.tags)
}

func TestBlockAtLenientHeaders(t *testing.T) {
	svc := &fakeEth{poa: true}

	strict := newTestClient(t, svc, Options{})
	_, err := strict.BlockAt(context.Background(), Finalized)
	require.Error(t, err)

	lenient := newTestClient(t, svc, Options{LenientHeaders: true})
	block, err := lenient.BlockAt(context.Background(), Finalized)
	require.NoError(t, err)
	require.EqualValues(t, 100, block.Number)
	require.EqualValues(t, 0x6553f100, block.Timestamp)
}

func TestCallContractRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	svc := &fakeEth{}
	client := newTestClient(t, svc, Options{Metrics: metrics.NewRPCMetrics(reg)})

	to := common.HexToAddress("0x000000000000000000000000000000000000000a")
	out, err := client.CallContract(context.Background(), ethereum.CallMsg{To: &to, Data: []byte{0xaa}}, big.NewInt(42))
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0x02}, out)

	number, ok := svc.lastCall.Number()
	require.True(t, ok)
	require.EqualValues(t, 42, number)

	count, err := testutil.GatherAndCount(reg, "rpc_calls_duration_seconds")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

type flakyNode struct {
	failures int
	calls    int
}

func (n *flakyNode) ChainID(context.Context) (*big.Int, error) {
	n.calls++
	if n.calls <= n.failures {
		return nil, errors.New("connection refused")
	}
	return big.NewInt(1), nil
}

func TestWaitReadyRetries(t *testing.T) {
	node := &flakyNode{failures: 2}
	id, err := WaitReady(context.Background(), node, 3, time.Millisecond, nil)
	require.NoError(t, err)
	require.EqualValues(t, 1, id.Int64())
	require.Equal(t, 3, node.calls)

	node = &flakyNode{failures: 10}
	_, err = WaitReady(context.Background(), node, 2, time.Millisecond, nil)
	require.ErrorContains(t, err, "connection refused")
	require.Equal(t, 3, node.calls)
}

func TestWaitReadyHonorsCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := WaitReady(ctx, &flakyNode{failures: 10}, 5, time.Hour, nil)
	require.ErrorIs(t, err, context.Canceled)
}
