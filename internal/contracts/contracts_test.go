package contracts_test

import (
	"context"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/ensuro/eth-exporter/internal/contracts"
	"github.com/ensuro/eth-exporter/internal/contracts/contractstest"
)

var (
	vaultA = common.HexToAddress("0x000000000000000000000000000000000000000a")
	vaultB = common.HexToAddress("0x000000000000000000000000000000000000000b")
)

type vaultState struct {
	Assets *big.Int
	Paused bool
}

func newVaultNode(t *testing.T) (*contractstest.Node, abi.ABI) {
	t.Helper()

	vault := contractstest.VaultABI()
	node := contractstest.NewNode()
	require.NoError(t, node.Return(vaultA, contractstest.Method(vault, "totalAssets"), big.NewInt(1000)))
	require.NoError(t, node.Return(vaultA, contractstest.Method(vault, "supplyInfo"), big.NewInt(5000), uint8(6)))
	require.NoError(t, node.Return(vaultA, contractstest.Method(vault, "state"), vaultState{Assets: big.NewInt(42), Paused: true}))
	return node, vault
}

func TestCallDecodesScalarAndComposite(t *testing.T) {
	node, vault := newVaultNode(t)
	ctx := context.Background()

	value, err := contracts.Call(ctx, node, contracts.BoundFunction{Target: vaultA, Method: contractstest.Method(vault, "totalAssets")}, 100)
	require.NoError(t, err)
	require.False(t, value.IsComposite())
	f, err := contracts.ToFloat64(value.Scalar())
	require.NoError(t, err)
	require.Equal(t, 1000.0, f)

	value, err = contracts.Call(ctx, node, contracts.BoundFunction{Target: vaultA, Method: contractstest.Method(vault, "supplyInfo")}, 100)
	require.NoError(t, err)
	require.True(t, value.IsComposite())
	decimals, ok := value.Field("decimals")
	require.True(t, ok)
	require.Equal(t, uint8(6), decimals)

	value, err = contracts.Call(ctx, node, contracts.BoundFunction{Target: vaultA, Method: contractstest.Method(vault, "state")}, 100)
	require.NoError(t, err)
	require.True(t, value.IsComposite())
	assets, ok := value.Field("assets")
	require.True(t, ok)
	f, err = contracts.ToFloat64(assets)
	require.NoError(t, err)
	require.Equal(t, 42.0, f)
	paused, ok := value.Field("paused")
	require.True(t, ok)
	f, err = contracts.ToFloat64(paused)
	require.NoError(t, err)
	require.Equal(t, 1.0, f)
}

func TestOutputFields(t *testing.T) {
	vault := contractstest.VaultABI()

	_, composite := contracts.OutputFields(contractstest.Method(vault, "totalAssets"))
	require.False(t, composite)

	fields, composite := contracts.OutputFields(contractstest.Method(vault, "supplyInfo"))
	require.True(t, composite)
	require.Equal(t, []string{"supply", "decimals"}, fields)

	fields, composite = contracts.OutputFields(contractstest.Method(vault, "state"))
	require.True(t, composite)
	require.Equal(t, []string{"assets", "paused"}, fields)

	pair, err := abi.JSON(strings.NewReader(`[{"inputs": [], "name": "pair", "outputs": [{"name": "", "type": "uint256"}, {"name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"}]`))
	require.NoError(t, err)
	fields, composite = contracts.OutputFields(contractstest.Method(pair, "pair"))
	require.True(t, composite)
	require.Equal(t, []string{"0", "1"}, fields)
}

func TestCallReportsDecodeError(t *testing.T) {
	vault := contractstest.VaultABI()
	node := contractstest.NewNode()
	method := contractstest.Method(vault, "totalAssets")
	node.Handle(vaultA, method, func(uint64, []interface{}) ([]byte, error) {
		return []byte{0x01, 0x02}, nil
	})

	_, err := contracts.Call(context.Background(), node, contracts.BoundFunction{Target: vaultA, Method: method}, 1)
	var decodeErr *contracts.DecodeError
	require.ErrorAs(t, err, &decodeErr)
	require.Equal(t, vaultA, decodeErr.Target)
	require.Equal(t, "totalAssets()", decodeErr.Function)
}

func TestAggregateMatchesDirectCalls(t *testing.T) {
	node, vault := newVaultNode(t)
	ctx := context.Background()

	fns := []contracts.BoundFunction{
		{Target: vaultA, Method: contractstest.Method(vault, "totalAssets")},
		{Target: vaultA, Method: contractstest.Method(vault, "supplyInfo")},
		{Target: vaultA, Method: contractstest.Method(vault, "state")},
	}

	aggregator, err := contracts.NewAggregator(node, node.Multicall)
	require.NoError(t, err)
	outcomes, err := aggregator.Aggregate(ctx, 100, fns)
	require.NoError(t, err)
	require.Len(t, outcomes, len(fns))

	for i, fn := range fns {
		direct, err := contracts.Call(ctx, node, fn, 100)
		require.NoError(t, err)
		require.True(t, outcomes[i].Success)
		require.NoError(t, outcomes[i].Err)
		require.Equal(t, direct, outcomes[i].Value, fn.String())
	}
}

func TestAggregateIsolatesFailures(t *testing.T) {
	node, vault := newVaultNode(t)
	method := contractstest.Method(vault, "totalAssets")
	node.Handle(vaultB, contractstest.Method(vault, "symbol"), func(uint64, []interface{}) ([]byte, error) {
		return []byte{0xff}, nil
	})

	aggregator, err := contracts.NewAggregator(node, node.Multicall)
	require.NoError(t, err)

	outcomes, err := aggregator.Aggregate(context.Background(), 7, []contracts.BoundFunction{
		{Target: vaultA, Method: method},
		{Target: vaultB, Method: method},
		{Target: vaultB, Method: contractstest.Method(vault, "symbol")},
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, node.Calls())

	require.True(t, outcomes[0].Success)
	require.NoError(t, outcomes[0].Err)

	require.False(t, outcomes[1].Success)
	require.Empty(t, outcomes[1].ReturnData)
	var failed *contracts.CallFailedError
	require.ErrorAs(t, outcomes[1].Err, &failed)
	require.Equal(t, vaultB, failed.Target)

	require.True(t, outcomes[2].Success)
	var decodeErr *contracts.DecodeError
	require.ErrorAs(t, outcomes[2].Err, &decodeErr)
}

func TestAggregateTransportFailure(t *testing.T) {
	node, vault := newVaultNode(t)
	node.FailTransport(errors.New("429 too many requests"))

	aggregator, err := contracts.NewAggregator(node, node.Multicall)
	require.NoError(t, err)
	_, err = aggregator.Aggregate(context.Background(), 1, []contracts.BoundFunction{
		{Target: vaultA, Method: contractstest.Method(vault, "totalAssets")},
	})
	require.ErrorContains(t, err, "429")
}

func TestConvertArgument(t *testing.T) {
	vault := contractstest.VaultABI()

	tier, err := contracts.ConvertArgument(vault.Methods["tierLimit"].Inputs[0].Type, "3")
	require.NoError(t, err)
	require.Equal(t, uint8(3), tier)

	_, err = contracts.ConvertArgument(vault.Methods["tierLimit"].Inputs[0].Type, "256")
	require.Error(t, err)

	account, err := contracts.ConvertArgument(vault.Methods["balanceOf"].Inputs[0].Type, "0x000000000000000000000000000000000000000a")
	require.NoError(t, err)
	require.Equal(t, vaultA, account)

	uint256Type, err := abi.NewType("uint256", "", nil)
	require.NoError(t, err)
	wide, err := contracts.ConvertArgument(uint256Type, "0x10")
	require.NoError(t, err)
	require.Equal(t, 0, wide.(*big.Int).Cmp(big.NewInt(16)))

	int64Type, err := abi.NewType("int64", "", nil)
	require.NoError(t, err)
	neg, err := contracts.ConvertArgument(int64Type, "-5")
	require.NoError(t, err)
	require.Equal(t, int64(-5), neg)

	boolType, err := abi.NewType("bool", "", nil)
	require.NoError(t, err)
	flag, err := contracts.ConvertArgument(boolType, "true")
	require.NoError(t, err)
	require.Equal(t, true, flag)

	bytes32Type, err := abi.NewType("bytes32", "", nil)
	require.NoError(t, err)
	word, err := contracts.ConvertArgument(bytes32Type, "0x01")
	require.NoError(t, err)
	require.Equal(t, byte(1), word.([32]byte)[0])
}

func TestLoadLibrary(t *testing.T) {
	dir := t.TempDir()
	artifact := `{"contractName": "Vault", "abi": ` + contractstest.VaultABIJSON + `}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Vault.json"), []byte(artifact), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "erc"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "erc", "Token.json"), []byte(contractstest.VaultABIJSON), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Vault.dbg.json"), []byte(`{"buildInfo": "x"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "build-info.json"), []byte(`{"solcVersion": "0.8.0"}`), 0o644))

	lib, err := contracts.LoadLibrary(dir)
	require.NoError(t, err)
	require.Equal(t, []string{"Token", "Vault"}, lib.Names())

	method, err := lib.Method("Vault", "balanceOf")
	require.NoError(t, err)
	require.Equal(t, "balanceOf(address)", method.Sig)

	method, err = lib.Method("Token", "balanceOf(address)")
	require.NoError(t, err)
	require.Equal(t, "balanceOf", method.RawName)

	_, err = lib.Method("Vault", "missing")
	require.Error(t, err)
	_, err = lib.Get("Unknown")
	require.Error(t, err)
}
