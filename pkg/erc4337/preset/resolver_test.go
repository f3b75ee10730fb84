package preset

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IncentivNetwork/ui-sdk/core/config"
	"github.com/IncentivNetwork/ui-sdk/core/testutil"
)

func TestResolverAddressShortCircuit(t *testing.T) {
	node := testutil.NewFakeRPC(t, func(method string, _ []json.RawMessage, _ int) (any, *testutil.RPCError) {
		return nil, &testutil.RPCError{Code: -32601, Message: "no calls expected, got " + method}
	})

	addr := testWalletAddr
	r := NewAccountStateResolver(node.Dial(t), testutil.TestWalletConfig(), Account{Address: &addr}, nil)

	got, err := r.Address(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testWalletAddr, got)
	assert.Zero(t, node.CallCount("eth_call"))
}

func TestResolverDerivesAndCachesAddress(t *testing.T) {
	node := testutil.NewFakeRPC(t, func(method string, params []json.RawMessage, n int) (any, *testutil.RPCError) {
		if method == "eth_call" && n == 1 {
			data := testutil.EthCallData(t, params)
			require.True(t, bytes.HasPrefix(data, entrypointABIMethodID(t, "getSenderAddress")))
			return nil, senderAddressRevert(t, testWalletAddr)
		}
		return nil, &testutil.RPCError{Code: -32601, Message: "unexpected call"}
	})

	account := Account{Owner: testTarget}
	r := NewAccountStateResolver(node.Dial(t), testutil.TestWalletConfig(), account, nil)

	got, err := r.Address(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testWalletAddr, got)

	// Second lookup is served from the cache.
	got, err = r.Address(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testWalletAddr, got)
	assert.Equal(t, 1, node.CallCount("eth_call"))
}

func TestResolverPhantomLifecycle(t *testing.T) {
	node := testutil.NewFakeRPC(t, func(method string, _ []json.RawMessage, n int) (any, *testutil.RPCError) {
		if method != "eth_getCode" {
			return nil, &testutil.RPCError{Code: -32601, Message: "unexpected method " + method}
		}
		// No code for the first two checks, then the wallet appears.
		if n <= 2 {
			return "0x", nil
		}
		return "0x60806040", nil
	})

	addr := testWalletAddr
	account := Account{Owner: testTarget, Address: &addr}
	r := NewAccountStateResolver(node.Dial(t), testutil.TestWalletConfig(), account, nil)
	ctx := context.Background()

	phantom, err := r.IsPhantom(ctx)
	require.NoError(t, err)
	assert.True(t, phantom)

	// A phantom wallet must ship initCode pointing at its factory.
	initCode, err := r.InitCode(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, initCode)
	factory := common.HexToAddress(config.DefaultFactoryAddressHex)
	assert.Equal(t, factory.Bytes(), initCode[:20])

	// Once code shows up the wallet stays deployed; the answer is cached.
	phantom, err = r.IsPhantom(ctx)
	require.NoError(t, err)
	assert.False(t, phantom)

	initCode, err = r.InitCode(ctx)
	require.NoError(t, err)
	assert.Empty(t, initCode)

	checks := node.CallCount("eth_getCode")
	_, err = r.IsPhantom(ctx)
	require.NoError(t, err)
	assert.Equal(t, checks, node.CallCount("eth_getCode"))
}

func TestResolverMarkDeployedSkipsCodeCheck(t *testing.T) {
	node := testutil.NewFakeRPC(t, func(method string, _ []json.RawMessage, _ int) (any, *testutil.RPCError) {
		return nil, &testutil.RPCError{Code: -32601, Message: "no calls expected, got " + method}
	})

	addr := testWalletAddr
	r := NewAccountStateResolver(node.Dial(t), testutil.TestWalletConfig(), Account{Owner: testTarget, Address: &addr}, nil)

	r.MarkDeployed()
	r.MarkDeployed()

	phantom, err := r.IsPhantom(context.Background())
	require.NoError(t, err)
	assert.False(t, phantom)
	assert.Zero(t, node.CallCount("eth_getCode"))
}

func TestResolverInitCodeShapes(t *testing.T) {
	cfg := testutil.TestWalletConfig()
	cfg.PasskeyFactoryAddress = common.HexToAddress("0xAe72A48c1a36bd18Af168541c53037965d26e4A8")

	owner := Account{Owner: testTarget, Salt: big.NewInt(3)}
	r := NewAccountStateResolver(nil, cfg, owner, nil)
	hex, err := r.initCodeHex()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hex, strings.ToLower(cfg.FactoryAddress.Hex())))

	passkey := Account{PublicKeyX: big.NewInt(11), PublicKeyY: big.NewInt(22)}
	r = NewAccountStateResolver(nil, cfg, passkey, nil)
	hex, err = r.initCodeHex()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hex, strings.ToLower(cfg.PasskeyFactoryAddress.Hex())))
	assert.True(t, passkey.IsPasskey())
}

func TestResolverConfigErrors(t *testing.T) {
	var cfgErr *config.ConfigurationError

	// EOA account without a factory address.
	cfg := testutil.TestWalletConfig()
	cfg.FactoryAddress = common.Address{}
	r := NewAccountStateResolver(nil, cfg, Account{Owner: testTarget}, nil)
	_, err := r.initCodeHex()
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "factory_address", cfgErr.Field)

	// Passkey account without a passkey factory.
	r = NewAccountStateResolver(nil, testutil.TestWalletConfig(), Account{PublicKeyX: big.NewInt(1), PublicKeyY: big.NewInt(2)}, nil)
	_, err = r.initCodeHex()
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "passkey_factory_address", cfgErr.Field)

	// No credential at all.
	r = NewAccountStateResolver(nil, testutil.TestWalletConfig(), Account{}, nil)
	_, err = r.initCodeHex()
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Error(), "neither an owner nor a passkey")
}
