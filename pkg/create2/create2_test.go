package create2

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IncentivNetwork/ui-sdk/core/chainio/aa"
	"github.com/IncentivNetwork/ui-sdk/core/config"
	"github.com/IncentivNetwork/ui-sdk/core/testutil"
	"github.com/IncentivNetwork/ui-sdk/pkg/byte4"
	"github.com/IncentivNetwork/ui-sdk/pkg/eip1559"
	"github.com/IncentivNetwork/ui-sdk/pkg/erc4337/bundler"
	"github.com/IncentivNetwork/ui-sdk/pkg/erc4337/preset"
	"github.com/IncentivNetwork/ui-sdk/pkg/erc4337/signature"
)

var (
	testDeployer   = common.HexToAddress("0x4e59b44847b379578588920cA78FbF26c0B4956C")
	testWalletAddr = common.HexToAddress("0x61f9b158c6a340b57ba255cbe5B6e61f4BE0eAf9")
	testEntryPoint = common.HexToAddress(config.DefaultEntrypointAddressHex)
)

// honestComputeAddress answers computeAddress with standard CREATE2 math over
// the call's own arguments.
func honestComputeAddress(t *testing.T, data []byte) (any, *testutil.RPCError) {
	args, err := deployerABI.Methods["computeAddress"].Inputs.Unpack(data[4:])
	require.NoError(t, err)

	codeHash := args[0].([32]byte)
	salt := args[1].([32]byte)
	deployer := args[2].(common.Address)

	addr := crypto.CreateAddress2(deployer, salt, codeHash[:])
	out, err := deployerABI.Methods["computeAddress"].Outputs.Pack(addr)
	require.NoError(t, err)
	return hexutil.Encode(out), nil
}

// deployerNode serves a healthy deployer plus the wallet reads a builder
// makes: code checks and entrypoint nonce calls.
func deployerNode(t *testing.T) *testutil.FakeRPC {
	epABI, err := aa.EntryPointMetaData.GetAbi()
	require.NoError(t, err)
	getNonceID := epABI.Methods["getNonce"].ID

	return testutil.NewFakeRPC(t, func(method string, params []json.RawMessage, _ int) (any, *testutil.RPCError) {
		switch method {
		case "eth_getCode":
			return "0x60806040", nil
		case "eth_call":
			data := testutil.EthCallData(t, params)
			if bytes.HasPrefix(data, deployerABI.Methods["computeAddress"].ID) {
				return honestComputeAddress(t, data)
			}
			if bytes.HasPrefix(data, getNonceID) {
				return common.BigToHash(big.NewInt(2)).Hex(), nil
			}
		}
		return nil, &testutil.RPCError{Code: -32601, Message: "unexpected node method " + method}
	})
}

func newPlanner(t *testing.T, node *testutil.FakeRPC) *Planner {
	p, err := NewPlanner(node.Dial(t), testDeployer, nil, nil)
	require.NoError(t, err)
	return p
}

func TestDescriptorValidation(t *testing.T) {
	tests := []struct {
		name     string
		bytecode string
	}{
		{"missing prefix", "6001600101"},
		{"bad hex", "0xzz"},
		{"empty", "0x"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Descriptor{Bytecode: tc.bytecode}.initCode()
			var depErr *DeploymentError
			require.ErrorAs(t, err, &depErr)
			assert.Equal(t, InvalidBytecode, depErr.Kind)
		})
	}

	// Constructor args ride behind the bytecode.
	code, err := Descriptor{Bytecode: "0x600160", ConstructorArgs: []byte{0xaa, 0xbb}}.initCode()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x60, 0x01, 0x60, 0xaa, 0xbb}, code)
}

func TestNewPlannerRequiresDeployer(t *testing.T) {
	node := deployerNode(t)
	_, err := NewPlanner(node.Dial(t), common.Address{}, nil, nil)

	var cfgErr *config.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "deployer_address", cfgErr.Field)
}

func TestPredictAddress(t *testing.T) {
	node := deployerNode(t)
	p := newPlanner(t, node)
	ctx := context.Background()

	salt := common.HexToHash("0x00000000000000000000000000000000000000000000000000000000000000aa")
	d := Descriptor{Bytecode: "0x6001600101", Salt: &salt}

	initCode := hexutil.MustDecode(d.Bytecode)
	want := crypto.CreateAddress2(testDeployer, salt, crypto.Keccak256(initCode))

	got, err := p.PredictAddress(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// Prediction is pure: same descriptor, same address. The deployer
	// validation ran only once.
	again, err := p.PredictAddress(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, got, again)
	assert.Equal(t, 1, node.CallCount("eth_getCode"))
	assert.Equal(t, 3, node.CallCount("eth_call"), "one probe plus one computeAddress per prediction")
}

func TestPredictAddressDefaultSalt(t *testing.T) {
	node := deployerNode(t)
	p := newPlanner(t, node)

	d := Descriptor{Bytecode: "0x6001600101"}
	got, err := p.PredictAddress(context.Background(), d)
	require.NoError(t, err)

	want := crypto.CreateAddress2(testDeployer, common.Hash{}, crypto.Keccak256(hexutil.MustDecode(d.Bytecode)))
	assert.Equal(t, want, got)
}

func TestPredictAddressRejectsCodelessDeployer(t *testing.T) {
	node := testutil.NewFakeRPC(t, func(method string, _ []json.RawMessage, _ int) (any, *testutil.RPCError) {
		if method == "eth_getCode" {
			return "0x", nil
		}
		return nil, &testutil.RPCError{Code: -32601, Message: "unexpected method " + method}
	})
	p := newPlanner(t, node)

	_, err := p.PredictAddress(context.Background(), Descriptor{Bytecode: "0x6001"})
	var depErr *DeploymentError
	require.ErrorAs(t, err, &depErr)
	assert.Equal(t, InvalidDeployer, depErr.Kind)
}

func TestPredictAddressRejectsNonStandardDeployer(t *testing.T) {
	// A deployer that answers computeAddress with garbage fails the probe.
	junk, err := deployerABI.Methods["computeAddress"].Outputs.Pack(common.HexToAddress("0x01"))
	require.NoError(t, err)

	node := testutil.NewFakeRPC(t, func(method string, _ []json.RawMessage, _ int) (any, *testutil.RPCError) {
		switch method {
		case "eth_getCode":
			return "0x6080", nil
		case "eth_call":
			return hexutil.Encode(junk), nil
		}
		return nil, &testutil.RPCError{Code: -32601, Message: "unexpected method " + method}
	})
	p := newPlanner(t, node)

	_, err = p.PredictAddress(context.Background(), Descriptor{Bytecode: "0x6001"})
	var depErr *DeploymentError
	require.ErrorAs(t, err, &depErr)
	assert.Equal(t, InvalidDeployer, depErr.Kind)
	assert.Contains(t, depErr.Message, "probe")
}

func TestDeployRoutesThroughWallet(t *testing.T) {
	opHash := "0x4f9a6a56e3b9d6373eea2a251ca2d84c2d19f8ec66ea2ab2c6bceb5bd1c821b3"

	node := deployerNode(t)

	relay := testutil.NewFakeRPC(t, func(method string, _ []json.RawMessage, _ int) (any, *testutil.RPCError) {
		switch method {
		case "eth_chainId":
			return "0x2daa", nil
		case "eth_estimateUserOperationGas":
			return map[string]string{
				"preVerificationGas":   "0xc000",
				"verificationGasLimit": "0x186a0",
				"callGasLimit":         "0x15f90",
			}, nil
		case "eth_sendUserOperation":
			return opHash, nil
		}
		return nil, &testutil.RPCError{Code: -32601, Message: "unexpected relay method " + method}
	})

	client := node.Dial(t)
	key, err := crypto.HexToECDSA("ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")
	require.NoError(t, err)

	bc, err := bundler.NewBundlerClient(relay.URL(), testEntryPoint, nil, nil)
	require.NoError(t, err)
	t.Cleanup(bc.Close)

	walletAddr := testWalletAddr
	resolver := preset.NewAccountStateResolver(client, &config.SmartWalletConfig{
		FactoryAddress:    common.HexToAddress(config.DefaultFactoryAddressHex),
		EntrypointAddress: testEntryPoint,
	}, preset.Account{Owner: crypto.PubkeyToAddress(key.PublicKey), Address: &walletAddr}, nil)

	builder, err := preset.NewBuilder(preset.BuilderConfig{
		Client:   client,
		Bundler:  bc,
		Resolver: resolver,
		Codec:    signature.NewEOACodec(key),
		Fees: &eip1559.FixedSuggester{
			MaxFeePerGas:         big.NewInt(30_000_000_000),
			MaxPriorityFeePerGas: big.NewInt(2_000_000_000),
		},
		EntryPoint: testEntryPoint,
	})
	require.NoError(t, err)

	p := newPlanner(t, node)
	d := Descriptor{Bytecode: "0x6001600101"}

	predicted, gotHash, err := p.Deploy(context.Background(), d, builder)
	require.NoError(t, err)
	assert.Equal(t, common.HexToHash(opHash), gotHash)

	want := crypto.CreateAddress2(testDeployer, common.Hash{}, crypto.Keccak256(hexutil.MustDecode(d.Bytecode)))
	assert.Equal(t, want, predicted)

	// The wire op wraps deploy(bytecode, salt) in a wallet execute call
	// aimed at the deployer.
	params := relay.LastParams("eth_sendUserOperation")
	require.NotEmpty(t, params)
	var sentOp map[string]string
	require.NoError(t, json.Unmarshal(params[0], &sentOp))
	call, err := byte4.DecodeWalletCall(aa.SmartWalletABI(), hexutil.MustDecode(sentOp["callData"]))
	require.NoError(t, err)
	assert.Equal(t, "execute", call.Method)
	require.Len(t, call.Targets, 1)
	assert.Equal(t, testDeployer, call.Targets[0])
	require.Len(t, call.InnerSelectors, 1)
	assert.Equal(t, hexutil.Encode(deployerABI.Methods["deploy"].ID), call.InnerSelectors[0])
}
