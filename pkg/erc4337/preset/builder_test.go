package preset

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IncentivNetwork/ui-sdk/core/chainio/aa"
	"github.com/IncentivNetwork/ui-sdk/core/chainio/signer"
	"github.com/IncentivNetwork/ui-sdk/core/config"
	"github.com/IncentivNetwork/ui-sdk/core/testutil"
	"github.com/IncentivNetwork/ui-sdk/pkg/eip1559"
	"github.com/IncentivNetwork/ui-sdk/pkg/erc4337/bundler"
	"github.com/IncentivNetwork/ui-sdk/pkg/erc4337/gas"
	"github.com/IncentivNetwork/ui-sdk/pkg/erc4337/paymaster"
	"github.com/IncentivNetwork/ui-sdk/pkg/erc4337/signature"
	"github.com/IncentivNetwork/ui-sdk/pkg/erc4337/userop"
)

var (
	testEntryPoint = common.HexToAddress(config.DefaultEntrypointAddressHex)
	testWalletAddr = common.HexToAddress("0x61f9b158c6a340b57ba255cbe5B6e61f4BE0eAf9")
	testTarget     = common.HexToAddress("0x2e988A386a799F506693793c6A5AF6B54dfAaBfB")
)

// newRelay points a BundlerClient at a fake endpoint.
func newRelay(t *testing.T, f *testutil.FakeRPC) *bundler.BundlerClient {
	bc, err := bundler.NewBundlerClient(f.URL(), testEntryPoint, nil, nil)
	require.NoError(t, err)
	t.Cleanup(bc.Close)
	return bc
}

func entrypointABIMethodID(t *testing.T, name string) []byte {
	epABI, err := aa.EntryPointMetaData.GetAbi()
	require.NoError(t, err)
	method, ok := epABI.Methods[name]
	require.True(t, ok, "entrypoint ABI has no method %s", name)
	return method.ID
}

// senderAddressRevert builds the SenderAddressResult revert the entrypoint
// answers getSenderAddress with.
func senderAddressRevert(t *testing.T, wallet common.Address) *testutil.RPCError {
	epABI, err := aa.EntryPointMetaData.GetAbi()
	require.NoError(t, err)
	errDef, ok := epABI.Errors["SenderAddressResult"]
	require.True(t, ok)

	payload, err := errDef.Inputs.Pack(wallet)
	require.NoError(t, err)
	data := append(append([]byte{}, errDef.ID.Bytes()[:4]...), payload...)

	return &testutil.RPCError{Code: 3, Message: "execution reverted", Data: hexutil.Encode(data)}
}

// deployedNodeHandler answers what a build against an existing wallet needs:
// the entrypoint nonce and the code check.
func deployedNodeHandler(t *testing.T, nonce int64) testutil.Handler {
	return func(method string, params []json.RawMessage, _ int) (any, *testutil.RPCError) {
		switch method {
		case "eth_getCode":
			return "0x60806040", nil
		case "eth_call":
			data := testutil.EthCallData(t, params)
			if bytes.HasPrefix(data, entrypointABIMethodID(t, "getNonce")) {
				return common.BigToHash(big.NewInt(nonce)).Hex(), nil
			}
		}
		return nil, &testutil.RPCError{Code: -32601, Message: "unexpected node method " + method}
	}
}

// healthyRelayHandler estimates and accepts every operation on chain 11690.
func healthyRelayHandler(opHash string) testutil.Handler {
	return func(method string, _ []json.RawMessage, _ int) (any, *testutil.RPCError) {
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
	}
}

type testRig struct {
	node     *testutil.FakeRPC
	relay    *testutil.FakeRPC
	resolver *AccountStateResolver
	nonces   *bundler.NonceManager
	builder  *Builder
	key      *ecdsa.PrivateKey
}

// newTestRig wires a builder against fake node and relay endpoints. tweak may
// adjust the BuilderConfig before construction and may be nil.
func newTestRig(t *testing.T, account Account, nodeHandler, relayHandler testutil.Handler, tweak func(*BuilderConfig)) *testRig {
	node := testutil.NewFakeRPC(t, nodeHandler)
	relay := testutil.NewFakeRPC(t, relayHandler)

	client := node.Dial(t)
	key := testutil.ControllerKey(t)
	resolver := NewAccountStateResolver(client, testutil.TestWalletConfig(), account, nil)
	nonces := bundler.NewNonceManager(nil)

	cfg := BuilderConfig{
		Client:   client,
		Bundler:  newRelay(t, relay),
		Resolver: resolver,
		Codec:    signature.NewEOACodec(key),
		Fees: &eip1559.FixedSuggester{
			MaxFeePerGas:         big.NewInt(30_000_000_000),
			MaxPriorityFeePerGas: big.NewInt(2_000_000_000),
		},
		Nonces:     nonces,
		EntryPoint: testEntryPoint,
	}
	if tweak != nil {
		tweak(&cfg)
	}

	b, err := NewBuilder(cfg)
	require.NoError(t, err)

	return &testRig{node: node, relay: relay, resolver: resolver, nonces: nonces, builder: b, key: key}
}

// deployedAccount short-circuits address derivation so tests only exercise
// the builder.
func deployedAccount(t *testing.T) Account {
	addr := testWalletAddr
	key := testutil.ControllerKey(t)
	return Account{Owner: crypto.PubkeyToAddress(key.PublicKey), Address: &addr}
}

func TestBuilderSendFlow(t *testing.T) {
	opHash := "0x4f9a6a56e3b9d6373eea2a251ca2d84c2d19f8ec66ea2ab2c6bceb5bd1c821b3"
	rig := newTestRig(t, deployedAccount(t), deployedNodeHandler(t, 7), healthyRelayHandler(opHash), nil)

	require.NoError(t, rig.builder.Execute(testTarget, big.NewInt(0), hexutil.MustDecode("0xdeadbeef")))

	gotHash, err := rig.builder.Send(context.Background())
	require.NoError(t, err)
	assert.Equal(t, common.HexToHash(opHash), gotHash)
	assert.Equal(t, StateSubmitted, rig.builder.State())
	assert.Equal(t, common.HexToHash(opHash), rig.builder.UserOpHash())

	// The wire form carries the bundler's limits and the real signature.
	params := rig.relay.LastParams("eth_sendUserOperation")
	require.Len(t, params, 2)
	var wire map[string]string
	require.NoError(t, json.Unmarshal(params[0], &wire))

	assert.Equal(t, testWalletAddr, common.HexToAddress(wire["sender"]))
	assert.Equal(t, "0x7", wire["nonce"])
	assert.Equal(t, "0x", wire["initCode"])
	assert.Equal(t, "0x15f90", wire["callGasLimit"])
	assert.Equal(t, "0x186a0", wire["verificationGasLimit"])
	assert.Equal(t, "0x", wire["paymasterAndData"])

	// preVerificationGas is derived locally, not taken from the relay, and
	// never drops below the floor.
	op := rig.builder.Op()
	require.NotNil(t, op)
	assert.GreaterOrEqual(t, op.PreVerificationGas.Int64(), int64(gas.MinPreVerificationGas))
	assert.Less(t, op.PreVerificationGas.Int64(), int64(60_000))

	// The signature must recover to the controller over the final op hash.
	digest := op.GetUserOpHash(testEntryPoint, big.NewInt(11690))
	recovered, err := signer.RecoverMessageAddress(digest.Bytes(), op.Signature)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(rig.key.PublicKey), recovered)

	// The nonce cache moved past the consumed nonce.
	next, ok := rig.nonces.GetCachedNonce(testWalletAddr)
	require.True(t, ok)
	assert.Equal(t, big.NewInt(8), next)
}

func TestBuilderStateMachine(t *testing.T) {
	rig := newTestRig(t, deployedAccount(t), deployedNodeHandler(t, 0), healthyRelayHandler("0x01"), nil)
	ctx := context.Background()

	var vErr *ValidationError

	// Nothing runs out of order.
	err := rig.builder.SignUserOp(ctx)
	require.ErrorAs(t, err, &vErr)
	_, err = rig.builder.SubmitUserOp(ctx)
	require.ErrorAs(t, err, &vErr)

	require.NoError(t, rig.builder.Execute(testTarget, nil, nil))
	require.NoError(t, rig.builder.BuildUserOp(ctx))

	// Build is once-only, and call encoding is locked after it.
	err = rig.builder.BuildUserOp(ctx)
	require.ErrorAs(t, err, &vErr)
	err = rig.builder.Execute(testTarget, nil, nil)
	require.ErrorAs(t, err, &vErr)
	err = rig.builder.SetFees(big.NewInt(1), big.NewInt(1))
	require.ErrorAs(t, err, &vErr)

	require.NoError(t, rig.builder.SignUserOp(ctx))
	err = rig.builder.SignUserOp(ctx)
	require.ErrorAs(t, err, &vErr)

	_, err = rig.builder.SubmitUserOp(ctx)
	require.NoError(t, err)
	_, err = rig.builder.SubmitUserOp(ctx)
	require.ErrorAs(t, err, &vErr)
}

func TestBuilderRequiresCall(t *testing.T) {
	rig := newTestRig(t, deployedAccount(t), deployedNodeHandler(t, 0), healthyRelayHandler("0x01"), nil)

	err := rig.builder.BuildUserOp(context.Background())
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Error(), "no call encoded")
}

func TestBuilderBatchValidation(t *testing.T) {
	rig := newTestRig(t, deployedAccount(t), deployedNodeHandler(t, 0), healthyRelayHandler("0x01"), nil)

	var vErr *ValidationError

	err := rig.builder.ExecuteBatch(nil, nil, nil)
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Error(), "empty batch")

	err = rig.builder.ExecuteBatch(
		[]common.Address{testTarget, testTarget},
		nil,
		[][]byte{{0x01}},
	)
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Error(), "length mismatch")

	err = rig.builder.ExecuteBatch(
		[]common.Address{testTarget, testTarget},
		[]*big.Int{big.NewInt(1)},
		[][]byte{{0x01}, {0x02}},
	)
	require.ErrorAs(t, err, &vErr)

	// Validation happens before any network traffic.
	assert.Zero(t, rig.node.CallCount("eth_call"))
	assert.Zero(t, rig.relay.CallCount("eth_estimateUserOperationGas"))

	// A well-formed batch passes and locks further encoding.
	require.NoError(t, rig.builder.ExecuteBatch(
		[]common.Address{testTarget, testTarget},
		nil,
		[][]byte{{0x01}, {0x02}},
	))
	err = rig.builder.Execute(testTarget, nil, nil)
	require.ErrorAs(t, err, &vErr)
}

func TestBuilderEstimationFailureStopsPipeline(t *testing.T) {
	relayHandler := func(method string, _ []json.RawMessage, _ int) (any, *testutil.RPCError) {
		switch method {
		case "eth_chainId":
			return "0x2daa", nil
		case "eth_estimateUserOperationGas":
			return nil, &testutil.RPCError{Code: -32500, Message: "AA21 didn't pay prefund"}
		}
		return nil, &testutil.RPCError{Code: -32601, Message: "unexpected relay method " + method}
	}
	rig := newTestRig(t, deployedAccount(t), deployedNodeHandler(t, 0), relayHandler, nil)

	require.NoError(t, rig.builder.Execute(testTarget, nil, nil))
	err := rig.builder.BuildUserOp(context.Background())

	var estErr *bundler.EstimationError
	require.ErrorAs(t, err, &estErr)
	assert.Equal(t, "AA21 didn't pay prefund", estErr.Reason)

	// The pipeline stops before signing; the dummy signature never leaves.
	assert.Equal(t, StateUnbuilt, rig.builder.State())
	var vErr *ValidationError
	require.ErrorAs(t, rig.builder.SignUserOp(context.Background()), &vErr)
	assert.Zero(t, rig.relay.CallCount("eth_sendUserOperation"))
}

func TestBuilderGasOverrideSkipsEstimation(t *testing.T) {
	rig := newTestRig(t, deployedAccount(t), deployedNodeHandler(t, 0), healthyRelayHandler("0x02"), nil)

	require.NoError(t, rig.builder.SetGasLimits(&bundler.GasEstimation{
		CallGasLimit:         big.NewInt(111_111),
		VerificationGasLimit: big.NewInt(222_222),
	}))
	require.NoError(t, rig.builder.Execute(testTarget, nil, nil))
	require.NoError(t, rig.builder.BuildUserOp(context.Background()))

	assert.Zero(t, rig.relay.CallCount("eth_estimateUserOperationGas"))

	op := rig.builder.Op()
	assert.Equal(t, big.NewInt(111_111), op.CallGasLimit)
	assert.Equal(t, big.NewInt(222_222), op.VerificationGasLimit)
	// Absent preVerificationGas comes back as the floor.
	assert.Equal(t, int64(gas.MinPreVerificationGas), op.PreVerificationGas.Int64())
}

func TestBuilderFeeOverride(t *testing.T) {
	rig := newTestRig(t, deployedAccount(t), deployedNodeHandler(t, 0), healthyRelayHandler("0x03"), nil)

	require.NoError(t, rig.builder.SetFees(big.NewInt(50_000_000_000), big.NewInt(3_000_000_000)))
	require.NoError(t, rig.builder.Execute(testTarget, nil, nil))
	require.NoError(t, rig.builder.BuildUserOp(context.Background()))

	op := rig.builder.Op()
	assert.Equal(t, big.NewInt(50_000_000_000), op.MaxFeePerGas)
	assert.Equal(t, big.NewInt(3_000_000_000), op.MaxPriorityFeePerGas)
}

func TestBuilderFeeHeadroom(t *testing.T) {
	rig := newTestRig(t, deployedAccount(t), deployedNodeHandler(t, 0), healthyRelayHandler("0x04"), nil)

	// maxFee below tip + 1 gwei gets lifted to it.
	require.NoError(t, rig.builder.SetFees(big.NewInt(1_000_000_000), big.NewInt(5_000_000_000)))
	require.NoError(t, rig.builder.Execute(testTarget, nil, nil))
	require.NoError(t, rig.builder.BuildUserOp(context.Background()))

	op := rig.builder.Op()
	assert.Equal(t, big.NewInt(6_000_000_000), op.MaxFeePerGas)
	assert.Equal(t, big.NewInt(5_000_000_000), op.MaxPriorityFeePerGas)
}

func TestBuilderSubmitRejectedOnce(t *testing.T) {
	relayHandler := func(method string, _ []json.RawMessage, _ int) (any, *testutil.RPCError) {
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
			return nil, &testutil.RPCError{Code: -32507, Message: "invalid signature"}
		}
		return nil, &testutil.RPCError{Code: -32601, Message: "unexpected relay method " + method}
	}
	rig := newTestRig(t, deployedAccount(t), deployedNodeHandler(t, 4), relayHandler, nil)

	// A cached nonce from an earlier submission is ahead of the chain.
	rig.nonces.SetNonce(testWalletAddr, big.NewInt(9))

	require.NoError(t, rig.builder.Execute(testTarget, nil, nil))
	_, err := rig.builder.Send(context.Background())

	var subErr *bundler.SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, StateSigned, rig.builder.State())

	// Rejection clears the cache so the next build re-reads the chain.
	_, ok := rig.nonces.GetCachedNonce(testWalletAddr)
	assert.False(t, ok)

	// The builder never resubmits, not even on request.
	_, err = rig.builder.SubmitUserOp(context.Background())
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, 1, rig.relay.CallCount("eth_sendUserOperation"))
}

func TestBuilderDeploymentFlow(t *testing.T) {
	nodeHandler := func(method string, params []json.RawMessage, _ int) (any, *testutil.RPCError) {
		switch method {
		case "eth_getCode":
			return "0x", nil
		case "eth_call":
			data := testutil.EthCallData(t, params)
			if bytes.HasPrefix(data, entrypointABIMethodID(t, "getSenderAddress")) {
				return nil, senderAddressRevert(t, testWalletAddr)
			}
			if bytes.HasPrefix(data, entrypointABIMethodID(t, "getNonce")) {
				return common.BigToHash(big.NewInt(0)).Hex(), nil
			}
		}
		return nil, &testutil.RPCError{Code: -32601, Message: "unexpected node method " + method}
	}

	key := testutil.ControllerKey(t)
	account := Account{Owner: crypto.PubkeyToAddress(key.PublicKey)}
	rig := newTestRig(t, account, nodeHandler, healthyRelayHandler("0x05"), nil)

	require.NoError(t, rig.builder.Execute(testTarget, nil, nil))
	_, err := rig.builder.Send(context.Background())
	require.NoError(t, err)

	// The op carried initCode pointing at the factory.
	var wire map[string]string
	require.NoError(t, json.Unmarshal(rig.relay.LastParams("eth_sendUserOperation")[0], &wire))
	factoryHex := hexutil.Encode(common.HexToAddress(config.DefaultFactoryAddressHex).Bytes())
	assert.Greater(t, len(wire["initCode"]), len(factoryHex))
	assert.Equal(t, factoryHex, wire["initCode"][:len(factoryHex)])

	// Acceptance marks the wallet deployed; no further code checks happen.
	codeChecks := rig.node.CallCount("eth_getCode")
	phantom, err := rig.resolver.IsPhantom(context.Background())
	require.NoError(t, err)
	assert.False(t, phantom)
	assert.Equal(t, codeChecks, rig.node.CallCount("eth_getCode"))
}

// fakeSponsor hands out fixed paymaster data and records the op it saw.
type fakeSponsor struct {
	pnd   []byte
	sawOp *userop.UserOperation
}

func (f *fakeSponsor) Placeholder() []byte {
	return bytes.Repeat([]byte{0xff}, paymaster.PaymasterAndDataLength)
}

func (f *fakeSponsor) PaymasterAndData(_ context.Context, op *userop.UserOperation) ([]byte, error) {
	f.sawOp = op.Copy()
	return f.pnd, nil
}

func TestBuilderSponsoredFlow(t *testing.T) {
	sponsor := &fakeSponsor{pnd: bytes.Repeat([]byte{0xab}, paymaster.PaymasterAndDataLength)}
	rig := newTestRig(t, deployedAccount(t), deployedNodeHandler(t, 1), healthyRelayHandler("0x06"),
		func(cfg *BuilderConfig) { cfg.Sponsor = sponsor })

	require.NoError(t, rig.builder.Execute(testTarget, nil, nil))
	_, err := rig.builder.Send(context.Background())
	require.NoError(t, err)

	// The sponsor saw final gas fields and a length-correct placeholder, so
	// its signature covers what actually ships.
	require.NotNil(t, sponsor.sawOp)
	assert.Equal(t, sponsor.Placeholder(), sponsor.sawOp.PaymasterAndData)
	assert.NotNil(t, sponsor.sawOp.PreVerificationGas)
	assert.GreaterOrEqual(t, sponsor.sawOp.PreVerificationGas.Int64(), int64(gas.MinPreVerificationGas))

	op := rig.builder.Op()
	assert.Equal(t, sponsor.pnd, op.PaymasterAndData)

	var wire map[string]string
	require.NoError(t, json.Unmarshal(rig.relay.LastParams("eth_sendUserOperation")[0], &wire))
	assert.Equal(t, hexutil.Encode(sponsor.pnd), wire["paymasterAndData"])
}

func TestBuilderSponsorLengthMismatch(t *testing.T) {
	sponsor := &fakeSponsor{pnd: bytes.Repeat([]byte{0xab}, 20)}
	rig := newTestRig(t, deployedAccount(t), deployedNodeHandler(t, 1), healthyRelayHandler("0x07"),
		func(cfg *BuilderConfig) { cfg.Sponsor = sponsor })

	require.NoError(t, rig.builder.Execute(testTarget, nil, nil))
	require.NoError(t, rig.builder.BuildUserOp(context.Background()))

	err := rig.builder.SignUserOp(context.Background())
	require.ErrorContains(t, err, "placeholder was 149")
}
