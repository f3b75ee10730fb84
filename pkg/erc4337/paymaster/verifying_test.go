package paymaster

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IncentivNetwork/ui-sdk/core/chainio/signer"
	"github.com/IncentivNetwork/ui-sdk/pkg/erc4337/userop"
)

var testPaymasterAddr = common.HexToAddress("0xB985af5f96EF2722DC99aEBA573520903B86505e")

// fakeCaller answers every view call with a fixed getHash result. bytes32
// returns are the raw word, no ABI head needed.
type fakeCaller struct {
	hash  [32]byte
	calls int
}

func (f *fakeCaller) CodeAt(_ context.Context, _ common.Address, _ *big.Int) ([]byte, error) {
	return []byte{0x01}, nil
}

func (f *fakeCaller) CallContract(_ context.Context, _ ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.calls++
	out := make([]byte, 32)
	copy(out, f.hash[:])
	return out, nil
}

func sponsoredTestOp() *userop.UserOperation {
	return &userop.UserOperation{
		Sender:               common.HexToAddress("0xe0f7D11FD714674722d325Cd86062A5F1882E13a"),
		Nonce:                big.NewInt(5),
		InitCode:             []byte{},
		CallData:             []byte{0xb6, 0x1d, 0x27, 0xf6},
		CallGasLimit:         big.NewInt(200_000),
		VerificationGasLimit: big.NewInt(700_000),
		PreVerificationGas:   big.NewInt(49_024),
		MaxFeePerGas:         big.NewInt(2_000_000_000),
		MaxPriorityFeePerGas: big.NewInt(1_000_000_000),
		PaymasterAndData:     []byte{},
		Signature:            make([]byte, 65),
	}
}

func TestVerifyingSignerRequiresKey(t *testing.T) {
	_, err := NewVerifyingSigner(&fakeCaller{}, testPaymasterAddr, nil, 0, nil)
	require.ErrorContains(t, err, "requires the paymaster key")
}

func TestVerifyingSignerPlaceholderLength(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	s, err := NewVerifyingSigner(&fakeCaller{}, testPaymasterAddr, key, 0, nil)
	require.NoError(t, err)

	assert.Len(t, s.Placeholder(), PaymasterAndDataLength)
}

func TestPaymasterAndDataLayout(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	caller := &fakeCaller{}
	copy(caller.hash[:], crypto.Keccak256([]byte("sponsorship digest")))

	s, err := NewVerifyingSigner(caller, testPaymasterAddr, key, time.Hour, nil)
	require.NoError(t, err)

	window := ValidityWindow{
		ValidUntil: big.NewInt(1_900_000_000),
		ValidAfter: big.NewInt(1_800_000_000),
	}
	data, err := s.PaymasterAndDataForWindow(context.Background(), sponsoredTestOp(), window)
	require.NoError(t, err)
	require.Len(t, data, PaymasterAndDataLength)
	assert.Equal(t, 1, caller.calls)

	addr, parsed, sig, err := ParsePaymasterAndData(data)
	require.NoError(t, err)
	assert.Equal(t, testPaymasterAddr, addr)
	assert.Zero(t, window.ValidUntil.Cmp(parsed.ValidUntil))
	assert.Zero(t, window.ValidAfter.Cmp(parsed.ValidAfter))

	// The signature must verify against the hash the contract reported,
	// EIP-191 prefixed the way validatePaymasterUserOp expects.
	recovered, err := signer.RecoverMessageAddress(caller.hash[:], sig)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), recovered)
}

func TestParsePaymasterAndDataRejectsWrongLength(t *testing.T) {
	_, _, _, err := ParsePaymasterAndData(make([]byte, 100))
	require.ErrorContains(t, err, "want 149")
}

func TestWindowForDuration(t *testing.T) {
	before := time.Now()
	w := WindowForDuration(10 * time.Minute)
	after := time.Now()

	validAfter := time.Unix(w.ValidAfter.Int64(), 0)
	validUntil := time.Unix(w.ValidUntil.Int64(), 0)

	assert.WithinDuration(t, before.Add(-validityClockSkew), validAfter, 2*time.Second)
	assert.WithinDuration(t, after.Add(10*time.Minute), validUntil, 2*time.Second)
}
