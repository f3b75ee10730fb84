// Package paymaster decorates user operations with sponsorship data, signed
// either locally with a verifying-paymaster key or by a hosted sponsorship
// service.
package paymaster

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	pmbind "github.com/IncentivNetwork/ui-sdk/core/chainio/aa/paymaster"
	"github.com/IncentivNetwork/ui-sdk/core/chainio/signer"
	"github.com/IncentivNetwork/ui-sdk/pkg/erc4337/userop"
	"github.com/IncentivNetwork/ui-sdk/pkg/logger"
)

// PaymasterAndDataLength is the verifying-paymaster layout: address (20) ++
// abi.encode(uint48 validUntil, uint48 validAfter) (64) ++ signature (65).
const PaymasterAndDataLength = 20 + 64 + 65

const (
	DefaultValidity = 15 * time.Minute

	// validAfter is backdated by this much so a sponsorship signed on a
	// slightly fast clock is already valid on chain.
	validityClockSkew = 120 * time.Second
)

// Provider fills op.PaymasterAndData. Gas fields must be final when
// PaymasterAndData is called because the sponsorship signature covers them;
// Placeholder returns filler of the final length so gas accounting can run
// before the real data exists.
type Provider interface {
	Placeholder() []byte
	PaymasterAndData(ctx context.Context, op *userop.UserOperation) ([]byte, error)
}

// ValidityWindow bounds a sponsorship in time, in unix seconds.
type ValidityWindow struct {
	ValidUntil *big.Int
	ValidAfter *big.Int
}

// WindowForDuration opens a window of the given length starting
// validityClockSkew in the past.
func WindowForDuration(d time.Duration) ValidityWindow {
	now := time.Now()
	return ValidityWindow{
		ValidUntil: big.NewInt(now.Add(d).Unix()),
		ValidAfter: big.NewInt(now.Add(-validityClockSkew).Unix()),
	}
}

// The uint48 pair packed after the paymaster address.
var timestampArgs = abi.Arguments{
	{Type: abi.Type{T: abi.UintTy, Size: 48}},
	{Type: abi.Type{T: abi.UintTy, Size: 48}},
}

// VerifyingSigner sponsors operations with the paymaster owner key held
// locally. The contract's getHash view builds the digest so the encoding
// cannot drift from what validatePaymasterUserOp recomputes on chain.
type VerifyingSigner struct {
	contract *pmbind.PayMasterCaller
	address  common.Address
	key      *ecdsa.PrivateKey
	validity time.Duration
	logger   logger.Logger
}

// NewVerifyingSigner binds the paymaster at address. Only view calls are
// made, so any bind.ContractCaller works as the backend.
func NewVerifyingSigner(backend bind.ContractCaller, address common.Address, key *ecdsa.PrivateKey, validity time.Duration, lg logger.Logger) (*VerifyingSigner, error) {
	if key == nil {
		return nil, fmt.Errorf("verifying signer requires the paymaster key")
	}
	contract, err := pmbind.NewPayMasterCaller(address, backend)
	if err != nil {
		return nil, fmt.Errorf("error binding paymaster at %s: %w", address.Hex(), err)
	}
	if validity <= 0 {
		validity = DefaultValidity
	}

	return &VerifyingSigner{
		contract: contract,
		address:  address,
		key:      key,
		validity: validity,
		logger:   logger.EnsureLogger(lg),
	}, nil
}

func (s *VerifyingSigner) Placeholder() []byte {
	return bytes.Repeat([]byte{0xff}, PaymasterAndDataLength)
}

// PaymasterAndData signs a sponsorship for op over a fresh validity window.
func (s *VerifyingSigner) PaymasterAndData(ctx context.Context, op *userop.UserOperation) ([]byte, error) {
	return s.PaymasterAndDataForWindow(ctx, op, WindowForDuration(s.validity))
}

// PaymasterAndDataForWindow signs a sponsorship valid exactly for the given
// window. getHash only reads the lengths of paymasterAndData and signature,
// not their contents, so placeholders of the final length stand in for both.
func (s *VerifyingSigner) PaymasterAndDataForWindow(ctx context.Context, op *userop.UserOperation, w ValidityWindow) ([]byte, error) {
	bound := pmbind.UserOperation{
		Sender:               op.Sender,
		Nonce:                op.Nonce,
		InitCode:             op.InitCode,
		CallData:             op.CallData,
		CallGasLimit:         op.CallGasLimit,
		VerificationGasLimit: op.VerificationGasLimit,
		PreVerificationGas:   op.PreVerificationGas,
		MaxFeePerGas:         op.MaxFeePerGas,
		MaxPriorityFeePerGas: op.MaxPriorityFeePerGas,
		PaymasterAndData:     s.Placeholder(),
		Signature:            op.Signature,
	}

	hash, err := s.contract.GetHash(&bind.CallOpts{Context: ctx}, bound, w.ValidUntil, w.ValidAfter)
	if err != nil {
		return nil, fmt.Errorf("paymaster getHash: %w", err)
	}

	sig, err := signer.SignMessage(s.key, hash[:])
	if err != nil {
		return nil, fmt.Errorf("error signing paymaster hash: %w", err)
	}

	packed, err := timestampArgs.Pack(w.ValidUntil, w.ValidAfter)
	if err != nil {
		return nil, fmt.Errorf("error packing validity window: %w", err)
	}

	data := make([]byte, 0, PaymasterAndDataLength)
	data = append(data, s.address.Bytes()...)
	data = append(data, packed...)
	data = append(data, sig...)

	s.logger.Debug("sponsored user operation",
		"sender", op.Sender.Hex(),
		"paymaster", s.address.Hex(),
		"valid_until", w.ValidUntil.String(),
		"valid_after", w.ValidAfter.String())

	return data, nil
}

// ParsePaymasterAndData splits a verifying-paymaster blob back into its
// parts. Inverse of the assembly above, useful for display and tests.
func ParsePaymasterAndData(data []byte) (common.Address, ValidityWindow, []byte, error) {
	if len(data) != PaymasterAndDataLength {
		return common.Address{}, ValidityWindow{}, nil, fmt.Errorf("paymasterAndData is %d bytes, want %d", len(data), PaymasterAndDataLength)
	}

	addr := common.BytesToAddress(data[:20])

	values, err := timestampArgs.Unpack(data[20:84])
	if err != nil {
		return common.Address{}, ValidityWindow{}, nil, fmt.Errorf("error unpacking validity window: %w", err)
	}
	validUntil, ok1 := values[0].(*big.Int)
	validAfter, ok2 := values[1].(*big.Int)
	if !ok1 || !ok2 {
		return common.Address{}, ValidityWindow{}, nil, fmt.Errorf("unexpected validity window types")
	}

	sig := make([]byte, 65)
	copy(sig, data[84:])

	return addr, ValidityWindow{ValidUntil: validUntil, ValidAfter: validAfter}, sig, nil
}
