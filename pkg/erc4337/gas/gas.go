package gas

import (
	"bytes"
	"math"
	"math/big"

	"github.com/IncentivNetwork/ui-sdk/pkg/erc4337/userop"
)

// MinPreVerificationGas is the floor enforced on every operation the SDK
// hands to a relay. Estimates below it are bumped, never passed through.
const MinPreVerificationGas = 49024

// Verification gas allowances. Passkey verification runs a full P-256 check
// inside the account contract and needs far more headroom than ecrecover.
const (
	VerificationGasLimitEOA        = 1_000_000
	VerificationGasLimitPasskey    = 2_000_000
	DeploymentVerificationGasLimit = 3_000_000

	DefaultCallGasLimit = 200_000
)

// Overheads are the per-byte and per-op constants of the preVerificationGas
// formula. Zero values fall back to the defaults, so callers can override a
// single field.
type Overheads struct {
	Fixed         uint64 // bundle-wide transaction overhead, shared across ops
	PerUserOp     uint64
	PerUserOpWord uint64
	ZeroByte      uint64
	NonZeroByte   uint64
	BundleSize    uint64
	SigSize       uint64 // dummy signature size when the op carries none
}

func DefaultOverheads() Overheads {
	return Overheads{
		Fixed:         21000,
		PerUserOp:     18300,
		PerUserOpWord: 4,
		ZeroByte:      4,
		NonZeroByte:   16,
		BundleSize:    1,
		SigSize:       65,
	}
}

func (o Overheads) withDefaults() Overheads {
	d := DefaultOverheads()
	if o.Fixed == 0 {
		o.Fixed = d.Fixed
	}
	if o.PerUserOp == 0 {
		o.PerUserOp = d.PerUserOp
	}
	if o.PerUserOpWord == 0 {
		o.PerUserOpWord = d.PerUserOpWord
	}
	if o.ZeroByte == 0 {
		o.ZeroByte = d.ZeroByte
	}
	if o.NonZeroByte == 0 {
		o.NonZeroByte = d.NonZeroByte
	}
	if o.BundleSize == 0 {
		o.BundleSize = d.BundleSize
	}
	if o.SigSize == 0 {
		o.SigSize = d.SigSize
	}
	return o
}

// CalcPreVerificationGas returns the gas the relay burns on an operation
// before the EntryPoint runs any account code: the calldata cost of the
// packed operation plus its share of the bundle transaction overhead. The
// result never goes below MinPreVerificationGas.
//
// The operation is measured as it will go on the wire. When it carries no
// signature yet, a dummy of o.SigSize bytes stands in so the estimate covers
// the final payload size.
func CalcPreVerificationGas(op *userop.UserOperation, o Overheads) *big.Int {
	o = o.withDefaults()

	measured := op.Copy()
	if len(measured.Signature) == 0 {
		measured.Signature = bytes.Repeat([]byte{1}, int(o.SigSize))
	}
	if measured.PreVerificationGas == nil {
		measured.PreVerificationGas = big.NewInt(int64(o.Fixed))
	}

	packed := measured.Pack()

	var callDataCost uint64
	for _, b := range packed {
		if b == 0 {
			callDataCost += o.ZeroByte
		} else {
			callDataCost += o.NonZeroByte
		}
	}
	words := (len(packed) + 31) / 32

	total := math.Round(
		float64(callDataCost) +
			float64(o.Fixed)/float64(o.BundleSize) +
			float64(o.PerUserOp) +
			float64(o.PerUserOpWord)*float64(words),
	)

	return ClampPreVerificationGas(big.NewInt(int64(total)))
}

// ClampPreVerificationGas applies the MinPreVerificationGas floor to any
// candidate value, including caller-supplied overrides.
func ClampPreVerificationGas(v *big.Int) *big.Int {
	floor := big.NewInt(MinPreVerificationGas)
	if v == nil || v.Cmp(floor) < 0 {
		return floor
	}
	return new(big.Int).Set(v)
}

// VerificationGasLimit returns the fixed verification allowance for an
// account. Deployment operations get the larger limit since the factory run
// is billed against verification gas.
func VerificationGasLimit(passkey bool, deploying bool) *big.Int {
	if deploying {
		return big.NewInt(DeploymentVerificationGasLimit)
	}
	if passkey {
		return big.NewInt(VerificationGasLimitPasskey)
	}
	return big.NewInt(VerificationGasLimitEOA)
}
