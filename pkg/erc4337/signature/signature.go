// Package signature produces the wire signatures smart accounts verify:
// EIP191 secp256k1 signatures for key-controlled accounts and ABI-encoded
// WebAuthn assertions for passkey-controlled accounts.
package signature

import (
	"context"
	"crypto/ecdsa"
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/IncentivNetwork/ui-sdk/core/chainio/signer"
)

type Mode uint8

const (
	ModeEOA Mode = iota
	ModePasskey
)

func (m Mode) String() string {
	switch m {
	case ModeEOA:
		return "eoa"
	case ModePasskey:
		return "passkey"
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// Wire sizes of the two signature families. Dummy signatures match these
// exactly so gas estimation sees the final payload size.
const (
	EOASignatureLength     = 65
	PasskeySignatureLength = 536
)

// SigningError reports a failure while producing a wire signature.
type SigningError struct {
	Mode Mode
	Err  error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("%s signing failed: %v", e.Mode, e.Err)
}

func (e *SigningError) Unwrap() error {
	return e.Err
}

// Codec turns a userOpHash into the signature bytes the account contract
// expects. One codec is bound to one credential.
type Codec interface {
	Mode() Mode

	// DummySignature returns a stand-in of the exact final wire size, used
	// only to size estimation payloads.
	DummySignature() []byte

	Sign(ctx context.Context, userOpHash common.Hash) ([]byte, error)
}

// dummyEOASignature is a well-formed 65 byte r||s||v placeholder relays
// accept for estimation.
var dummyEOASignature = hexutil.MustDecode(
	"0xfffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffe1c",
)

// EOACodec signs with a secp256k1 controller key over the EIP191 prefixed
// userOpHash. When a logical wallet id is set, the signature is prefixed with
// a 1 byte mode tag and the 2 byte big-endian wallet id so one owner key can
// address multiple wallets.
type EOACodec struct {
	key      *ecdsa.PrivateKey
	walletID *uint16
}

func NewEOACodec(key *ecdsa.PrivateKey) *EOACodec {
	return &EOACodec{key: key}
}

// WithWalletID returns a codec that tags signatures for the given logical
// wallet. The dummy signature stays 65 bytes; only final signatures carry
// the prefix.
func (c *EOACodec) WithWalletID(id uint16) *EOACodec {
	return &EOACodec{key: c.key, walletID: &id}
}

func (c *EOACodec) Mode() Mode {
	return ModeEOA
}

func (c *EOACodec) DummySignature() []byte {
	return append([]byte(nil), dummyEOASignature...)
}

func (c *EOACodec) Sign(ctx context.Context, userOpHash common.Hash) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &SigningError{Mode: ModeEOA, Err: err}
	}

	sig, err := signer.SignMessage(c.key, userOpHash.Bytes())
	if err != nil {
		return nil, &SigningError{Mode: ModeEOA, Err: err}
	}
	if c.walletID == nil {
		return sig, nil
	}

	tagged := make([]byte, 0, 3+len(sig))
	tagged = append(tagged, byte(ModeEOA))
	tagged = binary.BigEndian.AppendUint16(tagged, *c.walletID)
	return append(tagged, sig...), nil
}
