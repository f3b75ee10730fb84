package signature

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// assertionArgs is the signature layout passkey accounts decode on-chain:
// abi.decode(sig, (bytes, string, uint256, uint256, uint256, uint256,
// uint256, uint256)).
var assertionArgs = abi.Arguments{
	{Name: "authenticatorData", Type: bytesType},
	{Name: "clientDataJSON", Type: stringType},
	{Name: "challengeLocation", Type: uint256Type},
	{Name: "responseTypeLocation", Type: uint256Type},
	{Name: "r", Type: uint256Type},
	{Name: "s", Type: uint256Type},
	{Name: "pubKeyX", Type: uint256Type},
	{Name: "pubKeyY", Type: uint256Type},
}

var (
	bytesType, _   = abi.NewType("bytes", "", nil)
	stringType, _  = abi.NewType("string", "", nil)
	uint256Type, _ = abi.NewType("uint256", "", nil)
)

var dummyPasskeySignature = bytes.Repeat([]byte{0x01}, PasskeySignatureLength)

// PasskeyCodec signs userOpHashes with a WebAuthn credential through the
// host's credential provider.
type PasskeyCodec struct {
	provider   CredentialProvider
	credential PasskeyCredential
	rpID       string
}

func NewPasskeyCodec(provider CredentialProvider, credential PasskeyCredential, relyingPartyID string) *PasskeyCodec {
	return &PasskeyCodec{
		provider:   provider,
		credential: credential,
		rpID:       relyingPartyID,
	}
}

func (c *PasskeyCodec) Mode() Mode {
	return ModePasskey
}

func (c *PasskeyCodec) DummySignature() []byte {
	return append([]byte(nil), dummyPasskeySignature...)
}

// Credential returns the identity this codec signs for.
func (c *PasskeyCodec) Credential() PasskeyCredential {
	return c.credential
}

func (c *PasskeyCodec) Sign(ctx context.Context, userOpHash common.Hash) ([]byte, error) {
	assertion, err := c.provider.Get(ctx, CredentialRequest{
		RelyingPartyID: c.rpID,
		Challenge:      userOpHash.Bytes(),
		CredentialID:   c.credential.CredentialID,
	})
	if err != nil {
		return nil, &SigningError{Mode: ModePasskey, Err: fmt.Errorf("credential request: %w", err)}
	}

	sig, err := EncodeAssertion(assertion, userOpHash.Bytes(), c.credential.PublicKeyX, c.credential.PublicKeyY)
	if err != nil {
		return nil, err
	}
	return sig, nil
}

// EncodeAssertion packs a WebAuthn assertion into the on-chain signature
// tuple. The challenge must be the value the assertion was requested over;
// its base64url form is located inside clientDataJSON so the verifier can
// check the authenticator echoed it.
func EncodeAssertion(assertion *Assertion, challenge []byte, pubKeyX, pubKeyY *big.Int) ([]byte, error) {
	r, s, err := ParseDERSignature(assertion.Signature)
	if err != nil {
		return nil, &SigningError{Mode: ModePasskey, Err: fmt.Errorf("assertion signature: %w", err)}
	}

	clientData := string(assertion.ClientDataJSON)

	challengeNeedle := `"challenge":"` + base64.RawURLEncoding.EncodeToString(challenge) + `"`
	challengeLocation := bytes.Index(assertion.ClientDataJSON, []byte(challengeNeedle))
	if challengeLocation < 0 {
		return nil, &SigningError{Mode: ModePasskey, Err: fmt.Errorf("challenge not found in client data: %s", clientData)}
	}

	responseTypeNeedle := `"type":"webauthn.get"`
	responseTypeLocation := bytes.Index(assertion.ClientDataJSON, []byte(responseTypeNeedle))
	if responseTypeLocation < 0 {
		return nil, &SigningError{Mode: ModePasskey, Err: fmt.Errorf("response type webauthn.get not found in client data: %s", clientData)}
	}

	packed, err := assertionArgs.Pack(
		assertion.AuthenticatorData,
		clientData,
		big.NewInt(int64(challengeLocation)),
		big.NewInt(int64(responseTypeLocation)),
		r,
		s,
		pubKeyX,
		pubKeyY,
	)
	if err != nil {
		return nil, &SigningError{Mode: ModePasskey, Err: fmt.Errorf("encode assertion: %w", err)}
	}
	return packed, nil
}
