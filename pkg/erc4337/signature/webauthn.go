package signature

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/fxamacker/cbor/v2"
)

// CredentialProvider bridges to the host environment's WebAuthn stack
// (browser credentials API, platform authenticator, hardware key). The SDK
// never touches key material for passkey accounts; it only consumes the
// attestations and assertions the provider returns.
type CredentialProvider interface {
	Create(ctx context.Context, req CredentialCreation) (*Attestation, error)
	Get(ctx context.Context, req CredentialRequest) (*Assertion, error)
}

// CredentialCreation describes the credential to register.
type CredentialCreation struct {
	RelyingPartyID   string
	RelyingPartyName string
	UserID           []byte
	UserName         string
	Challenge        []byte
}

// CredentialRequest asks for an assertion over Challenge. When CredentialID
// is set the provider must use that credential only.
type CredentialRequest struct {
	RelyingPartyID string
	Challenge      []byte
	CredentialID   []byte
}

// Attestation is the registration response.
type Attestation struct {
	CredentialID      []byte
	AttestationObject []byte // CBOR map carrying authData
	ClientDataJSON    []byte
}

// Assertion is one WebAuthn signature over a challenge.
type Assertion struct {
	CredentialID      []byte
	AuthenticatorData []byte
	ClientDataJSON    []byte
	Signature         []byte // ASN.1 DER ECDSA over authData || sha256(clientDataJSON)
}

// PasskeyCredential is the on-chain identity of a registered passkey: the
// credential id for later assertion requests and the P-256 public key the
// account contract verifies against.
type PasskeyCredential struct {
	CredentialID []byte
	PublicKeyX   *big.Int
	PublicKeyY   *big.Int
}

// COSE key labels for an EC2 key (RFC 9052). Coordinates are byte strings.
const (
	coseLabelX = -2
	coseLabelY = -3
)

// authData layout: rpIdHash(32) || flags(1) || signCount(4) || attested
// credential data when the AT flag is set: aaguid(16) || credIdLen(2) ||
// credId || COSE public key.
const (
	authDataFlagsOffset   = 32
	authDataMinAttestedAt = 55 // 32 + 1 + 4 + 16 + 2
	flagAttestedCredData  = 0x40
)

// ExtractPublicKey pulls the P-256 public key out of a registration's CBOR
// attestation object. It fails when the attested-credential-data flag is
// unset or either coordinate is missing.
func ExtractPublicKey(attestationObject []byte) (x, y *big.Int, err error) {
	var envelope struct {
		AuthData []byte `cbor:"authData"`
	}
	if err := cbor.Unmarshal(attestationObject, &envelope); err != nil {
		return nil, nil, fmt.Errorf("attestation object is not valid CBOR: %w", err)
	}
	return PublicKeyFromAuthData(envelope.AuthData)
}

// PublicKeyFromAuthData walks the authenticator-data layout to the COSE key
// and extracts the coordinate pair.
func PublicKeyFromAuthData(authData []byte) (x, y *big.Int, err error) {
	if len(authData) <= authDataFlagsOffset {
		return nil, nil, fmt.Errorf("authenticator data too short: %d bytes", len(authData))
	}
	flags := authData[authDataFlagsOffset]
	if flags&flagAttestedCredData == 0 {
		return nil, nil, fmt.Errorf("attested credential data flag is not set")
	}
	if len(authData) < authDataMinAttestedAt {
		return nil, nil, fmt.Errorf("attested credential data truncated at %d bytes", len(authData))
	}

	credIDLen := int(binary.BigEndian.Uint16(authData[53:55]))
	keyStart := authDataMinAttestedAt + credIDLen
	if len(authData) <= keyStart {
		return nil, nil, fmt.Errorf("credential id length %d leaves no room for a public key", credIDLen)
	}

	// The COSE key may be followed by extension data; decode one CBOR item.
	var coseKey map[int]any
	dec := cbor.NewDecoder(bytes.NewReader(authData[keyStart:]))
	if err := dec.Decode(&coseKey); err != nil {
		return nil, nil, fmt.Errorf("COSE key is not valid CBOR: %w", err)
	}

	x, err = coseCoordinate(coseKey, coseLabelX, "x")
	if err != nil {
		return nil, nil, err
	}
	y, err = coseCoordinate(coseKey, coseLabelY, "y")
	if err != nil {
		return nil, nil, err
	}
	return x, y, nil
}

func coseCoordinate(key map[int]any, label int, name string) (*big.Int, error) {
	raw, ok := key[label]
	if !ok {
		return nil, fmt.Errorf("COSE key is missing the %s coordinate", name)
	}
	b, ok := raw.([]byte)
	if !ok || len(b) == 0 || len(b) > 32 {
		return nil, fmt.Errorf("COSE key %s coordinate is malformed", name)
	}
	return new(big.Int).SetBytes(b), nil
}

// RegisterPasskey runs a WebAuthn registration through the provider and
// returns the credential identity the SDK needs for passkey accounts.
func RegisterPasskey(ctx context.Context, provider CredentialProvider, req CredentialCreation) (*PasskeyCredential, error) {
	attestation, err := provider.Create(ctx, req)
	if err != nil {
		return nil, &SigningError{Mode: ModePasskey, Err: fmt.Errorf("credential creation: %w", err)}
	}
	x, y, err := ExtractPublicKey(attestation.AttestationObject)
	if err != nil {
		return nil, &SigningError{Mode: ModePasskey, Err: err}
	}
	return &PasskeyCredential{
		CredentialID: attestation.CredentialID,
		PublicKeyX:   x,
		PublicKeyY:   y,
	}, nil
}
