package signer

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
)

func TestSignMessageRecoverRoundTrip(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	owner := crypto.PubkeyToAddress(key.PublicKey)

	msg := []byte("hello incentiv")
	sig, err := SignMessage(key, msg)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if len(sig) != 65 {
		t.Fatalf("signature must be 65 bytes, got %d", len(sig))
	}
	if v := sig[64]; v != 27 && v != 28 {
		t.Errorf("v must be 27 or 28, got %d", v)
	}

	recovered, err := RecoverMessageAddress(msg, sig)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if recovered != owner {
		t.Errorf("recovered %s, want %s", recovered, owner)
	}
}

func TestRecoverMessageAddressRejectsShortSignature(t *testing.T) {
	if _, err := RecoverMessageAddress([]byte("x"), make([]byte, 64)); err == nil {
		t.Errorf("64 byte signature must be rejected")
	}
}

func TestLoadPrivateKey(t *testing.T) {
	tests := []struct {
		name    string
		hex     string
		wantErr bool
	}{
		{"with 0x prefix", "0x59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d", false},
		{"without prefix", "59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d", false},
		{"garbage", "0xnotakey", true},
		{"empty", "", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadPrivateKey(tc.hex)
			if tc.wantErr && err == nil {
				t.Errorf("expected an error")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
