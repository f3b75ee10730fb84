package userop

import (
	"bytes"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func testOp() *UserOperation {
	return &UserOperation{
		Sender:               common.HexToAddress("0xe0f7D11FD714674722d325Cd86062A5F1882E13a"),
		Nonce:                big.NewInt(5),
		InitCode:             []byte{},
		CallData:             common.FromHex("0xb61d27f6"),
		CallGasLimit:         big.NewInt(200000),
		VerificationGasLimit: big.NewInt(700000),
		PreVerificationGas:   big.NewInt(50000),
		MaxFeePerGas:         big.NewInt(2000000000),
		MaxPriorityFeePerGas: big.NewInt(1000000000),
		PaymasterAndData:     []byte{},
		Signature:            bytes.Repeat([]byte{1}, 65),
	}
}

func TestPackForSignatureIsFixedWidth(t *testing.T) {
	packed := testOp().PackForSignature()
	if len(packed) != 320 {
		t.Errorf("expected 10 static words (320 bytes), got %d", len(packed))
	}
}

func TestPackKeepsDynamicFieldsInline(t *testing.T) {
	op := testOp()
	packed := op.Pack()

	if len(packed)%32 != 0 {
		t.Errorf("packed length %d is not word aligned", len(packed))
	}
	if !bytes.Contains(packed, op.Signature) {
		t.Errorf("signature bytes must appear inline in the packed form")
	}
	if !bytes.Contains(packed, op.CallData) {
		t.Errorf("calldata bytes must appear inline in the packed form")
	}
}

func TestGetUserOpHashSensitivity(t *testing.T) {
	entryPoint := common.HexToAddress("0x5FF137D4b0FDCD49DcA30c7CF57E578a026d2789")
	chainID := big.NewInt(11155111)

	base := testOp()
	baseHash := base.GetUserOpHash(entryPoint, chainID)

	if got := testOp().GetUserOpHash(entryPoint, chainID); got != baseHash {
		t.Errorf("identical ops must hash identically: %s != %s", got, baseHash)
	}

	tests := []struct {
		name   string
		mutate func(op *UserOperation)
	}{
		{"nonce", func(op *UserOperation) { op.Nonce = big.NewInt(6) }},
		{"calldata", func(op *UserOperation) { op.CallData = common.FromHex("0x18dfb3c7") }},
		{"maxFeePerGas", func(op *UserOperation) { op.MaxFeePerGas = big.NewInt(3000000000) }},
		{"initCode", func(op *UserOperation) { op.InitCode = common.FromHex("0xdead") }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			op := testOp()
			tc.mutate(op)
			if got := op.GetUserOpHash(entryPoint, chainID); got == baseHash {
				t.Errorf("changing %s must change the hash", tc.name)
			}
		})
	}

	// The signature is excluded from the hash input.
	signed := testOp()
	signed.Signature = bytes.Repeat([]byte{2}, 65)
	if got := signed.GetUserOpHash(entryPoint, chainID); got != baseHash {
		t.Errorf("signature must not affect the hash")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	op := testOp()
	raw, err := json.Marshal(op)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	decoded := &UserOperation{}
	if err := json.Unmarshal(raw, decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if decoded.Sender != op.Sender {
		t.Errorf("sender mismatch: %s != %s", decoded.Sender, op.Sender)
	}
	if decoded.Nonce.Cmp(op.Nonce) != 0 {
		t.Errorf("nonce mismatch: %s != %s", decoded.Nonce, op.Nonce)
	}
	if !bytes.Equal(decoded.CallData, op.CallData) {
		t.Errorf("calldata mismatch")
	}
	if !bytes.Equal(decoded.Signature, op.Signature) {
		t.Errorf("signature mismatch")
	}
	if decoded.MaxPriorityFeePerGas.Cmp(op.MaxPriorityFeePerGas) != 0 {
		t.Errorf("maxPriorityFeePerGas mismatch")
	}
}

func TestFromWireMap(t *testing.T) {
	tests := []struct {
		name    string
		data    map[string]any
		wantErr bool
		check   func(t *testing.T, op *UserOperation)
	}{
		{
			name: "zero padded quantities are tolerated",
			data: map[string]any{
				"sender":               "0xe0f7D11FD714674722d325Cd86062A5F1882E13a",
				"nonce":                "0x0000000000000005",
				"initCode":             "0x",
				"callData":             "0xb61d27f6",
				"callGasLimit":         "0x30d40",
				"verificationGasLimit": "0xaae60",
				"preVerificationGas":   "0xc350",
				"maxFeePerGas":         "0x77359400",
				"maxPriorityFeePerGas": "0x3b9aca00",
				"paymasterAndData":     "0x",
				"signature":            "0x",
			},
			check: func(t *testing.T, op *UserOperation) {
				if op.Nonce.Cmp(big.NewInt(5)) != 0 {
					t.Errorf("nonce = %s, want 5", op.Nonce)
				}
				if len(op.InitCode) != 0 {
					t.Errorf("initCode must decode to empty bytes")
				}
			},
		},
		{
			name: "invalid address rejected",
			data: map[string]any{
				"sender": "0x123",
				"nonce":  "0x1",
			},
			wantErr: true,
		},
		{
			name: "invalid quantity rejected",
			data: map[string]any{
				"sender": "0xe0f7D11FD714674722d325Cd86062A5F1882E13a",
				"nonce":  "0xzz",
			},
			wantErr: true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			op, err := FromWireMap(tc.data)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.check != nil {
				tc.check(t, op)
			}
		})
	}
}

func TestMaxGasCost(t *testing.T) {
	op := testOp()
	// (200000 + 700000 + 50000) * 2 gwei
	want := new(big.Int).Mul(big.NewInt(950000), big.NewInt(2000000000))
	if got := op.MaxGasCost(); got.Cmp(want) != 0 {
		t.Errorf("MaxGasCost = %s, want %s", got, want)
	}
}

func TestValidateRequiresGasFields(t *testing.T) {
	op := testOp()
	if err := op.Validate(); err != nil {
		t.Fatalf("complete op must validate: %v", err)
	}

	op.CallGasLimit = nil
	if err := op.Validate(); err == nil {
		t.Errorf("missing callGasLimit must fail validation")
	}
}

func TestCopyIsDeep(t *testing.T) {
	op := testOp()
	dup := op.Copy()

	dup.Nonce.SetInt64(99)
	dup.CallData[0] = 0xff

	if op.Nonce.Cmp(big.NewInt(5)) != 0 {
		t.Errorf("copy must not share the nonce")
	}
	if op.CallData[0] == 0xff {
		t.Errorf("copy must not share calldata backing array")
	}
}
