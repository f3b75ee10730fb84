package byte4

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Wallet ABI plus a stray ERC20 method so the not-a-wallet-call branch is
// reachable through the same parsed ABI.
const walletABIJSON = `[
	{
		"inputs": [
			{"name": "dest", "type": "address"},
			{"name": "value", "type": "uint256"},
			{"name": "func", "type": "bytes"}
		],
		"name": "execute",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"name": "dest", "type": "address[]"},
			{"name": "values", "type": "uint256[]"},
			{"name": "func", "type": "bytes[]"}
		],
		"name": "executeBatch",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"name": "_to", "type": "address"},
			{"name": "_value", "type": "uint256"}
		],
		"name": "transfer",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

func parseWalletABI(t *testing.T) abi.ABI {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(walletABIJSON))
	if err != nil {
		t.Fatalf("failed to parse ABI: %v", err)
	}
	return parsed
}

func TestGetMethodFromCalldata(t *testing.T) {
	parsedABI := parseWalletABI(t)

	tests := []struct {
		name        string
		calldata    []byte
		wantMethod  string
		errContains string
	}{
		{
			name:       "execute selector",
			calldata:   parsedABI.Methods["execute"].ID,
			wantMethod: "execute",
		},
		{
			name:       "executeBatch selector",
			calldata:   parsedABI.Methods["executeBatch"].ID,
			wantMethod: "executeBatch",
		},
		{
			name:       "transfer selector",
			calldata:   hexutil.MustDecode("0xa9059cbb000000000000000000000000ce289bb9fb0a9591317981223cbe33d5dc42268d"),
			wantMethod: "transfer",
		},
		{
			name:        "too short",
			calldata:    []byte{0xb6, 0x1d},
			errContains: "invalid selector length",
		},
		{
			name:        "unknown selector",
			calldata:    hexutil.MustDecode("0x12345678"),
			errContains: "no matching method found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method, err := GetMethodFromCalldata(parsedABI, tt.calldata)

			if tt.errContains != "" {
				if err == nil {
					t.Fatal("expected error but got nil")
				}
				if !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("error %q does not contain %q", err.Error(), tt.errContains)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if method.Name != tt.wantMethod {
				t.Errorf("got method %q, want %q", method.Name, tt.wantMethod)
			}
		})
	}
}

func TestDecodeWalletCallExecute(t *testing.T) {
	parsedABI := parseWalletABI(t)

	target := common.HexToAddress("0xce289Bb9FB0A9591317981223cbE33D5dc42268E")
	inner := hexutil.MustDecode("0xa9059cbb000000000000000000000000ce289bb9fb0a9591317981223cbe33d5dc42268d0000000000000000000000000000000000000000000000000de0b6b3a7640000")

	calldata, err := parsedABI.Pack("execute", target, big.NewInt(0), inner)
	if err != nil {
		t.Fatalf("failed to pack execute: %v", err)
	}

	call, err := DecodeWalletCall(parsedABI, calldata)
	if err != nil {
		t.Fatalf("DecodeWalletCall failed: %v", err)
	}

	if call.Method != "execute" {
		t.Errorf("got method %q, want execute", call.Method)
	}
	if len(call.Targets) != 1 || call.Targets[0] != target {
		t.Errorf("got targets %v, want [%s]", call.Targets, target.Hex())
	}
	if call.Values[0].Sign() != 0 {
		t.Errorf("got value %s, want 0", call.Values[0])
	}
	if call.InnerSelectors[0] != "0xa9059cbb" {
		t.Errorf("got inner selector %q, want 0xa9059cbb", call.InnerSelectors[0])
	}
}

func TestDecodeWalletCallExecuteBatch(t *testing.T) {
	parsedABI := parseWalletABI(t)

	targets := []common.Address{
		common.HexToAddress("0x1111111111111111111111111111111111111111"),
		common.HexToAddress("0x2222222222222222222222222222222222222222"),
	}
	values := []*big.Int{big.NewInt(1), big.NewInt(2)}
	datas := [][]byte{
		hexutil.MustDecode("0xa9059cbb"),
		{}, // plain transfer, no calldata
	}

	calldata, err := parsedABI.Pack("executeBatch", targets, values, datas)
	if err != nil {
		t.Fatalf("failed to pack executeBatch: %v", err)
	}

	call, err := DecodeWalletCall(parsedABI, calldata)
	if err != nil {
		t.Fatalf("DecodeWalletCall failed: %v", err)
	}

	if call.Method != "executeBatch" {
		t.Errorf("got method %q, want executeBatch", call.Method)
	}
	if len(call.Targets) != 2 {
		t.Fatalf("got %d targets, want 2", len(call.Targets))
	}
	if call.InnerSelectors[0] != "0xa9059cbb" || call.InnerSelectors[1] != "0x" {
		t.Errorf("got inner selectors %v", call.InnerSelectors)
	}
}

func TestDecodeWalletCallRejectsNonWalletSelector(t *testing.T) {
	parsedABI := parseWalletABI(t)

	calldata, err := parsedABI.Pack("transfer",
		common.HexToAddress("0x1111111111111111111111111111111111111111"), big.NewInt(1))
	if err != nil {
		t.Fatalf("failed to pack transfer: %v", err)
	}

	_, err = DecodeWalletCall(parsedABI, calldata)
	if err == nil || !strings.Contains(err.Error(), "not a wallet call") {
		t.Errorf("expected not-a-wallet-call error, got %v", err)
	}
}
