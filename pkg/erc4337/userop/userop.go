package userop

import (
	"encoding/json"
	"fmt"
	"math/big"
	"reflect"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

var validate = validator.New()

// UserOperation is the EntryPoint v0.6 operation struct. Gas fields are kept
// as big.Int and byte fields as raw bytes; the JSON encoding is the bundler
// wire form (0x-prefixed hex for every field).
type UserOperation struct {
	Sender               common.Address `json:"sender"               mapstructure:"sender"               validate:"required"`
	Nonce                *big.Int       `json:"nonce"                mapstructure:"nonce"                validate:"required"`
	InitCode             []byte         `json:"initCode"             mapstructure:"initCode"`
	CallData             []byte         `json:"callData"             mapstructure:"callData"             validate:"required"`
	CallGasLimit         *big.Int       `json:"callGasLimit"         mapstructure:"callGasLimit"         validate:"required"`
	VerificationGasLimit *big.Int       `json:"verificationGasLimit" mapstructure:"verificationGasLimit" validate:"required"`
	PreVerificationGas   *big.Int       `json:"preVerificationGas"   mapstructure:"preVerificationGas"   validate:"required"`
	MaxFeePerGas         *big.Int       `json:"maxFeePerGas"         mapstructure:"maxFeePerGas"         validate:"required"`
	MaxPriorityFeePerGas *big.Int       `json:"maxPriorityFeePerGas" mapstructure:"maxPriorityFeePerGas" validate:"required"`
	PaymasterAndData     []byte         `json:"paymasterAndData"     mapstructure:"paymasterAndData"`
	Signature            []byte         `json:"signature"            mapstructure:"signature"`
}

// packArgs is the flat 11-field encoding used for byte-level gas accounting.
// Dynamic fields stay inline (no hashing) so the calldata cost of the real
// payload is measured.
var packArgs = abi.Arguments{
	{Name: "sender", Type: address},
	{Name: "nonce", Type: uint256},
	{Name: "initCode", Type: bytesT},
	{Name: "callData", Type: bytesT},
	{Name: "callGasLimit", Type: uint256},
	{Name: "verificationGasLimit", Type: uint256},
	{Name: "preVerificationGas", Type: uint256},
	{Name: "maxFeePerGas", Type: uint256},
	{Name: "maxPriorityFeePerGas", Type: uint256},
	{Name: "paymasterAndData", Type: bytesT},
	{Name: "signature", Type: bytesT},
}

// packForSignatureArgs hashes the dynamic fields and drops the signature,
// matching EntryPoint.getUserOpHash.
var packForSignatureArgs = abi.Arguments{
	{Name: "sender", Type: address},
	{Name: "nonce", Type: uint256},
	{Name: "hashInitCode", Type: bytes32},
	{Name: "hashCallData", Type: bytes32},
	{Name: "callGasLimit", Type: uint256},
	{Name: "verificationGasLimit", Type: uint256},
	{Name: "preVerificationGas", Type: uint256},
	{Name: "maxFeePerGas", Type: uint256},
	{Name: "maxPriorityFeePerGas", Type: uint256},
	{Name: "hashPaymasterAndData", Type: bytes32},
}

var (
	address, _ = abi.NewType("address", "", nil)
	uint256, _ = abi.NewType("uint256", "", nil)
	bytes32, _ = abi.NewType("bytes32", "", nil)
	bytesT, _  = abi.NewType("bytes", "", nil)
)

// Pack returns the full ABI encoding of the operation including the signature.
// It is used to size the calldata for preVerificationGas and cannot be used to
// derive the userOpHash.
func (op *UserOperation) Pack() []byte {
	packed, _ := packArgs.Pack(
		op.Sender,
		op.Nonce,
		op.InitCode,
		op.CallData,
		op.CallGasLimit,
		op.VerificationGasLimit,
		op.PreVerificationGas,
		op.MaxFeePerGas,
		op.MaxPriorityFeePerGas,
		op.PaymasterAndData,
		op.Signature,
	)
	return packed
}

// PackForSignature returns the signature-input encoding: dynamic fields are
// replaced by their keccak256 hashes and the signature is excluded.
func (op *UserOperation) PackForSignature() []byte {
	packed, _ := packForSignatureArgs.Pack(
		op.Sender,
		op.Nonce,
		crypto.Keccak256Hash(op.InitCode),
		crypto.Keccak256Hash(op.CallData),
		op.CallGasLimit,
		op.VerificationGasLimit,
		op.PreVerificationGas,
		op.MaxFeePerGas,
		op.MaxPriorityFeePerGas,
		crypto.Keccak256Hash(op.PaymasterAndData),
	)
	return packed
}

// GetUserOpHash returns the hash of the userOp + entryPoint address + chainID.
// This is the value smart accounts sign over.
func (op *UserOperation) GetUserOpHash(entryPoint common.Address, chainID *big.Int) common.Hash {
	return crypto.Keccak256Hash(
		crypto.Keccak256(op.PackForSignature()),
		common.LeftPadBytes(entryPoint.Bytes(), 32),
		common.LeftPadBytes(chainID.Bytes(), 32),
	)
}

// MaxGasCost returns the worst-case wei cost of the operation: the sum of all
// three gas limits multiplied by maxFeePerGas.
func (op *UserOperation) MaxGasCost() *big.Int {
	limits := new(big.Int).Add(op.CallGasLimit, op.VerificationGasLimit)
	limits.Add(limits, op.PreVerificationGas)
	return limits.Mul(limits, op.MaxFeePerGas)
}

// Validate checks that every field required by the EntryPoint is set.
func (op *UserOperation) Validate() error {
	return validate.Struct(op)
}

// Copy returns a deep copy of the operation.
func (op *UserOperation) Copy() *UserOperation {
	dup := &UserOperation{
		Sender:           op.Sender,
		InitCode:         append([]byte(nil), op.InitCode...),
		CallData:         append([]byte(nil), op.CallData...),
		PaymasterAndData: append([]byte(nil), op.PaymasterAndData...),
		Signature:        append([]byte(nil), op.Signature...),
	}
	if op.Nonce != nil {
		dup.Nonce = new(big.Int).Set(op.Nonce)
	}
	if op.CallGasLimit != nil {
		dup.CallGasLimit = new(big.Int).Set(op.CallGasLimit)
	}
	if op.VerificationGasLimit != nil {
		dup.VerificationGasLimit = new(big.Int).Set(op.VerificationGasLimit)
	}
	if op.PreVerificationGas != nil {
		dup.PreVerificationGas = new(big.Int).Set(op.PreVerificationGas)
	}
	if op.MaxFeePerGas != nil {
		dup.MaxFeePerGas = new(big.Int).Set(op.MaxFeePerGas)
	}
	if op.MaxPriorityFeePerGas != nil {
		dup.MaxPriorityFeePerGas = new(big.Int).Set(op.MaxPriorityFeePerGas)
	}
	return dup
}

// MarshalJSON returns the bundler wire form of the UserOperation.
func (op *UserOperation) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		Sender               string `json:"sender"`
		Nonce                string `json:"nonce"`
		InitCode             string `json:"initCode"`
		CallData             string `json:"callData"`
		CallGasLimit         string `json:"callGasLimit"`
		VerificationGasLimit string `json:"verificationGasLimit"`
		PreVerificationGas   string `json:"preVerificationGas"`
		MaxFeePerGas         string `json:"maxFeePerGas"`
		MaxPriorityFeePerGas string `json:"maxPriorityFeePerGas"`
		PaymasterAndData     string `json:"paymasterAndData"`
		Signature            string `json:"signature"`
	}{
		Sender:               op.Sender.String(),
		Nonce:                encodeBig(op.Nonce),
		InitCode:             hexutil.Encode(op.InitCode),
		CallData:             hexutil.Encode(op.CallData),
		CallGasLimit:         encodeBig(op.CallGasLimit),
		VerificationGasLimit: encodeBig(op.VerificationGasLimit),
		PreVerificationGas:   encodeBig(op.PreVerificationGas),
		MaxFeePerGas:         encodeBig(op.MaxFeePerGas),
		MaxPriorityFeePerGas: encodeBig(op.MaxPriorityFeePerGas),
		PaymasterAndData:     hexutil.Encode(op.PaymasterAndData),
		Signature:            hexutil.Encode(op.Signature),
	})
}

// UnmarshalJSON parses the bundler wire form of the UserOperation.
func (op *UserOperation) UnmarshalJSON(input []byte) error {
	fields := map[string]any{}
	if err := json.Unmarshal(input, &fields); err != nil {
		return err
	}
	decoded, err := FromWireMap(fields)
	if err != nil {
		return err
	}
	*op = *decoded
	return nil
}

func encodeBig(n *big.Int) string {
	if n == nil {
		return "0x0"
	}
	return hexutil.EncodeBig(n)
}

// FromWireMap decodes a hex-string field map, as returned by bundler RPC
// methods, into a UserOperation.
func FromWireMap(data map[string]any) (*UserOperation, error) {
	op := &UserOperation{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: wireDecodeHook,
		Result:     op,
		ErrorUnset: false,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(data); err != nil {
		return nil, fmt.Errorf("malformed user operation: %w", err)
	}
	return op, nil
}

// wireDecodeHook converts 0x-prefixed strings into the model's field types.
func wireDecodeHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String {
		return data, nil
	}
	raw, _ := data.(string)

	switch to {
	case reflect.TypeOf(common.Address{}):
		if !common.IsHexAddress(raw) {
			return nil, fmt.Errorf("invalid address %q", raw)
		}
		return common.HexToAddress(raw), nil
	case reflect.TypeOf(&big.Int{}):
		if raw == "" || raw == "0x" {
			return big.NewInt(0), nil
		}
		n, err := hexutil.DecodeBig(normalizeQuantity(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid quantity %q: %w", raw, err)
		}
		return n, nil
	case reflect.TypeOf([]byte{}):
		if raw == "" {
			return []byte{}, nil
		}
		b, err := hexutil.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid hex data %q: %w", raw, err)
		}
		return b, nil
	}
	return data, nil
}

// normalizeQuantity tolerates zero-padded quantities some relays emit.
func normalizeQuantity(raw string) string {
	if !strings.HasPrefix(raw, "0x") {
		return raw
	}
	trimmed := strings.TrimLeft(raw[2:], "0")
	if trimmed == "" {
		trimmed = "0"
	}
	return "0x" + trimmed
}
