package bundler

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"regexp"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
)

// EstimationError is returned when eth_estimateUserOperationGas is rejected.
// Reason carries the entrypoint failure (the AAxx code with its message) when
// one could be recovered from the response.
type EstimationError struct {
	Code    int
	Message string
	Reason  string
}

func (e *EstimationError) Error() string {
	if e.Reason != "" && e.Reason != e.Message {
		return fmt.Sprintf("gas estimation rejected (code %d): %s: %s", e.Code, e.Message, e.Reason)
	}
	return fmt.Sprintf("gas estimation rejected (code %d): %s", e.Code, e.Message)
}

// SubmissionError is returned when eth_sendUserOperation is rejected. The
// operation was not accepted into the mempool; nothing was consumed on chain.
// Paymaster is set when the relay surfaced a FailedOp revert that names one.
type SubmissionError struct {
	Code      int
	Message   string
	Reason    string
	Paymaster *common.Address
}

func (e *SubmissionError) Error() string {
	msg := fmt.Sprintf("user operation rejected (code %d): %s", e.Code, e.Message)
	if e.Reason != "" && e.Reason != e.Message {
		msg = fmt.Sprintf("%s: %s", msg, e.Reason)
	}
	if e.Paymaster != nil {
		msg = fmt.Sprintf("%s (paymaster %s)", msg, e.Paymaster.Hex())
	}
	return msg
}

// Entrypoint failures surface as "AA21 didn't pay prefund" style strings,
// either directly in the RPC message or inside a FailedOp revert.
var aaReasonRe = regexp.MustCompile(`AA\d{2}[^"]*`)

// FailedOp is an entrypoint FailedOp revert. Paymaster is nil for the v0.6
// two-field shape; older entrypoints include the offending paymaster.
type FailedOp struct {
	OpIndex   *big.Int
	Paymaster *common.Address
	Reason    string
}

var (
	failedOpSelector       = crypto.Keccak256([]byte("FailedOp(uint256,string)"))[:4]
	failedOpLegacySelector = crypto.Keccak256([]byte("FailedOp(uint256,address,string)"))[:4]
	failedOpArgs           abi.Arguments
	failedOpLegacyArgs     abi.Arguments
)

func init() {
	uint256Type, err := abi.NewType("uint256", "", nil)
	if err != nil {
		panic(err)
	}
	addressType, err := abi.NewType("address", "", nil)
	if err != nil {
		panic(err)
	}
	stringType, err := abi.NewType("string", "", nil)
	if err != nil {
		panic(err)
	}
	failedOpArgs = abi.Arguments{
		{Name: "opIndex", Type: uint256Type},
		{Name: "reason", Type: stringType},
	}
	failedOpLegacyArgs = abi.Arguments{
		{Name: "opIndex", Type: uint256Type},
		{Name: "paymaster", Type: addressType},
		{Name: "reason", Type: stringType},
	}
}

// DecodeFailedOp unpacks a FailedOp revert payload, accepting both the
// two-field and the legacy three-field encoding.
func DecodeFailedOp(data []byte) (*FailedOp, bool) {
	if len(data) < 4 {
		return nil, false
	}

	switch {
	case bytes.Equal(data[:4], failedOpSelector):
		out, err := failedOpArgs.Unpack(data[4:])
		if err != nil {
			return nil, false
		}
		opIndex, iOK := out[0].(*big.Int)
		reason, rOK := out[1].(string)
		if !iOK || !rOK {
			return nil, false
		}
		return &FailedOp{OpIndex: opIndex, Reason: reason}, true

	case bytes.Equal(data[:4], failedOpLegacySelector):
		out, err := failedOpLegacyArgs.Unpack(data[4:])
		if err != nil {
			return nil, false
		}
		opIndex, iOK := out[0].(*big.Int)
		paymaster, pOK := out[1].(common.Address)
		reason, rOK := out[2].(string)
		if !iOK || !pOK || !rOK {
			return nil, false
		}
		fo := &FailedOp{OpIndex: opIndex, Reason: reason}
		if paymaster != (common.Address{}) {
			fo.Paymaster = &paymaster
		}
		return fo, true
	}
	return nil, false
}

// rpcFailure pulls the JSON-RPC error code, message and decoded reason out of
// a client error.
func rpcFailure(err error) (code int, message, reason string, paymaster *common.Address) {
	message = err.Error()

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		code = rpcErr.ErrorCode()
	}

	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if raw, ok := dataErr.ErrorData().(string); ok {
			if revert, decodeErr := hexutil.Decode(raw); decodeErr == nil {
				if failedOp, ok := DecodeFailedOp(revert); ok {
					reason = failedOp.Reason
					paymaster = failedOp.Paymaster
				}
			}
			if reason == "" {
				reason = aaReasonRe.FindString(raw)
			}
		}
	}
	if reason == "" {
		reason = aaReasonRe.FindString(message)
	}
	return code, message, reason, paymaster
}

func newEstimationError(err error) *EstimationError {
	code, message, reason, _ := rpcFailure(err)
	return &EstimationError{Code: code, Message: message, Reason: reason}
}

func newSubmissionError(err error) *SubmissionError {
	code, message, reason, paymaster := rpcFailure(err)
	return &SubmissionError{Code: code, Message: message, Reason: reason, Paymaster: paymaster}
}
