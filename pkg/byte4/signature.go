// Package byte4 maps 4-byte function selectors back to ABI methods and
// summarizes smart-wallet calldata for log lines and CLI display.
package byte4

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// GetMethodFromCalldata returns the ABI method matching the first four bytes
// of the given selector or full calldata. Function calls in the EVM are
// dispatched on the first four bytes of the Keccak hash of the canonical
// method signature.
func GetMethodFromCalldata(parsedABI abi.ABI, calldata []byte) (*abi.Method, error) {
	if len(calldata) < 4 {
		return nil, fmt.Errorf("invalid selector length: %d", len(calldata))
	}

	methodID := calldata[:4]
	for name := range parsedABI.Methods {
		method := parsedABI.Methods[name]
		if bytes.Equal(method.ID, methodID) {
			return &method, nil
		}
	}

	return nil, fmt.Errorf("no matching method found for selector: 0x%x", methodID)
}

// WalletCall is a decoded summary of an execute or executeBatch wallet call.
type WalletCall struct {
	Method  string
	Targets []common.Address
	Values  []*big.Int
	// InnerSelectors holds the hex selector of each target calldata, "0x"
	// for plain transfers.
	InnerSelectors []string
}

// DecodeWalletCall decodes wallet execute/executeBatch calldata into a
// summary. Other selectors on the wallet ABI are rejected.
func DecodeWalletCall(walletABI abi.ABI, calldata []byte) (*WalletCall, error) {
	method, err := GetMethodFromCalldata(walletABI, calldata)
	if err != nil {
		return nil, err
	}

	args, err := method.Inputs.Unpack(calldata[4:])
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s calldata: %w", method.Name, err)
	}

	switch method.Name {
	case "execute":
		target, ok1 := args[0].(common.Address)
		value, ok2 := args[1].(*big.Int)
		data, ok3 := args[2].([]byte)
		if !ok1 || !ok2 || !ok3 {
			return nil, fmt.Errorf("unexpected argument types for execute")
		}
		return &WalletCall{
			Method:         "execute",
			Targets:        []common.Address{target},
			Values:         []*big.Int{value},
			InnerSelectors: []string{innerSelector(data)},
		}, nil

	case "executeBatch":
		targets, ok1 := args[0].([]common.Address)
		values, ok2 := args[1].([]*big.Int)
		datas, ok3 := args[2].([][]byte)
		if !ok1 || !ok2 || !ok3 {
			return nil, fmt.Errorf("unexpected argument types for executeBatch")
		}
		call := &WalletCall{
			Method:  "executeBatch",
			Targets: targets,
			Values:  values,
		}
		for _, data := range datas {
			call.InnerSelectors = append(call.InnerSelectors, innerSelector(data))
		}
		return call, nil

	default:
		return nil, fmt.Errorf("selector 0x%x is %s, not a wallet call", method.ID, method.Name)
	}
}

func innerSelector(data []byte) string {
	if len(data) < 4 {
		return "0x"
	}
	return hexutil.Encode(data[:4])
}
