// Package aa wraps the chain-side pieces of ERC-4337: initCode assembly for
// the wallet factories, the entrypoint sender oracle, nonce reads and
// calldata packing for the smart wallet's execute entrypoints.
package aa

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

var (
	defaultSalt     = big.NewInt(0)
	defaultNonceKey = big.NewInt(0)

	smartWalletABI    abi.ABI
	passkeyFactoryABI abi.ABI
)

// The wallet exposes execute for a single call and executeBatch for several.
// Only the calldata shape matters here so the ABI is declared inline instead
// of carrying a full generated binding.
const smartWalletABIDef = `[
  {"inputs":[{"name":"target","type":"address"},{"name":"value","type":"uint256"},{"name":"data","type":"bytes"}],"name":"execute","outputs":[],"stateMutability":"nonpayable","type":"function"},
  {"inputs":[{"name":"targets","type":"address[]"},{"name":"values","type":"uint256[]"},{"name":"datas","type":"bytes[]"}],"name":"executeBatch","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

// The passkey factory keys accounts by the credential's P-256 public key
// instead of an EOA owner.
const passkeyFactoryABIDef = `[
  {"inputs":[{"name":"x","type":"uint256"},{"name":"y","type":"uint256"},{"name":"salt","type":"uint256"}],"name":"createAccount","outputs":[{"name":"","type":"address"}],"stateMutability":"nonpayable","type":"function"}
]`

func init() {
	var err error
	smartWalletABI, err = abi.JSON(strings.NewReader(smartWalletABIDef))
	if err != nil {
		panic(fmt.Errorf("invalid smart wallet ABI: %w", err))
	}
	passkeyFactoryABI, err = abi.JSON(strings.NewReader(passkeyFactoryABIDef))
	if err != nil {
		panic(fmt.Errorf("invalid passkey factory ABI: %w", err))
	}
}

// GetInitCode returns the initCode for an owner wallet deployed through the
// configured default factory.
func GetInitCode(ownerAddress string, salt *big.Int) (string, error) {
	return GetInitCodeForFactory(ownerAddress, factoryAddress, salt)
}

// GetInitCodeForFactory builds the entrypoint initCode for a wallet owned by
// ownerAddress: the factory address followed by the createAccount calldata.
func GetInitCodeForFactory(ownerAddress string, factoryAddr common.Address, salt *big.Int) (string, error) {
	if salt == nil {
		salt = defaultSalt
	}

	factoryABI, err := SimpleFactoryMetaData.GetAbi()
	if err != nil {
		return "", err
	}

	calldata, err := factoryABI.Pack("createAccount", common.HexToAddress(ownerAddress), salt)
	if err != nil {
		return "", err
	}

	data := make([]byte, 0, common.AddressLength+len(calldata))
	data = append(data, factoryAddr.Bytes()...)
	data = append(data, calldata...)

	return hexutil.Encode(data), nil
}

// GetPasskeyInitCode builds initCode for a passkey wallet. x and y are the
// affine coordinates of the credential's public key.
func GetPasskeyInitCode(factoryAddr common.Address, x, y *big.Int, salt *big.Int) (string, error) {
	if x == nil || y == nil {
		return "", fmt.Errorf("missing passkey public key coordinates")
	}
	if salt == nil {
		salt = defaultSalt
	}

	calldata, err := passkeyFactoryABI.Pack("createAccount", x, y, salt)
	if err != nil {
		return "", err
	}

	data := make([]byte, 0, common.AddressLength+len(calldata))
	data = append(data, factoryAddr.Bytes()...)
	data = append(data, calldata...)

	return hexutil.Encode(data), nil
}

// GetSenderAddress resolves the counterfactual wallet address for initCode
// through the entrypoint's getSenderAddress, which always reverts with
// SenderAddressResult(address). The call is made raw so the revert payload
// can be recovered.
func GetSenderAddress(ctx context.Context, conn *ethclient.Client, initCode []byte) (*common.Address, error) {
	epABI, err := EntryPointMetaData.GetAbi()
	if err != nil {
		return nil, err
	}

	calldata, err := epABI.Pack("getSenderAddress", initCode)
	if err != nil {
		return nil, err
	}

	entrypoint := EntrypointAddress
	_, err = conn.CallContract(ctx, ethereum.CallMsg{
		To:   &entrypoint,
		Data: calldata,
	}, nil)
	if err == nil {
		return nil, fmt.Errorf("getSenderAddress did not revert")
	}

	revert := revertData(err)
	if revert == nil {
		return nil, fmt.Errorf("getSenderAddress revert carried no data: %w", err)
	}

	return DecodeSenderAddressResult(revert)
}

// DecodeSenderAddressResult unpacks the wallet address out of a
// SenderAddressResult revert payload.
func DecodeSenderAddressResult(revert []byte) (*common.Address, error) {
	epABI, err := EntryPointMetaData.GetAbi()
	if err != nil {
		return nil, err
	}

	errDef, ok := epABI.Errors["SenderAddressResult"]
	if !ok {
		return nil, fmt.Errorf("entrypoint ABI is missing SenderAddressResult")
	}
	if len(revert) < 4 || !bytes.Equal(revert[:4], errDef.ID.Bytes()[:4]) {
		return nil, fmt.Errorf("unexpected revert data: %s", hexutil.Encode(revert))
	}

	out, err := errDef.Inputs.Unpack(revert[4:])
	if err != nil {
		return nil, fmt.Errorf("malformed SenderAddressResult payload: %w", err)
	}
	sender, ok := out[0].(common.Address)
	if !ok {
		return nil, fmt.Errorf("malformed SenderAddressResult payload")
	}

	return &sender, nil
}

// revertData digs the raw revert bytes out of an RPC error, if any.
func revertData(err error) []byte {
	var dataErr rpc.DataError
	if !errors.As(err, &dataErr) {
		return nil
	}
	raw, ok := dataErr.ErrorData().(string)
	if !ok {
		return nil
	}
	b, decodeErr := hexutil.Decode(raw)
	if decodeErr != nil {
		return nil
	}
	return b
}

// GetNonce reads the entrypoint nonce for sender under the given key. A nil
// key reads the default sequence.
func GetNonce(ctx context.Context, conn *ethclient.Client, sender common.Address, key *big.Int) (*big.Int, error) {
	if key == nil {
		key = defaultNonceKey
	}

	entrypoint, err := NewEntryPoint(EntrypointAddress, conn)
	if err != nil {
		return nil, err
	}

	return entrypoint.GetNonce(&bind.CallOpts{Context: ctx}, sender, key)
}

// SmartWalletABI exposes the wallet ABI for callers that decode calldata
// they did not pack themselves.
func SmartWalletABI() abi.ABI {
	return smartWalletABI
}

// PackExecute encodes a single call through the wallet's execute entry.
func PackExecute(target common.Address, value *big.Int, calldata []byte) ([]byte, error) {
	if value == nil {
		value = big.NewInt(0)
	}

	return smartWalletABI.Pack("execute", target, value, calldata)
}

// PackExecuteBatch encodes several calls through executeBatch. values may be
// nil for an all-zero-value batch; otherwise all three slices must have the
// same length. abi.Pack does not enforce that, so it is checked here.
func PackExecuteBatch(targets []common.Address, values []*big.Int, calldatas [][]byte) ([]byte, error) {
	if len(targets) == 0 {
		return nil, fmt.Errorf("empty batch")
	}
	if len(calldatas) != len(targets) {
		return nil, fmt.Errorf("batch length mismatch: %d targets, %d calldatas", len(targets), len(calldatas))
	}
	if values != nil && len(values) != len(targets) {
		return nil, fmt.Errorf("batch length mismatch: %d targets, %d values", len(targets), len(values))
	}

	normalized := make([]*big.Int, len(targets))
	for i := range normalized {
		if values != nil && values[i] != nil {
			normalized[i] = values[i]
		} else {
			normalized[i] = big.NewInt(0)
		}
	}

	return smartWalletABI.Pack("executeBatch", targets, normalized, calldatas)
}
