// Package bundler speaks the ERC-4337 JSON-RPC surface of a bundler node.
// The bundler RPC is stateless; all state lives in the operations themselves.
package bundler

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	retry "github.com/avast/retry-go"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/samber/lo"

	"github.com/IncentivNetwork/ui-sdk/core/config"
	"github.com/IncentivNetwork/ui-sdk/pkg/erc4337/userop"
	"github.com/IncentivNetwork/ui-sdk/pkg/logger"
)

const (
	chainIDProbeTimeout = 30 * time.Second

	// Receipt polling defaults, roughly a minute of coverage.
	DefaultReceiptInterval = 3 * time.Second
	DefaultReceiptAttempts = 20
)

// GasEstimation is the bundler's answer to eth_estimateUserOperationGas.
type GasEstimation struct {
	PreVerificationGas   *big.Int
	VerificationGasLimit *big.Int
	CallGasLimit         *big.Int
}

// UserOperationLookup is the bundler's answer to eth_getUserOperationByHash.
// Block fields are nil while the operation is still pending.
type UserOperationLookup struct {
	UserOperation   *userop.UserOperation `json:"userOperation"`
	EntryPoint      common.Address        `json:"entryPoint"`
	BlockNumber     *hexutil.Big          `json:"blockNumber"`
	BlockHash       *common.Hash          `json:"blockHash"`
	TransactionHash *common.Hash          `json:"transactionHash"`
}

// UserOperationReceipt is the bundler's answer to eth_getUserOperationReceipt.
// The enclosing transaction receipt is kept raw since its exact shape varies
// between bundler implementations.
type UserOperationReceipt struct {
	UserOpHash    common.Hash     `json:"userOpHash"`
	Sender        common.Address  `json:"sender"`
	Nonce         *hexutil.Big    `json:"nonce"`
	Paymaster     *common.Address `json:"paymaster"`
	ActualGasCost *hexutil.Big    `json:"actualGasCost"`
	ActualGasUsed *hexutil.Big    `json:"actualGasUsed"`
	Success       bool            `json:"success"`
	Reason        string          `json:"reason"`
	Receipt       json.RawMessage `json:"receipt"`
}

// BundlerClient talks to one bundler endpoint for one entrypoint. The chain
// id is probed in the background at construction; operations that need it
// block until the probe settles.
type BundlerClient struct {
	client     *rpc.Client
	url        string
	entryPoint common.Address
	expected   *big.Int
	logger     logger.Logger

	ready   chan struct{}
	chainID *big.Int
	initErr error
}

// NewBundlerClient dials url and kicks off the chain id probe. The returned
// client is usable immediately. A non-nil expectedChainID is verified against
// what the bundler reports; a mismatch poisons every subsequent call with a
// *config.ConfigurationError.
func NewBundlerClient(url string, entryPoint common.Address, expectedChainID *big.Int, lg logger.Logger) (*BundlerClient, error) {
	// DialHTTP over Dial: plays better with plain HTTP bundler endpoints
	// while still accepting websocket URLs.
	c, err := rpc.DialHTTP(url)
	if err != nil {
		return nil, fmt.Errorf("error creating bundler client: %w", err)
	}

	bc := &BundlerClient{
		client:     c,
		url:        url,
		entryPoint: entryPoint,
		expected:   expectedChainID,
		logger:     logger.EnsureLogger(lg),
		ready:      make(chan struct{}),
	}
	go bc.probeChainID()

	return bc, nil
}

func (bc *BundlerClient) probeChainID() {
	defer close(bc.ready)

	ctx, cancel := context.WithTimeout(context.Background(), chainIDProbeTimeout)
	defer cancel()

	var raw string
	if err := bc.client.CallContext(ctx, &raw, "eth_chainId"); err != nil {
		bc.initErr = fmt.Errorf("bundler chain id probe: %w", err)
		return
	}

	chainID, err := hexutil.DecodeBig(raw)
	if err != nil {
		bc.initErr = fmt.Errorf("bundler chain id probe: malformed chain id %q: %w", raw, err)
		return
	}

	if bc.expected != nil && bc.expected.Cmp(chainID) != 0 {
		bc.initErr = &config.ConfigurationError{
			Field:   "chain_id",
			Message: fmt.Sprintf("bundler %s reports chain id %s, configured %s", bc.url, chainID, bc.expected),
		}
		return
	}

	bc.chainID = chainID
	bc.logger.Info("bundler ready", "url", bc.url, "chain_id", chainID.String(), "entrypoint", bc.entryPoint.Hex())
}

// ChainID blocks until the startup probe settles, then returns the bundler's
// chain id.
func (bc *BundlerClient) ChainID(ctx context.Context) (*big.Int, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-bc.ready:
	}
	if bc.initErr != nil {
		return nil, bc.initErr
	}
	return new(big.Int).Set(bc.chainID), nil
}

// EntryPoint returns the entrypoint this client submits against.
func (bc *BundlerClient) EntryPoint() common.Address {
	return bc.entryPoint
}

// Close closes the underlying RPC client connection.
func (bc *BundlerClient) Close() {
	bc.client.Close()
}

// EstimateUserOperationGas asks the bundler for gas limits. The operation
// should carry a length-correct dummy signature; the values themselves are
// ignored by validation. override follows eth_call state override semantics
// and may be nil.
func (bc *BundlerClient) EstimateUserOperationGas(
	ctx context.Context,
	op *userop.UserOperation,
	override map[string]any,
) (*GasEstimation, error) {
	if _, err := bc.ChainID(ctx); err != nil {
		return nil, err
	}

	var result struct {
		PreVerificationGas   *hexutil.Big `json:"preVerificationGas"`
		VerificationGasLimit *hexutil.Big `json:"verificationGasLimit"`
		CallGasLimit         *hexutil.Big `json:"callGasLimit"`
	}

	args := []interface{}{op, bc.entryPoint.Hex()}
	if override != nil {
		args = append(args, override)
	}

	bc.logger.Debug("estimating user operation gas",
		"sender", op.Sender.Hex(),
		"nonce", op.Nonce,
		"init_code_len", len(op.InitCode),
		"call_data_len", len(op.CallData),
	)

	if err := bc.client.CallContext(ctx, &result, "eth_estimateUserOperationGas", args...); err != nil {
		return nil, newEstimationError(err)
	}

	if result.PreVerificationGas == nil || result.VerificationGasLimit == nil || result.CallGasLimit == nil {
		return nil, &EstimationError{Message: "bundler returned incomplete gas estimation"}
	}

	return &GasEstimation{
		PreVerificationGas:   result.PreVerificationGas.ToInt(),
		VerificationGasLimit: result.VerificationGasLimit.ToInt(),
		CallGasLimit:         result.CallGasLimit.ToInt(),
	}, nil
}

// SendUserOperation submits a signed operation and returns its hash. The
// submission is attempted exactly once; whether to retry after a rejection is
// the caller's decision.
func (bc *BundlerClient) SendUserOperation(ctx context.Context, op *userop.UserOperation) (common.Hash, error) {
	if _, err := bc.ChainID(ctx); err != nil {
		return common.Hash{}, err
	}

	var raw string
	if err := bc.client.CallContext(ctx, &raw, "eth_sendUserOperation", op, bc.entryPoint.Hex()); err != nil {
		return common.Hash{}, newSubmissionError(err)
	}

	hash := common.HexToHash(raw)
	bc.logger.Info("user operation submitted", "user_op_hash", hash.Hex(), "sender", op.Sender.Hex())

	return hash, nil
}

// SupportedEntryPoints lists the entrypoints the bundler serves.
func (bc *BundlerClient) SupportedEntryPoints(ctx context.Context) ([]common.Address, error) {
	var raw []string
	if err := bc.client.CallContext(ctx, &raw, "eth_supportedEntryPoints"); err != nil {
		return nil, err
	}

	return lo.Map(raw, func(item string, _ int) common.Address {
		return common.HexToAddress(item)
	}), nil
}

// GetUserOperationByHash fetches an operation by its hash. Returns nil when
// the bundler does not know the hash.
func (bc *BundlerClient) GetUserOperationByHash(ctx context.Context, hash common.Hash) (*UserOperationLookup, error) {
	var lookup *UserOperationLookup
	if err := bc.client.CallContext(ctx, &lookup, "eth_getUserOperationByHash", hash.Hex()); err != nil {
		return nil, err
	}
	return lookup, nil
}

// GetUserOperationReceipt fetches the receipt of an operation. Returns nil
// while the operation has not been included.
func (bc *BundlerClient) GetUserOperationReceipt(ctx context.Context, hash common.Hash) (*UserOperationReceipt, error) {
	var receipt *UserOperationReceipt
	if err := bc.client.CallContext(ctx, &receipt, "eth_getUserOperationReceipt", hash.Hex()); err != nil {
		return nil, err
	}
	return receipt, nil
}

// WaitForUserOperationReceipt polls until the operation is included or the
// attempt budget runs out. interval and attempts fall back to the package
// defaults when zero.
func (bc *BundlerClient) WaitForUserOperationReceipt(
	ctx context.Context,
	hash common.Hash,
	interval time.Duration,
	attempts uint,
) (*UserOperationReceipt, error) {
	if interval <= 0 {
		interval = DefaultReceiptInterval
	}
	if attempts == 0 {
		attempts = DefaultReceiptAttempts
	}

	var receipt *UserOperationReceipt
	err := retry.Do(
		func() error {
			r, err := bc.GetUserOperationReceipt(ctx, hash)
			if err != nil {
				return err
			}
			if r == nil {
				return fmt.Errorf("user operation %s not included yet", hash.Hex())
			}
			receipt = r
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(interval),
		retry.DelayType(retry.BackOffDelay),
		retry.MaxDelay(30*time.Second),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}

	bc.logger.Info("user operation included",
		"user_op_hash", receipt.UserOpHash.Hex(),
		"success", receipt.Success,
		"actual_gas_used", receipt.ActualGasUsed,
	)

	return receipt, nil
}
