package preset

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/oklog/ulid/v2"

	"github.com/IncentivNetwork/ui-sdk/core/chainio/aa"
	"github.com/IncentivNetwork/ui-sdk/metrics"
	"github.com/IncentivNetwork/ui-sdk/pkg/byte4"
	"github.com/IncentivNetwork/ui-sdk/pkg/eip1559"
	"github.com/IncentivNetwork/ui-sdk/pkg/erc4337/bundler"
	"github.com/IncentivNetwork/ui-sdk/pkg/erc4337/gas"
	"github.com/IncentivNetwork/ui-sdk/pkg/erc4337/paymaster"
	"github.com/IncentivNetwork/ui-sdk/pkg/erc4337/signature"
	"github.com/IncentivNetwork/ui-sdk/pkg/erc4337/userop"
	"github.com/IncentivNetwork/ui-sdk/pkg/logger"
)

// BuilderState walks Unbuilt -> GasEstimated -> Signed -> Submitted. The
// order is strict and each stage runs at most once per builder.
type BuilderState int

const (
	StateUnbuilt BuilderState = iota
	StateGasEstimated
	StateSigned
	StateSubmitted
)

func (s BuilderState) String() string {
	switch s {
	case StateUnbuilt:
		return "unbuilt"
	case StateGasEstimated:
		return "gas_estimated"
	case StateSigned:
		return "signed"
	case StateSubmitted:
		return "submitted"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

var oneGwei = big.NewInt(1_000_000_000)

// BuilderConfig wires a Builder. Client, Bundler, Resolver and Codec are
// required; the rest defaults to something sensible.
type BuilderConfig struct {
	Client   *ethclient.Client
	Bundler  *bundler.BundlerClient
	Resolver *AccountStateResolver
	Codec    signature.Codec

	// Overheads defaults to gas.DefaultOverheads().
	Overheads *gas.Overheads

	// Fees defaults to live suggestions from Client.
	Fees eip1559.Suggester

	// Nonces tracks in-flight nonces across builders. Optional; without it
	// every build reads the entrypoint nonce directly.
	Nonces *bundler.NonceManager

	// Sponsor decorates operations with paymaster data. Optional.
	Sponsor paymaster.Provider

	// EntryPoint defaults to aa.EntrypointAddress.
	EntryPoint common.Address

	// ChainID defaults to whatever the bundler reports.
	ChainID *big.Int

	Logger  logger.Logger
	Metrics *metrics.SDKMetrics
}

// Builder assembles exactly one user operation. Builders are single-use and
// not safe for concurrent use; make one per operation.
type Builder struct {
	id         string
	client     *ethclient.Client
	bundler    *bundler.BundlerClient
	resolver   *AccountStateResolver
	codec      signature.Codec
	overheads  gas.Overheads
	fees       eip1559.Suggester
	nonces     *bundler.NonceManager
	sponsor    paymaster.Provider
	entryPoint common.Address
	chainID    *big.Int
	logger     logger.Logger
	metrics    *metrics.SDKMetrics

	state     BuilderState
	op        *userop.UserOperation
	sender    common.Address
	deploying bool

	feeOverride     bool
	gasOverride     *bundler.GasEstimation
	submitAttempted bool
	submittedOpHash common.Hash
}

func NewBuilder(cfg BuilderConfig) (*Builder, error) {
	if cfg.Client == nil || cfg.Bundler == nil || cfg.Resolver == nil || cfg.Codec == nil {
		return nil, fmt.Errorf("builder requires a client, a bundler, a resolver and a codec")
	}

	id := ulid.Make().String()

	overheads := gas.DefaultOverheads()
	if cfg.Overheads != nil {
		overheads = *cfg.Overheads
	}
	overheads.SigSize = uint64(len(cfg.Codec.DummySignature()))

	fees := cfg.Fees
	if fees == nil {
		fees = eip1559.NewClientSuggester(cfg.Client)
	}

	entryPoint := cfg.EntryPoint
	if entryPoint == (common.Address{}) {
		entryPoint = aa.EntrypointAddress
	}

	return &Builder{
		id:         id,
		client:     cfg.Client,
		bundler:    cfg.Bundler,
		resolver:   cfg.Resolver,
		codec:      cfg.Codec,
		overheads:  overheads,
		fees:       fees,
		nonces:     cfg.Nonces,
		sponsor:    cfg.Sponsor,
		entryPoint: entryPoint,
		chainID:    cfg.ChainID,
		logger:     logger.EnsureLogger(cfg.Logger).With("userop_id", id),
		metrics:    cfg.Metrics,
		state:      StateUnbuilt,
	}, nil
}

// ID is the correlation id carried on every log line of this operation.
func (b *Builder) ID() string {
	return b.id
}

func (b *Builder) State() BuilderState {
	return b.state
}

// Op returns a copy of the operation in its current stage.
func (b *Builder) Op() *userop.UserOperation {
	if b.op == nil {
		return nil
	}
	return b.op.Copy()
}

// UserOpHash returns the hash echoed by the bundler after submission.
func (b *Builder) UserOpHash() common.Hash {
	return b.submittedOpHash
}

func (b *Builder) requireState(want BuilderState, stage string) error {
	if b.state != want {
		return newValidationError("%s requires the builder to be %s, it is %s", stage, want, b.state)
	}
	return nil
}

// Execute encodes a single call through the wallet. Must be called exactly
// once before BuildUserOp, unless ExecuteBatch is used instead.
func (b *Builder) Execute(target common.Address, value *big.Int, calldata []byte) error {
	if err := b.requireState(StateUnbuilt, "Execute"); err != nil {
		return err
	}
	if b.op != nil && len(b.op.CallData) > 0 {
		return newValidationError("call already encoded")
	}

	packed, err := aa.PackExecute(target, value, calldata)
	if err != nil {
		return fmt.Errorf("error packing execute calldata: %w", err)
	}

	if b.op == nil {
		b.op = &userop.UserOperation{}
	}
	b.op.CallData = packed
	return nil
}

// ExecuteBatch encodes several calls through the wallet. The arrays must be
// equal length and non-empty; that is checked before any packing or RPC.
func (b *Builder) ExecuteBatch(targets []common.Address, values []*big.Int, calldatas [][]byte) error {
	if err := b.requireState(StateUnbuilt, "ExecuteBatch"); err != nil {
		return err
	}
	if b.op != nil && len(b.op.CallData) > 0 {
		return newValidationError("call already encoded")
	}
	if len(targets) == 0 {
		return newValidationError("empty batch")
	}
	if len(calldatas) != len(targets) {
		return newValidationError("batch length mismatch: %d targets, %d calldatas", len(targets), len(calldatas))
	}
	if values != nil && len(values) != len(targets) {
		return newValidationError("batch length mismatch: %d targets, %d values", len(targets), len(values))
	}

	packed, err := aa.PackExecuteBatch(targets, values, calldatas)
	if err != nil {
		return fmt.Errorf("error packing executeBatch calldata: %w", err)
	}

	if b.op == nil {
		b.op = &userop.UserOperation{}
	}
	b.op.CallData = packed
	return nil
}

// SetFees pins maxFeePerGas and maxPriorityFeePerGas instead of asking the
// fee suggester during BuildUserOp.
func (b *Builder) SetFees(maxFeePerGas, maxPriorityFeePerGas *big.Int) error {
	if err := b.requireState(StateUnbuilt, "SetFees"); err != nil {
		return err
	}
	if maxFeePerGas == nil || maxPriorityFeePerGas == nil {
		return newValidationError("both fee caps are required")
	}
	if b.op == nil {
		b.op = &userop.UserOperation{}
	}
	b.op.MaxFeePerGas = new(big.Int).Set(maxFeePerGas)
	b.op.MaxPriorityFeePerGas = new(big.Int).Set(maxPriorityFeePerGas)
	b.feeOverride = true
	return nil
}

// SetGasLimits pins the gas limits verbatim and skips network estimation.
// preVerificationGas is still re-derived and floor-clamped at signing.
func (b *Builder) SetGasLimits(est *bundler.GasEstimation) error {
	if err := b.requireState(StateUnbuilt, "SetGasLimits"); err != nil {
		return err
	}
	if est == nil || est.CallGasLimit == nil || est.VerificationGasLimit == nil {
		return newValidationError("gas override must carry callGasLimit and verificationGasLimit")
	}
	b.gasOverride = est
	return nil
}

// BuildUserOp resolves the account, reads the nonce, fills fees and runs gas
// estimation. Unbuilt -> GasEstimated.
func (b *Builder) BuildUserOp(ctx context.Context) error {
	if err := b.requireState(StateUnbuilt, "BuildUserOp"); err != nil {
		return err
	}
	if b.op == nil || len(b.op.CallData) == 0 {
		return newValidationError("no call encoded; use Execute or ExecuteBatch first")
	}

	sender, err := b.resolver.Address(ctx)
	if err != nil {
		return err
	}
	initCode, err := b.resolver.InitCode(ctx)
	if err != nil {
		return err
	}
	b.sender = sender
	b.deploying = len(initCode) > 0

	nonce, err := b.nextNonce(ctx, sender)
	if err != nil {
		return fmt.Errorf("error reading wallet nonce: %w", err)
	}

	b.op.Sender = sender
	b.op.Nonce = nonce
	b.op.InitCode = initCode
	b.op.PaymasterAndData = []byte{}
	b.op.Signature = b.codec.DummySignature()

	if !b.feeOverride {
		maxFee, maxPriority, err := b.fees.SuggestFee(ctx)
		if err != nil {
			return fmt.Errorf("error suggesting fees: %w", err)
		}
		b.op.MaxFeePerGas = maxFee
		b.op.MaxPriorityFeePerGas = maxPriority
	}
	// Keep a little distance between the caps so the op stays includable
	// when the base fee moves.
	headroom := new(big.Int).Add(b.op.MaxPriorityFeePerGas, oneGwei)
	if b.op.MaxFeePerGas.Cmp(headroom) < 0 {
		b.op.MaxFeePerGas = headroom
	}

	if err := b.fillGasLimits(ctx); err != nil {
		return err
	}

	b.state = StateGasEstimated
	b.metrics.IncUserOpsBuilt(b.codec.Mode().String())
	b.logBuilt()
	return nil
}

func (b *Builder) nextNonce(ctx context.Context, sender common.Address) (*big.Int, error) {
	fetch := func() (*big.Int, error) {
		return aa.GetNonce(ctx, b.client, sender, nil)
	}
	if b.nonces != nil {
		return b.nonces.GetNextNonce(sender, fetch)
	}
	return fetch()
}

func (b *Builder) fillGasLimits(ctx context.Context) error {
	if b.gasOverride != nil {
		b.op.CallGasLimit = b.gasOverride.CallGasLimit
		b.op.VerificationGasLimit = b.gasOverride.VerificationGasLimit
		b.op.PreVerificationGas = gas.ClampPreVerificationGas(b.gasOverride.PreVerificationGas)
		return nil
	}

	// Seed plausible limits so the bundler can simulate the op.
	b.op.CallGasLimit = big.NewInt(gas.DefaultCallGasLimit)
	b.op.VerificationGasLimit = gas.VerificationGasLimit(b.codec.Mode() == signature.ModePasskey, b.deploying)
	b.op.PreVerificationGas = big.NewInt(gas.MinPreVerificationGas)

	est, err := b.bundler.EstimateUserOperationGas(ctx, b.op, nil)
	if err != nil {
		b.metrics.IncEstimationFailed(b.codec.Mode().String())
		return err
	}

	b.op.CallGasLimit = est.CallGasLimit
	b.op.VerificationGasLimit = est.VerificationGasLimit
	// Seeds the field between stages; SignUserOp re-derives it locally.
	b.op.PreVerificationGas = gas.ClampPreVerificationGas(est.PreVerificationGas)
	return nil
}

// SignUserOp finalizes preVerificationGas, applies sponsorship when
// configured, and signs the operation hash. GasEstimated -> Signed.
func (b *Builder) SignUserOp(ctx context.Context) error {
	if err := b.requireState(StateGasEstimated, "SignUserOp"); err != nil {
		return err
	}

	// preVerificationGas depends on the packed operation size, so the
	// paymaster blob must be length-final before it is derived. The real
	// blob is produced afterwards over the final gas fields and has the
	// placeholder's exact length.
	if b.sponsor != nil {
		b.op.PaymasterAndData = b.sponsor.Placeholder()
	}
	b.op.PreVerificationGas = gas.CalcPreVerificationGas(b.op, b.overheads)

	if b.sponsor != nil {
		placeholderLen := len(b.op.PaymasterAndData)
		data, err := b.sponsor.PaymasterAndData(ctx, b.op)
		if err != nil {
			return fmt.Errorf("error sponsoring operation: %w", err)
		}
		if len(data) != placeholderLen {
			return fmt.Errorf("sponsor returned %d bytes of paymasterAndData, placeholder was %d", len(data), placeholderLen)
		}
		b.op.PaymasterAndData = data
		b.metrics.IncSponsorships()
	}

	chainID, err := b.resolveChainID(ctx)
	if err != nil {
		return err
	}

	opHash := b.op.GetUserOpHash(b.entryPoint, chainID)
	sig, err := b.codec.Sign(ctx, opHash)
	if err != nil {
		return err
	}
	b.op.Signature = sig

	b.state = StateSigned
	b.logger.Debug("user operation signed",
		"userop_hash", opHash.Hex(),
		"pre_verification_gas", b.op.PreVerificationGas.String(),
		"mode", b.codec.Mode().String())
	return nil
}

func (b *Builder) resolveChainID(ctx context.Context) (*big.Int, error) {
	if b.chainID != nil {
		return b.chainID, nil
	}
	chainID, err := b.bundler.ChainID(ctx)
	if err != nil {
		return nil, err
	}
	b.chainID = chainID
	return chainID, nil
}

// SubmitUserOp hands the signed operation to the bundler, exactly once.
// Signed -> Submitted on acceptance. A rejection leaves the builder dead:
// rebuilding re-reads nonce and fees, which is cheaper than debugging a
// double-spent nonce after a blind resubmit.
func (b *Builder) SubmitUserOp(ctx context.Context) (common.Hash, error) {
	if err := b.requireState(StateSigned, "SubmitUserOp"); err != nil {
		return common.Hash{}, err
	}
	if b.submitAttempted {
		return common.Hash{}, newValidationError("operation was already handed to the bundler")
	}
	b.submitAttempted = true

	opHash, err := b.bundler.SendUserOperation(ctx, b.op)
	if err != nil {
		b.metrics.IncUserOpsSubmitted(b.codec.Mode().String(), "rejected")
		if b.nonces != nil {
			b.nonces.ResetNonce(b.sender)
		}
		return common.Hash{}, err
	}

	b.state = StateSubmitted
	b.submittedOpHash = opHash
	b.metrics.IncUserOpsSubmitted(b.codec.Mode().String(), "accepted")

	if b.nonces != nil {
		b.nonces.IncrementNonce(b.sender, b.op.Nonce)
	}
	if b.deploying {
		b.resolver.MarkDeployed()
		b.metrics.IncDeployments("wallet")
	}

	b.logger.Info("user operation submitted",
		"userop_hash", opHash.Hex(),
		"sender", b.sender.Hex(),
		"nonce", b.op.Nonce.String(),
		"deploying", b.deploying)
	return opHash, nil
}

// Send runs BuildUserOp, SignUserOp and SubmitUserOp in order.
func (b *Builder) Send(ctx context.Context) (common.Hash, error) {
	if err := b.BuildUserOp(ctx); err != nil {
		return common.Hash{}, err
	}
	if err := b.SignUserOp(ctx); err != nil {
		return common.Hash{}, err
	}
	return b.SubmitUserOp(ctx)
}

func (b *Builder) logBuilt() {
	fields := []interface{}{
		"sender", b.sender.Hex(),
		"nonce", b.op.Nonce.String(),
		"deploying", b.deploying,
		"call_gas_limit", b.op.CallGasLimit.String(),
		"verification_gas_limit", b.op.VerificationGasLimit.String(),
		"max_fee_per_gas", b.op.MaxFeePerGas.String(),
	}
	if call, err := byte4.DecodeWalletCall(aa.SmartWalletABI(), b.op.CallData); err == nil {
		fields = append(fields, "method", call.Method, "targets", len(call.Targets))
	}
	b.logger.Info("user operation built", fields...)
}
