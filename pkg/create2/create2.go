// Package create2 predicts and executes deterministic contract deployments
// routed through a smart wallet. Deployments go through a CREATE2 deployer
// contract so the resulting address depends only on bytecode, salt and the
// deployer, never on the wallet nonce.
package create2

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/IncentivNetwork/ui-sdk/core/config"
	"github.com/IncentivNetwork/ui-sdk/metrics"
	"github.com/IncentivNetwork/ui-sdk/pkg/erc4337/preset"
	"github.com/IncentivNetwork/ui-sdk/pkg/logger"
)

type DeploymentErrorKind string

const (
	InvalidBytecode DeploymentErrorKind = "invalid_bytecode"
	InvalidDeployer DeploymentErrorKind = "invalid_deployer"
)

// DeploymentError fails a deployment before any user operation is built.
type DeploymentError struct {
	Kind    DeploymentErrorKind
	Message string
}

func (e *DeploymentError) Error() string {
	return fmt.Sprintf("deployment rejected (%s): %s", e.Kind, e.Message)
}

// The deployer interface this package speaks. deploy runs the CREATE2 and
// computeAddress mirrors the address math as a view.
const deployerABIDef = `[
  {"inputs":[{"name":"bytecode","type":"bytes"},{"name":"salt","type":"bytes32"}],"name":"deploy","outputs":[{"name":"","type":"address"}],"stateMutability":"nonpayable","type":"function"},
  {"inputs":[{"name":"bytecodeHash","type":"bytes32"},{"name":"salt","type":"bytes32"},{"name":"deployer","type":"address"}],"name":"computeAddress","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"}
]`

var deployerABI abi.ABI

func init() {
	var err error
	deployerABI, err = abi.JSON(strings.NewReader(deployerABIDef))
	if err != nil {
		panic(fmt.Errorf("invalid deployer ABI: %w", err))
	}
}

// Descriptor describes one deployment. Bytecode is hex and must carry the 0x
// prefix. ConstructorArgs, when present, are ABI-encoded and appended to the
// bytecode. A nil Salt falls back to the fixed default, so repeat deployments
// of identical bytecode land on the same address on purpose.
type Descriptor struct {
	Bytecode        string
	ConstructorArgs []byte
	Salt            *common.Hash
}

func (d Descriptor) initCode() ([]byte, error) {
	if !strings.HasPrefix(d.Bytecode, "0x") {
		return nil, &DeploymentError{Kind: InvalidBytecode, Message: "bytecode must carry the 0x prefix"}
	}
	code, err := hexutil.Decode(d.Bytecode)
	if err != nil {
		return nil, &DeploymentError{Kind: InvalidBytecode, Message: err.Error()}
	}
	if len(code) == 0 {
		return nil, &DeploymentError{Kind: InvalidBytecode, Message: "empty bytecode"}
	}
	return append(code, d.ConstructorArgs...), nil
}

func (d Descriptor) salt() common.Hash {
	if d.Salt != nil {
		return *d.Salt
	}
	return common.Hash{}
}

// Planner predicts CREATE2 addresses against one deployer contract and routes
// deployments through a wallet operation. The deployer is validated once per
// planner, on first use.
type Planner struct {
	client   *ethclient.Client
	deployer common.Address
	logger   logger.Logger
	metrics  *metrics.SDKMetrics

	mu        sync.Mutex
	validated bool
}

func NewPlanner(client *ethclient.Client, deployer common.Address, lg logger.Logger, m *metrics.SDKMetrics) (*Planner, error) {
	if client == nil {
		return nil, fmt.Errorf("planner requires an eth client")
	}
	if deployer == (common.Address{}) {
		return nil, &config.ConfigurationError{Field: "deployer_address", Message: "missing CREATE2 deployer address"}
	}
	return &Planner{
		client:   client,
		deployer: deployer,
		logger:   logger.EnsureLogger(lg),
		metrics:  m,
	}, nil
}

// ensureDeployer checks the deployer has code and answers computeAddress with
// standard CREATE2 math for a trivial pair. Success is memoized; failures are
// re-checked on the next call so a transient RPC error does not poison the
// planner.
func (p *Planner) ensureDeployer(ctx context.Context) error {
	p.mu.Lock()
	done := p.validated
	p.mu.Unlock()
	if done {
		return nil
	}

	code, err := p.client.CodeAt(ctx, p.deployer, nil)
	if err != nil {
		return fmt.Errorf("error checking deployer code: %w", err)
	}
	if len(code) == 0 {
		return &DeploymentError{Kind: InvalidDeployer, Message: fmt.Sprintf("no code at %s", p.deployer.Hex())}
	}

	probe := crypto.Keccak256Hash([]byte{0x00})
	var salt common.Hash
	onchain, err := p.computeAddress(ctx, probe, salt)
	if err != nil {
		return &DeploymentError{Kind: InvalidDeployer, Message: fmt.Sprintf("computeAddress probe failed: %v", err)}
	}
	local := crypto.CreateAddress2(p.deployer, salt, probe.Bytes())
	if onchain != local {
		return &DeploymentError{
			Kind:    InvalidDeployer,
			Message: fmt.Sprintf("deployer computes %s for the probe pair, expected %s", onchain.Hex(), local.Hex()),
		}
	}

	p.mu.Lock()
	p.validated = true
	p.mu.Unlock()

	p.logger.Debug("deployer validated", "deployer", p.deployer.Hex())
	return nil
}

func (p *Planner) computeAddress(ctx context.Context, bytecodeHash, salt common.Hash) (common.Address, error) {
	calldata, err := deployerABI.Pack("computeAddress", bytecodeHash, salt, p.deployer)
	if err != nil {
		return common.Address{}, err
	}

	deployer := p.deployer
	out, err := p.client.CallContract(ctx, ethereum.CallMsg{To: &deployer, Data: calldata}, nil)
	if err != nil {
		return common.Address{}, err
	}

	results, err := deployerABI.Unpack("computeAddress", out)
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := results[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("malformed computeAddress result")
	}
	return addr, nil
}

// PredictAddress returns the address the descriptor will deploy to. The local
// keccak256(0xff ++ deployer ++ salt ++ keccak256(initCode)) computation is
// cross-checked against the deployer's own computeAddress view.
func (p *Planner) PredictAddress(ctx context.Context, d Descriptor) (common.Address, error) {
	initCode, err := d.initCode()
	if err != nil {
		return common.Address{}, err
	}
	if err := p.ensureDeployer(ctx); err != nil {
		return common.Address{}, err
	}

	salt := d.salt()
	codeHash := crypto.Keccak256Hash(initCode)
	local := crypto.CreateAddress2(p.deployer, salt, codeHash.Bytes())

	onchain, err := p.computeAddress(ctx, codeHash, salt)
	if err != nil {
		return common.Address{}, fmt.Errorf("error predicting deployment address: %w", err)
	}
	if onchain != local {
		return common.Address{}, &DeploymentError{
			Kind:    InvalidDeployer,
			Message: fmt.Sprintf("deployer predicts %s, local math says %s", onchain.Hex(), local.Hex()),
		}
	}

	return local, nil
}

// Deploy predicts the address, wraps deploy(bytecode, salt) in a wallet
// execute call and sends it through the builder. The builder must be fresh.
// Returns the predicted contract address and the operation hash.
func (p *Planner) Deploy(ctx context.Context, d Descriptor, builder *preset.Builder) (common.Address, common.Hash, error) {
	predicted, err := p.PredictAddress(ctx, d)
	if err != nil {
		return common.Address{}, common.Hash{}, err
	}

	initCode, err := d.initCode()
	if err != nil {
		return common.Address{}, common.Hash{}, err
	}
	salt := d.salt()

	calldata, err := deployerABI.Pack("deploy", initCode, salt)
	if err != nil {
		return common.Address{}, common.Hash{}, fmt.Errorf("error packing deploy calldata: %w", err)
	}

	if err := builder.Execute(p.deployer, big.NewInt(0), calldata); err != nil {
		return common.Address{}, common.Hash{}, err
	}
	opHash, err := builder.Send(ctx)
	if err != nil {
		return common.Address{}, common.Hash{}, err
	}

	p.metrics.IncDeployments("contract")
	p.logger.Info("contract deployment submitted",
		"contract", predicted.Hex(),
		"deployer", p.deployer.Hex(),
		"salt", salt.Hex(),
		"userop_hash", opHash.Hex(),
	)
	return predicted, opHash, nil
}
