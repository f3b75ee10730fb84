// Package preset drives a user operation through the assembly pipeline:
// resolve account state, encode the call, estimate gas, account
// preVerificationGas, sign, submit.
package preset

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/IncentivNetwork/ui-sdk/core/chainio/aa"
	"github.com/IncentivNetwork/ui-sdk/core/config"
	"github.com/IncentivNetwork/ui-sdk/pkg/logger"
)

// Account identifies one smart wallet. EOA wallets are keyed by the owner
// address, passkey wallets by the credential's P-256 public key; both carry a
// uint256 salt so one identity can hold several wallets.
type Account struct {
	Owner      common.Address
	PublicKeyX *big.Int
	PublicKeyY *big.Int

	// Salt selects the wallet index, nil means 0.
	Salt *big.Int

	// Address short-circuits derivation when the wallet address is already
	// known, for example from the local wallet store.
	Address *common.Address
}

func (a Account) IsPasskey() bool {
	return a.PublicKeyX != nil && a.PublicKeyY != nil
}

// AccountStateResolver tracks one account's address and deployment state.
// Resolvers are not shared across accounts; the deployed flag is monotonic
// and never flips back to phantom.
type AccountStateResolver struct {
	client  *ethclient.Client
	cfg     *config.SmartWalletConfig
	account Account
	logger  logger.Logger

	mu       sync.Mutex
	address  *common.Address
	deployed bool
}

func NewAccountStateResolver(client *ethclient.Client, cfg *config.SmartWalletConfig, account Account, lg logger.Logger) *AccountStateResolver {
	return &AccountStateResolver{
		client:  client,
		cfg:     cfg,
		account: account,
		logger:  logger.EnsureLogger(lg),
	}
}

func (r *AccountStateResolver) Account() Account {
	return r.account
}

// initCodeHex assembles factory address ++ createAccount calldata for this
// account, independent of deployment state.
func (r *AccountStateResolver) initCodeHex() (string, error) {
	if r.account.IsPasskey() {
		if r.cfg.PasskeyFactoryAddress == (common.Address{}) {
			return "", &config.ConfigurationError{
				Field:   "passkey_factory_address",
				Message: "required to derive passkey wallet addresses",
			}
		}
		return aa.GetPasskeyInitCode(r.cfg.PasskeyFactoryAddress, r.account.PublicKeyX, r.account.PublicKeyY, r.account.Salt)
	}

	if r.account.Owner == (common.Address{}) {
		return "", newValidationError("account has neither an owner nor a passkey credential")
	}
	if r.cfg.FactoryAddress == (common.Address{}) {
		return "", &config.ConfigurationError{
			Field:   "factory_address",
			Message: "required to derive wallet addresses",
		}
	}
	return aa.GetInitCodeForFactory(r.account.Owner.Hex(), r.cfg.FactoryAddress, r.account.Salt)
}

// Address returns the wallet address, deriving the counterfactual address
// through the entrypoint's getSenderAddress oracle on first use.
func (r *AccountStateResolver) Address(ctx context.Context) (common.Address, error) {
	r.mu.Lock()
	if r.account.Address != nil {
		addr := *r.account.Address
		r.mu.Unlock()
		return addr, nil
	}
	if r.address != nil {
		addr := *r.address
		r.mu.Unlock()
		return addr, nil
	}
	r.mu.Unlock()

	initCodeHex, err := r.initCodeHex()
	if err != nil {
		return common.Address{}, err
	}
	initCode, err := hexutil.Decode(initCodeHex)
	if err != nil {
		return common.Address{}, fmt.Errorf("malformed initCode: %w", err)
	}

	sender, err := aa.GetSenderAddress(ctx, r.client, initCode)
	if err != nil {
		return common.Address{}, fmt.Errorf("error deriving wallet address: %w", err)
	}

	r.mu.Lock()
	r.address = sender
	r.mu.Unlock()

	r.logger.Debug("derived wallet address",
		"address", sender.Hex(),
		"passkey", r.account.IsPasskey())
	return *sender, nil
}

// IsPhantom reports whether the wallet still has no code on chain. Once code
// is observed the answer is cached and stays false.
func (r *AccountStateResolver) IsPhantom(ctx context.Context) (bool, error) {
	r.mu.Lock()
	if r.deployed {
		r.mu.Unlock()
		return false, nil
	}
	r.mu.Unlock()

	addr, err := r.Address(ctx)
	if err != nil {
		return false, err
	}

	code, err := r.client.CodeAt(ctx, addr, nil)
	if err != nil {
		return false, fmt.Errorf("error checking wallet code: %w", err)
	}
	if len(code) == 0 {
		return true, nil
	}

	r.mu.Lock()
	r.deployed = true
	r.mu.Unlock()
	return false, nil
}

// InitCode returns the bytes the operation must carry: empty once the wallet
// is deployed, factory ++ createAccount calldata before that.
func (r *AccountStateResolver) InitCode(ctx context.Context) ([]byte, error) {
	phantom, err := r.IsPhantom(ctx)
	if err != nil {
		return nil, err
	}
	if !phantom {
		return []byte{}, nil
	}

	initCodeHex, err := r.initCodeHex()
	if err != nil {
		return nil, err
	}
	return hexutil.Decode(initCodeHex)
}

// MarkDeployed records that a deploying operation was accepted. The flag
// only ever moves phantom -> deployed.
func (r *AccountStateResolver) MarkDeployed() {
	r.mu.Lock()
	already := r.deployed
	r.deployed = true
	r.mu.Unlock()

	if !already {
		r.logger.Info("wallet deployed", "passkey", r.account.IsPasskey())
	}
}
