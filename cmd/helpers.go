package cmd

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"

	"github.com/IncentivNetwork/ui-sdk/core/chainio/aa"
	"github.com/IncentivNetwork/ui-sdk/core/config"
	"github.com/IncentivNetwork/ui-sdk/pkg/erc4337/bundler"
	"github.com/IncentivNetwork/ui-sdk/pkg/erc4337/paymaster"
	"github.com/IncentivNetwork/ui-sdk/pkg/erc4337/preset"
	"github.com/IncentivNetwork/ui-sdk/pkg/erc4337/signature"
	"github.com/IncentivNetwork/ui-sdk/pkg/logger"
	"github.com/IncentivNetwork/ui-sdk/storage"
)

// EnvOwnerPrivateKey lets the signing key come from the environment instead
// of a flag so it never lands in shell history.
const EnvOwnerPrivateKey = "OWNER_PRIVATE_KEY"

const defaultDBPath = "./data/wallets"

// Flags shared by the commands that sign or read the wallet store.
var (
	ownerKeyHex string
	verbose     bool
)

// mustConfig loads the yaml config or exits.
func mustConfig() *config.SmartWalletConfig {
	cfg, err := config.NewConfig(configPath)
	if err != nil {
		fmt.Printf("❌ Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Contract addresses from the config become the package defaults so
	// helpers that don't take them explicitly stay consistent.
	aa.SetEntrypointAddress(cfg.EntrypointAddress)
	aa.SetFactoryAddress(cfg.FactoryAddress)

	return cfg
}

// cliLogger returns a development zap logger when --verbose is set, otherwise
// the SDK components stay silent and the command output speaks for itself.
func cliLogger() logger.Logger {
	if !verbose {
		return logger.NewNoOpLogger()
	}

	lg, err := logger.NewZapLogger(logger.Development)
	if err != nil {
		return logger.NewNoOpLogger()
	}
	return lg
}

// resolveOwnerKey picks the signing key: --owner-key flag first, then the
// OWNER_PRIVATE_KEY env var, then the controller key from the config file.
func resolveOwnerKey(cfg *config.SmartWalletConfig) (*ecdsa.PrivateKey, error) {
	keyHex := ownerKeyHex
	if keyHex == "" {
		keyHex = os.Getenv(EnvOwnerPrivateKey)
	}
	if keyHex != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(keyHex, "0x"))
		if err != nil {
			return nil, fmt.Errorf("failed to parse owner private key: %w", err)
		}
		return key, nil
	}

	if cfg.ControllerPrivateKey != nil {
		return cfg.ControllerPrivateKey, nil
	}

	return nil, fmt.Errorf("owner key required, set %s or use --owner-key or configure controller_private_key", EnvOwnerPrivateKey)
}

func dialNode(cfg *config.SmartWalletConfig) *ethclient.Client {
	client, err := ethclient.Dial(cfg.EthRpcUrl)
	if err != nil {
		fmt.Printf("❌ Failed to connect to RPC: %v\n", err)
		os.Exit(1)
	}
	return client
}

func chainIDOrNil(cfg *config.SmartWalletConfig) *big.Int {
	if cfg.ChainID > 0 {
		return big.NewInt(cfg.ChainID)
	}
	return nil
}

func newRelay(cfg *config.SmartWalletConfig, lg logger.Logger) *bundler.BundlerClient {
	relay, err := bundler.NewBundlerClient(cfg.BundlerURL, cfg.EntrypointAddress, chainIDOrNil(cfg), lg)
	if err != nil {
		fmt.Printf("❌ Failed to connect to bundler: %v\n", err)
		os.Exit(1)
	}
	return relay
}

// newSponsor wires a paymaster when the config carries one: a local verifying
// signer when the key is present, the hosted sponsor service otherwise.
func newSponsor(cfg *config.SmartWalletConfig, client *ethclient.Client, lg logger.Logger) (paymaster.Provider, error) {
	if cfg.PaymasterPrivateKey != nil {
		return paymaster.NewVerifyingSigner(client, cfg.PaymasterAddress, cfg.PaymasterPrivateKey, 15*time.Minute, lg)
	}

	if cfg.SponsorURL != "" {
		return paymaster.NewSponsorClient(cfg.SponsorURL, cfg.EntrypointAddress, sponsorTokenFromEnv, lg), nil
	}

	return nil, nil
}

func sponsorTokenFromEnv(ctx context.Context) (string, error) {
	if token := os.Getenv("SPONSOR_SESSION_TOKEN"); token != "" {
		return token, nil
	}
	return "", fmt.Errorf("SPONSOR_SESSION_TOKEN not set")
}

// newWalletBuilder assembles the full pipeline for one wallet: resolver,
// EOA codec, optional sponsor, bundler.
func newWalletBuilder(cfg *config.SmartWalletConfig, client *ethclient.Client, relay *bundler.BundlerClient, key *ecdsa.PrivateKey, salt int64, lg logger.Logger) (*preset.Builder, *preset.AccountStateResolver) {
	owner := crypto.PubkeyToAddress(key.PublicKey)
	resolver := preset.NewAccountStateResolver(client, cfg, preset.Account{
		Owner: owner,
		Salt:  big.NewInt(salt),
	}, lg)

	codec := signature.NewEOACodec(key)
	if cfg.WalletID != 0 {
		codec = codec.WithWalletID(cfg.WalletID)
	}

	sponsor, err := newSponsor(cfg, client, lg)
	if err != nil {
		fmt.Printf("❌ Failed to set up paymaster: %v\n", err)
		os.Exit(1)
	}

	builder, err := preset.NewBuilder(preset.BuilderConfig{
		Client:     client,
		Bundler:    relay,
		Resolver:   resolver,
		Codec:      codec,
		Sponsor:    sponsor,
		EntryPoint: cfg.EntrypointAddress,
		ChainID:    chainIDOrNil(cfg),
		Logger:     lg,
	})
	if err != nil {
		fmt.Printf("❌ Failed to set up builder: %v\n", err)
		os.Exit(1)
	}

	return builder, resolver
}

// openWalletStore opens the badger-backed store at the configured path.
func openWalletStore(cfg *config.SmartWalletConfig) (storage.Storage, *storage.WalletStore) {
	path := cfg.DBPath
	if path == "" {
		path = defaultDBPath
	}

	db, err := storage.NewWithPath(path)
	if err != nil {
		fmt.Printf("❌ Failed to open wallet store at %s: %v\n", path, err)
		os.Exit(1)
	}

	return db, storage.NewWalletStore(db, cfg.MaxWalletsPerOwner)
}

// parseEthValue converts a decimal ether amount like "0.25" into wei.
func parseEthValue(s string) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid value %q: %w", s, err)
	}

	wei := d.Shift(18)
	if !wei.IsInteger() {
		return nil, fmt.Errorf("value %q has more than 18 decimal places", s)
	}
	if wei.Sign() < 0 {
		return nil, fmt.Errorf("value %q is negative", s)
	}

	return wei.BigInt(), nil
}

// fmtGwei renders a wei quantity in gwei for fee reporting.
func fmtGwei(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, -9).String()
}

// fmtEth renders a wei quantity in ether.
func fmtEth(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, -18).String()
}

func mustAddress(flag, value string) common.Address {
	if !common.IsHexAddress(value) {
		fmt.Printf("❌ --%s must be a hex address, got %q\n", flag, value)
		os.Exit(1)
	}
	return common.HexToAddress(value)
}
