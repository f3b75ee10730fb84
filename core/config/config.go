package config

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"
)

// Canonical ERC-4337 v0.6 deployments. The factory can be overridden per
// network; the entrypoint rarely needs to be.
const (
	DefaultEntrypointAddressHex = "0x5FF137D4b0FDCD49DcA30c7CF57E578a026d2789"
	DefaultFactoryAddressHex    = "0x9406Cc6185a346906296840746125a0E44976454"
)

// ConfigurationError reports a setting that failed validation or conflicts
// with what the network reports (wrong chain id, missing factory).
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid configuration: %s", e.Message)
	}
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Message)
}

// SmartWalletConfigRaw mirrors the smart_wallet section of the yaml config
// file. Addresses and keys stay strings here so validation can report the
// offending value's field by name before anything is parsed.
type SmartWalletConfigRaw struct {
	// used to set the logger level (true = info, false = debug)
	Production bool `yaml:"production"`

	EthRpcUrl  string `yaml:"eth_rpc_url" validate:"required,url"`
	BundlerURL string `yaml:"bundler_url" validate:"required,url"`

	ControllerPrivateKey  string `yaml:"controller_private_key" validate:"omitempty,hexadecimal"`
	FactoryAddress        string `yaml:"factory_address" validate:"omitempty,eth_addr"`
	PasskeyFactoryAddress string `yaml:"passkey_factory_address" validate:"omitempty,eth_addr"`
	EntrypointAddress     string `yaml:"entrypoint_address" validate:"omitempty,eth_addr"`
	PaymasterAddress      string `yaml:"paymaster_address" validate:"omitempty,eth_addr"`
	PaymasterPrivateKey   string `yaml:"paymaster_private_key" validate:"omitempty,hexadecimal"`
	SponsorURL            string `yaml:"sponsor_url" validate:"omitempty,url"`
	DeployerAddress       string `yaml:"deployer_address" validate:"omitempty,eth_addr"`

	ChainID            int64  `yaml:"chain_id" validate:"omitempty,gt=0"`
	WalletID           uint16 `yaml:"wallet_id"`
	MaxWalletsPerOwner int    `yaml:"max_wallets_per_owner" validate:"omitempty,min=1"`

	DBPath string `yaml:"db_path"`
}

type fileConfig struct {
	SmartWallet SmartWalletConfigRaw `yaml:"smart_wallet"`
}

// SmartWalletConfig is the parsed runtime configuration shared by the SDK
// packages and the CLI.
type SmartWalletConfig struct {
	Production bool

	EthRpcUrl  string
	BundlerURL string

	ControllerPrivateKey  *ecdsa.PrivateKey
	FactoryAddress        common.Address
	PasskeyFactoryAddress common.Address
	EntrypointAddress     common.Address
	PaymasterAddress      common.Address
	PaymasterPrivateKey   *ecdsa.PrivateKey
	SponsorURL            string
	DeployerAddress       common.Address

	// ChainID 0 means discover from the network.
	ChainID            int64
	WalletID           uint16
	MaxWalletsPerOwner int

	DBPath string
}

// NewConfig reads the yaml file at configPath, applies environment overrides
// for secrets, validates, and parses the result.
func NewConfig(configPath string) (*SmartWalletConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	var f fileConfig
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	raw := f.SmartWallet
	applyEnvOverrides(&raw)
	return raw.Parse()
}

// Parse validates the raw section and converts it into runtime types.
func (raw *SmartWalletConfigRaw) Parse() (*SmartWalletConfig, error) {
	if err := validator.New().Struct(raw); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return nil, &ConfigurationError{
				Field:   yamlFieldName(first.Field()),
				Message: fmt.Sprintf("failed %q validation", first.Tag()),
			}
		}
		return nil, err
	}

	cfg := &SmartWalletConfig{
		Production:         raw.Production,
		EthRpcUrl:          raw.EthRpcUrl,
		BundlerURL:         raw.BundlerURL,
		SponsorURL:         raw.SponsorURL,
		ChainID:            raw.ChainID,
		WalletID:           raw.WalletID,
		MaxWalletsPerOwner: raw.MaxWalletsPerOwner,
		DBPath:             raw.DBPath,
	}

	// Addresses fall back to the canonical v0.6 deployments when omitted.
	cfg.EntrypointAddress = common.HexToAddress(DefaultEntrypointAddressHex)
	if raw.EntrypointAddress != "" {
		cfg.EntrypointAddress = common.HexToAddress(raw.EntrypointAddress)
	}
	cfg.FactoryAddress = common.HexToAddress(DefaultFactoryAddressHex)
	if raw.FactoryAddress != "" {
		cfg.FactoryAddress = common.HexToAddress(raw.FactoryAddress)
	}
	cfg.PasskeyFactoryAddress = common.HexToAddress(raw.PasskeyFactoryAddress)
	cfg.PaymasterAddress = common.HexToAddress(raw.PaymasterAddress)
	cfg.DeployerAddress = common.HexToAddress(raw.DeployerAddress)

	if raw.ControllerPrivateKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(raw.ControllerPrivateKey, "0x"))
		if err != nil {
			return nil, &ConfigurationError{Field: "controller_private_key", Message: err.Error()}
		}
		cfg.ControllerPrivateKey = key
	}
	if raw.PaymasterPrivateKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(raw.PaymasterPrivateKey, "0x"))
		if err != nil {
			return nil, &ConfigurationError{Field: "paymaster_private_key", Message: err.Error()}
		}
		cfg.PaymasterPrivateKey = key
	}
	if cfg.PaymasterPrivateKey != nil && cfg.PaymasterAddress == (common.Address{}) {
		return nil, &ConfigurationError{
			Field:   "paymaster_address",
			Message: "required when paymaster_private_key is set",
		}
	}

	return cfg, nil
}

// yamlFieldName maps a Go struct field name back to its yaml key so
// validation errors read like the file the user edited.
func yamlFieldName(goField string) string {
	switch goField {
	case "EthRpcUrl":
		return "eth_rpc_url"
	case "BundlerURL":
		return "bundler_url"
	case "ControllerPrivateKey":
		return "controller_private_key"
	case "FactoryAddress":
		return "factory_address"
	case "PasskeyFactoryAddress":
		return "passkey_factory_address"
	case "EntrypointAddress":
		return "entrypoint_address"
	case "PaymasterAddress":
		return "paymaster_address"
	case "PaymasterPrivateKey":
		return "paymaster_private_key"
	case "SponsorURL":
		return "sponsor_url"
	case "DeployerAddress":
		return "deployer_address"
	case "ChainID":
		return "chain_id"
	case "MaxWalletsPerOwner":
		return "max_wallets_per_owner"
	default:
		return goField
	}
}
