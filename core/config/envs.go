package config

import (
	"math/big"
	"os"
	"strconv"
)

type ChainEnv string

const (
	TestnetEnv = ChainEnv("testnet")
	MainnetEnv = ChainEnv("mainnet")
)

var (
	TestnetChainID  = big.NewInt(11690)
	CurrentChainEnv = ChainEnv("testnet")
)

func IsMainnet() bool {
	return CurrentChainEnv == MainnetEnv
}

func ExplorerURL() string {
	if IsMainnet() {
		return "https://explorer.incentiv.net"
	}
	return "https://explorer.testnet.incentiv.net"
}

// Environment variables recognized as overrides of the yaml file. Secrets
// should come from the environment in deployments so config files can be
// committed without key material.
const (
	EnvEthRpcURL            = "ETH_RPC_URL"
	EnvBundlerURL           = "BUNDLER_RPC_URL"
	EnvControllerPrivateKey = "CONTROLLER_PRIVATE_KEY"
	EnvPaymasterPrivateKey  = "PAYMASTER_PRIVATE_KEY"
	EnvChainID              = "CHAIN_ID"
)

func applyEnvOverrides(raw *SmartWalletConfigRaw) {
	if v := os.Getenv(EnvEthRpcURL); v != "" {
		raw.EthRpcUrl = v
	}
	if v := os.Getenv(EnvBundlerURL); v != "" {
		raw.BundlerURL = v
	}
	if v := os.Getenv(EnvControllerPrivateKey); v != "" {
		raw.ControllerPrivateKey = v
	}
	if v := os.Getenv(EnvPaymasterPrivateKey); v != "" {
		raw.PaymasterPrivateKey = v
	}
	if v := os.Getenv(EnvChainID); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			raw.ChainID = id
		}
	}
}
