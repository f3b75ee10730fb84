package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// First account of the standard hardhat mnemonic.
const testControllerKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestNewConfigParsesFullSection(t *testing.T) {
	path := writeConfigFile(t, `
smart_wallet:
  production: true
  eth_rpc_url: "https://rpc.testnet.incentiv.net"
  bundler_url: "https://bundler.testnet.incentiv.net"
  controller_private_key: "`+testControllerKey+`"
  factory_address: "0x29adA1b5217242DEaBB142BC3b1bCfFdd56008e7"
  entrypoint_address: "0x5FF137D4b0FDCD49DcA30c7CF57E578a026d2789"
  paymaster_address: "0xB985af5f96EF2722DC99aEBA573520903B86505e"
  paymaster_private_key: "`+testControllerKey+`"
  chain_id: 11690
  wallet_id: 7
  max_wallets_per_owner: 5
`)

	cfg, err := NewConfig(path)
	require.NoError(t, err)

	assert.True(t, cfg.Production)
	assert.Equal(t, "https://rpc.testnet.incentiv.net", cfg.EthRpcUrl)
	assert.Equal(t, "https://bundler.testnet.incentiv.net", cfg.BundlerURL)
	assert.Equal(t, "0x29adA1b5217242DEaBB142BC3b1bCfFdd56008e7", cfg.FactoryAddress.Hex())
	assert.Equal(t, DefaultEntrypointAddressHex, cfg.EntrypointAddress.Hex())
	assert.Equal(t, int64(11690), cfg.ChainID)
	assert.Equal(t, uint16(7), cfg.WalletID)
	assert.Equal(t, 5, cfg.MaxWalletsPerOwner)

	require.NotNil(t, cfg.ControllerPrivateKey)
	owner := crypto.PubkeyToAddress(cfg.ControllerPrivateKey.PublicKey)
	assert.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", owner.Hex())
}

func TestNewConfigAppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
smart_wallet:
  eth_rpc_url: "http://127.0.0.1:8545"
  bundler_url: "http://127.0.0.1:4337"
`)

	cfg, err := NewConfig(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultEntrypointAddressHex, cfg.EntrypointAddress.Hex())
	assert.Equal(t, DefaultFactoryAddressHex, cfg.FactoryAddress.Hex())
	assert.Nil(t, cfg.ControllerPrivateKey)
	assert.Zero(t, cfg.ChainID, "chain id should stay 0 so it is discovered from the network")
}

func TestParseValidation(t *testing.T) {
	tests := []struct {
		name  string
		raw   SmartWalletConfigRaw
		field string
	}{
		{
			name:  "missing rpc url",
			raw:   SmartWalletConfigRaw{BundlerURL: "http://127.0.0.1:4337"},
			field: "eth_rpc_url",
		},
		{
			name: "malformed factory address",
			raw: SmartWalletConfigRaw{
				EthRpcUrl:      "http://127.0.0.1:8545",
				BundlerURL:     "http://127.0.0.1:4337",
				FactoryAddress: "not-an-address",
			},
			field: "factory_address",
		},
		{
			name: "negative chain id",
			raw: SmartWalletConfigRaw{
				EthRpcUrl:  "http://127.0.0.1:8545",
				BundlerURL: "http://127.0.0.1:4337",
				ChainID:    -1,
			},
			field: "chain_id",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.raw.Parse()
			require.Error(t, err)

			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tc.field, cfgErr.Field)
		})
	}
}

func TestParseRejectsShortControllerKey(t *testing.T) {
	raw := SmartWalletConfigRaw{
		EthRpcUrl:            "http://127.0.0.1:8545",
		BundlerURL:           "http://127.0.0.1:4337",
		ControllerPrivateKey: "abcd",
	}

	_, err := raw.Parse()
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "controller_private_key", cfgErr.Field)
}

func TestParsePaymasterKeyRequiresAddress(t *testing.T) {
	raw := SmartWalletConfigRaw{
		EthRpcUrl:           "http://127.0.0.1:8545",
		BundlerURL:          "http://127.0.0.1:4337",
		PaymasterPrivateKey: testControllerKey,
	}

	_, err := raw.Parse()
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "paymaster_address", cfgErr.Field)
}

func TestNewConfigEnvOverrides(t *testing.T) {
	path := writeConfigFile(t, `
smart_wallet:
  eth_rpc_url: "http://127.0.0.1:8545"
  bundler_url: "http://127.0.0.1:4337"
`)

	t.Setenv(EnvControllerPrivateKey, testControllerKey)
	t.Setenv(EnvBundlerURL, "http://10.0.0.5:4337")

	cfg, err := NewConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "http://10.0.0.5:4337", cfg.BundlerURL)
	require.NotNil(t, cfg.ControllerPrivateKey)
}
