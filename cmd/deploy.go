package cmd

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/IncentivNetwork/ui-sdk/core/config"
	"github.com/IncentivNetwork/ui-sdk/pkg/create2"
)

var (
	deployBytecode     string
	deployBytecodeFile string
	deployArgs         string
	deploySalt         string
	deployWalletSalt   int64
	deployWait         bool
	deployDryRun       bool

	deployCmd = &cobra.Command{
		Use:   "deploy",
		Short: "Deploy a contract deterministically through the smart wallet",
		Long: `Deploy contract bytecode via the CREATE2 deployer, routed through the
smart wallet as a user operation.

The resulting address depends only on deployer, salt and bytecode, so it can
be predicted up front (--dry-run) and reproduced on other networks.`,
		Run: func(cmd *cobra.Command, args []string) {
			runDeploy()
		},
	}
)

func init() {
	deployCmd.Flags().StringVar(&deployBytecode, "bytecode", "", "contract creation bytecode as hex")
	deployCmd.Flags().StringVar(&deployBytecodeFile, "bytecode-file", "", "file containing the creation bytecode as hex")
	deployCmd.Flags().StringVar(&deployArgs, "args", "", "ABI-encoded constructor arguments as hex")
	deployCmd.Flags().StringVar(&deploySalt, "salt", "", "CREATE2 salt, decimal or 0x-prefixed 32 bytes (default 0)")
	deployCmd.Flags().Int64Var(&deployWalletSalt, "wallet-salt", 0, "salt of the sending wallet")
	deployCmd.Flags().BoolVar(&deployWait, "wait", false, "wait until the operation is mined")
	deployCmd.Flags().BoolVar(&deployDryRun, "dry-run", false, "only predict the contract address, do not deploy")
	deployCmd.Flags().StringVar(&ownerKeyHex, "owner-key", "", "owner EOA private key (overrides OWNER_PRIVATE_KEY env var)")
	deployCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log the pipeline while deploying")
	rootCmd.AddCommand(deployCmd)
}

func runDeploy() {
	cfg := mustConfig()
	ctx := context.Background()

	descriptor, err := buildDescriptor()
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}

	client := dialNode(cfg)
	defer client.Close()

	lg := cliLogger()

	planner, err := create2.NewPlanner(client, cfg.DeployerAddress, lg, nil)
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}

	if deployDryRun {
		predicted, err := planner.PredictAddress(ctx, descriptor)
		if err != nil {
			fmt.Printf("❌ Failed to predict contract address: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Deployer: %s\n", cfg.DeployerAddress.Hex())
		fmt.Printf("Contract: %s\n", predicted.Hex())
		return
	}

	key, err := resolveOwnerKey(cfg)
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}

	relay := newRelay(cfg, lg)
	defer relay.Close()

	builder, resolver := newWalletBuilder(cfg, client, relay, key, deployWalletSalt, lg)

	wallet, err := resolver.Address(ctx)
	if err != nil {
		fmt.Printf("❌ Failed to derive smart wallet address: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Wallet:   %s\n", wallet.Hex())
	fmt.Printf("Deployer: %s\n\n", cfg.DeployerAddress.Hex())

	fmt.Println("📤 Sending deployment operation...")
	predicted, opHash, err := planner.Deploy(ctx, descriptor, builder)
	if err != nil {
		fmt.Printf("❌ Failed to deploy: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("✅ Deployment operation accepted")
	fmt.Printf("   Contract:    %s\n", predicted.Hex())
	fmt.Printf("   UserOp hash: %s\n", opHash.Hex())

	if !deployWait {
		return
	}

	fmt.Println("\n⏳ Waiting for inclusion...")
	rec, err := builder.WaitMined(ctx, 0, 0)
	if err != nil {
		fmt.Printf("⚠️  Not confirmed yet: %v\n", err)
		os.Exit(1)
	}

	if rec.Event.Success {
		fmt.Printf("   ✅ Contract deployed at %s\n", predicted.Hex())
	} else {
		fmt.Println("   ❌ Operation reverted, contract not deployed")
	}
	fmt.Printf("   Transaction: %s\n", rec.Receipt.TxHash.Hex())
	fmt.Printf("   Explorer:    %s/tx/%s\n", config.ExplorerURL(), rec.Receipt.TxHash.Hex())
}

func buildDescriptor() (create2.Descriptor, error) {
	code := deployBytecode
	if code == "" && deployBytecodeFile != "" {
		data, err := os.ReadFile(deployBytecodeFile)
		if err != nil {
			return create2.Descriptor{}, fmt.Errorf("failed to read bytecode file: %w", err)
		}
		code = strings.TrimSpace(string(data))
	}
	if code == "" {
		return create2.Descriptor{}, fmt.Errorf("either --bytecode or --bytecode-file is required")
	}
	if !strings.HasPrefix(code, "0x") {
		code = "0x" + code
	}

	var args []byte
	if deployArgs != "" {
		hex := deployArgs
		if !strings.HasPrefix(hex, "0x") {
			hex = "0x" + hex
		}
		var err error
		args, err = hexutil.Decode(hex)
		if err != nil {
			return create2.Descriptor{}, fmt.Errorf("invalid --args: %w", err)
		}
	}

	salt, err := parseSalt(deploySalt)
	if err != nil {
		return create2.Descriptor{}, err
	}

	return create2.Descriptor{
		Bytecode:        code,
		ConstructorArgs: args,
		Salt:            salt,
	}, nil
}

// parseSalt accepts a decimal number or a 0x-prefixed 32-byte value. Empty
// means the default zero salt.
func parseSalt(s string) (*common.Hash, error) {
	if s == "" {
		return nil, nil
	}

	if strings.HasPrefix(s, "0x") {
		if len(s) != 66 {
			return nil, fmt.Errorf("--salt must be 32 bytes when hex, got %d characters", len(s)-2)
		}
		h := common.HexToHash(s)
		return &h, nil
	}

	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid --salt %q", s)
	}
	h := common.BigToHash(n)
	return &h, nil
}
