package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/k0kubun/pp/v3"
	"github.com/spf13/cobra"

	"github.com/IncentivNetwork/ui-sdk/core/config"
)

var (
	sendTo    string
	sendValue string
	sendData  string
	sendSalt  int64
	sendWait  bool

	sendCmd = &cobra.Command{
		Use:   "send",
		Short: "Build, sign and submit a user operation",
		Long: `Build a user operation calling a target contract through the smart wallet,
sign it with the owner key and hand it to the bundler.

If the wallet has no code yet the operation carries initCode and deploys it
on the way. Use --wait to block until the operation is mined.`,
		Run: func(cmd *cobra.Command, args []string) {
			runSend()
		},
	}
)

func init() {
	sendCmd.Flags().StringVar(&sendTo, "to", "", "target contract address (required)")
	sendCmd.Flags().StringVar(&sendValue, "value", "0", "ether amount to attach to the call")
	sendCmd.Flags().StringVar(&sendData, "data", "", "hex calldata for the target")
	sendCmd.Flags().Int64Var(&sendSalt, "salt", 0, "salt of the sending wallet")
	sendCmd.Flags().BoolVar(&sendWait, "wait", false, "wait until the operation is mined")
	sendCmd.Flags().StringVar(&ownerKeyHex, "owner-key", "", "owner EOA private key (overrides OWNER_PRIVATE_KEY env var)")
	sendCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log the pipeline and dump the final operation")
	_ = sendCmd.MarkFlagRequired("to")
	rootCmd.AddCommand(sendCmd)
}

func runSend() {
	cfg := mustConfig()
	ctx := context.Background()

	key, err := resolveOwnerKey(cfg)
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}

	target := mustAddress("to", sendTo)

	value, err := parseEthValue(sendValue)
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}

	calldata := []byte{}
	if sendData != "" {
		hex := sendData
		if !strings.HasPrefix(hex, "0x") {
			hex = "0x" + hex
		}
		calldata, err = hexutil.Decode(hex)
		if err != nil {
			fmt.Printf("❌ Invalid --data: %v\n", err)
			os.Exit(1)
		}
	}

	client := dialNode(cfg)
	defer client.Close()

	lg := cliLogger()
	relay := newRelay(cfg, lg)
	defer relay.Close()

	builder, resolver := newWalletBuilder(cfg, client, relay, key, sendSalt, lg)

	wallet, err := resolver.Address(ctx)
	if err != nil {
		fmt.Printf("❌ Failed to derive smart wallet address: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Wallet:  %s\n", wallet.Hex())
	fmt.Printf("Target:  %s\n", target.Hex())
	if value.Sign() > 0 {
		fmt.Printf("Value:   %s ether\n", sendValue)
	}
	fmt.Printf("Bundler: %s\n\n", cfg.BundlerURL)

	if err := builder.Execute(target, value, calldata); err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}

	fmt.Println("📤 Sending user operation...")
	opHash, err := builder.Send(ctx)
	if err != nil {
		fmt.Printf("❌ Failed to send user operation: %v\n", err)
		os.Exit(1)
	}

	op := builder.Op()
	fmt.Println("✅ User operation accepted")
	fmt.Printf("   UserOp hash: %s\n", opHash.Hex())
	fmt.Printf("   Nonce:       %s\n", op.Nonce.String())
	fmt.Printf("   Max fee:     %s gwei (priority %s gwei)\n", fmtGwei(op.MaxFeePerGas), fmtGwei(op.MaxPriorityFeePerGas))
	fmt.Printf("   Max cost:    %s ether\n", fmtEth(op.MaxGasCost()))
	if len(op.InitCode) > 0 {
		fmt.Println("   🚀 This operation deploys the wallet")
	}

	if verbose {
		pp.Println(op)
	}

	if !sendWait {
		return
	}

	fmt.Println("\n⏳ Waiting for inclusion...")
	rec, err := builder.WaitMined(ctx, 0, 0)
	if err != nil {
		fmt.Printf("⚠️  Not confirmed yet: %v\n", err)
		os.Exit(1)
	}

	status := "✅ success"
	if !rec.Event.Success {
		status = "❌ reverted"
	}
	fmt.Printf("   Transaction: %s\n", rec.Receipt.TxHash.Hex())
	fmt.Printf("   Block:       %d\n", rec.Receipt.BlockNumber.Uint64())
	fmt.Printf("   Gas cost:    %s ether (%d gas)\n", fmtEth(rec.Event.ActualGasCost), rec.Event.ActualGasUsed)
	fmt.Printf("   Status:      %s\n", status)
	fmt.Printf("   Explorer:    %s/tx/%s\n", config.ExplorerURL(), rec.Receipt.TxHash.Hex())
}
