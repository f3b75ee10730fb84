package cmd

import (
	"context"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"github.com/IncentivNetwork/ui-sdk/model"
	"github.com/IncentivNetwork/ui-sdk/pkg/erc4337/preset"
)

var (
	addressOwner string
	addressSalt  int64
	addressSave  bool

	addressCmd = &cobra.Command{
		Use:   "address",
		Short: "Derive the smart wallet address for an owner",
		Long: `Derive the counterfactual smart wallet address for an owner EOA.

The address comes from the entrypoint's getSenderAddress oracle so it matches
what a deploying operation would create. Use --save to record the wallet in
the local store.`,
		Run: func(cmd *cobra.Command, args []string) {
			runAddress()
		},
	}
)

func init() {
	addressCmd.Flags().StringVar(&addressOwner, "owner", "", "owner EOA address (defaults to the configured signing key)")
	addressCmd.Flags().Int64Var(&addressSalt, "salt", 0, "salt for wallet derivation")
	addressCmd.Flags().BoolVar(&addressSave, "save", false, "record the wallet in the local store")
	addressCmd.Flags().StringVar(&ownerKeyHex, "owner-key", "", "owner EOA private key (overrides OWNER_PRIVATE_KEY env var)")
	rootCmd.AddCommand(addressCmd)
}

func runAddress() {
	cfg := mustConfig()
	ctx := context.Background()

	var owner common.Address
	if addressOwner != "" {
		owner = mustAddress("owner", addressOwner)
	} else {
		key, err := resolveOwnerKey(cfg)
		if err != nil {
			fmt.Printf("❌ %v (or pass --owner)\n", err)
			os.Exit(1)
		}
		owner = crypto.PubkeyToAddress(key.PublicKey)
	}

	client := dialNode(cfg)
	defer client.Close()

	resolver := preset.NewAccountStateResolver(client, cfg, preset.Account{
		Owner: owner,
		Salt:  big.NewInt(addressSalt),
	}, cliLogger())

	addr, err := resolver.Address(ctx)
	if err != nil {
		fmt.Printf("❌ Failed to derive smart wallet address: %v\n", err)
		os.Exit(1)
	}

	phantom, err := resolver.IsPhantom(ctx)
	if err != nil {
		fmt.Printf("❌ Failed to check wallet code: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Owner:   %s\n", owner.Hex())
	fmt.Printf("Salt:    %d\n", addressSalt)
	fmt.Printf("Factory: %s\n", cfg.FactoryAddress.Hex())
	fmt.Printf("Wallet:  %s\n\n", addr.Hex())

	if phantom {
		fmt.Println("⚠️  Wallet is NOT deployed, it deploys with its first operation")
	} else {
		fmt.Println("✅ Wallet is DEPLOYED")
	}

	if !addressSave {
		return
	}

	db, store := openWalletStore(cfg)
	defer db.Close()

	wallet := model.NewSmartWallet(owner, addr, cfg.FactoryAddress, big.NewInt(addressSalt))
	wallet.Deployed = !phantom

	if err := store.Save(wallet); err != nil {
		fmt.Printf("❌ Failed to save wallet: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("💾 Saved to wallet store (%s)\n", db.DbPath())
}
