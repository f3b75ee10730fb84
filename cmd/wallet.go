/*
Copyright © 2025 Incentiv Network
*/
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

var (
	walletOwner string

	walletCmd = &cobra.Command{
		Use:   "wallet",
		Short: "Manage the local wallet store",
		Long:  `Inspect the wallets recorded locally with "address --save".`,
	}

	walletListCmd = &cobra.Command{
		Use:   "list",
		Short: "List recorded wallets for an owner",
		Run: func(cmd *cobra.Command, args []string) {
			runWalletList()
		},
	}
)

func init() {
	walletListCmd.Flags().StringVar(&walletOwner, "owner", "", "owner EOA address (defaults to the configured signing key)")
	walletListCmd.Flags().StringVar(&ownerKeyHex, "owner-key", "", "owner EOA private key (overrides OWNER_PRIVATE_KEY env var)")
	walletCmd.AddCommand(walletListCmd)
	rootCmd.AddCommand(walletCmd)
}

func runWalletList() {
	cfg := mustConfig()

	var owner common.Address
	if walletOwner != "" {
		owner = mustAddress("owner", walletOwner)
	} else {
		key, err := resolveOwnerKey(cfg)
		if err != nil {
			fmt.Printf("❌ %v (or pass --owner)\n", err)
			os.Exit(1)
		}
		owner = crypto.PubkeyToAddress(key.PublicKey)
	}

	db, store := openWalletStore(cfg)
	defer db.Close()

	wallets, err := store.List(owner)
	if err != nil {
		fmt.Printf("❌ Failed to list wallets: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("💾 Wallet store: %s\n", db.DbPath())
	fmt.Printf("Owner: %s\n\n", owner.Hex())

	if len(wallets) == 0 {
		fmt.Println("No wallets recorded for this owner")
		fmt.Println("   💡 Run \"incentiv-wallet address --save\" to record one")
		return
	}

	for i, w := range wallets {
		state := "phantom"
		if w.Deployed {
			state = "deployed"
		}
		created := ""
		if w.CreatedAt > 0 {
			created = time.Unix(w.CreatedAt, 0).UTC().Format("2006-01-02")
		}
		fmt.Printf("   %d. %s salt=%s %s %s\n", i+1, w.Address.Hex(), w.Salt.String(), state, created)
	}

	if cfg.MaxWalletsPerOwner > 0 {
		fmt.Printf("\n%d of %d wallet slots used\n", len(wallets), cfg.MaxWalletsPerOwner)
	}
}
