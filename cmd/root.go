package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var (
	configPath = "./config/wallet.yaml"
	rootCmd    = &cobra.Command{
		Use:   "incentiv-wallet",
		Short: "Incentiv smart wallet CLI",
		Long: `CLI to derive, deploy and drive ERC-4337 smart wallets on Incentiv.
Each sub command covers one step of the account lifecycle

Such as "incentiv-wallet address" or "incentiv-wallet send" and so on
`,
	}
)

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config/wallet.yaml", "Path to config file")
}
