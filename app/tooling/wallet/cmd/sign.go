package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/spf13/cobra"
)

var (
	to     string
	amount float64
	fee    float64
)

var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Sign a transfer and print it as JSON",
	RunE:  signRun,
}

func init() {
	rootCmd.AddCommand(signCmd)
	signCmd.Flags().StringVarP(&to, "to", "t", "", "Account receiving the amount.")
	signCmd.Flags().Float64VarP(&amount, "amount", "v", 0, "Amount to send.")
	signCmd.Flags().Float64VarP(&fee, "fee", "f", 0, "Fee paid to the miner.")
	signCmd.MarkFlagRequired("to")
}

func signRun(cmd *cobra.Command, args []string) error {
	signer, err := loadSigner()
	if err != nil {
		return err
	}

	tx, err := database.NewTransfer(signer, to, amount, fee)
	if err != nil {
		return err
	}

	tx, err = tx.Sign(signer)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(tx, "", "  ")
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
