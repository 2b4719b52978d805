package cmd

import (
	"fmt"

	"github.com/ardanlabs/powchain/foundation/blockchain/signature"
	"github.com/spf13/cobra"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate new key pair",
	RunE:  generateRun,
}

func init() {
	rootCmd.AddCommand(generateCmd)
}

func generateRun(cmd *cobra.Command, args []string) error {
	signer, err := signature.GenerateKeySigner()
	if err != nil {
		return err
	}

	if err := signer.Save(getPrivateKeyPath()); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), signer.Address())
	return nil
}
