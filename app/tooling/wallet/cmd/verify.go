package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/signature"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify [file]",
	Short: "Verify the signature of a transfer read from a file or stdin",
	Args:  cobra.MaximumNArgs(1),
	RunE:  verifyRun,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func verifyRun(cmd *cobra.Command, args []string) error {
	var r io.Reader = cmd.InOrStdin()
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}

	var tx database.Tx
	if err := json.NewDecoder(r).Decode(&tx); err != nil {
		return fmt.Errorf("decoding transfer: %w", err)
	}

	if err := tx.Verify(signature.ECDSARecoverer{}); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "valid: tx[%s] signed by %s\n", tx.ID(), tx.FromID)
	return nil
}
