package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

var (
	url  string
	host string
)

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Print the balance of the wallet on a simulated node",
	RunE:  balanceRun,
}

func init() {
	rootCmd.AddCommand(balanceCmd)
	balanceCmd.Flags().StringVarP(&url, "url", "u", "http://localhost:8080", "Url of the viewer.")
	balanceCmd.Flags().StringVarP(&host, "node", "n", "node0", "Node to ask.")
}

func balanceRun(cmd *cobra.Command, args []string) error {
	signer, err := loadSigner()
	if err != nil {
		return err
	}

	resp, err := http.Get(fmt.Sprintf("%s/v1/nodes/%s/balances/%s", url, host, signer.Address()))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("viewer returned %s", resp.Status)
	}

	var balances struct {
		Balances []struct {
			Account string  `json:"account"`
			Balance float64 `json:"balance"`
		} `json:"balances"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&balances); err != nil {
		return err
	}

	for _, b := range balances.Balances {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", b.Account, b.Balance)
	}

	return nil
}
