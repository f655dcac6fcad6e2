// Package payments handles commands that read payments
package payments

import (
	"fjacquet/payledger/cmd/common"
	"fjacquet/payledger/cmd/root"

	"github.com/spf13/cobra"
)

var output string

// Cmd represents the payment command
var Cmd = &cobra.Command{
	Use:   "payment",
	Short: "Show and export payments",
	Long:  `Fetch a payment with all of its transactions to print or export it.`,
}

// ShowCmd prints a payment
var ShowCmd = &cobra.Command{
	Use:   "show [payment-id]",
	Short: "Show a payment and its ledger",
	Args:  cobra.ExactArgs(1),
	RunE:  showFunc,
}

// ExportCmd writes a payment's transactions as CSV
var ExportCmd = &cobra.Command{
	Use:   "export [payment-id]",
	Short: "Export a payment's transactions as CSV",
	Long: `Export a payment's transactions as CSV, one row per transaction in creation
order. The delimiter comes from export.delimiter in the configuration.`,
	Args: cobra.ExactArgs(1),
	RunE: exportFunc,
}

func init() {
	ExportCmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	Cmd.AddCommand(ShowCmd, ExportCmd)
}

func showFunc(cmd *cobra.Command, args []string) error {
	c, err := root.Container()
	if err != nil {
		return err
	}
	p, err := c.GetSession().FetchPayment(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return common.Render(cmd.OutOrStdout(), root.SharedFlags.OutputFormat, p.Serialize())
}

func exportFunc(cmd *cobra.Command, args []string) error {
	c, err := root.Container()
	if err != nil {
		return err
	}
	p, err := c.GetSession().FetchPayment(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	w := c.GetStatementWriter()
	if output == "" {
		return w.Write(cmd.OutOrStdout(), p)
	}
	return w.WriteFile(output, p)
}
