// Package ship handles the ship command
package ship

import (
	"fjacquet/payledger/cmd/common"
	"fjacquet/payledger/cmd/root"

	"github.com/spf13/cobra"
)

var (
	paymentID string
	invoiceID string
)

// Cmd represents the ship command
var Cmd = &cobra.Command{
	Use:   "ship",
	Short: "Record the shipment of a fully charged payment",
	Long:  `Record a shipment on a completed payment, optionally with an invoice id.`,
	RunE:  shipFunc,
}

func init() {
	Cmd.Flags().StringVarP(&paymentID, "payment-id", "p", "", "Payment that was shipped")
	Cmd.Flags().StringVar(&invoiceID, "invoice-id", "", "Invoice id")
	_ = Cmd.MarkFlagRequired("payment-id")
}

func shipFunc(cmd *cobra.Command, args []string) error {
	c, err := root.Container()
	if err != nil {
		return err
	}
	s := c.GetSession()
	p, err := s.FetchPayment(cmd.Context(), paymentID)
	if err != nil {
		return err
	}
	sh, err := p.Ship(cmd.Context(), invoiceID, root.CallOptions()...)
	if sh == nil {
		return err
	}
	return common.Render(cmd.OutOrStdout(), root.SharedFlags.OutputFormat, common.NewResult(s, sh, err))
}
