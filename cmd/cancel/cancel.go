// Package cancel handles the cancel command
package cancel

import (
	"fmt"

	"fjacquet/payledger/cmd/common"
	"fjacquet/payledger/cmd/root"
	"fjacquet/payledger/internal/payment"

	"github.com/spf13/cobra"
)

var (
	paymentID string
	chargeID  string
	amount    string
)

// Cmd represents the cancel command
var Cmd = &cobra.Command{
	Use:   "cancel",
	Short: "Reverse an authorization or refund a charge",
	Long: `Cancel an amount of a payment. Without --charge-id the oldest transaction able
to absorb the whole amount is used: the authorization first, then the charges.
Without --amount everything still cancelable on that transaction is cancelled.`,
	RunE: cancelFunc,
}

func init() {
	Cmd.Flags().StringVarP(&paymentID, "payment-id", "p", "", "Payment to cancel on")
	Cmd.Flags().StringVar(&chargeID, "charge-id", "", "Refund this charge only")
	Cmd.Flags().StringVarP(&amount, "amount", "a", "", "Amount to cancel")
	_ = Cmd.MarkFlagRequired("payment-id")
}

func cancelFunc(cmd *cobra.Command, args []string) error {
	c, err := root.Container()
	if err != nil {
		return err
	}
	s := c.GetSession()
	ctx := cmd.Context()
	amt, err := common.ParseAmount(amount)
	if err != nil {
		return err
	}
	p, err := s.FetchPayment(ctx, paymentID)
	if err != nil {
		return err
	}

	var cancellation *payment.Cancellation
	if chargeID != "" {
		ch, ok := p.ChargeByID(chargeID)
		if !ok {
			return fmt.Errorf("payment %s has no charge %s", paymentID, chargeID)
		}
		cancellation, err = ch.Cancel(ctx, amt, root.CallOptions()...)
	} else {
		cancellation, err = p.Cancel(ctx, amt, root.CallOptions()...)
	}
	if cancellation == nil {
		return err
	}
	return common.Render(cmd.OutOrStdout(), root.SharedFlags.OutputFormat, common.NewResult(s, cancellation, err))
}
