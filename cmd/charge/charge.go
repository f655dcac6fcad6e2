// Package charge handles the charge command
package charge

import (
	"fmt"

	"fjacquet/payledger/cmd/common"
	"fjacquet/payledger/cmd/root"
	"fjacquet/payledger/internal/payment"

	"github.com/spf13/cobra"
)

var (
	paymentID        string
	typeID           string
	amount           string
	currency         string
	returnURL        string
	orderID          string
	customerID       string
	invoiceID        string
	paymentReference string
)

// Cmd represents the charge command
var Cmd = &cobra.Command{
	Use:   "charge",
	Short: "Capture an authorization or charge a payment type directly",
	Long: `With --payment-id, capture the given amount (or everything still reserved)
from the payment's authorization. With --type-id, open a new payment with a
direct charge.`,
	RunE: chargeFunc,
}

func init() {
	Cmd.Flags().StringVarP(&paymentID, "payment-id", "p", "", "Payment to capture from")
	Cmd.Flags().StringVarP(&typeID, "type-id", "t", "", "Payment type for a direct charge")
	Cmd.Flags().StringVarP(&amount, "amount", "a", "", "Amount; captures the remaining amount when omitted")
	Cmd.Flags().StringVar(&currency, "currency", "", "ISO 4217 currency code")
	Cmd.Flags().StringVar(&returnURL, "return-url", "", "URL the customer returns to after a redirect")
	Cmd.Flags().StringVar(&orderID, "order-id", "", "Merchant order id")
	Cmd.Flags().StringVar(&customerID, "customer-id", "", "Customer id")
	Cmd.Flags().StringVar(&invoiceID, "invoice-id", "", "Invoice id")
	Cmd.Flags().StringVar(&paymentReference, "payment-reference", "", "Reference shown on the customer's statement")
	Cmd.MarkFlagsMutuallyExclusive("payment-id", "type-id")
	Cmd.MarkFlagsOneRequired("payment-id", "type-id")
}

func chargeFunc(cmd *cobra.Command, args []string) error {
	c, err := root.Container()
	if err != nil {
		return err
	}
	s := c.GetSession()
	ctx := cmd.Context()

	var ch *payment.Charge
	if paymentID != "" {
		amt, err := common.ParseAmount(amount)
		if err != nil {
			return err
		}
		p, err := s.FetchPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		ch, err = p.Charge(ctx, amt, currency, root.CallOptions()...)
		if ch == nil {
			return err
		}
		return common.Render(cmd.OutOrStdout(), root.SharedFlags.OutputFormat, common.NewResult(s, ch, err))
	}

	amt, err := common.RequireAmount(amount)
	if err != nil {
		return err
	}
	pt, err := common.LoadType(ctx, s, typeID)
	if err != nil {
		return err
	}
	chargeable, ok := pt.(payment.Chargeable)
	if !ok {
		return fmt.Errorf("payment type %s cannot charge", pt.TypeName())
	}
	ch, err = chargeable.Charge(ctx, s, payment.ChargeRequest{
		Amount:           amt,
		Currency:         currency,
		ReturnURL:        returnURL,
		OrderID:          orderID,
		CustomerID:       customerID,
		InvoiceID:        invoiceID,
		PaymentReference: paymentReference,
	}, root.CallOptions()...)
	if ch == nil {
		return err
	}
	return common.Render(cmd.OutOrStdout(), root.SharedFlags.OutputFormat, common.NewResult(s, ch, err))
}
