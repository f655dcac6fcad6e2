// Package payout handles the payout command
package payout

import (
	"fmt"

	"fjacquet/payledger/cmd/common"
	"fjacquet/payledger/cmd/root"
	"fjacquet/payledger/internal/payment"

	"github.com/spf13/cobra"
)

var (
	typeID           string
	amount           string
	currency         string
	returnURL        string
	orderID          string
	customerID       string
	invoiceID        string
	paymentReference string
)

// Cmd represents the payout command
var Cmd = &cobra.Command{
	Use:   "payout",
	Short: "Pay money out to a payment type",
	Long:  `Open a new payment that credits the given amount to a card or bank account.`,
	RunE:  payoutFunc,
}

func init() {
	Cmd.Flags().StringVarP(&typeID, "type-id", "t", "", "Payment type to pay out to")
	Cmd.Flags().StringVarP(&amount, "amount", "a", "", "Amount to pay out")
	Cmd.Flags().StringVar(&currency, "currency", "", "ISO 4217 currency code")
	Cmd.Flags().StringVar(&returnURL, "return-url", "", "URL the customer returns to after a redirect")
	Cmd.Flags().StringVar(&orderID, "order-id", "", "Merchant order id")
	Cmd.Flags().StringVar(&customerID, "customer-id", "", "Customer id")
	Cmd.Flags().StringVar(&invoiceID, "invoice-id", "", "Invoice id")
	Cmd.Flags().StringVar(&paymentReference, "payment-reference", "", "Reference shown on the customer's statement")
	_ = Cmd.MarkFlagRequired("type-id")
	_ = Cmd.MarkFlagRequired("amount")
	_ = Cmd.MarkFlagRequired("currency")
}

func payoutFunc(cmd *cobra.Command, args []string) error {
	c, err := root.Container()
	if err != nil {
		return err
	}
	s := c.GetSession()
	amt, err := common.RequireAmount(amount)
	if err != nil {
		return err
	}
	pt, err := common.LoadType(cmd.Context(), s, typeID)
	if err != nil {
		return err
	}
	payoutable, ok := pt.(payment.Payoutable)
	if !ok {
		return fmt.Errorf("payment type %s cannot receive payouts", pt.TypeName())
	}
	po, err := payoutable.Payout(cmd.Context(), s, payment.PayoutRequest{
		Amount:           amt,
		Currency:         currency,
		ReturnURL:        returnURL,
		OrderID:          orderID,
		CustomerID:       customerID,
		InvoiceID:        invoiceID,
		PaymentReference: paymentReference,
	}, root.CallOptions()...)
	if po == nil {
		return err
	}
	return common.Render(cmd.OutOrStdout(), root.SharedFlags.OutputFormat, common.NewResult(s, po, err))
}
