// Package authorize handles the authorize command
package authorize

import (
	"fmt"

	"fjacquet/payledger/cmd/common"
	"fjacquet/payledger/cmd/root"
	"fjacquet/payledger/internal/payment"

	"github.com/spf13/cobra"
)

var (
	typeID     string
	amount     string
	currency   string
	returnURL  string
	orderID    string
	customerID string
)

// Cmd represents the authorize command
var Cmd = &cobra.Command{
	Use:   "authorize",
	Short: "Reserve an amount on a new payment",
	Long:  `Open a new payment with an authorization on the given payment type.`,
	RunE:  authorizeFunc,
}

func init() {
	Cmd.Flags().StringVarP(&typeID, "type-id", "t", "", "Payment type id")
	Cmd.Flags().StringVarP(&amount, "amount", "a", "", "Amount to reserve")
	Cmd.Flags().StringVar(&currency, "currency", "", "ISO 4217 currency code")
	Cmd.Flags().StringVar(&returnURL, "return-url", "", "URL the customer returns to after a redirect")
	Cmd.Flags().StringVar(&orderID, "order-id", "", "Merchant order id")
	Cmd.Flags().StringVar(&customerID, "customer-id", "", "Customer id")
	_ = Cmd.MarkFlagRequired("type-id")
	_ = Cmd.MarkFlagRequired("amount")
	_ = Cmd.MarkFlagRequired("currency")
}

func authorizeFunc(cmd *cobra.Command, args []string) error {
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
	authorizable, ok := pt.(payment.Authorizable)
	if !ok {
		return fmt.Errorf("payment type %s cannot authorize", pt.TypeName())
	}

	auth, err := authorizable.Authorize(cmd.Context(), s, payment.AuthorizeRequest{
		Amount:     amt,
		Currency:   currency,
		ReturnURL:  returnURL,
		OrderID:    orderID,
		CustomerID: customerID,
	}, root.CallOptions()...)
	if auth == nil {
		return err
	}
	return common.Render(cmd.OutOrStdout(), root.SharedFlags.OutputFormat, common.NewResult(s, auth, err))
}
