// Package paypage handles the hosted payment page command
package paypage

import (
	"fjacquet/payledger/cmd/common"
	"fjacquet/payledger/cmd/root"
	"fjacquet/payledger/internal/payment"
	"fjacquet/payledger/internal/resource"

	"github.com/spf13/cobra"
)

var (
	mode       string
	amount     string
	currency   string
	returnURL  string
	orderID    string
	customerID string
	shopName   string
)

// Cmd represents the paypage command
var Cmd = &cobra.Command{
	Use:   "paypage",
	Short: "Open a hosted payment page",
	Long: `Initialise a hosted payment page in charge or authorize mode. The command
prints the page, including the URL to send the customer to, and the payment it
opened.`,
	RunE: paypageFunc,
}

func init() {
	Cmd.Flags().StringVarP(&mode, "mode", "m", string(payment.PayModeCharge), "charge or authorize")
	Cmd.Flags().StringVarP(&amount, "amount", "a", "", "Amount to pay")
	Cmd.Flags().StringVar(&currency, "currency", "", "ISO 4217 currency code")
	Cmd.Flags().StringVar(&returnURL, "return-url", "", "URL the customer returns to")
	Cmd.Flags().StringVar(&orderID, "order-id", "", "Merchant order id")
	Cmd.Flags().StringVar(&customerID, "customer-id", "", "Customer id")
	Cmd.Flags().StringVar(&shopName, "shop-name", "", "Shop name shown on the page")
	_ = Cmd.MarkFlagRequired("amount")
	_ = Cmd.MarkFlagRequired("currency")
	_ = Cmd.MarkFlagRequired("return-url")
}

// pageResult is what the command prints.
type pageResult struct {
	Paypage map[string]any `json:"paypage" yaml:"paypage"`
	Payment map[string]any `json:"payment,omitempty" yaml:"payment,omitempty"`
	Warning string         `json:"warning,omitempty" yaml:"warning,omitempty"`
}

func paypageFunc(cmd *cobra.Command, args []string) error {
	c, err := root.Container()
	if err != nil {
		return err
	}
	amt, err := common.RequireAmount(amount)
	if err != nil {
		return err
	}
	page := &payment.Paypage{
		Amount:     amt,
		Currency:   currency,
		ReturnURL:  returnURL,
		CustomerID: customerID,
		OrderID:    resource.Optional(orderID),
		ShopName:   resource.Optional(shopName),
	}
	p, err := page.Pay(cmd.Context(), c.GetSession(), payment.PayMode(mode), root.CallOptions()...)
	if p == nil {
		return err
	}

	out := pageResult{Paypage: page.Serialize(), Payment: p.Serialize()}
	if err != nil {
		out.Warning = err.Error()
	}
	return common.Render(cmd.OutOrStdout(), root.SharedFlags.OutputFormat, out)
}
