// Package paytype handles payment type commands
package paytype

import (
	"fmt"

	"fjacquet/payledger/cmd/common"
	"fjacquet/payledger/cmd/root"
	"fjacquet/payledger/internal/logging"
	"fjacquet/payledger/internal/paymenttype"

	"github.com/spf13/cobra"
)

// Flags of the type create command.
type Flags struct {
	Number     string
	ExpiryDate string
	CVC        string
	Holder     string
	IBAN       string
	BIC        string
	Email      string
}

var flags Flags

// Cmd represents the type command
var Cmd = &cobra.Command{
	Use:   "type",
	Short: "Create and show payment types",
	Long:  `Create payment types (card, sepa-direct-debit, prepayment, paypal) and show stored ones.`,
}

// CreateCmd creates a payment type
var CreateCmd = &cobra.Command{
	Use:       "create [card|sepa-direct-debit|prepayment|paypal]",
	Short:     "Create a payment type",
	Long:      `Create a payment type on the gateway and print it with its id.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{paymenttype.NameCard, paymenttype.NameSepaDirectDebit, paymenttype.NamePrepayment, paymenttype.NamePaypal},
	RunE:      createFunc,
}

// ShowCmd prints a stored payment type
var ShowCmd = &cobra.Command{
	Use:   "show [type-id]",
	Short: "Show a payment type",
	Long:  `Fetch a payment type by id and print it.`,
	Args:  cobra.ExactArgs(1),
	RunE:  showFunc,
}

func init() {
	CreateCmd.Flags().StringVar(&flags.Number, "number", "", "Card number")
	CreateCmd.Flags().StringVar(&flags.ExpiryDate, "expiry", "", "Card expiry date (MM/YYYY)")
	CreateCmd.Flags().StringVar(&flags.CVC, "cvc", "", "Card verification code")
	CreateCmd.Flags().StringVar(&flags.Holder, "holder", "", "Card or account holder")
	CreateCmd.Flags().StringVar(&flags.IBAN, "iban", "", "IBAN for SEPA direct debit")
	CreateCmd.Flags().StringVar(&flags.BIC, "bic", "", "BIC for SEPA direct debit")
	CreateCmd.Flags().StringVar(&flags.Email, "email", "", "PayPal account email")
	Cmd.AddCommand(CreateCmd, ShowCmd)
}

func createFunc(cmd *cobra.Command, args []string) error {
	c, err := root.Container()
	if err != nil {
		return err
	}
	pt, ok := paymenttype.New(args[0])
	if !ok {
		return fmt.Errorf("unknown payment type %q", args[0])
	}
	switch t := pt.(type) {
	case *paymenttype.Card:
		t.Number, t.ExpiryDate, t.CVC, t.Holder = flags.Number, flags.ExpiryDate, flags.CVC, flags.Holder
	case *paymenttype.SepaDirectDebit:
		t.IBAN, t.BIC, t.Holder = flags.IBAN, flags.BIC, flags.Holder
	case *paymenttype.Paypal:
		t.Email = flags.Email
	}

	if err := c.GetSession().CreatePaymentType(cmd.Context(), pt); err != nil {
		return fmt.Errorf("error creating %s: %w", args[0], err)
	}
	root.Log.Info("Payment type created", logging.F(logging.FieldTypeID, pt.ID()))
	return common.Render(cmd.OutOrStdout(), root.SharedFlags.OutputFormat, pt.Serialize())
}

func showFunc(cmd *cobra.Command, args []string) error {
	c, err := root.Container()
	if err != nil {
		return err
	}
	pt, err := common.LoadType(cmd.Context(), c.GetSession(), args[0])
	if err != nil {
		return err
	}
	return common.Render(cmd.OutOrStdout(), root.SharedFlags.OutputFormat, pt.Serialize())
}
