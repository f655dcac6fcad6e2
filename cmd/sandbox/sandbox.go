// Package sandboxcmd handles the commands that drive the local sandbox gateway
package sandboxcmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"fjacquet/payledger/cmd/root"
	"fjacquet/payledger/internal/ledger"
	"fjacquet/payledger/internal/sandbox"

	"github.com/spf13/cobra"
)

var (
	listen string
	flag   string
)

// Cmd represents the sandbox command
var Cmd = &cobra.Command{
	Use:   "sandbox",
	Short: "Run and steer the local sandbox gateway",
	Long: `Serve the sandbox gateway over HTTP and trigger the events a real gateway
raises on its own, such as review flags, chargebacks and completed paypages.
Requires sandbox.enabled in the configuration.`,
}

// ServeCmd serves the sandbox API
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the sandbox gateway over HTTP",
	RunE:  serveFunc,
}

// FlagCmd flags a payment
var FlagCmd = &cobra.Command{
	Use:   "flag [payment-id]",
	Short: "Put a payment under review or charge it back",
	Args:  cobra.ExactArgs(1),
	RunE:  flagFunc,
}

// CompleteCmd completes a paypage as the customer would
var CompleteCmd = &cobra.Command{
	Use:   "complete-paypage [paypage-id] [type-id]",
	Short: "Pay a hosted payment page with the given payment type",
	Args:  cobra.ExactArgs(2),
	RunE:  completeFunc,
}

func init() {
	ServeCmd.Flags().StringVarP(&listen, "listen", "l", "", "Listen address (default sandbox.listen)")
	FlagCmd.Flags().StringVar(&flag, "flag", "review", "review, chargeback or none")
	Cmd.AddCommand(ServeCmd, FlagCmd, CompleteCmd)
}

func gateway() (*sandbox.Gateway, error) {
	c, err := root.Container()
	if err != nil {
		return nil, err
	}
	g := c.GetGateway()
	if g == nil {
		return nil, errors.New("the sandbox is not enabled; set sandbox.enabled or PAYLEDGER_SANDBOX_ENABLED")
	}
	return g, nil
}

func serveFunc(cmd *cobra.Command, args []string) error {
	g, err := gateway()
	if err != nil {
		return err
	}
	c, _ := root.Container()
	cfg := c.GetConfig()
	addr := listen
	if addr == "" {
		addr = cfg.Sandbox.Listen
	}

	srv := sandbox.NewServer(g, cfg.Sandbox.PrivateKey, root.Log)
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(addr) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	root.Log.Info("Stopping sandbox gateway")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func parseFlag(value string) (ledger.Flag, error) {
	switch value {
	case "review":
		return ledger.FlagReview, nil
	case "chargeback":
		return ledger.FlagChargeback, nil
	case "none":
		return ledger.FlagNone, nil
	}
	return ledger.FlagNone, fmt.Errorf("unknown flag %q (must be review, chargeback or none)", value)
}

func flagFunc(cmd *cobra.Command, args []string) error {
	g, err := gateway()
	if err != nil {
		return err
	}
	f, err := parseFlag(flag)
	if err != nil {
		return err
	}
	if err := g.Flag(args[0], f); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "payment %s flagged %s\n", args[0], flag)
	return nil
}

func completeFunc(cmd *cobra.Command, args []string) error {
	g, err := gateway()
	if err != nil {
		return err
	}
	if err := g.CompletePaypage(args[0], args[1]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "paypage %s completed\n", args[0])
	return nil
}
