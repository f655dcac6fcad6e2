package main

import (
	"fmt"
	"os"

	"fjacquet/payledger/cmd/authorize"
	"fjacquet/payledger/cmd/cancel"
	"fjacquet/payledger/cmd/charge"
	"fjacquet/payledger/cmd/payments"
	"fjacquet/payledger/cmd/payout"
	"fjacquet/payledger/cmd/paypage"
	"fjacquet/payledger/cmd/paytype"
	"fjacquet/payledger/cmd/root"
	sandboxcmd "fjacquet/payledger/cmd/sandbox"
	"fjacquet/payledger/cmd/ship"
	"fjacquet/payledger/internal/config"
)

func init() {
	// 1. Load .env before viper reads the environment
	_, _ = config.LoadEnv()

	// 2. Initialize root command
	root.Init()

	// 3. Add all subcommands
	root.Cmd.AddCommand(paytype.Cmd)
	root.Cmd.AddCommand(authorize.Cmd)
	root.Cmd.AddCommand(charge.Cmd)
	root.Cmd.AddCommand(cancel.Cmd)
	root.Cmd.AddCommand(ship.Cmd)
	root.Cmd.AddCommand(payout.Cmd)
	root.Cmd.AddCommand(payments.Cmd)
	root.Cmd.AddCommand(paypage.Cmd)
	root.Cmd.AddCommand(sandboxcmd.Cmd)
}

func main() {
	if err := root.Cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
