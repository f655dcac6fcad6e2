// Package root contains the root command for the application
package root

import (
	"fmt"

	"fjacquet/payledger/internal/config"
	"fjacquet/payledger/internal/container"
	"fjacquet/payledger/internal/logging"
	"fjacquet/payledger/internal/payment"
	"fjacquet/payledger/internal/validation"

	"github.com/spf13/cobra"
)

// Output formats accepted by --output-format.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// CommonFlags represents the flags that are common to all commands
type CommonFlags struct {
	ConfigFile     string
	OutputFormat   string
	IdempotencyKey string
}

var (
	// Log is the shared logger instance for commands
	Log logging.Logger = logging.NewLogrusAdapter("info", "text")

	// Cmd is the root command
	Cmd = &cobra.Command{
		Use:   "payledger",
		Short: "A CLI client for the payment API and its local sandbox.",
		Long: `payledger creates payment types and drives payments through authorize,
charge, cancel, ship and payout. It keeps the payment ledger in sync with the
gateway and can run a local sandbox gateway for testing.`,
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, args []string) {
			Log.Info("Welcome to payledger!")
			Log.Info("Use --help to see available commands")
		},
		PersistentPreRunE:  setup,
		PersistentPostRunE: teardown,
	}

	// SharedFlags holds the persistent flags
	SharedFlags = CommonFlags{}

	deps  *container.Container
	owned bool
)

// Init initializes the root command and all flags
func Init() {
	Cmd.PersistentFlags().StringVarP(&SharedFlags.ConfigFile, "config", "c", "", "Config file (default searches $HOME/.payledger, .payledger and .)")
	Cmd.PersistentFlags().StringVarP(&SharedFlags.OutputFormat, "output-format", "f", FormatJSON, "Output format: json or yaml")
	Cmd.PersistentFlags().StringVar(&SharedFlags.IdempotencyKey, "idempotency-key", "", "Idempotency key sent with mutations")
}

func setup(cmd *cobra.Command, args []string) error {
	if err := validation.IsValidOutputFormat(SharedFlags.OutputFormat); err != nil {
		return fmt.Errorf("invalid output format: %w", err)
	}
	if deps != nil {
		return nil
	}

	var (
		cfg *config.Config
		err error
	)
	if SharedFlags.ConfigFile != "" {
		cfg, err = config.InitializeConfigFromFile(SharedFlags.ConfigFile)
	} else {
		cfg, err = config.InitializeConfig()
	}
	if err != nil {
		return err
	}
	c, err := container.NewContainer(cfg)
	if err != nil {
		return err
	}
	SetContainer(c)
	owned = true
	return nil
}

// teardown closes the container setup created. One installed with
// SetContainer stays open for the caller.
func teardown(cmd *cobra.Command, args []string) error {
	if deps == nil || !owned {
		return nil
	}
	err := deps.Close()
	deps, owned = nil, false
	return err
}

// SetContainer installs the dependencies commands run against. Commands
// started afterwards reuse it instead of loading the configuration.
func SetContainer(c *container.Container) {
	deps, owned = c, false
	if c != nil {
		Log = c.GetLogger()
	}
}

// Container returns the dependencies of the running command.
func Container() (*container.Container, error) {
	if deps == nil {
		return nil, fmt.Errorf("no container initialised")
	}
	return deps, nil
}

// CallOptions turns the shared flags into options for a mutation.
func CallOptions() []payment.CallOption {
	if SharedFlags.IdempotencyKey == "" {
		return nil
	}
	return []payment.CallOption{payment.WithIdempotencyKey(SharedFlags.IdempotencyKey)}
}
