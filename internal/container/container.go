// Package container provides dependency injection for the payledger
// application. It centralizes the creation and wiring of all application
// dependencies, making them explicit and testable.
package container

import (
	"fmt"
	"time"

	"fjacquet/payledger/internal/config"
	"fjacquet/payledger/internal/logging"
	"fjacquet/payledger/internal/payment"
	"fjacquet/payledger/internal/sandbox"
	"fjacquet/payledger/internal/statement"
	"fjacquet/payledger/internal/transport"
)

// Container holds all application dependencies and provides methods to access them.
//
// Container is immutable after creation. All fields are private and can only
// be accessed through getter methods.
type Container struct {
	logger    logging.Logger
	config    *config.Config
	transport transport.Transport
	session   *payment.Session
	statement *statement.Writer

	// Set only when the in-process sandbox serves requests.
	store   sandbox.Store
	gateway *sandbox.Gateway
}

// NewContainer creates and wires all application dependencies.
// This is the main entry point for dependency injection in the application.
func NewContainer(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}
	return NewContainerWithLogger(cfg, config.NewLogger(cfg))
}

// NewContainerWithLogger wires the dependencies around an existing logger.
func NewContainerWithLogger(cfg *config.Config, logger logging.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	c := &Container{
		logger:    logger,
		config:    cfg,
		statement: statement.NewWriter(cfg.DelimiterRune(), logger),
	}

	if cfg.Sandbox.Enabled {
		store, err := openStore(cfg.Sandbox.DBPath)
		if err != nil {
			return nil, err
		}
		c.store = store
		c.gateway = sandbox.New(store, logger)
		c.transport = c.gateway
	} else {
		t, err := transport.NewHTTPTransport(transport.HTTPConfig{
			BaseURL:           cfg.API.BaseURL,
			PrivateKey:        cfg.API.PrivateKey,
			Timeout:           time.Duration(cfg.API.TimeoutSeconds) * time.Second,
			RequestsPerMinute: cfg.API.RequestsPerMinute,
			UserAgent:         cfg.API.UserAgent,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("error creating HTTP transport: %w", err)
		}
		c.transport = t
	}
	c.session = payment.NewSession(c.transport, logger)

	logger.Info("Container initialized successfully",
		logging.F("sandbox", cfg.Sandbox.Enabled),
		logging.F("persistent", cfg.Sandbox.DBPath != ""))
	return c, nil
}

func openStore(path string) (sandbox.Store, error) {
	if path == "" {
		return sandbox.NewMemoryStore(), nil
	}
	store, err := sandbox.OpenBoltStore(path)
	if err != nil {
		return nil, fmt.Errorf("error opening sandbox database %s: %w", path, err)
	}
	return store, nil
}

// GetLogger returns the container's logger instance.
func (c *Container) GetLogger() logging.Logger {
	return c.logger
}

// GetConfig returns the container's configuration instance.
func (c *Container) GetConfig() *config.Config {
	return c.config
}

// GetTransport returns the transport every request goes through.
func (c *Container) GetTransport() transport.Transport {
	return c.transport
}

// GetSession returns the session payments are registered in.
func (c *Container) GetSession() *payment.Session {
	return c.session
}

// GetStatementWriter returns the CSV exporter configured with the export
// delimiter.
func (c *Container) GetStatementWriter() *statement.Writer {
	return c.statement
}

// GetGateway returns the sandbox gateway, or nil when requests go to the
// remote API.
func (c *Container) GetGateway() *sandbox.Gateway {
	return c.gateway
}

// Close closes the session and releases the sandbox database.
func (c *Container) Close() error {
	c.session.Close()
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			return fmt.Errorf("error closing sandbox store: %w", err)
		}
	}
	c.logger.Info("Container closed")
	return nil
}
