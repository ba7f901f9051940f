package main

import (
	"fmt"
	"log/slog"
	"runtime"

	"github.com/urfave/cli/v2"

	"gitlab.bluewillows.net/root/mchostdns/internal/config"
	"gitlab.bluewillows.net/root/mchostdns/internal/metrics"
	"gitlab.bluewillows.net/root/mchostdns/providers/mchost"
)

const stateKey = "state"

// state is built once in Before and shared by every command.
type state struct {
	cfg    *config.Config
	logger *slog.Logger

	provider *mchost.Provider
}

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "mchostdns",
		Usage:   "Manage ACME DNS-01 TXT records in the McHost control panel",
		Version: fmt.Sprintf("%s (built: %s)", Version, BuildDate),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			authCommand(),
			cleanupCommand(),
			domainsCommand(),
			recordsCommand(),
		},
		Before: setup,
		After:  writeMetrics,
	}
}

// globalFlags returns the flags available to every command. Environment
// variables are read by config.Load, so flags only carry explicit values.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "YAML configuration file",
		},
		&cli.StringFlag{
			Name:  "credentials",
			Usage: "credentials file with dns_mchost_user and dns_mchost_pass (INI, TOML or YAML)",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "log level: debug, info, warn, error",
		},
		&cli.StringFlag{
			Name:  "log-format",
			Usage: "log format: text, json",
		},
		&cli.StringFlag{
			Name:  "metrics-textfile",
			Usage: "write Prometheus metrics to this file after each command",
		},
	}
}

// setup loads configuration and builds the logger and provider.
func setup(c *cli.Context) error {
	cfg, err := config.Load(config.Overrides{
		ConfigPath:      c.String("config"),
		CredentialsPath: c.String("credentials"),
		LogLevel:        c.String("log-level"),
		LogFormat:       c.String("log-format"),
		MetricsTextfile: c.String("metrics-textfile"),
	})
	if err != nil {
		return err
	}

	logger := setupLogger(c.App.ErrWriter, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	metrics.SetBuildInfo(Version, runtime.Version())

	p, err := mchost.New(mchost.ProviderType, cfg.MCHost, mchost.WithProviderLogger(logger))
	if err != nil {
		return err
	}

	if c.App.Metadata == nil {
		c.App.Metadata = make(map[string]any)
	}
	c.App.Metadata[stateKey] = &state{cfg: cfg, logger: logger, provider: p}

	return nil
}

// writeMetrics exports the registry when a textfile is configured.
func writeMetrics(c *cli.Context) error {
	st := stateFrom(c)
	if st == nil || st.cfg.MetricsTextfile == "" {
		return nil
	}

	if err := metrics.WriteTextfile(st.cfg.MetricsTextfile); err != nil {
		st.logger.Warn("failed to write metrics textfile",
			slog.String("path", st.cfg.MetricsTextfile),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

func stateFrom(c *cli.Context) *state {
	st, _ := c.App.Metadata[stateKey].(*state)
	return st
}
