// Package cli contains the stagehand command tree.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/stagehand-audio/stagehand/sconfig"
)

// app holds flag values and the loaded configuration
// shared by every subcommand.
type app struct {
	cfgFile  string
	host     string
	hostName string
	bindIP   string
	ident    string
	logLevel string
	logFile  string

	cfg *sconfig.Config
}

// NewRootCommand returns the stagehand command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "stagehand",
		Short: "Monitor and control a stagehand audio host",
		Long: `stagehand is a terminal client for a stagehand show-control host.
It subscribes to the host over UDP, displays live transport, cue, and
health status, and sends transport and cue commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.loadConfig()
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&a.cfgFile, "config", "", "config file (default is ~/.stagehand/config.yaml)")
	f.StringVar(&a.host, "host", "", "host address as a.b.c.d:port")
	f.StringVar(&a.hostName, "host-name", "", "display name for the host")
	f.StringVar(&a.bindIP, "bind-ip", "", "local IPv4 address to bind (default: auto-detect)")
	f.StringVar(&a.ident, "identifier", "", "name reported to the host (default: host name)")
	f.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	f.StringVar(&a.logFile, "log-file", "", "write logs to this file")

	root.AddCommand(
		a.newMonitorCommand(),
		a.newSendCommand(),
		newVersionCommand(),
	)

	return root
}

func (a *app) configPath() string {
	if a.cfgFile != "" {
		return a.cfgFile
	}
	return sconfig.DefaultPath()
}

// loadConfig reads the config file and applies flag overrides.
func (a *app) loadConfig() error {
	cfg, err := sconfig.Load(a.configPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if a.host != "" {
		cfg.Host = a.host
	}
	if a.hostName != "" {
		cfg.HostIdentifier = a.hostName
	}
	if a.bindIP != "" {
		cfg.BindIP = a.bindIP
	}
	if a.ident != "" {
		cfg.Identifier = a.ident
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if a.logFile != "" {
		cfg.LogFile = a.logFile
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	a.cfg = cfg
	return nil
}

// Execute runs the root command until it finishes or the process is interrupted.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
