// Package cmd implements the mediasweep CLI commands.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/backmassage/mediasweep/internal/config"
	"github.com/backmassage/mediasweep/internal/logging"
)

var (
	// cfgFile holds the config file path from the CLI flag.
	cfgFile string

	// v carries flag bindings into config loading. Flags override the
	// environment, which overrides the file, which overrides defaults.
	v = viper.New()
)

var rootCmd = &cobra.Command{
	Use:   "mediasweep",
	Short: "Re-encode oversized video files to HEVC MP4",
	Long: `mediasweep keeps a media library small and streamable. Each file is
probed, compared against a per-category bitrate scaled by its width, and
either re-encoded to HEVC, remuxed into MP4, or left alone.

Run a single file with "transcode", a whole library with "scan", preview
a scan with "analyze", or run "serve" to accept Radarr and Sonarr webhooks.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is ./.mediasweep.yaml, $HOME/.mediasweep.yaml, /etc/mediasweep/.mediasweep.yaml)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("log-format", "text", "log format (text, json)")
	pf.String("log-file", "", "also append logs to this file")
	pf.String("color", "auto", "color output for reports (auto, always, never)")

	mustBindPFlag("logging.level", pf.Lookup("log-level"))
	mustBindPFlag("logging.format", pf.Lookup("log-format"))
	mustBindPFlag("logging.file", pf.Lookup("log-file"))
	mustBindPFlag("logging.color", pf.Lookup("color"))
}

// mustBindPFlag binds a viper key to a cobra flag and panics if binding fails.
func mustBindPFlag(key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("failed to bind flag %q to key %q: %v", flag.Name, key, err))
	}
}

// app is what every command needs after startup.
type app struct {
	cfg *config.Config
	log *logging.Logger
}

// setup loads configuration and builds the logger. Errors before the
// logger exists go to stderr through cobra.
func setup() (*app, error) {
	cfg, err := config.LoadWith(v, cfgFile)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("initializing logging: %w", err)
	}
	if used := v.ConfigFileUsed(); used != "" {
		log.Debug("using config file", "path", used)
	}
	return &app{cfg: cfg, log: log}, nil
}

func (a *app) close() {
	_ = a.log.Close()
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
