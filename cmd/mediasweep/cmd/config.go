package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/backmassage/mediasweep/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
}

var configDumpDefaults bool

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print the effective configuration as YAML",
	Long: `Print the configuration after merging defaults, the config file,
environment variables, and flags. With --defaults, print only the
built-in defaults; redirect that to a file to start a config:

  mediasweep config dump --defaults > .mediasweep.yaml

Environment variables use the MEDIASWEEP_ prefix and underscores for
nesting. Example: server.port -> MEDIASWEEP_SERVER_PORT`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := config.Default()
		if !configDumpDefaults {
			var err error
			if cfg, err = config.LoadWith(v, cfgFile); err != nil {
				return err
			}
		}
		out, err := config.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshaling config: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

func init() {
	configDumpCmd.Flags().BoolVar(&configDumpDefaults, "defaults", false, "print built-in defaults only")
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configDumpCmd)
}
