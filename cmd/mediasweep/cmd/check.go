package cmd

import (
	"github.com/spf13/cobra"

	"github.com/backmassage/mediasweep/internal/check"
	"github.com/backmassage/mediasweep/internal/logging"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check ffmpeg, encoders, and library paths",
	Long: `Report the ffmpeg and ffprobe versions in use, whether the configured
encoders are available, host resources, and whether each library root
exists. Exits non-zero if a job could not run.`,
	Args: cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		a, err := setup()
		if err != nil {
			return err
		}
		defer a.close()

		ctx, cancel := signalContext()
		defer cancel()

		c := check.New(logging.WithComponent(a.log.Logger, "check"))
		c.RunCheck(ctx, a.cfg)
		_, err = c.Deps(ctx, a.cfg)
		return err
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
