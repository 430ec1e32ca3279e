package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/backmassage/mediasweep/internal/check"
	"github.com/backmassage/mediasweep/internal/display"
	"github.com/backmassage/mediasweep/internal/job"
	"github.com/backmassage/mediasweep/internal/logging"
)

var transcodeCmd = &cobra.Command{
	Use:   "transcode <file>",
	Short: "Transcode a single file",
	Long: `Probe, plan, and transcode one file in place.

The category is taken from --category, or resolved from the file's path
using the configured resolver. The command exits non-zero only when the
job fails; a file that needs no work is a success.`,
	Args: cobra.ExactArgs(1),
	RunE: runTranscode,
}

func init() {
	transcodeCmd.Flags().String("category", "", "category to use instead of resolving it from the path (tv, movie, animation)")
	transcodeCmd.Flags().Bool("verbose", false, "show ffmpeg progress output")
	mustBindPFlag("ffmpeg.verbose", transcodeCmd.Flags().Lookup("verbose"))
	rootCmd.AddCommand(transcodeCmd)
}

func runTranscode(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := signalContext()
	defer cancel()

	bins, err := check.New(logging.WithComponent(a.log.Logger, "check")).Deps(ctx, a.cfg)
	if err != nil {
		return err
	}
	runner, err := job.NewFromConfig(a.cfg, bins, a.log.Logger)
	if err != nil {
		return err
	}

	path, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	categoryName, _ := cmd.Flags().GetString("category")

	rep := runner.Run(ctx, path, categoryName)
	switch rep.Outcome {
	case job.Transcoded:
		fmt.Fprintf(cmd.OutOrStdout(), "transcoded %s: %s -> %s (saved %s) in %s\n",
			filepath.Base(rep.Path),
			display.FormatBytes(rep.InputBytes),
			display.FormatBytes(rep.OutputBytes),
			display.FormatBytesWithSign(rep.InputBytes-rep.OutputBytes),
			display.FormatElapsed(rep.Elapsed))
	case job.NotRequired:
		fmt.Fprintf(cmd.OutOrStdout(), "no transcode required: %s\n", filepath.Base(rep.Path))
	default:
		return fmt.Errorf("transcode failed: %w", rep.Err)
	}
	return nil
}
