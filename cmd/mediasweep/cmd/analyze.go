package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/backmassage/mediasweep/internal/category"
	"github.com/backmassage/mediasweep/internal/check"
	"github.com/backmassage/mediasweep/internal/logging"
	"github.com/backmassage/mediasweep/internal/pipeline"
	"github.com/backmassage/mediasweep/internal/planner"
	"github.com/backmassage/mediasweep/internal/probe"
	"github.com/backmassage/mediasweep/internal/term"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [dir...]",
	Short: "Show what a scan would do without changing any file",
	Long: `Probe every file in the libraries, or the given directories, and print
each file's codec, width, bitrate, target bitrate, and the action a scan
would take. Bitrates far from the rest of the set are flagged.`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().String("category", "", "category for directories that are not configured libraries")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	categoryName, _ := cmd.Flags().GetString("category")
	libs, err := selectLibraries(a.cfg, args, categoryName)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	bins, err := check.New(logging.WithComponent(a.log.Logger, "check")).Deps(ctx, a.cfg)
	if err != nil {
		return err
	}

	table, _ := category.FromConfig(a.cfg)
	prober := probe.NewProber(bins.FFprobe, nil, a.cfg.Transcode.TargetWidth, logging.WithComponent(a.log.Logger, "probe"))
	pl := planner.New(planner.SettingsFromConfig(a.cfg), table)

	out := cmd.OutOrStdout()
	progress := out == os.Stdout && term.IsTerminal(os.Stdout)
	analyzer := pipeline.NewAnalyzer(prober, pl,
		a.cfg.Transcode.Extensions, a.cfg.Transcode.TargetExtension, a.cfg.Transcode.TempExtension,
		out, progress, a.log.Logger)

	_, err = analyzer.Analyze(ctx, libs)
	return err
}
