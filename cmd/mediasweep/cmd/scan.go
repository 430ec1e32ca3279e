package cmd

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/backmassage/mediasweep/internal/category"
	"github.com/backmassage/mediasweep/internal/check"
	"github.com/backmassage/mediasweep/internal/config"
	"github.com/backmassage/mediasweep/internal/display"
	"github.com/backmassage/mediasweep/internal/job"
	"github.com/backmassage/mediasweep/internal/logging"
	"github.com/backmassage/mediasweep/internal/metrics"
	"github.com/backmassage/mediasweep/internal/pipeline"
)

var scanCmd = &cobra.Command{
	Use:   "scan [dir...]",
	Short: "Transcode every file in the libraries",
	Long: `Walk the configured libraries, or the given directories, and run a
job for each media file in turn.

A directory that is not a configured library root needs --category.`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().String("category", "", "category for directories that are not configured libraries")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
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
	runner, err := job.NewFromConfig(a.cfg, bins, a.log.Logger)
	if err != nil {
		return err
	}

	metrics.ScansTotal.WithLabelValues("cli").Inc()
	scanner := pipeline.NewScanner(runner, a.cfg.Transcode.Extensions, a.cfg.Transcode.TargetExtension, a.cfg.Transcode.TempExtension, a.log.Logger)
	stats := scanner.Scan(ctx, libs)

	fmt.Fprintf(cmd.OutOrStdout(), "%d files: %d transcoded, %d not required, %d failed; saved %s\n",
		stats.Total, stats.Transcoded, stats.NotRequired, stats.Failed,
		display.FormatBytesWithSign(stats.SpaceSaved()))
	if ctx.Err() != nil {
		return errors.New("interrupted")
	}
	if stats.Failed > 0 {
		return fmt.Errorf("%d of %d files failed", stats.Failed, stats.Total)
	}
	return nil
}

// selectLibraries returns the configured libraries when dirs is empty.
// Otherwise each dir must be a configured library root or categoryName
// must name a known category.
func selectLibraries(cfg *config.Config, dirs []string, categoryName string) ([]category.Library, error) {
	configured := category.Libraries(cfg)
	if len(dirs) == 0 {
		if len(configured) == 0 {
			return nil, errors.New("no libraries configured")
		}
		return configured, nil
	}

	table, _ := category.FromConfig(cfg)
	var fallback category.Category
	if categoryName != "" {
		c, err := table.Parse(categoryName)
		if err != nil {
			return nil, err
		}
		fallback = c
	}

	libs := make([]category.Library, 0, len(dirs))
	for _, d := range dirs {
		abs, err := filepath.Abs(config.NormalizeDirArg(d))
		if err != nil {
			return nil, err
		}
		lib := category.Library{Root: abs, Category: fallback}
		if fallback == "" {
			for _, c := range configured {
				if filepath.Clean(c.Root) == abs {
					lib.Category = c.Category
				}
			}
		}
		if lib.Category == "" {
			return nil, fmt.Errorf("%s is not a configured library; pass --category", d)
		}
		libs = append(libs, lib)
	}
	return libs, nil
}
