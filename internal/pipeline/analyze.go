package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/backmassage/mediasweep/internal/category"
	"github.com/backmassage/mediasweep/internal/display"
	"github.com/backmassage/mediasweep/internal/job"
	"github.com/backmassage/mediasweep/internal/logging"
	"github.com/backmassage/mediasweep/internal/naming"
	"github.com/backmassage/mediasweep/internal/planner"
	"github.com/backmassage/mediasweep/internal/term"
)

// Actions reported by Analyze.
const (
	ActionReencode = "reencode"
	ActionRemux    = "remux"
	ActionSkip     = "skip"
)

// Row is one analyzed file.
type Row struct {
	Path       string
	Category   category.Category
	Codec      string
	Width      int
	BitRate    int64
	TargetRate int64
	Action     string
	Plan       *planner.Plan
}

// Analyzer probes and plans every file in a set of libraries and reports
// what a scan would do. It never modifies a file.
type Analyzer struct {
	prober    job.Prober
	planner   *planner.Planner
	exts      []string
	targetExt string
	tempExt   string
	out       io.Writer
	progress  bool
	log       *slog.Logger
}

// NewAnalyzer returns an Analyzer printing its table to out. Set progress
// to draw an inline counter while probing; only do so when out is a TTY.
func NewAnalyzer(p job.Prober, pl *planner.Planner, exts []string, targetExt, tempExt string, out io.Writer, progress bool, log *slog.Logger) *Analyzer {
	return &Analyzer{
		prober:    p,
		planner:   pl,
		exts:      exts,
		targetExt: targetExt,
		tempExt:   tempExt,
		out:       out,
		progress:  progress,
		log:       logging.WithComponent(log, "analyze"),
	}
}

// Analyze returns a row per file that could be probed and planned, and
// prints the table with bitrate outliers highlighted.
func (a *Analyzer) Analyze(ctx context.Context, libs []category.Library) ([]Row, error) {
	found, err := DiscoverLibraries(libs, a.exts, a.tempExt)
	if err != nil {
		return nil, fmt.Errorf("discover: %w", err)
	}
	if len(found.Items) == 0 {
		a.log.Warn("no media files found", "libraries", len(libs))
		return nil, nil
	}

	total := len(found.Items)
	a.log.Info("analyzing", "files", total)

	var rows []Row
	var skipped int
	for i, item := range found.Items {
		if ctx.Err() != nil {
			a.clearProgress()
			return rows, ctx.Err()
		}
		a.printProgress(i+1, total, skipped, filepath.Base(item.Path))

		row, err := a.analyzeOne(ctx, item)
		if err != nil {
			skipped++
			a.clearProgress()
			a.log.Warn("skipped", "file", filepath.Base(item.Path), "error", err)
			continue
		}
		rows = append(rows, row)
	}
	a.clearProgress()

	if len(rows) == 0 {
		a.log.Warn("no files could be probed")
		return nil, nil
	}

	var kbps []float64
	for _, r := range rows {
		if r.BitRate > 0 && r.BitRate != math.MaxInt64 {
			kbps = append(kbps, float64(r.BitRate/1000))
		}
	}
	stats := computeStats(kbps)
	a.printTable(rows, stats)
	a.logSummary(rows, stats, len(found.Stranded))
	return rows, nil
}

func (a *Analyzer) analyzeOne(ctx context.Context, item Item) (Row, error) {
	d, err := a.prober.Probe(ctx, item.Path)
	if err != nil {
		return Row{}, err
	}
	target, err := a.planner.TargetRate(d.Width, item.Category)
	if err != nil {
		return Row{}, err
	}
	plan, err := a.planner.Plan(d, item.Category, naming.HasExtension(item.Path, a.targetExt))
	if err != nil {
		return Row{}, err
	}
	row := Row{
		Path:       item.Path,
		Category:   item.Category,
		Codec:      d.Codec,
		Width:      d.Width,
		BitRate:    d.BitRate,
		TargetRate: target,
		Plan:       plan,
	}
	switch {
	case plan == nil:
		row.Action = ActionSkip
	case plan.Reencodes():
		row.Action = ActionReencode
	default:
		row.Action = ActionRemux
	}
	return row, nil
}

// iqrBounds holds the IQR-based thresholds for outlier classification.
type iqrBounds struct {
	q1, q3    float64
	outlierLo float64 // Q1 - 1.5*IQR
	outlierHi float64 // Q3 + 1.5*IQR
	extremeLo float64 // Q1 - 3.0*IQR
	extremeHi float64 // Q3 + 3.0*IQR
	valid     bool
}

func computeStats(vals []float64) iqrBounds {
	if len(vals) < 4 {
		return iqrBounds{}
	}

	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)

	q1 := percentile(sorted, 25)
	q3 := percentile(sorted, 75)
	iqr := q3 - q1

	return iqrBounds{
		q1:        q1,
		q3:        q3,
		outlierLo: q1 - 1.5*iqr,
		outlierHi: q3 + 1.5*iqr,
		extremeLo: q1 - 3.0*iqr,
		extremeHi: q3 + 3.0*iqr,
		valid:     iqr > 0,
	}
}

// classify returns "" (normal), "outlier", or "extreme" for a value.
func (b *iqrBounds) classify(v float64) string {
	if !b.valid || v <= 0 {
		return ""
	}
	if v < b.extremeLo || v > b.extremeHi {
		return "extreme"
	}
	if v < b.outlierLo || v > b.outlierHi {
		return "outlier"
	}
	return ""
}

func rowKbps(r Row) float64 {
	if r.BitRate == math.MaxInt64 {
		return 0
	}
	return float64(r.BitRate / 1000)
}

func (a *Analyzer) printTable(rows []Row, stats iqrBounds) {
	headers := []string{"File", "Category", "Codec", "Width", "Bitrate", "Target", "Action"}
	cells := make([][]string, len(rows))
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for i, r := range rows {
		action := r.Action
		if r.Plan != nil && r.Plan.Reencodes() {
			action += " " + r.Plan.VideoBitRate()
		}
		cells[i] = []string{
			filepath.Base(r.Path),
			string(r.Category),
			r.Codec,
			fmt.Sprintf("%d", r.Width),
			display.FormatBitRate(r.BitRate),
			display.FormatBitRate(r.TargetRate),
			action,
		}
		for j, c := range cells[i] {
			if n := utf8.RuneCountInString(c); n > widths[j] {
				widths[j] = n
			}
		}
	}
	if widths[0] > 50 {
		widths[0] = 50
	}

	var hdr strings.Builder
	for i, h := range headers {
		fmt.Fprintf(&hdr, "  %-*s", widths[i], h)
	}
	fmt.Fprintln(a.out, term.Bold+hdr.String()+term.NC)
	fmt.Fprintln(a.out, "  "+strings.Repeat("─", hdr.Len()-2))

	for i, r := range rows {
		c := cells[i]
		name := truncate(c[0], widths[0])
		class := stats.classify(rowKbps(r))
		// Pad the plain text first, then wrap in ANSI color so escape
		// bytes do not count toward the column width.
		fmt.Fprintf(a.out, "  %-*s  %-*s  %-*s  %-*s  %s  %-*s  %-*s %s\n",
			widths[0], name,
			widths[1], c[1],
			widths[2], c[2],
			widths[3], c[3],
			colorPad(c[4], widths[4], class),
			widths[5], c[5],
			widths[6], c[6],
			formatFlag(class),
		)
	}
	fmt.Fprintln(a.out)
}

func (a *Analyzer) logSummary(rows []Row, stats iqrBounds, stranded int) {
	var reencode, remux, skip, outliers, extremes int
	for _, r := range rows {
		switch r.Action {
		case ActionReencode:
			reencode++
		case ActionRemux:
			remux++
		default:
			skip++
		}
		switch stats.classify(rowKbps(r)) {
		case "extreme":
			extremes++
		case "outlier":
			outliers++
		}
	}

	a.log.Info("analysis finished",
		"files", len(rows),
		"reencode", reencode,
		"remux", remux,
		"skip", skip,
		"stranded", stranded,
	)
	if stats.valid {
		a.log.Info(fmt.Sprintf("video bitrate IQR: %.0f to %.0f kbps (outlier < %.0f or > %.0f)",
			stats.q1, stats.q3, stats.outlierLo, stats.outlierHi))
	}
	if outliers > 0 {
		a.log.Warn(fmt.Sprintf("%d outlier(s) flagged [*]", outliers))
	}
	if extremes > 0 {
		a.log.Warn(fmt.Sprintf("%d extreme outlier(s) flagged [!]", extremes))
	}
}

func formatFlag(flag string) string {
	switch flag {
	case "extreme":
		return term.Red + "[!]" + term.NC
	case "outlier":
		return term.Orange + "[*]" + term.NC
	default:
		return ""
	}
}

// colorPad pads a plain string to width, then wraps in ANSI color.
func colorPad(s string, width int, class string) string {
	padded := fmt.Sprintf("%-*s", width, s)
	switch class {
	case "extreme":
		return term.Red + padded + term.NC
	case "outlier":
		return term.Orange + padded + term.NC
	default:
		return padded
	}
}

// printProgress shows a live probe counter as an inline \r-overwritten line.
func (a *Analyzer) printProgress(current, total, skipped int, name string) {
	if !a.progress {
		return
	}
	pct := current * 100 / total
	status := fmt.Sprintf("  Probing [%d/%d] %d%% ", current, total, pct)
	if skipped > 0 {
		status += fmt.Sprintf("(%d skipped) ", skipped)
	}

	status += truncate(name, 40)

	// Pad to 80 columns to overwrite previous longer lines.
	if n := utf8.RuneCountInString(status); n < 80 {
		status += strings.Repeat(" ", 80-n)
	}
	fmt.Fprintf(a.out, "\r%s", status)
}

// truncate shortens s to at most width runes, marking the cut with an
// ellipsis.
func truncate(s string, width int) string {
	if utf8.RuneCountInString(s) <= width {
		return s
	}
	r := []rune(s)
	return string(r[:width-1]) + "…"
}

func (a *Analyzer) clearProgress() {
	if a.progress {
		fmt.Fprintf(a.out, "\r%s\r", strings.Repeat(" ", 80))
	}
}

// percentile computes the p-th percentile using linear interpolation.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := (p / 100) * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi || hi >= len(sorted) {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
