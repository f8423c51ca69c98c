package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ratiofetcher/internal/coordinator"
	"ratiofetcher/internal/fetcher"
	"ratiofetcher/internal/model"
	"ratiofetcher/internal/report"
	"ratiofetcher/internal/resolver"
	"ratiofetcher/internal/scheduler"
)

// errBatchFailures makes the process exit non-zero once the report is written
var errBatchFailures = errors.New("batch finished with failures")

var (
	batchFile         string
	batchPasses       int
	batchForceRefresh bool
	batchExecutor     string
	batchOutput       string
	batchLatestOnly   bool
	batchPercent      bool
	batchConsolidated bool
)

var batchCmd = &cobra.Command{
	Use:   "batch [identifier...]",
	Short: "Fetch ratio records for company names or listing codes",
	Long: "Fetches ratio records for every identifier given as an argument or listed in --file, " +
		"one per line. Writes failed/skipped manifests and the merged dataset. Exits 1 when any identifier failed.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate(true); err != nil {
			return err
		}
		params, err := batchParameters(cmd)
		if err != nil {
			return err
		}
		kind, err := scheduler.ParseExecutorKind(cfg.Scheduler.Executor)
		if cmd.Flags().Changed("executor") {
			kind, err = scheduler.ParseExecutorKind(batchExecutor)
		}
		if err != nil {
			return err
		}

		ids := args
		if batchFile != "" {
			fromFile, err := readIdentifiers(batchFile, cmd.InOrStdin())
			if err != nil {
				return err
			}
			ids = append(ids, fromFile...)
		}
		if len(ids) == 0 {
			return eris.New("no identifiers given")
		}

		env, err := initApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		sched, err := env.scheduler(kind)
		if err != nil {
			return err
		}
		coord := coordinator.New(resolver.New(env.dir), env.cache, sched, coordinator.Options{
			Mode:         cfg.ResolveMode(),
			ForceRefresh: batchForceRefresh,
		})

		r, err := coord.RunPasses(ctx, ids, params, batchPasses)
		if err != nil {
			return err
		}

		if err := writeArtifacts(r); err != nil {
			return err
		}
		printReport(cmd.OutOrStdout(), r)

		if ctx.Err() != nil {
			zap.L().Warn("batch interrupted, report is partial")
		}
		if r.HasFailures() {
			return errBatchFailures
		}
		return nil
	},
}

func init() {
	f := batchCmd.Flags()
	f.StringVarP(&batchFile, "file", "f", "", "file with one identifier per line (- for stdin)")
	f.IntVar(&batchPasses, "passes", 1, "max passes; later passes re-run timed out or exhausted identifiers")
	f.BoolVar(&batchForceRefresh, "force-refresh", false, "skip cache lookups and refetch every identifier")
	f.StringVar(&batchExecutor, "executor", "", "goroutine or process (default from config)")
	f.StringVarP(&batchOutput, "output", "o", "", "dataset path, .csv or .json (default from config)")
	f.BoolVar(&batchLatestOnly, "latest-only", false, "keep only the most recent usable period")
	f.BoolVar(&batchPercent, "percent-format", false, "scale percentage ratios by 100")
	f.BoolVar(&batchConsolidated, "consolidated", false, "request consolidated statements first")
	rootCmd.AddCommand(batchCmd)
}

// batchParameters applies explicitly set flags on top of the configured
// fetch parameters
func batchParameters(cmd *cobra.Command) (model.FetchParameters, error) {
	params, err := cfg.FetchParameters()
	if err != nil {
		return params, err
	}
	flags := cmd.Flags()
	if flags.Changed("latest-only") {
		params.LatestOnly = batchLatestOnly
	}
	if flags.Changed("percent-format") {
		params.OutputFormat = model.FormatRaw
		if batchPercent {
			params.OutputFormat = model.FormatPercent
		}
	}
	if flags.Changed("consolidated") {
		params.Basis = model.BasisStandalone
		if batchConsolidated {
			params.Basis = model.BasisConsolidated
		}
	}
	return params, nil
}

// readIdentifiers reads one identifier per line. Blank lines and lines
// starting with # are ignored.
func readIdentifiers(path string, stdin io.Reader) ([]string, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "open identifier file %s", path)
		}
		defer f.Close()
		r = f
	}

	var ids []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrapf(err, "read identifier file %s", path)
	}
	return ids, nil
}

func datasetPath() string {
	p := cfg.Report.DatasetPath
	if batchOutput != "" {
		return batchOutput
	}
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(cfg.Report.Dir, p)
}

func writeArtifacts(r *report.BatchReport) error {
	if err := report.WriteManifests(cfg.Report.Dir, r); err != nil {
		return err
	}
	if path := datasetPath(); path != "" {
		if err := report.WriteDataset(path, r, report.FormatFromPath(path)); err != nil {
			return err
		}
		zap.L().Info("dataset written", zap.String("path", path))
	}
	return nil
}

func printReport(w io.Writer, r *report.BatchReport) {
	for _, it := range r.Results {
		out := it.Outcome
		status := string(out.Source)
		if out.Kind != fetcher.OutcomeSuccess {
			status = string(out.Kind) + ": " + out.Reason
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", it.Target.Query, it.Target.CanonicalCode, status)
	}

	s := r.Summarize()
	fmt.Fprintf(w, "total %d, succeeded %d, failed %d, skipped %d\n", s.Total, s.Succeeded, s.Failed, s.Skipped)
}
