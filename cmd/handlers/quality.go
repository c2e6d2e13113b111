package handlers

import (
	"fmt"

	"github.com/spf13/cobra"

	"catcluster/internal/config"
	"catcluster/internal/core"
	"catcluster/internal/quality"
	"catcluster/internal/render"
	"catcluster/internal/sweep"
)

// sweepOutput selects where sweep records go besides the terminal table.
type sweepOutput struct {
	reportDir string
	asJSON    bool
}

func (o *sweepOutput) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.reportDir, "report-dir", "", "also write a markdown report to this directory")
	cmd.Flags().BoolVar(&o.asJSON, "json", false, "print the records as JSON instead of a table")
}

func (o *sweepOutput) write(cmd *cobra.Command, records []sweep.Record, mode sweep.Mode) error {
	out := cmd.OutOrStdout()
	if o.asJSON {
		if err := render.WriteJSON(out, records); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(out, render.SweepTable(records, mode))
	}

	if o.reportDir != "" {
		path, err := render.RenderMarkdownReport(records, mode, o.reportDir)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Report written to %s\n", path)
	}
	return nil
}

// NewQualityCmd creates the quality sweep command
func NewQualityCmd(a *app) *cobra.Command {
	var kMin, kMax int
	var algs, dists []string
	var failFast bool
	var output sweepOutput

	cmd := &cobra.Command{
		Use:   "quality",
		Short: "Score every algorithm and distance over a range of k",
		Long: `Run every configured algorithm with every configured distance for each
k in [k-min, k-max] and each dataset under sweep.datasets, then compute
silhouette, meanIntraClusterDistance and, where the dataset has a truth file,
adjustedRand. kmeans on edit is skipped.

Failed combinations are logged and reported; pass --fail-fast to stop at the
first one.

Examples:
  catcluster quality
  catcluster quality --k-min 2 --k-max 6 --alg hierarchical,spectral --dist edit
  catcluster quality --report-dir reports --json > sweep.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg.Sweep
			if cmd.Flags().Changed("k-min") {
				cfg.KMin = kMin
			}
			if cmd.Flags().Changed("k-max") {
				cfg.KMax = kMax
			}
			if len(algs) > 0 {
				cfg.Algorithms = algs
			}
			if len(dists) > 0 {
				cfg.Distances = dists
			}
			if failFast {
				cfg.FailFast = true
			}
			if err := config.ValidateStruct(cfg); err != nil {
				return err
			}
			return runQuality(cmd, a, cfg, output)
		},
	}

	cmd.Flags().IntVar(&kMin, "k-min", 0, "smallest k (default sweep.k_min)")
	cmd.Flags().IntVar(&kMax, "k-max", 0, "largest k (default sweep.k_max)")
	cmd.Flags().StringSliceVar(&algs, "alg", nil, "algorithms to sweep (default sweep.algorithms)")
	cmd.Flags().StringSliceVar(&dists, "dist", nil, "distance kinds to sweep (default sweep.distances)")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "stop at the first failed combination")
	output.bind(cmd)

	return cmd
}

func runQuality(cmd *cobra.Command, a *app, cfg config.Sweep, output sweepOutput) error {
	specs := cfg.Datasets
	if len(specs) == 0 && a.cfg.Data.ValidUIDFile != "" {
		specs = []config.SweepDataset{{
			Name:         "default",
			ValidUIDFile: a.cfg.Data.ValidUIDFile,
			TruthFile:    a.cfg.Data.TruthFile,
		}}
	}
	if len(specs) == 0 {
		return core.Configurationf("sweep.datasets is empty and data.valid_uid_file is not set")
	}

	datasets, err := sweep.LoadDatasets(specs)
	if err != nil {
		return err
	}
	orch, err := a.orchestrator()
	if err != nil {
		return err
	}

	a.log.Info().
		Int("datasets", len(datasets)).
		Int("k_min", cfg.KMin).
		Int("k_max", cfg.KMax).
		Strs("algorithms", cfg.Algorithms).
		Strs("distances", cfg.Distances).
		Msg("starting quality sweep")

	sweeper := sweep.NewSweeper(orch, quality.NewEvaluator(a.cfg.Fabric.Workers, a.log), cfg, a.log)
	records, sweepErr := sweeper.Quality(cmd.Context(), datasets)

	// partial results are still worth printing when the sweep stopped early
	if err := output.write(cmd, records, sweep.ModeQuality); err != nil {
		return err
	}
	return sweepErr
}
