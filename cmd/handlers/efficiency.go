package handlers

import (
	"github.com/spf13/cobra"

	"catcluster/internal/config"
	"catcluster/internal/experiment"
	"catcluster/internal/sweep"
)

// NewEfficiencyCmd creates the efficiency sweep command
func NewEfficiencyCmd(a *app) *cobra.Command {
	var alg, dist string
	var k int
	var sizes []int
	var failFast bool
	var output sweepOutput

	cmd := &cobra.Command{
		Use:   "efficiency",
		Short: "Time one algorithm and distance across growing data sizes",
		Long: `Run one algorithm with one distance at each size in sweep.data_sizes and
record the runtime. Sizes above the algorithm's entry in sweep.size_ceilings
are recorded as skipped.

Examples:
  catcluster efficiency --alg covertree --dist vec
  catcluster efficiency --alg spectral --dist edit --k 10 --sizes 500,1000,2000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg.Sweep
			if len(sizes) > 0 {
				cfg.DataSizes = sizes
			}
			if failFast {
				cfg.FailFast = true
			}
			if k <= 0 {
				k = cfg.EfficiencyK
			}
			if err := config.ValidateStruct(cfg); err != nil {
				return err
			}
			if _, err := experiment.NewPlan(alg, dist, k, a.cfg); err != nil {
				return err
			}
			return runEfficiency(cmd, a, cfg, alg, dist, k, output)
		},
	}

	cmd.Flags().StringVarP(&alg, "alg", "a", "", "clustering algorithm")
	cmd.Flags().StringVarP(&dist, "dist", "d", "vec", "distance kind (vec or edit)")
	cmd.Flags().IntVarP(&k, "k", "k", 0, "number of clusters (default sweep.efficiency_k)")
	cmd.Flags().IntSliceVar(&sizes, "sizes", nil, "data sizes to time (default sweep.data_sizes)")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "stop at the first failed size")
	output.bind(cmd)
	_ = cmd.MarkFlagRequired("alg")

	return cmd
}

func runEfficiency(cmd *cobra.Command, a *app, cfg config.Sweep, alg, dist string, k int, output sweepOutput) error {
	orch, err := a.orchestrator()
	if err != nil {
		return err
	}

	a.log.Info().
		Str("alg", alg).
		Str("distance_type", dist).
		Int("k", k).
		Ints("data_sizes", cfg.DataSizes).
		Msg("starting efficiency sweep")

	sweeper := sweep.NewSweeper(orch, nil, cfg, a.log)
	records, sweepErr := sweeper.Efficiency(cmd.Context(), alg, dist, k)
	if err := output.write(cmd, records, sweep.ModeEfficiency); err != nil {
		return err
	}
	return sweepErr
}
