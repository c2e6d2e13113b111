package handlers

import (
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"catcluster/internal/core"
	"catcluster/internal/dataset"
	"catcluster/internal/experiment"
	"catcluster/internal/quality"
	"catcluster/internal/render"
	"catcluster/internal/sweep"
)

// runOutput is the --json form of one run.
type runOutput struct {
	Algorithm      core.Algorithm          `json:"alg"`
	Distance       core.DistanceKind       `json:"distance_type"`
	K              int                     `json:"k"`
	RuntimeSeconds float64                 `json:"runtime_seconds"`
	Assignments    map[string]int          `json:"assignments"`
	Sizes          []core.ClusterSize      `json:"sizes"`
	Metrics        map[core.Metric]float64 `json:"metrics,omitempty"`
}

// NewRunCmd creates the run command
func NewRunCmd(a *app) *cobra.Command {
	var alg, dist string
	var k, dataSize int
	var validUIDFile, truthFile string
	var metrics []string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Cluster users with one algorithm and distance",
		Long: `Run one algorithm over one representation and print the labeling.

Algorithms: covertree, hierarchical, dbscan, kmeans, spectral
Distances:  vec (pivot embedding, euclidean), edit (category tree edit distance)
Metrics:    silhouette (sc), meanIntraClusterDistance (mae), adjustedRand (rand)

kmeans cannot run on edit distance. Options the chosen pair needs, such as
embedding.sigma for vec or dbscan.eps and dbscan.min_samples for dbscan, are
read from the configuration.

Examples:
  catcluster run --alg spectral --dist edit --k 8
  catcluster run --alg dbscan --dist vec --k 4 --data-size 2000 --metrics sc
  catcluster run --alg kmeans --dist vec --k 3 --truth-file testtruth --metrics rand`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if validUIDFile == "" {
				validUIDFile = a.cfg.Data.ValidUIDFile
			}
			if truthFile == "" {
				truthFile = a.cfg.Data.TruthFile
			}
			req := runRequest{
				alg:          alg,
				dist:         dist,
				opts:         experiment.Options{K: k, DataSize: dataSize},
				validUIDFile: validUIDFile,
				truthFile:    truthFile,
				metrics:      metrics,
				asJSON:       asJSON,
			}
			return runRun(cmd, a, req)
		},
	}

	cmd.Flags().StringVarP(&alg, "alg", "a", "", "clustering algorithm")
	cmd.Flags().StringVarP(&dist, "dist", "d", "vec", "distance kind (vec or edit)")
	cmd.Flags().IntVarP(&k, "k", "k", 0, "number of clusters")
	cmd.Flags().IntVar(&dataSize, "data-size", 0, "cap on the number of users (0 means all)")
	cmd.Flags().StringVar(&validUIDFile, "valid-uid-file", "", "newline-delimited user ids to cluster (default data.valid_uid_file)")
	cmd.Flags().StringVar(&truthFile, "truth-file", "", "newline-delimited ground-truth labels (default data.truth_file)")
	cmd.Flags().StringSliceVarP(&metrics, "metrics", "m", nil, "quality indices to compute")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	_ = cmd.MarkFlagRequired("alg")

	return cmd
}

type runRequest struct {
	alg, dist    string
	opts         experiment.Options
	validUIDFile string
	truthFile    string
	metrics      []string
	asJSON       bool
}

func runRun(cmd *cobra.Command, a *app, req runRequest) error {
	ctx := cmd.Context()

	metrics := make([]core.Metric, 0, len(req.metrics))
	for _, name := range req.metrics {
		m, err := core.ParseMetric(strings.TrimSpace(name))
		if err != nil {
			return err
		}
		metrics = append(metrics, m)
	}

	// reject bad names and missing options before touching any file
	if _, err := experiment.NewPlan(req.alg, req.dist, req.opts.K, a.cfg); err != nil {
		return err
	}

	if req.validUIDFile != "" {
		uids, err := dataset.ReadIDList(req.validUIDFile)
		if err != nil {
			return err
		}
		req.opts.ValidUIDs = uids
	}
	var truth []int
	if req.truthFile != "" {
		t, err := dataset.ReadTruth(req.truthFile)
		if err != nil {
			return err
		}
		truth = t
	}

	orch, err := a.orchestrator()
	if err != nil {
		return err
	}
	result, err := orch.RunAlgorithm(ctx, req.alg, req.dist, req.opts)
	if err != nil {
		return err
	}
	if truth != nil && len(truth) != result.Dataset.Len() {
		return core.Dataf("%d truth labels for %d users", len(truth), result.Dataset.Len())
	}

	evaluator := quality.NewEvaluator(a.cfg.Fabric.Workers, a.log)
	scores := make(map[core.Metric]float64, len(metrics))
	for _, m := range metrics {
		v, err := evaluator.Evaluate(ctx, result.Dataset, result.Labels, m, result.Plan.Distance, truth)
		if err != nil {
			return fmt.Errorf("%s: %w", m, err)
		}
		scores[m] = v
	}

	a.log.Info().
		Str("alg", string(result.Plan.Algorithm)).
		Str("distance_type", string(result.Plan.Distance)).
		Int("k", req.opts.K).
		Int("users", result.Dataset.Len()).
		Float64("runtime_seconds", result.Elapsed.Seconds()).
		Msg("run finished")

	out := cmd.OutOrStdout()
	if req.asJSON {
		return writeRunJSON(out, req.opts.K, result, scores)
	}

	record := sweep.Record{
		K:         req.opts.K,
		Algorithm: result.Plan.Algorithm,
		Distance:  result.Plan.Distance,
		Runtime:   result.Elapsed,
		Points:    result.Dataset.Len(),
	}
	fmt.Fprintln(out, render.SweepTable([]sweep.Record{record}, sweep.ModeEfficiency))
	fmt.Fprintf(out, "clusters: %d (noise excluded)\n", result.Labels.NumClusters())
	for _, size := range result.Labels.Sizes() {
		fmt.Fprintf(out, "  label %3d: %d users\n", size.Label, size.Size)
	}
	for _, m := range metrics {
		fmt.Fprintf(out, "%s: %.6f\n", m, scores[m])
	}
	return nil
}

func writeRunJSON(w io.Writer, k int, result *experiment.Result, scores map[core.Metric]float64) error {
	output := runOutput{
		Algorithm:      result.Plan.Algorithm,
		Distance:       result.Plan.Distance,
		K:              k,
		RuntimeSeconds: result.Elapsed.Seconds(),
		Assignments:    make(map[string]int, len(result.Labels)),
		Sizes:          result.Labels.Sizes(),
	}
	for i, id := range result.Dataset.UserIDs() {
		output.Assignments[id] = result.Labels[i]
	}
	if len(scores) > 0 {
		output.Metrics = scores
	}

	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode run result: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
