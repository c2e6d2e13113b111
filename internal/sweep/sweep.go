// Package sweep runs batches of experiments: the quality sweep over named
// datasets and cluster counts, and the efficiency sweep over growing data
// sizes. Every combination produces one Record and one structured log line.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"catcluster/internal/config"
	"catcluster/internal/core"
	"catcluster/internal/dataset"
	"catcluster/internal/experiment"
	"catcluster/internal/quality"
)

// Mode names a sweep kind
type Mode string

const (
	ModeQuality    Mode = "quality"
	ModeEfficiency Mode = "efficiency"
)

// Runner runs one combination; *experiment.Orchestrator satisfies it.
type Runner interface {
	RunAlgorithm(ctx context.Context, alg, dist string, opts experiment.Options) (*experiment.Result, error)
	NumUsers() int
}

// Scorer computes quality indices; *quality.Evaluator satisfies it.
type Scorer interface {
	EvaluateAll(ctx context.Context, ds core.Dataset, labels core.ClusterLabeling, kind core.DistanceKind, truth []int) (*quality.ClusteringQualityMetrics, error)
}

// Dataset is a named user subset with optional ground truth.
type Dataset struct {
	Name      string
	ValidUIDs []string
	Truth     []int // nil when the dataset has no ground truth
}

// Record is the outcome of one combination.
type Record struct {
	RunID     string                            `json:"run_id"`
	Mode      Mode                              `json:"mode"`
	Dataset   string                            `json:"dataset,omitempty"`
	DataSize  int                               `json:"data_size,omitempty"`
	K         int                               `json:"k"`
	Algorithm core.Algorithm                    `json:"alg"`
	Distance  core.DistanceKind                 `json:"distance_type"`
	Runtime   time.Duration                     `json:"runtime"`
	Points    int                               `json:"points"`
	Metrics   *quality.ClusteringQualityMetrics `json:"metrics,omitempty"`
	Skipped   string                            `json:"skipped,omitempty"` // reason the combination did not run
	Err       string                            `json:"error,omitempty"`
}

// Failed reports whether the combination ran and failed.
func (r Record) Failed() bool {
	return r.Err != ""
}

// Sweeper drives a Runner over many combinations.
type Sweeper struct {
	runner Runner
	scorer Scorer
	cfg    config.Sweep
	log    zerolog.Logger
	newID  func() string
}

// NewSweeper creates a sweeper. scorer may be nil for efficiency-only use.
func NewSweeper(runner Runner, scorer Scorer, cfg config.Sweep, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		runner: runner,
		scorer: scorer,
		cfg:    cfg,
		log:    log,
		newID:  func() string { return uuid.New().String() },
	}
}

// LoadDatasets reads the id list and truth file of every configured dataset.
func LoadDatasets(specs []config.SweepDataset) ([]Dataset, error) {
	datasets := make([]Dataset, 0, len(specs))
	for _, spec := range specs {
		uids, err := dataset.ReadIDList(spec.ValidUIDFile)
		if err != nil {
			return nil, fmt.Errorf("dataset %s: %w", spec.Name, err)
		}
		ds := Dataset{Name: spec.Name, ValidUIDs: uids}
		if spec.TruthFile != "" {
			truth, err := dataset.ReadTruth(spec.TruthFile)
			if err != nil {
				return nil, fmt.Errorf("dataset %s: %w", spec.Name, err)
			}
			if len(truth) != len(uids) {
				return nil, core.Dataf("dataset %s: %d truth labels for %d users", spec.Name, len(truth), len(uids))
			}
			ds.Truth = truth
		}
		datasets = append(datasets, ds)
	}
	return datasets, nil
}

// Quality runs every algorithm and distance for every dataset and every k in
// [KMin, KMax], and scores each labeling. kmeans on edit is skipped.
func (s *Sweeper) Quality(ctx context.Context, datasets []Dataset) ([]Record, error) {
	if s.scorer == nil {
		return nil, core.Validationf("quality sweep needs a scorer")
	}
	algs, dists, err := s.combinations()
	if err != nil {
		return nil, err
	}

	var records []Record
	for _, ds := range datasets {
		for k := s.cfg.KMin; k <= s.cfg.KMax; k++ {
			for _, alg := range algs {
				for _, dist := range dists {
					if err := ctx.Err(); err != nil {
						return records, err
					}
					if alg == core.AlgKMeans && dist == core.DistanceEdit {
						continue
					}
					record := Record{
						RunID:     s.newID(),
						Mode:      ModeQuality,
						Dataset:   ds.Name,
						K:         k,
						Algorithm: alg,
						Distance:  dist,
					}

					err := s.runQuality(ctx, ds, &record)
					records = append(records, record)
					if err != nil && (s.cfg.FailFast || ctx.Err() != nil) {
						return records, err
					}
				}
			}
		}
	}
	return records, nil
}

func (s *Sweeper) runQuality(ctx context.Context, ds Dataset, record *Record) error {
	result, err := s.runner.RunAlgorithm(ctx, string(record.Algorithm), string(record.Distance), experiment.Options{
		K:         record.K,
		ValidUIDs: ds.ValidUIDs,
	})
	if err != nil {
		s.fail(record, err)
		return err
	}
	record.Runtime = result.Elapsed
	record.Points = result.Dataset.Len()

	metrics, err := s.scorer.EvaluateAll(ctx, result.Dataset, result.Labels, record.Distance, ds.Truth)
	if err != nil {
		s.fail(record, err)
		return err
	}
	record.Metrics = metrics

	values := func(m core.Metric) any {
		if v := metrics.Value(m); v != nil {
			return *v
		}
		return nil
	}
	sizes := make([]int, len(metrics.Sizes))
	for i, size := range metrics.Sizes {
		sizes[i] = size.Size
	}
	s.log.Info().
		Str("run_id", record.RunID).
		Int("k", record.K).
		Str("dataset", record.Dataset).
		Str("alg", string(record.Algorithm)).
		Str("distance_type", string(record.Distance)).
		Float64("runtime_seconds", record.Runtime.Seconds()).
		Interface(string(core.MetricSilhouette), values(core.MetricSilhouette)).
		Interface(string(core.MetricMeanIntraClusterDistance), values(core.MetricMeanIntraClusterDistance)).
		Interface(string(core.MetricAdjustedRand), values(core.MetricAdjustedRand)).
		Ints("size", sizes).
		Msg("quality experiment")
	return nil
}

// Efficiency times one combination across the configured data sizes. Sizes
// above the algorithm's ceiling are skipped.
func (s *Sweeper) Efficiency(ctx context.Context, alg, dist string, k int) ([]Record, error) {
	algorithm, err := core.ParseAlgorithm(alg)
	if err != nil {
		return nil, err
	}
	kind, err := core.ParseDistanceKind(dist)
	if err != nil {
		return nil, err
	}
	if k <= 0 {
		k = s.cfg.EfficiencyK
	}
	ceiling, bounded := s.cfg.SizeCeilings[string(algorithm)]
	population := s.runner.NumUsers()

	var records []Record
	for _, size := range s.cfg.DataSizes {
		if err := ctx.Err(); err != nil {
			return records, err
		}
		record := Record{
			RunID:     s.newID(),
			Mode:      ModeEfficiency,
			DataSize:  size,
			K:         k,
			Algorithm: algorithm,
			Distance:  kind,
		}
		if bounded && ceiling > 0 && size > ceiling {
			record.Skipped = fmt.Sprintf("data size above the %s ceiling of %d", algorithm, ceiling)
			s.log.Debug().Int("data_size", size).Str("alg", string(algorithm)).Msg(record.Skipped)
			records = append(records, record)
			continue
		}
		if size > population {
			record.Skipped = fmt.Sprintf("data size above the %d users in the corpus", population)
			s.log.Debug().Int("data_size", size).Int("users", population).Msg(record.Skipped)
			records = append(records, record)
			continue
		}

		result, err := s.runner.RunAlgorithm(ctx, alg, dist, experiment.Options{K: k, DataSize: size})
		if err != nil {
			s.fail(&record, err)
			records = append(records, record)
			// a rejected pair fails the same way at every size
			if s.cfg.FailFast || ctx.Err() != nil || isStructural(err) {
				return records, err
			}
			continue
		}
		record.Runtime = result.Elapsed
		record.Points = result.Dataset.Len()
		records = append(records, record)

		s.log.Info().
			Str("run_id", record.RunID).
			Int("k", k).
			Int("data_size", size).
			Int("points", record.Points).
			Str("alg", string(algorithm)).
			Str("distance_type", string(kind)).
			Float64("runtime_seconds", record.Runtime.Seconds()).
			Msg("efficiency experiment")
	}
	return records, nil
}

func (s *Sweeper) combinations() ([]core.Algorithm, []core.DistanceKind, error) {
	algs := make([]core.Algorithm, 0, len(s.cfg.Algorithms))
	for _, name := range s.cfg.Algorithms {
		alg, err := core.ParseAlgorithm(name)
		if err != nil {
			return nil, nil, err
		}
		algs = append(algs, alg)
	}
	dists := make([]core.DistanceKind, 0, len(s.cfg.Distances))
	for _, name := range s.cfg.Distances {
		kind, err := core.ParseDistanceKind(name)
		if err != nil {
			return nil, nil, err
		}
		dists = append(dists, kind)
	}
	return algs, dists, nil
}

func (s *Sweeper) fail(record *Record, err error) {
	record.Err = err.Error()
	level := zerolog.WarnLevel
	if s.cfg.FailFast {
		level = zerolog.ErrorLevel
	}
	s.log.WithLevel(level).Err(err).
		Str("run_id", record.RunID).
		Str("mode", string(record.Mode)).
		Int("k", record.K).
		Str("alg", string(record.Algorithm)).
		Str("distance_type", string(record.Distance)).
		Msg("experiment failed")
}

func isStructural(err error) bool {
	return errors.Is(err, core.ErrCompatibility) || errors.Is(err, core.ErrConfiguration)
}
