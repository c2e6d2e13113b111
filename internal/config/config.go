package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"catcluster/internal/core"
)

// Config holds all application configuration
type Config struct {
	Data      Data      `mapstructure:"data"`
	Embedding Embedding `mapstructure:"embedding"`
	Kernel    Kernel    `mapstructure:"kernel"`
	DBSCAN    DBSCAN    `mapstructure:"dbscan"`
	CoverTree CoverTree `mapstructure:"covertree"`
	KMeans    KMeans    `mapstructure:"kmeans"`
	Fabric    Fabric    `mapstructure:"fabric"`
	Sweep     Sweep     `mapstructure:"sweep"`
	Logging   Logging   `mapstructure:"logging"`
}

// Data holds input file locations
type Data struct {
	CategoryFile string `mapstructure:"category_file"`
	BusinessFile string `mapstructure:"business_file"`
	UserFile     string `mapstructure:"user_file"`
	ValidUIDFile string `mapstructure:"valid_uid_file"`
	TruthFile    string `mapstructure:"truth_file"`
}

// Embedding holds the vector embedding settings. Sigma is required only for
// the vec distance.
type Embedding struct {
	Sigma *float64 `mapstructure:"sigma"`
	// LegacyMatchDiscard reproduces the historical scoring, where every
	// matched path contributed zero
	LegacyMatchDiscard bool `mapstructure:"legacy_match_discard"`
}

// Kernel holds the RBF kernel used by spectral clustering
type Kernel struct {
	RBFSigma *float64 `mapstructure:"rbf_sigma"`
}

// DBSCAN holds density clustering settings
type DBSCAN struct {
	Eps        *float64 `mapstructure:"eps"`
	MinSamples *int     `mapstructure:"min_samples"`
}

// CoverTree holds the top level of the cover tree per distance kind
type CoverTree struct {
	VecTopLevel  *int `mapstructure:"vec_top_level"`
	EditTopLevel *int `mapstructure:"edit_top_level"`
}

// KMeans holds K-means settings, also used by spectral clustering
type KMeans struct {
	MaxIterations int   `mapstructure:"max_iterations" validate:"gt=0"`
	Seed          int64 `mapstructure:"seed"`
}

// Fabric holds distance matrix construction settings
type Fabric struct {
	Workers int `mapstructure:"workers" validate:"gte=0"`
}

// SweepDataset names a user subset for the quality sweep
type SweepDataset struct {
	Name         string `mapstructure:"name" validate:"required"`
	ValidUIDFile string `mapstructure:"valid_uid_file" validate:"required"`
	TruthFile    string `mapstructure:"truth_file"`
}

// Sweep holds batch experiment settings
type Sweep struct {
	Datasets     []SweepDataset `mapstructure:"datasets" validate:"dive"`
	KMin         int            `mapstructure:"k_min" validate:"gt=0"`
	KMax         int            `mapstructure:"k_max" validate:"gtefield=KMin"`
	Algorithms   []string       `mapstructure:"algorithms" validate:"min=1"`
	Distances    []string       `mapstructure:"distances" validate:"min=1"`
	EfficiencyK  int            `mapstructure:"efficiency_k" validate:"gt=0"`
	DataSizes    []int          `mapstructure:"data_sizes" validate:"min=1,dive,gt=0"`
	SizeCeilings map[string]int `mapstructure:"size_ceilings"`
	FailFast     bool           `mapstructure:"fail_fast"`
}

// Logging holds logging configuration
type Logging struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format" validate:"oneof=json console"`
	FilePath   string `mapstructure:"file_path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" validate:"gte=0"`
}

// DefaultDataSizes is the escalating sequence used by the efficiency sweep
var DefaultDataSizes = []int{
	500, 1000, 2000, 5000, 7500, 10000, 15000, 20000, 25000, 40000, 80000,
	100000, 200000, 250000, 300000, 350000, 400000, 450000, 500000, 600000,
	800000, 1000000, 1200000,
}

// DefaultSizeCeilings bounds the efficiency sweep per algorithm. Algorithms
// without an entry are unbounded.
var DefaultSizeCeilings = map[string]int{
	string(core.AlgKMeans):       25000,
	string(core.AlgDBSCAN):       25000,
	string(core.AlgSpectral):     5000,
	string(core.AlgHierarchical): 50000000,
}

// optionalKeys have no default; they are bound to the environment explicitly
// so that Unmarshal sees them.
var optionalKeys = []string{
	"data.category_file",
	"data.business_file",
	"data.user_file",
	"data.valid_uid_file",
	"data.truth_file",
	"embedding.sigma",
	"kernel.rbf_sigma",
	"dbscan.eps",
	"dbscan.min_samples",
	"covertree.vec_top_level",
	"covertree.edit_top_level",
	"logging.file_path",
}

// Load reads configuration from defaults, an optional YAML file, a .env file
// and CATCLUSTER_ environment variables, in increasing priority. An empty
// configFile searches for catcluster.yaml in the working and home directories.
func Load(configFile string) (*Config, error) {
	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", err)
		}
	}

	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
		v.SetConfigName("catcluster")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	v.SetEnvPrefix("catcluster")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindEnvironmentVariables(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: error reading config file: %v", core.ErrConfiguration, err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("%w: error unmarshaling config: %v", core.ErrConfiguration, err)
	}

	postProcessConfig(config)

	if err := validateConfig(config); err != nil {
		return nil, err
	}
	return config, nil
}

// Default returns the configuration obtained with no file and no environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	config := &Config{}
	// defaults alone always decode
	_ = v.Unmarshal(config)
	postProcessConfig(config)
	return config
}

func setDefaults(v *viper.Viper) {
	// KMeans defaults
	v.SetDefault("kmeans.max_iterations", 300)
	v.SetDefault("kmeans.seed", 42)

	// Embedding defaults
	v.SetDefault("embedding.legacy_match_discard", false)

	// Fabric defaults
	v.SetDefault("fabric.workers", 0)

	// Sweep defaults
	v.SetDefault("sweep.k_min", 2)
	v.SetDefault("sweep.k_max", 19)
	algorithms := make([]string, len(core.Algorithms))
	for i, alg := range core.Algorithms {
		algorithms[i] = string(alg)
	}
	v.SetDefault("sweep.algorithms", algorithms)
	v.SetDefault("sweep.distances", []string{string(core.DistanceVec), string(core.DistanceEdit)})
	v.SetDefault("sweep.efficiency_k", 20)
	v.SetDefault("sweep.data_sizes", DefaultDataSizes)
	v.SetDefault("sweep.size_ceilings", DefaultSizeCeilings)
	v.SetDefault("sweep.fail_fast", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 28)
}

func bindEnvironmentVariables(v *viper.Viper) error {
	for _, key := range optionalKeys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("%w: binding %s: %v", core.ErrConfiguration, key, err)
		}
	}
	return nil
}

func postProcessConfig(config *Config) {
	// Expand paths
	config.Data.CategoryFile = expandPath(config.Data.CategoryFile)
	config.Data.BusinessFile = expandPath(config.Data.BusinessFile)
	config.Data.UserFile = expandPath(config.Data.UserFile)
	config.Data.ValidUIDFile = expandPath(config.Data.ValidUIDFile)
	config.Data.TruthFile = expandPath(config.Data.TruthFile)
	config.Logging.FilePath = expandPath(config.Logging.FilePath)
	for i := range config.Sweep.Datasets {
		config.Sweep.Datasets[i].ValidUIDFile = expandPath(config.Sweep.Datasets[i].ValidUIDFile)
		config.Sweep.Datasets[i].TruthFile = expandPath(config.Sweep.Datasets[i].TruthFile)
	}

	config.Logging.Level = strings.ToLower(strings.TrimSpace(config.Logging.Level))
	config.Logging.Format = strings.ToLower(strings.TrimSpace(config.Logging.Format))
}

func expandPath(path string) string {
	if path == "" {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return os.ExpandEnv(path)
}

func validateConfig(config *Config) error {
	var problems []string

	if err := ValidateStruct(config); err != nil {
		problems = append(problems, err.Error())
	}
	if _, err := zerolog.ParseLevel(config.Logging.Level); err != nil {
		problems = append(problems, fmt.Sprintf("logging.level: unknown level %q", config.Logging.Level))
	}
	for _, name := range config.Sweep.Algorithms {
		if _, err := core.ParseAlgorithm(name); err != nil {
			problems = append(problems, fmt.Sprintf("sweep.algorithms: %v", err))
		}
	}
	for _, name := range config.Sweep.Distances {
		if _, err := core.ParseDistanceKind(name); err != nil {
			problems = append(problems, fmt.Sprintf("sweep.distances: %v", err))
		}
	}
	for name := range config.Sweep.SizeCeilings {
		if _, err := core.ParseAlgorithm(name); err != nil {
			problems = append(problems, fmt.Sprintf("sweep.size_ceilings: %v", err))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", core.ErrConfiguration, strings.Join(problems, "; "))
	}
	return nil
}

// Float returns *p, or false when the option is absent.
func Float(p *float64) (float64, bool) {
	if p == nil {
		return 0, false
	}
	return *p, true
}

// Int returns *p, or false when the option is absent.
func Int(p *int) (int, bool) {
	if p == nil {
		return 0, false
	}
	return *p, true
}
