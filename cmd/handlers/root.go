package handlers

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"catcluster/internal/clustering"
	"catcluster/internal/config"
	"catcluster/internal/dataset"
	"catcluster/internal/experiment"
	"catcluster/internal/logger"
)

// app carries what the root command loads once for every subcommand.
type app struct {
	cfgFile  string
	logLevel string
	logOut   io.Writer

	cfg *config.Config
	log zerolog.Logger
}

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	return newRootCmd(&app{logOut: os.Stderr})
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "catcluster",
		Short: "Cluster users by the categories of the businesses they visit.",
		Long: `catcluster turns each user's business categories into either a feature
vector (similarity to one category tree per top-level category) or a tree edit
distance, clusters the users with covertree, hierarchical, dbscan, kmeans or
spectral clustering, and scores the result.

Examples:
  # Cluster every user into 5 groups over the vector embedding
  catcluster run --alg hierarchical --dist vec --k 5 --metrics sc,mae

  # Run the quality sweep over the datasets in catcluster.yaml
  catcluster quality --k-min 2 --k-max 19

  # Time covertree across growing data sizes
  catcluster efficiency --alg covertree --dist vec`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is ./catcluster.yaml or $HOME/catcluster.yaml)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override logging.level (trace, debug, info, warn, error)")

	// Add subcommands
	rootCmd.AddCommand(NewRunCmd(a))
	rootCmd.AddCommand(NewQualityCmd(a))
	rootCmd.AddCommand(NewEfficiencyCmd(a))
	rootCmd.AddCommand(NewPivotsCmd(a))

	return rootCmd
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := NewRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// init loads configuration and builds the logger.
func (a *app) init() error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	if a.logLevel != "" {
		if _, err := zerolog.ParseLevel(a.logLevel); err != nil {
			return fmt.Errorf("invalid --log-level %q: %w", a.logLevel, err)
		}
		cfg.Logging.Level = a.logLevel
	}

	err = logger.Init(logger.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		FilePath:   cfg.Logging.FilePath,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Out:        a.logOut,
	})
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.log = logger.Get()
	return nil
}

// openCorpus loads the three input files named in the data section.
func (a *app) openCorpus() (*dataset.Corpus, error) {
	a.log.Debug().
		Str("category_file", a.cfg.Data.CategoryFile).
		Str("business_file", a.cfg.Data.BusinessFile).
		Str("user_file", a.cfg.Data.UserFile).
		Msg("loading corpus")
	return dataset.Open(dataset.Files{
		CategoryFile: a.cfg.Data.CategoryFile,
		BusinessFile: a.cfg.Data.BusinessFile,
		UserFile:     a.cfg.Data.UserFile,
	})
}

func (a *app) kmeansConfig() clustering.KMeansConfig {
	km := clustering.DefaultKMeansConfig()
	km.MaxIterations = a.cfg.KMeans.MaxIterations
	return km
}

// orchestrator opens the corpus and wires it to the default backends.
func (a *app) orchestrator() (*experiment.Orchestrator, error) {
	corpus, err := a.openCorpus()
	if err != nil {
		return nil, err
	}
	registry := clustering.NewDefaultRegistry(a.kmeansConfig(), a.log)
	return experiment.NewOrchestrator(corpus, registry, a.cfg, a.log), nil
}
