package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"molsim/config"
	"molsim/internal/adapter/embedding"
	"molsim/internal/adapter/store"
	"molsim/internal/domain"
	"molsim/internal/port"
)

var (
	cfgFile string
	cfg     *config.Config
	rootDir string
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "molsim",
	Short: "Molecular similarity search over multi-resolution embeddings",
	Long: `molsim ingests molecule datasets into a vector index with one ANN field
per supported embedding dimension, and answers k-nearest-neighbor queries
at any of those dimensions. Lower-dimension embeddings are prefixes of the
native model embedding, truncated and renormalized.

Example usage:
  molsim ingest              # Ingest the built-in sample dataset
  molsim ingest ./data       # Ingest CSV datasets from a directory
  molsim query -s "CCO"      # Find molecules similar to ethanol
  molsim status              # Show index state`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		logger, err = buildLogger(cfg.Logging.Level)
		if err != nil {
			return fmt.Errorf("failed to build logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			logger.Sync()
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./molsim.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "root directory (default is current directory)")
}

func buildLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = lvl
	return zcfg.Build()
}

// indexSchema maps the index config onto the store schema.
func indexSchema(cfg *config.Config) domain.IndexSchema {
	return domain.IndexSchema{
		Name:           cfg.Index.Name,
		KeyPrefix:      cfg.Index.KeyPrefix,
		Dimensions:     cfg.Index.Dimensions,
		M:              cfg.Index.M,
		EFConstruction: cfg.Index.EFConstruction,
		EFRuntime:      cfg.Index.EFRuntime,
		InitialCap:     cfg.Index.InitialCap,
		Metric:         cfg.Index.Metric,
	}
}

// newEmbedder builds the configured embedding oracle. Failure here is fatal
// to the command: there is no service without an oracle.
func newEmbedder(cfg *config.Config) (port.Embedder, error) {
	switch cfg.Model.Provider {
	case "mock":
		return embedding.NewMockEmbedder(cfg.Model.Dimension), nil
	case "openai", "":
		return embedding.NewOpenAIEmbedder(cfg.Model.APIKeyEnv, cfg.Model.Name, cfg.Model.BaseURL, cfg.Model.Dimension, cfg.Model.Timeout())
	default:
		return nil, fmt.Errorf("unknown model provider: %s", cfg.Model.Provider)
	}
}

// openStore opens the backing store with the configured startup retry policy.
func openStore(cfg *config.Config) (*store.BoltIndexStore, error) {
	if err := config.EnsureDataDir(rootDir); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return store.Open(cfg.StorePath(rootDir),
		store.WithLogger(logger),
		store.WithOpenRetry(cfg.Store.MaxRetries, cfg.Store.RetryDelay()))
}
