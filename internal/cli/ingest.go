package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"molsim/internal/adapter/dataset"
	"molsim/internal/domain"
	"molsim/internal/usecase"
)

var (
	ingestNoSample bool
	ingestWorkers  int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [dir]",
	Short: "Ingest molecule datasets into the index",
	Long: `Ingest molecules into the vector index, creating the index on first run.
Without arguments the built-in sample dataset is ingested; with a directory,
CSV files (smiles,name,category) found there are ingested as well.

Re-running ingestion is always safe: records already present are skipped.

Examples:
  molsim ingest              # Built-in sample dataset only
  molsim ingest ./data       # Sample dataset plus ./data CSVs
  molsim ingest --no-sample ./data`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().BoolVar(&ingestNoSample, "no-sample", false, "skip the built-in sample dataset")
	ingestCmd.Flags().IntVar(&ingestWorkers, "workers", 0, "ingestion worker pool size (default from config)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// Collect the dataset
	var sources [][]domain.Molecule
	if !ingestNoSample {
		sources = append(sources, dataset.SampleMolecules)
	}
	if len(args) > 0 {
		dir, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("path does not exist: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("path is not a directory: %s", dir)
		}
		loader := dataset.NewLoader(cfg.Ingest.Includes, cfg.Ingest.Excludes)
		mols, err := loader.Load(dir)
		if err != nil {
			return err
		}
		sources = append(sources, mols)
	}
	molecules := dataset.Dedupe(sources...)
	if len(molecules) == 0 {
		return fmt.Errorf("no molecules to ingest")
	}

	oracle, err := newEmbedder(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize embedding model: %w", err)
	}

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	schema := indexSchema(cfg)
	if err := st.EnsureIndex(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure index: %w", err)
	}

	workers := cfg.Ingest.Workers
	if ingestWorkers > 0 {
		workers = ingestWorkers
	}
	ingestUC := usecase.NewIngestUseCase(st, oracle, schema,
		usecase.WithIngestLogger(logger),
		usecase.WithWorkers(workers))

	fmt.Printf("Ingesting %d molecules (model: %s)...\n", len(molecules), oracle.ModelName())

	bar := progressbar.NewOptions(len(molecules),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Ingesting"),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)

	report, err := ingestUC.Ingest(ctx, molecules, func(processed, total int) {
		bar.Set(processed)
	})
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	fmt.Printf("\nIngestion complete:\n")
	fmt.Printf("  Records ingested: %d\n", report.Ingested)
	fmt.Printf("  Records skipped:  %d (already present)\n", report.Skipped)
	fmt.Printf("  Records failed:   %d\n", report.Failed)

	if len(report.Errors) > 0 {
		fmt.Printf("\nWarnings:\n")
		for _, e := range report.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}

	return nil
}
