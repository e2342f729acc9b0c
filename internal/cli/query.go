package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"molsim/internal/usecase"
)

var (
	querySMILES string
	queryDim    int
	queryTopK   int
	queryJSON   bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Find molecules similar to a query molecule",
	Long: `Embed a molecule and search the index for its nearest neighbors at the
requested embedding dimension. Results are ranked by cosine similarity,
most similar first.

Examples:
  molsim query -s "CCO"
  molsim query -s "CC(C)O" --dim 64 -k 10 --json`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&querySMILES, "smiles", "s", "", "query molecule as canonical SMILES (required)")
	queryCmd.Flags().IntVar(&queryDim, "dim", 0, "embedding dimension (default is the largest supported)")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of results (default from config)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	queryCmd.MarkFlagRequired("smiles")
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	schema := indexSchema(cfg)

	oracle, err := newEmbedder(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize embedding model: %w", err)
	}

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	if exists, err := st.IndexExists(ctx); err != nil {
		return err
	} else if !exists {
		return fmt.Errorf("no index found. Run 'molsim ingest' first")
	}

	dim := schema.NativeDimension()
	if queryDim > 0 {
		dim = queryDim
	}
	k := cfg.Search.DefaultK
	if queryTopK > 0 {
		k = queryTopK
	}

	searchUC := usecase.NewSearchUseCase(st, oracle, schema, usecase.WithSearchLogger(logger))
	results, err := searchUC.SearchBySMILES(ctx, querySMILES, dim, k)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if queryJSON {
		output, _ := json.MarshalIndent(results, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}
	fmt.Printf("Found %d similar molecules for %s (dim %d):\n\n", len(results), querySMILES, dim)
	for i, r := range results {
		name := r.Name
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Printf("%2d. %-30s %-24s score=%.4f\n", i+1, r.SMILES, name, r.Score)
	}
	return nil
}
