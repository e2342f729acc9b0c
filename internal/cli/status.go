package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index state",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	exists, err := st.IndexExists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		fmt.Println("Index: not created (run 'molsim ingest')")
		return nil
	}

	schema, _ := st.Schema()
	count, err := st.Count(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Index:      %s\n", schema.Name)
	fmt.Printf("Records:    %d\n", count)
	fmt.Printf("Dimensions: %v\n", schema.Dimensions)
	fmt.Printf("Metric:     %s\n", schema.Metric)
	fmt.Printf("HNSW:       M=%d EF_CONSTRUCTION=%d EF_RUNTIME=%d INITIAL_CAP=%d\n",
		schema.M, schema.EFConstruction, schema.EFRuntime, schema.InitialCap)
	return nil
}
