package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newIndexCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build and persist the vector index",
		Long: `Parse every supported document in DOCS_DIR, chunk and embed it, and
write the index to INDEX_DIR. An index that already matches the documents
and embedder is kept unless --force is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(os.Stderr)
			if err != nil {
				return err
			}
			a, err := newApp(cfg, log)
			if err != nil {
				return err
			}
			defer a.close()

			stored, built, err := a.builder.LoadOrBuild(cmd.Context(), force)
			if err != nil {
				return err
			}
			verb := "up to date"
			if built {
				verb = "built"
			}
			m := stored.Manifest
			fmt.Fprintf(cmd.OutOrStdout(), "index %s: %d chunks, %s, %d dims, model %s\n",
				verb, len(stored.Chunks), m.Kind, m.Dims, m.Model)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Rebuild even if the persisted index is current")
	return cmd
}
