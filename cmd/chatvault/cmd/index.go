package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chatvault/chatvault/internal/index"
	"github.com/chatvault/chatvault/internal/indexer"
	"github.com/chatvault/chatvault/internal/source"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Catch the search index up with the source database",
	RunE: func(cmd *cobra.Command, args []string) error {
		srcPath, err := requireSourceDB()
		if err != nil {
			return err
		}

		src, err := source.Open(srcPath)
		if err != nil {
			return err
		}
		defer src.Close()

		idx, err := index.Open(cfg.IndexDBPath())
		if err != nil {
			return err
		}
		defer idx.Close()

		ix := indexer.New(src, idx).WithLogger(logger)
		total, err := ix.BuildIndex(cmd.Context())
		if err != nil {
			return fmt.Errorf("build index: %w", err)
		}

		count, err := idx.Count()
		if err != nil {
			return err
		}
		fmt.Printf("Considered %d messages; index now holds %d entries.\n", total, count)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
}
