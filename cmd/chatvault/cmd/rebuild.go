package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chatvault/chatvault/internal/index"
	"github.com/chatvault/chatvault/internal/indexer"
	"github.com/chatvault/chatvault/internal/source"
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Wipe the search index and rebuild it from scratch",
	Long: `rebuild deletes every indexed entry, resets the cursor, and runs a
full catch-up. Use it when the source database has gained rows behind
the cursor (e.g. a retroactive sync inserted older messages), which
normal incremental indexing never revisits.`,
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

		if err := idx.Wipe(); err != nil {
			return fmt.Errorf("wipe index: %w", err)
		}
		logger.Info("index wiped, rebuilding")

		ix := indexer.New(src, idx).WithLogger(logger)
		total, err := ix.BuildIndex(cmd.Context())
		if err != nil {
			return fmt.Errorf("rebuild index: %w", err)
		}

		count, err := idx.Count()
		if err != nil {
			return err
		}
		fmt.Printf("Rebuilt index from %d messages; %d entries.\n", total, count)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rebuildCmd)
}
