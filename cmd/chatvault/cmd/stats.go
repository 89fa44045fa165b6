package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chatvault/chatvault/internal/index"
	"github.com/chatvault/chatvault/internal/source"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := index.Open(cfg.IndexDBPath())
		if err != nil {
			return err
		}
		defer idx.Close()

		count, err := idx.Count()
		if err != nil {
			return err
		}
		cursor, err := idx.Cursor()
		if err != nil {
			return err
		}

		fmt.Printf("Indexed entries: %d\n", count)
		fmt.Printf("Index cursor:    %d\n", cursor)

		// Source stats are best-effort; the index is inspectable
		// without the source database present.
		if cfg.Data.SourceDB != "" {
			if src, err := source.Open(cfg.Data.SourceDB); err == nil {
				defer src.Close()
				if maxID, err := src.MaxID(cmd.Context()); err == nil {
					fmt.Printf("Source max id:   %d\n", maxID)
					if maxID > cursor {
						fmt.Printf("Behind by:       %d messages\n", maxID-cursor)
					}
				}
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
