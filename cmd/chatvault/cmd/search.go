package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/chatvault/chatvault/internal/index"
	"github.com/chatvault/chatvault/internal/query"
)

var (
	searchPage     int
	searchPageSize int
	searchConvs    []string
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search indexed messages",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := index.Open(cfg.IndexDBPath())
		if err != nil {
			return err
		}
		defer idx.Close()

		engine := query.NewEngine(idx, nil, nil).
			WithScanCap(cfg.Index.ScanCap).
			WithLogger(logger)

		result, err := engine.Search(cmd.Context(), strings.Join(args, " "), query.Options{
			Page:     searchPage,
			PageSize: searchPageSize,
			Groups:   searchConvs,
		})
		if err != nil {
			logger.Error("search failed", "error", err)
			return fmt.Errorf("search failed")
		}

		if result.Total == 0 {
			fmt.Println("No matches.")
			return nil
		}
		for _, item := range result.Items {
			fmt.Printf("[%d] %s  %s\n    %s\n",
				item.MessageID,
				formatDate(item.Date),
				item.DisplayName,
				item.Text)
		}
		fmt.Printf("\nPage %d (%d per page), %d matches.\n",
			result.Page, result.PageSize, result.Total)
		return nil
	},
}

// formatDate renders a source-store timestamp (nanoseconds since the
// Apple epoch, 2001-01-01 UTC) for display.
func formatDate(d int64) string {
	appleEpoch := time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)
	return appleEpoch.Add(time.Duration(d)).Local().Format("2006-01-02 15:04")
}

func init() {
	searchCmd.Flags().IntVar(&searchPage, "page", 1, "result page (1-based)")
	searchCmd.Flags().IntVar(&searchPageSize, "page-size", query.DefaultPageSize, "results per page")
	searchCmd.Flags().StringSliceVar(&searchConvs, "conversation", nil, "restrict to conversation ids (repeatable)")
	rootCmd.AddCommand(searchCmd)
}
