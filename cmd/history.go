package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"envbench/internal/storage"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past runs from local history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		store, err := storage.Open()
		if err != nil {
			return fmt.Errorf("open history store: %w", err)
		}
		defer store.Close()

		records := store.List(limit)
		if len(records) == 0 {
			fmt.Println("No runs recorded yet.")
			return nil
		}

		fmt.Printf("%-36s %-20s %-10s %-7s %s\n", "ID", "When", "Modes", "Trials", "Target")
		for _, rec := range records {
			fmt.Printf("%-36s %-20s %-10s %-7d %s\n",
				rec.ID,
				rec.Timestamp.Local().Format("2006-01-02 15:04:05"),
				strings.Join(rec.Modes, ","),
				len(rec.Summaries),
				rec.Target,
			)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().Int("limit", 20, "Maximum runs to list (0 for all)")
}
