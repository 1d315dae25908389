package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"IntelDigest/internal/app"
	"IntelDigest/internal/domain"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var (
		hours   int
		persona string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently delivered digest items",
		RunE: func(cmd *cobra.Command, args []string) error {
			if hours <= 0 {
				return fmt.Errorf("--hours must be positive")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			store, err := app.OpenStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.Recent(cmd.Context(), time.Now().Add(-time.Duration(hours)*time.Hour), persona)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No digest items recorded in this period.")
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Sent", "Persona", "Score", "Title", "URL"},
				historyRows(records),
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().IntVar(&hours, "hours", 24, "Look back this many hours")
	cmd.Flags().StringVar(&persona, "persona", "", "Only show items for this persona")
	return cmd
}

func historyRows(records []domain.DedupRecord) [][]string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.SentAt.Local().Format("2006-01-02 15:04"),
			r.Persona,
			strconv.FormatFloat(r.Score, 'f', 2, 64),
			r.Title,
			r.URL,
		})
	}
	return rows
}
