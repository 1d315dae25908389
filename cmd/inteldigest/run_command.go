package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"IntelDigest/internal/app"
	"IntelDigest/internal/usecase"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var pipeline string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run enabled pipelines once and deliver the digests",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.New(runCtx, cfg, ctx.logger())
			if err != nil {
				return err
			}
			defer application.Close()

			reports, runErr := application.RunOnce(runCtx, pipeline)
			if len(reports) > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Pipeline", "Persona", "Entries", "Delivered", "Status"},
					summaryRows(reports),
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				))
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&pipeline, "pipeline", "", "Run only the named pipeline")
	return cmd
}

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run all pipelines every day at the configured hour",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			serveCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.New(serveCtx, cfg, ctx.logger())
			if err != nil {
				return err
			}
			defer application.Close()

			return application.Serve(serveCtx)
		},
	}
}

func summaryRows(reports []usecase.RunReport) [][]string {
	rows := make([][]string, 0, len(reports))
	for _, r := range reports {
		status := "ok"
		switch {
		case r.Err != nil:
			status = "failed: " + r.Err.Error()
		case len(r.Entries) == 0:
			status = "empty"
		}
		delivered := strings.Join(r.Delivered, ", ")
		if delivered == "" {
			delivered = "-"
		}
		rows = append(rows, []string{r.Pipeline, r.Persona, strconv.Itoa(len(r.Entries)), delivered, status})
	}
	return rows
}
