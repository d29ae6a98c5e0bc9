package main

import (
	"fmt"
	"os"
	"path/filepath"

	"cabinrent/internal/models"
	"cabinrent/internal/report"

	"github.com/spf13/cobra"
)

func newReportCmd(a *app) *cobra.Command {
	var (
		from   string
		to     string
		outDir string
	)
	cmd := &cobra.Command{
		Use:       "report <reservations|payments>",
		Short:     "Write an Excel report for a date window",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"reservations", "payments"},
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := models.ParseDate(from)
			if err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			end, err := models.ParseDate(to)
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}

			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			gen := report.NewGenerator(db, a.logger)
			var (
				data []byte
				name string
			)
			switch args[0] {
			case "reservations":
				data, err = gen.Reservations(cmd.Context(), start, end)
				name = report.ReservationsFileName(start, end)
			default:
				data, err = gen.Payments(cmd.Context(), start, end)
				name = report.PaymentsFileName(start, end)
			}
			if err != nil {
				return err
			}

			if outDir == "" {
				outDir = a.cfg.Reports.Path
			}
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("create report directory: %w", err)
			}
			path := filepath.Join(outDir, name)
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "First day, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "Last day, YYYY-MM-DD")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory (default reports.path)")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
