package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"specgen/internal/common/logger"
	"specgen/internal/common/observability"
)

func newReconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Fail jobs orphaned by a previous run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := logger.NewStructured(cfg.Logging.Level, "console")

			a, err := newApp(cmd.Context(), cfg, log, observability.NewNoop())
			if err != nil {
				return err
			}
			defer a.shutdown(context.Background())

			n, err := a.reconciler.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d stale job(s) failed\n", n)
			return nil
		},
	}
}
