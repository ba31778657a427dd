package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dandels/dmodman-core/internal/history"
)

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent downloads, extractions, and update checks",
		Long: `Reads the additive observability ledger (§12.3). This is a secondary,
best-effort record: it is never consulted by the coherence engine, so an
empty or stale ledger never implies an inconsistent index.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistory(cmd, limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of events to show") //nolint:mnd

	return cmd
}

func runHistory(cmd *cobra.Command, limit int) error {
	cc := mustCLIContext(cmd.Context())

	if err := os.MkdirAll(cc.Paths.DataDir, 0o755); err != nil { //nolint:mnd
		return fmt.Errorf("history: creating data directory: %w", err)
	}

	hist, err := history.NewStore(historyDBPath(cc.Paths), cc.Logger)
	if err != nil {
		return fmt.Errorf("history: opening ledger: %w", err)
	}
	defer hist.Close()

	events, err := hist.ListRecent(cmd.Context(), limit)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}

	if len(events) == 0 {
		fmt.Println("no recorded events")

		return nil
	}

	for _, ev := range events {
		fmt.Printf("%d  %-14s %-30s %-10s %s\n", ev.Timestamp, ev.Kind, ev.Identity.String(), ev.Outcome, ev.Detail)
	}

	return nil
}
