package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/verushub/stakewatch/internal/core/config"
	"github.com/verushub/stakewatch/internal/infra/storage/postgres"
)

var resetCoverageCmd = &cobra.Command{
	Use:   "reset-coverage [start_height] [end_height]",
	Short: "Drop checkpoint coverage for a height range so it gets rescanned",
	Long: `Drop checkpoint coverage for a height range. Reward rows are kept;
the next backfill re-walks the range and duplicate inserts are absorbed.
Checkpoints partially inside the range are trimmed, not dropped whole.`,
	Args: cobra.ExactArgs(2),
	Run:  runResetCoverage,
}

func init() {
	rootCmd.AddCommand(resetCoverageCmd)
}

func runResetCoverage(cmd *cobra.Command, args []string) {
	start, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		fmt.Printf("Invalid start height: %v\n", err)
		os.Exit(1)
	}
	end, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		fmt.Printf("Invalid end height: %v\n", err)
		os.Exit(1)
	}
	if end < start {
		fmt.Println("end height must be >= start height")
		os.Exit(1)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	// Direct SQL is fine for a one-shot override. Split checkpoints that
	// straddle the range, then delete everything fully inside it.
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		slog.Error("Failed to begin transaction", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	queries := []struct {
		sql  string
		args []any
	}{
		// Checkpoints straddling the whole range keep their right remainder.
		{`INSERT INTO scan_checkpoints (range_start, range_end, completed_at)
		  SELECT $2 + 1, range_end, completed_at FROM scan_checkpoints
		  WHERE range_start < $1 AND range_end > $2`, []any{start, end}},
		// Trim anything reaching into the range from the left.
		{`UPDATE scan_checkpoints SET range_end = $1 - 1
		  WHERE range_start < $1 AND range_end >= $1`, []any{start}},
		// Trim anything reaching out of the range to the right.
		{`UPDATE scan_checkpoints SET range_start = $2 + 1
		  WHERE range_start >= $1 AND range_start <= $2 AND range_end > $2`, []any{start, end}},
		// Drop checkpoints fully inside the range.
		{`DELETE FROM scan_checkpoints
		  WHERE range_start >= $1 AND range_end <= $2`, []any{start, end}},
	}
	for _, q := range queries {
		if _, err := tx.ExecContext(ctx, q.sql, q.args...); err != nil {
			slog.Error("Failed to reset coverage", "error", err)
			os.Exit(1)
		}
	}
	if err := tx.Commit(); err != nil {
		slog.Error("Failed to commit", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Dropped coverage for heights %d-%d\n", start, end)
}
