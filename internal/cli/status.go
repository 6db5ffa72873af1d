package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/verushub/stakewatch/internal/core/config"
	"github.com/verushub/stakewatch/internal/infra/storage/postgres"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show indexed coverage and the top staking addresses",
	Run:   runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 20, "number of addresses to show")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
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

	var coverage struct {
		Ranges int    `db:"ranges"`
		Blocks uint64 `db:"blocks"`
	}
	err = db.GetContext(ctx, &coverage, `
		SELECT COUNT(*) AS ranges, COALESCE(SUM(range_end - range_start + 1), 0) AS blocks
		FROM scan_checkpoints`)
	if err != nil {
		slog.Error("Failed to query coverage", "error", err)
		os.Exit(1)
	}
	fmt.Printf("Coverage: %d blocks across %d checkpoint ranges\n\n", coverage.Blocks, coverage.Ranges)

	rows, err := db.QueryContext(ctx, `
		SELECT identity_address, total_stakes, total_reward_amount, last_stake_height, last_stake_time
		FROM identity_summaries
		ORDER BY total_reward_amount DESC
		LIMIT $1`, statusLimit)
	if err != nil {
		slog.Error("Failed to query summaries", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = rows.Close()
	}()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "ADDRESS\tSTAKES\tREWARD\tLAST HEIGHT\tLAST STAKE")

	for rows.Next() {
		var addr string
		var stakes, amount int64
		var lastHeight uint64
		var lastTime time.Time
		if err := rows.Scan(&addr, &stakes, &amount, &lastHeight, &lastTime); err != nil {
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%.8f\t%d\t%s\n",
			addr, stakes, float64(amount)/1e8, lastHeight, lastTime.Format(time.RFC3339))
	}
	_ = w.Flush()
}
