// Command journal_report prints a performance report from the trade journal.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"futuresGuard/internal/adapters/logger"
	"futuresGuard/internal/adapters/sqlite"
	"futuresGuard/internal/analytics"
)

func main() {
	dbPath := flag.String("db", "./data/futures_guard.db", "path to the journal database")
	limit := flag.Int("limit", 1000, "number of most recent closed positions to analyse")
	balance := flag.String("balance", "10000", "initial balance the equity curve starts from")
	events := flag.Int("events", 20, "number of recent risk events to list (0 disables)")
	flag.Parse()

	initial, err := decimal.NewFromString(*balance)
	if err != nil || !initial.IsPositive() {
		log.Fatalf("invalid -balance %q: must be a positive number", *balance)
	}

	journal, err := sqlite.NewJournal(sqlite.Config{
		DBPath: *dbPath,
		Logger: logger.NewStdLogger(logger.LevelWarn),
	})
	if err != nil {
		log.Fatalf("Error opening journal: %v", err)
	}
	defer journal.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	positions, err := journal.ClosedPositions(ctx, *limit)
	if err != nil {
		log.Fatalf("Error reading closed positions: %v", err)
	}
	if len(positions) == 0 {
		log.Println("No closed positions in the journal yet.")
		return
	}

	report := analytics.Analyze(positions, initial)
	printSummary(report)
	printReasons(report)
	printMonths(report)

	if *events > 0 {
		if err := printRiskEvents(ctx, journal, *events); err != nil {
			log.Fatalf("Error reading risk events: %v", err)
		}
	}
}

func printSummary(r *analytics.Report) {
	fmt.Println("## Performance")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintf(w, "Trades\t%d (%d won, %d lost, %d flat)\n", r.TotalTrades, r.WinningTrades, r.LosingTrades, r.BreakevenTrades)
	fmt.Fprintf(w, "Win rate\t%s%%\n", r.WinRatePct.StringFixed(2))
	fmt.Fprintf(w, "Total PnL\t%s\n", r.TotalPnL.StringFixed(2))
	fmt.Fprintf(w, "Fees\t%s\n", r.TotalFees.StringFixed(2))
	fmt.Fprintf(w, "Avg win / loss\t%s / %s\n", r.AverageWin.StringFixed(2), r.AverageLoss.StringFixed(2))
	fmt.Fprintf(w, "Profit factor\t%s\n", r.ProfitFactor.StringFixed(2))
	fmt.Fprintf(w, "Expectancy\t%s\n", r.Expectancy.StringFixed(2))
	fmt.Fprintf(w, "Balance\t%s -> %s (%s%%)\n", r.InitialBalance.StringFixed(2), r.FinalBalance.StringFixed(2), r.ReturnPct.StringFixed(2))
	fmt.Fprintf(w, "Max drawdown\t%s%%\n", r.MaxDrawdownPct.StringFixed(2))
	fmt.Fprintf(w, "Recovery factor\t%s\n", r.RecoveryFactor.StringFixed(2))
	fmt.Fprintf(w, "Streaks\t%d wins, %d losses\n", r.MaxConsecutiveWins, r.MaxConsecutiveLosses)
	fmt.Fprintf(w, "Avg duration\t%s\n", r.AverageDuration.Round(time.Second))
	w.Flush()
}

func printReasons(r *analytics.Report) {
	fmt.Println("\n## By close reason")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintln(w, "Reason\tCount\tTotal PnL\tAvg PnL\t")
	for _, reason := range r.Reasons() {
		s := r.ByReason[reason]
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t\n", reason, s.Count, s.TotalPnL.StringFixed(2), s.AveragePnL().StringFixed(2))
	}
	w.Flush()
}

func printMonths(r *analytics.Report) {
	fmt.Println("\n## Monthly")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintln(w, "Month\tPnL\t")
	for _, m := range r.Months() {
		fmt.Fprintf(w, "%s\t%s\t\n", m.Month.Format("2006-01"), m.Return.StringFixed(2))
	}
	w.Flush()
}

func printRiskEvents(ctx context.Context, journal *sqlite.Journal, limit int) error {
	evs, err := journal.RiskEvents(ctx, limit)
	if err != nil {
		return err
	}
	fmt.Println("\n## Recent risk events")
	if len(evs) == 0 {
		fmt.Println("none")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Time\tType\tLevel\tAck\tResolved\tMessage")
	for _, ev := range evs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%t\t%s\n",
			ev.Timestamp.UTC().Format(time.RFC3339), ev.Type, ev.Level, ev.Acknowledged, ev.Resolved, ev.Message)
	}
	return w.Flush()
}
