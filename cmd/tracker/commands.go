package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"PredictionRadar/pkg/config"
	"PredictionRadar/pkg/extractor"
	"PredictionRadar/pkg/market"
	"PredictionRadar/pkg/model"
	"PredictionRadar/pkg/monitor"
	"PredictionRadar/pkg/scheduler"
)

var (
	flagConfig     string
	flagDate       string
	flagWithDups   bool
	flagRunOnStart bool
)

var rootCmd = &cobra.Command{
	Use:           "tracker",
	Short:         "Track stock movement predictions found in financial news",
	Long:          "tracker collects headline claims like \"NVDA surges 25%\", prices them against the market and scores each source.",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file (default $CONFIG_PATH or configs/<env>/app.yaml)")

	runCmd.Flags().BoolVar(&flagRunOnStart, "now", true, "run a collection and refresh cycle before waiting for the schedule")
	statsCmd.Flags().StringVar(&flagDate, "date", "", "collection date YYYY-MM-DD (default today in market time)")
	statsCmd.Flags().BoolVar(&flagWithDups, "include-duplicates", true, "count rows flagged as duplicates")
	summarizeCmd.Flags().StringVar(&flagDate, "date", "", "collection date YYYY-MM-DD (default today in market time)")

	rootCmd.AddCommand(runCmd, collectCmd, refreshCmd, statsCmd, summarizeCmd, verifyCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scheduler until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, true)
		if err != nil {
			return err
		}
		defer a.Close()

		sched := scheduler.NewScheduler(a.cfg.Scheduler, a.clock, a.ingestor, a.refresher, a.summarizer, a.logger)
		if flagRunOnStart {
			sched.RunCollect()
			sched.RunRefresh()
		}
		if err := sched.Start(); err != nil {
			return err
		}

		status := a.clock.Status(a.clock.Now())
		a.logger.Info().Str("market", status.Label).Str("next_change", status.NextChange.Format(time.RFC3339)).Msg("Tracker running")

		<-ctx.Done()
		a.logger.Info().Str("health", a.monitor.Overall()).Msg("Shutting down")
		sched.Stop()
		return nil
	},
}

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Run one collection cycle",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, true)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.ingestor.Collect(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "fetched=%d added=%d duplicates=%d invalid=%d source_failures=%d\n",
			res.Fetched, res.Added, res.Duplicates, res.Invalid, res.SourceFailures)
		writeHealth(cmd.OutOrStdout(), a.monitor.GetAllStatus())
		return nil
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Re-price pending predictions once",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.refresher.Refresh(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "checked=%d updated=%d skipped=%d resolved=%d market_closed=%t\n",
			res.Checked, res.Updated, res.Skipped, res.Resolved, res.MarketClosed)
		writeHealth(cmd.OutOrStdout(), a.monitor.GetAllStatus())
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the day's accuracy statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close()

		date := dateOrToday(a.clock)
		stats, err := a.store.DailyStats(ctx, date, model.DailyStatsOptions{ExcludeDuplicates: !flagWithDups})
		if err != nil {
			return err
		}
		sources, err := a.store.SourceAccuracy(ctx, date)
		if err != nil {
			return err
		}
		writeStats(cmd.OutOrStdout(), stats, sources)
		return nil
	},
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize",
	Short: "Compute and store the daily summary and per-source accuracy",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close()

		date := dateOrToday(a.clock)
		summary, sources, err := a.summarizer.Summarize(ctx, date)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d predictions, hit rate %.2f%%, movement accuracy %.2f%%, %d sources\n",
			summary.Date, summary.TotalPredictions, summary.HitRate, summary.MovementAccuracy, len(sources))
		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify [headline...]",
	Short: "Check configuration, market clock and claim extraction without touching storage",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		clock, err := market.NewClock(cfg.Market)
		if err != nil {
			return err
		}
		return verify(cmd.OutOrStdout(), cfg, clock, args)
	},
}

func verify(out io.Writer, cfg *config.Config, clock *market.Clock, headlines []string) error {
	now := clock.Now()
	status := clock.Status(now)
	fmt.Fprintf(out, "config ok: env=%s driver=%s sources=%d\n", cfg.App.Env, cfg.Database.Driver, len(cfg.EnabledSources()))
	fmt.Fprintf(out, "market: %s (closed=%t) next change %s\n", status.Label, status.IsClosed, status.NextChange.Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(out, "collection date: %s\n", clock.CollectionDate(now))

	ex := extractor.New(cfg.Tracker.MinimumPercentage)
	for _, h := range headlines {
		claim, ok := ex.Extract(h)
		if !ok {
			reason := "no claim"
			if extractor.IsExcluded(h) {
				reason = "excluded"
			}
			fmt.Fprintf(out, "  %-8s %q\n", reason, h)
			continue
		}
		fmt.Fprintf(out, "  %-8s %q -> %s %+.2f%% (%s)\n", "claim", h, claim.Ticker, claim.Percentage, claim.Direction)
	}
	return nil
}

func dateOrToday(clock *market.Clock) string {
	if flagDate != "" {
		return flagDate
	}
	return clock.CollectionDate(clock.Now())
}

func writeStats(out io.Writer, stats model.DailyStats, sources []model.SourceAccuracy) {
	fmt.Fprintf(out, "Date:          %s\n", stats.Date)
	fmt.Fprintf(out, "Predictions:   %d\n", stats.Total)
	fmt.Fprintf(out, "Hits:          %d\n", stats.Hits)
	fmt.Fprintf(out, "Partials:      %d\n", stats.Partials)
	fmt.Fprintf(out, "Misses:        %d\n", stats.Misses)
	fmt.Fprintf(out, "Pending:       %d\n", stats.Pending)
	fmt.Fprintf(out, "Hit rate:      %.2f%%\n", stats.HitRate)
	fmt.Fprintf(out, "Avg predicted: %.2f%%\n", stats.AvgPredicted)

	if len(sources) == 0 {
		return
	}
	fmt.Fprintln(out, strings.Repeat("-", 60))
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SOURCE\tCOUNT\tHIT%\tMAGNITUDE\tSCORE")
	for _, s := range sources {
		fmt.Fprintf(w, "%s\t%d\t%.2f\t%.2f\t%.2f\n", s.SourceName, s.PredictionsCount, s.HitRate, s.MagnitudeAccuracy, s.WeightedScore)
	}
	_ = w.Flush()
}

// writeHealth lists components that have reported at least once
func writeHealth(out io.Writer, statuses []monitor.HealthStatus) {
	for _, s := range statuses {
		if s.Status == monitor.StatusUnknown {
			continue
		}
		line := fmt.Sprintf("%-20s %s", s.Component, s.Status)
		if s.Message != "" {
			line += "  " + s.Message
		}
		fmt.Fprintln(out, line)
	}
}
