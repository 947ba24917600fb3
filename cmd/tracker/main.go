package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"distributionScope/internal/chain"
	"distributionScope/internal/config"
	"distributionScope/internal/decode"
	"distributionScope/internal/ingest"
	"distributionScope/internal/notify"
	"distributionScope/internal/report"
	"distributionScope/internal/storage/postgres"
)

func main() {
	root := &cobra.Command{
		Use:          "tracker",
		Short:        "Contract event tracker and report bot",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run [startBlock]",
		Short: "Backfill events, then poll live and send scheduled reports",
		Long: "Runs the ingestion pipeline. An optional positional start block overrides " +
			"where backfill begins: positive means backfill from that block, zero or " +
			"negative wipes stored events and resyncs from each event type's genesis block. " +
			"Without it, ingestion resumes from the store.",
		Args: cobra.MaximumNArgs(1),
		RunE: runTracker,
	}
	addCommonFlags(runCmd)
	runCmd.Flags().Duration("poll-interval", 10*time.Second, "live polling interval")
	runCmd.Flags().Int("max-retries", 5, "maximum backfill fetch retry attempts")
	runCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial backfill retry backoff")
	runCmd.Flags().String("report-cron", "0 */4 * * *", "cron schedule for report delivery")
	root.AddCommand(runCmd)

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Generate and send one report per active event type",
		RunE:  runReport,
	}
	addCommonFlags(reportCmd)
	root.AddCommand(reportCmd)

	resetCmd := &cobra.Command{
		Use:   "reset <event>",
		Short: "Delete all stored records of one event type",
		Args:  cobra.ExactArgs(1),
		RunE:  runReset,
	}
	addCommonFlags(resetCmd)
	root.AddCommand(resetCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addCommonFlags(cmd *cobra.Command) {
	cmd.Flags().String("rpc", "", "Ethereum RPC URL")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN")
	cmd.Flags().String("telegram-token", "", "Telegram bot token (optional, reports go to the log without it)")
	cmd.Flags().StringSlice("telegram-chat", nil, "Telegram chat ids (comma-separated)")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func runTracker(cmd *cobra.Command, args []string) error {
	var overrideBlock *int64
	if len(args) == 1 {
		parsed, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("start block must be an integer: %s", args[0])
		}
		overrideBlock = &parsed
	}

	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if cfg.PGDSN == "" {
		return fmt.Errorf("pg dsn is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer store.Close()

	if err := store.Bootstrap(ctx); err != nil {
		return err
	}

	registry, err := decode.NewRegistry(decode.DefaultSpecs()...)
	if err != nil {
		return err
	}

	sink, err := newSink(cfg, logger)
	if err != nil {
		return err
	}

	scheduler := report.NewScheduler(report.NewGenerator(store), sink, registry, logger)
	if err := scheduler.Start(ctx, cfg.ReportCron); err != nil {
		return fmt.Errorf("start report scheduler: %w", err)
	}
	defer scheduler.Stop()

	backfill := ingest.NewBackfill(chainClient, chainClient, store, logger, cfg.MaxRetries, cfg.RetryBackoff)
	poller := ingest.NewPoller(chainClient, chainClient, store, logger, cfg.PollInterval)
	orchestrator := ingest.NewOrchestrator(registry, backfill, poller, store, logger, overrideBlock)

	logger.Info("tracker start",
		zap.String("rpc", cfg.RPCURL),
		zap.Duration("poll_interval", cfg.PollInterval),
		zap.String("report_cron", cfg.ReportCron),
		zap.Int("events", len(registry.Specs())),
	)

	return orchestrator.Run(ctx)
}

func runReport(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.PGDSN == "" {
		return fmt.Errorf("pg dsn is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer store.Close()

	registry, err := decode.NewRegistry(decode.DefaultSpecs()...)
	if err != nil {
		return err
	}

	sink, err := newSink(cfg, logger)
	if err != nil {
		return err
	}

	scheduler := report.NewScheduler(report.NewGenerator(store), sink, registry, logger)
	scheduler.SendAll(ctx)
	return nil
}

func runReset(cmd *cobra.Command, args []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.PGDSN == "" {
		return fmt.Errorf("pg dsn is required")
	}

	registry, err := decode.NewRegistry(decode.DefaultSpecs()...)
	if err != nil {
		return err
	}
	spec, err := registry.Lookup(args[0])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer store.Close()

	if err := store.DeleteAll(ctx, spec.Name); err != nil {
		return fmt.Errorf("delete %s events: %w", spec.Name, err)
	}

	logger.Info("events deleted", zap.String("event", spec.Name))
	return nil
}

func newSink(cfg config.Config, logger *zap.Logger) (notify.Sink, error) {
	if cfg.TelegramToken == "" {
		logger.Warn("no telegram token configured, reports go to the log")
		return notify.NewLogSink(logger), nil
	}
	return notify.NewTelegramSink(cfg.TelegramToken, cfg.TelegramChatIDs)
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
