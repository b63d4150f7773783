package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"distribution-service/app"
	"distribution-service/ddd/adapter/component"
	"distribution-service/internal/resource"
	"distribution-service/pkg/logger"
	"distribution-service/pkg/manager"
)

type sweepOptions struct {
	configPath string
	lockFile   string
	staleAfter time.Duration
	pubStale   time.Duration
	timeout    time.Duration
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &sweepOptions{}
	cmd := &cobra.Command{
		Use:   "sweeper",
		Short: "Remove expired upload sessions and fail stuck variants and publications once",
		Long: "Runs a single sweep round against the configured database: upload sessions older than\n" +
			"upload.session_retention are deleted together with their partial files, and variants stuck\n" +
			"in PENDING/PROCESSING longer than transcode.stale_after are marked FAILED so they can be retried.\n" +
			"Publications left in publishing longer than publish.stale_after are marked failed the same way.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSweep(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "config file path (overrides CONFIG_PATH)")
	cmd.Flags().StringVar(&opts.lockFile, "lock-file", filepath.Join(os.TempDir(), "distribution-sweeper.lock"), "lock file preventing concurrent sweeps on this host")
	cmd.Flags().DurationVar(&opts.staleAfter, "stale-after", 0, "override transcode.stale_after")
	cmd.Flags().DurationVar(&opts.pubStale, "publish-stale-after", 0, "override publish.stale_after")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 10*time.Minute, "maximum duration of the sweep")
	return cmd
}

func runSweep(ctx context.Context, opts *sweepOptions) error {
	lock := flock.New(opts.lockFile)
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		fmt.Printf("another sweeper holds %s, skipping\n", opts.lockFile)
		return nil
	}
	defer func() { _ = lock.Unlock() }()

	if opts.configPath != "" {
		if err := os.Setenv("CONFIG_PATH", opts.configPath); err != nil {
			return err
		}
	}
	cfg := app.MustLoadConfig()
	if cfg.Database.Driver != "mysql" {
		return errors.New("sweeper needs a persistent database, database.driver must be mysql")
	}
	logService := logger.NewLogger(cfg)
	logger.SetGlobalLogger(logService)
	defer logService.Close()

	manager.SetResourceFilter(resource.Enabled(cfg))
	manager.MustInitResources()
	defer manager.CloseResources()

	container, err := app.Build(cfg)
	if err != nil {
		return err
	}
	stale := component.StaleAfter{Variants: cfg.Transcode.StaleAfter, Publications: cfg.Publish.StaleAfter}
	if opts.staleAfter > 0 {
		stale.Variants = opts.staleAfter
	}
	if opts.pubStale > 0 {
		stale.Publications = opts.pubStale
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	start := time.Now()
	report, err := component.NewSweeper(container.UploadApp, container.PipelineApp, stale).SweepOnce(ctx)
	logger.Info("sweep finished", map[string]interface{}{
		"sessions_removed":       report.SessionsRemoved,
		"variants_recovered":     report.VariantsRecovered,
		"publications_recovered": report.PublicationsRecovered,
		"elapsed_ms":             time.Since(start).Milliseconds(),
	})
	fmt.Printf("sessions removed: %d, variants recovered: %d, publications recovered: %d\n",
		report.SessionsRemoved, report.VariantsRecovered, report.PublicationsRecovered)
	return err
}
