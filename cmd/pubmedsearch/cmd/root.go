// Package cmd provides the pubmedsearch commands: building the field
// indices, querying them from the terminal or over HTTP, feeding Kafka and
// inspecting the indexing ledger.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/pubmed-search/internal/store"
	"github.com/Adithya-Monish-Kumar-K/pubmed-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/pubmed-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/pubmed-search/pkg/metrics"
)

type app struct {
	configPath string
	cfg        *config.Config
}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:   "pubmedsearch",
		Short: "Keyword search over PubMed abstracts",
		Long: `pubmedsearch indexes PubMed articles into per-field keyword indices
stored in Redis and ranks articles against free-text queries.

Examples:
  pubmedsearch build --max-files 2
  pubmedsearch find lactose intolerance
  pubmedsearch serve`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load()
		},
	}
	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "path to YAML config file")

	cmd.AddCommand(newBuildCmd(a))
	cmd.AddCommand(newFindCmd(a))
	cmd.AddCommand(newServeCmd(a))
	cmd.AddCommand(newPublishCmd(a))
	cmd.AddCommand(newLedgerCmd(a))
	return cmd
}

// Execute runs the root command until SIGINT or SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

// load reads .env (if any) and the config file. Logs go to stderr so
// command output on stdout stays clean.
func (a *app) load() error {
	_ = godotenv.Load()
	path := a.configPath
	if path == "" {
		path = os.Getenv("PS_CONFIG")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	a.cfg = cfg
	logger.SetupWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	slog.Debug("config loaded", "path", path)
	return nil
}

// openStore connects the Redis-backed namespaces.
func (a *app) openStore() (*store.Redis, error) {
	r, err := store.NewRedis(a.cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("connecting redis: %w", err)
	}
	return r, nil
}

// startMetrics registers the collectors and, when enabled, serves them. The
// returned stop function is always safe to call.
func (a *app) startMetrics() (*metrics.Metrics, func(), error) {
	m := metrics.New(nil)
	if !a.cfg.Metrics.Enabled {
		return m, func() {}, nil
	}
	e, err := metrics.Listen(fmt.Sprintf(":%d", a.cfg.Metrics.Port))
	if err != nil {
		return nil, nil, err
	}
	return m, func() {
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := e.Shutdown(ctx); err != nil {
			slog.Warn("metrics server shutdown failed", "error", err)
		}
	}, nil
}
