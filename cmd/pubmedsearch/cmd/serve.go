package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/pubmed-search/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/pubmed-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/pubmed-search/internal/server"
	"github.com/Adithya-Monish-Kumar-K/pubmed-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/pubmed-search/pkg/metrics"
)

func newServeCmd(a *app) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve queries over HTTP",
		Long: `Serve exposes GET /api/v1/search?q=...&limit=... together with
/health/live, /health/ready and /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if port > 0 {
				a.cfg.Server.Port = port
			}
			return a.runServe(cmd.Context())
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "listen port (default from config)")
	return cmd
}

func (a *app) runServe(ctx context.Context) error {
	r, err := a.openStore()
	if err != nil {
		return err
	}
	defer r.Close()

	m := metrics.New(nil)
	checker := health.NewChecker()
	checker.Register("redis", r.Ping)

	var qc *cache.QueryCache
	if a.cfg.Search.CacheSize > 0 {
		qc = cache.New(a.cfg.Search.CacheSize)
		slog.Info("query cache enabled", "size", a.cfg.Search.CacheSize)
	}

	s := searcher.New(r, searcher.Options{
		TopK:            a.cfg.Search.TopK,
		TimeoutPerIndex: a.cfg.Search.TimeoutPerIndex,
		Metrics:         m,
	})
	return server.New(a.cfg.Server, s, a.cfg.Search.TopK, qc, checker, m).Run(ctx)
}
