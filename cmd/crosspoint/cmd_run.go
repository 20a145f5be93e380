package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/crosspoint-network/crosspoint/pkg/stats"
	"github.com/crosspoint-network/crosspoint/pkg/util"
)

var runCmd = &cobra.Command{
	Use:     "run",
	Aliases: []string{"poll"},
	Short:   "Synchronize hardware and poll counters until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		agent, err := newAgent(ctx)
		if err != nil {
			return err
		}
		defer agent.Close()

		if err := agent.ApplyConfig(ctx); err != nil {
			// Partial sync is still a running agent; the failed ports are
			// reported and retried on the next configuration load.
			util.Errorf("Synchronization incomplete: %v", err)
		}
		util.Infof("Synchronized %d ports, polling every %s", agent.reg.Len(), cfg.PollInterval)

		if cfg.MetricsAddr != "" {
			reg := prometheus.NewRegistry()
			reg.MustRegister(stats.NewCollector(agent.poller))
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					util.Errorf("Metrics server failed: %v", err)
				}
			}()
			defer srv.Close()
		}

		ticker := time.NewTicker(cfg.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				util.Info("Shutting down")
				return nil
			case <-ticker.C:
				agent.poller.Poll(ctx)
				if agent.exporter != nil {
					agent.exporter.Export(ctx, agent.poller)
				}
			}
		}
	},
}
