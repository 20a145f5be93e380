package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crosspoint-network/crosspoint/pkg/hw"
	"github.com/crosspoint-network/crosspoint/pkg/mirror"
	"github.com/crosspoint-network/crosspoint/pkg/port"
	"github.com/crosspoint-network/crosspoint/pkg/registry"
	"github.com/crosspoint-network/crosspoint/pkg/stats"
	"github.com/crosspoint-network/crosspoint/pkg/syncer"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Synchronize hardware to the configured port layout once",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		agent, err := newAgent(ctx)
		if err != nil {
			return err
		}
		defer agent.Close()

		if err := agent.ApplyConfig(ctx); err != nil {
			return fmt.Errorf("synchronization incomplete: %w", err)
		}
		fmt.Printf("Synchronized %d ports.\n", agent.reg.Len())
		return nil
	},
}

// agent bundles the wired subsystems for one process lifetime.
type agent struct {
	closeBackend func() error
	reg          *registry.Registry
	mirrors      *mirror.Manager
	engine       *syncer.Engine
	poller       *stats.Poller
	exporter     *stats.Exporter
	lastPorts    port.Map
}

func newAgent(ctx context.Context) (*agent, error) {
	backend, closer, err := newBackend(ctx)
	if err != nil {
		return nil, err
	}

	if cfg.ColdBoot {
		if q, ok := backend.(hw.Quiescer); ok {
			if err := q.Quiesce(ctx); err != nil {
				closer.Close()
				return nil, fmt.Errorf("cold-boot quiesce: %w", err)
			}
		}
	}

	reg := registry.New()
	mirrors := mirror.New(backend)
	engine := syncer.New(backend, reg, mirrors)
	poller := stats.NewPoller(backend, reg, cfg.MMU())
	engine.SetObserver(poller)

	a := &agent{
		closeBackend: closer.Close,
		reg:          reg,
		mirrors:      mirrors,
		engine:       engine,
		poller:       poller,
	}

	if cfg.CountersDB != "" {
		exporter := stats.NewExporter(cfg.CountersDB)
		if err := exporter.Connect(ctx); err != nil {
			closer.Close()
			return nil, fmt.Errorf("connecting counters db: %w", err)
		}
		a.exporter = exporter
	}

	for _, s := range cfg.ToSessions() {
		if err := mirrors.AddSession(s); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

// ApplyConfig syncs hardware from the last applied snapshot to the
// configured layout. The first call treats everything as added.
func (a *agent) ApplyConfig(ctx context.Context) error {
	desired := cfg.ToLogicalPorts()
	err := a.engine.Apply(ctx, port.NewDelta(a.lastPorts, desired))
	a.lastPorts = desired
	return err
}

func (a *agent) Close() {
	if a.exporter != nil {
		a.exporter.Close()
	}
	a.closeBackend()
}
