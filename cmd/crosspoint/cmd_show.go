package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/crosspoint-network/crosspoint/pkg/cli"
	"github.com/crosspoint-network/crosspoint/pkg/hw"
	"github.com/crosspoint-network/crosspoint/pkg/port"
	"github.com/crosspoint-network/crosspoint/pkg/stats"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display configuration and counters",
}

var showPortsCmd = &cobra.Command{
	Use:   "ports",
	Short: "Print the configured port layout",
	RunE: func(cmd *cobra.Command, args []string) error {
		ports := cfg.ToLogicalPorts()
		if jsonOutput {
			return printJSON(ports)
		}

		ids := make([]port.ID, 0, len(ports))
		for id := range ports {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		t := cli.NewTable("PORT", "NAME", "ADMIN", "SPEED", "FEC", "VLAN", "MIRROR IN", "MIRROR OUT")
		for _, id := range ids {
			p := ports[id]
			admin := cli.Red(p.Admin.String())
			if p.Admin == port.AdminEnabled {
				admin = cli.Green(p.Admin.String())
			}
			t.Row(
				id.String(),
				p.Name,
				admin,
				p.Speed.String(),
				p.FEC.String(),
				fmt.Sprintf("%d", p.IngressVlan),
				orDash(p.IngressMirror),
				orDash(p.EgressMirror),
			)
		}
		t.Flush()
		return nil
	},
}

var showStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Poll hardware counters once and print them",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		agent, err := newAgent(ctx)
		if err != nil {
			return err
		}
		defer agent.Close()

		// Synchronization is an upsert: ports already programmed are left
		// untouched, the registry just learns their handles.
		if err := agent.ApplyConfig(ctx); err != nil {
			return err
		}
		agent.poller.Poll(ctx)

		if jsonOutput {
			snaps := make(map[string]*stats.Snapshot)
			agent.poller.ForEach(func(_ port.ID, snap *stats.Snapshot) {
				snaps[snap.PortName] = snap
			})
			return printJSON(snaps)
		}

		t := cli.NewTable("PORT", "IN BYTES", "OUT BYTES", "IN DISCARDS", "NON-PAUSE", "IN ERRORS", "QUEUE BYTES")
		var rows [][]string
		agent.poller.ForEach(func(_ port.ID, snap *stats.Snapshot) {
			rows = append(rows, []string{
				snap.PortName,
				cli.Count(snap.Counters[hw.InBytes]),
				cli.Count(snap.Counters[hw.OutBytes]),
				cli.Count(snap.Counters[hw.InDiscards]),
				cli.Count(snap.Counters[hw.InNonPauseDiscards]),
				cli.Count(snap.Counters[hw.InErrors]),
				cli.Count(snap.QueueLen),
			})
		})
		sort.Slice(rows, func(i, j int) bool { return rows[i][0] < rows[j][0] })
		for _, row := range rows {
			t.Row(row...)
		}
		t.Flush()
		return nil
	},
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
