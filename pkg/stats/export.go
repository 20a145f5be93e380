package stats

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"

	"github.com/crosspoint-network/crosspoint/pkg/port"
	"github.com/crosspoint-network/crosspoint/pkg/util"
)

// Exporter mirrors published snapshots into the counters database
// (Redis DB 2), one hash per port, so on-box tooling can read them
// without talking to the agent.
type Exporter struct {
	client *redis.Client
}

func NewExporter(addr string) *Exporter {
	return &Exporter{
		client: redis.NewClient(&redis.Options{
			Addr: addr,
			DB:   2,
		}),
	}
}

// Connect verifies the counters database is reachable.
func (e *Exporter) Connect(ctx context.Context) error {
	if err := e.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("counters db ping: %w", err)
	}
	return nil
}

func (e *Exporter) Close() error {
	return e.client.Close()
}

func countersKey(name string) string {
	return "COUNTERS:" + name
}

// Export writes every published snapshot. A failing port is logged and
// skipped; export is best-effort and the next cycle overwrites.
func (e *Exporter) Export(ctx context.Context, poller *Poller) {
	poller.ForEach(func(_ port.ID, snap *Snapshot) {
		fields := make(map[string]interface{}, len(snap.Counters)+2)
		for k, v := range snap.Counters {
			fields[k] = strconv.FormatUint(v, 10)
		}
		fields["queue_occupancy_bytes"] = strconv.FormatUint(snap.QueueLen, 10)
		fields["last_poll"] = snap.Time.UTC().Format("2006-01-02T15:04:05Z")
		if err := e.client.HSet(ctx, countersKey(snap.PortName), fields).Err(); err != nil {
			util.WithPort(snap.PortName).Errorf("Counter export failed: %v", err)
		}
	})
}
