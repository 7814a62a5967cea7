package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"stockyard.ai/internal/sim/ledger"
	"stockyard.ai/internal/sim/tasks"
	"stockyard.ai/internal/sim/world"
)

func sample(tick uint64, rejected uint64) world.WorldMetrics {
	return world.WorldMetrics{
		Tick:          tick,
		Workers:       3,
		ActiveWorkers: 1,
		Nodes:         2,
		Queued:        map[tasks.Kind]int{tasks.KindGather: 4, tasks.KindBuild: 0},
		Assignments:   map[tasks.Kind]int{tasks.KindGather: 1},
		RejectedTotal: rejected,
		Ledger: []world.TeamLedger{{
			Team:    1,
			Entries: []ledger.EntryView{{Resource: "wood", Stored: 12, Capacity: 100, Reserved: 5}},
		}},
	}
}

func TestObserveTick(t *testing.T) {
	c := NewCollector()
	c.ObserveTick(sample(1, 2))
	c.ObserveTick(sample(2, 3))

	if got := testutil.ToFloat64(c.tick); got != 2 {
		t.Fatalf("tick: %v", got)
	}
	if got := testutil.ToFloat64(c.queued.WithLabelValues("GATHER")); got != 4 {
		t.Fatalf("queued gather: %v", got)
	}
	if got := testutil.ToFloat64(c.assignments.WithLabelValues("GATHER")); got != 2 {
		t.Fatalf("assignments: %v", got)
	}
	if got := testutil.ToFloat64(c.rejected); got != 3 {
		t.Fatalf("rejected: %v", got)
	}
	if got := testutil.ToFloat64(c.reserved.WithLabelValues("1", "wood")); got != 5 {
		t.Fatalf("reserved: %v", got)
	}
	if got := testutil.ToFloat64(c.workers.WithLabelValues("idle")); got != 2 {
		t.Fatalf("idle workers: %v", got)
	}
}

func TestHandlerServesRegistry(t *testing.T) {
	c := NewCollector()
	c.ObserveTick(sample(7, 0))

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `stockyard_economy_ledger_stored{resource="wood",team="1"} 12`) {
		t.Fatalf("missing ledger gauge:\n%s", body)
	}
}
