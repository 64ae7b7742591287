package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/minishop-go/minishop/pkg/dedup"
	"github.com/minishop-go/minishop/pkg/optimistic"
	"github.com/minishop-go/minishop/pkg/resource"
	"github.com/minishop-go/minishop/pkg/status"
)

// The engine packages only see observer interfaces; make sure the set
// satisfies all of them.
var (
	_ dedup.Observer      = (*Set)(nil)
	_ resource.Observer   = (*Set)(nil)
	_ optimistic.Observer = (*Set)(nil)
	_ status.Observer     = (*Set)(nil)
)

func TestCountersIncrement(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := New(Config{Registry: reg})

	s.DedupHit("cart")
	s.DedupHit("cart")
	s.DedupMiss("catalog")
	s.CacheHit("cart")
	s.CacheMiss("catalog")
	s.MutationSettled("cart", true)
	s.MutationSettled("cart", false)
	s.RolledBack("cart")
	s.StreamConnected()
	s.ReconnectScheduled()
	s.PollRefreshed()

	if got := testutil.ToFloat64(s.dedupTotal.WithLabelValues("hit")); got != 2 {
		t.Errorf("dedup hits = %v, want 2", got)
	}
	if got := testutil.ToFloat64(s.mutationsTotal.WithLabelValues("failed")); got != 1 {
		t.Errorf("failed mutations = %v, want 1", got)
	}
	if got := testutil.ToFloat64(s.rollbacksTotal); got != 1 {
		t.Errorf("rollbacks = %v, want 1", got)
	}
	if got := testutil.ToFloat64(s.pollRefreshes); got != 1 {
		t.Errorf("poll refreshes = %v, want 1", got)
	}
}

func TestCustomNamespace(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := New(Config{Namespace: "shopfront", Registry: reg})
	s.StreamConnected()

	n, err := testutil.GatherAndCount(reg, "shopfront_status_stream_connects_total")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("gathered %d series, want 1", n)
	}
}
