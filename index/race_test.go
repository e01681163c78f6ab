package index

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"testing"
)

// A mixed workload of concurrent Insert/Lookup/Remove on random keys.
// Should pass under `-race` without detector reports.
func TestRace_MixedWorkload(t *testing.T) {
	ix := New(Options{})

	workers := 4 * runtime.GOMAXPROCS(0)
	keyspace := 2000
	deadline := time.Now().Add(500 * time.Millisecond)

	g, ctx := errgroup.WithContext(context.Background())
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(w)*9973))
			for time.Now().Before(deadline) {
				select {
				case <-ctx.Done():
					return nil
				default:
				}
				k := ik(fmt.Sprintf("k-%d", r.Intn(keyspace)))
				switch r.Intn(3) {
				case 0:
					_ = ix.Insert(k, w)
				case 1:
					_, _ = ix.Lookup(k)
				case 2:
					_, _ = ix.Remove(k)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("workload error: %v", err)
	}
}
