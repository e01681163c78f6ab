package alru

import (
	"context"
	"math/rand"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"testing"

	"github.com/nibcache/nibcache/policy"
)

// A mixed workload of concurrent Attach/Touch/Evict on a shared LRU.
// Should pass under `-race` without detector reports.
func TestRace_MixedWorkload(t *testing.T) {
	l := New(Options{BufferSize: 8})

	const prefill = 256
	slots := make([]*policy.Slot, 0, prefill)
	for i := 0; i < prefill; i++ {
		s := &policy.Slot{}
		if _, err := l.Attach(i, s); err != nil {
			t.Fatalf("prefill Attach: %v", err)
		}
		slots = append(slots, s)
	}

	workers := 4 * runtime.GOMAXPROCS(0)
	deadline := time.Now().Add(500 * time.Millisecond)

	g, ctx := errgroup.WithContext(context.Background())
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(w)*7919))
			for time.Now().Before(deadline) {
				select {
				case <-ctx.Done():
					return nil
				default:
				}
				s := slots[r.Intn(len(slots))]
				switch r.Intn(4) {
				case 0, 1:
					l.Touch(s)
				case 2:
					_, _ = l.Evict(s)
				case 3:
					_, _ = l.Evict(nil)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("workload error: %v", err)
	}
}
