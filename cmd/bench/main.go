// Command bench runs a synthetic Zipfian workload against the index and
// the approximate-LRU policy wired together, and exposes a Prometheus
// metrics endpoint and an optional pprof endpoint.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/nibcache/nibcache/entry"
	"github.com/nibcache/nibcache/index"
	pmet "github.com/nibcache/nibcache/metrics/prom"
	"github.com/nibcache/nibcache/policy"
	"github.com/nibcache/nibcache/policy/alru"
)

func main() {
	// ---- Flags ----
	var (
		capacity = flag.Int("cap", 100_000, "entry capacity before eviction kicks in")
		bufSize  = flag.Int("buf", alru.DefaultBufferSize, "policy touched-buffer capacity")

		workers  = flag.Int("workers", 2*runtime.GOMAXPROCS(0), "number of worker goroutines")
		duration = flag.Duration("duration", 10*time.Second, "benchmark duration")
		readPct  = flag.Int("reads", 80, "read percentage [0..100]")

		keys    = flag.Int("keys", 1_000_000, "keyspace size")
		zipfS   = flag.Float64("zipf_s", 1.1, "Zipf s > 1 (skew)")
		zipfV   = flag.Float64("zipf_v", 1.0, "Zipf v")
		seed    = flag.Int64("seed", time.Now().UnixNano(), "random seed")
		preload = flag.Int("preload", 0, "preload entries (0 = cap/2)")

		pprofAddr   = flag.String("pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
		metricsAddr = flag.String("http", ":8080", "serve Prometheus metrics at addr")
	)
	flag.Parse()

	// ---- pprof server (on DefaultServeMux) ----
	if *pprofAddr != "" {
		go func() {
			log.Printf("pprof: serving at %s", *pprofAddr)
			log.Println(http.ListenAndServe(*pprofAddr, nil))
		}()
	}

	// ---- Prometheus metrics (on DefaultServeMux) ----
	rec := pmet.New(nil, "nibcache", "bench", nil)
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		log.Printf("metrics: serving at %s", *metricsAddr)
		log.Println(http.ListenAndServe(*metricsAddr, nil))
	}()

	logger := logrus.StandardLogger()
	ix := index.New(index.Options{Metrics: rec, Logger: logger})
	pol := alru.New(alru.Options{BufferSize: *bufSize, Metrics: rec, Logger: logger})

	capN := *capacity
	var size int64

	put := func(k string, v string) {
		e := entry.New([]byte(k), v)
		if err := ix.Insert(e.IndexKey(), e); err != nil {
			return // duplicate key, leave the existing entry alone
		}
		if _, err := pol.Attach(e, &e.Slot); err != nil {
			_, _ = ix.Remove(e.IndexKey())
			return
		}
		if atomic.AddInt64(&size, 1) > int64(capN) {
			if evictOne(ix, pol) {
				atomic.AddInt64(&size, -1)
			}
		}
	}
	get := func(k string) (string, bool) {
		ik := entry.New([]byte(k), nil).IndexKey()
		v, ok := ix.Lookup(ik)
		if !ok {
			return "", false
		}
		e := v.(*entry.Entry)
		pol.Touch(&e.Slot)
		return e.Value.(string), true
	}

	// ---- Preload half capacity to get a realistic hit-rate ----
	pl := *preload
	if pl == 0 {
		pl = capN / 2
	}
	for i := 0; i < pl; i++ {
		k := "k:" + strconv.Itoa(i)
		put(k, "v"+strconv.Itoa(i))
	}
	atomic.StoreInt64(&size, int64(pl))

	// ---- Snapshot flags for goroutines ----
	readPctVal := *readPct
	keysMax := uint64(*keys - 1)
	seedBase := *seed
	zipfSVal := *zipfS
	zipfVVal := *zipfV
	workersN := *workers
	if workersN <= 0 {
		workersN = 1
	}

	// ---- Load generation ----
	var reads, writes, hits, misses, total uint64
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workersN; w++ {
		id := w
		g.Go(func() error {
			// Each worker gets its own RNG + Zipf (rand.Rand is NOT goroutine-safe).
			localR := rand.New(rand.NewSource(seedBase + int64(id)*9973))
			localZipf := rand.NewZipf(localR, zipfSVal, zipfVVal, keysMax)

			keyByZipf := func() string {
				return "k:" + strconv.FormatUint(localZipf.Uint64(), 10)
			}

			for {
				select {
				case <-gctx.Done():
					return nil
				default:
				}

				atomic.AddUint64(&total, 1)
				if int(localR.Int31n(100)) < readPctVal {
					atomic.AddUint64(&reads, 1)
					if _, ok := get(keyByZipf()); ok {
						atomic.AddUint64(&hits, 1)
					} else {
						atomic.AddUint64(&misses, 1)
					}
				} else {
					atomic.AddUint64(&writes, 1)
					put(keyByZipf(), "v"+strconv.Itoa(localR.Int()))
				}
			}
		})
	}
	_ = g.Wait()
	elapsed := time.Since(start)

	// ---- Report ----
	ops := atomic.LoadUint64(&total)
	readsN := atomic.LoadUint64(&reads)
	writesN := atomic.LoadUint64(&writes)
	hitsN := atomic.LoadUint64(&hits)
	missesN := atomic.LoadUint64(&misses)

	hitRate := 0.0
	if readsN > 0 {
		hitRate = float64(hitsN) / float64(readsN) * 100
	}

	fmt.Printf("cap=%d buf=%d workers=%d keys=%d dur=%v seed=%d\n",
		capN, *bufSize, workersN, *keys, elapsed, seedBase)
	fmt.Printf("ops=%d (%.0f ops/s)  reads=%d  writes=%d\n",
		ops, float64(ops)/elapsed.Seconds(), readsN, writesN)
	fmt.Printf("hits=%d  misses=%d  hit-rate=%.2f%%\n", hitsN, missesN, hitRate)
	fmt.Printf("size=%d\n", atomic.LoadInt64(&size))
}

// evictOne removes the policy's current oldest node from the index too,
// keeping the two components' view of "what exists" in sync.
func evictOne(ix *index.Index, pol policy.Policy) bool {
	v, ok := pol.Evict(nil)
	if !ok {
		return false
	}
	e := v.(*entry.Entry)
	ix.Remove(e.IndexKey())
	return true
}
