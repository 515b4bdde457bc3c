// Command phonauth-loadtest drives the Redis session store and the rate
// limiter with concurrent workers and prints latency percentiles.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/phonetica/phonauth/internal/rate"
	"github.com/phonetica/phonauth/session"
)

type deviceState struct {
	userID int64
	device string
	token  string
	gen    int
	mu     sync.Mutex
}

func main() {
	var (
		sessions    = flag.Int("sessions", 100000, "number of sessions to seed")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "operations per phase")
		addrs       = flag.Int("addrs", 5000, "distinct client addresses for the limiter phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "rs", "session key prefix")
	)
	flag.Parse()

	if *sessions <= 0 || *concurrency <= 0 || *ops <= 0 || *addrs <= 0 {
		fmt.Fprintln(os.Stderr, "sessions, concurrency, ops and addrs must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	store := session.NewStore(client, *prefix)

	states := make([]deviceState, *sessions)
	fmt.Printf("seeding %d sessions...\n", *sessions)
	startSeed := time.Now()
	for i := range states {
		st := &states[i]
		st.userID = int64(i/4 + 1)
		st.device = fmt.Sprintf("agent-%d", i%4)
		st.token = tokenFor(i, 0)
		if err := store.Upsert(ctx, record(st)); err != nil {
			fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	lookupStats := runPhase(*ops, *concurrency, 7919, func(r *rand.Rand, _ int) error {
		st := &states[r.Intn(len(states))]
		st.mu.Lock()
		tok := st.token
		st.mu.Unlock()
		_, err := store.FindByToken(ctx, tok)
		return err
	})

	upsertStats := runPhase(*ops, *concurrency, 6151, func(r *rand.Rand, i int) error {
		idx := r.Intn(len(states))
		st := &states[idx]
		st.mu.Lock()
		defer st.mu.Unlock()
		st.gen++
		st.token = tokenFor(idx, st.gen)
		return store.Upsert(ctx, record(st))
	})

	limiter := rate.New(rate.Config{Limit: 10, Window: time.Minute})
	var limited int64
	limiterStats := runPhase(*ops, *concurrency, 104729, func(r *rand.Rand, _ int) error {
		if err := limiter.Allow(fmt.Sprintf("10.0.%d.%d", r.Intn(*addrs)/256, r.Intn(*addrs)%256)); err != nil {
			atomic.AddInt64(&limited, 1)
		}
		return nil
	})
	sweepStart := time.Now()
	removed := limiter.Sweep()

	fmt.Println("---- results ----")
	printStats("find_by_token", lookupStats)
	printStats("upsert", upsertStats)
	printStats("limiter_allow", limiterStats)
	fmt.Printf("limiter: rejected=%d tracked=%d sweep_removed=%d sweep=%s\n",
		limited, limiter.Len(), removed, time.Since(sweepStart).Round(time.Microsecond))
}

// runPhase runs ops calls of op spread over concurrency workers.
func runPhase(ops, concurrency int, seed int64, op func(r *rand.Rand, i int) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seed))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r, i)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

func record(st *deviceState) session.Record {
	now := time.Now()
	return session.Record{
		UserID:    st.userID,
		Device:    st.device,
		Token:     st.token,
		IssuedAt:  now,
		ExpiresAt: now.Add(24 * time.Hour),
	}
}

func tokenFor(i, gen int) string {
	return fmt.Sprintf("tok-%d-%d", i, gen)
}
