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

	"github.com/MrEthical07/memoauth"
	"github.com/MrEthical07/memoauth/password"
	"github.com/MrEthical07/memoauth/userstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

type userState struct {
	email   string
	access  string
	refresh string
	mu      sync.Mutex
}

func main() {
	var (
		users       = flag.Int("users", 2000, "number of users to sign up and log in")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "operations per phase (authenticate + reissue)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, MEMOAUTH_REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "lt", "revocation key prefix")
	)
	flag.Parse()

	if *users <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("MEMOAUTH_REDIS_ADDR")
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
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	// Hashing cost is not what this tool measures.
	hasher, err := password.NewBcrypt(bcrypt.MinCost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hasher: %v\n", err)
		os.Exit(1)
	}

	cfg := memoauth.DefaultConfig()
	cfg.JWT.Secret = []byte("memoauth-loadtest-secret-0123456789abcdef")
	cfg.Store.KeyPrefix = *prefix

	mgr, err := memoauth.New().
		WithConfig(cfg).
		WithRedis(client).
		WithUserStore(userstore.NewMemory()).
		WithHasher(hasher).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build manager: %v\n", err)
		os.Exit(1)
	}
	defer mgr.Close()

	states := make([]userState, *users)
	fmt.Printf("seeding %d users...\n", *users)
	startSeed := time.Now()
	for i := 0; i < *users; i++ {
		email := fmt.Sprintf("user-%d@loadtest.local", i)
		if err := mgr.Signup(ctx, signupFor(email)); err != nil {
			fmt.Fprintf(os.Stderr, "signup failed: %v\n", err)
			os.Exit(1)
		}
		pair, err := mgr.Login(ctx, email, "loadtest-password")
		if err != nil {
			fmt.Fprintf(os.Stderr, "login failed: %v\n", err)
			os.Exit(1)
		}
		states[i] = userState{email: email, access: pair.AccessToken, refresh: pair.RefreshToken}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	authStats := runAuthenticatePhase(ctx, mgr, states, *ops, *concurrency)
	reissueStats := runReissuePhase(ctx, mgr, states, *ops, *concurrency)

	fmt.Println("---- results ----")
	printStats("authenticate", authStats)
	printStats("reissue", reissueStats)

	snap := mgr.MetricsSnapshot()
	fmt.Printf("counters: reissue_success=%d reissue_mismatch=%d store_unavailable=%d\n",
		snap.Counters[memoauth.MetricReissueSuccess],
		snap.Counters[memoauth.MetricReissueMismatch],
		snap.Counters[memoauth.MetricStoreUnavailable],
	)
}

func runAuthenticatePhase(ctx context.Context, mgr *memoauth.Manager, states []userState, ops, concurrency int) phaseStats {
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
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				state := &states[r.Intn(len(states))]
				state.mu.Lock()
				access := state.access
				state.mu.Unlock()

				t0 := time.Now()
				_, err := mgr.Authenticate(ctx, access)
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
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

// runReissuePhase rotates refresh tokens. A user's state is locked across the
// call so each reissue presents the current token.
func runReissuePhase(ctx context.Context, mgr *memoauth.Manager, states []userState, ops, concurrency int) phaseStats {
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
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*6151))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				state := &states[r.Intn(len(states))]

				state.mu.Lock()
				t0 := time.Now()
				pair, err := mgr.Reissue(ctx, state.email, state.refresh)
				d := time.Since(t0)
				if err == nil {
					state.access = pair.AccessToken
					state.refresh = pair.RefreshToken
				} else {
					atomic.AddInt64(&failures, 1)
				}
				state.mu.Unlock()

				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
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
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
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

func signupFor(email string) memoauth.SignupRequest {
	return memoauth.SignupRequest{
		Email:           email,
		Password:        "loadtest-password",
		PasswordConfirm: "loadtest-password",
		Nickname:        "loadtest",
		BirthDate:       time.Date(1990, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
}
