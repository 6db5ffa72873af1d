package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/verushub/stakewatch/internal/core/domain"
	"github.com/verushub/stakewatch/internal/indexing/extract"
	"github.com/verushub/stakewatch/internal/indexing/gaps"
	"github.com/verushub/stakewatch/internal/indexing/metrics"
	"github.com/verushub/stakewatch/internal/infra/chain"
	"github.com/verushub/stakewatch/internal/infra/rpc"
)

// Status is the immediate answer to a scan trigger.
type Status string

const (
	StatusAccepted              Status = "accepted"
	StatusAlreadyRunning        Status = "already-running"
	StatusCapabilityUnavailable Status = "capability-unavailable"
)

// LeaseLocker guards targets across coordinator instances sharing one store.
// Nil when running single-instance; the in-memory exclusion then suffices.
type LeaseLocker interface {
	Acquire(ctx context.Context, target string, ttl time.Duration) (token string, ok bool, err error)
	Renew(ctx context.Context, target, token string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, target, token string) error
}

// Config holds coordinator retry and lease settings.
type Config struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	LeaseTTL       time.Duration `yaml:"lease_ttl"`
}

// DefaultConfig returns sensible coordinator defaults.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    5,
		InitialBackoff: 2 * time.Second,
		LeaseTTL:       60 * time.Second,
	}
}

// TargetStatus is the observable per-target coordinator state.
type TargetStatus struct {
	State domain.ScanState   `json:"state"`
	Last  *domain.ScanResult `json:"last,omitempty"`
}

type targetRun struct {
	state  domain.ScanState
	last   *domain.ScanResult
	cancel context.CancelFunc
}

// Coordinator schedules scanner runs and enforces at-most-one-active-scan per
// target. A second trigger for a running target is coalesced into a benign
// already-running answer, independently of the store's uniqueness constraint.
type Coordinator struct {
	cfg     Config
	node    chain.Node
	ranges  *RangeScanner
	fast    *FastScanner
	gaps    *gaps.Detector
	leases  LeaseLocker
	genesis uint64
	log     *slog.Logger

	mu      sync.Mutex
	targets map[domain.ScanTarget]*targetRun
	wg      sync.WaitGroup
	stopped bool
}

// NewCoordinator creates a coordinator. leases may be nil for single-instance
// deployments.
func NewCoordinator(
	cfg Config,
	node chain.Node,
	ranges *RangeScanner,
	fast *FastScanner,
	detector *gaps.Detector,
	leases LeaseLocker,
	genesisHeight uint64,
) *Coordinator {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = DefaultConfig().InitialBackoff
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = DefaultConfig().LeaseTTL
	}
	return &Coordinator{
		cfg:     cfg,
		node:    node,
		ranges:  ranges,
		fast:    fast,
		gaps:    detector,
		leases:  leases,
		genesis: genesisHeight,
		log:     slog.Default().With("component", "coordinator"),
		targets: make(map[domain.ScanTarget]*targetRun),
	}
}

// RequestFastScan triggers an address-indexed scan for address. Returns
// capability-unavailable when the node lacks an address index, so the caller
// can choose the slower range path deliberately rather than degrade silently.
func (c *Coordinator) RequestFastScan(ctx context.Context, address string) Status {
	if !c.node.HasAddressIndex(ctx) {
		return StatusCapabilityUnavailable
	}
	return c.trigger(ctx, domain.AddressTarget(address), "fast", func(runCtx context.Context) (*domain.ScanResult, error) {
		return c.fast.Scan(runCtx, address)
	})
}

// RequestBackfill triggers a range scan of [start, end] for every identity
// address. A nil end means the current chain tip, resolved when the run
// starts.
func (c *Coordinator) RequestBackfill(ctx context.Context, start uint64, end *uint64) Status {
	return c.trigger(ctx, domain.ChainTarget, "range", func(runCtx context.Context) (*domain.ScanResult, error) {
		to, err := c.resolveEnd(runCtx, end)
		if err != nil {
			return nil, err
		}
		return c.ranges.Scan(runCtx, start, to, extract.AnyIdentity)
	})
}

// RequestAddressBackfill is the fallback path when fast scans are
// unavailable: a full range walk restricted to one address. Shares the
// address's exclusion slot with fast scans.
func (c *Coordinator) RequestAddressBackfill(ctx context.Context, address string) Status {
	return c.trigger(ctx, domain.AddressTarget(address), "range", func(runCtx context.Context) (*domain.ScanResult, error) {
		tip, err := c.node.CurrentHeight(runCtx)
		if err != nil {
			return nil, err
		}
		return c.ranges.Scan(runCtx, c.genesis, tip, address)
	})
}

// TipFollow is the periodic tick: detect coverage gaps up to the current tip
// and backfill them oldest-first. Shares the chain target's exclusion slot
// with explicit backfills.
func (c *Coordinator) TipFollow(ctx context.Context) Status {
	return c.trigger(ctx, domain.ChainTarget, "range", func(runCtx context.Context) (*domain.ScanResult, error) {
		tip, err := c.node.CurrentHeight(runCtx)
		if err != nil {
			return nil, err
		}
		metrics.ChainTip.Set(float64(tip))

		uncovered, err := c.gaps.FindGaps(runCtx, tip)
		if err != nil {
			return nil, err
		}
		if len(uncovered) == 0 {
			return &domain.ScanResult{StartedAt: time.Now().UTC(), FinishedAt: time.Now().UTC()}, nil
		}

		total := &domain.ScanResult{StartedAt: time.Now().UTC()}
		for _, gap := range uncovered {
			res, err := c.ranges.Scan(runCtx, gap.Start, gap.End, extract.AnyIdentity)
			if res != nil {
				total.RecordsFound += res.RecordsFound
				total.RecordsNew += res.RecordsNew
				total.BlocksScanned += res.BlocksScanned
				total.AnomalousCount += res.AnomalousCount
			}
			if err != nil {
				return total, err
			}
		}
		total.FinishedAt = time.Now().UTC()
		return total, nil
	})
}

// Status returns the observable state of every known target.
func (c *Coordinator) Status() map[domain.ScanTarget]TargetStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[domain.ScanTarget]TargetStatus, len(c.targets))
	for target, run := range c.targets {
		out[target] = TargetStatus{State: run.state, Last: run.last}
	}
	return out
}

// Stop cancels all running scans and waits for them to settle. Committed
// checkpoints are left intact; only in-flight batches are lost.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	c.stopped = true
	for _, run := range c.targets {
		if run.cancel != nil {
			run.cancel()
		}
	}
	c.mu.Unlock()
	c.wg.Wait()
}

type runner func(ctx context.Context) (*domain.ScanResult, error)

func (c *Coordinator) trigger(ctx context.Context, target domain.ScanTarget, kind string, run runner) Status {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return StatusAlreadyRunning
	}
	if existing, ok := c.targets[target]; ok &&
		(existing.state == domain.ScanStateRunning || existing.state == domain.ScanStateRetrying) {
		c.mu.Unlock()
		return StatusAlreadyRunning
	}

	var leaseToken string
	if c.leases != nil {
		token, ok, err := c.leases.Acquire(ctx, string(target), c.cfg.LeaseTTL)
		if err != nil {
			c.mu.Unlock()
			c.log.Error("lease acquire failed", "target", target, "error", err)
			return StatusAlreadyRunning
		}
		if !ok {
			c.mu.Unlock()
			return StatusAlreadyRunning
		}
		leaseToken = token
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	state := &targetRun{state: domain.ScanStateRunning, cancel: cancel}
	c.targets[target] = state
	c.wg.Add(1)
	c.mu.Unlock()

	metrics.ScansActive.Inc()
	jobID := uuid.New().String()
	c.log.Info("scan accepted", "target", target, "kind", kind, "job", jobID)

	go c.execute(runCtx, target, kind, jobID, leaseToken, state, run)
	return StatusAccepted
}

func (c *Coordinator) execute(
	ctx context.Context,
	target domain.ScanTarget,
	kind, jobID, leaseToken string,
	state *targetRun,
	run runner,
) {
	defer c.wg.Done()
	defer metrics.ScansActive.Dec()
	defer state.cancel()

	if c.leases != nil {
		stopRenew := c.keepLease(ctx, string(target), leaseToken)
		defer stopRenew()
		defer func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = c.leases.Release(releaseCtx, string(target), leaseToken)
		}()
	}

	started := time.Now()
	var result *domain.ScanResult

	backoff := retry.WithMaxRetries(uint64(c.cfg.MaxAttempts-1), retry.NewExponential(c.cfg.InitialBackoff))
	err := retry.Do(ctx, backoff, func(attemptCtx context.Context) error {
		res, err := run(attemptCtx)
		if res != nil {
			result = res
		}
		if err == nil {
			return nil
		}
		if attemptCtx.Err() != nil {
			return err // cancelled, do not retry
		}
		if rpc.IsTransient(err) && !errors.Is(err, chain.ErrNoAddressIndex) {
			c.setState(target, domain.ScanStateRetrying)
			metrics.ScanRetries.WithLabelValues(kind).Inc()
			c.log.Warn("transient scan failure, backing off",
				"target", target, "job", jobID, "error", err)
			return retry.RetryableError(err)
		}
		return err
	})

	metrics.ScanDuration.WithLabelValues(kind).Observe(time.Since(started).Seconds())

	if result == nil {
		result = &domain.ScanResult{StartedAt: started.UTC(), FinishedAt: time.Now().UTC()}
	}
	result.JobID = jobID
	result.Target = target

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		result.Err = err.Error()
		state.state = domain.ScanStateFailed
		state.last = result
		c.log.Error("scan failed", "target", target, "job", jobID, "error", err)
		// Failed is observable via Status until the next trigger; the target
		// itself is immediately eligible again.
		return
	}
	state.state = domain.ScanStateIdle
	state.last = result
	c.log.Info("scan completed",
		"target", target,
		"job", jobID,
		"records", result.RecordsFound,
		"new", result.RecordsNew,
		"blocks", result.BlocksScanned,
		"duration", time.Since(started).Round(time.Millisecond))
}

// keepLease renews the target lease at a third of its TTL until stopped.
func (c *Coordinator) keepLease(ctx context.Context, target, token string) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(c.cfg.LeaseTTL / 3)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				ok, err := c.leases.Renew(ctx, target, token, c.cfg.LeaseTTL)
				if err != nil {
					c.log.Warn("lease renew failed", "target", target, "error", err)
				} else if !ok {
					c.log.Warn("lease lost", "target", target)
				}
			}
		}
	}()
	return func() { close(done) }
}

func (c *Coordinator) setState(target domain.ScanTarget, s domain.ScanState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if run, ok := c.targets[target]; ok {
		run.state = s
	}
}

func (c *Coordinator) resolveEnd(ctx context.Context, end *uint64) (uint64, error) {
	if end != nil {
		return *end, nil
	}
	tip, err := c.node.CurrentHeight(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve chain tip: %w", err)
	}
	return tip, nil
}
