// Package gateway serializes outbound read calls to blockchain endpoints.
// It is the single choke point for eth_call traffic: callers enqueue work,
// a small worker pool spaces calls out to stay under provider rate limits,
// transient throttling is retried with backoff, and sustained throttling
// trips a circuit breaker that fails fast until a cooldown elapses.
package gateway

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/arbstack/bscarb/config"
	"github.com/arbstack/bscarb/utils/metrics"
)

var (
	// ErrBreakerOpen is returned for calls made while the circuit breaker
	// is open; the call is rejected immediately without touching the network.
	ErrBreakerOpen = errors.New("gateway: circuit breaker open")

	// ErrClosed is returned for calls made after Close.
	ErrClosed = errors.New("gateway: closed")
)

// Call is a single outbound read call. Label identifies it in logs.
type Call struct {
	Label string
	Do    func(ctx context.Context) ([]byte, error)
}

type request struct {
	ctx  context.Context
	call Call
	resp chan response
}

type response struct {
	data []byte
	err  error
}

// Gateway is a rate-limited, circuit-breaking call queue. All mutable
// breaker state is mutex-guarded; callers may be arbitrarily concurrent.
type Gateway struct {
	cfg     config.GatewayConfig
	queue   chan *request
	limiter *rate.Limiter
	logger  *zap.Logger
	metrics *metrics.GatewayMetrics

	inFlight atomic.Int64

	mu          sync.Mutex
	consecutive int
	breakerOpen bool
	openedAt    time.Time
	lastCallEnd time.Time

	wg        sync.WaitGroup
	closeOnce sync.Once
	closed    chan struct{}
}

// New creates a gateway and starts its workers.
func New(cfg config.GatewayConfig, logger *zap.Logger) *Gateway {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	g := &Gateway{
		cfg:     cfg,
		queue:   make(chan *request, cfg.QueueSize),
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.BurstSize),
		logger:  logger,
		metrics: metrics.NewGatewayMetrics("bscarb_gateway"),
		closed:  make(chan struct{}),
	}

	for i := 0; i < cfg.Concurrency; i++ {
		g.wg.Add(1)
		go g.worker()
	}
	return g
}

// Metrics exposes the gateway's collectors for registration.
func (g *Gateway) Metrics() *metrics.GatewayMetrics {
	return g.metrics
}

// Execute runs a call through the gateway and returns its raw result.
// Rate-limited failures are retried internally; a revert-style call error is
// returned as-is without retry since probing unavailable routes is expected.
func (g *Gateway) Execute(ctx context.Context, call Call) ([]byte, error) {
	if err := g.checkBreaker(); err != nil {
		g.metrics.BreakerRejected.Inc()
		return nil, err
	}

	req := &request{ctx: ctx, call: call, resp: make(chan response, 1)}
	select {
	case <-g.closed:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	case g.queue <- req:
		g.metrics.QueueDepth.Set(float64(len(g.queue)))
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case resp := <-req.resp:
		return resp.data, resp.err
	}
}

// checkBreaker rejects calls while open; the first call after the cooldown
// elapses closes the breaker and resets the failure counter.
func (g *Gateway) checkBreaker() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.breakerOpen {
		return nil
	}
	if time.Since(g.openedAt) < g.cfg.BreakerCooldown.Std() {
		return ErrBreakerOpen
	}

	g.breakerOpen = false
	g.consecutive = 0
	g.logger.Info("circuit breaker reset after cooldown",
		zap.Duration("cooldown", g.cfg.BreakerCooldown.Std()))
	return nil
}

func (g *Gateway) worker() {
	defer g.wg.Done()

	for {
		select {
		case <-g.closed:
			return
		case req := <-g.queue:
			g.metrics.QueueDepth.Set(float64(len(g.queue)))
			g.serve(req)
		}
	}
}

func (g *Gateway) serve(req *request) {
	// The request may have sat in the queue past the breaker trip; it is
	// abandoned rather than executed into a throttled provider.
	if err := g.checkBreaker(); err != nil {
		g.metrics.BreakerRejected.Inc()
		req.resp <- response{err: err}
		return
	}
	if req.ctx.Err() != nil {
		req.resp <- response{err: req.ctx.Err()}
		return
	}

	g.waitTurn(req.ctx)

	g.inFlight.Add(1)
	g.metrics.InFlight.Set(float64(g.inFlight.Load()))
	data, err := g.attempt(req)
	g.inFlight.Add(-1)
	g.metrics.InFlight.Set(float64(g.inFlight.Load()))

	g.mu.Lock()
	g.lastCallEnd = time.Now()
	g.mu.Unlock()

	req.resp <- response{data: data, err: err}
}

// waitTurn enforces the minimum inter-request delay, measured from the end
// of the previous call, plus the requests-per-second limiter.
func (g *Gateway) waitTurn(ctx context.Context) {
	g.mu.Lock()
	last := g.lastCallEnd
	g.mu.Unlock()

	if !last.IsZero() {
		if wait := g.cfg.MinInterval.Std() - time.Since(last); wait > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
		}
	}

	waitCtx := ctx
	if g.cfg.WaitTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, g.cfg.WaitTimeout.Std())
		defer cancel()
	}
	_ = g.limiter.Wait(waitCtx)
}

// attempt runs the call with retries for rate-limited and transient
// failures. Exhausting retries on a rate-limited error counts against the
// breaker; any other outcome does not.
func (g *Gateway) attempt(req *request) ([]byte, error) {
	var lastErr error

	for try := 0; try <= g.cfg.MaxRetries; try++ {
		if try > 0 {
			g.metrics.Retries.Inc()
			backoff := g.cfg.RetryBackoff.Std() * (1 << (try - 1))
			jitter := time.Duration(rand.Int63n(int64(backoff)/2 + 1))
			select {
			case <-req.ctx.Done():
				return nil, req.ctx.Err()
			case <-time.After(backoff + jitter):
			}
		}

		start := time.Now()
		data, err := func() ([]byte, error) {
			callCtx := req.ctx
			if g.cfg.CallTimeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(req.ctx, g.cfg.CallTimeout.Std())
				defer cancel()
			}
			return req.call.Do(callCtx)
		}()
		g.metrics.CallsTotal.Inc()
		g.metrics.CallLatency.Observe(time.Since(start).Seconds())

		if err == nil {
			g.recordSuccess()
			return data, nil
		}

		switch Classify(err) {
		case KindRateLimited:
			g.metrics.CallErrors.WithLabelValues("rate_limited").Inc()
			lastErr = err
			g.logger.Debug("rate limited, backing off",
				zap.String("call", req.call.Label),
				zap.Int("attempt", try),
				zap.Error(err))
		case KindTransient:
			g.metrics.CallErrors.WithLabelValues("transient").Inc()
			lastErr = err
			g.logger.Debug("transient call failure",
				zap.String("call", req.call.Label),
				zap.Int("attempt", try),
				zap.Error(err))
		default:
			// Call-level reverts are benign: an unavailable route probed
			// on purpose. Surface without retry, no breaker effect.
			g.metrics.CallErrors.WithLabelValues("call").Inc()
			return nil, err
		}
	}

	if Classify(lastErr) == KindRateLimited {
		g.recordRateLimitFailure()
	}
	return nil, lastErr
}

func (g *Gateway) recordSuccess() {
	g.mu.Lock()
	g.consecutive = 0
	g.mu.Unlock()
}

func (g *Gateway) recordRateLimitFailure() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.consecutive++
	if g.consecutive >= g.cfg.BreakerThreshold && !g.breakerOpen {
		g.breakerOpen = true
		g.openedAt = time.Now()
		g.metrics.BreakerTrips.Inc()
		g.logger.Warn("circuit breaker opened",
			zap.Int("consecutive_failures", g.consecutive),
			zap.Duration("cooldown", g.cfg.BreakerCooldown.Std()))
	}
}

// ForceClose administratively closes the breaker and zeroes the
// consecutive-failure counter, letting queued work drain.
func (g *Gateway) ForceClose() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.breakerOpen = false
	g.consecutive = 0
	g.logger.Info("circuit breaker force-closed")
}

// QueueLen returns the number of pending queued calls.
func (g *Gateway) QueueLen() int {
	return len(g.queue)
}

// InFlight returns the number of calls currently executing.
func (g *Gateway) InFlight() int {
	return int(g.inFlight.Load())
}

// BreakerOpen reports whether the circuit breaker is currently open.
func (g *Gateway) BreakerOpen() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.breakerOpen
}

// ConsecutiveFailures returns the current rate-limit failure streak.
func (g *Gateway) ConsecutiveFailures() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.consecutive
}

// Close stops the workers. Pending calls receive ErrClosed.
func (g *Gateway) Close() {
	g.closeOnce.Do(func() {
		close(g.closed)
		g.wg.Wait()
		for {
			select {
			case req := <-g.queue:
				req.resp <- response{err: ErrClosed}
			default:
				return
			}
		}
	})
}
