package probe

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/opsboard/internal/domain"
	"github.com/hamed0406/opsboard/internal/metrics"
)

var ErrDuplicateProbe = errors.New("probe already registered")

type entry struct {
	name     string
	category string
	checker  Checker
}

// Registry holds named probes in registration order.
type Registry struct {
	mu      sync.RWMutex
	entries []entry

	Timeout     time.Duration
	Concurrency int
	Logger      *zap.Logger
	Metrics     *metrics.Collector
}

func NewRegistry(logger *zap.Logger, m *metrics.Collector, timeout time.Duration, concurrency int) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Registry{Timeout: timeout, Concurrency: concurrency, Logger: logger, Metrics: m}
}

func (r *Registry) Register(name, category string, c Checker) error {
	if name == "" || c == nil {
		return errors.New("probe needs a name and a checker")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.name == name {
			return fmt.Errorf("%w: %s", ErrDuplicateProbe, name)
		}
	}
	r.entries = append(r.entries, entry{name: name, category: category, checker: c})
	return nil
}

func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.entries {
		if e.name == name {
			r.entries = append(r.entries[:i:i], r.entries[i+1:]...)
			return true
		}
	}
	return false
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.name
	}
	return out
}

// RunAll runs every registered probe and returns one result per probe, in
// registration order. Errors, timeouts and panics become CRITICAL results.
func (r *Registry) RunAll(ctx context.Context) []Result {
	r.mu.RLock()
	entries := make([]entry, len(r.entries))
	copy(entries, r.entries)
	r.mu.RUnlock()

	results := make([]Result, len(entries))
	var g errgroup.Group
	g.SetLimit(r.Concurrency)
	for i, e := range entries {
		i, e := i, e
		g.Go(func() error {
			results[i] = r.runOne(ctx, e)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

type checkReply struct {
	out Outcome
	err error
}

func (r *Registry) runOne(ctx context.Context, e entry) Result {
	cctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	start := time.Now()
	done := make(chan checkReply, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- checkReply{err: fmt.Errorf("probe panicked: %v", p)}
			}
		}()
		out, err := e.checker.Check(cctx)
		done <- checkReply{out: out, err: err}
	}()

	var reply checkReply
	select {
	case reply = <-done:
	case <-cctx.Done():
		reply = checkReply{err: fmt.Errorf("probe timed out after %s: %w", r.Timeout, cctx.Err())}
	}
	elapsed := time.Since(start)

	res := Result{
		Service:   e.name,
		Category:  e.category,
		Status:    reply.out.Status,
		Message:   reply.out.Message,
		LatencyMS: reply.out.LatencyMS,
		Details:   reply.out.Details,
	}
	switch {
	case reply.err != nil:
		res.Status = domain.StatusCritical
		res.Message = reply.err.Error()
	case res.Status == "":
		res.Status = domain.StatusOK
	case !res.Status.Valid():
		res.Message = fmt.Sprintf("unknown status %q: %s", res.Status, res.Message)
		res.Status = domain.StatusCritical
	}
	if res.LatencyMS == 0 {
		res.LatencyMS = ms(elapsed)
	}

	r.Metrics.ProbeResult(res.Service, string(res.Status), elapsed.Seconds())
	if res.Status != domain.StatusOK {
		r.Logger.Info("probe_degraded",
			zap.String("service", res.Service),
			zap.String("status", string(res.Status)),
			zap.String("message", res.Message),
		)
	} else {
		r.Logger.Debug("probe_ok",
			zap.String("service", res.Service),
			zap.Float64("latency_ms", res.LatencyMS),
		)
	}
	return res
}
