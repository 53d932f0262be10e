package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// HealthProbe is one dependency check. Check must honour ctx.
type HealthProbe struct {
	Name  string
	Check func(ctx context.Context) error
}

// ProbeResult is the outcome of one probe.
type ProbeResult struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// DefaultHealthMaxAge bounds how long Latest serves the previous results.
const DefaultHealthMaxAge = 30 * time.Second

// HealthChecker runs probes in registration order: index, then models,
// then persistence. Results are advisory only.
type HealthChecker struct {
	probes  []HealthProbe
	timeout time.Duration
	maxAge  time.Duration
	logger  *zap.Logger
	now     func() time.Time

	mu        sync.Mutex
	last      []ProbeResult
	checkedAt time.Time
}

func NewHealthChecker(timeout time.Duration, logger *zap.Logger, probes ...HealthProbe) *HealthChecker {
	return &HealthChecker{
		probes:  probes,
		timeout: timeout,
		maxAge:  DefaultHealthMaxAge,
		logger:  logger,
		now:     time.Now,
	}
}

// Latest returns the most recent results, re-running the probes only when
// they are older than the max age. Concurrent callers share one run.
func (h *HealthChecker) Latest(ctx context.Context) []ProbeResult {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.last != nil && h.now().Sub(h.checkedAt) < h.maxAge {
		return h.last
	}
	h.last = h.runProbes(ctx)
	h.checkedAt = h.now()
	return h.last
}

// Run executes every probe and logs failures without stopping. The results
// become what Latest serves.
func (h *HealthChecker) Run(ctx context.Context) []ProbeResult {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = h.runProbes(ctx)
	h.checkedAt = h.now()
	return h.last
}

func (h *HealthChecker) runProbes(ctx context.Context) []ProbeResult {
	results := make([]ProbeResult, 0, len(h.probes))
	for _, p := range h.probes {
		pctx, cancel := context.WithTimeout(ctx, h.timeout)
		err := p.Check(pctx)
		cancel()

		res := ProbeResult{Name: p.Name, Healthy: err == nil}
		if err != nil {
			res.Error = err.Error()
			h.logger.Warn("HEALTH: dependency unavailable (continuing)", zap.String("probe", p.Name), zap.Error(err))
		} else {
			h.logger.Info("HEALTH: dependency ok", zap.String("probe", p.Name))
		}
		results = append(results, res)
	}
	return results
}

// IndexProbe reports an unreachable or empty vector index.
func IndexProbe(index VectorIndex) HealthProbe {
	return HealthProbe{
		Name: "vector_index",
		Check: func(ctx context.Context) error {
			n, err := index.Count(ctx)
			if err != nil {
				return err
			}
			if n == 0 {
				return ErrEmptyIndex
			}
			return nil
		},
	}
}
