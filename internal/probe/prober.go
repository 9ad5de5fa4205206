package probe

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hamed0406/subwatch/internal/domain"
)

// ErrNoNetwork is returned when every probe failed because the local
// network had no route or the resolver could not answer, so the batch says
// nothing about the domains.
var ErrNoNetwork = errors.New("probing failed: network unreachable")

const (
	DefaultTimeout     = 3 * time.Second
	DefaultConcurrency = 64
)

type Options struct {
	Concurrency int           // worker pool size
	RPS         float64       // attempts per second across the pool; 0 disables limiting
	Budget      time.Duration // wall-clock cap for the whole batch; 0 disables
}

// Prober decides which candidate domains are alive.
type Prober struct {
	Logger      *zap.Logger
	Checker     Checker
	Resolver    Resolver
	Concurrency int
	Budget      time.Duration
	Limiter     *rate.Limiter
}

func NewProber(logger *zap.Logger, checker Checker, resolver Resolver, opts Options) *Prober {
	if opts.Concurrency < 1 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Budget < 0 {
		opts.Budget = 0
	}
	p := &Prober{
		Logger:      logger,
		Checker:     checker,
		Resolver:    resolver,
		Concurrency: opts.Concurrency,
		Budget:      opts.Budget,
	}
	if opts.RPS > 0 {
		burst := int(opts.RPS)
		if burst < 1 {
			burst = 1
		}
		p.Limiter = rate.NewLimiter(rate.Limit(opts.RPS), burst)
	}
	return p
}

type probed struct {
	result  domain.ProbeResult
	outcome Outcome
}

// ProbeAll probes every domain and returns only the alive ones, in
// completion order. IPs are resolved best-effort.
func (p *Prober) ProbeAll(ctx context.Context, domains []domain.Domain) ([]domain.ProbeResult, error) {
	domains = domain.UniqueDomains(domains)
	if len(domains) == 0 {
		return nil, nil
	}

	runCtx, cancel := ctx, context.CancelFunc(func() {})
	if p.Budget > 0 {
		runCtx, cancel = context.WithTimeout(ctx, p.Budget)
	}
	defer cancel()

	workers := p.Concurrency
	if workers > len(domains) {
		workers = len(domains)
	}

	jobs := make(chan domain.Domain)
	out := make(chan probed)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for d := range jobs {
				if p.Limiter != nil {
					if err := p.Limiter.Wait(runCtx); err != nil {
						continue
					}
				}
				out <- p.probeOne(runCtx, d)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, d := range domains {
			select {
			case jobs <- d:
			case <-runCtx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(out)
	}()

	var (
		alive   []domain.ProbeResult
		done    int
		offline int
	)
	for r := range out {
		done++
		if r.outcome.unreachable() {
			offline++
		}
		if r.result.Alive {
			alive = append(alive, r.result)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("probe batch: %w", err)
	}
	if done > 0 && len(alive) == 0 && offline == done {
		return nil, ErrNoNetwork
	}
	if skipped := len(domains) - done; skipped > 0 {
		p.Logger.Warn("probe_budget_exhausted",
			zap.Duration("budget", p.Budget),
			zap.Int("probed", done),
			zap.Int("skipped", skipped),
		)
	}
	p.Logger.Info("probe_batch_done",
		zap.Int("candidates", len(domains)),
		zap.Int("probed", done),
		zap.Int("alive", len(alive)),
	)
	return alive, nil
}

// probeOne never returns an error: every failure is a dead domain.
func (p *Prober) probeOne(ctx context.Context, d domain.Domain) (res probed) {
	res = probed{result: domain.ProbeResult{Domain: d}, outcome: OutcomeOther}
	defer func() {
		if rec := recover(); rec != nil {
			p.Logger.Warn("probe_panic", zap.String("domain", string(d)), zap.Any("panic", rec))
			res = probed{result: domain.ProbeResult{Domain: d}, outcome: OutcomeOther}
		}
	}()

	out := p.Checker.Check(ctx, "https://"+string(d))
	if out.Outcome == OutcomeConnection || out.Outcome.unreachable() {
		out = p.Checker.Check(ctx, "http://"+string(d))
	}
	res.outcome = out.Outcome

	if out.Outcome != OutcomeResponded {
		log := p.Logger.Debug
		if out.Outcome == OutcomeOther {
			log = p.Logger.Warn
		}
		log("probe_dead",
			zap.String("domain", string(d)),
			zap.String("outcome", out.Outcome.String()),
			zap.String("reason", out.Message),
		)
		return res
	}

	res.result.Alive = true
	if p.Resolver == nil {
		return res
	}
	ip, err := p.Resolver.Resolve(ctx, string(d))
	if err != nil {
		p.Logger.Debug("probe_resolve_failed",
			zap.String("domain", string(d)),
			zap.String("class", DNSClass(err)),
			zap.Error(err),
		)
		return res
	}
	res.result.IP = ip
	return res
}

// IPs returns the deduplicated resolved addresses of results.
func IPs(results []domain.ProbeResult) []string {
	ips := make([]string, 0, len(results))
	for _, r := range results {
		ips = append(ips, r.IP)
	}
	return domain.UniqueStrings(ips)
}

// Domains returns one entry per alive result.
func Domains(results []domain.ProbeResult) []domain.Domain {
	out := make([]domain.Domain, 0, len(results))
	for _, r := range results {
		if r.Alive {
			out = append(out, r.Domain)
		}
	}
	return out
}
