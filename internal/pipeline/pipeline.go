// Package pipeline wires candidate listing, probing, snapshot storage, change
// detection and alerting into one daily run.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hamed0406/subwatch/internal/candidate"
	"github.com/hamed0406/subwatch/internal/domain"
	"github.com/hamed0406/subwatch/internal/probe"
	"github.com/hamed0406/subwatch/internal/repo"
)

type Prober interface {
	ProbeAll(ctx context.Context, domains []domain.Domain) ([]domain.ProbeResult, error)
}

type Detector interface {
	Detect(ctx context.Context, day time.Time) (*domain.ChangeEvent, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, ev domain.ChangeEvent) error
}

// Report summarises one run.
type Report struct {
	RunID      string          `json:"run_id"`
	Day        string          `json:"day"`
	Candidates int             `json:"candidates"`
	Alive      int             `json:"alive"`
	IPs        int             `json:"ips"`
	New        []domain.Domain `json:"new"`
	AlertError string          `json:"alert_error,omitempty"`
}

type Pipeline struct {
	Logger     *zap.Logger
	Source     candidate.Source
	Prober     Prober
	Store      repo.SnapshotStore
	Detector   Detector
	Dispatcher Dispatcher
	Now        func() time.Time

	// runs are serial; a second trigger waits for the first
	mu sync.Mutex
}

func New(log *zap.Logger, src candidate.Source, p Prober, store repo.SnapshotStore, det Detector, disp Dispatcher) *Pipeline {
	return &Pipeline{
		Logger:     log,
		Source:     src,
		Prober:     p,
		Store:      store,
		Detector:   det,
		Dispatcher: disp,
		Now:        time.Now,
	}
}

func (p *Pipeline) today() time.Time { return domain.Day(p.Now()) }

// Run probes today's candidates, stores the snapshot and alerts on new hosts.
func (p *Pipeline) Run(ctx context.Context) error {
	_, err := p.Execute(ctx)
	return err
}

// Execute is Run with a report of what happened.
func (p *Pipeline) Execute(ctx context.Context) (Report, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// one day for both stages, even if probing runs past midnight
	day := p.today()
	rep := Report{RunID: uuid.NewString(), Day: domain.DateKey(day)}
	log := p.Logger.With(zap.String("run_id", rep.RunID))
	start := time.Now()

	if err := p.collect(ctx, log, day, &rep); err != nil {
		log.Error("run_failed", zap.String("stage", "collect"), zap.Error(err))
		return rep, err
	}
	if err := p.compare(ctx, log, day, &rep); err != nil {
		log.Error("run_failed", zap.String("stage", "compare"), zap.Error(err))
		return rep, err
	}

	log.Info("run_done",
		zap.String("day", rep.Day),
		zap.Int("alive", rep.Alive),
		zap.Int("new", len(rep.New)),
		zap.Duration("took", time.Since(start)),
	)
	return rep, nil
}

// Collect runs only the probe and store stage.
func (p *Pipeline) Collect(ctx context.Context) (Report, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	day := p.today()
	rep := Report{RunID: uuid.NewString(), Day: domain.DateKey(day)}
	err := p.collect(ctx, p.Logger.With(zap.String("run_id", rep.RunID)), day, &rep)
	return rep, err
}

// Compare runs only the diff and alert stage against what is already stored.
func (p *Pipeline) Compare(ctx context.Context) (Report, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	day := p.today()
	rep := Report{RunID: uuid.NewString(), Day: domain.DateKey(day)}
	err := p.compare(ctx, p.Logger.With(zap.String("run_id", rep.RunID)), day, &rep)
	return rep, err
}

func (p *Pipeline) collect(ctx context.Context, log *zap.Logger, day time.Time, rep *Report) error {
	cands, err := p.Source.List(ctx)
	if err != nil {
		return fmt.Errorf("list candidates: %w", err)
	}
	rep.Candidates = len(cands)
	log.Info("candidates_listed", zap.Int("count", len(cands)))

	results, err := p.Prober.ProbeAll(ctx, cands)
	if err != nil {
		return fmt.Errorf("probe: %w", err)
	}

	alive := probe.Domains(results)
	ips := probe.IPs(results)
	if err := p.Store.Write(ctx, day, alive, ips); err != nil {
		return fmt.Errorf("write snapshot %s: %w", domain.DateKey(day), err)
	}
	rep.Alive, rep.IPs = len(alive), len(ips)
	log.Info("snapshot_written",
		zap.String("day", domain.DateKey(day)),
		zap.Int("domains", len(alive)),
		zap.Int("ips", len(ips)),
	)
	return nil
}

// compare never fails on alert delivery; the snapshot is already durable.
func (p *Pipeline) compare(ctx context.Context, log *zap.Logger, day time.Time, rep *Report) error {
	ev, err := p.Detector.Detect(ctx, day)
	if err != nil {
		return fmt.Errorf("detect changes: %w", err)
	}
	if ev == nil {
		return nil
	}
	rep.New = ev.Domains
	if p.Dispatcher == nil {
		log.Warn("alert_skipped_no_dispatcher", zap.Int("new", len(ev.Domains)))
		return nil
	}
	if err := p.Dispatcher.Dispatch(ctx, *ev); err != nil {
		rep.AlertError = err.Error()
		log.Warn("alert_dispatch_failed", zap.Error(err))
	}
	return nil
}
