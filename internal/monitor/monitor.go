// Package monitor tracks which candidate endpoint of each dependent service
// is currently reachable.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/signrelay/signrelay/internal/core"
	"github.com/signrelay/signrelay/internal/metrics"
	"github.com/signrelay/signrelay/internal/observability"
)

const (
	DefaultProbeTimeout = 3 * time.Second
	DefaultInterval     = 15 * time.Second
)

// Well-known service names.
const (
	ServicePerception = "perception"
	ServiceUI         = "ui"
	ServiceGenerative = "generative"
)

// Service describes one logical dependency and how to probe it.
type Service struct {
	Name       string
	Candidates []string
	Probe      Probe
	// Fallback decides reachability when Probe errors. Optional.
	Fallback Probe
}

// Publisher receives every refreshed snapshot.
type Publisher func(core.StatusSnapshot)

// Config tunes the monitor.
type Config struct {
	ProbeTimeout time.Duration
	Interval     time.Duration
}

// Monitor owns the ServiceEndpoint records.
type Monitor struct {
	cfg      Config
	services []Service
	publish  Publisher
	log      *logging.Logger

	mu        sync.RWMutex
	endpoints map[string]*core.ServiceEndpoint

	wake     chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once
	started  bool
	wg       sync.WaitGroup
}

// New returns a monitor. publish may be nil.
func New(cfg Config, services []Service, publish Publisher) *Monitor {
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	m := &Monitor{
		cfg:       cfg,
		services:  services,
		publish:   publish,
		log:       observability.Logger(),
		endpoints: make(map[string]*core.ServiceEndpoint, len(services)),
		wake:      make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
	}
	for _, svc := range services {
		m.endpoints[svc.Name] = &core.ServiceEndpoint{
			Name:       svc.Name,
			Candidates: append([]string(nil), svc.Candidates...),
		}
	}
	return m
}

// Refresh probes every service and returns the resulting snapshot.
func (m *Monitor) Refresh(ctx context.Context) core.StatusSnapshot {
	g, gctx := errgroup.WithContext(ctx)
	for _, svc := range m.services {
		g.Go(func() error {
			m.refreshService(gctx, svc)
			return nil
		})
	}
	_ = g.Wait()

	snapshot := m.Snapshot()
	if m.publish != nil {
		m.publish(snapshot)
	}
	return snapshot
}

func (m *Monitor) refreshService(ctx context.Context, svc Service) {
	var (
		selected string
		lastErr  error
	)
	for _, candidate := range svc.Candidates {
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}
		start := time.Now()
		err := m.probeCandidate(ctx, svc, candidate)
		metrics.RecordProbe(svc.Name, err == nil, time.Since(start))
		if err == nil {
			selected = candidate
			break
		}
		m.log.Debug("Candidate unreachable",
			zap.String("service", svc.Name),
			zap.String("candidate", candidate),
			zap.Error(err))
		lastErr = err
	}
	if len(svc.Candidates) == 0 {
		lastErr = errors.New("no candidates configured")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ep := m.endpoints[svc.Name]
	wasReachable := ep.Reachable
	previous := ep.Selected
	ep.LastCheckedAt = time.Now().UTC()
	if selected != "" {
		ep.Selected = selected
		ep.LastGood = selected
		ep.Reachable = true
		ep.LastError = ""
	} else {
		ep.Selected = ""
		ep.Reachable = false
		if lastErr != nil {
			ep.LastError = lastErr.Error()
		}
	}
	metrics.SetDependencyUp(svc.Name, ep.Reachable)

	switch {
	case ep.Reachable && previous != ep.Selected:
		m.log.Info("Service endpoint bound",
			zap.String("service", svc.Name),
			zap.String("selected", ep.Selected))
	case !ep.Reachable && wasReachable:
		m.log.Warn("Service unreachable",
			zap.String("service", svc.Name),
			zap.String("last_good", ep.LastGood),
			zap.String("error", ep.LastError))
	}
}

func (m *Monitor) probeCandidate(ctx context.Context, svc Service, candidate string) error {
	if svc.Probe == nil {
		return fmt.Errorf("service %s has no probe", svc.Name)
	}
	err := m.runProbe(ctx, svc.Probe, candidate)
	if err == nil || svc.Fallback == nil {
		return err
	}
	if fbErr := m.runProbe(ctx, svc.Fallback, candidate); fbErr != nil {
		return fmt.Errorf("%w (fallback: %v)", err, fbErr)
	}
	return nil
}

func (m *Monitor) runProbe(ctx context.Context, p Probe, candidate string) (err error) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("probe panic: %v", r)
		}
	}()
	return p.Probe(ctx, candidate)
}

// Snapshot returns the last known reachability of every service.
func (m *Monitor) Snapshot() core.StatusSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(core.StatusSnapshot, len(m.endpoints))
	for name, ep := range m.endpoints {
		out[name] = ep.Reachable
	}
	return out
}

// Endpoint returns a copy of the named endpoint record.
func (m *Monitor) Endpoint(name string) (core.ServiceEndpoint, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ep, ok := m.endpoints[name]
	if !ok {
		return core.ServiceEndpoint{}, false
	}
	out := *ep
	out.Candidates = append([]string(nil), ep.Candidates...)
	return out, true
}

// Endpoints returns copies of every endpoint in registration order.
func (m *Monitor) Endpoints() []core.ServiceEndpoint {
	out := make([]core.ServiceEndpoint, 0, len(m.services))
	for _, svc := range m.services {
		if ep, ok := m.Endpoint(svc.Name); ok {
			out = append(out, ep)
		}
	}
	return out
}

// Resolve returns the base URL to use for a service: the selected candidate,
// else the last good one, else the first configured candidate.
func (m *Monitor) Resolve(name string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ep, ok := m.endpoints[name]
	if !ok {
		return ""
	}
	switch {
	case ep.Selected != "":
		return ep.Selected
	case ep.LastGood != "":
		return ep.LastGood
	case len(ep.Candidates) > 0:
		return ep.Candidates[0]
	}
	return ""
}

// Resolver returns a closure over Resolve for name.
func (m *Monitor) Resolver(name string) func() string {
	return func() string { return m.Resolve(name) }
}

// Start runs an initial refresh and then the periodic loop.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	m.Refresh(ctx)

	m.wg.Add(1)
	go m.loop()
}

// TriggerRefresh wakes the loop without blocking.
func (m *Monitor) TriggerRefresh() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Monitor) loop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-m.stopCh
		cancel()
	}()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
		case <-m.wake:
		}
		m.Refresh(ctx)
	}
}

// Shutdown stops the loop and waits for the current refresh. Safe to call
// more than once.
func (m *Monitor) Shutdown() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
	})
	m.wg.Wait()
}

// UnreachableError reports a dependency that is down. Health endpoints
// treat it as degraded rather than unhealthy.
type UnreachableError struct {
	Service string
	Detail  string
}

func (e *UnreachableError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s unreachable", e.Service)
	}
	return fmt.Sprintf("%s unreachable: %s", e.Service, e.Detail)
}

// Degraded marks the error as non-fatal for aggregate health.
func (e *UnreachableError) Degraded() bool { return true }

// Checker adapts the monitor to the health manager for one service. It reads
// the last snapshot and does not probe.
type Checker struct {
	Monitor *Monitor
	Service string
}

// CheckHealth implements handlers.HealthChecker.
func (c Checker) CheckHealth(_ context.Context) error {
	ep, ok := c.Monitor.Endpoint(c.Service)
	if !ok {
		return &UnreachableError{Service: c.Service, Detail: "not monitored"}
	}
	if !ep.Reachable {
		return &UnreachableError{Service: c.Service, Detail: ep.LastError}
	}
	return nil
}
