// Package sentence keeps the shared sentence state fresh from push and poll
// sources and publishes every applied transition.
package sentence

import (
	"context"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/signrelay/signrelay/internal/core"
	"github.com/signrelay/signrelay/internal/metrics"
	"github.com/signrelay/signrelay/internal/observability"
)

const (
	DefaultPollInterval   = time.Second
	DefaultQuietThreshold = 5 * time.Second
	DefaultStaleThreshold = 10 * time.Second
	DefaultFetchTimeout   = 3 * time.Second
)

// Fetcher reads and clears the upstream sentence.
type Fetcher interface {
	FetchSentence(ctx context.Context) ([]string, error)
	Clear(ctx context.Context) error
}

// Publisher receives each applied state. It runs inside the state lock and
// must not call back into the synchronizer.
type Publisher func(core.SentenceState)

// Config tunes the poll loop.
type Config struct {
	PollInterval   time.Duration
	QuietThreshold time.Duration
	StaleThreshold time.Duration
	FetchTimeout   time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.QuietThreshold <= 0 {
		c.QuietThreshold = DefaultQuietThreshold
	}
	if c.StaleThreshold <= 0 {
		c.StaleThreshold = DefaultStaleThreshold
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = DefaultFetchTimeout
	}
	return c
}

// Option customizes a Synchronizer.
type Option func(*Synchronizer)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Synchronizer) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger overrides the logger.
func WithLogger(log *logging.Logger) Option {
	return func(s *Synchronizer) {
		if log != nil {
			s.log = log
		}
	}
}

// Synchronizer owns the single SentenceState.
type Synchronizer struct {
	cfg     Config
	fetcher Fetcher
	publish Publisher
	now     func() time.Time
	log     *logging.Logger

	mu    sync.Mutex
	state core.SentenceState

	stopCh   chan struct{}
	stopOnce sync.Once
	startMu  sync.Mutex
	started  bool
	stopped  bool
	wg       sync.WaitGroup
}

// New returns a synchronizer holding an empty sentence. fetcher and publish
// may be nil.
func New(cfg Config, fetcher Fetcher, publish Publisher, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		cfg:     cfg.withDefaults(),
		fetcher: fetcher,
		publish: publish,
		now:     time.Now,
		log:     observability.Logger(),
		stopCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.state = core.SentenceState{Tokens: []string{}, UpdatedAt: s.now().UTC(), Source: core.SourceClear}
	return s
}

// Current returns a copy of the sentence.
func (s *Synchronizer) Current() core.SentenceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// ReceivePush replaces the sentence unconditionally and publishes it.
func (s *Synchronizer) ReceivePush(tokens []string) core.SentenceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyLocked(tokens, core.SourcePush)
}

// Clear empties the sentence, publishes it, then asks the perception service
// to drop its buffer. Upstream failures are logged only.
func (s *Synchronizer) Clear(ctx context.Context) core.SentenceState {
	s.mu.Lock()
	state := s.applyLocked(nil, core.SourceClear)
	s.mu.Unlock()

	if s.fetcher != nil {
		cctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
		defer cancel()
		if err := s.fetcher.Clear(cctx); err != nil {
			s.log.Warn("Upstream sentence clear failed", zap.Error(err))
		}
	}
	return state
}

// applyLocked replaces the state and publishes it. Caller holds s.mu.
func (s *Synchronizer) applyLocked(tokens []string, source core.Source) core.SentenceState {
	s.state = core.SentenceState{
		Tokens:    core.CopyTokens(tokens),
		UpdatedAt: s.now().UTC(),
		Source:    source,
		Version:   s.state.Version + 1,
	}
	metrics.RecordSentenceUpdate(string(source))
	out := s.state.Clone()
	if s.publish != nil {
		s.publish(out.Clone())
	}
	return out
}

// Start launches the poll loop. Calling Start after Shutdown does nothing.
func (s *Synchronizer) Start() {
	s.startMu.Lock()
	defer s.startMu.Unlock()
	if s.started || s.stopped {
		return
	}
	s.started = true
	s.wg.Add(1)
	go s.loop()
}

// Shutdown stops the poll loop and waits for the current cycle. Safe to
// call more than once.
func (s *Synchronizer) Shutdown() {
	s.startMu.Lock()
	s.stopped = true
	s.startMu.Unlock()

	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	s.wg.Wait()
}

func (s *Synchronizer) loop() {
	defer s.wg.Done()

	timer := time.NewTimer(s.cfg.PollInterval)
	defer timer.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-timer.C:
		}
		s.PollOnce(context.Background())
		timer.Reset(s.cfg.PollInterval)
	}
}

// PollOnce runs a single poll cycle: fetch when quiet, rebroadcast when stale.
func (s *Synchronizer) PollOnce(ctx context.Context) {
	s.mu.Lock()
	quiet := s.now().Sub(s.state.UpdatedAt) > s.cfg.QuietThreshold
	version := s.state.Version
	s.mu.Unlock()

	if quiet && s.fetcher != nil {
		s.pollUpstream(ctx, version)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.now().Sub(s.state.UpdatedAt) > s.cfg.StaleThreshold {
		s.applyLocked(s.state.Tokens, core.SourcePeriodic)
	}
}

func (s *Synchronizer) pollUpstream(ctx context.Context, version uint64) {
	fctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	tokens, err := s.fetcher.FetchSentence(fctx)
	cancel()
	metrics.RecordUpstreamFetch(err == nil)
	if err != nil {
		s.log.Debug("Sentence poll failed", zap.Error(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Version != version {
		// A push or clear landed while the fetch was in flight.
		return
	}
	if core.EqualTokens(s.state.Tokens, tokens) {
		return
	}
	s.log.Debug("Sentence changed upstream", zap.Strings("tokens", tokens))
	s.applyLocked(tokens, core.SourcePoll)
}
