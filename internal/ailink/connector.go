package ailink

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/signrelay/signrelay/internal/ailink/driver"
	"github.com/signrelay/signrelay/internal/ailink/prompt"
	"github.com/signrelay/signrelay/internal/core"
	"github.com/signrelay/signrelay/internal/core/engine"
	"github.com/signrelay/signrelay/internal/metrics"
	"github.com/signrelay/signrelay/internal/observability"
)

const (
	heartbeatInput     = "ping"
	defaultProbeTokens = 10
)

// ErrCooldown is returned by Probe while quota cooldown is active.
var ErrCooldown = errors.New("generative backend in quota cooldown")

// Connector keeps a warm connection to a generative backend and turns every
// request into a short, sanitized reply. Public methods never return provider
// errors to the caller.
type Connector struct {
	cfg       Config
	drv       driver.Driver
	reply     *prompt.Prompt
	heartbeat *prompt.Prompt
	backoff   engine.Backoff

	temperature    float64
	maxTokens      int
	heartbeatLimit int

	log   *logging.Logger
	clock func() time.Time
	sleep func(context.Context, time.Duration) error

	mu       sync.Mutex
	state    core.ConnectionState
	cooldown engine.Cooldown

	wake      chan struct{}
	stopCh    chan struct{}
	lifecycle context.Context
	cancel    context.CancelFunc
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// Option customizes a Connector.
type Option func(*Connector)

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(c *Connector) { c.clock = clock }
}

// WithSleeper overrides how retry waits are performed.
func WithSleeper(sleep func(context.Context, time.Duration) error) Option {
	return func(c *Connector) { c.sleep = sleep }
}

// WithLogger sets the logger.
func WithLogger(log *logging.Logger) Option {
	return func(c *Connector) { c.log = log }
}

// WithPrompts supplies the prompt registry instead of loading it from config.
func WithPrompts(reg prompt.Registry) Option {
	return func(c *Connector) {
		c.reply, _ = reg.Get(c.cfg.PromptSlug)
		c.heartbeat, _ = reg.Get(prompt.SlugHeartbeat)
	}
}

// NewConnector binds drv and starts the heartbeat loop.
func NewConnector(cfg Config, drv driver.Driver, opts ...Option) (*Connector, error) {
	if drv == nil {
		return nil, fmt.Errorf("driver is required")
	}
	cfg = cfg.withDefaults()

	c := &Connector{
		cfg:     cfg,
		drv:     drv,
		backoff: engine.Backoff{Base: cfg.BaseBackoff, Max: cfg.MaxBackoff},
		clock:   func() time.Time { return time.Now().UTC() },
		sleep:   engine.Sleep,
		wake:    make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = observability.Logger()
	}

	if c.reply == nil {
		reg, err := prompt.LoadRegistry(cfg.PromptsDir)
		if err != nil {
			return nil, fmt.Errorf("load prompts: %w", err)
		}
		if c.reply, err = reg.Get(cfg.PromptSlug); err != nil {
			return nil, err
		}
		c.heartbeat, _ = reg.Get(prompt.SlugHeartbeat)
	}
	if c.heartbeat == nil {
		c.heartbeat = c.reply
	}

	model, err := resolveModel(cfg, c.reply)
	if err != nil {
		return nil, err
	}

	c.temperature = cfg.Temperature
	if c.temperature == 0 {
		if hint, ok := c.reply.FloatHint("temperature"); ok {
			c.temperature = hint
		}
	}
	c.maxTokens = cfg.MaxOutputTokens
	if c.maxTokens <= 0 {
		if hint, ok := c.reply.IntHint("max_output_tokens"); ok && hint > 0 {
			c.maxTokens = hint
		} else {
			c.maxTokens = DefaultConfig().MaxOutputTokens
		}
	}
	c.heartbeatLimit = defaultProbeTokens
	if hint, ok := c.heartbeat.IntHint("max_output_tokens"); ok && hint > 0 {
		c.heartbeatLimit = hint
	}

	c.state = core.ConnectionState{SelectedModel: model, Running: true}
	c.lifecycle, c.cancel = context.WithCancel(context.Background())

	c.wg.Add(1)
	go c.heartbeatLoop()

	c.log.Info("Generative connector started",
		zap.String("provider", drv.Name()),
		zap.String("model", model),
		zap.Duration("heartbeat_interval", cfg.HeartbeatInterval))
	return c, nil
}

// GetResponse returns a short reply for input. It never fails: empty input,
// cooldown and exhausted retries all produce canned replies.
func (c *Connector) GetResponse(ctx context.Context, input string) string {
	start := time.Now()
	input = strings.TrimSpace(input)
	if input == "" {
		metrics.RecordConnectorRequest("empty_input", time.Since(start))
		return PromptForInput
	}

	if remaining, cooling := c.cooldownRemaining(); cooling {
		c.log.Debug("Quota cooldown active, using fallback reply", zap.Duration("remaining", remaining))
		metrics.RecordConnectorRequest("cooldown", time.Since(start))
		return FallbackFor(input)
	}

	attempts := c.cfg.MaxAttempts
	for attempt := 0; attempt < attempts; attempt++ {
		model := c.Model()
		resp, err := c.complete(ctx, c.reply, model, input, c.maxTokens)
		if err == nil {
			c.markSuccess()
			metrics.RecordConnectorAttempt(model, KindNone.String())
			metrics.RecordConnectorRequest("success", time.Since(start))
			return Sanitize(resp.Text(), c.cfg.MaxWords)
		}

		kind := Classify(err)
		metrics.RecordConnectorAttempt(model, kind.String())
		last := attempt == attempts-1
		c.log.Warn("Generative request failed",
			zap.String("model", model),
			zap.String("kind", kind.String()),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", attempts),
			zap.Error(err))

		var wait time.Duration
		switch kind {
		case KindQuota:
			retry, hinted := c.armCooldown(err, "request")
			if last {
				metrics.RecordConnectorRequest("fallback", time.Since(start))
				return FallbackFor(input)
			}
			if hinted {
				wait = engine.Cap(retry, c.cfg.MaxBackoff)
			} else {
				wait = c.backoff.Delay(attempt)
			}
		case KindAuth:
			c.log.Error("Generative backend rejected credentials", zap.String("model", model))
			metrics.RecordConnectorRequest("auth", time.Since(start))
			return ContinueFallback
		case KindNotFound:
			c.rediscover(ctx, model)
			wait = c.backoff.Delay(attempt)
		default:
			wait = c.backoff.Delay(attempt)
		}
		if last {
			break
		}
		if err := c.wait(ctx, wait); err != nil {
			c.log.Debug("Retry wait interrupted", zap.Error(err))
			break
		}
	}

	metrics.RecordConnectorRequest("continue", time.Since(start))
	return ContinueFallback
}

// Respond is GetResponse under the orchestrator's Responder name.
func (c *Connector) Respond(ctx context.Context, input string) string {
	return c.GetResponse(ctx, input)
}

// Sanitize applies the configured word limit.
func (c *Connector) Sanitize(raw string) string {
	return Sanitize(raw, c.cfg.MaxWords)
}

// CheckStatus reports whether the backend answers right now. A missing model
// triggers rediscovery and one more probe with the new binding.
func (c *Connector) CheckStatus(ctx context.Context) bool {
	if _, cooling := c.cooldownRemaining(); cooling {
		return false
	}

	model := c.Model()
	err := c.probe(ctx, model)
	if err == nil {
		return true
	}

	switch Classify(err) {
	case KindQuota:
		c.armCooldown(err, "status")
		return false
	case KindNotFound:
		next, ok := c.rediscover(ctx, model)
		if !ok {
			return false
		}
		if err := c.probe(ctx, next); err != nil {
			if Classify(err) == KindQuota {
				c.armCooldown(err, "status")
			}
			c.log.Warn("Rebound model did not answer", zap.String("model", next), zap.Error(err))
			return false
		}
		return true
	default:
		c.log.Warn("Status probe failed", zap.String("model", model), zap.Error(err))
		return false
	}
}

// Probe reports backend health for the dependency monitor. A recent success
// counts as healthy without spending a request.
func (c *Connector) Probe(ctx context.Context, _ string) error {
	state := c.State()
	now := c.now()
	if state.InCooldown(now) {
		return ErrCooldown
	}
	if state.Running && !state.LastSuccessAt.IsZero() && now.Sub(state.LastSuccessAt) <= c.cfg.StaleThreshold {
		return nil
	}
	if !c.CheckStatus(ctx) {
		return fmt.Errorf("generative backend not responding on model %s", c.Model())
	}
	return nil
}

// TriggerImmediateCheck wakes the heartbeat loop. Extra triggers while one is
// pending are dropped.
func (c *Connector) TriggerImmediateCheck() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// State returns a copy of the connection state.
func (c *Connector) State() core.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Model returns the currently bound model.
func (c *Connector) Model() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.SelectedModel
}

// Provider returns the driver name.
func (c *Connector) Provider() string {
	return c.drv.Name()
}

// Shutdown stops the heartbeat loop and interrupts pending retry waits. An
// in-flight provider call is allowed to finish. Safe to call repeatedly.
func (c *Connector) Shutdown() {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.state.Running = false
		c.mu.Unlock()

		close(c.stopCh)
		c.cancel()
		c.wg.Wait()
		c.log.Info("Generative connector stopped")
	})
}

func (c *Connector) heartbeatLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.runHeartbeat(false)
		case <-c.wake:
			c.runHeartbeat(true)
		}
	}
}

// runHeartbeat probes the backend when the last success is stale. A forced
// run skips the staleness gate but never the cooldown.
func (c *Connector) runHeartbeat(forced bool) {
	state := c.State()
	now := c.now()
	if state.InCooldown(now) {
		c.log.Debug("Heartbeat skipped during quota cooldown", zap.Time("retry_after", state.RetryAfter))
		return
	}
	if !forced && !state.LastSuccessAt.IsZero() && now.Sub(state.LastSuccessAt) <= c.cfg.StaleThreshold {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.RequestTimeout)
	defer cancel()

	ok := c.CheckStatus(ctx)
	metrics.RecordHeartbeat(ok)
	if ok {
		c.log.Debug("Heartbeat succeeded", zap.String("model", c.Model()))
	}
}

func (c *Connector) complete(ctx context.Context, p *prompt.Prompt, model, input string, maxTokens int) (*driver.Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	temperature := c.temperature
	return c.drv.Complete(ctx, &driver.Request{
		Model:       model,
		System:      p.Config.SystemTemplate,
		Messages:    driver.UserText(p.RenderUser(input)),
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
		PromptSlug:  p.Config.Slug,
	})
}

func (c *Connector) probe(ctx context.Context, model string) error {
	if _, err := c.complete(ctx, c.heartbeat, model, heartbeatInput, c.heartbeatLimit); err != nil {
		return err
	}
	c.markSuccess()
	return nil
}

// rediscover lists models and rebinds away from failed.
func (c *Connector) rediscover(ctx context.Context, failed string) (string, bool) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	preferred := uniqueModels(c.reply.PreferredModels(), c.cfg.FallbackModels)

	var next string
	var ok bool
	if c.drv.Capabilities().SupportsModelListing {
		models, err := c.drv.ListModels(ctx)
		if err != nil {
			if Classify(err) == KindQuota {
				c.armCooldown(err, "discovery")
			}
			c.log.Warn("Model listing failed", zap.Error(err))
		} else {
			next, ok = pickModel(models, preferred, failed)
		}
	}
	if !ok {
		next, ok = nextFallback(preferred, failed)
	}
	if !ok {
		c.log.Error("No replacement model available", zap.String("failed_model", failed))
		return "", false
	}

	c.mu.Lock()
	c.state.SelectedModel = next
	c.mu.Unlock()

	metrics.RecordModelRebind(next)
	c.log.Info("Rebound generative model", zap.String("from", failed), zap.String("to", next))
	return next, true
}

func uniqueModels(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range lists {
		for _, m := range list {
			name := normalizeModel(m)
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

// nextFallback returns the entry after failed in the list, or the first one
// when failed is not listed.
func nextFallback(list []string, failed string) (string, bool) {
	failed = normalizeModel(failed)
	for i, m := range list {
		if normalizeModel(m) == failed {
			if i+1 < len(list) {
				return normalizeModel(list[i+1]), true
			}
			return "", false
		}
	}
	for _, m := range list {
		if name := normalizeModel(m); name != "" {
			return name, true
		}
	}
	return "", false
}

func (c *Connector) cooldownRemaining() (time.Duration, bool) {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.QuotaExceeded {
		return 0, false
	}
	if !c.state.InCooldown(now) {
		c.state.QuotaExceeded = false
		c.state.RetryAfter = time.Time{}
		c.cooldown.Reset()
		c.log.Info("Quota cooldown expired")
		return 0, false
	}
	return c.cooldown.Remaining(now), true
}

// armCooldown starts the quota window from the provider hint or the default.
// It reports whether a hint was found.
func (c *Connector) armCooldown(err error, source string) (time.Duration, bool) {
	retry, hinted := retryAfterFor(err)
	if !hinted {
		retry = c.cfg.DefaultCooldown
	}

	now := c.now()
	c.mu.Lock()
	until := c.cooldown.Arm(now, retry)
	c.state.QuotaExceeded = true
	c.state.RetryAfter = until
	c.mu.Unlock()

	metrics.RecordCooldown(source)
	c.log.Warn("Quota exceeded, cooling down",
		zap.String("source", source),
		zap.Duration("retry_after", retry),
		zap.Bool("provider_hint", hinted),
		zap.Time("until", until))
	return retry, hinted
}

func retryAfterFor(err error) (time.Duration, bool) {
	var perr *driver.ProviderError
	if errors.As(err, &perr) && perr != nil && perr.RetryAfter > 0 {
		return perr.RetryAfter, true
	}
	return engine.ExtractQuotaRetryAfter(retryHintText(err))
}

func (c *Connector) markSuccess() {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.LastSuccessAt = now
	c.state.QuotaExceeded = false
	c.state.RetryAfter = time.Time{}
	c.cooldown.Reset()
}

// wait sleeps for d unless ctx ends or the connector shuts down.
func (c *Connector) wait(ctx context.Context, d time.Duration) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(c.lifecycle, cancel)
	defer stop()
	return c.sleep(ctx, d)
}

func (c *Connector) now() time.Time {
	return c.clock()
}
