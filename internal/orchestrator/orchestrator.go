// Package orchestrator owns the facebridge pipeline end to end: it drives
// the startup sequence, routes frames from the Mobile Client through the
// Transformation Engine to the Desktop Client, runs the recovery loop that
// reinitializes unhealthy services, and dispatches hot-reload notifications
// from the Rules Repository and Config Store.
package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kestrel-labs/facebridge/internal/domain"
	"github.com/kestrel-labs/facebridge/internal/metrics"
	"github.com/kestrel-labs/facebridge/internal/realtime"
)

// mobileClient is the subset of mobileclient.Client the Orchestrator drives.
type mobileClient interface {
	TryInitialize() bool
	Start(ctx context.Context)
	Frames() <-chan *domain.Frame
	Stats() domain.ServiceStats
}

// desktopClient is the subset of desktopclient.Client the Orchestrator drives.
type desktopClient interface {
	Run(ctx context.Context)
	SendFrame(ctx context.Context, frame domain.DesktopFrame) error
	Stats() domain.ServiceStats
	MarkConfigChanged()
}

// transformEngine is the subset of engine.Engine the Orchestrator drives.
type transformEngine interface {
	LoadRules() domain.RulesetLoadReport
	Transform(frame *domain.Frame) domain.DesktopFrame
	ParameterDefinitions() []domain.ParameterDefinition
	MarkConfigChanged()
	Stats() domain.ServiceStats
}

// fileWatcher is implemented by both the Rules Repository and the Config
// Store: each owns a single fsnotify watch and announces changes over the
// shared event bus. The Rules Repository's watcher only announces; the
// Config Store also re-parses its own document before announcing.
type fileWatcher interface {
	StartWatching(ctx context.Context) error
}

// Config bundles Orchestrator tuning parameters.
type Config struct {
	RecoveryTickInterval  time.Duration
	UnhealthyGracePeriod  time.Duration
	BackoffBase           time.Duration
	BackoffMax            time.Duration
	ShutdownTimeout       time.Duration
}

func (c Config) withDefaults() Config {
	if c.RecoveryTickInterval <= 0 {
		c.RecoveryTickInterval = 200 * time.Millisecond
	}
	if c.UnhealthyGracePeriod <= 0 {
		c.UnhealthyGracePeriod = 2 * time.Second
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = time.Second
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = 30 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = time.Second
	}
	return c
}

// Orchestrator is the single actor that owns every other component's
// lifecycle. It never shares mutable state directly with them: all
// cross-component communication is either a direct method call it
// initiates, or an event it reacts to off the shared bus.
type Orchestrator struct {
	cfg    Config
	logger *slog.Logger

	engine  transformEngine
	mobile  mobileClient
	desktop desktopClient

	rulesWatcher  fileWatcher
	configWatcher fileWatcher

	eventBus  *realtime.DefaultEventBus
	publisher *realtime.EventPublisher

	progress *ProgressModel

	retryMetrics *metrics.RetryMetrics

	mu             sync.Mutex
	framesDropped  int64
	mobileBackoff  *serviceBackoff
	desktopBackoff *serviceBackoff
	engineBackoff  *serviceBackoff
}

// New constructs an Orchestrator. rulesWatcher/configWatcher may be nil if
// hot-reload watching isn't configured.
func New(
	cfg Config,
	logger *slog.Logger,
	engine transformEngine,
	mobile mobileClient,
	desktop desktopClient,
	rulesWatcher, configWatcher fileWatcher,
	eventBus *realtime.DefaultEventBus,
	publisher *realtime.EventPublisher,
) *Orchestrator {
	cfg = cfg.withDefaults()
	return &Orchestrator{
		cfg:           cfg,
		logger:        logger.With("component", "orchestrator"),
		engine:        engine,
		mobile:        mobile,
		desktop:       desktop,
		rulesWatcher:  rulesWatcher,
		configWatcher: configWatcher,
		eventBus:      eventBus,
		publisher:     publisher,
		progress:      newProgressModel(),
		retryMetrics:  metrics.NewRetryMetrics(),
		mobileBackoff: newServiceBackoff(cfg.BackoffBase, cfg.BackoffMax),
		desktopBackoff: newServiceBackoff(cfg.BackoffBase, cfg.BackoffMax),
		engineBackoff: newServiceBackoff(cfg.BackoffBase, cfg.BackoffMax),
	}
}

// Progress returns the startup progress snapshot for the diagnostics surface.
func (o *Orchestrator) Progress() []Step {
	return o.progress.Snapshot()
}

// Run drives initialization, then frame routing and the recovery loop,
// until ctx is cancelled. It returns once both loops have stopped.
func (o *Orchestrator) Run(ctx context.Context) {
	o.initialize(ctx)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		o.routeFrames(ctx)
	}()
	go func() {
		defer wg.Done()
		o.recoveryLoop(ctx)
	}()
	wg.Wait()
}

// initialize runs the fixed Console/Engine/Watchers/DesktopClient/
// MobileClient/ParameterSync/FinalSetup sequence. Steps are reported in
// this declared order even though DesktopClient and MobileClient start
// concurrently underneath, since neither depends on the other's outcome.
func (o *Orchestrator) initialize(ctx context.Context) {
	o.progress.run(StepConsole, func() error {
		o.logger.Info("starting facebridge")
		return nil
	})

	o.progress.run(StepEngine, func() error {
		report := o.engine.LoadRules()
		return report.LoadError
	})

	o.progress.run(StepWatchers, func() error {
		if o.eventBus != nil {
			_ = o.eventBus.Subscribe(newHotReloadSubscriber(ctx, o))
		}
		if o.rulesWatcher != nil {
			if err := o.rulesWatcher.StartWatching(ctx); err != nil {
				return err
			}
		}
		if o.configWatcher != nil {
			if err := o.configWatcher.StartWatching(ctx); err != nil {
				return err
			}
		}
		return nil
	})

	// DesktopClient and MobileClient don't depend on each other's outcome,
	// so they start concurrently via errgroup; the progress model still
	// reports them in the spec's declared order regardless of which
	// finishes first.
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		o.progress.run(StepDesktopClient, func() error {
			go o.desktop.Run(ctx)
			return nil
		})
		return nil
	})
	g.Go(func() error {
		o.progress.run(StepMobileClient, func() error {
			if !o.mobile.TryInitialize() {
				return errMobileInitFailed
			}
			go o.mobile.Start(ctx)
			return nil
		})
		return nil
	})
	_ = g.Wait()

	o.progress.run(StepParameterSync, func() error {
		// Parameter registration happens inside the Desktop Client's own
		// Authenticating state once it reaches Connected; this step exists
		// in the progress model to give the UI a named milestone even
		// though the work is event-driven rather than orchestrator-driven.
		return nil
	})

	o.progress.run(StepFinalSetup, func() error {
		if o.publisher != nil {
			_ = o.publisher.PublishSystemNotification("info", "facebridge initialized")
		}
		return nil
	})
}

// routeFrames implements spec.md §4.E frame routing: decode -> transform ->
// send, sequentially, with no queueing. Because the Mobile Client hands
// frames over a capacity-1 channel with a non-blocking producer, a frame
// that arrives while this loop is still inside SendFrame is already
// dropped before it ever reaches here.
func (o *Orchestrator) routeFrames(ctx context.Context) {
	frames := o.mobile.Frames()
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			o.routeOne(ctx, frame)
		}
	}
}

func (o *Orchestrator) routeOne(ctx context.Context, frame *domain.Frame) {
	if !frame.FacePresent {
		return
	}

	desktopFrame := o.engine.Transform(frame)
	if len(desktopFrame.Parameters) == 0 {
		return
	}

	if o.desktop.Stats().Status != string(domain.DesktopConnected) {
		o.mu.Lock()
		o.framesDropped++
		o.mu.Unlock()
		return
	}

	if err := o.desktop.SendFrame(ctx, desktopFrame); err != nil {
		o.logger.Debug("send_frame failed", "error", err)
	}
}

// recoveryLoop polls each service's health at a fixed tick and reinitializes
// any service that has been unhealthy for at least UnhealthyGracePeriod,
// backing off exponentially between attempts per service.
func (o *Orchestrator) recoveryLoop(ctx context.Context) {
	ticker := time.NewTicker(o.cfg.RecoveryTickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.recoveryTick()
		}
	}
}

func (o *Orchestrator) recoveryTick() {
	now := time.Now()

	mobileStats := o.mobile.Stats()
	if mobileStats.IsHealthy {
		o.mobileBackoff.observeHealthy()
	} else if o.mobileBackoff.dueForAttempt(now, o.cfg.UnhealthyGracePeriod) {
		o.mobileBackoff.recordAttempt(now)
		o.retryMetrics.RecordBackoff("mobile_client_reinit", o.mobileBackoff.nextAttempt.Sub(now).Seconds())
		o.logger.Info("reinitializing mobile client")
		ok := o.mobile.TryInitialize()
		o.retryMetrics.RecordAttempt("mobile_client_reinit", outcomeLabel(ok), "", 0)
	}

	desktopStats := o.desktop.Stats()
	if desktopStats.IsHealthy {
		o.desktopBackoff.observeHealthy()
	}
	// The Desktop Client's own Run loop already re-drives
	// Discovering/Connecting on failure; the recovery loop's role for it is
	// purely observational health tracking for the diagnostics surface.

	engineStats := o.engine.Stats()
	if engineStats.IsHealthy {
		o.engineBackoff.observeHealthy()
	} else if o.engineBackoff.dueForAttempt(now, o.cfg.UnhealthyGracePeriod) {
		o.engineBackoff.recordAttempt(now)
		o.retryMetrics.RecordBackoff("engine_reload", o.engineBackoff.nextAttempt.Sub(now).Seconds())
		o.logger.Info("reloading rules after unhealthy engine")
		report := o.engine.LoadRules()
		o.retryMetrics.RecordAttempt("engine_reload", outcomeLabel(report.LoadError == nil), "", 0)
	}
}

func outcomeLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// onRulesChanged is invoked by hotReloadSubscriber when the Rules
// Repository's watcher observes a file change.
func (o *Orchestrator) onRulesChanged() {
	o.logger.Info("rules file changed, reloading")
	o.engine.LoadRules()
}

// onConfigChanged is invoked by hotReloadSubscriber when the Config
// Store's watcher observes a file change. Section-scoped reload is left to
// each component's own MarkConfigChanged/reread cycle; this just fans the
// notification out to the components whose live connections must be
// considered stale.
func (o *Orchestrator) onConfigChanged(data map[string]interface{}) {
	o.logger.Info("config file changed, notifying components", "data", data)
	o.engine.MarkConfigChanged()
	o.desktop.MarkConfigChanged()
}

// FramesDropped reports the number of transformed frames discarded because
// the Desktop Client wasn't Connected.
func (o *Orchestrator) FramesDropped() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.framesDropped
}

type orchestratorError string

func (e orchestratorError) Error() string { return string(e) }

const errMobileInitFailed = orchestratorError("mobile client failed to initialize")
