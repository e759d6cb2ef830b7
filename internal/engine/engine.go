// Package engine implements the Transformation Engine: it compiles the
// active Ruleset against each incoming Frame, applying interpolation and
// tracking extremums, and produces the DesktopFrame sent to the Desktop
// Client.
package engine

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kestrel-labs/facebridge/internal/domain"
	"github.com/kestrel-labs/facebridge/internal/realtime"
)

const (
	defaultMaxEvaluationIterations = 10
	defaultLUTCacheSize             = 512
)

// RulesLoader is the subset of the Rules Repository the engine depends on.
type RulesLoader interface {
	Load() domain.RulesetLoadReport
}

// Engine converts Frames into DesktopFrames using the currently active
// Ruleset. It is owned by exactly one goroutine (the Orchestrator); reads
// of the active ruleset by other goroutines go through Stats()/
// ParameterDefinitions(), which copy rather than share mutable state.
type Engine struct {
	logger    *slog.Logger
	publisher *realtime.EventPublisher
	repo      RulesLoader

	maxEvaluationIterations int
	bezierCache             *lru.Cache[string, float64]

	mu          sync.RWMutex
	ruleset     domain.Ruleset
	ruleNames   map[string]bool
	extremums   map[string]*domain.Extremum
	status      domain.EngineStatus
	started     time.Time

	configChanged atomic.Bool
	hotReloadSuccesses atomic.Int64
	failedTransformations atomic.Int64
	fallbackCount atomic.Int64
	lastError atomic.Value // string
}

// Config bundles Engine construction parameters.
type Config struct {
	MaxEvaluationIterations int
	LUTCacheSize            int
}

// New constructs an Engine backed by repo for rule loading.
func New(repo RulesLoader, logger *slog.Logger, publisher *realtime.EventPublisher, cfg Config) (*Engine, error) {
	maxIter := cfg.MaxEvaluationIterations
	if maxIter <= 0 {
		maxIter = defaultMaxEvaluationIterations
	}
	lutSize := cfg.LUTCacheSize
	if lutSize <= 0 {
		lutSize = defaultLUTCacheSize
	}

	cache, err := newBezierCache(lutSize)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		logger:                  logger.With("component", "transformation_engine"),
		publisher:               publisher,
		repo:                    repo,
		maxEvaluationIterations: maxIter,
		bezierCache:             cache,
		extremums:               make(map[string]*domain.Extremum),
		status:                  domain.EngineInitializing,
		started:                 time.Now(),
	}
	e.lastError.Store("")
	return e, nil
}

// LoadRules delegates to the Rules Repository. Every call swaps in the
// Ruleset the report carries (fresh, cached, or empty) and resets per-rule
// extremums. On an outright load error (whether or not the repository could
// still serve a cached ruleset), the engine goes unhealthy with
// ConfigErrorCached — serving stale rules from cache is not the same as a
// successful reload. Only a clean load increments hot_reload_successes,
// exactly once.
func (e *Engine) LoadRules() domain.RulesetLoadReport {
	report := e.repo.Load()

	if report.LoadError != nil {
		e.lastError.Store(report.LoadError.Error())
	}

	ruleset := report.Ruleset()
	names := make(map[string]bool, len(ruleset.Rules))
	for _, r := range ruleset.Rules {
		names[r.Name] = true
	}

	e.mu.Lock()
	e.ruleset = ruleset
	e.ruleNames = names
	e.extremums = make(map[string]*domain.Extremum, len(ruleset.Rules))
	for _, r := range ruleset.Rules {
		e.extremums[r.Name] = &domain.Extremum{}
	}
	e.mu.Unlock()

	if report.LoadError != nil {
		e.setStatus(domain.EngineConfigErrorCached)
		e.logger.Warn("rules reload failed, serving cached ruleset", "error", report.LoadError, "valid", len(ruleset.Rules), "invalid", len(ruleset.InvalidRules))
		return report
	}

	// hot_reload_successes increments exactly once per successful
	// load_rules() call — the lone write site, guarded by a regression
	// test, since an earlier revision of this pipeline double-counted it
	// from both the load path and the swap path.
	e.hotReloadSuccesses.Add(1)
	e.configChanged.Store(false)

	switch {
	case len(ruleset.Rules) == 0 && len(ruleset.InvalidRules) == 0:
		e.setStatus(domain.EngineNoRulesLoaded)
	case len(ruleset.Rules) == 0:
		e.setStatus(domain.EngineNoValidRules)
	case len(ruleset.InvalidRules) > 0:
		e.setStatus(domain.EngineRulesPartialValid)
	default:
		e.setStatus(domain.EngineReady)
	}

	e.logger.Info("rules reloaded", "valid", len(ruleset.Rules), "invalid", len(ruleset.InvalidRules), "from_cache", report.LoadedFromCache)
	return report
}

func (e *Engine) setStatus(status domain.EngineStatus) {
	e.mu.Lock()
	e.status = status
	e.mu.Unlock()
}

// MarkConfigChanged is called by the Orchestrator when a config-watch event
// observes that the engine's section differs from the one in use. The flag
// is cleared by the next successful LoadRules.
func (e *Engine) MarkConfigChanged() {
	e.configChanged.Store(true)
}

// ParameterDefinitions derives the remote parameter registration list from
// the active Ruleset, consumed by the Desktop Client.
func (e *Engine) ParameterDefinitions() []domain.ParameterDefinition {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ruleset.ParameterDefinitions()
}
