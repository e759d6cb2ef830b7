package rules

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/kestrel-labs/facebridge/internal/domain"
	"github.com/kestrel-labs/facebridge/internal/realtime"
	"github.com/kestrel-labs/facebridge/pkg/logger"
)

// Cache persists the last-successful ruleset so a cold restart after a
// catastrophic load failure can still report loaded_from_cache=true with a
// real prior snapshot rather than an empty one.
type Cache interface {
	SaveRuleset(rules []domain.Rule) error
	LoadRuleset() ([]domain.Rule, bool, error)
}

// Repository produces validated Rulesets from a file path, retains the last
// successful one in memory, and announces file changes over the event bus.
type Repository struct {
	path      string
	logger    *slog.Logger
	publisher *realtime.EventPublisher
	cache     Cache

	mu           sync.RWMutex
	lastRuleset  *domain.Ruleset
	hasLastGood  bool
}

// NewRepository constructs a Repository for the given rules file path.
// cache may be nil, in which case catastrophic failures with no in-process
// prior success return an empty Ruleset.
func NewRepository(path string, logger *slog.Logger, publisher *realtime.EventPublisher, cache Cache) *Repository {
	return &Repository{
		path:      path,
		logger:    logger.With("component", "rules_repository"),
		publisher: publisher,
		cache:     cache,
	}
}

// Load reads and validates the configured rule file, never returning an
// error for expected failures (missing file, parse error, per-rule
// validation failure) — those are reported inside RulesetLoadReport.
func (r *Repository) Load() domain.RulesetLoadReport {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return r.fallback(fmt.Errorf("reading rules file: %w", err))
	}

	var raws []wireRule
	if err := json.Unmarshal(data, &raws); err != nil {
		return r.fallback(fmt.Errorf("parsing rules file: %w", err))
	}

	valid := make([]domain.Rule, 0, len(raws))
	invalid := make([]domain.InvalidRule, 0)
	seen := make(map[string]bool, len(raws))
	var warnings []string

	for _, raw := range raws {
		rule, invErr := compileRule(raw, seen)
		if invErr != nil {
			invalid = append(invalid, *invErr)
			continue
		}
		if rule.DefaultValue != raw.DefaultValue {
			warnings = append(warnings, fmt.Sprintf("%s: default value %g outside [%g, %g], clamped to %g",
				rule.Name, raw.DefaultValue, rule.Min, rule.Max, rule.DefaultValue))
		}
		seen[rule.Name] = true
		valid = append(valid, rule)
	}

	report := domain.RulesetLoadReport{
		ValidRules:      valid,
		InvalidRules:    invalid,
		LoadedFromCache: false,
	}
	for _, inv := range invalid {
		report.ValidationErrors = append(report.ValidationErrors, inv.String())
	}
	report.ValidationErrors = append(report.ValidationErrors, warnings...)

	ruleset := report.Ruleset()
	r.mu.Lock()
	r.lastRuleset = &ruleset
	r.hasLastGood = true
	r.mu.Unlock()

	if r.cache != nil {
		if err := r.cache.SaveRuleset(valid); err != nil {
			r.logger.Warn("failed to persist ruleset to durable cache", "error", err)
		}
	}

	if r.publisher != nil {
		if err := r.publisher.PublishRulesLoaded(len(valid), false, len(invalid)); err != nil {
			r.logger.Debug("failed to publish rules_loaded event", "error", err)
		}
	}

	r.logger.Info("rules loaded", "valid", len(valid), "invalid", len(invalid))
	return report
}

// fallback implements the §4.A caching policy for a catastrophic load
// failure: return the last in-process success if one exists, else fall
// through to the durable cache, else report an empty ruleset.
func (r *Repository) fallback(loadErr error) domain.RulesetLoadReport {
	r.mu.RLock()
	last := r.lastRuleset
	r.mu.RUnlock()

	if last != nil {
		r.logger.Warn("rules load failed, serving in-process last-good ruleset", "error", loadErr)
		return domain.RulesetLoadReport{
			ValidRules:      last.Rules,
			InvalidRules:    last.InvalidRules,
			LoadedFromCache: true,
			LoadError:       loadErr,
		}
	}

	if r.cache != nil {
		if rules, ok, err := r.cache.LoadRuleset(); err == nil && ok {
			r.logger.Warn("rules load failed, serving durable cached ruleset", "error", loadErr)
			if r.publisher != nil {
				_ = r.publisher.PublishRulesLoaded(len(rules), true, 0)
			}
			return domain.RulesetLoadReport{
				ValidRules:      rules,
				LoadedFromCache: true,
				LoadError:       loadErr,
			}
		}
	}

	logger.ErrorWithException(r.logger, "rules load failed, no prior ruleset available", loadErr)
	return domain.RulesetLoadReport{
		LoadedFromCache: false,
		LoadError:       loadErr,
	}
}
