package engine

import (
	"time"

	"github.com/kestrel-labs/facebridge/internal/domain"
)

// Stats returns a cheap, read-only snapshot suitable for UI polling at up
// to 10 Hz. is_healthy is Ready or RulesPartiallyValid and not configChanged.
func (e *Engine) Stats() domain.ServiceStats {
	e.mu.RLock()
	status := e.status
	e.mu.RUnlock()

	healthy := (status == domain.EngineReady || status == domain.EngineRulesPartialValid) && !e.configChanged.Load()

	return domain.ServiceStats{
		Name:      "transformation_engine",
		Status:    string(status),
		IsHealthy: healthy,
		Uptime:    time.Since(e.started),
		Counters: map[string]int64{
			"hot_reload_successes":   e.hotReloadSuccesses.Load(),
			"failed_transformations": e.failedTransformations.Load(),
			"interpolation_fallbacks": e.fallbackCount.Load(),
		},
		LastError: e.lastError.Load().(string),
	}
}
