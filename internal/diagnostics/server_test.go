package diagnostics

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-labs/facebridge/internal/domain"
	"github.com/kestrel-labs/facebridge/internal/orchestrator"
)

func newTestServer() *Server {
	return NewServer(":0", slog.Default(), func() []orchestrator.Step {
		return []orchestrator.Step{{Name: orchestrator.StepEngine, Status: orchestrator.StepCompleted}}
	})
}

func TestStatsHandler_ReturnsRegisteredComponentStats(t *testing.T) {
	s := newTestServer()
	s.RegisterComponent("mobile_client", func() domain.ServiceStats {
		return domain.ServiceStats{Name: "mobile_client", IsHealthy: true}
	})

	req := httptest.NewRequest(http.MethodGet, "/stats/mobile_client", nil)
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got domain.ServiceStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "mobile_client", got.Name)
	assert.True(t, got.IsHealthy)
}

func TestStatsHandler_UnknownComponentReturns404(t *testing.T) {
	s := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/stats/nonexistent", nil)
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProgressHandler_ReturnsProgressSnapshot(t *testing.T) {
	s := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/progress", nil)
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var steps []orchestrator.Step
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &steps))
	require.Len(t, steps, 1)
	assert.Equal(t, orchestrator.StepCompleted, steps[0].Status)
}

func TestHealthzHandler_AllHealthyReturns200(t *testing.T) {
	s := newTestServer()
	s.RegisterComponent("mobile_client", func() domain.ServiceStats {
		return domain.ServiceStats{IsHealthy: true}
	})
	s.RegisterComponent("desktop_client", func() domain.ServiceStats {
		return domain.ServiceStats{IsHealthy: true}
	})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthzHandler_OneUnhealthyReturns503(t *testing.T) {
	s := newTestServer()
	s.RegisterComponent("mobile_client", func() domain.ServiceStats {
		return domain.ServiceStats{IsHealthy: true}
	})
	s.RegisterComponent("desktop_client", func() domain.ServiceStats {
		return domain.ServiceStats{IsHealthy: false}
	})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
