package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-labs/facebridge/internal/domain"
)

type fakeMobile struct {
	mu          sync.Mutex
	frames      chan *domain.Frame
	healthy     bool
	initCalls   int
	initSucceed bool
}

func newFakeMobile() *fakeMobile {
	return &fakeMobile{frames: make(chan *domain.Frame, 1), initSucceed: true}
}

func (f *fakeMobile) TryInitialize() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initCalls++
	return f.initSucceed
}

func (f *fakeMobile) Start(ctx context.Context) { <-ctx.Done() }

func (f *fakeMobile) Frames() <-chan *domain.Frame { return f.frames }

func (f *fakeMobile) Stats() domain.ServiceStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return domain.ServiceStats{Name: "mobile_client", IsHealthy: f.healthy}
}

type fakeDesktop struct {
	mu            sync.Mutex
	status        domain.DesktopStatus
	sendErr       error
	sendCalls     int
	configChanged bool
}

func (f *fakeDesktop) Run(ctx context.Context) { <-ctx.Done() }

func (f *fakeDesktop) SendFrame(ctx context.Context, frame domain.DesktopFrame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendCalls++
	return f.sendErr
}

func (f *fakeDesktop) Stats() domain.ServiceStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return domain.ServiceStats{Name: "desktop_client", Status: string(f.status), IsHealthy: f.status == domain.DesktopConnected}
}

func (f *fakeDesktop) MarkConfigChanged() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configChanged = true
}

type fakeEngine struct {
	mu            sync.Mutex
	params        []domain.ParameterDefinition
	loadCalls     int
	configChanged bool
	healthy       bool
}

func (f *fakeEngine) LoadRules() domain.RulesetLoadReport {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loadCalls++
	return domain.RulesetLoadReport{}
}

func (f *fakeEngine) Transform(frame *domain.Frame) domain.DesktopFrame {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.params) == 0 {
		return domain.EmptyDesktopFrame()
	}
	params := make([]domain.Parameter, 0, len(f.params))
	for _, d := range f.params {
		params = append(params, domain.Parameter{Name: d.Name, Value: d.Default, Weight: 1})
	}
	return domain.DesktopFrame{FacePresent: true, Parameters: params}
}

func (f *fakeEngine) ParameterDefinitions() []domain.ParameterDefinition {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.params
}

func (f *fakeEngine) MarkConfigChanged() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configChanged = true
}

func (f *fakeEngine) Stats() domain.ServiceStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return domain.ServiceStats{Name: "transformation_engine", IsHealthy: f.healthy}
}

func newTestOrchestrator(mobile *fakeMobile, desktop *fakeDesktop, engine *fakeEngine) *Orchestrator {
	return New(Config{RecoveryTickInterval: 5 * time.Millisecond, UnhealthyGracePeriod: 10 * time.Millisecond},
		slog.Default(), engine, mobile, desktop, nil, nil, nil, nil)
}

func TestOrchestrator_RouteOne_DropsFrameWithoutFace(t *testing.T) {
	mobile := newFakeMobile()
	desktop := &fakeDesktop{status: domain.DesktopConnected}
	engine := &fakeEngine{params: []domain.ParameterDefinition{{Name: "BrowRaise", Min: 0, Max: 1}}}
	o := newTestOrchestrator(mobile, desktop, engine)

	o.routeOne(context.Background(), &domain.Frame{FacePresent: false})
	assert.Equal(t, 0, desktop.sendCalls)
}

func TestOrchestrator_RouteOne_DropsWhenDesktopNotConnected(t *testing.T) {
	mobile := newFakeMobile()
	desktop := &fakeDesktop{status: domain.DesktopDisconnected}
	engine := &fakeEngine{params: []domain.ParameterDefinition{{Name: "BrowRaise", Min: 0, Max: 1}}}
	o := newTestOrchestrator(mobile, desktop, engine)

	o.routeOne(context.Background(), &domain.Frame{FacePresent: true})
	assert.Equal(t, 0, desktop.sendCalls)
	assert.Equal(t, int64(1), o.FramesDropped())
}

func TestOrchestrator_RouteOne_SendsWhenConnectedAndParametersPresent(t *testing.T) {
	mobile := newFakeMobile()
	desktop := &fakeDesktop{status: domain.DesktopConnected}
	engine := &fakeEngine{params: []domain.ParameterDefinition{{Name: "BrowRaise", Min: 0, Max: 1}}}
	o := newTestOrchestrator(mobile, desktop, engine)

	o.routeOne(context.Background(), &domain.Frame{FacePresent: true})
	assert.Equal(t, 1, desktop.sendCalls)
	assert.Equal(t, int64(0), o.FramesDropped())
}

func TestOrchestrator_RecoveryTick_ReinitializesUnhealthyMobileAfterGrace(t *testing.T) {
	mobile := newFakeMobile()
	mobile.healthy = false
	desktop := &fakeDesktop{status: domain.DesktopConnected}
	engine := &fakeEngine{healthy: true}
	o := newTestOrchestrator(mobile, desktop, engine)

	o.recoveryTick() // first tick only starts the grace period
	assert.Equal(t, 0, mobile.initCalls)

	time.Sleep(15 * time.Millisecond)
	o.recoveryTick()
	assert.Equal(t, 1, mobile.initCalls)
}

func TestOrchestrator_RecoveryTick_SkipsHealthyServices(t *testing.T) {
	mobile := newFakeMobile()
	mobile.healthy = true
	desktop := &fakeDesktop{status: domain.DesktopConnected}
	engine := &fakeEngine{healthy: true}
	o := newTestOrchestrator(mobile, desktop, engine)

	o.recoveryTick()
	time.Sleep(15 * time.Millisecond)
	o.recoveryTick()
	assert.Equal(t, 0, mobile.initCalls)
}

func TestOrchestrator_OnRulesChanged_CallsLoadRules(t *testing.T) {
	mobile := newFakeMobile()
	desktop := &fakeDesktop{}
	engine := &fakeEngine{}
	o := newTestOrchestrator(mobile, desktop, engine)

	o.onRulesChanged()
	assert.Equal(t, 1, engine.loadCalls)
}

func TestOrchestrator_OnConfigChanged_MarksEngineAndDesktop(t *testing.T) {
	mobile := newFakeMobile()
	desktop := &fakeDesktop{}
	engine := &fakeEngine{}
	o := newTestOrchestrator(mobile, desktop, engine)

	o.onConfigChanged(map[string]interface{}{"version": "2"})
	assert.True(t, engine.configChanged)
	assert.True(t, desktop.configChanged)
}

func TestOrchestrator_Progress_StartsAllStepsPending(t *testing.T) {
	mobile := newFakeMobile()
	desktop := &fakeDesktop{}
	engine := &fakeEngine{}
	o := newTestOrchestrator(mobile, desktop, engine)

	steps := o.Progress()
	require.Len(t, steps, len(initSteps))
	for _, s := range steps {
		assert.Equal(t, StepPending, s.Status)
	}
}

func TestOrchestrator_Initialize_MarksStepsCompleted(t *testing.T) {
	mobile := newFakeMobile()
	desktop := &fakeDesktop{}
	engine := &fakeEngine{}
	o := newTestOrchestrator(mobile, desktop, engine)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	o.initialize(ctx)

	steps := o.Progress()
	for _, s := range steps {
		assert.Equal(t, StepCompleted, s.Status, "step %s", s.Name)
	}
	assert.Equal(t, 1, engine.loadCalls)
	assert.Equal(t, 1, mobile.initCalls)
}
