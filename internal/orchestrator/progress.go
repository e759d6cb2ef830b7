package orchestrator

import "sync"

// StepStatus is one node of a Step's lifecycle.
type StepStatus string

const (
	StepPending    StepStatus = "Pending"
	StepInProgress StepStatus = "InProgress"
	StepCompleted  StepStatus = "Completed"
	StepFailed     StepStatus = "Failed"
)

// StepName identifies one of the fixed initialization steps, in the order
// spec.md §4.E declares them.
type StepName string

const (
	StepConsole       StepName = "Console"
	StepEngine        StepName = "Engine"
	StepWatchers      StepName = "Watchers"
	StepDesktopClient StepName = "DesktopClient"
	StepMobileClient  StepName = "MobileClient"
	StepParameterSync StepName = "ParameterSync"
	StepFinalSetup    StepName = "FinalSetup"
)

// initSteps is the declared, fixed order the progress model reports in,
// independent of which steps actually run concurrently underneath.
var initSteps = []StepName{
	StepConsole,
	StepEngine,
	StepWatchers,
	StepDesktopClient,
	StepMobileClient,
	StepParameterSync,
	StepFinalSetup,
}

// Step is one row of the published progress model.
type Step struct {
	Name   StepName
	Status StepStatus
	Error  string
}

// ProgressModel is the UI collaborator's view of startup: every step a
// Pending placeholder until it starts, regardless of the order in which
// steps actually complete underneath.
type ProgressModel struct {
	mu    sync.RWMutex
	steps map[StepName]*Step
	order []StepName
}

func newProgressModel() *ProgressModel {
	p := &ProgressModel{
		steps: make(map[StepName]*Step, len(initSteps)),
		order: initSteps,
	}
	for _, name := range initSteps {
		p.steps[name] = &Step{Name: name, Status: StepPending}
	}
	return p
}

func (p *ProgressModel) start(name StepName) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.steps[name]; ok {
		s.Status = StepInProgress
	}
}

func (p *ProgressModel) complete(name StepName) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.steps[name]; ok {
		s.Status = StepCompleted
		s.Error = ""
	}
}

func (p *ProgressModel) fail(name StepName, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.steps[name]; ok {
		s.Status = StepFailed
		if err != nil {
			s.Error = err.Error()
		}
	}
}

// Snapshot returns the steps in their declared order.
func (p *ProgressModel) Snapshot() []Step {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Step, 0, len(p.order))
	for _, name := range p.order {
		out = append(out, *p.steps[name])
	}
	return out
}

// run executes fn for a named step, recording start/complete/fail
// regardless of outcome. A failing step never aborts the caller: init
// continues in degraded mode per spec.md §4.E.
func (p *ProgressModel) run(name StepName, fn func() error) {
	p.start(name)
	if err := fn(); err != nil {
		p.fail(name, err)
		return
	}
	p.complete(name)
}
