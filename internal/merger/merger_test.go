package merger

import (
	"context"
	"sync"
	"testing"
	"time"

	"edgecored/internal/configresolver"
	"edgecored/internal/jsonvalue"
	"edgecored/internal/model"
)

// fakeController simulates ServiceController without spawning real
// processes: Start immediately transitions to RUNNING unless the
// component's name is in brokenNames.
type fakeController struct {
	mu              sync.Mutex
	states          map[string]model.ServiceState
	brokenNames     map[string]bool
	restartOnNames  map[string]bool
	stopped         []string
	started         []string
	bootstrapped    []string
}

func newFakeController(broken ...string) *fakeController {
	brokenSet := map[string]bool{}
	for _, n := range broken {
		brokenSet[n] = true
	}
	return &fakeController{states: map[string]model.ServiceState{}, brokenNames: brokenSet}
}

func (f *fakeController) Start(ctx context.Context, comp *configresolver.ResolvedComponentConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, comp.Name)
	if f.brokenNames[comp.Name] {
		f.states[comp.Name] = model.StateBroken
	} else {
		f.states[comp.Name] = model.StateRunning
	}
	return nil
}

func (f *fakeController) Stop(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, name)
	f.states[name] = model.StateFinished
	return nil
}

func (f *fakeController) State(name string) model.ServiceState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.states[name]
}

func (f *fakeController) RunBootstrap(ctx context.Context, comp *configresolver.ResolvedComponentConfig) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bootstrapped = append(f.bootstrapped, comp.Name)
	return f.restartOnNames[comp.Name], nil
}

// fakeArtifactStore never fails and doesn't touch disk.
type fakeArtifactStore struct {
	mu      sync.Mutex
	pruned  []model.ComponentIdentifier
	running map[string]bool
}

func newFakeArtifactStore() *fakeArtifactStore {
	return &fakeArtifactStore{running: map[string]bool{}}
}

func (f *fakeArtifactStore) EnsureAvailable(ctx context.Context, id model.ComponentIdentifier) (*model.ComponentRecipe, error) {
	return &model.ComponentRecipe{Identifier: id}, nil
}
func (f *fakeArtifactStore) MarkRunning(id model.ComponentIdentifier) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running[id.String()] = true
}
func (f *fakeArtifactStore) UnmarkRunning(id model.ComponentIdentifier) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.running, id.String())
}
func (f *fakeArtifactStore) Prune(reachable map[model.ComponentIdentifier]struct{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id := range reachable {
		f.pruned = append(f.pruned, id)
	}
	return nil
}

// memSnapshotStore is an in-memory SnapshotStore for tests.
type memSnapshotStore struct {
	mu   sync.Mutex
	data map[string]Snapshot
}

func newMemSnapshotStore() *memSnapshotStore {
	return &memSnapshotStore{data: map[string]Snapshot{}}
}
func (m *memSnapshotStore) SaveSnapshot(id string, snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[id] = snap
	return nil
}
func (m *memSnapshotStore) LoadSnapshot(id string) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[id], nil
}
func (m *memSnapshotStore) DeleteSnapshot(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, id)
	return nil
}

func comp(name, version string, deps map[string]model.DependencyKind) *configresolver.ResolvedComponentConfig {
	return &configresolver.ResolvedComponentConfig{
		Name:          name,
		Version:       version,
		Dependencies:  deps,
		Configuration: jsonvalue.NewObject(),
	}
}

func TestMerge_AddRootsSuccess(t *testing.T) {
	current := configresolver.ResolvedConfig{}
	target := configresolver.ResolvedConfig{
		"RedSignal":    comp("RedSignal", "1.0.0", map[string]model.DependencyKind{}),
		"YellowSignal": comp("YellowSignal", "1.0.0", map[string]model.DependencyKind{}),
	}

	controller := newFakeController()
	m := &Merger{
		Controller:   controller,
		Store:        newFakeArtifactStore(),
		Snapshots:    newMemSnapshotStore(),
		Broker:       NewBroker(),
		PollInterval: time.Millisecond,
	}
	doc := &model.DeploymentDocument{FailureHandlingPolicy: model.PolicyRollback}
	result := m.Merge(context.Background(), "dep-1", current, target, doc, 5*time.Second)
	if result.Status != model.StatusSuccessful {
		t.Fatalf("expected SUCCESSFUL, got %s (%v)", result.Status, result.Err)
	}
	if len(controller.started) != 2 {
		t.Fatalf("expected 2 starts, got %v", controller.started)
	}
}

func TestMerge_RollbackOnBrokenDependency(t *testing.T) {
	current := configresolver.ResolvedConfig{
		"RedSignal":    comp("RedSignal", "1.0.0", map[string]model.DependencyKind{}),
		"YellowSignal": comp("YellowSignal", "1.0.0", map[string]model.DependencyKind{}),
	}
	target := configresolver.ResolvedConfig{
		"RedSignal":       comp("RedSignal", "1.0.0", map[string]model.DependencyKind{}),
		"BreakingService": comp("BreakingService", "1.0.0", map[string]model.DependencyKind{}),
	}

	controller := newFakeController("BreakingService")
	for _, name := range []string{"RedSignal", "YellowSignal"} {
		controller.states[name] = model.StateRunning
	}
	snapshots := newMemSnapshotStore()
	m := &Merger{
		Controller:   controller,
		Store:        newFakeArtifactStore(),
		Snapshots:    snapshots,
		Broker:       NewBroker(),
		PollInterval: time.Millisecond,
	}
	doc := &model.DeploymentDocument{FailureHandlingPolicy: model.PolicyRollback}
	result := m.Merge(context.Background(), "dep-2", current, target, doc, 5*time.Second)
	if result.Status != model.StatusFailedRollbackComplete {
		t.Fatalf("expected FAILED_ROLLBACK_COMPLETE, got %s (%v)", result.Status, result.Err)
	}
	if controller.State("RedSignal") != model.StateRunning || controller.State("YellowSignal") != model.StateRunning {
		t.Fatalf("expected RedSignal and YellowSignal running after rollback")
	}
}

func TestMerge_DoNothingLeavesPartialState(t *testing.T) {
	current := configresolver.ResolvedConfig{}
	target := configresolver.ResolvedConfig{
		"BreakingService": comp("BreakingService", "1.0.0", map[string]model.DependencyKind{}),
	}
	controller := newFakeController("BreakingService")
	m := &Merger{
		Controller:   controller,
		Store:        newFakeArtifactStore(),
		Snapshots:    newMemSnapshotStore(),
		Broker:       NewBroker(),
		PollInterval: time.Millisecond,
	}
	doc := &model.DeploymentDocument{FailureHandlingPolicy: model.PolicyDoNothing}
	result := m.Merge(context.Background(), "dep-3", current, target, doc, 5*time.Second)
	if result.Status != model.StatusFailedRollbackNotReq {
		t.Fatalf("expected FAILED_ROLLBACK_NOT_REQUESTED, got %s (%v)", result.Status, result.Err)
	}
}

// TestMerge_RollbackStopsAddedRunningComponent exercises the scenario
// comment 2 of the review called out as untested: an added component
// reaches RUNNING before a later component (in the same deployment) goes
// BROKEN. Rollback must stop the already-running added component, not
// just the one that failed, or two versions/extra components end up alive
// after FAILED_ROLLBACK_COMPLETE.
func TestMerge_RollbackStopsAddedRunningComponent(t *testing.T) {
	current := configresolver.ResolvedConfig{}
	target := configresolver.ResolvedConfig{
		"First":  comp("First", "1.0.0", nil),
		"Second": comp("Second", "1.0.0", map[string]model.DependencyKind{"First": model.DependencyHard}),
	}

	controller := newFakeController("Second")
	m := &Merger{
		Controller:   controller,
		Store:        newFakeArtifactStore(),
		Snapshots:    newMemSnapshotStore(),
		Broker:       NewBroker(),
		PollInterval: time.Millisecond,
	}
	doc := &model.DeploymentDocument{FailureHandlingPolicy: model.PolicyRollback}
	result := m.Merge(context.Background(), "dep-4", current, target, doc, 5*time.Second)
	if result.Status != model.StatusFailedRollbackComplete {
		t.Fatalf("expected FAILED_ROLLBACK_COMPLETE, got %s (%v)", result.Status, result.Err)
	}

	stoppedFirst := false
	for _, name := range controller.stopped {
		if name == "First" {
			stoppedFirst = true
		}
	}
	if !stoppedFirst {
		t.Fatalf("expected rollback to stop First (reached RUNNING before Second broke), stopped=%v", controller.stopped)
	}
}

// TestMerge_BootstrapRequestsRestartPausesDeployment exercises spec.md
// §4.4.1's bootstrap-requiring transition: when a component's bootstrap
// stage requests a restart, Merge must persist a BootstrapRecord and
// return IN_PROGRESS/BOOTSTRAP instead of treating it as a failure.
func TestMerge_BootstrapRequestsRestartPausesDeployment(t *testing.T) {
	current := configresolver.ResolvedConfig{
		"Kernel": comp("Kernel", "1.0.0", nil),
	}
	current["Kernel"].Lifecycle = map[model.LifecycleStageName]model.LifecycleStage{
		model.StageBootstrap: {Script: "old-bootstrap.sh"},
	}
	target := configresolver.ResolvedConfig{
		"Kernel": comp("Kernel", "2.0.0", nil),
	}
	target["Kernel"].Lifecycle = map[model.LifecycleStageName]model.LifecycleStage{
		model.StageBootstrap: {Script: "new-bootstrap.sh"},
	}

	controller := newFakeController()
	controller.restartOnNames = map[string]bool{"Kernel": true}
	bootstrapDir := t.TempDir()
	m := &Merger{
		Controller:   controller,
		Store:        newFakeArtifactStore(),
		Snapshots:    newMemSnapshotStore(),
		Broker:       NewBroker(),
		Bootstrap:    &BootstrapStore{Dir: bootstrapDir},
		PollInterval: time.Millisecond,
	}
	doc := &model.DeploymentDocument{DeploymentID: "dep-5", FailureHandlingPolicy: model.PolicyRollback}
	result := m.Merge(context.Background(), "dep-5", current, target, doc, 5*time.Second)
	if result.Status != model.StatusInProgress || result.Stage != model.StageBootstrapPhase {
		t.Fatalf("expected IN_PROGRESS/BOOTSTRAP, got %s/%s (%v)", result.Status, result.Stage, result.Err)
	}
	if len(controller.bootstrapped) != 1 || controller.bootstrapped[0] != "Kernel" {
		t.Fatalf("expected Kernel's bootstrap stage to run, got %v", controller.bootstrapped)
	}
	if len(controller.started) != 0 {
		t.Fatalf("expected Kernel's run stage not to start before resume, got %v", controller.started)
	}

	rec, err := m.Bootstrap.Load("dep-5")
	if err != nil {
		t.Fatalf("load bootstrap record: %v", err)
	}
	if rec.Stage != model.StageBootstrapPhase || len(rec.PendingComponents) != 1 || rec.PendingComponents[0] != "Kernel" {
		t.Fatalf("unexpected bootstrap record: %+v", rec)
	}

	resumed := m.ResumeKernelActivation(context.Background(), rec, 5*time.Second)
	if resumed.Status != model.StatusSuccessful {
		t.Fatalf("expected resume to succeed, got %s (%v)", resumed.Status, resumed.Err)
	}
	if len(controller.started) != 1 || controller.started[0] != "Kernel" {
		t.Fatalf("expected Kernel started on resume, got %v", controller.started)
	}
	if _, err := m.Bootstrap.Load("dep-5"); err == nil {
		t.Fatalf("expected bootstrap record to be cleared after successful resume")
	}
}

func TestComputePlan_AddRemoveUpdateUnchanged(t *testing.T) {
	current := configresolver.ResolvedConfig{
		"A": comp("A", "1.0.0", nil),
		"B": comp("B", "1.0.0", nil),
	}
	target := configresolver.ResolvedConfig{
		"A": comp("A", "1.0.0", nil),
		"B": comp("B", "2.0.0", nil),
		"C": comp("C", "1.0.0", nil),
	}
	plan := ComputePlan(current, target)
	if len(plan.Added) != 1 || plan.Added[0] != "C" {
		t.Fatalf("expected C added, got %v", plan.Added)
	}
	if len(plan.Updated) != 1 || plan.Updated[0] != "B" {
		t.Fatalf("expected B updated, got %v", plan.Updated)
	}
	if len(plan.Unchanged) != 1 || plan.Unchanged[0] != "A" {
		t.Fatalf("expected A unchanged, got %v", plan.Unchanged)
	}
}

func TestTopoOrder_DependencyBeforeDependent(t *testing.T) {
	cfg := configresolver.ResolvedConfig{
		"App":    comp("App", "1.0.0", map[string]model.DependencyKind{"Broker": model.DependencyHard}),
		"Broker": comp("Broker", "1.0.0", nil),
	}
	order := topoOrder(cfg, []string{"App", "Broker"})
	if order[0] != "Broker" || order[1] != "App" {
		t.Fatalf("expected [Broker App], got %v", order)
	}
	rev := reverseOf(order)
	if rev[0] != "App" || rev[1] != "Broker" {
		t.Fatalf("expected reverse [App Broker], got %v", rev)
	}
}
