package deployment

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	gover "github.com/hashicorp/go-version"

	"edgecored/internal/configresolver"
	"edgecored/internal/depresolver"
	"edgecored/internal/merger"
	"edgecored/internal/model"
)

func TestDirectoryManager_CreateIdempotent(t *testing.T) {
	root := t.TempDir()
	dm := NewDirectoryManager(root)
	dir1, err := dm.CreateIfNotExists("dep-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	dir2, err := dm.CreateIfNotExists("dep-1")
	if err != nil {
		t.Fatalf("create again: %v", err)
	}
	if dir1 != dir2 {
		t.Fatalf("expected idempotent directory, got %q then %q", dir1, dir2)
	}
	for _, sub := range []string{dm.SnapshotDir("dep-1"), dm.BootstrapDir("dep-1"), dm.ArtifactsStagingDir("dep-1")} {
		if _, err := os.Stat(sub); err != nil {
			t.Errorf("expected %s to exist: %v", sub, err)
		}
	}
}

func TestLocalOverrideRequest_ToDeploymentDocument_MergesCurrentRoots(t *testing.T) {
	req := LocalOverrideRequest{
		GroupName:                  "fleet-a",
		RootComponentVersionsToAdd: map[string]string{"RedSignal": "1.0.0"},
		RootComponentsToRemove:     []string{"OldApp"},
	}
	doc, err := req.ToDeploymentDocument(map[string]string{"OldApp": "1.0.0", "YellowSignal": "2.0.0"})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	names := map[string]string{}
	for _, r := range doc.RootComponents {
		names[r.Name] = r.Constraint
	}
	if _, ok := names["OldApp"]; ok {
		t.Errorf("expected OldApp removed, got %v", names)
	}
	if names["RedSignal"] != "1.0.0" {
		t.Errorf("expected RedSignal added, got %v", names)
	}
	if names["YellowSignal"] != "2.0.0" {
		t.Errorf("expected YellowSignal carried over, got %v", names)
	}
}

// fakeSource is a minimal depresolver.Source backed by an in-memory recipe
// table, for the orchestrator integration test below.
type fakeSource struct {
	recipes map[string]*model.ComponentRecipe
}

func (f *fakeSource) LocalVersions(name string) ([]*gover.Version, error) {
	var out []*gover.Version
	for _, r := range f.recipes {
		if r.Identifier.Name == name {
			out = append(out, r.Identifier.Version)
		}
	}
	return out, nil
}

func (f *fakeSource) LoadOrFetch(ctx context.Context, id model.ComponentIdentifier) (*model.ComponentRecipe, error) {
	if r, ok := f.recipes[id.String()]; ok {
		return r, nil
	}
	return nil, &depresolver.UnresolvedError{Name: id.Name}
}

type fakeController struct {
	mu     sync.Mutex
	states map[string]model.ServiceState
}

func (c *fakeController) Start(ctx context.Context, comp *configresolver.ResolvedComponentConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.states == nil {
		c.states = map[string]model.ServiceState{}
	}
	c.states[comp.Name] = model.StateRunning
	return nil
}
func (c *fakeController) Stop(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states[name] = model.StateFinished
	return nil
}
func (c *fakeController) State(name string) model.ServiceState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.states[name]
}
func (c *fakeController) RunBootstrap(ctx context.Context, comp *configresolver.ResolvedComponentConfig) (bool, error) {
	return false, nil
}

type fakeArtifactStore struct{}

func (fakeArtifactStore) EnsureAvailable(ctx context.Context, id model.ComponentIdentifier) (*model.ComponentRecipe, error) {
	return &model.ComponentRecipe{Identifier: id}, nil
}
func (fakeArtifactStore) MarkRunning(model.ComponentIdentifier)   {}
func (fakeArtifactStore) UnmarkRunning(model.ComponentIdentifier) {}
func (fakeArtifactStore) Prune(map[model.ComponentIdentifier]struct{}) error { return nil }

func TestOrchestrator_SuccessfulDeployment(t *testing.T) {
	id, _ := model.NewComponentIdentifier("RedSignal", "1.0.0")
	recipe := &model.ComponentRecipe{Identifier: id, Type: model.ComponentTypeGeneric}
	source := &fakeSource{recipes: map[string]*model.ComponentRecipe{id.String(): recipe}}
	resolver := depresolver.New(source, nil)

	root := t.TempDir()
	dirs := NewDirectoryManager(root)
	m := &merger.Merger{
		Controller:   &fakeController{},
		Store:        fakeArtifactStore{},
		Snapshots:    &merger.FileSnapshotStore{Dir: root},
		Broker:       merger.NewBroker(),
		PollInterval: time.Millisecond,
	}

	orch, err := New(resolver, fakeArtifactStore{}, m, dirs, nil, &GroupRootsStore{Dir: root})
	if err != nil {
		t.Fatalf("construct orchestrator: %v", err)
	}
	go orch.Run(context.Background())

	doc := &model.DeploymentDocument{
		GroupName:             "fleet-a",
		RootComponents:        []model.RootComponentRequirement{{Name: "RedSignal", Constraint: "1.0.0"}},
		FailureHandlingPolicy: model.PolicyRollback,
	}
	depID := orch.Submit(doc)

	deadline := time.After(2 * time.Second)
	for {
		result, ok := orch.GetStatus(depID)
		if ok && result.Status != model.StatusQueued && result.Status != model.StatusInProgress {
			if result.Status != model.StatusSuccessful {
				t.Fatalf("expected SUCCESSFUL, got %s (%v)", result.Status, result.Err)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatalf("deployment did not complete in time")
		case <-time.After(time.Millisecond):
		}
	}
}
