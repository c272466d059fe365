package deployment

import (
	"context"
	"fmt"
	"sync"
	"time"

	gover "github.com/hashicorp/go-version"
	"github.com/google/uuid"

	"edgecored/internal/configresolver"
	"edgecored/internal/depresolver"
	"edgecored/internal/jsonvalue"
	"edgecored/internal/logger"
	"edgecored/internal/merger"
	"edgecored/internal/metrics"
	"edgecored/internal/model"
)

// Result is a deployment's outcome, returned to callers of
// GetLocalDeploymentStatus / ListLocalDeployments (spec.md §6).
type Result struct {
	DeploymentID string
	GroupName    string
	Status       model.DeploymentStatus
	SubmittedAt  time.Time
	CompletedAt  time.Time
	Err          error
}

// Orchestrator is the Deployment Task Orchestrator (spec.md §4.5): a
// single-writer serializer over deployment tasks from any producer (cloud
// job queue or Local IPC), run one at a time through the full §4.1-§4.4
// pipeline. Grounded on spec.md §4.5/§5's "single logical deployment lane"
// requirement; no teacher file has an equivalent multi-producer serialized
// task queue, so the worker-loop-over-a-channel shape follows the same
// idiom the teacher uses for its own background goroutines (e.g.
// services/server_manager.go's `go func(){ ... }()` loop).
type Orchestrator struct {
	Resolver   *depresolver.Resolver
	Store      merger.ArtifactStore
	Merger     *merger.Merger
	Dirs       *DirectoryManager
	Paths      configresolver.PathProvider
	GroupRoots *GroupRootsStore

	KernelRootPath               string
	BuiltinAutoStartDependencies []string
	DefaultDeadline              time.Duration

	mu            sync.Mutex
	groupToRoots  model.GroupToRootComponents
	currentConfig configresolver.ResolvedConfig
	results       map[string]*Result
	history       []*Result

	tasks chan *model.DeploymentDocument
}

// New constructs an Orchestrator. groupRoots may be nil to run without
// durable group-to-roots persistence (tests); production wiring always
// supplies one so a restart doesn't lose every group's root-component
// association (spec.md §3, §4.5 step 4).
func New(resolver *depresolver.Resolver, artifactStore merger.ArtifactStore, lifecycleMerger *merger.Merger, dirs *DirectoryManager, paths configresolver.PathProvider, groupRoots *GroupRootsStore) (*Orchestrator, error) {
	o := &Orchestrator{
		Resolver:        resolver,
		Store:           artifactStore,
		Merger:          lifecycleMerger,
		Dirs:            dirs,
		Paths:           paths,
		GroupRoots:      groupRoots,
		DefaultDeadline: 5 * time.Minute,
		groupToRoots:    model.GroupToRootComponents{},
		currentConfig:   configresolver.ResolvedConfig{},
		results:         map[string]*Result{},
		tasks:           make(chan *model.DeploymentDocument, 64),
	}
	if groupRoots != nil {
		loaded, err := groupRoots.Load()
		if err != nil {
			return nil, fmt.Errorf("load group-to-roots: %w", err)
		}
		o.groupToRoots = loaded
	}
	return o, nil
}

// Submit enqueues doc for processing and returns its assigned deployment
// ID immediately, per spec.md §6's CreateLocalDeployment contract. The
// caller observes terminal status via GetStatus.
func (o *Orchestrator) Submit(doc *model.DeploymentDocument) string {
	if doc.DeploymentID == "" {
		doc.DeploymentID = uuid.NewString()
	}
	o.mu.Lock()
	result := &Result{DeploymentID: doc.DeploymentID, GroupName: doc.GroupName, Status: model.StatusQueued, SubmittedAt: now()}
	o.results[doc.DeploymentID] = result
	o.history = append(o.history, result)
	o.mu.Unlock()

	o.tasks <- doc
	return doc.DeploymentID
}

// Run drains the task queue one deployment at a time until ctx is
// cancelled — the single logical deployment lane spec.md §5 requires.
func (o *Orchestrator) Run(ctx context.Context) {
	o.resumeBootstraps(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case doc := <-o.tasks:
			o.process(ctx, doc)
		}
	}
}

// ComponentSummary is one device-resident component's current name,
// version, and state, for the Local IPC surface's ListComponents/
// GetComponentDetails (spec.md §6).
type ComponentSummary struct {
	Name          string
	Version       string
	State         model.ServiceState
	Configuration *jsonvalue.Value
}

// ComponentSummaries reports the current resolved config's non-main
// components paired with their live process state from the
// ServiceController, for the Local IPC surface.
func (o *Orchestrator) ComponentSummaries() []ComponentSummary {
	o.mu.Lock()
	current := o.currentConfig
	o.mu.Unlock()

	out := make([]ComponentSummary, 0, len(current))
	for name, comp := range current {
		if name == "main" {
			continue
		}
		out = append(out, ComponentSummary{
			Name:          name,
			Version:       comp.Version,
			State:         o.Merger.Controller.State(name),
			Configuration: comp.Configuration,
		})
	}
	return out
}

// GetStatus implements spec.md §6's GetLocalDeploymentStatus.
func (o *Orchestrator) GetStatus(deploymentID string) (*Result, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	r, ok := o.results[deploymentID]
	return r, ok
}

// ListHistory implements spec.md §6's ListLocalDeployments.
func (o *Orchestrator) ListHistory() []*Result {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*Result{}, o.history...)
}

func (o *Orchestrator) process(ctx context.Context, doc *model.DeploymentDocument) {
	o.mu.Lock()
	result := o.results[doc.DeploymentID]
	result.Status = model.StatusInProgress
	o.mu.Unlock()

	started := now()
	status, err := o.runPipeline(ctx, doc)

	o.mu.Lock()
	result.Status = status
	result.Err = err
	result.CompletedAt = now()
	o.mu.Unlock()

	metrics.ObserveDeployment(string(status), result.CompletedAt.Sub(started))

	if err != nil {
		logger.Errorf("deployment %s (%s): %s: %v", doc.DeploymentID, doc.GroupName, status, err)
	} else {
		logger.Infof("deployment %s (%s): %s", doc.DeploymentID, doc.GroupName, status)
	}
}

func (o *Orchestrator) runPipeline(ctx context.Context, doc *model.DeploymentDocument) (model.DeploymentStatus, error) {
	if _, err := o.Dirs.CreateIfNotExists(doc.DeploymentID); err != nil {
		return model.StatusFailedNoStateChange, fmt.Errorf("allocate deployment directory: %w", err)
	}

	o.mu.Lock()
	priorGroups := o.groupToRoots.Clone()
	current := o.currentConfig
	o.mu.Unlock()

	candidateGroups := priorGroups.Clone()
	candidateGroups[doc.GroupName] = rootVersionsOf(doc)

	roots, err := buildRequirements(candidateGroups)
	if err != nil {
		return model.StatusFailedNoStateChange, fmt.Errorf("build requirements: %w", err)
	}

	assignment, err := o.Resolver.Resolve(ctx, roots)
	if err != nil {
		metrics.ObserveDependencyResolution("failed")
		return model.StatusFailedNoStateChange, fmt.Errorf("dependency resolution: %w", err)
	}
	metrics.ObserveDependencyResolution("succeeded")

	persisted := map[string]*jsonvalue.Value{}
	for name, comp := range current {
		persisted[name] = comp.Configuration
	}

	allRootNames := make([]string, 0, len(roots))
	for _, r := range roots {
		allRootNames = append(allRootNames, r.Name)
	}

	target, err := configresolver.Resolve(configresolver.Input{
		Assignment:                   assignment,
		RootComponentNames:           allRootNames,
		BuiltinAutoStartDependencies: o.BuiltinAutoStartDependencies,
		ConfigurationUpdates:         doc.ConfigurationUpdates,
		PersistedConfiguration:       persisted,
		Paths:                        o.Paths,
		KernelRootPath:               o.KernelRootPath,
		Log: func(component, placeholder, reason string) {
			logger.Warnf("deployment %s: %s %s: %s", doc.DeploymentID, component, placeholder, reason)
		},
	})
	if err != nil {
		return model.StatusFailedNoStateChange, fmt.Errorf("configuration resolution: %w", err)
	}

	deadline := o.DefaultDeadline
	if doc.ComponentUpdatePolicy.TimeoutSeconds > 0 {
		deadline = time.Duration(doc.ComponentUpdatePolicy.TimeoutSeconds) * time.Second
	}

	mergeResult := o.Merger.Merge(ctx, doc.DeploymentID, current, target, doc, deadline)

	if mergeResult.Status == model.StatusSuccessful {
		o.mu.Lock()
		o.groupToRoots = candidateGroups
		o.currentConfig = target
		o.mu.Unlock()
		if o.GroupRoots != nil {
			if err := o.GroupRoots.Save(candidateGroups); err != nil {
				logger.Warnf("deployment %s: could not persist group-to-roots: %v", doc.DeploymentID, err)
			}
		}
		if err := o.Dirs.Cleanup(doc.DeploymentID); err != nil {
			logger.Warnf("deployment %s: cleanup failed: %v", doc.DeploymentID, err)
		}
	}
	return mergeResult.Status, mergeResult.Err
}

// resumeBootstraps is spec.md §9's "Bootstrap resumption": before accepting
// new tasks, finish every deployment this supervisor was paused mid-restart
// for, using the BootstrapRecord it persisted before restarting.
func (o *Orchestrator) resumeBootstraps(ctx context.Context) {
	if o.Merger == nil || o.Merger.Bootstrap == nil {
		return
	}
	pending, err := o.Merger.Bootstrap.ListPending()
	if err != nil {
		logger.Warnf("resume bootstraps: list pending: %v", err)
		return
	}
	for _, rec := range pending {
		logger.Infof("resuming bootstrap-requiring deployment %s at stage %s", rec.DeploymentID, rec.Stage)
		deadline := o.DefaultDeadline
		if rec.Doc != nil && rec.Doc.ComponentUpdatePolicy.TimeoutSeconds > 0 {
			deadline = time.Duration(rec.Doc.ComponentUpdatePolicy.TimeoutSeconds) * time.Second
		}
		result := o.Merger.ResumeKernelActivation(ctx, rec, deadline)
		o.recordResumedResult(rec, result)
	}
}

// recordResumedResult folds a resumed bootstrap deployment's outcome back
// into the orchestrator's result history and, on success, persists the
// group-to-roots update and cleans up the deployment directory — the same
// two steps runPipeline's own success branch takes.
func (o *Orchestrator) recordResumedResult(rec merger.BootstrapRecord, result *merger.Result) {
	groupName := ""
	if rec.Doc != nil {
		groupName = rec.Doc.GroupName
	}

	o.mu.Lock()
	r, ok := o.results[rec.DeploymentID]
	if !ok {
		r = &Result{DeploymentID: rec.DeploymentID, GroupName: groupName, SubmittedAt: now()}
		o.results[rec.DeploymentID] = r
		o.history = append(o.history, r)
	}
	r.Status = result.Status
	r.Err = result.Err
	r.CompletedAt = now()
	var candidateGroups model.GroupToRootComponents
	if result.Status == model.StatusSuccessful && rec.Doc != nil {
		candidateGroups = o.groupToRoots.Clone()
		candidateGroups[rec.Doc.GroupName] = rootVersionsOf(rec.Doc)
		o.groupToRoots = candidateGroups
		o.currentConfig = rec.Target
	}
	o.mu.Unlock()

	if candidateGroups == nil {
		return
	}
	if o.GroupRoots != nil {
		if err := o.GroupRoots.Save(candidateGroups); err != nil {
			logger.Warnf("resume %s: could not persist group-to-roots: %v", rec.DeploymentID, err)
		}
	}
	if err := o.Dirs.Cleanup(rec.DeploymentID); err != nil {
		logger.Warnf("resume %s: cleanup failed: %v", rec.DeploymentID, err)
	}
}

func rootVersionsOf(doc *model.DeploymentDocument) map[string]string {
	out := make(map[string]string, len(doc.RootComponents))
	for _, r := range doc.RootComponents {
		out[r.Name] = r.Constraint
	}
	return out
}

// buildRequirements turns the device-wide union of every group's root map
// into depresolver.Requirements, treating each group's pinned version as
// an exact-version candidate (the usual case for a deployment document's
// rootComponents, spec.md §6).
func buildRequirements(groups model.GroupToRootComponents) ([]depresolver.Requirement, error) {
	union := groups.UnionRoots()
	out := make([]depresolver.Requirement, 0, len(union))
	for name, versions := range union {
		for _, v := range versions {
			constraint, err := gover.NewConstraint(fmt.Sprintf("= %s", v))
			if err != nil {
				constraint, err = gover.NewConstraint(v)
				if err != nil {
					return nil, fmt.Errorf("parse root constraint %q for %s: %w", v, name, err)
				}
			}
			out = append(out, depresolver.Requirement{Name: name, Constraint: constraint, ExactVersion: v})
		}
	}
	return out, nil
}

// now is a thin indirection so tests can stub the clock if ever needed;
// kept trivial rather than injected, since no test currently depends on
// deployment timestamps.
func now() time.Time { return time.Now() }
