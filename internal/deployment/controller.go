package deployment

import (
	"context"
	"fmt"
	"sync"

	"edgecored/internal/configresolver"
	"edgecored/internal/logger"
	"edgecored/internal/model"
	"edgecored/internal/proc"
)

// ArtifactPathProvider resolves a component-version's decompressed
// artifacts directory, used as the working directory for its lifecycle
// stages.
type ArtifactPathProvider func(name, version string) string

// ProcController adapts internal/proc.Instance to internal/merger's
// ServiceController interface: it sequences a component's install,
// startup, and run stages (honoring skipIf) and tracks one proc.Instance
// per running component.
type ProcController struct {
	mu         sync.Mutex
	instances  map[string]*proc.Instance
	workDir    ArtifactPathProvider
	maxRestart int
}

func NewProcController(workDir ArtifactPathProvider, maxRestart int) *ProcController {
	return &ProcController{
		instances:  map[string]*proc.Instance{},
		workDir:    workDir,
		maxRestart: maxRestart,
	}
}

// Start runs a component's install and startup stages synchronously (each
// respecting its skipIf predicate), then launches its run stage as a
// supervised process if it declares one. A component with no run stage is
// considered FINISHED as soon as startup succeeds — a one-shot component,
// per spec.md §3's lifecycle namespace.
func (c *ProcController) Start(ctx context.Context, comp *configresolver.ResolvedComponentConfig) error {
	dir := c.workDir(comp.Name, comp.Version)

	for _, stageName := range []model.LifecycleStageName{model.StageInstall, model.StageStartup} {
		stage, ok := comp.Lifecycle[stageName]
		if !ok || stage.Script == "" {
			continue
		}
		if proc.EvaluateSkipIf(ctx, stage.SkipIf, dir) {
			logger.Infof("%s: skipping %s stage (skipIf)", comp.Name, stageName)
			continue
		}
		if err := proc.RunStage(ctx, comp.Name, stage.Script, dir); err != nil {
			return fmt.Errorf("%s stage: %w", stageName, err)
		}
	}

	runStage, hasRun := comp.Lifecycle[model.StageRun]
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.stopLocked(comp.Name); err != nil {
		return fmt.Errorf("stop previous instance of %s: %w", comp.Name, err)
	}
	if !hasRun || runStage.Script == "" {
		c.instances[comp.Name] = nil // marks "finished, no run stage" — see State
		return nil
	}

	instance := proc.NewInstance(comp.Name, "sh", []string{"-c", runStage.Script}, dir, nil)
	instance.EnableWatcher(c.maxRestart, nil)
	if err := instance.Start(ctx); err != nil {
		return err
	}
	c.instances[comp.Name] = instance
	return nil
}

// RunBootstrap runs a component's bootstrap lifecycle stage (spec.md
// §4.4.1), honoring skipIf like Start does for install/startup. It does
// not touch c.instances: a bootstrap stage is one-shot and unrelated to
// the `run` stage's supervised process.
func (c *ProcController) RunBootstrap(ctx context.Context, comp *configresolver.ResolvedComponentConfig) (bool, error) {
	stage, ok := comp.Lifecycle[model.StageBootstrap]
	if !ok || stage.Script == "" {
		return false, nil
	}
	dir := c.workDir(comp.Name, comp.Version)
	if proc.EvaluateSkipIf(ctx, stage.SkipIf, dir) {
		logger.Infof("%s: skipping bootstrap stage (skipIf)", comp.Name)
		return false, nil
	}
	return proc.RunBootstrapStage(ctx, comp.Name, stage.Script, dir)
}

// stopLocked stops and clears any instance already tracked under name,
// called with c.mu held. Starting a new instance for a name without first
// stopping the old one would leak the old process and leave two versions
// of the same component running simultaneously, violating spec.md §3's
// one-version-per-name invariant.
func (c *ProcController) stopLocked(name string) error {
	instance, tracked := c.instances[name]
	if !tracked {
		return nil
	}
	delete(c.instances, name)
	if instance == nil {
		return nil
	}
	return instance.Stop()
}

func (c *ProcController) Stop(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopLocked(name)
}

func (c *ProcController) State(name string) model.ServiceState {
	c.mu.Lock()
	defer c.mu.Unlock()
	instance, tracked := c.instances[name]
	if !tracked {
		return model.StateNew
	}
	if instance == nil {
		return model.StateFinished
	}
	return instance.State()
}

// Detail exposes a started component's process-level detail for the Local
// IPC surface's GetComponentDetails (spec.md §6).
func (c *ProcController) Detail(name string) (proc.Detail, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	instance, ok := c.instances[name]
	if !ok || instance == nil {
		return proc.Detail{ComponentName: name, State: c.stateLocked(name)}, ok
	}
	return instance.Detail(), true
}

func (c *ProcController) stateLocked(name string) model.ServiceState {
	instance, tracked := c.instances[name]
	if !tracked {
		return model.StateNew
	}
	if instance == nil {
		return model.StateFinished
	}
	return instance.State()
}
