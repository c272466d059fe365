// Package merger implements the Lifecycle Merger (spec.md §4.4): it
// transitions the running topology from its current resolved configuration
// to a newly resolved target configuration atomically, honoring
// pre-update deferral votes and the deployment's failure-handling policy.
// No single teacher or original_source file implements this phase —
// original_source's own DeploymentConfigMerger is not part of the
// retrieval pack — so the phase structure below (Plan/Snapshot/Vote/Apply/
// Commit-or-recover) is grounded directly on spec.md §4.4's algorithm
// description, built in the concurrency idiom the rest of this module uses
// (context.Context for cancellation/deadlines, channel-based pub/sub for
// the deferral vote, mutex-guarded shared state — the same style as
// internal/proc.Instance and internal/store.Store's fetch coalescing).
package merger

import (
	"context"
	"errors"
	"fmt"
	"time"

	gover "github.com/hashicorp/go-version"

	"edgecored/internal/configresolver"
	"edgecored/internal/logger"
	"edgecored/internal/model"
)

// ServiceController starts and stops one component's `run` lifecycle stage
// and reports its current state. Implemented in production by an adapter
// over internal/proc.Instance; kept as an interface so merger logic can be
// tested without spawning real processes.
type ServiceController interface {
	Start(ctx context.Context, comp *configresolver.ResolvedComponentConfig) error
	Stop(ctx context.Context, name string) error
	State(name string) model.ServiceState

	// RunBootstrap runs a component's bootstrap lifecycle stage (spec.md
	// §4.4.1) and reports whether it requested a supervisor restart.
	RunBootstrap(ctx context.Context, comp *configresolver.ResolvedComponentConfig) (restartRequested bool, err error)
}

// ArtifactStore is the subset of internal/store.Store the merger needs to
// install a target component's recipe/artifacts before starting it and to
// exempt the running version from pruning.
type ArtifactStore interface {
	EnsureAvailable(ctx context.Context, id model.ComponentIdentifier) (*model.ComponentRecipe, error)
	MarkRunning(id model.ComponentIdentifier)
	UnmarkRunning(id model.ComponentIdentifier)
	Prune(reachable map[model.ComponentIdentifier]struct{}) error
}

// Result is the outcome of one Merge call.
type Result struct {
	Status model.DeploymentStatus
	Stage  model.DeploymentStage
	Err    error
}

// Merger wires together the collaborators spec.md §4.4 names as inputs.
type Merger struct {
	Controller ServiceController
	Store      ArtifactStore
	Snapshots  SnapshotStore
	Broker     *Broker

	// Bootstrap persists the cross-restart state spec.md §4.4.1 requires
	// for a bootstrap-requiring transition. Nil disables bootstrap support
	// entirely: apply treats any BootstrapRequired name as a normal start.
	Bootstrap *BootstrapStore

	// PollInterval governs how often Apply polls ServiceController.State
	// while waiting for a started service to reach a success or broken
	// state. Defaults to 200ms if zero.
	PollInterval time.Duration
}

// Merge runs phases 1-5 of spec.md §4.4 for one deployment. current is the
// previously-committed configuration (empty on first run); target is
// internal/configresolver's freshly resolved tree. deadline bounds every
// suspension point in this merge, per spec.md §5.
func (m *Merger) Merge(ctx context.Context, deploymentID string, current, target configresolver.ResolvedConfig, doc *model.DeploymentDocument, deadline time.Duration) *Result {
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	plan := ComputePlan(current, target)

	snapshot := Snapshot{
		Config:          current,
		RunningVersions: runningVersionsOf(current),
	}
	if err := m.Snapshots.SaveSnapshot(deploymentID, snapshot); err != nil {
		return &Result{Status: model.StatusFailedNoStateChange, Stage: model.StageDefault, Err: fmt.Errorf("snapshot: %w", err)}
	}

	if ctx.Err() != nil {
		return m.recover(ctx, deploymentID, snapshot, target, plan, model.PolicyRollback, "cancelled before update-check vote")
	}

	toNotify := append(append([]string{}, plan.Updated...), plan.Removed...)
	if doc.ComponentUpdatePolicy.TimeoutSeconds > 0 {
		m.runUpdateCheckVote(ctx, toNotify, doc)
	}

	if ctx.Err() != nil {
		return m.recover(ctx, deploymentID, snapshot, target, plan, model.PolicyRollback, "cancelled after update-check vote")
	}

	if err := m.apply(ctx, deploymentID, doc, current, target, plan); err != nil {
		var restart *errRestartRequested
		if errors.As(err, &restart) {
			logger.Infof("deployment %s: paused for bootstrap restart of %s", deploymentID, restart.name)
			return &Result{Status: model.StatusInProgress, Stage: model.StageBootstrapPhase}
		}
		return m.recover(ctx, deploymentID, snapshot, target, plan, doc.FailureHandlingPolicy, err.Error())
	}

	if err := m.commit(target, plan, deploymentID); err != nil {
		return &Result{Status: model.StatusFailedNoStateChange, Stage: model.StageDefault, Err: err}
	}
	return &Result{Status: model.StatusSuccessful, Stage: model.StageDefault}
}

// runUpdateCheckVote is spec.md §4.4 phase 3: publish PreComponentUpdate
// for every candidate not in skipNotifyComponents and wait once for the
// largest deferral, bounded by the configured timeout and the merge's own
// deadline.
func (m *Merger) runUpdateCheckVote(ctx context.Context, candidates []string, doc *model.DeploymentDocument) {
	timeout := time.Duration(doc.ComponentUpdatePolicy.TimeoutSeconds) * time.Second
	var maxDefer time.Duration
	for _, name := range candidates {
		if doc.ComponentUpdatePolicy.Skips(name) {
			continue
		}
		d := m.Broker.Publish(ctx, name, timeout)
		if d > maxDefer {
			maxDefer = d
		}
	}
	if maxDefer == 0 {
		return
	}
	logger.Infof("deployment %s: rescheduling after %v deferral vote", doc.DeploymentID, maxDefer)
	remaining := time.Until(deadlineOf(ctx))
	wait := maxDefer
	if wait > remaining {
		wait = remaining
	}
	if wait <= 0 {
		return
	}
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}

func deadlineOf(ctx context.Context) time.Time {
	if d, ok := ctx.Deadline(); ok {
		return d
	}
	return time.Now().Add(time.Hour)
}

// apply is spec.md §4.4 phase 4: stop removed/updated services in reverse
// dependency order, install target recipes/artifacts, then start
// added/updated services in forward dependency order, waiting for each to
// reach a success or broken state. A name plan marks BootstrapRequired runs
// its bootstrap stage first (spec.md §4.4.1); if that stage requests a
// restart, apply persists a BootstrapRecord covering the remaining names
// and returns errRestartRequested instead of continuing.
func (m *Merger) apply(ctx context.Context, deploymentID string, doc *model.DeploymentDocument, current, target configresolver.ResolvedConfig, plan *Plan) error {
	toStop := append(append([]string{}, plan.Removed...), plan.Updated...)
	for _, name := range reverseOf(topoOrder(current, toStop)) {
		if ctx.Err() != nil {
			return fmt.Errorf("cancelled before stopping %s", name)
		}
		if err := m.Controller.Stop(ctx, name); err != nil {
			return fmt.Errorf("stop %s: %w", name, err)
		}
		if c, ok := current[name]; ok {
			if id, err := identifierOf(c); err == nil {
				m.Store.UnmarkRunning(id)
			}
		}
	}

	toStart := append(append([]string{}, plan.Added...), plan.Updated...)
	order := topoOrder(target, toStart)
	for i, name := range order {
		if ctx.Err() != nil {
			return fmt.Errorf("cancelled before starting %s", name)
		}
		comp := target[name]
		id, err := identifierOf(comp)
		if err != nil {
			return fmt.Errorf("install %s: %w", name, err)
		}
		if _, err := m.Store.EnsureAvailable(ctx, id); err != nil {
			return fmt.Errorf("install %s: %w", name, err)
		}

		if plan.BootstrapRequired[name] {
			restartRequested, err := m.Controller.RunBootstrap(ctx, comp)
			if err != nil {
				return fmt.Errorf("bootstrap %s: %w", name, err)
			}
			if restartRequested {
				if m.Bootstrap != nil {
					pending := append([]string{}, order[i:]...)
					if err := m.Bootstrap.Begin(deploymentID, pending, doc, target); err != nil {
						logger.Warnf("deployment %s: could not persist bootstrap record: %v", deploymentID, err)
					}
				}
				return &errRestartRequested{name: name}
			}
		}

		if err := m.Controller.Start(ctx, comp); err != nil {
			return fmt.Errorf("start %s: %w", name, err)
		}
		if err := m.waitForSuccess(ctx, name); err != nil {
			return err
		}
		m.Store.MarkRunning(id)
	}
	return nil
}

// errRestartRequested signals that a bootstrap stage requested a
// supervisor restart; it is distinguished from an ordinary apply failure
// via errors.As so Merge/ResumeKernelActivation can pause the deployment in
// its BOOTSTRAP stage instead of recovering it.
type errRestartRequested struct{ name string }

func (e *errRestartRequested) Error() string {
	return fmt.Sprintf("component %s requested a supervisor restart", e.name)
}

func (m *Merger) waitForSuccess(ctx context.Context, name string) error {
	pollInterval := m.PollInterval
	if pollInterval == 0 {
		pollInterval = 200 * time.Millisecond
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		state := m.Controller.State(name)
		if state == model.StateBroken {
			return fmt.Errorf("%s: %w", name, ErrBroken)
		}
		if state.IsSuccess() {
			return nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return fmt.Errorf("%s: deadline exceeded waiting for %s", name, state)
		}
	}
}

// commit is spec.md §4.4 phase 5's success path: persist the new
// configuration/group-to-roots (left to internal/deployment, which owns
// that persistence), delete the snapshot, and prune the component store
// down to {running, target} versions per name.
func (m *Merger) commit(target configresolver.ResolvedConfig, plan *Plan, deploymentID string) error {
	if err := m.Snapshots.DeleteSnapshot(deploymentID); err != nil {
		logger.Warnf("commit %s: could not delete snapshot: %v", deploymentID, err)
	}
	reachable := map[model.ComponentIdentifier]struct{}{}
	for name, comp := range target {
		if name == "main" {
			continue
		}
		if id, err := identifierOf(comp); err == nil {
			reachable[id] = struct{}{}
		}
	}
	if err := m.Store.Prune(reachable); err != nil {
		logger.Warnf("commit %s: prune reported errors: %v", deploymentID, err)
	}
	return nil
}

// recover is spec.md §4.4 phase 5's failure path plus §4.4.2's
// cancellation override: a cancellation is treated as forced ROLLBACK
// regardless of the document's stated policy.
func (m *Merger) recover(ctx context.Context, deploymentID string, snapshot Snapshot, target configresolver.ResolvedConfig, plan *Plan, policy model.FailureHandlingPolicy, reason string) *Result {
	logger.Warnf("deployment %s: recovering (%s), reason: %s", deploymentID, policy, reason)
	effectivePolicy := policy
	if ctx.Err() != nil {
		effectivePolicy = model.PolicyRollback
	}

	if effectivePolicy == model.PolicyDoNothing {
		return &Result{Status: model.StatusFailedRollbackNotReq, Stage: model.StageDefault, Err: errors.New(reason)}
	}

	restoreCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := m.restore(restoreCtx, snapshot, target, plan.Added); err != nil {
		return &Result{Status: model.StatusFailedUnableToRollback, Stage: model.StageDefault, Err: fmt.Errorf("%s; rollback also failed: %w", reason, err)}
	}
	return &Result{Status: model.StatusFailedRollbackComplete, Stage: model.StageDefault, Err: errors.New(reason)}
}

// restore re-applies a prior snapshot: stop whatever the partially-applied
// target left running that doesn't belong in the snapshot — the names in
// added, which apply() may have already started and which have no entry
// in snapshot.Config to fall back to — then start the snapshot's own
// components in forward dependency order. Restarting a name that's still
// running its updated version relies on ServiceController.Start itself
// stopping the previous instance before replacing it.
func (m *Merger) restore(ctx context.Context, snapshot Snapshot, target configresolver.ResolvedConfig, added []string) error {
	for _, name := range added {
		if err := m.Controller.Stop(ctx, name); err != nil {
			logger.Warnf("restore: stop added component %s: %v", name, err)
		}
		if c, ok := target[name]; ok {
			if id, err := identifierOf(c); err == nil {
				m.Store.UnmarkRunning(id)
			}
		}
	}

	names := make([]string, 0, len(snapshot.Config))
	for name := range snapshot.Config {
		if name != "main" {
			names = append(names, name)
		}
	}
	order := topoOrder(snapshot.Config, names)
	for _, name := range order {
		comp := snapshot.Config[name]
		id, err := identifierOf(comp)
		if err != nil {
			return fmt.Errorf("restore %s: %w", name, err)
		}
		if _, err := m.Store.EnsureAvailable(ctx, id); err != nil {
			return fmt.Errorf("restore %s: %w", name, err)
		}
		if err := m.Controller.Start(ctx, comp); err != nil {
			return fmt.Errorf("restore %s: %w", name, err)
		}
		if err := m.waitForSuccess(ctx, name); err != nil {
			return fmt.Errorf("restore %s: %w", name, err)
		}
		m.Store.MarkRunning(id)
	}
	return nil
}

// ResumeKernelActivation is spec.md §4.4.1/§9's post-restart continuation
// of a bootstrap-requiring deployment: the orchestrator reloads the
// BootstrapRecord it persisted before the restart and calls this to finish
// the merge. This module keeps no PID registry across a real process
// restart, so current is treated as empty — every target component is
// (re)started through the normal apply path rather than diffed against
// whatever the restart happened to leave running.
func (m *Merger) ResumeKernelActivation(ctx context.Context, rec BootstrapRecord, deadline time.Duration) *Result {
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	if err := m.Bootstrap.Advance(rec.DeploymentID, model.StageKernelActivation); err != nil {
		logger.Warnf("resume %s: could not advance bootstrap record: %v", rec.DeploymentID, err)
	}

	current := configresolver.ResolvedConfig{}
	plan := ComputePlan(current, rec.Target)
	snapshot, err := m.Snapshots.LoadSnapshot(rec.DeploymentID)
	if err != nil {
		return &Result{Status: model.StatusFailedUnableToRollback, Stage: model.StageKernelRollback, Err: fmt.Errorf("load snapshot for resume: %w", err)}
	}

	if err := m.apply(ctx, rec.DeploymentID, rec.Doc, current, rec.Target, plan); err != nil {
		var restart *errRestartRequested
		if errors.As(err, &restart) {
			logger.Infof("deployment %s: paused again for bootstrap restart of %s", rec.DeploymentID, restart.name)
			return &Result{Status: model.StatusInProgress, Stage: model.StageBootstrapPhase}
		}
		if advErr := m.Bootstrap.Advance(rec.DeploymentID, model.StageKernelRollback); advErr != nil {
			logger.Warnf("resume %s: could not advance to KERNEL_ROLLBACK: %v", rec.DeploymentID, advErr)
		}
		result := m.recover(ctx, rec.DeploymentID, snapshot, rec.Target, plan, model.PolicyRollback, err.Error())
		result.Stage = model.StageKernelRollback
		if result.Status == model.StatusFailedRollbackComplete {
			if clearErr := m.Bootstrap.Clear(rec.DeploymentID); clearErr != nil {
				logger.Warnf("resume %s: could not clear bootstrap record: %v", rec.DeploymentID, clearErr)
			}
		}
		return result
	}

	if err := m.Bootstrap.Clear(rec.DeploymentID); err != nil {
		logger.Warnf("resume %s: could not clear bootstrap record: %v", rec.DeploymentID, err)
	}
	if err := m.commit(rec.Target, plan, rec.DeploymentID); err != nil {
		return &Result{Status: model.StatusFailedNoStateChange, Stage: model.StageDefault, Err: err}
	}
	return &Result{Status: model.StatusSuccessful, Stage: model.StageDefault}
}

func runningVersionsOf(cfg configresolver.ResolvedConfig) map[string]string {
	out := map[string]string{}
	for name, comp := range cfg {
		if name == "main" {
			continue
		}
		out[name] = comp.Version
	}
	return out
}

func identifierOf(comp *configresolver.ResolvedComponentConfig) (model.ComponentIdentifier, error) {
	v, err := gover.NewVersion(comp.Version)
	if err != nil {
		return model.ComponentIdentifier{}, fmt.Errorf("parse version %q for %s: %w", comp.Version, comp.Name, err)
	}
	return model.ComponentIdentifier{Name: comp.Name, Version: v}, nil
}

// ErrBroken is returned (wrapped) by waitForSuccess when a started service
// enters model.StateBroken instead of a success state.
var ErrBroken = fmt.Errorf("service entered BROKEN state")
