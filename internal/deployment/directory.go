// Package deployment implements the Deployment Task Orchestrator (spec.md
// §4.5) and Deployment Directory Manager (§4.6): the single-writer
// serializer that turns a DeploymentDocument into a committed or rolled-
// back topology change by driving internal/depresolver,
// internal/configresolver, and internal/merger in order, plus the per-
// deployment on-disk scratchpad those subsystems read and write through.
package deployment

import (
	"os"
	"path/filepath"
)

// DirectoryManager is the Deployment Directory Manager (spec.md §4.6): a
// per-deployment scratchpad with snapshot/, bootstrap/, and
// artifacts-staging/ subfolders, keyed by deployment ID (the configuration
// ARN analogue). Grounded on the teacher's internal/store.Store pattern of
// a single rooted directory tree with well-known subfolders.
type DirectoryManager struct {
	Root string // <supervisor root>/deployments
}

func NewDirectoryManager(root string) *DirectoryManager {
	return &DirectoryManager{Root: root}
}

func (d *DirectoryManager) deploymentDir(id string) string {
	return filepath.Join(d.Root, id)
}

func (d *DirectoryManager) SnapshotDir(id string) string         { return filepath.Join(d.deploymentDir(id), "snapshot") }
func (d *DirectoryManager) BootstrapDir(id string) string        { return filepath.Join(d.deploymentDir(id), "bootstrap") }
func (d *DirectoryManager) ArtifactsStagingDir(id string) string { return filepath.Join(d.deploymentDir(id), "artifacts-staging") }

// CreateIfNotExists guarantees id's three subfolders exist and returns the
// deployment's root directory. Idempotent: an existing directory is
// returned untouched, per spec.md §4.6.
func (d *DirectoryManager) CreateIfNotExists(id string) (string, error) {
	for _, sub := range []string{d.SnapshotDir(id), d.BootstrapDir(id), d.ArtifactsStagingDir(id)} {
		if err := os.MkdirAll(sub, 0o755); err != nil {
			return "", err
		}
	}
	return d.deploymentDir(id), nil
}

// Cleanup deletes id's entire scratchpad. Callers must only call this for
// completed, non-bootstrap deployments, per spec.md §4.6 — a bootstrap-
// requiring deployment's directory must survive the supervisor restart
// that carries it from BOOTSTRAP into KERNEL_ACTIVATION.
func (d *DirectoryManager) Cleanup(id string) error {
	err := os.RemoveAll(d.deploymentDir(id))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
