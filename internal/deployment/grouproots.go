package deployment

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"edgecored/internal/model"
)

// GroupRootsStore durably persists spec.md §3's group-to-roots map — "the
// persisted mapping" spec.md §4.5 step 4 says is updated on success only,
// and that spec.md §5 says is "rewritten transactionally (temp+rename)".
// Grounded on the same temp+rename idiom as internal/store.Store.install
// and internal/merger's FileSnapshotStore.
type GroupRootsStore struct {
	Dir string
}

func (g *GroupRootsStore) path() string {
	return filepath.Join(g.Dir, "group-to-roots.json")
}

// Load reads the persisted map, returning an empty map rather than an
// error when nothing has been written yet (first boot, or a device with
// no successful deployment so far).
func (g *GroupRootsStore) Load() (model.GroupToRootComponents, error) {
	data, err := os.ReadFile(g.path())
	if err != nil {
		if os.IsNotExist(err) {
			return model.GroupToRootComponents{}, nil
		}
		return nil, fmt.Errorf("read group-to-roots: %w", err)
	}
	out := model.GroupToRootComponents{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("unmarshal group-to-roots: %w", err)
	}
	return out, nil
}

// Save atomically rewrites the persisted map via the module's standard
// temp+rename write.
func (g *GroupRootsStore) Save(groups model.GroupToRootComponents) error {
	if err := os.MkdirAll(g.Dir, 0o755); err != nil {
		return fmt.Errorf("mkdir group-to-roots dir: %w", err)
	}
	data, err := json.Marshal(groups)
	if err != nil {
		return fmt.Errorf("marshal group-to-roots: %w", err)
	}
	path := g.path()
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write group-to-roots: %w", err)
	}
	return os.Rename(tmp, path)
}
