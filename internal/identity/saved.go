package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Saver persists the device's last-verified identity so a returning
// user skips re-verification.
type Saver interface {
	// LoadSavedIdentity returns nil with no error when nothing is saved.
	LoadSavedIdentity() (*Identity, error)
	SaveIdentity(id Identity) error
}

// FileSaver stores the identity as a JSON file under the data dir.
type FileSaver struct {
	path string
}

// NewFileSaver creates a saver rooted at dataDir.
func NewFileSaver(dataDir string) *FileSaver {
	return &FileSaver{path: filepath.Join(dataDir, "identity.json")}
}

func (f *FileSaver) LoadSavedIdentity() (*Identity, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read saved identity: %w", err)
	}
	var id Identity
	if err := json.Unmarshal(data, &id); err != nil {
		return nil, fmt.Errorf("parse saved identity: %w", err)
	}
	return &id, nil
}

func (f *FileSaver) SaveIdentity(id Identity) error {
	data, err := json.MarshalIndent(id, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write saved identity: %w", err)
	}
	return os.Rename(tmp, f.path)
}
