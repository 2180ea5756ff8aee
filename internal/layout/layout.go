// Package layout resolves the on-disk paths queuectl uses for its store,
// worker registry, control files, and logs, from a single root directory.
// Every adapter builds one Paths value at startup and threads it down to
// its collaborators; nothing else reads the environment.
package layout

import (
	"fmt"
	"os"
	"path/filepath"
)

const homeEnvVar = "QUEUECTL_HOME"

// Paths is the resolved set of filesystem locations for one queuectl data
// root.
type Paths struct {
	Root       string
	DBFile     string
	WorkersDir string
	LogsDir    string
}

// Resolve builds Paths from QUEUECTL_HOME, defaulting to
// <user-home>/.queuectl when unset or empty.
func Resolve() (Paths, error) {
	root := os.Getenv(homeEnvVar)
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, fmt.Errorf("layout: resolve home directory: %w", err)
		}
		root = filepath.Join(home, ".queuectl")
	}
	return FromRoot(root), nil
}

// FromRoot builds Paths from an explicit root directory, bypassing the
// environment. Used by tests that need an isolated data root per case.
func FromRoot(root string) Paths {
	return Paths{
		Root:       root,
		DBFile:     filepath.Join(root, "queue.db"),
		WorkersDir: filepath.Join(root, "workers"),
		LogsDir:    filepath.Join(root, "logs"),
	}
}

// RegistryFile is the path to the shared worker registry.
func (p Paths) RegistryFile() string {
	return filepath.Join(p.WorkersDir, "registry.json")
}

// ControlFile is the path to worker id's control file.
func (p Paths) ControlFile(workerID string) string {
	return filepath.Join(p.WorkersDir, workerID+".json")
}

// LogFile is the path to worker id's append-only log.
func (p Paths) LogFile(workerID string) string {
	return filepath.Join(p.LogsDir, workerID+".log")
}

// EnsureDirs creates the workers and logs directories if absent.
func (p Paths) EnsureDirs() error {
	if err := os.MkdirAll(p.WorkersDir, 0o755); err != nil {
		return fmt.Errorf("layout: create workers dir: %w", err)
	}
	if err := os.MkdirAll(p.LogsDir, 0o755); err != nil {
		return fmt.Errorf("layout: create logs dir: %w", err)
	}
	return nil
}
