package workspace

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/multision/SupaConsole/pkg/envset"
)

const (
	coreDir    = "supabase-core"
	projectDir = "projects"
	composeDir = "docker"
	envFile    = ".env"
)

// CloneFunc fetches a repository into dest.
type CloneFunc func(ctx context.Context, repoURL, dest string) error

// Manager owns the on-disk layout: one shared reference checkout and one
// directory per project holding a copy of its docker folder.
type Manager struct {
	root    string
	repoURL string
	clone   CloneFunc
	coreMu  sync.Mutex
}

// New ensures the workspace root exists and is accessible.
func New(root, repoURL string, clone CloneFunc) (*Manager, error) {
	if root == "" {
		return nil, fmt.Errorf("workspace root cannot be empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(abs, projectDir), 0o755); err != nil {
		return nil, fmt.Errorf("create workspace root: %w", err)
	}
	return &Manager{root: abs, repoURL: repoURL, clone: clone}, nil
}

// CorePath is the shared reference checkout.
func (m *Manager) CorePath() string {
	return filepath.Join(m.root, coreDir)
}

// ProjectPath is the directory of one project.
func (m *Manager) ProjectPath(projectID string) (string, error) {
	if projectID == "" || strings.ContainsAny(projectID, `/\`) || projectID == "." || projectID == ".." {
		return "", fmt.Errorf("invalid workspace identifier %q", projectID)
	}
	return filepath.Join(m.root, projectDir, projectID), nil
}

// EnvPath is where the compose .env of a project lives.
func (m *Manager) EnvPath(projectID string) (string, error) {
	dir, err := m.ProjectPath(projectID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, composeDir, envFile), nil
}

// EnsureCore clones the reference repository once.
func (m *Manager) EnsureCore(ctx context.Context) error {
	m.coreMu.Lock()
	defer m.coreMu.Unlock()
	if _, err := os.Stat(filepath.Join(m.CorePath(), composeDir)); err == nil {
		return nil
	}
	if m.clone == nil {
		return errors.New("workspace: no clone function configured")
	}
	tmp := m.CorePath() + ".partial"
	if err := os.RemoveAll(tmp); err != nil {
		return fmt.Errorf("cleanup partial clone: %w", err)
	}
	if err := m.clone(ctx, m.repoURL, tmp); err != nil {
		_ = os.RemoveAll(tmp)
		return err
	}
	if _, err := os.Stat(filepath.Join(tmp, composeDir)); err != nil {
		_ = os.RemoveAll(tmp)
		return fmt.Errorf("reference repository has no %s directory", composeDir)
	}
	if err := os.RemoveAll(m.CorePath()); err != nil {
		return err
	}
	return os.Rename(tmp, m.CorePath())
}

// Prepare copies the reference docker folder into a fresh project directory.
func (m *Manager) Prepare(ctx context.Context, projectID string) (string, error) {
	dir, err := m.ProjectPath(projectID)
	if err != nil {
		return "", err
	}
	if err := m.EnsureCore(ctx); err != nil {
		return "", err
	}
	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("cleanup workspace: %w", err)
	}
	if err := copyTree(filepath.Join(m.CorePath(), composeDir), filepath.Join(dir, composeDir)); err != nil {
		return "", fmt.Errorf("copy compose files: %w", err)
	}
	return dir, nil
}

// WriteEnv renders set into the project's .env, replacing it atomically.
func (m *Manager) WriteEnv(projectID string, set envset.Set) (string, error) {
	path, err := m.EnvPath(projectID)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create compose dir: %w", err)
	}
	var buf bytes.Buffer
	if err := envset.Render(&buf, set); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".env-*")
	if err != nil {
		return "", fmt.Errorf("create temp env file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return "", err
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write env file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("install env file: %w", err)
	}
	return path, nil
}

// Remove deletes a project directory.
func (m *Manager) Remove(projectID string) error {
	dir, err := m.ProjectPath(projectID)
	if err != nil {
		return err
	}
	// Ensure we only remove directories within the configured root.
	rel, err := filepath.Rel(m.root, dir)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("refusing to cleanup path outside workspace root")
	}
	return os.RemoveAll(dir)
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		info, err := d.Info()
		if err != nil {
			return err
		}
		switch {
		case d.IsDir():
			return os.MkdirAll(target, info.Mode().Perm()|0o700)
		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		default:
			return copyFile(path, target, info.Mode().Perm())
		}
	})
}

func copyFile(src, dst string, perm fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
