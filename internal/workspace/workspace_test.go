package workspace

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/multision/SupaConsole/pkg/envset"
)

func fakeClone(calls *int) CloneFunc {
	return func(_ context.Context, repoURL, dest string) error {
		*calls++
		if err := os.MkdirAll(filepath.Join(dest, "docker", "volumes"), 0o755); err != nil {
			return err
		}
		return os.WriteFile(filepath.Join(dest, "docker", "docker-compose.yml"), []byte("services: {}\n"), 0o644)
	}
}

func TestPrepareClonesOnceAndCopiesDocker(t *testing.T) {
	calls := 0
	m, err := New(t.TempDir(), "https://example.com/supabase.git", fakeClone(&calls))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for _, id := range []string{"proj-a", "proj-b"} {
		dir, err := m.Prepare(context.Background(), id)
		if err != nil {
			t.Fatalf("prepare %s: %v", id, err)
		}
		if _, err := os.Stat(filepath.Join(dir, "docker", "docker-compose.yml")); err != nil {
			t.Fatalf("expected compose file copied: %v", err)
		}
		if _, err := os.Stat(filepath.Join(dir, "docker", "volumes")); err != nil {
			t.Fatalf("expected nested dir copied: %v", err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected a single clone, got %d", calls)
	}
}

func TestEnsureCoreCleansUpFailedClone(t *testing.T) {
	boom := errors.New("network down")
	m, err := New(t.TempDir(), "https://example.com/supabase.git", func(_ context.Context, _, dest string) error {
		_ = os.MkdirAll(dest, 0o755)
		return boom
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := m.EnsureCore(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected clone error, got %v", err)
	}
	if _, err := os.Stat(m.CorePath() + ".partial"); !os.IsNotExist(err) {
		t.Fatalf("expected partial clone removed, stat err %v", err)
	}
}

func TestWriteEnv(t *testing.T) {
	m, err := New(t.TempDir(), "", nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	path, err := m.WriteEnv("proj-1", envset.Set{envset.KongHTTPPort: "8000"})
	if err != nil {
		t.Fatalf("write env: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read env: %v", err)
	}
	if !strings.Contains(string(data), "KONG_HTTP_PORT=8000\n") {
		t.Fatalf("unexpected env file:\n%s", data)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected 0600, got %v", info.Mode().Perm())
	}
}

func TestProjectPathRejectsTraversal(t *testing.T) {
	m, err := New(t.TempDir(), "", nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for _, id := range []string{"", "..", "../etc", `a\b`} {
		if _, err := m.ProjectPath(id); err == nil {
			t.Fatalf("expected %q to be rejected", id)
		}
	}
	if err := m.Remove("missing-project"); err != nil {
		t.Fatalf("removing an absent project should succeed: %v", err)
	}
}
