package envconfig

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/multision/SupaConsole/internal/domain"
	"github.com/multision/SupaConsole/internal/repository"
	"github.com/multision/SupaConsole/pkg/crypto"
	"github.com/multision/SupaConsole/pkg/envset"
)

type memoryEnvVars struct {
	mu   sync.Mutex
	rows map[string]map[string]domain.ProjectEnvVar
	err  error
}

func newMemoryEnvVars() *memoryEnvVars {
	return &memoryEnvVars{rows: map[string]map[string]domain.ProjectEnvVar{}}
}

func (m *memoryEnvVars) ListProjectEnvVars(_ context.Context, projectID string) ([]domain.ProjectEnvVar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []domain.ProjectEnvVar
	for _, row := range m.rows[projectID] {
		out = append(out, row)
	}
	return out, nil
}

func (m *memoryEnvVars) UpsertProjectEnvVars(_ context.Context, projectID string, vars []domain.ProjectEnvVar) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.rows[projectID] == nil {
		m.rows[projectID] = map[string]domain.ProjectEnvVar{}
	}
	for _, v := range vars {
		m.rows[projectID][v.Key] = v
	}
	return nil
}

func newTestStore(t *testing.T) (*Store, *memoryEnvVars) {
	t.Helper()
	sealer, err := crypto.NewSealer("test-encryption-key")
	if err != nil {
		t.Fatalf("new sealer: %v", err)
	}
	repo := newMemoryEnvVars()
	return NewStore(repo, sealer), repo
}

func TestStoreRoundTrip(t *testing.T) {
	store, repo := newTestStore(t)
	ctx := context.Background()

	empty, err := store.GetConfig(ctx, "p1")
	if err != nil {
		t.Fatalf("get empty: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty set, got %v", empty)
	}

	want := envset.Set{envset.PostgresPort: "5555", envset.JWTSecret: "s3cr3t", "CUSTOM": "x"}
	if err := store.SaveConfig(ctx, "p1", want); err != nil {
		t.Fatalf("save: %v", err)
	}
	if string(repo.rows["p1"][envset.JWTSecret].Value) == "s3cr3t" {
		t.Fatal("expected value to be encrypted at rest")
	}
	got, err := store.GetConfig(ctx, "p1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestStoreRejectsSwappedRows(t *testing.T) {
	store, repo := newTestStore(t)
	ctx := context.Background()
	if err := store.SaveConfig(ctx, "p1", envset.Set{envset.JWTSecret: "a", envset.PostgresPassword: "b"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	rows := repo.rows["p1"]
	secret := rows[envset.JWTSecret]
	secret.Value = rows[envset.PostgresPassword].Value
	rows[envset.JWTSecret] = secret

	if _, err := store.GetConfig(ctx, "p1"); !errors.Is(err, repository.ErrPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
}

func TestStoreWrapsRepositoryErrors(t *testing.T) {
	store, repo := newTestStore(t)
	repo.err = errors.New("connection reset")
	if err := store.SaveConfig(context.Background(), "p1", envset.Set{"A": "1"}); !errors.Is(err, repository.ErrPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
	repo.err = repository.ErrNotFound
	if _, err := store.GetConfig(context.Background(), "p1"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected not found to pass through, got %v", err)
	}
}
