package envconfig

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/multision/SupaConsole/internal/domain"
	"github.com/multision/SupaConsole/internal/repository"
	"github.com/multision/SupaConsole/pkg/crypto"
	"github.com/multision/SupaConsole/pkg/envset"
)

// ConfigStore persists configuration sets per project.
type ConfigStore interface {
	GetConfig(ctx context.Context, projectID string) (envset.Set, error)
	SaveConfig(ctx context.Context, projectID string, set envset.Set) error
}

// Store keeps configuration values encrypted at rest. Each value is sealed
// with the project id and key as associated data so rows cannot be swapped.
type Store struct {
	repo   repository.EnvVarRepository
	sealer *crypto.Sealer
}

var _ ConfigStore = (*Store)(nil)

// NewStore constructs a Store.
func NewStore(repo repository.EnvVarRepository, sealer *crypto.Sealer) *Store {
	return &Store{repo: repo, sealer: sealer}
}

// GetConfig returns the stored set, empty when the project was never configured.
func (s *Store) GetConfig(ctx context.Context, projectID string) (envset.Set, error) {
	rows, err := s.repo.ListProjectEnvVars(ctx, projectID)
	if err != nil {
		return nil, persistence(err)
	}
	set := make(envset.Set, len(rows))
	for _, row := range rows {
		value, err := s.sealer.Open(row.Value, associated(projectID, row.Key))
		if err != nil {
			return nil, fmt.Errorf("%w: decrypt %s: %v", repository.ErrPersistence, row.Key, err)
		}
		set[row.Key] = value
	}
	return set, nil
}

// SaveConfig writes every key of set in a single transaction.
func (s *Store) SaveConfig(ctx context.Context, projectID string, set envset.Set) error {
	now := time.Now().UTC()
	vars := make([]domain.ProjectEnvVar, 0, len(set))
	for _, key := range set.Keys() {
		sealed, err := s.sealer.Seal(set[key], associated(projectID, key))
		if err != nil {
			return fmt.Errorf("%w: encrypt %s: %v", repository.ErrPersistence, key, err)
		}
		vars = append(vars, domain.ProjectEnvVar{
			ProjectID: projectID,
			Key:       key,
			Value:     sealed,
			UpdatedAt: now,
		})
	}
	if err := s.repo.UpsertProjectEnvVars(ctx, projectID, vars); err != nil {
		return persistence(err)
	}
	return nil
}

func associated(projectID, key string) []byte {
	return []byte(projectID + "/" + key)
}

func persistence(err error) error {
	if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrPersistence) {
		return err
	}
	return fmt.Errorf("%w: %v", repository.ErrPersistence, err)
}
