package repository

import (
	"context"

	"github.com/multision/SupaConsole/internal/domain"
)

// UserRepository persists users.
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
}

// ProjectRepository persists projects.
type ProjectRepository interface {
	CreateProject(ctx context.Context, project *domain.Project) error
	GetProjectByID(ctx context.Context, projectID string) (*domain.Project, error)
	ListProjectsByOwner(ctx context.Context, ownerID string) ([]domain.Project, error)
	UpdateProjectStatus(ctx context.Context, projectID, status string) error
	DeleteProject(ctx context.Context, projectID string) error
}

// EnvVarRepository persists encrypted project configuration values.
type EnvVarRepository interface {
	ListProjectEnvVars(ctx context.Context, projectID string) ([]domain.ProjectEnvVar, error)
	UpsertProjectEnvVars(ctx context.Context, projectID string, vars []domain.ProjectEnvVar) error
}
