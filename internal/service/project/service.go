package project

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/multision/SupaConsole/internal/domain"
	"github.com/multision/SupaConsole/internal/repository"
)

const maxNameLength = 64

// Workspace manages project directories on disk.
type Workspace interface {
	Prepare(ctx context.Context, projectID string) (string, error)
	Remove(projectID string) error
}

// CreateInput encapsulates project creation attributes.
type CreateInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Service orchestrates project management.
type Service struct {
	projects  repository.ProjectRepository
	workspace Workspace
	logger    *slog.Logger
}

// New returns a project service.
func New(projects repository.ProjectRepository, workspace Workspace, logger *slog.Logger) Service {
	return Service{projects: projects, workspace: workspace, logger: logger}
}

var (
	errInvalidProjectName = fmt.Errorf("%w: project name is required", repository.ErrInvalidArgument)
	errProjectNameTooLong = fmt.Errorf("%w: project name must be at most %d characters", repository.ErrInvalidArgument, maxNameLength)
	errMissingProjectID   = fmt.Errorf("%w: project id required", repository.ErrInvalidArgument)
	errWorkspaceDisabled  = errors.New("project workspace is not configured")
)

// Create registers a new project owned by the principal.
func (s Service) Create(ctx context.Context, principal domain.Principal, input CreateInput) (*domain.Project, error) {
	if principal.IsZero() {
		return nil, domain.ErrUnauthorized
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, errInvalidProjectName
	}
	if len(name) > maxNameLength {
		return nil, errProjectNameTooLong
	}
	now := time.Now().UTC()
	project := &domain.Project{
		ID:          uuid.NewString(),
		OwnerID:     principal.UserID,
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		Status:      domain.ProjectStatusCreated,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.projects.CreateProject(ctx, project); err != nil {
		return nil, err
	}
	s.logger.Info("project created", "project_id", project.ID, "owner_id", project.OwnerID)
	return project, nil
}

// List returns the principal's projects.
func (s Service) List(ctx context.Context, principal domain.Principal) ([]domain.Project, error) {
	if principal.IsZero() {
		return nil, domain.ErrUnauthorized
	}
	return s.projects.ListProjectsByOwner(ctx, principal.UserID)
}

// Get returns a project owned by the principal. Projects of other users
// are reported as not found.
func (s Service) Get(ctx context.Context, principal domain.Principal, projectID string) (*domain.Project, error) {
	if principal.IsZero() {
		return nil, domain.ErrUnauthorized
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, errMissingProjectID
	}
	project, err := s.projects.GetProjectByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.OwnerID != principal.UserID {
		return nil, repository.ErrNotFound
	}
	return project, nil
}

// Initialize copies the reference compose files into the project workspace.
func (s Service) Initialize(ctx context.Context, principal domain.Principal, projectID string) (*domain.Project, error) {
	project, err := s.Get(ctx, principal, projectID)
	if err != nil {
		return nil, err
	}
	if s.workspace == nil {
		return nil, errWorkspaceDisabled
	}
	dir, err := s.workspace.Prepare(ctx, project.ID)
	if err != nil {
		s.logger.Error("workspace preparation failed", "project_id", project.ID, "error", err)
		return nil, err
	}
	if project.Status == domain.ProjectStatusCreated {
		if err := s.projects.UpdateProjectStatus(ctx, project.ID, domain.ProjectStatusInitialized); err != nil {
			return nil, err
		}
		project.Status = domain.ProjectStatusInitialized
	}
	s.logger.Info("project initialized", "project_id", project.ID, "dir", dir)
	return project, nil
}

// MarkConfigured records that a configuration has been stored.
func (s Service) MarkConfigured(ctx context.Context, project *domain.Project) error {
	if project == nil || project.Status == domain.ProjectStatusConfigured {
		return nil
	}
	if err := s.projects.UpdateProjectStatus(ctx, project.ID, domain.ProjectStatusConfigured); err != nil {
		return err
	}
	project.Status = domain.ProjectStatusConfigured
	return nil
}

// Delete removes a project, its stored configuration and its workspace.
func (s Service) Delete(ctx context.Context, principal domain.Principal, projectID string) error {
	project, err := s.Get(ctx, principal, projectID)
	if err != nil {
		return err
	}
	if err := s.projects.DeleteProject(ctx, project.ID); err != nil {
		return err
	}
	if s.workspace != nil {
		if err := s.workspace.Remove(project.ID); err != nil {
			s.logger.Warn("workspace cleanup failed", "project_id", project.ID, "error", err)
		}
	}
	s.logger.Info("project deleted", "project_id", project.ID)
	return nil
}
