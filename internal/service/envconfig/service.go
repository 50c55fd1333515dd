package envconfig

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/multision/SupaConsole/internal/domain"
	"github.com/multision/SupaConsole/pkg/envset"
	"github.com/multision/SupaConsole/pkg/jwt"
)

// EventConfigUpdated is broadcast after a configuration is saved.
const EventConfigUpdated = "config_updated"

// Projects resolves projects owned by a principal.
type Projects interface {
	Get(ctx context.Context, principal domain.Principal, projectID string) (*domain.Project, error)
	MarkConfigured(ctx context.Context, project *domain.Project) error
}

// Exporter writes a configuration set where docker compose can read it.
type Exporter interface {
	WriteEnv(projectID string, set envset.Set) (string, error)
}

// Notifier publishes configuration events to live subscribers.
type Notifier interface {
	PublishConfig(event domain.ConfigEvent)
}

// Options configures optional collaborators.
type Options struct {
	Clock    func() time.Time
	Random   envset.RandomSource
	Exporter Exporter
	Notifier Notifier
}

// Service manages the configuration set of each project.
type Service struct {
	projects Projects
	store    ConfigStore
	logger   *slog.Logger
	now      func() time.Time
	random   envset.RandomSource
	exporter Exporter
	notifier Notifier

	randMu sync.Mutex
	locks  sync.Map
}

// New constructs a Service.
func New(projects Projects, store ConfigStore, logger *slog.Logger, opts Options) *Service {
	svc := &Service{
		projects: projects,
		store:    store,
		logger:   logger,
		now:      opts.Clock,
		random:   opts.Random,
		exporter: opts.Exporter,
		notifier: opts.Notifier,
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	if svc.random == nil {
		svc.random = envset.NewRandomSource()
	}
	return svc
}

// Defaults returns the derived configuration used to populate a new form.
// A nil timestamp samples the service clock.
func (s *Service) Defaults(ctx context.Context, principal domain.Principal, projectID string, timestamp *int64) (envset.Set, error) {
	if _, err := s.projects.Get(ctx, principal, projectID); err != nil {
		return nil, err
	}
	ts := s.now().UnixMilli()
	if timestamp != nil {
		ts = *timestamp
	}
	return envset.Derive(ts), nil
}

// Get returns the stored configuration, empty when never configured.
func (s *Service) Get(ctx context.Context, principal domain.Principal, projectID string) (envset.Set, error) {
	project, err := s.projects.Get(ctx, principal, projectID)
	if err != nil {
		return nil, err
	}
	return s.store.GetConfig(ctx, project.ID)
}

// Update validates raw as an update object and merges it into the stored
// configuration. The first update of a project merges into a derived set.
func (s *Service) Update(ctx context.Context, principal domain.Principal, projectID string, raw []byte) (envset.Set, error) {
	project, err := s.projects.Get(ctx, principal, projectID)
	if err != nil {
		return nil, err
	}
	update, err := envset.DecodeUpdate(raw)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, project, update)
}

// Regenerate replaces every secret and port of the project with fresh values.
func (s *Service) Regenerate(ctx context.Context, principal domain.Principal, projectID string) (envset.Set, error) {
	project, err := s.projects.Get(ctx, principal, projectID)
	if err != nil {
		return nil, err
	}
	timestamp := s.now().UnixMilli()
	s.randMu.Lock()
	update, err := envset.Regenerate(timestamp, s.random, jwt.IssueRoleKey)
	s.randMu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.applyAt(ctx, project, update, timestamp)
}

// GenerateKeys mints an anon and a service role key for jwtSecret.
func (s *Service) GenerateKeys(_ context.Context, principal domain.Principal, jwtSecret string) (jwt.KeyPair, error) {
	if principal.IsZero() {
		return jwt.KeyPair{}, domain.ErrUnauthorized
	}
	return jwt.IssueKeyPair(jwtSecret)
}

// Render writes the stored configuration in dotenv format.
func (s *Service) Render(ctx context.Context, principal domain.Principal, projectID string, w io.Writer) error {
	set, err := s.Get(ctx, principal, projectID)
	if err != nil {
		return err
	}
	return envset.Render(w, set)
}

// Sync rewrites the project's exported .env from the stored configuration.
// It returns an empty path when nothing is stored or no exporter is set.
func (s *Service) Sync(ctx context.Context, principal domain.Principal, projectID string) (string, error) {
	set, err := s.Get(ctx, principal, projectID)
	if err != nil {
		return "", err
	}
	if len(set) == 0 || s.exporter == nil {
		return "", nil
	}
	return s.exporter.WriteEnv(projectID, set)
}

func (s *Service) apply(ctx context.Context, project *domain.Project, update envset.Set) (envset.Set, error) {
	return s.applyAt(ctx, project, update, s.now().UnixMilli())
}

// applyAt merges update into the stored set. timestamp seeds the base set
// when the project has no stored configuration yet.
func (s *Service) applyAt(ctx context.Context, project *domain.Project, update envset.Set, timestamp int64) (envset.Set, error) {
	unlock := s.lock(project.ID)
	defer unlock()

	existing, err := s.store.GetConfig(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	if len(existing) == 0 {
		existing = envset.Derive(timestamp)
	}
	merged := envset.Merge(existing, update)
	if err := s.store.SaveConfig(ctx, project.ID, merged); err != nil {
		s.logger.Error("config save failed", "project_id", project.ID, "error", err)
		return nil, err
	}
	if err := s.projects.MarkConfigured(ctx, project); err != nil {
		s.logger.Warn("project status update failed", "project_id", project.ID, "error", err)
	}
	s.logger.Info("config saved", "project_id", project.ID, "keys", len(update))

	s.export(project, merged)
	s.notify(project.ID, update)
	return merged, nil
}

func (s *Service) export(project *domain.Project, set envset.Set) {
	if s.exporter == nil {
		return
	}
	path, err := s.exporter.WriteEnv(project.ID, set)
	if err != nil {
		s.logger.Warn("env export failed", "project_id", project.ID, "error", err)
		return
	}
	s.logger.Debug("env exported", "project_id", project.ID, "path", path)
}

func (s *Service) notify(projectID string, update envset.Set) {
	if s.notifier == nil {
		return
	}
	s.notifier.PublishConfig(domain.ConfigEvent{
		ProjectID: projectID,
		Event:     EventConfigUpdated,
		Keys:      update.Keys(),
		At:        s.now().UTC(),
	})
}

func (s *Service) lock(projectID string) func() {
	v, _ := s.locks.LoadOrStore(projectID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

