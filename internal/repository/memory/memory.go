// Package memory is an in-process ProjectRepository used for local runs and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/factorysh/panem/internal/domain"
	"github.com/factorysh/panem/internal/repository"
)

// Repository keeps projects in a mutex-guarded map.
type Repository struct {
	mu       sync.RWMutex
	projects map[string]domain.Project
	now      func() time.Time
}

var _ repository.ProjectRepository = (*Repository)(nil)

// New constructs an empty Repository.
func New() *Repository {
	return &Repository{
		projects: make(map[string]domain.Project),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ListProjects returns all projects ordered by name.
func (r *Repository) ListProjects(ctx context.Context) ([]domain.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Project, 0, len(r.projects))
	for _, project := range r.projects {
		out = append(out, clone(project))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// GetProject returns the named project.
func (r *Repository) GetProject(ctx context.Context, name string) (*domain.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	project, ok := r.projects[name]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := clone(project)
	return &out, nil
}

// CreateProject inserts a project unless the name is taken.
func (r *Repository) CreateProject(ctx context.Context, name string, env map[string]string) (*domain.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.projects[name]; exists {
		return nil, repository.ErrConflict
	}
	now := r.now()
	project := domain.Project{
		Name:        name,
		Environment: domain.CloneEnv(env),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.projects[name] = project
	out := clone(project)
	return &out, nil
}

// ReplaceEnvironment overwrites the environment of an existing project.
func (r *Repository) ReplaceEnvironment(ctx context.Context, name string, env map[string]string) (*domain.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	project, ok := r.projects[name]
	if !ok {
		return nil, repository.ErrNotFound
	}
	project.Environment = domain.CloneEnv(env)
	project.UpdatedAt = r.now()
	r.projects[name] = project
	out := clone(project)
	return &out, nil
}

// Ping always succeeds.
func (r *Repository) Ping(ctx context.Context) error {
	return nil
}

func clone(p domain.Project) domain.Project {
	p.Environment = domain.CloneEnv(p.Environment)
	return p
}
