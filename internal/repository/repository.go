package repository

import (
	"context"

	"github.com/factorysh/panem/internal/domain"
)

// ProjectRepository persists projects keyed by name. Every mutating call has
// committed the full record by the time it returns.
type ProjectRepository interface {
	ListProjects(ctx context.Context) ([]domain.Project, error)
	GetProject(ctx context.Context, name string) (*domain.Project, error)
	// CreateProject inserts atomically; an existing name yields ErrConflict.
	CreateProject(ctx context.Context, name string, env map[string]string) (*domain.Project, error)
	// ReplaceEnvironment overwrites the whole environment; a missing name yields ErrNotFound.
	ReplaceEnvironment(ctx context.Context, name string, env map[string]string) (*domain.Project, error)
	Ping(ctx context.Context) error
}
