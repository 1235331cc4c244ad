package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/factorysh/panem/internal/domain"
	"github.com/factorysh/panem/internal/repository"
)

const uniqueViolation = "23505"

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ repository.ProjectRepository = (*Repository)(nil)

// ListProjects returns every project ordered by name.
func (r *Repository) ListProjects(ctx context.Context) ([]domain.Project, error) {
	const query = `SELECT name, environment, created_at, updated_at FROM projects ORDER BY name`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	projects := make([]domain.Project, 0)
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *project)
	}
	return projects, rows.Err()
}

// GetProject fetches a project by name.
func (r *Repository) GetProject(ctx context.Context, name string) (*domain.Project, error) {
	const query = `SELECT name, environment, created_at, updated_at FROM projects WHERE name = $1`
	project, err := scanProject(r.pool.QueryRow(ctx, query, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return project, nil
}

// CreateProject inserts a project. The insert and the uniqueness check are one
// statement, so concurrent creators of the same name see exactly one winner.
func (r *Repository) CreateProject(ctx context.Context, name string, env map[string]string) (*domain.Project, error) {
	payload, err := encodeEnv(env)
	if err != nil {
		return nil, err
	}
	const query = `INSERT INTO projects (name, environment, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (name) DO NOTHING
		RETURNING name, environment, created_at, updated_at`
	project, err := scanProject(r.pool.QueryRow(ctx, query, name, payload))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.Is(err, pgx.ErrNoRows) || (errors.As(err, &pgErr) && pgErr.Code == uniqueViolation) {
			return nil, repository.ErrConflict
		}
		return nil, err
	}
	return project, nil
}

// ReplaceEnvironment overwrites the stored environment.
func (r *Repository) ReplaceEnvironment(ctx context.Context, name string, env map[string]string) (*domain.Project, error) {
	payload, err := encodeEnv(env)
	if err != nil {
		return nil, err
	}
	const query = `UPDATE projects SET environment = $2, updated_at = NOW()
		WHERE name = $1
		RETURNING name, environment, created_at, updated_at`
	project, err := scanProject(r.pool.QueryRow(ctx, query, name, payload))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return project, nil
}

// Ping checks database connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func scanProject(row pgx.Row) (*domain.Project, error) {
	var (
		project   domain.Project
		raw       []byte
		createdAt time.Time
		updatedAt time.Time
	)
	if err := row.Scan(&project.Name, &raw, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	env, err := decodeEnv(raw)
	if err != nil {
		return nil, fmt.Errorf("decode environment of %s: %w", project.Name, err)
	}
	project.Environment = env
	project.CreatedAt = createdAt.UTC()
	project.UpdatedAt = updatedAt.UTC()
	return &project, nil
}

func encodeEnv(env map[string]string) ([]byte, error) {
	if env == nil {
		env = map[string]string{}
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode environment: %w", err)
	}
	return payload, nil
}

func decodeEnv(raw []byte) (map[string]string, error) {
	env := map[string]string{}
	if len(raw) == 0 {
		return env, nil
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	return env, nil
}
