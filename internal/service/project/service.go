package project

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"log/slog"

	"github.com/factorysh/panem/internal/domain"
	"github.com/factorysh/panem/internal/repository"
	"github.com/factorysh/panem/internal/service/webhook"
)

const maxNameLength = 80

var (
	// ErrInvalidInput marks malformed or missing request fields.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnknownAction marks an action word other than start, stop or restart.
	ErrUnknownAction = errors.New("unknown action")

	errMissingName        = fmt.Errorf("%w: project name is required", ErrInvalidInput)
	errNameTooLong        = fmt.Errorf("%w: project name must be at most %d characters", ErrInvalidInput, maxNameLength)
	errNameSlash          = fmt.Errorf("%w: project name must not contain '/'", ErrInvalidInput)
	errNameDots           = fmt.Errorf("%w: project name must not be '.' or '..'", ErrInvalidInput)
	errNameNUL            = fmt.Errorf("%w: project name must not contain NUL", ErrInvalidInput)
	errEnvNUL             = fmt.Errorf("%w: environment must not contain NUL", ErrInvalidInput)
	errMissingEnvironment = fmt.Errorf("%w: environment is required", ErrInvalidInput)
	errEmptyEnvKey        = fmt.Errorf("%w: environment keys must not be empty", ErrInvalidInput)
	errNameMismatch       = fmt.Errorf("%w: project name cannot be changed", ErrInvalidInput)
)

// Notifier delivers lifecycle events.
type Notifier interface {
	Notify(ctx context.Context, event webhook.Event) (webhook.Response, error)
}

// CreateInput encapsulates project creation attributes. A nil Environment
// means the field was absent from the request.
type CreateInput struct {
	Name        string
	Environment []domain.EnvVar
	Callback    *string
}

// UpdateInput replaces a project's environment. Name, when set, must match the
// project being updated.
type UpdateInput struct {
	Name        *string
	Environment []domain.EnvVar
	Callback    *string
}

// ActionResult is what an action reports back to the caller.
type ActionResult struct {
	Callback *string
	Response webhook.Response
}

// Service ties record mutation to event notification.
type Service struct {
	projects repository.ProjectRepository
	notifier Notifier
	logger   *slog.Logger
}

// New returns a project service.
func New(projects repository.ProjectRepository, notifier Notifier, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return Service{projects: projects, notifier: notifier, logger: logger}
}

// List returns all projects.
func (s Service) List(ctx context.Context) ([]domain.Project, error) {
	return s.projects.ListProjects(ctx)
}

// Get returns the named project or repository.ErrNotFound.
func (s Service) Get(ctx context.Context, name string) (*domain.Project, error) {
	if strings.TrimSpace(name) == "" {
		return nil, repository.ErrNotFound
	}
	return s.projects.GetProject(ctx, name)
}

// Create stores a new project, then sends the created event. A taken name is
// a conflict whatever the environment holds. When the notification fails the
// stored project is still returned alongside the error.
func (s Service) Create(ctx context.Context, input CreateInput) (*domain.Project, error) {
	name := strings.TrimSpace(input.Name)
	if err := validateName(name); err != nil {
		return nil, err
	}
	switch _, err := s.projects.GetProject(ctx, name); {
	case err == nil:
		return nil, repository.ErrConflict
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}
	env, err := validateEnvironment(input.Environment)
	if err != nil {
		return nil, err
	}
	project, err := s.projects.CreateProject(ctx, name, env)
	if err != nil {
		return nil, err
	}
	s.logger.Info("project created", "project", project.Name, "keys", len(project.Environment))
	if _, err := s.notify(ctx, webhook.KindCreated, deployVariables(project, input.Callback)); err != nil {
		return project, err
	}
	return project, nil
}

// Update replaces the environment of an existing project, then sends the
// updated event. An unknown name is reported before any body validation.
func (s Service) Update(ctx context.Context, name string, input UpdateInput) (*domain.Project, error) {
	if strings.TrimSpace(name) == "" {
		return nil, repository.ErrNotFound
	}
	if _, err := s.projects.GetProject(ctx, name); err != nil {
		return nil, err
	}
	if input.Name != nil && strings.TrimSpace(*input.Name) != name {
		return nil, errNameMismatch
	}
	env, err := validateEnvironment(input.Environment)
	if err != nil {
		return nil, err
	}
	project, err := s.projects.ReplaceEnvironment(ctx, name, env)
	if err != nil {
		return nil, err
	}
	s.logger.Info("project environment replaced", "project", project.Name, "keys", len(project.Environment))
	if _, err := s.notify(ctx, webhook.KindUpdated, deployVariables(project, input.Callback)); err != nil {
		return project, err
	}
	return project, nil
}

// Action forwards start, stop or restart for an existing project. Nothing is
// stored; the webhook decides what happens.
func (s Service) Action(ctx context.Context, name, action string, callback *string) (ActionResult, error) {
	kind, ok := webhook.ParseAction(action)
	if !ok {
		return ActionResult{}, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	project, err := s.Get(ctx, name)
	if err != nil {
		return ActionResult{}, err
	}
	resp, err := s.notify(ctx, kind, actionVariables(project, callback))
	if err != nil {
		return ActionResult{Callback: callback}, err
	}
	return ActionResult{Callback: callback, Response: resp}, nil
}

func (s Service) notify(ctx context.Context, kind webhook.Kind, variables map[string]any) (webhook.Response, error) {
	resp, err := s.notifier.Notify(ctx, webhook.Event{Kind: kind, Variables: variables})
	if err != nil {
		s.logger.Warn("notification failed after commit", "event", kind, "error", err)
		return webhook.Response{}, fmt.Errorf("notify %s: %w", kind, err)
	}
	return resp, nil
}

func deployVariables(project *domain.Project, callback *string) map[string]any {
	return map[string]any{
		"projects":    []map[string]string{{"name": project.Name}},
		"environment": domain.CloneEnv(project.Environment),
		"callback":    callback,
	}
}

func actionVariables(project *domain.Project, callback *string) map[string]any {
	return map[string]any{
		"project":     map[string]string{"name": project.Name},
		"environment": domain.CloneEnv(project.Environment),
		"callback":    callback,
	}
}

func validateName(name string) error {
	switch {
	case name == "":
		return errMissingName
	case utf8.RuneCountInString(name) > maxNameLength:
		return errNameTooLong
	case strings.Contains(name, "/"):
		return errNameSlash
	case name == "." || name == "..":
		return errNameDots
	case strings.ContainsRune(name, 0):
		return errNameNUL
	}
	return nil
}

func validateEnvironment(pairs []domain.EnvVar) (map[string]string, error) {
	if pairs == nil {
		return nil, errMissingEnvironment
	}
	for _, pair := range pairs {
		if pair.Key == "" {
			return nil, errEmptyEnvKey
		}
		if strings.ContainsRune(pair.Key, 0) || strings.ContainsRune(pair.Value, 0) {
			return nil, errEnvNUL
		}
	}
	return domain.EnvFromPairs(pairs), nil
}
