package project

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/factorysh/panem/internal/domain"
	"github.com/factorysh/panem/internal/repository"
	"github.com/factorysh/panem/internal/repository/memory"
	"github.com/factorysh/panem/internal/service/webhook"
	"github.com/factorysh/panem/pkg/logger"
)

type stubNotifier struct {
	mu     sync.Mutex
	events []webhook.Event
	resp   webhook.Response
	err    error
	// seen captures the stored state at notification time.
	repo repository.ProjectRepository
	seen []*domain.Project
}

func (s *stubNotifier) Notify(ctx context.Context, event webhook.Event) (webhook.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	if s.repo != nil {
		name := ""
		if p, ok := event.Variables["project"].(map[string]string); ok {
			name = p["name"]
		}
		if ps, ok := event.Variables["projects"].([]map[string]string); ok && len(ps) > 0 {
			name = ps[0]["name"]
		}
		project, _ := s.repo.GetProject(ctx, name)
		s.seen = append(s.seen, project)
	}
	return s.resp, s.err
}

func (s *stubNotifier) calls() []webhook.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]webhook.Event(nil), s.events...)
}

func newService(t *testing.T) (Service, *memory.Repository, *stubNotifier) {
	t.Helper()
	repo := memory.New()
	notifier := &stubNotifier{resp: webhook.Response{StatusCode: 200, Body: []byte(`{"status":"done"}`)}}
	return New(repo, notifier, logger.Discard()), repo, notifier
}

func strPtr(s string) *string { return &s }

func TestCreateThenGet(t *testing.T) {
	svc, _, notifier := newService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{
		Name:        "proj",
		Environment: []domain.EnvVar{{Key: "MY_KEY", Value: "value"}, {Key: "OTHER", Value: "x"}},
		Callback:    strPtr("https://ci.example.com/cb"),
	})
	require.NoError(t, err)
	assert.Equal(t, "proj", created.Name)

	got, err := svc.Get(ctx, "proj")
	require.NoError(t, err)
	assert.ElementsMatch(t, []domain.EnvVar{{Key: "OTHER", Value: "x"}, {Key: "MY_KEY", Value: "value"}}, got.View().Environment)

	calls := notifier.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, webhook.KindCreated, calls[0].Kind)
	assert.Equal(t, []map[string]string{{"name": "proj"}}, calls[0].Variables["projects"])
	assert.Equal(t, map[string]string{"MY_KEY": "value", "OTHER": "x"}, calls[0].Variables["environment"])
	assert.Equal(t, strPtr("https://ci.example.com/cb"), calls[0].Variables["callback"])
}

func TestCreateCommitsBeforeNotifying(t *testing.T) {
	svc, repo, notifier := newService(t)
	notifier.repo = repo

	_, err := svc.Create(context.Background(), CreateInput{Name: "proj", Environment: []domain.EnvVar{{Key: "A", Value: "1"}}})
	require.NoError(t, err)

	require.Len(t, notifier.seen, 1)
	require.NotNil(t, notifier.seen[0], "project must be readable when the webhook is called")
	assert.Equal(t, map[string]string{"A": "1"}, notifier.seen[0].Environment)
}

func TestCreateDuplicateConflicts(t *testing.T) {
	svc, _, notifier := newService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, CreateInput{Name: "proj", Environment: []domain.EnvVar{{Key: "A", Value: "1"}}})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateInput{Name: "proj", Environment: []domain.EnvVar{{Key: "B", Value: "2"}}})
	assert.ErrorIs(t, err, repository.ErrConflict)
	_, err = svc.Create(ctx, CreateInput{Name: " proj "})
	assert.ErrorIs(t, err, repository.ErrConflict, "missing environment on a taken name")
	_, err = svc.Create(ctx, CreateInput{Name: "proj", Environment: []domain.EnvVar{{Key: "", Value: "x"}}})
	assert.ErrorIs(t, err, repository.ErrConflict, "bad environment on a taken name")
	assert.Len(t, notifier.calls(), 1)

	got, err := svc.Get(ctx, "proj")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"A": "1"}, got.Environment)
}

func TestCreateValidation(t *testing.T) {
	svc, _, notifier := newService(t)
	cases := map[string]CreateInput{
		"missing name":        {Environment: []domain.EnvVar{}},
		"blank name":          {Name: "   ", Environment: []domain.EnvVar{}},
		"slash in name":       {Name: "a/b", Environment: []domain.EnvVar{}},
		"name too long":       {Name: strings.Repeat("n", 81), Environment: []domain.EnvVar{}},
		"missing environment": {Name: "proj"},
		"empty key":           {Name: "proj", Environment: []domain.EnvVar{{Key: "", Value: "v"}}},
		"dot name":            {Name: ".", Environment: []domain.EnvVar{}},
		"dot dot name":        {Name: "..", Environment: []domain.EnvVar{}},
		"NUL in name":         {Name: "p\x00q", Environment: []domain.EnvVar{}},
		"NUL in key":          {Name: "proj", Environment: []domain.EnvVar{{Key: "K\x00", Value: "v"}}},
		"NUL in value":        {Name: "proj", Environment: []domain.EnvVar{{Key: "K", Value: "a\x00b"}}},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), input)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
	assert.Empty(t, notifier.calls())
}

func TestCreateAcceptsEmptyEnvironment(t *testing.T) {
	svc, _, _ := newService(t)
	project, err := svc.Create(context.Background(), CreateInput{Name: "proj", Environment: []domain.EnvVar{}})
	require.NoError(t, err)
	assert.Empty(t, project.Environment)
}

func TestCreateNotifierFailureKeepsProject(t *testing.T) {
	svc, _, notifier := newService(t)
	notifier.err = webhook.ErrDelivery

	project, err := svc.Create(context.Background(), CreateInput{Name: "proj", Environment: []domain.EnvVar{{Key: "A", Value: "1"}}})
	require.Error(t, err)
	assert.ErrorIs(t, err, webhook.ErrDelivery)
	require.NotNil(t, project)

	got, err := svc.Get(context.Background(), "proj")
	require.NoError(t, err)
	assert.Equal(t, "proj", got.Name)
}

func TestUpdateReplacesEnvironment(t *testing.T) {
	svc, _, notifier := newService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, CreateInput{Name: "proj", Environment: []domain.EnvVar{{Key: "A", Value: "1"}}})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, "proj", UpdateInput{Environment: []domain.EnvVar{{Key: "B", Value: "2"}}})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"B": "2"}, updated.Environment)

	got, err := svc.Get(ctx, "proj")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"B": "2"}, got.Environment)

	calls := notifier.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, webhook.KindUpdated, calls[1].Kind)
	assert.Equal(t, map[string]string{"B": "2"}, calls[1].Variables["environment"])
	assert.Contains(t, calls[1].Variables, "callback")
}

func TestUpdateUnknownProjectDoesNotNotify(t *testing.T) {
	svc, _, notifier := newService(t)
	_, err := svc.Update(context.Background(), "ghost", UpdateInput{Environment: []domain.EnvVar{{Key: "A", Value: "1"}}})
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = svc.Update(context.Background(), "ghost", UpdateInput{})
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Empty(t, notifier.calls())
}

func TestUpdateValidation(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, CreateInput{Name: "proj", Environment: []domain.EnvVar{{Key: "A", Value: "1"}}})
	require.NoError(t, err)

	_, err = svc.Update(ctx, "proj", UpdateInput{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Update(ctx, "proj", UpdateInput{Name: strPtr("renamed"), Environment: []domain.EnvVar{}})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Update(ctx, "proj", UpdateInput{Environment: []domain.EnvVar{{Key: "A", Value: "a\x00b"}}})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Update(ctx, "proj", UpdateInput{Name: strPtr("proj"), Environment: []domain.EnvVar{{Key: "A", Value: "2"}}})
	assert.NoError(t, err)
}

func TestActionNotifiesWithCurrentEnvironment(t *testing.T) {
	svc, _, notifier := newService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, CreateInput{Name: "proj", Environment: []domain.EnvVar{{Key: "A", Value: "1"}}})
	require.NoError(t, err)
	_, err = svc.Update(ctx, "proj", UpdateInput{Environment: []domain.EnvVar{{Key: "A", Value: "2"}}})
	require.NoError(t, err)

	for _, action := range []string{"start", "stop", "restart"} {
		result, err := svc.Action(ctx, "proj", action, nil)
		require.NoError(t, err)
		assert.Nil(t, result.Callback)
		assert.Equal(t, 200, result.Response.StatusCode)
	}

	calls := notifier.calls()
	require.Len(t, calls, 5)
	for i, kind := range []webhook.Kind{webhook.KindStart, webhook.KindStop, webhook.KindRestart} {
		event := calls[2+i]
		assert.Equal(t, kind, event.Kind)
		assert.Equal(t, map[string]string{"name": "proj"}, event.Variables["project"])
		assert.Equal(t, map[string]string{"A": "2"}, event.Variables["environment"])
		assert.Nil(t, event.Variables["callback"].(*string))
	}
}

func TestActionCallbackIsEchoed(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, CreateInput{Name: "proj", Environment: []domain.EnvVar{}})
	require.NoError(t, err)

	result, err := svc.Action(ctx, "proj", "start", strPtr("https://cb"))
	require.NoError(t, err)
	assert.Equal(t, "https://cb", *result.Callback)
}

func TestActionUnknownProjectOrWord(t *testing.T) {
	svc, _, notifier := newService(t)
	ctx := context.Background()

	_, err := svc.Action(ctx, "ghost", "start", nil)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = svc.Create(ctx, CreateInput{Name: "proj", Environment: []domain.EnvVar{}})
	require.NoError(t, err)
	_, err = svc.Action(ctx, "proj", "none", nil)
	assert.ErrorIs(t, err, ErrUnknownAction)

	assert.Len(t, notifier.calls(), 1)
}

func TestActionNotifierFailure(t *testing.T) {
	svc, _, notifier := newService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, CreateInput{Name: "proj", Environment: []domain.EnvVar{}})
	require.NoError(t, err)

	notifier.err = &webhook.StatusError{StatusCode: 500}
	_, err = svc.Action(ctx, "proj", "restart", nil)
	assert.ErrorIs(t, err, webhook.ErrRejected)
	assert.False(t, errors.Is(err, repository.ErrNotFound))
}
