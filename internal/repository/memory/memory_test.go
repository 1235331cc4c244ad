package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/factorysh/panem/internal/repository"
)

func TestCreateThenGet(t *testing.T) {
	repo := New()
	ctx := context.Background()

	created, err := repo.CreateProject(ctx, "proj", map[string]string{"MY_KEY": "value"})
	require.NoError(t, err)
	assert.Equal(t, "proj", created.Name)
	assert.False(t, created.CreatedAt.IsZero())

	got, err := repo.GetProject(ctx, "proj")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"MY_KEY": "value"}, got.Environment)
}

func TestCreateDuplicateConflictsAndKeepsOriginal(t *testing.T) {
	repo := New()
	ctx := context.Background()
	_, err := repo.CreateProject(ctx, "proj", map[string]string{"A": "1"})
	require.NoError(t, err)

	_, err = repo.CreateProject(ctx, "proj", map[string]string{"B": "2"})
	assert.ErrorIs(t, err, repository.ErrConflict)

	got, err := repo.GetProject(ctx, "proj")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"A": "1"}, got.Environment)
}

func TestReplaceEnvironmentReplacesWholeMap(t *testing.T) {
	repo := New()
	ctx := context.Background()
	_, err := repo.CreateProject(ctx, "proj", map[string]string{"A": "1"})
	require.NoError(t, err)

	updated, err := repo.ReplaceEnvironment(ctx, "proj", map[string]string{"B": "2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"B": "2"}, updated.Environment)

	got, err := repo.GetProject(ctx, "proj")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"B": "2"}, got.Environment)
}

func TestReplaceEnvironmentUnknownProject(t *testing.T) {
	_, err := New().ReplaceEnvironment(context.Background(), "ghost", map[string]string{})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestGetUnknownProject(t *testing.T) {
	_, err := New().GetProject(context.Background(), "ghost")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestReturnedProjectsDoNotAliasStore(t *testing.T) {
	repo := New()
	ctx := context.Background()
	env := map[string]string{"A": "1"}
	created, err := repo.CreateProject(ctx, "proj", env)
	require.NoError(t, err)

	env["A"] = "caller"
	created.Environment["A"] = "returned"

	got, err := repo.GetProject(ctx, "proj")
	require.NoError(t, err)
	assert.Equal(t, "1", got.Environment["A"])
}

func TestListProjectsOrderedByName(t *testing.T) {
	repo := New()
	ctx := context.Background()
	for _, name := range []string{"charlie", "alpha", "bravo"} {
		_, err := repo.CreateProject(ctx, name, nil)
		require.NoError(t, err)
	}
	projects, err := repo.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 3)
	assert.Equal(t, "alpha", projects[0].Name)
	assert.Equal(t, "charlie", projects[2].Name)
}

func TestConcurrentCreateSingleWinner(t *testing.T) {
	repo := New()
	ctx := context.Background()
	var wins, conflicts atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.CreateProject(ctx, "race", map[string]string{"N": fmt.Sprint(i)})
			switch {
			case err == nil:
				wins.Add(1)
			case assert.ErrorIs(t, err, repository.ErrConflict):
				conflicts.Add(1)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(31), conflicts.Load())
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().CreateProject(ctx, "proj", nil)
	assert.ErrorIs(t, err, context.Canceled)
}
