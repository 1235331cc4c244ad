package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNormalisesBaseURL(t *testing.T) {
	cli, err := New("panem.local:8000/")
	require.NoError(t, err)
	assert.Equal(t, "http://panem.local:8000", cli.BaseURL())

	cli, err = New("")
	require.NoError(t, err)
	assert.Equal(t, "http://panem", cli.BaseURL())
}

func TestClientRoundTrips(t *testing.T) {
	type call struct {
		method, path, key string
		body              map[string]any
	}
	var calls []call
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		calls = append(calls, call{r.Method, r.URL.EscapedPath(), r.Header.Get(APIKeyHeader), body})
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/projects/":
			_, _ = w.Write([]byte(`[{"name":"a","environment":[]}]`))
		case r.Method == http.MethodPost && r.URL.Path == "/projects/":
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"name":"a","environment":[{"key":"K","value":"V"}]}`))
		case r.Method == http.MethodPut:
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"name":"a","environment":[]}`))
		case r.Method == http.MethodPost:
			_, _ = w.Write([]byte(`{"callback":null,"webhook":{"status":202,"body":"queued"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"project not found"}`))
		}
	}))
	defer srv.Close()

	cli, err := New(srv.URL, WithAPIKey(" key "))
	require.NoError(t, err)
	ctx := context.Background()

	projects, err := cli.ListProjects(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Project{{Name: "a", Environment: []EnvVar{}}}, projects)

	created, err := cli.CreateProject(ctx, "a", []EnvVar{{Key: "K", Value: "V"}}, "")
	require.NoError(t, err)
	assert.Equal(t, "V", created.Environment[0].Value)

	_, err = cli.UpdateProject(ctx, "a", nil, "https://cb")
	require.NoError(t, err)

	result, err := cli.Action(ctx, "a", "stop", "")
	require.NoError(t, err)
	assert.Nil(t, result.Callback)
	assert.Equal(t, 202, result.Webhook.Status)
	assert.JSONEq(t, `"queued"`, string(result.Webhook.Body))

	_, err = cli.GetProject(ctx, "a b")
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusNotFound))
	assert.Contains(t, err.Error(), "project not found")

	require.Len(t, calls, 5)
	for _, c := range calls {
		assert.Equal(t, "key", c.key)
	}
	assert.Equal(t, map[string]any{"name": "a", "environment": []any{map[string]any{"key": "K", "value": "V"}}}, calls[1].body)
	assert.Equal(t, map[string]any{"environment": []any{}, "callback": "https://cb"}, calls[2].body)
	assert.Equal(t, "/projects/a/_stop", calls[3].path)
	assert.Equal(t, "/projects/a%20b/", calls[4].path)
}
