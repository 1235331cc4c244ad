package domain

import (
	"sort"
	"time"
)

// Project is a named record holding the environment handed to deployments.
type Project struct {
	Name        string
	Environment map[string]string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// EnvVar is the external key/value form of one environment entry.
type EnvVar struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ProjectView is the external representation of a Project.
type ProjectView struct {
	Name        string   `json:"name"`
	Environment []EnvVar `json:"environment"`
}

// EnvFromPairs collapses pairs into a map; a repeated key keeps its last value.
func EnvFromPairs(pairs []EnvVar) map[string]string {
	env := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		env[pair.Key] = pair.Value
	}
	return env
}

// PairsFromEnv returns env as pairs sorted by key.
func PairsFromEnv(env map[string]string) []EnvVar {
	pairs := make([]EnvVar, 0, len(env))
	for key, value := range env {
		pairs = append(pairs, EnvVar{Key: key, Value: value})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Key < pairs[j].Key })
	return pairs
}

// CloneEnv copies env so callers never share the store's map.
func CloneEnv(env map[string]string) map[string]string {
	out := make(map[string]string, len(env))
	for k, v := range env {
		out[k] = v
	}
	return out
}

// View converts the project to its external representation.
func (p Project) View() ProjectView {
	return ProjectView{Name: p.Name, Environment: PairsFromEnv(p.Environment)}
}
