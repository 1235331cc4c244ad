package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	apiclient "github.com/factorysh/panem/pkg/api/client"
)

func newGetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <project>",
		Short: "Show a project and its environment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := opts.client()
			if err != nil {
				return err
			}
			project, err := cli.GetProject(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), project)
		},
	}
}

func newPutCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "put <project>",
		Short: "Re-submit a project's current environment, triggering the updated event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := opts.client()
			if err != nil {
				return err
			}
			project, err := cli.GetProject(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			updated, err := cli.UpdateProject(cmd.Context(), project.Name, project.Environment, "")
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), updated)
		},
	}
}

func newListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := opts.client()
			if err != nil {
				return err
			}
			projects, err := cli.ListProjects(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), projects)
		},
	}
}

func newCreateCmd(opts *rootOptions) *cobra.Command {
	var callback string
	cmd := &cobra.Command{
		Use:   "create <project> [KEY=VALUE...]",
		Short: "Create a project, triggering the created event",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := parseAssignments(args[1:])
			if err != nil {
				return err
			}
			cli, err := opts.client()
			if err != nil {
				return err
			}
			project, err := cli.CreateProject(cmd.Context(), args[0], env, callback)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), project)
		},
	}
	cmd.Flags().StringVar(&callback, "callback", "", "URL the downstream system reports back to")
	return cmd
}

func newActionCmd(opts *rootOptions, action string) *cobra.Command {
	var callback string
	cmd := &cobra.Command{
		Use:   action + " <project>",
		Short: fmt.Sprintf("Send the %s event for a project", action),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := opts.client()
			if err != nil {
				return err
			}
			result, err := cli.Action(cmd.Context(), args[0], action, callback)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVar(&callback, "callback", "", "URL the downstream system reports back to")
	return cmd
}

func parseAssignments(args []string) ([]apiclient.EnvVar, error) {
	env := make([]apiclient.EnvVar, 0, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("expected KEY=VALUE, got %q", arg)
		}
		env = append(env, apiclient.EnvVar{Key: key, Value: value})
	}
	return env, nil
}
