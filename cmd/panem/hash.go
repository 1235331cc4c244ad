package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/factorysh/panem/pkg/crypto"
)

func newHashCmd() *cobra.Command {
	var rounds int
	cmd := &cobra.Command{
		Use:   "hash [secret]",
		Short: "Print the API_KEY hash for a secret",
		Long: `Print a $pbkdf2-sha256$ hash suitable for the server's API_KEY.

Without an argument the secret is prompted for on a terminal, or read
from the first line of stdin otherwise.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := readSecret(cmd, args)
			if err != nil {
				return err
			}
			hash, err := crypto.HashSecret(secret, rounds)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
	cmd.Flags().IntVar(&rounds, "rounds", crypto.DefaultRounds, "PBKDF2 iterations")
	return cmd
}

func readSecret(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		return nonEmpty(args[0])
	}
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), "Secret: ")
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read secret: %w", err)
		}
		return nonEmpty(string(raw))
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read secret: %w", err)
	}
	return nonEmpty(strings.TrimRight(line, "\r\n"))
}

func nonEmpty(secret string) (string, error) {
	if secret == "" {
		return "", errors.New("secret must not be empty")
	}
	return secret, nil
}
