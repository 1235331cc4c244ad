// Command panem is a small client for the panem API.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	apiclient "github.com/factorysh/panem/pkg/api/client"
)

const tokenVar = "PANEM_TOKEN"

var buildVersion = "dev"

type rootOptions struct {
	host    string
	port    int
	envFile string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "panem",
		Short: "Manage panem projects and trigger their lifecycle events",
		Long: `panem talks to the panem API.

The API key is read from PANEM_TOKEN, or from a PANEM_TOKEN=... line in .env.

Examples:
  # Show a project
  panem get myproject

  # Redeploy a project with its current environment
  panem put myproject

  # Restart it
  panem restart myproject --host panem.example.com --port 8000`,
		Version:       buildVersion,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&opts.host, "host", "panem", "API host")
	root.PersistentFlags().IntVarP(&opts.port, "port", "p", 80, "API port")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "file searched for PANEM_TOKEN when the variable is unset")

	root.AddCommand(
		newGetCmd(opts),
		newPutCmd(opts),
		newListCmd(opts),
		newCreateCmd(opts),
		newActionCmd(opts, "start"),
		newActionCmd(opts, "stop"),
		newActionCmd(opts, "restart"),
		newHashCmd(),
	)
	return root
}

func (o *rootOptions) baseURL() string {
	return "http://" + net.JoinHostPort(o.host, strconv.Itoa(o.port))
}

func (o *rootOptions) client() (*apiclient.Client, error) {
	token, err := resolveToken(o.envFile)
	if err != nil {
		return nil, err
	}
	return apiclient.New(o.baseURL(), apiclient.WithAPIKey(token))
}

// resolveToken prefers the environment, then the first PANEM_TOKEN line of envFile.
func resolveToken(envFile string) (string, error) {
	if token := strings.TrimSpace(os.Getenv(tokenVar)); token != "" {
		return token, nil
	}
	if envFile != "" {
		f, err := os.Open(envFile)
		if err == nil {
			defer f.Close()
			token, err := tokenFromEnvFile(f)
			if err != nil {
				return "", fmt.Errorf("read %s: %w", envFile, err)
			}
			if token != "" {
				return token, nil
			}
		} else if !os.IsNotExist(err) {
			return "", fmt.Errorf("open %s: %w", envFile, err)
		}
	}
	return "", fmt.Errorf("%s is not set", tokenVar)
}

func tokenFromEnvFile(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, tokenVar) {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok || strings.TrimSpace(key) != tokenVar {
			continue
		}
		return strings.Trim(strings.TrimSpace(value), `"'`), nil
	}
	return "", scanner.Err()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
