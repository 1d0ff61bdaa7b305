package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/gravitrone/portal-cli/internal/api"
	"github.com/gravitrone/portal-cli/internal/config"
)

// RunInteractiveLogin prompts for a username and API key, checks the key
// against the server, and persists config to path.
func RunInteractiveLogin(in io.Reader, out io.Writer, cfg *config.Config, path string) error {
	reader := bufio.NewReader(in)

	fmt.Fprint(out, "username: ")
	username, err := readLine(reader)
	if err != nil {
		return err
	}
	if username == "" {
		return fmt.Errorf("username is required")
	}

	fmt.Fprint(out, "api key: ")
	key, err := readSecret(in, reader)
	if err != nil {
		return err
	}
	fmt.Fprintln(out)
	if key == "" {
		return fmt.Errorf("api key is required")
	}

	client := api.NewClient(cfg.BaseURL, key)
	if _, err := client.ListAnalyses(); err != nil {
		if api.IsUnauthorized(err) {
			return fmt.Errorf("login failed: api key rejected by %s", client.BaseURL())
		}
		return fmt.Errorf("login failed: %w", err)
	}

	cfg.Username = username
	cfg.APIKey = key
	if err := cfg.Save(path); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Fprintf(out, "logged in as %s\n", username)
	fmt.Fprintf(out, "config saved to %s\n", cfg.File)
	return nil
}

func readLine(reader *bufio.Reader) (string, error) {
	line, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// readSecret reads without echo when in is a terminal.
func readSecret(in io.Reader, reader *bufio.Reader) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		raw, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", fmt.Errorf("read api key: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}
	return readLine(reader)
}

// LoginCmd returns the `portal login` command.
func LoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Store an API key for a portal server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Resolve(configPath(cmd), cmd.Flags())
			if err != nil {
				return err
			}
			return RunInteractiveLogin(cmd.InOrStdin(), cmd.OutOrStdout(), cfg, configPath(cmd))
		},
	}
}
