package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/fivetwenty-io/redmine-ws/pkg/redmine"
	"github.com/fivetwenty-io/redmine-ws/pkg/rmclient"
)

// currentUserID is the pseudo-identifier for the authenticated account.
const currentUserID redmine.ID = "current"

// NewLoginCommand creates the login command. It authenticates with a
// username and password once, then stores the account's API key so later
// commands skip the Basic-auth handshake.
func NewLoginCommand() *cobra.Command {
	var (
		baseURL  string
		username string
		password string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the account's API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			reader := bufio.NewReader(cmd.InOrStdin())
			config := loadConfig()

			if baseURL == "" {
				baseURL = config.URL
			}

			if baseURL == "" {
				baseURL = prompt(cmd.ErrOrStderr(), reader, "Redmine URL: ")
			}

			if username == "" {
				username = prompt(cmd.ErrOrStderr(), reader, "Username: ")
			}

			if password == "" {
				var err error

				password, err = readPassword(cmd.ErrOrStderr(), reader)
				if err != nil {
					return err
				}
			}

			key, err := fetchAPIKey(cmd.Context(), baseURL, username, password)
			if err != nil {
				return err
			}

			config.URL = rmclient.NormalizeURL(baseURL)
			config.APIKey = key
			config.Username = ""
			config.Password = ""

			err = saveConfigStruct(config)
			if err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Logged in to %s as %s\n", config.URL, username)

			return nil
		},
	}

	cmd.Flags().StringVar(&baseURL, "url", "", "Redmine URL")
	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (prompted when omitted)")

	return cmd
}

func fetchAPIKey(ctx context.Context, baseURL, username, password string) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	cli, err := rmclient.NewWithPassword(ctx, baseURL, username, password)
	if err != nil {
		return "", err
	}

	defer func() { _ = cli.Close() }()

	me, err := cli.Users().Get(ctx, currentUserID)
	if err != nil {
		return "", fmt.Errorf("fetching current user: %w", err)
	}

	key := me.GetString("api_key")
	if key == "" {
		return "", ErrLoginFailed
	}

	return key, nil
}

func prompt(w io.Writer, reader *bufio.Reader, label string) string {
	_, _ = io.WriteString(w, label)

	line, _ := reader.ReadString('\n')

	return strings.TrimSpace(line)
}

// readPassword reads without echo from a terminal and falls back to a plain
// line read otherwise.
func readPassword(w io.Writer, reader *bufio.Reader) (string, error) {
	_, _ = io.WriteString(w, "Password: ")

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, _ := reader.ReadString('\n')

		return strings.TrimSpace(line), nil
	}

	secret, err := term.ReadPassword(fd)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	_, _ = io.WriteString(w, "\n")

	return string(secret), nil
}
