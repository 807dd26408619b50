package cli

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/devilmonastery/tally/internal/client"
)

// formatDuration formats a duration in a human-friendly way (e.g., "2 days, 3 hours and 45 minutes")
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}

	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	var parts []string
	if days > 0 {
		parts = append(parts, plural(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, plural(minutes, "minute"))
	}
	if len(parts) == 0 && seconds > 0 {
		parts = append(parts, plural(seconds, "second"))
	}

	switch len(parts) {
	case 0:
		return "0 seconds"
	case 1:
		return parts[0]
	default:
		return strings.Join(parts[:len(parts)-1], ", ") + " and " + parts[len(parts)-1]
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func newAuthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authentication commands",
		Long:  `Manage authentication for the Tally CLI`,
	}

	cmd.AddCommand(newAuthLoginCommand())
	cmd.AddCommand(newAuthLogoutCommand())
	cmd.AddCommand(newAuthStatusCommand())
	cmd.AddCommand(newAuthTokenCommand())
	cmd.AddCommand(newAuthRefreshCommand())

	return cmd
}

func newAuthLoginCommand() *cobra.Command {
	var (
		username string
		password string
		email    bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Login to the Tally server",
		Long: `Authenticate with the Tally server and store the token pair for the current context.

Examples:
  # Login with a username (prompts for the password)
  tally auth login --username ana

  # Login through the account endpoint with an email address
  tally auth login --email --username ana@example.com`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := getCliContext(cmd)
			out := cmd.OutOrStdout()

			var err error
			if username == "" || password == "" {
				username, password, err = promptCredentials(cmd.InOrStdin(), out, username)
				if err != nil {
					return err
				}
			}

			cc.Logger.Info("logging in", "username", username, "email", email)
			if email {
				if _, err := cc.API.Auth.LoginEmail(cmd.Context(), username, password); err != nil {
					return err
				}
			} else {
				if _, err := cc.API.Auth.Login(cmd.Context(), username, password); err != nil {
					return err
				}
			}

			if err := cc.Credentials.SetUsername(username); err != nil {
				return fmt.Errorf("failed to save credentials: %w", err)
			}

			fmt.Fprintf(out, "✓ Successfully logged in as %s\n", username)
			if creds, err := cc.Credentials.Load(); err == nil && !creds.ExpiresAt.IsZero() {
				fmt.Fprintf(out, "  Token expires: %s\n", creds.ExpiresAt.Local().Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username (or email with --email); prompted if not provided")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password; prompted if not provided")
	cmd.Flags().BoolVar(&email, "email", false, "Log in with an email address through the account endpoint")

	return cmd
}

func newAuthLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Logout and remove stored credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := getCliContext(cmd)
			if err := cc.API.Auth.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Logged out")
			return nil
		},
	}
}

func newAuthStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show authentication status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := getCliContext(cmd)
			out := cmd.OutOrStdout()

			creds, err := cc.Credentials.Load()
			if err != nil {
				return err
			}
			if creds.AccessToken == "" && creds.RefreshToken == "" {
				fmt.Fprintln(out, "Not logged in")
				return nil
			}

			fmt.Fprintf(out, "Context: %s\n", cc.Config.CurrentContext)
			if creds.Username != "" {
				fmt.Fprintf(out, "Logged in as: %s\n", creds.Username)
			}
			if creds.ExpiresAt.IsZero() {
				fmt.Fprintln(out, "Token expiry: unknown")
				return nil
			}

			localExpiry := creds.ExpiresAt.Local()
			fmt.Fprintf(out, "Token expires: %s\n", localExpiry.Format("2006-01-02 15:04:05 MST"))

			now := time.Now()
			if creds.IsExpired() {
				fmt.Fprintf(out, "⚠  Token expired %s ago - automatic refresh will be attempted on next request\n",
					formatDuration(now.Sub(creds.ExpiresAt)))
			} else {
				fmt.Fprintf(out, "✓  Valid for %s\n", formatDuration(creds.ExpiresAt.Sub(now)))
			}
			return nil
		},
	}
}

func newAuthTokenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Display the current access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := getCliContext(cmd).Credentials.Get(client.AccessTokenKey)
			if err != nil {
				return fmt.Errorf("not logged in: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
}

func newAuthRefreshCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the refresh token for a new access token now",
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := getCliContext(cmd)
			token, err := cc.API.Auth.Refresh(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "✓ Token refreshed")
			if exp, err := client.TokenExpiry(token); err == nil {
				fmt.Fprintf(out, "  Valid for %s\n", formatDuration(time.Until(exp)))
			}
			return nil
		},
	}
}

func newWhoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := getCliContext(cmd).API.Auth.Me(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s)\n", user.Name(), user.Email)
			if !user.IsVerified {
				fmt.Fprintln(out, "⚠  Email address not verified")
			}
			return nil
		},
	}
}

// promptCredentials asks for whatever the flags did not supply. The password
// is read without echo when stdin is a terminal.
func promptCredentials(in io.Reader, out io.Writer, username string) (string, string, error) {
	reader := bufio.NewReader(in)

	if username == "" {
		fmt.Fprint(out, "Username: ")
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return "", "", fmt.Errorf("failed to read username: %w", err)
		}
		username = strings.TrimSpace(line)
	}

	fmt.Fprint(out, "Password: ")
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		passwordBytes, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out) // newline after password input
		if err != nil {
			return "", "", fmt.Errorf("failed to read password: %w", err)
		}
		return username, string(passwordBytes), nil
	}

	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", "", fmt.Errorf("failed to read password: %w", err)
	}
	slog.Debug("read password from non-terminal input", slog.String("component", "cli"))
	return username, strings.TrimRight(line, "\r\n"), nil
}
