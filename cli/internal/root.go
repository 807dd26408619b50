package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/spf13/cobra"

	"github.com/devilmonastery/tally/internal/api"
	"github.com/devilmonastery/tally/internal/client"
	"github.com/devilmonastery/tally/internal/pkg/logger"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const cliContextKey contextKey = "cliContext"

// CliContext holds shared CLI context
type CliContext struct {
	Config      *Config
	Context     *Context
	Credentials *FileCredentials
	Client      *client.Client
	API         *api.API
	Logger      *slog.Logger
}

// Global logging flags
var (
	logLevel      string
	logFile       string
	logToStderr   bool
	alsoLogStderr bool
	logFormat     string
)

// NewRootCommand creates the root cobra command
func NewRootCommand() *cobra.Command {
	var ctx CliContext

	rootCmd := &cobra.Command{
		Use:           "tally",
		Short:         "CLI for splitting bills with Tally",
		Long:          `A command line interface for groups, expenses and activity on the Tally REST API.`,
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors (main.go handles it)
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := setupLogging(); err != nil {
				return fmt.Errorf("failed to setup logging: %w", err)
			}

			ctx.Logger = logger.WithCommand(slog.Default().With("component", "cli"), cmd.CommandPath())
			ctx.Logger.Debug("CLI started")

			// Config commands manage ~/.tally themselves
			if cmd.Name() == "config" || (cmd.Parent() != nil && cmd.Parent().Name() == "config") {
				return nil
			}

			if err := ctx.connect(cmd.ErrOrStderr()); err != nil {
				return err
			}

			cmd.SetContext(context.WithValue(cmd.Context(), cliContextKey, &ctx))
			return nil
		},
	}

	rootCmd.AddCommand(newAuthCommand())
	rootCmd.AddCommand(newWhoamiCommand())
	rootCmd.AddCommand(newConfigCommand())
	rootCmd.AddCommand(newGroupsCommand())
	rootCmd.AddCommand(newExpensesCommand())
	rootCmd.AddCommand(newCategoriesCommand())
	rootCmd.AddCommand(newActivitiesCommand())

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn",
		"Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "",
		"Log file path (if specified, logs to file instead of stderr)")
	rootCmd.PersistentFlags().BoolVar(&logToStderr, "logtostderr", false,
		"Log to stderr (default behavior unless --log-file specified)")
	rootCmd.PersistentFlags().BoolVar(&alsoLogStderr, "alsologtostderr", false,
		"Log to both file and stderr")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text",
		"Log format (text, json)")

	return rootCmd
}

// connect builds the authenticated client for the current context
func (c *CliContext) connect(stderr io.Writer) error {
	config, err := LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	current, err := config.GetCurrentContext()
	if err != nil {
		return err
	}
	baseURL, err := config.BaseURL()
	if err != nil {
		return err
	}

	creds, err := NewFileCredentials(config.CurrentContext)
	if err != nil {
		return err
	}

	apiClient, err := client.New(baseURL, creds,
		client.WithRefreshTransport(current.RefreshTransport()),
		client.WithLoginNavigator(newLoginNavigator(stderr)),
		client.WithLogger(slog.Default()),
	)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	c.Config = config
	c.Context = current
	c.Credentials = creds
	c.Client = apiClient
	c.API = api.New(apiClient)
	return nil
}

// newLoginNavigator tells the user to log in again, once per process
func newLoginNavigator(w io.Writer) client.Navigator {
	var once sync.Once
	return client.NavigatorFunc(func(ctx context.Context, cause error) {
		once.Do(func() {
			slog.Debug("session expired", slog.String("component", "cli"), slog.String("cause", cause.Error()))
			fmt.Fprintln(w, "session expired, run 'tally auth login'")
		})
	})
}

// setupLogging configures the global logger based on CLI flags
func setupLogging() error {
	// Default to stderr logging unless file is specified
	if logFile == "" {
		logToStderr = true
	}

	cfg := logger.Config{
		Level:         logger.ParseLevel(logLevel),
		LogFile:       logFile,
		LogToStderr:   logToStderr,
		AlsoLogStderr: alsoLogStderr,
		Format:        logFormat,
	}

	globalLogger, err := logger.SetupLogger(cfg)
	if err != nil {
		return err
	}

	slog.SetDefault(globalLogger)
	return nil
}

// getCliContext extracts the CLI context from the command context
func getCliContext(cmd *cobra.Command) *CliContext {
	return cmd.Context().Value(cliContextKey).(*CliContext)
}
