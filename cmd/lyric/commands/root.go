// Package commands implements the CLI commands for the lyric build tool.
package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.trai.ch/lyric/internal/app"
	"go.trai.ch/lyric/internal/build"
	"go.trai.ch/lyric/internal/core/domain"
)

// CLI represents the command line interface for lyric.
type CLI struct {
	app      Application
	rootCmd  *cobra.Command
	jsonLogs func(enable bool)
}

// Application represents the application logic interface.
type Application interface {
	Build(ctx context.Context, targets []domain.TaskID, opts app.BuildOptions) (*app.BuildResult, error)
	Watch(ctx context.Context, targets []domain.TaskID, opts app.BuildOptions) error
	Clean(ctx context.Context, opts app.CleanOptions) error
	Diagnostics(ctx context.Context, targets []domain.TaskID, opts app.BuildOptions) ([]app.TargetDiagnostics, error)
}

// Option configures a CLI.
type Option func(*CLI)

// WithJSONLogs registers the hook called with the value of --json-logs.
func WithJSONLogs(hook func(enable bool)) Option {
	return func(c *CLI) { c.jsonLogs = hook }
}

// New creates a new CLI instance with the given app.
func New(a Application, opts ...Option) *CLI {
	rootCmd := &cobra.Command{
		Use:           "lyric",
		Short:         "An incremental build engine for Lyric modules",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       build.Version,
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"{{.Name}} version {{.Version}} (commit: %s, date: %s)\n",
		build.Commit,
		build.Date,
	))
	rootCmd.InitDefaultVersionFlag()
	rootCmd.Flags().Lookup("version").Usage = "Print the application version"

	rootCmd.InitDefaultHelpFlag()
	rootCmd.Flags().Lookup("help").Usage = "Show help for command"

	rootCmd.PersistentFlags().Bool("json-logs", false, "Write logs as JSON")

	c := &CLI{
		app:     a,
		rootCmd: rootCmd,
	}
	for _, opt := range opts {
		opt(c)
	}

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, _ []string) {
		if c.jsonLogs == nil {
			return
		}
		enable, _ := cmd.Flags().GetBool("json-logs")
		c.jsonLogs(enable)
	}

	rootCmd.AddCommand(c.newBuildCmd())
	rootCmd.AddCommand(c.newCleanCmd())
	rootCmd.AddCommand(c.newDiagnosticsCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput sets the output and error streams for the root command. Used for testing.
func (c *CLI) SetOutput(out, err io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(err)
}
