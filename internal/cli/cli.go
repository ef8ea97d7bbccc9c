// Package cli defines the command-line surface of the pipeline binary and
// its exit-code contract: 0 success, 1 unexpected error, 2 configuration
// error, 3 resolution error, 4 partial execution failure.
package cli

import (
	"errors"
	"io"

	"github.com/spf13/cobra"

	"github.com/vk/annogrid/internal/app"
	"github.com/vk/annogrid/internal/config"
	"github.com/vk/annogrid/internal/resolver"
)

// Exit codes of the pipeline binary.
const (
	ExitOK             = 0
	ExitError          = 1
	ExitConfigError    = 2
	ExitResolveError   = 3
	ExitPartialFailure = 4
)

// CodedError pairs an error with the process exit code it maps to.
type CodedError struct {
	Code int
	Err  error
}

// Error implements the error interface.
func (e *CodedError) Error() string {
	return e.Err.Error()
}

// Unwrap exposes the underlying error.
func (e *CodedError) Unwrap() error {
	return e.Err
}

// rootFlags are the persistent flags shared by every subcommand.
type rootFlags struct {
	configPath  string
	modulesPath string
	logFormat   string
	logLevel    string
	workers     int
}

// Execute parses args and runs the selected command, writing output to
// outW. The returned error, if any, is a *CodedError.
func Execute(outW io.Writer, args []string) error {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "annogrid",
		Short:         "A corpus annotation pipeline: rules, dependencies, incremental execution.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(outW)
	root.SetErr(outW)
	root.SetArgs(args)

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "config.yaml", "Path to the corpus configuration file.")
	pf.StringVar(&flags.modulesPath, "modules-path", "modules", "Path to the directory containing rule manifests.")
	pf.StringVar(&flags.logFormat, "log-format", "text", "Log output format: 'text' or 'json'.")
	pf.StringVar(&flags.logLevel, "log-level", "info", "Log level: 'debug', 'info', 'warn' or 'error'.")

	root.AddCommand(
		newRunCmd(outW, flags),
		newCleanCmd(outW, flags),
		newConfigCmd(outW, flags),
		newFilesCmd(outW, flags),
	)

	if err := root.Execute(); err != nil {
		return &CodedError{Code: codeOf(err), Err: err}
	}
	return nil
}

// newApp builds the application instance behind a command.
func newApp(outW io.Writer, flags *rootFlags) (*app.App, error) {
	return app.New(outW, &app.Config{
		ConfigPath:  flags.configPath,
		ModulesPath: flags.modulesPath,
		LogFormat:   flags.logFormat,
		LogLevel:    flags.logLevel,
		Workers:     flags.workers,
	})
}

func newRunCmd(outW io.Writer, flags *rootFlags) *cobra.Command {
	opts := app.RunOptions{}
	cmd := &cobra.Command{
		Use:   "run [targets...]",
		Short: "Resolve and execute the pipeline for the configured corpus.",
		Long: "Resolve the requested targets into an execution plan and run it.\n" +
			"Targets are export format names or annotation names; with no\n" +
			"targets, every configured export format is produced.",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Targets = args
			a, err := newApp(outW, flags)
			if err != nil {
				return err
			}
			return a.Run(cmd.Context(), opts)
		},
	}
	cmd.Flags().IntVarP(&flags.workers, "workers", "j", 0, "Worker pool size. 0 selects the default.")
	cmd.Flags().BoolVarP(&opts.DryRun, "dry-run", "n", false, "Print the plan without executing it.")
	cmd.Flags().StringArrayVarP(&opts.Docs, "doc", "d", nil, "Restrict the run to a document. Repeatable.")
	return cmd
}

func newCleanCmd(outW io.Writer, flags *rootFlags) *cobra.Command {
	var exports bool
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove the annotation store.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(outW, flags)
			if err != nil {
				return err
			}
			return a.Clean(cmd.Context(), exports)
		},
	}
	cmd.Flags().BoolVar(&exports, "exports", false, "Also remove the export directory.")
	return cmd
}

func newConfigCmd(outW io.Writer, flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "config [KEY]",
		Short: "Print the effective configuration, or one key of it.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(outW, flags)
			if err != nil {
				return err
			}
			key := ""
			if len(args) == 1 {
				key = args[0]
			}
			return a.PrintConfig(key)
		},
	}
}

func newFilesCmd(outW io.Writer, flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "files",
		Short: "List the corpus documents.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(outW, flags)
			if err != nil {
				return err
			}
			return a.ListFiles()
		},
	}
}

// codeOf classifies an error into the exit-code contract.
func codeOf(err error) int {
	var configErr *config.ConfigError
	if errors.As(err, &configErr) {
		return ExitConfigError
	}
	var unresolved *resolver.UnresolvedAnnotationError
	var cyclic *resolver.CyclicDependencyError
	if errors.As(err, &unresolved) || errors.As(err, &cyclic) {
		return ExitResolveError
	}
	var partial *app.PartialFailureError
	if errors.As(err, &partial) {
		return ExitPartialFailure
	}
	return ExitError
}
