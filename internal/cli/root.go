package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/prpilot/internal/briefing"
	"github.com/dshills/prpilot/internal/config"
	"github.com/dshills/prpilot/internal/diff"
	"github.com/dshills/prpilot/internal/github"
	"github.com/dshills/prpilot/internal/logging"
	"github.com/dshills/prpilot/internal/providers"
	"github.com/dshills/prpilot/internal/review"
)

const version = "0.3.0"

// Exit codes.
const (
	ExitSuccess      = 0
	ExitUsageError   = 2
	ExitAuthError    = 3
	ExitRuntimeError = 4
	ExitSchemaError  = 5
	ExitEmptyDiff    = 6
)

// pullRequests is the part of *github.Client the brief command uses.
type pullRequests interface {
	PullRequestDiff(ctx context.Context, pr github.PullRequest) (string, error)
	PostComment(ctx context.Context, pr github.PullRequest, marker, body string) (string, error)
}

// app carries the process streams and collaborator constructors so tests
// can run the command tree in-process.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	newModel  func(cfg config.Config) (providers.Model, error)
	newGitHub func(ctx context.Context, cfg config.GitHubConfig) (pullRequests, error)
	// detectRepo resolves owner/repo for a bare PR number.
	detectRepo func(ctx context.Context) (owner, repo string, err error)

	configPath string
	logLevel   string
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *app {
	return &app{
		stdin:      stdin,
		stdout:     stdout,
		stderr:     stderr,
		newModel:   newInvoker,
		newGitHub:  newGitHubClient,
		detectRepo: func(ctx context.Context) (string, string, error) { return github.DetectRepo(ctx, "") },
	}
}

// newInvoker builds the configured provider behind the retrying invoker.
func newInvoker(cfg config.Config) (providers.Model, error) {
	m, err := providers.New(cfg.Model)
	if err != nil {
		return nil, err
	}
	policy := providers.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay,
		Timeout:     cfg.Retry.Timeout,
	}
	return providers.NewInvoker(m, policy, providers.WithRateLimit(cfg.Retry.RequestsPerMinute)), nil
}

func newGitHubClient(ctx context.Context, cfg config.GitHubConfig) (pullRequests, error) {
	c, err := github.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Run executes prpilot with the process arguments and returns an exit code.
func Run() int {
	return Execute(os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
}

// Execute runs the command tree with args and returns an exit code.
func Execute(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	return newApp(stdin, stdout, stderr).execute(args)
}

func (a *app) execute(args []string) int {
	if l, err := logging.New(a.stderr, "info", "console"); err == nil {
		logging.Set(l)
	}
	defer logging.Sync()

	root := a.rootCmd()
	root.SetArgs(args)
	err := root.Execute()
	if err == nil {
		return ExitSuccess
	}

	code := exitCode(err)
	if code == ExitUsageError {
		fmt.Fprintf(a.stderr, "Error: %v\nRun 'prpilot --help' for usage.\n", err)
	} else {
		logging.L().Error("prpilot failed", zap.Error(err), zap.Int("exit_code", code))
	}
	return code
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "prpilot",
		Short:         "Reviewer briefings for pull requests",
		Long:          "PR-Pilot turns a pull request diff into a structured reviewer briefing: an overall summary, a file-by-file description, and a risk assessment.",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file path (default: ./prpilot.toml, then the user config dir)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	root.AddCommand(a.briefCmd())
	root.AddCommand(a.configCmd())
	root.AddCommand(a.modelsCmd())
	root.AddCommand(a.versionCmd())
	return root
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print prpilot version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.stdout, "prpilot version %s\n", version)
		},
	}
}

// loadConfig loads and validates configuration, then installs the configured
// logger on stderr.
func (a *app) loadConfig(overrides map[string]any) (config.Config, error) {
	if a.logLevel != "" {
		if overrides == nil {
			overrides = map[string]any{}
		}
		overrides["log.level"] = a.logLevel
	}
	cfg, err := config.Load(a.configPath, overrides)
	if err != nil {
		return config.Config{}, usageError{err}
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, usageError{fmt.Errorf("invalid configuration: %w", err)}
	}
	l, err := logging.New(a.stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return config.Config{}, usageError{err}
	}
	logging.Set(l)
	if cfg.File != "" {
		logging.L().Debug("loaded config", zap.String("file", cfg.File))
	}
	return cfg, nil
}

// usageError marks a problem with how prpilot was invoked.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func usageErrorf(format string, args ...any) error {
	return usageError{fmt.Errorf(format, args...)}
}

// runtimeError marks an error returned by a command body, as opposed to
// one produced by cobra while parsing the command line.
type runtimeError struct{ err error }

func (e runtimeError) Error() string { return e.err.Error() }
func (e runtimeError) Unwrap() error { return e.err }

// runE adapts a command body so its errors are classified by exitCode.
func runE(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := fn(cmd, args)
		if err == nil {
			return nil
		}
		var ue usageError
		if errors.As(err, &ue) {
			return err
		}
		return runtimeError{err}
	}
}

func exitCode(err error) int {
	var ue usageError
	if errors.As(err, &ue) {
		return ExitUsageError
	}
	var re runtimeError
	if !errors.As(err, &re) {
		// unknown commands, bad arguments
		return ExitUsageError
	}

	var empty *diff.EmptyDiffError
	var unrecoverable *review.UnrecoverableSchemaError
	var malformed *briefing.MalformedResponseError
	var violation *briefing.SchemaViolationError
	switch {
	case errors.As(err, &empty), errors.Is(err, github.ErrEmptyDiff):
		return ExitEmptyDiff
	case providers.IsAuthError(err), errors.Is(err, github.ErrUnauthorized), errors.Is(err, github.ErrNoToken):
		return ExitAuthError
	case errors.As(err, &unrecoverable), errors.As(err, &malformed), errors.As(err, &violation):
		return ExitSchemaError
	default:
		return ExitRuntimeError
	}
}
