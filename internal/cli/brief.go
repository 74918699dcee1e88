package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/prpilot/internal/config"
	"github.com/dshills/prpilot/internal/gitctx"
	"github.com/dshills/prpilot/internal/github"
	"github.com/dshills/prpilot/internal/logging"
	"github.com/dshills/prpilot/internal/output"
	"github.com/dshills/prpilot/internal/prompt"
	"github.com/dshills/prpilot/internal/providers"
	"github.com/dshills/prpilot/internal/redact"
	"github.com/dshills/prpilot/internal/review"
)

type briefFlags struct {
	diffFile     string
	pr           string
	repo         string
	base         string
	head         string
	staged       bool
	unstaged     bool
	contextLines int
	exclude      []string
	post         bool
	out          string

	format        string
	provider      string
	model         string
	chunkBytes    int
	merge         string
	redactSecrets bool
}

func (a *app) briefCmd() *cobra.Command {
	f := &briefFlags{}
	cmd := &cobra.Command{
		Use:   "brief",
		Short: "Generate a reviewer briefing for a diff",
		Long: `Generate a reviewer briefing for one diff. The diff comes from exactly one of
--diff-file (use - for stdin), --pr, --base/--head, --staged or --unstaged.

On success only the briefing is written to stdout. With --post the markdown
briefing is also posted as a comment on the pull request given by --pr; a
briefing comment left by an earlier run is updated in place.`,
		Example: `  git diff main...feature | prpilot brief --diff-file -
  prpilot brief --pr https://github.com/owner/repo/pull/7 --post
  prpilot brief --base main --format json --out briefing.json`,
		Args: cobra.NoArgs,
		RunE: runE(func(cmd *cobra.Command, args []string) error {
			return a.runBrief(cmd, f)
		}),
	}

	fl := cmd.Flags()
	fl.StringVar(&f.diffFile, "diff-file", "", "Read the diff from a file, or - for stdin")
	fl.StringVar(&f.pr, "pr", "", "Pull request: URL, owner/repo#N, or a number with --repo")
	fl.StringVar(&f.repo, "repo", "", "Repository owner/repo for a bare --pr number (default: origin remote)")
	fl.StringVar(&f.base, "base", "", "Diff the local branch against this base revision")
	fl.StringVar(&f.head, "head", "HEAD", "Head revision for --base")
	fl.BoolVar(&f.staged, "staged", false, "Brief the staged changes")
	fl.BoolVar(&f.unstaged, "unstaged", false, "Brief the working tree changes not yet staged")
	fl.IntVar(&f.contextLines, "context-lines", 0, "Context lines around each change in local diffs (default: git's 3)")
	fl.StringSliceVar(&f.exclude, "exclude", nil, "Drop files matching these globs from local diffs")
	fl.BoolVar(&f.post, "post", false, "Post the briefing as a comment on --pr")
	fl.StringVar(&f.out, "out", "", "Output file path (default: stdout)")

	fl.StringVar(&f.format, "format", "", "Output format (markdown, json)")
	fl.StringVar(&f.provider, "provider", "", "Model provider (gemini, openai, anthropic, ollama)")
	fl.StringVar(&f.model, "model", "", "Model name (default: the provider's default)")
	fl.IntVar(&f.chunkBytes, "chunk-bytes", 0, "Maximum diff bytes per model call (0 uses the default, 100000)")
	fl.StringVar(&f.merge, "merge", "", "How chunk briefings are joined (model, local)")
	fl.BoolVar(&f.redactSecrets, "redact-secrets", false, "Mask likely secrets before the diff is sent")
	return cmd
}

// overrides maps the flags the user set to config keys.
func (f *briefFlags) overrides(cmd *cobra.Command) map[string]any {
	m := map[string]any{}
	set := func(flag, key string, v any) {
		if cmd.Flags().Changed(flag) {
			m[key] = v
		}
	}
	set("format", "output.format", f.format)
	set("provider", "model.provider", f.provider)
	set("model", "model.name", f.model)
	set("chunk-bytes", "diff.chunk_bytes", f.chunkBytes)
	set("merge", "diff.merge", f.merge)
	set("redact-secrets", "privacy.redact_secrets", f.redactSecrets)

	// a provider switch without a model picks that provider's default
	if cmd.Flags().Changed("provider") && !cmd.Flags().Changed("model") {
		m["model.name"] = ""
	}
	return m
}

// validate checks the diff source flags. --pr is the diff source unless a
// local source is given, in which case it only names where --post comments.
func (f *briefFlags) validate() error {
	local := 0
	for _, set := range []bool{f.diffFile != "", f.base != "", f.staged, f.unstaged} {
		if set {
			local++
		}
	}
	switch {
	case local > 1:
		return usageErrorf("use only one of --diff-file, --base, --staged and --unstaged")
	case local == 0 && f.pr == "":
		return usageErrorf("no diff source: use --diff-file, --pr, --base, --staged or --unstaged")
	case f.contextLines < 0:
		return usageErrorf("--context-lines must not be negative")
	case local == 1 && f.pr != "" && !f.post:
		return usageErrorf("--pr with a local diff source requires --post")
	case f.post && f.pr == "":
		return usageErrorf("--post requires --pr")
	case f.repo != "" && f.pr == "":
		return usageErrorf("--repo requires --pr")
	}
	return nil
}

func (a *app) runBrief(cmd *cobra.Command, f *briefFlags) error {
	if err := f.validate(); err != nil {
		return err
	}
	cfg, err := a.loadConfig(f.overrides(cmd))
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Run.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Run.Timeout)
		defer cancel()
	}

	var (
		pr github.PullRequest
		gh pullRequests
	)
	if f.pr != "" {
		if pr, err = a.resolvePR(ctx, f.pr, f.repo); err != nil {
			return err
		}
		if gh, err = a.newGitHub(ctx, cfg.GitHub); err != nil {
			return err
		}
	}

	raw, err := a.readDiff(ctx, f, gh, pr)
	if err != nil {
		return err
	}

	if cfg.Model.Name == "" {
		if info, ok := providers.Lookup(cfg.Model.Provider); ok {
			cfg.Model.Name = info.DefaultModel
		}
	}
	model, err := a.newModel(cfg)
	if err != nil {
		return err
	}
	logging.L().Info("generating briefing",
		zap.String("provider", model.Name()),
		zap.String("model", cfg.Model.Name),
		zap.Int("diff_bytes", len(raw)))

	pipeline := review.New(model, review.Options{
		ChunkBytes:     cfg.Diff.ChunkBytes,
		MaxConcurrency: cfg.Diff.MaxConcurrency,
		Merge:          review.MergeMode(cfg.Diff.Merge),
		Redact:         redact.Policy{Secrets: cfg.Privacy.RedactSecrets, Paths: cfg.Privacy.RedactPaths},
		Prompts:        prompt.New(cfg.Model.MaxTokens, cfg.Model.Temperature),
	})
	res, err := pipeline.Run(ctx, raw)
	if err != nil {
		return err
	}
	logging.L().Info("briefing ready",
		zap.Int("files", len(res.Briefing.FileChanges)),
		zap.Int("risks", len(res.Briefing.RiskAssessment)),
		zap.Int("chunks", res.Chunks),
		zap.Int("model_calls", res.Calls),
		zap.Duration("elapsed", res.Duration))

	if f.post {
		if err := a.post(ctx, cfg, gh, pr, res); err != nil {
			return err
		}
	}

	if err := output.WriteBriefing(res.Briefing, cfg.Output.Format, f.out, a.stdout); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

func (a *app) post(ctx context.Context, cfg config.Config, gh pullRequests, pr github.PullRequest, res *review.Result) error {
	body, truncated := output.FitComment(output.Markdown(res.Briefing), cfg.Output.CommentLimit)
	if truncated {
		logging.L().Warn("briefing exceeds the comment limit; the posted comment is truncated",
			zap.Int("limit", cfg.Output.CommentLimit))
	}
	link, err := gh.PostComment(ctx, pr, output.Marker, body)
	if err != nil {
		return fmt.Errorf("post comment: %w", err)
	}
	logging.L().Info("posted briefing", zap.String("pull_request", pr.String()), zap.String("url", link))
	return nil
}

// resolvePR accepts the forms ParsePullRequest does, plus a bare number
// qualified by repo or the origin remote.
func (a *app) resolvePR(ctx context.Context, ref, repo string) (github.PullRequest, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(ref), "#"))
	if err != nil {
		pr, err := github.ParsePullRequest(ref)
		if err != nil {
			return github.PullRequest{}, usageError{err}
		}
		return pr, nil
	}
	if n <= 0 {
		return github.PullRequest{}, usageErrorf("invalid pull request number %q", ref)
	}

	var owner, name string
	if repo != "" {
		owner, name, err = github.ParseRepo(repo)
		if err != nil {
			return github.PullRequest{}, usageError{err}
		}
	} else {
		owner, name, err = a.detectRepo(ctx)
		if err != nil {
			return github.PullRequest{}, usageErrorf("%v; use --repo owner/repo", err)
		}
	}
	return github.PullRequest{Owner: owner, Repo: name, Number: n}, nil
}

func (a *app) readDiff(ctx context.Context, f *briefFlags, gh pullRequests, pr github.PullRequest) (string, error) {
	opts := gitctx.Options{ContextLines: f.contextLines, Exclude: f.exclude}
	var (
		res gitctx.Result
		err error
	)
	switch {
	case f.diffFile == "-":
		data, err := io.ReadAll(a.stdin)
		if err != nil {
			return "", fmt.Errorf("reading diff from stdin: %w", err)
		}
		return string(data), nil
	case f.diffFile != "":
		data, err := os.ReadFile(f.diffFile)
		if err != nil {
			return "", fmt.Errorf("reading diff file: %w", err)
		}
		return string(data), nil
	case f.base != "":
		res, err = gitctx.BranchDiff(ctx, f.base, f.head, opts)
	case f.staged:
		res, err = gitctx.Staged(ctx, opts)
	case f.unstaged:
		res, err = gitctx.Unstaged(ctx, opts)
	default:
		logging.L().Info("fetching pull request diff", zap.Stringer("pull_request", pr))
		return gh.PullRequestDiff(ctx, pr)
	}
	if err != nil {
		return "", err
	}
	logging.L().Info("collected local diff",
		zap.String("mode", res.Mode),
		zap.String("range", res.Range),
		zap.String("branch", res.Repo.Branch),
		zap.String("head", res.Repo.Head),
		zap.Int("files", len(res.Files)))
	return res.Diff, nil
}
