package gitctx

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/dshills/prpilot/internal/diff"
)

// Options controls how a local diff is gathered.
type Options struct {
	// Dir is the working directory git runs in. Empty means the process cwd.
	Dir string
	// ContextLines sets git's -U; zero keeps git's default.
	ContextLines int
	// Exclude drops whole file sections whose path matches any glob.
	Exclude []string
}

// Result holds a collected diff and what produced it.
type Result struct {
	Diff string
	// Files lists the paths left after exclusion, in diff order.
	Files []string
	// Mode is "range", "staged" or "unstaged".
	Mode  string
	Range string
	Repo  RepoMeta
}

// RepoMeta contains git repository metadata.
type RepoMeta struct {
	Root   string
	Head   string
	Branch string
}

// GetRepoMeta collects repository metadata from git.
func GetRepoMeta(ctx context.Context, dir string) (RepoMeta, error) {
	root, err := gitOutput(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return RepoMeta{}, fmt.Errorf("not a git repository: %w", err)
	}
	head, err := gitOutput(ctx, dir, "rev-parse", "HEAD")
	if err != nil {
		head = "" // new repo with no commits
	}
	branch, err := gitOutput(ctx, dir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		branch = ""
	}
	return RepoMeta{
		Root:   strings.TrimSpace(root),
		Head:   strings.TrimSpace(head),
		Branch: strings.TrimSpace(branch),
	}, nil
}

// BranchDiff returns the diff a pull request from head into base would show:
// the changes on head since its merge base with base.
func BranchDiff(ctx context.Context, base, head string, opts Options) (Result, error) {
	if base == "" {
		return Result{}, errors.New("base revision is required")
	}
	if head == "" {
		head = "HEAD"
	}
	rng := base + "..." + head
	out, err := gitOutput(ctx, opts.Dir, diffArgs(opts, rng)...)
	if err != nil {
		return Result{}, fmt.Errorf("git diff %s: %w", rng, err)
	}
	return buildResult(ctx, out, "range", rng, opts), nil
}

// Staged returns the diff of index vs HEAD.
func Staged(ctx context.Context, opts Options) (Result, error) {
	out, err := gitOutput(ctx, opts.Dir, diffArgs(opts, "--cached")...)
	if err != nil {
		return Result{}, fmt.Errorf("git diff --cached: %w", err)
	}
	return buildResult(ctx, out, "staged", "", opts), nil
}

// Unstaged returns the diff of working tree vs index.
func Unstaged(ctx context.Context, opts Options) (Result, error) {
	out, err := gitOutput(ctx, opts.Dir, diffArgs(opts)...)
	if err != nil {
		return Result{}, fmt.Errorf("git diff: %w", err)
	}
	return buildResult(ctx, out, "unstaged", "", opts), nil
}

// diffArgs pins the output format so user git config (color, external diff
// drivers, prefixes) cannot change what the normalizer sees.
func diffArgs(opts Options, rev ...string) []string {
	args := []string{"diff", "--no-color", "--no-ext-diff", "--src-prefix=a/", "--dst-prefix=b/"}
	if opts.ContextLines > 0 {
		args = append(args, fmt.Sprintf("-U%d", opts.ContextLines))
	}
	args = append(args, rev...)
	return append(args, "--")
}

func buildResult(ctx context.Context, raw, mode, rng string, opts Options) Result {
	meta, err := GetRepoMeta(ctx, opts.Dir)
	if err != nil {
		meta = RepoMeta{}
	}

	var (
		kept  strings.Builder
		files []string
	)
	seen := make(map[string]bool)
	for _, sec := range diff.Sections(raw) {
		path := sec.File.Path
		if path != "" && MatchesAny(path, opts.Exclude) {
			continue
		}
		kept.WriteString(sec.Text)
		if path != "" && !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}
	return Result{
		Diff:  kept.String(),
		Files: files,
		Mode:  mode,
		Range: rng,
		Repo:  meta,
	}
}

// MatchesAny returns true if the path matches any of the given glob patterns.
func MatchesAny(path string, patterns []string) bool {
	for _, pattern := range patterns {
		matched, err := filepath.Match(pattern, path)
		if err == nil && matched {
			return true
		}
		clean := strings.TrimPrefix(pattern, "**/")
		if clean != pattern {
			matched, err = filepath.Match(clean, filepath.Base(path))
			if err == nil && matched {
				return true
			}
			matched, err = filepath.Match(clean, path)
			if err == nil && matched {
				return true
			}
		}
		if dir, ok := strings.CutSuffix(pattern, "/**"); ok && strings.HasPrefix(path, dir+"/") {
			return true
		}
	}
	return false
}

func gitOutput(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return string(out), fmt.Errorf("%s: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", err
	}
	return string(out), nil
}
