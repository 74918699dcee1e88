package github

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	gogithub "github.com/google/go-github/v48/github"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/dshills/prpilot/internal/config"
	"github.com/dshills/prpilot/internal/logging"
)

var (
	// ErrNoToken is returned by NewClient when no token is configured.
	ErrNoToken = errors.New("GitHub token is not set (github.token, PRPILOT_GITHUB_TOKEN, GITHUB_TOKEN or GH_TOKEN)")
	// ErrUnauthorized wraps 401 and 403 answers from the API.
	ErrUnauthorized = errors.New("GitHub rejected the token")
	// ErrNotFound wraps 404 answers from the API.
	ErrNotFound = errors.New("not found on GitHub")
	// ErrEmptyDiff is returned when a pull request has no diff content.
	ErrEmptyDiff = errors.New("pull request diff is empty")
)

// PullRequest identifies one pull request.
type PullRequest struct {
	Owner  string
	Repo   string
	Number int
}

func (p PullRequest) String() string {
	return fmt.Sprintf("%s/%s#%d", p.Owner, p.Repo, p.Number)
}

// Client fetches pull request diffs and posts briefing comments.
type Client struct {
	gh *gogithub.Client
}

// Backoff bounds between retried requests.
var (
	retryWaitMin = 1 * time.Second
	retryWaitMax = 5 * time.Second
)

// NewClient creates a GitHub client authenticated with cfg.Token. Reads that
// fail with a 5xx or 429 are retried up to cfg.MaxRetries times. Comment
// writes are sent once.
func NewClient(ctx context.Context, cfg config.GitHubConfig) (*Client, error) {
	if cfg.Token == "" {
		return nil, ErrNoToken
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.MaxRetries
	retryClient.RetryWaitMin = retryWaitMin
	retryClient.RetryWaitMax = retryWaitMax
	retryClient.CheckRetry = checkRetry
	retryClient.Logger = &zapRetryLogger{}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, retryClient.StandardClient())
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
	gh := gogithub.NewClient(oauth2.NewClient(ctx, ts))

	if cfg.BaseURL != "" {
		base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid github.base_url %q: %w", cfg.BaseURL, err)
		}
		gh.BaseURL = base
	}

	return &Client{gh: gh}, nil
}

// PullRequestDiff fetches the unified diff of a pull request.
func (c *Client) PullRequestDiff(ctx context.Context, pr PullRequest) (string, error) {
	raw, _, err := c.gh.PullRequests.GetRaw(ctx, pr.Owner, pr.Repo, pr.Number, gogithub.RawOptions{Type: gogithub.Diff})
	if err != nil {
		return "", classify(fmt.Sprintf("fetching diff for %s", pr), err)
	}
	if strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("%s: %w", pr, ErrEmptyDiff)
	}
	logging.L().Debug("fetched pull request diff", zap.Stringer("pull_request", pr), zap.Int("bytes", len(raw)))
	return raw, nil
}

// PostComment publishes body on the pull request and returns the comment's
// html URL. When marker is set and an existing comment body starts with it,
// that comment is edited in place; otherwise a new comment is created.
func (c *Client) PostComment(ctx context.Context, pr PullRequest, marker, body string) (string, error) {
	id, err := c.findComment(ctx, pr, marker)
	if err != nil {
		return "", classify(fmt.Sprintf("listing comments on %s", pr), err)
	}

	comment := &gogithub.IssueComment{Body: gogithub.String(body)}
	ctx = context.WithValue(ctx, writeKey{}, true)
	if id != 0 {
		edited, _, err := c.gh.Issues.EditComment(ctx, pr.Owner, pr.Repo, id, comment)
		if err != nil {
			return "", classify(fmt.Sprintf("updating comment %d on %s", id, pr), err)
		}
		logging.L().Debug("updated existing comment", zap.Stringer("pull_request", pr), zap.Int64("comment_id", id))
		return edited.GetHTMLURL(), nil
	}

	created, _, err := c.gh.Issues.CreateComment(ctx, pr.Owner, pr.Repo, pr.Number, comment)
	if err != nil {
		return "", classify(fmt.Sprintf("posting comment on %s", pr), err)
	}
	return created.GetHTMLURL(), nil
}

// findComment returns the id of the first comment whose body starts with
// marker, or 0.
func (c *Client) findComment(ctx context.Context, pr PullRequest, marker string) (int64, error) {
	if marker == "" {
		return 0, nil
	}
	opts := &gogithub.IssueListCommentsOptions{ListOptions: gogithub.ListOptions{PerPage: 100}}
	for {
		comments, resp, err := c.gh.Issues.ListComments(ctx, pr.Owner, pr.Repo, pr.Number, opts)
		if err != nil {
			return 0, err
		}
		for _, cm := range comments {
			if strings.HasPrefix(cm.GetBody(), marker) {
				return cm.GetID(), nil
			}
		}
		if resp == nil || resp.NextPage == 0 {
			return 0, nil
		}
		opts.Page = resp.NextPage
	}
}

// writeKey marks a request context as carrying a comment write.
type writeKey struct{}

// checkRetry applies the default policy to reads. A write that reached the
// server may already have been applied, so it is only resent when the
// connection was never established.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if isWrite(ctx, resp) && !dialFailed(err) {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

func isWrite(ctx context.Context, resp *http.Response) bool {
	if w, _ := ctx.Value(writeKey{}).(bool); w {
		return true
	}
	if resp == nil || resp.Request == nil {
		return false
	}
	switch resp.Request.Method {
	case http.MethodPost, http.MethodPatch:
		return true
	}
	return false
}

func dialFailed(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

func classify(action string, err error) error {
	var respErr *gogithub.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		switch respErr.Response.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%s: %w: %s", action, ErrUnauthorized, respErr.Message)
		case http.StatusNotFound:
			return fmt.Errorf("%s: %w", action, ErrNotFound)
		}
	}
	return fmt.Errorf("%s: %w", action, err)
}

var (
	htmlPRRe  = regexp.MustCompile(`^https?://[^/]+/([^/]+)/([^/]+)/pull/(\d+)/?`)
	apiPRRe   = regexp.MustCompile(`^https?://[^/]+/(?:api/v3/)?repos/([^/]+)/([^/]+)/pulls/(\d+)/?$`)
	shortPRRe = regexp.MustCompile(`^([^/\s#]+)/([^/\s#]+)#(\d+)$`)
)

// ParsePullRequest accepts a pull request html URL, its API URL, or the
// short owner/repo#N form.
func ParsePullRequest(ref string) (PullRequest, error) {
	ref = strings.TrimSpace(ref)
	for _, re := range []*regexp.Regexp{apiPRRe, htmlPRRe, shortPRRe} {
		m := re.FindStringSubmatch(ref)
		if len(m) != 4 {
			continue
		}
		n, err := strconv.Atoi(m[3])
		if err != nil || n <= 0 {
			return PullRequest{}, fmt.Errorf("invalid pull request number in %q", ref)
		}
		return PullRequest{Owner: m[1], Repo: m[2], Number: n}, nil
	}
	return PullRequest{}, fmt.Errorf("cannot parse pull request reference %q (want a URL or owner/repo#N)", ref)
}

// ParseRepo splits an owner/repo string.
func ParseRepo(s string) (owner, repo string, err error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository %q (want owner/repo)", s)
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), nil
}

var (
	httpsRemoteRe = regexp.MustCompile(`https?://[^/]+/([^/]+)/([^/.\s]+)`)
	sshRemoteRe   = regexp.MustCompile(`[^@]+@[^:]+:([^/]+)/([^/.\s]+)`)
)

// DetectRepo parses owner/repo from the origin remote of the repository in dir.
func DetectRepo(ctx context.Context, dir string) (owner, repo string, err error) {
	cmd := exec.CommandContext(ctx, "git", "remote", "get-url", "origin")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", "", fmt.Errorf("cannot detect repo: git remote get-url origin failed: %w", err)
	}
	return ParseRemoteURL(strings.TrimSpace(string(out)))
}

// ParseRemoteURL extracts owner/repo from a git remote URL.
func ParseRemoteURL(remote string) (owner, repo string, err error) {
	remote = strings.TrimSuffix(remote, ".git")

	if m := httpsRemoteRe.FindStringSubmatch(remote); len(m) == 3 {
		return m[1], m[2], nil
	}
	if m := sshRemoteRe.FindStringSubmatch(remote); len(m) == 3 {
		return m[1], m[2], nil
	}
	return "", "", fmt.Errorf("cannot parse owner/repo from remote URL: %s", remote)
}

// zapRetryLogger adapts the process logger to retryablehttp.LeveledLogger.
type zapRetryLogger struct{}

func (z *zapRetryLogger) Error(msg string, keysAndValues ...interface{}) {
	logging.S().Errorw(msg, keysAndValues...)
}

func (z *zapRetryLogger) Info(msg string, keysAndValues ...interface{}) {
	logging.S().Debugw(msg, keysAndValues...)
}

func (z *zapRetryLogger) Debug(msg string, keysAndValues ...interface{}) {
	logging.S().Debugw(msg, keysAndValues...)
}

func (z *zapRetryLogger) Warn(msg string, keysAndValues ...interface{}) {
	logging.S().Warnw(msg, keysAndValues...)
}
