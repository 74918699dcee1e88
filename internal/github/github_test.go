package github

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/prpilot/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	return newRetryingTestClient(t, 0, handler)
}

func newRetryingTestClient(t *testing.T, maxRetries int, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := NewClient(context.Background(), config.GitHubConfig{
		Token:      "test-token",
		BaseURL:    server.URL,
		MaxRetries: maxRetries,
	})
	require.NoError(t, err)
	return c
}

func shortRetryWaits(t *testing.T) {
	minWait, maxWait := retryWaitMin, retryWaitMax
	retryWaitMin, retryWaitMax = time.Millisecond, 5*time.Millisecond
	t.Cleanup(func() { retryWaitMin, retryWaitMax = minWait, maxWait })
}

var testPR = PullRequest{Owner: "owner", Repo: "repo", Number: 42}

func TestNewClient_NoToken(t *testing.T) {
	_, err := NewClient(context.Background(), config.GitHubConfig{})
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestPullRequestDiff(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/vnd.github.v3.diff", r.Header.Get("Accept"))
		assert.Equal(t, "/repos/owner/repo/pulls/42", r.URL.Path)
		w.Write([]byte("diff --git a/file.go b/file.go\n"))
	})

	diff, err := c.PullRequestDiff(context.Background(), testPR)
	require.NoError(t, err)
	assert.Equal(t, "diff --git a/file.go b/file.go\n", diff)
}

func TestPullRequestDiff_Empty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("  \n"))
	})

	_, err := c.PullRequestDiff(context.Background(), testPR)
	assert.ErrorIs(t, err, ErrEmptyDiff)
}

func TestPullRequestDiff_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, ErrUnauthorized},
		{"forbidden", http.StatusForbidden, ErrUnauthorized},
		{"not found", http.StatusNotFound, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"message":"nope"}`))
			})
			_, err := c.PullRequestDiff(context.Background(), testPR)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.Contains(t, err.Error(), "owner/repo#42")
		})
	}
}

func TestPostComment(t *testing.T) {
	var got struct {
		Body string `json:"body"`
	}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/owner/repo/issues/42/comments", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodGet:
			w.Write([]byte(`[{"id":3,"body":"looks good"}]`))
		case http.MethodPost:
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id":1,"html_url":"https://github.com/owner/repo/pull/42#issuecomment-1"}`))
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
	})

	link, err := c.PostComment(context.Background(), testPR, "<!-- briefing -->", "<!-- briefing -->\n## PR Briefing")
	require.NoError(t, err)
	assert.Equal(t, "<!-- briefing -->\n## PR Briefing", got.Body)
	assert.Equal(t, "https://github.com/owner/repo/pull/42#issuecomment-1", link)
}

func TestPostComment_EditsMarkedComment(t *testing.T) {
	var (
		methods []string
		got     struct {
			Body string `json:"body"`
		}
	)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method+" "+r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && r.URL.Query().Get("page") == "":
			w.Header().Set("Link", `<`+"http://"+r.Host+r.URL.Path+`?page=2>; rel="next"`)
			w.Write([]byte(`[{"id":3,"body":"first!"}]`))
		case r.Method == http.MethodGet:
			w.Write([]byte(`[{"id":9,"body":"<!-- briefing -->\nold briefing"}]`))
		case r.Method == http.MethodPatch:
			assert.Equal(t, "/repos/owner/repo/issues/comments/9", r.URL.Path)
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.Write([]byte(`{"id":9,"html_url":"https://github.com/owner/repo/pull/42#issuecomment-9"}`))
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
	})

	link, err := c.PostComment(context.Background(), testPR, "<!-- briefing -->", "<!-- briefing -->\nnew briefing")
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/owner/repo/pull/42#issuecomment-9", link)
	assert.Equal(t, "<!-- briefing -->\nnew briefing", got.Body)
	assert.Equal(t, []string{
		"GET /repos/owner/repo/issues/42/comments",
		"GET /repos/owner/repo/issues/42/comments",
		"PATCH /repos/owner/repo/issues/comments/9",
	}, methods)
}

func TestPostComment_NoMarkerSkipsLookup(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":1}`))
	})

	_, err := c.PostComment(context.Background(), testPR, "", "plain")
	require.NoError(t, err)
}

func TestPostComment_NotResentAfterServerError(t *testing.T) {
	shortRetryWaits(t)
	var posts int
	c := newRetryingTestClient(t, 1, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodGet {
			w.Write([]byte(`[]`))
			return
		}
		posts++
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"message":"bad gateway"}`))
	})

	_, err := c.PostComment(context.Background(), testPR, "<!-- briefing -->", "<!-- briefing -->\nbody")
	require.Error(t, err)
	assert.Equal(t, 1, posts)
}

func TestPullRequestDiff_RetriesServerError(t *testing.T) {
	shortRetryWaits(t)
	var calls int
	c := newRetryingTestClient(t, 1, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("diff --git a/file.go b/file.go\n"))
	})

	diff, err := c.PullRequestDiff(context.Background(), testPR)
	require.NoError(t, err)
	assert.Equal(t, "diff --git a/file.go b/file.go\n", diff)
	assert.Equal(t, 2, calls)
}

func TestCheckRetry(t *testing.T) {
	ctx := context.Background()
	writeCtx := context.WithValue(ctx, writeKey{}, true)
	post, _ := http.NewRequest(http.MethodPost, "http://example.com", nil)
	get, _ := http.NewRequest(http.MethodGet, "http://example.com", nil)
	dialErr := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	resetErr := &net.OpError{Op: "read", Net: "tcp", Err: errors.New("connection reset by peer")}

	tests := []struct {
		name string
		ctx  context.Context
		resp *http.Response
		err  error
		want bool
	}{
		{"read 502", ctx, &http.Response{StatusCode: http.StatusBadGateway, Request: get}, nil, true},
		{"read 404", ctx, &http.Response{StatusCode: http.StatusNotFound, Request: get}, nil, false},
		{"read reset", ctx, nil, resetErr, true},
		{"post 502", ctx, &http.Response{StatusCode: http.StatusBadGateway, Request: post}, nil, false},
		{"write reset", writeCtx, nil, resetErr, false},
		{"write dial failure", writeCtx, nil, dialErr, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := checkRetry(tt.ctx, tt.resp, tt.err)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePullRequest(t *testing.T) {
	tests := []struct {
		ref     string
		want    PullRequest
		wantErr bool
	}{
		{ref: "https://github.com/owner/repo/pull/42", want: testPR},
		{ref: "https://github.com/owner/repo/pull/42/files", want: testPR},
		{ref: "https://api.github.com/repos/owner/repo/pulls/42", want: testPR},
		{ref: "https://ghe.example.com/api/v3/repos/owner/repo/pulls/42", want: testPR},
		{ref: "owner/repo#42", want: testPR},
		{ref: "owner/repo#0", wantErr: true},
		{ref: "owner/repo", wantErr: true},
		{ref: "42", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			got, err := ParsePullRequest(tt.ref)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRepo(t *testing.T) {
	owner, repo, err := ParseRepo("owner/repo.git")
	require.NoError(t, err)
	assert.Equal(t, "owner", owner)
	assert.Equal(t, "repo", repo)

	for _, bad := range []string{"", "owner", "owner/", "a/b/c"} {
		_, _, err := ParseRepo(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseRemoteURL(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		wantOwner string
		wantRepo  string
		wantErr   bool
	}{
		{
			name:      "HTTPS",
			url:       "https://github.com/dshills/prpilot.git",
			wantOwner: "dshills",
			wantRepo:  "prpilot",
		},
		{
			name:      "HTTPS no .git",
			url:       "https://github.com/dshills/prpilot",
			wantOwner: "dshills",
			wantRepo:  "prpilot",
		},
		{
			name:      "SSH",
			url:       "git@github.com:dshills/prpilot.git",
			wantOwner: "dshills",
			wantRepo:  "prpilot",
		},
		{
			name:      "SSH no .git",
			url:       "git@github.com:dshills/prpilot",
			wantOwner: "dshills",
			wantRepo:  "prpilot",
		},
		{
			name:    "invalid",
			url:     "not-a-url",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			owner, repo, err := ParseRemoteURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr = %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if owner != tt.wantOwner {
				t.Errorf("owner = %q, want %q", owner, tt.wantOwner)
			}
			if repo != tt.wantRepo {
				t.Errorf("repo = %q, want %q", repo, tt.wantRepo)
			}
		})
	}
}
