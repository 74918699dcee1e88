package review

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/prpilot/internal/briefing"
	"github.com/dshills/prpilot/internal/diff"
	"github.com/dshills/prpilot/internal/logging"
	"github.com/dshills/prpilot/internal/prompt"
	"github.com/dshills/prpilot/internal/providers"
	"github.com/dshills/prpilot/internal/redact"
)

// MergeMode selects how the partial briefings of a chunked diff are joined.
type MergeMode string

const (
	// MergeModel asks the model for the final summary and risk assessment.
	MergeModel MergeMode = "model"
	// MergeLocal joins the chunk summaries and risks without another call.
	MergeLocal MergeMode = "local"
)

const defaultMaxConcurrency = 4

// Options controls a Pipeline.
type Options struct {
	ChunkBytes     int
	MaxConcurrency int
	Merge          MergeMode
	Redact         redact.Policy
	Prompts        prompt.Builder
}

// Pipeline turns raw diffs into validated briefings.
type Pipeline struct {
	model providers.Model
	opts  Options
}

// New returns a Pipeline calling m. Pass a *providers.Invoker to get
// timeouts and retries.
func New(m providers.Model, opts Options) *Pipeline {
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = defaultMaxConcurrency
	}
	if opts.Merge == "" {
		opts.Merge = MergeModel
	}
	return &Pipeline{model: m, opts: opts}
}

// Result is the outcome of one run.
type Result struct {
	Briefing     *briefing.Briefing
	Files        []diff.File
	Chunks       int
	Calls        int
	MetadataOnly bool
	Redacted     redact.Stats
	Duration     time.Duration
}

type run struct {
	model   providers.Model
	prompts prompt.Builder
	calls   atomic.Int32
}

// Run produces the briefing for raw. An empty diff fails before any model
// call with *diff.EmptyDiffError. Errors name the failing stage.
func (p *Pipeline) Run(ctx context.Context, raw string) (*Result, error) {
	start := time.Now()

	var stats redact.Stats
	if p.opts.Redact.Enabled() && strings.TrimSpace(raw) != "" {
		raw, stats = p.opts.Redact.Apply(raw)
		if stats.Secrets > 0 || len(stats.Files) > 0 {
			logging.L().Info("redacted diff before sending",
				zap.Int("secrets", stats.Secrets),
				zap.Strings("withheld_files", stats.Files))
		}
	}

	norm, err := diff.Normalize(raw, p.opts.ChunkBytes)
	if err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}
	if w := norm.Warning(); w != nil {
		logging.L().Warn(w.Error())
	}
	logging.L().Debug("diff normalized",
		zap.Int("bytes", len(raw)),
		zap.Int("files", len(norm.Files)),
		zap.Int("chunks", len(norm.Chunks)))

	r := &run{model: p.model, prompts: p.opts.Prompts}

	var b *briefing.Briefing
	if len(norm.Chunks) == 1 {
		b, err = r.single(ctx, norm)
	} else {
		b, err = r.chunked(ctx, norm, p.opts)
	}
	if err != nil {
		return nil, err
	}
	b.OrderFiles(norm.Paths())

	return &Result{
		Briefing:     b,
		Files:        norm.Files,
		Chunks:       len(norm.Chunks),
		Calls:        int(r.calls.Load()),
		MetadataOnly: norm.MetadataOnly,
		Redacted:     stats,
		Duration:     time.Since(start),
	}, nil
}

func (r *run) single(ctx context.Context, norm diff.Result) (*briefing.Briefing, error) {
	req := r.prompts.Briefing(prompt.Input{
		Chunk:        norm.Chunks[0],
		Total:        1,
		Files:        norm.Files,
		MetadataOnly: norm.MetadataOnly,
	})
	rules := briefing.Rules{
		Shape:           briefing.ShapeBriefing,
		AllowEmptyRisks: norm.MetadataOnly,
		Paths:           norm.Paths(),
	}
	b, err := r.resolve(ctx, "briefing", req, rules)
	if err != nil {
		return nil, fmt.Errorf("briefing: %w", err)
	}
	return b, nil
}

func (r *run) chunked(ctx context.Context, norm diff.Result, opts Options) (*briefing.Briefing, error) {
	parts, err := r.partials(ctx, norm, opts.MaxConcurrency)
	if err != nil {
		return nil, err
	}

	files, summaries, risks := mergePartials(parts)

	var final *briefing.Briefing
	switch opts.Merge {
	case MergeLocal:
		final = &briefing.Briefing{
			OverallSummary: joinSummaries(summaries),
			FileChanges:    files,
			RiskAssessment: risks,
		}
	default:
		req := r.prompts.Summary(files, summaries, risks)
		rules := briefing.Rules{Shape: briefing.ShapeSummary, AllowEmptyRisks: norm.MetadataOnly}
		s, err := r.resolve(ctx, "summary", req, rules)
		if err != nil {
			return nil, fmt.Errorf("summary: %w", err)
		}
		final = &briefing.Briefing{
			OverallSummary: s.OverallSummary,
			FileChanges:    files,
			RiskAssessment: s.RiskAssessment,
		}
	}

	rules := briefing.Rules{
		Shape:           briefing.ShapeBriefing,
		AllowEmptyRisks: norm.MetadataOnly,
		Paths:           norm.Paths(),
	}
	if err := briefing.Validate(final, rules); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	return final, nil
}

// partials briefs every chunk with at most limit calls in flight. The first
// failure cancels the remaining chunks.
func (r *run) partials(ctx context.Context, norm diff.Result, limit int) ([]*briefing.Briefing, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	total := len(norm.Chunks)
	results := make([]*briefing.Briefing, total)

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	sem := make(chan struct{}, limit)

	for i, chunk := range norm.Chunks {
		wg.Add(1)
		go func(i int, chunk diff.Chunk) {
			defer wg.Done()
			select {
			case sem <- struct{}{}: // acquire
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }() // release

			stage := fmt.Sprintf("chunk %d/%d", i+1, total)
			req := r.prompts.Briefing(prompt.Input{
				Chunk:        chunk,
				Total:        total,
				Files:        norm.FilesIn(chunk),
				MetadataOnly: norm.MetadataOnly,
			})
			rules := briefing.Rules{
				Shape:           briefing.ShapeBriefing,
				AllowEmptyRisks: true,
				Paths:           chunk.Files,
			}

			logging.L().Debug("briefing chunk", zap.String("stage", stage), zap.Int("bytes", len(chunk.Text)))
			b, err := r.resolve(ctx, stage, req, rules)
			if err != nil {
				errOnce.Do(func() {
					firstErr = fmt.Errorf("invoke %s: %w", stage, err)
					cancel()
				})
				return
			}
			results[i] = b
		}(i, chunk)
	}

	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	for i, b := range results {
		if b == nil {
			return nil, fmt.Errorf("invoke chunk %d/%d: %w", i+1, total, ctx.Err())
		}
	}
	return results, nil
}
