// Package index runs build passes: it turns the posts under a source prefix
// into a committed index.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	perrors "github.com/Aman-CERP/postsearch/internal/errors"
	"github.com/Aman-CERP/postsearch/internal/objstore"
	"github.com/Aman-CERP/postsearch/internal/post"
	"github.com/Aman-CERP/postsearch/internal/store"
	"github.com/Aman-CERP/postsearch/internal/telemetry"
	"github.com/Aman-CERP/postsearch/internal/ui"
)

// Config configures a build pass.
type Config struct {
	// Bucket and Prefix locate the posts in the object store.
	Bucket string
	Prefix string
	// Suffix selects document keys. Other keys under the prefix are ignored.
	Suffix string
	// Concurrency bounds in-flight fetches.
	Concurrency int

	// IndexPath is where the index is opened or created when no shared
	// index is supplied.
	IndexPath string
	// StoreOptions apply when the builder opens the index itself.
	StoreOptions store.Options

	// StrictParse aborts the pass on the first malformed post. When false,
	// malformed posts are logged and skipped.
	StrictParse bool
	// Rebuild removes every indexed post before staging, so posts deleted
	// upstream disappear.
	Rebuild bool
}

// Dependencies are the collaborators of a Builder.
type Dependencies struct {
	// Source is the object store holding the posts (required).
	Source objstore.Store
	// Index is a shared open index. When nil, each pass opens or creates
	// the index at Config.IndexPath and closes it afterwards.
	Index *store.Index
	// Renderer receives progress. Defaults to ui.NopRenderer.
	Renderer ui.Renderer
	Logger   *slog.Logger
}

// SkippedDoc is a document left out of a pass.
type SkippedDoc struct {
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

// BuildResult summarises a successful pass.
type BuildResult struct {
	RunID      string        `json:"run_id"`
	Listed     int           `json:"listed"`
	Matched    int           `json:"matched"`
	Fetched    int           `json:"fetched"`
	Parsed     int           `json:"parsed"`
	Staged     int           `json:"staged"`
	Skipped    []SkippedDoc  `json:"skipped,omitempty"`
	Generation uint64        `json:"generation"`
	Documents  uint64        `json:"documents"`
	Duration   time.Duration `json:"duration"`
}

// Builder executes build passes.
type Builder struct {
	cfg      Config
	source   objstore.Store
	shared   *store.Index
	renderer ui.Renderer
	logger   *slog.Logger
}

// NewBuilder validates cfg and deps.
func NewBuilder(cfg Config, deps Dependencies) (*Builder, error) {
	if deps.Source == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if cfg.Bucket == "" {
		return nil, perrors.ConfigError("source bucket is required", nil)
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = objstore.DefaultConcurrency
	}
	if deps.Index == nil && cfg.IndexPath == "" {
		return nil, perrors.ConfigError("index path is required", nil)
	}

	renderer := deps.Renderer
	if renderer == nil {
		renderer = ui.NopRenderer{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Builder{
		cfg:      cfg,
		source:   deps.Source,
		shared:   deps.Index,
		renderer: renderer,
		logger:   logger,
	}, nil
}

type stageTiming struct {
	list, fetch, parse, stage, commit time.Duration
}

// Run executes one pass: enumerate, filter, fetch, parse, open, stage,
// commit. Listing, fetch and (in strict mode) parse failures abort the pass
// before anything is written. A post the index rejects is logged and
// dropped. Nothing staged is visible until the single commit.
func (b *Builder) Run(ctx context.Context) (*BuildResult, error) {
	start := time.Now()
	res := &BuildResult{RunID: uuid.New().String()}
	logger := b.logger.With(slog.String("run_id", res.RunID))
	var timing stageTiming

	logger.Info("build_started",
		slog.String("bucket", b.cfg.Bucket),
		slog.String("prefix", b.cfg.Prefix),
		slog.Bool("rebuild", b.cfg.Rebuild))

	fail := func(err error) (*BuildResult, error) {
		if _, ok := perrors.As(err); !ok {
			err = perrors.New(perrors.ErrCodeBuildFailed, "build pass failed", err)
		}
		attrs := append(perrors.FormatForLog(err), slog.Duration("elapsed", time.Since(start)))
		logger.LogAttrs(ctx, slog.LevelError, "build_failed", attrs...)
		b.renderer.AddError(ui.ErrorEvent{Err: err})
		telemetry.ObserveBuild(time.Since(start), err)
		return nil, err
	}

	// 1-2: enumerate and filter
	t := time.Now()
	b.renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageListing, Message: b.cfg.Bucket + "/" + b.cfg.Prefix})
	enum := &objstore.Enumerator{Store: b.source, Bucket: b.cfg.Bucket, Prefix: b.cfg.Prefix, Logger: logger}
	keys, err := enum.Enumerate(ctx)
	if err != nil {
		return fail(err)
	}
	res.Listed = len(keys)
	keys = objstore.FilterSuffix(keys, b.cfg.Suffix)
	res.Matched = len(keys)
	timing.list = time.Since(t)
	logger.Info("build_listed", slog.Int("listed", res.Listed), slog.Int("matched", res.Matched))

	// 3: fetch
	t = time.Now()
	var fetched atomic.Int64
	fetcher := &objstore.Fetcher{
		Store:       b.source,
		Bucket:      b.cfg.Bucket,
		Concurrency: b.cfg.Concurrency,
		OnFetched: func(key string, size int) {
			n := fetched.Add(1)
			telemetry.AddFetchedBytes(size)
			b.renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageFetching, Current: int(n), Total: res.Matched, Key: key})
		},
	}
	objects, err := fetcher.Fetch(ctx, keys)
	if err != nil {
		return fail(err)
	}
	res.Fetched = len(objects)
	timing.fetch = time.Since(t)

	// 4: parse
	t = time.Now()
	posts := make([]*post.Post, 0, len(objects))
	for i, obj := range objects {
		p, err := post.Decode(obj.Key, obj.Body)
		if err != nil {
			if b.cfg.StrictParse {
				return fail(err)
			}
			res.Skipped = append(res.Skipped, SkippedDoc{Key: obj.Key, Reason: err.Error()})
			logger.Warn("post_skipped_malformed", slog.String("key", obj.Key), slog.String("error", err.Error()))
			b.renderer.AddError(ui.ErrorEvent{Key: obj.Key, Err: err, IsWarn: true})
			continue
		}
		posts = append(posts, p)
		b.renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageParsing, Current: i + 1, Total: len(objects), Key: obj.Key})
	}
	res.Parsed = len(posts)
	timing.parse = time.Since(t)

	// 5: open
	ix := b.shared
	if ix == nil {
		ix, err = store.OpenOrCreate(b.cfg.IndexPath, b.storeOptions(logger))
		if err != nil {
			return fail(err)
		}
		defer func() {
			if err := ix.Close(); err != nil {
				logger.Warn("index_close_failed", slog.String("error", err.Error()))
			}
		}()
	}

	// 6: stage
	t = time.Now()
	w, err := ix.Writer(ctx)
	if err != nil {
		return fail(err)
	}
	committed := false
	defer func() {
		if !committed {
			w.Rollback()
		}
	}()
	w.SetRunID(res.RunID)

	if b.cfg.Rebuild {
		if err := w.Truncate(); err != nil {
			return fail(err)
		}
	}

	for i, p := range posts {
		if err := ctx.Err(); err != nil {
			return fail(perrors.New(perrors.ErrCodeBuildFailed, "build cancelled before commit", err))
		}
		if err := w.Stage(p); err != nil {
			if errors.Is(err, store.ErrDocumentRejected) {
				res.Skipped = append(res.Skipped, SkippedDoc{Key: p.ID, Reason: err.Error()})
				logger.Warn("post_skipped_rejected", slog.String("post_id", p.ID), slog.String("error", err.Error()))
				b.renderer.AddError(ui.ErrorEvent{Key: p.ID, Err: err, IsWarn: true})
				continue
			}
			return fail(err)
		}
		res.Staged++
		b.renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageStaging, Current: i + 1, Total: len(posts), Key: p.ID})
	}
	timing.stage = time.Since(t)

	// 7: commit
	t = time.Now()
	b.renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageCommitting, Message: fmt.Sprintf("%d posts", res.Staged)})
	meta, err := w.Commit()
	if err != nil {
		return fail(err)
	}
	committed = true
	timing.commit = time.Since(t)
	res.Generation = meta.Generation

	if stats, err := ix.Stats(); err == nil {
		res.Documents = stats.Documents
		telemetry.SetIndexState(meta.Generation, stats.Documents)
	} else {
		logger.Warn("index_stats_failed", slog.String("error", err.Error()))
	}

	res.Duration = time.Since(start)
	telemetry.ObserveBuild(res.Duration, nil)
	telemetry.AddDocuments(telemetry.DocStaged, res.Staged)
	telemetry.AddDocuments(telemetry.DocSkipped, len(res.Skipped))

	logger.Info("build_complete",
		slog.Int("listed", res.Listed),
		slog.Int("fetched", res.Fetched),
		slog.Int("staged", res.Staged),
		slog.Int("skipped", len(res.Skipped)),
		slog.Uint64("generation", res.Generation),
		slog.Uint64("documents", res.Documents),
		slog.Duration("duration", res.Duration))

	b.renderer.Complete(ui.CompletionStats{
		Listed:     res.Listed,
		Fetched:    res.Fetched,
		Staged:     res.Staged,
		Skipped:    len(res.Skipped),
		Generation: res.Generation,
		Duration:   res.Duration,
		Stages: ui.StageTimings{
			List:   timing.list,
			Fetch:  timing.fetch,
			Parse:  timing.parse,
			Stage:  timing.stage,
			Commit: timing.commit,
		},
	})
	return res, nil
}

func (b *Builder) storeOptions(logger *slog.Logger) store.Options {
	opts := b.cfg.StoreOptions
	if opts.Logger == nil {
		opts.Logger = logger
	}
	opts.ReadOnly = false
	return opts
}
