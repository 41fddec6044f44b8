package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/docvector/docvector/pkg/config"
	"github.com/docvector/docvector/pkg/crawler"
	"github.com/docvector/docvector/pkg/errdefs"
	"github.com/docvector/docvector/pkg/store"
)

// Worker claims pending ingestion jobs and runs them to a terminal
// state.
type Worker struct {
	store    *store.Store
	pipeline *Pipeline

	ingestCfg  config.IngestionConfig
	crawlerCfg config.CrawlerConfig
}

func NewWorker(st *store.Store, pipeline *Pipeline, cfg *config.Config) *Worker {
	return &Worker{
		store:      st,
		pipeline:   pipeline,
		ingestCfg:  cfg.Ingestion,
		crawlerCfg: cfg.Crawler,
	}
}

// Run polls for pending jobs until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	interval := w.ingestCfg.PollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	for {
		job, err := w.store.ClaimNextPendingJob(ctx)
		if err != nil {
			if !errdefs.Is(err, errdefs.CodeNotFound) {
				slog.Error("failed to claim job", "error", err)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(interval):
			}
			continue
		}

		w.runClaimed(ctx, job)

		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// RunJobByID claims a specific pending job and runs it synchronously.
func (w *Worker) RunJobByID(ctx context.Context, jobID string) error {
	job, err := w.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != store.JobStatusPending {
		return errdefs.Newf(errdefs.CodeValidation, "job %s is %s, not pending", jobID, job.Status)
	}
	if err := w.store.TransitionJob(ctx, job.ID, store.JobStatusRunning, ""); err != nil {
		return err
	}
	job.Status = store.JobStatusRunning
	w.runClaimed(ctx, job)
	return nil
}

// runClaimed executes a running job and records its terminal state.
func (w *Worker) runClaimed(ctx context.Context, job *store.IngestionJob) {
	slog.Info("job started", "job_id", job.ID, "job_type", job.JobType, "source_id", job.SourceID)

	progress, err := w.execute(ctx, job)

	cancelled, cErr := w.store.IsJobCancelled(ctx, job.ID)
	if cErr == nil && cancelled {
		slog.Info("job cancelled", "job_id", job.ID)
		return
	}

	switch {
	case err != nil:
		slog.Error("job failed", "job_id", job.ID, "error", err)
		if tErr := w.store.TransitionJob(ctx, job.ID, store.JobStatusFailed, err.Error()); tErr != nil {
			slog.Error("failed to record job failure", "job_id", job.ID, "error", tErr)
		}
	default:
		slog.Info("job completed", "job_id", job.ID,
			"processed", progress.processed.Load(), "failed", progress.failed.Load(),
			"chunks", progress.chunks.Load())
		if tErr := w.store.TransitionJob(ctx, job.ID, store.JobStatusCompleted, ""); tErr != nil {
			slog.Error("failed to record job completion", "job_id", job.ID, "error", tErr)
		}
	}
}

// jobProgress accumulates counters across concurrent document
// processing.
type jobProgress struct {
	total     atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
	chunks    atomic.Int64
}

func (w *Worker) execute(ctx context.Context, job *store.IngestionJob) (*jobProgress, error) {
	progress := &jobProgress{}

	var src *store.Source
	if job.SourceID != "" {
		var err error
		src, err = w.store.GetSource(ctx, job.SourceID)
		if err != nil {
			return progress, err
		}
	}

	var err error
	switch job.JobType {
	case store.JobTypeReindex:
		err = w.executeReindex(ctx, job, src, progress)
	case store.JobTypeFullSync, store.JobTypeIncremental, store.JobTypeManual, store.JobTypeCrawlURL:
		err = w.executeSync(ctx, job, src, progress)
	default:
		err = errdefs.Newf(errdefs.CodeValidation, "unknown job type: %s", job.JobType)
	}

	w.flushCounters(ctx, job.ID, progress)

	if src != nil {
		w.latchSource(ctx, src, progress)
	}
	return progress, err
}

// executeSync fetches documents for the source and pipes them through
// the pipeline.
func (w *Worker) executeSync(ctx context.Context, job *store.IngestionJob, src *store.Source, progress *jobProgress) error {
	if src == nil {
		return errdefs.New(errdefs.CodeValidation, "sync jobs require a source")
	}

	switch src.Type {
	case store.SourceTypeWeb:
		return w.syncWebSource(ctx, job, src, progress)
	case store.SourceTypeFile:
		return w.syncFileSource(ctx, job, src, progress)
	default:
		return errdefs.Newf(errdefs.CodeValidation,
			"source type %s is not syncable", src.Type)
	}
}

// syncWebSource crawls the source's start URL. Crawler workers block
// on the fan-out semaphore, so crawl speed adapts to pipeline speed.
func (w *Worker) syncWebSource(ctx context.Context, job *store.IngestionJob, src *store.Source, progress *jobProgress) error {
	opts, err := w.crawlOptions(job, src)
	if err != nil {
		return err
	}

	c, err := crawler.New(opts)
	if err != nil {
		return errdefs.Wrap(errdefs.CodeConfiguration, "invalid crawl options", err)
	}

	fanOut := int64(w.ingestCfg.FanOut)
	if fanOut <= 0 {
		fanOut = 4
	}
	sem := semaphore.NewWeighted(fanOut)

	var cancelled atomic.Bool
	handler := func(ctx context.Context, page crawler.FetchedPage) error {
		if cancelled.Load() {
			return nil
		}
		if done, err := w.store.IsJobCancelled(ctx, job.ID); err == nil && done {
			cancelled.Store(true)
			return nil
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			return err
		}
		defer sem.Release(1)

		progress.total.Add(1)
		w.processPage(ctx, job, src, page, progress)
		return nil
	}

	result, err := c.Crawl(ctx, handler)
	if err != nil {
		return errdefs.Wrap(errdefs.CodeIngestion, "crawl failed", err)
	}

	// Wait for in-flight documents before reporting.
	if err := sem.Acquire(ctx, fanOut); err != nil {
		return err
	}
	sem.Release(fanOut)

	if cancelled.Load() {
		return nil
	}

	slog.Info("crawl finished", "source", src.Name,
		"pages_fetched", result.PagesFetched, "pages_failed", result.PagesFailed,
		"used_sitemap", result.UsedSitemap)
	return nil
}

func (w *Worker) processPage(ctx context.Context, job *store.IngestionJob, src *store.Source, page crawler.FetchedPage, progress *jobProgress) {
	res, err := w.pipeline.ProcessDocument(ctx, src, RawDocument{
		URL:         page.URL,
		Body:        page.Body,
		ContentType: page.ContentType,
		FetchedAt:   time.Now().UTC(),
	})
	if err != nil {
		slog.Warn("document failed", "url", page.URL, "error", err)
		progress.failed.Add(1)
	} else {
		progress.processed.Add(1)
		progress.chunks.Add(int64(res.ChunkCount))
	}
	w.flushCounters(ctx, job.ID, progress)
}

// syncFileSource walks a directory of documentation files.
func (w *Worker) syncFileSource(ctx context.Context, job *store.IngestionJob, src *store.Source, progress *jobProgress) error {
	root, _ := src.Config["path"].(string)
	if root == "" {
		return errdefs.New(errdefs.CodeConfiguration, "file source requires a path")
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".md", ".markdown", ".html", ".htm", ".txt":
		default:
			return nil
		}

		if done, cErr := w.store.IsJobCancelled(ctx, job.ID); cErr == nil && done {
			return filepath.SkipAll
		}

		body, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("failed to read file", "path", path, "error", err)
			progress.total.Add(1)
			progress.failed.Add(1)
			return nil
		}

		progress.total.Add(1)
		res, err := w.pipeline.ProcessDocument(ctx, src, RawDocument{
			Path:      path,
			Body:      body,
			FetchedAt: time.Now().UTC(),
		})
		if err != nil {
			slog.Warn("document failed", "path", path, "error", err)
			progress.failed.Add(1)
		} else {
			progress.processed.Add(1)
			progress.chunks.Add(int64(res.ChunkCount))
		}
		w.flushCounters(ctx, job.ID, progress)
		return nil
	})
}

// executeReindex re-embeds every stored document of the source.
func (w *Worker) executeReindex(ctx context.Context, job *store.IngestionJob, src *store.Source, progress *jobProgress) error {
	if src == nil {
		return errdefs.New(errdefs.CodeValidation, "reindex jobs require a source")
	}

	docs, err := w.store.ListDocumentsBySource(ctx, src.ID)
	if err != nil {
		return err
	}

	for _, doc := range docs {
		if done, cErr := w.store.IsJobCancelled(ctx, job.ID); cErr == nil && done {
			return nil
		}

		progress.total.Add(1)
		res, err := w.pipeline.ReindexDocument(ctx, src, doc)
		if err != nil {
			slog.Warn("reindex failed", "document_id", doc.ID, "error", err)
			progress.failed.Add(1)
		} else {
			progress.processed.Add(1)
			progress.chunks.Add(int64(res.ChunkCount))
		}
		w.flushCounters(ctx, job.ID, progress)
	}
	return nil
}

// crawlOptions merges source config with crawler defaults. Job config
// overrides source config.
func (w *Worker) crawlOptions(job *store.IngestionJob, src *store.Source) (crawler.Options, error) {
	merged := make(map[string]interface{})
	for k, v := range src.Config {
		merged[k] = v
	}
	for k, v := range job.Config {
		merged[k] = v
	}

	startURL, _ := merged["start_url"].(string)
	if startURL == "" {
		return crawler.Options{}, errdefs.New(errdefs.CodeConfiguration,
			"web source requires a start_url")
	}

	opts := crawler.Options{
		StartURL:      startURL,
		MaxPages:      configInt(merged, "max_pages", w.crawlerCfg.MaxPages),
		MaxDepth:      configInt(merged, "max_depth", w.crawlerCfg.MaxDepth),
		RespectRobots: configBool(merged, "respect_robots", w.crawlerCfg.RespectRobotsTxt),
		URLPattern:    configString(merged, "url_pattern", ""),
		Concurrency:   w.crawlerCfg.ConcurrentRequests,
		UserAgent:     w.crawlerCfg.UserAgent,
		Timeout:       w.crawlerCfg.Timeout,
	}
	if hosts, ok := merged["allowed_hosts"].([]interface{}); ok {
		for _, h := range hosts {
			if hs, ok := h.(string); ok {
				opts.AllowedHosts = append(opts.AllowedHosts, hs)
			}
		}
	}
	return opts, nil
}

func (w *Worker) flushCounters(ctx context.Context, jobID string, progress *jobProgress) {
	err := w.store.UpdateJobCounters(ctx, jobID,
		int(progress.total.Load()), int(progress.processed.Load()),
		int(progress.failed.Load()), int(progress.chunks.Load()))
	if err != nil {
		slog.Debug("failed to update job counters", "job_id", jobID, "error", err)
	}
}

// latchSource marks the source errored when everything failed, synced
// otherwise.
func (w *Worker) latchSource(ctx context.Context, src *store.Source, progress *jobProgress) {
	failed := progress.failed.Load()
	processed := progress.processed.Load()

	if processed == 0 && failed > 0 {
		msg := fmt.Sprintf("all %d documents failed", failed)
		if err := w.store.MarkSourceError(ctx, src.ID, msg); err != nil {
			slog.Warn("failed to latch source error", "source_id", src.ID, "error", err)
		}
		return
	}
	if err := w.store.MarkSourceSynced(ctx, src.ID, time.Now().UTC()); err != nil {
		slog.Warn("failed to mark source synced", "source_id", src.ID, "error", err)
	}
}

func configInt(m map[string]interface{}, key string, fallback int) int {
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return fallback
}

func configBool(m map[string]interface{}, key string, fallback bool) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}
	return fallback
}

func configString(m map[string]interface{}, key, fallback string) string {
	if v, ok := m[key].(string); ok && v != "" {
		return v
	}
	return fallback
}
