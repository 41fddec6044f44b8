package app

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/docvector/docvector/pkg/errdefs"
	"github.com/docvector/docvector/pkg/httpclient"
	"github.com/docvector/docvector/pkg/ingest"
	"github.com/docvector/docvector/pkg/search"
	"github.com/docvector/docvector/pkg/store"
)

// SearchResponse is the public search envelope.
type SearchResponse struct {
	Success    bool                  `json:"success"`
	Query      string                `json:"query"`
	Results    []search.SearchResult `json:"results"`
	Total      int                   `json:"total"`
	SearchType string                `json:"search_type"`
}

// Search runs a query and wraps the hits in the public envelope.
func (a *App) Search(ctx context.Context, req *search.SearchRequest) (*SearchResponse, error) {
	results, err := a.Engine.Search(ctx, req)
	if err != nil {
		return nil, err
	}

	searchType := req.SearchType
	if searchType == "" {
		searchType = search.SearchTypeHybrid
	}
	return &SearchResponse{
		Success:    true,
		Query:      req.Query,
		Results:    results,
		Total:      len(results),
		SearchType: searchType,
	}, nil
}

// CreateSource registers a new source.
func (a *App) CreateSource(ctx context.Context, src *store.Source) error {
	return a.Store.CreateSource(ctx, src)
}

// GetSource fetches a source by id.
func (a *App) GetSource(ctx context.Context, id string) (*store.Source, error) {
	return a.Store.GetSource(ctx, id)
}

// ListSources returns all sources.
func (a *App) ListSources(ctx context.Context) ([]*store.Source, error) {
	return a.Store.ListSources(ctx)
}

// UpdateSource persists source changes.
func (a *App) UpdateSource(ctx context.Context, src *store.Source) error {
	return a.Store.UpdateSource(ctx, src)
}

// DeleteSource removes a source, its documents, and their index
// points. Points go first so a failure leaves them discoverable by the
// reconciliation sweep rather than orphaned forever.
func (a *App) DeleteSource(ctx context.Context, id string) error {
	docs, err := a.Store.ListDocumentsBySource(ctx, id)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		err := a.Vectors.DeleteByFilter(ctx, a.Config.Qdrant.Collection,
			map[string]interface{}{"document_id": doc.ID})
		if err != nil {
			return errdefs.Wrap(errdefs.CodeDatabase, "failed to delete index points", err)
		}
	}
	return a.Store.DeleteSource(ctx, id)
}

// EnqueueIngestJob creates a pending job for the worker to claim.
func (a *App) EnqueueIngestJob(ctx context.Context, sourceID string, jobType store.JobType, jobConfig map[string]interface{}) (*store.IngestionJob, error) {
	if _, err := a.Store.GetSource(ctx, sourceID); err != nil {
		return nil, err
	}
	job := &store.IngestionJob{
		SourceID: sourceID,
		JobType:  jobType,
		Config:   jobConfig,
	}
	if err := a.Store.CreateJob(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// IngestURL fetches one URL and runs it through the pipeline
// synchronously.
func (a *App) IngestURL(ctx context.Context, sourceID, url string) (*ingest.ProcessResult, error) {
	src, err := a.Store.GetSource(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	client := httpclient.New(
		httpclient.WithTimeout(a.Config.Crawler.Timeout),
		httpclient.WithUserAgent(a.Config.Crawler.UserAgent),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.CodeValidation, "invalid url", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.CodeFetchFailed, "failed to fetch url", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errdefs.Newf(errdefs.CodeFetchFailed, "fetching %s returned %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.CodeFetchFailed, "failed to read response body", err)
	}

	return a.Pipeline.ProcessDocument(ctx, src, ingest.RawDocument{
		URL:         url,
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		FetchedAt:   time.Now().UTC(),
	})
}

// CreateLibrary registers a library in the catalogue.
func (a *App) CreateLibrary(ctx context.Context, lib *store.Library) error {
	return a.Store.CreateLibrary(ctx, lib)
}

// ListLibraries returns the library catalogue.
func (a *App) ListLibraries(ctx context.Context) ([]*store.Library, error) {
	return a.Store.ListLibraries(ctx)
}

// ResolveLibrary finds a library by external id, name, or alias.
func (a *App) ResolveLibrary(ctx context.Context, nameOrAlias string) (*store.Library, error) {
	return a.Store.ResolveLibrary(ctx, nameOrAlias)
}

// DeleteLibrary removes a library from the catalogue.
func (a *App) DeleteLibrary(ctx context.Context, id string) error {
	return a.Store.DeleteLibrary(ctx, id)
}

// GetJob fetches a job by id.
func (a *App) GetJob(ctx context.Context, id string) (*store.IngestionJob, error) {
	return a.Store.GetJob(ctx, id)
}

// ListJobs lists jobs, optionally filtered by status.
func (a *App) ListJobs(ctx context.Context, status store.JobStatus, limit int) ([]*store.IngestionJob, error) {
	return a.Store.ListJobs(ctx, status, limit)
}

// CancelJob requests cancellation of a non-terminal job.
func (a *App) CancelJob(ctx context.Context, id string) error {
	return a.Store.CancelJob(ctx, id)
}
