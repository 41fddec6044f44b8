package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/docvector/docvector/pkg/app"
	"github.com/docvector/docvector/pkg/errdefs"
	"github.com/docvector/docvector/pkg/search"
	"github.com/docvector/docvector/pkg/store"
)

// withApp builds the application context for one command invocation.
func withApp(cli *CLI, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

// resolveSource accepts a source name or id.
func resolveSource(ctx context.Context, a *app.App, ref string) (*store.Source, error) {
	if src, err := a.Store.GetSourceByName(ctx, ref); err == nil {
		return src, nil
	}
	return a.Store.GetSource(ctx, ref)
}

// SourceCmd manages documentation sources.
type SourceCmd struct {
	Add    SourceAddCmd    `cmd:"" help:"Register a new source."`
	List   SourceListCmd   `cmd:"" help:"List sources."`
	Remove SourceRemoveCmd `cmd:"" help:"Delete a source, its documents, and its index points."`
}

// SourceAddCmd registers a new source.
type SourceAddCmd struct {
	Name        string `required:"" help:"Unique source name."`
	Type        string `required:"" help:"Source type (web, file, git, api)."`
	StartURL    string `name:"start-url" help:"Crawl entry point (web sources)."`
	Path        string `help:"Directory to walk (file sources)." type:"path"`
	LibraryID   string `name:"library-id" help:"Library this source documents (name, alias, or id)."`
	LibVersion  string `name:"lib-version" help:"Library version of this source."`
	AccessLevel string `name:"access-level" help:"Access level tagged on every chunk." default:"public"`
	MaxPages    int    `name:"max-pages" help:"Crawl page cap (0 uses the configured default)."`
	MaxDepth    int    `name:"max-depth" help:"Crawl depth cap (0 uses the configured default)."`
}

func (c *SourceAddCmd) Run(cli *CLI) error {
	return withApp(cli, func(ctx context.Context, a *app.App) error {
		srcConfig := map[string]interface{}{}
		if c.StartURL != "" {
			srcConfig["start_url"] = c.StartURL
		}
		if c.Path != "" {
			srcConfig["path"] = c.Path
		}
		if c.AccessLevel != "" {
			srcConfig["access_level"] = c.AccessLevel
		}
		if c.MaxPages > 0 {
			srcConfig["max_pages"] = c.MaxPages
		}
		if c.MaxDepth > 0 {
			srcConfig["max_depth"] = c.MaxDepth
		}

		libraryID := c.LibraryID
		if libraryID != "" {
			if lib, err := a.ResolveLibrary(ctx, libraryID); err == nil {
				libraryID = lib.ID
			}
		}

		src := &store.Source{
			Name:      c.Name,
			Type:      store.SourceType(c.Type),
			LibraryID: libraryID,
			Version:   c.LibVersion,
			Config:    srcConfig,
		}
		if err := a.CreateSource(ctx, src); err != nil {
			return err
		}
		fmt.Printf("Source %s created (%s)\n", src.Name, src.ID)
		return nil
	})
}

// SourceListCmd lists sources.
type SourceListCmd struct{}

func (c *SourceListCmd) Run(cli *CLI) error {
	return withApp(cli, func(ctx context.Context, a *app.App) error {
		sources, err := a.ListSources(ctx)
		if err != nil {
			return err
		}
		if len(sources) == 0 {
			fmt.Println("No sources configured")
			return nil
		}
		for _, src := range sources {
			fmt.Printf("%s  %-8s %-8s %s\n", src.ID, src.Type, src.Status, src.Name)
			if src.ErrorMessage != "" {
				fmt.Printf("    error: %s\n", src.ErrorMessage)
			}
		}
		return nil
	})
}

// SourceRemoveCmd deletes a source.
type SourceRemoveCmd struct {
	Source string `arg:"" help:"Source name or id."`
}

func (c *SourceRemoveCmd) Run(cli *CLI) error {
	return withApp(cli, func(ctx context.Context, a *app.App) error {
		src, err := resolveSource(ctx, a, c.Source)
		if err != nil {
			return err
		}
		if err := a.DeleteSource(ctx, src.ID); err != nil {
			return err
		}
		fmt.Printf("Source %s deleted\n", src.Name)
		return nil
	})
}

// LibraryCmd manages the library catalogue.
type LibraryCmd struct {
	Add    LibraryAddCmd    `cmd:"" help:"Register a library."`
	List   LibraryListCmd   `cmd:"" help:"List libraries."`
	Remove LibraryRemoveCmd `cmd:"" help:"Delete a library."`
}

// LibraryAddCmd registers a library.
type LibraryAddCmd struct {
	LibraryID string   `name:"id" required:"" help:"External library id (e.g. /python/requests)."`
	Name      string   `required:"" help:"Display name."`
	Aliases   []string `help:"Alternate names resolvable in search."`
	Homepage  string   `help:"Project homepage."`
	RepoURL   string   `name:"repo-url" help:"Source repository URL."`
}

func (c *LibraryAddCmd) Run(cli *CLI) error {
	return withApp(cli, func(ctx context.Context, a *app.App) error {
		lib := &store.Library{
			LibraryID: c.LibraryID,
			Name:      c.Name,
			Aliases:   c.Aliases,
			Homepage:  c.Homepage,
			RepoURL:   c.RepoURL,
		}
		if err := a.CreateLibrary(ctx, lib); err != nil {
			return err
		}
		fmt.Printf("Library %s created (%s)\n", lib.Name, lib.ID)
		return nil
	})
}

// LibraryListCmd lists libraries.
type LibraryListCmd struct{}

func (c *LibraryListCmd) Run(cli *CLI) error {
	return withApp(cli, func(ctx context.Context, a *app.App) error {
		libs, err := a.ListLibraries(ctx)
		if err != nil {
			return err
		}
		if len(libs) == 0 {
			fmt.Println("No libraries registered")
			return nil
		}
		for _, lib := range libs {
			fmt.Printf("%s  %-24s %s\n", lib.ID, lib.LibraryID, lib.Name)
			if len(lib.Aliases) > 0 {
				fmt.Printf("    aliases: %s\n", strings.Join(lib.Aliases, ", "))
			}
		}
		return nil
	})
}

// LibraryRemoveCmd deletes a library.
type LibraryRemoveCmd struct {
	Library string `arg:"" help:"Library id, external id, name, or alias."`
}

func (c *LibraryRemoveCmd) Run(cli *CLI) error {
	return withApp(cli, func(ctx context.Context, a *app.App) error {
		lib, err := a.ResolveLibrary(ctx, c.Library)
		if err != nil {
			lib, err = a.Store.GetLibrary(ctx, c.Library)
			if err != nil {
				return err
			}
		}
		if err := a.DeleteLibrary(ctx, lib.ID); err != nil {
			return err
		}
		fmt.Printf("Library %s deleted\n", lib.Name)
		return nil
	})
}

// IngestCmd ingests a source or a single URL.
type IngestCmd struct {
	Source  string `required:"" help:"Source name or id."`
	URL     string `help:"Ingest one URL synchronously instead of syncing the source."`
	JobType string `name:"job-type" help:"Job type (full_sync, incremental, manual, reindex)." default:"full_sync"`
	Async   bool   `help:"Enqueue the job for a running serve process instead of running it here."`
}

func (c *IngestCmd) Run(cli *CLI) error {
	return withApp(cli, func(ctx context.Context, a *app.App) error {
		src, err := resolveSource(ctx, a, c.Source)
		if err != nil {
			return err
		}

		if c.URL != "" {
			res, err := a.IngestURL(ctx, src.ID, c.URL)
			if err != nil {
				return err
			}
			if res.Skipped {
				fmt.Printf("Unchanged: %s (%d chunks)\n", c.URL, res.ChunkCount)
			} else {
				fmt.Printf("Ingested %s: %d chunks\n", c.URL, res.ChunkCount)
			}
			return nil
		}

		job, err := a.EnqueueIngestJob(ctx, src.ID, store.JobType(c.JobType), nil)
		if err != nil {
			return err
		}
		if c.Async {
			fmt.Printf("Job %s enqueued\n", job.ID)
			return nil
		}

		if err := a.Worker.RunJobByID(ctx, job.ID); err != nil {
			return err
		}
		done, err := a.GetJob(ctx, job.ID)
		if err != nil {
			return err
		}
		fmt.Printf("Job %s %s: %d processed, %d failed, %d chunks\n",
			done.ID, done.Status, done.ProcessedDocuments, done.FailedDocuments, done.TotalChunks)
		if done.Status == store.JobStatusFailed {
			return errdefs.Newf(errdefs.CodeIngestion, "job failed: %s", done.ErrorMessage)
		}
		return nil
	})
}

// JobsCmd inspects and cancels ingestion jobs.
type JobsCmd struct {
	List   JobsListCmd   `cmd:"" default:"1" help:"List recent jobs."`
	Cancel JobsCancelCmd `cmd:"" help:"Cancel a pending or running job."`
}

// JobsListCmd lists recent jobs.
type JobsListCmd struct {
	Status string `help:"Filter by status (pending, running, completed, failed, cancelled)."`
	Limit  int    `help:"Maximum jobs to list." default:"20"`
}

func (c *JobsListCmd) Run(cli *CLI) error {
	return withApp(cli, func(ctx context.Context, a *app.App) error {
		jobs, err := a.ListJobs(ctx, store.JobStatus(c.Status), c.Limit)
		if err != nil {
			return err
		}
		if len(jobs) == 0 {
			fmt.Println("No jobs")
			return nil
		}
		for _, job := range jobs {
			fmt.Printf("%s  %-12s %-10s processed=%d failed=%d chunks=%d\n",
				job.ID, job.JobType, job.Status,
				job.ProcessedDocuments, job.FailedDocuments, job.TotalChunks)
		}
		return nil
	})
}

// JobsCancelCmd cancels a job.
type JobsCancelCmd struct {
	Job string `arg:"" help:"Job id."`
}

func (c *JobsCancelCmd) Run(cli *CLI) error {
	return withApp(cli, func(ctx context.Context, a *app.App) error {
		if err := a.CancelJob(ctx, c.Job); err != nil {
			return err
		}
		fmt.Printf("Job %s cancelled\n", c.Job)
		return nil
	})
}

// SearchCmd searches the index.
type SearchCmd struct {
	Query       string   `arg:"" help:"Search query."`
	Limit       int      `help:"Maximum results."`
	Type        string   `help:"Search type (vector, hybrid)." default:"hybrid"`
	AccessLevel string   `name:"access-level" help:"Only return chunks with this access level."`
	Topics      []string `help:"Only return chunks tagged with these topics."`
	Library     string   `help:"Only return chunks from this library (name or alias)."`
	LibraryID   string   `name:"library-id" help:"Only return chunks from this library id."`
	LibVersion  string   `name:"lib-version" help:"Only return chunks from this library version."`
	MaxTokens   int      `name:"max-tokens" help:"Pack results into this token budget (0 disables)."`
	Threshold   float32  `help:"Minimum vector similarity score."`
	NoRerank    bool     `name:"no-rerank" help:"Disable quality reranking."`
}

func (c *SearchCmd) Run(cli *CLI) error {
	return withApp(cli, func(ctx context.Context, a *app.App) error {
		libraryID := c.LibraryID
		if c.Library != "" {
			lib, err := a.ResolveLibrary(ctx, c.Library)
			if err != nil {
				return err
			}
			libraryID = lib.ID
		}

		resp, err := a.Search(ctx, &search.SearchRequest{
			Query:          c.Query,
			Limit:          c.Limit,
			SearchType:     c.Type,
			AccessLevel:    c.AccessLevel,
			Topics:         c.Topics,
			LibraryID:      libraryID,
			Version:        c.LibVersion,
			ScoreThreshold: c.Threshold,
			UseReranking:   !c.NoRerank,
			MaxTokens:      c.MaxTokens,
		})
		if err != nil {
			return err
		}

		if resp.Total == 0 {
			fmt.Println("No results")
			return nil
		}
		for i, res := range resp.Results {
			header := fmt.Sprintf("%d. [%.3f] %s", i+1, res.Score, res.Title)
			if res.URL != "" {
				header += " (" + res.URL + ")"
			}
			if res.Truncated {
				header += " [truncated]"
			}
			fmt.Println(header)
			fmt.Println(indent(res.Content, "   "))
			fmt.Println()
		}
		return nil
	})
}

func indent(text, prefix string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}
