// Package store is the relational source of truth: libraries, sources,
// documents, chunks, and ingestion jobs.
package store

import (
	"fmt"
	"time"
)

// SourceType classifies where a source's documents come from.
type SourceType string

const (
	SourceTypeWeb  SourceType = "web"
	SourceTypeGit  SourceType = "git"
	SourceTypeFile SourceType = "file"
	SourceTypeAPI  SourceType = "api"
)

func (t SourceType) Valid() bool {
	switch t {
	case SourceTypeWeb, SourceTypeGit, SourceTypeFile, SourceTypeAPI:
		return true
	}
	return false
}

// SourceStatus is the operational state of a source.
type SourceStatus string

const (
	SourceStatusActive SourceStatus = "active"
	SourceStatusPaused SourceStatus = "paused"
	SourceStatusError  SourceStatus = "error"
)

func (s SourceStatus) Valid() bool {
	switch s {
	case SourceStatusActive, SourceStatusPaused, SourceStatusError:
		return true
	}
	return false
}

// DocumentStatus tracks a document through the ingestion pipeline.
type DocumentStatus string

const (
	DocumentStatusPending    DocumentStatus = "pending"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusCompleted  DocumentStatus = "completed"
	DocumentStatusFailed     DocumentStatus = "failed"
)

// CanTransition reports whether the pipeline may move a document from
// s to next. Terminal states allow re-processing.
func (s DocumentStatus) CanTransition(next DocumentStatus) bool {
	switch s {
	case DocumentStatusPending:
		return next == DocumentStatusProcessing
	case DocumentStatusProcessing:
		return next == DocumentStatusCompleted || next == DocumentStatusFailed
	case DocumentStatusCompleted, DocumentStatusFailed:
		return next == DocumentStatusProcessing
	}
	return false
}

// JobType is the kind of work an ingestion job performs.
type JobType string

const (
	JobTypeFullSync    JobType = "full_sync"
	JobTypeIncremental JobType = "incremental"
	JobTypeManual      JobType = "manual"
	JobTypeCrawlURL    JobType = "crawl_url"
	JobTypeReindex     JobType = "reindex"
)

func (t JobType) Valid() bool {
	switch t {
	case JobTypeFullSync, JobTypeIncremental, JobTypeManual, JobTypeCrawlURL, JobTypeReindex:
		return true
	}
	return false
}

// JobStatus tracks an ingestion job's lifecycle.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// CanTransition reports whether a job may move from s to next.
func (s JobStatus) CanTransition(next JobStatus) bool {
	switch s {
	case JobStatusPending:
		return next == JobStatusRunning || next == JobStatusCancelled
	case JobStatusRunning:
		return next == JobStatusCompleted || next == JobStatusFailed || next == JobStatusCancelled
	}
	return false
}

func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// Library is an optional grouping of sources, e.g. "vercel/next.js".
type Library struct {
	ID        string
	LibraryID string
	Name      string
	Aliases   []string
	Homepage  string
	RepoURL   string
	Metadata  map[string]interface{}
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (l *Library) Validate() error {
	if l.LibraryID == "" {
		return fmt.Errorf("library_id is required")
	}
	if l.Name == "" {
		return fmt.Errorf("library name is required")
	}
	return nil
}

// Source is a configured origin documents are fetched from.
type Source struct {
	ID            string
	Name          string
	Type          SourceType
	LibraryID     string
	Version       string
	Config        map[string]interface{}
	Status        SourceStatus
	SyncFrequency string
	LastSyncedAt  *time.Time
	ErrorMessage  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (s *Source) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("source name is required")
	}
	if !s.Type.Valid() {
		return fmt.Errorf("invalid source type: %s (must be web, git, file, or api)", s.Type)
	}
	if s.Status != "" && !s.Status.Valid() {
		return fmt.Errorf("invalid source status: %s", s.Status)
	}
	return nil
}

// Document is one fetched artifact belonging to a source.
type Document struct {
	ID               string
	SourceID         string
	URL              string
	Path             string
	ContentHash      string
	Title            string
	Content          string
	ContentLength    int
	Metadata         map[string]interface{}
	Language         string
	Format           string
	Status           DocumentStatus
	ErrorMessage     string
	ChunkCount       int
	ChunkingStrategy string
	FetchedAt        *time.Time
	ProcessedAt      *time.Time
	Author           string
	PublishedAt      *time.Time
	ModifiedAt       *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (d *Document) Validate() error {
	if d.SourceID == "" {
		return fmt.Errorf("document source_id is required")
	}
	if d.URL == "" && d.Path == "" {
		return fmt.Errorf("document requires a url or a path")
	}
	return nil
}

// Chunk is one segment of a document's normalized text.
type Chunk struct {
	ID            string
	DocumentID    string
	Index         int
	Content       string
	ContentLength int
	StartChar     int
	EndChar       int
	IsCodeSnippet bool
	CodeLanguage  string
	Topics        []string
	Enrichment    string

	RelevanceScore      float64
	CodeQualityScore    float64
	FormattingScore     float64
	MetadataScore       float64
	InitializationScore float64

	PrevChunkID string
	NextChunkID string

	Metadata       map[string]interface{}
	EmbeddingID    string
	EmbeddingModel string
	EmbeddedAt     *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (c *Chunk) Validate() error {
	if c.DocumentID == "" {
		return fmt.Errorf("chunk document_id is required")
	}
	if c.Index < 0 {
		return fmt.Errorf("chunk index must be non-negative")
	}
	if c.EndChar < c.StartChar {
		return fmt.Errorf("chunk end_char %d precedes start_char %d", c.EndChar, c.StartChar)
	}
	if c.EmbeddingID != "" && c.EmbeddedAt == nil {
		return fmt.Errorf("chunk with embedding_id must have embedded_at")
	}
	return nil
}

// IngestionJob tracks one asynchronous ingestion task.
type IngestionJob struct {
	ID       string
	SourceID string
	JobType  JobType
	Status   JobStatus

	TotalDocuments     int
	ProcessedDocuments int
	FailedDocuments    int
	TotalChunks        int

	StartedAt    *time.Time
	CompletedAt  *time.Time
	ErrorMessage string
	ErrorDetails map[string]interface{}
	TaskID       string
	Config       map[string]interface{}

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (j *IngestionJob) Validate() error {
	if !j.JobType.Valid() {
		return fmt.Errorf("invalid job type: %s", j.JobType)
	}
	return nil
}
