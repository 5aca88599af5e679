// Package exports builds bulk record archives in the background: a CSV of
// the selected records plus a zip of their photos, uploaded to the exports
// bucket with a completion event on Pub/Sub.
package exports

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"campusworks.org/idcard-admin/internal/records"
)

// Job lifecycle states.
const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

var (
	// ErrJobNotFound is returned when polling an unknown job id.
	ErrJobNotFound = errors.New("exports: job not found")
	// ErrNoRecords is returned when the requested selection is empty.
	ErrNoRecords = errors.New("exports: no records match the request")
	// ErrShuttingDown is returned for submissions after Close.
	ErrShuttingDown = errors.New("exports: service is shutting down")
)

// Request selects the records to export.
type Request struct {
	Type          string
	Class         string
	IncludePhotos bool
}

// Job is the polled view of one export.
type Job struct {
	ID           string    `json:"id"`
	Status       string    `json:"status"`
	RecordCount  int       `json:"recordCount"`
	MissedPhotos int       `json:"missedPhotos,omitempty"`
	ArchiveURL   string    `json:"archiveUrl,omitempty"`
	Error        string    `json:"error,omitempty"`
	SubmittedAt  time.Time `json:"submittedAt"`
	FinishedAt   time.Time `json:"finishedAt,omitempty"`
}

// ArchiveStore persists a finished archive and returns its fetchable URL.
type ArchiveStore interface {
	Store(ctx context.Context, name string, data []byte) (string, error)
}

// EventPublisher announces a finished job. Implementations are expected to
// be Pub/Sub backed in production.
type EventPublisher interface {
	PublishExportCompleted(ctx context.Context, job Job) error
}

// PhotoFetcher resolves a photo URL to bytes. Failures are tolerated per
// record.
type PhotoFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Service runs export jobs on a small fixed worker pool.
type Service struct {
	repo    records.Repository
	store   ArchiveStore
	events  EventPublisher
	photos  PhotoFetcher
	logger  *zap.Logger
	now     func() time.Time
	entropy *entropySource

	queue chan string

	mu     sync.RWMutex
	jobs   map[string]*jobState
	closed bool

	wg sync.WaitGroup
	// base context for job execution, detached from submit requests
	runCtx    context.Context
	runCancel context.CancelFunc
}

type jobState struct {
	job Job
	req Request
}

// Config tunes the service.
type Config struct {
	Workers   int
	QueueSize int
}

// NewService constructs and starts the export worker pool.
func NewService(repo records.Repository, store ArchiveStore, events EventPublisher, photos PhotoFetcher, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 2
	}
	queueSize := cfg.QueueSize
	if queueSize < 1 {
		queueSize = 16
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		repo:      repo,
		store:     store,
		events:    events,
		photos:    photos,
		logger:    logger,
		now:       time.Now,
		entropy:   newEntropySource(),
		queue:     make(chan string, queueSize),
		jobs:      make(map[string]*jobState),
		runCtx:    ctx,
		runCancel: cancel,
	}
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
	return s
}

// Submit queues a new export job and returns its id immediately.
func (s *Service) Submit(ctx context.Context, req Request) (Job, error) {
	id := ulid.MustNew(ulid.Timestamp(s.now()), s.entropy).String()
	job := Job{
		ID:          id,
		Status:      StatusQueued,
		SubmittedAt: s.now().UTC(),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Job{}, ErrShuttingDown
	}
	s.jobs[id] = &jobState{job: job, req: req}
	s.mu.Unlock()

	select {
	case s.queue <- id:
	case <-ctx.Done():
		s.mu.Lock()
		delete(s.jobs, id)
		s.mu.Unlock()
		return Job{}, ctx.Err()
	}

	s.logger.Info("exports: job queued", zap.String("job", id),
		zap.String("type", req.Type), zap.String("class", req.Class))
	return job, nil
}

// Job returns the current state of one job.
func (s *Service) Job(id string) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.jobs[id]
	if !ok {
		return Job{}, ErrJobNotFound
	}
	return state.job, nil
}

// Jobs lists all known jobs, newest first.
func (s *Service) Jobs() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Job, 0, len(s.jobs))
	for _, state := range s.jobs {
		out = append(out, state.job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

// Close stops accepting jobs and waits for in-flight work to finish.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	close(s.queue)
	s.wg.Wait()
	s.runCancel()
}

func (s *Service) worker(n int) {
	defer s.wg.Done()
	for id := range s.queue {
		s.run(id, n)
	}
}

func (s *Service) run(id string, worker int) {
	s.mu.Lock()
	state, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	state.job.Status = StatusRunning
	req := state.req
	s.mu.Unlock()

	s.logger.Info("exports: job started", zap.String("job", id), zap.Int("worker", worker))

	result, err := s.build(s.runCtx, id, req)

	s.mu.Lock()
	if err != nil {
		state.job.Status = StatusFailed
		state.job.Error = err.Error()
	} else {
		state.job.Status = StatusCompleted
		state.job.RecordCount = result.recordCount
		state.job.MissedPhotos = result.missedPhotos
		state.job.ArchiveURL = result.archiveURL
	}
	state.job.FinishedAt = s.now().UTC()
	done := state.job
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("exports: job failed", zap.String("job", id), zap.Error(err))
		return
	}
	s.logger.Info("exports: job completed", zap.String("job", id),
		zap.Int("records", done.RecordCount), zap.Int("missedPhotos", done.MissedPhotos))

	if s.events != nil {
		if err := s.events.PublishExportCompleted(s.runCtx, done); err != nil {
			s.logger.Warn("exports: completion event publish failed",
				zap.String("job", id), zap.Error(err))
		}
	}
}

type buildResult struct {
	recordCount  int
	missedPhotos int
	archiveURL   string
}

func (s *Service) build(ctx context.Context, id string, req Request) (buildResult, error) {
	recs, err := s.repo.List(ctx, records.Query{Type: req.Type, Class: req.Class})
	if err != nil {
		return buildResult{}, fmt.Errorf("list records: %w", err)
	}
	if len(recs) == 0 {
		return buildResult{}, ErrNoRecords
	}

	archive, missed, err := s.buildArchive(ctx, recs, req.IncludePhotos)
	if err != nil {
		return buildResult{}, err
	}

	name := fmt.Sprintf("exports/%s.zip", id)
	url, err := s.store.Store(ctx, name, archive)
	if err != nil {
		return buildResult{}, fmt.Errorf("store archive: %w", err)
	}
	return buildResult{
		recordCount:  len(recs),
		missedPhotos: missed,
		archiveURL:   url,
	}, nil
}
