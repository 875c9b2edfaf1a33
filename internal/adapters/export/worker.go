// Package export renders the whole stamp book into downloadable artifacts
// (JSON backup, CSV tables) on a background worker and keeps them in the
// blob store under exports/<id>/.
package export

import (
	"breadstamp/internal/blob"
	"breadstamp/internal/core"
	"breadstamp/internal/stats"
	"breadstamp/pkg/domain"
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Format is an artifact encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// Status describes the lifecycle stage of an export.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

const (
	keyPrefix    = "exports/"
	defaultQueue = 16
	urlExpiry    = time.Hour
)

// ErrQueueFull is returned when the worker cannot accept another export.
var ErrQueueFull = errors.New("export queue full")

// Artifact is one stored file of an export.
type Artifact struct {
	Name        string    `json:"name"`
	Key         string    `json:"key"`
	Format      Format    `json:"format"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	URL         string    `json:"url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Record tracks an export request and its artifacts.
type Record struct {
	ID          string     `json:"id"`
	Formats     []Format   `json:"formats"`
	Status      Status     `json:"status"`
	Error       string     `json:"error,omitempty"`
	Artifacts   []Artifact `json:"artifacts,omitempty"`
	RequestedBy string     `json:"requested_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (r *Record) copy() Record {
	out := *r
	out.Formats = append([]Format(nil), r.Formats...)
	out.Artifacts = append([]Artifact(nil), r.Artifacts...)
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		out.CompletedAt = &t
	}
	return out
}

// Input is an enqueue request. No formats means every format.
type Input struct {
	Formats     []Format
	RequestedBy string
}

// Source supplies the records an export captures. core.Service satisfies it.
type Source interface {
	ListBakeries(ctx context.Context) ([]core.BakerySummary, error)
	ListBreads(ctx context.Context, filter core.BreadFilter) []domain.Bread
	Statistics(ctx context.Context) (stats.Stats, error)
	Achievements(ctx context.Context) ([]domain.Achievement, error)
}

// Scheduler queues exports and reports their status.
type Scheduler interface {
	Enqueue(ctx context.Context, in Input) (Record, error)
	Get(id string) (Record, bool)
	Download(ctx context.Context, id, name string) (Artifact, []byte, error)
}

// Worker executes exports asynchronously.
type Worker struct {
	source Source
	blobs  blob.Store
	logger *zap.Logger
	now    func() time.Time

	queue chan string
	mu    sync.RWMutex
	jobs  map[string]*Record

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorker constructs an export worker. Call Start before enqueueing.
func NewWorker(source Source, blobs blob.Store, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		source: source,
		blobs:  blobs,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		queue:  make(chan string, defaultQueue),
		jobs:   make(map[string]*Record),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins processing queued exports.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop halts the worker and waits for the in-flight export.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case id := <-w.queue:
			w.process(id)
		}
	}
}

// Enqueue validates in and schedules an export.
func (w *Worker) Enqueue(_ context.Context, in Input) (Record, error) {
	formats := in.Formats
	if len(formats) == 0 {
		formats = []Format{FormatJSON, FormatCSV}
	}
	uniq := make([]Format, 0, len(formats))
	seen := make(map[Format]struct{})
	for _, f := range formats {
		if f != FormatJSON && f != FormatCSV {
			return Record{}, fmt.Errorf("%w: unsupported export format %q", core.ErrInvalidInput, f)
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		uniq = append(uniq, f)
	}

	now := w.now()
	record := &Record{
		ID:          uuid.NewString(),
		Formats:     uniq,
		Status:      StatusQueued,
		RequestedBy: in.RequestedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	w.mu.Lock()
	w.jobs[record.ID] = record
	snapshot := record.copy()
	w.mu.Unlock()

	select {
	case w.queue <- record.ID:
	default:
		w.mu.Lock()
		delete(w.jobs, record.ID)
		w.mu.Unlock()
		return Record{}, ErrQueueFull
	}
	w.logger.Info("export queued", zap.String("export", record.ID), zap.Any("formats", uniq))
	return snapshot, nil
}

// Get returns a snapshot of the export record.
func (w *Worker) Get(id string) (Record, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	record, ok := w.jobs[id]
	if !ok {
		return Record{}, false
	}
	return record.copy(), true
}

// Download returns one artifact of a finished export.
func (w *Worker) Download(ctx context.Context, id, name string) (Artifact, []byte, error) {
	record, ok := w.Get(id)
	if !ok {
		return Artifact{}, nil, core.ErrNotFound{Entity: "export", ID: id}
	}
	for _, a := range record.Artifacts {
		if a.Name != name {
			continue
		}
		_, rc, err := w.blobs.Get(ctx, a.Key)
		if errors.Is(err, blob.ErrNotFound) {
			return Artifact{}, nil, core.ErrNotFound{Entity: "artifact", ID: a.Key}
		}
		if err != nil {
			return Artifact{}, nil, fmt.Errorf("read artifact: %w", err)
		}
		defer func() { _ = rc.Close() }()
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(rc); err != nil {
			return Artifact{}, nil, fmt.Errorf("read artifact: %w", err)
		}
		return a, buf.Bytes(), nil
	}
	return Artifact{}, nil, core.ErrNotFound{Entity: "artifact", ID: id + "/" + name}
}

func (w *Worker) process(id string) {
	record, ok := w.Get(id)
	if !ok {
		return
	}
	w.updateStatus(id, StatusRunning)

	snapshot, err := capture(w.ctx, w.source, w.now())
	if err != nil {
		w.fail(id, fmt.Sprintf("capture records: %v", err))
		return
	}
	var artifacts []Artifact
	for _, format := range record.Formats {
		files, err := render(format, snapshot)
		if err != nil {
			w.fail(id, err.Error())
			return
		}
		for _, f := range files {
			stored, err := w.store(id, format, f)
			if err != nil {
				w.fail(id, fmt.Sprintf("store artifact %s: %v", f.name, err))
				return
			}
			artifacts = append(artifacts, stored)
		}
	}
	w.complete(id, artifacts)
}

func (w *Worker) store(id string, format Format, f file) (Artifact, error) {
	key := keyPrefix + id + "/" + f.name
	info, err := w.blobs.Put(w.ctx, key, bytes.NewReader(f.data), blob.PutOptions{
		ContentType: f.contentType,
		Metadata:    map[string]string{"export": id, "format": string(format)},
	})
	if err != nil {
		return Artifact{}, err
	}
	artifact := Artifact{
		Name:        f.name,
		Key:         key,
		Format:      format,
		ContentType: f.contentType,
		SizeBytes:   info.Size,
		CreatedAt:   w.now(),
	}
	if url, err := w.blobs.PresignURL(w.ctx, key, blob.SignedURLOptions{Expiry: urlExpiry}); err == nil {
		artifact.URL = url
	}
	return artifact, nil
}

func (w *Worker) updateStatus(id string, status Status) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if record, ok := w.jobs[id]; ok {
		record.Status = status
		record.UpdatedAt = w.now()
	}
}

func (w *Worker) complete(id string, artifacts []Artifact) {
	now := w.now()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = StatusSucceeded
		record.Error = ""
		record.Artifacts = artifacts
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
	w.logger.Info("export completed", zap.String("export", id), zap.Int("artifacts", len(artifacts)))
}

func (w *Worker) fail(id, reason string) {
	now := w.now()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = StatusFailed
		record.Error = reason
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
	w.logger.Warn("export failed", zap.String("export", id), zap.String("reason", reason))
}
