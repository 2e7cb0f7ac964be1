// Package networks renders query results into shareable artifacts (SIF,
// CSV, JSON) and stores them through the blob layer asynchronously.
package networks

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"sync"
	"time"

	"targetdb/internal/blob"
	"targetdb/pkg/domain"
)

// ExportStatus describes the lifecycle stage of an export request.
type ExportStatus string

const (
	ExportStatusQueued    ExportStatus = "queued"
	ExportStatusRunning   ExportStatus = "running"
	ExportStatusSucceeded ExportStatus = "succeeded"
	ExportStatusFailed    ExportStatus = "failed"
)

// ExportArtifact captures one stored rendering of a network.
type ExportArtifact struct {
	Key         string    `json:"key"`
	Format      Format    `json:"format"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	Checksum    string    `json:"checksum,omitempty"`
	URL         string    `json:"url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ExportRecord tracks an export request and its artifacts.
type ExportRecord struct {
	ID          string           `json:"id"`
	Organism    string           `json:"organism"`
	Query       string           `json:"query"`
	Formats     []Format         `json:"formats"`
	Status      ExportStatus     `json:"status"`
	Error       string           `json:"error,omitempty"`
	Artifacts   []ExportArtifact `json:"artifacts,omitempty"`
	RequestedBy string           `json:"requested_by,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}

func (r ExportRecord) copy() ExportRecord {
	dup := r
	dup.Formats = append([]Format(nil), r.Formats...)
	if len(r.Artifacts) > 0 {
		dup.Artifacts = append([]ExportArtifact(nil), r.Artifacts...)
	}
	return dup
}

// ExportInput is an enqueue request.
type ExportInput struct {
	Network     domain.TargetNetwork
	Formats     []Format
	RequestedBy string
}

// AuditEntry captures one audit trail event for an export.
type AuditEntry struct {
	ID         string       `json:"id"`
	Action     string       `json:"action"`
	Actor      string       `json:"actor,omitempty"`
	Organism   string       `json:"organism"`
	Query      string       `json:"query"`
	Status     ExportStatus `json:"status"`
	Note       string       `json:"note,omitempty"`
	OccurredAt time.Time    `json:"occurred_at"`
}

// AuditLogger records export audit entries.
type AuditLogger interface {
	Record(ctx context.Context, entry AuditEntry)
}

// Worker renders and stores network exports asynchronously.
type Worker struct {
	store blob.Store
	audit AuditLogger

	queue chan exportTask
	mu    sync.RWMutex
	jobs  map[string]*ExportRecord

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type exportTask struct {
	id    string
	input ExportInput
}

// NewWorker constructs a network export worker.
func NewWorker(store blob.Store, audit AuditLogger) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		store:  store,
		audit:  audit,
		queue:  make(chan exportTask, 32),
		jobs:   make(map[string]*ExportRecord),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins processing export requests.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop signals the worker to halt and waits for completion.
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
		case task := <-w.queue:
			w.process(task)
		}
	}
}

// Enqueue schedules an export and returns the queued record snapshot.
func (w *Worker) Enqueue(ctx context.Context, input ExportInput) (ExportRecord, error) {
	if w.store == nil {
		return ExportRecord{}, fmt.Errorf("artifact store not configured")
	}
	if input.Network.Organism == "" {
		return ExportRecord{}, fmt.Errorf("network organism required")
	}

	formats := input.Formats
	if len(formats) == 0 {
		formats = append([]Format(nil), supportedFormats...)
	}
	seen := make(map[Format]struct{}, len(formats))
	uniq := make([]Format, 0, len(formats))
	for _, f := range formats {
		if _, dup := seen[f]; dup {
			continue
		}
		if contentType(f) == "application/octet-stream" {
			return ExportRecord{}, fmt.Errorf("unsupported format %s", f)
		}
		uniq = append(uniq, f)
		seen[f] = struct{}{}
	}

	id := newID()
	now := time.Now().UTC()
	record := ExportRecord{
		ID:          id,
		Organism:    input.Network.Organism,
		Query:       input.Network.Query,
		Formats:     uniq,
		Status:      ExportStatusQueued,
		RequestedBy: input.RequestedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	w.mu.Lock()
	w.jobs[id] = &record
	queued := record.copy()
	w.mu.Unlock()

	w.recordAudit(ctx, id, ExportStatusQueued, "")

	select {
	case w.queue <- exportTask{id: id, input: input}:
	default:
		w.fail(id, "export queue full")
		return ExportRecord{}, fmt.Errorf("export queue full")
	}
	return queued, nil
}

// Get returns a snapshot of the export record.
func (w *Worker) Get(id string) (ExportRecord, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	record, ok := w.jobs[id]
	if !ok {
		return ExportRecord{}, false
	}
	return record.copy(), true
}

func (w *Worker) process(task exportTask) {
	w.updateStatus(task.id, ExportStatusRunning, "")

	record, ok := w.Get(task.id)
	if !ok {
		return
	}
	network := task.input.Network
	artifacts := make([]ExportArtifact, 0, len(record.Formats))
	for _, format := range record.Formats {
		payload, err := render(format, network)
		if err != nil {
			w.fail(task.id, err.Error())
			return
		}
		key := artifactKey(network.Organism, task.id, format)
		info, err := w.store.Put(w.ctx, key, bytes.NewReader(payload), blob.PutOptions{
			ContentType: contentType(format),
			Metadata: map[string]string{
				"organism": network.Organism,
				"query":    network.Query,
			},
		})
		if err != nil {
			w.fail(task.id, fmt.Sprintf("store artifact: %v", err))
			return
		}
		artifacts = append(artifacts, ExportArtifact{
			Key:         info.Key,
			Format:      format,
			ContentType: info.ContentType,
			SizeBytes:   info.Size,
			Checksum:    info.Checksum,
			URL:         info.URL,
			CreatedAt:   info.LastModified,
		})
	}
	w.complete(task.id, artifacts)
}

func artifactKey(organism, id string, format Format) string {
	safe := strings.ReplaceAll(organism, "/", "_")
	return fmt.Sprintf("%s/%s/network.%s", safe, id, format)
}

func (w *Worker) updateStatus(id string, status ExportStatus, note string) {
	now := time.Now().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = status
		record.Error = note
		record.UpdatedAt = now
	}
	w.mu.Unlock()
	w.recordAudit(w.ctx, id, status, note)
}

func (w *Worker) complete(id string, artifacts []ExportArtifact) {
	now := time.Now().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = ExportStatusSucceeded
		record.Error = ""
		record.Artifacts = artifacts
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
	w.recordAudit(w.ctx, id, ExportStatusSucceeded, "")
}

func (w *Worker) fail(id, reason string) {
	now := time.Now().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = ExportStatusFailed
		record.Error = reason
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
	w.recordAudit(w.ctx, id, ExportStatusFailed, reason)
}

func (w *Worker) recordAudit(ctx context.Context, id string, status ExportStatus, note string) {
	if w.audit == nil {
		return
	}
	w.mu.RLock()
	var actor, organism, query string
	if record, ok := w.jobs[id]; ok {
		actor, organism, query = record.RequestedBy, record.Organism, record.Query
	}
	w.mu.RUnlock()
	w.audit.Record(ctx, AuditEntry{
		ID:         newID(),
		Action:     "network_export",
		Actor:      actor,
		Organism:   organism,
		Query:      query,
		Status:     status,
		Note:       note,
		OccurredAt: time.Now().UTC(),
	})
}

func newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return fmt.Sprintf("%x", b[:])
}

// MemoryAuditLog collects audit entries in memory for tests.
type MemoryAuditLog struct {
	mu      sync.Mutex
	entries []AuditEntry
}

// Record appends an entry.
func (l *MemoryAuditLog) Record(_ context.Context, entry AuditEntry) {
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
}

// Entries returns a snapshot of everything recorded so far.
func (l *MemoryAuditLog) Entries() []AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]AuditEntry(nil), l.entries...)
}
