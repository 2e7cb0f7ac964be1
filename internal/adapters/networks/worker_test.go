package networks

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"targetdb/internal/blob"
	"targetdb/pkg/domain"
)

func fptr(v float64) *float64 { return &v }

func sampleNetwork() domain.TargetNetwork {
	return domain.TargetNetwork{
		Organism: "ara",
		Query:    "G1",
		Genes:    []string{"G2", "G3"},
		Edges: []domain.Edge{
			{Dataset: "D1", Organism: "ara", Source: "G1", Target: "G2", Kind: domain.EdgeInduced, PValue: fptr(0.001), FoldChange: fptr(2)},
			{Dataset: "D1", Organism: "ara", Source: "G1", Target: "G3", Kind: domain.EdgeBound},
		},
	}
}

func waitDone(t *testing.T, w *Worker, id string) ExportRecord {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		record, ok := w.Get(id)
		if ok && (record.Status == ExportStatusSucceeded || record.Status == ExportStatusFailed) {
			return record
		}
		select {
		case <-deadline:
			t.Fatalf("export %s did not finish, last status %s", id, record.Status)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestWorkerExportLifecycle(t *testing.T) {
	store := blob.NewMemory()
	audit := &MemoryAuditLog{}
	w := NewWorker(store, audit)
	w.Start()
	defer w.Stop(context.Background())

	record, err := w.Enqueue(context.Background(), ExportInput{
		Network:     sampleNetwork(),
		Formats:     []Format{FormatJSON, FormatSIF},
		RequestedBy: "cli",
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if record.Status != ExportStatusQueued {
		t.Fatalf("status = %s, want queued", record.Status)
	}

	done := waitDone(t, w, record.ID)
	if done.Status != ExportStatusSucceeded {
		t.Fatalf("status = %s (%s), want succeeded", done.Status, done.Error)
	}
	if len(done.Artifacts) != 2 {
		t.Fatalf("artifacts = %d, want 2", len(done.Artifacts))
	}
	if done.CompletedAt == nil {
		t.Fatal("CompletedAt not set")
	}

	for _, artifact := range done.Artifacts {
		if !strings.HasPrefix(artifact.Key, "ara/"+record.ID+"/") {
			t.Fatalf("artifact key = %s", artifact.Key)
		}
		if artifact.Checksum == "" {
			t.Fatalf("artifact %s missing checksum", artifact.Key)
		}
		_, rc, err := store.Get(context.Background(), artifact.Key)
		if err != nil {
			t.Fatalf("Get(%s): %v", artifact.Key, err)
		}
		payload, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read %s: %v", artifact.Key, err)
		}
		switch artifact.Format {
		case FormatJSON:
			var network domain.TargetNetwork
			if err := json.Unmarshal(payload, &network); err != nil {
				t.Fatalf("json artifact: %v", err)
			}
			if network.Query != "G1" || len(network.Edges) != 2 {
				t.Fatalf("json round trip: %+v", network)
			}
		case FormatSIF:
			if !strings.Contains(string(payload), "G1\tinduced\tG2") {
				t.Fatalf("sif payload:\n%s", payload)
			}
		}
	}

	entries := audit.Entries()
	if len(entries) < 2 {
		t.Fatalf("audit entries = %d, want queued plus terminal", len(entries))
	}
	if entries[0].Status != ExportStatusQueued || entries[len(entries)-1].Status != ExportStatusSucceeded {
		t.Fatalf("audit trail = %+v", entries)
	}
}

func TestWorkerDefaultsToAllFormats(t *testing.T) {
	w := NewWorker(blob.NewMemory(), &MemoryAuditLog{})
	w.Start()
	defer w.Stop(context.Background())

	record, err := w.Enqueue(context.Background(), ExportInput{Network: sampleNetwork()})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if len(record.Formats) != len(supportedFormats) {
		t.Fatalf("formats = %v", record.Formats)
	}
	done := waitDone(t, w, record.ID)
	if done.Status != ExportStatusSucceeded {
		t.Fatalf("status = %s (%s)", done.Status, done.Error)
	}
	if len(done.Artifacts) != len(supportedFormats) {
		t.Fatalf("artifacts = %d, want %d", len(done.Artifacts), len(supportedFormats))
	}
}

func TestWorkerRejectsBadInput(t *testing.T) {
	w := NewWorker(blob.NewMemory(), &MemoryAuditLog{})

	if _, err := w.Enqueue(context.Background(), ExportInput{
		Network: domain.TargetNetwork{Query: "G1"},
	}); err == nil {
		t.Fatal("expected error for missing organism")
	}

	if _, err := w.Enqueue(context.Background(), ExportInput{
		Network: sampleNetwork(),
		Formats: []Format{Format("xlsx")},
	}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWorkerGetUnknownID(t *testing.T) {
	w := NewWorker(blob.NewMemory(), &MemoryAuditLog{})
	if _, ok := w.Get("nope"); ok {
		t.Fatal("unknown id reported as present")
	}
}

func TestRenderCSV(t *testing.T) {
	payload, err := render(FormatCSV, sampleNetwork())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(payload)), "\n")
	if len(lines) != 3 {
		t.Fatalf("csv lines = %d:\n%s", len(lines), payload)
	}
	if lines[0] != "dataset,source,target,kind,p_value,fold_change" {
		t.Fatalf("csv header = %s", lines[0])
	}
	// Presence-only edges leave the numeric columns empty.
	if !strings.HasSuffix(lines[2], ",,") {
		t.Fatalf("bound row = %s", lines[2])
	}
}
