package core

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"targetdb/internal/adapters/networks"
	"targetdb/internal/blob"
	"targetdb/internal/infra/persistence/memory"
	"targetdb/pkg/domain"
)

func fptr(v float64) *float64 { return &v }

func seededService(t *testing.T, opts ...ServiceOption) (*Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		genes := []domain.Gene{
			{GeneID: "G1", Organism: "ara", Name: "ABI4", Aliases: []string{"ABI4"}},
			{GeneID: "G2", Organism: "ara"},
			{GeneID: "G3", Organism: "ara"},
		}
		for _, g := range genes {
			if err := tx.UpsertGene(g); err != nil {
				return err
			}
		}
		if err := tx.UpsertDataset(domain.Dataset{
			ID: "D1", Organism: "ara", TF: "G1",
			Metadata: map[string]string{domain.MetaExperimentType: domain.ExperimentExpression},
		}); err != nil {
			return err
		}
		if err := tx.UpsertEdge(domain.Edge{
			Dataset: "D1", Organism: "ara", Source: "G1", Target: "G2",
			Kind: domain.EdgeInduced, PValue: fptr(0.01), FoldChange: fptr(1.5),
		}); err != nil {
			return err
		}
		return tx.UpsertGeneList(domain.GeneList{Name: "stress", Organism: "ara", Members: []string{"G2"}})
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return NewService(store, opts...), store
}

func TestServiceQuery(t *testing.T) {
	svc, _ := seededService(t)
	network, err := svc.Query(context.Background(), "ara", "ABI4")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if !reflect.DeepEqual(network.Genes, []string{"G2"}) {
		t.Fatalf("genes = %v, want [G2]", network.Genes)
	}
	if network.Organism != "ara" || network.Query == "" {
		t.Fatalf("network = %+v", network)
	}
}

func TestServiceQueryErrors(t *testing.T) {
	svc, _ := seededService(t)
	_, err := svc.Query(context.Background(), "ara", "G1 and G2 or G3")
	var ambiguous domain.AmbiguousQueryError
	if !errors.As(err, &ambiguous) {
		t.Fatalf("err = %v, want AmbiguousQueryError", err)
	}
	_, err = svc.Query(context.Background(), "ara", "UNKNOWN_TF")
	var invalid domain.InvalidQueryError
	if !errors.As(err, &invalid) {
		t.Fatalf("err = %v, want InvalidQueryError", err)
	}
}

func TestServiceEnrichLists(t *testing.T) {
	svc, _ := seededService(t)
	network, err := svc.Query(context.Background(), "ara", "G1")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	results, err := svc.EnrichLists(context.Background(), network)
	if err != nil {
		t.Fatalf("EnrichLists: %v", err)
	}
	if len(results) != 1 || results[0].Reference != "stress" {
		t.Fatalf("results = %+v", results)
	}
	if results[0].Overlap != 1 {
		t.Fatalf("overlap = %d, want 1", results[0].Overlap)
	}
}

func TestServiceExportNetwork(t *testing.T) {
	worker := networks.NewWorker(blob.NewMemory(), &networks.MemoryAuditLog{})
	worker.Start()
	defer worker.Stop(context.Background())

	svc, _ := seededService(t, WithExportWorker(worker))
	network, err := svc.Query(context.Background(), "ara", "G1")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	record, err := svc.ExportNetwork(context.Background(), networks.ExportInput{
		Network: network,
		Formats: []networks.Format{networks.FormatJSON},
	})
	if err != nil {
		t.Fatalf("ExportNetwork: %v", err)
	}
	deadline := time.After(5 * time.Second)
	for {
		got, ok := svc.Export(record.ID)
		if !ok {
			t.Fatalf("export %s vanished", record.ID)
		}
		if got.Status == networks.ExportStatusSucceeded {
			break
		}
		if got.Status == networks.ExportStatusFailed {
			t.Fatalf("export failed: %s", got.Error)
		}
		select {
		case <-deadline:
			t.Fatalf("export stuck in %s", got.Status)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestServiceExportWithoutWorker(t *testing.T) {
	svc, _ := seededService(t)
	_, err := svc.ExportNetwork(context.Background(), networks.ExportInput{})
	if err == nil {
		t.Fatal("expected error without export worker")
	}
	if _, ok := svc.Export("any"); ok {
		t.Fatal("Export reported a record without a worker")
	}
}

func TestResolverCachesAndInvalidates(t *testing.T) {
	svc, store := seededService(t)

	gene, err := svc.Resolve(context.Background(), "ara", "abi4")
	if err != nil || gene.GeneID != "G1" {
		t.Fatalf("Resolve = %+v, %v", gene, err)
	}

	// A cached hit survives even after the underlying row changes.
	err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		return tx.UpsertGene(domain.Gene{GeneID: "G1", Organism: "ara", Name: "RENAMED"})
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	gene, err = svc.Resolve(context.Background(), "ara", "abi4")
	if err != nil || gene.Name != "ABI4" {
		t.Fatalf("cached Resolve = %+v, %v", gene, err)
	}

	svc.Resolver().Invalidate()
	if _, err := svc.Resolve(context.Background(), "ara", "abi4"); err == nil {
		t.Fatal("stale alias resolved after invalidation")
	}

	var unresolved domain.UnresolvedIdentifierError
	_, err = svc.Resolve(context.Background(), "ara", "nonsense")
	if !errors.As(err, &unresolved) {
		t.Fatalf("err = %v, want UnresolvedIdentifierError", err)
	}
}

func TestExpvarMetricsRecorder(t *testing.T) {
	rec := NewExpvarMetricsRecorder("")
	svc, _ := seededService(t, WithMetricsRecorder(rec))

	if _, err := svc.Query(context.Background(), "ara", "G1"); err != nil {
		t.Fatalf("Query: %v", err)
	}
	if _, err := svc.Query(context.Background(), "ara", "("); err == nil {
		t.Fatal("expected parse error")
	}

	snap := rec.Snapshot()
	if snap.Results["query"]["success"] != 1 || snap.Results["query"]["error"] != 1 {
		t.Fatalf("query results = %v", snap.Results["query"])
	}
	if _, ok := snap.DurationsMS["query"]; !ok {
		t.Fatal("no duration recorded for query")
	}
}
