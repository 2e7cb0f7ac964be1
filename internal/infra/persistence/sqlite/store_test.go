package sqlite

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"targetdb/pkg/domain"
)

func fptr(v float64) *float64 { return &v }

func seed(t *testing.T, store *Store) {
	t.Helper()
	err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		genes := []domain.Gene{
			{GeneID: "G1", Organism: "ara", Name: "ABI4", Family: "AP2", Aliases: []string{"ABI4", "abi-4"}},
			{GeneID: "G2", Organism: "ara"},
			{GeneID: "G3", Organism: "ara"},
		}
		for _, g := range genes {
			if err := tx.UpsertGene(g); err != nil {
				return err
			}
		}
		if err := tx.UpsertDataset(domain.Dataset{
			ID:       "D1",
			Organism: "ara",
			TF:       "G1",
			Imported: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
			Metadata: map[string]string{
				domain.MetaExperimentType: domain.ExperimentExpression,
				domain.MetaCondition:      "nitrogen",
			},
		}); err != nil {
			return err
		}
		if err := tx.UpsertEdge(domain.Edge{
			Dataset: "D1", Organism: "ara", Source: "G1", Target: "G2",
			Kind: domain.EdgeInduced, PValue: fptr(0.001), FoldChange: fptr(2),
		}); err != nil {
			return err
		}
		if err := tx.UpsertEdge(domain.Edge{
			Dataset: "D1", Organism: "ara", Source: "G1", Target: "G3",
			Kind: domain.EdgeBound,
		}); err != nil {
			return err
		}
		if err := tx.UpsertMotif(domain.MotifAnnotation{
			MotifID: "M1", Organism: "ara", Cluster: "c1",
			Consensus: "GCCAC", TFs: []string{"G1"}, Targets: []string{"G2", "G3"},
		}); err != nil {
			return err
		}
		return tx.UpsertGeneList(domain.GeneList{Name: "stress", Organism: "ara", Members: []string{"G2"}})
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestReopenRehydratesState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targetdb.sqlite")

	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	seed(t, store)
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := NewStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	err = reopened.View(context.Background(), func(view domain.StoreView) error {
		gene, ok := view.GeneByAlias("ara", "abi-4")
		if !ok || gene.GeneID != "G1" {
			t.Fatalf("GeneByAlias = %+v (present %v)", gene, ok)
		}
		if gene.Name != "ABI4" || gene.Family != "AP2" {
			t.Fatalf("gene = %+v", gene)
		}
		ds, ok := view.Dataset("D1")
		if !ok {
			t.Fatal("dataset D1 missing after reopen")
		}
		if ds.Metadata[domain.MetaCondition] != "nitrogen" {
			t.Fatalf("dataset metadata = %v", ds.Metadata)
		}
		if !ds.Imported.Equal(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)) {
			t.Fatalf("imported = %v", ds.Imported)
		}

		var edges []domain.Edge
		if err := view.ScanEdges("ara", func(e domain.Edge) bool {
			edges = append(edges, e)
			return true
		}); err != nil {
			return err
		}
		if len(edges) != 2 {
			t.Fatalf("edges = %d, want 2", len(edges))
		}
		if edges[0].PValue == nil || *edges[0].PValue != 0.001 {
			t.Fatalf("edge p-value = %v", edges[0].PValue)
		}
		if edges[1].PValue != nil || edges[1].Kind != domain.EdgeBound {
			t.Fatalf("presence edge = %+v", edges[1])
		}

		motif, ok := view.Motif("ara", "M1")
		if !ok {
			t.Fatal("motif M1 missing after reopen")
		}
		if !reflect.DeepEqual(motif.Targets, []string{"G2", "G3"}) {
			t.Fatalf("motif targets = %v", motif.Targets)
		}

		list, ok := view.List("ara", "stress")
		if !ok || !reflect.DeepEqual(list.Members, []string{"G2"}) {
			t.Fatalf("list = %+v (present %v)", list, ok)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
}

func TestRolledBackTransactionNotPersisted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targetdb.sqlite")
	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	seed(t, store)

	err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if err := tx.UpsertGene(domain.Gene{GeneID: "G9", Organism: "ara"}); err != nil {
			return err
		}
		return domain.ValidationError{Reason: "forced rollback"}
	})
	if err == nil {
		t.Fatal("expected transaction error")
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := NewStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	err = reopened.View(context.Background(), func(view domain.StoreView) error {
		if _, ok := view.Gene("ara", "G9"); ok {
			t.Fatal("rolled back gene survived reopen")
		}
		if _, ok := view.Gene("ara", "G1"); !ok {
			t.Fatal("committed gene lost")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
}
