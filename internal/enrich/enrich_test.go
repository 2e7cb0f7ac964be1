package enrich

import (
	"context"
	"math"
	"testing"

	"targetdb/internal/infra/persistence/memory"
	"targetdb/pkg/domain"
)

func network(genes ...string) domain.TargetNetwork {
	return domain.TargetNetwork{Organism: "ara", Query: "test", Genes: genes}
}

func TestEnrichExactTail(t *testing.T) {
	// Drawing 5 from a universe of 10 with 5 marked genes. An overlap of
	// three or more has probability (C(5,3)C(5,2)+C(5,4)C(5,1)+C(5,5))/C(10,5)
	// = 126/252 = 0.5 exactly.
	net := network("G1", "G2", "G3", "G4", "G5")
	reference := []string{"G1", "G2", "G3", "G8", "G9"}
	result := Enrich(net, "ref", reference, 10)
	if result.Overlap != 3 {
		t.Fatalf("overlap = %d, want 3", result.Overlap)
	}
	if math.Abs(result.PValue-0.5) > 1e-12 {
		t.Fatalf("p-value = %g, want 0.5", result.PValue)
	}
	if math.Abs(result.Expected-2.5) > 1e-12 {
		t.Fatalf("expected = %g, want 2.5", result.Expected)
	}
}

func TestEnrichFullOverlap(t *testing.T) {
	// A perfect overlap of 5 in the same setup is 1/C(10,5) = 1/252.
	genes := []string{"G1", "G2", "G3", "G4", "G5"}
	result := Enrich(network(genes...), "ref", genes, 10)
	if result.Overlap != 5 {
		t.Fatalf("overlap = %d, want 5", result.Overlap)
	}
	want := 1.0 / 252.0
	if math.Abs(result.PValue-want) > 1e-12 {
		t.Fatalf("p-value = %g, want %g", result.PValue, want)
	}
}

func TestEnrichNoOverlap(t *testing.T) {
	result := Enrich(network("G1", "G2"), "ref", []string{"G8", "G9"}, 100)
	if result.Overlap != 0 {
		t.Fatalf("overlap = %d, want 0", result.Overlap)
	}
	if result.PValue != 1 {
		t.Fatalf("p-value = %g, want 1", result.PValue)
	}
	if result.EmptyResult {
		t.Fatal("zero overlap must not be flagged as an empty result")
	}
}

func TestEnrichEmptyInputs(t *testing.T) {
	cases := []struct {
		name      string
		net       domain.TargetNetwork
		reference []string
		universe  int
	}{
		{"empty network", network(), []string{"G1"}, 10},
		{"empty reference", network("G1"), nil, 10},
		{"empty universe", network("G1"), []string{"G1"}, 0},
	}
	for _, tc := range cases {
		result := Enrich(tc.net, "ref", tc.reference, tc.universe)
		if !tc.net.Empty() && tc.reference == nil && result.ReferenceSize != 0 {
			t.Fatalf("%s: reference size = %d", tc.name, result.ReferenceSize)
		}
		if !result.EmptyResult {
			t.Fatalf("%s: EmptyResult not set", tc.name)
		}
		if result.PValue != 1 {
			t.Fatalf("%s: p-value = %g, want 1", tc.name, result.PValue)
		}
	}
}

func TestEnrichListsSortsByPValue(t *testing.T) {
	store := memory.NewStore()
	err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		for _, id := range []string{"G1", "G2", "G3", "G4", "G5", "G6", "G7", "G8", "G9", "G10"} {
			if err := tx.UpsertGene(domain.Gene{GeneID: id, Organism: "ara"}); err != nil {
				return err
			}
		}
		if err := tx.UpsertGeneList(domain.GeneList{Name: "hit", Organism: "ara", Members: []string{"G1", "G2", "G3"}}); err != nil {
			return err
		}
		return tx.UpsertGeneList(domain.GeneList{Name: "miss", Organism: "ara", Members: []string{"G8", "G9"}})
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	net := network("G1", "G2", "G3")
	var results []domain.EnrichmentResult
	err = store.View(context.Background(), func(view domain.StoreView) error {
		results, err = EnrichLists(context.Background(), view, net)
		return err
	})
	if err != nil {
		t.Fatalf("EnrichLists: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].Reference != "hit" || results[1].Reference != "miss" {
		t.Fatalf("order = [%s %s], want [hit miss]", results[0].Reference, results[1].Reference)
	}
	if results[0].PValue >= results[1].PValue {
		t.Fatalf("p-values not ascending: %g then %g", results[0].PValue, results[1].PValue)
	}
}

func TestEnrichListsHonorsCancellation(t *testing.T) {
	store := memory.NewStore()
	err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if err := tx.UpsertGene(domain.Gene{GeneID: "G1", Organism: "ara"}); err != nil {
			return err
		}
		return tx.UpsertGeneList(domain.GeneList{Name: "l", Organism: "ara", Members: []string{"G1"}})
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = store.View(context.Background(), func(view domain.StoreView) error {
		_, err := EnrichLists(ctx, view, network("G1"))
		return err
	})
	if err == nil {
		t.Fatal("expected context error")
	}
}
