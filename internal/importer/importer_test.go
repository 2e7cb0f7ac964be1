package importer

import (
	"compress/gzip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"targetdb/internal/infra/persistence/memory"
	"targetdb/pkg/domain"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func writeGzip(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	gz := gzip.NewWriter(f)
	if _, err := gz.Write([]byte(content)); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return path
}

const annotationCSV = `gene_id,name,full_name,family,type,aliases
G1,ABI4,ABA INSENSITIVE 4,AP2/ERF,protein_coding,TF1|abi-4
G2,,,,protein_coding,
G3,NLP7,NIN-LIKE PROTEIN 7,NLP,protein_coding,
`

func importedStore(t *testing.T) (*memory.Store, *Importer) {
	t.Helper()
	store := memory.NewStore()
	im := New(store)
	dir := t.TempDir()
	path := writeFile(t, dir, "genes.csv", annotationCSV)
	summary, err := im.ImportAnnotation(context.Background(), "ara", path)
	if err != nil {
		t.Fatalf("annotation import: %v", err)
	}
	if summary.Imported != 3 {
		t.Fatalf("annotation imported = %d, want 3", summary.Imported)
	}
	return store, im
}

func TestImportAnnotationGzipAndAliases(t *testing.T) {
	store := memory.NewStore()
	im := New(store)
	path := writeGzip(t, t.TempDir(), "genes.csv.gz", annotationCSV)
	if _, err := im.ImportAnnotation(context.Background(), "ara", path); err != nil {
		t.Fatalf("gzip annotation import: %v", err)
	}
	_ = store.View(context.Background(), func(view domain.StoreView) error {
		for _, alias := range []string{"ABI4", "tf1", "abi-4"} {
			g, ok := view.GeneByAlias("ara", alias)
			if !ok || g.GeneID != "G1" {
				t.Fatalf("alias %q did not resolve to G1", alias)
			}
		}
		return nil
	})
}

func TestImportDataDerivesEdgeKinds(t *testing.T) {
	store, im := importedStore(t)
	dir := t.TempDir()
	metadata := writeFile(t, dir, "meta.csv",
		"dataset_id,tf,experiment_type,edge_type,condition\nD1,ABI4,expression,inplanta,nitrogen\n")
	data := writeFile(t, dir, "data.csv",
		"dataset_id,target,p_value,fold_change\nD1,G2,0.001,2.5\nD1,G3,0.02,-1.8\n")

	summary, err := im.ImportData(context.Background(), "ara", data, metadata)
	if err != nil {
		t.Fatalf("data import: %v", err)
	}
	if summary.Imported != 2 {
		t.Fatalf("imported = %d, want 2", summary.Imported)
	}

	kinds := map[string]domain.EdgeKind{}
	_ = store.View(context.Background(), func(view domain.StoreView) error {
		return view.ScanEdges("ara", func(e domain.Edge) bool {
			kinds[e.Target] = e.Kind
			return true
		})
	})
	if kinds["G2"] != domain.EdgeInduced {
		t.Fatalf("G2 kind = %s, want induced", kinds["G2"])
	}
	if kinds["G3"] != domain.EdgeRepressed {
		t.Fatalf("G3 kind = %s, want repressed", kinds["G3"])
	}
}

func TestImportDataPresenceOnlyIsBound(t *testing.T) {
	store, im := importedStore(t)
	dir := t.TempDir()
	metadata := writeFile(t, dir, "meta.csv",
		"dataset_id,tf,experiment_type,edge_type,condition\nD2,G1,binding,dap,\n")
	data := writeFile(t, dir, "data.csv", "dataset_id,target,p_value,fold_change\nD2,G2,,\n")

	if _, err := im.ImportData(context.Background(), "ara", data, metadata); err != nil {
		t.Fatalf("data import: %v", err)
	}
	_ = store.View(context.Background(), func(view domain.StoreView) error {
		return view.ScanEdges("ara", func(e domain.Edge) bool {
			if e.Kind != domain.EdgeBound {
				t.Fatalf("kind = %s, want bound", e.Kind)
			}
			if e.PValue != nil || e.FoldChange != nil {
				t.Fatalf("presence-only edge carries quantitative fields")
			}
			return true
		})
	})
}

func TestImportDataMissingMetadataFailsWholeFile(t *testing.T) {
	store, im := importedStore(t)
	dir := t.TempDir()
	metadata := writeFile(t, dir, "meta.csv",
		"dataset_id,tf,experiment_type,edge_type,condition\nD1,ABI4,expression,inplanta,\n")
	data := writeFile(t, dir, "data.csv",
		"dataset_id,target,p_value,fold_change\nD1,G2,0.001,2.0\nD9,G3,0.01,1.0\n")

	_, err := im.ImportData(context.Background(), "ara", data, metadata)
	var validation domain.ValidationError
	if !errors.As(err, &validation) || !validation.Fatal {
		t.Fatalf("expected fatal ValidationError, got %v", err)
	}

	// Nothing from the failed file may land.
	_ = store.View(context.Background(), func(view domain.StoreView) error {
		if _, ok := view.Dataset("D1"); ok {
			t.Fatalf("dataset D1 committed despite fatal cross-validation failure")
		}
		return nil
	})
}

func TestImportDataSkipsUnresolvedTargets(t *testing.T) {
	_, im := importedStore(t)
	dir := t.TempDir()
	metadata := writeFile(t, dir, "meta.csv",
		"dataset_id,tf,experiment_type,edge_type,condition\nD1,ABI4,expression,inplanta,\n")
	data := writeFile(t, dir, "data.csv",
		"dataset_id,target,p_value,fold_change\nD1,G2,0.001,2.0\nD1,UNKNOWN,0.01,1.0\n")

	summary, err := im.ImportData(context.Background(), "ara", data, metadata)
	if err != nil {
		t.Fatalf("data import: %v", err)
	}
	if summary.Imported != 1 || summary.Skipped != 1 {
		t.Fatalf("imported=%d skipped=%d, want 1/1", summary.Imported, summary.Skipped)
	}
}

func TestImportEmptyFileIsFatal(t *testing.T) {
	_, im := importedStore(t)
	path := writeFile(t, t.TempDir(), "empty.csv", "")
	_, err := im.ImportEdges(context.Background(), "ara", path)
	var validation domain.ValidationError
	if !errors.As(err, &validation) || !validation.Fatal {
		t.Fatalf("expected fatal ValidationError for empty file, got %v", err)
	}
}

func TestImportEdgesCreatesSyntheticDatasets(t *testing.T) {
	store, im := importedStore(t)
	path := writeFile(t, t.TempDir(), "curated.csv",
		"source,target,edge_type\nABI4,G2,induced\nNLP7,G1,bound\n")

	summary, err := im.ImportEdges(context.Background(), "ara", path)
	if err != nil {
		t.Fatalf("edges import: %v", err)
	}
	if summary.Imported != 2 {
		t.Fatalf("imported = %d, want 2", summary.Imported)
	}
	_ = store.View(context.Background(), func(view domain.StoreView) error {
		ds, ok := view.Dataset("lit:curated:G1")
		if !ok {
			t.Fatalf("synthetic dataset lit:curated:G1 missing")
		}
		if v, _ := ds.Meta(domain.MetaExperimentType); v != domain.ExperimentCurated {
			t.Fatalf("experiment type = %q, want curated", v)
		}
		return nil
	})
}

func TestImportGeneListsHeadersAndComments(t *testing.T) {
	store, im := importedStore(t)
	path := writeFile(t, t.TempDir(), "lists.txt",
		"; curated marker sets\nG1\n>stress\nG2\nabi4\n>empty_names\nUNKNOWN\n")

	summary, err := im.ImportGeneLists(context.Background(), "ara", path)
	if err != nil {
		t.Fatalf("gene list import: %v", err)
	}
	if summary.Imported != 2 {
		t.Fatalf("lists imported = %d, want 2", summary.Imported)
	}
	_ = store.View(context.Background(), func(view domain.StoreView) error {
		list, ok := view.List("ara", "stress")
		if !ok {
			t.Fatalf("list stress missing")
		}
		if !list.Contains("G1") || !list.Contains("G2") {
			t.Fatalf("stress members = %v, want G1 and G2 (alias resolved)", list.Members)
		}
		if _, ok := view.List("ara", "lists"); !ok {
			t.Fatalf("default list named after file missing")
		}
		return nil
	})
}

func TestImportMotifsResolvesMembers(t *testing.T) {
	store, im := importedStore(t)
	path := writeGzip(t, t.TempDir(), "motifs.csv.gz",
		"motif_id,cluster,tfs,consensus,targets\nM1,c1,ABI4,TGCCAC,G2|G3|UNKNOWN\n")

	summary, err := im.ImportMotifs(context.Background(), "ara", path)
	if err != nil {
		t.Fatalf("motif import: %v", err)
	}
	if summary.Imported != 1 {
		t.Fatalf("motifs imported = %d, want 1", summary.Imported)
	}
	_ = store.View(context.Background(), func(view domain.StoreView) error {
		m, ok := view.Motif("ara", "M1")
		if !ok {
			t.Fatalf("motif M1 missing")
		}
		if len(m.TFs) != 1 || m.TFs[0] != "G1" {
			t.Fatalf("motif tfs = %v, want [G1]", m.TFs)
		}
		if len(m.Targets) != 2 {
			t.Fatalf("motif targets = %v, want the two resolvable genes", m.Targets)
		}
		return nil
	})
}

func TestReimportUnchangedFilesLeavesStateIdentical(t *testing.T) {
	store, im := importedStore(t)
	dir := t.TempDir()
	metadata := writeFile(t, dir, "meta.csv",
		"dataset_id,tf,experiment_type,edge_type,condition\nD1,ABI4,expression,inplanta,nitrogen\n")
	data := writeFile(t, dir, "data.csv",
		"dataset_id,target,p_value,fold_change\nD1,G2,0.001,2.5\nD1,G3,0.02,-1.8\n")
	edges := writeFile(t, dir, "curated.csv",
		"source,target,edge_type\nG1,G2,induced\n")
	annotation := writeFile(t, dir, "genes.csv", annotationCSV)

	runAll := func() {
		t.Helper()
		if _, err := im.ImportAnnotation(context.Background(), "ara", annotation); err != nil {
			t.Fatalf("annotation import: %v", err)
		}
		if _, err := im.ImportData(context.Background(), "ara", data, metadata); err != nil {
			t.Fatalf("data import: %v", err)
		}
		if _, err := im.ImportEdges(context.Background(), "ara", edges); err != nil {
			t.Fatalf("edges import: %v", err)
		}
	}

	runAll()
	first := store.ExportState()
	runAll()
	second := store.ExportState()
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("store state differs after re-running imports on unchanged files:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestImportNetworksWhitespaceFormat(t *testing.T) {
	store, im := importedStore(t)
	path := writeFile(t, t.TempDir(), "shoot.net", `# precomputed shoot network
; rank 1 edges first
G1	induced	G2	0.97
NLP7 repressed G1 0.42
G1 sideways G3
G1 induced MISSING
`)
	summary, err := im.ImportNetworks(context.Background(), "ara", path)
	if err != nil {
		t.Fatalf("network import: %v", err)
	}
	if summary.Imported != 2 || summary.Skipped != 2 {
		t.Fatalf("imported = %d skipped = %d, want 2 and 2", summary.Imported, summary.Skipped)
	}
	_ = store.View(context.Background(), func(view domain.StoreView) error {
		ds, ok := view.Dataset("net:shoot:G1")
		if !ok {
			t.Fatal("dataset net:shoot:G1 missing")
		}
		if ds.Metadata[domain.MetaExperimentType] != domain.ExperimentNetwork {
			t.Fatalf("dataset metadata = %v", ds.Metadata)
		}
		if _, ok := view.Dataset("net:shoot:G3"); !ok {
			t.Fatal("dataset for the alias-resolved source missing")
		}
		var kinds []domain.EdgeKind
		if err := view.ScanDatasetEdges("net:shoot:G3", func(e domain.Edge) bool {
			kinds = append(kinds, e.Kind)
			return true
		}); err != nil {
			return err
		}
		if len(kinds) != 1 || kinds[0] != domain.EdgeRepressed {
			t.Fatalf("NLP7 edges = %v, want one repressed", kinds)
		}
		return nil
	})
}
