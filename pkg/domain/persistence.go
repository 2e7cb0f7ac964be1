package domain

import "context"

// Transaction exposes the upsert operations a persistence implementation
// must support within an atomic scope. All upserts are keyed by natural
// identifiers and reject referential violations with IntegrityError.
type Transaction interface {
	UpsertGene(Gene) error
	UpsertDataset(Dataset) error
	UpsertEdge(Edge) error
	UpsertMotif(MotifAnnotation) error
	UpsertGeneList(GeneList) error
	Snapshot() StoreView
}

// StoreView provides read-only, organism-scoped access to committed (or,
// inside a transaction, staged) state. Bulk scans take a visitor returning
// false to stop early; implementations iterate in deterministic key order so
// scans are restartable and reproducible.
type StoreView interface {
	Gene(organism, geneID string) (Gene, bool)
	GeneByAlias(organism, alias string) (Gene, bool)
	GeneCount(organism string) int
	ScanGenes(organism string, fn func(Gene) bool) error

	Dataset(id string) (Dataset, bool)
	Datasets(organism string) []Dataset
	DatasetsByTF(organism, tfGeneID string) []Dataset
	TFs(organism string) []string

	ScanEdges(organism string, fn func(Edge) bool) error
	ScanDatasetEdges(datasetID string, fn func(Edge) bool) error

	Motif(organism, motifID string) (MotifAnnotation, bool)
	Motifs(organism string) []MotifAnnotation

	List(organism, name string) (GeneList, bool)
	Lists(organism string) []GeneList
}

// PersistentStore is the durable storage abstraction consumed by the
// importer and query layers. Writes are serialized; View observes only
// committed state, so a query never sees a partially-applied import.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) error
	View(ctx context.Context, fn func(StoreView) error) error
	Close() error
}
