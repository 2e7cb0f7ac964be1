package importer

import (
	"context"
	"path/filepath"
	"strings"

	"targetdb/pkg/domain"
)

// ImportEdges loads a supplementary edges CSV (source,target,edge_type),
// typically curated literature interactions with no quantitative backing.
// Rows land under synthetic per-source datasets named lit:<stem>:<tf> so
// curated evidence stays distinguishable from experiment data.
func (im *Importer) ImportEdges(ctx context.Context, organism, path string) (*ImportSummary, error) {
	records, err := readAll(path)
	if err != nil {
		return nil, err
	}
	summary := newSummary(path, domain.EntityEdge)
	stem := fileStem(path)
	imported := im.now()

	err = im.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		view := tx.Snapshot()
		ready := make(map[string]bool)
		for i, record := range records {
			line := i + 1
			if line == 1 && isHeader(record, "source") {
				continue
			}
			if len(record) < 3 {
				summary.skip(ctx, line, "expected source,target,edge_type")
				continue
			}
			source, ok := resolveGene(view, organism, strings.TrimSpace(record[0]))
			if !ok {
				summary.skip(ctx, line, "unresolved source "+strings.TrimSpace(record[0]))
				continue
			}
			target, ok := resolveGene(view, organism, strings.TrimSpace(record[1]))
			if !ok {
				summary.skip(ctx, line, "unresolved target "+strings.TrimSpace(record[1]))
				continue
			}
			kind, ok := domain.ParseEdgeKind(strings.TrimSpace(record[2]))
			if !ok {
				summary.skip(ctx, line, "unknown edge_type "+strings.TrimSpace(record[2]))
				continue
			}
			datasetID := "lit:" + stem + ":" + source.GeneID
			if !ready[datasetID] {
				ds := domain.Dataset{
					ID:       datasetID,
					Organism: organism,
					TF:       source.GeneID,
					Metadata: map[string]string{
						domain.MetaExperimentType: domain.ExperimentCurated,
					},
					Imported: imported,
				}
				if err := tx.UpsertDataset(ds); err != nil {
					summary.skip(ctx, line, err.Error())
					continue
				}
				ready[datasetID] = true
			}
			edge := domain.Edge{
				Dataset:  datasetID,
				Organism: organism,
				Source:   source.GeneID,
				Target:   target.GeneID,
				Kind:     kind,
			}
			if err := tx.UpsertEdge(edge); err != nil {
				summary.skip(ctx, line, err.Error())
				continue
			}
			summary.Imported++
		}
		return summary.finish(ctx)
	})
	if err != nil {
		return summary, err
	}
	return summary, nil
}

// fileStem strips the directory and every extension, so both edges.csv and
// edges.csv.gz yield "edges".
func fileStem(path string) string {
	name := filepath.Base(path)
	for {
		ext := filepath.Ext(name)
		if ext == "" {
			return name
		}
		name = strings.TrimSuffix(name, ext)
	}
}
