package importer

import (
	"bufio"
	"context"
	"strings"

	"targetdb/pkg/domain"
)

// ImportNetworks loads a precomputed network text file: one edge per line,
// whitespace-delimited `source edge_type target [score]`. Lines starting
// with `#` or `;` are comments; the optional trailing score is display-only
// upstream and is not stored. Edges land under synthetic per-source
// datasets named net:<stem>:<tf>.
func (im *Importer) ImportNetworks(ctx context.Context, organism, path string) (*ImportSummary, error) {
	rc, err := openFile(path)
	if err != nil {
		return nil, domain.ValidationError{File: path, Reason: err.Error(), Fatal: true}
	}
	defer rc.Close()

	summary := newSummary(path, domain.EntityEdge)
	stem := fileStem(path)
	imported := im.now()

	type row struct {
		fields []string
		line   int
	}
	var rows []row
	scanner := bufio.NewScanner(rc)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") || strings.HasPrefix(text, ";") {
			continue
		}
		rows = append(rows, row{fields: strings.Fields(text), line: line})
	}
	if err := scanner.Err(); err != nil {
		return nil, domain.ValidationError{File: path, Reason: err.Error(), Fatal: true}
	}

	err = im.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		view := tx.Snapshot()
		ready := make(map[string]bool)
		for _, r := range rows {
			if len(r.fields) < 3 {
				summary.skip(ctx, r.line, "expected source edge_type target [score]")
				continue
			}
			source, ok := resolveGene(view, organism, r.fields[0])
			if !ok {
				summary.skip(ctx, r.line, "unresolved source "+r.fields[0])
				continue
			}
			kind, ok := domain.ParseEdgeKind(r.fields[1])
			if !ok {
				summary.skip(ctx, r.line, "unknown edge_type "+r.fields[1])
				continue
			}
			target, ok := resolveGene(view, organism, r.fields[2])
			if !ok {
				summary.skip(ctx, r.line, "unresolved target "+r.fields[2])
				continue
			}
			datasetID := "net:" + stem + ":" + source.GeneID
			if !ready[datasetID] {
				ds := domain.Dataset{
					ID:       datasetID,
					Organism: organism,
					TF:       source.GeneID,
					Metadata: map[string]string{
						domain.MetaExperimentType: domain.ExperimentNetwork,
					},
					Imported: imported,
				}
				if err := tx.UpsertDataset(ds); err != nil {
					summary.skip(ctx, r.line, err.Error())
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
				summary.skip(ctx, r.line, err.Error())
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
