package importer

import (
	"context"
	"strings"

	"targetdb/pkg/domain"
)

// ImportMotifs loads a motif annotation CSV (usually gzip):
// motif_id,cluster,tfs,consensus,targets with pipe-separated multi-fields.
// Unresolved member genes drop out of the motif rather than sinking the row;
// a motif whose target set resolves to nothing is skipped whole.
func (im *Importer) ImportMotifs(ctx context.Context, organism, path string) (*ImportSummary, error) {
	records, err := readAll(path)
	if err != nil {
		return nil, err
	}
	summary := newSummary(path, domain.EntityMotif)

	err = im.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		view := tx.Snapshot()
		for i, record := range records {
			line := i + 1
			if line == 1 && isHeader(record, "motif_id") {
				continue
			}
			if len(record) < 5 || strings.TrimSpace(record[0]) == "" {
				summary.skip(ctx, line, "expected motif_id,cluster,tfs,consensus,targets")
				continue
			}
			m := domain.MotifAnnotation{
				MotifID:   strings.TrimSpace(record[0]),
				Organism:  organism,
				Cluster:   strings.TrimSpace(record[1]),
				Consensus: strings.TrimSpace(record[3]),
			}
			for _, ident := range splitMulti(record[2]) {
				if g, ok := resolveGene(view, organism, ident); ok {
					m.TFs = append(m.TFs, g.GeneID)
				} else {
					summary.skip(ctx, line, "unresolved motif tf "+ident)
				}
			}
			for _, ident := range splitMulti(record[4]) {
				if g, ok := resolveGene(view, organism, ident); ok {
					m.Targets = append(m.Targets, g.GeneID)
				} else {
					summary.skip(ctx, line, "unresolved motif target "+ident)
				}
			}
			if len(m.Targets) == 0 {
				summary.skip(ctx, line, "motif "+m.MotifID+" has no resolvable targets")
				continue
			}
			if err := tx.UpsertMotif(m); err != nil {
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
