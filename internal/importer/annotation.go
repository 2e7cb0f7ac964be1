package importer

import (
	"context"
	"strings"

	"targetdb/pkg/domain"
)

// ImportAnnotation loads a gene annotation CSV for one organism. Columns:
// gene_id, name, full_name, family, type, aliases (pipe-separated). The
// symbolic name joins the alias index so queries may use either form.
func (im *Importer) ImportAnnotation(ctx context.Context, organism, path string) (*ImportSummary, error) {
	records, err := readAll(path)
	if err != nil {
		return nil, err
	}
	summary := newSummary(path, domain.EntityGene)

	err = im.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		for i, record := range records {
			line := i + 1
			if line == 1 && isHeader(record, "gene_id") {
				continue
			}
			if len(record) < 1 || strings.TrimSpace(record[0]) == "" {
				summary.skip(ctx, line, "missing gene_id")
				continue
			}
			g := domain.Gene{
				GeneID:   strings.TrimSpace(record[0]),
				Organism: organism,
			}
			if len(record) > 1 {
				g.Name = strings.TrimSpace(record[1])
			}
			if len(record) > 2 {
				g.FullName = strings.TrimSpace(record[2])
			}
			if len(record) > 3 {
				g.Family = strings.TrimSpace(record[3])
			}
			if len(record) > 4 {
				g.Type = strings.TrimSpace(record[4])
			}
			if len(record) > 5 {
				g.Aliases = splitMulti(record[5])
			}
			if g.Name != "" && !containsFold(g.Aliases, g.Name) {
				g.Aliases = append(g.Aliases, g.Name)
			}
			if err := tx.UpsertGene(g); err != nil {
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

func containsFold(values []string, want string) bool {
	for _, v := range values {
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}
