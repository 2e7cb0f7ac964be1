package importer

import (
	"context"
	"fmt"

	"targetdb/internal/config"
	"targetdb/internal/ctxlog"
)

// ImportAll walks a validated manifest organism by organism: annotation
// first so everything downstream resolves, then data, supplementary edges,
// motifs, and gene lists. The first fatal failure stops the walk; the
// summaries collected so far accompany the error.
func (im *Importer) ImportAll(ctx context.Context, manifest *config.Manifest) ([]*ImportSummary, error) {
	var summaries []*ImportSummary
	record := func(s *ImportSummary, err error, organism, stage string) error {
		if s != nil {
			summaries = append(summaries, s)
		}
		if err != nil {
			return fmt.Errorf("organism %s: %s: %w", organism, stage, err)
		}
		return nil
	}

	for _, organism := range manifest.OrganismNames() {
		src := manifest.Organisms[organism]
		ctxlog.FromContext(ctx).Info("importing organism", "organism", organism)

		s, err := im.ImportAnnotation(ctx, organism, src.Annotation)
		if err := record(s, err, organism, "annotation"); err != nil {
			return summaries, err
		}
		for _, dataPath := range src.Data {
			s, err := im.ImportData(ctx, organism, dataPath, src.Metadata)
			if err := record(s, err, organism, "data"); err != nil {
				return summaries, err
			}
		}
		for _, edgePath := range src.AdditionalEdges {
			s, err := im.ImportEdges(ctx, organism, edgePath)
			if err := record(s, err, organism, "additional edges"); err != nil {
				return summaries, err
			}
		}
		for _, networkPath := range src.Networks {
			s, err := im.ImportNetworks(ctx, organism, networkPath)
			if err := record(s, err, organism, "networks"); err != nil {
				return summaries, err
			}
		}
		if src.Motifs != "" {
			s, err := im.ImportMotifs(ctx, organism, src.Motifs)
			if err := record(s, err, organism, "motifs"); err != nil {
				return summaries, err
			}
		}
		for _, listPath := range src.GeneLists {
			s, err := im.ImportGeneLists(ctx, organism, listPath)
			if err := record(s, err, organism, "gene lists"); err != nil {
				return summaries, err
			}
		}
	}
	return summaries, nil
}
