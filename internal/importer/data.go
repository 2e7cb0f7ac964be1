package importer

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"targetdb/pkg/domain"
)

// metadataColumns are the fixed leading columns of the experiment metadata
// format; any further header columns become extra metadata keys.
var metadataColumns = []string{
	"dataset_id", "tf",
	domain.MetaExperimentType, domain.MetaEdgeType, domain.MetaCondition,
}

type datasetRow struct {
	tf       string // unresolved identifier as written
	metadata map[string]string
	line     int
}

// ImportData loads one expression/binding data file together with its
// experiment metadata file. Every dataset referenced by the data file must
// carry a metadata row; a miss fails the whole call and commits nothing.
func (im *Importer) ImportData(ctx context.Context, organism, dataPath, metadataPath string) (*ImportSummary, error) {
	datasets, err := readMetadata(metadataPath)
	if err != nil {
		return nil, err
	}
	records, err := readAll(dataPath)
	if err != nil {
		return nil, err
	}
	summary := newSummary(dataPath, domain.EntityEdge)

	// Cross-validate before touching the store so nothing partial lands.
	for i, record := range records {
		if i == 0 && isHeader(record, "dataset_id") {
			continue
		}
		if len(record) < 2 {
			continue // handled as a skip during the pass below
		}
		id := strings.TrimSpace(record[0])
		if id == "" {
			continue
		}
		if _, ok := datasets[id]; !ok {
			return nil, domain.ValidationError{
				File:   dataPath,
				Line:   i + 1,
				Reason: fmt.Sprintf("dataset %s has no metadata row in %s", id, metadataPath),
				Fatal:  true,
			}
		}
	}

	imported := im.now()
	err = im.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		view := tx.Snapshot()
		// Resolve each referenced TF once, registering its dataset.
		ready := make(map[string]domain.Dataset, len(datasets))
		for i, record := range records {
			line := i + 1
			if line == 1 && isHeader(record, "dataset_id") {
				continue
			}
			if len(record) < 2 || strings.TrimSpace(record[0]) == "" || strings.TrimSpace(record[1]) == "" {
				summary.skip(ctx, line, "expected dataset_id,target[,p_value,fold_change]")
				continue
			}
			id := strings.TrimSpace(record[0])
			ds, ok := ready[id]
			if !ok {
				row := datasets[id]
				tf, found := resolveGene(view, organism, row.tf)
				if !found {
					summary.skip(ctx, line, "dataset "+id+": unresolved tf "+row.tf)
					continue
				}
				ds = domain.Dataset{
					ID:       id,
					Organism: organism,
					TF:       tf.GeneID,
					Metadata: row.metadata,
					Imported: imported,
				}
				if err := tx.UpsertDataset(ds); err != nil {
					summary.skip(ctx, line, err.Error())
					continue
				}
				ready[id] = ds
			}
			target, found := resolveGene(view, organism, strings.TrimSpace(record[1]))
			if !found {
				summary.skip(ctx, line, "unresolved target "+strings.TrimSpace(record[1]))
				continue
			}
			edge := domain.Edge{
				Dataset:  ds.ID,
				Organism: organism,
				Source:   ds.TF,
				Target:   target.GeneID,
				Kind:     domain.EdgeBound,
			}
			if len(record) > 2 && strings.TrimSpace(record[2]) != "" {
				pv, err := strconv.ParseFloat(strings.TrimSpace(record[2]), 64)
				if err != nil {
					summary.skip(ctx, line, "bad p_value "+record[2])
					continue
				}
				edge.PValue = &pv
			}
			if len(record) > 3 && strings.TrimSpace(record[3]) != "" {
				fc, err := strconv.ParseFloat(strings.TrimSpace(record[3]), 64)
				if err != nil {
					summary.skip(ctx, line, "bad fold_change "+record[3])
					continue
				}
				edge.FoldChange = &fc
				if fc >= 0 {
					edge.Kind = domain.EdgeInduced
				} else {
					edge.Kind = domain.EdgeRepressed
				}
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

// readMetadata parses the experiment metadata CSV into per-dataset rows.
// The header row is required; columns past the fixed five become extra
// metadata keys, upper-cased.
func readMetadata(path string) (map[string]datasetRow, error) {
	records, err := readAll(path)
	if err != nil {
		return nil, err
	}
	if !isHeader(records[0], "dataset_id") {
		return nil, domain.ValidationError{
			File:   path,
			Line:   1,
			Reason: "metadata header row required (dataset_id,tf,...)",
			Fatal:  true,
		}
	}
	header := records[0]
	extra := make([]string, 0)
	for i := len(metadataColumns); i < len(header); i++ {
		extra = append(extra, strings.ToUpper(strings.TrimSpace(header[i])))
	}
	out := make(map[string]datasetRow, len(records)-1)
	for i, record := range records[1:] {
		line := i + 2
		if len(record) < 2 || strings.TrimSpace(record[0]) == "" || strings.TrimSpace(record[1]) == "" {
			return nil, domain.ValidationError{
				File:   path,
				Line:   line,
				Reason: "expected dataset_id,tf,experiment_type,edge_type,condition",
				Fatal:  true,
			}
		}
		id := strings.TrimSpace(record[0])
		if _, dup := out[id]; dup {
			return nil, domain.ValidationError{
				File:   path,
				Line:   line,
				Reason: "duplicate metadata row for dataset " + id,
				Fatal:  true,
			}
		}
		meta := make(map[string]string)
		if len(record) > 2 && strings.TrimSpace(record[2]) != "" {
			meta[domain.MetaExperimentType] = strings.TrimSpace(record[2])
		}
		if len(record) > 3 && strings.TrimSpace(record[3]) != "" {
			meta[domain.MetaEdgeType] = strings.TrimSpace(record[3])
		}
		if len(record) > 4 && strings.TrimSpace(record[4]) != "" {
			meta[domain.MetaCondition] = strings.TrimSpace(record[4])
		}
		for j, key := range extra {
			col := len(metadataColumns) + j
			if col < len(record) && strings.TrimSpace(record[col]) != "" {
				meta[key] = strings.TrimSpace(record[col])
			}
		}
		out[id] = datasetRow{tf: strings.TrimSpace(record[1]), metadata: meta, line: line}
	}
	if len(out) == 0 {
		return nil, domain.ValidationError{File: path, Reason: "no metadata rows", Fatal: true}
	}
	return out, nil
}
