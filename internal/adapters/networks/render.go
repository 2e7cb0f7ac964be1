package networks

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"

	"targetdb/pkg/domain"
)

// Format names a rendered artifact flavour.
type Format string

const (
	FormatSIF  Format = "sif"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// supportedFormats in default render order.
var supportedFormats = []Format{FormatJSON, FormatCSV, FormatSIF}

func contentType(f Format) string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatCSV:
		return "text/csv"
	case FormatSIF:
		return "text/plain"
	}
	return "application/octet-stream"
}

// render materializes one format of a network. SIF rows are
// source<TAB>kind<TAB>target, the Cytoscape SIF convention; CSV carries
// the full edge evidence.
func render(f Format, network domain.TargetNetwork) ([]byte, error) {
	switch f {
	case FormatJSON:
		return json.MarshalIndent(network, "", "  ")
	case FormatCSV:
		var buf bytes.Buffer
		w := csv.NewWriter(&buf)
		if err := w.Write([]string{"dataset", "source", "target", "kind", "p_value", "fold_change"}); err != nil {
			return nil, err
		}
		for _, e := range network.Edges {
			row := []string{e.Dataset, e.Source, e.Target, string(e.Kind), floatField(e.PValue), floatField(e.FoldChange)}
			if err := w.Write(row); err != nil {
				return nil, err
			}
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case FormatSIF:
		var buf bytes.Buffer
		for _, e := range network.Edges {
			fmt.Fprintf(&buf, "%s\t%s\t%s\n", e.Source, e.Kind, e.Target)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported format %s", f)
	}
}

func floatField(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}
