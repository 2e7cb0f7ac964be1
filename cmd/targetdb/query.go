package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"targetdb/internal/adapters/networks"
	"targetdb/internal/blob"
	"targetdb/internal/config"
	"targetdb/pkg/domain"
)

var (
	queryOrganism     string
	queryManifestPath string
	queryAsJSON       bool
	queryEnrichLists  bool
	queryEnrichMotifs bool
	queryExport       string
)

var queryCmd = &cobra.Command{
	Use:   "query <expression>",
	Short: "Execute a target-network query",
	Long: `Execute a boolean query over one organism's imported networks.

Selectors: gene or TF names (aliases allowed), all_tfs, edge_type=induced,
list=<name>, KEY=value dataset metadata. Bracket modifiers filter edges:
AT1G01010[pvalue < 0.05 and fc > 1]. Combine with and/or/not; mixing and/or
at one parenthesization level requires explicit parentheses.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext()
		if queryOrganism == "" {
			return fmt.Errorf("--organism is required")
		}
		expression := args[0]
		if queryManifestPath != "" {
			manifest, err := config.Load(queryManifestPath)
			if err != nil {
				return err
			}
			expression = manifest.Query(expression)
		}

		svc, closeStore, err := openService(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		network, err := svc.Query(ctx, queryOrganism, expression)
		if err != nil {
			return err
		}

		if err := printNetwork(network); err != nil {
			return err
		}
		if queryEnrichLists {
			results, err := svc.EnrichLists(ctx, network)
			if err != nil {
				return err
			}
			printEnrichment("gene list enrichment", results)
		}
		if queryEnrichMotifs {
			results, err := svc.EnrichMotifs(ctx, network)
			if err != nil {
				return err
			}
			printEnrichment("motif enrichment", results)
		}
		if queryExport != "" {
			return exportNetwork(ctx, network)
		}
		return nil
	},
}

func printNetwork(network domain.TargetNetwork) error {
	if queryAsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(network)
	}
	fmt.Printf("query: %s\norganism: %s\ngenes: %d, edges: %d\n",
		network.Query, network.Organism, len(network.Genes), len(network.Edges))
	for _, e := range network.Edges {
		fmt.Printf("  %s -%s-> %s (%s)\n", e.Source, e.Kind, e.Target, e.Dataset)
	}
	if len(network.Edges) == 0 {
		for _, g := range network.Genes {
			fmt.Println("  " + g)
		}
	}
	return nil
}

func printEnrichment(title string, results []domain.EnrichmentResult) {
	fmt.Println(title + ":")
	for _, r := range results {
		fmt.Printf("  %-30s overlap=%d/%d expected=%.2f p=%.3g\n",
			r.Reference, r.Overlap, r.ReferenceSize, r.Expected, r.PValue)
	}
}

// exportNetwork renders the result synchronously via the async worker so a
// single CLI invocation still produces artifacts before exiting.
func exportNetwork(ctx context.Context, network domain.TargetNetwork) error {
	store, err := blob.Open(ctx)
	if err != nil {
		return err
	}
	worker := networks.NewWorker(store, &networks.MemoryAuditLog{})
	worker.Start()
	defer func() { _ = worker.Stop(ctx) }()

	var formats []networks.Format
	for _, f := range strings.Split(queryExport, ",") {
		if f = strings.TrimSpace(f); f != "" {
			formats = append(formats, networks.Format(f))
		}
	}
	record, err := worker.Enqueue(ctx, networks.ExportInput{Network: network, Formats: formats})
	if err != nil {
		return err
	}
	for {
		current, ok := worker.Get(record.ID)
		if !ok {
			return fmt.Errorf("export %s disappeared", record.ID)
		}
		switch current.Status {
		case networks.ExportStatusSucceeded:
			for _, artifact := range current.Artifacts {
				fmt.Printf("exported %s (%d bytes)\n", artifact.Key, artifact.SizeBytes)
			}
			return nil
		case networks.ExportStatusFailed:
			return fmt.Errorf("export failed: %s", current.Error)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(25 * time.Millisecond):
		}
	}
}

func init() {
	queryCmd.Flags().StringVarP(&queryOrganism, "organism", "o", "", "organism to query")
	queryCmd.Flags().StringVar(&queryManifestPath, "manifest", "", "manifest supplying named queries")
	queryCmd.Flags().BoolVar(&queryAsJSON, "json", false, "emit the full network as JSON")
	queryCmd.Flags().BoolVar(&queryEnrichLists, "enrich-lists", false, "score the result against stored gene lists")
	queryCmd.Flags().BoolVar(&queryEnrichMotifs, "enrich-motifs", false, "score the result against motif target sets")
	queryCmd.Flags().StringVar(&queryExport, "export", "", "comma-separated artifact formats (sif,csv,json)")
	rootCmd.AddCommand(queryCmd)
}
