package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"targetdb/internal/config"
	"targetdb/internal/core"
	"targetdb/internal/importer"
)

var importOrganism string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load annotation, data, edge, motif, and gene list files",
}

var importAnnotationCmd = &cobra.Command{
	Use:   "annotation <file>",
	Short: "Import a gene annotation CSV (plain or gzip)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(func(ctx context.Context, svc *core.Service) (*importer.ImportSummary, error) {
			return svc.ImportAnnotation(ctx, importOrganism, args[0])
		})
	},
}

var importMetadataPath string

var importDataCmd = &cobra.Command{
	Use:   "data <file>",
	Short: "Import an expression/binding data CSV with its metadata CSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(func(ctx context.Context, svc *core.Service) (*importer.ImportSummary, error) {
			return svc.ImportData(ctx, importOrganism, args[0], importMetadataPath)
		})
	},
}

var importEdgesCmd = &cobra.Command{
	Use:   "edges <file>",
	Short: "Import supplementary curated edges",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(func(ctx context.Context, svc *core.Service) (*importer.ImportSummary, error) {
			return svc.ImportEdges(ctx, importOrganism, args[0])
		})
	},
}

var importNetworksCmd = &cobra.Command{
	Use:   "networks <file>",
	Short: "Import a precomputed network (source edge_type target per line)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(func(ctx context.Context, svc *core.Service) (*importer.ImportSummary, error) {
			return svc.ImportNetworks(ctx, importOrganism, args[0])
		})
	},
}

var importMotifsCmd = &cobra.Command{
	Use:   "motifs <file>",
	Short: "Import motif annotations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(func(ctx context.Context, svc *core.Service) (*importer.ImportSummary, error) {
			return svc.ImportMotifs(ctx, importOrganism, args[0])
		})
	},
}

var importListsCmd = &cobra.Command{
	Use:   "lists <file>",
	Short: "Import gene lists (>name headers, ; comments)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(func(ctx context.Context, svc *core.Service) (*importer.ImportSummary, error) {
			return svc.ImportGeneLists(ctx, importOrganism, args[0])
		})
	},
}

var importAllCmd = &cobra.Command{
	Use:   "all <manifest.yaml>",
	Short: "Import everything a manifest declares, organism by organism",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext()
		manifest, err := config.Load(args[0])
		if err != nil {
			return err
		}
		svc, closeStore, err := openService(ctx)
		if err != nil {
			return err
		}
		defer closeStore()
		summaries, err := svc.ImportAll(ctx, manifest)
		for _, s := range summaries {
			printSummary(s)
		}
		return err
	},
}

func runImport(op func(context.Context, *core.Service) (*importer.ImportSummary, error)) error {
	ctx := commandContext()
	svc, closeStore, err := openService(ctx)
	if err != nil {
		return err
	}
	defer closeStore()
	summary, err := op(ctx, svc)
	if summary != nil {
		printSummary(summary)
	}
	return err
}

func printSummary(s *importer.ImportSummary) {
	fmt.Printf("%s: %d imported, %d skipped\n", s.File, s.Imported, s.Skipped)
	for _, detail := range s.Errors {
		fmt.Fprintln(os.Stderr, "  "+detail)
	}
}

func init() {
	importCmd.PersistentFlags().StringVarP(&importOrganism, "organism", "o", "", "organism the file belongs to")
	importDataCmd.Flags().StringVarP(&importMetadataPath, "metadata", "m", "", "experiment metadata CSV (required)")
	_ = importDataCmd.MarkFlagRequired("metadata")
	for _, c := range []*cobra.Command{
		importAnnotationCmd, importDataCmd, importEdgesCmd, importNetworksCmd, importMotifsCmd, importListsCmd,
	} {
		c.PreRunE = func(cmd *cobra.Command, args []string) error {
			if importOrganism == "" {
				return fmt.Errorf("--organism is required")
			}
			return nil
		}
		importCmd.AddCommand(c)
	}
	importCmd.AddCommand(importAllCmd)
	rootCmd.AddCommand(importCmd)
}
