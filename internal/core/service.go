// Package core wires the importer, resolver, query engine, enrichment
// analyzer, and export worker behind one service facade with uniform
// metrics observation.
package core

import (
	"context"
	"time"

	"targetdb/internal/adapters/networks"
	"targetdb/internal/config"
	"targetdb/internal/ctxlog"
	"targetdb/internal/enrich"
	"targetdb/internal/importer"
	"targetdb/internal/query"
	"targetdb/pkg/domain"
)

// Service is the engine facade.
type Service struct {
	store    domain.PersistentStore
	importer *importer.Importer
	resolver *Resolver
	metrics  MetricsRecorder
	exports  *networks.Worker
}

// ServiceOption adjusts service construction.
type ServiceOption func(*Service)

// WithMetricsRecorder installs a metrics sink; default is a no-op.
func WithMetricsRecorder(rec MetricsRecorder) ServiceOption {
	return func(s *Service) {
		if rec != nil {
			s.metrics = rec
		}
	}
}

// WithExportWorker enables asynchronous network exports.
func WithExportWorker(w *networks.Worker) ServiceOption {
	return func(s *Service) { s.exports = w }
}

// NewService assembles a service over the store.
func NewService(store domain.PersistentStore, opts ...ServiceOption) *Service {
	s := &Service{
		store:    store,
		importer: importer.New(store),
		resolver: NewResolver(store),
		metrics:  NoopMetricsRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store exposes the underlying persistent store.
func (s *Service) Store() domain.PersistentStore { return s.store }

// Resolver exposes the cached identifier resolver.
func (s *Service) Resolver() *Resolver { return s.resolver }

func (s *Service) observe(ctx context.Context, operation string, start time.Time, err error) {
	s.metrics.Observe(ctx, operation, err == nil, time.Since(start))
}

// ImportAnnotation loads a gene annotation file and resets the resolver
// cache, since fresh rows can rebind aliases.
func (s *Service) ImportAnnotation(ctx context.Context, organism, path string) (summary *importer.ImportSummary, err error) {
	defer func(start time.Time) { s.observe(ctx, "import_annotation", start, err) }(time.Now())
	summary, err = s.importer.ImportAnnotation(ctx, organism, path)
	if err == nil {
		s.resolver.Invalidate()
	}
	return summary, err
}

// ImportData loads one data file with its experiment metadata.
func (s *Service) ImportData(ctx context.Context, organism, dataPath, metadataPath string) (summary *importer.ImportSummary, err error) {
	defer func(start time.Time) { s.observe(ctx, "import_data", start, err) }(time.Now())
	return s.importer.ImportData(ctx, organism, dataPath, metadataPath)
}

// ImportEdges loads a supplementary curated edges file.
func (s *Service) ImportEdges(ctx context.Context, organism, path string) (summary *importer.ImportSummary, err error) {
	defer func(start time.Time) { s.observe(ctx, "import_edges", start, err) }(time.Now())
	return s.importer.ImportEdges(ctx, organism, path)
}

// ImportNetworks loads a precomputed network file.
func (s *Service) ImportNetworks(ctx context.Context, organism, path string) (summary *importer.ImportSummary, err error) {
	defer func(start time.Time) { s.observe(ctx, "import_networks", start, err) }(time.Now())
	return s.importer.ImportNetworks(ctx, organism, path)
}

// ImportMotifs loads a motif annotation file.
func (s *Service) ImportMotifs(ctx context.Context, organism, path string) (summary *importer.ImportSummary, err error) {
	defer func(start time.Time) { s.observe(ctx, "import_motifs", start, err) }(time.Now())
	return s.importer.ImportMotifs(ctx, organism, path)
}

// ImportGeneLists loads a gene list file.
func (s *Service) ImportGeneLists(ctx context.Context, organism, path string) (summary *importer.ImportSummary, err error) {
	defer func(start time.Time) { s.observe(ctx, "import_gene_lists", start, err) }(time.Now())
	return s.importer.ImportGeneLists(ctx, organism, path)
}

// ImportAll walks a manifest end to end.
func (s *Service) ImportAll(ctx context.Context, manifest *config.Manifest) (summaries []*importer.ImportSummary, err error) {
	defer func(start time.Time) { s.observe(ctx, "import_all", start, err) }(time.Now())
	summaries, err = s.importer.ImportAll(ctx, manifest)
	if err == nil {
		s.resolver.Invalidate()
	}
	return summaries, err
}

// Query parses and executes a query expression for one organism.
func (s *Service) Query(ctx context.Context, organism, expression string) (network domain.TargetNetwork, err error) {
	defer func(start time.Time) { s.observe(ctx, "query", start, err) }(time.Now())
	plan, err := query.Parse(expression)
	if err != nil {
		return domain.TargetNetwork{}, err
	}
	err = s.store.View(ctx, func(view domain.StoreView) error {
		network, err = query.NewExecutor(view, organism).Execute(ctx, plan)
		return err
	})
	if err != nil {
		return domain.TargetNetwork{}, err
	}
	ctxlog.FromContext(ctx).Info("query executed",
		"organism", organism, "query", network.Query,
		"genes", len(network.Genes), "edges", len(network.Edges))
	return network, nil
}

// EnrichLists scores the network against every stored gene list.
func (s *Service) EnrichLists(ctx context.Context, network domain.TargetNetwork) (results []domain.EnrichmentResult, err error) {
	defer func(start time.Time) { s.observe(ctx, "enrich_lists", start, err) }(time.Now())
	err = s.store.View(ctx, func(view domain.StoreView) error {
		results, err = enrich.EnrichLists(ctx, view, network)
		return err
	})
	return results, err
}

// EnrichMotifs scores the network against every motif target set.
func (s *Service) EnrichMotifs(ctx context.Context, network domain.TargetNetwork) (results []domain.EnrichmentResult, err error) {
	defer func(start time.Time) { s.observe(ctx, "enrich_motifs", start, err) }(time.Now())
	err = s.store.View(ctx, func(view domain.StoreView) error {
		results, err = enrich.EnrichMotifs(ctx, view, network)
		return err
	})
	return results, err
}

// ExportNetwork schedules an asynchronous artifact export of a network.
func (s *Service) ExportNetwork(ctx context.Context, input networks.ExportInput) (record networks.ExportRecord, err error) {
	defer func(start time.Time) { s.observe(ctx, "export_network", start, err) }(time.Now())
	if s.exports == nil {
		return networks.ExportRecord{}, domain.ValidationError{Reason: "export worker not configured", Fatal: true}
	}
	return s.exports.Enqueue(ctx, input)
}

// Export returns the status of a previously scheduled export.
func (s *Service) Export(id string) (networks.ExportRecord, bool) {
	if s.exports == nil {
		return networks.ExportRecord{}, false
	}
	return s.exports.Get(id)
}

// Resolve maps an identifier to its canonical gene.
func (s *Service) Resolve(ctx context.Context, organism, identifier string) (domain.Gene, error) {
	return s.resolver.Resolve(ctx, organism, identifier)
}
