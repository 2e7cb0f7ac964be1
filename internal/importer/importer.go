// Package importer loads annotation, experiment, edge, motif, and gene list
// files into the store. Malformed rows and unresolved identifiers are
// skipped and counted; an import succeeds only when at least one row lands.
package importer

import (
	"strings"
	"time"

	"targetdb/pkg/domain"
)

// Importer drives file ingestion against a persistent store.
type Importer struct {
	store domain.PersistentStore
	now   func() time.Time
}

// Option adjusts importer construction.
type Option func(*Importer)

// WithClock overrides the timestamp source used for dataset import times.
func WithClock(now func() time.Time) Option {
	return func(im *Importer) { im.now = now }
}

// New returns an Importer writing through the supplied store.
func New(store domain.PersistentStore, opts ...Option) *Importer {
	im := &Importer{store: store, now: time.Now}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// resolveGene maps an identifier to its canonical gene, trying the exact
// gene ID first and then the case-insensitive alias index.
func resolveGene(view domain.StoreView, organism, identifier string) (domain.Gene, bool) {
	if g, ok := view.Gene(organism, identifier); ok {
		return g, true
	}
	return view.GeneByAlias(organism, identifier)
}

// isHeader reports whether a record is the column-name row for a format
// whose first column is named first.
func isHeader(record []string, first string) bool {
	return len(record) > 0 && strings.EqualFold(strings.TrimSpace(record[0]), first)
}

// splitMulti breaks a pipe-separated multi-value field into trimmed,
// non-empty parts.
func splitMulti(field string) []string {
	if strings.TrimSpace(field) == "" {
		return nil
	}
	parts := strings.Split(field, "|")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
