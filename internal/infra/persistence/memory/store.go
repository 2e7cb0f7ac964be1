// Package memory provides the canonical in-memory store implementation.
// It enforces natural-key uniqueness and referential integrity on every
// upsert and is the transactional engine the durable backends embed.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"targetdb/pkg/domain"
)

type edgeKey struct {
	dataset string
	source  string
	target  string
}

type listKey struct {
	organism string
	name     string
}

type geneKey struct {
	organism string
	geneID   string
}

type memoryState struct {
	genes    map[geneKey]domain.Gene
	aliases  map[geneKey]string // lower-cased alias → canonical gene ID
	datasets map[string]domain.Dataset
	edges    map[edgeKey]domain.Edge
	motifs   map[geneKey]domain.MotifAnnotation // keyed (organism, motif id)
	lists    map[listKey]domain.GeneList
}

func newMemoryState() memoryState {
	return memoryState{
		genes:    make(map[geneKey]domain.Gene),
		aliases:  make(map[geneKey]string),
		datasets: make(map[string]domain.Dataset),
		edges:    make(map[edgeKey]domain.Edge),
		motifs:   make(map[geneKey]domain.MotifAnnotation),
		lists:    make(map[listKey]domain.GeneList),
	}
}

func (s memoryState) clone() memoryState {
	cloned := newMemoryState()
	for k, v := range s.genes {
		cloned.genes[k] = cloneGene(v)
	}
	for k, v := range s.aliases {
		cloned.aliases[k] = v
	}
	for k, v := range s.datasets {
		cloned.datasets[k] = cloneDataset(v)
	}
	for k, v := range s.edges {
		cloned.edges[k] = cloneEdge(v)
	}
	for k, v := range s.motifs {
		cloned.motifs[k] = cloneMotif(v)
	}
	for k, v := range s.lists {
		cloned.lists[k] = cloneList(v)
	}
	return cloned
}

func cloneGene(g domain.Gene) domain.Gene {
	cp := g
	cp.Aliases = append([]string(nil), g.Aliases...)
	return cp
}

func cloneDataset(d domain.Dataset) domain.Dataset {
	cp := d
	if d.Metadata != nil {
		cp.Metadata = make(map[string]string, len(d.Metadata))
		for k, v := range d.Metadata {
			cp.Metadata[k] = v
		}
	}
	return cp
}

func cloneEdge(e domain.Edge) domain.Edge {
	cp := e
	if e.PValue != nil {
		v := *e.PValue
		cp.PValue = &v
	}
	if e.FoldChange != nil {
		v := *e.FoldChange
		cp.FoldChange = &v
	}
	return cp
}

func cloneMotif(m domain.MotifAnnotation) domain.MotifAnnotation {
	cp := m
	cp.TFs = append([]string(nil), m.TFs...)
	cp.Targets = append([]string(nil), m.Targets...)
	return cp
}

func cloneList(l domain.GeneList) domain.GeneList {
	cp := l
	cp.Members = append([]string(nil), l.Members...)
	return cp
}

// Snapshot captures a point-in-time clone of the store state for external
// persistence.
type Snapshot struct {
	Genes    []domain.Gene            `json:"genes"`
	Datasets []domain.Dataset         `json:"datasets"`
	Edges    []domain.Edge            `json:"edges"`
	Motifs   []domain.MotifAnnotation `json:"motifs"`
	Lists    []domain.GeneList        `json:"gene_lists"`
}

func snapshotFromState(state memoryState) Snapshot {
	var s Snapshot
	for _, g := range state.genes {
		s.Genes = append(s.Genes, cloneGene(g))
	}
	for _, d := range state.datasets {
		s.Datasets = append(s.Datasets, cloneDataset(d))
	}
	for _, e := range state.edges {
		s.Edges = append(s.Edges, cloneEdge(e))
	}
	for _, m := range state.motifs {
		s.Motifs = append(s.Motifs, cloneMotif(m))
	}
	for _, l := range state.lists {
		s.Lists = append(s.Lists, cloneList(l))
	}
	sort.Slice(s.Genes, func(i, j int) bool {
		if s.Genes[i].Organism != s.Genes[j].Organism {
			return s.Genes[i].Organism < s.Genes[j].Organism
		}
		return s.Genes[i].GeneID < s.Genes[j].GeneID
	})
	sort.Slice(s.Datasets, func(i, j int) bool { return s.Datasets[i].ID < s.Datasets[j].ID })
	sort.Slice(s.Edges, func(i, j int) bool {
		a, b := s.Edges[i], s.Edges[j]
		if a.Dataset != b.Dataset {
			return a.Dataset < b.Dataset
		}
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		return a.Target < b.Target
	})
	sort.Slice(s.Motifs, func(i, j int) bool {
		if s.Motifs[i].Organism != s.Motifs[j].Organism {
			return s.Motifs[i].Organism < s.Motifs[j].Organism
		}
		return s.Motifs[i].MotifID < s.Motifs[j].MotifID
	})
	sort.Slice(s.Lists, func(i, j int) bool {
		if s.Lists[i].Organism != s.Lists[j].Organism {
			return s.Lists[i].Organism < s.Lists[j].Organism
		}
		return s.Lists[i].Name < s.Lists[j].Name
	})
	return s
}

func stateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	for _, g := range s.Genes {
		state.genes[geneKey{g.Organism, g.GeneID}] = cloneGene(g)
		state.aliases[geneKey{g.Organism, strings.ToLower(g.GeneID)}] = g.GeneID
		for _, a := range g.Aliases {
			state.aliases[geneKey{g.Organism, strings.ToLower(a)}] = g.GeneID
		}
	}
	for _, d := range s.Datasets {
		state.datasets[d.ID] = cloneDataset(d)
	}
	for _, e := range s.Edges {
		state.edges[edgeKey{e.Dataset, e.Source, e.Target}] = cloneEdge(e)
	}
	for _, m := range s.Motifs {
		state.motifs[geneKey{m.Organism, m.MotifID}] = cloneMotif(m)
	}
	for _, l := range s.Lists {
		state.lists[listKey{l.Organism, l.Name}] = cloneList(l)
	}
	return state
}

// Store is the in-memory transactional store. Writes run against a cloned
// state that replaces the committed state only on success, so readers never
// observe a partially-applied import.
type Store struct {
	mu    sync.RWMutex
	state memoryState
}

// NewStore constructs an empty in-memory store.
func NewStore() *Store {
	return &Store{state: newMemoryState()}
}

// ExportState clones the committed state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = stateFromSnapshot(snapshot)
}

// Close releases no resources for the in-memory store.
func (s *Store) Close() error { return nil }

// RunInTransaction executes fn within a transactional copy of the state.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &transaction{state: s.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

// View executes fn against a read-only snapshot of committed state.
func (s *Store) View(ctx context.Context, fn func(domain.StoreView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(view{state: &s.state})
}

type transaction struct {
	state memoryState
}

// Snapshot exposes the staged state to the importer for cross-validation.
func (tx *transaction) Snapshot() domain.StoreView {
	return view{state: &tx.state}
}

// UpsertGene inserts or replaces a gene keyed by (organism, gene ID) and
// refreshes its alias mappings. An alias already claimed by a different gene
// of the same organism is an integrity violation.
func (tx *transaction) UpsertGene(g domain.Gene) error {
	if g.GeneID == "" || g.Organism == "" {
		return domain.IntegrityError{Entity: domain.EntityGene, Key: g.GeneID, Reason: "gene id and organism required"}
	}
	for _, alias := range g.Aliases {
		k := geneKey{g.Organism, strings.ToLower(alias)}
		if owner, ok := tx.state.aliases[k]; ok && owner != g.GeneID {
			return domain.IntegrityError{
				Entity: domain.EntityGene,
				Key:    g.GeneID,
				Reason: "alias " + alias + " already resolves to " + owner,
			}
		}
	}
	key := geneKey{g.Organism, g.GeneID}
	if prev, ok := tx.state.genes[key]; ok {
		// drop alias mappings removed by the update
		for _, old := range prev.Aliases {
			tx.removeAlias(g.Organism, old, g.GeneID)
		}
	}
	tx.state.genes[key] = cloneGene(g)
	tx.state.aliases[geneKey{g.Organism, strings.ToLower(g.GeneID)}] = g.GeneID
	for _, alias := range g.Aliases {
		tx.state.aliases[geneKey{g.Organism, strings.ToLower(alias)}] = g.GeneID
	}
	return nil
}

func (tx *transaction) removeAlias(organism, alias, owner string) {
	k := geneKey{organism, strings.ToLower(alias)}
	if cur, ok := tx.state.aliases[k]; ok && cur == owner {
		delete(tx.state.aliases, k)
	}
}

// UpsertDataset inserts or replaces a dataset keyed by its ID. The TF
// reference must resolve to an existing gene of the same organism.
func (tx *transaction) UpsertDataset(d domain.Dataset) error {
	if d.ID == "" || d.Organism == "" {
		return domain.IntegrityError{Entity: domain.EntityDataset, Key: d.ID, Reason: "dataset id and organism required"}
	}
	if _, ok := tx.state.genes[geneKey{d.Organism, d.TF}]; !ok {
		return domain.IntegrityError{
			Entity: domain.EntityDataset,
			Key:    d.ID,
			Reason: "tf " + d.TF + " does not reference a known gene",
		}
	}
	if prev, ok := tx.state.datasets[d.ID]; ok {
		if prev.Organism != d.Organism {
			return domain.IntegrityError{
				Entity: domain.EntityDataset,
				Key:    d.ID,
				Reason: "dataset already registered for organism " + prev.Organism,
			}
		}
		// Re-importing an unchanged file must leave the store byte-identical,
		// so an upsert that alters nothing keeps the original import time.
		if datasetUnchanged(prev, d) {
			d.Imported = prev.Imported
		}
	}
	tx.state.datasets[d.ID] = cloneDataset(d)
	return nil
}

// datasetUnchanged compares everything but the Imported timestamp.
func datasetUnchanged(prev, next domain.Dataset) bool {
	if prev.TF != next.TF || len(prev.Metadata) != len(next.Metadata) {
		return false
	}
	for k, v := range next.Metadata {
		if pv, ok := prev.Metadata[k]; !ok || pv != v {
			return false
		}
	}
	return true
}

// UpsertEdge inserts or replaces an edge keyed by (dataset, source, target).
// Both endpoints must resolve to genes of the dataset's organism.
func (tx *transaction) UpsertEdge(e domain.Edge) error {
	ds, ok := tx.state.datasets[e.Dataset]
	if !ok {
		return domain.IntegrityError{Entity: domain.EntityEdge, Key: e.Dataset, Reason: "unknown dataset"}
	}
	if e.Organism == "" {
		e.Organism = ds.Organism
	}
	if e.Organism != ds.Organism {
		return domain.IntegrityError{Entity: domain.EntityEdge, Key: e.Dataset, Reason: "edge organism does not match dataset"}
	}
	if _, ok := tx.state.genes[geneKey{e.Organism, e.Source}]; !ok {
		return domain.IntegrityError{Entity: domain.EntityEdge, Key: e.Source, Reason: "source does not reference a known gene"}
	}
	if _, ok := tx.state.genes[geneKey{e.Organism, e.Target}]; !ok {
		return domain.IntegrityError{Entity: domain.EntityEdge, Key: e.Target, Reason: "target does not reference a known gene"}
	}
	tx.state.edges[edgeKey{e.Dataset, e.Source, e.Target}] = cloneEdge(e)
	return nil
}

// UpsertMotif inserts or replaces a motif annotation keyed by
// (organism, motif ID). TF references must resolve.
func (tx *transaction) UpsertMotif(m domain.MotifAnnotation) error {
	if m.MotifID == "" || m.Organism == "" {
		return domain.IntegrityError{Entity: domain.EntityMotif, Key: m.MotifID, Reason: "motif id and organism required"}
	}
	for _, tf := range m.TFs {
		if _, ok := tx.state.genes[geneKey{m.Organism, tf}]; !ok {
			return domain.IntegrityError{Entity: domain.EntityMotif, Key: m.MotifID, Reason: "tf " + tf + " does not reference a known gene"}
		}
	}
	for _, target := range m.Targets {
		if _, ok := tx.state.genes[geneKey{m.Organism, target}]; !ok {
			return domain.IntegrityError{Entity: domain.EntityMotif, Key: m.MotifID, Reason: "target " + target + " does not reference a known gene"}
		}
	}
	tx.state.motifs[geneKey{m.Organism, m.MotifID}] = cloneMotif(m)
	return nil
}

// UpsertGeneList inserts or replaces a gene list keyed by (organism, name).
// Every member must resolve; members are stored sorted ascending.
func (tx *transaction) UpsertGeneList(l domain.GeneList) error {
	if l.Name == "" || l.Organism == "" {
		return domain.IntegrityError{Entity: domain.EntityGeneList, Key: l.Name, Reason: "list name and organism required"}
	}
	for _, member := range l.Members {
		if _, ok := tx.state.genes[geneKey{l.Organism, member}]; !ok {
			return domain.IntegrityError{Entity: domain.EntityGeneList, Key: l.Name, Reason: "member " + member + " does not reference a known gene"}
		}
	}
	cp := cloneList(l)
	sort.Strings(cp.Members)
	tx.state.lists[listKey{l.Organism, l.Name}] = cp
	return nil
}

// view is a read-only window over a memoryState. Scans iterate in sorted
// key order so results are deterministic and restartable.
type view struct {
	state *memoryState
}

func (v view) Gene(organism, geneID string) (domain.Gene, bool) {
	g, ok := v.state.genes[geneKey{organism, geneID}]
	if !ok {
		return domain.Gene{}, false
	}
	return cloneGene(g), true
}

func (v view) GeneByAlias(organism, alias string) (domain.Gene, bool) {
	id, ok := v.state.aliases[geneKey{organism, strings.ToLower(alias)}]
	if !ok {
		return domain.Gene{}, false
	}
	return v.Gene(organism, id)
}

func (v view) GeneCount(organism string) int {
	n := 0
	for k := range v.state.genes {
		if k.organism == organism {
			n++
		}
	}
	return n
}

func (v view) ScanGenes(organism string, fn func(domain.Gene) bool) error {
	ids := make([]string, 0, len(v.state.genes))
	for k := range v.state.genes {
		if k.organism == organism {
			ids = append(ids, k.geneID)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		if !fn(cloneGene(v.state.genes[geneKey{organism, id}])) {
			return nil
		}
	}
	return nil
}

func (v view) Dataset(id string) (domain.Dataset, bool) {
	d, ok := v.state.datasets[id]
	if !ok {
		return domain.Dataset{}, false
	}
	return cloneDataset(d), true
}

func (v view) Datasets(organism string) []domain.Dataset {
	out := make([]domain.Dataset, 0)
	for _, d := range v.state.datasets {
		if d.Organism == organism {
			out = append(out, cloneDataset(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (v view) DatasetsByTF(organism, tfGeneID string) []domain.Dataset {
	out := make([]domain.Dataset, 0)
	for _, d := range v.state.datasets {
		if d.Organism == organism && d.TF == tfGeneID {
			out = append(out, cloneDataset(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (v view) TFs(organism string) []string {
	seen := make(map[string]struct{})
	for _, d := range v.state.datasets {
		if d.Organism == organism {
			seen[d.TF] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for tf := range seen {
		out = append(out, tf)
	}
	sort.Strings(out)
	return out
}

func (v view) ScanEdges(organism string, fn func(domain.Edge) bool) error {
	keys := make([]edgeKey, 0)
	for k, e := range v.state.edges {
		if e.Organism == organism {
			keys = append(keys, k)
		}
	}
	sortEdgeKeys(keys)
	for _, k := range keys {
		if !fn(cloneEdge(v.state.edges[k])) {
			return nil
		}
	}
	return nil
}

func (v view) ScanDatasetEdges(datasetID string, fn func(domain.Edge) bool) error {
	keys := make([]edgeKey, 0)
	for k := range v.state.edges {
		if k.dataset == datasetID {
			keys = append(keys, k)
		}
	}
	sortEdgeKeys(keys)
	for _, k := range keys {
		if !fn(cloneEdge(v.state.edges[k])) {
			return nil
		}
	}
	return nil
}

func sortEdgeKeys(keys []edgeKey) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].dataset != keys[j].dataset {
			return keys[i].dataset < keys[j].dataset
		}
		if keys[i].source != keys[j].source {
			return keys[i].source < keys[j].source
		}
		return keys[i].target < keys[j].target
	})
}

func (v view) Motif(organism, motifID string) (domain.MotifAnnotation, bool) {
	m, ok := v.state.motifs[geneKey{organism, motifID}]
	if !ok {
		return domain.MotifAnnotation{}, false
	}
	return cloneMotif(m), true
}

func (v view) Motifs(organism string) []domain.MotifAnnotation {
	out := make([]domain.MotifAnnotation, 0)
	for k, m := range v.state.motifs {
		if k.organism == organism {
			out = append(out, cloneMotif(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MotifID < out[j].MotifID })
	return out
}

func (v view) List(organism, name string) (domain.GeneList, bool) {
	l, ok := v.state.lists[listKey{organism, name}]
	if !ok {
		return domain.GeneList{}, false
	}
	return cloneList(l), true
}

func (v view) Lists(organism string) []domain.GeneList {
	out := make([]domain.GeneList, 0)
	for k, l := range v.state.lists {
		if k.organism == organism {
			out = append(out, cloneList(l))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Compile-time contract assertion.
var _ domain.PersistentStore = (*Store)(nil)
