// Package domain defines the persistent entities, value types, error
// taxonomy, and storage contracts of the targetdb regulatory-network engine.
package domain

import (
	"sort"
	"strings"
	"time"
)

// EntityType identifies the type of record stored by the engine.
type EntityType string

// Supported entity type identifiers used in error reporting and persistence buckets.
const (
	// EntityGene identifies a canonical gene record.
	EntityGene EntityType = "gene"
	// EntityDataset identifies an imported experiment record.
	EntityDataset EntityType = "dataset"
	// EntityEdge identifies a TF→target observation.
	EntityEdge EntityType = "edge"
	// EntityMotif identifies a binding-motif annotation record.
	EntityMotif EntityType = "motif"
	// EntityGeneList identifies a curated gene list.
	EntityGeneList EntityType = "gene_list"
)

// EdgeKind enumerates the canonical edge-type vocabulary.
type EdgeKind string

// Edge kinds derived at import time: expression datasets yield induced or
// repressed depending on fold-change sign, binding datasets yield bound.
const (
	EdgeInduced   EdgeKind = "induced"
	EdgeRepressed EdgeKind = "repressed"
	EdgeBound     EdgeKind = "bound"
)

// ParseEdgeKind maps a vocabulary label to an EdgeKind, case-insensitively.
func ParseEdgeKind(s string) (EdgeKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(EdgeInduced):
		return EdgeInduced, true
	case string(EdgeRepressed):
		return EdgeRepressed, true
	case string(EdgeBound):
		return EdgeBound, true
	}
	return "", false
}

// Metadata keys every dataset carries. Extra keys are preserved verbatim.
const (
	MetaExperimentType = "EXPERIMENT_TYPE"
	MetaEdgeType       = "EDGE_TYPE"
	MetaCondition      = "CONDITION"
)

// Experiment types recognised in dataset metadata.
const (
	ExperimentExpression = "expression"
	ExperimentBinding    = "binding"
	ExperimentCurated    = "curated"
	ExperimentNetwork    = "network"
)

// Gene is a canonical gene record for an organism. GeneID is unique per
// organism; every alias resolves to exactly one gene.
type Gene struct {
	GeneID   string   `json:"gene_id"`
	Organism string   `json:"organism"`
	Name     string   `json:"name,omitempty"`
	FullName string   `json:"full_name,omitempty"`
	Family   string   `json:"family,omitempty"`
	Type     string   `json:"type,omitempty"`
	Aliases  []string `json:"aliases,omitempty"`
}

// Dataset is one imported experiment: a TF, its metadata, and the edges
// observed under it. ID is the natural key.
type Dataset struct {
	ID       string            `json:"id"`
	Organism string            `json:"organism"`
	TF       string            `json:"tf"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Imported time.Time         `json:"imported_at"`
}

// Meta returns a metadata value, matching the key case-insensitively.
func (d Dataset) Meta(key string) (string, bool) {
	if v, ok := d.Metadata[key]; ok {
		return v, true
	}
	for k, v := range d.Metadata {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}

// Edge is a directed TF→target observation within a dataset.
// (Dataset, Source, Target) is the natural key.
type Edge struct {
	Dataset    string   `json:"dataset"`
	Organism   string   `json:"organism"`
	Source     string   `json:"source"`
	Target     string   `json:"target"`
	Kind       EdgeKind `json:"kind"`
	PValue     *float64 `json:"p_value,omitempty"`
	FoldChange *float64 `json:"fold_change,omitempty"`
}

// MotifAnnotation links a binding motif (or motif cluster) to its TFs and to
// the genes whose promoters match it.
type MotifAnnotation struct {
	MotifID   string   `json:"motif_id"`
	Organism  string   `json:"organism"`
	Cluster   string   `json:"cluster,omitempty"`
	TFs       []string `json:"tfs,omitempty"`
	Consensus string   `json:"consensus,omitempty"`
	Targets   []string `json:"targets,omitempty"`
}

// GeneList is a named, curated set of genes. Members are stored sorted
// ascending by gene ID. (Organism, Name) is the natural key.
type GeneList struct {
	Name     string   `json:"name"`
	Organism string   `json:"organism"`
	Members  []string `json:"members"`
}

// Contains reports membership using binary search over the sorted members.
func (l GeneList) Contains(geneID string) bool {
	i := sort.SearchStrings(l.Members, geneID)
	return i < len(l.Members) && l.Members[i] == geneID
}

// TargetNetwork is the transient result of evaluating a query plan: the
// derived regulatory subgraph. It is reproducible — the same plan against an
// unmodified store yields identical, identically-ordered content — and is
// not persisted unless the caller exports it.
type TargetNetwork struct {
	Organism string   `json:"organism"`
	Query    string   `json:"query"`
	Genes    []string `json:"genes"`
	Edges    []Edge   `json:"edges"`
}

// Empty reports whether the network contains no genes.
func (n TargetNetwork) Empty() bool { return len(n.Genes) == 0 }

// Normalize sorts genes ascending by gene ID and edges by
// (dataset, source, target), the canonical result ordering.
func (n *TargetNetwork) Normalize() {
	sort.Strings(n.Genes)
	sort.Slice(n.Edges, func(i, j int) bool {
		a, b := n.Edges[i], n.Edges[j]
		if a.Dataset != b.Dataset {
			return a.Dataset < b.Dataset
		}
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		return a.Target < b.Target
	})
}

// EnrichmentResult reports the overlap between a target network and a
// reference gene set under a uniform-random model.
type EnrichmentResult struct {
	Reference     string  `json:"reference"`
	NetworkSize   int     `json:"network_size"`
	ReferenceSize int     `json:"reference_size"`
	UniverseSize  int     `json:"universe_size"`
	Overlap       int     `json:"overlap"`
	Expected      float64 `json:"expected"`
	PValue        float64 `json:"p_value"`
	// EmptyResult marks the defined zero-overlap outcome for an empty
	// network or reference list. Not an error.
	EmptyResult bool `json:"empty_result,omitempty"`
}
