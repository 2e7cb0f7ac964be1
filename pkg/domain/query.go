package domain

import (
	"fmt"
	"strings"
)

// QueryNode is the typed query plan: a boolean expression tree over
// selectors, built by the parser and evaluated by the executor. Nodes are
// immutable after parsing.
type QueryNode interface {
	fmt.Stringer
	queryNode()
}

// TFSelector matches edges whose source TF is one of the named genes, or
// every TF with imported data when All is set.
type TFSelector struct {
	Genes []string // gene identifiers as written; resolved at execution
	All   bool
}

func (s TFSelector) queryNode() {}

func (s TFSelector) String() string {
	if s.All {
		return "all_tfs"
	}
	return strings.Join(s.Genes, ",")
}

// EdgeTypeSelector restricts to edges of one kind.
type EdgeTypeSelector struct {
	Kind EdgeKind
}

func (s EdgeTypeSelector) queryNode() {}
func (s EdgeTypeSelector) String() string {
	return "edge_type=" + string(s.Kind)
}

// GeneListSelector restricts targets to members of a stored gene list.
type GeneListSelector struct {
	List string
}

func (s GeneListSelector) queryNode() {}
func (s GeneListSelector) String() string { return "list=" + s.List }

// MetadataSelector restricts to edges of datasets whose metadata key equals
// the value (both compared case-insensitively).
type MetadataSelector struct {
	Key   string
	Value string
}

func (s MetadataSelector) queryNode() {}
func (s MetadataSelector) String() string {
	return s.Key + "=" + quoteIfNeeded(s.Value)
}

// Filter applies a bracket modifier to a base term, pruning its edge set by
// dataset metadata or per-edge statistics.
type Filter struct {
	Base QueryNode
	Cond FilterNode
}

func (f Filter) queryNode() {}
func (f Filter) String() string {
	return f.Base.String() + "[" + f.Cond.String() + "]"
}

// And intersects the target-gene sets of its terms.
type And struct {
	Terms []QueryNode
}

func (a And) queryNode() {}
func (a And) String() string { return joinTerms(a.Terms, "and") }

// Or unions the target-gene sets of its terms.
type Or struct {
	Terms []QueryNode
}

func (o Or) queryNode() {}
func (o Or) String() string { return joinTerms(o.Terms, "or") }

// Not complements a term's gene set within the organism gene universe.
type Not struct {
	Term QueryNode
}

func (n Not) queryNode() {}
func (n Not) String() string {
	return "not " + parenthesize(n.Term)
}

// CompareOp is a comparison operator inside a bracket modifier.
type CompareOp string

// Comparison operators; the ordered forms apply only to numeric keys
// (pvalue, fc).
const (
	OpEq CompareOp = "="
	OpNe CompareOp = "!="
	OpLt CompareOp = "<"
	OpLe CompareOp = "<="
	OpGt CompareOp = ">"
	OpGe CompareOp = ">="
)

// FilterNode is a boolean expression over modifier conditions.
type FilterNode interface {
	fmt.Stringer
	filterNode()
}

// FilterCond is a single key/operator/value condition. Recognised keys:
// pvalue and fc (numeric, ordered operators allowed), edge_type, and any
// dataset metadata key (equality only).
type FilterCond struct {
	Key   string
	Op    CompareOp
	Value string
}

func (c FilterCond) filterNode() {}
func (c FilterCond) String() string {
	return c.Key + string(c.Op) + quoteIfNeeded(c.Value)
}

// FilterAnd requires all conditions to hold.
type FilterAnd struct {
	Terms []FilterNode
}

func (f FilterAnd) filterNode() {}
func (f FilterAnd) String() string { return joinFilters(f.Terms, "and") }

// FilterOr requires at least one condition to hold.
type FilterOr struct {
	Terms []FilterNode
}

func (f FilterOr) filterNode() {}
func (f FilterOr) String() string { return joinFilters(f.Terms, "or") }

// FilterNot negates a condition.
type FilterNot struct {
	Term FilterNode
}

func (f FilterNot) filterNode() {}
func (f FilterNot) String() string {
	if _, ok := f.Term.(FilterCond); ok {
		return "not " + f.Term.String()
	}
	return "not (" + f.Term.String() + ")"
}

func joinTerms(terms []QueryNode, op string) string {
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = parenthesize(t)
	}
	return strings.Join(parts, " "+op+" ")
}

func joinFilters(terms []FilterNode, op string) string {
	parts := make([]string, len(terms))
	for i, t := range terms {
		switch t.(type) {
		case FilterAnd, FilterOr:
			parts[i] = "(" + t.String() + ")"
		default:
			parts[i] = t.String()
		}
	}
	return strings.Join(parts, " "+op+" ")
}

func parenthesize(n QueryNode) string {
	switch n.(type) {
	case And, Or:
		return "(" + n.String() + ")"
	default:
		return n.String()
	}
}

func quoteIfNeeded(v string) string {
	if strings.ContainsAny(v, " \t()[]=<>!'\"") {
		return "'" + strings.ReplaceAll(v, "'", `\'`) + "'"
	}
	return v
}
