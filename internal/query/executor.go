package query

import (
	"context"
	"strconv"
	"strings"

	"targetdb/pkg/domain"
)

// result carries the evolving gene and edge sets during evaluation. Gene
// membership drives the set algebra; edges are the supporting evidence.
type result struct {
	genes map[string]struct{}
	edges map[edgeKey]domain.Edge
}

type edgeKey struct {
	dataset, source, target string
}

func newResult() *result {
	return &result{
		genes: make(map[string]struct{}),
		edges: make(map[edgeKey]domain.Edge),
	}
}

func (r *result) addEdge(e domain.Edge) {
	r.edges[edgeKey{e.Dataset, e.Source, e.Target}] = e
	r.genes[e.Target] = struct{}{}
}

// Executor evaluates parsed queries against a read-only store view.
type Executor struct {
	view     domain.StoreView
	organism string
}

// NewExecutor binds an executor to one organism's slice of the store.
func NewExecutor(view domain.StoreView, organism string) *Executor {
	return &Executor{view: view, organism: organism}
}

// Execute evaluates the plan and returns the normalized target network.
// The store is never written; a cancelled context abandons the scan.
func (e *Executor) Execute(ctx context.Context, plan domain.QueryNode) (domain.TargetNetwork, error) {
	res, err := e.eval(ctx, plan)
	if err != nil {
		return domain.TargetNetwork{}, err
	}
	network := domain.TargetNetwork{
		Organism: e.organism,
		Query:    plan.String(),
		Genes:    make([]string, 0, len(res.genes)),
		Edges:    make([]domain.Edge, 0, len(res.edges)),
	}
	for gene := range res.genes {
		network.Genes = append(network.Genes, gene)
	}
	for _, edge := range res.edges {
		network.Edges = append(network.Edges, edge)
	}
	network.Normalize()
	return network, nil
}

func (e *Executor) eval(ctx context.Context, node domain.QueryNode) (*result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch n := node.(type) {
	case domain.TFSelector:
		return e.evalTF(n)
	case domain.EdgeTypeSelector:
		return e.edgesWhere(func(edge domain.Edge) bool { return edge.Kind == n.Kind })
	case domain.GeneListSelector:
		return e.evalList(n)
	case domain.MetadataSelector:
		return e.evalMetadata(n)
	case domain.Filter:
		return e.evalFilter(ctx, n)
	case domain.And:
		return e.evalAnd(ctx, n.Terms)
	case domain.Or:
		return e.evalOr(ctx, n.Terms)
	case domain.Not:
		return e.evalNot(ctx, n.Term)
	default:
		return nil, domain.InvalidQueryError{Token: node.String(), Reason: "unsupported query node"}
	}
}

func (e *Executor) evalTF(sel domain.TFSelector) (*result, error) {
	if sel.All {
		return e.edgesWhere(func(domain.Edge) bool { return true })
	}
	sources := make(map[string]struct{}, len(sel.Genes))
	for _, name := range sel.Genes {
		g, ok := e.resolve(name)
		if !ok {
			return nil, domain.InvalidQueryError{Token: name, Reason: "unresolvable gene or TF"}
		}
		sources[g.GeneID] = struct{}{}
	}
	return e.edgesWhere(func(edge domain.Edge) bool {
		_, ok := sources[edge.Source]
		return ok
	})
}

func (e *Executor) resolve(name string) (domain.Gene, bool) {
	if g, ok := e.view.Gene(e.organism, name); ok {
		return g, true
	}
	return e.view.GeneByAlias(e.organism, name)
}

func (e *Executor) edgesWhere(keep func(domain.Edge) bool) (*result, error) {
	res := newResult()
	err := e.view.ScanEdges(e.organism, func(edge domain.Edge) bool {
		if keep(edge) {
			res.addEdge(edge)
		}
		return true
	})
	return res, err
}

func (e *Executor) evalList(sel domain.GeneListSelector) (*result, error) {
	list, ok := e.view.List(e.organism, sel.List)
	if !ok {
		return nil, domain.InvalidQueryError{Token: sel.List, Reason: "no such gene list"}
	}
	res := newResult()
	for _, gene := range list.Members {
		res.genes[gene] = struct{}{}
	}
	return res, nil
}

func (e *Executor) evalMetadata(sel domain.MetadataSelector) (*result, error) {
	matching := make(map[string]struct{})
	for _, ds := range e.view.Datasets(e.organism) {
		if v, ok := ds.Meta(sel.Key); ok && strings.EqualFold(v, sel.Value) {
			matching[ds.ID] = struct{}{}
		}
	}
	return e.edgesWhere(func(edge domain.Edge) bool {
		_, ok := matching[edge.Dataset]
		return ok
	})
}

// evalFilter prunes the base result's edge set; the gene set is rebuilt
// from the surviving edges, so an edge-less base filters to empty.
func (e *Executor) evalFilter(ctx context.Context, f domain.Filter) (*result, error) {
	base, err := e.eval(ctx, f.Base)
	if err != nil {
		return nil, err
	}
	res := newResult()
	for _, edge := range base.edges {
		ok, err := e.evalCond(f.Cond, edge)
		if err != nil {
			return nil, err
		}
		if ok {
			res.addEdge(edge)
		}
	}
	return res, nil
}

func (e *Executor) evalCond(cond domain.FilterNode, edge domain.Edge) (bool, error) {
	switch c := cond.(type) {
	case domain.FilterCond:
		return e.evalCompare(c, edge)
	case domain.FilterAnd:
		for _, term := range c.Terms {
			ok, err := e.evalCond(term, edge)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case domain.FilterOr:
		for _, term := range c.Terms {
			ok, err := e.evalCond(term, edge)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case domain.FilterNot:
		ok, err := e.evalCond(c.Term, edge)
		return !ok, err
	default:
		return false, domain.InvalidQueryError{Token: cond.String(), Reason: "unsupported filter node"}
	}
}

// evalCompare applies one comparison to an edge. pvalue and fc compare the
// edge's quantitative fields; any other key compares dataset metadata, with
// the derived edge kind answering for EDGE_TYPE when the dataset carries no
// such metadata entry.
func (e *Executor) evalCompare(c domain.FilterCond, edge domain.Edge) (bool, error) {
	switch strings.ToLower(c.Key) {
	case "pvalue":
		return compareFloat(edge.PValue, c.Op, c.Value)
	case "fc":
		return compareFloat(edge.FoldChange, c.Op, c.Value)
	}
	ds, ok := e.view.Dataset(edge.Dataset)
	if !ok {
		return false, nil
	}
	value, present := ds.Meta(c.Key)
	if !present && strings.EqualFold(c.Key, domain.MetaEdgeType) {
		value, present = string(edge.Kind), true
	}
	if !present {
		return c.Op == domain.OpNe, nil
	}
	match := strings.EqualFold(value, c.Value)
	if c.Op == domain.OpNe {
		return !match, nil
	}
	return match, nil
}

func compareFloat(field *float64, op domain.CompareOp, raw string) (bool, error) {
	threshold, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return false, domain.InvalidQueryError{Token: raw, Reason: "not a number"}
	}
	if field == nil {
		return false, nil
	}
	v := *field
	switch op {
	case domain.OpEq:
		return v == threshold, nil
	case domain.OpNe:
		return v != threshold, nil
	case domain.OpLt:
		return v < threshold, nil
	case domain.OpLe:
		return v <= threshold, nil
	case domain.OpGt:
		return v > threshold, nil
	case domain.OpGe:
		return v >= threshold, nil
	}
	return false, domain.InvalidQueryError{Token: string(op), Reason: "unknown comparison"}
}

// evalAnd intersects target-gene sets; surviving edges are those whose
// target remains in the intersection.
func (e *Executor) evalAnd(ctx context.Context, terms []domain.QueryNode) (*result, error) {
	var acc *result
	for _, term := range terms {
		r, err := e.eval(ctx, term)
		if err != nil {
			return nil, err
		}
		if acc == nil {
			acc = r
			continue
		}
		for gene := range acc.genes {
			if _, ok := r.genes[gene]; !ok {
				delete(acc.genes, gene)
			}
		}
		for k, edge := range r.edges {
			acc.edges[k] = edge
		}
	}
	if acc == nil {
		acc = newResult()
	}
	pruned := newResult()
	pruned.genes = acc.genes
	for k, edge := range acc.edges {
		if _, ok := acc.genes[edge.Target]; ok {
			pruned.edges[k] = edge
		}
	}
	return pruned, nil
}

func (e *Executor) evalOr(ctx context.Context, terms []domain.QueryNode) (*result, error) {
	acc := newResult()
	for _, term := range terms {
		r, err := e.eval(ctx, term)
		if err != nil {
			return nil, err
		}
		for gene := range r.genes {
			acc.genes[gene] = struct{}{}
		}
		for k, edge := range r.edges {
			acc.edges[k] = edge
		}
	}
	return acc, nil
}

// evalNot complements against the organism's gene universe. The complement
// is a pure gene set; it carries no supporting edges.
func (e *Executor) evalNot(ctx context.Context, term domain.QueryNode) (*result, error) {
	inner, err := e.eval(ctx, term)
	if err != nil {
		return nil, err
	}
	res := newResult()
	err = e.view.ScanGenes(e.organism, func(g domain.Gene) bool {
		if _, ok := inner.genes[g.GeneID]; !ok {
			res.genes[g.GeneID] = struct{}{}
		}
		return true
	})
	return res, err
}
