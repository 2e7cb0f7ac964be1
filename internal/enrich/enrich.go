// Package enrich scores the overlap between a query's target network and a
// reference gene set with a hypergeometric upper-tail test.
package enrich

import (
	"context"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/combin"

	"targetdb/pkg/domain"
)

// Enrich tests whether network's gene set overlaps reference more than
// chance drawing from a universe of universeSize genes would predict.
// An empty network or reference yields a defined zero-overlap result with
// EmptyResult set, never an error.
func Enrich(network domain.TargetNetwork, referenceName string, reference []string, universeSize int) domain.EnrichmentResult {
	result := domain.EnrichmentResult{
		Reference:     referenceName,
		NetworkSize:   len(network.Genes),
		ReferenceSize: len(reference),
		UniverseSize:  universeSize,
		PValue:        1,
	}
	if len(network.Genes) == 0 || len(reference) == 0 || universeSize == 0 {
		result.EmptyResult = true
		return result
	}

	refSet := make(map[string]struct{}, len(reference))
	for _, gene := range reference {
		refSet[gene] = struct{}{}
	}
	for _, gene := range network.Genes {
		if _, ok := refSet[gene]; ok {
			result.Overlap++
		}
	}
	result.Expected = float64(len(network.Genes)) * float64(len(reference)) / float64(universeSize)
	result.PValue = hypergeomUpperTail(result.Overlap, len(network.Genes), len(reference), universeSize)
	return result
}

// hypergeomUpperTail is P(X >= overlap) when drawing draws genes without
// replacement from a universe containing successes marked genes.
func hypergeomUpperTail(overlap, draws, successes, universe int) float64 {
	if overlap <= 0 {
		return 1
	}
	if successes > universe {
		successes = universe
	}
	if draws > universe {
		draws = universe
	}
	max := draws
	if successes < max {
		max = successes
	}
	if overlap > max {
		return 0
	}
	logDenom := combin.LogGeneralizedBinomial(float64(universe), float64(draws))
	p := 0.0
	for k := overlap; k <= max; k++ {
		if draws-k > universe-successes {
			continue // more misses drawn than the universe holds
		}
		logP := combin.LogGeneralizedBinomial(float64(successes), float64(k)) +
			combin.LogGeneralizedBinomial(float64(universe-successes), float64(draws-k)) -
			logDenom
		p += math.Exp(logP)
	}
	if p > 1 {
		p = 1
	}
	return p
}

// EnrichLists evaluates every stored gene list of the network's organism,
// sorted by ascending p-value with name as the tiebreak.
func EnrichLists(ctx context.Context, view domain.StoreView, network domain.TargetNetwork) ([]domain.EnrichmentResult, error) {
	universe := view.GeneCount(network.Organism)
	lists := view.Lists(network.Organism)
	results := make([]domain.EnrichmentResult, 0, len(lists))
	for _, list := range lists {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		results = append(results, Enrich(network, list.Name, list.Members, universe))
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].PValue != results[j].PValue {
			return results[i].PValue < results[j].PValue
		}
		return results[i].Reference < results[j].Reference
	})
	return results, nil
}

// EnrichMotifs scores the network against every motif's target set.
func EnrichMotifs(ctx context.Context, view domain.StoreView, network domain.TargetNetwork) ([]domain.EnrichmentResult, error) {
	universe := view.GeneCount(network.Organism)
	motifs := view.Motifs(network.Organism)
	results := make([]domain.EnrichmentResult, 0, len(motifs))
	for _, motif := range motifs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		results = append(results, Enrich(network, motif.MotifID, motif.Targets, universe))
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].PValue != results[j].PValue {
			return results[i].PValue < results[j].PValue
		}
		return results[i].Reference < results[j].Reference
	})
	return results, nil
}
