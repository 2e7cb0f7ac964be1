package query

import (
	"errors"
	"testing"

	"targetdb/pkg/domain"
)

func TestParseSelectors(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"AT1G01010", "AT1G01010"},
		{"all_tfs", "all_tfs"},
		{"ALL_TFS", "all_tfs"},
		{"edge_type=induced", "edge_type=induced"},
		{"list=stress", "list=stress"},
		{"EXPERIMENT_TYPE=expression", "EXPERIMENT_TYPE=expression"},
		{"G1 and G2 and G3", "G1 and G2 and G3"},
		{"G1 or (G2 and G3)", "G1 or (G2 and G3)"},
		{"not G1", "not G1"},
		{"G1[pvalue < 0.05]", "G1[pvalue<0.05]"},
		{"all_tfs[EDGE_TYPE=ampDap or EDGE_TYPE=DAP]", "all_tfs[EDGE_TYPE=ampDap or EDGE_TYPE=DAP]"},
		{"G1[CONDITION='in planta:Bound']", "G1[CONDITION='in planta:Bound']"},
		{"G1[pvalue < 0.05 and fc > 1]", "G1[pvalue<0.05 and fc>1]"},
	}
	for _, tc := range cases {
		node, err := Parse(tc.input)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tc.input, err)
		}
		if got := node.String(); got != tc.want {
			t.Fatalf("Parse(%q).String() = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestParseMixedOperatorsAmbiguous(t *testing.T) {
	for _, input := range []string{
		"G1 and G2 or G3",
		"G1 or G2 and G3",
		"all_tfs[pvalue < 0.05 and fc > 1 or fc < -1]",
	} {
		_, err := Parse(input)
		var ambiguous domain.AmbiguousQueryError
		if !errors.As(err, &ambiguous) {
			t.Fatalf("Parse(%q) err = %v, want AmbiguousQueryError", input, err)
		}
	}
}

func TestParseParenthesesDisambiguate(t *testing.T) {
	node, err := Parse("(G1 and G2) or G3")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	or, ok := node.(domain.Or)
	if !ok || len(or.Terms) != 2 {
		t.Fatalf("expected two-term Or, got %T", node)
	}
	if _, ok := or.Terms[0].(domain.And); !ok {
		t.Fatalf("expected parenthesized And as first term, got %T", or.Terms[0])
	}
}

func TestParseInvalidInputs(t *testing.T) {
	for _, input := range []string{
		"",
		"G1 and",
		"(G1",
		"G1[pvalue 0.05]",
		"G1[",
		"edge_type=sideways",
		"G1[CONDITION > nitrogen]",
		"G1]",
	} {
		node, err := Parse(input)
		if err == nil {
			t.Fatalf("Parse(%q) succeeded with %v, want error", input, node)
		}
		var invalid domain.InvalidQueryError
		var ambiguous domain.AmbiguousQueryError
		if !errors.As(err, &invalid) && !errors.As(err, &ambiguous) {
			t.Fatalf("Parse(%q) err = %T, want typed query error", input, err)
		}
	}
}

func TestParseNumericComparisonRestriction(t *testing.T) {
	_, err := Parse("G1[EXPERIMENT_TYPE < expression]")
	var invalid domain.InvalidQueryError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidQueryError, got %v", err)
	}
}
