package query

import (
	"strings"

	"targetdb/pkg/domain"
)

// numericFilterKeys admit ordering comparisons inside bracket modifiers.
// Every other key allows equality and inequality only.
var numericFilterKeys = map[string]bool{
	"pvalue": true,
	"fc":     true,
}

// Parse turns a query expression into its AST. Mixing and/or at one
// parenthesization level is rejected as ambiguous rather than resolved by
// silent precedence.
func Parse(input string) (domain.QueryNode, error) {
	if strings.TrimSpace(input) == "" {
		return nil, domain.InvalidQueryError{Token: "", Reason: "empty query"}
	}
	tokens, err := lex(input)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens, input: input}
	node, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		return nil, domain.InvalidQueryError{Token: p.peek().text, Reason: "trailing input"}
	}
	return node, nil
}

type parser struct {
	tokens []token
	pos    int
	input  string
}

func (p *parser) peek() token { return p.tokens[p.pos] }

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) keyword(t token, word string) bool {
	return t.kind == tokName && strings.EqualFold(t.text, word)
}

// parseExpr handles one parenthesization level: term { op term } with a
// single operator kind throughout.
func (p *parser) parseExpr() (domain.QueryNode, error) {
	first, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	terms := []domain.QueryNode{first}
	op := ""
	for {
		t := p.peek()
		var word string
		switch {
		case p.keyword(t, "and"):
			word = "and"
		case p.keyword(t, "or"):
			word = "or"
		default:
			switch {
			case len(terms) == 1:
				return first, nil
			case op == "and":
				return domain.And{Terms: terms}, nil
			default:
				return domain.Or{Terms: terms}, nil
			}
		}
		if op != "" && op != word {
			return nil, domain.AmbiguousQueryError{Expression: p.input}
		}
		op = word
		p.next()
		term, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		terms = append(terms, term)
	}
}

func (p *parser) parseTerm() (domain.QueryNode, error) {
	if p.keyword(p.peek(), "not") {
		p.next()
		inner, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		return domain.Not{Term: inner}, nil
	}
	return p.parseAtom()
}

// parseAtom parses a primary plus any trailing bracket modifiers, each of
// which wraps the accumulated node in a Filter.
func (p *parser) parseAtom() (domain.QueryNode, error) {
	node, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokLBracket {
		p.next()
		cond, err := p.parseModExpr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokRBracket {
			return nil, domain.InvalidQueryError{Token: p.peek().text, Reason: "expected ]"}
		}
		p.next()
		node = domain.Filter{Base: node, Cond: cond}
	}
	return node, nil
}

func (p *parser) parsePrimary() (domain.QueryNode, error) {
	t := p.peek()
	switch t.kind {
	case tokLParen:
		p.next()
		node, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokRParen {
			return nil, domain.InvalidQueryError{Token: p.peek().text, Reason: "expected )"}
		}
		p.next()
		return node, nil
	case tokName, tokQuoted:
		return p.parseSelector()
	default:
		return nil, domain.InvalidQueryError{Token: t.text, Reason: "expected a selector or ("}
	}
}

// parseSelector handles bare names, all_tfs, and key=value selectors.
func (p *parser) parseSelector() (domain.QueryNode, error) {
	name := p.next()
	if p.peek().kind == tokOp {
		op := p.peek()
		if op.text != "=" {
			return nil, domain.InvalidQueryError{Token: op.text, Reason: "only = is valid outside bracket modifiers"}
		}
		p.next()
		value := p.peek()
		if value.kind != tokName && value.kind != tokQuoted {
			return nil, domain.InvalidQueryError{Token: value.text, Reason: "expected a value after ="}
		}
		p.next()
		return keyValueSelector(name.text, value.text)
	}
	if strings.EqualFold(name.text, "all_tfs") {
		return domain.TFSelector{All: true}, nil
	}
	return domain.TFSelector{Genes: []string{name.text}}, nil
}

func keyValueSelector(key, value string) (domain.QueryNode, error) {
	switch strings.ToLower(key) {
	case "tf":
		return domain.TFSelector{Genes: []string{value}}, nil
	case "edge_type", "edgetype":
		kind, ok := domain.ParseEdgeKind(value)
		if !ok {
			return nil, domain.InvalidQueryError{Token: value, Reason: "unknown edge kind"}
		}
		return domain.EdgeTypeSelector{Kind: kind}, nil
	case "list":
		return domain.GeneListSelector{List: value}, nil
	default:
		return domain.MetadataSelector{Key: strings.ToUpper(key), Value: value}, nil
	}
}

// parseModExpr mirrors parseExpr inside a bracket modifier, with the same
// homogeneity rule.
func (p *parser) parseModExpr() (domain.FilterNode, error) {
	first, err := p.parseModTerm()
	if err != nil {
		return nil, err
	}
	terms := []domain.FilterNode{first}
	op := ""
	for {
		t := p.peek()
		var word string
		switch {
		case p.keyword(t, "and"):
			word = "and"
		case p.keyword(t, "or"):
			word = "or"
		default:
			switch {
			case len(terms) == 1:
				return first, nil
			case op == "and":
				return domain.FilterAnd{Terms: terms}, nil
			default:
				return domain.FilterOr{Terms: terms}, nil
			}
		}
		if op != "" && op != word {
			return nil, domain.AmbiguousQueryError{Expression: p.input}
		}
		op = word
		p.next()
		term, err := p.parseModTerm()
		if err != nil {
			return nil, err
		}
		terms = append(terms, term)
	}
}

func (p *parser) parseModTerm() (domain.FilterNode, error) {
	t := p.peek()
	if p.keyword(t, "not") {
		p.next()
		inner, err := p.parseModTerm()
		if err != nil {
			return nil, err
		}
		return domain.FilterNot{Term: inner}, nil
	}
	if t.kind == tokLParen {
		p.next()
		inner, err := p.parseModExpr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokRParen {
			return nil, domain.InvalidQueryError{Token: p.peek().text, Reason: "expected )"}
		}
		p.next()
		return inner, nil
	}
	if t.kind != tokName {
		return nil, domain.InvalidQueryError{Token: t.text, Reason: "expected a filter key"}
	}
	key := p.next().text
	op := p.peek()
	if op.kind != tokOp {
		return nil, domain.InvalidQueryError{Token: op.text, Reason: "expected a comparison after " + key}
	}
	p.next()
	compare := domain.CompareOp(op.text)
	if compare != domain.OpEq && compare != domain.OpNe && !numericFilterKeys[strings.ToLower(key)] {
		return nil, domain.InvalidQueryError{
			Token:  key,
			Reason: "ordering comparisons apply to pvalue and fc only",
		}
	}
	value := p.peek()
	if value.kind != tokName && value.kind != tokQuoted {
		return nil, domain.InvalidQueryError{Token: value.text, Reason: "expected a value after " + op.text}
	}
	p.next()
	return domain.FilterCond{Key: key, Op: compare, Value: value.text}, nil
}
