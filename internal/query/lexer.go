// Package query parses and executes the boolean target-network query
// language: gene and TF selectors, all_tfs, metadata selectors, bracket
// modifiers with comparison filters, and homogeneous and/or/not nesting.
package query

import (
	"strings"
	"unicode"

	"targetdb/pkg/domain"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokName
	tokQuoted
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
	tokOp // = != < <= > >=
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// nameRune reports whether r may appear in a bare identifier. Gene IDs,
// dataset markers (lit:...), list names and metadata keys all pass.
func nameRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) ||
		r == '_' || r == '.' || r == '-' || r == ':' || r == '/'
}

// lex splits the input into tokens. Quoted values keep their inner text
// verbatim; both single and double quotes work, as in 'in planta:Bound'.
func lex(input string) ([]token, error) {
	runes := []rune(input)
	tokens := make([]token, 0, 16)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			tokens = append(tokens, token{tokLParen, "(", i})
			i++
		case r == ')':
			tokens = append(tokens, token{tokRParen, ")", i})
			i++
		case r == '[':
			tokens = append(tokens, token{tokLBracket, "[", i})
			i++
		case r == ']':
			tokens = append(tokens, token{tokRBracket, "]", i})
			i++
		case r == '=':
			tokens = append(tokens, token{tokOp, "=", i})
			i++
		case r == '!':
			if i+1 >= len(runes) || runes[i+1] != '=' {
				return nil, domain.InvalidQueryError{Token: "!", Reason: "expected != "}
			}
			tokens = append(tokens, token{tokOp, "!=", i})
			i += 2
		case r == '<' || r == '>':
			op := string(r)
			if i+1 < len(runes) && runes[i+1] == '=' {
				op += "="
				i++
			}
			tokens = append(tokens, token{tokOp, op, i})
			i++
		case r == '\'' || r == '"':
			quote := r
			j := i + 1
			var sb strings.Builder
			for j < len(runes) && runes[j] != quote {
				sb.WriteRune(runes[j])
				j++
			}
			if j >= len(runes) {
				return nil, domain.InvalidQueryError{Token: string(quote), Reason: "unterminated quoted value"}
			}
			tokens = append(tokens, token{tokQuoted, sb.String(), i})
			i = j + 1
		case nameRune(r):
			j := i
			for j < len(runes) && nameRune(runes[j]) {
				j++
			}
			tokens = append(tokens, token{tokName, string(runes[i:j]), i})
			i = j
		default:
			return nil, domain.InvalidQueryError{Token: string(r), Reason: "unexpected character"}
		}
	}
	tokens = append(tokens, token{tokEOF, "", len(runes)})
	return tokens, nil
}
