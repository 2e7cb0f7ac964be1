package domain

import "fmt"

// ValidationError reports a malformed file or row. When Fatal is set the
// whole import invocation fails (metadata cross-validation, empty file);
// otherwise the offending row is skipped and counted.
type ValidationError struct {
	File   string
	Line   int
	Reason string
	Fatal  bool
}

func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("validation: %s:%d: %s", e.File, e.Line, e.Reason)
	}
	return fmt.Sprintf("validation: %s: %s", e.File, e.Reason)
}

// IntegrityError reports a natural-key or referential constraint violation
// at the store. The write is rejected atomically.
type IntegrityError struct {
	Entity EntityType
	Key    string
	Reason string
}

func (e IntegrityError) Error() string {
	return fmt.Sprintf("integrity: %s %q: %s", e.Entity, e.Key, e.Reason)
}

// UnresolvedIdentifierError reports an identifier the resolver has no
// mapping for.
type UnresolvedIdentifierError struct {
	Identifier string
	Organism   string
}

func (e UnresolvedIdentifierError) Error() string {
	return fmt.Sprintf("unresolved identifier %q for organism %q", e.Identifier, e.Organism)
}

// InvalidQueryError reports a query that references an unknown selector,
// gene, TF, or gene list. Token names the offending input.
type InvalidQueryError struct {
	Token  string
	Reason string
}

func (e InvalidQueryError) Error() string {
	return fmt.Sprintf("invalid query: %s (token %q)", e.Reason, e.Token)
}

// AmbiguousQueryError reports a boolean expression mixing "and" and "or" at
// one parenthesization level. Explicit parentheses are required.
type AmbiguousQueryError struct {
	Expression string
}

func (e AmbiguousQueryError) Error() string {
	return fmt.Sprintf("ambiguous query %q: mixed and/or requires parentheses", e.Expression)
}

// NotFoundError is returned when a keyed lookup misses.
type NotFoundError struct {
	Entity EntityType
	Key    string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.Key)
}
