package db

import (
	"fmt"
	"strings"

	"github.com/camilo/tender-radar/internal/unspsc"
)

// InterestFilter is the SQL predicate equivalent of unspsc.Matches, evaluated
// by Postgres over the classification_codes array. Clause is a parenthesized
// expression safe to append after AND; Args are its placeholder values.
//
// MatchNone is set when the declared set is empty: an empty profile matches
// nothing, and callers must short-circuit instead of running a query.
type InterestFilter struct {
	Clause    string
	Args      []interface{}
	MatchNone bool
}

// BuildInterestFilter translates a declared code set into SQL. Specific codes
// become one array-overlap check against the expanded {code, "V1."+code} set;
// each family code becomes a prefix comparison on the vendor-stripped stored
// codes. Clauses are OR-combined, mirroring the in-process matcher.
//
// argIdx is the first free placeholder number; the next free one is returned.
func BuildInterestFilter(declaredCodes []string, argIdx int) (InterestFilter, int) {
	specifics, families := unspsc.Partition(declaredCodes)

	var parts []string
	var args []interface{}

	if len(specifics) > 0 {
		var expanded []string
		for _, code := range specifics {
			expanded = append(expanded, unspsc.Expand(code)...)
		}
		parts = append(parts, fmt.Sprintf("classification_codes && $%d", argIdx))
		args = append(args, expanded)
		argIdx++
	}

	for _, code := range families {
		parts = append(parts, fmt.Sprintf(
			`EXISTS (SELECT 1 FROM unnest(classification_codes) AS code WHERE left(regexp_replace(code, '^V1\.', ''), 4) = $%d)`,
			argIdx))
		args = append(args, unspsc.Family(code))
		argIdx++
	}

	if len(parts) == 0 {
		return InterestFilter{MatchNone: true}, argIdx
	}

	return InterestFilter{
		Clause: "(" + strings.Join(parts, " OR ") + ")",
		Args:   args,
	}, argIdx
}
