package tracking

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Search filters are small conjunctive expressions in the tracking API's
// filter-string syntax, e.g.:
//
//	name = 'resnet' AND lifecycle_stage != 'deleted'
//	name LIKE 'exp-%'
//
// Attribute keys may carry an "attribute." prefix, which is stripped.
// Parsed clauses are validated against a per-entity column allowlist before
// they touch the database.

var filterLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "String", Pattern: `'[^']*'`},
	{Name: "Operator", Pattern: `!=|=`},
	{Name: "Number", Pattern: `[-+]?\d+(\.\d+)?`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_.]*`},
	{Name: "whitespace", Pattern: `\s+`},
})

type filterExpr struct {
	Comparisons []*comparison `parser:"@@ ( 'AND' @@ )*"`
}

type comparison struct {
	Key   string       `parser:"@Ident"`
	Op    string       `parser:"@( Operator | 'LIKE' | 'ILIKE' )"`
	Value *filterValue `parser:"@@"`
}

type filterValue struct {
	Str *string  `parser:"@String"`
	Num *float64 `parser:"| @Number"`
}

var filterParser = participle.MustBuild[filterExpr](
	participle.Lexer(filterLexer),
)

// FilterClause is one parsed comparison from a filter string.
type FilterClause struct {
	Key      string
	Op       string // "=", "!=", "LIKE", "ILIKE"
	StrValue string
	NumValue float64
	IsNum    bool
}

// ParseFilter parses a filter string into clauses. An empty string parses
// to no clauses.
func ParseFilter(filter string) ([]FilterClause, error) {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return nil, nil
	}
	expr, err := filterParser.ParseString("", filter)
	if err != nil {
		return nil, fmt.Errorf("invalid filter %q: %w", filter, err)
	}

	clauses := make([]FilterClause, 0, len(expr.Comparisons))
	for _, cmp := range expr.Comparisons {
		clause := FilterClause{
			Key: strings.TrimPrefix(cmp.Key, "attribute."),
			Op:  cmp.Op,
		}
		switch {
		case cmp.Value.Str != nil:
			clause.StrValue = strings.Trim(*cmp.Value.Str, "'")
		case cmp.Value.Num != nil:
			clause.NumValue = *cmp.Value.Num
			clause.IsNum = true
		}
		clauses = append(clauses, clause)
	}
	return clauses, nil
}

// whereClause renders a clause against an allowlisted column set. Returns
// the SQL fragment and the bind value.
func (c FilterClause) whereClause(columns map[string]string) (string, any, error) {
	column, ok := columns[c.Key]
	if !ok {
		return "", nil, fmt.Errorf("invalid filter attribute %q", c.Key)
	}
	var value any = c.StrValue
	if c.IsNum {
		value = c.NumValue
	}
	switch c.Op {
	case "=", "!=":
		return fmt.Sprintf("%s %s ?", column, c.Op), value, nil
	case "LIKE":
		return fmt.Sprintf("%s LIKE ?", column), value, nil
	case "ILIKE":
		// Portable case-insensitive match; ILIKE itself is postgres-only.
		return fmt.Sprintf("LOWER(%s) LIKE LOWER(?)", column), value, nil
	default:
		return "", nil, fmt.Errorf("unsupported filter operator %q", c.Op)
	}
}
