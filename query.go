package ridb

import (
	"fmt"
)

// QueryOp is a comparison operator usable inside a leaf query clause.
type QueryOp string

const (
	OpEq  QueryOp = "$eq"
	OpNe  QueryOp = "$ne"
	OpGt  QueryOp = "$gt"
	OpGte QueryOp = "$gte"
	OpLt  QueryOp = "$lt"
	OpLte QueryOp = "$lte"
	OpIn  QueryOp = "$in"
)

var comparisonOps = map[QueryOp]bool{
	OpEq: true, OpNe: true, OpGt: true, OpGte: true,
	OpLt: true, OpLte: true, OpIn: true,
}

const (
	logicalAnd = "$and"
	logicalOr  = "$or"
)

// clause is one node of a parsed query tree: either a leaf comparison
// on a single field, or a conjunction/disjunction of subclauses.
type clause struct {
	field    string
	op       QueryOp
	value    any
	logical  string
	children []*clause
}

// Query is a parsed, schema-checked filter. Parsing a query document
// is idempotent: parsing an already-normalized Query's raw form
// produces an equivalent Query.
type Query struct {
	root *clause
}

// NewQuery parses and normalizes a raw MongoDB-style filter document
// against schema, rejecting references to undeclared fields and
// unrecognized operators with a *QueryError.
func NewQuery(raw map[string]any, schema *Schema) (*Query, error) {
	root, err := parseLogicalBody(raw, schema)
	if err != nil {
		return nil, err
	}
	return &Query{root: root}, nil
}

func parseLogicalBody(raw map[string]any, schema *Schema) (*clause, error) {
	var children []*clause
	for key, val := range raw {
		switch key {
		case logicalAnd, logicalOr:
			arr, ok := val.([]any)
			if !ok {
				return nil, newQueryError(key, "logical_operand_not_array",
					"{operator} requires an array of subqueries", map[string]any{"operator": key})
			}
			if len(arr) == 0 {
				return nil, newQueryError(key, "logical_operand_empty",
					"{operator} must not be empty", map[string]any{"operator": key})
			}
			sub := make([]*clause, 0, len(arr))
			for _, item := range arr {
				m, ok := item.(map[string]any)
				if !ok {
					return nil, newQueryError(key, "logical_operand_invalid",
						"{operator} entries must be query objects", map[string]any{"operator": key})
				}
				c, err := parseLogicalBody(m, schema)
				if err != nil {
					return nil, err
				}
				sub = append(sub, c)
			}
			children = append(children, &clause{logical: key, children: sub})
		default:
			c, err := parseField(key, val, schema)
			if err != nil {
				return nil, err
			}
			children = append(children, c)
		}
	}

	switch len(children) {
	case 0:
		return &clause{logical: logicalAnd}, nil
	case 1:
		if children[0].logical != "" && children[0].field == "" {
			return children[0], nil
		}
		return &clause{logical: logicalAnd, children: children}, nil
	default:
		return &clause{logical: logicalAnd, children: children}, nil
	}
}

func parseField(field string, val any, schema *Schema) (*clause, error) {
	if _, ok := schema.Property(field); !ok {
		return nil, newQueryError(field, "unknown_field",
			"Field {field} is not declared in the schema", map[string]any{"field": field})
	}

	body, ok := val.(map[string]any)
	if !ok {
		return &clause{field: field, op: OpEq, value: val}, nil
	}

	var ops []string
	for k := range body {
		ops = append(ops, k)
	}
	if len(ops) != 1 {
		// Bare comparison object with multiple operators implicitly
		// conjoins them, e.g. {age: {$gte: 1, $lt: 10}}.
		children := make([]*clause, 0, len(ops))
		for opKey, opVal := range body {
			op := QueryOp(opKey)
			if !comparisonOps[op] {
				return nil, newQueryError(field, "unknown_operator",
					"Operator {operator} is not supported", map[string]any{"operator": opKey})
			}
			children = append(children, &clause{field: field, op: op, value: opVal})
		}
		return &clause{logical: logicalAnd, children: children}, nil
	}

	opKey := ops[0]
	op := QueryOp(opKey)
	if !comparisonOps[op] {
		return nil, newQueryError(field, "unknown_operator",
			"Operator {operator} is not supported", map[string]any{"operator": opKey})
	}
	return &clause{field: field, op: op, value: body[opKey]}, nil
}

// Matches reports whether doc satisfies the query. A field referenced
// by a leaf clause that is absent from doc never matches $eq/$gt-style
// comparisons; it is never treated as an error.
func (q *Query) Matches(doc map[string]any) bool {
	return q.root.matches(doc)
}

func (c *clause) matches(doc map[string]any) bool {
	if c.logical != "" {
		switch c.logical {
		case logicalOr:
			for _, child := range c.children {
				if child.matches(doc) {
					return true
				}
			}
			return len(c.children) == 0
		default: // logicalAnd
			for _, child := range c.children {
				if !child.matches(doc) {
					return false
				}
			}
			return true
		}
	}
	return matchLeaf(doc[c.field], c.op, c.value)
}

func matchLeaf(actual any, op QueryOp, expected any) bool {
	switch op {
	case OpEq:
		return compareEqual(actual, expected)
	case OpNe:
		return !compareEqual(actual, expected)
	case OpIn:
		arr, ok := expected.([]any)
		if !ok {
			return false
		}
		for _, item := range arr {
			if compareEqual(actual, item) {
				return true
			}
		}
		return false
	case OpGt, OpGte, OpLt, OpLte:
		return compareOrdered(actual, op, expected)
	default:
		return false
	}
}

func compareEqual(a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return fmt.Sprint(a) == fmt.Sprint(b) && sameKind(a, b)
}

func sameKind(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return fmt.Sprintf("%T", a) == fmt.Sprintf("%T", b)
}

func compareOrdered(actual any, op QueryOp, expected any) bool {
	af, aok := toFloat(actual)
	bf, bok := toFloat(expected)
	if aok && bok {
		switch op {
		case OpGt:
			return af > bf
		case OpGte:
			return af >= bf
		case OpLt:
			return af < bf
		case OpLte:
			return af <= bf
		}
	}

	as, aIsStr := actual.(string)
	bs, bIsStr := expected.(string)
	if aIsStr && bIsStr {
		switch op {
		case OpGt:
			return as > bs
		case OpGte:
			return as >= bs
		case OpLt:
			return as < bs
		case OpLte:
			return as <= bs
		}
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
