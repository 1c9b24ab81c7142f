// Package query implements the unified query language: a hand-written
// tokenizer and recursive-descent parser producing a small AST, and an
// engine that evaluates the AST against a workspace store.
package query

import "fmt"

// Operator is a comparison in a where clause.
type Operator string

const (
	OpEq       Operator = "="
	OpNe       Operator = "!="
	OpGt       Operator = ">"
	OpLt       Operator = "<"
	OpGe       Operator = ">="
	OpLe       Operator = "<="
	OpTilde    Operator = "~"
	OpContains Operator = "contains"
	OpExists   Operator = "exists"
	OpIsEmpty  Operator = "is_empty"
)

// ValueKind discriminates clause value types.
type ValueKind int

const (
	ValueString ValueKind = iota
	ValueNumber
	ValueBool
	ValueRelDate // today, yesterday, Nd, Nw, Nm, Ny
	ValueList
)

// Value is a clause right-hand side.
type Value struct {
	Kind ValueKind
	Str  string
	Num  float64
	Bool bool
	List []Value
}

func (v Value) String() string {
	switch v.Kind {
	case ValueNumber:
		return trimFloat(v.Num)
	case ValueBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case ValueList:
		s := ""
		for i, e := range v.List {
			if i > 0 {
				s += ","
			}
			s += e.String()
		}
		return s
	default:
		return v.Str
	}
}

// Cond is either a *Clause or a *Group in a where list.
type Cond interface{ cond() }

// Clause is one field comparison.
type Clause struct {
	Field   string
	Op      Operator
	Value   Value
	Negated bool
}

func (*Clause) cond() {}

// Group is a parenthesized OR of clauses.
type Group struct {
	Clauses []*Clause
}

func (*Group) cond() {}

// Order is the order-by part.
type Order struct {
	Field string
	Desc  bool
}

// Query is the parsed form of one query string. Where entries combine
// with AND; a Group combines its clauses with OR.
type Query struct {
	Find    string
	Where   []Cond
	OrderBy *Order
	Limit   int // 0 means unset
	Offset  int
	Select  []string
}

// ParseError is a parse failure with the byte offset into the input.
type ParseError struct {
	Pos int
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at position %d: %s", e.Pos, e.Msg)
}
