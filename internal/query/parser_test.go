package query

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseBasic(t *testing.T) {
	q, err := Parse("find task")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if q.Find != "task" || len(q.Where) != 0 || q.OrderBy != nil || q.Limit != 0 {
		t.Errorf("query = %+v", q)
	}
}

func TestParseFullQuery(t *testing.T) {
	q, err := Parse("find task where (Status = Done or Status = Active) and created > 7d order by -created limit 20")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if q.Find != "task" {
		t.Errorf("find = %q", q.Find)
	}
	if len(q.Where) != 2 {
		t.Fatalf("where = %d entries, want 2", len(q.Where))
	}

	g, ok := q.Where[0].(*Group)
	if !ok {
		t.Fatalf("where[0] = %T, want *Group", q.Where[0])
	}
	if len(g.Clauses) != 2 {
		t.Fatalf("group clauses = %d, want 2", len(g.Clauses))
	}
	for i, want := range []string{"Done", "Active"} {
		c := g.Clauses[i]
		if c.Field != "Status" || c.Op != OpEq || c.Value.Str != want {
			t.Errorf("group clause %d = %+v", i, c)
		}
	}

	c, ok := q.Where[1].(*Clause)
	if !ok {
		t.Fatalf("where[1] = %T, want *Clause", q.Where[1])
	}
	if c.Field != "created" || c.Op != OpGt {
		t.Errorf("date clause = %+v", c)
	}
	if c.Value.Kind != ValueRelDate || c.Value.Str != "7d" {
		t.Errorf("date value = %+v, want relative 7d", c.Value)
	}

	if q.OrderBy == nil || q.OrderBy.Field != "created" || !q.OrderBy.Desc {
		t.Errorf("order by = %+v, want created desc", q.OrderBy)
	}
	if q.Limit != 20 {
		t.Errorf("limit = %d, want 20", q.Limit)
	}
}

func TestParseOperators(t *testing.T) {
	tests := []struct {
		input string
		op    Operator
	}{
		{`find t where f = x`, OpEq},
		{`find t where f != x`, OpNe},
		{`find t where f > 1`, OpGt},
		{`find t where f < 1`, OpLt},
		{`find t where f >= 1`, OpGe},
		{`find t where f <= 1`, OpLe},
		{`find t where f ~ x`, OpTilde},
		{`find t where f contains x`, OpContains},
	}
	for _, tt := range tests {
		q, err := Parse(tt.input)
		if err != nil {
			t.Errorf("Parse(%q): %v", tt.input, err)
			continue
		}
		c := q.Where[0].(*Clause)
		if c.Op != tt.op {
			t.Errorf("Parse(%q) op = %q, want %q", tt.input, c.Op, tt.op)
		}
	}
}

func TestParseExistsAndEmpty(t *testing.T) {
	q, err := Parse("find t where due exists and not owner is empty")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	c0 := q.Where[0].(*Clause)
	if c0.Field != "due" || c0.Op != OpExists || c0.Negated {
		t.Errorf("clause 0 = %+v", c0)
	}
	c1 := q.Where[1].(*Clause)
	if c1.Field != "owner" || c1.Op != OpIsEmpty || !c1.Negated {
		t.Errorf("clause 1 = %+v", c1)
	}
}

func TestParseValueKinds(t *testing.T) {
	tests := []struct {
		input string
		kind  ValueKind
		str   string
	}{
		{`find t where f = "quoted text"`, ValueString, "quoted text"},
		{`find t where f = 'single'`, ValueString, "single"},
		{`find t where f = bare`, ValueString, "bare"},
		{`find t where f = 42`, ValueNumber, "42"},
		{`find t where f = -1.5`, ValueNumber, "-1.5"},
		{`find t where f = true`, ValueBool, "true"},
		{`find t where f = today`, ValueRelDate, "today"},
		{`find t where f = Yesterday`, ValueRelDate, "yesterday"},
		{`find t where f = 3M`, ValueRelDate, "3m"},
		{`find t where f = 2025-12-31`, ValueString, "2025-12-31"},
	}
	for _, tt := range tests {
		q, err := Parse(tt.input)
		if err != nil {
			t.Errorf("Parse(%q): %v", tt.input, err)
			continue
		}
		v := q.Where[0].(*Clause).Value
		if v.Kind != tt.kind || v.Str != tt.str {
			t.Errorf("Parse(%q) value = %+v, want kind %d str %q", tt.input, v, tt.kind, tt.str)
		}
	}
}

func TestParseValueList(t *testing.T) {
	q, err := Parse(`find t where Status = Done, "In Progress", 3`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	v := q.Where[0].(*Clause).Value
	if v.Kind != ValueList || len(v.List) != 3 {
		t.Fatalf("value = %+v", v)
	}
	if v.List[0].Str != "Done" || v.List[1].Str != "In Progress" || v.List[2].Kind != ValueNumber {
		t.Errorf("list = %+v", v.List)
	}
}

func TestParseSelect(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{`find t select *`, []string{"*"}},
		{`find t select name, Status`, []string{"name", "Status"}},
		{`find t select "name,Status"`, []string{"name", "Status"}},
		{`find t select "Due Date"`, []string{"Due Date"}},
	}
	for _, tt := range tests {
		q, err := Parse(tt.input)
		if err != nil {
			t.Errorf("Parse(%q): %v", tt.input, err)
			continue
		}
		if !reflect.DeepEqual(q.Select, tt.want) {
			t.Errorf("Parse(%q) select = %v, want %v", tt.input, q.Select, tt.want)
		}
	}
}

func TestParseOffset(t *testing.T) {
	q, err := Parse("find t limit 10 offset 30")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if q.Limit != 10 || q.Offset != 30 {
		t.Errorf("limit/offset = %d/%d", q.Limit, q.Offset)
	}
}

func TestParseQuotedTagName(t *testing.T) {
	q, err := Parse(`find "daily log" where mood = good`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if q.Find != "daily log" {
		t.Errorf("find = %q", q.Find)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"no find", "where x = 1"},
		{"missing target", "find"},
		{"missing operator", "find t where f g"},
		{"missing value", "find t where f ="},
		{"unterminated string", `find t where f = "abc`},
		{"unclosed group", "find t where (a = 1 or b = 2"},
		{"bad limit", "find t limit x"},
		{"negative offset", "find t offset -1"},
		{"trailing garbage", "find t limit 5 nonsense"},
		{"is without empty", "find t where f is something"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			if err == nil {
				t.Fatalf("Parse(%q) accepted", tt.input)
			}
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Errorf("error = %T, want *ParseError", err)
			}
		})
	}
}

func TestParseErrorPosition(t *testing.T) {
	_, err := Parse("find t where f = ")
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v", err)
	}
	if pe.Pos != 17 {
		t.Errorf("pos = %d, want 17 (end of input)", pe.Pos)
	}
}
