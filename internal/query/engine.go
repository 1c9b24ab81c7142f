package query

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tanatools/supertag/internal/debug"
	"github.com/tanatools/supertag/internal/schema"
	"github.com/tanatools/supertag/internal/sterr"
	"github.com/tanatools/supertag/internal/storage/sqlite"
	"github.com/tanatools/supertag/internal/types"
)

const (
	// DefaultLimit applies when a query carries no limit.
	DefaultLimit = 100
	// MaxLimit is the hard cap on result page size.
	MaxLimit = 1000

	nodeChunk = 500
)

// Engine evaluates parsed queries against one workspace.
type Engine struct {
	store  *sqlite.Store
	schema *schema.Service
	now    Clock
}

// NewEngine builds an engine. A nil clock means wall time.
func NewEngine(store *sqlite.Store, sc *schema.Service, clock Clock) *Engine {
	if clock == nil {
		clock = time.Now
	}
	return &Engine{store: store, schema: sc, now: clock}
}

// Row is one query result.
type Row struct {
	ID      string              `json:"id"`
	Name    string              `json:"name"`
	Tags    []string            `json:"tags,omitempty"`
	Fields  map[string][]string `json:"fields,omitempty"`
	Created int64               `json:"created,omitempty"`
	Updated int64               `json:"updated,omitempty"`
}

// Result is a query result page.
type Result struct {
	Rows     []*Row   `json:"rows"`
	Total    int      `json:"total"`
	Warnings []string `json:"warnings,omitempty"`
}

// ExecuteString parses and executes in one call.
func (e *Engine) ExecuteString(ctx context.Context, input string) (*Result, error) {
	q, err := Parse(input)
	if err != nil {
		return nil, sterr.Wrap(sterr.InvalidParameter, err, "invalid query")
	}
	return e.Execute(ctx, q)
}

// Execute runs a parsed query. An unknown target supertag yields an empty
// result with a warning rather than an error; so does an unknown field in a
// condition (the condition is false).
func (e *Engine) Execute(ctx context.Context, q *Query) (*Result, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	res := &Result{Rows: []*Row{}}
	candidates, knownFields, err := e.candidates(ctx, q, res)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return res, nil
	}

	ev, err := e.loadContext(ctx, candidates, q)
	if err != nil {
		return nil, err
	}
	ev.knownFields = knownFields
	ev.now = e.now()

	var matched []*types.Node
	for i, id := range candidates {
		if i%nodeChunk == 0 {
			if err := ctx.Err(); err != nil {
				return nil, sterr.Wrap(sterr.Timeout, err, "query canceled")
			}
		}
		n := ev.nodes[id]
		if n == nil {
			continue
		}
		if e.matches(ev, n, q.Where) {
			matched = append(matched, n)
		}
	}

	e.sortNodes(ev, matched, q.OrderBy)
	res.Total = len(matched)
	if q.Offset < len(matched) {
		matched = matched[q.Offset:]
	} else {
		matched = nil
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}

	for _, n := range matched {
		res.Rows = append(res.Rows, e.buildRow(ev, n, q.Select))
	}
	return res, nil
}

// candidates resolves the find target to a node id set and the set of field
// names defined on the target's inheritance closure.
func (e *Engine) candidates(ctx context.Context, q *Query, res *Result) ([]string, map[string]bool, error) {
	if q.Find == "*" {
		ids, err := e.store.AllNodeIDs(ctx)
		return ids, nil, err
	}
	st, err := e.schema.GetSupertag(ctx, q.Find)
	if err != nil {
		if sterr.IsKind(err, sterr.TagNotFound) {
			res.Warnings = append(res.Warnings, "unknown supertag "+strconv.Quote(q.Find))
			return nil, nil, nil
		}
		return nil, nil, err
	}
	ids, err := e.store.NodesWithTag(ctx, st.ID)
	if err != nil {
		return nil, nil, err
	}
	all, err := e.schema.AllFields(ctx, st.ID)
	if err != nil {
		return nil, nil, err
	}
	known := make(map[string]bool, len(all))
	for _, f := range all {
		known[f.NormalizedName] = true
	}
	return ids, known, nil
}

// evalContext holds the bulk-loaded data a query evaluates over.
type evalContext struct {
	nodes       map[string]*types.Node
	fields      map[string]map[string][]string // node id -> normalized field -> values
	tags        map[string][]string            // node id -> tag names
	parents     map[string]*types.Node         // parent id -> parent node
	parentTags  map[string][]string            // parent id -> tag names
	knownFields map[string]bool                // nil when find is *
	now         time.Time
}

func (e *Engine) loadContext(ctx context.Context, ids []string, q *Query) (*evalContext, error) {
	ev := &evalContext{
		nodes:      make(map[string]*types.Node, len(ids)),
		fields:     make(map[string]map[string][]string),
		tags:       make(map[string][]string),
		parents:    make(map[string]*types.Node),
		parentTags: make(map[string][]string),
	}
	for start := 0; start < len(ids); start += nodeChunk {
		if err := ctx.Err(); err != nil {
			return nil, sterr.Wrap(sterr.Timeout, err, "query canceled")
		}
		end := start + nodeChunk
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		nodes, err := e.store.GetNodes(ctx, chunk)
		if err != nil {
			return nil, err
		}
		for _, n := range nodes {
			ev.nodes[n.ID] = n
		}
		fv, err := e.store.FieldValuesOfNodes(ctx, chunk)
		if err != nil {
			return nil, err
		}
		for id, byField := range fv {
			ev.fields[id] = byField
		}
		tags, err := e.store.TagsOfNodes(ctx, chunk)
		if err != nil {
			return nil, err
		}
		for id, names := range tags {
			ev.tags[id] = names
		}
	}

	if needsParents(q) {
		var parentIDs []string
		seen := make(map[string]bool)
		for _, n := range ev.nodes {
			if n.ParentID != nil && !seen[*n.ParentID] {
				seen[*n.ParentID] = true
				parentIDs = append(parentIDs, *n.ParentID)
			}
		}
		sort.Strings(parentIDs)
		for start := 0; start < len(parentIDs); start += nodeChunk {
			end := start + nodeChunk
			if end > len(parentIDs) {
				end = len(parentIDs)
			}
			chunk := parentIDs[start:end]
			nodes, err := e.store.GetNodes(ctx, chunk)
			if err != nil {
				return nil, err
			}
			for _, n := range nodes {
				ev.parents[n.ID] = n
			}
			tags, err := e.store.TagsOfNodes(ctx, chunk)
			if err != nil {
				return nil, err
			}
			for id, names := range tags {
				ev.parentTags[id] = names
			}
		}
	}
	return ev, nil
}

func needsParents(q *Query) bool {
	check := func(c *Clause) bool { return strings.HasPrefix(strings.ToLower(c.Field), "parent.") }
	for _, cond := range q.Where {
		switch c := cond.(type) {
		case *Clause:
			if check(c) {
				return true
			}
		case *Group:
			for _, cl := range c.Clauses {
				if check(cl) {
					return true
				}
			}
		}
	}
	return q.OrderBy != nil && strings.HasPrefix(strings.ToLower(q.OrderBy.Field), "parent.")
}

func (e *Engine) matches(ev *evalContext, n *types.Node, where []Cond) bool {
	for _, cond := range where {
		switch c := cond.(type) {
		case *Clause:
			if !e.evalClause(ev, n, c) {
				return false
			}
		case *Group:
			any := false
			for _, cl := range c.Clauses {
				if e.evalClause(ev, n, cl) {
					any = true
					break
				}
			}
			if !any {
				return false
			}
		}
	}
	return true
}

// evalClause evaluates one comparison. An unknown field makes the whole
// clause false, negation included, matching how unknown fields are dropped
// from payloads.
func (e *Engine) evalClause(ev *evalContext, n *types.Node, c *Clause) bool {
	actual, kind, ok := e.resolveField(ev, n, c.Field)
	if !ok {
		debug.Logf("query: field %q unknown, clause is false", c.Field)
		return false
	}
	result := evalCompare(c.Op, actual, kind, c.Value, ev.now)
	if c.Negated {
		return !result
	}
	return result
}

type fieldKind int

const (
	kindText fieldKind = iota
	kindDate           // epoch ms in actual[0]
)

// resolveField returns the values a field name denotes on a node. The third
// return is false when the field is not defined for the query target.
func (e *Engine) resolveField(ev *evalContext, n *types.Node, field string) ([]string, fieldKind, bool) {
	lower := strings.ToLower(field)
	lower = strings.TrimPrefix(lower, "fields.")
	switch lower {
	case "id":
		return []string{n.ID}, kindText, true
	case "name":
		if n.Name == nil {
			return nil, kindText, true
		}
		return []string{*n.Name}, kindText, true
	case "created":
		return []string{strconv.FormatInt(n.Created, 10)}, kindDate, true
	case "updated":
		return []string{strconv.FormatInt(n.Updated, 10)}, kindDate, true
	case "done_at", "doneat", "done":
		if n.DoneAt == 0 {
			return nil, kindDate, true
		}
		return []string{strconv.FormatInt(n.DoneAt, 10)}, kindDate, true
	case "tags", "tag", "supertags":
		return ev.tags[n.ID], kindText, true
	case "parent.name":
		if n.ParentID == nil {
			return nil, kindText, true
		}
		p := ev.parents[*n.ParentID]
		if p == nil || p.Name == nil {
			return nil, kindText, true
		}
		return []string{*p.Name}, kindText, true
	case "parent.tags":
		if n.ParentID == nil {
			return nil, kindText, true
		}
		return ev.parentTags[*n.ParentID], kindText, true
	}

	normalized := types.NormalizeName(lower)
	if ev.knownFields != nil && !ev.knownFields[normalized] {
		return nil, kindText, false
	}
	return ev.fields[n.ID][normalized], kindText, true
}

func evalCompare(op Operator, actual []string, kind fieldKind, v Value, now time.Time) bool {
	switch op {
	case OpExists:
		return len(actual) > 0
	case OpIsEmpty:
		return len(actual) == 0
	}
	if len(actual) == 0 {
		return false
	}

	if kind == kindDate {
		want, ok := ResolveDate(v, now)
		if !ok && v.Kind == ValueNumber {
			want, ok = int64(v.Num), true
		}
		if !ok {
			return false
		}
		got, err := strconv.ParseInt(actual[0], 10, 64)
		if err != nil {
			return false
		}
		return compareOrdered(op, float64(got), float64(want))
	}

	switch op {
	case OpTilde, OpContains:
		needle := strings.ToLower(v.String())
		for _, a := range actual {
			if strings.Contains(strings.ToLower(a), needle) {
				return true
			}
		}
		return false
	case OpEq:
		return anyEqual(actual, v)
	case OpNe:
		return !anyEqual(actual, v)
	case OpGt, OpLt, OpGe, OpLe:
		for _, a := range actual {
			if orderedMatch(op, a, v) {
				return true
			}
		}
		return false
	}
	return false
}

func anyEqual(actual []string, v Value) bool {
	if v.Kind == ValueList {
		for _, e := range v.List {
			if anyEqual(actual, e) {
				return true
			}
		}
		return false
	}
	want := v.String()
	for _, a := range actual {
		if strings.EqualFold(a, want) {
			return true
		}
		if v.Kind == ValueNumber {
			if n, err := strconv.ParseFloat(a, 64); err == nil && n == v.Num {
				return true
			}
		}
	}
	return false
}

// orderedMatch compares numerically when both sides parse as numbers,
// otherwise lexicographically (ISO dates order correctly this way).
func orderedMatch(op Operator, actual string, v Value) bool {
	if an, err := strconv.ParseFloat(actual, 64); err == nil {
		if v.Kind == ValueNumber {
			return compareOrdered(op, an, v.Num)
		}
		if vn, err := strconv.ParseFloat(v.Str, 64); err == nil {
			return compareOrdered(op, an, vn)
		}
	}
	cmp := strings.Compare(actual, v.String())
	switch op {
	case OpGt:
		return cmp > 0
	case OpLt:
		return cmp < 0
	case OpGe:
		return cmp >= 0
	case OpLe:
		return cmp <= 0
	}
	return false
}

func compareOrdered(op Operator, a, b float64) bool {
	switch op {
	case OpGt:
		return a > b
	case OpLt:
		return a < b
	case OpGe:
		return a >= b
	case OpLe:
		return a <= b
	case OpEq:
		return a == b
	}
	return false
}

// sortNodes orders matches by the order-by field, id ascending otherwise.
// Ties always break on id so results are deterministic.
func (e *Engine) sortNodes(ev *evalContext, nodes []*types.Node, order *Order) {
	if order == nil {
		sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
		return
	}
	type keyed struct {
		num    float64
		str    string
		isNum  bool
		hasVal bool
	}
	keys := make(map[string]keyed, len(nodes))
	for _, n := range nodes {
		vals, kind, ok := e.resolveField(ev, n, order.Field)
		k := keyed{}
		if ok && len(vals) > 0 {
			k.hasVal = true
			if kind == kindDate {
				if num, err := strconv.ParseInt(vals[0], 10, 64); err == nil {
					k.num, k.isNum = float64(num), true
				}
			} else if num, err := strconv.ParseFloat(vals[0], 64); err == nil {
				k.num, k.isNum = num, true
			} else {
				k.str = strings.ToLower(vals[0])
			}
		}
		keys[n.ID] = k
	}
	sort.SliceStable(nodes, func(i, j int) bool {
		a, b := keys[nodes[i].ID], keys[nodes[j].ID]
		// Missing values sort last regardless of direction.
		if a.hasVal != b.hasVal {
			return a.hasVal
		}
		var less, eq bool
		switch {
		case !a.hasVal:
			eq = true
		case a.isNum && b.isNum:
			less, eq = a.num < b.num, a.num == b.num
		case a.isNum != b.isNum:
			// Numbers before strings, stable across runs.
			less, eq = a.isNum, false
		default:
			cmp := strings.Compare(a.str, b.str)
			less, eq = cmp < 0, cmp == 0
		}
		if eq {
			return nodes[i].ID < nodes[j].ID
		}
		if order.Desc {
			return !less
		}
		return less
	})
}

func (e *Engine) buildRow(ev *evalContext, n *types.Node, sel []string) *Row {
	row := &Row{
		ID:      n.ID,
		Name:    n.NameOrEmpty(),
		Tags:    ev.tags[n.ID],
		Created: n.Created,
		Updated: n.Updated,
	}
	byField := ev.fields[n.ID]
	if len(byField) == 0 {
		return row
	}
	all := len(sel) == 0 || (len(sel) == 1 && sel[0] == "*")
	if all {
		row.Fields = byField
		return row
	}
	row.Fields = make(map[string][]string)
	for _, f := range sel {
		normalized := types.NormalizeName(strings.TrimPrefix(f, "fields."))
		if vals, ok := byField[normalized]; ok {
			row.Fields[f] = vals
		}
	}
	if len(row.Fields) == 0 {
		row.Fields = nil
	}
	return row
}
