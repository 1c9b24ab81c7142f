package query

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tanatools/supertag/internal/sterr"
	"github.com/tanatools/supertag/internal/types"
)

// Period is a time-bucket granularity for date grouping.
type Period string

const (
	PeriodDay     Period = "day"
	PeriodWeek    Period = "week"
	PeriodMonth   Period = "month"
	PeriodQuarter Period = "quarter"
	PeriodYear    Period = "year"
)

// AggregateRequest extends a query with grouping. GroupBy takes one or two
// field names; when Period is set the first group key becomes a time bucket
// over DateField (created by default).
type AggregateRequest struct {
	Query       *Query
	GroupBy     []string
	Period      Period
	DateField   string
	ShowPercent bool
	Top         int
}

// AggregateGroup is one bucket; Sub holds second-level groups when a second
// group-by field was given.
type AggregateGroup struct {
	Key     string            `json:"key"`
	Count   int               `json:"count"`
	Percent float64           `json:"percent,omitempty"`
	Sub     []*AggregateGroup `json:"sub,omitempty"`
}

// AggregateResult is the grouped view over a filtered query.
type AggregateResult struct {
	Groups   []*AggregateGroup `json:"groups"`
	Total    int               `json:"total"`
	Warnings []string          `json:"warnings,omitempty"`
}

// Aggregate runs the request's query without paging and groups the matches.
func (e *Engine) Aggregate(ctx context.Context, req *AggregateRequest) (*AggregateResult, error) {
	if req.Query == nil {
		return nil, sterr.New(sterr.MissingRequired, "aggregate needs a query")
	}
	if len(req.GroupBy) == 0 && req.Period == "" {
		return nil, sterr.New(sterr.MissingRequired, "aggregate needs --group-by or --period")
	}
	if len(req.GroupBy) > 2 {
		return nil, sterr.New(sterr.InvalidParameter, "at most two group-by levels are supported")
	}

	// Aggregation sees every match, not a page.
	q := *req.Query
	q.Limit = MaxLimit
	q.Offset = 0

	res := &AggregateResult{Groups: []*AggregateGroup{}}
	inner := &Result{}
	candidates, knownFields, err := e.candidates(ctx, &q, inner)
	if err != nil {
		return nil, err
	}
	res.Warnings = append(res.Warnings, inner.Warnings...)
	ev, err := e.loadContext(ctx, candidates, &q)
	if err != nil {
		return nil, err
	}
	ev.knownFields = knownFields
	ev.now = e.now()

	primary, secondary := req.groupFields()
	groups := make(map[string]*AggregateGroup)
	subGroups := make(map[string]map[string]*AggregateGroup)
	var order []string

	for i, id := range candidates {
		if i%nodeChunk == 0 {
			if err := ctx.Err(); err != nil {
				return nil, sterr.Wrap(sterr.Timeout, err, "aggregate canceled")
			}
		}
		n := ev.nodes[id]
		if n == nil || !e.matches(ev, n, q.Where) {
			continue
		}
		res.Total++

		for _, key := range e.groupKeys(ev, n, primary, req.Period) {
			g := groups[key]
			if g == nil {
				g = &AggregateGroup{Key: key}
				groups[key] = g
				order = append(order, key)
			}
			g.Count++
			if secondary == "" {
				continue
			}
			subs := subGroups[key]
			if subs == nil {
				subs = make(map[string]*AggregateGroup)
				subGroups[key] = subs
			}
			for _, subKey := range e.groupKeys(ev, n, secondary, "") {
				sg := subs[subKey]
				if sg == nil {
					sg = &AggregateGroup{Key: subKey}
					subs[subKey] = sg
				}
				sg.Count++
			}
		}
	}

	for _, key := range order {
		g := groups[key]
		if req.ShowPercent && res.Total > 0 {
			g.Percent = 100 * float64(g.Count) / float64(res.Total)
		}
		if subs := subGroups[key]; len(subs) > 0 {
			for _, sg := range subs {
				g.Sub = append(g.Sub, sg)
			}
			sortGroups(g.Sub)
		}
		res.Groups = append(res.Groups, g)
	}
	sortGroups(res.Groups)

	if req.Top > 0 && len(res.Groups) > req.Top {
		dropped := len(res.Groups) - req.Top
		res.Groups = res.Groups[:req.Top]
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("showing top %d groups, %d truncated", req.Top, dropped))
	}
	return res, nil
}

func (req *AggregateRequest) groupFields() (primary, secondary string) {
	fields := req.GroupBy
	if req.Period != "" {
		df := req.DateField
		if df == "" {
			df = "created"
		}
		primary = df
		if len(fields) > 0 {
			secondary = fields[0]
		}
		return primary, secondary
	}
	primary = fields[0]
	if len(fields) > 1 {
		secondary = fields[1]
	}
	return primary, secondary
}

// groupKeys returns the bucket keys a node contributes to for one group
// field. Multi-valued fields contribute one key per value; nodes with no
// value land in "(none)".
func (e *Engine) groupKeys(ev *evalContext, n *types.Node, field string, period Period) []string {
	vals, kind, ok := e.resolveField(ev, n, field)
	if !ok || len(vals) == 0 {
		return []string{"(none)"}
	}
	if period != "" || kind == kindDate {
		ms, err := strconv.ParseInt(vals[0], 10, 64)
		if err != nil {
			return []string{"(none)"}
		}
		if period == "" {
			period = PeriodDay
		}
		return []string{bucket(time.UnixMilli(ms).UTC(), period)}
	}
	out := make([]string, 0, len(vals))
	seen := make(map[string]bool)
	for _, v := range vals {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	if len(out) == 0 {
		return []string{"(none)"}
	}
	return out
}

func bucket(t time.Time, p Period) string {
	switch p {
	case PeriodWeek:
		y, w := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", y, w)
	case PeriodMonth:
		return t.Format("2006-01")
	case PeriodQuarter:
		return fmt.Sprintf("%04d-Q%d", t.Year(), (int(t.Month())-1)/3+1)
	case PeriodYear:
		return t.Format("2006")
	default:
		return t.Format("2006-01-02")
	}
}

// sortGroups orders by count descending, key ascending on ties.
func sortGroups(gs []*AggregateGroup) {
	sort.SliceStable(gs, func(i, j int) bool {
		if gs[i].Count != gs[j].Count {
			return gs[i].Count > gs[j].Count
		}
		return gs[i].Key < gs[j].Key
	})
}
