package workspace

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// BatchOutcome is one workspace's result in a fan-out.
type BatchOutcome struct {
	Alias string      `json:"alias"`
	Err   error       `json:"-"`
	Error string      `json:"error,omitempty"`
	Value interface{} `json:"value,omitempty"`
}

// BatchReport aggregates a fan-out run. Failures never abort the batch.
type BatchReport struct {
	Outcomes  []BatchOutcome `json:"outcomes"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
}

// batchParallelism bounds concurrent workspace operations; each holds an
// open store.
const batchParallelism = 4

// RunBatch opens each selected workspace and applies fn, collecting
// per-workspace outcomes. An empty aliases selector means every enabled
// workspace.
func RunBatch(ctx context.Context, reg *Registry, aliases []string, fn func(ctx context.Context, env *Env) (interface{}, error)) (*BatchReport, error) {
	targets := reg.Enabled()
	if len(aliases) > 0 {
		targets = targets[:0]
		for _, alias := range aliases {
			ws, err := reg.Get(alias)
			if err != nil {
				return nil, err
			}
			targets = append(targets, ws)
		}
	}

	report := &BatchReport{}
	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(batchParallelism)

	for _, ws := range targets {
		ws := ws
		g.Go(func() error {
			outcome := BatchOutcome{Alias: ws.Alias}
			env, err := Open(ws)
			if err == nil {
				outcome.Value, err = fn(ctx, env)
				env.Close()
			}
			if err != nil {
				outcome.Err = err
				outcome.Error = err.Error()
			}
			mu.Lock()
			report.Outcomes = append(report.Outcomes, outcome)
			mu.Unlock()
			// Failures are collected, not propagated, so the rest of the
			// batch keeps running.
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(report.Outcomes, func(i, j int) bool {
		return report.Outcomes[i].Alias < report.Outcomes[j].Alias
	})
	for _, o := range report.Outcomes {
		if o.Err != nil {
			report.Failed++
		} else {
			report.Succeeded++
		}
	}
	return report, nil
}
