// Package jobs is the scheduler bridge: the small contract between the
// scanner and a task queue. Processors
// are synchronous and pure in the database sense; only the Scanner, the
// webhook intake, the HTTP load-endpoint handlers and the cmd wiring
// reach into this package.
package jobs

import "context"

// Job is the unit of schedulable work: Describe names the job for
// logging/status endpoints, Run executes it.
type Job interface {
	Describe() (name string, args map[string]any)
	Run(ctx context.Context) error
}

// Func adapts a plain function into a Job for ad-hoc enqueues (page
// workers, retry attempts) that don't warrant a dedicated named type.
type Func struct {
	Name string
	Args map[string]any
	Fn   func(ctx context.Context) error
}

func (f Func) Describe() (string, map[string]any) { return f.Name, f.Args }

func (f Func) Run(ctx context.Context) error { return f.Fn(ctx) }
