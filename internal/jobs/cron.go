package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// CronRunner drives the recurring background full-sync schedule: the
// same REST pulls the load endpoints trigger on demand, re-run
// periodically so the mirror converges even when webhooks are lost.
type CronRunner struct {
	c *cron.Cron
}

// NewCronRunner builds a runner. spec is a standard 5-field cron
// expression; an empty spec means the recurring schedule is disabled
// and NewCronRunner returns (nil, nil).
func NewCronRunner(spec string, job Job) (*CronRunner, error) {
	if spec == "" {
		return nil, nil
	}
	c := cron.New()
	name, _ := job.Describe()
	_, err := c.AddFunc(spec, func() {
		if err := job.Run(context.Background()); err != nil {
			slog.Error("scheduled job failed", "job", name, "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("parsing cron schedule %q: %w", spec, err)
	}
	return &CronRunner{c: c}, nil
}

func (r *CronRunner) Start() { r.c.Start() }
func (r *CronRunner) Stop()  { r.c.Stop() }
