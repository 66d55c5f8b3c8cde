package web

import (
	"context"
	"fmt"
	"time"

	"github.com/goblinsan/ado-report/pkg/engine"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// RefreshTimeout bounds a scheduled refresh.
const RefreshTimeout = 5 * time.Minute

type refresher interface {
	Refresh(ctx context.Context) (*engine.Snapshot, error)
}

// Cron refreshes a session on a five-field cron schedule or a descriptor such as @hourly.
type Cron struct {
	svc refresher
	log zerolog.Logger
	c   *cron.Cron
}

// NewCron schedules svc.Refresh. A nil loc means UTC.
func NewCron(spec string, loc *time.Location, svc refresher, log zerolog.Logger) (*Cron, error) {
	if loc == nil {
		loc = time.UTC
	}
	c := cron.New(cron.WithLocation(loc), cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor)))
	cr := &Cron{svc: svc, log: log, c: c}
	if _, err := c.AddFunc(spec, cr.refresh); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}
	return cr, nil
}

func (cr *Cron) Start() { cr.c.Start() }

// Stop halts the schedule and waits for a running refresh to finish.
func (cr *Cron) Stop() { <-cr.c.Stop().Done() }

func (cr *Cron) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), RefreshTimeout)
	defer cancel()
	cr.log.Info().Msg("cron: refresh")
	if _, err := cr.svc.Refresh(ctx); err != nil {
		cr.log.Error().Err(err).Msg("cron: refresh failed")
	}
}
