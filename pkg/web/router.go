// Package web serves the reports of a session as a JSON API.
package web

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goblinsan/ado-report/pkg/engine"
	"github.com/goblinsan/ado-report/pkg/types"
	"github.com/rs/zerolog"
)

// Service is the part of engine.Session the API needs.
type Service interface {
	Snapshot() *engine.Snapshot
	Refresh(ctx context.Context) (*engine.Snapshot, error)
	Comments(ctx context.Context, id int) ([]types.Comment, error)
	RelatedBugs(ctx context.Context, id int) ([]types.WorkItem, error)
}

var _ Service = (*engine.Session)(nil)

// Options configure the router.
type Options struct {
	Logger zerolog.Logger
	// Location decides which month a time entry belongs to. Nil means UTC.
	Location *time.Location
	Debug    bool
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(svc Service, opts Options) *gin.Engine {
	if !opts.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	log := opts.Logger
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(func(c *gin.Context) {
		c.Next()
		log.Info().Str("m", c.Request.Method).Str("p", c.FullPath()).Int("s", c.Writer.Status()).Msg("http")
	})

	h := &handlers{svc: svc, log: log, loc: opts.Location, now: time.Now}
	if h.loc == nil {
		h.loc = time.UTC
	}

	r.GET("/healthz", h.healthz)
	r.POST("/refresh", h.refresh)
	r.GET("/snapshot", h.snapshot)

	reports := r.Group("/reports")
	reports.GET("/states", h.states)
	reports.GET("/overview", h.overview)
	reports.GET("/budget", h.budget)
	reports.GET("/hours", h.hours)

	r.GET("/tickets", h.tickets)
	r.GET("/items/:id/comments", h.comments)
	r.GET("/items/:id/bugs", h.bugs)
	return r
}
