package web

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goblinsan/ado-report/pkg/azure"
	"github.com/goblinsan/ado-report/pkg/engine"
	"github.com/goblinsan/ado-report/pkg/report"
	"github.com/rs/zerolog"
)

var errNoSnapshot = errors.New("no snapshot yet, POST /refresh first")

type handlers struct {
	svc Service
	log zerolog.Logger
	loc *time.Location
	now func() time.Time
}

// status maps an error to the HTTP status it is reported with.
func status(err error) int {
	switch {
	case errors.Is(err, errNoSnapshot):
		return http.StatusConflict
	case errors.Is(err, engine.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, azure.ErrAuthInvalid):
		return http.StatusUnauthorized
	default:
		return http.StatusBadGateway
	}
}

func (h *handlers) fail(c *gin.Context, err error) {
	code := status(err)
	if code >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("p", c.FullPath()).Msg("request failed")
	}
	c.JSON(code, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, format string, args ...any) {
	c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf(format, args...)})
}

// current returns the snapshot or answers 409.
func (h *handlers) current(c *gin.Context) (*engine.Snapshot, bool) {
	snap := h.svc.Snapshot()
	if snap == nil {
		h.fail(c, errNoSnapshot)
		return nil, false
	}
	return snap, true
}

func (h *handlers) healthz(c *gin.Context) {
	body := gin.H{"ok": true}
	if snap := h.svc.Snapshot(); snap != nil {
		body["fetchedAt"] = snap.FetchedAt
	}
	c.JSON(http.StatusOK, body)
}

func (h *handlers) refresh(c *gin.Context) {
	snap, err := h.svc.Refresh(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fetchedAt": snap.FetchedAt, "stats": snap.Stats})
}

func (h *handlers) snapshot(c *gin.Context) {
	if snap, ok := h.current(c); ok {
		c.JSON(http.StatusOK, snap)
	}
}

func (h *handlers) states(c *gin.Context) {
	if snap, ok := h.current(c); ok {
		c.JSON(http.StatusOK, report.StateDistribution(snap.Roots))
	}
}

// visibility reads showNew/showResolved, defaulting to report.DefaultVisibility.
func visibility(c *gin.Context) report.Visibility {
	v := report.DefaultVisibility()
	if b, err := strconv.ParseBool(c.Query("showNew")); err == nil {
		v.ShowNew = b
	}
	if b, err := strconv.ParseBool(c.Query("showResolved")); err == nil {
		v.ShowResolved = b
	}
	return v
}

func (h *handlers) overview(c *gin.Context) {
	snap, ok := h.current(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, report.Build(snap.Roots, report.Options{Visibility: visibility(c), Now: h.now()}))
}

func (h *handlers) budget(c *gin.Context) {
	snap, ok := h.current(c)
	if !ok {
		return
	}
	now := h.now().In(h.loc)
	period := report.Period{Year: now.Year(), Month: now.Month(), Location: h.loc}
	if s := c.Query("year"); s != "" {
		year, err := strconv.Atoi(s)
		if err != nil {
			badRequest(c, "invalid year %q", s)
			return
		}
		period.Year = year
	}
	if s := c.Query("month"); s != "" {
		month, err := strconv.Atoi(s)
		if err != nil || month < 1 || month > 12 {
			badRequest(c, "invalid month %q", s)
			return
		}
		period.Month = time.Month(month)
	}
	overOnly, _ := strconv.ParseBool(c.Query("overOnly"))
	rep := report.Budget(snap.Roots, snap.Budgets, period).Filter(c.Query("search"), overOnly)
	c.JSON(http.StatusOK, rep)
}

func (h *handlers) hours(c *gin.Context) {
	snap, ok := h.current(c)
	if !ok {
		return
	}
	var q report.HoursQuery
	if s := c.Query("ids"); s != "" {
		for _, part := range strings.Split(s, ",") {
			id, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				badRequest(c, "invalid id %q", part)
				return
			}
			q.IDs = append(q.IDs, id)
		}
	}
	from, to, err := report.ParseDayRange(c.Query("from"), c.Query("to"), h.loc)
	if err != nil {
		badRequest(c, "%v", err)
		return
	}
	q.From, q.To = from, to
	c.JSON(http.StatusOK, report.Hours(snap.Roots, q))
}

func (h *handlers) tickets(c *gin.Context) {
	snap, ok := h.current(c)
	if !ok {
		return
	}
	q := report.TicketQuery{
		Text:       c.Query("q"),
		Client:     c.Query("client"),
		Assignee:   c.Query("assignee"),
		Column:     c.Query("column"),
		Visibility: visibility(c),
		Sort:       report.SortBy(c.DefaultQuery("sort", string(report.SortUpdated))),
	}
	q.Page, _ = strconv.Atoi(c.Query("page"))
	q.PerPage, _ = strconv.Atoi(c.Query("perPage"))
	c.JSON(http.StatusOK, report.Tickets(snap.Roots, q))
}

func itemID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		badRequest(c, "invalid work item id %q", c.Param("id"))
		return 0, false
	}
	return id, true
}

func (h *handlers) comments(c *gin.Context) {
	id, ok := itemID(c)
	if !ok {
		return
	}
	comments, err := h.svc.Comments(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, comments)
}

func (h *handlers) bugs(c *gin.Context) {
	id, ok := itemID(c)
	if !ok {
		return
	}
	bugs, err := h.svc.RelatedBugs(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, bugs)
}
