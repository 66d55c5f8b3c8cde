package report

import (
	"sort"
	"strings"
	"time"

	"github.com/goblinsan/ado-report/pkg/engine"
	"github.com/goblinsan/ado-report/pkg/textnorm"
	"github.com/goblinsan/ado-report/pkg/types"
)

// WarningPercent is the consumption above which a budget line warns.
const WarningPercent = 80

// Period is a calendar month in a time zone.
type Period struct {
	Year     int            `json:"year" yaml:"year"`
	Month    time.Month     `json:"month" yaml:"month"`
	Location *time.Location `json:"-" yaml:"-"`
}

// Contains reports whether t falls inside the month. A nil Location means UTC.
func (p Period) Contains(t time.Time) bool {
	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	return t.Year() == p.Year && t.Month() == p.Month
}

type BudgetStatus string

const (
	StatusOver       BudgetStatus = "over"
	StatusWarning    BudgetStatus = "warning"
	StatusOK         BudgetStatus = "ok"
	StatusUnbudgeted BudgetStatus = "unbudgeted"
)

// BudgetLine is one client's consumption against its budget in a period.
type BudgetLine struct {
	Client      string       `json:"client" yaml:"client"`
	ActualHours float64      `json:"actualHours" yaml:"actualHours"`
	BudgetHours float64      `json:"budgetHours" yaml:"budgetHours"`
	FeatureID   int          `json:"featureId,omitempty" yaml:"featureId,omitempty"`
	TicketCount int          `json:"ticketCount" yaml:"ticketCount"`
	Over        bool         `json:"over" yaml:"over"`
	PercentUsed float64      `json:"percentUsed" yaml:"percentUsed"`
	Status      BudgetStatus `json:"status" yaml:"status"`
}

// Excess is the number of hours consumed beyond the budget.
func (l BudgetLine) Excess() float64 {
	if !l.Over {
		return 0
	}
	return l.ActualHours - l.BudgetHours
}

func (l *BudgetLine) finish() {
	l.Over = l.BudgetHours > 0 && l.ActualHours > l.BudgetHours
	if l.BudgetHours > 0 {
		l.PercentUsed = l.ActualHours / l.BudgetHours * 100
	}
	switch {
	case l.Over:
		l.Status = StatusOver
	case l.PercentUsed > WarningPercent:
		l.Status = StatusWarning
	case l.BudgetHours == 0:
		l.Status = StatusUnbudgeted
	default:
		l.Status = StatusOK
	}
}

// BudgetReport is budget against actual for every client in a period.
type BudgetReport struct {
	Period      Period       `json:"period" yaml:"period"`
	Lines       []BudgetLine `json:"lines" yaml:"lines"`
	TotalActual float64      `json:"totalActual" yaml:"totalActual"`
}

// Budget sums the ledger entries dated inside the period per client and
// matches each client to the budget source whose trimmed, case-folded title
// equals the client name. Budget sources with no consumption in the period
// are listed only when their budget is positive. Over-budget lines come
// first, then lines by consumption, highest first.
func Budget(items []engine.EnrichedItem, budgets []types.WorkItem, period Period) BudgetReport {
	type usage struct {
		hours   float64
		tickets map[int]bool
	}
	var clients []string
	used := map[string]*usage{}
	for _, it := range items {
		name := clientName(it.WorkItem, NoBudgetClient)
		for _, e := range it.TimeEntries {
			if !period.Contains(e.Date) {
				continue
			}
			u, ok := used[name]
			if !ok {
				u = &usage{tickets: map[int]bool{}}
				used[name] = u
				clients = append(clients, name)
			}
			u.hours += e.Hours
			u.tickets[it.ID] = true
		}
	}

	sources := map[string]types.WorkItem{}
	var sourceKeys []string
	for _, b := range budgets {
		key := textnorm.Key(b.Title())
		if _, ok := sources[key]; ok {
			continue
		}
		sources[key] = b
		sourceKeys = append(sourceKeys, key)
	}

	report := BudgetReport{Period: period}
	consumed := map[string]bool{}
	for _, name := range clients {
		key := textnorm.Key(name)
		consumed[key] = true
		line := BudgetLine{Client: name, ActualHours: used[name].hours, TicketCount: len(used[name].tickets)}
		if src, ok := sources[key]; ok {
			line.BudgetHours = src.Budget()
			line.FeatureID = src.ID
		}
		report.Lines = append(report.Lines, line)
	}
	for _, key := range sourceKeys {
		if consumed[key] {
			continue
		}
		src := sources[key]
		if budget := src.Budget(); budget > 0 {
			report.Lines = append(report.Lines, BudgetLine{
				Client:      strings.TrimSpace(src.Title()),
				BudgetHours: budget,
				FeatureID:   src.ID,
			})
		}
	}

	for i := range report.Lines {
		report.Lines[i].finish()
		report.TotalActual += report.Lines[i].ActualHours
	}
	sort.SliceStable(report.Lines, func(i, j int) bool {
		a, b := report.Lines[i], report.Lines[j]
		if a.Over != b.Over {
			return a.Over
		}
		return a.ActualHours > b.ActualHours
	})
	return report
}

// Filter keeps the lines whose client contains search, case-insensitively,
// and, with overOnly, only over-budget lines. TotalActual is recomputed.
func (r BudgetReport) Filter(search string, overOnly bool) BudgetReport {
	out := BudgetReport{Period: r.Period}
	needle := strings.ToLower(search)
	for _, l := range r.Lines {
		if overOnly && !l.Over {
			continue
		}
		if !strings.Contains(strings.ToLower(l.Client), needle) {
			continue
		}
		out.Lines = append(out.Lines, l)
		out.TotalActual += l.ActualHours
	}
	return out
}
