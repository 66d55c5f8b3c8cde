package report

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goblinsan/ado-report/pkg/engine"
	"github.com/goblinsan/ado-report/pkg/textnorm"
	"github.com/goblinsan/ado-report/pkg/types"
)

// All disables a ticket list filter.
const All = "all"

// DefaultPerPage is the ticket list page size.
const DefaultPerPage = 10

// missingPriority sorts items without a priority after every real one.
const missingPriority = 99

// SortBy selects the ticket list order.
type SortBy string

const (
	SortUpdated  SortBy = "updated"
	SortPriority SortBy = "priority"
	SortID       SortBy = "id"
	SortTitle    SortBy = "title"
)

// TicketQuery filters, orders and pages the ticket list. Empty filters and
// All match everything.
type TicketQuery struct {
	Text       string
	Client     string
	Assignee   string
	Column     string
	Visibility Visibility
	Sort       SortBy
	Page       int
	PerPage    int
}

// Ticket is a row of the ticket list.
type Ticket struct {
	ID            int       `json:"id" yaml:"id"`
	Title         string    `json:"title" yaml:"title"`
	State         string    `json:"state" yaml:"state"`
	Column        string    `json:"column" yaml:"column"`
	Assignee      string    `json:"assignee" yaml:"assignee"`
	Client        string    `json:"client,omitempty" yaml:"client,omitempty"`
	Priority      int       `json:"priority,omitempty" yaml:"priority,omitempty"`
	Class         Class     `json:"class" yaml:"class"`
	ChangedDate   time.Time `json:"changedDate" yaml:"changedDate"`
	InvestedHours float64   `json:"investedHours" yaml:"investedHours"`
}

// TicketPage is one page of the filtered list plus the filter choices
// available over the whole input.
type TicketPage struct {
	Tickets    []Ticket `json:"tickets" yaml:"tickets"`
	Total      int      `json:"total" yaml:"total"`
	Page       int      `json:"page" yaml:"page"`
	PerPage    int      `json:"perPage" yaml:"perPage"`
	TotalPages int      `json:"totalPages" yaml:"totalPages"`
	Clients    []string `json:"clients" yaml:"clients"`
	Assignees  []string `json:"assignees" yaml:"assignees"`
	Columns    []string `json:"columns" yaml:"columns"`
}

func matches(filter, value string) bool {
	return filter == "" || filter == All || filter == value
}

// Tickets filters, sorts and pages items. A page past the end is clamped to the last page.
func Tickets(items []engine.EnrichedItem, q TicketQuery) TicketPage {
	page := TicketPage{
		Clients:   clientOptions(items),
		Assignees: assigneeOptions(items),
		Columns:   columnOptions(items),
	}

	text := strings.ToLower(q.Text)
	var rows []Ticket
	for _, it := range items {
		w := it.WorkItem
		class := Classify(w)
		if !q.Visibility.Visible(class) {
			continue
		}
		if text != "" && !strings.Contains(strings.ToLower(w.Title()), text) && !strings.Contains(strconv.Itoa(w.ID), q.Text) {
			continue
		}
		assignee, column := assigneeName(w), columnName(w)
		if !matches(q.Client, w.Client()) || !matches(q.Assignee, assignee) || !matches(q.Column, column) {
			continue
		}
		priority, _ := w.Priority()
		rows = append(rows, Ticket{
			ID:            w.ID,
			Title:         w.Title(),
			State:         w.State(),
			Column:        column,
			Assignee:      assignee,
			Client:        w.Client(),
			Priority:      priority,
			Class:         class,
			ChangedDate:   w.ChangedDate(),
			InvestedHours: it.InvestedHours,
		})
	}
	sortTickets(rows, q.Sort)

	perPage := q.PerPage
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	page.Total = len(rows)
	page.PerPage = perPage
	page.TotalPages = (len(rows) + perPage - 1) / perPage
	page.Page = max(1, min(q.Page, page.TotalPages))
	start := (page.Page - 1) * perPage
	if start < len(rows) {
		page.Tickets = rows[start:min(start+perPage, len(rows))]
	}
	return page
}

func sortTickets(rows []Ticket, by SortBy) {
	var less func(a, b Ticket) bool
	switch by {
	case SortID:
		less = func(a, b Ticket) bool { return a.ID > b.ID }
	case SortTitle:
		less = func(a, b Ticket) bool { return textnorm.Compare(a.Title, b.Title) < 0 }
	case SortPriority:
		prio := func(t Ticket) int {
			if t.Priority == 0 {
				return missingPriority
			}
			return t.Priority
		}
		less = func(a, b Ticket) bool { return prio(a) < prio(b) }
	default:
		less = func(a, b Ticket) bool { return a.ChangedDate.After(b.ChangedDate) }
	}
	sort.SliceStable(rows, func(i, j int) bool { return less(rows[i], rows[j]) })
}

func clientOptions(items []engine.EnrichedItem) []string {
	return uniqueSorted(items, func(w types.WorkItem) string { return w.Client() })
}

func assigneeOptions(items []engine.EnrichedItem) []string {
	return uniqueSorted(items, assigneeName)
}

func columnOptions(items []engine.EnrichedItem) []string {
	cols := unique(items, columnName)
	SortColumns(cols)
	return cols
}

func unique(items []engine.EnrichedItem, key func(types.WorkItem) string) []string {
	seen := map[string]bool{}
	var out []string
	for _, it := range items {
		k := key(it.WorkItem)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

func uniqueSorted(items []engine.EnrichedItem, key func(types.WorkItem) string) []string {
	out := unique(items, key)
	sort.Strings(out)
	return out
}
