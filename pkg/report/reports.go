package report

import (
	"math"
	"sort"
	"time"

	"github.com/goblinsan/ado-report/pkg/engine"
	"github.com/goblinsan/ado-report/pkg/types"
)

// DefaultTopN is the length of every ranking.
const DefaultTopN = 10

// StateDistribution counts items per workflow state, most frequent first.
func StateDistribution(items []engine.EnrichedItem) []Count {
	t := newTally()
	for _, it := range items {
		t.add(it.State())
	}
	return t.sorted(0)
}

// Options tune Build.
type Options struct {
	Visibility Visibility
	// Now anchors age computations. Zero means the current time.
	Now  time.Time
	TopN int
}

// PersonRow is one assignee's open items spread over board columns.
type PersonRow struct {
	Name    string         `json:"name" yaml:"name"`
	Total   int            `json:"total" yaml:"total"`
	Columns map[string]int `json:"columns" yaml:"columns"`
}

// AgedItem is a ranking entry with its age in days.
type AgedItem struct {
	ID    int       `json:"id" yaml:"id"`
	Title string    `json:"title" yaml:"title"`
	Date  time.Time `json:"date" yaml:"date"`
	Days  int       `json:"days" yaml:"days"`
}

// Reports is the overview of the open workload.
type Reports struct {
	TotalOpen     int         `json:"totalOpen" yaml:"totalOpen"`
	TotalResolved int         `json:"totalResolved" yaml:"totalResolved"`
	Assigned      int         `json:"assigned" yaml:"assigned"`
	Unassigned    int         `json:"unassigned" yaml:"unassigned"`
	Coverage      float64     `json:"coverage" yaml:"coverage"`
	Columns       []string    `json:"columns" yaml:"columns"`
	People        []PersonRow `json:"people" yaml:"people"`
	Clients       []Count     `json:"clients" yaml:"clients"`
	Types         []Count     `json:"types" yaml:"types"`
	Oldest        []AgedItem  `json:"oldest" yaml:"oldest"`
	Stale         []AgedItem  `json:"stale" yaml:"stale"`
	TopResolved   []Count     `json:"topResolved" yaml:"topResolved"`
}

// Build computes the overview. Open items are the non-resolved items visible
// under opts.Visibility; resolved items only feed TotalResolved and TopResolved.
func Build(items []engine.EnrichedItem, opts Options) Reports {
	topN := opts.TopN
	if topN <= 0 {
		topN = DefaultTopN
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	var open []types.WorkItem
	resolved := newTally()
	r := Reports{}
	for _, it := range items {
		class := Classify(it.WorkItem)
		if class == ClassResolved {
			r.TotalResolved++
			resolved.add(assigneeName(it.WorkItem))
			continue
		}
		if opts.Visibility.Visible(class) {
			open = append(open, it.WorkItem)
		}
	}
	r.TotalOpen = len(open)

	people := map[string]*PersonRow{}
	var names []string
	columns := map[string]bool{}
	clients, kinds := newTally(), newTally()
	for _, w := range open {
		name := assigneeName(w)
		if name == Unassigned {
			r.Unassigned++
		} else {
			r.Assigned++
		}
		row, ok := people[name]
		if !ok {
			row = &PersonRow{Name: name, Columns: map[string]int{}}
			people[name] = row
			names = append(names, name)
		}
		col := columnName(w)
		row.Total++
		row.Columns[col]++
		if !columns[col] {
			columns[col] = true
			r.Columns = append(r.Columns, col)
		}
		clients.add(clientName(w, NoClient))
		kinds.add(w.TaskCategory())
	}
	if r.TotalOpen > 0 {
		r.Coverage = float64(r.Assigned) / float64(r.TotalOpen) * 100
	}

	SortColumns(r.Columns)
	for _, name := range names {
		r.People = append(r.People, *people[name])
	}
	sort.SliceStable(r.People, func(i, j int) bool {
		a, b := r.People[i], r.People[j]
		if a.Name == Unassigned || b.Name == Unassigned {
			return b.Name == Unassigned && a.Name != Unassigned
		}
		return a.Total > b.Total
	})

	r.Clients = clients.sorted(0)
	r.Types = kinds.sorted(0)
	r.Oldest = rank(open, types.WorkItem.CreatedDate, now, topN)
	r.Stale = rank(open, types.WorkItem.ChangedDate, now, topN)
	r.TopResolved = resolved.sorted(topN)
	return r
}

// rank returns the n items with the earliest date.
func rank(items []types.WorkItem, date func(types.WorkItem) time.Time, now time.Time, n int) []AgedItem {
	sorted := make([]types.WorkItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool { return date(sorted[i]).Before(date(sorted[j])) })
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	out := make([]AgedItem, 0, len(sorted))
	for _, w := range sorted {
		d := date(w)
		out = append(out, AgedItem{ID: w.ID, Title: w.Title(), Date: d, Days: daysBetween(d, now)})
	}
	return out
}

func daysBetween(from, to time.Time) int {
	if from.IsZero() {
		return 0
	}
	return int(math.Ceil(math.Abs(to.Sub(from).Hours()) / 24))
}
