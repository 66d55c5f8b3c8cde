// Package report derives the dashboard views from a snapshot. Every function
// here is pure: the same snapshot and options always give the same result.
package report

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/goblinsan/ado-report/pkg/textnorm"
	"github.com/goblinsan/ado-report/pkg/types"
)

// Fallback labels for missing fields.
const (
	Unassigned     = "Sin Asignar"
	NoColumn       = "Sin Columna"
	NoClient       = "Sin Cliente"
	NoBudgetClient = "Sin Cliente Asignado"
)

// Class is the workflow bucket of a root item.
type Class int

const (
	ClassActive Class = iota
	ClassNew
	ClassResolved
)

func (c Class) String() string {
	switch c {
	case ClassNew:
		return "new"
	case ClassResolved:
		return "resolved"
	default:
		return "active"
	}
}

func (c Class) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Class) UnmarshalText(text []byte) error {
	switch string(text) {
	case "active":
		*c = ClassActive
	case "new":
		*c = ClassNew
	case "resolved":
		*c = ClassResolved
	default:
		return fmt.Errorf("unknown class %q", text)
	}
	return nil
}

var (
	closedStates = []string{"Resolved", "Done", "Closed"}
	newStates    = []string{"New", "Proposed", "To Do"}
)

// Classify buckets an item by state and board column. Resolved wins over new.
func Classify(w types.WorkItem) Class {
	column := textnorm.Fold(w.BoardColumn())
	state := w.State()
	if slices.Contains(closedStates, state) || column == "resuelto" {
		return ClassResolved
	}
	if slices.Contains(newStates, state) || column == "evaluacion" {
		return ClassNew
	}
	return ClassActive
}

// Visibility toggles the optional buckets. Active items are always visible.
type Visibility struct {
	ShowNew      bool `json:"showNew" yaml:"showNew"`
	ShowResolved bool `json:"showResolved" yaml:"showResolved"`
}

// DefaultVisibility shows new items and hides resolved ones.
func DefaultVisibility() Visibility {
	return Visibility{ShowNew: true}
}

func (v Visibility) Visible(c Class) bool {
	switch c {
	case ClassNew:
		return v.ShowNew
	case ClassResolved:
		return v.ShowResolved
	default:
		return true
	}
}

// ColumnOrder is the canonical left to right order of board columns.
var ColumnOrder = []string{
	"Evaluación",
	"Documentación",
	"Implementación",
	"Testin",
	"Testing",
	"Pendiente de liberacion",
	"Aprobación de Cliente",
	"Validación de cierre",
	"Resuelto",
}

func columnRank(column string) int {
	for i, c := range ColumnOrder {
		if strings.EqualFold(c, column) {
			return i
		}
	}
	return -1
}

// SortColumns orders columns by ColumnOrder, case-insensitively, with
// unlisted columns after them in collation order.
func SortColumns(columns []string) {
	sort.SliceStable(columns, func(i, j int) bool {
		ri, rj := columnRank(columns[i]), columnRank(columns[j])
		switch {
		case ri >= 0 && rj >= 0:
			return ri < rj
		case ri >= 0:
			return true
		case rj >= 0:
			return false
		}
		return textnorm.Compare(columns[i], columns[j]) < 0
	})
}

// Count is a labelled tally.
type Count struct {
	Label string `json:"label" yaml:"label"`
	Count int    `json:"count" yaml:"count"`
}

func (c Count) String() string { return fmt.Sprintf("%s: %d", c.Label, c.Count) }

// tally counts labels in first-seen order and sorts by count, highest first.
type tally struct {
	order  []string
	counts map[string]int
}

func newTally() *tally { return &tally{counts: make(map[string]int)} }

func (t *tally) add(label string) {
	if _, ok := t.counts[label]; !ok {
		t.order = append(t.order, label)
	}
	t.counts[label]++
}

func (t *tally) sorted(limit int) []Count {
	out := make([]Count, 0, len(t.order))
	for _, label := range t.order {
		out = append(out, Count{Label: label, Count: t.counts[label]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func assigneeName(w types.WorkItem) string {
	if id, ok := w.AssignedTo(); ok {
		return id.DisplayName
	}
	return Unassigned
}

func columnName(w types.WorkItem) string {
	if c := strings.TrimSpace(w.BoardColumn()); c != "" {
		return c
	}
	return NoColumn
}

func clientName(w types.WorkItem, fallback string) string {
	if c := w.Client(); c != "" {
		return c
	}
	return fallback
}
