package report

import (
	"time"

	"github.com/goblinsan/ado-report/pkg/engine"
	"github.com/goblinsan/ado-report/pkg/types"
)

type itemOpt func(*engine.EnrichedItem)

func withState(s string) itemOpt {
	return func(e *engine.EnrichedItem) { e.Fields[types.FieldState] = s }
}

func withColumn(c string) itemOpt {
	return func(e *engine.EnrichedItem) { e.Fields[types.FieldBoardColumn] = c }
}

func withAssignee(name string) itemOpt {
	return func(e *engine.EnrichedItem) {
		e.Fields[types.FieldAssignedTo] = map[string]any{"displayName": name}
	}
}

func withClient(c string) itemOpt {
	return func(e *engine.EnrichedItem) { e.Fields[types.FieldClient] = c }
}

func withCreated(d string) itemOpt {
	return func(e *engine.EnrichedItem) { e.Fields[types.FieldCreatedDate] = d }
}

func withChanged(d string) itemOpt {
	return func(e *engine.EnrichedItem) { e.Fields[types.FieldChangedDate] = d }
}

func withPriority(p float64) itemOpt {
	return func(e *engine.EnrichedItem) { e.Fields[types.FieldPriority] = p }
}

func withTitle(t string) itemOpt {
	return func(e *engine.EnrichedItem) { e.Fields[types.FieldTitle] = t }
}

func withField(name string, v any) itemOpt {
	return func(e *engine.EnrichedItem) { e.Fields[name] = v }
}

func withEntry(date string, hours float64) itemOpt {
	return func(e *engine.EnrichedItem) {
		d, _ := types.ParseTime(date)
		e.TimeEntries = append(e.TimeEntries, types.TimeEntry{Date: d, Hours: hours})
		e.InvestedHours += hours
	}
}

func enriched(id int, opts ...itemOpt) engine.EnrichedItem {
	e := engine.EnrichedItem{WorkItem: types.WorkItem{ID: id, Fields: map[string]any{
		types.FieldType:  types.TypeProductBacklogItem,
		types.FieldState: "Active",
		types.FieldTitle: "ticket",
	}}}
	for _, o := range opts {
		o(&e)
	}
	return e
}

func feature(id int, title string, monthly, estimate float64) types.WorkItem {
	return types.WorkItem{ID: id, Fields: map[string]any{
		types.FieldType:           types.TypeFeature,
		types.FieldTitle:          title,
		types.FieldHorasMensuales: monthly,
		types.FieldHorasEstimadas: estimate,
	}}
}

var fixedNow = time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)
