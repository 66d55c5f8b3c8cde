package types

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/goblinsan/ado-report/pkg/textnorm"
)

// Field reference names read from WorkItem.Fields.
const (
	FieldTitle       = "System.Title"
	FieldState       = "System.State"
	FieldType        = "System.WorkItemType"
	FieldBoardColumn = "System.BoardColumn"
	FieldAssignedTo  = "System.AssignedTo"
	FieldCreatedDate = "System.CreatedDate"
	FieldChangedDate = "System.ChangedDate"
	FieldParent      = "System.Parent"
	FieldPriority    = "Microsoft.VSTS.Common.Priority"
	FieldTargetDate  = "Microsoft.VSTS.Scheduling.TargetDate"

	FieldClient       = "Custom.Cliente"
	FieldTaskCategory = "Custom.TipoTarea"
	FieldLineDate     = "Custom.Fechalinea"

	FieldHorasLinea      = "Custom.HorasLinea"
	FieldHoras           = "Custom.Horas"
	FieldHorasEjecutadas = "Custom.HorasEjecutadas"
	FieldCompletedWork   = "Microsoft.VSTS.Scheduling.CompletedWork"
	FieldHorasEstimadas  = "Custom.HorasEstimadas"
	FieldHorasMensuales  = "Custom.HorasMensuales"
)

// lineHoursChain is the priority order for the hours of a line item.
var lineHoursChain = []string{FieldHorasLinea, FieldHoras, FieldHorasEjecutadas, FieldCompletedWork}

// budgetChain is the priority order for the budget of a budget source.
var budgetChain = []string{FieldHorasMensuales, FieldHorasEstimadas}

func (w WorkItem) Title() string       { return w.String(FieldTitle) }
func (w WorkItem) State() string       { return w.String(FieldState) }
func (w WorkItem) Type() string        { return w.String(FieldType) }
func (w WorkItem) BoardColumn() string { return w.String(FieldBoardColumn) }
func (w WorkItem) Client() string      { return w.String(FieldClient) }

// TaskCategory returns Custom.TipoTarea, or the work item type when unset.
func (w WorkItem) TaskCategory() string {
	if c := w.String(FieldTaskCategory); c != "" {
		return c
	}
	return w.Type()
}

// String returns a field as text; missing fields are "".
func (w WorkItem) String(name string) string {
	switch v := w.Fields[name].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// Number returns a numeric field. Numeric strings are accepted; missing,
// boolean and non-numeric values report ok=false.
func (w WorkItem) Number(name string) (float64, bool) {
	return toNumber(w.Fields[name])
}

// Time returns a date field parsed as a timestamp.
func (w WorkItem) Time(name string) (time.Time, bool) {
	s, ok := w.Fields[name].(string)
	if !ok {
		return time.Time{}, false
	}
	return ParseTime(s)
}

func (w WorkItem) CreatedDate() time.Time {
	t, _ := w.Time(FieldCreatedDate)
	return t
}

func (w WorkItem) ChangedDate() time.Time {
	t, _ := w.Time(FieldChangedDate)
	return t
}

// Priority returns Microsoft.VSTS.Common.Priority when set to a non-zero value.
func (w WorkItem) Priority() (int, bool) {
	p, ok := w.Number(FieldPriority)
	if !ok || p == 0 {
		return 0, false
	}
	return int(p), true
}

// AssignedTo returns the assignee, if any.
func (w WorkItem) AssignedTo() (Identity, bool) {
	switch v := w.Fields[FieldAssignedTo].(type) {
	case map[string]any:
		id := Identity{}
		id.DisplayName, _ = v["displayName"].(string)
		id.UniqueName, _ = v["uniqueName"].(string)
		id.ImageURL, _ = v["imageUrl"].(string)
		if id.DisplayName == "" {
			return Identity{}, false
		}
		return id, true
	case Identity:
		return v, v.DisplayName != ""
	case string:
		if strings.TrimSpace(v) == "" {
			return Identity{}, false
		}
		return Identity{DisplayName: v}, true
	}
	return Identity{}, false
}

// IsLine reports whether the item's type denotes a logged time entry: its
// folded type name contains "linea".
func (w WorkItem) IsLine() bool {
	return strings.Contains(textnorm.Fold(w.Type()), "linea")
}

// LineHours resolves the hours of a line item: the first non-zero value of
// Custom.HorasLinea, Custom.Horas, Custom.HorasEjecutadas and
// Microsoft.VSTS.Scheduling.CompletedWork, in that order, else 0.
func (w WorkItem) LineHours() float64 {
	return w.firstNonZero(lineHoursChain)
}

// Budget resolves the hour budget of a budget source: Custom.HorasMensuales,
// then Custom.HorasEstimadas, else 0.
func (w WorkItem) Budget() float64 {
	return w.firstNonZero(budgetChain)
}

// EstimatedHours returns Custom.HorasEstimadas, or 0.
func (w WorkItem) EstimatedHours() float64 {
	v, _ := w.Number(FieldHorasEstimadas)
	return v
}

// LineDate returns the date a line item's hours are booked on:
// Custom.Fechalinea, falling back to the created date.
func (w WorkItem) LineDate() (time.Time, bool) {
	if t, ok := w.Time(FieldLineDate); ok {
		return t, true
	}
	return w.Time(FieldCreatedDate)
}

// ChildIDs returns the targets of the item's hierarchy-forward links in link order.
func (w WorkItem) ChildIDs() []int {
	return w.linked(RelHierarchyForward)
}

// RelatedIDs returns the targets of the item's related links in link order.
func (w WorkItem) RelatedIDs() []int {
	return w.linked(RelRelated)
}

func (w WorkItem) linked(rel string) []int {
	var ids []int
	for _, r := range w.Relations {
		if r.Rel != rel {
			continue
		}
		if id := r.TargetID(); id > 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

func (w WorkItem) firstNonZero(names []string) float64 {
	for _, name := range names {
		if v, ok := w.Number(name); ok && v != 0 {
			return v
		}
	}
	return 0
}

func toNumber(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTime parses the timestamp formats the tracking API emits.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
