package engine

import (
	"github.com/goblinsan/ado-report/pkg/types"
	"github.com/rs/zerolog"
)

// RollUpResult is the time logged under one root.
type RollUpResult struct {
	TotalHours  float64           `json:"totalHours"`
	TimeEntries []types.TimeEntry `json:"timeEntries"`
}

// RollUp walks the descendants of rootID depth first and sums the hours of
// every line item found at any depth. Each line with positive hours and a
// resolvable date adds one ledger entry. Children missing from the graph are
// skipped. An item reached again while it is still on the current path is a
// cycle: it contributes nothing and is logged. Items reachable through
// several paths count once per path.
func RollUp(rootID int, g *Graph, log zerolog.Logger) RollUpResult {
	res := RollUpResult{}
	onPath := map[int]bool{rootID: true}

	var walk func(id int)
	walk = func(id int) {
		for _, childID := range g.Children[id] {
			child, ok := g.Items[childID]
			if !ok {
				continue
			}
			if onPath[childID] {
				log.Warn().Int("id", childID).Int("parent", id).Int("root", rootID).Msg("hierarchy cycle, ignoring link")
				continue
			}
			if child.IsLine() {
				hours := child.LineHours()
				res.TotalHours += hours
				if hours > 0 {
					if date, ok := child.LineDate(); ok {
						res.TimeEntries = append(res.TimeEntries, types.TimeEntry{Date: date, Hours: hours})
					}
				}
			}
			onPath[childID] = true
			walk(childID)
			delete(onPath, childID)
		}
	}
	walk(rootID)
	return res
}
