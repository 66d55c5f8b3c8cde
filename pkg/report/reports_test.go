package report

import (
	"testing"

	"github.com/goblinsan/ado-report/pkg/engine"
	"github.com/goblinsan/ado-report/pkg/types"
	"github.com/google/go-cmp/cmp"
)

func sampleItems() []engine.EnrichedItem {
	return []engine.EnrichedItem{
		enriched(1, withAssignee("Ana"), withColumn("Implementación"), withClient("Acme"), withCreated("2024-01-10T00:00:00Z"), withChanged("2024-06-01T00:00:00Z")),
		enriched(2, withAssignee("Ana"), withColumn("Documentación"), withClient("Acme"), withCreated("2024-03-01T00:00:00Z"), withChanged("2024-05-01T00:00:00Z")),
		enriched(3, withColumn("Bloqueado"), withCreated("2023-12-01T00:00:00Z"), withChanged("2024-06-20T00:00:00Z"), withField(types.FieldTaskCategory, "Consulta")),
		enriched(4, withAssignee("Luis"), withState("New"), withColumn("Evaluación"), withClient("Globex"), withCreated("2024-05-01T00:00:00Z"), withChanged("2024-06-29T12:00:00Z")),
		enriched(5, withAssignee("Luis"), withState("Done"), withColumn("Resuelto")),
		enriched(6, withAssignee("Ana"), withState("Closed")),
		enriched(7, withAssignee("Ana"), withColumn("resuelto")),
	}
}

func TestStateDistribution(t *testing.T) {
	got := StateDistribution(sampleItems())
	want := []Count{{"Active", 4}, {"New", 1}, {"Done", 1}, {"Closed", 1}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("distribution mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild(t *testing.T) {
	r := Build(sampleItems(), Options{Visibility: DefaultVisibility(), Now: fixedNow})

	if r.TotalOpen != 4 || r.TotalResolved != 3 {
		t.Errorf("expected 4 open and 3 resolved, got %d and %d", r.TotalOpen, r.TotalResolved)
	}
	if r.Assigned != 3 || r.Unassigned != 1 {
		t.Errorf("expected 3 assigned and 1 unassigned, got %d and %d", r.Assigned, r.Unassigned)
	}
	if r.Coverage != 75 {
		t.Errorf("expected 75%% coverage, got %v", r.Coverage)
	}

	wantCols := []string{"Evaluación", "Documentación", "Implementación", "Bloqueado"}
	if diff := cmp.Diff(wantCols, r.Columns); diff != "" {
		t.Errorf("columns mismatch (-want +got):\n%s", diff)
	}

	var names []string
	for _, p := range r.People {
		names = append(names, p.Name)
	}
	if diff := cmp.Diff([]string{"Ana", "Luis", Unassigned}, names); diff != "" {
		t.Errorf("people order mismatch (-want +got):\n%s", diff)
	}
	if r.People[0].Columns["Implementación"] != 1 || r.People[0].Total != 2 {
		t.Errorf("unexpected row %+v", r.People[0])
	}

	wantClients := []Count{{"Acme", 2}, {NoClient, 1}, {"Globex", 1}}
	if diff := cmp.Diff(wantClients, r.Clients); diff != "" {
		t.Errorf("clients mismatch (-want +got):\n%s", diff)
	}
	wantTypes := []Count{{types.TypeProductBacklogItem, 3}, {"Consulta", 1}}
	if diff := cmp.Diff(wantTypes, r.Types); diff != "" {
		t.Errorf("types mismatch (-want +got):\n%s", diff)
	}

	if r.Oldest[0].ID != 3 || r.Oldest[len(r.Oldest)-1].ID != 4 {
		t.Errorf("unexpected oldest ranking %+v", r.Oldest)
	}
	if r.Stale[0].ID != 2 {
		t.Errorf("expected item 2 to be the most stale, got %+v", r.Stale[0])
	}
	if r.Stale[len(r.Stale)-1].Days != 1 {
		t.Errorf("expected 1 day for item changed yesterday, got %d", r.Stale[len(r.Stale)-1].Days)
	}

	wantResolved := []Count{{"Ana", 2}, {"Luis", 1}}
	if diff := cmp.Diff(wantResolved, r.TopResolved); diff != "" {
		t.Errorf("top resolved mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_HideNew(t *testing.T) {
	r := Build(sampleItems(), Options{Visibility: Visibility{}, Now: fixedNow})
	if r.TotalOpen != 3 {
		t.Errorf("expected new items excluded, got %d open", r.TotalOpen)
	}
}

func TestBuild_UnassignedLastEvenWhenLargest(t *testing.T) {
	items := []engine.EnrichedItem{
		enriched(1), enriched(2), enriched(3),
		enriched(4, withAssignee("Ana")),
	}
	r := Build(items, Options{Visibility: DefaultVisibility(), Now: fixedNow})
	if r.People[len(r.People)-1].Name != Unassigned {
		t.Errorf("expected unassigned last, got %+v", r.People)
	}
}

func TestBuild_TopTen(t *testing.T) {
	var items []engine.EnrichedItem
	for i := 1; i <= 15; i++ {
		items = append(items, enriched(i))
	}
	r := Build(items, Options{Visibility: DefaultVisibility(), Now: fixedNow})
	if len(r.Oldest) != DefaultTopN || len(r.Stale) != DefaultTopN {
		t.Errorf("expected rankings of %d, got %d and %d", DefaultTopN, len(r.Oldest), len(r.Stale))
	}
	// equal dates keep input order
	if r.Oldest[0].ID != 1 {
		t.Errorf("expected stable order, got first id %d", r.Oldest[0].ID)
	}
}

func TestDerivationsAreIdempotent(t *testing.T) {
	items := sampleItems()
	items[0].TimeEntries = nil
	budgets := []types.WorkItem{feature(100, "Acme", 10, 0)}
	opts := Options{Visibility: DefaultVisibility(), Now: fixedNow}
	period := Period{Year: 2024, Month: 6}
	query := TicketQuery{Visibility: DefaultVisibility(), Sort: SortTitle}

	if diff := cmp.Diff(Build(items, opts), Build(items, opts)); diff != "" {
		t.Errorf("Build not idempotent:\n%s", diff)
	}
	if diff := cmp.Diff(StateDistribution(items), StateDistribution(items)); diff != "" {
		t.Errorf("StateDistribution not idempotent:\n%s", diff)
	}
	if diff := cmp.Diff(Budget(items, budgets, period), Budget(items, budgets, period)); diff != "" {
		t.Errorf("Budget not idempotent:\n%s", diff)
	}
	if diff := cmp.Diff(Tickets(items, query), Tickets(items, query)); diff != "" {
		t.Errorf("Tickets not idempotent:\n%s", diff)
	}
	if diff := cmp.Diff(Hours(items, HoursQuery{}), Hours(items, HoursQuery{})); diff != "" {
		t.Errorf("Hours not idempotent:\n%s", diff)
	}
}
