package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/goblinsan/ado-report/pkg/azure"
	"github.com/goblinsan/ado-report/pkg/types"
)

// mockBackend implements Backend over an in-memory item set.
type mockBackend struct {
	mu       sync.Mutex
	items    map[int]types.WorkItem
	queries  map[string][]int
	comments map[int][]types.Comment

	// lose lists ids whose batch fails as a partial fetch loss.
	lose map[int]bool
	// fetchErr, when set, fails every fetch.
	fetchErr error
	queryErr map[string]error
	// onFetch runs at the start of every fetch.
	onFetch func()

	calls   [][]int
	fetched map[int]int
}

func newMockBackend(items ...types.WorkItem) *mockBackend {
	m := &mockBackend{
		items:    make(map[int]types.WorkItem),
		queries:  make(map[string][]int),
		comments: make(map[int][]types.Comment),
		lose:     make(map[int]bool),
		queryErr: make(map[string]error),
		fetched:  make(map[int]int),
	}
	for _, it := range items {
		m.items[it.ID] = it
	}
	return m
}

func (m *mockBackend) GetWorkItems(_ context.Context, ids []int) ([]types.WorkItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.onFetch != nil {
		m.onFetch()
	}
	m.calls = append(m.calls, append([]int(nil), ids...))
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	var (
		out     []types.WorkItem
		partial *azure.PartialFetchError
	)
	for _, id := range ids {
		if m.lose[id] {
			if partial == nil {
				partial = &azure.PartialFetchError{}
			}
			partial.IDs = append(partial.IDs, id)
			partial.Errs = append(partial.Errs, fmt.Errorf("item %d: %w", id, azure.ErrRemoteAPI))
			continue
		}
		m.fetched[id]++
		if it, ok := m.items[id]; ok {
			out = append(out, it)
		}
	}
	if partial != nil {
		return out, partial
	}
	return out, nil
}

func (m *mockBackend) Query(_ context.Context, c azure.Criteria) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.queryErr[c.WorkItemType]; err != nil {
		return nil, err
	}
	return m.queries[c.WorkItemType], nil
}

func (m *mockBackend) GetComments(_ context.Context, id int) ([]types.Comment, error) {
	return m.comments[id], nil
}

func childLink(id int) types.Relation {
	return types.Relation{Rel: types.RelHierarchyForward, URL: fmt.Sprintf("https://dev.azure.com/acme/_apis/wit/workItems/%d", id)}
}

func relatedLink(id int) types.Relation {
	return types.Relation{Rel: types.RelRelated, URL: fmt.Sprintf("https://dev.azure.com/acme/_apis/wit/workItems/%d", id)}
}

func item(id int, typ string, children ...int) types.WorkItem {
	w := types.WorkItem{ID: id, Fields: map[string]any{
		types.FieldType:        typ,
		types.FieldTitle:       fmt.Sprintf("item %d", id),
		types.FieldCreatedDate: "2024-01-01T00:00:00Z",
	}}
	for _, c := range children {
		w.Relations = append(w.Relations, childLink(c))
	}
	return w
}

func line(id int, hours float64, date string) types.WorkItem {
	w := item(id, "Línea")
	w.Fields[types.FieldHorasLinea] = hours
	if date != "" {
		w.Fields[types.FieldLineDate] = date
	}
	return w
}
