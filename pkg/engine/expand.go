package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/goblinsan/ado-report/pkg/azure"
	"github.com/goblinsan/ado-report/pkg/types"
	"github.com/rs/zerolog"
)

// Gateway defines the work item fetch the expander needs.
type Gateway interface {
	GetWorkItems(ctx context.Context, ids []int) ([]types.WorkItem, error)
}

// Ensure *azure.Client satisfies the interface at compile time.
var _ Gateway = (*azure.Client)(nil)

// Graph is the result of expanding a root set: every fetched item and the
// parent to child edges discovered while walking hierarchy links.
type Graph struct {
	Items    map[int]*types.WorkItem
	Children map[int][]int
	RootIDs  []int
	// Rounds is the number of child fetches after the root fetch.
	Rounds int
	// Lost holds ids whose batches failed and were skipped.
	Lost []int
}

// Expand fetches rootIDs and then, breadth first, every descendant reachable
// through hierarchy-forward links. Each id is requested at most once; an edge
// to an already requested child is still recorded. A partial fetch loss is
// logged and skipped. Any other gateway error, or a context cancelled while
// a level was being fetched, aborts the expansion.
func Expand(ctx context.Context, gw Gateway, rootIDs []int, log zerolog.Logger) (*Graph, error) {
	g := &Graph{
		Items:    make(map[int]*types.WorkItem),
		Children: make(map[int][]int),
	}
	visited := make(map[int]bool, len(rootIDs))
	for _, id := range rootIDs {
		if visited[id] {
			continue
		}
		visited[id] = true
		g.RootIDs = append(g.RootIDs, id)
	}
	if len(g.RootIDs) == 0 {
		return g, nil
	}

	frontier, err := g.fetch(ctx, gw, g.RootIDs, log)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch root items: %w", err)
	}

	for len(frontier) > 0 {
		var next []int
		for _, item := range frontier {
			for _, child := range item.ChildIDs() {
				g.Children[item.ID] = append(g.Children[item.ID], child)
				if !visited[child] {
					visited[child] = true
					next = append(next, child)
				}
			}
		}
		if len(next) == 0 {
			break
		}
		g.Rounds++
		frontier, err = g.fetch(ctx, gw, next, log)
		if err == nil {
			err = ctx.Err()
		}
		if err != nil {
			return nil, fmt.Errorf("failed to fetch level %d: %w", g.Rounds, err)
		}
		log.Debug().Int("round", g.Rounds).Int("requested", len(next)).Int("fetched", len(frontier)).Msg("expanded hierarchy level")
	}
	return g, nil
}

func (g *Graph) fetch(ctx context.Context, gw Gateway, ids []int, log zerolog.Logger) ([]*types.WorkItem, error) {
	items, err := gw.GetWorkItems(ctx, ids)
	if err != nil {
		if !errors.Is(err, azure.ErrPartialFetch) {
			return nil, err
		}
		lost := azure.LostIDs(err)
		log.Warn().Ints("ids", lost).Msg("some work items could not be loaded")
		g.Lost = append(g.Lost, lost...)
	}
	fetched := make([]*types.WorkItem, 0, len(items))
	for i := range items {
		item := &items[i]
		g.Items[item.ID] = item
		fetched = append(fetched, item)
	}
	return fetched, nil
}
