package concept

import (
	"context"

	"github.com/poiesic/ontoquery/core"
)

type childrenFunc func(id core.ConceptID) []core.ConceptID

type groupsFunc func(ctx context.Context, id core.ConceptID) ([]string, error)

type queued struct {
	id    core.ConceptID
	depth int
}

// narrowerClosure is the breadth-first closure shared by every Source.
// The visited set is local to the call so concurrent callers never share state.
func narrowerClosure(ctx context.Context, root core.ConceptID, opts ClosureOptions, children childrenFunc, groups groupsFunc) ([]core.ConceptID, error) {
	result := []core.ConceptID{root}
	if opts.MaxDepth <= 0 {
		return result, nil
	}

	pruned := make(map[core.ConceptID]struct{}, len(opts.Prune))
	for _, id := range opts.Prune {
		pruned[id] = struct{}{}
	}
	visited := map[core.ConceptID]struct{}{root: {}}

	var rootGroups map[string]struct{}
	if opts.SameTypeOnly {
		gs, err := groups(ctx, root)
		if err != nil {
			return nil, err
		}
		rootGroups = make(map[string]struct{}, len(gs))
		for _, g := range gs {
			rootGroups[g] = struct{}{}
		}
	}

	queue := []queued{{id: root}}
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= opts.MaxDepth {
			continue
		}
		for _, child := range children(cur.id) {
			if _, ok := visited[child]; ok {
				continue
			}
			if _, ok := pruned[child]; ok {
				continue
			}
			if opts.SameTypeOnly {
				gs, err := groups(ctx, child)
				if err != nil {
					return nil, err
				}
				if !intersects(rootGroups, gs) {
					continue
				}
			}
			visited[child] = struct{}{}
			result = append(result, child)
			queue = append(queue, queued{id: child, depth: cur.depth + 1})
		}
	}
	return result, nil
}

func intersects(set map[string]struct{}, values []string) bool {
	for _, v := range values {
		if _, ok := set[v]; ok {
			return true
		}
	}
	return false
}
