package service

import (
	"context"
	"errors"
	"sort"

	"github.com/ConflictingTheories/meme-citadel-sub000/internal/domain"
	"github.com/ConflictingTheories/meme-citadel-sub000/internal/metrics"
	"github.com/ConflictingTheories/meme-citadel-sub000/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type TraversalService struct {
	store  domain.Store
	policy domain.ScoringPolicy
	logger *zap.Logger

	MaxDepth int
	MaxHops  int
}

func NewTraversalService(s domain.Store, policy domain.ScoringPolicy, logger *zap.Logger) *TraversalService {
	return &TraversalService{
		store:    s,
		policy:   policy,
		logger:   logger,
		MaxDepth: domain.DefaultMaxTraversalDepth,
		MaxHops:  domain.DefaultMaxPathHops,
	}
}

type weightedEdge struct {
	edge      *domain.Edge
	effective float64
}

// sortWeighted orders by effective weight desc, then created_at asc, then id.
func sortWeighted(edges []weightedEdge) {
	sort.SliceStable(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.effective != b.effective {
			return a.effective > b.effective
		}
		if !a.edge.CreatedAt.Equal(b.edge.CreatedAt) {
			return a.edge.CreatedAt.Before(b.edge.CreatedAt)
		}
		return a.edge.ID.String() < b.edge.ID.String()
	})
}

// nodeCache remembers node lookups for one query. Missing nodes are cached
// as nil.
type nodeCache struct {
	store domain.NodeStore
	nodes map[uuid.UUID]*domain.Node
}

func newNodeCache(s domain.NodeStore) *nodeCache {
	return &nodeCache{store: s, nodes: make(map[uuid.UUID]*domain.Node)}
}

func (c *nodeCache) get(ctx context.Context, id uuid.UUID) (*domain.Node, error) {
	if n, ok := c.nodes[id]; ok {
		return n, nil
	}
	n, err := c.store.GetNode(ctx, id)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		n = nil
	}
	c.nodes[id] = n
	return n, nil
}

// live returns the node if it exists and is not retracted.
func (c *nodeCache) live(ctx context.Context, id uuid.UUID) (*domain.Node, error) {
	n, err := c.get(ctx, id)
	if err != nil || n == nil || n.Retracted {
		return nil, err
	}
	return n, nil
}

func (s *TraversalService) clampDepth(depth int) int {
	if depth < 0 {
		return 0
	}
	if depth > s.MaxDepth {
		return s.MaxDepth
	}
	return depth
}

// Traverse walks the graph breadth-first from root, up to opts.MaxDepth hops.
// Nodes are returned root first in visit order, with every qualifying edge
// followed. Retracted neighbours are not entered.
func (s *TraversalService) Traverse(ctx context.Context, rootID uuid.UUID, opts domain.TraverseOptions) (*domain.TraversalResult, error) {
	nodes := newNodeCache(s.store)
	root, err := nodes.get(ctx, rootID)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, domain.ErrNodeNotFound
	}

	depth := s.clampDepth(opts.MaxDepth)
	direction := opts.Direction
	if direction == "" {
		direction = domain.DirectionBoth
	}

	result := &domain.TraversalResult{
		Nodes: []*domain.Node{root},
		Edges: []*domain.Edge{},
	}
	visited := map[uuid.UUID]bool{rootID: true}
	followed := make(map[uuid.UUID]bool)
	weigher := newEdgeWeigher(s.store, s.policy)

	type item struct {
		id    uuid.UUID
		depth int
	}
	queue := []item{{id: rootID}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= depth {
			continue
		}

		edges, err := s.store.GetNeighbors(ctx, cur.id, direction, opts.Relations)
		if err != nil {
			return nil, err
		}

		qualifying := make([]weightedEdge, 0, len(edges))
		for _, e := range edges {
			eff, err := weigher.weight(ctx, e)
			if err != nil {
				return nil, err
			}
			if opts.Allows(e.Relation, eff) {
				qualifying = append(qualifying, weightedEdge{edge: e, effective: eff})
			}
		}
		sortWeighted(qualifying)

		for _, we := range qualifying {
			next := we.edge.Other(cur.id)
			if !visited[next] {
				n, err := nodes.live(ctx, next)
				if err != nil {
					return nil, err
				}
				if n == nil {
					continue
				}
				visited[next] = true
				result.Nodes = append(result.Nodes, n)
				queue = append(queue, item{id: next, depth: cur.depth + 1})
			}
			if !followed[we.edge.ID] {
				followed[we.edge.ID] = true
				result.Edges = append(result.Edges, we.edge)
			}
		}
	}

	metrics.TraversalNodes.Observe(float64(len(result.Nodes)))
	s.logger.Debug("traversal complete",
		zap.String("root", rootID.String()),
		zap.Int("depth", depth),
		zap.Int("nodes", len(result.Nodes)),
		zap.Int("edges", len(result.Edges)))
	return result, nil
}

// ShortestPath finds the path with the fewest hops between two nodes,
// preferring the highest cumulative effective weight among equally short
// paths. Edges are followed in both directions. A missing path is reported
// with Found false.
func (s *TraversalService) ShortestPath(ctx context.Context, sourceID, targetID uuid.UUID, maxHops int) (*domain.Path, error) {
	nodes := newNodeCache(s.store)
	for _, id := range []uuid.UUID{sourceID, targetID} {
		n, err := nodes.get(ctx, id)
		if err != nil {
			return nil, err
		}
		if n == nil {
			return nil, domain.ErrNodeNotFound
		}
	}

	if maxHops <= 0 || maxHops > s.MaxHops {
		maxHops = s.MaxHops
	}
	if sourceID == targetID {
		return &domain.Path{Found: true, NodeIDs: []uuid.UUID{sourceID}, Edges: []*domain.Edge{}}, nil
	}

	reached := map[uuid.UUID]pathStep{sourceID: {}}
	frontier := []uuid.UUID{sourceID}
	weigher := newEdgeWeigher(s.store, s.policy)

	for hop := 1; hop <= maxHops && len(frontier) > 0; hop++ {
		layer := make(map[uuid.UUID]pathStep)
		for _, u := range frontier {
			edges, err := s.store.GetNeighbors(ctx, u, domain.DirectionBoth, nil)
			if err != nil {
				return nil, err
			}
			for _, e := range edges {
				v := e.Other(u)
				if _, done := reached[v]; done {
					continue
				}
				if v != targetID {
					n, err := nodes.live(ctx, v)
					if err != nil {
						return nil, err
					}
					if n == nil {
						continue
					}
				}
				eff, err := weigher.weight(ctx, e)
				if err != nil {
					return nil, err
				}
				cum := reached[u].weight + eff
				if cur, ok := layer[v]; !ok || cum > cur.weight {
					layer[v] = pathStep{prev: u, edge: e, weight: cum}
				}
			}
		}

		for id, st := range layer {
			reached[id] = st
		}
		if _, ok := layer[targetID]; ok {
			return buildPath(reached, sourceID, targetID), nil
		}

		frontier = frontier[:0]
		for id := range layer {
			frontier = append(frontier, id)
		}
		sort.Slice(frontier, func(i, j int) bool { return frontier[i].String() < frontier[j].String() })
	}

	return &domain.Path{Found: false, NodeIDs: []uuid.UUID{}, Edges: []*domain.Edge{}}, nil
}

// pathStep records how a node was first reached during a path search.
type pathStep struct {
	prev   uuid.UUID
	edge   *domain.Edge
	weight float64
}

func buildPath(reached map[uuid.UUID]pathStep, sourceID, targetID uuid.UUID) *domain.Path {
	var (
		ids   []uuid.UUID
		edges []*domain.Edge
	)
	for cur := targetID; cur != sourceID; cur = reached[cur].prev {
		ids = append(ids, cur)
		edges = append(edges, reached[cur].edge)
	}
	ids = append(ids, sourceID)

	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
	for i, j := 0, len(edges)-1; i < j; i, j = i+1, j-1 {
		edges[i], edges[j] = edges[j], edges[i]
	}

	return &domain.Path{
		Found:       true,
		NodeIDs:     ids,
		Edges:       edges,
		Hops:        len(edges),
		TotalWeight: reached[targetID].weight,
	}
}
