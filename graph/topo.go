package graph

import (
	"github.com/quantgrid/stratflow/types"
)

/**
 * TopologicalOrder returns every node id in an order consistent with all
 * connections, using Kahn's algorithm. Ties among simultaneously
 * zero-in-degree nodes break by FIFO discovery order (seeded from node
 * insertion order), which keeps the order reproducible across runs.
 *
 * The trailing length check should be unreachable given AddConnection's
 * cycle gate; it stays as a consistency guard.
 */
func (g *StrategyGraph) TopologicalOrder() ([]string, error) {
	adj := make(map[string][]string, len(g.nodes))
	inDegree := make(map[string]int, len(g.nodes))

	for _, nodeID := range g.nodeOrder {
		inDegree[nodeID] = 0
	}
	for _, conn := range g.connections {
		adj[conn.FromNodeID] = append(adj[conn.FromNodeID], conn.ToNodeID)
		inDegree[conn.ToNodeID]++
	}

	queue := make([]string, 0, len(g.nodeOrder))
	for _, nodeID := range g.nodeOrder {
		if inDegree[nodeID] == 0 {
			queue = append(queue, nodeID)
		}
	}

	order := make([]string, 0, len(g.nodes))
	for len(queue) > 0 {
		nodeID := queue[0]
		queue = queue[1:]
		order = append(order, nodeID)

		for _, neighbor := range adj[nodeID] {
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				queue = append(queue, neighbor)
			}
		}
	}

	if len(order) != len(g.nodes) {
		return nil, types.NewCycleErrorf("graph %s contains a cycle", g.GraphID)
	}
	return order, nil
}
