package graph

import (
	"time"

	"github.com/juju/errors"
	"github.com/quantgrid/stratflow/types"
)

/**
 * Connection binds one node's declared output to another node's declared
 * input. The indices address positions in the respective declaration lists;
 * the runtime resolves them back to the declared names when it moves data.
 */
type Connection struct {
	FromNodeID      string
	FromOutputIndex int
	ToNodeID        string
	ToInputIndex    int
}

/**
 * StrategyGraph is an explicit DAG of nodes plus the typed connections
 * between them. It stays acyclic across every successful mutation: the
 * only write paths are AddNode and AddConnection, and AddConnection runs a
 * full depth-first cycle check before committing the edge.
 *
 * The structure must be treated as read-only while any execution against
 * it is in flight; callers mutating concurrently must serialize themselves.
 */
type StrategyGraph struct {
	GraphID     string
	Name        string
	Description string
	Version     types.Version

	nodes map[string]types.Node
	// insertion order of node ids; correctness never depends on it, only
	// the FIFO tie-breaking of the topological order does
	nodeOrder   []string
	connections []Connection

	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewStrategyGraph(graphID, name string) *StrategyGraph {
	now := time.Now()
	return &StrategyGraph{
		GraphID:   graphID,
		Name:      name,
		Version:   "1.0.0",
		nodes:     make(map[string]types.Node),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AddNode inserts a node by id, overwriting any existing definition that
// carries the same id.
func (g *StrategyGraph) AddNode(node types.Node) error {
	if node == nil {
		return errors.BadRequestf("node is nil")
	}
	def := node.Definition()
	if def == nil || def.NodeID == "" {
		return errors.BadRequestf("node has no id")
	}

	if _, exists := g.nodes[def.NodeID]; !exists {
		g.nodeOrder = append(g.nodeOrder, def.NodeID)
	}
	g.nodes[def.NodeID] = node
	g.UpdatedAt = time.Now()
	return nil
}

/**
 * AddConnection validates both endpoints, then rejects the edge if it
 * would close a cycle. Either the connection list grows by exactly one or
 * the graph is left completely unchanged.
 */
func (g *StrategyGraph) AddConnection(conn Connection) error {
	if _, exists := g.nodes[conn.FromNodeID]; !exists {
		return errors.NotFoundf("source node %s", conn.FromNodeID)
	}
	if _, exists := g.nodes[conn.ToNodeID]; !exists {
		return errors.NotFoundf("target node %s", conn.ToNodeID)
	}

	if g.wouldCreateCycle(conn) {
		return types.NewCycleErrorf("connection %s -> %s would create a cycle",
			conn.FromNodeID, conn.ToNodeID)
	}

	g.connections = append(g.connections, conn)
	g.UpdatedAt = time.Now()
	return nil
}

// wouldCreateCycle runs a DFS with a recursion stack over the adjacency of
// all existing connections plus the candidate edge.
func (g *StrategyGraph) wouldCreateCycle(candidate Connection) bool {
	adj := make(map[string][]string, len(g.nodes))
	for _, conn := range g.connections {
		adj[conn.FromNodeID] = append(adj[conn.FromNodeID], conn.ToNodeID)
	}
	adj[candidate.FromNodeID] = append(adj[candidate.FromNodeID], candidate.ToNodeID)

	visited := make(map[string]bool, len(g.nodes))
	recStack := make(map[string]bool, len(g.nodes))

	var hasCycle func(nodeID string) bool
	hasCycle = func(nodeID string) bool {
		visited[nodeID] = true
		recStack[nodeID] = true

		for _, neighbor := range adj[nodeID] {
			if !visited[neighbor] {
				if hasCycle(neighbor) {
					return true
				}
			} else if recStack[neighbor] {
				return true
			}
		}

		recStack[nodeID] = false
		return false
	}

	for _, nodeID := range g.nodeOrder {
		if !visited[nodeID] {
			if hasCycle(nodeID) {
				return true
			}
		}
	}
	return false
}

func (g *StrategyGraph) Node(nodeID string) (types.Node, bool) {
	node, exists := g.nodes[nodeID]
	return node, exists
}

// NodeIDs returns the node ids in insertion order.
func (g *StrategyGraph) NodeIDs() []string {
	ids := make([]string, len(g.nodeOrder))
	copy(ids, g.nodeOrder)
	return ids
}

func (g *StrategyGraph) NodeCount() int {
	return len(g.nodes)
}

// Connections returns a copy of the connection list in creation order.
func (g *StrategyGraph) Connections() []Connection {
	conns := make([]Connection, len(g.connections))
	copy(conns, g.connections)
	return conns
}

// HasIncoming reports whether any connection targets nodeID. A node
// without incoming connections is a source node and receives the caller's
// initial inputs.
func (g *StrategyGraph) HasIncoming(nodeID string) bool {
	for _, conn := range g.connections {
		if conn.ToNodeID == nodeID {
			return true
		}
	}
	return false
}

// TerminalNodeIDs returns the ids of nodes with no outgoing connections,
// in insertion order. Their outputs populate an execution's final result.
func (g *StrategyGraph) TerminalNodeIDs() []string {
	hasOutgoing := make(map[string]bool, len(g.connections))
	for _, conn := range g.connections {
		hasOutgoing[conn.FromNodeID] = true
	}

	terminal := make([]string, 0, len(g.nodeOrder))
	for _, nodeID := range g.nodeOrder {
		if !hasOutgoing[nodeID] {
			terminal = append(terminal, nodeID)
		}
	}
	return terminal
}
