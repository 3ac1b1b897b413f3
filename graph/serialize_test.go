package graph

import (
	"encoding/json"
	"testing"

	"github.com/quantgrid/stratflow/types"
	"github.com/stretchr/testify/assert"
)

func passthroughRegistry() *Registry {
	registry := NewRegistry()
	registry.Register("stub", func(def types.NodeDefinition) (types.Node, error) {
		return &stubNode{def: def}, nil
	})
	return registry
}

func documentGraph(t *testing.T) *StrategyGraph {
	g := NewStrategyGraph("arb-1", "cross venue arb")
	g.Description = "two-leg price comparison"
	g.Version = "2.1.0"

	for _, id := range []string{"feed_a", "feed_b", "compare"} {
		assert.Nil(t, g.AddNode(newStubNode(id, "stub")))
	}
	assert.Nil(t, g.AddConnection(Connection{FromNodeID: "feed_a", FromOutputIndex: 0, ToNodeID: "compare", ToInputIndex: 0}))
	assert.Nil(t, g.AddConnection(Connection{FromNodeID: "feed_b", FromOutputIndex: 0, ToNodeID: "compare", ToInputIndex: 0}))
	return g
}

func TestDocumentShape(t *testing.T) {
	b, err := documentGraph(t).Serialize()
	assert.Nil(t, err)

	// external diff/storage tooling depends on these exact field names
	raw := map[string]any{}
	assert.Nil(t, json.Unmarshal(b, &raw))
	for _, field := range []string{"graph_id", "name", "description", "version", "nodes", "connections", "created_at", "updated_at"} {
		assert.Contains(t, raw, field)
	}

	nodes := raw["nodes"].([]any)
	assert.Len(t, nodes, 3)
	first := nodes[0].(map[string]any)
	for _, field := range []string{"node_id", "node_type", "category", "inputs", "outputs", "config"} {
		assert.Contains(t, first, field)
	}
	assert.Equal(t, "feed_a", first["node_id"])

	conns := raw["connections"].([]any)
	assert.Len(t, conns, 2)
	from := conns[0].(map[string]any)["from"].(map[string]any)
	to := conns[0].(map[string]any)["to"].(map[string]any)
	assert.Equal(t, "feed_a", from["node_id"])
	assert.Contains(t, from, "output_index")
	assert.Equal(t, "compare", to["node_id"])
	assert.Contains(t, to, "input_index")
}

func TestRoundTrip(t *testing.T) {
	g := documentGraph(t)

	b, err := g.Serialize()
	assert.Nil(t, err)

	rebuilt, err := Deserialize(b, passthroughRegistry())
	assert.Nil(t, err)

	assert.Equal(t, g.GraphID, rebuilt.GraphID)
	assert.Equal(t, g.Name, rebuilt.Name)
	assert.Equal(t, g.Version, rebuilt.Version)
	assert.Equal(t, g.NodeIDs(), rebuilt.NodeIDs())
	assert.Equal(t, g.Connections(), rebuilt.Connections())

	// timestamps come from the document, not from the rebuild
	assert.True(t, g.CreatedAt.Equal(rebuilt.CreatedAt))
	assert.True(t, g.UpdatedAt.Equal(rebuilt.UpdatedAt))

	order, err := rebuilt.TopologicalOrder()
	assert.Nil(t, err)
	pos := make(map[string]int)
	for i, id := range order {
		pos[id] = i
	}
	for _, conn := range rebuilt.Connections() {
		assert.Less(t, pos[conn.FromNodeID], pos[conn.ToNodeID])
	}
}

func TestDeserializeUnknownType(t *testing.T) {
	b, err := documentGraph(t).Serialize()
	assert.Nil(t, err)

	_, err = Deserialize(b, NewRegistry())
	assert.NotNil(t, err)
}

func TestDeserializeCyclicDocument(t *testing.T) {
	doc := documentGraph(t).ToDocument()
	// tamper: close the loop compare -> feed_a
	doc.Connections = append(doc.Connections, ConnectionDocument{
		From: OutputEndpoint{NodeID: "compare"},
		To:   InputEndpoint{NodeID: "feed_a"},
	})
	b, err := json.Marshal(doc)
	assert.Nil(t, err)

	_, err = Deserialize(b, passthroughRegistry())
	assert.True(t, types.IsCycle(err))
}

func TestFromDocumentNil(t *testing.T) {
	_, err := FromDocument(nil, passthroughRegistry())
	assert.NotNil(t, err)

	_, err = FromDocument(&Document{}, nil)
	assert.NotNil(t, err)
}
