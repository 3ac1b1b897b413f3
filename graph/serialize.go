package graph

import (
	"time"

	"github.com/juju/errors"
	"github.com/quantgrid/stratflow/types"
	"github.com/quantgrid/stratflow/utils"
)

/**
 * Document is the storage/diff representation of a graph. External
 * versioning tooling depends on this exact shape; do not rename fields.
 */
type Document struct {
	GraphID     string               `json:"graph_id"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Version     string               `json:"version"`
	Nodes       []NodeDocument       `json:"nodes"`
	Connections []ConnectionDocument `json:"connections"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

type NodeDocument struct {
	NodeID   string             `json:"node_id"`
	NodeType string             `json:"node_type"`
	Category types.NodeCategory `json:"category"`
	Inputs   []types.InputSpec  `json:"inputs"`
	Outputs  []types.OutputSpec `json:"outputs"`
	Config   types.Data         `json:"config"`
}

type ConnectionDocument struct {
	From OutputEndpoint `json:"from"`
	To   InputEndpoint  `json:"to"`
}

type OutputEndpoint struct {
	NodeID      string `json:"node_id"`
	OutputIndex int    `json:"output_index"`
}

type InputEndpoint struct {
	NodeID     string `json:"node_id"`
	InputIndex int    `json:"input_index"`
}

func (g *StrategyGraph) ToDocument() *Document {
	doc := &Document{
		GraphID:     g.GraphID,
		Name:        g.Name,
		Description: g.Description,
		Version:     string(g.Version),
		Nodes:       make([]NodeDocument, 0, len(g.nodeOrder)),
		Connections: make([]ConnectionDocument, 0, len(g.connections)),
		CreatedAt:   g.CreatedAt,
		UpdatedAt:   g.UpdatedAt,
	}

	for _, nodeID := range g.nodeOrder {
		def := g.nodes[nodeID].Definition()
		doc.Nodes = append(doc.Nodes, NodeDocument{
			NodeID:   def.NodeID,
			NodeType: def.NodeType,
			Category: def.Category,
			Inputs:   def.Inputs,
			Outputs:  def.Outputs,
			Config:   def.Config,
		})
	}
	for _, conn := range g.connections {
		doc.Connections = append(doc.Connections, ConnectionDocument{
			From: OutputEndpoint{NodeID: conn.FromNodeID, OutputIndex: conn.FromOutputIndex},
			To:   InputEndpoint{NodeID: conn.ToNodeID, InputIndex: conn.ToInputIndex},
		})
	}
	return doc
}

/**
 * FromDocument rebuilds a graph from its document, instantiating every
 * node through the registry. Connections go through AddConnection, so a
 * tampered document with a cyclic edge set is rejected.
 */
func FromDocument(doc *Document, registry *Registry) (*StrategyGraph, error) {
	if doc == nil {
		return nil, errors.BadRequestf("document is nil")
	}
	if registry == nil {
		return nil, errors.BadRequestf("registry is nil")
	}

	g := NewStrategyGraph(doc.GraphID, doc.Name)
	g.Description = doc.Description
	g.Version = types.Version(doc.Version)

	for _, nd := range doc.Nodes {
		node, err := registry.Create(types.NodeDefinition{
			NodeID:   nd.NodeID,
			NodeType: nd.NodeType,
			Category: nd.Category,
			Inputs:   nd.Inputs,
			Outputs:  nd.Outputs,
			Config:   nd.Config,
		})
		if err != nil {
			return nil, errors.Trace(err)
		}
		if err := g.AddNode(node); err != nil {
			return nil, errors.Trace(err)
		}
	}
	for _, cd := range doc.Connections {
		conn := Connection{
			FromNodeID:      cd.From.NodeID,
			FromOutputIndex: cd.From.OutputIndex,
			ToNodeID:        cd.To.NodeID,
			ToInputIndex:    cd.To.InputIndex,
		}
		if err := g.AddConnection(conn); err != nil {
			return nil, errors.Trace(err)
		}
	}

	// AddNode/AddConnection bump UpdatedAt; restore the stored timestamps
	// so a reloaded graph matches its document
	g.CreatedAt = doc.CreatedAt
	g.UpdatedAt = doc.UpdatedAt
	return g, nil
}

func (g *StrategyGraph) Serialize() ([]byte, error) {
	b, err := utils.Serialize(g.ToDocument())
	return b, errors.Trace(err)
}

func Deserialize(b []byte, registry *Registry) (*StrategyGraph, error) {
	doc := &Document{}
	if err := utils.Unserialize(b, doc); err != nil {
		return nil, errors.Trace(err)
	}
	return FromDocument(doc, registry)
}
