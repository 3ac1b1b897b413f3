package runtime

import (
	"fmt"
	"strings"

	"github.com/quantgrid/stratflow/graph"
	"github.com/quantgrid/stratflow/types"
)

/**
 * renderDOT draws the graph in Graphviz DOT: one node per definition with
 * a category-specific shape, one edge per connection labeled with the
 * declared output/input names. When last is non-nil, nodes are filled by
 * the status they reached in that execution.
 */
func renderDOT(g *graph.StrategyGraph, last *types.GraphExecutionResult) string {
	r := &dotRenderer{sb: &strings.Builder{}, last: last}
	return r.render(g)
}

type dotRenderer struct {
	sb   *strings.Builder
	last *types.GraphExecutionResult
}

func (d *dotRenderer) render(g *graph.StrategyGraph) string {
	d.write("digraph D {")
	d.write("label=%s", quoteString(g.Name))

	for _, nodeID := range g.NodeIDs() {
		node, _ := g.Node(nodeID)
		def := node.Definition()
		d.write("%s [label=%s shape=%q%s]",
			idString(nodeID), quoteString(nodeID), categoryShape(def.Category), d.statusAttr(nodeID))
	}

	for _, conn := range g.Connections() {
		d.write("%s -> %s [label=%s]",
			idString(conn.FromNodeID), idString(conn.ToNodeID), quoteString(edgeLabel(g, conn)))
	}

	d.write("}")
	return d.sb.String()
}

func edgeLabel(g *graph.StrategyGraph, conn graph.Connection) string {
	outputName := fmt.Sprintf("#%d", conn.FromOutputIndex)
	inputName := fmt.Sprintf("#%d", conn.ToInputIndex)

	if from, exists := g.Node(conn.FromNodeID); exists {
		if outputs := from.Definition().Outputs; conn.FromOutputIndex >= 0 && conn.FromOutputIndex < len(outputs) {
			outputName = outputs[conn.FromOutputIndex].Name
		}
	}
	if to, exists := g.Node(conn.ToNodeID); exists {
		if inputs := to.Definition().Inputs; conn.ToInputIndex >= 0 && conn.ToInputIndex < len(inputs) {
			inputName = inputs[conn.ToInputIndex].Name
		}
	}
	return outputName + ">" + inputName
}

func categoryShape(category types.NodeCategory) string {
	switch category {
	case types.CategorySource:
		return "ellipse"
	case types.CategoryCondition, types.CategoryGate:
		return "diamond"
	case types.CategoryExecutor:
		return "box"
	default:
		return "record"
	}
}

func (d *dotRenderer) statusAttr(nodeID string) string {
	if d.last == nil {
		return ""
	}
	result, exists := d.last.NodeResults[nodeID]
	if !exists {
		return " style=\"filled\" color=\"white\""
	}

	color := "white"
	switch result.Status {
	case types.Completed:
		color = "green"
	case types.Failed:
		color = "red"
	case types.Running:
		color = "yellow"
	}
	return fmt.Sprintf(" style=\"filled\" color=%q", color)
}

func (d *dotRenderer) write(format string, s ...any) {
	d.sb.WriteString(fmt.Sprintf(format+"\n", s...))
}

func quoteString(s string) string {
	return "\"" + strings.ReplaceAll(s, "\"", "\\\"") + "\""
}

var idleChars = []string{" ", "'", "\"", "(", ")", "*", "&", "^", "%", "$", "#", "@", "!", "?", "<", ">", "[", "]", "{", "}", "."}

func idString(s string) string {
	for _, ch := range idleChars {
		s = strings.ReplaceAll(s, ch, "_")
	}
	return s
}
