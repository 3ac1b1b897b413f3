package graph

import (
	"sort"
	"sync"

	"github.com/juju/errors"
	"github.com/quantgrid/stratflow/types"
)

// Constructor builds a node from its definition. The definition carries the
// node id, the declared input/output specs and the opaque config map.
type Constructor func(def types.NodeDefinition) (types.Node, error)

/**
 * Registry maps a node-type tag to a constructor. It is an explicit value
 * owned by the composition root and injected wherever graphs are built
 * from external definitions; there is no process-global registration.
 *
 * Register is last-wins: re-registering a tag replaces the previous
 * constructor without complaint.
 */
type Registry struct {
	mu sync.Mutex

	ctors map[string]Constructor
}

func NewRegistry() *Registry {
	return &Registry{ctors: map[string]Constructor{}}
}

func (r *Registry) Register(nodeType string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ctors[nodeType] = ctor
}

func (r *Registry) Create(def types.NodeDefinition) (types.Node, error) {
	r.mu.Lock()
	ctor, exists := r.ctors[def.NodeType]
	r.mu.Unlock()

	if !exists {
		return nil, errors.NotFoundf("node type: %s", def.NodeType)
	}
	node, err := ctor(def)
	if err != nil {
		return nil, errors.Annotatef(err, "construct node %s of type %s", def.NodeID, def.NodeType)
	}
	return node, nil
}

// Types returns the registered tags, sorted.
func (r *Registry) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	tags := make([]string, 0, len(r.ctors))
	for tag := range r.ctors {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
