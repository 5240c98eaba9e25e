// Package graph defines the labeled-node, typed-relation store that the race
// domain is built on, together with its memory, SQLite and Neo4j backends.
//
// Nodes are addressed by a stable opaque id (nid) allocated by the store at
// creation time. Engine-internal row ids are never exposed.
package graph

import (
	"context"
	"regexp"
)

// Node is a labeled property bag with a stable id.
type Node struct {
	ID    string
	Label string
	Props Props
}

// Store provides CRUD over labeled nodes and typed directed relations.
type Store interface {
	// CreateNode allocates a new nid and stores the node.
	CreateNode(ctx context.Context, label string, props Props) (Node, error)
	// Node returns the node with the given nid, or ErrNotFound.
	Node(ctx context.Context, nid string) (Node, error)
	// FindNode returns the first node (lowest nid) with label whose properties
	// contain filter. The bool is false when nothing matches.
	FindNode(ctx context.Context, label string, filter Props) (Node, bool, error)
	// FindNodes returns every node with label whose properties contain filter,
	// ordered by nid.
	FindNodes(ctx context.Context, label string, filter Props) ([]Node, error)

	// CreateRelation adds from-[relType]->to. Creating an existing relation is a no-op.
	CreateRelation(ctx context.Context, from, relType, to string) error
	// RemoveRelation deletes from-[relType]->to. Removing a missing relation is a no-op.
	RemoveRelation(ctx context.Context, from, to, relType string) error

	// EndNode returns the single end node of an outgoing relation. When more
	// than one exists, the lowest nid is returned.
	EndNode(ctx context.Context, from, relType string) (string, bool, error)
	// EndNodes returns every end node of the outgoing relations, ordered by nid.
	EndNodes(ctx context.Context, from, relType string) ([]string, error)
	// StartNode returns the single start node of an incoming relation.
	StartNode(ctx context.Context, to, relType string) (string, bool, error)
	// StartNodes returns every start node of the incoming relations, ordered by nid.
	StartNodes(ctx context.Context, to, relType string) ([]string, error)

	// UpdateProperties replaces the property set: keys absent from props are deleted.
	UpdateProperties(ctx context.Context, nid string, props Props) error
	// SetProperties merges props into the node: absent keys are preserved.
	SetProperties(ctx context.Context, nid string, props Props) error

	// RemoveNode deletes a node without relations. Returns ErrHasRelations otherwise.
	RemoveNode(ctx context.Context, nid string) error
	// RemoveNodeForce detaches and deletes the node.
	RemoveNodeForce(ctx context.Context, nid string) error
	// Degree counts incoming and outgoing relations of any type.
	Degree(ctx context.Context, nid string) (int, error)

	Close() error
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// validIdent reports whether s can be used as a label, relation type or
// property key on every backend.
func validIdent(s string) bool {
	return identRe.MatchString(s)
}

func checkIdents(idents ...string) error {
	for _, s := range idents {
		if !validIdent(s) {
			return ErrInvalidLabel
		}
	}
	return nil
}
