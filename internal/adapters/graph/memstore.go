package graph

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryOption applies a configuration option to the MemoryStore.
type MemoryOption func(*MemoryStore)

// WithIDGenerator overrides nid allocation. Tests use it for predictable ids.
func WithIDGenerator(gen func() string) MemoryOption {
	return func(s *MemoryStore) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// adjacency maps node -> relation type -> set of neighbour nids.
type adjacency map[string]map[string]map[string]struct{}

func (a adjacency) add(nid, relType, other string) {
	byType, ok := a[nid]
	if !ok {
		byType = make(map[string]map[string]struct{})
		a[nid] = byType
	}
	set, ok := byType[relType]
	if !ok {
		set = make(map[string]struct{})
		byType[relType] = set
	}
	set[other] = struct{}{}
}

func (a adjacency) remove(nid, relType, other string) {
	set := a[nid][relType]
	delete(set, other)
	if len(set) == 0 {
		delete(a[nid], relType)
	}
	if len(a[nid]) == 0 {
		delete(a, nid)
	}
}

func (a adjacency) sorted(nid, relType string) []string {
	set := a[nid][relType]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (a adjacency) degree(nid string) int {
	n := 0
	for _, set := range a[nid] {
		n += len(set)
	}
	return n
}

// MemoryStore is an in-process Store guarded by a single RWMutex.
// Relations are indexed in both directions.
type MemoryStore struct {
	mu     sync.RWMutex
	nodes  map[string]Node
	out    adjacency
	in     adjacency
	newID  func() string
	closed bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		nodes: make(map[string]Node),
		out:   make(adjacency),
		in:    make(adjacency),
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) CreateNode(_ context.Context, label string, props Props) (Node, error) {
	if err := checkIdents(label); err != nil {
		return Node{}, fmt.Errorf("create node: %w", err)
	}
	if err := props.validate(); err != nil {
		return Node{}, fmt.Errorf("create node: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Node{}, ErrClosed
	}
	n := Node{ID: s.newID(), Label: label, Props: props.Clone()}
	s.nodes[n.ID] = n
	return cloneNode(n), nil
}

func (s *MemoryStore) Node(_ context.Context, nid string) (Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[nid]
	if !ok {
		return Node{}, fmt.Errorf("node %s: %w", nid, ErrNotFound)
	}
	return cloneNode(n), nil
}

func (s *MemoryStore) FindNode(ctx context.Context, label string, filter Props) (Node, bool, error) {
	nodes, err := s.FindNodes(ctx, label, filter)
	if err != nil || len(nodes) == 0 {
		return Node{}, false, err
	}
	return nodes[0], true, nil
}

func (s *MemoryStore) FindNodes(_ context.Context, label string, filter Props) ([]Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Node{}
	for _, n := range s.nodes {
		if n.Label == label && n.Props.contains(filter) {
			out = append(out, cloneNode(n))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) CreateRelation(_ context.Context, from, relType, to string) error {
	if err := checkIdents(relType); err != nil {
		return fmt.Errorf("create relation: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mustExist(from, to); err != nil {
		return fmt.Errorf("create relation %s: %w", relType, err)
	}
	s.out.add(from, relType, to)
	s.in.add(to, relType, from)
	return nil
}

func (s *MemoryStore) RemoveRelation(_ context.Context, from, to, relType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.out.remove(from, relType, to)
	s.in.remove(to, relType, from)
	return nil
}

func (s *MemoryStore) EndNode(ctx context.Context, from, relType string) (string, bool, error) {
	return first(s.EndNodes(ctx, from, relType))
}

func (s *MemoryStore) EndNodes(_ context.Context, from, relType string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.mustExist(from); err != nil {
		return nil, err
	}
	return s.out.sorted(from, relType), nil
}

func (s *MemoryStore) StartNode(ctx context.Context, to, relType string) (string, bool, error) {
	return first(s.StartNodes(ctx, to, relType))
}

func (s *MemoryStore) StartNodes(_ context.Context, to, relType string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.mustExist(to); err != nil {
		return nil, err
	}
	return s.in.sorted(to, relType), nil
}

func (s *MemoryStore) UpdateProperties(_ context.Context, nid string, props Props) error {
	if err := props.validate(); err != nil {
		return fmt.Errorf("update properties: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[nid]
	if !ok {
		return fmt.Errorf("update properties %s: %w", nid, ErrNotFound)
	}
	n.Props = props.Clone()
	s.nodes[nid] = n
	return nil
}

func (s *MemoryStore) SetProperties(_ context.Context, nid string, props Props) error {
	if err := props.validate(); err != nil {
		return fmt.Errorf("set properties: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[nid]
	if !ok {
		return fmt.Errorf("set properties %s: %w", nid, ErrNotFound)
	}
	merged := n.Props.Clone()
	for k, v := range props {
		merged[k] = v
	}
	n.Props = merged
	s.nodes[nid] = n
	return nil
}

func (s *MemoryStore) RemoveNode(_ context.Context, nid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mustExist(nid); err != nil {
		return err
	}
	if s.out.degree(nid)+s.in.degree(nid) > 0 {
		return fmt.Errorf("remove node %s: %w", nid, ErrHasRelations)
	}
	delete(s.nodes, nid)
	return nil
}

func (s *MemoryStore) RemoveNodeForce(_ context.Context, nid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for relType, set := range s.out[nid] {
		for to := range set {
			s.in.remove(to, relType, nid)
		}
	}
	for relType, set := range s.in[nid] {
		for from := range set {
			s.out.remove(from, relType, nid)
		}
	}
	delete(s.out, nid)
	delete(s.in, nid)
	delete(s.nodes, nid)
	return nil
}

func (s *MemoryStore) Degree(_ context.Context, nid string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.mustExist(nid); err != nil {
		return 0, err
	}
	return s.out.degree(nid) + s.in.degree(nid), nil
}

// Close marks the store closed; further node creation fails.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// mustExist must be called with the lock held.
func (s *MemoryStore) mustExist(nids ...string) error {
	for _, nid := range nids {
		if _, ok := s.nodes[nid]; !ok {
			return fmt.Errorf("node %s: %w", nid, ErrNotFound)
		}
	}
	return nil
}

func cloneNode(n Node) Node {
	return Node{ID: n.ID, Label: n.Label, Props: n.Props.Clone()}
}

func first(ids []string, err error) (string, bool, error) {
	if err != nil || len(ids) == 0 {
		return "", false, err
	}
	return ids[0], true, nil
}
