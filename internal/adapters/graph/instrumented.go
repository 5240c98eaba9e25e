package graph

import (
	"context"
	"time"

	"github.com/okian/raceseries/pkg/metrics"
)

// Instrumented wraps a Store and records latency and failures of every call.
type Instrumented struct {
	next    Store
	backend string
}

// NewInstrumented decorates next; backend labels the metrics.
func NewInstrumented(next Store, backend string) *Instrumented {
	return &Instrumented{next: next, backend: backend}
}

func (s *Instrumented) observe(op string, start time.Time, err error) {
	metrics.RecordStoreOperation(s.backend, op, float64(time.Since(start).Microseconds())/1000.0, err != nil)
}

func (s *Instrumented) CreateNode(ctx context.Context, label string, props Props) (Node, error) {
	start := time.Now()
	n, err := s.next.CreateNode(ctx, label, props)
	s.observe("create_node", start, err)
	return n, err
}

func (s *Instrumented) Node(ctx context.Context, nid string) (Node, error) {
	start := time.Now()
	n, err := s.next.Node(ctx, nid)
	s.observe("node", start, err)
	return n, err
}

func (s *Instrumented) FindNode(ctx context.Context, label string, filter Props) (Node, bool, error) {
	start := time.Now()
	n, ok, err := s.next.FindNode(ctx, label, filter)
	s.observe("find_node", start, err)
	return n, ok, err
}

func (s *Instrumented) FindNodes(ctx context.Context, label string, filter Props) ([]Node, error) {
	start := time.Now()
	nodes, err := s.next.FindNodes(ctx, label, filter)
	s.observe("find_nodes", start, err)
	return nodes, err
}

func (s *Instrumented) CreateRelation(ctx context.Context, from, relType, to string) error {
	start := time.Now()
	err := s.next.CreateRelation(ctx, from, relType, to)
	s.observe("create_relation", start, err)
	return err
}

func (s *Instrumented) RemoveRelation(ctx context.Context, from, to, relType string) error {
	start := time.Now()
	err := s.next.RemoveRelation(ctx, from, to, relType)
	s.observe("remove_relation", start, err)
	return err
}

func (s *Instrumented) EndNode(ctx context.Context, from, relType string) (string, bool, error) {
	start := time.Now()
	id, ok, err := s.next.EndNode(ctx, from, relType)
	s.observe("end_node", start, err)
	return id, ok, err
}

func (s *Instrumented) EndNodes(ctx context.Context, from, relType string) ([]string, error) {
	start := time.Now()
	ids, err := s.next.EndNodes(ctx, from, relType)
	s.observe("end_nodes", start, err)
	return ids, err
}

func (s *Instrumented) StartNode(ctx context.Context, to, relType string) (string, bool, error) {
	start := time.Now()
	id, ok, err := s.next.StartNode(ctx, to, relType)
	s.observe("start_node", start, err)
	return id, ok, err
}

func (s *Instrumented) StartNodes(ctx context.Context, to, relType string) ([]string, error) {
	start := time.Now()
	ids, err := s.next.StartNodes(ctx, to, relType)
	s.observe("start_nodes", start, err)
	return ids, err
}

func (s *Instrumented) UpdateProperties(ctx context.Context, nid string, props Props) error {
	start := time.Now()
	err := s.next.UpdateProperties(ctx, nid, props)
	s.observe("update_properties", start, err)
	return err
}

func (s *Instrumented) SetProperties(ctx context.Context, nid string, props Props) error {
	start := time.Now()
	err := s.next.SetProperties(ctx, nid, props)
	s.observe("set_properties", start, err)
	return err
}

func (s *Instrumented) RemoveNode(ctx context.Context, nid string) error {
	start := time.Now()
	err := s.next.RemoveNode(ctx, nid)
	s.observe("remove_node", start, err)
	return err
}

func (s *Instrumented) RemoveNodeForce(ctx context.Context, nid string) error {
	start := time.Now()
	err := s.next.RemoveNodeForce(ctx, nid)
	s.observe("remove_node_force", start, err)
	return err
}

func (s *Instrumented) Degree(ctx context.Context, nid string) (int, error) {
	start := time.Now()
	d, err := s.next.Degree(ctx, nid)
	s.observe("degree", start, err)
	return d, err
}

func (s *Instrumented) Close() error {
	return s.next.Close()
}
