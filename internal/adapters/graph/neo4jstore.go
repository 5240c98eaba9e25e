package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// baseLabel is attached to every node so nid lookups can use one index.
const baseLabel = "GraphNode"

// Neo4jConfig holds connection settings for a Neo4j server.
type Neo4jConfig struct {
	URI      string
	User     string
	Password string
	Database string
}

// Neo4jStore keeps the graph in a Neo4j database. Labels and relation types
// are validated identifiers and are interpolated into Cypher; values always
// travel as parameters.
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
}

// OpenNeo4j connects to the server, verifies connectivity and ensures the
// nid uniqueness constraint exists.
func OpenNeo4j(ctx context.Context, cfg Neo4jConfig) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("failed to connect to neo4j: %w", err)
	}
	s := &Neo4jStore{driver: driver, database: cfg.Database}
	if err := s.EnsureSchema(ctx); err != nil {
		driver.Close(ctx)
		return nil, err
	}
	return s, nil
}

// EnsureSchema creates the nid constraint if it does not exist yet.
func (s *Neo4jStore) EnsureSchema(ctx context.Context) error {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	query := `CREATE CONSTRAINT graph_node_nid IF NOT EXISTS
		FOR (n:` + baseLabel + `) REQUIRE n.nid IS UNIQUE`
	result, err := session.Run(ctx, query, nil)
	if err != nil {
		return fmt.Errorf("failed to create nid constraint: %w", err)
	}
	if _, err := result.Consume(ctx); err != nil {
		return fmt.Errorf("failed to create nid constraint: %w", err)
	}
	return nil
}

func (s *Neo4jStore) Close() error {
	return s.driver.Close(context.Background())
}

func (s *Neo4jStore) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode, DatabaseName: s.database})
}

func (s *Neo4jStore) CreateNode(ctx context.Context, label string, props Props) (Node, error) {
	if err := checkIdents(label); err != nil {
		return Node{}, fmt.Errorf("create node: %w", err)
	}
	if err := props.validate(); err != nil {
		return Node{}, fmt.Errorf("create node: %w", err)
	}
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	nid := uuid.NewString()
	params := toParams(props)
	params[nidKey] = nid

	query := `CREATE (n:` + baseLabel + `:` + label + `) SET n = $props RETURN n.nid AS nid`
	result, err := session.Run(ctx, query, map[string]interface{}{"props": params})
	if err != nil {
		return Node{}, fmt.Errorf("failed to create node: %w", err)
	}
	if !result.Next(ctx) {
		return Node{}, fmt.Errorf("failed to create node: %w", result.Err())
	}
	return Node{ID: nid, Label: label, Props: props.Clone()}, nil
}

func (s *Neo4jStore) Node(ctx context.Context, nid string) (Node, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	query := `MATCH (n:` + baseLabel + ` {nid: $nid}) RETURN n`
	result, err := session.Run(ctx, query, map[string]interface{}{"nid": nid})
	if err != nil {
		return Node{}, fmt.Errorf("failed to read node: %w", err)
	}
	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return Node{}, fmt.Errorf("failed to read node: %w", err)
		}
		return Node{}, fmt.Errorf("node %s: %w", nid, ErrNotFound)
	}
	return nodeFromRecord(result.Record(), "n")
}

func (s *Neo4jStore) FindNode(ctx context.Context, label string, filter Props) (Node, bool, error) {
	nodes, err := s.FindNodes(ctx, label, filter)
	if err != nil || len(nodes) == 0 {
		return Node{}, false, err
	}
	return nodes[0], true, nil
}

func (s *Neo4jStore) FindNodes(ctx context.Context, label string, filter Props) ([]Node, error) {
	if err := checkIdents(label); err != nil {
		return nil, fmt.Errorf("find nodes: %w", err)
	}
	if err := filter.validate(); err != nil {
		return nil, fmt.Errorf("find nodes: %w", err)
	}
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var where []string
	params := map[string]interface{}{}
	for i, k := range keys {
		p := fmt.Sprintf("p%d", i)
		where = append(where, "n.`"+k+"` = $"+p)
		params[p] = filter[k]
	}
	query := `MATCH (n:` + baseLabel + `:` + label + `)`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` RETURN n ORDER BY n.nid`

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("failed to find nodes: %w", err)
	}
	nodes := []Node{}
	for result.Next(ctx) {
		n, err := nodeFromRecord(result.Record(), "n")
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to find nodes: %w", err)
	}
	return nodes, nil
}

func (s *Neo4jStore) CreateRelation(ctx context.Context, from, relType, to string) error {
	if err := checkIdents(relType); err != nil {
		return fmt.Errorf("create relation: %w", err)
	}
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	query := `
		MATCH (a:` + baseLabel + ` {nid: $from}), (b:` + baseLabel + ` {nid: $to})
		MERGE (a)-[:` + relType + `]->(b)
		RETURN a.nid AS from
	`
	result, err := session.Run(ctx, query, map[string]interface{}{"from": from, "to": to})
	if err != nil {
		return fmt.Errorf("failed to create relation: %w", err)
	}
	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return fmt.Errorf("failed to create relation: %w", err)
		}
		return fmt.Errorf("create relation %s %s->%s: %w", relType, from, to, ErrNotFound)
	}
	return nil
}

func (s *Neo4jStore) RemoveRelation(ctx context.Context, from, to, relType string) error {
	if err := checkIdents(relType); err != nil {
		return fmt.Errorf("remove relation: %w", err)
	}
	return s.exec(ctx, `
		MATCH (:`+baseLabel+` {nid: $from})-[r:`+relType+`]->(:`+baseLabel+` {nid: $to})
		DELETE r
	`, map[string]interface{}{"from": from, "to": to})
}

func (s *Neo4jStore) EndNode(ctx context.Context, from, relType string) (string, bool, error) {
	return first(s.EndNodes(ctx, from, relType))
}

func (s *Neo4jStore) EndNodes(ctx context.Context, from, relType string) ([]string, error) {
	return s.neighbours(ctx, from, relType, `(n)-[:`+relType+`]->(m:`+baseLabel+`)`)
}

func (s *Neo4jStore) StartNode(ctx context.Context, to, relType string) (string, bool, error) {
	return first(s.StartNodes(ctx, to, relType))
}

func (s *Neo4jStore) StartNodes(ctx context.Context, to, relType string) ([]string, error) {
	return s.neighbours(ctx, to, relType, `(n)<-[:`+relType+`]-(m:`+baseLabel+`)`)
}

func (s *Neo4jStore) neighbours(ctx context.Context, nid, relType, pattern string) ([]string, error) {
	if err := checkIdents(relType); err != nil {
		return nil, err
	}
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	query := `
		MATCH (n:` + baseLabel + ` {nid: $nid})
		OPTIONAL MATCH ` + pattern + `
		RETURN m.nid AS nid ORDER BY nid
	`
	result, err := session.Run(ctx, query, map[string]interface{}{"nid": nid})
	if err != nil {
		return nil, fmt.Errorf("failed to query relations: %w", err)
	}
	found := false
	ids := []string{}
	for result.Next(ctx) {
		found = true
		if id := getStringFromRecord(result.Record(), "nid"); id != "" {
			ids = append(ids, id)
		}
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to query relations: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("node %s: %w", nid, ErrNotFound)
	}
	return ids, nil
}

func (s *Neo4jStore) UpdateProperties(ctx context.Context, nid string, props Props) error {
	return s.writeProps(ctx, nid, props, "=")
}

func (s *Neo4jStore) SetProperties(ctx context.Context, nid string, props Props) error {
	return s.writeProps(ctx, nid, props, "+=")
}

func (s *Neo4jStore) writeProps(ctx context.Context, nid string, props Props, op string) error {
	if err := props.validate(); err != nil {
		return fmt.Errorf("write properties: %w", err)
	}
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	params := toParams(props)
	params[nidKey] = nid
	query := `MATCH (n:` + baseLabel + ` {nid: $nid}) SET n ` + op + ` $props RETURN n.nid AS nid`
	result, err := session.Run(ctx, query, map[string]interface{}{"nid": nid, "props": params})
	if err != nil {
		return fmt.Errorf("failed to write properties: %w", err)
	}
	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return fmt.Errorf("failed to write properties: %w", err)
		}
		return fmt.Errorf("node %s: %w", nid, ErrNotFound)
	}
	return nil
}

func (s *Neo4jStore) RemoveNode(ctx context.Context, nid string) error {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		deg, err := degreeTx(ctx, tx, nid)
		if err != nil {
			return nil, err
		}
		if deg > 0 {
			return nil, fmt.Errorf("remove node %s: %w", nid, ErrHasRelations)
		}
		result, err := tx.Run(ctx, `MATCH (n:`+baseLabel+` {nid: $nid}) DELETE n`,
			map[string]interface{}{"nid": nid})
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	return err
}

func (s *Neo4jStore) RemoveNodeForce(ctx context.Context, nid string) error {
	return s.exec(ctx, `MATCH (n:`+baseLabel+` {nid: $nid}) DETACH DELETE n`,
		map[string]interface{}{"nid": nid})
}

func (s *Neo4jStore) Degree(ctx context.Context, nid string) (int, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	deg, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return degreeTx(ctx, tx, nid)
	})
	if err != nil {
		return 0, err
	}
	return deg.(int), nil
}

func degreeTx(ctx context.Context, tx neo4j.ManagedTransaction, nid string) (int, error) {
	result, err := tx.Run(ctx, `
		MATCH (n:`+baseLabel+` {nid: $nid})
		OPTIONAL MATCH (n)-[r]-()
		RETURN count(r) AS degree
	`, map[string]interface{}{"nid": nid})
	if err != nil {
		return 0, fmt.Errorf("failed to count relations: %w", err)
	}
	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return 0, fmt.Errorf("failed to count relations: %w", err)
		}
		return 0, fmt.Errorf("node %s: %w", nid, ErrNotFound)
	}
	return getIntFromRecord(result.Record(), "degree"), nil
}

func (s *Neo4jStore) exec(ctx context.Context, query string, params map[string]interface{}) error {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return fmt.Errorf("failed to execute query: %w", err)
	}
	if _, err := result.Consume(ctx); err != nil {
		return fmt.Errorf("failed to execute query: %w", err)
	}
	return nil
}

func toParams(p Props) map[string]interface{} {
	out := make(map[string]interface{}, len(p)+1)
	for k, v := range p {
		out[k] = v
	}
	return out
}

func nodeFromRecord(record *neo4j.Record, key string) (Node, error) {
	val, ok := record.Get(key)
	if !ok {
		return Node{}, fmt.Errorf("record has no %q", key)
	}
	dbNode, ok := val.(neo4j.Node)
	if !ok {
		return Node{}, fmt.Errorf("record %q is %T, not a node", key, val)
	}
	n := Node{Props: Props{}}
	for _, l := range dbNode.Labels {
		if l != baseLabel {
			n.Label = l
		}
	}
	for k, v := range dbNode.Props {
		if k == nidKey {
			n.ID, _ = v.(string)
			continue
		}
		n.Props[k] = v
	}
	return n, nil
}

func getStringFromRecord(record *neo4j.Record, key string) string {
	if val, ok := record.Get(key); ok && val != nil {
		if s, ok := val.(string); ok {
			return s
		}
	}
	return ""
}

func getIntFromRecord(record *neo4j.Record, key string) int {
	if val, ok := record.Get(key); ok && val != nil {
		switch v := val.(type) {
		case int64:
			return int(v)
		case int:
			return v
		}
	}
	return 0
}
