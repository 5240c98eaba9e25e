package graph

import (
	"bytes"
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema
// 1 - Expression index on node names for uniqueness lookups
const currentSchemaVersion = 1

// SQLiteStore keeps the graph in two adjacency tables: nodes and relations.
// Property bags are stored as JSON text and filtered with json_extract.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite creates or opens a SQLite database at path and applies the schema.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - a 5-second busy timeout for lock contention
//   - foreign key enforcement
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time; pragmas are per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version < 1 {
		if _, err := db.Exec(`
			CREATE INDEX IF NOT EXISTS idx_nodes_label_name
			ON nodes(label, json_extract(props, '$.name'))
		`); err != nil {
			return fmt.Errorf("migrate to v1: %w", err)
		}
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) CreateNode(ctx context.Context, label string, props Props) (Node, error) {
	if err := checkIdents(label); err != nil {
		return Node{}, fmt.Errorf("create node: %w", err)
	}
	if err := props.validate(); err != nil {
		return Node{}, fmt.Errorf("create node: %w", err)
	}
	raw, err := marshalProps(props)
	if err != nil {
		return Node{}, fmt.Errorf("create node: %w", err)
	}
	nid := uuid.NewString()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO nodes (nid, label, props) VALUES (?, ?, ?)`, nid, label, raw); err != nil {
		return Node{}, fmt.Errorf("create node: %w", err)
	}
	return Node{ID: nid, Label: label, Props: props.Clone()}, nil
}

func (s *SQLiteStore) Node(ctx context.Context, nid string) (Node, error) {
	row := s.db.QueryRowContext(ctx, `SELECT nid, label, props FROM nodes WHERE nid = ?`, nid)
	n, err := scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Node{}, fmt.Errorf("node %s: %w", nid, ErrNotFound)
	}
	if err != nil {
		return Node{}, fmt.Errorf("read node: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) FindNode(ctx context.Context, label string, filter Props) (Node, bool, error) {
	nodes, err := s.FindNodes(ctx, label, filter)
	if err != nil || len(nodes) == 0 {
		return Node{}, false, err
	}
	return nodes[0], true, nil
}

func (s *SQLiteStore) FindNodes(ctx context.Context, label string, filter Props) ([]Node, error) {
	if err := filter.validate(); err != nil {
		return nil, fmt.Errorf("find nodes: %w", err)
	}
	var q strings.Builder
	q.WriteString(`SELECT nid, label, props FROM nodes WHERE label = ?`)
	args := []any{label}
	for k, v := range filter {
		// Keys are validated identifiers, safe inside the JSON path.
		q.WriteString(` AND json_extract(props, '$.` + k + `') = ?`)
		args = append(args, v)
	}
	q.WriteString(` ORDER BY nid ASC`)

	rows, err := s.db.QueryContext(ctx, q.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}
	defer rows.Close()

	nodes := []Node{}
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nodes: %w", err)
	}
	return nodes, nil
}

func (s *SQLiteStore) CreateRelation(ctx context.Context, from, relType, to string) error {
	if err := checkIdents(relType); err != nil {
		return fmt.Errorf("create relation: %w", err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("create relation: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for _, nid := range []string{from, to} {
		if err := existsTx(ctx, tx, nid); err != nil {
			return fmt.Errorf("create relation %s: %w", relType, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO relations (from_nid, rel_type, to_nid) VALUES (?, ?, ?)
		ON CONFLICT DO NOTHING
	`, from, relType, to); err != nil {
		return fmt.Errorf("create relation: insert: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) RemoveRelation(ctx context.Context, from, to, relType string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM relations WHERE from_nid = ? AND rel_type = ? AND to_nid = ?`,
		from, relType, to); err != nil {
		return fmt.Errorf("remove relation: %w", err)
	}
	return nil
}

func (s *SQLiteStore) EndNode(ctx context.Context, from, relType string) (string, bool, error) {
	return first(s.EndNodes(ctx, from, relType))
}

func (s *SQLiteStore) EndNodes(ctx context.Context, from, relType string) ([]string, error) {
	return s.neighbours(ctx, from, `
		SELECT to_nid FROM relations WHERE from_nid = ? AND rel_type = ? ORDER BY to_nid ASC
	`, relType)
}

func (s *SQLiteStore) StartNode(ctx context.Context, to, relType string) (string, bool, error) {
	return first(s.StartNodes(ctx, to, relType))
}

func (s *SQLiteStore) StartNodes(ctx context.Context, to, relType string) ([]string, error) {
	return s.neighbours(ctx, to, `
		SELECT from_nid FROM relations WHERE to_nid = ? AND rel_type = ? ORDER BY from_nid ASC
	`, relType)
}

func (s *SQLiteStore) neighbours(ctx context.Context, nid, query, relType string) ([]string, error) {
	if err := s.exists(ctx, nid); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, nid, relType)
	if err != nil {
		return nil, fmt.Errorf("query relations: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan relation: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate relations: %w", err)
	}
	return ids, nil
}

func (s *SQLiteStore) UpdateProperties(ctx context.Context, nid string, props Props) error {
	if err := props.validate(); err != nil {
		return fmt.Errorf("update properties: %w", err)
	}
	raw, err := marshalProps(props)
	if err != nil {
		return fmt.Errorf("update properties: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE nodes SET props = ? WHERE nid = ?`, raw, nid)
	if err != nil {
		return fmt.Errorf("update properties: %w", err)
	}
	return affected(res, nid)
}

func (s *SQLiteStore) SetProperties(ctx context.Context, nid string, props Props) error {
	if err := props.validate(); err != nil {
		return fmt.Errorf("set properties: %w", err)
	}
	raw, err := marshalProps(props)
	if err != nil {
		return fmt.Errorf("set properties: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE nodes SET props = json_patch(props, ?) WHERE nid = ?`, raw, nid)
	if err != nil {
		return fmt.Errorf("set properties: %w", err)
	}
	return affected(res, nid)
}

func (s *SQLiteStore) RemoveNode(ctx context.Context, nid string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("remove node: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := existsTx(ctx, tx, nid); err != nil {
		return err
	}
	var degree int
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM relations WHERE from_nid = ? OR to_nid = ?
	`, nid, nid).Scan(&degree); err != nil {
		return fmt.Errorf("remove node: count relations: %w", err)
	}
	if degree > 0 {
		return fmt.Errorf("remove node %s: %w", nid, ErrHasRelations)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM nodes WHERE nid = ?`, nid); err != nil {
		return fmt.Errorf("remove node: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) RemoveNodeForce(ctx context.Context, nid string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("remove node: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM relations WHERE from_nid = ? OR to_nid = ?`, nid, nid); err != nil {
		return fmt.Errorf("remove node: detach: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM nodes WHERE nid = ?`, nid); err != nil {
		return fmt.Errorf("remove node: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) Degree(ctx context.Context, nid string) (int, error) {
	if err := s.exists(ctx, nid); err != nil {
		return 0, err
	}
	var degree int
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM relations WHERE from_nid = ? OR to_nid = ?
	`, nid, nid).Scan(&degree); err != nil {
		return 0, fmt.Errorf("count relations: %w", err)
	}
	return degree, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteStore) exists(ctx context.Context, nid string) error {
	return existsIn(ctx, s.db, nid)
}

func existsTx(ctx context.Context, tx *sql.Tx, nid string) error {
	return existsIn(ctx, tx, nid)
}

func existsIn(ctx context.Context, q queryRower, nid string) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM nodes WHERE nid = ?`, nid).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("node %s: %w", nid, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("lookup node: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNode(row rowScanner) (Node, error) {
	var (
		n   Node
		raw string
	)
	if err := row.Scan(&n.ID, &n.Label, &raw); err != nil {
		return Node{}, err
	}
	props, err := unmarshalProps(raw)
	if err != nil {
		return Node{}, err
	}
	n.Props = props
	return n, nil
}

func marshalProps(p Props) (string, error) {
	if p == nil {
		return "{}", nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalProps(raw string) (Props, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	props := Props{}
	if err := dec.Decode(&props); err != nil {
		return nil, fmt.Errorf("decode props: %w", err)
	}
	for k, v := range props {
		props[k] = normalizeNumber(v)
	}
	return props, nil
}

func affected(res sql.Result, nid string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("node %s: %w", nid, ErrNotFound)
	}
	return nil
}
