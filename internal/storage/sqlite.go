package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var (
	// ErrArtifactNotFound is returned when a sitemap artifact is missing or empty
	ErrArtifactNotFound = errors.New("sitemap artifact not found")
	// ErrSchemaVersion is returned when an artifact was written by an incompatible schema
	ErrSchemaVersion = errors.New("unsupported sitemap schema version")
)

// Storage handles all database operations for the sitemap artifact
type Storage struct {
	db   *sql.DB
	path string
}

// NewStorage creates a new Storage instance, opening/creating the DB and initializing schema
func NewStorage(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	storage := &Storage{db: db, path: dbPath}

	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// OpenStorage opens an existing artifact without creating a new one
func OpenStorage(dbPath string) (*Storage, error) {
	info, err := os.Stat(dbPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, dbPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat artifact: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrArtifactNotFound, dbPath)
	}
	return NewStorage(dbPath)
}

// initSchema creates tables and indices if they don't exist
func (s *Storage) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS crawl_meta (
		run_id TEXT NOT NULL,
		root_url TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		termination_reason TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS nodes (
		url TEXT PRIMARY KEY,
		discovery_order INTEGER UNIQUE NOT NULL,
		depth INTEGER NOT NULL,
		status INTEGER NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		referrer TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS edges (
		edge_id INTEGER PRIMARY KEY AUTOINCREMENT,
		source_url TEXT NOT NULL,
		target_url TEXT NOT NULL,
		UNIQUE(source_url, target_url)
	);

	CREATE TABLE IF NOT EXISTS findings (
		finding_id INTEGER PRIMARY KEY AUTOINCREMENT,
		referrer_url TEXT NOT NULL,
		broken_url TEXT NOT NULL,
		status INTEGER NOT NULL,
		error TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_url);
	CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target_url);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&count); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if count == 0 {
		if _, err := s.db.Exec("INSERT INTO schema_version (version) VALUES (?)", SchemaVersion); err != nil {
			return fmt.Errorf("failed to write schema version: %w", err)
		}
	}
	return nil
}

// Version returns the schema version recorded in the artifact
func (s *Storage) Version() (int, error) {
	var version int
	if err := s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

func (s *Storage) checkVersion() error {
	version, err := s.Version()
	if err != nil {
		return err
	}
	if version != SchemaVersion {
		return fmt.Errorf("%w: artifact has v%d, expected v%d", ErrSchemaVersion, version, SchemaVersion)
	}
	return nil
}

// SaveSitemap replaces the artifact contents with the given snapshot.
// The write happens in one transaction so readers never see a partial sitemap.
func (s *Storage) SaveSitemap(sm *Sitemap) error {
	if err := s.checkVersion(); err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"crawl_meta", "nodes", "edges", "findings"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	_, err = tx.Exec(`
		INSERT INTO crawl_meta (run_id, root_url, started_at, finished_at, termination_reason)
		VALUES (?, ?, ?, ?, ?)
	`, sm.Meta.RunID, sm.Meta.RootURL, formatTime(sm.Meta.StartedAt), formatTime(sm.Meta.FinishedAt), sm.Meta.Reason)
	if err != nil {
		return fmt.Errorf("failed to write crawl meta: %w", err)
	}

	nodeStmt, err := tx.Prepare(`
		INSERT INTO nodes (url, discovery_order, depth, status, error, title, referrer)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare node insert: %w", err)
	}
	defer nodeStmt.Close()

	for _, n := range sm.Nodes {
		if _, err := nodeStmt.Exec(n.URL, n.Order, n.Depth, n.Status, n.Error, n.Title, n.Referrer); err != nil {
			return fmt.Errorf("failed to write node %s: %w", n.URL, err)
		}
	}

	edgeStmt, err := tx.Prepare("INSERT INTO edges (source_url, target_url) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare edge insert: %w", err)
	}
	defer edgeStmt.Close()

	for _, e := range sm.Edges {
		if _, err := edgeStmt.Exec(e.Source, e.Target); err != nil {
			return fmt.Errorf("failed to write edge %s -> %s: %w", e.Source, e.Target, err)
		}
	}

	findingStmt, err := tx.Prepare(`
		INSERT INTO findings (referrer_url, broken_url, status, error)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare finding insert: %w", err)
	}
	defer findingStmt.Close()

	for _, f := range sm.Findings {
		if _, err := findingStmt.Exec(f.Referrer, f.URL, f.Status, f.Error); err != nil {
			return fmt.Errorf("failed to write finding %s: %w", f.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit sitemap: %w", err)
	}
	return nil
}

// LoadSitemap reads the persisted snapshot back in discovery order
func (s *Storage) LoadSitemap() (*Sitemap, error) {
	if err := s.checkVersion(); err != nil {
		return nil, err
	}

	sm := &Sitemap{
		Nodes:    make([]Node, 0),
		Edges:    make([]Edge, 0),
		Findings: make([]Finding, 0),
	}

	var started, finished string
	err := s.db.QueryRow(`
		SELECT run_id, root_url, started_at, finished_at, termination_reason
		FROM crawl_meta
		LIMIT 1
	`).Scan(&sm.Meta.RunID, &sm.Meta.RootURL, &started, &finished, &sm.Meta.Reason)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s holds no crawl", ErrArtifactNotFound, s.path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read crawl meta: %w", err)
	}
	sm.Meta.SchemaVersion = SchemaVersion
	if sm.Meta.StartedAt, err = parseTime(started); err != nil {
		return nil, err
	}
	if sm.Meta.FinishedAt, err = parseTime(finished); err != nil {
		return nil, err
	}

	if sm.Nodes, err = s.loadNodes(); err != nil {
		return nil, err
	}
	if sm.Edges, err = s.loadEdges(); err != nil {
		return nil, err
	}
	if sm.Findings, err = s.loadFindings(); err != nil {
		return nil, err
	}
	return sm, nil
}

func (s *Storage) loadNodes() ([]Node, error) {
	rows, err := s.db.Query(`
		SELECT url, discovery_order, depth, status, error, title, referrer
		FROM nodes
		ORDER BY discovery_order ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load nodes: %w", err)
	}
	defer rows.Close()

	nodes := make([]Node, 0)
	for rows.Next() {
		var n Node
		if err := rows.Scan(&n.URL, &n.Order, &n.Depth, &n.Status, &n.Error, &n.Title, &n.Referrer); err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating nodes: %w", err)
	}
	return nodes, nil
}

func (s *Storage) loadEdges() ([]Edge, error) {
	rows, err := s.db.Query("SELECT source_url, target_url FROM edges ORDER BY edge_id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to load edges: %w", err)
	}
	defer rows.Close()

	edges := make([]Edge, 0)
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.Source, &e.Target); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating edges: %w", err)
	}
	return edges, nil
}

func (s *Storage) loadFindings() ([]Finding, error) {
	rows, err := s.db.Query(`
		SELECT referrer_url, broken_url, status, error
		FROM findings
		ORDER BY finding_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load findings: %w", err)
	}
	defer rows.Close()

	findings := make([]Finding, 0)
	for rows.Next() {
		var f Finding
		if err := rows.Scan(&f.Referrer, &f.URL, &f.Status, &f.Error); err != nil {
			return nil, fmt.Errorf("failed to scan finding: %w", err)
		}
		findings = append(findings, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating findings: %w", err)
	}
	return findings, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(v string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", v, err)
	}
	return t, nil
}
