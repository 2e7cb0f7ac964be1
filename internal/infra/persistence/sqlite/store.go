// Package sqlite persists the store state to an embedded SQLite database
// using a normalized relational schema. Transactions run against the
// in-memory engine and the full snapshot is written through on success.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"targetdb/internal/infra/persistence/memory"
	"targetdb/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

// Store wraps the in-memory engine with SQLite-backed durability.
type Store struct {
	*memory.Store
	db   *sql.DB
	mu   sync.Mutex
	path string
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS genes (
	organism  TEXT NOT NULL,
	gene_id   TEXT NOT NULL,
	name      TEXT NOT NULL DEFAULT '',
	full_name TEXT NOT NULL DEFAULT '',
	family    TEXT NOT NULL DEFAULT '',
	gene_type TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (organism, gene_id)
);
CREATE TABLE IF NOT EXISTS gene_aliases (
	organism TEXT NOT NULL,
	alias    TEXT NOT NULL,
	gene_id  TEXT NOT NULL,
	PRIMARY KEY (organism, alias),
	FOREIGN KEY (organism, gene_id) REFERENCES genes(organism, gene_id)
);
CREATE TABLE IF NOT EXISTS datasets (
	id          TEXT PRIMARY KEY,
	organism    TEXT NOT NULL,
	tf          TEXT NOT NULL,
	imported_at TEXT NOT NULL,
	FOREIGN KEY (organism, tf) REFERENCES genes(organism, gene_id)
);
CREATE TABLE IF NOT EXISTS dataset_metadata (
	dataset_id TEXT NOT NULL REFERENCES datasets(id),
	key        TEXT NOT NULL,
	value      TEXT NOT NULL,
	PRIMARY KEY (dataset_id, key)
);
CREATE TABLE IF NOT EXISTS edges (
	dataset_id  TEXT NOT NULL REFERENCES datasets(id),
	organism    TEXT NOT NULL,
	source      TEXT NOT NULL,
	target      TEXT NOT NULL,
	kind        TEXT NOT NULL,
	p_value     REAL,
	fold_change REAL,
	PRIMARY KEY (dataset_id, source, target),
	FOREIGN KEY (organism, source) REFERENCES genes(organism, gene_id),
	FOREIGN KEY (organism, target) REFERENCES genes(organism, gene_id)
);
CREATE INDEX IF NOT EXISTS idx_edges_organism ON edges(organism, source);
CREATE TABLE IF NOT EXISTS motifs (
	organism  TEXT NOT NULL,
	motif_id  TEXT NOT NULL,
	cluster   TEXT NOT NULL DEFAULT '',
	consensus TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (organism, motif_id)
);
CREATE TABLE IF NOT EXISTS motif_tfs (
	organism TEXT NOT NULL,
	motif_id TEXT NOT NULL,
	tf       TEXT NOT NULL,
	PRIMARY KEY (organism, motif_id, tf),
	FOREIGN KEY (organism, motif_id) REFERENCES motifs(organism, motif_id),
	FOREIGN KEY (organism, tf) REFERENCES genes(organism, gene_id)
);
CREATE TABLE IF NOT EXISTS motif_targets (
	organism TEXT NOT NULL,
	motif_id TEXT NOT NULL,
	target   TEXT NOT NULL,
	PRIMARY KEY (organism, motif_id, target),
	FOREIGN KEY (organism, motif_id) REFERENCES motifs(organism, motif_id),
	FOREIGN KEY (organism, target) REFERENCES genes(organism, gene_id)
);
CREATE TABLE IF NOT EXISTS gene_lists (
	organism TEXT NOT NULL,
	name     TEXT NOT NULL,
	PRIMARY KEY (organism, name)
);
CREATE TABLE IF NOT EXISTS gene_list_members (
	organism TEXT NOT NULL,
	name     TEXT NOT NULL,
	gene_id  TEXT NOT NULL,
	PRIMARY KEY (organism, name, gene_id),
	FOREIGN KEY (organism, name) REFERENCES gene_lists(organism, name),
	FOREIGN KEY (organism, gene_id) REFERENCES genes(organism, gene_id)
);
`

// NewStore opens (or creates) the SQLite database at path, applies the
// schema, and hydrates the in-memory engine from any existing rows.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "targetdb.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// WAL keeps concurrent readers unblocked during snapshot writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	for _, stmt := range splitStatements(schemaDDL) {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}
	s := &Store{Store: memory.NewStore(), db: db, path: path}
	if err := s.load(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func splitStatements(ddl string) []string {
	parts := strings.Split(ddl, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

// RunInTransaction applies fn via the in-memory engine, then writes the
// snapshot through to SQLite. A persistence failure surfaces to the caller;
// the committed in-memory state is re-written on the next transaction.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) error {
	if err := s.Store.RunInTransaction(ctx, fn); err != nil {
		return err
	}
	return s.persist(ctx)
}

// Close flushes nothing further and releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

func (s *Store) load() error {
	snapshot, err := readSnapshot(s.db)
	if err != nil {
		return err
	}
	s.ImportState(snapshot)
	return nil
}

func (s *Store) persist(ctx context.Context) (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.ExportState()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	if retErr = writeSnapshot(tx, snapshot); retErr != nil {
		return retErr
	}
	return tx.Commit()
}

// execer covers both *sql.Tx and *sql.DB for snapshot IO helpers.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// writeSnapshot replaces the full relational image. Child tables clear
// first so foreign keys hold throughout.
func writeSnapshot(tx execer, snap memory.Snapshot) error {
	for _, table := range []string{
		"gene_list_members", "gene_lists", "motif_targets", "motif_tfs",
		"motifs", "edges", "dataset_metadata", "datasets", "gene_aliases", "genes",
	} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	for _, g := range snap.Genes {
		if _, err := tx.Exec(
			`INSERT INTO genes(organism, gene_id, name, full_name, family, gene_type) VALUES(?,?,?,?,?,?)`,
			g.Organism, g.GeneID, g.Name, g.FullName, g.Family, g.Type,
		); err != nil {
			return fmt.Errorf("insert gene %s: %w", g.GeneID, err)
		}
		for _, alias := range g.Aliases {
			if _, err := tx.Exec(
				`INSERT OR IGNORE INTO gene_aliases(organism, alias, gene_id) VALUES(?,?,?)`,
				g.Organism, alias, g.GeneID,
			); err != nil {
				return fmt.Errorf("insert alias %s: %w", alias, err)
			}
		}
	}
	for _, d := range snap.Datasets {
		if _, err := tx.Exec(
			`INSERT INTO datasets(id, organism, tf, imported_at) VALUES(?,?,?,?)`,
			d.ID, d.Organism, d.TF, d.Imported.UTC().Format("2006-01-02T15:04:05Z"),
		); err != nil {
			return fmt.Errorf("insert dataset %s: %w", d.ID, err)
		}
		for k, v := range d.Metadata {
			if _, err := tx.Exec(
				`INSERT INTO dataset_metadata(dataset_id, key, value) VALUES(?,?,?)`,
				d.ID, k, v,
			); err != nil {
				return fmt.Errorf("insert metadata %s/%s: %w", d.ID, k, err)
			}
		}
	}
	for _, e := range snap.Edges {
		if _, err := tx.Exec(
			`INSERT INTO edges(dataset_id, organism, source, target, kind, p_value, fold_change) VALUES(?,?,?,?,?,?,?)`,
			e.Dataset, e.Organism, e.Source, e.Target, string(e.Kind), e.PValue, e.FoldChange,
		); err != nil {
			return fmt.Errorf("insert edge %s→%s: %w", e.Source, e.Target, err)
		}
	}
	for _, m := range snap.Motifs {
		if _, err := tx.Exec(
			`INSERT INTO motifs(organism, motif_id, cluster, consensus) VALUES(?,?,?,?)`,
			m.Organism, m.MotifID, m.Cluster, m.Consensus,
		); err != nil {
			return fmt.Errorf("insert motif %s: %w", m.MotifID, err)
		}
		for _, tf := range m.TFs {
			if _, err := tx.Exec(
				`INSERT INTO motif_tfs(organism, motif_id, tf) VALUES(?,?,?)`,
				m.Organism, m.MotifID, tf,
			); err != nil {
				return fmt.Errorf("insert motif tf %s: %w", tf, err)
			}
		}
		for _, target := range m.Targets {
			if _, err := tx.Exec(
				`INSERT INTO motif_targets(organism, motif_id, target) VALUES(?,?,?)`,
				m.Organism, m.MotifID, target,
			); err != nil {
				return fmt.Errorf("insert motif target %s: %w", target, err)
			}
		}
	}
	for _, l := range snap.Lists {
		if _, err := tx.Exec(
			`INSERT INTO gene_lists(organism, name) VALUES(?,?)`,
			l.Organism, l.Name,
		); err != nil {
			return fmt.Errorf("insert gene list %s: %w", l.Name, err)
		}
		for _, member := range l.Members {
			if _, err := tx.Exec(
				`INSERT INTO gene_list_members(organism, name, gene_id) VALUES(?,?,?)`,
				l.Organism, l.Name, member,
			); err != nil {
				return fmt.Errorf("insert list member %s: %w", member, err)
			}
		}
	}
	return nil
}

func readSnapshot(db *sql.DB) (memory.Snapshot, error) {
	var snap memory.Snapshot

	aliases := make(map[[2]string][]string)
	rows, err := db.Query(`SELECT organism, alias, gene_id FROM gene_aliases`)
	if err != nil {
		return snap, fmt.Errorf("select aliases: %w", err)
	}
	for rows.Next() {
		var organism, alias, geneID string
		if err := rows.Scan(&organism, &alias, &geneID); err != nil {
			_ = rows.Close()
			return snap, err
		}
		k := [2]string{organism, geneID}
		aliases[k] = append(aliases[k], alias)
	}
	if err := closeRows(rows); err != nil {
		return snap, err
	}

	rows, err = db.Query(`SELECT organism, gene_id, name, full_name, family, gene_type FROM genes ORDER BY organism, gene_id`)
	if err != nil {
		return snap, fmt.Errorf("select genes: %w", err)
	}
	for rows.Next() {
		var g domain.Gene
		if err := rows.Scan(&g.Organism, &g.GeneID, &g.Name, &g.FullName, &g.Family, &g.Type); err != nil {
			_ = rows.Close()
			return snap, err
		}
		g.Aliases = aliases[[2]string{g.Organism, g.GeneID}]
		snap.Genes = append(snap.Genes, g)
	}
	if err := closeRows(rows); err != nil {
		return snap, err
	}

	metadata := make(map[string]map[string]string)
	rows, err = db.Query(`SELECT dataset_id, key, value FROM dataset_metadata`)
	if err != nil {
		return snap, fmt.Errorf("select metadata: %w", err)
	}
	for rows.Next() {
		var id, k, v string
		if err := rows.Scan(&id, &k, &v); err != nil {
			_ = rows.Close()
			return snap, err
		}
		if metadata[id] == nil {
			metadata[id] = make(map[string]string)
		}
		metadata[id][k] = v
	}
	if err := closeRows(rows); err != nil {
		return snap, err
	}

	rows, err = db.Query(`SELECT id, organism, tf, imported_at FROM datasets ORDER BY id`)
	if err != nil {
		return snap, fmt.Errorf("select datasets: %w", err)
	}
	for rows.Next() {
		var d domain.Dataset
		var imported string
		if err := rows.Scan(&d.ID, &d.Organism, &d.TF, &imported); err != nil {
			_ = rows.Close()
			return snap, err
		}
		d.Imported = parseTimestamp(imported)
		d.Metadata = metadata[d.ID]
		snap.Datasets = append(snap.Datasets, d)
	}
	if err := closeRows(rows); err != nil {
		return snap, err
	}

	rows, err = db.Query(`SELECT dataset_id, organism, source, target, kind, p_value, fold_change FROM edges ORDER BY dataset_id, source, target`)
	if err != nil {
		return snap, fmt.Errorf("select edges: %w", err)
	}
	for rows.Next() {
		var e domain.Edge
		var kind string
		var pval, fc sql.NullFloat64
		if err := rows.Scan(&e.Dataset, &e.Organism, &e.Source, &e.Target, &kind, &pval, &fc); err != nil {
			_ = rows.Close()
			return snap, err
		}
		e.Kind = domain.EdgeKind(kind)
		if pval.Valid {
			v := pval.Float64
			e.PValue = &v
		}
		if fc.Valid {
			v := fc.Float64
			e.FoldChange = &v
		}
		snap.Edges = append(snap.Edges, e)
	}
	if err := closeRows(rows); err != nil {
		return snap, err
	}

	motifTFs := make(map[[2]string][]string)
	rows, err = db.Query(`SELECT organism, motif_id, tf FROM motif_tfs ORDER BY organism, motif_id, tf`)
	if err != nil {
		return snap, fmt.Errorf("select motif tfs: %w", err)
	}
	for rows.Next() {
		var organism, motifID, tf string
		if err := rows.Scan(&organism, &motifID, &tf); err != nil {
			_ = rows.Close()
			return snap, err
		}
		k := [2]string{organism, motifID}
		motifTFs[k] = append(motifTFs[k], tf)
	}
	if err := closeRows(rows); err != nil {
		return snap, err
	}

	motifTargets := make(map[[2]string][]string)
	rows, err = db.Query(`SELECT organism, motif_id, target FROM motif_targets ORDER BY organism, motif_id, target`)
	if err != nil {
		return snap, fmt.Errorf("select motif targets: %w", err)
	}
	for rows.Next() {
		var organism, motifID, target string
		if err := rows.Scan(&organism, &motifID, &target); err != nil {
			_ = rows.Close()
			return snap, err
		}
		k := [2]string{organism, motifID}
		motifTargets[k] = append(motifTargets[k], target)
	}
	if err := closeRows(rows); err != nil {
		return snap, err
	}

	rows, err = db.Query(`SELECT organism, motif_id, cluster, consensus FROM motifs ORDER BY organism, motif_id`)
	if err != nil {
		return snap, fmt.Errorf("select motifs: %w", err)
	}
	for rows.Next() {
		var m domain.MotifAnnotation
		if err := rows.Scan(&m.Organism, &m.MotifID, &m.Cluster, &m.Consensus); err != nil {
			_ = rows.Close()
			return snap, err
		}
		k := [2]string{m.Organism, m.MotifID}
		m.TFs = motifTFs[k]
		m.Targets = motifTargets[k]
		snap.Motifs = append(snap.Motifs, m)
	}
	if err := closeRows(rows); err != nil {
		return snap, err
	}

	members := make(map[[2]string][]string)
	rows, err = db.Query(`SELECT organism, name, gene_id FROM gene_list_members ORDER BY organism, name, gene_id`)
	if err != nil {
		return snap, fmt.Errorf("select list members: %w", err)
	}
	for rows.Next() {
		var organism, name, geneID string
		if err := rows.Scan(&organism, &name, &geneID); err != nil {
			_ = rows.Close()
			return snap, err
		}
		k := [2]string{organism, name}
		members[k] = append(members[k], geneID)
	}
	if err := closeRows(rows); err != nil {
		return snap, err
	}

	rows, err = db.Query(`SELECT organism, name FROM gene_lists ORDER BY organism, name`)
	if err != nil {
		return snap, fmt.Errorf("select gene lists: %w", err)
	}
	for rows.Next() {
		var l domain.GeneList
		if err := rows.Scan(&l.Organism, &l.Name); err != nil {
			_ = rows.Close()
			return snap, err
		}
		l.Members = members[[2]string{l.Organism, l.Name}]
		snap.Lists = append(snap.Lists, l)
	}
	if err := closeRows(rows); err != nil {
		return snap, err
	}

	return snap, nil
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	return rows.Close()
}

func parseTimestamp(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
