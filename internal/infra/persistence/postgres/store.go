// Package postgres persists the store state to PostgreSQL using the same
// relational schema as the sqlite backend. Transactions run against the
// in-memory engine and the full snapshot is written through on success.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver

	"targetdb/internal/infra/persistence/memory"
	"targetdb/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

// Store wraps the in-memory engine with PostgreSQL-backed durability.
type Store struct {
	*memory.Store
	db *sql.DB
	mu sync.Mutex
}

var schemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS genes (
		organism  TEXT NOT NULL,
		gene_id   TEXT NOT NULL,
		name      TEXT NOT NULL DEFAULT '',
		full_name TEXT NOT NULL DEFAULT '',
		family    TEXT NOT NULL DEFAULT '',
		gene_type TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (organism, gene_id)
	)`,
	`CREATE TABLE IF NOT EXISTS gene_aliases (
		organism TEXT NOT NULL,
		alias    TEXT NOT NULL,
		gene_id  TEXT NOT NULL,
		PRIMARY KEY (organism, alias),
		FOREIGN KEY (organism, gene_id) REFERENCES genes(organism, gene_id)
	)`,
	`CREATE TABLE IF NOT EXISTS datasets (
		id          TEXT PRIMARY KEY,
		organism    TEXT NOT NULL,
		tf          TEXT NOT NULL,
		imported_at TIMESTAMPTZ NOT NULL,
		FOREIGN KEY (organism, tf) REFERENCES genes(organism, gene_id)
	)`,
	`CREATE TABLE IF NOT EXISTS dataset_metadata (
		dataset_id TEXT NOT NULL REFERENCES datasets(id),
		key        TEXT NOT NULL,
		value      TEXT NOT NULL,
		PRIMARY KEY (dataset_id, key)
	)`,
	`CREATE TABLE IF NOT EXISTS edges (
		dataset_id  TEXT NOT NULL REFERENCES datasets(id),
		organism    TEXT NOT NULL,
		source      TEXT NOT NULL,
		target      TEXT NOT NULL,
		kind        TEXT NOT NULL,
		p_value     DOUBLE PRECISION,
		fold_change DOUBLE PRECISION,
		PRIMARY KEY (dataset_id, source, target),
		FOREIGN KEY (organism, source) REFERENCES genes(organism, gene_id),
		FOREIGN KEY (organism, target) REFERENCES genes(organism, gene_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_edges_organism ON edges(organism, source)`,
	`CREATE TABLE IF NOT EXISTS motifs (
		organism  TEXT NOT NULL,
		motif_id  TEXT NOT NULL,
		cluster   TEXT NOT NULL DEFAULT '',
		consensus TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (organism, motif_id)
	)`,
	`CREATE TABLE IF NOT EXISTS motif_tfs (
		organism TEXT NOT NULL,
		motif_id TEXT NOT NULL,
		tf       TEXT NOT NULL,
		PRIMARY KEY (organism, motif_id, tf),
		FOREIGN KEY (organism, motif_id) REFERENCES motifs(organism, motif_id),
		FOREIGN KEY (organism, tf) REFERENCES genes(organism, gene_id)
	)`,
	`CREATE TABLE IF NOT EXISTS motif_targets (
		organism TEXT NOT NULL,
		motif_id TEXT NOT NULL,
		target   TEXT NOT NULL,
		PRIMARY KEY (organism, motif_id, target),
		FOREIGN KEY (organism, motif_id) REFERENCES motifs(organism, motif_id),
		FOREIGN KEY (organism, target) REFERENCES genes(organism, gene_id)
	)`,
	`CREATE TABLE IF NOT EXISTS gene_lists (
		organism TEXT NOT NULL,
		name     TEXT NOT NULL,
		PRIMARY KEY (organism, name)
	)`,
	`CREATE TABLE IF NOT EXISTS gene_list_members (
		organism TEXT NOT NULL,
		name     TEXT NOT NULL,
		gene_id  TEXT NOT NULL,
		PRIMARY KEY (organism, name, gene_id),
		FOREIGN KEY (organism, name) REFERENCES gene_lists(organism, name),
		FOREIGN KEY (organism, gene_id) REFERENCES genes(organism, gene_id)
	)`,
}

// NewStore connects with the supplied DSN, applies the schema, and
// hydrates the in-memory engine from any existing rows.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	for _, stmt := range schemaDDL {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}
	s := &Store{Store: memory.NewStore(), db: db}
	if err := s.load(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// RunInTransaction applies fn via the in-memory engine, then writes the
// snapshot through to PostgreSQL.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) error {
	if err := s.Store.RunInTransaction(ctx, fn); err != nil {
		return err
	}
	return s.persist(ctx)
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

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
	if retErr = writeSnapshot(ctx, tx, snapshot); retErr != nil {
		return retErr
	}
	return tx.Commit()
}

func writeSnapshot(ctx context.Context, tx *sql.Tx, snap memory.Snapshot) error {
	for _, table := range []string{
		"gene_list_members", "gene_lists", "motif_targets", "motif_tfs",
		"motifs", "edges", "dataset_metadata", "datasets", "gene_aliases", "genes",
	} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	for _, g := range snap.Genes {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO genes(organism, gene_id, name, full_name, family, gene_type) VALUES($1,$2,$3,$4,$5,$6)`,
			g.Organism, g.GeneID, g.Name, g.FullName, g.Family, g.Type,
		); err != nil {
			return fmt.Errorf("insert gene %s: %w", g.GeneID, err)
		}
		for _, alias := range g.Aliases {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO gene_aliases(organism, alias, gene_id) VALUES($1,$2,$3) ON CONFLICT DO NOTHING`,
				g.Organism, alias, g.GeneID,
			); err != nil {
				return fmt.Errorf("insert alias %s: %w", alias, err)
			}
		}
	}
	for _, d := range snap.Datasets {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO datasets(id, organism, tf, imported_at) VALUES($1,$2,$3,$4)`,
			d.ID, d.Organism, d.TF, d.Imported.UTC(),
		); err != nil {
			return fmt.Errorf("insert dataset %s: %w", d.ID, err)
		}
		for k, v := range d.Metadata {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO dataset_metadata(dataset_id, key, value) VALUES($1,$2,$3)`,
				d.ID, k, v,
			); err != nil {
				return fmt.Errorf("insert metadata %s/%s: %w", d.ID, k, err)
			}
		}
	}
	for _, e := range snap.Edges {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO edges(dataset_id, organism, source, target, kind, p_value, fold_change) VALUES($1,$2,$3,$4,$5,$6,$7)`,
			e.Dataset, e.Organism, e.Source, e.Target, string(e.Kind), e.PValue, e.FoldChange,
		); err != nil {
			return fmt.Errorf("insert edge %s→%s: %w", e.Source, e.Target, err)
		}
	}
	for _, m := range snap.Motifs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO motifs(organism, motif_id, cluster, consensus) VALUES($1,$2,$3,$4)`,
			m.Organism, m.MotifID, m.Cluster, m.Consensus,
		); err != nil {
			return fmt.Errorf("insert motif %s: %w", m.MotifID, err)
		}
		for _, tf := range m.TFs {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO motif_tfs(organism, motif_id, tf) VALUES($1,$2,$3)`,
				m.Organism, m.MotifID, tf,
			); err != nil {
				return fmt.Errorf("insert motif tf %s: %w", tf, err)
			}
		}
		for _, target := range m.Targets {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO motif_targets(organism, motif_id, target) VALUES($1,$2,$3)`,
				m.Organism, m.MotifID, target,
			); err != nil {
				return fmt.Errorf("insert motif target %s: %w", target, err)
			}
		}
	}
	for _, l := range snap.Lists {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO gene_lists(organism, name) VALUES($1,$2)`,
			l.Organism, l.Name,
		); err != nil {
			return fmt.Errorf("insert gene list %s: %w", l.Name, err)
		}
		for _, member := range l.Members {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO gene_list_members(organism, name, gene_id) VALUES($1,$2,$3)`,
				l.Organism, l.Name, member,
			); err != nil {
				return fmt.Errorf("insert list member %s: %w", member, err)
			}
		}
	}
	return nil
}

func (s *Store) load(ctx context.Context) error {
	var snap memory.Snapshot

	aliases := make(map[[2]string][]string)
	if err := scan(ctx, s.db, `SELECT organism, alias, gene_id FROM gene_aliases`, func(rows *sql.Rows) error {
		var organism, alias, geneID string
		if err := rows.Scan(&organism, &alias, &geneID); err != nil {
			return err
		}
		k := [2]string{organism, geneID}
		aliases[k] = append(aliases[k], alias)
		return nil
	}); err != nil {
		return err
	}

	if err := scan(ctx, s.db, `SELECT organism, gene_id, name, full_name, family, gene_type FROM genes ORDER BY organism, gene_id`, func(rows *sql.Rows) error {
		var g domain.Gene
		if err := rows.Scan(&g.Organism, &g.GeneID, &g.Name, &g.FullName, &g.Family, &g.Type); err != nil {
			return err
		}
		g.Aliases = aliases[[2]string{g.Organism, g.GeneID}]
		snap.Genes = append(snap.Genes, g)
		return nil
	}); err != nil {
		return err
	}

	metadata := make(map[string]map[string]string)
	if err := scan(ctx, s.db, `SELECT dataset_id, key, value FROM dataset_metadata`, func(rows *sql.Rows) error {
		var id, k, v string
		if err := rows.Scan(&id, &k, &v); err != nil {
			return err
		}
		if metadata[id] == nil {
			metadata[id] = make(map[string]string)
		}
		metadata[id][k] = v
		return nil
	}); err != nil {
		return err
	}

	if err := scan(ctx, s.db, `SELECT id, organism, tf, imported_at FROM datasets ORDER BY id`, func(rows *sql.Rows) error {
		var d domain.Dataset
		var imported time.Time
		if err := rows.Scan(&d.ID, &d.Organism, &d.TF, &imported); err != nil {
			return err
		}
		d.Imported = imported
		d.Metadata = metadata[d.ID]
		snap.Datasets = append(snap.Datasets, d)
		return nil
	}); err != nil {
		return err
	}

	if err := scan(ctx, s.db, `SELECT dataset_id, organism, source, target, kind, p_value, fold_change FROM edges ORDER BY dataset_id, source, target`, func(rows *sql.Rows) error {
		var e domain.Edge
		var kind string
		var pval, fc sql.NullFloat64
		if err := rows.Scan(&e.Dataset, &e.Organism, &e.Source, &e.Target, &kind, &pval, &fc); err != nil {
			return err
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
		return nil
	}); err != nil {
		return err
	}

	motifTFs := make(map[[2]string][]string)
	if err := scan(ctx, s.db, `SELECT organism, motif_id, tf FROM motif_tfs ORDER BY organism, motif_id, tf`, func(rows *sql.Rows) error {
		var organism, motifID, tf string
		if err := rows.Scan(&organism, &motifID, &tf); err != nil {
			return err
		}
		k := [2]string{organism, motifID}
		motifTFs[k] = append(motifTFs[k], tf)
		return nil
	}); err != nil {
		return err
	}

	motifTargets := make(map[[2]string][]string)
	if err := scan(ctx, s.db, `SELECT organism, motif_id, target FROM motif_targets ORDER BY organism, motif_id, target`, func(rows *sql.Rows) error {
		var organism, motifID, target string
		if err := rows.Scan(&organism, &motifID, &target); err != nil {
			return err
		}
		k := [2]string{organism, motifID}
		motifTargets[k] = append(motifTargets[k], target)
		return nil
	}); err != nil {
		return err
	}

	if err := scan(ctx, s.db, `SELECT organism, motif_id, cluster, consensus FROM motifs ORDER BY organism, motif_id`, func(rows *sql.Rows) error {
		var m domain.MotifAnnotation
		if err := rows.Scan(&m.Organism, &m.MotifID, &m.Cluster, &m.Consensus); err != nil {
			return err
		}
		k := [2]string{m.Organism, m.MotifID}
		m.TFs = motifTFs[k]
		m.Targets = motifTargets[k]
		snap.Motifs = append(snap.Motifs, m)
		return nil
	}); err != nil {
		return err
	}

	members := make(map[[2]string][]string)
	if err := scan(ctx, s.db, `SELECT organism, name, gene_id FROM gene_list_members ORDER BY organism, name, gene_id`, func(rows *sql.Rows) error {
		var organism, name, geneID string
		if err := rows.Scan(&organism, &name, &geneID); err != nil {
			return err
		}
		k := [2]string{organism, name}
		members[k] = append(members[k], geneID)
		return nil
	}); err != nil {
		return err
	}

	if err := scan(ctx, s.db, `SELECT organism, name FROM gene_lists ORDER BY organism, name`, func(rows *sql.Rows) error {
		var l domain.GeneList
		if err := rows.Scan(&l.Organism, &l.Name); err != nil {
			return err
		}
		l.Members = members[[2]string{l.Organism, l.Name}]
		snap.Lists = append(snap.Lists, l)
		return nil
	}); err != nil {
		return err
	}

	s.ImportState(snap)
	return nil
}

func scan(ctx context.Context, db *sql.DB, query string, fn func(*sql.Rows) error) error {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("%s: %w", query, err)
	}
	defer rows.Close()
	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}
