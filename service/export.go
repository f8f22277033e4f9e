package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/viant/sqlx/io/config"
	"github.com/viant/sqlx/metadata/info"

	"policyrag/manifest"
)

const (
	defaultExportTable = "policy_chunks_export"
	defaultExportBatch = 200
)

type exportRow struct {
	namespace     string
	fingerprint   string
	source        string
	page          int
	section       string
	seq           int
	content       string
	lastProcessed time.Time
}

// Export publishes the reconciled chunk corpus to the configured warehouse
// table. The export is a snapshot: rows of the namespace are replaced
// wholesale, so re-running after a reconcile converges the table with the
// manifest.
func (s *Service) Export(ctx context.Context) (*ExportStats, error) {
	cfg := s.config.Export
	if cfg.Table == "" {
		cfg.Table = defaultExportTable
	}
	if cfg.Batch <= 0 {
		cfg.Batch = defaultExportBatch
	}
	db := s.exportDB
	if db == nil {
		if cfg.Driver == "" || cfg.DSN == "" {
			return nil, fmt.Errorf("export driver/dsn required")
		}
		var err error
		db, err = sql.Open(cfg.Driver, cfg.DSN)
		if err != nil {
			return nil, err
		}
		defer func() { _ = db.Close() }()
	}
	store, err := s.ensureStore(s.config.Corpus.Location)
	if err != nil {
		return nil, err
	}
	if err := store.Load(ctx); err != nil {
		return nil, err
	}
	if err := ensureExportTable(ctx, db, cfg.Driver, cfg.Table); err != nil {
		return nil, err
	}
	dialect, batchInsert := detectDialect(ctx, db, s.logf)

	rows := exportRows(store.Manifest(), s.namespace())
	deleteQuery := fmt.Sprintf("DELETE FROM %s WHERE namespace = ?", cfg.Table)
	if dialect != nil {
		deleteQuery = dialect.EnsurePlaceholders(deleteQuery)
	}
	if _, err := db.ExecContext(ctx, deleteQuery, s.namespace()); err != nil {
		return nil, fmt.Errorf("failed to clear %s: %w", cfg.Table, err)
	}
	for start := 0; start < len(rows); start += cfg.Batch {
		end := start + cfg.Batch
		if end > len(rows) {
			end = len(rows)
		}
		if err := insertExportRows(ctx, db, cfg.Table, rows[start:end], dialect, batchInsert); err != nil {
			return nil, err
		}
	}
	stats := &ExportStats{
		Table:     cfg.Table,
		Documents: store.Manifest().Size(),
		Chunks:    len(rows),
	}
	s.logf("exported %d chunks from %d documents to %s", stats.Chunks, stats.Documents, stats.Table)
	return stats, nil
}

// namespace is the logical corpus partition recorded in exported rows and
// passed to the index.
func (s *Service) namespace() string {
	if ns := s.config.Index.Namespace; ns != "" {
		return ns
	}
	return "default"
}

// exportRows flattens the manifest into warehouse rows, documents in path
// order and chunks in document order.
func exportRows(man *manifest.Manifest, namespace string) []exportRow {
	var rows []exportRow
	for _, path := range man.Paths() {
		entry, ok := man.Get(path)
		if !ok {
			continue
		}
		for _, chunk := range entry.Chunks {
			rows = append(rows, exportRow{
				namespace:     namespace,
				fingerprint:   chunk.Fingerprint,
				source:        chunk.Source,
				page:          chunk.Position.Page,
				section:       chunk.Position.Section,
				seq:           chunk.Position.Seq,
				content:       chunk.Content,
				lastProcessed: entry.LastProcessed,
			})
		}
	}
	return rows
}

func insertExportRows(ctx context.Context, db *sql.DB, table string, batch []exportRow, dialect *info.Dialect, batchInsert bool) error {
	if len(batch) == 0 {
		return nil
	}
	if batchInsert {
		query, args := buildExportInsert(table, batch, dialect)
		if _, err := db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert into %s: %w", table, err)
		}
		return nil
	}
	query := fmt.Sprintf("INSERT INTO %s(namespace, fingerprint, source, page, section, seq, content, last_processed) VALUES(?,?,?,?,?,?,?,?)", table)
	if dialect != nil {
		query = dialect.EnsurePlaceholders(query)
	}
	stmt, err := db.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, row := range batch {
		if _, err := stmt.ExecContext(ctx, row.namespace, row.fingerprint, row.source, row.page, row.section, row.seq, row.content, row.lastProcessed); err != nil {
			return fmt.Errorf("failed to insert into %s: %w", table, err)
		}
	}
	return nil
}

func buildExportInsert(table string, batch []exportRow, dialect *info.Dialect) (string, []interface{}) {
	values := make([]string, 0, len(batch))
	args := make([]interface{}, 0, len(batch)*8)
	for _, row := range batch {
		values = append(values, "(?,?,?,?,?,?,?,?)")
		args = append(args, row.namespace, row.fingerprint, row.source, row.page, row.section, row.seq, row.content, row.lastProcessed)
	}
	query := fmt.Sprintf("INSERT INTO %s(namespace, fingerprint, source, page, section, seq, content, last_processed) VALUES ", table) + strings.Join(values, ",")
	if dialect != nil {
		query = dialect.EnsurePlaceholders(query)
	}
	return query, args
}

// detectDialect probes the warehouse for placeholder style and multi-row
// insert support; on failure the export degrades to single-row inserts with
// ? placeholders.
func detectDialect(ctx context.Context, db *sql.DB, logf func(format string, args ...interface{})) (*info.Dialect, bool) {
	dialect, err := config.Dialect(ctx, db)
	if err != nil {
		logf("export: dialect detection failed: %v", err)
		return nil, false
	}
	return dialect, dialect.Insert.MultiValues()
}

func ensureExportTable(ctx context.Context, db *sql.DB, driver, table string) error {
	columns := `
	namespace TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	source TEXT NOT NULL,
	page INTEGER,
	section TEXT,
	seq INTEGER,
	content TEXT,
	last_processed TIMESTAMP`
	if strings.EqualFold(strings.TrimSpace(driver), "bigquery") {
		columns = `
	namespace STRING NOT NULL,
	fingerprint STRING NOT NULL,
	source STRING NOT NULL,
	page INT64,
	section STRING,
	seq INT64,
	content STRING,
	last_processed TIMESTAMP`
	}
	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s\n)", table, columns)
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to ensure %s: %w", table, err)
	}
	return nil
}
