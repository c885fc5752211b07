package store

import (
	"context"
	"database/sql"
	"fmt"
)

// migrate applies versioned migrations, then the additive column pass.
// Migrations only ever create; columns added later in the project's
// life are handled by ensureColumns so older databases upgrade in place.
func (s *Store) migrate() error {
	ctx := context.Background()

	if err := s.createMigrationsTable(ctx); err != nil {
		return err
	}

	migrations := []migration{
		{version: 1, name: "initial_schema", up: migrateV1},
		{version: 2, name: "artifact_tables", up: migrateV2},
	}
	for _, m := range migrations {
		if err := s.runMigration(ctx, m); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.version, m.name, err)
		}
	}

	return s.ensureColumns(ctx)
}

type migration struct {
	version int
	name    string
	up      func(context.Context, *sql.Tx) error
}

func (s *Store) createMigrationsTable(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at INTEGER NOT NULL
	)`
	_, err := s.db.ExecContext(ctx, query)
	return err
}

func (s *Store) runMigration(ctx context.Context, m migration) error {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM schema_migrations WHERE version = ?", m.version).Scan(&count)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil // Already applied
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := m.up(ctx, tx); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, strftime('%s', 'now'))",
		m.version, m.name)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// migrateV1 creates the article, filtering and version-link tables.
func migrateV1(ctx context.Context, tx *sql.Tx) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS research_articles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			doi_raw TEXT,
			doi_norm TEXT UNIQUE,
			pub_date TEXT,
			total_citations INTEGER,
			citations_per_year REAL,
			authors TEXT,
			source_title TEXT,
			arxiv_id TEXT,
			is_preprint INTEGER NOT NULL DEFAULT 0,
			preprint_source TEXT,
			abstract TEXT,
			abstract_source TEXT,
			abstract_no_retrieval_reason TEXT,
			is_oa INTEGER,
			oa_status TEXT,
			license TEXT,
			oa_pdf_url TEXT,
			manual_url_publisher TEXT,
			manual_url_repository TEXT,
			provenance TEXT,
			import_datetime TEXT NOT NULL,
			enrichment_datetime TEXT
		)`,

		`CREATE TABLE IF NOT EXISTS filtering_queries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			query TEXT NOT NULL,
			exclude_query TEXT,
			model TEXT,
			max_concurrent INTEGER,
			timestamp TEXT NOT NULL,
			total_records INTEGER NOT NULL DEFAULT 0,
			matched_count INTEGER NOT NULL DEFAULT 0,
			failed_count INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS records_filterings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			article_id INTEGER NOT NULL REFERENCES research_articles(id) ON DELETE CASCADE,
			filtering_query_id INTEGER NOT NULL REFERENCES filtering_queries(id) ON DELETE CASCADE,
			match_result INTEGER NOT NULL,
			explanation TEXT,
			decision_datetime TEXT NOT NULL,
			UNIQUE(article_id, filtering_query_id)
		)`,

		`CREATE TABLE IF NOT EXISTS article_versions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			preprint_id INTEGER NOT NULL REFERENCES research_articles(id) ON DELETE CASCADE,
			published_id INTEGER NOT NULL REFERENCES research_articles(id) ON DELETE CASCADE,
			discovery_source TEXT,
			link_datetime TEXT NOT NULL,
			UNIQUE(preprint_id, published_id),
			CHECK (preprint_id != published_id)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_research_articles_enrichment ON research_articles(enrichment_datetime)`,
		`CREATE INDEX IF NOT EXISTS idx_filtering_queries_timestamp ON filtering_queries(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_records_filterings_article ON records_filterings(article_id)`,
		`CREATE INDEX IF NOT EXISTS idx_records_filterings_query ON records_filterings(filtering_query_id)`,
		`CREATE INDEX IF NOT EXISTS idx_article_versions_preprint ON article_versions(preprint_id)`,
		`CREATE INDEX IF NOT EXISTS idx_article_versions_published ON article_versions(published_id)`,
	}
	for _, q := range queries {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// migrateV2 creates the file-artifact tables. The markdown CHECK
// constraint only exists on fresh databases; writes re-validate it in
// the application so upgraded databases behave the same.
func migrateV2(ctx context.Context, tx *sql.Tx) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS pdf_resolutions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			article_id INTEGER NOT NULL REFERENCES research_articles(id) ON DELETE CASCADE,
			filtering_query_id INTEGER REFERENCES filtering_queries(id) ON DELETE CASCADE,
			timestamp TEXT NOT NULL,
			candidates TEXT
		)`,

		`CREATE TABLE IF NOT EXISTS pdf_downloads (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			article_id INTEGER NOT NULL REFERENCES research_articles(id) ON DELETE CASCADE,
			filtering_query_id INTEGER REFERENCES filtering_queries(id) ON DELETE CASCADE,
			timestamp TEXT NOT NULL,
			url TEXT,
			source TEXT,
			status TEXT NOT NULL,
			pdf_local_path TEXT,
			sha1 TEXT,
			final_url TEXT,
			error_message TEXT,
			file_size_bytes INTEGER
		)`,

		`CREATE TABLE IF NOT EXISTS docx_versions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			article_id INTEGER NOT NULL REFERENCES research_articles(id) ON DELETE CASCADE,
			docx_local_path TEXT,
			retrieved_datetime TEXT NOT NULL,
			file_size_bytes INTEGER,
			error_message TEXT
		)`,

		`CREATE TABLE IF NOT EXISTS html_versions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			article_id INTEGER NOT NULL REFERENCES research_articles(id) ON DELETE CASCADE,
			url TEXT,
			html_local_path TEXT,
			retrieved_datetime TEXT NOT NULL,
			file_size_bytes INTEGER,
			error_message TEXT
		)`,

		`CREATE TABLE IF NOT EXISTS markdown_versions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			article_id INTEGER NOT NULL REFERENCES research_articles(id) ON DELETE CASCADE,
			source_type TEXT NOT NULL DEFAULT 'docx',
			docx_version_id INTEGER REFERENCES docx_versions(id) ON DELETE CASCADE,
			html_version_id INTEGER REFERENCES html_versions(id) ON DELETE CASCADE,
			variant TEXT NOT NULL,
			markdown_local_path TEXT,
			created_datetime TEXT NOT NULL,
			file_size_bytes INTEGER,
			error_message TEXT,
			CHECK (
				(source_type = 'docx' AND docx_version_id IS NOT NULL AND html_version_id IS NULL) OR
				(source_type = 'html' AND html_version_id IS NOT NULL AND docx_version_id IS NULL)
			)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_pdf_resolutions_article ON pdf_resolutions(article_id)`,
		`CREATE INDEX IF NOT EXISTS idx_pdf_resolutions_query ON pdf_resolutions(filtering_query_id)`,
		`CREATE INDEX IF NOT EXISTS idx_pdf_downloads_article ON pdf_downloads(article_id)`,
		`CREATE INDEX IF NOT EXISTS idx_pdf_downloads_query ON pdf_downloads(filtering_query_id)`,
		`CREATE INDEX IF NOT EXISTS idx_pdf_downloads_status ON pdf_downloads(status)`,
		`CREATE INDEX IF NOT EXISTS idx_docx_versions_article ON docx_versions(article_id)`,
		`CREATE INDEX IF NOT EXISTS idx_html_versions_article ON html_versions(article_id)`,
		`CREATE INDEX IF NOT EXISTS idx_markdown_versions_article ON markdown_versions(article_id)`,
		`CREATE INDEX IF NOT EXISTS idx_markdown_versions_docx ON markdown_versions(docx_version_id)`,
		`CREATE INDEX IF NOT EXISTS idx_markdown_versions_html ON markdown_versions(html_version_id)`,
	}
	for _, q := range queries {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// knownColumns lists columns that may be missing from databases created
// by earlier revisions. Additions default to NULL and never touch
// existing rows.
var knownColumns = map[string][]struct{ name, decl string }{
	"research_articles": {
		{"abstract_no_retrieval_reason", "abstract_no_retrieval_reason TEXT"},
		{"manual_url_publisher", "manual_url_publisher TEXT"},
		{"manual_url_repository", "manual_url_repository TEXT"},
	},
	"pdf_downloads": {
		{"file_size_bytes", "file_size_bytes INTEGER"},
		{"final_url", "final_url TEXT"},
	},
	"docx_versions": {
		{"file_size_bytes", "file_size_bytes INTEGER"},
	},
	"markdown_versions": {
		{"file_size_bytes", "file_size_bytes INTEGER"},
		{"html_version_id", "html_version_id INTEGER REFERENCES html_versions(id) ON DELETE CASCADE"},
		{"source_type", "source_type TEXT NOT NULL DEFAULT 'docx'"},
	},
}

// ensureColumns introspects each table and issues additive ALTERs for
// any known column that is missing.
func (s *Store) ensureColumns(ctx context.Context) error {
	for table, cols := range knownColumns {
		existing, err := s.tableColumns(ctx, table)
		if err != nil {
			return fmt.Errorf("introspect %s: %w", table, err)
		}
		for _, col := range cols {
			if _, ok := existing[col.name]; ok {
				continue
			}
			stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", table, col.decl)
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("add column %s.%s: %w", table, col.name, err)
			}
		}
	}
	return nil
}

func (s *Store) tableColumns(ctx context.Context, table string) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols := make(map[string]struct{})
	for rows.Next() {
		var (
			cid       int
			name      string
			typ       string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dfltValue, &pk); err != nil {
			return nil, err
		}
		cols[name] = struct{}{}
	}
	return cols, rows.Err()
}
