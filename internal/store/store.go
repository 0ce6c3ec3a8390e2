// Package store implements the Store (spec §4.1): the single persisted,
// cross-component source of truth for indexed files, symbols, import edges,
// VCS churn signals, and full-text content search. All writes are serialised
// through the Indexer; every other component only reads.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // database/sql driver registration

	ctxerrors "github.com/standardbeagle/ctxpack/internal/errors"
	"github.com/standardbeagle/ctxpack/internal/types"
)

// Store wraps the project's index.db connection.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the SQLite database at dbPath, applies the
// pragmas required by spec §5 (WAL journalling, foreign-key cascades), and
// runs any pending schema migrations.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, ctxerrors.NewStoreError("open", dbPath, err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, ctxerrors.NewStoreError("open", dbPath, err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite: serialise writers through one connection

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA synchronous=NORMAL;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(context.Background(), p); err != nil {
			_ = db.Close()
			return nil, ctxerrors.NewStoreError("pragma", dbPath, err)
		}
	}
	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

const schemaVersionTable = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY,
	applied_at TEXT NOT NULL
);
`

// migrations is an ordered list of schema changes, applied transactionally
// starting from the lowest version not yet recorded. Never modify an
// existing entry; only append.
var migrations = []func(*sql.Tx) error{
	migrateV0,
}

func migrateV0(tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS files (
			path TEXT PRIMARY KEY,
			language TEXT NOT NULL DEFAULT '',
			size INTEGER NOT NULL DEFAULT 0,
			mod_time INTEGER NOT NULL DEFAULT 0,
			hash TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS symbols (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			file_path TEXT NOT NULL,
			name TEXT NOT NULL,
			kind TEXT NOT NULL,
			start_line INTEGER NOT NULL,
			end_line INTEGER NOT NULL,
			signature TEXT NOT NULL DEFAULT '',
			FOREIGN KEY(file_path) REFERENCES files(path) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_symbols_file ON symbols(file_path);`,
		`CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(name);`,
		`CREATE TABLE IF NOT EXISTS imports (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source TEXT NOT NULL,
			target TEXT NOT NULL,
			symbol TEXT NOT NULL DEFAULT '',
			FOREIGN KEY(source) REFERENCES files(path) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_imports_source ON imports(source);`,
		`CREATE INDEX IF NOT EXISTS idx_imports_target ON imports(target);`,
		`CREATE TABLE IF NOT EXISTS vcs_signals (
			file_path TEXT PRIMARY KEY,
			last_modified TEXT NOT NULL DEFAULT '',
			commit_count INTEGER NOT NULL DEFAULT 0,
			churn_score REAL NOT NULL DEFAULT 0,
			FOREIGN KEY(file_path) REFERENCES files(path) ON DELETE CASCADE
		);`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS content_fts USING fts5(
			path,
			content,
			tokenize="unicode61 tokenchars '_.'"
		);`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(context.Background(), stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

func ensureSchema(db *sql.DB) error {
	if _, err := db.ExecContext(context.Background(), schemaVersionTable); err != nil {
		return ctxerrors.NewStoreError("migrate", "", fmt.Errorf("create schema_version: %w", err))
	}
	var current int
	row := db.QueryRowContext(context.Background(), "SELECT COALESCE(MAX(version), -1) FROM schema_version")
	if err := row.Scan(&current); err != nil {
		return ctxerrors.NewStoreError("migrate", "", fmt.Errorf("read schema_version: %w", err))
	}
	for v := current + 1; v < len(migrations); v++ {
		if err := runMigration(db, v); err != nil {
			return ctxerrors.NewStoreError("migrate", "", fmt.Errorf("migration %d: %w", v, err))
		}
	}
	return nil
}

func runMigration(db *sql.DB, version int) error {
	tx, err := db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := migrations[version](tx); err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.ExecContext(context.Background(), "INSERT INTO schema_version(version, applied_at) VALUES(?, ?)", version, now); err != nil {
		return err
	}
	return tx.Commit()
}

// UpsertFile inserts or replaces a FileRecord by path.
func (s *Store) UpsertFile(ctx context.Context, f types.FileRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO files(path, language, size, mod_time, hash) VALUES(?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET language=excluded.language, size=excluded.size,
			mod_time=excluded.mod_time, hash=excluded.hash
	`, f.Path, f.Language, f.Size, f.ModTime, f.Hash)
	if err != nil {
		return ctxerrors.NewStoreError("upsertFile", f.Path, err)
	}
	return nil
}

// GetFile looks up one file by path. found is false if absent.
func (s *Store) GetFile(ctx context.Context, path string) (rec types.FileRecord, found bool, err error) {
	row := s.db.QueryRowContext(ctx, `SELECT path, language, size, mod_time, hash FROM files WHERE path = ?`, path)
	if scanErr := row.Scan(&rec.Path, &rec.Language, &rec.Size, &rec.ModTime, &rec.Hash); scanErr != nil {
		if scanErr == sql.ErrNoRows {
			return types.FileRecord{}, false, nil
		}
		return types.FileRecord{}, false, ctxerrors.NewStoreError("getFile", path, scanErr)
	}
	return rec, true, nil
}

// GetAllFiles returns every indexed FileRecord, ordered by path.
func (s *Store) GetAllFiles(ctx context.Context) ([]types.FileRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path, language, size, mod_time, hash FROM files ORDER BY path`)
	if err != nil {
		return nil, ctxerrors.NewStoreError("getAllFiles", "", err)
	}
	defer rows.Close()

	var out []types.FileRecord
	for rows.Next() {
		var rec types.FileRecord
		if err := rows.Scan(&rec.Path, &rec.Language, &rec.Size, &rec.ModTime, &rec.Hash); err != nil {
			return nil, ctxerrors.NewStoreError("getAllFiles", "", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DeleteFile removes a file and everything that cascades from it (symbols,
// imports with it as source, vcs signal, and its content_fts row, which FTS5
// does not cascade-delete on its own).
func (s *Store) DeleteFile(ctx context.Context, path string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ctxerrors.NewStoreError("deleteFile", path, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM content_fts WHERE path = ?`, path); err != nil {
		return ctxerrors.NewStoreError("deleteFile", path, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM files WHERE path = ?`, path); err != nil {
		return ctxerrors.NewStoreError("deleteFile", path, err)
	}
	if err := tx.Commit(); err != nil {
		return ctxerrors.NewStoreError("deleteFile", path, err)
	}
	return nil
}

// InsertSymbol adds one symbol row, returning its assigned id.
func (s *Store) InsertSymbol(ctx context.Context, sym types.Symbol) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO symbols(file_path, name, kind, start_line, end_line, signature)
		VALUES(?, ?, ?, ?, ?, ?)
	`, sym.FilePath, sym.Name, string(sym.Kind), sym.StartLine, sym.EndLine, sym.Signature)
	if err != nil {
		return 0, ctxerrors.NewStoreError("insertSymbol", sym.FilePath, err)
	}
	return res.LastInsertId()
}

// GetSymbolsByFile returns every symbol belonging to path, ordered by start line.
func (s *Store) GetSymbolsByFile(ctx context.Context, path string) ([]types.Symbol, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, file_path, name, kind, start_line, end_line, signature
		FROM symbols WHERE file_path = ? ORDER BY start_line
	`, path)
	if err != nil {
		return nil, ctxerrors.NewStoreError("getSymbolsByFile", path, err)
	}
	defer rows.Close()
	return scanSymbols(rows)
}

// FindSymbolsByName does a case-insensitive substring search over symbol names.
func (s *Store) FindSymbolsByName(ctx context.Context, substr string) ([]types.Symbol, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, file_path, name, kind, start_line, end_line, signature
		FROM symbols WHERE name LIKE ? ESCAPE '\' ORDER BY file_path, start_line
	`, "%"+escapeLike(substr)+"%")
	if err != nil {
		return nil, ctxerrors.NewStoreError("findSymbolsByName", substr, err)
	}
	defer rows.Close()
	return scanSymbols(rows)
}

func scanSymbols(rows *sql.Rows) ([]types.Symbol, error) {
	var out []types.Symbol
	for rows.Next() {
		var sym types.Symbol
		var kind string
		if err := rows.Scan(&sym.ID, &sym.FilePath, &sym.Name, &kind, &sym.StartLine, &sym.EndLine, &sym.Signature); err != nil {
			return nil, ctxerrors.NewStoreError("scanSymbols", "", err)
		}
		sym.Kind = types.SymbolKind(kind)
		out = append(out, sym)
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// InsertImport adds one directed import edge, returning its assigned id.
func (s *Store) InsertImport(ctx context.Context, edge types.ImportEdge) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO imports(source, target, symbol) VALUES(?, ?, ?)
	`, edge.Source, edge.Target, edge.Symbol)
	if err != nil {
		return 0, ctxerrors.NewStoreError("insertImport", edge.Source, err)
	}
	return res.LastInsertId()
}

// GetImportsFrom returns every edge whose source is path (path's dependencies).
func (s *Store) GetImportsFrom(ctx context.Context, path string) ([]types.ImportEdge, error) {
	return s.queryImports(ctx, `SELECT id, source, target, symbol FROM imports WHERE source = ?`, path)
}

// GetImportersOf returns every edge whose target is path (path's dependents).
func (s *Store) GetImportersOf(ctx context.Context, path string) ([]types.ImportEdge, error) {
	return s.queryImports(ctx, `SELECT id, source, target, symbol FROM imports WHERE target = ?`, path)
}

func (s *Store) queryImports(ctx context.Context, query, path string) ([]types.ImportEdge, error) {
	rows, err := s.db.QueryContext(ctx, query, path)
	if err != nil {
		return nil, ctxerrors.NewStoreError("queryImports", path, err)
	}
	defer rows.Close()
	var out []types.ImportEdge
	for rows.Next() {
		var e types.ImportEdge
		if err := rows.Scan(&e.ID, &e.Source, &e.Target, &e.Symbol); err != nil {
			return nil, ctxerrors.NewStoreError("queryImports", path, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ClearImportsForFile removes every edge sourced from path, ahead of
// re-extracting its imports during re-indexing.
func (s *Store) ClearImportsForFile(ctx context.Context, path string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM imports WHERE source = ?`, path); err != nil {
		return ctxerrors.NewStoreError("clearImportsForFile", path, err)
	}
	return nil
}

// ClearSymbolsForFile deletes every symbol row belonging to path, so a
// re-index can insert a fresh set without leaving stale symbols from a
// since-removed declaration behind.
func (s *Store) ClearSymbolsForFile(ctx context.Context, path string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM symbols WHERE file_path = ?`, path); err != nil {
		return ctxerrors.NewStoreError("clearSymbolsForFile", path, err)
	}
	return nil
}

// UpsertVcsSignal inserts or replaces a file's churn metadata.
func (s *Store) UpsertVcsSignal(ctx context.Context, v types.VcsSignal) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO vcs_signals(file_path, last_modified, commit_count, churn_score) VALUES(?, ?, ?, ?)
		ON CONFLICT(file_path) DO UPDATE SET last_modified=excluded.last_modified,
			commit_count=excluded.commit_count, churn_score=excluded.churn_score
	`, v.FilePath, v.LastModified, v.CommitCount, v.ChurnScore)
	if err != nil {
		return ctxerrors.NewStoreError("upsertVcsSignal", v.FilePath, err)
	}
	return nil
}

// GetVcsSignal looks up one file's churn metadata. found is false if absent.
func (s *Store) GetVcsSignal(ctx context.Context, path string) (v types.VcsSignal, found bool, err error) {
	row := s.db.QueryRowContext(ctx, `SELECT file_path, last_modified, commit_count, churn_score FROM vcs_signals WHERE file_path = ?`, path)
	if scanErr := row.Scan(&v.FilePath, &v.LastModified, &v.CommitCount, &v.ChurnScore); scanErr != nil {
		if scanErr == sql.ErrNoRows {
			return types.VcsSignal{}, false, nil
		}
		return types.VcsSignal{}, false, ctxerrors.NewStoreError("getVcsSignal", path, scanErr)
	}
	return v, true, nil
}

// IndexFileContent (re)indexes path's full text for FTS search. FTS5 has no
// unique constraint, so any prior row for path is removed first.
func (s *Store) IndexFileContent(ctx context.Context, path, content string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ctxerrors.NewStoreError("indexFileContent", path, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM content_fts WHERE path = ?`, path); err != nil {
		return ctxerrors.NewStoreError("indexFileContent", path, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO content_fts(path, content) VALUES(?, ?)`, path, content); err != nil {
		return ctxerrors.NewStoreError("indexFileContent", path, err)
	}
	if err := tx.Commit(); err != nil {
		return ctxerrors.NewStoreError("indexFileContent", path, err)
	}
	return nil
}

// ContentHit is one FTS match, best-first by bm25 rank.
type ContentHit struct {
	Path string
	Rank float64
}

// SearchContent runs query against the content FTS index, returning up to
// limit (path, rank) hits ordered best-first. The query surface tolerates
// punctuation (tokens like "test()" or embedded quotes never fail) because
// the raw query is always wrapped as a single escaped FTS phrase.
func (s *Store) SearchContent(ctx context.Context, query string, limit int) ([]ContentHit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT path, bm25(content_fts) AS rank FROM content_fts
		WHERE content_fts MATCH ? ORDER BY rank LIMIT ?
	`, sanitizeFTSQuery(query), limit)
	if err != nil {
		return nil, ctxerrors.NewStoreError("searchContent", query, err)
	}
	defer rows.Close()

	var out []ContentHit
	for rows.Next() {
		var h ContentHit
		if err := rows.Scan(&h.Path, &h.Rank); err != nil {
			return nil, ctxerrors.NewStoreError("searchContent", query, err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// sanitizeFTSQuery wraps the trimmed query as a single quoted FTS5 phrase so
// that reserved characters and stray punctuation in the input (parentheses,
// quotes, colons) never trip the MATCH grammar.
func sanitizeFTSQuery(q string) string {
	trimmed := strings.TrimSpace(q)
	trimmed = strings.ReplaceAll(trimmed, `"`, `""`)
	return `"` + trimmed + `"`
}

// Clear wipes every table, used by `ctxpack index --clean` and tests.
func (s *Store) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ctxerrors.NewStoreError("clear", "", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmts := []string{
		`DELETE FROM content_fts`,
		`DELETE FROM vcs_signals`,
		`DELETE FROM imports`,
		`DELETE FROM symbols`,
		`DELETE FROM files`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return ctxerrors.NewStoreError("clear", "", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return ctxerrors.NewStoreError("clear", "", err)
	}
	return nil
}

// Stats summarises the current index size.
type Stats struct {
	FileCount   int
	SymbolCount int
	ImportCount int
	VcsCount    int
}

// Stats reports row counts across the core tables.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	queries := []struct {
		dst   *int
		query string
	}{
		{&st.FileCount, `SELECT COUNT(*) FROM files`},
		{&st.SymbolCount, `SELECT COUNT(*) FROM symbols`},
		{&st.ImportCount, `SELECT COUNT(*) FROM imports`},
		{&st.VcsCount, `SELECT COUNT(*) FROM vcs_signals`},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dst); err != nil {
			return Stats{}, ctxerrors.NewStoreError("stats", "", err)
		}
	}
	return st, nil
}
