package localstore

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/sagarc03/assetgate"

	_ "modernc.org/sqlite" // SQLite driver
)

// DefaultTagTable is the table object tags are kept in when none is configured.
const DefaultTagTable = "asset_tags"

var validTableNameRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// IsValidTableName checks if a table name is valid (lowercase, alphanumeric with underscores, max 63 chars).
func IsValidTableName(name string) bool {
	return validTableNameRegex.MatchString(name) && len(name) <= 63
}

func quoteIdentifier(name string) string {
	return `"` + name + `"`
}

// TagRepo persists object tags, preserving insertion order per object.
type TagRepo interface {
	// Replace swaps the complete tag set of key for tags atomically.
	Replace(ctx context.Context, key string, tags []assetgate.Tag) error
	// List returns the tags of key in the order they were written. Keys with
	// no tags yield an empty, non-nil slice.
	List(ctx context.Context, key string) ([]assetgate.Tag, error)
		Clear(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// IsPostgresDSN reports whether dsn is a postgres:// or postgresql:// URL.
func IsPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// OpenTagRepo opens the tag database at dsn, creates the tag table if needed
// and validates its schema. Postgres URLs are served by pgx, anything else is
// taken as a SQLite data source.
func OpenTagRepo(ctx context.Context, dsn, table string) (TagRepo, error) {
	if table == "" {
		table = DefaultTagTable
	}
	if !IsValidTableName(table) {
		return nil, fmt.Errorf("open tag repo: invalid table name: %s (must match ^[a-z_][a-z0-9_]*$ and be <= 63 chars)", table)
	}

	if IsPostgresDSN(dsn) {
		return openPostgresTags(ctx, dsn, table)
	}
	return openSQLiteTags(ctx, dsn, table)
}

type columnInfo struct {
	dataType   string
	isNullable bool
}

var tagTableSchema = map[string]columnInfo{
	"object_key": {"text", false},
	"position":   {"integer", false},
	"tag_key":    {"text", false},
	"tag_value":  {"text", false},
}

func compareSchema(table string, actual map[string]columnInfo) error {
	if len(actual) == 0 {
		return fmt.Errorf("table %s does not exist", table)
	}

	var problems []string
	for name, want := range tagTableSchema {
		got, ok := actual[name]
		switch {
		case !ok:
			problems = append(problems, "missing column "+name)
		case got.dataType != want.dataType:
			problems = append(problems, fmt.Sprintf("%s: expected %s, got %s", name, want.dataType, got.dataType))
		case got.isNullable != want.isNullable:
			problems = append(problems, fmt.Sprintf("%s: expected nullable=%v, got nullable=%v", name, want.isNullable, got.isNullable))
		}
	}

	if len(problems) > 0 {
		slices.Sort(problems)
		return fmt.Errorf("table %s schema validation failed: %s", table, strings.Join(problems, "; "))
	}
	return nil
}

type sqliteTags struct {
	db    *sql.DB
	table string
}

func openSQLiteTags(ctx context.Context, dsn, table string) (*sqliteTags, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// in-memory databases exist per connection
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	repo := &sqliteTags{db: db, table: table}

	if err := repo.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}

	if err := repo.validateSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("validate sqlite schema: %w", err)
	}

	return repo, nil
}

func (r *sqliteTags) Close() error {
	return r.db.Close()
}

func (r *sqliteTags) migrate(ctx context.Context) error {
	quoted := quoteIdentifier(r.table)
	createSQL := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			object_key TEXT NOT NULL,
			position INTEGER NOT NULL,
			tag_key TEXT NOT NULL,
			tag_value TEXT NOT NULL,
			PRIMARY KEY (object_key, position)
		)
	`, quoted)

	if _, err := r.db.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	return nil
}

func (r *sqliteTags) validateSchema(ctx context.Context) error {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s)`, quoteIdentifier(r.table)))
	if err != nil {
		return fmt.Errorf("query columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	actual := make(map[string]columnInfo)
	for rows.Next() {
		var (
			cid, notNull, pk int
			name, dataType   string
			dflt             sql.NullString
		)
		if err := rows.Scan(&cid, &name, &dataType, &notNull, &dflt, &pk); err != nil {
			return fmt.Errorf("scan column: %w", err)
		}
		actual[name] = columnInfo{dataType: strings.ToLower(dataType), isNullable: notNull == 0 && pk == 0}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows: %w", err)
	}

	return compareSchema(r.table, actual)
}

func (r *sqliteTags) Replace(ctx context.Context, key string, tags []assetgate.Tag) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace tags: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	deleteSQL := fmt.Sprintf(`DELETE FROM %s WHERE object_key = ?`, quoteIdentifier(r.table)) //nolint:gosec // table name is validated
	if _, err = tx.ExecContext(ctx, deleteSQL, key); err != nil {
		return fmt.Errorf("replace tags: delete: %w", err)
	}

	insertSQL := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`INSERT INTO %s (object_key, position, tag_key, tag_value) VALUES (?, ?, ?, ?)`,
		quoteIdentifier(r.table))
	for i, t := range tags {
		if _, err = tx.ExecContext(ctx, insertSQL, key, i, t.Key, t.Value); err != nil {
			return fmt.Errorf("replace tags: insert: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("replace tags: commit: %w", err)
	}
	return nil
}

func (r *sqliteTags) List(ctx context.Context, key string) ([]assetgate.Tag, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT tag_key, tag_value FROM %s WHERE object_key = ? ORDER BY position`,
		quoteIdentifier(r.table))

	rows, err := r.db.QueryContext(ctx, query, key)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tags := []assetgate.Tag{}
	for rows.Next() {
		var t assetgate.Tag
		if err := rows.Scan(&t.Key, &t.Value); err != nil {
			return nil, fmt.Errorf("list tags: scan: %w", err)
		}
		tags = append(tags, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tags: rows: %w", err)
	}
	return tags, nil
}

func (r *sqliteTags) Clear(ctx context.Context, key string) error {
	return r.Replace(ctx, key, nil)
}

func (r *sqliteTags) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping tag repo: %w", err)
	}
	return nil
}
