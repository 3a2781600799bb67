package localstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sagarc03/assetgate"
)

type postgresTags struct {
	pool  *pgxpool.Pool
	table string
}

func openPostgresTags(ctx context.Context, dsn, table string) (*postgresTags, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	repo := &postgresTags{pool: pool, table: table}

	if err := repo.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}

	if err := repo.validateSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("validate postgres schema: %w", err)
	}

	return repo, nil
}

func (r *postgresTags) quotedTable() string {
	return pgx.Identifier{r.table}.Sanitize()
}

func (r *postgresTags) Close() error {
	r.pool.Close()
	return nil
}

func (r *postgresTags) migrate(ctx context.Context) error {
	createSQL := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			object_key TEXT NOT NULL,
			position INTEGER NOT NULL,
			tag_key TEXT NOT NULL,
			tag_value TEXT NOT NULL,
			PRIMARY KEY (object_key, position)
		)
	`, r.quotedTable())

	if _, err := r.pool.Exec(ctx, createSQL); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	return nil
}

func (r *postgresTags) validateSchema(ctx context.Context) error {
	query := `
		SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
	`

	rows, err := r.pool.Query(ctx, query, r.table)
	if err != nil {
		return fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	actual := make(map[string]columnInfo)
	for rows.Next() {
		var name, dataType, nullable string
		if err := rows.Scan(&name, &dataType, &nullable); err != nil {
			return fmt.Errorf("scan column: %w", err)
		}
		actual[name] = columnInfo{dataType: strings.ToLower(dataType), isNullable: nullable == "YES"}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows: %w", err)
	}

	return compareSchema(r.table, actual)
}

func (r *postgresTags) Replace(ctx context.Context, key string, tags []assetgate.Tag) error {
	deleteSQL := fmt.Sprintf(`DELETE FROM %s WHERE object_key = $1`, r.quotedTable())
	insertSQL := fmt.Sprintf(
		`INSERT INTO %s (object_key, position, tag_key, tag_value) VALUES ($1, $2, $3, $4)`,
		r.quotedTable())

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, deleteSQL, key); err != nil {
			return fmt.Errorf("delete: %w", err)
		}
		for i, t := range tags {
			if _, err := tx.Exec(ctx, insertSQL, key, i, t.Key, t.Value); err != nil {
				return fmt.Errorf("insert: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace tags: %w", err)
	}
	return nil
}

func (r *postgresTags) List(ctx context.Context, key string) ([]assetgate.Tag, error) {
	query := fmt.Sprintf(
		`SELECT tag_key, tag_value FROM %s WHERE object_key = $1 ORDER BY position`,
		r.quotedTable())

	rows, err := r.pool.Query(ctx, query, key)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}

	tags, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (assetgate.Tag, error) {
		var t assetgate.Tag
		err := row.Scan(&t.Key, &t.Value)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	if tags == nil {
		tags = []assetgate.Tag{}
	}
	return tags, nil
}

func (r *postgresTags) Clear(ctx context.Context, key string) error {
	return r.Replace(ctx, key, nil)
}

func (r *postgresTags) Ping(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping tag repo: %w", err)
	}
	return nil
}
