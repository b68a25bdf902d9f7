package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Postgres stores documents in a single jsonb table.
type Postgres struct {
	db dbtx
}

// NewPostgres constructs a Postgres backed store.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{db: pool}
}

// timestampPattern matches RFC 3339 text, which sorts as timestamptz.
const timestampPattern = `^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:\d{2})$`

var schema = []string{`CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id TEXT NOT NULL,
	body JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (collection, id)
)`,
	`CREATE INDEX IF NOT EXISTS documents_body_idx ON documents USING GIN (body jsonb_path_ops)`,
}

// Migrate creates the documents table when missing.
func (p *Postgres) Migrate(ctx context.Context) error {
	if p == nil {
		return errors.New("docstore: postgres store not initialised")
	}
	for _, stmt := range schema {
		if _, err := p.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("docstore: migrate: %w", err)
		}
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, collection, id string) (Document, error) {
	var doc Document
	var body []byte
	err := p.db.QueryRow(ctx, `SELECT id, body, updated_at FROM documents WHERE collection=$1 AND id=$2`, collection, id).
		Scan(&doc.ID, &body, &doc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, fmt.Errorf("docstore: get %s/%s: %w", collection, id, err)
	}
	doc.Body = body
	return doc, nil
}

func (p *Postgres) Put(ctx context.Context, collection, id string, body json.RawMessage) error {
	_, err := p.db.Exec(ctx, `INSERT INTO documents (collection, id, body, updated_at)
VALUES ($1,$2,$3,$4)
ON CONFLICT (collection, id) DO UPDATE SET body=EXCLUDED.body, updated_at=EXCLUDED.updated_at`,
		collection, id, []byte(body), time.Now().UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "22P02" {
			return fmt.Errorf("docstore: put %s/%s: invalid json body: %w", collection, id, err)
		}
		return fmt.Errorf("docstore: put %s/%s: %w", collection, id, err)
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, collection, id string) error {
	if _, err := p.db.Exec(ctx, `DELETE FROM documents WHERE collection=$1 AND id=$2`, collection, id); err != nil {
		return fmt.Errorf("docstore: delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func (p *Postgres) List(ctx context.Context, collection string, q Query) ([]Document, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	sql, args := buildListSQL(collection, q)
	rows, err := p.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("docstore: list %s: %w", collection, err)
	}
	defer rows.Close()
	docs := []Document{}
	for rows.Next() {
		var doc Document
		var body []byte
		if err := rows.Scan(&doc.ID, &body, &doc.UpdatedAt); err != nil {
			return nil, err
		}
		doc.Body = body
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

func buildListSQL(collection string, q Query) (string, []any) {
	var sb strings.Builder
	args := []any{collection}
	sb.WriteString(`SELECT id, body, updated_at FROM documents WHERE collection=$1`)

	fields := make([]string, 0, len(q.Filter))
	for field := range q.Filter {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		args = append(args, field, q.Filter[field])
		fmt.Fprintf(&sb, ` AND body->>$%d = $%d`, len(args)-1, len(args))
	}

	if q.OrderBy != "" {
		args = append(args, q.OrderBy)
		dir := "ASC"
		if q.Desc {
			dir = "DESC"
		}
		n := len(args)
		fmt.Fprintf(&sb, ` ORDER BY (CASE WHEN jsonb_typeof(body->$%d) = 'number' THEN (body->>$%d)::numeric END) %s,`+
			` (CASE WHEN body->>$%d ~ '%s' THEN (body->>$%d)::timestamptz END) %s, body->>$%d %s, id ASC`,
			n, n, dir, n, timestampPattern, n, dir, n, dir)
	} else {
		sb.WriteString(` ORDER BY id ASC`)
	}
	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&sb, ` LIMIT $%d`, len(args))
	}
	return sb.String(), args
}
