package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const postgresSchema = `
CREATE EXTENSION IF NOT EXISTS vector;
CREATE TABLE IF NOT EXISTS transcript_embeddings (
	collection TEXT NOT NULL,
	key        TEXT NOT NULL,
	record_id  TEXT NOT NULL,
	content    TEXT NOT NULL,
	metadata   JSONB NOT NULL,
	embedding  vector NOT NULL,
	PRIMARY KEY (collection, key)
);
CREATE INDEX IF NOT EXISTS idx_transcript_embeddings_id ON transcript_embeddings(collection, record_id);
`

// Postgres stores collections in one pgvector table and ranks with the
// cosine distance operator.
type Postgres struct {
	db *sql.DB
}

func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Close() error { return p.db.Close() }

func (p *Postgres) Upsert(ctx context.Context, collection string, recs []Record) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	for _, r := range recs {
		md, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("record %s: encode metadata: %w", r.Key, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO transcript_embeddings (collection, key, record_id, content, metadata, embedding)
			VALUES ($1, $2, $3, $4, $5::jsonb, $6::vector)
			ON CONFLICT (collection, key) DO UPDATE SET
				record_id = EXCLUDED.record_id,
				content   = EXCLUDED.content,
				metadata  = EXCLUDED.metadata,
				embedding = EXCLUDED.embedding`,
			collection, r.Key, r.ID, r.Content, string(md), vectorLiteral(r.Embedding))
		if err != nil {
			return fmt.Errorf("record %s: %w", r.Key, err)
		}
	}
	return tx.Commit()
}

func (p *Postgres) Count(ctx context.Context, collection string) (int, error) {
	var n int
	err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transcript_embeddings WHERE collection = $1`, collection).Scan(&n)
	return n, err
}

func (p *Postgres) Nearest(ctx context.Context, collection string, query []float32, scope Scope) ([]Candidate, error) {
	if scope.Restrict && len(scope.IDs) == 0 {
		return nil, nil
	}

	args := []any{vectorLiteral(query), collection}
	q := `SELECT key, record_id, content, metadata::text, embedding::text,
			1 - (embedding <=> $1::vector) AS score
		FROM transcript_embeddings
		WHERE collection = $2`
	if scope.Restrict {
		args = append(args, scope.IDs)
		q += ` AND record_id = ANY($3)`
	}
	q += ` ORDER BY embedding <=> $1::vector, key`
	if scope.Limit > 0 {
		q += ` LIMIT ` + strconv.Itoa(scope.Limit)
	}

	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("nearest: %w", err)
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var (
			c       Candidate
			md, vec string
		)
		if err := rows.Scan(&c.Key, &c.ID, &c.Content, &md, &vec, &c.Score); err != nil {
			return nil, fmt.Errorf("nearest: scan: %w", err)
		}
		if err := json.Unmarshal([]byte(md), &c.Metadata); err != nil {
			return nil, fmt.Errorf("record %s: decode metadata: %w", c.Key, err)
		}
		if c.Embedding, err = parseVector(vec); err != nil {
			return nil, fmt.Errorf("record %s: %w", c.Key, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// vectorLiteral renders v in pgvector text form: [1,2,3].
func vectorLiteral(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

func parseVector(s string) ([]float32, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float32, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("parse vector: %w", err)
		}
		out[i] = float32(f)
	}
	return out, nil
}
