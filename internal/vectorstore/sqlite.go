package vectorstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS records (
	collection TEXT NOT NULL,
	key        TEXT NOT NULL,
	record_id  TEXT NOT NULL,
	content    TEXT NOT NULL,
	metadata   TEXT NOT NULL,
	embedding  BLOB NOT NULL,
	PRIMARY KEY (collection, key)
);
CREATE INDEX IF NOT EXISTS idx_records_id ON records(collection, record_id);
`

// sqlite caps bound parameters per statement
const maxInList = 500

// SQLite keeps every collection in one local database file. Ranking is done
// in Go over the rows in scope.
type SQLite struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	// one writer at a time; WAL lets readers proceed
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite pragmas: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) Upsert(ctx context.Context, collection string, recs []Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (collection, key, record_id, content, metadata, embedding)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection, key) DO UPDATE SET
			record_id = excluded.record_id,
			content   = excluded.content,
			metadata  = excluded.metadata,
			embedding = excluded.embedding`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range recs {
		md, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("record %s: encode metadata: %w", r.Key, err)
		}
		if _, err := stmt.ExecContext(ctx, collection, r.Key, r.ID, r.Content, string(md), encodeVector(r.Embedding)); err != nil {
			return fmt.Errorf("record %s: %w", r.Key, err)
		}
	}
	return tx.Commit()
}

func (s *SQLite) Count(ctx context.Context, collection string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE collection = ?`, collection).Scan(&n)
	return n, err
}

func (s *SQLite) Nearest(ctx context.Context, collection string, query []float32, scope Scope) ([]Candidate, error) {
	if scope.Restrict && len(scope.IDs) == 0 {
		return nil, nil
	}

	var cands []Candidate
	if !scope.Restrict {
		if err := s.scan(ctx, query, &cands, `SELECT key, record_id, content, metadata, embedding FROM records WHERE collection = ?`, collection); err != nil {
			return nil, err
		}
	} else {
		for start := 0; start < len(scope.IDs); start += maxInList {
			ids := scope.IDs[start:min(start+maxInList, len(scope.IDs))]
			args := make([]any, 0, len(ids)+1)
			args = append(args, collection)
			for _, id := range ids {
				args = append(args, id)
			}
			q := `SELECT key, record_id, content, metadata, embedding FROM records
				WHERE collection = ? AND record_id IN (?` + strings.Repeat(",?", len(ids)-1) + `)`
			if err := s.scan(ctx, query, &cands, q, args...); err != nil {
				return nil, err
			}
		}
	}

	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].Score != cands[j].Score {
			return cands[i].Score > cands[j].Score
		}
		return cands[i].Key < cands[j].Key
	})
	if scope.Limit > 0 && len(cands) > scope.Limit {
		cands = cands[:scope.Limit]
	}
	return cands, nil
}

func (s *SQLite) scan(ctx context.Context, query []float32, out *[]Candidate, q string, args ...any) error {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r    Record
			md   string
			blob []byte
		)
		if err := rows.Scan(&r.Key, &r.ID, &r.Content, &md, &blob); err != nil {
			return err
		}
		if err := json.Unmarshal([]byte(md), &r.Metadata); err != nil {
			return fmt.Errorf("record %s: decode metadata: %w", r.Key, err)
		}
		r.Embedding = decodeVector(blob)
		*out = append(*out, Candidate{Record: r, Score: Cosine(query, r.Embedding)})
	}
	return rows.Err()
}

// encodeVector stores a vector as little-endian float32s.
func encodeVector(v []float32) []byte {
	b := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(f))
	}
	return b
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}
