// Package vectorstore keeps embedded text chunks in SQLite and ranks them
// by cosine similarity to a query.
package vectorstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// minChunkChars is the shortest chunk, ignoring surrounding whitespace,
// worth embedding.
const minChunkChars = 5

const embedBatchSize = 64

// ErrChunkTooShort is returned by AddChunk for near-empty chunks.
var ErrChunkTooShort = errors.New("chunk is too short")

// Store is the vector store used by the research loop and the ingestion
// commands.
type Store interface {
	AddChunk(ctx context.Context, content, id string, metadata map[string]string) error
	RemoveChunk(ctx context.Context, id string) error
	AddDocuments(ctx context.Context, dir string) (int, error)
	Retrieve(ctx context.Context, query string, topN int) ([]string, error)
	All(ctx context.Context) ([]string, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// SQLiteStore implements Store using SQLite. Vectors are stored as
// little-endian float32 blobs and ranked in process.
type SQLiteStore struct {
	db       *sql.DB
	embedder Embedder
	splitter *Splitter
	logger   *slog.Logger
}

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *SQLiteStore) { s.logger = l }
}

// WithSplitter overrides the default 1000/200 splitter.
func WithSplitter(sp *Splitter) Option {
	return func(s *SQLiteStore) { s.splitter = sp }
}

// Open opens (or creates) a SQLite database and runs migrations.
func Open(path string, embedder Embedder, opts ...Option) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("vector store: open: %w", err)
	}

	// Enable WAL mode for better concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("vector store: wal: %w", err)
	}

	s := &SQLiteStore{
		db:       db,
		embedder: embedder,
		splitter: NewSplitter(DefaultChunkSize, DefaultChunkOverlap),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS chunks (
			id         TEXT PRIMARY KEY,
			content    TEXT NOT NULL,
			metadata   TEXT NOT NULL DEFAULT '{}',
			embedding  BLOB NOT NULL,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		);
	`)
	if err != nil {
		return fmt.Errorf("vector store: migrate: %w", err)
	}
	return nil
}

// AddChunk embeds content and stores it under id, replacing any chunk with
// the same id.
func (s *SQLiteStore) AddChunk(ctx context.Context, content, id string, metadata map[string]string) error {
	if len(strings.TrimSpace(content)) < minChunkChars {
		return fmt.Errorf("vector store: add %q: %w", id, ErrChunkTooShort)
	}
	vecs, err := s.embedder.Embed(ctx, []string{content})
	if err != nil {
		return fmt.Errorf("vector store: add %q: %w", id, err)
	}
	if len(vecs) != 1 {
		return fmt.Errorf("vector store: add %q: expected 1 embedding, got %d", id, len(vecs))
	}
	return s.insert(ctx, s.db, id, content, metadata, vecs[0])
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLiteStore) insert(ctx context.Context, db execer, id, content string, metadata map[string]string, vec []float32) error {
	if metadata == nil {
		metadata = map[string]string{}
	}
	meta, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("vector store: metadata: %w", err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO chunks (id, content, metadata, embedding) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET content=excluded.content, metadata=excluded.metadata, embedding=excluded.embedding
	`, id, content, string(meta), encodeVector(vec))
	if err != nil {
		return fmt.Errorf("vector store: insert %q: %w", id, err)
	}
	return nil
}

// RemoveChunk deletes a chunk. Removing an unknown id is not an error.
func (s *SQLiteStore) RemoveChunk(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("vector store: remove %q: %w", id, err)
	}
	return nil
}

// AddDocuments loads every supported file under dir, splits it and stores
// the chunks. It returns the number of chunks added.
func (s *SQLiteStore) AddDocuments(ctx context.Context, dir string) (int, error) {
	dir = filepath.Clean(dir)
	docs, err := LoadDir(dir, s.logger)
	if err != nil {
		return 0, fmt.Errorf("vector store: %w", err)
	}

	type pending struct {
		content string
		meta    map[string]string
	}
	var chunks []pending
	for _, d := range docs {
		for i, c := range s.splitter.Split(d.Content) {
			if len(strings.TrimSpace(c)) < minChunkChars {
				continue
			}
			meta := map[string]string{"source": d.Source, "dir": dir, "chunk": strconv.Itoa(i)}
			if d.Row >= 0 {
				meta["row"] = strconv.Itoa(d.Row)
			}
			chunks = append(chunks, pending{content: c, meta: meta})
		}
	}
	s.logger.Info("loaded documents", "dir", dir, "documents", len(docs), "chunks", len(chunks))

	added := 0
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := min(start+embedBatchSize, len(chunks))
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.content
		}
		vecs, err := s.embedder.Embed(ctx, texts)
		if err != nil {
			return added, fmt.Errorf("vector store: embed batch: %w", err)
		}
		if len(vecs) != len(batch) {
			return added, fmt.Errorf("vector store: expected %d embeddings, got %d", len(batch), len(vecs))
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return added, fmt.Errorf("vector store: begin: %w", err)
		}
		for i, c := range batch {
			if err := s.insert(ctx, tx, uuid.NewString(), c.content, c.meta, vecs[i]); err != nil {
				tx.Rollback()
				return added, err
			}
		}
		if err := tx.Commit(); err != nil {
			return added, fmt.Errorf("vector store: commit: %w", err)
		}
		added += len(batch)
	}
	return added, nil
}

// RemoveDir deletes every chunk ingested from dir and returns how many
// were removed. Chunks are matched on the cleaned directory they were loaded
// from, or on a source path inside dir for chunks stored without one.
func (s *SQLiteStore) RemoveDir(ctx context.Context, dir string) (int, error) {
	dir = filepath.Clean(dir)
	prefix := dir
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM chunks
		 WHERE json_extract(metadata, '$.dir') = ?
		    OR (json_extract(metadata, '$.dir') IS NULL
		        AND instr(json_extract(metadata, '$.source'), ?) = 1)`,
		dir, prefix)
	if err != nil {
		return 0, fmt.Errorf("vector store: remove dir %q: %w", dir, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("vector store: remove dir %q: %w", dir, err)
	}
	return int(n), nil
}

// Retrieve returns the contents of the topN chunks most similar to query.
func (s *SQLiteStore) Retrieve(ctx context.Context, query string, topN int) ([]string, error) {
	if topN <= 0 {
		return nil, nil
	}
	vecs, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("vector store: embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("vector store: expected 1 embedding, got %d", len(vecs))
	}
	q := vecs[0]

	rows, err := s.db.QueryContext(ctx, `SELECT content, embedding FROM chunks`)
	if err != nil {
		return nil, fmt.Errorf("vector store: retrieve: %w", err)
	}
	defer rows.Close()

	type scored struct {
		content string
		score   float32
	}
	var results []scored
	for rows.Next() {
		var content string
		var blob []byte
		if err := rows.Scan(&content, &blob); err != nil {
			return nil, fmt.Errorf("vector store: scan: %w", err)
		}
		results = append(results, scored{content: content, score: cosineSimilarity(q, decodeVector(blob))})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vector store: retrieve: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].score > results[j].score })
	if len(results) > topN {
		results = results[:topN]
	}
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.content
	}
	return out, nil
}

// All returns the contents of every chunk in insertion order.
func (s *SQLiteStore) All(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT content FROM chunks ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("vector store: all: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("vector store: scan: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Count returns the number of stored chunks.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("vector store: count: %w", err)
	}
	return n, nil
}

// Reset deletes every chunk.
func (s *SQLiteStore) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chunks`); err != nil {
		return fmt.Errorf("vector store: reset: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func encodeVector(v []float32) []byte {
	b := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(x))
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
