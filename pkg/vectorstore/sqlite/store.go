// Package sqlite persists a vector index collection in <dir>/index.db.
// Vectors are held in memory and searched by brute force. Every write bumps
// the collection version, and readers reload when the version they hold is
// stale, so a server sees chunks another process ingested after it opened.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // SQLite driver

	"research-assistant-be/pkg/store"
	"research-assistant-be/pkg/vectorstore"
	"research-assistant-be/pkg/vectorstore/sqlite/migrations"
)

const dbFileName = "index.db"

type Store struct {
	db         *sql.DB
	path       string
	collection string

	mu        sync.RWMutex
	dimension int
	records   []store.Record
	byID      map[string]int
	nextSeq   int64
	version   int64
}

var _ vectorstore.Store = (*Store)(nil)

// Open creates or reattaches to the named collection under dir.
func Open(ctx context.Context, dir, collection string) (*Store, error) {
	if strings.TrimSpace(collection) == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	dbPath := filepath.Join(dir, dbFileName)

	// WAL keeps readers unblocked while another process ingests
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:         db,
		path:       dbPath,
		collection: collection,
		byID:       make(map[string]int),
	}

	if err := s.migrate(ctx, migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	if err := s.attach(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.reload(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Collection() string {
	return s.collection
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context, fsys embed.FS) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}
	return nil
}

func (s *Store) attach(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO collections (name) VALUES (?) ON CONFLICT(name) DO NOTHING", s.collection); err != nil {
		return fmt.Errorf("creating collection: %w", err)
	}
	return nil
}

func (s *Store) storedVersion(ctx context.Context) (dimension int, version int64, err error) {
	row := s.db.QueryRowContext(ctx, "SELECT dimension, version FROM collections WHERE name = ?", s.collection)
	if err := row.Scan(&dimension, &version); err != nil {
		return 0, 0, fmt.Errorf("reading collection: %w", err)
	}
	return dimension, version, nil
}

// refresh reloads the collection when another writer has moved its version.
// Callers hold s.mu for writing.
func (s *Store) refresh(ctx context.Context) error {
	_, version, err := s.storedVersion(ctx)
	if err != nil {
		return err
	}
	if version == s.version {
		return nil
	}
	return s.reload(ctx)
}

// reload replaces the in-memory view with what is on disk.
func (s *Store) reload(ctx context.Context) error {
	dimension, version, err := s.storedVersion(ctx)
	if err != nil {
		return err
	}
	s.dimension = dimension
	s.version = -1 // stays stale until the rows below are in
	s.records = nil
	s.byID = make(map[string]int)
	s.nextSeq = 0

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, source, page_number, span_start, span_end, embedding, seq
		FROM chunks WHERE collection = ? ORDER BY seq`, s.collection)
	if err != nil {
		return fmt.Errorf("loading chunks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r    store.Record
			blob []byte
			seq  int64
		)
		if err := rows.Scan(&r.Chunk.ID, &r.Chunk.Text, &r.Chunk.Metadata.Source, &r.Chunk.Metadata.PageNumber,
			&r.Chunk.Span.Start, &r.Chunk.Span.End, &blob, &seq); err != nil {
			return fmt.Errorf("scanning chunk: %w", err)
		}
		r.Embedding = decodeEmbedding(blob)
		s.byID[r.Chunk.ID] = len(s.records)
		s.records = append(s.records, r)
		if seq >= s.nextSeq {
			s.nextSeq = seq + 1
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	s.version = version
	return nil
}

func (s *Store) Upsert(ctx context.Context, records []store.Record) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.refresh(ctx); err != nil {
		return err
	}

	dim := s.dimension
	for _, r := range records {
		if dim == 0 {
			dim = len(r.Embedding)
		}
		if len(r.Embedding) != dim || dim == 0 {
			return fmt.Errorf("%w: collection %q has %d, got %d",
				vectorstore.ErrDimensionMismatch, s.collection, dim, len(r.Embedding))
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	// matches nothing if another process fixed a different dimension meanwhile
	res, err := tx.ExecContext(ctx,
		"UPDATE collections SET dimension = ?, version = version + 1 WHERE name = ? AND dimension IN (0, ?)",
		dim, s.collection, dim)
	if err != nil {
		return fmt.Errorf("recording dimension: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil || n != 1 {
		return fmt.Errorf("%w: collection %q was created with another dimension", vectorstore.ErrDimensionMismatch, s.collection)
	}
	var version int64
	if err := tx.QueryRowContext(ctx, "SELECT version FROM collections WHERE name = ?", s.collection).Scan(&version); err != nil {
		return fmt.Errorf("reading version: %w", err)
	}
	var maxSeq int64
	if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(seq), -1) FROM chunks WHERE collection = ?", s.collection).Scan(&maxSeq); err != nil {
		return fmt.Errorf("reading sequence: %w", err)
	}
	if maxSeq >= s.nextSeq {
		s.nextSeq = maxSeq + 1
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (collection, id, text, source, page_number, span_start, span_end, embedding, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			text = excluded.text,
			source = excluded.source,
			page_number = excluded.page_number,
			span_start = excluded.span_start,
			span_end = excluded.span_end,
			embedding = excluded.embedding`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	seq := s.nextSeq
	for _, r := range records {
		c := r.Chunk
		if _, err := stmt.ExecContext(ctx, s.collection, c.ID, c.Text, c.Metadata.Source, c.Metadata.PageNumber,
			c.Span.Start, c.Span.End, encodeEmbedding(r.Embedding), seq); err != nil {
			return fmt.Errorf("upsert chunk %s: %w", c.ID, err)
		}
		seq++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	s.dimension = dim
	s.nextSeq = seq
	if version == s.version+1 {
		s.version = version
	} else {
		// another writer committed in between; pick its rows up on the next read
		s.version = -1
	}
	for _, r := range records {
		if i, ok := s.byID[r.Chunk.ID]; ok {
			s.records[i] = r
			continue
		}
		s.byID[r.Chunk.ID] = len(s.records)
		s.records = append(s.records, r)
	}
	return nil
}

// sync brings the in-memory view up to date before a read.
func (s *Store) sync(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refresh(ctx)
}

func (s *Store) Search(ctx context.Context, query []float32, k int) ([]store.ScoredChunk, error) {
	if err := s.sync(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.records) == 0 {
		return []store.ScoredChunk{}, nil
	}
	if len(query) != s.dimension {
		return nil, fmt.Errorf("%w: collection %q has %d, query has %d",
			vectorstore.ErrDimensionMismatch, s.collection, s.dimension, len(query))
	}
	return vectorstore.TopK(s.records, query, k), nil
}

func (s *Store) Dimension(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimension, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	if err := s.sync(ctx); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

// encodeEmbedding packs float32 values as little-endian bytes.
func encodeEmbedding(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeEmbedding(data []byte) []float32 {
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
