package local

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/nemanja-m/wordcount/pkg/core"
)

const (
	FormatTSV    = "tsv"
	FormatSQLite = "sqlite"

	SQLiteFilename = "results.db"
)

// Sink persists the reduced pairs of one partition. Reduce tasks call
// WritePartition concurrently, once per partition.
type Sink interface {
	WritePartition(ctx context.Context, partition int, results []core.Pair) error
	Close() error
}

func NewSink(format, outputDir string) (Sink, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, err
	}

	switch strings.ToLower(format) {
	case "", FormatTSV:
		return &TSVSink{dir: outputDir}, nil
	case FormatSQLite:
		return NewSQLiteSink(filepath.Join(outputDir, SQLiteFilename))
	default:
		return nil, fmt.Errorf("unknown output format: %s", format)
	}
}

// TSVSink writes part-NNNN.tsv files with one "word\tcount" line per key.
type TSVSink struct {
	dir string
}

func (s *TSVSink) WritePartition(_ context.Context, partition int, results []core.Pair) error {
	return WriteTSV(filepath.Join(s.dir, PartitionFilename("part", partition, FormatTSV)), results)
}

func (s *TSVSink) Close() error { return nil }

const createWordCounts = `
CREATE TABLE word_counts (
	word  TEXT PRIMARY KEY,
	count INTEGER NOT NULL,
	shard INTEGER NOT NULL
)`

// SQLiteSink writes every partition into the word_counts table of one
// database. Opening the sink replaces any table left by an earlier run.
type SQLiteSink struct {
	mu sync.Mutex
	db *sql.DB
}

func NewSQLiteSink(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite sink: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{`DROP TABLE IF EXISTS word_counts`, createWordCounts} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create word_counts table: %w", err)
		}
	}
	return &SQLiteSink{db: db}, nil
}

func (s *SQLiteSink) WritePartition(ctx context.Context, partition int, results []core.Pair) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO word_counts (word, count, shard) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, kv := range results {
		if _, err = stmt.ExecContext(ctx, kv.Key, kv.Value, partition); err != nil {
			return fmt.Errorf("insert %q: %w", kv.Key, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
