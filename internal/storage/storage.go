// Package storage archives finished analyses in SQLite. Writes are queued and
// applied by a single writer goroutine; a failed write degrades the store and
// later writes are dropped.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"chessmate/internal/core"
)

const (
	queueSize     = 256
	drainDeadline = 2 * time.Second
)

// writeOp is a queued write, or a flush marker when done is set
type writeOp struct {
	fn   func(*sql.Tx) error
	done chan struct{}
}

// Store handles SQLite database operations with async writes
type Store struct {
	db           *sql.DB
	path         string
	writeChan    chan writeOp
	healthStatus atomic.Bool
	log          *slog.Logger
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	stopped      chan struct{}
	closeOnce    sync.Once
}

// NewStore opens the database at path and starts the writer. WAL mode helps
// when a server and CLI queries share the file.
func NewStore(path string, wal bool, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, core.Wrap(core.KindIO, "open archive", err)
	}

	if wal {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, core.Wrap(core.KindIO, "open archive", fmt.Errorf("failed to enable WAL mode: %w", err))
		}
	}

	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(2)

	ctx, cancel := context.WithCancel(context.Background())

	s := &Store{
		db:        db,
		path:      path,
		writeChan: make(chan writeOp, queueSize),
		log:       log,
		ctx:       ctx,
		cancel:    cancel,
		stopped:   make(chan struct{}),
	}
	s.healthStatus.Store(true)

	s.wg.Add(1)
	go s.writerLoop()

	return s, nil
}

// IsHealthy returns true until a write has failed
func (s *Store) IsHealthy() bool {
	return s.healthStatus.Load()
}

func (s *Store) writerLoop() {
	defer s.wg.Done()
	defer close(s.stopped)

	for {
		select {
		case <-s.ctx.Done():
			s.drain()
			return
		case op := <-s.writeChan:
			s.apply(op)
		}
	}
}

func (s *Store) apply(op writeOp) {
	if op.done != nil {
		close(op.done)
		return
	}
	if s.healthStatus.Load() {
		s.executeWrite(op.fn)
	}
}

// drain applies writes queued before shutdown, bounded by drainDeadline
func (s *Store) drain() {
	deadline := time.After(drainDeadline)
	for {
		select {
		case op := <-s.writeChan:
			s.apply(op)
		case <-deadline:
			s.log.Warn("storage drain deadline exceeded, some writes may be lost", "pending", len(s.writeChan))
			return
		default:
			return
		}
	}
}

// executeWrite runs one queued write in its own transaction
func (s *Store) executeWrite(fn func(*sql.Tx) error) {
	tx, err := s.db.Begin()
	if err != nil {
		s.log.Error("storage degraded: failed to begin transaction", "error", err)
		s.healthStatus.Store(false)
		return
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		s.log.Error("storage degraded: write operation failed", "error", err)
		s.healthStatus.Store(false)
		return
	}

	if err := tx.Commit(); err != nil {
		s.log.Error("storage degraded: failed to commit", "error", err)
		s.healthStatus.Store(false)
	}
}

// enqueue hands fn to the writer without blocking; a full queue drops it
func (s *Store) enqueue(what string, fn func(*sql.Tx) error) {
	if !s.healthStatus.Load() {
		s.log.Debug("storage degraded, dropping write", "record", what)
		return
	}
	select {
	case s.writeChan <- writeOp{fn: fn}:
	default:
		s.log.Warn("storage write queue full, dropping record", "record", what)
	}
}

// Flush waits until every write queued before the call has been handled and
// reports whether the store is still healthy.
func (s *Store) Flush(ctx context.Context) error {
	done := make(chan struct{})
	select {
	case s.writeChan <- writeOp{done: done}:
	case <-s.stopped:
		return core.Errorf(core.KindIO, "flush archive", "storage is closed")
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
	case <-s.stopped:
		return core.Errorf(core.KindIO, "flush archive", "storage is closed")
	case <-ctx.Done():
		return ctx.Err()
	}

	if !s.healthStatus.Load() {
		return core.Errorf(core.KindIO, "flush archive", "storage is degraded")
	}
	return nil
}

// Close stops the writer after draining and closes the database
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.cancel()

		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(drainDeadline + time.Second):
			s.log.Warn("storage writer shutdown timeout, some writes may be lost")
		}

		err = s.db.Close()
	})
	return err
}

// InitDB creates the database schema
func (s *Store) InitDB() error {
	tx, err := s.db.Begin()
	if err != nil {
		return core.Wrap(core.KindIO, "init archive", fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback()

	if _, err := tx.Exec(Schema); err != nil {
		return core.Wrap(core.KindIO, "init archive", fmt.Errorf("failed to create schema: %w", err))
	}

	return tx.Commit()
}

// DeleteDB closes the store and removes the database file
func (s *Store) DeleteDB() error {
	if err := s.Close(); err != nil {
		return core.Wrap(core.KindIO, "delete archive", fmt.Errorf("failed to close database: %w", err))
	}

	for _, p := range []string{s.path, s.path + "-wal", s.path + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return core.Wrap(core.KindIO, "delete archive", fmt.Errorf("failed to delete %s: %w", p, err))
		}
	}
	return nil
}
