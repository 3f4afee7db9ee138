// Package sqlite implements the node database on an embedded SQLite file.
// The store keeps a single-writer discipline: every mutation runs inside one
// serialized transaction guarded by a process-wide mutex, with WAL journaling
// for durability.
package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "db")

const databaseFileName = "rustchain.db"

var openStoresGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "rustchain_db_open_stores",
	Help: "Number of open sqlite stores in this process.",
})

// Store implements iface.Database on a sqlite file.
type Store struct {
	db           *sql.DB
	databasePath string

	// writeMu serializes write transactions. Reads go through the pool.
	writeMu sync.Mutex
}

// NewStore opens (creating if necessary) the database under dirPath and
// applies the schema and any pending migrations.
func NewStore(dirPath string) (*Store, error) {
	if err := os.MkdirAll(dirPath, 0700); err != nil {
		return nil, errors.Wrap(err, "could not create database directory")
	}
	datafile := filepath.Join(dirPath, databaseFileName)
	// 5s busy timeout covers the per-statement budget; WAL gives readers
	// a consistent snapshot while the single writer proceeds.
	dsn := "file:" + datafile + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "could not open sqlite database")
	}
	sqlDB.SetMaxOpenConns(4)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	s := &Store{db: sqlDB, databasePath: dirPath}
	if err := s.createSchema(context.Background()); err != nil {
		return nil, err
	}
	if err := s.migrate(context.Background()); err != nil {
		return nil, err
	}
	openStoresGauge.Inc()
	return s, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	openStoresGauge.Dec()
	return s.db.Close()
}

// DatabasePath at which this database writes files.
func (s *Store) DatabasePath() string {
	return s.databasePath
}

// ClearDB removes the database file. Destructive; only reachable behind
// admin-gated tooling.
func (s *Store) ClearDB() error {
	if err := s.db.Close(); err != nil {
		return err
	}
	return os.Remove(filepath.Join(s.databasePath, databaseFileName))
}

// update runs fn inside a serialized write transaction. Transient sqlite
// busy errors are retried once with a short backoff.
func (s *Store) update(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err := s.runTx(ctx, fn)
	if err != nil && isTransient(err) {
		log.WithError(err).Debug("Retrying transient database error")
		time.Sleep(50 * time.Millisecond)
		err = s.runTx(ctx, fn)
	}
	return err
}

func (s *Store) runTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "could not begin transaction")
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			log.WithError(rbErr).Error("Could not roll back transaction")
		}
		return err
	}
	return tx.Commit()
}

func isTransient(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked")
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
