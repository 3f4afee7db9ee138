package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pkg/errors"
)

// Schema is declared at boot. Statements are idempotent; migrations only ever
// add columns, never drop.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS balances (
		address      TEXT PRIMARY KEY,
		amount_urtc  INTEGER NOT NULL DEFAULT 0 CHECK (amount_urtc >= 0),
		wallet_nonce INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS hardware_bindings (
		hardware_id TEXT PRIMARY KEY,
		bound_miner TEXT NOT NULL,
		bound_at    INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS challenges (
		nonce      TEXT PRIMARY KEY,
		miner_id   TEXT NOT NULL DEFAULT '',
		expires_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS used_nonces (
		miner_id   TEXT NOT NULL,
		nonce      TEXT NOT NULL,
		expires_at INTEGER NOT NULL,
		PRIMARY KEY (miner_id, nonce)
	)`,
	`CREATE TABLE IF NOT EXISTS miner_attest_recent (
		miner         TEXT PRIMARY KEY,
		miner_id      TEXT NOT NULL DEFAULT '',
		device_arch   TEXT NOT NULL DEFAULT '',
		device_family TEXT NOT NULL DEFAULT '',
		device_model  TEXT NOT NULL DEFAULT '',
		tier          TEXT NOT NULL DEFAULT 'modern',
		entropy_score REAL NOT NULL DEFAULT 0,
		arch_score    REAL NOT NULL DEFAULT 0,
		ts_ok         INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS mac_observations (
		miner TEXT NOT NULL,
		mac   TEXT NOT NULL,
		first_seen INTEGER NOT NULL,
		PRIMARY KEY (miner, mac)
	)`,
	`CREATE TABLE IF NOT EXISTS blocked_wallets (
		wallet     TEXT PRIMARY KEY,
		blocked_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS epoch_enroll (
		epoch    INTEGER NOT NULL,
		miner_pk TEXT NOT NULL,
		weight   REAL NOT NULL CHECK (weight > 0),
		PRIMARY KEY (epoch, miner_pk)
	)`,
	`CREATE TABLE IF NOT EXISTS epoch_state (
		epoch      INTEGER PRIMARY KEY,
		settled    INTEGER NOT NULL DEFAULT 0,
		settled_ts INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS epoch_rewards (
		epoch      INTEGER NOT NULL,
		miner_id   TEXT NOT NULL,
		share_urtc INTEGER NOT NULL,
		PRIMARY KEY (epoch, miner_id)
	)`,
	`CREATE TABLE IF NOT EXISTS ledger_entries (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		ts         INTEGER NOT NULL,
		epoch      INTEGER NOT NULL DEFAULT 0,
		miner_id   TEXT NOT NULL,
		delta_urtc INTEGER NOT NULL,
		reason     TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS pending_transfers (
		id          TEXT PRIMARY KEY,
		from_addr   TEXT NOT NULL,
		to_addr     TEXT NOT NULL,
		amount_urtc INTEGER NOT NULL,
		fee_urtc    INTEGER NOT NULL DEFAULT 0,
		nonce       INTEGER NOT NULL,
		memo        TEXT NOT NULL DEFAULT '',
		sig         TEXT NOT NULL DEFAULT '',
		status      TEXT NOT NULL DEFAULT 'pending',
		confirms_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS peer_keys (
		peer_id    TEXT PRIMARY KEY,
		pubkey     BLOB NOT NULL,
		first_seen INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ledger_miner ON ledger_entries (miner_id, ts)`,
	`CREATE INDEX IF NOT EXISTS idx_attest_ts ON miner_attest_recent (ts_ok)`,
	`CREATE INDEX IF NOT EXISTS idx_pending_confirms ON pending_transfers (status, confirms_at)`,
}

func (s *Store) createSchema(ctx context.Context) error {
	return s.update(ctx, func(tx *sql.Tx) error {
		for _, stmt := range schemaStatements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return errors.Wrapf(err, "could not apply schema statement %q", stmt[:40])
			}
		}
		return nil
	})
}

// migrate applies additive column migrations. Columns are never dropped.
func (s *Store) migrate(ctx context.Context) error {
	migrations := []struct {
		table, column, decl string
	}{
		{"miner_attest_recent", "miner_id", "TEXT NOT NULL DEFAULT ''"},
		{"miner_attest_recent", "device_model", "TEXT NOT NULL DEFAULT ''"},
		{"pending_transfers", "fee_urtc", "INTEGER NOT NULL DEFAULT 0"},
	}
	for _, m := range migrations {
		if err := s.addColumnIfMissing(ctx, m.table, m.column, m.decl); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) addColumnIfMissing(ctx context.Context, table, column, decl string) error {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return errors.Wrapf(err, "could not inspect table %s", table)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notNull    int
			dflt       sql.NullString
			primaryKey int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &primaryKey); err != nil {
			return err
		}
		if name == column {
			return rows.Err()
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, decl))
	return errors.Wrapf(err, "could not add column %s.%s", table, column)
}
