package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/rustchain-network/rustchain/db/iface"
)

// SaveChallenge persists an issued challenge nonce with its expiry.
func (s *Store) SaveChallenge(ctx context.Context, nonce, minerID string, expiresAt time.Time) error {
	return s.update(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO challenges (nonce, miner_id, expires_at) VALUES (?, ?, ?)`,
			nonce, minerID, expiresAt.Unix())
		if isUniqueViolation(err) {
			// 32 random bytes colliding means a broken RNG; surface it.
			return errors.New("challenge nonce collision")
		}
		return errors.Wrap(err, "could not save challenge")
	})
}

// ConsumeChallenge atomically deletes a live challenge and returns the miner
// id it was issued for. Unknown or expired nonces return
// iface.ErrChallengeInvalid; expiry is strict (expires_at == now is expired).
func (s *Store) ConsumeChallenge(ctx context.Context, nonce string, now time.Time) (string, error) {
	var minerID string
	err := s.update(ctx, func(tx *sql.Tx) error {
		var expiresAt int64
		err := tx.QueryRowContext(ctx,
			`SELECT miner_id, expires_at FROM challenges WHERE nonce = ?`, nonce).
			Scan(&minerID, &expiresAt)
		if err == sql.ErrNoRows {
			return iface.ErrChallengeInvalid
		}
		if err != nil {
			return errors.Wrap(err, "could not read challenge")
		}
		if expiresAt <= now.Unix() {
			// Expired rows are still deleted so the table cannot grow.
			if _, err := tx.ExecContext(ctx, `DELETE FROM challenges WHERE nonce = ?`, nonce); err != nil {
				return err
			}
			return iface.ErrChallengeInvalid
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM challenges WHERE nonce = ?`, nonce)
		return errors.Wrap(err, "could not consume challenge")
	})
	if err != nil {
		return "", err
	}
	return minerID, nil
}

// MarkNonceUsed inserts into the replay table. A conflicting insert means the
// (miner_id, nonce) pair was already accepted and returns iface.ErrNonceReplay.
func (s *Store) MarkNonceUsed(ctx context.Context, minerID, nonce string, expiresAt time.Time) error {
	return s.update(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO used_nonces (miner_id, nonce, expires_at) VALUES (?, ?, ?)`,
			minerID, nonce, expiresAt.Unix())
		if isUniqueViolation(err) {
			return iface.ErrNonceReplay
		}
		return errors.Wrap(err, "could not mark nonce used")
	})
}

// PruneNonces removes expired challenges and replay rows, returning the
// number of rows dropped.
func (s *Store) PruneNonces(ctx context.Context, now time.Time) (int64, error) {
	var pruned int64
	err := s.update(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM challenges WHERE expires_at <= ?`, now.Unix())
		if err != nil {
			return err
		}
		n, _ := res.RowsAffected()
		pruned += n
		// Replay rows are kept for an extra challenge lifetime so a consumed
		// nonce cannot be replayed right after its challenge expires.
		res, err = tx.ExecContext(ctx, `DELETE FROM used_nonces WHERE expires_at <= ?`, now.Add(-10*time.Minute).Unix())
		if err != nil {
			return err
		}
		n, _ = res.RowsAffected()
		pruned += n
		return nil
	})
	return pruned, err
}
