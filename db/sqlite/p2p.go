package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/rustchain-network/rustchain/db/iface"
)

// SavePeerKeyIfAbsent stores a peer's pubkey on first sight and returns the
// key now on record. Trust-on-first-use: a later different key is NOT stored;
// callers compare against the returned key.
func (s *Store) SavePeerKeyIfAbsent(ctx context.Context, peerID string, pubkey []byte) ([]byte, error) {
	var stored []byte
	err := s.update(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`SELECT pubkey FROM peer_keys WHERE peer_id = ?`, peerID).Scan(&stored)
		if err == nil {
			return nil
		}
		if err != sql.ErrNoRows {
			return errors.Wrap(err, "could not read peer key")
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO peer_keys (peer_id, pubkey, first_seen) VALUES (?, ?, ?)`,
			peerID, pubkey, time.Now().Unix()); err != nil {
			return errors.Wrap(err, "could not store peer key")
		}
		stored = pubkey
		return nil
	})
	return stored, err
}

// PeerKey returns the stored key for a peer, or iface.ErrNotFound.
func (s *Store) PeerKey(ctx context.Context, peerID string) ([]byte, error) {
	var stored []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT pubkey FROM peer_keys WHERE peer_id = ?`, peerID).Scan(&stored)
	if err == sql.ErrNoRows {
		return nil, iface.ErrNotFound
	}
	return stored, err
}

// RevokePeerKey drops a TOFU key so the next envelope re-pins. Admin only.
func (s *Store) RevokePeerKey(ctx context.Context, peerID string) error {
	return s.update(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM peer_keys WHERE peer_id = ?`, peerID)
		return errors.Wrap(err, "could not revoke peer key")
	})
}
