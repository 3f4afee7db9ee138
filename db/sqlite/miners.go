package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/rustchain-network/rustchain/db/iface"
)

// SaveAttestation upserts the miner's most recent accepted attestation.
func (s *Store) SaveAttestation(ctx context.Context, att *iface.MinerAttestation) error {
	return s.update(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO miner_attest_recent
				(miner, miner_id, device_arch, device_family, device_model, tier, entropy_score, arch_score, ts_ok)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(miner) DO UPDATE SET
				miner_id = excluded.miner_id,
				device_arch = excluded.device_arch,
				device_family = excluded.device_family,
				device_model = excluded.device_model,
				tier = excluded.tier,
				entropy_score = excluded.entropy_score,
				arch_score = excluded.arch_score,
				ts_ok = excluded.ts_ok`,
			att.Miner, att.MinerID, att.DeviceArch, att.DeviceFamily, att.DeviceModel,
			att.Tier, att.EntropyScore, att.ArchScore, att.TsOK)
		return errors.Wrap(err, "could not save attestation")
	})
}

// MergeAttestation applies a gossiped attestation row with last-writer-wins
// semantics on ts_ok. It reports whether the local row changed.
func (s *Store) MergeAttestation(ctx context.Context, att *iface.MinerAttestation) (bool, error) {
	changed := false
	err := s.update(ctx, func(tx *sql.Tx) error {
		var existing int64
		err := tx.QueryRowContext(ctx,
			`SELECT ts_ok FROM miner_attest_recent WHERE miner = ?`, att.Miner).Scan(&existing)
		switch {
		case err == sql.ErrNoRows:
			existing = -1
		case err != nil:
			return errors.Wrap(err, "could not read attestation row")
		}
		if att.TsOK <= existing {
			return nil
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO miner_attest_recent
				(miner, miner_id, device_arch, device_family, device_model, tier, entropy_score, arch_score, ts_ok)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(miner) DO UPDATE SET
				miner_id = excluded.miner_id,
				device_arch = excluded.device_arch,
				device_family = excluded.device_family,
				device_model = excluded.device_model,
				tier = excluded.tier,
				entropy_score = excluded.entropy_score,
				arch_score = excluded.arch_score,
				ts_ok = excluded.ts_ok`,
			att.Miner, att.MinerID, att.DeviceArch, att.DeviceFamily, att.DeviceModel,
			att.Tier, att.EntropyScore, att.ArchScore, att.TsOK)
		if err != nil {
			return errors.Wrap(err, "could not merge attestation")
		}
		changed = true
		return nil
	})
	return changed, err
}

const attestationColumns = `miner, miner_id, device_arch, device_family, device_model, tier, entropy_score, arch_score, ts_ok`

// RecentAttestations returns attestations accepted at or after the given time.
func (s *Store) RecentAttestations(ctx context.Context, since time.Time) ([]*iface.MinerAttestation, error) {
	return s.AttestationsSince(ctx, since.Unix())
}

// AttestationsSince returns attestations with ts_ok >= ts, ordered by miner.
func (s *Store) AttestationsSince(ctx context.Context, ts int64) ([]*iface.MinerAttestation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+attestationColumns+` FROM miner_attest_recent WHERE ts_ok >= ? ORDER BY miner`, ts)
	if err != nil {
		return nil, errors.Wrap(err, "could not query recent attestations")
	}
	defer rows.Close()
	var atts []*iface.MinerAttestation
	for rows.Next() {
		att := &iface.MinerAttestation{}
		if err := rows.Scan(&att.Miner, &att.MinerID, &att.DeviceArch, &att.DeviceFamily,
			&att.DeviceModel, &att.Tier, &att.EntropyScore, &att.ArchScore, &att.TsOK); err != nil {
			return nil, err
		}
		atts = append(atts, att)
	}
	return atts, rows.Err()
}

// BindHardware creates the hardware binding if absent. A binding to a
// different miner returns iface.ErrHardwareBound.
func (s *Store) BindHardware(ctx context.Context, hardwareID, minerID string) error {
	return s.update(ctx, func(tx *sql.Tx) error {
		var bound string
		err := tx.QueryRowContext(ctx,
			`SELECT bound_miner FROM hardware_bindings WHERE hardware_id = ?`, hardwareID).Scan(&bound)
		switch {
		case err == sql.ErrNoRows:
			_, err = tx.ExecContext(ctx,
				`INSERT INTO hardware_bindings (hardware_id, bound_miner, bound_at) VALUES (?, ?, ?)`,
				hardwareID, minerID, time.Now().Unix())
			if isUniqueViolation(err) {
				return iface.ErrHardwareBound
			}
			return errors.Wrap(err, "could not create hardware binding")
		case err != nil:
			return errors.Wrap(err, "could not read hardware binding")
		}
		if bound != minerID {
			return iface.ErrHardwareBound
		}
		return nil
	})
}

// BoundMiner returns the miner bound to a hardware id, or iface.ErrNotFound.
func (s *Store) BoundMiner(ctx context.Context, hardwareID string) (string, error) {
	var bound string
	err := s.db.QueryRowContext(ctx,
		`SELECT bound_miner FROM hardware_bindings WHERE hardware_id = ?`, hardwareID).Scan(&bound)
	if err == sql.ErrNoRows {
		return "", iface.ErrNotFound
	}
	return bound, err
}

// RecordMACs stores first-seen MAC observations for a miner wallet.
func (s *Store) RecordMACs(ctx context.Context, miner string, macs []string) error {
	if len(macs) == 0 {
		return nil
	}
	now := time.Now().Unix()
	return s.update(ctx, func(tx *sql.Tx) error {
		for _, mac := range macs {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO mac_observations (miner, mac, first_seen) VALUES (?, ?, ?)`,
				miner, mac, now); err != nil {
				return errors.Wrap(err, "could not record mac observation")
			}
		}
		return nil
	})
}

// IsWalletBlocked reports whether a wallet is on the blocklist.
func (s *Store) IsWalletBlocked(ctx context.Context, wallet string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM blocked_wallets WHERE wallet = ?`, wallet).Scan(&n)
	return n > 0, err
}

// BlockWallet adds a wallet to the blocklist.
func (s *Store) BlockWallet(ctx context.Context, wallet string) error {
	return s.update(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO blocked_wallets (wallet, blocked_at) VALUES (?, ?)`,
			wallet, time.Now().Unix())
		return errors.Wrap(err, "could not block wallet")
	})
}

// WalletForMiner resolves a client-chosen miner id to the wallet of its most
// recent accepted attestation.
func (s *Store) WalletForMiner(ctx context.Context, minerID string) (string, error) {
	var wallet string
	err := s.db.QueryRowContext(ctx,
		`SELECT miner FROM miner_attest_recent WHERE miner_id = ? ORDER BY ts_ok DESC LIMIT 1`,
		minerID).Scan(&wallet)
	if err == sql.ErrNoRows {
		return "", iface.ErrNotFound
	}
	return wallet, err
}
