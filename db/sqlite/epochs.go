package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/rustchain-network/rustchain/db/iface"
)

// Enroll inserts or refreshes an epoch enrollment. The enrollment set is
// grow-only; concurrent weight updates converge on the maximum.
func (s *Store) Enroll(ctx context.Context, e *iface.Enrollment) error {
	return s.update(ctx, func(tx *sql.Tx) error {
		settled, err := epochSettledTx(ctx, tx, e.Epoch)
		if err != nil {
			return err
		}
		if settled {
			return iface.ErrEpochSettled
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO epoch_enroll (epoch, miner_pk, weight) VALUES (?, ?, ?)
			ON CONFLICT(epoch, miner_pk) DO UPDATE SET
				weight = MAX(weight, excluded.weight)`,
			e.Epoch, e.MinerPK, e.Weight)
		return errors.Wrap(err, "could not enroll miner")
	})
}

// Enrollments returns the enrollment set of an epoch sorted by miner_pk.
func (s *Store) Enrollments(ctx context.Context, epoch uint64) ([]*iface.Enrollment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT epoch, miner_pk, weight FROM epoch_enroll WHERE epoch = ? ORDER BY miner_pk`, epoch)
	if err != nil {
		return nil, errors.Wrap(err, "could not query enrollments")
	}
	defer rows.Close()
	return scanEnrollments(rows)
}

// EnrolledCount returns the number of distinct miners enrolled in an epoch.
func (s *Store) EnrolledCount(ctx context.Context, epoch uint64) (uint64, error) {
	var n uint64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT miner_pk) FROM epoch_enroll WHERE epoch = ?`, epoch).Scan(&n)
	return n, err
}

// EnrollmentsForUnsettledEpochs returns every enrollment row belonging to an
// epoch that has not settled yet. Used by the gossip composer.
func (s *Store) EnrollmentsForUnsettledEpochs(ctx context.Context) ([]*iface.Enrollment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.epoch, e.miner_pk, e.weight FROM epoch_enroll e
		LEFT JOIN epoch_state st ON st.epoch = e.epoch
		WHERE COALESCE(st.settled, 0) = 0
		ORDER BY e.epoch, e.miner_pk`)
	if err != nil {
		return nil, errors.Wrap(err, "could not query unsettled enrollments")
	}
	defer rows.Close()
	return scanEnrollments(rows)
}

// UnsettledEnrolledEpochsBelow lists the distinct epochs below bound that have
// enrollments but never settled, in ascending order. The settlement worker
// sweeps these so an out-of-order force settle cannot strand earlier epochs
// behind the high-water mark.
func (s *Store) UnsettledEnrolledEpochsBelow(ctx context.Context, bound uint64) ([]uint64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT e.epoch FROM epoch_enroll e
		LEFT JOIN epoch_state st ON st.epoch = e.epoch
		WHERE e.epoch < ? AND COALESCE(st.settled, 0) = 0
		ORDER BY e.epoch`, bound)
	if err != nil {
		return nil, errors.Wrap(err, "could not query unsettled epochs")
	}
	defer rows.Close()
	var epochs []uint64
	for rows.Next() {
		var e uint64
		if err := rows.Scan(&e); err != nil {
			return nil, err
		}
		epochs = append(epochs, e)
	}
	return epochs, rows.Err()
}

func scanEnrollments(rows *sql.Rows) ([]*iface.Enrollment, error) {
	var es []*iface.Enrollment
	for rows.Next() {
		e := &iface.Enrollment{}
		if err := rows.Scan(&e.Epoch, &e.MinerPK, &e.Weight); err != nil {
			return nil, err
		}
		es = append(es, e)
	}
	return es, rows.Err()
}

// IsEpochSettled reports whether the given epoch has settled.
func (s *Store) IsEpochSettled(ctx context.Context, epoch uint64) (bool, error) {
	return epochSettledQuery(ctx, s.db, epoch)
}

// LastSettledEpoch returns the highest settled epoch, if any epoch settled.
func (s *Store) LastSettledEpoch(ctx context.Context) (uint64, bool, error) {
	var epoch sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(epoch) FROM epoch_state WHERE settled = 1`).Scan(&epoch)
	if err != nil {
		return 0, false, err
	}
	if !epoch.Valid {
		return 0, false, nil
	}
	return uint64(epoch.Int64), true, nil
}

// SettleEpoch commits an epoch's reward distribution in a single transaction:
// reward rows, ledger entries, balance upserts and the settled flag. The
// operation is idempotent; a settled epoch returns immediately with no
// mutation, and reward rows insert with OR IGNORE so racing workers cannot
// double-credit.
func (s *Store) SettleEpoch(ctx context.Context, epoch uint64, shares []iface.RewardShare) error {
	now := time.Now().Unix()
	return s.update(ctx, func(tx *sql.Tx) error {
		settled, err := epochSettledTx(ctx, tx, epoch)
		if err != nil {
			return err
		}
		if settled {
			return iface.ErrEpochSettled
		}
		for _, share := range shares {
			res, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO epoch_rewards (epoch, miner_id, share_urtc) VALUES (?, ?, ?)`,
				epoch, share.MinerID, share.ShareURTC)
			if err != nil {
				return errors.Wrap(err, "could not insert reward row")
			}
			inserted, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if inserted == 0 || share.ShareURTC == 0 {
				continue
			}
			if err := creditTx(ctx, tx, share.MinerID, share.ShareURTC); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO ledger_entries (ts, epoch, miner_id, delta_urtc, reason) VALUES (?, ?, ?, ?, ?)`,
				now, epoch, share.MinerID, int64(share.ShareURTC), iface.ReasonEpochReward); err != nil {
				return errors.Wrap(err, "could not append reward ledger entry")
			}
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO epoch_state (epoch, settled, settled_ts) VALUES (?, 1, ?)
			ON CONFLICT(epoch) DO UPDATE SET settled = 1, settled_ts = excluded.settled_ts`,
			epoch, now)
		return errors.Wrap(err, "could not mark epoch settled")
	})
}

// RewardsForEpoch returns the distribution rows of an epoch sorted by miner.
func (s *Store) RewardsForEpoch(ctx context.Context, epoch uint64) ([]*iface.EpochReward, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT epoch, miner_id, share_urtc FROM epoch_rewards WHERE epoch = ? ORDER BY miner_id`, epoch)
	if err != nil {
		return nil, errors.Wrap(err, "could not query epoch rewards")
	}
	defer rows.Close()
	var rewards []*iface.EpochReward
	for rows.Next() {
		r := &iface.EpochReward{}
		if err := rows.Scan(&r.Epoch, &r.MinerID, &r.ShareURTC); err != nil {
			return nil, err
		}
		rewards = append(rewards, r)
	}
	return rewards, rows.Err()
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func epochSettledQuery(ctx context.Context, q queryRower, epoch uint64) (bool, error) {
	var settled int
	err := q.QueryRowContext(ctx,
		`SELECT settled FROM epoch_state WHERE epoch = ?`, epoch).Scan(&settled)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "could not read epoch state")
	}
	return settled == 1, nil
}

func epochSettledTx(ctx context.Context, tx *sql.Tx, epoch uint64) (bool, error) {
	return epochSettledQuery(ctx, tx, epoch)
}
