package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/rustchain-network/rustchain/crypto/rtc"
	"github.com/rustchain-network/rustchain/db/iface"
)

// Balance returns (amount_uRTC, wallet_nonce) for an address. Absent wallets
// read as zero; wallets are created on first credit.
func (s *Store) Balance(ctx context.Context, address string) (uint64, uint64, error) {
	var amount, nonce uint64
	err := s.db.QueryRowContext(ctx,
		`SELECT amount_urtc, wallet_nonce FROM balances WHERE address = ?`, address).
		Scan(&amount, &nonce)
	if err == sql.ErrNoRows {
		return 0, 0, nil
	}
	return amount, nonce, err
}

// creditTx upserts a balance inside an open transaction: UPDATE first, INSERT
// when no row was affected.
func creditTx(ctx context.Context, tx *sql.Tx, address string, amountURTC uint64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE balances SET amount_urtc = amount_urtc + ? WHERE address = ?`, amountURTC, address)
	if err != nil {
		return errors.Wrap(err, "could not credit balance")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO balances (address, amount_urtc, wallet_nonce) VALUES (?, ?, 0)`,
			address, amountURTC)
		return errors.Wrap(err, "could not create balance")
	}
	return nil
}

// debitTx decrements a balance, failing with iface.ErrInsufficientBalance
// when funds do not cover the debit. The schema CHECK backs this up.
func debitTx(ctx context.Context, tx *sql.Tx, address string, amountURTC uint64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE balances SET amount_urtc = amount_urtc - ? WHERE address = ? AND amount_urtc >= ?`,
		amountURTC, address, amountURTC)
	if err != nil {
		return errors.Wrap(err, "could not debit balance")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return iface.ErrInsufficientBalance
	}
	return nil
}

// Credit applies an internal credit (settlement or admin deposit) with its
// ledger entry in one transaction.
func (s *Store) Credit(ctx context.Context, address string, amountURTC uint64, epoch uint64, reason string) error {
	now := time.Now().Unix()
	return s.update(ctx, func(tx *sql.Tx) error {
		if err := creditTx(ctx, tx, address, amountURTC); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO ledger_entries (ts, epoch, miner_id, delta_urtc, reason) VALUES (?, ?, ?, ?, ?)`,
			now, epoch, address, int64(amountURTC), reason)
		return errors.Wrap(err, "could not append ledger entry")
	})
}

// ExecuteTransfer settles a verified transfer atomically: nonce check and
// bump, debit of amount+fee, credit of the recipient and the fee pool, and
// three ledger entries.
func (s *Store) ExecuteTransfer(ctx context.Context, xfer *iface.TransferExec) error {
	now := time.Now().Unix()
	outReason := xfer.Reason
	if outReason == "" {
		outReason = iface.ReasonTransferOut
	}
	return s.update(ctx, func(tx *sql.Tx) error {
		var nonce uint64
		err := tx.QueryRowContext(ctx,
			`SELECT wallet_nonce FROM balances WHERE address = ?`, xfer.From).Scan(&nonce)
		if err == sql.ErrNoRows {
			// A wallet with no row has no funds either.
			return iface.ErrInsufficientBalance
		}
		if err != nil {
			return errors.Wrap(err, "could not read wallet nonce")
		}
		if xfer.Nonce <= nonce {
			return iface.ErrNonceStale
		}
		if err := debitTx(ctx, tx, xfer.From, xfer.AmountURTC+xfer.FeeURTC); err != nil {
			return err
		}
		if err := creditTx(ctx, tx, xfer.To, xfer.AmountURTC); err != nil {
			return err
		}
		if xfer.FeeURTC > 0 {
			if err := creditTx(ctx, tx, rtc.FeePoolAddress, xfer.FeeURTC); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE balances SET wallet_nonce = ? WHERE address = ?`, xfer.Nonce, xfer.From); err != nil {
			return errors.Wrap(err, "could not bump wallet nonce")
		}
		entries := []struct {
			minerID string
			delta   int64
			reason  string
		}{
			{xfer.From, -int64(xfer.AmountURTC), outReason},
			{xfer.To, int64(xfer.AmountURTC), iface.ReasonTransferIn},
			{xfer.From, -int64(xfer.FeeURTC), iface.ReasonFee},
		}
		for _, e := range entries {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO ledger_entries (ts, epoch, miner_id, delta_urtc, reason) VALUES (?, 0, ?, ?, ?)`,
				now, e.minerID, e.delta, e.reason); err != nil {
				return errors.Wrap(err, "could not append ledger entry")
			}
		}
		return nil
	})
}

// InsertPendingTransfer parks a transfer until its confirms_at maturity.
func (s *Store) InsertPendingTransfer(ctx context.Context, p *iface.PendingTransfer) error {
	return s.update(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO pending_transfers
				(id, from_addr, to_addr, amount_urtc, fee_urtc, nonce, memo, sig, status, confirms_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.From, p.To, p.AmountURTC, p.FeeURTC, p.Nonce, p.Memo, p.Sig,
			iface.PendingStatusPending, p.ConfirmsAt)
		return errors.Wrap(err, "could not insert pending transfer")
	})
}

// ConfirmMaturedPending walks pending rows whose confirms_at has passed and
// executes them. A pending transfer that can no longer execute (balance
// drained, nonce consumed) is voided rather than retried forever.
func (s *Store) ConfirmMaturedPending(ctx context.Context, now time.Time) (int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, from_addr, to_addr, amount_urtc, fee_urtc, nonce, memo
		FROM pending_transfers WHERE status = ? AND confirms_at <= ?
		ORDER BY confirms_at`,
		iface.PendingStatusPending, now.Unix())
	if err != nil {
		return 0, errors.Wrap(err, "could not query pending transfers")
	}
	var matured []*iface.PendingTransfer
	for rows.Next() {
		p := &iface.PendingTransfer{}
		if err := rows.Scan(&p.ID, &p.From, &p.To, &p.AmountURTC, &p.FeeURTC, &p.Nonce, &p.Memo); err != nil {
			rows.Close()
			return 0, err
		}
		matured = append(matured, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	confirmed := 0
	for _, p := range matured {
		execErr := s.ExecuteTransfer(ctx, &iface.TransferExec{
			From:       p.From,
			To:         p.To,
			AmountURTC: p.AmountURTC,
			FeeURTC:    p.FeeURTC,
			Nonce:      p.Nonce,
			Memo:       p.Memo,
		})
		status := iface.PendingStatusConfirmed
		switch {
		case execErr == nil:
			confirmed++
		case errors.Is(execErr, iface.ErrInsufficientBalance) || errors.Is(execErr, iface.ErrNonceStale):
			status = iface.PendingStatusVoided
		default:
			return confirmed, execErr
		}
		if err := s.update(ctx, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx,
				`UPDATE pending_transfers SET status = ? WHERE id = ?`, status, p.ID)
			return err
		}); err != nil {
			return confirmed, err
		}
	}
	return confirmed, nil
}

// LedgerEntries returns recent ledger entries for a wallet, newest first.
func (s *Store) LedgerEntries(ctx context.Context, minerID string, limit int) ([]*iface.LedgerEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, epoch, miner_id, delta_urtc, reason FROM ledger_entries
		WHERE miner_id = ? ORDER BY ts DESC, id DESC LIMIT ?`, minerID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "could not query ledger entries")
	}
	defer rows.Close()
	var entries []*iface.LedgerEntry
	for rows.Next() {
		e := &iface.LedgerEntry{}
		if err := rows.Scan(&e.Ts, &e.Epoch, &e.MinerID, &e.DeltaURTC, &e.Reason); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
