// Package ledger implements the wallet surface: balance queries, signed
// transfer verification and execution, the pending lifecycle for large
// transfers, and withdrawals.
package ledger

import (
	"context"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/rustchain-network/rustchain/async"
	"github.com/rustchain-network/rustchain/config/features"
	"github.com/rustchain-network/rustchain/config/params"
	"github.com/rustchain-network/rustchain/crypto/rtc"
	"github.com/rustchain-network/rustchain/db/iface"
)

// Config options for the ledger service.
type Config struct {
	DB iface.Database
}

// Service executes verified wallet operations.
type Service struct {
	cfg    *Config
	ctx    context.Context
	cancel context.CancelFunc
}

// New constructs the ledger service.
func New(ctx context.Context, cfg *Config) (*Service, error) {
	if cfg.DB == nil {
		return nil, errors.New("ledger service requires a database")
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Service{cfg: cfg, ctx: ctx, cancel: cancel}, nil
}

// Start launches the pending-transfer maturity loop. Matured rows also
// confirm on the admin endpoint; the loop keeps the queue moving without one.
func (s *Service) Start() {
	async.RunEvery(s.ctx, time.Minute, func() {
		n, err := s.cfg.DB.ConfirmMaturedPending(s.ctx, time.Now())
		if err != nil {
			log.WithError(err).Error("Could not confirm matured pending transfers")
			return
		}
		if n > 0 {
			log.WithField("confirmed", n).Info("Confirmed matured pending transfers")
		}
	})
}

// Stop halts background work.
func (s *Service) Stop() error {
	s.cancel()
	return nil
}

// Status always returns nil.
func (s *Service) Status() error {
	return nil
}

// BalanceInfo is the public balance view of one wallet.
type BalanceInfo struct {
	Address     string  `json:"address"`
	BalanceURTC uint64  `json:"balance_urtc"`
	BalanceRTC  float64 `json:"balance_rtc"`
	WalletNonce uint64  `json:"wallet_nonce"`
}

// BalanceByAddress reads one wallet's balance. Unknown wallets read as zero.
func (s *Service) BalanceByAddress(ctx context.Context, address string) (*BalanceInfo, *RequestError) {
	if !rtc.ValidAddress(address) {
		return nil, badRequest(CodeInvalidJSON, "address must be a valid RTC address")
	}
	amount, nonce, err := s.cfg.DB.Balance(ctx, address)
	if err != nil {
		return nil, internalErr(err)
	}
	return &BalanceInfo{
		Address:     address,
		BalanceURTC: amount,
		BalanceRTC:  FormatRTC(amount),
		WalletNonce: nonce,
	}, nil
}

// BalanceByMinerID resolves a miner id to its attested wallet, then reads the
// balance.
func (s *Service) BalanceByMinerID(ctx context.Context, minerID string) (*BalanceInfo, *RequestError) {
	wallet, err := s.cfg.DB.WalletForMiner(ctx, minerID)
	if err != nil {
		if errors.Is(err, iface.ErrNotFound) {
			return nil, &RequestError{Status: http.StatusNotFound, Code: CodeNotFound, Detail: "unknown miner_id"}
		}
		return nil, internalErr(err)
	}
	return s.BalanceByAddress(ctx, wallet)
}

// TransferResult reports the outcome of an accepted transfer or withdrawal.
type TransferResult struct {
	Status      string  `json:"status"` // "confirmed" or "pending"
	From        string  `json:"from_address"`
	To          string  `json:"to_address"`
	AmountURTC  uint64  `json:"amount_urtc"`
	FeeURTC     uint64  `json:"fee_urtc"`
	Nonce       uint64  `json:"nonce"`
	FromBalance uint64  `json:"from_balance_urtc,omitempty"`
	ToBalance   uint64  `json:"to_balance_urtc,omitempty"`
	PendingID   string  `json:"pending_id,omitempty"`
	ConfirmsAt  int64   `json:"confirms_at,omitempty"`
	AmountRTC   float64 `json:"amount_rtc"`
}

// Transfer verifies and applies a signed peer-to-peer transfer. Transfers
// carry no fee; amounts above the pending threshold park until maturity
// instead of executing immediately.
func (s *Service) Transfer(ctx context.Context, req *TransferRequest) (*TransferResult, *RequestError) {
	if rerr := s.verify(req); rerr != nil {
		return nil, rerr
	}
	c := params.RustchainConfig()
	if req.AmountURTC > c.PendingThresholdURTC {
		return s.parkPending(ctx, req, 0)
	}
	return s.execute(ctx, req, 0, iface.ReasonTransferOut)
}

// Withdraw verifies and applies a signed withdrawal. Withdrawals must exceed
// the minimum and pay the flat fee; the debit leg is recorded with
// reason=withdrawal.
func (s *Service) Withdraw(ctx context.Context, req *TransferRequest) (*TransferResult, *RequestError) {
	c := params.RustchainConfig()
	if req.AmountURTC <= c.MinWithdrawalURTC {
		return nil, badRequest(CodeAmountTooSmall, "amount_below_min_withdrawal")
	}
	if rerr := s.verify(req); rerr != nil {
		return nil, rerr
	}
	return s.execute(ctx, req, c.WithdrawalFeeURTC, iface.ReasonWithdrawal)
}

// verify checks the sender's key derivation and the Ed25519 signature over
// the canonical transfer message.
func (s *Service) verify(req *TransferRequest) *RequestError {
	pub, err := hex.DecodeString(req.PublicKey)
	if err != nil || !rtc.ValidPublicKey(pub) {
		return badRequest(CodeInvalidSignature, "public_key must be a hex Ed25519 key")
	}
	if rtc.DeriveAddress(pub) != req.From {
		return badRequest(CodeInvalidSignature, "public_key does not derive from_address")
	}
	if features.Get().MockSignatures {
		return nil
	}
	sig, err := hex.DecodeString(req.Signature)
	if err != nil {
		return badRequest(CodeInvalidSignature, "signature must be hex")
	}
	msg := rtc.CanonicalTransferMessage(req.From, req.To, req.AmountURTC, req.Nonce, req.Memo)
	if !rtc.Verify(pub, msg, sig) {
		return badRequest(CodeInvalidSignature, "signature does not verify")
	}
	return nil
}

func (s *Service) execute(ctx context.Context, req *TransferRequest, feeURTC uint64, outReason string) (*TransferResult, *RequestError) {
	err := s.cfg.DB.ExecuteTransfer(ctx, &iface.TransferExec{
		From:       req.From,
		To:         req.To,
		AmountURTC: req.AmountURTC,
		FeeURTC:    feeURTC,
		Nonce:      req.Nonce,
		Memo:       req.Memo,
		Reason:     outReason,
	})
	switch {
	case errors.Is(err, iface.ErrInsufficientBalance):
		return nil, badRequest(CodeInsufficientBalance, "balance does not cover amount and fee")
	case errors.Is(err, iface.ErrNonceStale):
		return nil, badRequest(CodeNonceStale, "nonce must exceed the wallet nonce")
	case err != nil:
		return nil, internalErr(err)
	}

	fromBalance, _, err := s.cfg.DB.Balance(ctx, req.From)
	if err != nil {
		return nil, internalErr(err)
	}
	toBalance, _, err := s.cfg.DB.Balance(ctx, req.To)
	if err != nil {
		return nil, internalErr(err)
	}
	log.WithFields(logrus.Fields{
		"from":   req.From,
		"to":     req.To,
		"amount": humanize.Comma(int64(req.AmountURTC)),
		"reason": outReason,
	}).Info("Executed transfer")
	return &TransferResult{
		Status:      "confirmed",
		From:        req.From,
		To:          req.To,
		AmountURTC:  req.AmountURTC,
		AmountRTC:   FormatRTC(req.AmountURTC),
		FeeURTC:     feeURTC,
		Nonce:       req.Nonce,
		FromBalance: fromBalance,
		ToBalance:   toBalance,
	}, nil
}

func (s *Service) parkPending(ctx context.Context, req *TransferRequest, feeURTC uint64) (*TransferResult, *RequestError) {
	confirmsAt := time.Now().Add(params.RustchainConfig().PendingConfirmDelay).Unix()
	p := &iface.PendingTransfer{
		ID:         uuid.New().String(),
		From:       req.From,
		To:         req.To,
		AmountURTC: req.AmountURTC,
		FeeURTC:    feeURTC,
		Nonce:      req.Nonce,
		Memo:       req.Memo,
		Sig:        req.Signature,
		ConfirmsAt: confirmsAt,
	}
	if err := s.cfg.DB.InsertPendingTransfer(ctx, p); err != nil {
		return nil, internalErr(err)
	}
	log.WithFields(logrus.Fields{
		"pendingID": p.ID,
		"amount":    humanize.Comma(int64(req.AmountURTC)),
	}).Info("Parked large transfer as pending")
	return &TransferResult{
		Status:     "pending",
		From:       req.From,
		To:         req.To,
		AmountURTC: req.AmountURTC,
		AmountRTC:  FormatRTC(req.AmountURTC),
		Nonce:      req.Nonce,
		PendingID:  p.ID,
		ConfirmsAt: confirmsAt,
	}, nil
}

// ConfirmPending executes all matured pending transfers now.
func (s *Service) ConfirmPending(ctx context.Context) (int, error) {
	return s.cfg.DB.ConfirmMaturedPending(ctx, time.Now())
}

// History returns recent ledger entries for one wallet, newest first.
func (s *Service) History(ctx context.Context, address string, limit int) ([]*iface.LedgerEntry, error) {
	return s.cfg.DB.LedgerEntries(ctx, address, limit)
}

func internalErr(err error) *RequestError {
	log.WithError(err).Error("Ledger operation failure")
	return &RequestError{Status: http.StatusInternalServerError, Code: CodeInternal, Detail: "internal error"}
}
