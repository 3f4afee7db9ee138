// Package iface defines the database interface the rest of the node programs
// against, split into one repository per aggregate. Only the sqlite package
// implements it.
package iface

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
)

// Sentinel errors callers branch on. Handlers map these to 4xx codes.
var (
	// ErrChallengeInvalid is returned when a submitted nonce was never
	// issued or has already expired.
	ErrChallengeInvalid = errors.New("challenge nonce unknown or expired")
	// ErrNonceReplay is returned when a (miner_id, nonce) pair is seen twice.
	ErrNonceReplay = errors.New("nonce already used")
	// ErrHardwareBound is returned when a hardware id is bound to another miner.
	ErrHardwareBound = errors.New("hardware already bound to a different miner")
	// ErrInsufficientBalance is returned when a debit exceeds the balance.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrNonceStale is returned when a transfer nonce does not advance the
	// wallet nonce.
	ErrNonceStale = errors.New("transfer nonce is stale")
	// ErrEpochSettled is returned when mutating an already settled epoch.
	ErrEpochSettled = errors.New("epoch already settled")
	// ErrNotFound is returned for lookups of absent rows.
	ErrNotFound = errors.New("not found")
)

// MinerAttestation is the most recent accepted attestation per miner wallet.
type MinerAttestation struct {
	Miner        string  // wallet address
	MinerID      string  // opaque client-chosen id
	DeviceArch   string
	DeviceFamily string
	DeviceModel  string
	Tier         string
	EntropyScore float64
	ArchScore    float64
	TsOK         int64 // unix seconds of last accepted attestation
}

// Enrollment is one miner's membership in an epoch's reward set.
type Enrollment struct {
	Epoch   uint64
	MinerPK string
	Weight  float64
}

// RewardShare is one miner's computed share of an epoch pot.
type RewardShare struct {
	MinerID   string
	ShareURTC uint64
}

// EpochReward is a persisted settlement row.
type EpochReward struct {
	Epoch     uint64
	MinerID   string
	ShareURTC uint64
}

// LedgerEntry is one append-only balance movement.
type LedgerEntry struct {
	Ts        int64
	Epoch     uint64
	MinerID   string
	DeltaURTC int64
	Reason    string
}

// Ledger entry reasons.
const (
	ReasonEpochReward = "epoch_reward"
	ReasonTransferIn  = "transfer_in"
	ReasonTransferOut = "transfer_out"
	ReasonWithdrawal  = "withdrawal"
	ReasonFee         = "fee"
)

// PendingTransfer is a parked large transfer awaiting maturity.
type PendingTransfer struct {
	ID         string
	From       string
	To         string
	AmountURTC uint64
	FeeURTC    uint64
	Nonce      uint64
	Memo       string
	Sig        string
	Status     string
	ConfirmsAt int64
}

// Pending transfer statuses.
const (
	PendingStatusPending   = "pending"
	PendingStatusConfirmed = "confirmed"
	PendingStatusVoided    = "voided"
)

// TransferExec describes a verified transfer ready for atomic execution.
type TransferExec struct {
	From       string
	To         string
	AmountURTC uint64
	FeeURTC    uint64
	Nonce      uint64
	Memo       string
	Reason     string // ReasonTransferOut or ReasonWithdrawal for the debit leg
}

// TableStatus is one table's contribution to the sync-status probe.
type TableStatus struct {
	Name  string `json:"name"`
	Count uint64 `json:"count"`
	Hash  string `json:"hash"`
}

// SyncStatus is the merkle summary external tooling compares across peers.
type SyncStatus struct {
	MerkleRoot string        `json:"merkle_root"`
	Tables     []TableStatus `json:"per_table"`
}

// MinerRepo owns miners, hardware bindings, MAC observations and blocklists.
type MinerRepo interface {
	SaveAttestation(ctx context.Context, att *MinerAttestation) error
	RecentAttestations(ctx context.Context, since time.Time) ([]*MinerAttestation, error)
	AttestationsSince(ctx context.Context, ts int64) ([]*MinerAttestation, error)
	MergeAttestation(ctx context.Context, att *MinerAttestation) (bool, error)
	BindHardware(ctx context.Context, hardwareID, minerID string) error
	BoundMiner(ctx context.Context, hardwareID string) (string, error)
	RecordMACs(ctx context.Context, miner string, macs []string) error
	IsWalletBlocked(ctx context.Context, wallet string) (bool, error)
	BlockWallet(ctx context.Context, wallet string) error
	WalletForMiner(ctx context.Context, minerID string) (string, error)
}

// NonceRepo owns challenge issuance and the replay table.
type NonceRepo interface {
	SaveChallenge(ctx context.Context, nonce, minerID string, expiresAt time.Time) error
	ConsumeChallenge(ctx context.Context, nonce string, now time.Time) (string, error)
	MarkNonceUsed(ctx context.Context, minerID, nonce string, expiresAt time.Time) error
	PruneNonces(ctx context.Context, now time.Time) (int64, error)
}

// EpochRepo owns enrollment, epoch state and reward rows.
type EpochRepo interface {
	Enroll(ctx context.Context, e *Enrollment) error
	Enrollments(ctx context.Context, epoch uint64) ([]*Enrollment, error)
	EnrolledCount(ctx context.Context, epoch uint64) (uint64, error)
	EnrollmentsForUnsettledEpochs(ctx context.Context) ([]*Enrollment, error)
	UnsettledEnrolledEpochsBelow(ctx context.Context, bound uint64) ([]uint64, error)
	IsEpochSettled(ctx context.Context, epoch uint64) (bool, error)
	LastSettledEpoch(ctx context.Context) (uint64, bool, error)
	SettleEpoch(ctx context.Context, epoch uint64, shares []RewardShare) error
	RewardsForEpoch(ctx context.Context, epoch uint64) ([]*EpochReward, error)
}

// LedgerRepo owns balances, wallet nonces, ledger entries and pending
// transfers.
type LedgerRepo interface {
	Balance(ctx context.Context, address string) (uint64, uint64, error)
	Credit(ctx context.Context, address string, amountURTC uint64, epoch uint64, reason string) error
	ExecuteTransfer(ctx context.Context, xfer *TransferExec) error
	InsertPendingTransfer(ctx context.Context, p *PendingTransfer) error
	ConfirmMaturedPending(ctx context.Context, now time.Time) (int, error)
	LedgerEntries(ctx context.Context, minerID string, limit int) ([]*LedgerEntry, error)
}

// P2PRepo owns peer key trust-on-first-use state.
type P2PRepo interface {
	SavePeerKeyIfAbsent(ctx context.Context, peerID string, pubkey []byte) ([]byte, error)
	PeerKey(ctx context.Context, peerID string) ([]byte, error)
	RevokePeerKey(ctx context.Context, peerID string) error
}

// SyncProbe computes the merkle summary of stable tables.
type SyncProbe interface {
	SyncStatus(ctx context.Context) (*SyncStatus, error)
}

// Database is the full node database.
type Database interface {
	io.Closer
	MinerRepo
	NonceRepo
	EpochRepo
	LedgerRepo
	P2PRepo
	SyncProbe
	DatabasePath() string
}
