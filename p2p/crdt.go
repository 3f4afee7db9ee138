package p2p

import (
	"context"
	"encoding/json"
	"math"

	"github.com/pkg/errors"

	"github.com/rustchain-network/rustchain/config/params"
	"github.com/rustchain-network/rustchain/db/iface"
)

// Gossiped tables.
const (
	tableAttestations = "miner_attest_recent"
	tableEnrollments  = "epoch_enroll"
)

// dataPayload is the body of a data envelope: one row of a gossiped table.
type dataPayload struct {
	Table string          `json:"table"`
	Row   json.RawMessage `json:"row"`
}

// attestationPayload mirrors the replicated attestation row.
type attestationPayload struct {
	Miner        string  `json:"miner"`
	MinerID      string  `json:"miner_id"`
	DeviceArch   string  `json:"device_arch"`
	DeviceFamily string  `json:"device_family"`
	DeviceModel  string  `json:"device_model"`
	Tier         string  `json:"tier"`
	EntropyScore float64 `json:"entropy_score"`
	ArchScore    float64 `json:"arch_score"`
	TsOK         int64   `json:"ts_ok"`
}

// enrollmentPayload mirrors the replicated enrollment row.
type enrollmentPayload struct {
	Epoch   uint64  `json:"epoch"`
	MinerPK string  `json:"miner_pk"`
	Weight  float64 `json:"weight"`
}

// mergeData applies one replicated row under the table's merge rule:
// attestations are last-writer-wins on ts_ok, enrollments are a grow-only
// union keeping the maximum weight. Both rules are commutative and
// idempotent, so replay and reordering across peers converge.
func mergeData(ctx context.Context, db iface.Database, raw json.RawMessage) (bool, error) {
	var p dataPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return false, errors.Wrap(err, "could not decode data payload")
	}
	switch p.Table {
	case tableAttestations:
		var row attestationPayload
		if err := json.Unmarshal(p.Row, &row); err != nil {
			return false, errors.Wrap(err, "could not decode attestation row")
		}
		if row.Miner == "" || row.TsOK == 0 {
			return false, errors.New("attestation row missing miner or ts_ok")
		}
		return db.MergeAttestation(ctx, &iface.MinerAttestation{
			Miner:        row.Miner,
			MinerID:      row.MinerID,
			DeviceArch:   row.DeviceArch,
			DeviceFamily: row.DeviceFamily,
			DeviceModel:  row.DeviceModel,
			Tier:         row.Tier,
			EntropyScore: row.EntropyScore,
			ArchScore:    row.ArchScore,
			TsOK:         row.TsOK,
		})
	case tableEnrollments:
		var row enrollmentPayload
		if err := json.Unmarshal(p.Row, &row); err != nil {
			return false, errors.Wrap(err, "could not decode enrollment row")
		}
		if row.MinerPK == "" || math.IsNaN(row.Weight) || row.Weight <= 0 {
			return false, errors.New("enrollment row missing miner_pk or weight")
		}
		// No enrollment can legally exceed the best tier multiplier times the
		// genesis time-aged bonus; anything above is a forged row that would
		// poison settlement arithmetic.
		maxWeight := params.AntiquityMultiplier(params.TierAncient) * params.RustchainConfig().TimeAgedBonusStart
		if row.Weight > maxWeight {
			return false, errors.Errorf("enrollment weight %v above legal maximum %v", row.Weight, maxWeight)
		}
		err := db.Enroll(ctx, &iface.Enrollment{Epoch: row.Epoch, MinerPK: row.MinerPK, Weight: row.Weight})
		if errors.Is(err, iface.ErrEpochSettled) {
			// A settled epoch no longer accepts rows; the peer is behind.
			return false, nil
		}
		return err == nil, err
	default:
		return false, errors.Errorf("unknown gossip table %q", p.Table)
	}
}

func attestationData(a *iface.MinerAttestation) ([]byte, error) {
	row, err := json.Marshal(&attestationPayload{
		Miner:        a.Miner,
		MinerID:      a.MinerID,
		DeviceArch:   a.DeviceArch,
		DeviceFamily: a.DeviceFamily,
		DeviceModel:  a.DeviceModel,
		Tier:         a.Tier,
		EntropyScore: a.EntropyScore,
		ArchScore:    a.ArchScore,
		TsOK:         a.TsOK,
	})
	if err != nil {
		return nil, err
	}
	return json.Marshal(&dataPayload{Table: tableAttestations, Row: row})
}

func enrollmentData(e *iface.Enrollment) ([]byte, error) {
	row, err := json.Marshal(&enrollmentPayload{Epoch: e.Epoch, MinerPK: e.MinerPK, Weight: e.Weight})
	if err != nil {
		return nil, err
	}
	return json.Marshal(&dataPayload{Table: tableEnrollments, Row: row})
}
