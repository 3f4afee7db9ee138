package rpc

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/rustchain-network/rustchain/attestation"
	"github.com/rustchain-network/rustchain/config/params"
	"github.com/rustchain-network/rustchain/ledger"
	"github.com/rustchain-network/rustchain/network/httputil"
	"github.com/rustchain-network/rustchain/p2p"
	"github.com/rustchain-network/rustchain/runtime/version"
	"github.com/rustchain-network/rustchain/time/slots"
)

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	// A read against the balances table doubles as the db liveness probe.
	_, _, err := s.cfg.DB.Balance(r.Context(), "RTC0000000000000000000000000000000000000000")
	dbRW := err == nil

	currentSlot := uint64(slots.CurrentSlot())
	tipAge := currentSlot
	if last, ok, lerr := s.cfg.DB.LastSettledEpoch(r.Context()); lerr == nil && ok {
		tipSlot := uint64(slots.EpochEnd(slots.Epoch(last)))
		if currentSlot > tipSlot {
			tipAge = currentSlot - tipSlot
		} else {
			tipAge = 0
		}
	}
	httputil.WriteJson(w, map[string]interface{}{
		"ok":            dbRW,
		"version":       version.Version(),
		"uptime_s":      int64(time.Since(s.startTime).Seconds()),
		"db_rw":         dbRW,
		"tip_age_slots": tipAge,
	})
}

func (s *Service) handleEpoch(w http.ResponseWriter, r *http.Request) {
	info, err := s.cfg.Epoch.CurrentInfo(r.Context())
	if err != nil {
		httputil.HandleError(w, http.StatusInternalServerError, "INTERNAL")
		return
	}
	httputil.WriteJson(w, map[string]interface{}{
		"epoch":              info.Epoch,
		"slot":               info.Slot,
		"slot_in_epoch":      info.SlotInEpoch,
		"blocks_per_epoch":   params.RustchainConfig().EpochSlots,
		"enrolled_miners":    info.EnrolledMiners,
		"epoch_pot":          info.PotURTC,
		"epoch_start":        info.EpochStartUnix,
		"epoch_end":          info.EpochEndUnix,
		"last_settled_epoch": info.LastSettledEpoch,
	})
}

func (s *Service) handleConfig(w http.ResponseWriter, _ *http.Request) {
	c := params.RustchainConfig()
	httputil.WriteJson(w, map[string]interface{}{
		"genesis_timestamp":       c.GenesisTimestamp,
		"block_time_seconds":      c.BlockTimeSeconds,
		"epoch_slots":             c.EpochSlots,
		"per_epoch_pot_urtc":      c.PerEpochPotURTC,
		"min_withdrawal_urtc":     c.MinWithdrawalURTC,
		"withdrawal_fee_urtc":     c.WithdrawalFeeURTC,
		"pending_threshold_urtc":  c.PendingThresholdURTC,
		"pending_confirm_delay_s": int64(c.PendingConfirmDelay.Seconds()),
		"challenge_ttl_s":         int64(c.ChallengeTTL.Seconds()),
	})
}

func (s *Service) handleMiners(w http.ResponseWriter, r *http.Request) {
	miners, err := s.cfg.Attestation.RecentMiners(r.Context())
	if err != nil {
		httputil.HandleError(w, http.StatusInternalServerError, "INTERNAL")
		return
	}
	httputil.WriteJson(w, map[string]interface{}{"miners": miners, "count": len(miners)})
}

func (s *Service) handleChallenge(w http.ResponseWriter, r *http.Request) {
	var body struct {
		MinerID string `json:"miner_id"`
	}
	if !httputil.DecodeJsonObject(w, r, &body) {
		return
	}
	if body.MinerID == "" {
		httputil.WriteError(w, httputil.NewError(http.StatusBadRequest, "INVALID_JSON_OBJECT", "miner_id must be a non-empty string"))
		return
	}
	ch, err := s.cfg.Attestation.IssueChallenge(r.Context(), body.MinerID)
	if err != nil {
		httputil.HandleError(w, http.StatusInternalServerError, "INTERNAL")
		return
	}
	httputil.WriteJson(w, ch)
}

func (s *Service) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var raw map[string]interface{}
	if !httputil.DecodeJsonObject(w, r, &raw) {
		return
	}
	req, serr := attestation.ParseSubmit(raw)
	if serr != nil {
		httputil.WriteError(w, httputil.NewError(serr.Status, serr.Code, serr.Detail))
		return
	}
	clientIP := attestation.ClientIP(r, s.cfg.TrustedProxies)
	res, serr := s.cfg.Attestation.ProcessSubmit(r.Context(), req, clientIP)
	if serr != nil {
		httputil.WriteError(w, httputil.NewError(serr.Status, serr.Code, serr.Detail))
		return
	}
	httputil.WriteJson(w, map[string]interface{}{
		"ok":                   true,
		"miner":                res.Miner,
		"miner_id":             res.MinerID,
		"tier":                 res.Tier,
		"antiquity_multiplier": res.Multiplier,
		"entropy_score":        res.EntropyScore,
		"arch_score":           res.ArchScore,
		"hardware_id":          res.HardwareID,
	})
}

func (s *Service) handleBalance(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Query().Get("address")
	minerID := r.URL.Query().Get("miner_id")
	switch {
	case address != "":
		info, rerr := s.cfg.Ledger.BalanceByAddress(r.Context(), address)
		if rerr != nil {
			httputil.WriteError(w, httputil.NewError(rerr.Status, rerr.Code, rerr.Detail))
			return
		}
		httputil.WriteJson(w, info)
	case minerID != "":
		info, rerr := s.cfg.Ledger.BalanceByMinerID(r.Context(), minerID)
		if rerr != nil {
			httputil.WriteError(w, httputil.NewError(rerr.Status, rerr.Code, rerr.Detail))
			return
		}
		httputil.WriteJson(w, info)
	default:
		httputil.WriteError(w, httputil.NewError(http.StatusBadRequest, "INVALID_JSON_OBJECT", "address or miner_id query parameter required"))
	}
}

func (s *Service) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var raw map[string]interface{}
	if !httputil.DecodeJsonObject(w, r, &raw) {
		return
	}
	req, rerr := ledger.ParseTransfer(raw)
	if rerr != nil {
		httputil.WriteError(w, httputil.NewError(rerr.Status, rerr.Code, rerr.Detail))
		return
	}
	res, lerr := s.cfg.Ledger.Transfer(r.Context(), req)
	if lerr != nil {
		httputil.WriteError(w, httputil.NewError(lerr.Status, lerr.Code, lerr.Detail))
		return
	}
	httputil.WriteJson(w, res)
}

func (s *Service) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var raw map[string]interface{}
	if !httputil.DecodeJsonObject(w, r, &raw) {
		return
	}
	req, rerr := ledger.ParseTransfer(raw)
	if rerr != nil {
		httputil.WriteError(w, httputil.NewError(rerr.Status, rerr.Code, rerr.Detail))
		return
	}
	res, lerr := s.cfg.Ledger.Withdraw(r.Context(), req)
	if lerr != nil {
		httputil.WriteError(w, httputil.NewError(lerr.Status, lerr.Code, lerr.Detail))
		return
	}
	httputil.WriteJson(w, res)
}

func (s *Service) handleSettle(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Epoch *uint64 `json:"epoch"`
	}
	if !httputil.DecodeJsonObject(w, r, &body) {
		return
	}
	if body.Epoch != nil {
		if err := s.cfg.Epoch.ForceSettle(r.Context(), *body.Epoch); err != nil {
			httputil.HandleError(w, http.StatusInternalServerError, "INTERNAL")
			return
		}
		rewards, err := s.cfg.DB.RewardsForEpoch(r.Context(), *body.Epoch)
		if err != nil {
			httputil.HandleError(w, http.StatusInternalServerError, "INTERNAL")
			return
		}
		httputil.WriteJson(w, map[string]interface{}{"ok": true, "epoch": *body.Epoch, "rewards": rewards})
		return
	}
	if err := s.cfg.Epoch.SettleDue(r.Context()); err != nil {
		httputil.HandleError(w, http.StatusInternalServerError, "INTERNAL")
		return
	}
	httputil.WriteJson(w, map[string]interface{}{"ok": true})
}

func (s *Service) handleEpochRewards(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.ParseUint(mux.Vars(r)["n"], 10, 64)
	if err != nil {
		httputil.HandleError(w, http.StatusBadRequest, "INVALID_JSON_OBJECT")
		return
	}
	rewards, err := s.cfg.DB.RewardsForEpoch(r.Context(), n)
	if err != nil {
		httputil.HandleError(w, http.StatusInternalServerError, "INTERNAL")
		return
	}
	settled, err := s.cfg.DB.IsEpochSettled(r.Context(), n)
	if err != nil {
		httputil.HandleError(w, http.StatusInternalServerError, "INTERNAL")
		return
	}
	var total uint64
	out := make([]map[string]interface{}, 0, len(rewards))
	for _, reward := range rewards {
		total += reward.ShareURTC
		out = append(out, map[string]interface{}{
			"miner_id":   reward.MinerID,
			"share_urtc": reward.ShareURTC,
		})
	}
	httputil.WriteJson(w, map[string]interface{}{
		"epoch":      n,
		"settled":    settled,
		"rewards":    out,
		"total_urtc": total,
	})
}

func (s *Service) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.cfg.DB.SyncStatus(r.Context())
	if err != nil {
		httputil.HandleError(w, http.StatusInternalServerError, "INTERNAL")
		return
	}
	httputil.WriteJson(w, status)
}

func (s *Service) handlePendingConfirm(w http.ResponseWriter, r *http.Request) {
	n, err := s.cfg.Ledger.ConfirmPending(r.Context())
	if err != nil {
		httputil.HandleError(w, http.StatusInternalServerError, "INTERNAL")
		return
	}
	httputil.WriteJson(w, map[string]interface{}{"ok": true, "confirmed": n})
}

func (s *Service) handlePeerRevoke(w http.ResponseWriter, r *http.Request) {
	var body struct {
		NodeID string `json:"node_id"`
	}
	if !httputil.DecodeJsonObject(w, r, &body) {
		return
	}
	if body.NodeID == "" {
		httputil.WriteError(w, httputil.NewError(http.StatusBadRequest, "INVALID_JSON_OBJECT", "node_id must be a non-empty string"))
		return
	}
	if err := s.cfg.DB.RevokePeerKey(r.Context(), body.NodeID); err != nil {
		httputil.HandleError(w, http.StatusInternalServerError, "INTERNAL")
		return
	}
	httputil.WriteJson(w, map[string]interface{}{"ok": true, "node_id": body.NodeID})
}

func (s *Service) handleP2PMessage(w http.ResponseWriter, r *http.Request) {
	env := &p2p.Envelope{}
	if !httputil.DecodeJsonObject(w, r, env) {
		return
	}
	reply, err := s.cfg.P2P.HandleMessage(r.Context(), env)
	if err != nil {
		if errors.Is(err, p2p.ErrUntrustedPeer) {
			httputil.HandleError(w, http.StatusUnauthorized, "UNAUTHORIZED")
			return
		}
		httputil.WriteError(w, httputil.NewError(http.StatusBadRequest, "P2P_REJECTED", err.Error()))
		return
	}
	httputil.WriteJson(w, reply)
}
