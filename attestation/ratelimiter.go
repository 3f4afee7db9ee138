package attestation

import (
	"github.com/kevinms/leakybucket-go"

	"github.com/rustchain-network/rustchain/config/params"
)

// submitLimiter enforces the two submission rate limits. The per-IP bucket is
// charged on every request so abusive clients are cut off early; the
// per-miner bucket is charged only on accepted attestations, so a rejected
// submit (replayed nonce, bad fingerprint) reports its own error rather
// than a rate limit.
type submitLimiter struct {
	perMiner *leakybucket.Collector
	perIP    *leakybucket.Collector
}

func newSubmitLimiter() *submitLimiter {
	cfg := params.RustchainConfig()
	return &submitLimiter{
		perMiner: leakybucket.NewCollector(1.0/cfg.MinerSubmitPeriod.Seconds(), 1, true /* deleteEmptyBuckets */),
		perIP:    leakybucket.NewCollector(float64(cfg.IPSubmitsPerMinute)/60.0, cfg.IPSubmitsPerMinute, true /* deleteEmptyBuckets */),
	}
}

// allowIP consumes one token from the client IP's bucket.
func (l *submitLimiter) allowIP(ip string) bool {
	return l.perIP.Add(ip, 1) == 1
}

// minerOpen reports whether the miner's bucket has room for an acceptance.
func (l *submitLimiter) minerOpen(minerID string) bool {
	return l.perMiner.Remaining(minerID) >= 1
}

// chargeMiner records one accepted attestation against the miner's bucket.
func (l *submitLimiter) chargeMiner(minerID string) {
	l.perMiner.Add(minerID, 1)
}
