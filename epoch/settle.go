package epoch

import (
	"math"
	"sort"

	"github.com/rustchain-network/rustchain/db/iface"
)

// ComputeShares splits an integer pot across enrollments proportionally to
// weight: each miner gets the floor of its proportional share, then the
// leftover micro-RTC go one each to the first miners in miner-key order.
// Every node computes the identical split, and the shares always sum to
// exactly pot.
func ComputeShares(potURTC uint64, enrollments []*iface.Enrollment) []iface.RewardShare {
	if len(enrollments) == 0 || potURTC == 0 {
		return nil
	}
	sorted := make([]*iface.Enrollment, len(enrollments))
	copy(sorted, enrollments)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MinerPK < sorted[j].MinerPK })

	var sumW float64
	for _, e := range sorted {
		if e.Weight > 0 {
			sumW += e.Weight
		}
	}
	if sumW <= 0 {
		return nil
	}

	shares := make([]iface.RewardShare, len(sorted))
	var distributed uint64
	for i, e := range sorted {
		w := e.Weight
		if w < 0 {
			w = 0
		}
		floor := uint64(math.Floor(float64(potURTC) * w / sumW))
		shares[i] = iface.RewardShare{MinerID: e.MinerPK, ShareURTC: floor}
		distributed += floor
	}

	remainder := potURTC - distributed
	for i := uint64(0); i < remainder; i++ {
		shares[i%uint64(len(shares))].ShareURTC++
	}
	return shares
}
