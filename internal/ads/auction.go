package ads

import "sort"

// RunAuction ranks candidates by effective bid (bid x quality) and settles
// the winner at the generalized second price: the runner-up's effective bid
// divided by the winner's quality score, which is the smallest raw bid that
// would still have won. A solo candidate pays soloFraction of its raw bid
// instead; pass 0 to use DefaultSoloSettlementFraction.
func RunAuction(candidates []AdCandidate, soloFraction float64) AuctionResult {
	if len(candidates) == 0 {
		return AuctionResult{}
	}
	if soloFraction <= 0 || soloFraction > 1 {
		soloFraction = DefaultSoloSettlementFraction
	}

	ranked := make([]AdCandidate, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		bi, bj := ranked[i].EffectiveBid(), ranked[j].EffectiveBid()
		if bi != bj {
			return bi > bj
		}
		return ranked[i].Campaign.ID < ranked[j].Campaign.ID
	})

	winner := ranked[0]
	var price float64
	if len(ranked) == 1 {
		price = winner.Bid * soloFraction
	} else {
		price = ranked[1].EffectiveBid() / winner.QualityScore
	}
	if price > winner.Bid {
		price = winner.Bid
	}
	if price < 0 {
		price = 0
	}
	return AuctionResult{Winner: &winner, SettlementPrice: price}
}
