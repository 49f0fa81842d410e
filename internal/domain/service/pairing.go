package service

import (
	"sort"

	"arbscan/internal/domain/model"
)

// PairFilter decides whether two usable quotes may form a pair.
type PairFilter func(a, b model.PriceQuote) bool

// SameNetwork 两条链上报价位于同一网络
func SameNetwork(a, b model.PriceQuote) bool {
	return !a.Centralized() && !b.Centralized() && a.NetworkID == b.NetworkID
}

// CrossNetwork 两条链上报价位于不同网络
func CrossNetwork(a, b model.PriceQuote) bool {
	return !a.Centralized() && !b.Centralized() && a.NetworkID != b.NetworkID
}

// CentralizedVsOnChain 一条中心化报价对一条链上报价
func CentralizedVsOnChain(a, b model.PriceQuote) bool {
	return a.Centralized() != b.Centralized()
}

// FindPairs enumerates every unordered pair of quotes for one asset and orients each pair
// so the cheaper quote is the buy leg. Quotes with a non-positive price and pairs with equal
// prices are skipped.
func FindPairs(quotes []model.PriceQuote) []model.VenuePair {
	return FindPairsWhere(quotes, nil)
}

// FindPairsWhere is FindPairs restricted to pairs accepted by accept (nil accepts all).
// The result is ordered by (buy venue, sell venue, buy network, sell network, buy pool,
// sell pool) regardless of the input order.
func FindPairsWhere(quotes []model.PriceQuote, accept PairFilter) []model.VenuePair {
	pairs := make([]model.VenuePair, 0)
	for i := 0; i < len(quotes); i++ {
		a := quotes[i]
		if !a.Usable() {
			continue
		}
		for j := i + 1; j < len(quotes); j++ {
			b := quotes[j]
			if !b.Usable() || a.PriceUSD.Equal(b.PriceUSD) {
				continue
			}
			if accept != nil && !accept(a, b) {
				continue
			}
			if a.PriceUSD.LessThan(b.PriceUSD) {
				pairs = append(pairs, model.VenuePair{Buy: a, Sell: b})
			} else {
				pairs = append(pairs, model.VenuePair{Buy: b, Sell: a})
			}
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairLess(pairs[i], pairs[j]) })
	return pairs
}

func pairLess(a, b model.VenuePair) bool {
	if a.Buy.VenueID != b.Buy.VenueID {
		return a.Buy.VenueID < b.Buy.VenueID
	}
	if a.Sell.VenueID != b.Sell.VenueID {
		return a.Sell.VenueID < b.Sell.VenueID
	}
	if a.Buy.NetworkID != b.Buy.NetworkID {
		return a.Buy.NetworkID < b.Buy.NetworkID
	}
	if a.Sell.NetworkID != b.Sell.NetworkID {
		return a.Sell.NetworkID < b.Sell.NetworkID
	}
	if a.Buy.PoolAddress != b.Buy.PoolAddress {
		return a.Buy.PoolAddress < b.Buy.PoolAddress
	}
	if a.Sell.PoolAddress != b.Sell.PoolAddress {
		return a.Sell.PoolAddress < b.Sell.PoolAddress
	}
	if c := a.Buy.PriceUSD.Cmp(b.Buy.PriceUSD); c != 0 {
		return c < 0
	}
	return a.Sell.PriceUSD.LessThan(b.Sell.PriceUSD)
}

// BestPerNetwork keeps the deepest-liquidity quote on each network. Ties go to the
// lexically smaller (venue id, pool address). Centralized quotes pass through untouched.
func BestPerNetwork(quotes []model.PriceQuote) []model.PriceQuote {
	best := make(map[string]model.PriceQuote)
	var out []model.PriceQuote
	for _, q := range quotes {
		if q.Centralized() {
			out = append(out, q)
			continue
		}
		if !q.Usable() {
			continue
		}
		cur, ok := best[q.NetworkID]
		if !ok || q.LiquidityUSD.GreaterThan(cur.LiquidityUSD) ||
			(q.LiquidityUSD.Equal(cur.LiquidityUSD) && venueBefore(q, cur)) {
			best[q.NetworkID] = q
		}
	}
	networks := make([]string, 0, len(best))
	for n := range best {
		networks = append(networks, n)
	}
	sort.Strings(networks)
	for _, n := range networks {
		out = append(out, best[n])
	}
	return out
}

func venueBefore(a, b model.PriceQuote) bool {
	if a.VenueID != b.VenueID {
		return a.VenueID < b.VenueID
	}
	return a.PoolAddress < b.PoolAddress
}
