package service

import (
	"sort"

	"github.com/shopspring/decimal"

	"arbscan/internal/domain/model"
)

// FilterAndRank keeps opportunities whose profit percent reaches minProfitPercent and whose
// thinner leg holds at least minLiquidityUSD (both thresholds inclusive), then ranks them.
func FilterAndRank(opps []model.Opportunity, minProfitPercent, minLiquidityUSD decimal.Decimal) []model.Opportunity {
	out := make([]model.Opportunity, 0, len(opps))
	for _, o := range opps {
		if o.ProfitPercent.LessThan(minProfitPercent) {
			continue
		}
		if decimal.Min(o.BuyLiquidityUSD, o.SellLiquidityUSD).LessThan(minLiquidityUSD) {
			continue
		}
		out = append(out, o)
	}
	Rank(out)
	return out
}

// Rank 按利润率降序稳定排序，同值按 (buy venue, sell venue, buy network, sell network, asset, buy pool, sell pool)
func Rank(opps []model.Opportunity) {
	sort.SliceStable(opps, func(i, j int) bool {
		a, b := opps[i], opps[j]
		if c := a.ProfitPercent.Cmp(b.ProfitPercent); c != 0 {
			return c > 0
		}
		if a.BuyVenue != b.BuyVenue {
			return a.BuyVenue < b.BuyVenue
		}
		if a.SellVenue != b.SellVenue {
			return a.SellVenue < b.SellVenue
		}
		if a.BuyNetwork != b.BuyNetwork {
			return a.BuyNetwork < b.BuyNetwork
		}
		if a.SellNetwork != b.SellNetwork {
			return a.SellNetwork < b.SellNetwork
		}
		if a.AssetSymbol != b.AssetSymbol {
			return a.AssetSymbol < b.AssetSymbol
		}
		if a.BuyPool != b.BuyPool {
			return a.BuyPool < b.BuyPool
		}
		return a.SellPool < b.SellPool
	})
}
