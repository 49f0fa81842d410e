package service

import (
	"time"

	"github.com/shopspring/decimal"

	"arbscan/internal/domain/model"
)

// Params 单次扫描的只读参数；扫描器之间共享，不得修改
type Params struct {
	Fees                 model.FeeSchedule
	Quantity             decimal.Decimal // 每个机会按多少单位资产计算，默认 1
	MinProfitPercent     decimal.Decimal
	MinLiquidityUSD      decimal.Decimal
	CrossNetworkBestOnly bool
}

// DefaultParams returns parameters with the documented defaults.
func DefaultParams() Params {
	return Params{
		Fees:             model.NewFeeSchedule(),
		Quantity:         decimal.NewFromInt(1),
		MinProfitPercent: decimal.RequireFromString("0.5"),
		MinLiquidityUSD:  decimal.NewFromInt(10_000),
	}
}

func (p Params) quantity() decimal.Decimal {
	if !p.Quantity.IsPositive() {
		return decimal.NewFromInt(1)
	}
	return p.Quantity
}

// Scored 单个资产在某场景下的打分结果（未过滤）
type Scored struct {
	Pairs         int
	Opportunities []model.Opportunity
	Gaps          []model.ConfigGap
}

func (s *Scored) gap(kind, key string) {
	for _, g := range s.Gaps {
		if g.Kind == kind && g.Key == key {
			return
		}
	}
	s.Gaps = append(s.Gaps, model.ConfigGap{Kind: kind, Key: key})
}

// PairsFor enumerates the venue pairs a scenario considers for one asset's quotes.
func PairsFor(scenario model.Scenario, quotes []model.PriceQuote, p Params) []model.VenuePair {
	switch scenario {
	case model.ScenarioCexDex:
		return FindPairsWhere(quotes, CentralizedVsOnChain)
	case model.ScenarioDexDex:
		return FindPairsWhere(quotes, SameNetwork)
	case model.ScenarioCrossNetwork:
		if p.CrossNetworkBestOnly {
			quotes = BestPerNetwork(quotes)
		}
		return FindPairsWhere(quotes, CrossNetwork)
	default:
		return nil
	}
}

// ScorePairs turns venue pairs into opportunities under the scenario's cost model.
//
// CEX ↔ DEX: the CEX leg pays the exchange taker fee, the DEX leg pays the DEX fee table
// rate, and gas of the on-chain leg's network is charged once.
// DEX ↔ DEX same network: both legs pay DEX fees, gas of that network is charged once.
// DEX ↔ DEX cross network: gas of both networks is charged, and the directed bridge fee
// (buy network -> sell network) reduces the traded quantity before profit is computed.
func ScorePairs(scenario model.Scenario, pairs []model.VenuePair, p Params, now time.Time) Scored {
	out := Scored{Pairs: len(pairs)}
	for _, pair := range pairs {
		buy := out.profile(p, pair.Buy)
		sell := out.profile(p, pair.Sell)

		var gas, bridge decimal.Decimal
		switch scenario {
		case model.ScenarioCexDex:
			if pair.Buy.Centralized() {
				gas = sell.GasCostUSD
			} else {
				gas = buy.GasCostUSD
			}
		case model.ScenarioDexDex:
			gas = buy.GasCostUSD
		case model.ScenarioCrossNetwork:
			gas = buy.GasCostUSD.Add(sell.GasCostUSD)
			var ok bool
			if bridge, ok = p.Fees.BridgeFeePercent(pair.Buy.NetworkID, pair.Sell.NetworkID); !ok {
				out.gap(model.GapBridgeFee, pair.Buy.NetworkID+"->"+pair.Sell.NetworkID)
			}
		default:
			continue
		}
		out.Opportunities = append(out.Opportunities, score(scenario, pair, p, buy, sell, gas, bridge, now))
	}
	return out
}

func (s *Scored) profile(p Params, q model.PriceQuote) model.FeeProfile {
	fp, gaps := p.Fees.Profile(q)
	for _, g := range gaps {
		s.gap(g.Kind, g.Key)
	}
	return fp
}

// ScoreCexDex pairs every centralized quote of one asset against each on-chain quote
// independently.
func ScoreCexDex(quotes []model.PriceQuote, p Params, now time.Time) Scored {
	return ScorePairs(model.ScenarioCexDex, PairsFor(model.ScenarioCexDex, quotes, p), p, now)
}

// ScoreSameNetwork pairs on-chain quotes that share a network id.
func ScoreSameNetwork(quotes []model.PriceQuote, p Params, now time.Time) Scored {
	return ScorePairs(model.ScenarioDexDex, PairsFor(model.ScenarioDexDex, quotes, p), p, now)
}

// ScoreCrossNetwork pairs on-chain quotes on different networks.
func ScoreCrossNetwork(quotes []model.PriceQuote, p Params, now time.Time) Scored {
	return ScorePairs(model.ScenarioCrossNetwork, PairsFor(model.ScenarioCrossNetwork, quotes, p), p, now)
}

func score(
	scenario model.Scenario,
	pair model.VenuePair,
	p Params,
	buy, sell model.FeeProfile,
	gasUSD, bridgeFeePercent decimal.Decimal,
	now time.Time,
) model.Opportunity {
	buyFee, sellFee := buy.TradingFeePercent, sell.TradingFeePercent

	qty := p.quantity()
	if scenario == model.ScenarioCrossNetwork {
		qty = BridgedQuantity(qty, bridgeFeePercent)
	}
	net, pct := ComputeNetProfit(pair.Buy.PriceUSD, pair.Sell.PriceUSD, qty, buyFee, sellFee, gasUSD, decimal.Zero)

	address := pair.Buy.AssetAddress
	if address == "" {
		address = pair.Sell.AssetAddress
	}
	return model.Opportunity{
		Scenario:           scenario,
		AssetSymbol:        pair.Buy.AssetSymbol,
		AssetAddress:       address,
		BuyVenue:           pair.Buy.VenueID,
		SellVenue:          pair.Sell.VenueID,
		BuyNetwork:         pair.Buy.NetworkID,
		SellNetwork:        pair.Sell.NetworkID,
		BuyPool:            pair.Buy.PoolAddress,
		SellPool:           pair.Sell.PoolAddress,
		BuyPriceUSD:        pair.Buy.PriceUSD,
		SellPriceUSD:       pair.Sell.PriceUSD,
		PriceDiffPercent:   PriceDiffPercent(pair.Buy.PriceUSD, pair.Sell.PriceUSD),
		BuyFeePercent:      buyFee,
		SellFeePercent:     sellFee,
		BridgeFeePercent:   bridgeFeePercent,
		GasCostUSD:         gasUSD,
		NetProfitUSD:       net,
		ProfitPercent:      pct,
		BuyLiquidityUSD:    pair.Buy.LiquidityUSD,
		SellLiquidityUSD:   pair.Sell.LiquidityUSD,
		MinLegLiquidityUSD: pair.MinLiquidityUSD(),
		CreatedAt:          now,
	}
}
