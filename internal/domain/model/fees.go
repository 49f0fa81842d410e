package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Documented fallbacks used when a fee table has no entry for a venue or network pair.
var (
	DefaultCexFeePercent    = decimal.RequireFromString("0.1")
	DefaultDexFeePercent    = decimal.RequireFromString("0.3")
	DefaultBridgeFeePercent = decimal.RequireFromString("0.1")
	DefaultGasCostNative    = decimal.RequireFromString("0.01")
	DefaultGasCostUSD       = decimal.RequireFromString("1")
)

// FeeProfile 单腿成本模型
type FeeProfile struct {
	TradingFeePercent decimal.Decimal `json:"trading_fee_percent"`
	GasCostNative     decimal.Decimal `json:"gas_cost_native"` // 仅链上腿
	GasCostUSD        decimal.Decimal `json:"gas_cost_usd"`
}

// GasEstimate 单个网络一笔 swap 的 gas 估算
type GasEstimate struct {
	NetworkID      string          `json:"network_id"`
	GasPriceGwei   decimal.Decimal `json:"gas_price_gwei"`
	CostNative     decimal.Decimal `json:"cost_native"`
	NativePriceUSD decimal.Decimal `json:"native_price_usd"`
	CostUSD        decimal.Decimal `json:"cost_usd"`
}

// Gap kinds reported when a lookup falls back to a default.
const (
	GapTradingFee = "trading_fee"
	GapBridgeFee  = "bridge_fee"
	GapGas        = "gas"
)

// ConfigGap 记录一次回退到默认值的查询
type ConfigGap struct {
	Kind string `json:"kind"`
	Key  string `json:"key"`
}

// FeeSchedule 只读费用表，一次扫描内共享
type FeeSchedule struct {
	CexTakerFees      map[string]decimal.Decimal            // lower-case venue -> percent
	DexFees           map[string]decimal.Decimal            // lower-case venue -> percent
	BridgeFees        map[string]map[string]decimal.Decimal // source network -> destination network -> percent
	Gas               map[string]GasEstimate                // network -> estimate
	DefaultCexFee     decimal.Decimal
	DefaultDexFee     decimal.Decimal
	DefaultBridgeFee  decimal.Decimal
	DefaultGasCostUSD decimal.Decimal
}

// NewFeeSchedule returns an empty schedule carrying the documented defaults.
func NewFeeSchedule() FeeSchedule {
	return FeeSchedule{
		CexTakerFees:      map[string]decimal.Decimal{},
		DexFees:           map[string]decimal.Decimal{},
		BridgeFees:        map[string]map[string]decimal.Decimal{},
		Gas:               map[string]GasEstimate{},
		DefaultCexFee:     DefaultCexFeePercent,
		DefaultDexFee:     DefaultDexFeePercent,
		DefaultBridgeFee:  DefaultBridgeFeePercent,
		DefaultGasCostUSD: DefaultGasCostUSD,
	}
}

// TradingFeePercent resolves the fee for the venue that produced q.
// ok is false when the default was used.
func (s FeeSchedule) TradingFeePercent(q PriceQuote) (fee decimal.Decimal, ok bool) {
	venue := strings.ToLower(strings.TrimSpace(q.VenueID))
	if q.Centralized() {
		if fee, ok = s.CexTakerFees[venue]; ok {
			return fee, true
		}
		return s.DefaultCexFee, false
	}
	if fee, ok = s.DexFees[venue]; ok {
		return fee, true
	}
	return s.DefaultDexFee, false
}

// BridgeFeePercent 有向查表：资产从 src 网络转到 dst 网络
func (s FeeSchedule) BridgeFeePercent(src, dst string) (decimal.Decimal, bool) {
	if byDst, ok := s.BridgeFees[src]; ok {
		if fee, ok := byDst[dst]; ok {
			return fee, true
		}
	}
	return s.DefaultBridgeFee, false
}

func (s FeeSchedule) GasCostUSD(network string) (decimal.Decimal, bool) {
	if est, ok := s.Gas[network]; ok {
		return est.CostUSD, true
	}
	return s.DefaultGasCostUSD, false
}

// Profile 组合单腿的完整成本：交易费率 + 链上腿所在网络的 gas。
// 回退到默认值的查询作为 gaps 返回。
func (s FeeSchedule) Profile(q PriceQuote) (FeeProfile, []ConfigGap) {
	var gaps []ConfigGap
	fee, ok := s.TradingFeePercent(q)
	if !ok {
		gaps = append(gaps, ConfigGap{Kind: GapTradingFee, Key: q.VenueID})
	}
	p := FeeProfile{TradingFeePercent: fee, GasCostNative: decimal.Zero, GasCostUSD: decimal.Zero}
	if q.Centralized() {
		return p, gaps
	}
	if est, ok := s.Gas[q.NetworkID]; ok {
		p.GasCostNative = est.CostNative
		p.GasCostUSD = est.CostUSD
		return p, gaps
	}
	p.GasCostNative = DefaultGasCostNative
	p.GasCostUSD = s.DefaultGasCostUSD
	return p, append(gaps, ConfigGap{Kind: GapGas, Key: q.NetworkID})
}
