package model

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ========== Scenario ==========

// Scenario 场所配对拓扑
type Scenario int

const (
	ScenarioCexDex       Scenario = iota + 1 // CEX ↔ DEX，同一网络
	ScenarioDexDex                           // DEX ↔ DEX，同一网络
	ScenarioCrossNetwork                     // DEX ↔ DEX，跨网络（含跨链桥费用）
)

// AllScenarios in scenario-id order.
var AllScenarios = []Scenario{ScenarioCexDex, ScenarioDexDex, ScenarioCrossNetwork}

func (s Scenario) String() string {
	switch s {
	case ScenarioCexDex:
		return "SAME_NETWORK_CEX_DEX"
	case ScenarioDexDex:
		return "SAME_NETWORK_DEX_DEX"
	case ScenarioCrossNetwork:
		return "CROSS_NETWORK_DEX_DEX"
	default:
		return "UNKNOWN"
	}
}

// Title 人类可读描述
func (s Scenario) Title() string {
	switch s {
	case ScenarioCexDex:
		return "CEX ↔ DEX (same network)"
	case ScenarioDexDex:
		return "DEX ↔ DEX (same network)"
	case ScenarioCrossNetwork:
		return "DEX ↔ DEX (cross network)"
	default:
		return "unknown scenario"
	}
}

func (s Scenario) Valid() bool {
	return s >= ScenarioCexDex && s <= ScenarioCrossNetwork
}

func (s Scenario) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid scenario %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *Scenario) UnmarshalText(b []byte) error {
	v, err := ParseScenario(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseScenario accepts a scenario id ("1".."3") or its name.
func ParseScenario(raw string) (Scenario, error) {
	v := strings.ToUpper(strings.TrimSpace(raw))
	if n, err := strconv.Atoi(v); err == nil {
		s := Scenario(n)
		if !s.Valid() {
			return 0, fmt.Errorf("unknown scenario %q", raw)
		}
		return s, nil
	}
	for _, s := range AllScenarios {
		if s.String() == v {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown scenario %q", raw)
}

// ParseScenarioSelector 解析 "1" / "2" / "3" / "all"（也接受逗号分隔列表）
func ParseScenarioSelector(raw string) ([]Scenario, error) {
	v := strings.TrimSpace(raw)
	if v == "" || strings.EqualFold(v, "all") {
		return append([]Scenario(nil), AllScenarios...), nil
	}
	seen := map[Scenario]struct{}{}
	var out []Scenario
	for _, part := range strings.Split(v, ",") {
		s, err := ParseScenario(part)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// ========== Scan phases ==========

// Phase 单个资产扫描的状态机阶段
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseFetching
	PhasePairing
	PhaseScoring
	PhaseFiltering
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseFetching:
		return "FETCHING"
	case PhasePairing:
		return "PAIRING"
	case PhaseScoring:
		return "SCORING"
	case PhaseFiltering:
		return "FILTERING"
	case PhaseDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Phase) UnmarshalText(b []byte) error {
	v := strings.ToUpper(strings.TrimSpace(string(b)))
	for c := PhaseIdle; c <= PhaseDone; c++ {
		if c.String() == v {
			*p = c
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", string(b))
}

// ========== Opportunity ==========

// Opportunity 单次扫描产生的套利机会（创建后不可变）
type Opportunity struct {
	Scenario           Scenario        `json:"scenario"`
	AssetSymbol        string          `json:"asset_symbol"`
	AssetAddress       string          `json:"asset_address,omitempty"`
	BuyVenue           string          `json:"buy_venue"`
	SellVenue          string          `json:"sell_venue"`
	BuyNetwork         string          `json:"buy_network"`
	SellNetwork        string          `json:"sell_network"`
	BuyPool            string          `json:"buy_pool,omitempty"`
	SellPool           string          `json:"sell_pool,omitempty"`
	BuyPriceUSD        decimal.Decimal `json:"buy_price_usd"`
	SellPriceUSD       decimal.Decimal `json:"sell_price_usd"`
	PriceDiffPercent   decimal.Decimal `json:"price_diff_percent"`
	BuyFeePercent      decimal.Decimal `json:"buy_fee_percent"`
	SellFeePercent     decimal.Decimal `json:"sell_fee_percent"`
	BridgeFeePercent   decimal.Decimal `json:"bridge_fee_percent"` // 仅跨网络场景
	GasCostUSD         decimal.Decimal `json:"gas_cost_usd"`
	NetProfitUSD       decimal.Decimal `json:"net_profit_usd"` // 一个单位资产
	ProfitPercent      decimal.Decimal `json:"profit_percent"`
	BuyLiquidityUSD    decimal.Decimal `json:"buy_liquidity_usd"`
	SellLiquidityUSD   decimal.Decimal `json:"sell_liquidity_usd"`
	MinLegLiquidityUSD decimal.Decimal `json:"min_leg_liquidity_usd"`
	CreatedAt          time.Time       `json:"created_at"`
}

// BuyLabel 展示用买入场所
func (o Opportunity) BuyLabel() string { return venueLabel(o.BuyVenue, o.BuyPool, o.BuyNetwork) }

// SellLabel 展示用卖出场所
func (o Opportunity) SellLabel() string { return venueLabel(o.SellVenue, o.SellPool, o.SellNetwork) }

func venueLabel(venue, pool, network string) string {
	if network == "" || strings.EqualFold(network, CentralizedNetwork) {
		return venue
	}
	if short := ShortPool(pool); short != "" {
		venue += "#" + short
	}
	return fmt.Sprintf("%s (%s)", venue, network)
}

// ShortPool 池子地址的短形式：去掉 0x 前缀后的前 6 位
func ShortPool(pool string) string {
	p := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(pool)), "0x")
	if len(p) > 6 {
		p = p[:6]
	}
	return p
}

// ========== Scan results ==========

// Skip 被跳过的资产或单条腿
type Skip struct {
	Asset   string `json:"asset"`
	Venue   string `json:"venue,omitempty"`
	Network string `json:"network,omitempty"`
	Phase   Phase  `json:"phase"`
	Leg     bool   `json:"leg"` // true: 只跳过一条腿，资产其余部分继续
	Reason  string `json:"reason"`
}

// ScanResult 单个场景一次扫描的结果；部分失败时仍返回已得到的机会
type ScanResult struct {
	Scenario      Scenario      `json:"scenario"`
	Opportunities []Opportunity `json:"opportunities"`
	AssetsScanned int           `json:"assets_scanned"`
	AssetsSkipped int           `json:"assets_skipped"`
	LegsSkipped   int           `json:"legs_skipped"`
	Skips         []Skip        `json:"skips,omitempty"`
	Gaps          []ConfigGap   `json:"config_gaps,omitempty"`
	StartedAt     time.Time     `json:"started_at"`
	FinishedAt    time.Time     `json:"finished_at"`
}

func (r ScanResult) Partial() bool {
	return r.AssetsSkipped > 0 || r.LegsSkipped > 0
}

// Report 一次完整（多场景）扫描
type Report struct {
	ID         string                  `json:"id"`
	StartedAt  time.Time               `json:"started_at"`
	FinishedAt time.Time               `json:"finished_at"`
	Results    map[Scenario]ScanResult `json:"results"`
}

// Scenarios returns the scenarios present in the report, in id order.
func (r Report) Scenarios() []Scenario {
	out := make([]Scenario, 0, len(r.Results))
	for s := range r.Results {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Opportunities 聚合视图 {scenario: [Opportunity]}
func (r Report) Opportunities() map[Scenario][]Opportunity {
	out := make(map[Scenario][]Opportunity, len(r.Results))
	for s, res := range r.Results {
		out[s] = res.Opportunities
	}
	return out
}

func (r Report) TotalOpportunities() int {
	n := 0
	for _, res := range r.Results {
		n += len(res.Opportunities)
	}
	return n
}

// Skipped 汇总所有场景跳过的资产数与腿数
func (r Report) Skipped() (assets, legs int) {
	for _, res := range r.Results {
		assets += res.AssetsSkipped
		legs += res.LegsSkipped
	}
	return assets, legs
}
