package storage

import (
	"strconv"
	"strings"
	"time"

	"arbscan/internal/domain/model"
)

// RunRow scan_runs 表的一行
type RunRow struct {
	ID            string
	StartedAt     time.Time
	FinishedAt    time.Time
	Scenarios     string // "1,2,3"
	Opportunities int
	AssetsSkipped int
	LegsSkipped   int
}

// OpportunityRow opportunities 表的一行；金额统一按十进制字符串落库，避免浮点误差
type OpportunityRow struct {
	RunID            string
	Rank             int // 场景内排名，从 1 开始
	Scenario         int
	Asset            string
	AssetAddress     string
	BuyVenue         string
	BuyNetwork       string
	SellVenue        string
	SellNetwork      string
	BuyPool          string // 中心化腿为空
	SellPool         string
	BuyPriceUSD      string
	SellPriceUSD     string
	PriceDiffPercent string
	BuyFeePercent    string
	SellFeePercent   string
	BridgeFeePercent string
	GasCostUSD       string
	NetProfitUSD     string
	ProfitPercent    string
	MinLiquidityUSD  string
	CreatedAt        time.Time
}

// Flatten 把报告拆成 scan_runs + opportunities 两张表的行；场景按 id 顺序
func Flatten(report model.Report) (RunRow, []OpportunityRow) {
	scenarios := report.Scenarios()
	ids := make([]string, 0, len(scenarios))
	for _, s := range scenarios {
		ids = append(ids, strconv.Itoa(int(s)))
	}
	assets, legs := report.Skipped()
	run := RunRow{
		ID:            report.ID,
		StartedAt:     report.StartedAt,
		FinishedAt:    report.FinishedAt,
		Scenarios:     strings.Join(ids, ","),
		Opportunities: report.TotalOpportunities(),
		AssetsSkipped: assets,
		LegsSkipped:   legs,
	}

	rows := make([]OpportunityRow, 0, run.Opportunities)
	for _, s := range scenarios {
		for i, o := range report.Results[s].Opportunities {
			rows = append(rows, OpportunityRow{
				RunID:            report.ID,
				Rank:             i + 1,
				Scenario:         int(o.Scenario),
				Asset:            o.AssetSymbol,
				AssetAddress:     o.AssetAddress,
				BuyVenue:         o.BuyVenue,
				BuyNetwork:       o.BuyNetwork,
				SellVenue:        o.SellVenue,
				SellNetwork:      o.SellNetwork,
				BuyPool:          o.BuyPool,
				SellPool:         o.SellPool,
				BuyPriceUSD:      o.BuyPriceUSD.String(),
				SellPriceUSD:     o.SellPriceUSD.String(),
				PriceDiffPercent: o.PriceDiffPercent.String(),
				BuyFeePercent:    o.BuyFeePercent.String(),
				SellFeePercent:   o.SellFeePercent.String(),
				BridgeFeePercent: o.BridgeFeePercent.String(),
				GasCostUSD:       o.GasCostUSD.String(),
				NetProfitUSD:     o.NetProfitUSD.String(),
				ProfitPercent:    o.ProfitPercent.String(),
				MinLiquidityUSD:  o.MinLegLiquidityUSD.String(),
				CreatedAt:        o.CreatedAt,
			})
		}
	}
	return run, rows
}
