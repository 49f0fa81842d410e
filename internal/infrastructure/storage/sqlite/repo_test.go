package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"arbscan/internal/domain/model"
)

func pooled(o model.Opportunity, buy, sell string) model.Opportunity {
	o.BuyPool, o.SellPool = buy, sell
	return o
}

func testReport(id string, at time.Time) model.Report {
	opp := func(asset, buy, sell string, net string) model.Opportunity {
		return model.Opportunity{
			Scenario:           model.ScenarioDexDex,
			AssetSymbol:        asset,
			AssetAddress:       "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
			BuyVenue:           buy,
			BuyNetwork:         "ethereum",
			SellVenue:          sell,
			SellNetwork:        "ethereum",
			BuyPriceUSD:        decimal.RequireFromString("2000"),
			SellPriceUSD:       decimal.RequireFromString("2100"),
			PriceDiffPercent:   decimal.RequireFromString("5"),
			BuyFeePercent:      decimal.RequireFromString("0.3"),
			SellFeePercent:     decimal.RequireFromString("0.3"),
			GasCostUSD:         decimal.RequireFromString("5"),
			NetProfitUSD:       decimal.RequireFromString(net),
			ProfitPercent:      decimal.RequireFromString("4.135"),
			MinLegLiquidityUSD: decimal.RequireFromString("400000"),
			CreatedAt:          at,
		}
	}
	return model.Report{
		ID:         id,
		StartedAt:  at,
		FinishedAt: at.Add(2 * time.Second),
		Results: map[model.Scenario]model.ScanResult{
			model.ScenarioDexDex: {
				Scenario: model.ScenarioDexDex,
				Opportunities: []model.Opportunity{
					opp("WETH", "uniswap", "sushiswap", "82.7"),
					pooled(opp("WETH", "uniswap", "uniswap", "1.5"), "0xaaa", "0xbbb"),
				},
				AssetsSkipped: 1,
				LegsSkipped:   2,
			},
			model.ScenarioCexDex: {Scenario: model.ScenarioCexDex},
		},
	}
}

func TestSQLiteRepoSaveReport(t *testing.T) {
	repo, err := New(filepath.Join(t.TempDir(), "data", "arbscan.db"))
	if err != nil {
		t.Fatalf("failed to create repo: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := repo.SaveReport(ctx, testReport("run-1", at)); err != nil {
		t.Fatalf("SaveReport failed: %v", err)
	}

	runs, err := repo.RecentRuns(ctx, 10)
	if err != nil {
		t.Fatalf("RecentRuns failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	run := runs[0]
	if run.Scenarios != "1,2" || run.Opportunities != 2 || run.AssetsSkipped != 1 || run.LegsSkipped != 2 {
		t.Errorf("unexpected run row: %+v", run)
	}
	if !run.StartedAt.Equal(at) {
		t.Errorf("expected started_at %v, got %v", at, run.StartedAt)
	}

	opps, err := repo.ListOpportunities(ctx, "run-1")
	if err != nil {
		t.Fatalf("ListOpportunities failed: %v", err)
	}
	if len(opps) != 2 {
		t.Fatalf("expected 2 opportunities, got %d", len(opps))
	}
	if opps[0].Rank != 1 || opps[0].NetProfitUSD != "82.7" || opps[0].BuyVenue != "uniswap" {
		t.Errorf("unexpected first row: %+v", opps[0])
	}
	if opps[1].Rank != 2 || opps[1].NetProfitUSD != "1.5" {
		t.Errorf("unexpected second row: %+v", opps[1])
	}
	if opps[0].BuyPool != "" || opps[1].BuyPool != "0xaaa" || opps[1].SellPool != "0xbbb" {
		t.Errorf("pool addresses not stored: %q/%q %q/%q",
			opps[0].BuyPool, opps[0].SellPool, opps[1].BuyPool, opps[1].SellPool)
	}
}

func TestSQLiteRepoDuplicateRunRollsBack(t *testing.T) {
	repo, err := New(filepath.Join(t.TempDir(), "arbscan.db"))
	if err != nil {
		t.Fatalf("failed to create repo: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := repo.SaveReport(ctx, testReport("run-1", at)); err != nil {
		t.Fatalf("SaveReport failed: %v", err)
	}
	if err := repo.SaveReport(ctx, testReport("run-1", at)); err == nil {
		t.Fatal("expected primary key violation on duplicate run id")
	}

	opps, err := repo.ListOpportunities(ctx, "run-1")
	if err != nil {
		t.Fatalf("ListOpportunities failed: %v", err)
	}
	if len(opps) != 2 {
		t.Errorf("expected rollback to keep 2 rows, got %d", len(opps))
	}
}

func TestSQLiteRepoRecentRunsOrder(t *testing.T) {
	repo, err := New(filepath.Join(t.TempDir(), "arbscan.db"))
	if err != nil {
		t.Fatalf("failed to create repo: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		if err := repo.SaveReport(ctx, testReport(id, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("SaveReport %s failed: %v", id, err)
		}
	}

	runs, err := repo.RecentRuns(ctx, 2)
	if err != nil {
		t.Fatalf("RecentRuns failed: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "c" || runs[1].ID != "b" {
		t.Errorf("unexpected order: %+v", runs)
	}
}
