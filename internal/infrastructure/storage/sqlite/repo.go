package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"arbscan/internal/application/port"
	"arbscan/internal/domain/model"
	"arbscan/internal/infrastructure/storage"
)

type Repo struct {
	db *sql.DB
}

func New(path string) (*Repo, error) {
	// ensure directory exists
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	r := &Repo{db: db}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS scan_runs (
  id TEXT PRIMARY KEY,
  started_at INTEGER NOT NULL,
  finished_at INTEGER NOT NULL,
  scenarios TEXT NOT NULL,
  opportunities INTEGER NOT NULL,
  assets_skipped INTEGER NOT NULL,
  legs_skipped INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_scan_runs_started ON scan_runs(started_at);

CREATE TABLE IF NOT EXISTS opportunities (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  run_id TEXT NOT NULL REFERENCES scan_runs(id),
  rank INTEGER NOT NULL,
  scenario INTEGER NOT NULL,
  asset TEXT NOT NULL,
  asset_address TEXT NOT NULL,
  buy_venue TEXT NOT NULL,
  buy_network TEXT NOT NULL,
  sell_venue TEXT NOT NULL,
  sell_network TEXT NOT NULL,
  buy_pool TEXT NOT NULL DEFAULT '',
  sell_pool TEXT NOT NULL DEFAULT '',
  buy_price_usd TEXT NOT NULL,
  sell_price_usd TEXT NOT NULL,
  price_diff_percent TEXT NOT NULL,
  buy_fee_percent TEXT NOT NULL,
  sell_fee_percent TEXT NOT NULL,
  bridge_fee_percent TEXT NOT NULL,
  gas_cost_usd TEXT NOT NULL,
  net_profit_usd TEXT NOT NULL,
  profit_percent TEXT NOT NULL,
  min_liquidity_usd TEXT NOT NULL,
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_opps_run ON opportunities(run_id);
CREATE INDEX IF NOT EXISTS idx_opps_asset ON opportunities(asset);
`)
	return err
}

// SaveReport 一次扫描一个事务
func (r *Repo) SaveReport(ctx context.Context, report model.Report) error {
	run, rows := storage.Flatten(report)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO scan_runs(id, started_at, finished_at, scenarios, opportunities, assets_skipped, legs_skipped)
		VALUES(?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.StartedAt.UnixMilli(), run.FinishedAt.UnixMilli(), run.Scenarios,
		run.Opportunities, run.AssetsSkipped, run.LegsSkipped); err != nil {
		return fmt.Errorf("insert scan run %s: %w", run.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO opportunities(run_id, rank, scenario, asset, asset_address,
		  buy_venue, buy_network, sell_venue, sell_network, buy_pool, sell_pool,
		  buy_price_usd, sell_price_usd, price_diff_percent,
		  buy_fee_percent, sell_fee_percent, bridge_fee_percent,
		  gas_cost_usd, net_profit_usd, profit_percent, min_liquidity_usd, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, o := range rows {
		if _, err := stmt.ExecContext(ctx,
			o.RunID, o.Rank, o.Scenario, o.Asset, o.AssetAddress,
			o.BuyVenue, o.BuyNetwork, o.SellVenue, o.SellNetwork, o.BuyPool, o.SellPool,
			o.BuyPriceUSD, o.SellPriceUSD, o.PriceDiffPercent,
			o.BuyFeePercent, o.SellFeePercent, o.BridgeFeePercent,
			o.GasCostUSD, o.NetProfitUSD, o.ProfitPercent, o.MinLiquidityUSD, o.CreatedAt.UnixMilli(),
		); err != nil {
			return fmt.Errorf("insert opportunity %s/%d: %w", o.Asset, o.Rank, err)
		}
	}
	return tx.Commit()
}

// RecentRuns 最近 limit 次扫描，新的在前
func (r *Repo) RecentRuns(ctx context.Context, limit int) ([]storage.RunRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, scenarios, opportunities, assets_skipped, legs_skipped
		FROM scan_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.RunRow
	for rows.Next() {
		var run storage.RunRow
		var started, finished int64
		if err := rows.Scan(&run.ID, &started, &finished, &run.Scenarios,
			&run.Opportunities, &run.AssetsSkipped, &run.LegsSkipped); err != nil {
			return nil, err
		}
		run.StartedAt = time.UnixMilli(started).UTC()
		run.FinishedAt = time.UnixMilli(finished).UTC()
		out = append(out, run)
	}
	return out, rows.Err()
}

// ListOpportunities 某次扫描的全部机会，按场景、排名排序
func (r *Repo) ListOpportunities(ctx context.Context, runID string) ([]storage.OpportunityRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT run_id, rank, scenario, asset, asset_address,
		  buy_venue, buy_network, sell_venue, sell_network, buy_pool, sell_pool,
		  buy_price_usd, sell_price_usd, price_diff_percent,
		  buy_fee_percent, sell_fee_percent, bridge_fee_percent,
		  gas_cost_usd, net_profit_usd, profit_percent, min_liquidity_usd, created_at
		FROM opportunities WHERE run_id=? ORDER BY scenario, rank`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.OpportunityRow
	for rows.Next() {
		var o storage.OpportunityRow
		var created int64
		if err := rows.Scan(&o.RunID, &o.Rank, &o.Scenario, &o.Asset, &o.AssetAddress,
			&o.BuyVenue, &o.BuyNetwork, &o.SellVenue, &o.SellNetwork, &o.BuyPool, &o.SellPool,
			&o.BuyPriceUSD, &o.SellPriceUSD, &o.PriceDiffPercent,
			&o.BuyFeePercent, &o.SellFeePercent, &o.BridgeFeePercent,
			&o.GasCostUSD, &o.NetProfitUSD, &o.ProfitPercent, &o.MinLiquidityUSD, &created); err != nil {
			return nil, err
		}
		o.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, o)
	}
	return out, rows.Err()
}

var _ port.OpportunityRepository = (*Repo)(nil)
