package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"arbscan/internal/application/port"
	"arbscan/internal/domain/model"
	"arbscan/internal/infrastructure/storage"
)

type Repo struct {
	db *sql.DB
}

func New(dsn string) (*Repo, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

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
  started_at TIMESTAMPTZ NOT NULL,
  finished_at TIMESTAMPTZ NOT NULL,
  scenarios TEXT NOT NULL,
  opportunities INTEGER NOT NULL,
  assets_skipped INTEGER NOT NULL,
  legs_skipped INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_scan_runs_started ON scan_runs(started_at);

CREATE TABLE IF NOT EXISTS opportunities (
  id BIGSERIAL PRIMARY KEY,
  run_id TEXT NOT NULL REFERENCES scan_runs(id),
  rank INTEGER NOT NULL,
  scenario SMALLINT NOT NULL,
  asset TEXT NOT NULL,
  asset_address TEXT NOT NULL,
  buy_venue TEXT NOT NULL,
  buy_network TEXT NOT NULL,
  sell_venue TEXT NOT NULL,
  sell_network TEXT NOT NULL,
  buy_pool TEXT NOT NULL DEFAULT '',
  sell_pool TEXT NOT NULL DEFAULT '',
  buy_price_usd NUMERIC NOT NULL,
  sell_price_usd NUMERIC NOT NULL,
  price_diff_percent NUMERIC NOT NULL,
  buy_fee_percent NUMERIC NOT NULL,
  sell_fee_percent NUMERIC NOT NULL,
  bridge_fee_percent NUMERIC NOT NULL,
  gas_cost_usd NUMERIC NOT NULL,
  net_profit_usd NUMERIC NOT NULL,
  profit_percent NUMERIC NOT NULL,
  min_liquidity_usd NUMERIC NOT NULL,
  created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_opps_run ON opportunities(run_id);
CREATE INDEX IF NOT EXISTS idx_opps_asset ON opportunities(asset);
`)
	return err
}

// SaveReport NUMERIC 列直接接收十进制字符串，不经过 float
func (r *Repo) SaveReport(ctx context.Context, report model.Report) error {
	run, rows := storage.Flatten(report)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO scan_runs(id, started_at, finished_at, scenarios, opportunities, assets_skipped, legs_skipped)
		VALUES($1, $2, $3, $4, $5, $6, $7)
	`, run.ID, run.StartedAt, run.FinishedAt, run.Scenarios,
		run.Opportunities, run.AssetsSkipped, run.LegsSkipped); err != nil {
		return fmt.Errorf("insert scan run %s: %w", run.ID, err)
	}

	for _, o := range rows {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO opportunities(run_id, rank, scenario, asset, asset_address,
			  buy_venue, buy_network, sell_venue, sell_network, buy_pool, sell_pool,
			  buy_price_usd, sell_price_usd, price_diff_percent,
			  buy_fee_percent, sell_fee_percent, bridge_fee_percent,
			  gas_cost_usd, net_profit_usd, profit_percent, min_liquidity_usd, created_at)
			VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		`,
			o.RunID, o.Rank, o.Scenario, o.Asset, o.AssetAddress,
			o.BuyVenue, o.BuyNetwork, o.SellVenue, o.SellNetwork, o.BuyPool, o.SellPool,
			o.BuyPriceUSD, o.SellPriceUSD, o.PriceDiffPercent,
			o.BuyFeePercent, o.SellFeePercent, o.BridgeFeePercent,
			o.GasCostUSD, o.NetProfitUSD, o.ProfitPercent, o.MinLiquidityUSD, o.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert opportunity %s/%d: %w", o.Asset, o.Rank, err)
		}
	}
	return tx.Commit()
}

var _ port.OpportunityRepository = (*Repo)(nil)
