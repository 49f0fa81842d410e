package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"arbscan/internal/application/port"
	"arbscan/internal/domain/model"
	dsvc "arbscan/internal/domain/service"
)

// DefaultTopGainers 场景 1 默认取涨幅榜前 N 个
const DefaultTopGainers = 20

// GasEstimator 扫描前解析 gas 表
type GasEstimator interface {
	Estimate(ctx context.Context) (map[string]model.GasEstimate, []model.ConfigGap)
}

// ScannerDeps 扫描器依赖；Assets 已按白名单 / 分类过滤
type ScannerDeps struct {
	Gainers    port.GainerSource  // 场景 1；nil 时场景 1 返回空结果
	OnChain    []port.PriceSource // 链上报价源
	Gas        GasEstimator       // nil 时全部走默认 gas
	Assets     []model.Asset
	Aliases    map[string]string // CEX 符号 -> 注册表符号，例如 ETH -> WETH
	Params     dsvc.Params
	TopGainers int
	Now        func() time.Time
}

// Scanner 三个场景的扫描编排：取数 → 配对 → 打分 → 过滤，
// 每个资产独立失败，绝不因单个资产或网络失败中断整次扫描。
type Scanner struct {
	deps ScannerDeps
}

func NewScanner(deps ScannerDeps) *Scanner {
	if deps.TopGainers <= 0 {
		deps.TopGainers = DefaultTopGainers
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Scanner{deps: deps}
}

// ScanAll runs the selected scenarios in parallel over one immutable parameter set and
// returns the aggregate report. It only fails when no scenario is selected.
func (s *Scanner) ScanAll(ctx context.Context, scenarios []model.Scenario) (model.Report, error) {
	if len(scenarios) == 0 {
		return model.Report{}, errors.New("no scenario selected")
	}
	for _, sc := range scenarios {
		if !sc.Valid() {
			return model.Report{}, fmt.Errorf("invalid scenario %d", int(sc))
		}
	}

	report := model.Report{
		ID:        uuid.NewString(),
		StartedAt: s.deps.Now(),
		Results:   make(map[model.Scenario]model.ScanResult, len(scenarios)),
	}
	params := s.paramsForScan(ctx)
	cache := newScanCache()

	results := make([]model.ScanResult, len(scenarios))
	g, gctx := errgroup.WithContext(ctx)
	for i, sc := range scenarios {
		g.Go(func() error {
			results[i] = s.scan(gctx, sc, params, cache)
			return nil
		})
	}
	_ = g.Wait()

	for _, res := range results {
		report.Results[res.Scenario] = res
	}
	report.FinishedAt = s.deps.Now()
	return report, nil
}

// Scan runs a single scenario.
func (s *Scanner) Scan(ctx context.Context, scenario model.Scenario) model.ScanResult {
	return s.scan(ctx, scenario, s.paramsForScan(ctx), newScanCache())
}

// paramsForScan copies the configured parameters and attaches this scan's gas table.
func (s *Scanner) paramsForScan(ctx context.Context) dsvc.Params {
	params := s.deps.Params
	if s.deps.Gas == nil {
		return params
	}
	gas, gaps := s.deps.Gas.Estimate(ctx)
	for _, g := range gaps {
		log.Warn().Str("kind", g.Kind).Str("key", g.Key).Msg("gas configuration gap, using default")
	}
	params.Fees.Gas = gas
	return params
}

func (s *Scanner) scan(ctx context.Context, scenario model.Scenario, params dsvc.Params, cache *scanCache) model.ScanResult {
	res := model.ScanResult{Scenario: scenario, StartedAt: s.deps.Now(), Opportunities: []model.Opportunity{}}

	switch scenario {
	case model.ScenarioCexDex:
		s.scanCexDex(ctx, params, cache, &res)
	case model.ScenarioDexDex:
		s.scanOnChain(ctx, scenario, s.deps.Assets, params, cache, &res)
	case model.ScenarioCrossNetwork:
		multi := make([]model.Asset, 0, len(s.deps.Assets))
		for _, a := range s.deps.Assets {
			if a.MultiNetwork() {
				multi = append(multi, a)
			}
		}
		s.scanOnChain(ctx, scenario, multi, params, cache, &res)
	}

	dsvc.Rank(res.Opportunities)
	res.FinishedAt = s.deps.Now()

	for _, g := range res.Gaps {
		log.Warn().Stringer("scenario", scenario).Str("kind", g.Kind).Str("key", g.Key).Msg("configuration gap, using default")
	}
	log.Info().
		Stringer("scenario", scenario).
		Int("assets", res.AssetsScanned).
		Int("assets_skipped", res.AssetsSkipped).
		Int("legs_skipped", res.LegsSkipped).
		Int("opportunities", len(res.Opportunities)).
		Dur("took", res.FinishedAt.Sub(res.StartedAt)).
		Msg("scenario scan finished")
	return res
}

func (s *Scanner) scanCexDex(ctx context.Context, params dsvc.Params, cache *scanCache, res *model.ScanResult) {
	if s.deps.Gainers == nil {
		log.Warn().Msg("no centralized price source configured, skipping CEX/DEX scenario")
		return
	}
	gainers, err := s.deps.Gainers.TopGainerQuotes(ctx, s.deps.TopGainers)
	if err != nil {
		// 整个 CEX 不可用，或部分 ticker 无法换算成 USD
		for _, le := range model.LegErrors(err) {
			recordLegSkip(res, model.ScenarioCexDex, model.PhaseFetching, le)
		}
	}

	registry := s.registry()
	for _, cq := range gainers {
		asset, ok := s.lookup(registry, cq.AssetSymbol)
		if !ok {
			log.Debug().Str("symbol", cq.AssetSymbol).Msg("top gainer not in asset registry")
			continue
		}
		if len(asset.Networks()) == 0 {
			continue
		}
		cex := cq
		cex.AssetSymbol = asset.Symbol
		s.scanAsset(ctx, model.ScenarioCexDex, asset, []model.PriceQuote{cex}, params, cache, res)
	}
}

func (s *Scanner) scanOnChain(ctx context.Context, scenario model.Scenario, assets []model.Asset, params dsvc.Params, cache *scanCache, res *model.ScanResult) {
	for _, asset := range assets {
		s.scanAsset(ctx, scenario, asset, nil, params, cache, res)
	}
}

// scanAsset drives one asset through FETCHING → PAIRING → SCORING → FILTERING → DONE.
func (s *Scanner) scanAsset(
	ctx context.Context,
	scenario model.Scenario,
	asset model.Asset,
	seed []model.PriceQuote,
	params dsvc.Params,
	cache *scanCache,
	res *model.ScanResult,
) {
	st := &assetScan{scenario: scenario, asset: asset.Symbol, phase: model.PhaseIdle}
	res.AssetsScanned++

	defer func() {
		if r := recover(); r != nil {
			skipAsset(res, st, fmt.Sprintf("panic: %v", r))
			log.Error().Stringer("scenario", scenario).Str("asset", asset.Symbol).
				Stringer("phase", st.phase).Interface("panic", r).Msg("asset scan panicked")
		}
	}()

	st.enter(model.PhaseFetching)
	quotes := append([]model.PriceQuote(nil), seed...)
	onChain := 0
	for _, src := range s.deps.OnChain {
		qs, err := cache.fetch(ctx, src, asset)
		for _, le := range model.LegErrors(err) {
			if le.Asset == "" {
				le = &model.LegError{Asset: asset.Symbol, Venue: src.Name(), Err: le.Err}
			}
			recordLegSkip(res, scenario, model.PhaseFetching, le)
		}
		onChain += len(qs)
		quotes = append(quotes, qs...)
	}
	if onChain == 0 {
		skipAsset(res, st, "no on-chain quotes")
		return
	}

	st.enter(model.PhasePairing)
	pairs := dsvc.PairsFor(scenario, quotes, params)

	st.enter(model.PhaseScoring)
	scored := dsvc.ScorePairs(scenario, pairs, params, s.deps.Now())
	mergeGaps(res, scored.Gaps)

	st.enter(model.PhaseFiltering)
	kept := dsvc.FilterAndRank(scored.Opportunities, params.MinProfitPercent, params.MinLiquidityUSD)
	res.Opportunities = append(res.Opportunities, kept...)

	st.enter(model.PhaseDone)
	log.Debug().
		Stringer("scenario", scenario).
		Str("asset", asset.Symbol).
		Int("quotes", len(quotes)).
		Int("pairs", len(pairs)).
		Int("kept", len(kept)).
		Msg("asset scanned")
}

func (s *Scanner) registry() map[string]model.Asset {
	out := make(map[string]model.Asset, len(s.deps.Assets))
	for _, a := range s.deps.Assets {
		out[strings.ToUpper(a.Symbol)] = a
	}
	return out
}

func (s *Scanner) lookup(registry map[string]model.Asset, symbol string) (model.Asset, bool) {
	sym := strings.ToUpper(symbol)
	if a, ok := registry[sym]; ok {
		return a, true
	}
	if alias, ok := s.deps.Aliases[sym]; ok {
		a, ok := registry[strings.ToUpper(alias)]
		return a, ok
	}
	return model.Asset{}, false
}

// assetScan 单个资产的状态机
type assetScan struct {
	scenario model.Scenario
	asset    string
	phase    model.Phase
}

func (a *assetScan) enter(p model.Phase) {
	a.phase = p
	log.Trace().Stringer("scenario", a.scenario).Str("asset", a.asset).Stringer("phase", p).Msg("asset phase")
}

func skipAsset(res *model.ScanResult, st *assetScan, reason string) {
	res.AssetsSkipped++
	res.Skips = append(res.Skips, model.Skip{Asset: st.asset, Phase: st.phase, Reason: reason})
	log.Warn().Stringer("scenario", st.scenario).Str("asset", st.asset).Stringer("phase", st.phase).
		Str("reason", reason).Msg("asset skipped")
}

func recordLegSkip(res *model.ScanResult, scenario model.Scenario, phase model.Phase, le *model.LegError) {
	res.LegsSkipped++
	res.Skips = append(res.Skips, model.Skip{
		Asset:   le.Asset,
		Venue:   le.Venue,
		Network: le.Network,
		Phase:   phase,
		Leg:     true,
		Reason:  model.Reason(le.Err),
	})
	log.Warn().Stringer("scenario", scenario).Str("asset", le.Asset).Str("venue", le.Venue).
		Str("network", le.Network).Err(le.Err).Msg("leg skipped")
}

func mergeGaps(res *model.ScanResult, gaps []model.ConfigGap) {
	for _, g := range gaps {
		dup := false
		for _, have := range res.Gaps {
			if have == g {
				dup = true
				break
			}
		}
		if !dup {
			res.Gaps = append(res.Gaps, g)
		}
	}
}

var _ port.OpportunityScanner = (*Scanner)(nil)
