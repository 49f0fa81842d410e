package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"arbscan/internal/application/port"
	"arbscan/internal/domain/model"
)

// ========== CEX ==========

// CexSource 中心化交易所报价源
type CexSource struct {
	client port.CexClient
	norm   *Normalizer
	now    func() time.Time
}

func NewCexSource(client port.CexClient, norm *Normalizer) *CexSource {
	return &CexSource{client: client, norm: norm, now: time.Now}
}

func (s *CexSource) Name() string { return strings.ToLower(s.client.Name()) }

// FetchQuotes asks the exchange for the asset priced in the primary stable quote.
func (s *CexSource) FetchQuotes(ctx context.Context, asset model.Asset) ([]model.PriceQuote, error) {
	symbol := strings.ToUpper(asset.Symbol) + s.norm.PrimaryQuote()
	t, err := s.client.GetTicker(ctx, symbol)
	if err != nil {
		return nil, s.legError(asset.Symbol, err)
	}
	q, err := s.quoteFromTicker(ctx, t, newQuoteResolver(s.client, s.norm))
	if err != nil {
		return nil, s.legError(asset.Symbol, err)
	}
	return []model.PriceQuote{q}, nil
}

// TopGainerQuotes 取涨幅榜并规范化；单个 ticker 失败只丢弃该报价
func (s *CexSource) TopGainerQuotes(ctx context.Context, limit int) ([]model.PriceQuote, error) {
	tickers, err := s.client.GetTopGainers(ctx, limit)
	if err != nil {
		return nil, s.legError("", err)
	}

	resolver := newQuoteResolver(s.client, s.norm)
	quotes := make([]model.PriceQuote, 0, len(tickers))
	var errs []error
	for _, t := range tickers {
		q, err := s.quoteFromTicker(ctx, t, resolver)
		if err != nil {
			base, _, _ := s.norm.SplitSymbol(t.Symbol)
			errs = append(errs, s.legError(base, err))
			continue
		}
		quotes = append(quotes, q)
	}
	return quotes, errors.Join(errs...)
}

func (s *CexSource) quoteFromTicker(ctx context.Context, t port.Ticker, resolver *quoteResolver) (model.PriceQuote, error) {
	_, quote, ok := s.norm.SplitSymbol(t.Symbol)
	if !ok {
		return s.norm.NormalizeTicker(s.Name(), t, decimal.Zero, s.now())
	}
	quoteUSD, err := resolver.resolve(ctx, quote)
	if err != nil {
		return model.PriceQuote{}, err
	}
	return s.norm.NormalizeTicker(s.Name(), t, quoteUSD, s.now())
}

func (s *CexSource) legError(asset string, err error) error {
	return &model.LegError{Asset: asset, Venue: s.Name(), Network: model.CentralizedNetwork, Err: err}
}

// quoteResolver 计价资产 -> USD，按次扫描缓存
type quoteResolver struct {
	client port.CexClient
	norm   *Normalizer
	cache  map[string]decimal.Decimal
	errs   map[string]error
}

func newQuoteResolver(client port.CexClient, norm *Normalizer) *quoteResolver {
	return &quoteResolver{
		client: client,
		norm:   norm,
		cache:  map[string]decimal.Decimal{},
		errs:   map[string]error{},
	}
}

func (r *quoteResolver) resolve(ctx context.Context, quote string) (decimal.Decimal, error) {
	if r.norm.IsStable(quote) {
		return decimal.NewFromInt(1), nil
	}
	if v, ok := r.cache[quote]; ok {
		return v, nil
	}
	if err, ok := r.errs[quote]; ok {
		return decimal.Zero, err
	}

	symbol := quote + r.norm.PrimaryQuote()
	t, err := r.client.GetTicker(ctx, symbol)
	if err != nil {
		err = fmt.Errorf("%w: %s via %s: %w", model.ErrSecondaryPriceUnresolved, quote, symbol, err)
		r.errs[quote] = err
		return decimal.Zero, err
	}
	price, perr := parseDecimal(t.LastPrice)
	if perr != nil || !price.IsPositive() {
		err = fmt.Errorf("%w: %s via %s: bad price %q", model.ErrSecondaryPriceUnresolved, quote, symbol, t.LastPrice)
		r.errs[quote] = err
		return decimal.Zero, err
	}
	r.cache[quote] = price
	return price, nil
}

// ========== DEX ==========

// DexSource 链上聚合器报价源：资产在每个有合约地址的网络上各取一次
type DexSource struct {
	client   port.DexClient
	norm     *Normalizer
	networks map[string]struct{} // 为空表示不限制
	now      func() time.Time
}

func NewDexSource(client port.DexClient, norm *Normalizer, networks []string) *DexSource {
	allowed := make(map[string]struct{}, len(networks))
	for _, n := range networks {
		if n = strings.ToLower(strings.TrimSpace(n)); n != "" {
			allowed[n] = struct{}{}
		}
	}
	return &DexSource{client: client, norm: norm, networks: allowed, now: time.Now}
}

func (s *DexSource) Name() string { return strings.ToLower(s.client.Name()) }

// FetchQuotes returns the quotes found on every network; failed networks are reported as
// joined *model.LegError values next to the partial result.
func (s *DexSource) FetchQuotes(ctx context.Context, asset model.Asset) ([]model.PriceQuote, error) {
	var quotes []model.PriceQuote
	var errs []error
	for _, network := range asset.Networks() {
		if !s.enabled(network) {
			continue
		}
		qs, err := s.FetchNetworkQuotes(ctx, asset, network)
		if err != nil {
			errs = append(errs, err)
		}
		quotes = append(quotes, qs...)
	}
	return quotes, errors.Join(errs...)
}

// FetchNetworkQuotes 单个网络：每个达到流动性下限的池子各是一个场所；
// 聚合器重复返回的同一池子只保留一次
func (s *DexSource) FetchNetworkQuotes(ctx context.Context, asset model.Asset, network string) ([]model.PriceQuote, error) {
	address, ok := asset.AddressOn(network)
	if !ok {
		return nil, nil
	}
	pairs, err := s.client.GetPriceAcrossVenues(ctx, network, address)
	if err != nil {
		return nil, &model.LegError{Asset: asset.Symbol, Venue: s.Name(), Network: network, Err: err}
	}

	observed := s.now()
	seen := make(map[string]struct{}, len(pairs))
	out := make([]model.PriceQuote, 0, len(pairs))
	dropped := 0
	for _, p := range pairs {
		q, err := s.norm.NormalizeDexPair(p, asset, network, observed)
		if err != nil {
			dropped++
			continue
		}
		if q.PoolAddress != "" {
			key := q.VenueID + "|" + q.PoolAddress
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
		}
		out = append(out, q)
	}
	if dropped > 0 {
		log.Debug().
			Str("asset", asset.Symbol).
			Str("network", network).
			Int("pools", len(pairs)).
			Int("dropped", dropped).
			Msg("pools filtered by normalizer")
	}
	if len(out) == 0 {
		return nil, &model.LegError{
			Asset:   asset.Symbol,
			Venue:   s.Name(),
			Network: network,
			Err:     fmt.Errorf("%w: no usable pools (%d returned)", model.ErrDataUnavailable, len(pairs)),
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].VenueID != out[j].VenueID {
			return out[i].VenueID < out[j].VenueID
		}
		return out[i].PoolAddress < out[j].PoolAddress
	})
	return out, nil
}

func (s *DexSource) enabled(network string) bool {
	if len(s.networks) == 0 {
		return true
	}
	_, ok := s.networks[strings.ToLower(network)]
	return ok
}

// ========== per-scan cache ==========

// scanCache 一次 ScanAll 内共享的报价缓存，并发场景对同一资产只请求一次
type scanCache struct {
	group singleflight.Group
	mu    sync.Mutex
	items map[string]cachedFetch
}

type cachedFetch struct {
	quotes []model.PriceQuote
	err    error
}

func newScanCache() *scanCache {
	return &scanCache{items: make(map[string]cachedFetch)}
}

func (c *scanCache) fetch(ctx context.Context, src port.PriceSource, asset model.Asset) ([]model.PriceQuote, error) {
	key := src.Name() + "|" + asset.Symbol
	c.mu.Lock()
	if it, ok := c.items[key]; ok {
		c.mu.Unlock()
		return it.quotes, it.err
	}
	c.mu.Unlock()

	v, _, _ := c.group.Do(key, func() (any, error) {
		c.mu.Lock()
		if it, ok := c.items[key]; ok {
			c.mu.Unlock()
			return it, nil
		}
		c.mu.Unlock()

		quotes, err := src.FetchQuotes(ctx, asset)
		it := cachedFetch{quotes: quotes, err: err}
		c.mu.Lock()
		c.items[key] = it
		c.mu.Unlock()
		return it, nil
	})
	it := v.(cachedFetch)
	return it.quotes, it.err
}
