package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"arbscan/internal/application/port"
	"arbscan/internal/domain/model"
)

// Repo 最新排名写 hash，逐条机会写 stream，整份报告摘要发布到频道
type Repo struct {
	rdb        *redis.Client
	prefix     string
	ttl        time.Duration
	stream     string // prefix + ":opportunities"
	reportChan string // prefix + ":reports"
}

// ReportSummary 发布到 reports 频道的消息
type ReportSummary struct {
	ID            string         `json:"id"`
	FinishedAt    int64          `json:"finished_at_ms"`
	Opportunities map[string]int `json:"opportunities"` // scenario id -> count
	AssetsSkipped int            `json:"assets_skipped"`
	LegsSkipped   int            `json:"legs_skipped"`
}

func New(rdb *redis.Client, prefix string, ttl time.Duration) *Repo {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "arbscan"
	}
	return &Repo{
		rdb:        rdb,
		prefix:     prefix,
		ttl:        ttl,
		stream:     prefix + ":opportunities",
		reportChan: prefix + ":reports",
	}
}

// LatestKey 某场景最新排名的 hash key
func (r *Repo) LatestKey(s model.Scenario) string {
	return fmt.Sprintf("%s:latest:%d", r.prefix, int(s))
}

func (r *Repo) Close() error { return r.rdb.Close() }

func (r *Repo) SaveReport(ctx context.Context, report model.Report) error {
	pipe := r.rdb.TxPipeline()
	summary := ReportSummary{
		ID:            report.ID,
		FinishedAt:    report.FinishedAt.UnixMilli(),
		Opportunities: make(map[string]int, len(report.Results)),
	}
	summary.AssetsSkipped, summary.LegsSkipped = report.Skipped()

	for _, s := range report.Scenarios() {
		opps := report.Results[s].Opportunities
		summary.Opportunities[strconv.Itoa(int(s))] = len(opps)

		// 覆盖上一轮的排名：field = rank -> json
		key := r.LatestKey(s)
		pipe.Del(ctx, key)
		if len(opps) == 0 {
			continue
		}
		fields := make(map[string]any, len(opps)+1)
		fields["report_id"] = report.ID
		for i, o := range opps {
			b, err := json.Marshal(o)
			if err != nil {
				return err
			}
			fields[strconv.Itoa(i+1)] = string(b)

			pipe.XAdd(ctx, &redis.XAddArgs{
				Stream: r.stream,
				Values: map[string]any{
					"report_id":      report.ID,
					"scenario":       int(s),
					"asset":          o.AssetSymbol,
					"buy":            o.BuyLabel(),
					"sell":           o.SellLabel(),
					"net_profit_usd": o.NetProfitUSD.String(),
					"profit_percent": o.ProfitPercent.String(),
				},
			})
		}
		pipe.HSet(ctx, key, fields)
		if r.ttl > 0 {
			pipe.Expire(ctx, key, r.ttl)
		}
	}

	msg, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	pipe.Publish(ctx, r.reportChan, string(msg))

	_, err = pipe.Exec(ctx)
	return err
}

var _ port.OpportunityRepository = (*Repo)(nil)
