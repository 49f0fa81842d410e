package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// applyEnv 读取 .env（若存在）后，用 ARBSCAN_* 环境变量覆盖文件配置
func applyEnv(cfg *Config) {
	_ = godotenv.Load()

	setStr(&cfg.App.LogLevel, "ARBSCAN_LOG_LEVEL")
	setBool(&cfg.App.Continuous, "ARBSCAN_CONTINUOUS")
	setDuration(&cfg.App.Interval, "ARBSCAN_INTERVAL")

	setStr(&cfg.Scan.Scenarios, "ARBSCAN_SCENARIOS")
	setFloat(&cfg.Scan.MinProfitPercent, "ARBSCAN_MIN_PROFIT_PERCENT")
	setFloat(&cfg.Scan.MinLiquidityUSD, "ARBSCAN_MIN_LIQUIDITY_USD")
	setStringSlice(&cfg.Scan.Tokens, "ARBSCAN_TOKENS")
	setStr(&cfg.Scan.Category, "ARBSCAN_CATEGORY")

	setStr(&cfg.Exchange.Binance.RestURL, "ARBSCAN_BINANCE_REST_URL")
	setStr(&cfg.Exchange.Binance.WsURL, "ARBSCAN_BINANCE_WS_URL")
	setStr(&cfg.DexScreener.BaseURL, "ARBSCAN_DEXSCREENER_URL")

	setStr(&cfg.Storage.SQLite.Path, "ARBSCAN_SQLITE_PATH")
	setStr(&cfg.Storage.Postgres.DSN, "ARBSCAN_POSTGRES_DSN")
	setStr(&cfg.Storage.Redis.Addr, "ARBSCAN_REDIS_ADDR")
	setStr(&cfg.Storage.Redis.Password, "ARBSCAN_REDIS_PASSWORD")

	setStr(&cfg.Report.S3.Bucket, "ARBSCAN_S3_BUCKET")
	setStr(&cfg.Report.S3.Region, "ARBSCAN_S3_REGION")
	setStr(&cfg.Report.S3.Endpoint, "ARBSCAN_S3_ENDPOINT")
	setStr(&cfg.Report.S3.AccessKey, "ARBSCAN_S3_ACCESS_KEY")
	setStr(&cfg.Report.S3.SecretKey, "ARBSCAN_S3_SECRET_KEY")

	setStr(&cfg.Metrics.ListenAddr, "ARBSCAN_METRICS_ADDR")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		*dst = out
	}
}
