package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"arbscan/internal/infrastructure/config"
	"arbscan/internal/infrastructure/container"
	"arbscan/internal/infrastructure/logger"
	sqliterepo "arbscan/internal/infrastructure/storage/sqlite"
)

type rootFlags struct {
	configPath   string
	scenario     string
	tokens       []string
	category     string
	minProfit    float64
	minLiquidity float64
	continuous   bool
	interval     string
}

func newRootCmd() *cobra.Command {
	f := &rootFlags{}
	root := &cobra.Command{
		Use:   "arbscan",
		Short: "Scan CEX and DEX prices for arbitrage opportunities",
		Long: `arbscan compares Binance spot prices with on-chain pools reported by DexScreener
and ranks net-of-fees opportunities for three scenarios:
  1  CEX vs DEX on the same network
  2  DEX vs DEX on the same network
  3  DEX vs DEX across networks (bridge fee applied)`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, f)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "configs/config.toml", "path to config.toml")

	fl := root.Flags()
	fl.StringVar(&f.scenario, "scenario", "", `scenario to run: 1, 2, 3, a comma list, or "all"`)
	fl.StringSliceVar(&f.tokens, "tokens", nil, "only scan these asset symbols (comma separated)")
	fl.StringVar(&f.category, "category", "", "asset category (wrapped, stablecoins, defi, gaming, layer2, all)")
	fl.Float64Var(&f.minProfit, "min-profit", 0, "minimum profit percent")
	fl.Float64Var(&f.minLiquidity, "min-liquidity", 0, "minimum liquidity in USD on both legs")
	fl.BoolVar(&f.continuous, "continuous", false, "keep scanning every --interval")
	fl.StringVar(&f.interval, "interval", "", "interval between scans in continuous mode (e.g. 60s, 5m)")

	root.AddCommand(newAssetsCmd(f), newHistoryCmd(f))
	return root
}

// loadConfig 读取配置文件并合并命令行覆盖；只有显式传入的参数才覆盖
func loadConfig(cmd *cobra.Command, f *rootFlags) (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}

	var o config.Overrides
	flags := cmd.Flags()
	if flags.Lookup("scenario") != nil {
		o.Scenarios = f.scenario
		o.Tokens = f.tokens
		o.Category = f.category
		if flags.Changed("min-profit") {
			o.MinProfitPercent = &f.minProfit
		}
		if flags.Changed("min-liquidity") {
			o.MinLiquidityUSD = &f.minLiquidity
		}
		if flags.Changed("continuous") {
			o.Continuous = &f.continuous
		}
		if f.interval != "" {
			var d config.Duration
			if err := d.UnmarshalText([]byte(f.interval)); err != nil {
				return nil, fmt.Errorf("--interval: %w", err)
			}
			o.Interval = d.Duration
		}
	}
	if err := cfg.Apply(o); err != nil {
		return nil, err
	}
	logger.Setup(cfg.App.LogLevel)
	return cfg, nil
}

func runScan(cmd *cobra.Command, f *rootFlags) error {
	cfg, err := loadConfig(cmd, f)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	c, err := container.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()
	c.Start(ctx)

	log.Info().
		Str("config", f.configPath).
		Str("scenarios", cfg.Scan.Scenarios).
		Bool("continuous", cfg.App.Continuous).
		Dur("interval", cfg.App.Interval.Duration).
		Msg("arbscan started")

	err = c.Service().Run(ctx)
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		log.Info().Msg("arbscan stopped")
		return nil
	}
	return err
}

func newAssetsCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "assets",
		Short: "List the asset registry with per-network addresses",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			return printAssets(cmd.OutOrStdout(), cfg)
		},
	}
}

func printAssets(w io.Writer, cfg *config.Config) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tDECIMALS\tNETWORK\tADDRESS")
	assets := cfg.SelectAssets()
	for _, a := range assets {
		networks := a.Networks()
		if len(networks) == 0 {
			fmt.Fprintf(tw, "%s\t%d\t-\t-\n", a.Symbol, a.Decimals)
			continue
		}
		for i, n := range networks {
			sym := a.Symbol
			if i > 0 {
				sym = ""
			}
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", sym, a.Decimals, n, a.Addresses[n])
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	cats := make([]string, 0, len(cfg.Categories))
	for name := range cfg.Categories {
		cats = append(cats, name)
	}
	sort.Strings(cats)
	_, err := fmt.Fprintf(w, "\n%d assets on %s; categories: %s\n",
		len(assets), strings.Join(cfg.EnabledNetworks(), ", "), strings.Join(cats, ", "))
	return err
}

func newHistoryCmd(f *rootFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent scans stored in the sqlite database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			repo, err := sqliterepo.New(cfg.Storage.SQLite.Path)
			if err != nil {
				return err
			}
			defer repo.Close()

			runs, err := repo.RecentRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTARTED\tTOOK\tSCENARIOS\tOPPORTUNITIES\tSKIPPED (ASSETS/LEGS)")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d/%d\n",
					r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), r.FinishedAt.Sub(r.StartedAt),
					r.Scenarios, r.Opportunities, r.AssetsSkipped, r.LegsSkipped)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of scans to show")
	return cmd
}
