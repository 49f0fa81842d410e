package console

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"arbscan/internal/domain/model"
)

const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
	ansiDim    = "\033[2m"
	ansiBold   = "\033[1m"
)

// Renderer 把报告渲染成终端文本：每个场景一张表，最优机会的明细，最后是汇总
type Renderer struct {
	Color bool
	Links bool
	Link  LinkBuilder
}

func (r *Renderer) colorize(s, c string) string {
	if !r.Color {
		return s
	}
	return c + s + ansiReset
}

func (r *Renderer) Render(w io.Writer, report model.Report) error {
	var sb strings.Builder
	took := report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond)
	sb.WriteString(r.colorize("[ARBSCAN] ", ansiDim))
	fmt.Fprintf(&sb, "scan %s at %s (took %s)\n\n", report.ID, report.FinishedAt.Format("2006-01-02 15:04:05"), took)

	for _, s := range report.Scenarios() {
		r.renderScenario(&sb, s, report.Results[s])
	}
	r.renderSummary(&sb, report)

	_, err := io.WriteString(w, sb.String())
	return err
}

func (r *Renderer) renderScenario(sb *strings.Builder, s model.Scenario, res model.ScanResult) {
	sb.WriteString(r.colorize(fmt.Sprintf("== Scenario %d: %s ==", int(s), s.Title()), ansiBold+ansiCyan))
	sb.WriteString("\n")

	if len(res.Opportunities) == 0 {
		sb.WriteString(r.colorize("no arbitrage opportunities found", ansiYellow))
		sb.WriteString("\n")
	} else {
		cross := s == model.ScenarioCrossNetwork
		tw := tabwriter.NewWriter(sb, 0, 0, 2, ' ', 0)
		header := "#\tASSET\tBUY\tSELL\tBUY $\tSELL $\tDIFF %\tNET $\tPROFIT %"
		if cross {
			header += "\tBRIDGE %"
		}
		fmt.Fprintln(tw, header+"\tLIQUIDITY $")
		for i, o := range res.Opportunities {
			row := fmt.Sprintf("%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s",
				i+1, o.AssetSymbol, o.BuyLabel(), o.SellLabel(),
				o.BuyPriceUSD.StringFixed(6), o.SellPriceUSD.StringFixed(6),
				o.PriceDiffPercent.StringFixed(2), o.NetProfitUSD.StringFixed(6), o.ProfitPercent.StringFixed(2))
			if cross {
				row += "\t" + o.BridgeFeePercent.StringFixed(2)
			}
			fmt.Fprintln(tw, row+"\t"+money(o.MinLegLiquidityUSD))
		}
		_ = tw.Flush()

		if r.Links {
			for i, o := range res.Opportunities {
				fmt.Fprintf(sb, "  %d. %s\n", i+1, r.linkLine(o))
			}
		}
		sb.WriteString("\n")
		r.renderDetails(sb, res.Opportunities[0])
	}

	if res.Partial() {
		sb.WriteString(r.colorize(fmt.Sprintf("partial result: %d assets skipped, %d legs skipped", res.AssetsSkipped, res.LegsSkipped), ansiYellow))
		sb.WriteString("\n")
	}
	if len(res.Gaps) > 0 {
		gaps := make([]string, 0, len(res.Gaps))
		for _, g := range res.Gaps {
			gaps = append(gaps, g.Kind+":"+g.Key)
		}
		sb.WriteString(r.colorize("defaults used for: "+strings.Join(gaps, ", "), ansiDim))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
}

func (r *Renderer) renderDetails(sb *strings.Builder, o model.Opportunity) {
	sb.WriteString(r.colorize("best opportunity", ansiBold))
	sb.WriteString("\n")
	tw := tabwriter.NewWriter(sb, 0, 0, 2, ' ', 0)
	kv := func(k, v string) { fmt.Fprintf(tw, "  %s\t%s\n", k, v) }
	kv("asset", o.AssetSymbol)
	if o.AssetAddress != "" {
		kv("address", o.AssetAddress)
	}
	kv("buy", fmt.Sprintf("%s @ %s USD", o.BuyLabel(), o.BuyPriceUSD.StringFixed(6)))
	kv("sell", fmt.Sprintf("%s @ %s USD", o.SellLabel(), o.SellPriceUSD.StringFixed(6)))
	kv("price diff", o.PriceDiffPercent.StringFixed(2)+"%")
	kv("fees", fmt.Sprintf("buy %s%% / sell %s%%", o.BuyFeePercent.StringFixed(2), o.SellFeePercent.StringFixed(2)))
	if o.Scenario == model.ScenarioCrossNetwork {
		kv("bridge fee", o.BridgeFeePercent.StringFixed(2)+"%")
	}
	kv("gas", o.GasCostUSD.StringFixed(6)+" USD")
	kv("net profit", o.NetProfitUSD.StringFixed(6)+" USD per unit")
	kv("profit", o.ProfitPercent.StringFixed(2)+"%")
	kv("liquidity", fmt.Sprintf("buy %s / sell %s USD", money(o.BuyLiquidityUSD), money(o.SellLiquidityUSD)))
	_ = tw.Flush()
	sb.WriteString("\n")
}

func (r *Renderer) renderSummary(sb *strings.Builder, report model.Report) {
	sb.WriteString(r.colorize("== Summary ==", ansiBold+ansiCyan))
	sb.WriteString("\n")
	tw := tabwriter.NewWriter(sb, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SCENARIO\tDESCRIPTION\tOPPORTUNITIES\tBEST PROFIT %\tSKIPPED (ASSETS/LEGS)")
	for _, s := range report.Scenarios() {
		res := report.Results[s]
		best := "N/A"
		if len(res.Opportunities) > 0 {
			best = res.Opportunities[0].ProfitPercent.StringFixed(2)
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%d/%d\n", int(s), s.Title(), len(res.Opportunities), best, res.AssetsSkipped, res.LegsSkipped)
	}
	_ = tw.Flush()

	total := report.TotalOpportunities()
	c := ansiGreen
	if total == 0 {
		c = ansiRed
	}
	sb.WriteString(r.colorize(fmt.Sprintf("total opportunities: %d", total), c))
	sb.WriteString("\n")
	sb.WriteString(r.colorize("prices move quickly; verify every opportunity manually before trading", ansiDim))
	sb.WriteString("\n")
}

func (r *Renderer) linkLine(o model.Opportunity) string {
	links := r.Link.For(o)
	parts := make([]string, 0, len(links))
	for _, l := range links {
		parts = append(parts, l.Label+": "+l.URL)
	}
	return strings.Join(parts, "  ")
}

// money 千分位，两位小数
func money(d decimal.Decimal) string {
	f, _ := d.Round(2).Float64()
	return humanize.FormatFloat("#,###.##", f)
}
