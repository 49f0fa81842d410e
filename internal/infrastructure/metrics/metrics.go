package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"arbscan/internal/application/port"
	"arbscan/internal/domain/model"
)

// Recorder 扫描指标，注册在自己的 registry 上
type Recorder struct {
	reg *prometheus.Registry

	scans         prometheus.Counter
	skippedAssets prometheus.Counter
	skippedLegs   *prometheus.CounterVec
	opportunities *prometheus.GaugeVec
	duration      prometheus.Histogram
}

func NewRecorder() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		scans: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arbscan_scans_total",
			Help: "Completed multi-scenario scans",
		}),
		skippedAssets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arbscan_skipped_assets_total",
			Help: "Assets skipped because no usable quotes could be fetched",
		}),
		skippedLegs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arbscan_skipped_legs_total",
			Help: "Single venue legs skipped during a scan",
		}, []string{"scenario"}),
		opportunities: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "arbscan_opportunities",
			Help: "Opportunities found by the latest scan",
		}, []string{"scenario"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "arbscan_scan_duration_seconds",
			Help:    "Wall time of a full scan",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}),
	}
	r.reg.MustRegister(r.scans, r.skippedAssets, r.skippedLegs, r.opportunities, r.duration)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

func (r *Recorder) ObserveReport(report model.Report) {
	r.scans.Inc()
	if d := report.FinishedAt.Sub(report.StartedAt); d >= 0 {
		r.duration.Observe(d.Seconds())
	}
	for _, s := range report.Scenarios() {
		res := report.Results[s]
		label := strconv.Itoa(int(s))
		r.opportunities.WithLabelValues(label).Set(float64(len(res.Opportunities)))
		r.skippedLegs.WithLabelValues(label).Add(float64(res.LegsSkipped))
		r.skippedAssets.Add(float64(res.AssetsSkipped))
	}
}

// Handler /metrics + /healthz
func (r *Recorder) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	}))
	return mux
}

// Serve 启动指标服务，ctx 结束时优雅关闭；addr 为空则不启动
func (r *Recorder) Serve(ctx context.Context, addr string) {
	if addr == "" {
		log.Debug().Msg("metrics disabled: empty addr")
		return
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("metrics server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server error")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("metrics server shutdown error")
		}
	}()
}

var _ port.ScanMetrics = (*Recorder)(nil)
