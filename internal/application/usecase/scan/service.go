package scan

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"arbscan/internal/application/port"
	"arbscan/internal/domain/model"
)

type ServiceDeps struct {
	Scanner   port.OpportunityScanner
	Scenarios []model.Scenario
	Interval  time.Duration // 连续模式下两次扫描的间隔
	Repo      port.OpportunityRepository
	Sinks     []port.ReportSink
	Metrics   port.ScanMetrics // 可为 nil
}

type Service struct {
	deps ServiceDeps
	st   *State
}

func NewService(deps ServiceDeps) *Service {
	if deps.Repo == nil {
		deps.Repo = NewNoopRepo()
	}
	return &Service{deps: deps, st: NewState()}
}

// Once 执行一次完整扫描并分发给仓储与所有输出
func (s *Service) Once(ctx context.Context) (model.Report, error) {
	if s.deps.Scanner == nil {
		return model.Report{}, errors.New("no scanner")
	}
	report, err := s.deps.Scanner.ScanAll(ctx, s.deps.Scenarios)
	if err != nil {
		return model.Report{}, err
	}

	fresh := s.st.Apply(report)
	assets, legs := report.Skipped()
	log.Info().
		Str("report", report.ID).
		Int("opportunities", report.TotalOpportunities()).
		Int("new", fresh).
		Int("assets_skipped", assets).
		Int("legs_skipped", legs).
		Dur("took", report.FinishedAt.Sub(report.StartedAt)).
		Msg("scan finished")

	if s.deps.Metrics != nil {
		s.deps.Metrics.ObserveReport(report)
	}

	// 输出失败只记录日志，不影响本轮结果
	if err := s.deps.Repo.SaveReport(ctx, report); err != nil {
		log.Error().Err(err).Str("report", report.ID).Msg("save report failed")
	}
	for _, sink := range s.deps.Sinks {
		if err := sink.WriteReport(ctx, report); err != nil {
			log.Error().Err(err).Str("sink", sink.Name()).Str("report", report.ID).Msg("write report failed")
		}
	}
	return report, nil
}

// Run 连续模式：立即扫描一次，之后每个 Interval 扫描一次，直到 ctx 取消
func (s *Service) Run(ctx context.Context) error {
	if s.deps.Interval <= 0 {
		_, err := s.Once(ctx)
		return err
	}

	ticker := time.NewTicker(s.deps.Interval)
	defer ticker.Stop()

	failures := 0
	for {
		if _, err := s.Once(ctx); err != nil {
			failures++
			log.Error().Err(err).Int("failures", failures).Msg("scan failed, retrying next interval")
		} else {
			failures = 0
			log.Info().Dur("interval", s.deps.Interval).Int("runs", s.st.Runs()).Msg("waiting for next scan")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
