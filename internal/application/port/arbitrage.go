package port

import (
	"context"

	"arbscan/internal/domain/model"
)

// OpportunityScanner 扫描一个或多个场景，返回聚合报告；单个资产或场景失败不会返回 error
type OpportunityScanner interface {
	ScanAll(ctx context.Context, scenarios []model.Scenario) (model.Report, error)
}

// ScanMetrics 扫描指标
type ScanMetrics interface {
	ObserveReport(report model.Report)
}
