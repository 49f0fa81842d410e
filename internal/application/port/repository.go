package port

import (
	"context"

	"arbscan/internal/domain/model"
)

// OpportunityRepository 持久化扫描结果
type OpportunityRepository interface {
	SaveReport(ctx context.Context, report model.Report) error
	Close() error
}
