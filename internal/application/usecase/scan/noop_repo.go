package scan

import (
	"context"

	"arbscan/internal/application/port"
	"arbscan/internal/domain/model"
)

type noopRepo struct{}

// NewNoopRepo 未配置存储时使用
func NewNoopRepo() port.OpportunityRepository { return &noopRepo{} }

func (n *noopRepo) SaveReport(ctx context.Context, report model.Report) error { return nil }
func (n *noopRepo) Close() error                                             { return nil }
