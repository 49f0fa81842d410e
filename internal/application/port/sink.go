package port

import (
	"context"

	"arbscan/internal/domain/model"
)

// ReportSink 输出一次完整扫描（控制台、文件、对象存储……）
type ReportSink interface {
	Name() string
	WriteReport(ctx context.Context, report model.Report) error
}
