package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog/log"

	"arbscan/internal/application/port"
	"arbscan/internal/domain/model"
)

const Name = "json"

// Document 文件内容：scenario id ("1".."3") -> 按净利润排好序的机会列表
type Document map[string][]model.Opportunity

func NewDocument(report model.Report) Document {
	doc := make(Document, len(report.Results))
	for _, s := range report.Scenarios() {
		opps := report.Results[s].Opportunities
		if opps == nil {
			opps = []model.Opportunity{}
		}
		doc[strconv.Itoa(int(s))] = opps
	}
	return doc
}

// Sink 每次扫描覆盖写同一个文件
type Sink struct {
	path string
}

func NewSink(path string) *Sink { return &Sink{path: path} }

func (s *Sink) Name() string { return Name }

func (s *Sink) WriteReport(_ context.Context, report model.Report) error {
	b, err := json.MarshalIndent(NewDocument(report), "", "    ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	// 先写临时文件再 rename，读者不会看到半个文件
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".arbscan-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return err
	}
	log.Debug().Str("path", s.path).Int("opportunities", report.TotalOpportunities()).Msg("report saved")
	return nil
}

var _ port.ReportSink = (*Sink)(nil)
