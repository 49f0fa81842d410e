package console

import (
	"context"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"arbscan/internal/application/port"
	"arbscan/internal/domain/model"
)

const Name = "console"

// Sink 把报告打印到终端
type Sink struct {
	w io.Writer
	r *Renderer
}

// NewSink w 为 nil 时写 stdout，且仅在终端上着色
func NewSink(w io.Writer, links bool, lb LinkBuilder) *Sink {
	color := false
	if w == nil {
		w = os.Stdout
		color = isatty.IsTerminal(os.Stdout.Fd())
	}
	return &Sink{w: w, r: &Renderer{Color: color, Links: links, Link: lb}}
}

func (s *Sink) Name() string { return Name }

func (s *Sink) WriteReport(_ context.Context, report model.Report) error {
	return s.r.Render(s.w, report)
}

var _ port.ReportSink = (*Sink)(nil)
