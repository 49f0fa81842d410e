package scan

import (
	"strings"
	"sync"

	"arbscan/internal/domain/model"
)

// State 连续模式下记住上一轮出现过的机会，用于区分新增与持续存在的机会
type State struct {
	mu   sync.Mutex
	last map[string]struct{}
	runs int
}

func NewState() *State {
	return &State{last: map[string]struct{}{}}
}

// Apply 记录本轮报告，返回相对上一轮新出现的机会数
func (s *State) Apply(report model.Report) (fresh int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]struct{}, report.TotalOpportunities())
	for _, opps := range report.Opportunities() {
		for _, o := range opps {
			k := Key(o)
			next[k] = struct{}{}
			if _, ok := s.last[k]; !ok {
				fresh++
			}
		}
	}
	s.last = next
	s.runs++
	return fresh
}

// Runs 已完成的扫描轮数
func (s *State) Runs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

// Key 机会的身份：场景 + 资产 + 两条腿
func Key(o model.Opportunity) string {
	return strings.Join([]string{
		o.Scenario.String(),
		o.AssetSymbol,
		o.BuyVenue, o.BuyNetwork, o.BuyPool,
		o.SellVenue, o.SellNetwork, o.SellPool,
	}, "|")
}
