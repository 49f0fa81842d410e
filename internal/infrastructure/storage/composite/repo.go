package composite

import (
	"context"
	"errors"

	"arbscan/internal/application/port"
	"arbscan/internal/domain/model"
)

// Repo 依次写入所有仓储；某个失败不影响其余
type Repo struct {
	repos []port.OpportunityRepository
}

func New(repos ...port.OpportunityRepository) *Repo {
	// nil repos are allowed; filter in constructor for safety
	out := make([]port.OpportunityRepository, 0, len(repos))
	for _, r := range repos {
		if r != nil {
			out = append(out, r)
		}
	}
	return &Repo{repos: out}
}

func (r *Repo) Len() int { return len(r.repos) }

func (r *Repo) SaveReport(ctx context.Context, report model.Report) error {
	var errs []error
	for _, repo := range r.repos {
		if err := repo.SaveReport(ctx, report); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Repo) Close() error {
	var errs []error
	for _, repo := range r.repos {
		if err := repo.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ port.OpportunityRepository = (*Repo)(nil)
