package memory

import (
	"context"
	"sync"

	"github.com/hamed0406/netdiag/internal/domain"
	"github.com/hamed0406/netdiag/internal/repo"
)

var _ repo.ReportStore = (*Store)(nil)

// Store keeps the most recent reports in memory, dropping the oldest once
// limit is reached.
type Store struct {
	mu      sync.RWMutex
	limit   int
	order   []domain.ReportID // oldest first
	reports map[domain.ReportID]*domain.DiagnosticReport
}

func New(limit int) *Store {
	if limit < 1 {
		limit = 1
	}
	return &Store{
		limit:   limit,
		order:   make([]domain.ReportID, 0, limit),
		reports: make(map[domain.ReportID]*domain.DiagnosticReport, limit),
	}
}

func (m *Store) Save(ctx context.Context, r *domain.DiagnosticReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == "" {
		r.ID = domain.NewReportID()
	}
	if _, ok := m.reports[r.ID]; !ok {
		m.order = append(m.order, r.ID)
	}
	m.reports[r.ID] = r
	for len(m.order) > m.limit {
		delete(m.reports, m.order[0])
		m.order = m.order[1:]
	}
	return nil
}

func (m *Store) Get(ctx context.Context, id domain.ReportID) (*domain.DiagnosticReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reports[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return r, nil
}

func (m *Store) List(ctx context.Context) ([]domain.ReportSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.ReportSummary, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		out = append(out, m.reports[m.order[i]].Summary())
	}
	return out, nil
}
