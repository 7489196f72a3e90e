package repo

import (
	"context"
	"errors"

	"github.com/hamed0406/netdiag/internal/domain"
)

var ErrNotFound = errors.New("report not found")

// ReportStore keeps finished reports for the API. Implementations must be
// safe for concurrent use.
type ReportStore interface {
	Save(ctx context.Context, r *domain.DiagnosticReport) error
	Get(ctx context.Context, id domain.ReportID) (*domain.DiagnosticReport, error)
	// List returns summaries, newest first.
	List(ctx context.Context) ([]domain.ReportSummary, error)
}
