package scout

import (
	"context"
	"scoutgate/internal/auth"
	"scoutgate/internal/models"
	"scoutgate/internal/quota"
	"time"
)

// Scanner produces candidate products, avoiding the identifiers in exclude.
type Scanner interface {
	Scan(ctx context.Context, exclude []string) (*models.Report, error)
}

// Notifier delivers a finished report.
type Notifier interface {
	Send(ctx context.Context, report *models.Report) error
}

// Scan outcomes passed to Recorder.ScanFinished.
const (
	OutcomeDelivered      = "delivered"
	OutcomeScanFailed     = "scan_failed"
	OutcomeDeliveryFailed = "delivery_failed"
	OutcomeSkipped        = "skipped"
)

// Recorder observes scan runs and quota denials.
type Recorder interface {
	ScanFinished(ctx context.Context, trigger, outcome string, products int)
	QuotaDenied(ctx context.Context)
}

type noopRecorder struct{}

func (noopRecorder) ScanFinished(context.Context, string, string, int) {}
func (noopRecorder) QuotaDenied(context.Context)                       {}

// ScheduledResult is the outcome of a scheduled run. Report is nil when the
// run was skipped.
type ScheduledResult struct {
	Skipped bool
	LastRun time.Time
	Report  *models.Report
}

// ServiceInterface defines the interface for scout service operations
type ServiceInterface interface {
	// IssueCredential checks the admin password and mints a session credential
	IssueCredential(ctx context.Context, password string) (auth.Credential, error)

	// RevokeCredential invalidates a credential; unknown tokens are ignored
	RevokeCredential(ctx context.Context, token string)

	// RunGated runs a scan on behalf of a credential holder, subject to quota
	RunGated(ctx context.Context, token string) (*models.Report, error)

	// RunScheduled runs a scan for the scheduler, honouring the spacing rule
	RunScheduled(ctx context.Context) (*ScheduledResult, error)

	// QuotaStatus reports quota usage without consuming any
	QuotaStatus(ctx context.Context, token string) (quota.Status, error)

	// CheckStore reports why the durable store is unreachable, or nil
	CheckStore(ctx context.Context) error
}

// Ensure Service implements ServiceInterface
var _ ServiceInterface = (*Service)(nil)
