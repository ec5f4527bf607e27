package scout

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"scoutgate/internal/auth"
	"scoutgate/internal/kv"
	"scoutgate/internal/ledger"
	"scoutgate/internal/models"
	"scoutgate/internal/quota"
	"scoutgate/internal/schedule"
	"time"

	"github.com/google/uuid"
)

// DefaultProductCount is how many products a report keeps after filtering.
const DefaultProductCount = 9

// Dependencies groups the collaborators a Service is built from.
type Dependencies struct {
	Connector kv.Connector
	Authority *auth.Authority
	Limiter   *quota.Limiter
	Ledger    *ledger.Ledger
	Spacer    *schedule.Spacer
	Scanner   Scanner
	Notifier  Notifier
	Recorder  Recorder // optional
}

// Settings holds the plain values a Service needs.
type Settings struct {
	AdminPassword string
	ProductCount  int
}

// Service orchestrates credential checks, quota, scanning, deduplication and
// delivery. Every public operation opens one store session and releases it
// before returning.
type Service struct {
	connector     kv.Connector
	authority     *auth.Authority
	limiter       *quota.Limiter
	ledger        *ledger.Ledger
	spacer        *schedule.Spacer
	scanner       Scanner
	notifier      Notifier
	recorder      Recorder
	adminPassword string
	productCount  int
	now           func() time.Time
}

// NewService creates a new scout service
func NewService(deps Dependencies, settings Settings) *Service {
	productCount := settings.ProductCount
	if productCount <= 0 {
		productCount = DefaultProductCount
	}
	recorder := deps.Recorder
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &Service{
		connector:     deps.Connector,
		authority:     deps.Authority,
		limiter:       deps.Limiter,
		ledger:        deps.Ledger,
		spacer:        deps.Spacer,
		scanner:       deps.Scanner,
		notifier:      deps.Notifier,
		recorder:      recorder,
		adminPassword: settings.AdminPassword,
		productCount:  productCount,
		now:           time.Now,
	}
}

// IssueCredential verifies the admin password and issues a credential.
func (s *Service) IssueCredential(ctx context.Context, password string) (auth.Credential, error) {
	if password == "" {
		return auth.Credential{}, NewInvalidRequestError("password is required")
	}
	if s.adminPassword == "" {
		return auth.Credential{}, NewInternalError("admin password is not configured", nil)
	}
	if subtle.ConstantTimeCompare([]byte(password), []byte(s.adminPassword)) != 1 {
		slog.Warn("Rejected admin password")
		return auth.Credential{}, NewUnauthorizedError("invalid password")
	}

	sess := s.connector.Connect(ctx)
	defer sess.Release()

	cred, err := s.authority.Issue(ctx, sess)
	if err != nil {
		return auth.Credential{}, NewInternalError("failed to issue credential", err)
	}

	slog.Info("Credential issued", "expires_at", cred.ExpiresAt, "durable", sess.IsAvailable())
	return cred, nil
}

// RevokeCredential invalidates token wherever it is stored.
func (s *Service) RevokeCredential(ctx context.Context, token string) {
	sess := s.connector.Connect(ctx)
	defer sess.Release()

	s.authority.Revoke(ctx, sess, token)
}

// RunGated validates the credential, consumes quota, scans, filters the
// results against history and delivers the report. A consumed quota unit is
// not returned when a later step fails.
func (s *Service) RunGated(ctx context.Context, token string) (*models.Report, error) {
	sess := s.connector.Connect(ctx)
	defer sess.Release()

	if !s.authority.Validate(ctx, sess, token) {
		return nil, NewUnauthorizedError("invalid or expired credential")
	}

	decision := s.limiter.CheckAndIncrement(ctx, sess)
	if !decision.Allowed {
		slog.Info("Scan denied by quota",
			"hourly_count", decision.HourlyCount,
			"daily_count", decision.DailyCount)
		s.recorder.QuotaDenied(ctx)
		return nil, &QuotaError{Decision: decision, Limits: s.limiter.Limits()}
	}

	return s.scan(ctx, sess, "gated")
}

// RunScheduled scans unless another scheduled run happened within the
// spacing interval. The run is marked only after delivery succeeds.
func (s *Service) RunScheduled(ctx context.Context) (*ScheduledResult, error) {
	sess := s.connector.Connect(ctx)
	defer sess.Release()

	if skip, last := s.spacer.ShouldSkip(ctx, sess); skip {
		slog.Info("Scheduled scan skipped",
			"last_run", last,
			"min_interval", s.spacer.MinInterval())
		s.recorder.ScanFinished(ctx, "scheduled", OutcomeSkipped, 0)
		return &ScheduledResult{Skipped: true, LastRun: last}, nil
	}

	report, err := s.scan(ctx, sess, "scheduled")
	if err != nil {
		return nil, err
	}

	s.spacer.MarkRun(ctx, sess)
	return &ScheduledResult{Report: report, LastRun: s.now().UTC()}, nil
}

// QuotaStatus returns the current quota counters for a credential holder.
func (s *Service) QuotaStatus(ctx context.Context, token string) (quota.Status, error) {
	sess := s.connector.Connect(ctx)
	defer sess.Release()

	if !s.authority.Validate(ctx, sess, token) {
		return quota.Status{}, NewUnauthorizedError("invalid or expired credential")
	}
	return s.limiter.Status(ctx, sess), nil
}

// CheckStore opens and releases a session, returning the unavailability reason.
func (s *Service) CheckStore(ctx context.Context) error {
	sess := s.connector.Connect(ctx)
	defer sess.Release()

	return sess.Reason()
}

// scan runs the scanner with the history as exclusions, keeps only unseen
// products, records them and then delivers the report. History is recorded
// before delivery so a failed send does not resurface the same products.
func (s *Service) scan(ctx context.Context, sess *kv.Session, trigger string) (*models.Report, error) {
	start := s.now()
	history := s.ledger.Load(ctx, sess)

	report, err := s.scanner.Scan(ctx, history)
	if err != nil {
		slog.Error("Product scan failed", "trigger", trigger, "error", err)
		s.recorder.ScanFinished(ctx, trigger, OutcomeScanFailed, 0)
		return nil, NewUpstreamError("product scan failed", err)
	}
	if report == nil {
		report = &models.Report{}
	}

	candidates := len(report.Products)
	report.Products = ledger.FilterAndRecordN(ctx, s.ledger, sess, report.Products, s.productCount)
	report.Sanitize()
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = start.UTC()
	}
	if report.Date == "" {
		report.Date = report.CreatedAt.Format(time.DateOnly)
	}

	if err := s.notifier.Send(ctx, report); err != nil {
		slog.Error("Report delivery failed", "trigger", trigger, "report_id", report.ID, "error", err)
		s.recorder.ScanFinished(ctx, trigger, OutcomeDeliveryFailed, len(report.Products))
		return nil, NewUpstreamError("report delivery failed", err)
	}

	slog.Info("Scan completed",
		"trigger", trigger,
		"report_id", report.ID,
		"candidates", candidates,
		"products", len(report.Products),
		"history", len(history),
		"durable", sess.IsAvailable(),
		"duration", s.now().Sub(start))
	s.recorder.ScanFinished(ctx, trigger, OutcomeDelivered, len(report.Products))
	return report, nil
}
