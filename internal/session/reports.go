package session

import (
	"context"
	"fmt"

	"github.com/rpr-kontrol/kontrol/internal/domain"
	"github.com/rpr-kontrol/kontrol/internal/report"
)

// Report kinds.
const (
	ReportPerformance  = "performance"
	ReportAuditDefense = "audit_defense"
)

// CurrentReport is the report awaiting display, if any.
type CurrentReport struct {
	Kind         string                     `json:"kind"`
	Performance  *report.PerformanceReport  `json:"performance,omitempty"`
	AuditDefense *report.AuditDefenseReport `json:"auditDefense,omitempty"`
}

// Markdown returns the text to display. The audit-defense report wins when
// both are present.
func (r CurrentReport) Markdown() string {
	if r.AuditDefense != nil {
		return r.AuditDefense.MarkdownReport
	}
	if r.Performance != nil {
		return r.Performance.MarkdownReport
	}
	return ""
}

// IsGenerating reports whether a report call is in flight.
func (c *Controller) IsGenerating() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generating
}

// GeneratePerformanceReport generates a performance report for the active
// session. It never changes session state. If the active session is
// replaced while the backend is working, the report is returned but not
// kept as the pending report.
func (c *Controller) GeneratePerformanceReport(ctx context.Context) (*report.PerformanceReport, error) {
	if c.reports == nil {
		return nil, ErrReportsDisabled
	}
	s, epoch, ok := c.snapshotEpoch()
	if !ok {
		return nil, ErrNoActiveSession
	}
	if err := c.beginReport(); err != nil {
		return nil, err
	}
	defer c.endReport()

	c.notifier.Publish(EventReportStarted, map[string]any{"session_id": s.SessionID, "kind": ReportPerformance})

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	rep, err := c.reports.GeneratePerformanceReport(ctx, s.SessionID, s.Context.ProjectName, s.Classification)
	if err != nil {
		return nil, c.reportFailed(s.SessionID, ReportPerformance, err)
	}

	c.mu.Lock()
	stored := c.epoch == epoch
	if stored {
		c.performance = rep
		c.auditReport = nil
	}
	c.mu.Unlock()

	if !stored {
		c.logger.Info("Discarding report for replaced session", "session_id", s.SessionID, "kind", ReportPerformance)
		return rep, nil
	}
	c.logger.Info("Performance report generated", "session_id", s.SessionID)
	c.notifier.Publish(EventReportReady, map[string]any{"session_id": s.SessionID, "kind": ReportPerformance})
	return rep, nil
}

// GenerateAuditReport generates an audit-defense report for target, or for
// the active session when target is nil. As with performance reports, a
// result that arrives after the active session was replaced is not kept.
func (c *Controller) GenerateAuditReport(ctx context.Context, target *domain.Session) (*report.AuditDefenseReport, error) {
	if c.reports == nil {
		return nil, ErrReportsDisabled
	}
	s, epoch, ok := c.snapshotEpoch()
	if target == nil {
		if !ok {
			return nil, ErrNoActiveSession
		}
		target = s
	} else {
		target = target.Clone()
	}
	if err := c.beginReport(); err != nil {
		return nil, err
	}
	defer c.endReport()

	c.notifier.Publish(EventReportStarted, map[string]any{"session_id": target.SessionID, "kind": ReportAuditDefense})

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	markdown, err := c.reports.GenerateAuditDefenseReport(ctx, target)
	if err != nil {
		return nil, c.reportFailed(target.SessionID, ReportAuditDefense, err)
	}
	rep := report.NewAuditDefenseReport(target.SessionID, markdown, c.now())

	c.mu.Lock()
	stored := c.epoch == epoch
	if stored {
		c.auditReport = rep
	}
	c.mu.Unlock()

	if !stored {
		c.logger.Info("Discarding report for replaced session", "session_id", target.SessionID, "kind", ReportAuditDefense)
		return rep, nil
	}
	c.logger.Info("Audit defense report generated", "session_id", target.SessionID)
	c.notifier.Publish(EventReportReady, map[string]any{"session_id": target.SessionID, "kind": ReportAuditDefense})
	return rep, nil
}

// Report returns the pending report, if any.
func (c *Controller) Report() (CurrentReport, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.auditReport != nil:
		return CurrentReport{Kind: ReportAuditDefense, Performance: c.performance, AuditDefense: c.auditReport}, true
	case c.performance != nil:
		return CurrentReport{Kind: ReportPerformance, Performance: c.performance}, true
	default:
		return CurrentReport{}, false
	}
}

// CloseReport discards any pending report.
func (c *Controller) CloseReport() {
	c.mu.Lock()
	c.performance = nil
	c.auditReport = nil
	c.mu.Unlock()
}

// snapshotEpoch returns the active session together with the epoch it
// belongs to.
func (c *Controller) snapshotEpoch() (*domain.Session, uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return nil, c.epoch, false
	}
	return c.active.Clone(), c.epoch, true
}

func (c *Controller) beginReport() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generating {
		return ErrReportInProgress
	}
	c.generating = true
	return nil
}

func (c *Controller) endReport() {
	c.mu.Lock()
	c.generating = false
	c.mu.Unlock()
}

func (c *Controller) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.reportTimeout > 0 {
		return context.WithTimeout(ctx, c.reportTimeout)
	}
	return context.WithCancel(ctx)
}

func (c *Controller) reportFailed(sessionID, kind string, err error) error {
	c.logger.Error("Report generation failed", "session_id", sessionID, "kind", kind, "error", err)
	c.notifier.Publish(EventReportFailed, map[string]any{"session_id": sessionID, "kind": kind})
	return fmt.Errorf("generate %s report: %w", kind, err)
}
