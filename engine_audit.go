package phonauth

import (
	"context"
	"errors"

	"github.com/phonetica/phonauth/internal/flows"
)

const auditEventRateLimitTriggered = "rate_limit_triggered"

// AuditErrorCode is the short failure reason carried in AuditEvent.Error.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrUserNotFound       AuditErrorCode = "user_not_found"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrValidation         AuditErrorCode = "validation"
	auditErrInternal           AuditErrorCode = "internal_error"
)

// flowMetrics maps flow event names to counters. Events without an entry
// are audit-only.
var flowMetrics = map[string]MetricID{
	flows.EventSignupSuccess:          MetricSignupSuccess,
	flows.EventSignupDuplicate:        MetricSignupDuplicate,
	flows.EventLoginSuccess:           MetricLoginSuccess,
	flows.EventLoginFailure:           MetricLoginFailure,
	flows.EventFederatedLoginSuccess:  MetricFederatedLoginSuccess,
	flows.EventFederatedLoginRejected: MetricFederatedLoginRejected,
	flows.EventFederatedUserCreated:   MetricFederatedUserCreated,
	flows.EventRefreshSuccess:         MetricRefreshSuccess,
	flows.EventRefreshFailure:         MetricRefreshFailure,
	flows.EventLogoutSuccess:          MetricLogout,
	flows.EventLogoutMissingSession:   MetricLogoutMissingSession,
	flows.EventPasswordChangeSuccess:  MetricPasswordChangeSuccess,
	flows.EventPasswordChangeInvalid:  MetricPasswordChangeInvalidOld,
	flows.EventPasswordRehashed:       MetricPasswordRehashed,
	flows.EventSessionUpserted:        MetricSessionUpserted,
	flows.EventProfileUpdated:         MetricProfileUpdated,
	flows.EventTokenGranted:           MetricTokenGranted,
	flows.EventActivityTouched:        MetricActivityTouched,
}

// recordFlowEvent is the flows.Deps.Record hook.
func (e *Engine) recordFlowEvent(ctx context.Context, ev flows.Event) {
	if id, ok := flowMetrics[ev.Name]; ok {
		e.metricInc(id)
	}
	// Session upserts and activity touches are too chatty for the audit log.
	if ev.Name == flows.EventSessionUpserted || ev.Name == flows.EventActivityTouched {
		return
	}
	e.emitAudit(ctx, AuditEvent{
		EventType: ev.Name,
		UserID:    ev.UserID,
		Email:     ev.Email,
		Device:    ev.Device,
		Success:   ev.Success,
		Error:     ev.Code,
	})
}

func (e *Engine) emitAudit(ctx context.Context, event AuditEvent) {
	if e == nil || e.audit == nil {
		return
	}
	event.Timestamp = e.now()
	if event.IP == "" {
		event.IP = clientIPFromContext(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestIDFromContext(ctx)
	}
	e.audit.Enqueue(ctx, event)
}

func (e *Engine) emitRateLimit(ctx context.Context, addr string) {
	e.metricInc(MetricRateLimitHit)
	e.emitAudit(ctx, AuditEvent{
		EventType: auditEventRateLimitTriggered,
		IP:        addr,
		Error:     string(auditErrRateLimited),
	})
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrCredentialsInvalid):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrRefreshTokenMissing):
		return auditErrInvalidToken
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrEmailTaken):
		return auditErrDuplicate
	case errors.Is(err, ErrIdentityUnavailable):
		return auditErrUnavailable
	}

	switch KindOf(err) {
	case KindPersistence:
		return auditErrUnavailable
	case KindValidation:
		return auditErrValidation
	default:
		return auditErrInternal
	}
}
