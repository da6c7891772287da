package hexazine

import (
	"context"
	"time"
)

const (
	auditEventLoginSuccess       = "login_success"
	auditEventLoginFailure       = "login_failure"
	auditEventLogout             = "logout"
	auditEventAccountCreated     = "account_created"
	auditEventAccountDeleted     = "account_deleted"
	auditEventUsernameChanged    = "username_changed"
	auditEventPasswordChanged    = "password_changed"
	auditEventCredentialUpgraded = "credential_upgraded"
	auditEventEmailVerifyRequest = "email_verify_request"
	auditEventEmailVerifyRevoked = "email_verify_revoked"
	auditEventEmailChanged       = "email_changed"
	auditEventEmailReverted      = "email_reverted"
	auditEventEmailCodeExpired   = "email_code_expired"
	auditEventProjectPublished   = "project_published"
	auditEventProjectUnpublished = "project_unpublished"
	auditEventPersistFailure     = "persist_failure"
)

// emitAudit builds and dispatches one audit event. metaFn is evaluated
// lazily so callers pay nothing for metadata when audit is disabled.
func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	accountID string,
	opErr error,
	metaFn func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: time.Now(),
		EventType: eventType,
		AccountID: accountID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
	}
	if opErr != nil {
		event.Error = opErr.Error()
	}
	if metaFn != nil {
		event.Metadata = metaFn()
	}

	e.audit.Emit(ctx, event)
}
