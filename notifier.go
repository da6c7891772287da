package hexazine

import "context"

// Template names understood by the notification layer. The engine only
// selects a template and supplies its variables; rendering and delivery
// happen outside this module.
const (
	// TemplateEmailVerification carries the verify_link for a requested
	// email change.
	TemplateEmailVerification = "email_verification"
	// TemplateEmailAdded confirms a first email was attached.
	TemplateEmailAdded = "email_added"
	// TemplateEmailChanged tells the old address its email was replaced and
	// carries the revert_link.
	TemplateEmailChanged = "email_changed"
	// TemplateEmailReverted confirms an email change was rolled back.
	TemplateEmailReverted = "email_reverted"
)

// Notifier is the single capability the engine consumes from the excluded
// notification layer. Delivery is best-effort: an error aborts the
// requesting operation before it mutates the aggregate, and never unwinds
// state that was already committed.
type Notifier interface {
	Notify(ctx context.Context, email, template string, vars map[string]string) error
}

// NoOpNotifier accepts every notification and sends nothing. It is the
// default when no Notifier is configured.
type NoOpNotifier struct{}

// Notify implements [Notifier].
func (NoOpNotifier) Notify(context.Context, string, string, map[string]string) error {
	return nil
}
